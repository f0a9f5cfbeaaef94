package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

type CircuitRecord struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Board     string            `json:"board"`
	Document  *circuit.Document `json:"document"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SnapshotRecord is one persisted analysis pass of a simulation run.
type SnapshotRecord struct {
	ID         uuid.UUID         `json:"id"`
	RunID      uuid.UUID         `json:"run_id"`
	Circuit    string            `json:"circuit"`
	TakenAt    time.Time         `json:"taken_at"`
	Efficiency float64           `json:"efficiency"`
	TotalPower float64           `json:"total_power"`
	Warnings   int               `json:"warnings"`
	Snapshot   analysis.Snapshot `json:"snapshot"`
}

// NewSnapshotRecord wraps snap with a fresh id and its summary columns.
func NewSnapshotRecord(runID uuid.UUID, circuitName string, snap analysis.Snapshot) SnapshotRecord {
	return SnapshotRecord{
		ID:         uuid.New(),
		RunID:      runID,
		Circuit:    circuitName,
		TakenAt:    snap.TakenAt,
		Efficiency: snap.Efficiency,
		TotalPower: snap.TotalPowerConsumption,
		Warnings:   len(snap.Warnings),
		Snapshot:   snap,
	}
}

func encodeJSON(v any, what string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", what, err)
	}
	return data, nil
}
