package interfaces

import (
	"context"

	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/KevinKickass/OpenCircuitCore/internal/config"
	"github.com/KevinKickass/OpenCircuitCore/internal/simulation"
	"github.com/KevinKickass/OpenCircuitCore/internal/storage"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string `json:"state"`
	Circuit          string `json:"circuit"`
	Board            string `json:"board"`
	Simulation       string `json:"simulation"`
	Wires            int    `json:"wires"`
	Components       int    `json:"components"`
	ConnectedClients int    `json:"connected_clients"`
	Database         bool   `json:"database"`
	Error            string `json:"error,omitempty"`
}

type LifecycleManager interface {
	Config() *config.Config
	// Storage is nil when persistence is disabled.
	Storage() *storage.PostgresClient
	Loader() *circuit.Loader
	Session() *simulation.Session
	// LoadCircuit validates and composes doc, then replaces the active
	// session with a fresh one.
	LoadCircuit(ctx context.Context, doc *circuit.Document) error
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
