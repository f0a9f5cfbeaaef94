package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

func (p *PostgresClient) SaveSnapshot(ctx context.Context, rec SnapshotRecord) error {
	snapJSON, err := encodeJSON(rec.Snapshot, "snapshot")
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO analysis_snapshots (id, run_id, circuit, taken_at, efficiency, total_power, warnings, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.RunID, rec.Circuit, rec.TakenAt, rec.Efficiency, rec.TotalPower, rec.Warnings, snapJSON)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns the newest snapshots of a run, newest first.
func (p *PostgresClient) RecentSnapshots(ctx context.Context, runID uuid.UUID, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, run_id, circuit, taken_at, efficiency, total_power, warnings, snapshot
		FROM analysis_snapshots
		WHERE run_id = $1
		ORDER BY taken_at DESC
		LIMIT $2
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	records := make([]SnapshotRecord, 0, limit)
	for rows.Next() {
		var (
			rec      SnapshotRecord
			snapJSON []byte
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Circuit, &rec.TakenAt,
			&rec.Efficiency, &rec.TotalPower, &rec.Warnings, &snapJSON); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal(snapJSON, &rec.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
