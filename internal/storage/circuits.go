package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveCircuit inserts or replaces the document stored under doc.Name.
func (p *PostgresClient) SaveCircuit(ctx context.Context, doc *circuit.Document) (*CircuitRecord, error) {
	if doc.Name == "" {
		return nil, fmt.Errorf("circuit name is required")
	}
	docJSON, err := encodeJSON(doc, "circuit document")
	if err != nil {
		return nil, err
	}

	rec := CircuitRecord{Name: doc.Name, Board: doc.Board, Document: doc}
	err = p.pool.QueryRow(ctx, `
		INSERT INTO circuits (id, name, board, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
			SET board = EXCLUDED.board, document = EXCLUDED.document, updated_at = now()
		RETURNING id, created_at, updated_at
	`, uuid.New(), doc.Name, doc.Board, docJSON).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save circuit: %w", err)
	}
	return &rec, nil
}

func (p *PostgresClient) LoadCircuit(ctx context.Context, name string) (*CircuitRecord, error) {
	var (
		rec     CircuitRecord
		docJSON []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, board, document, created_at, updated_at
		FROM circuits
		WHERE name = $1
	`, name).Scan(&rec.ID, &rec.Name, &rec.Board, &docJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: circuit %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to load circuit: %w", err)
	}

	rec.Document = &circuit.Document{}
	if err := json.Unmarshal(docJSON, rec.Document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal circuit document: %w", err)
	}
	return &rec, nil
}

// ListCircuits returns every stored circuit without its document.
func (p *PostgresClient) ListCircuits(ctx context.Context) ([]CircuitRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, board, created_at, updated_at
		FROM circuits
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query circuits: %w", err)
	}
	defer rows.Close()

	records := make([]CircuitRecord, 0)
	for rows.Next() {
		var rec CircuitRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Board, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan circuit: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (p *PostgresClient) DeleteCircuit(ctx context.Context, name string) error {
	result, err := p.pool.Exec(ctx, `DELETE FROM circuits WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete circuit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: circuit %s", ErrNotFound, name)
	}
	return nil
}
