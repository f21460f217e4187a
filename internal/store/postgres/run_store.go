package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfold/updownbot/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL. The strategy config
// and the full report are stored as JSONB.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Insert persists one evaluation run.
func (s *RunStore) Insert(ctx context.Context, run domain.RunRecord) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("postgres: marshal run config %s: %w", run.ID, err)
	}

	const query = `
		INSERT INTO runs (id, mode, config_json, report_json, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.pool.Exec(ctx, query, run.ID, run.Mode, configJSON, []byte(run.Report), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}
	return nil
}

// GetByID retrieves a single run by its UUID.
func (s *RunStore) GetByID(ctx context.Context, id string) (domain.RunRecord, error) {
	const query = `SELECT id, mode, config_json, report_json, created_at FROM runs WHERE id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RunRecord{}, domain.ErrNotFound
		}
		return domain.RunRecord{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	return run, nil
}

// ListRecent returns the most recent runs, newest first.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, mode, config_json, report_json, created_at
		FROM runs ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list runs rows: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (domain.RunRecord, error) {
	var (
		run        domain.RunRecord
		configJSON []byte
		reportJSON []byte
	)
	if err := row.Scan(&run.ID, &run.Mode, &configJSON, &reportJSON, &run.CreatedAt); err != nil {
		return domain.RunRecord{}, err
	}
	if err := json.Unmarshal(configJSON, &run.Config); err != nil {
		return domain.RunRecord{}, fmt.Errorf("unmarshal run config: %w", err)
	}
	run.Report = reportJSON
	return run, nil
}
