package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultListLimit caps history listings without an explicit limit.
const DefaultListLimit = 50

const runColumns = `id, strategy, size, seed, params, cached, payload, created_at`

// Repository stores run history in runs.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

// Save inserts a run
func (r *Repository) Save(ctx context.Context, run *Run) error {
	if run.Result == nil {
		return fmt.Errorf("run %s has no result", run.ID)
	}
	payload, err := msgpack.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}
	params := string(run.Params)
	if params == "" {
		params = "{}"
	}

	res := run.Result
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (id, strategy, size, seed, params, score, total_value, average_risk,
			average_return, steps, duration_ms, cached, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Strategy, run.Size, run.Seed, params, res.Score, res.TotalValue, res.AverageRisk,
		res.AverageReturn, res.Steps, res.Duration.Milliseconds(), boolToInt(run.Cached), payload,
		run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// Get returns a run by id or domain.ErrNotFound
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	args := []interface{}{}
	if filter.Strategy != "" {
		query += ` WHERE strategy = ?`
		args = append(args, filter.Strategy)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// DeleteOlderThan removes runs created before cutoff and returns the count
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run       Run
		params    string
		cached    int
		payload   []byte
		createdAt int64
	)
	if err := s.Scan(&run.ID, &run.Strategy, &run.Size, &run.Seed, &params, &cached, &payload, &createdAt); err != nil {
		return nil, err
	}

	var result domain.Result
	if err := msgpack.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", run.ID, err)
	}
	run.Result = &result
	run.Params = json.RawMessage(params)
	run.Cached = cached != 0
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
