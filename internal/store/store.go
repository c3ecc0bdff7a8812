// Package store keeps the history of runs in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/harness"
)

// DBPool abstracts pgxpool.Pool so tests can use pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS lancet_runs (
    id          TEXT PRIMARY KEY,
    driver      TEXT NOT NULL,
    engine      TEXT NOT NULL,
    base_url    TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    passed      INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    skipped     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS lancet_results (
    run_id      TEXT NOT NULL REFERENCES lancet_runs(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    scenario    TEXT NOT NULL,
    status      TEXT NOT NULL,
    reason      TEXT NOT NULL,
    message     TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    artifacts   TEXT[] NOT NULL,
    states      TEXT[] NOT NULL,
    PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS lancet_runs_started_at_idx ON lancet_runs (started_at DESC);
`

const (
	sqlInsertRun = `
        INSERT INTO lancet_runs (id, driver, engine, base_url, started_at, duration_ms, passed, failed, skipped)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `
	sqlSelectRun = `
        SELECT id, driver, engine, base_url, started_at, duration_ms
        FROM lancet_runs
        WHERE id = $1;
    `
	sqlSelectResults = `
        SELECT scenario, status, reason, message, started_at, duration_ms, artifacts, states
        FROM lancet_results
        WHERE run_id = $1
        ORDER BY position ASC;
    `
	sqlListRuns = `
        SELECT id, driver, engine, base_url, started_at, duration_ms, passed, failed, skipped
        FROM lancet_runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
)

var resultColumns = []string{"run_id", "position", "scenario", "status", "reason", "message", "started_at", "duration_ms", "artifacts", "states"}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID        string
	Driver    string
	Engine    string
	BaseURL   string
	StartedAt time.Time
	Duration  time.Duration
	Passed    int
	Failed    int
	Skipped   int
}

// Store persists run results.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun writes the run and all of its results in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *harness.RunResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	passed, failed, skipped := run.Counts()
	_, err = tx.Exec(ctx, sqlInsertRun,
		run.ID, run.Driver, run.Engine, run.BaseURL,
		run.StartedAt.UTC(), run.Duration.Milliseconds(),
		passed, failed, skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	if len(run.Results) > 0 {
		if err := s.copyResults(ctx, tx, run); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run saved.", zap.String("run_id", run.ID), zap.Int("results", len(run.Results)))
	return nil
}

func (s *Store) copyResults(ctx context.Context, tx pgx.Tx, run *harness.RunResult) error {
	rows := make([][]any, len(run.Results))
	for i, r := range run.Results {
		artifacts := r.Artifacts
		if artifacts == nil {
			artifacts = []string{}
		}
		states := make([]string, len(r.States))
		for j, st := range r.States {
			states[j] = string(st)
		}
		rows[i] = []any{
			run.ID, i, r.Scenario, string(r.Status), r.Reason, r.Message,
			r.StartedAt.UTC(), r.Duration.Milliseconds(), artifacts, states,
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"lancet_results"}, resultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy results: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("mismatch in copied results count: expected %d, got %d", len(rows), n)
	}
	return nil
}

// GetRun loads a stored run with its results in their original order.
func (s *Store) GetRun(ctx context.Context, id string) (*harness.RunResult, error) {
	run := &harness.RunResult{}
	var durationMS int64
	err := s.pool.QueryRow(ctx, sqlSelectRun, id).Scan(
		&run.ID, &run.Driver, &run.Engine, &run.BaseURL, &run.StartedAt, &durationMS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond

	rows, err := s.pool.Query(ctx, sqlSelectResults, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r      harness.Result
			status string
			ms     int64
			states []string
		)
		if err := rows.Scan(&r.Scenario, &status, &r.Reason, &r.Message, &r.StartedAt, &ms, &r.Artifacts, &states); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.Status = harness.Status(status)
		r.Duration = time.Duration(ms) * time.Millisecond
		for _, st := range states {
			r.States = append(r.States, harness.State(st))
		}
		run.Results = append(run.Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			r  RunSummary
			ms int64
		)
		if err := rows.Scan(&r.ID, &r.Driver, &r.Engine, &r.BaseURL, &r.StartedAt, &ms, &r.Passed, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
