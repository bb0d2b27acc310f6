// Package journal records run history in a local SQLite database: one
// row per run, one per step result, and warning events. It is an audit
// trail for operators ("what did the last run do, and when"), not a
// dependency of the engine — every write is best-effort.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/nodeprep/nodeprep/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Journal is a SQLite-backed run history store.
type Journal struct {
	db   *sql.DB
	path string
}

// Run is one recorded invocation of the step sequence.
type Run struct {
	ID          string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string
	Error       *string
	Steps       int
}

// StepRecord is one recorded step result within a run.
type StepRecord struct {
	ID         int64
	RunID      string
	Step       string
	Outcome    string
	Warning    *string
	Error      *string
	StartedAt  time.Time
	DurationMS int64
}

// Open creates the journal at path and runs migrations.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func (j *Journal) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(j.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// RunStarted implements engine.Recorder.
func (j *Journal) RunStarted(ctx context.Context, run engine.RunInfo) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, steps) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), "running", run.Steps,
	)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// StepFinished implements engine.Recorder.
func (j *Journal) StepFinished(ctx context.Context, runID string, res engine.StepResult) error {
	var warning, stepErr *string
	if res.Warning != "" {
		warning = &res.Warning
	}
	if res.Err != nil {
		msg := res.Err.Error()
		stepErr = &msg
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO step_results (run_id, step, outcome, warning, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Step, string(res.Outcome), warning, stepErr,
		res.StartedAt.UTC(), res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record step result: %w", err)
	}
	return nil
}

// RunFinished implements engine.Recorder.
func (j *Journal) RunFinished(ctx context.Context, runID string, status engine.RunStatus, runErr error) error {
	var errText *string
	if runErr != nil {
		msg := runErr.Error()
		errText = &msg
	}

	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET completed_at = ?, status = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), string(status), errText, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// Runs lists recorded runs, newest-first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, completed_at, status, error, steps
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.CompletedAt, &r.Status, &r.Error, &r.Steps); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StepResults lists the step results of one run in execution order.
func (j *Journal) StepResults(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, step, outcome, warning, error, started_at, duration_ms
		 FROM step_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step results: %w", err)
	}
	defer rows.Close()

	var recs []StepRecord
	for rows.Next() {
		var r StepRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.Step, &r.Outcome, &r.Warning, &r.Error, &r.StartedAt, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
