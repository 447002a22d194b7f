// Package storage holds cpt's on-disk state: the lock that serializes kit
// generation and the SQLite run history.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Run is one recorded validate or coverage invocation.
type Run struct {
	ID          string
	Command     string
	Target      string // config path or scanned root
	StartedAt   time.Time
	CompletedAt time.Time
	Passed      bool
	Errors      int
	Warnings    int
	Coverage    *float64 // coverage runs only
	Granularity *float64
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

var historyMigrations = []Migration{
	{
		Version:     1,
		Description: "create runs table",
		Up: `
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				command TEXT NOT NULL,
				target TEXT NOT NULL DEFAULT '',
				started_at TEXT NOT NULL,
				completed_at TEXT NOT NULL,
				passed INTEGER NOT NULL,
				errors INTEGER NOT NULL DEFAULT 0,
				warnings INTEGER NOT NULL DEFAULT 0,
				coverage REAL,
				granularity REAL
			)
		`,
		Down: `DROP TABLE IF EXISTS runs`,
	},
	{
		Version:     2,
		Description: "index runs by command and start time",
		Up:          `CREATE INDEX IF NOT EXISTS idx_runs_command_started ON runs(command, started_at)`,
		Down:        `DROP INDEX IF EXISTS idx_runs_command_started`,
	},
}

// History is the SQLite-backed run log.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the history database at path and
// brings its schema up to date.
func OpenHistory(ctx context.Context, path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := NewMigrator(historyMigrations...).Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record stores run, assigning an ID when it has none.
func (h *History) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Command == "" {
		return fmt.Errorf("run command is required")
	}
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, target, started_at, completed_at,
		                  passed, errors, warnings, coverage, granularity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Command, run.Target,
		formatTime(run.StartedAt), formatTime(run.CompletedAt),
		run.Passed, run.Errors, run.Warnings,
		nullFloat(run.Coverage), nullFloat(run.Granularity),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. An empty command matches
// every command.
func (h *History) Recent(ctx context.Context, command string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, command, target, started_at, completed_at,
		       passed, errors, warnings, coverage, granularity
		FROM runs
		WHERE ? = '' OR command = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, command, command, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			run                Run
			started, completed string
			coverage, gran     sql.NullFloat64
		)
		if err := rows.Scan(&run.ID, &run.Command, &run.Target, &started, &completed,
			&run.Passed, &run.Errors, &run.Warnings, &coverage, &gran); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if run.CompletedAt, err = parseTime(completed); err != nil {
			return nil, err
		}
		if coverage.Valid {
			run.Coverage = &coverage.Float64
		}
		if gran.Valid {
			run.Granularity = &gran.Float64
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Prune keeps the newest keep runs and deletes the rest. It returns the
// number of deleted rows. keep <= 0 disables pruning.
func (h *History) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := h.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
