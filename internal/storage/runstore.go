// Package storage persists lmay state under the project's .lmay directory:
// the run history database and the event log.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/lmay/pkg/models"
	_ "modernc.org/sqlite"
)

// StateDirName is the per-project directory holding lmay state.
const StateDirName = ".lmay"

// RunStorePath returns the run history database path for a project.
func RunStorePath(projectRoot string) string {
	return filepath.Join(projectRoot, StateDirName, "runs.db")
}

// EventLogPath returns the event log path for a project.
func EventLogPath(projectRoot string) string {
	return filepath.Join(projectRoot, StateDirName, "events.jsonl")
}

// RunStore records validate and drift runs.
type RunStore interface {
	Record(ctx context.Context, rec models.RunRecord) (string, error)
	Recent(ctx context.Context, limit int) ([]models.RunRecord, error)
	Latest(ctx context.Context, kind models.RunKind) (*models.RunRecord, error)
	Close() error
}

type sqliteRunStore struct {
	db *sql.DB
}

// OpenRunStore opens or creates the SQLite run history at path.
func OpenRunStore(path string) (RunStore, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" || p == "." {
		return nil, errors.New("missing run store path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("creating run store directory: %w", err)
	}

	// modernc.org/sqlite uses a file path as DSN.
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrateRunStore(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteRunStore{db: db}, nil
}

func migrateRunStore(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA busy_timeout=3000;`); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}

	// Schema versions:
	// - v1: runs table
	const targetVersion = 1

	var v int
	if err := db.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return fmt.Errorf("pragma user_version: %w", err)
	}
	if v >= targetVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  project TEXT NOT NULL,
  started_at_unix_ms INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL,
  valid INTEGER NOT NULL,
  documents INTEGER NOT NULL,
  errors INTEGER NOT NULL,
  warnings INTEGER NOT NULL,
  outdated INTEGER NOT NULL,
  obsolete INTEGER NOT NULL
);
`); err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_unix_ms);`); err != nil {
		return fmt.Errorf("creating runs index: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, targetVersion)); err != nil {
		return fmt.Errorf("setting user_version: %w", err)
	}
	return tx.Commit()
}

// Record inserts rec, assigning a UUID when rec.ID is empty, and returns
// the stored ID.
func (s *sqliteRunStore) Record(ctx context.Context, rec models.RunRecord) (string, error) {
	if rec.Kind != models.RunValidate && rec.Kind != models.RunDrift {
		return "", fmt.Errorf("unknown run kind %q", rec.Kind)
	}
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs(
  run_id, kind, project, started_at_unix_ms, duration_ms, valid,
  documents, errors, warnings, outdated, obsolete
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		rec.ID,
		string(rec.Kind),
		rec.Project,
		rec.StartedAt.UnixMilli(),
		rec.Duration.Milliseconds(),
		boolToInt(rec.Valid),
		rec.Documents,
		rec.Errors,
		rec.Warnings,
		rec.Outdated,
		rec.Obsolete,
	)
	if err != nil {
		return "", fmt.Errorf("recording run %s: %w", rec.ID, err)
	}
	return rec.ID, nil
}

const selectRuns = `
SELECT run_id, kind, project, started_at_unix_ms, duration_ms, valid,
  documents, errors, warnings, outdated, obsolete
FROM runs
`

// Recent returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *sqliteRunStore) Recent(ctx context.Context, limit int) ([]models.RunRecord, error) {
	q := selectRuns + `ORDER BY started_at_unix_ms DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Latest returns the newest run of kind, or nil when there is none.
func (s *sqliteRunStore) Latest(ctx context.Context, kind models.RunKind) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+`WHERE kind = ? ORDER BY started_at_unix_ms DESC, rowid DESC LIMIT 1`, string(kind))
	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Close closes the database.
func (s *sqliteRunStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (models.RunRecord, error) {
	var rec models.RunRecord
	var kind string
	var startedMs, durationMs int64
	var valid int
	if err := r.Scan(
		&rec.ID,
		&kind,
		&rec.Project,
		&startedMs,
		&durationMs,
		&valid,
		&rec.Documents,
		&rec.Errors,
		&rec.Warnings,
		&rec.Outdated,
		&rec.Obsolete,
	); err != nil {
		return rec, err
	}
	rec.Kind = models.RunKind(kind)
	rec.StartedAt = time.UnixMilli(startedMs)
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	rec.Valid = valid != 0
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
