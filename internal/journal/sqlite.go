// Package journal persists run history in SQLite: one row per run, its
// executed actions and its recorded errors. The action table doubles as the
// index of content already organized by earlier runs.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"eventphoto/internal/journal/migrations"
	"eventphoto/internal/photo"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// lookupBatch bounds the number of parameters per IN query.
const lookupBatch = 500

// SQLiteJournal implements photo.Journal using SQLite.
type SQLiteJournal struct {
	db    *sql.DB
	path  string
	clock photo.Clock
}

// NewSQLiteJournal opens the journal at path (":memory:" for a private
// in-memory journal). The schema is not migrated; call MigrateUp or
// CheckMigrations. A nil clock uses the real time.
func NewSQLiteJournal(path string, clock photo.Clock) (*SQLiteJournal, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = photo.RealClock{}
	}
	return &SQLiteJournal{db: db, path: path, clock: clock}, nil
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// Every connection to ":memory:" is a new, empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring journal (%s): %w", pragma, err)
		}
	}
	return db, nil
}

// Runs

func (j *SQLiteJournal) CreateRun(run *photo.RunRecord) error {
	_, err := j.db.ExecContext(context.Background(), `
		INSERT INTO runs (id, operation, sources, destination, state, dry_run, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Operation, run.Sources, run.Destination, string(run.State), run.DryRun, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) FinishRun(result *photo.RunResult) error {
	finished := result.FinishedAt
	if finished.IsZero() {
		finished = j.clock.Now()
	}
	res, err := j.db.ExecContext(context.Background(), `
		UPDATE runs
		SET state = ?, finished_at = ?, processed = ?, skipped = ?, duplicates = ?, errors = ?
		WHERE id = ?`,
		string(result.State), finished.UTC(), result.Processed, result.Skipped, result.Duplicates, len(result.Errors), result.RunID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run: unknown run %s", result.RunID)
	}
	return nil
}

func (j *SQLiteJournal) FindRun(id string) (*photo.RunRecord, error) {
	row := j.db.QueryRowContext(context.Background(), selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("finding run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (j *SQLiteJournal) ListRuns(limit int) ([]*photo.RunRecord, error) {
	rows, err := j.db.QueryContext(context.Background(), selectRuns+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*photo.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

const selectRuns = `
	SELECT id, operation, sources, destination, state, dry_run, started_at, finished_at,
	       processed, skipped, duplicates, errors
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*photo.RunRecord, error) {
	var (
		run      photo.RunRecord
		state    string
		finished sql.NullTime
	)
	err := s.Scan(&run.ID, &run.Operation, &run.Sources, &run.Destination, &state, &run.DryRun,
		&run.StartedAt, &finished, &run.Processed, &run.Skipped, &run.Duplicates, &run.Errors)
	if err != nil {
		return nil, err
	}
	run.State = photo.Stage(state)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// Actions and errors

func (j *SQLiteJournal) RecordActions(runID string, actions []photo.OrganizeAction) error {
	if len(actions) == 0 {
		return nil
	}
	return j.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO run_actions (run_id, source, destination, checksum, group_name, kind, status, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing action insert: %w", err)
		}
		defer stmt.Close()

		for i := range actions {
			a := &actions[i]
			msg := ""
			if a.Err != nil {
				msg = a.Err.Error()
			}
			if _, err := stmt.Exec(runID, a.Source, a.Destination, a.Record.Checksum, a.Group, string(a.Kind), string(a.Status), msg); err != nil {
				return fmt.Errorf("recording action for %s: %w", a.Source, err)
			}
		}
		return nil
	})
}

func (j *SQLiteJournal) RecordErrors(runID string, errs []*photo.Error) error {
	if len(errs) == 0 {
		return nil
	}
	return j.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO run_errors (run_id, kind, path, message) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing error insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range errs {
			msg := ""
			if e.Err != nil {
				msg = e.Err.Error()
			}
			if _, err := stmt.Exec(runID, string(e.Kind), e.Path, msg); err != nil {
				return fmt.Errorf("recording error for %s: %w", e.Path, err)
			}
		}
		return nil
	})
}

func (j *SQLiteJournal) FindRunActions(runID string) ([]*photo.ActionRecord, error) {
	rows, err := j.db.QueryContext(context.Background(), `
		SELECT run_id, source, destination, checksum, group_name, kind, status, error
		FROM run_actions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("finding run actions: %w", err)
	}
	defer rows.Close()

	var out []*photo.ActionRecord
	for rows.Next() {
		var (
			a            photo.ActionRecord
			kind, status string
		)
		if err := rows.Scan(&a.RunID, &a.Source, &a.Destination, &a.Checksum, &a.Group, &kind, &status, &a.Error); err != nil {
			return nil, fmt.Errorf("finding run actions: %w", err)
		}
		a.Kind = photo.ActionKind(kind)
		a.Status = photo.ActionStatus(status)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding run actions: %w", err)
	}
	return out, nil
}

// FindRunErrors returns the errors recorded for a run, in insertion order.
func (j *SQLiteJournal) FindRunErrors(runID string) ([]*photo.Error, error) {
	rows, err := j.db.QueryContext(context.Background(),
		`SELECT kind, path, message FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("finding run errors: %w", err)
	}
	defer rows.Close()

	var out []*photo.Error
	for rows.Next() {
		var kind, path, msg string
		if err := rows.Scan(&kind, &path, &msg); err != nil {
			return nil, fmt.Errorf("finding run errors: %w", err)
		}
		var cause error
		if msg != "" {
			cause = errors.New(msg)
		}
		out = append(out, photo.NewError(photo.ErrorKind(kind), path, cause))
	}
	return out, rows.Err()
}

// FindOrganizedChecksums reports, for each checksum that a finished action
// transferred, the most recent destination.
func (j *SQLiteJournal) FindOrganizedChecksums(checksums []string) (map[string]string, error) {
	found := make(map[string]string)
	for start := 0; start < len(checksums); start += lookupBatch {
		end := min(start+lookupBatch, len(checksums))
		batch := checksums[start:end]

		args := make([]any, 0, len(batch)+1)
		args = append(args, string(photo.StatusDone))
		for _, c := range batch {
			args = append(args, c)
		}
		query := `
			SELECT checksum, destination FROM run_actions
			WHERE status = ? AND checksum IN (?` + strings.Repeat(", ?", len(batch)-1) + `)
			ORDER BY id`

		rows, err := j.db.QueryContext(context.Background(), query, args...)
		if err != nil {
			return nil, fmt.Errorf("finding organized content: %w", err)
		}
		for rows.Next() {
			var sum, dest string
			if err := rows.Scan(&sum, &dest); err != nil {
				rows.Close()
				return nil, fmt.Errorf("finding organized content: %w", err)
			}
			// later rows win
			found[sum] = dest
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("finding organized content: %w", err)
		}
	}
	return found, nil
}

// Maintenance

// Path returns the journal file path (or ":memory:").
func (j *SQLiteJournal) Path() string {
	return j.path
}

// CheckMigrations verifies the journal schema is up-to-date.
func (j *SQLiteJournal) CheckMigrations() error {
	return migrations.Check(j.db)
}

// MigrateUp applies pending schema migrations.
func (j *SQLiteJournal) MigrateUp() error {
	return migrations.Up(j.db)
}

// BackupTo writes a consistent copy of the journal to destPath using VACUUM INTO.
func (j *SQLiteJournal) BackupTo(destPath string) error {
	if _, err := j.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up journal: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func (j *SQLiteJournal) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := j.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Compile-time check that SQLiteJournal implements photo.Journal interface
var _ photo.Journal = (*SQLiteJournal)(nil)
