package store

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
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailsort/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordRun inserts a run and its summaries in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, run model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	for i, sum := range run.Summaries {
		if !sum.Category.Valid() {
			return fmt.Errorf("summary %d has unknown category %q", i, sum.Category)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, started_at, finished_at, server, username,
			listed, fetched, skipped, outcome, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Server, run.Username,
		run.Listed, run.Fetched, run.Skipped, string(run.Outcome), run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	if len(run.Summaries) > 0 {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO run_summaries (run_id, position, sender, subject, category)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing summary insert: %w", err)
		}
		defer stmt.Close()

		for i, sum := range run.Summaries {
			if _, err := stmt.ExecContext(ctx,
				run.ID, i, sum.Sender, sum.Subject, string(sum.Category),
			); err != nil {
				return fmt.Errorf("inserting summary %d of run %s: %w", i, run.ID, err)
			}
		}
	}

	return tx.Commit()
}

// runRow mirrors the runs table for sqlx scanning.
type runRow struct {
	ID           string    `db:"id"`
	StartedAt    time.Time `db:"started_at"`
	FinishedAt   time.Time `db:"finished_at"`
	Server       string    `db:"server"`
	Username     string    `db:"username"`
	Listed       int       `db:"listed"`
	Fetched      int       `db:"fetched"`
	Skipped      int       `db:"skipped"`
	Outcome      string    `db:"outcome"`
	ErrorMessage string    `db:"error_message"`
}

func (r runRow) toModel() model.Run {
	return model.Run{
		ID:           r.ID,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Server:       r.Server,
		Username:     r.Username,
		Listed:       r.Listed,
		Fetched:      r.Fetched,
		Skipped:      r.Skipped,
		Outcome:      model.Outcome(r.Outcome),
		ErrorMessage: r.ErrorMessage,
	}
}

// GetRuns retrieves runs matching the filter, newest first.
func (s *SQLiteStore) GetRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	var conditions []string
	var args []interface{}

	if filter.Outcome != nil {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(*filter.Outcome))
	}
	if filter.Server != nil {
		conditions = append(conditions, "server = ?")
		args = append(args, *filter.Server)
	}

	query := "SELECT * FROM runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}

	runs := make([]model.Run, 0, len(rows))
	for _, r := range rows {
		runs = append(runs, r.toModel())
	}
	return runs, nil
}

// GetRunByID retrieves a single run and its summaries.
func (s *SQLiteStore) GetRunByID(ctx context.Context, id string) (*model.Run, error) {
	var row runRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM runs WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("getting run %s: %w", id, ErrRunNotFound)
		}
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}

	run := row.toModel()

	err := s.db.SelectContext(ctx, &run.Summaries, `
		SELECT sender, subject, category FROM run_summaries
		WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("getting summaries of run %s: %w", id, err)
	}

	return &run, nil
}

// PruneRuns keeps only the newest keep runs. Summaries go with their run.
func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned runs: %w", err)
	}
	return n, nil
}
