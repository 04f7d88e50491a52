// Package history keeps a SQLite log of finished pipeline runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"curator/internal/core"
	"curator/internal/pipeline"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// Store represents the SQLite-based run history
type Store struct {
	db   *sql.DB
	path string
}

// Run is one recorded run summary
type Run struct {
	ID               string               `json:"run_id"`
	StartedAt        time.Time            `json:"started_at"`
	Duration         time.Duration        `json:"duration"`
	Topics           string               `json:"topics"`
	UseSearch        bool                 `json:"use_search"`
	Candidates       int                  `json:"candidates"`
	Duplicates       int                  `json:"duplicates"`
	Attempted        int                  `json:"attempted"`
	SuccessCount     int                  `json:"success_count"`
	ErrorCount       int                  `json:"error_count"`
	FiledWithErrors  int                  `json:"filed_with_errors"`
	ErrorsByCategory map[string]int       `json:"errors_by_category"`
	SourceErrors     []core.SourceFailure `json:"source_errors"`
	Artifacts        []core.ArtifactRef   `json:"artifacts,omitempty"` // Only filled by Get
}

// Stats aggregates every recorded run
type Stats struct {
	Runs          int       `json:"runs"`
	Artifacts     int       `json:"artifacts"`
	Successes     int       `json:"successes"`
	Errors        int       `json:"errors"`
	LastRunAt     time.Time `json:"last_run_at"`
	DatabaseBytes int64     `json:"database_bytes"`
}

// Open creates or opens the history database at path
func Open(path string) (*Store, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		topics TEXT,
		use_search BOOLEAN NOT NULL DEFAULT 0,
		candidates INTEGER NOT NULL,
		duplicates INTEGER NOT NULL,
		attempted INTEGER NOT NULL,
		success_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		filed_with_errors INTEGER NOT NULL,
		errors_by_category TEXT,
		source_errors TEXT
	);`

	artifactsTable := `
	CREATE TABLE IF NOT EXISTS run_artifacts (
		run_id TEXT NOT NULL,
		slug TEXT NOT NULL,
		kind TEXT NOT NULL,
		path TEXT,
		status TEXT,
		errors TEXT,
		FOREIGN KEY (run_id) REFERENCES runs (id) ON DELETE CASCADE
	);`

	index := `CREATE INDEX IF NOT EXISTS idx_run_artifacts_slug ON run_artifacts (slug);`

	for _, stmt := range []string{runsTable, artifactsTable, index} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string { return s.path }

// RecordRun stores a finished summary. Dry runs are ignored.
func (s *Store) RecordRun(ctx context.Context, sum *pipeline.Summary) error {
	if sum == nil || sum.DryRun {
		return nil
	}

	byCategory, err := json.Marshal(sum.ErrorsByCategory)
	if err != nil {
		return fmt.Errorf("failed to encode error counts: %w", err)
	}
	sourceErrors, err := json.Marshal(sum.SourceErrors)
	if err != nil {
		return fmt.Errorf("failed to encode source errors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sq.Insert("runs").
		Options("OR REPLACE").
		Columns("id", "started_at", "duration_ms", "topics", "use_search", "candidates", "duplicates",
			"attempted", "success_count", "error_count", "filed_with_errors", "errors_by_category", "source_errors").
		Values(sum.RunID, sum.StartedAt.UTC(), sum.Duration.Milliseconds(), sum.Topics, sum.UseSearch,
			len(sum.Candidates), sum.Duplicates, sum.Attempted, sum.SuccessCount, sum.ErrorCount,
			sum.FiledWithErrors, string(byCategory), string(sourceErrors)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_artifacts WHERE run_id = ?", sum.RunID); err != nil {
		return fmt.Errorf("failed to clear run artifacts: %w", err)
	}
	if len(sum.Artifacts) > 0 {
		ins := sq.Insert("run_artifacts").Columns("run_id", "slug", "kind", "path", "status", "errors")
		for _, a := range sum.Artifacts {
			errs, _ := json.Marshal(a.Errors)
			ins = ins.Values(sum.RunID, a.Slug, string(a.Kind), a.Path, string(a.Status), string(errs))
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build artifact insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert run artifacts: %w", err)
		}
	}

	return tx.Commit()
}

var runColumns = []string{
	"id", "started_at", "duration_ms", "topics", "use_search", "candidates", "duplicates",
	"attempted", "success_count", "error_count", "filed_with_errors", "errors_by_category", "source_errors",
}

// Recent returns the latest runs, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := sq.Select(runColumns...).
		From("runs").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Get returns one run with its artifacts. A missing id wraps core.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	query, args, err := sq.Select(runColumns...).From("runs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	query, args, err = sq.Select("slug", "kind", "path", "status", "errors").
		From("run_artifacts").
		Where(sq.Eq{"run_id": id}).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			ref          core.ArtifactRef
			kind, status string
			errs         sql.NullString
		)
		if err := rows.Scan(&ref.Slug, &kind, &ref.Path, &status, &errs); err != nil {
			return nil, fmt.Errorf("failed to scan run artifact: %w", err)
		}
		ref.Kind = core.OutputKind(kind)
		ref.Status = core.LifecycleState(status)
		if errs.Valid && errs.String != "" {
			_ = json.Unmarshal([]byte(errs.String), &ref.Errors)
		}
		run.Artifacts = append(run.Artifacts, ref)
	}
	return run, rows.Err()
}

// RunsForSlug lists the ids of runs that filed slug, newest first
func (s *Store) RunsForSlug(ctx context.Context, slug string) ([]string, error) {
	query, args, err := sq.Select("r.id").
		From("run_artifacts a").
		Join("runs r ON r.id = a.run_id").
		Where(sq.Eq{"a.slug": slug}).
		OrderBy("r.started_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs for slug: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetStats returns statistics about recorded runs
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var last sql.NullString
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(success_count), 0), COALESCE(SUM(error_count), 0), MAX(started_at) FROM runs")
	if err := row.Scan(&stats.Runs, &stats.Successes, &stats.Errors, &last); err != nil {
		return nil, fmt.Errorf("failed to get run stats: %w", err)
	}
	if last.Valid {
		if t, err := parseTime(last.String); err == nil {
			stats.LastRunAt = t
		}
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_artifacts").Scan(&stats.Artifacts); err != nil {
		return nil, fmt.Errorf("failed to count artifacts: %w", err)
	}

	// Get database size (file size)
	if fi, err := os.Stat(s.path); err == nil {
		stats.DatabaseBytes = fi.Size()
	}
	return stats, nil
}

// Cleanup removes runs older than maxAge
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	query, args, err := sq.Delete("runs").Where(sq.Lt{"started_at": cutoff}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clean old runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run          Run
		started      sql.NullString
		durationMS   int64
		topics       sql.NullString
		byCategory   sql.NullString
		sourceErrors sql.NullString
	)
	err := row.Scan(&run.ID, &started, &durationMS, &topics, &run.UseSearch, &run.Candidates, &run.Duplicates,
		&run.Attempted, &run.SuccessCount, &run.ErrorCount, &run.FiledWithErrors, &byCategory, &sourceErrors)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if started.Valid {
		if t, err := parseTime(started.String); err == nil {
			run.StartedAt = t
		}
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.Topics = topics.String
	run.ErrorsByCategory = map[string]int{}
	if byCategory.Valid && byCategory.String != "" {
		_ = json.Unmarshal([]byte(byCategory.String), &run.ErrorsByCategory)
	}
	if sourceErrors.Valid && sourceErrors.String != "" && sourceErrors.String != "null" {
		_ = json.Unmarshal([]byte(sourceErrors.String), &run.SourceErrors)
	}
	return &run, nil
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

// parseTime reads the text forms go-sqlite3 writes for time.Time values.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
