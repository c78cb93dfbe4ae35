// Package history keeps an optional record of health-check runs in SQLite.
//
// Nothing is written unless a caller asks for it: health results are
// computed fresh on every run and the engine itself never persists them.
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

	"github.com/HendryAvila/dotbot/internal/health"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level var for test injection.
var timeNow = time.Now

// newID is a package-level var for test injection.
var newID = func() string { return uuid.NewString() }

// DBFile is the database filename inside the data directory.
const DBFile = "history.db"

// tsLayout is fixed-width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 20

// Run is one recorded health-check run.
type Run struct {
	ID         string         `json:"id"`
	RepoRoot   string         `json:"repoRoot"`
	Level      health.Level   `json:"level"`
	Status     issues.Status  `json:"status"`
	Errors     int            `json:"errors"`
	Warnings   int            `json:"warnings"`
	DurationMs int64          `json:"durationMs"`
	Codes      map[string]int `json:"codes"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Recorder is the persistence contract the tools depend on (DIP).
type Recorder interface {
	Record(ctx context.Context, res *health.Result, took time.Duration) (*Run, error)
	List(ctx context.Context, repoRoot string, limit int) ([]Run, error)
	Close() error
}

// Store is the SQLite-backed Recorder.
type Store struct {
	db *sql.DB
}

var _ Recorder = (*Store)(nil)

// Open creates dataDir if needed and opens the run database inside it.
func Open(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("history: data dir is empty")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dataDir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			repo_root   TEXT NOT NULL,
			level       TEXT NOT NULL,
			status      TEXT NOT NULL,
			errors      INTEGER NOT NULL DEFAULT 0,
			warnings    INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			codes       TEXT NOT NULL DEFAULT '{}',
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_repo_created ON runs(repo_root, created_at DESC);
	`)
	return err
}

// Record stores a summary of res and returns it.
func (s *Store) Record(ctx context.Context, res *health.Result, took time.Duration) (*Run, error) {
	if res == nil {
		return nil, errors.New("history: nil result")
	}
	errs, warns := res.Counts()
	run := &Run{
		ID:         newID(),
		RepoRoot:   res.RepoRoot,
		Level:      res.Level,
		Status:     res.Status,
		Errors:     errs,
		Warnings:   warns,
		DurationMs: took.Milliseconds(),
		Codes:      codeCounts(res.Issues),
		CreatedAt:  timeNow().UTC(),
	}

	codes, err := json.Marshal(run.Codes)
	if err != nil {
		return nil, fmt.Errorf("history: encode codes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, repo_root, level, status, errors, warnings, duration_ms, codes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.RepoRoot, string(run.Level), string(run.Status),
		run.Errors, run.Warnings, run.DurationMs, string(codes),
		run.CreatedAt.Format(tsLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("history: insert run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs for repoRoot, newest first. An empty
// repoRoot lists runs for every repository.
func (s *Store) List(ctx context.Context, repoRoot string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `SELECT id, repo_root, level, status, errors, warnings, duration_ms, codes, created_at FROM runs`
	args := []any{}
	if repoRoot != "" {
		query += ` WHERE repo_root = ?`
		args = append(args, repoRoot)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r                        Run
			level, status, codes, at string
		)
		if err := rows.Scan(&r.ID, &r.RepoRoot, &level, &status, &r.Errors, &r.Warnings, &r.DurationMs, &codes, &at); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.Level = health.Level(level)
		r.Status = issues.Status(status)
		if err := json.Unmarshal([]byte(codes), &r.Codes); err != nil {
			return nil, fmt.Errorf("history: decode codes for %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(tsLayout, at); err != nil {
			return nil, fmt.Errorf("history: parse timestamp for %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func codeCounts(list []issues.Issue) map[string]int {
	out := map[string]int{}
	for _, is := range list {
		out[string(is.Code)]++
	}
	return out
}
