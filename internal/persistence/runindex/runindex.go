// Package runindex keeps a SQLite index of finished optimization runs.
package runindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for unknown run ids
var ErrNotFound = errors.New("run not found in index")

// Record is one finished run
type Record struct {
	ID             string    `json:"id"`
	Mode           string    `json:"mode"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	Seed           int64     `json:"seed"`
	Iterations     int       `json:"iterations"`
	Cost           float64   `json:"cost"`
	Objects        int       `json:"objects"`
	Lights         int       `json:"lights"`
	Accepted       int       `json:"accepted"`
	Rejected       int       `json:"rejected"`
	HardRejections int       `json:"hard_rejections"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	ScenePath      string    `json:"scene_path,omitempty"`
	TracePath      string    `json:"trace_path,omitempty"`
}

// Index is the SQLite-backed store
type Index struct {
	db *sql.DB
}

// Open opens or creates the index at path. ":memory:" keeps it in memory.
func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			seed INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			cost REAL NOT NULL,
			objects INTEGER NOT NULL,
			lights INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			hard_rejections INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			scene_path TEXT NOT NULL DEFAULT '',
			trace_path TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS runs_finished_at ON runs(finished_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database
func (x *Index) Close() error {
	return x.db.Close()
}

// Record inserts or replaces a run
func (x *Index) Record(ctx context.Context, r Record) error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	_, err := x.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs (
		id, mode, status, reason, seed, iterations, cost, objects, lights,
		accepted, rejected, hard_rejections, started_at, finished_at, scene_path, trace_path
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.Status, r.Reason, r.Seed, r.Iterations, r.Cost, r.Objects, r.Lights,
		r.Accepted, r.Rejected, r.HardRejections,
		formatTime(r.StartedAt), formatTime(r.FinishedAt), r.ScenePath, r.TracePath)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, mode, status, reason, seed, iterations, cost, objects, lights,
	accepted, rejected, hard_rejections, started_at, finished_at, scene_path, trace_path FROM runs`

// Get returns one run
func (x *Index) Get(ctx context.Context, id string) (Record, error) {
	row := x.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// List returns runs newest first; limit <= 0 means all
func (x *Index) List(ctx context.Context, limit int) ([]Record, error) {
	q := selectColumns + ` ORDER BY finished_at DESC, id ASC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Record, error) {
	var r Record
	var started, finished string
	err := s.Scan(&r.ID, &r.Mode, &r.Status, &r.Reason, &r.Seed, &r.Iterations, &r.Cost,
		&r.Objects, &r.Lights, &r.Accepted, &r.Rejected, &r.HardRejections,
		&started, &finished, &r.ScenePath, &r.TracePath)
	if err != nil {
		return Record{}, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
