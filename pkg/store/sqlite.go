package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout has fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps runs in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies
// migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			title TEXT NOT NULL,
			options TEXT NOT NULL,
			rows TEXT NOT NULL,
			svg BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, run *Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	opts, err := json.Marshal(run.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	rows, err := json.Marshal(run.Rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, created_at, title, options, rows, svg) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(timeLayout),
		run.Title,
		string(opts),
		string(rows),
		run.SVG,
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, title, options, rows, svg FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	return run, err
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rs, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, title, options, rows, NULL FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []Summary
	for rs.Next() {
		run, err := scanRun(rs.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, Summarize(run))
	}
	return out, rs.Err()
}

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var (
		run       Run
		createdAt string
		opts      string
		rows      string
	)
	if err := scan(&run.ID, &createdAt, &run.Title, &opts, &rows, &run.SVG); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("run %s: created_at: %w", run.ID, err)
	}
	run.CreatedAt = t
	if err := json.Unmarshal([]byte(opts), &run.Options); err != nil {
		return nil, fmt.Errorf("run %s: options: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(rows), &run.Rows); err != nil {
		return nil, fmt.Errorf("run %s: rows: %w", run.ID, err)
	}
	return &run, nil
}

var _ Store = (*SQLiteStore)(nil)
