package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const sqliteScheme = "sqlite://"

// SQLite is a Store backed by a single SQLite table. Generations come from a
// one-row counter table so they stay unique across deletes.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dsn.
func OpenSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite blob store: path is required")
	}
	if !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps the pragmas below in effect for every
	// statement and serializes writers inside the process.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blobs (
			path TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			generation INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blob_generation (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			next_val INTEGER NOT NULL DEFAULT 1
		)`,
		`INSERT OR IGNORE INTO blob_generation (id, next_val) VALUES (1, 1)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Put(ctx context.Context, path string, data []byte, opts PutOptions) (Object, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Object{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var gen int64
	err = tx.QueryRowContext(ctx,
		`UPDATE blob_generation SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&gen)
	if err != nil {
		return Object{}, fmt.Errorf("next generation: %w", err)
	}

	now := time.Now().UTC()
	var res sql.Result
	switch {
	case opts.IfGeneration == nil:
		res, err = tx.ExecContext(ctx,
			`INSERT INTO blobs (path, data, content_type, generation, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET data = excluded.data, content_type = excluded.content_type,
				generation = excluded.generation, updated_at = excluded.updated_at`,
			path, data, opts.ContentType, gen, now.UnixNano())
	case *opts.IfGeneration == 0:
		res, err = tx.ExecContext(ctx,
			`INSERT INTO blobs (path, data, content_type, generation, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO NOTHING`,
			path, data, opts.ContentType, gen, now.UnixNano())
	default:
		res, err = tx.ExecContext(ctx,
			`UPDATE blobs SET data = ?, content_type = ?, generation = ?, updated_at = ?
			WHERE path = ? AND generation = ?`,
			data, opts.ContentType, gen, now.UnixNano(), path, *opts.IfGeneration)
	}
	if err != nil {
		return Object{}, fmt.Errorf("write %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Object{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return Object{}, ErrPreconditionFailed
	}

	if err := tx.Commit(); err != nil {
		return Object{}, fmt.Errorf("commit: %w", err)
	}
	return Object{
		Path:       path,
		URL:        sqliteScheme + path,
		Exists:     true,
		Generation: gen,
		Size:       int64(len(data)),
		Updated:    time.Unix(0, now.UnixNano()).UTC(),
	}, nil
}

func (s *SQLite) Head(ctx context.Context, path string) (Object, error) {
	var (
		gen     int64
		size    int64
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT generation, length(data), updated_at FROM blobs WHERE path = ?`, path,
	).Scan(&gen, &size, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{Path: path}, nil
	}
	if err != nil {
		return Object{}, fmt.Errorf("head %s: %w", path, err)
	}
	return Object{
		Path:       path,
		URL:        sqliteScheme + path,
		Exists:     true,
		Generation: gen,
		Size:       size,
		Updated:    time.Unix(0, updated).UTC(),
	}, nil
}

func (s *SQLite) Get(ctx context.Context, url string) ([]byte, error) {
	path, ok := strings.CutPrefix(url, sqliteScheme)
	if !ok {
		return nil, ErrForeignURL
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return data, nil
}

func (s *SQLite) Delete(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, prefix string) ([]Object, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, generation, length(data), updated_at FROM blobs
		WHERE substr(path, 1, length(?)) = ? ORDER BY path`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []Object
	for rows.Next() {
		var (
			obj     Object
			updated int64
		)
		if err := rows.Scan(&obj.Path, &obj.Generation, &obj.Size, &updated); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		obj.URL = sqliteScheme + obj.Path
		obj.Exists = true
		obj.Updated = time.Unix(0, updated).UTC()
		out = append(out, obj)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
