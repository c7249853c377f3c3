package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed event log.
type Store struct {
	db  *sql.DB
	seq *sequenceCounter
}

// Open opens or creates the event database at dsn and brings its schema
// up to date.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, seq: &sequenceCounter{db: db}}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations run in order; PRAGMA user_version records how many have been
// applied. Append only.
var migrations = []func(*sql.DB) error{
	func(db *sql.DB) error {
		return execAll(db,
			`CREATE TABLE IF NOT EXISTS llm_request_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				sequence INTEGER NOT NULL UNIQUE,
				timestamp INTEGER NOT NULL,
				provider TEXT NOT NULL,
				model TEXT NOT NULL,
				purpose TEXT NOT NULL,
				input_tokens INTEGER NOT NULL DEFAULT 0,
				output_tokens INTEGER NOT NULL DEFAULT 0,
				latency_ms INTEGER NOT NULL DEFAULT 0,
				success INTEGER NOT NULL,
				error_message TEXT NOT NULL DEFAULT '',
				request_body TEXT NOT NULL DEFAULT '',
				response_body TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS llm_request_events_purpose ON llm_request_events (purpose)`,
			`CREATE TABLE IF NOT EXISTS global_sequence (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				next_val INTEGER NOT NULL DEFAULT 1
			)`,
			`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`,
		)
	},
	func(db *sql.DB) error {
		if err := addColumnIfMissing(db, "llm_request_events", "owner", "TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
		return execAll(db, `CREATE INDEX IF NOT EXISTS llm_request_events_owner ON llm_request_events (owner)`)
	},
}

func migrate(db *sql.DB) error {
	var applied int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&applied); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for v := applied; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("schema version %d: %w", v+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			return fmt.Errorf("record schema version %d: %w", v+1, err)
		}
	}
	return nil
}

func execAll(db *sql.DB, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// addColumnIfMissing tolerates databases where the column was added by
// hand or by a build that predates user_version tracking.
func addColumnIfMissing(db *sql.DB, table, column, decl string) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("add %s.%s: %w", table, column, err)
	}
	return nil
}

// sequenceCounter hands out the monotonic sequence stamped on each event.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// DefaultDBPath resolves the event database path in priority order:
// 1. CONJUGAR_EVENTS_DB environment variable
// 2. $XDG_DATA_HOME/conjugar/events.db
// 3. ~/.local/share/conjugar/events.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("CONJUGAR_EVENTS_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "conjugar", "events.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
