package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/kbs/pkg/kbs/internalerr"
	"github.com/cognicore/kbs/pkg/kbs/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	source TEXT,
	created_at TEXT NOT NULL,
	passes INTEGER NOT NULL DEFAULT 0,
	transitions INTEGER NOT NULL DEFAULT 0,
	nodes INTEGER NOT NULL DEFAULT 0,
	duration_ns INTEGER NOT NULL DEFAULT 0,
	assertions TEXT,
	conflict TEXT
);

CREATE TABLE IF NOT EXISTS run_symbols (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	solved INTEGER NOT NULL,
	value TEXT NOT NULL,
	relations TEXT,
	PRIMARY KEY(run_id, position),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_run_symbols_name ON run_symbols(name);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts or updates a run and replaces its symbols
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) error {
	if err := r.Validate(); err != nil {
		return err
	}
	assertions, err := json.Marshal(r.Assertions)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO runs (id, source, created_at, passes, transitions, nodes, duration_ns, assertions, conflict)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	source=excluded.source,
	created_at=excluded.created_at,
	passes=excluded.passes,
	transitions=excluded.transitions,
	nodes=excluded.nodes,
	duration_ns=excluded.duration_ns,
	assertions=excluded.assertions,
	conflict=excluded.conflict;
`
	_, err = tx.ExecContext(
		ctx,
		stmt,
		r.ID,
		r.Source,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.Passes,
		r.Transitions,
		r.Nodes,
		int64(r.Duration),
		string(assertions),
		r.Conflict,
	)
	if err != nil {
		return err
	}

	if err := replaceRunSymbols(ctx, tx, r.ID, r.Symbols); err != nil {
		return err
	}

	return tx.Commit()
}

func replaceRunSymbols(ctx context.Context, tx *sql.Tx, runID string, syms []store.SymbolValue) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_symbols WHERE run_id=?`, runID); err != nil {
		return err
	}
	if len(syms) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_symbols (run_id, position, name, solved, value, relations) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, sv := range syms {
		rels, err := json.Marshal(sv.Relations)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, i, sv.Name, boolToInt(sv.Solved), sv.Value, string(rels)); err != nil {
			return err
		}
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, source, created_at, passes, transitions, nodes, duration_ns, assertions, conflict
FROM runs WHERE id = ?`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Run{}, err
	}

	if r.Symbols, err = s.loadSymbols(ctx, id); err != nil {
		return store.Run{}, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first. ULIDs sort by time, so the
// primary key orders them.
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, source, created_at, passes, transitions, nodes, duration_ns, assertions, conflict
FROM runs
ORDER BY id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}

	var runs []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range runs {
		if runs[i].Symbols, err = s.loadSymbols(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (store.Run, error) {
	var (
		r          store.Run
		source     sql.NullString
		createdAt  string
		durationNS int64
		assertions sql.NullString
		conflict   sql.NullString
	)
	err := sc.Scan(&r.ID, &source, &createdAt, &r.Passes, &r.Transitions, &r.Nodes, &durationNS, &assertions, &conflict)
	if err != nil {
		return store.Run{}, err
	}

	r.Source = source.String
	r.Conflict = conflict.String
	r.Duration = time.Duration(durationNS)
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return store.Run{}, fmt.Errorf("run %s: created_at: %w", r.ID, err)
	}
	if assertions.Valid && assertions.String != "" {
		if err := json.Unmarshal([]byte(assertions.String), &r.Assertions); err != nil {
			return store.Run{}, fmt.Errorf("run %s: assertions: %w", r.ID, err)
		}
	}
	return r, nil
}

func (s *sqliteStore) loadSymbols(ctx context.Context, runID string) ([]store.SymbolValue, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, solved, value, relations
FROM run_symbols
WHERE run_id = ?
ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SymbolValue
	for rows.Next() {
		var (
			sv     store.SymbolValue
			solved int
			rels   sql.NullString
		)
		if err := rows.Scan(&sv.Name, &solved, &sv.Value, &rels); err != nil {
			return nil, err
		}
		sv.Solved = solved != 0
		if rels.Valid && rels.String != "" {
			if err := json.Unmarshal([]byte(rels.String), &sv.Relations); err != nil {
				return nil, fmt.Errorf("run %s: symbol %s: %w", runID, sv.Name, err)
			}
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
