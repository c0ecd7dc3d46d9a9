package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/jupierce/source-coverage/pkg/files"

	_ "modernc.org/sqlite"
)

// DefaultFile is the data file name used when none is given.
const DefaultFile = ".srccov.db"

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

const schemaVersion = 1

func createSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS files (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS contexts (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS line_facts (
			file_id    INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
			context_id INTEGER NOT NULL REFERENCES contexts(id) ON DELETE CASCADE,
			line       INTEGER NOT NULL,
			PRIMARY KEY (file_id, context_id, line)
		);

		CREATE TABLE IF NOT EXISTS arc_facts (
			file_id    INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
			context_id INTEGER NOT NULL REFERENCES contexts(id) ON DELETE CASCADE,
			from_line  INTEGER NOT NULL,
			to_line    INTEGER NOT NULL,
			PRIMARY KEY (file_id, context_id, from_line, to_line)
		);

		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			context     TEXT NOT NULL DEFAULT '',
			source      TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		return err
	}

	return checkSchemaVersion(ctx, db)
}

// checkSchemaVersion refuses data files written by a newer srccov.
func checkSchemaVersion(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("data file schema version %d is newer than supported version %d", version, schemaVersion)
	}
	return nil
}

func openDB(path string, readOnly bool) (*sql.DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	if readOnly {
		dsn = path + "?mode=ro&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

// Save writes the whole store to the SQLite data file at path, replacing
// any facts already stored there.
func (s *Store) Save(ctx context.Context, path string) error {
	snap := s.Snapshot()

	db, err := openDB(path, false)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := createSchema(ctx, db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := snap.writeTx(ctx, tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}

func (s *Store) writeTx(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"line_facts", "arc_facts", "files", "contexts", "runs", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES ('mode', ?)", s.mode.String()); err != nil {
		return err
	}

	fileIDs := make(map[files.FileKey]int64)
	for _, file := range s.MeasuredFiles() {
		res, err := tx.ExecContext(ctx, "INSERT INTO files (path) VALUES (?)", string(file))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		fileIDs[file] = id
	}

	for contextName, byFile := range s.byContext {
		res, err := tx.ExecContext(ctx, "INSERT INTO contexts (name) VALUES (?)", contextName)
		if err != nil {
			return err
		}
		contextID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for file, f := range byFile {
			fileID := fileIDs[file]
			for line := range f.lines {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO line_facts (file_id, context_id, line) VALUES (?, ?, ?)",
					fileID, contextID, line); err != nil {
					return err
				}
			}
			for a := range f.arcs {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO arc_facts (file_id, context_id, from_line, to_line) VALUES (?, ?, ?, ?)",
					fileID, contextID, a.From, a.To); err != nil {
					return err
				}
			}
		}
	}

	for _, r := range s.runs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO runs (id, context, source, recorded_at) VALUES (?, ?, ?, ?)",
			r.ID, r.Context, r.Source, r.RecordedAt.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// Load reads a data file written by Save.
func Load(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("data file not found at %s: %w", path, err)
	}

	db, err := openDB(path, true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := checkSchemaVersion(ctx, db); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var modeName string
	if err := db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'mode'").Scan(&modeName); err != nil {
		return nil, fmt.Errorf("read mode from %s: %w", path, err)
	}
	mode, err := ParseMode(modeName)
	if err != nil {
		return nil, err
	}
	s := NewStore(mode)

	rows, err := db.QueryContext(ctx, "SELECT path FROM files")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		s.touched[files.FileKey(p)] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadLines(ctx, db); err != nil {
		return nil, fmt.Errorf("load line facts: %w", err)
	}
	if err := s.loadArcs(ctx, db); err != nil {
		return nil, fmt.Errorf("load arc facts: %w", err)
	}
	if err := s.loadRuns(ctx, db); err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	return s, nil
}

func (s *Store) loadLines(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT f.path, c.name, l.line
		FROM line_facts l
		JOIN files f ON f.id = l.file_id
		JOIN contexts c ON c.id = l.context_id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var path, contextName string
		var line int
		if err := rows.Scan(&path, &contextName, &line); err != nil {
			return err
		}
		s.factsFor(contextName, files.FileKey(path)).lines[line] = struct{}{}
	}
	return rows.Err()
}

func (s *Store) loadArcs(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT f.path, c.name, a.from_line, a.to_line
		FROM arc_facts a
		JOIN files f ON f.id = a.file_id
		JOIN contexts c ON c.id = a.context_id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var path, contextName string
		var a Arc
		if err := rows.Scan(&path, &contextName, &a.From, &a.To); err != nil {
			return err
		}
		s.factsFor(contextName, files.FileKey(path)).arcs[a] = struct{}{}
	}
	return rows.Err()
}

func (s *Store) loadRuns(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "SELECT id, context, source, recorded_at FROM runs")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r Run
		var recordedAt string
		if err := rows.Scan(&r.ID, &r.Context, &r.Source, &recordedAt); err != nil {
			return err
		}
		r.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		s.runs = append(s.runs, r)
	}
	return rows.Err()
}

// Erase removes the data file at path. A missing file is not an error.
func Erase(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("erase %s: %w", p, err)
		}
	}
	return nil
}
