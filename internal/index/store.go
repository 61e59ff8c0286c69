package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/sucicfilip/ruby-lsp-rails/internal/core/errors"
	"github.com/sucicfilip/ruby-lsp-rails/internal/definition"
)

const sqliteDriverName = "sqlite"

// Store is the SQLite-backed method index. Lookup results are cached
// until the next write.
type Store struct {
	db         *sql.DB
	lookupStmt *sql.Stmt

	cacheMu     sync.RWMutex
	lookupCache map[string][]definition.MethodEntry
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("method index path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("method index path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create method index directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open method index %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping method index %q: %w", cleanPath, err)
	}

	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	lookupStmt, err := db.Prepare(`SELECT
  method_name,
  owner,
  uri,
  start_line, start_col, end_line, end_col,
  name_start_line, name_start_col, name_end_line, name_end_col
FROM methods
WHERE method_name = ? AND owner = ?
ORDER BY uri, start_line`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare lookup stmt: %w", err)
	}

	return &Store{
		db:          db,
		lookupStmt:  lookupStmt,
		lookupCache: make(map[string][]definition.MethodEntry),
	}, nil
}

func migrateSchema(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)

	if version == 0 {
		_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS methods (
  method_name     TEXT NOT NULL,
  owner           TEXT NOT NULL DEFAULT '',
  singleton       INTEGER NOT NULL DEFAULT 0,
  uri             TEXT NOT NULL,
  file_path       TEXT NOT NULL,
  start_line      INTEGER NOT NULL DEFAULT 0,
  start_col       INTEGER NOT NULL DEFAULT 0,
  end_line        INTEGER NOT NULL DEFAULT 0,
  end_col         INTEGER NOT NULL DEFAULT 0,
  name_start_line INTEGER NOT NULL DEFAULT 0,
  name_start_col  INTEGER NOT NULL DEFAULT 0,
  name_end_line   INTEGER NOT NULL DEFAULT 0,
  name_end_col    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_methods_lookup ON methods(method_name, owner);
CREATE INDEX IF NOT EXISTS idx_methods_path ON methods(file_path);
PRAGMA user_version = 1;
`)
		if err != nil {
			return fmt.Errorf("migrate method index schema: %w", err)
		}
	}
	return nil
}

// ResolveMethod implements definition.MethodIndex. The scope narrows
// the lookup to methods owned by the enclosing nesting; an empty scope
// matches top-level definitions.
func (s *Store) ResolveMethod(ctx context.Context, name, scope string) ([]definition.MethodEntry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	cacheKey := scope + "\x00" + name
	s.cacheMu.RLock()
	if cached, ok := s.lookupCache[cacheKey]; ok {
		s.cacheMu.RUnlock()
		return cached, nil
	}
	s.cacheMu.RUnlock()

	rows, err := s.lookupStmt.QueryContext(ctx, name, scope)
	if err != nil {
		lookupErr := errors.Wrap(err, errors.CodeInternal, "method lookup failed")
		lookupErr = errors.AddContext(lookupErr, errors.CtxMethod, name)
		return nil, errors.AddContext(lookupErr, errors.CtxScope, scope)
	}
	defer rows.Close()

	var entries []definition.MethodEntry
	for rows.Next() {
		var entry definition.MethodEntry
		if err := rows.Scan(
			&entry.Name,
			&entry.Owner,
			&entry.URI,
			&entry.Range.StartLine, &entry.Range.StartColumn, &entry.Range.EndLine, &entry.Range.EndColumn,
			&entry.NameRange.StartLine, &entry.NameRange.StartColumn, &entry.NameRange.EndLine, &entry.NameRange.EndColumn,
		); err != nil {
			return nil, fmt.Errorf("scan method row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.lookupCache[cacheKey] = entries
	s.cacheMu.Unlock()

	return entries, nil
}

// UpsertFile replaces the indexed methods of one file.
func (s *Store) UpsertFile(path, uri string, methods []Method) error {
	if s == nil || s.db == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin index upsert tx: %w", err)
	}
	if err := upsertFileRows(tx, path, uri, methods); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index upsert tx: %w", err)
	}
	s.clearCache()
	return nil
}

// DeleteFile removes all methods indexed for one file.
func (s *Store) DeleteFile(path string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.Exec(`DELETE FROM methods WHERE file_path = ?`, path); err != nil {
		deleteErr := errors.Wrap(err, errors.CodeInternal, "method index delete failed")
		deleteErr = errors.AddContext(deleteErr, errors.CtxOperation, "delete_file")
		return errors.AddContext(deleteErr, errors.CtxPath, path)
	}
	s.clearCache()
	return nil
}

// FileCount returns the number of distinct files currently indexed.
func (s *Store) FileCount() (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT file_path) FROM methods`).Scan(&count)
	return count, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.lookupStmt != nil {
		_ = s.lookupStmt.Close()
	}
	return s.db.Close()
}

func (s *Store) clearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.lookupCache = make(map[string][]definition.MethodEntry)
}

func upsertFileRows(tx *sql.Tx, path, uri string, methods []Method) error {
	if _, err := tx.Exec(`DELETE FROM methods WHERE file_path = ?`, path); err != nil {
		return fmt.Errorf("delete stale method rows for %q: %w", path, err)
	}
	for _, m := range methods {
		singleton := 0
		if m.Singleton {
			singleton = 1
		}
		_, err := tx.Exec(`INSERT INTO methods (
  method_name, owner, singleton, uri, file_path,
  start_line, start_col, end_line, end_col,
  name_start_line, name_start_col, name_end_line, name_end_col
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Name, m.Owner, singleton, uri, path,
			m.Range.StartLine, m.Range.StartColumn, m.Range.EndLine, m.Range.EndColumn,
			m.NameRange.StartLine, m.NameRange.StartColumn, m.NameRange.EndLine, m.NameRange.EndColumn,
		)
		if err != nil {
			return fmt.Errorf("insert method row %q: %w", m.Name, err)
		}
	}
	return nil
}
