// Package repositories is the relational read model of the chat: spaces,
// users, public rooms, public messages and the handled transaction markers.
//
// Every operation is a point query run under one store-wide lock on a single
// SQLite connection. Records are small handles (an id and the store) whose
// accessors each read one column.
package repositories

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"ledger-chat/errors"
	"ledger-chat/repositories/migrations"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const busyTimeoutMs = 5000

type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the SQLite database at path and applies the
// embedded migrations.
func Open(path string, log *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Debug("Read model opened", "path", path)
	return &Store{db: db, log: log}, nil
}

// dsn sets the pragmas as connection parameters, so that the driver applies
// them to every connection it opens, not only the first one.
func dsn(path string) string {
	params := url.Values{}
	for _, pragma := range []string{
		"foreign_keys(1)",
		fmt.Sprintf("busy_timeout(%d)", busyTimeoutMs),
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
	} {
		params.Add("_pragma", pragma)
	}
	return path + "?" + params.Encode()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) exec(query string, args ...any) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(query, args...)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %v", errors.ErrAlreadyExists, err)
	}
	return res, err
}

func (s *Store) insert(query string, args ...any) (int64, error) {
	res, err := s.exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// queryRow scans one row; found is false when there is none.
func (s *Store) queryRow(query string, args []any, dest ...any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.QueryRow(query, args...).Scan(dest...)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// field reads a column that must exist, for record accessors.
func field[T any](s *Store, table, column string, id int64) (T, error) {
	var value T
	found, err := s.queryRow(
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", column, table),
		[]any{id}, &value)
	if err != nil {
		return value, fmt.Errorf("read %s.%s: %w", table, column, err)
	}
	if !found {
		return value, fmt.Errorf("%w: %s %d", errors.ErrNotFound, table, id)
	}
	return value, nil
}

func (s *Store) exists(table string, id int64) (bool, error) {
	var one int
	return s.queryRow(fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), []any{id}, &one)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if stderrors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
