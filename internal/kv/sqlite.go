package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"belld/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	// FULL sync: a completed Put must survive power loss, same contract as flash.
	_, _ = db.Exec("PRAGMA synchronous = FULL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetBytes(key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, ErrClosed
	}
	var v []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *sqliteStore) PutBytes(key string, v []byte) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.Exec(
		`INSERT INTO kv(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, v,
	)
	return err
}

func (s *sqliteStore) GetInt(key string) (int, bool, error) {
	b, ok, err := s.GetBytes(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, false, fmt.Errorf("kv %q: %w", key, err)
	}
	return n, true, nil
}

func (s *sqliteStore) PutInt(key string, v int) error {
	return s.PutBytes(key, []byte(strconv.Itoa(v)))
}

func (s *sqliteStore) Delete(key string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Flush is a no-op: every Put is already committed.
func (s *sqliteStore) Flush() error { return nil }
