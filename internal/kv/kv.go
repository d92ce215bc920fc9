package kv

import (
	"errors"
	"strings"
	"time"

	"belld/pkg/logx"
)

var ErrClosed = errors.New("kv store closed")

// Store is the persistence API used by the schedule store.
//
// Values are small (a handful of integers plus one record per schedule), so
// all operations are synchronous. Flush establishes durability for backends
// that batch writes; backends with per-Put durability implement it as a no-op.
type Store interface {
	GetInt(key string) (v int, ok bool, err error)
	PutInt(key string, v int) error
	GetBytes(key string) (v []byte, ok bool, err error)
	PutBytes(key string, v []byte) error
	Delete(key string) error
	Flush() error
	Close() error
}

// Config configures the kv backend.
//
// Driver values:
//   - "file": dependency-free JSON snapshot backend
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured backend.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown kv driver: " + cfg.Driver)
	}
}
