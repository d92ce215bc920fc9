package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"belld/pkg/logx"
)

// fileStore is a dependency-free persistence backend: an in-memory map
// snapshotted to a single JSON file. Mutations stay in memory until Flush,
// which writes the whole map via temp-file + rename.
type fileStore struct {
	log logx.Logger

	mu     sync.Mutex
	path   string
	data   map[string][]byte
	dirty  bool
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("kv.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	data := map[string][]byte{}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(b, &data); err != nil {
			// A torn snapshot should be impossible (rename commit), but never
			// refuse to start over a bad file: begin empty and log it.
			log.Warn("kv snapshot unreadable, starting empty",
				logx.String("path", path), logx.Err(err))
			data = map[string][]byte{}
		}
	case os.IsNotExist(err):
		// first boot
	default:
		return nil, err
	}

	return &fileStore{log: log, path: path, data: data}, nil
}

func (s *fileStore) GetBytes(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (s *fileStore) PutBytes(key string, v []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	s.data[key] = cp
	s.dirty = true
	return nil
}

func (s *fileStore) GetInt(key string) (int, bool, error) {
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

func (s *fileStore) PutInt(key string, v int) error {
	return s.PutBytes(key, []byte(strconv.Itoa(v)))
}

func (s *fileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.dirty = true
	}
	return nil
}

func (s *fileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.dirty {
		return nil
	}
	if err := s.writeSnapshotLocked(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *fileStore) writeSnapshotLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	var err error
	if s.dirty {
		err = s.writeSnapshotLocked()
	}
	s.closed = true
	return err
}
