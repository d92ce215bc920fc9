// Package store is the authoritative owner of the schedule catalog and the
// active mode, with write-through persistence: every mutation fully persists
// before it returns, so the in-memory catalog and the durable image never
// diverge after a completed operation.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"belld/internal/kv"
	"belld/internal/schedule"
	"belld/pkg/logx"
)

const (
	keyCount      = "count"
	keyActiveMode = "activeMode"
	keyRecordFmt  = "sch_%d" // dense, index-keyed; re-keyed on delete

	// DefaultCapacity bounds the live schedule count (~33 per mode).
	DefaultCapacity = 100
)

var (
	ErrCapacityExceeded = errors.New("schedule capacity exceeded")
	ErrNotFound         = errors.New("schedule not found")
	ErrInvalidMode      = errors.New("invalid mode")
)

// Store holds the live catalog. It is not internally synchronized: the
// control loop is its single caller (the HTTP layer reaches it only through
// loop commands).
type Store struct {
	kv  kv.Store
	log logx.Logger

	capacity   int
	schedules  []schedule.Schedule
	activeMode int

	// nextID is seeded at load from the live max and only ever moves
	// forward, so ids are never reused within a session even after the
	// highest entry is deleted.
	nextID int

	// persistedCount tracks how many sch_<i> keys exist in the kv layer,
	// so a shrink can delete the now-stale tail keys.
	persistedCount int
}

// Open loads the catalog and active mode from the kv store. Absence of prior
// data yields an empty catalog; short or unreadable records are kept as
// zero-valued entries rather than failing the boot.
func Open(kvs kv.Store, capacity int, log logx.Logger) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{kv: kvs, log: log, capacity: capacity, activeMode: schedule.DefaultMode}

	count, _, err := kvs.GetInt(keyCount)
	if err != nil {
		return nil, fmt.Errorf("load count: %w", err)
	}
	if count < 0 {
		count = 0
	}
	if count > capacity {
		log.Warn("stored count exceeds capacity, truncating",
			logx.Int("count", count), logx.Int("capacity", capacity))
		count = capacity
	}

	if mode, ok, err := kvs.GetInt(keyActiveMode); err != nil {
		return nil, fmt.Errorf("load active mode: %w", err)
	} else if ok && schedule.ValidMode(mode) {
		s.activeMode = mode
	}

	s.schedules = make([]schedule.Schedule, count)
	for i := 0; i < count; i++ {
		b, ok, err := kvs.GetBytes(fmt.Sprintf(keyRecordFmt, i))
		if err != nil {
			return nil, fmt.Errorf("load record %d: %w", i, err)
		}
		if !ok {
			log.Warn("schedule record missing, keeping zero entry", logx.Int("index", i))
			continue
		}
		if err := json.Unmarshal(b, &s.schedules[i]); err != nil {
			log.Warn("schedule record unreadable, keeping zero entry",
				logx.Int("index", i), logx.Err(err))
		}
	}
	s.persistedCount = count

	s.nextID = 1
	for _, e := range s.schedules {
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}

	log.Info("schedule catalog loaded",
		logx.Int("count", count),
		logx.Int("activeMode", s.activeMode),
		logx.String("modeName", schedule.ModeName(s.activeMode)))
	return s, nil
}

// List returns the live schedules in storage order. The slice is a copy.
func (s *Store) List() []schedule.Schedule {
	out := make([]schedule.Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out
}

func (s *Store) Count() int      { return len(s.schedules) }
func (s *Store) Capacity() int   { return s.capacity }
func (s *Store) ActiveMode() int { return s.activeMode }

// Schedules exposes the catalog to the trigger engine without copying.
// Callers must not retain or mutate the returned slice.
func (s *Store) Schedules() []schedule.Schedule { return s.schedules }

// Add assigns a fresh id, appends the entry and persists the catalog.
func (s *Store) Add(c schedule.Schedule) (int, error) {
	if len(s.schedules) >= s.capacity {
		return 0, fmt.Errorf("%w (%d)", ErrCapacityExceeded, s.capacity)
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return 0, err
	}
	c.ID = s.nextID
	s.schedules = append(s.schedules, c)
	if err := s.persist(); err != nil {
		// roll back the in-memory append so memory matches storage
		s.schedules = s.schedules[:len(s.schedules)-1]
		s.restore()
		return 0, err
	}
	s.nextID++
	s.log.Info("schedule added",
		logx.Int("id", c.ID), logx.String("label", c.Label),
		logx.Int("hour", c.Hour), logx.Int("minute", c.Minute),
		logx.Int("mode", c.Mode))
	return c.ID, nil
}

// Update overwrites all mutable fields of the entry with the given id.
// Partial updates are not supported.
func (s *Store) Update(id int, c schedule.Schedule) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}
	prev := s.schedules[i]
	c.ID = id
	s.schedules[i] = c
	if err := s.persist(); err != nil {
		s.schedules[i] = prev
		s.restore()
		return err
	}
	s.log.Info("schedule updated", logx.Int("id", id), logx.String("label", c.Label))
	return nil
}

// Delete removes the entry with the given id and compacts the catalog, so
// storage stays a dense array mirroring in-memory order.
func (s *Store) Delete(id int) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	removed := s.schedules[i]
	s.schedules = append(s.schedules[:i], s.schedules[i+1:]...)
	if err := s.persist(); err != nil {
		s.schedules = append(s.schedules[:i], append([]schedule.Schedule{removed}, s.schedules[i:]...)...)
		s.restore()
		return err
	}
	s.log.Info("schedule deleted", logx.Int("id", id), logx.String("label", removed.Label))
	return nil
}

// SetActiveMode switches the operating profile and persists it independently
// of the schedule list.
func (s *Store) SetActiveMode(mode int) error {
	if !schedule.ValidMode(mode) {
		return fmt.Errorf("%w: %d (must be 1, 2, or 3)", ErrInvalidMode, mode)
	}
	prev := s.activeMode
	s.activeMode = mode
	if err := s.kv.PutInt(keyActiveMode, mode); err != nil {
		s.activeMode = prev
		return err
	}
	if err := s.kv.Flush(); err != nil {
		s.activeMode = prev
		// rewrite the old mode so the unflushed value cannot reach a
		// later snapshot
		_ = s.kv.PutInt(keyActiveMode, prev)
		return err
	}
	s.log.Info("active mode changed",
		logx.Int("mode", mode), logx.String("modeName", schedule.ModeName(mode)))
	return nil
}

func (s *Store) indexOf(id int) int {
	for i, e := range s.schedules {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// persist writes count plus one self-describing record per index, deletes
// stale tail keys after a shrink, and flushes. persistedCount is kept in
// step with the keys actually written, so a retry after a failure cleans
// up whatever the failed attempt left in the kv layer.
func (s *Store) persist() error {
	n := len(s.schedules)
	if err := s.kv.PutInt(keyCount, n); err != nil {
		return err
	}
	for i, e := range s.schedules {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := s.kv.PutBytes(fmt.Sprintf(keyRecordFmt, i), b); err != nil {
			return err
		}
		if i >= s.persistedCount {
			s.persistedCount = i + 1
		}
	}
	for i := n; i < s.persistedCount; i++ {
		if err := s.kv.Delete(fmt.Sprintf(keyRecordFmt, i)); err != nil {
			return err
		}
	}
	s.persistedCount = n
	return s.kv.Flush()
}

// restore rewrites the rolled-back catalog into the kv layer after a failed
// persist. The file backend buffers writes until Flush, so without this a
// later successful flush (from Close or the next mutation) would commit
// state the caller was told failed.
func (s *Store) restore() {
	if err := s.persist(); err != nil {
		s.log.Warn("kv rewrite after failed persist also failed", logx.Err(err))
	}
}
