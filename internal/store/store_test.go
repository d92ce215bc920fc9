package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"belld/internal/kv"
	"belld/internal/schedule"
	"belld/pkg/logx"
)

func openKV(t *testing.T) kv.Store {
	t.Helper()
	kvs, err := kv.Open(kv.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "bell.kv.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { _ = kvs.Close() })
	return kvs
}

func entry(hour, minute int) schedule.Schedule {
	return schedule.Schedule{
		Hour: hour, Minute: minute, DurationSec: 10, DayOfWeek: 1,
		Label: "Period", Enabled: true, Mode: schedule.ModeRegular,
	}
}

func TestAddAssignsIncreasingIDs(t *testing.T) {
	t.Parallel()
	s, err := Open(openKV(t), 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var last int
	for i := 0; i < 5; i++ {
		id, err := s.Add(entry(8, i))
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if id <= last {
			t.Fatalf("id %d not strictly increasing after %d", id, last)
		}
		last = id
	}
}

func TestIDsNotReusedAfterDelete(t *testing.T) {
	t.Parallel()
	s, err := Open(openKV(t), 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, _ = s.Add(entry(8, 0))
	id2, _ := s.Add(entry(9, 0))
	if err := s.Delete(id2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	id3, err := s.Add(entry(10, 0))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Deleting the highest entry must not hand its id to the next add.
	if id3 <= id2 {
		t.Fatalf("id %d reused after delete of %d", id3, id2)
	}
	for _, e := range s.List() {
		if e.ID == id2 {
			t.Fatalf("deleted id %d still listed", id2)
		}
	}
}

func TestDeletePreservesOtherEntries(t *testing.T) {
	t.Parallel()
	s, err := Open(openKV(t), 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	a, _ := s.Add(entry(8, 0))
	b, _ := s.Add(entry(9, 15))
	c, _ := s.Add(entry(10, 30))

	if err := s.Delete(b); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got := s.List()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != a || got[1].ID != c {
		t.Fatalf("order after delete = [%d %d], want [%d %d]", got[0].ID, got[1].ID, a, c)
	}
	if got[0].Hour != 8 || got[1].Hour != 10 || got[1].Minute != 30 {
		t.Fatal("surviving entries mutated by delete")
	}
}

func TestDeleteUnknownID(t *testing.T) {
	t.Parallel()
	s, err := Open(openKV(t), 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Delete(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAddBeyondCapacity(t *testing.T) {
	t.Parallel()
	s, err := Open(openKV(t), 2, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Add(entry(8, 0)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(entry(9, 0)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(entry(10, 0)); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if s.Count() != 2 {
		t.Fatalf("catalog mutated by rejected add: count = %d", s.Count())
	}
}

func TestUpdateOverwritesAllFields(t *testing.T) {
	t.Parallel()
	s, err := Open(openKV(t), 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, _ := s.Add(entry(8, 0))

	upd := schedule.Schedule{
		Hour: 14, Minute: 45, DurationSec: 20, DayOfWeek: 5,
		Label: "Last period", Enabled: false, Mode: schedule.ModeSemester,
	}
	if err := s.Update(id, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got := s.List()[0]
	if got.ID != id {
		t.Fatalf("update changed id: %d", got.ID)
	}
	if got.Hour != 14 || got.Minute != 45 || got.DurationSec != 20 ||
		got.DayOfWeek != 5 || got.Label != "Last period" || got.Enabled || got.Mode != schedule.ModeSemester {
		t.Fatalf("fields not overwritten: %+v", got)
	}

	if err := s.Update(999, upd); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateRejectsInvalidFields(t *testing.T) {
	t.Parallel()
	s, err := Open(openKV(t), 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, _ := s.Add(entry(8, 0))

	bad := entry(25, 0)
	if err := s.Update(id, bad); !errors.Is(err, schedule.ErrInvalid) {
		t.Fatalf("err = %v, want schedule.ErrInvalid", err)
	}
	if got := s.List()[0]; got.Hour != 8 {
		t.Fatal("rejected update mutated the entry")
	}
}

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()
	kvs := openKV(t)

	s, err := Open(kvs, 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := []schedule.Schedule{entry(7, 55), entry(12, 0), entry(15, 30)}
	want[1].Mode = schedule.ModeMids
	want[2].Enabled = false
	want[2].Label = "Dismissal"
	for i := range want {
		id, err := s.Add(want[i])
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		want[i].ID = id
	}
	if err := s.SetActiveMode(schedule.ModeMids); err != nil {
		t.Fatalf("SetActiveMode: %v", err)
	}

	// Reload from the same kv store into a fresh catalog.
	s2, err := Open(kvs, 10, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if s2.ActiveMode() != schedule.ModeMids {
		t.Fatalf("ActiveMode = %d, want %d", s2.ActiveMode(), schedule.ModeMids)
	}
	got := s2.List()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPersistRoundTripMultibyteLabel(t *testing.T) {
	t.Parallel()
	kvs := openKV(t)

	s, err := Open(kvs, 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	// A rune straddling the label byte limit must be dropped whole, so the
	// stored bytes survive the JSON round trip unchanged.
	e := entry(8, 0)
	e.Label = strings.Repeat("x", 48) + "日"
	if _, err := s.Add(e); err != nil {
		t.Fatalf("Add: %v", err)
	}
	inMem := s.List()[0].Label
	if want := strings.Repeat("x", 48); inMem != want {
		t.Fatalf("in-memory label = %q, want %q", inMem, want)
	}

	s2, err := Open(kvs, 10, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	reloaded := s2.List()[0].Label
	if reloaded != inMem {
		t.Fatalf("reloaded label = %q (%d bytes), in-memory %q (%d bytes)",
			reloaded, len(reloaded), inMem, len(inMem))
	}
}

// flakyKV passes through to the real backend but fails Flush on demand,
// modelling a full or failing disk under the file driver.
type flakyKV struct {
	kv.Store
	failFlush bool
}

func (f *flakyKV) Flush() error {
	if f.failFlush {
		return errors.New("disk full")
	}
	return f.Store.Flush()
}

func TestFailedPersistDoesNotLeakToSnapshot(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bell.kv.json")
	kvs, err := kv.Open(kv.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	flaky := &flakyKV{Store: kvs}

	s, err := Open(flaky, 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	keep := entry(8, 0)
	keepID, err := s.Add(keep)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	flaky.failFlush = true
	if _, err := s.Add(entry(9, 0)); err == nil {
		t.Fatal("expected Add to fail when flush fails")
	}
	if err := s.SetActiveMode(schedule.ModeMids); err == nil {
		t.Fatal("expected SetActiveMode to fail when flush fails")
	}
	flaky.failFlush = false

	// Close snapshots whatever the kv layer holds; none of the rolled-back
	// writes may surface in it.
	if err := kvs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	kvs2, err := kv.Open(kv.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen kv: %v", err)
	}
	defer kvs2.Close()
	s2, err := Open(kvs2, 10, logx.Nop())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if got := s2.List(); len(got) != 1 || got[0].ID != keepID {
		t.Fatalf("reloaded catalog = %+v, want only id %d", got, keepID)
	}
	if s2.ActiveMode() != schedule.DefaultMode {
		t.Fatalf("ActiveMode = %d, want %d", s2.ActiveMode(), schedule.DefaultMode)
	}
}

func TestSetActiveModeValidation(t *testing.T) {
	t.Parallel()
	s, err := Open(openKV(t), 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetActiveMode(0); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("SetActiveMode(0) err = %v, want ErrInvalidMode", err)
	}
	if err := s.SetActiveMode(4); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("SetActiveMode(4) err = %v, want ErrInvalidMode", err)
	}
	if err := s.SetActiveMode(2); err != nil {
		t.Fatalf("SetActiveMode(2): %v", err)
	}
	if s.ActiveMode() != 2 {
		t.Fatalf("ActiveMode = %d, want 2", s.ActiveMode())
	}
}

func TestEmptyStoreDefaults(t *testing.T) {
	t.Parallel()
	s, err := Open(openKV(t), 10, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Count() != 0 {
		t.Fatalf("Count = %d, want 0", s.Count())
	}
	if s.ActiveMode() != schedule.ModeRegular {
		t.Fatalf("ActiveMode = %d, want default Regular", s.ActiveMode())
	}
}
