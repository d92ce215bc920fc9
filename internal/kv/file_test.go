package kv

import (
	"os"
	"path/filepath"
	"testing"

	"belld/pkg/logx"
)

func openTestFile(t *testing.T, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bell.kv.json")

	st := openTestFile(t, path)
	if err := st.PutInt("count", 3); err != nil {
		t.Fatalf("PutInt: %v", err)
	}
	if err := st.PutBytes("sch_0", []byte(`{"id":1}`)); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if err := st.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st = openTestFile(t, path)
	defer st.Close()

	n, ok, err := st.GetInt("count")
	if err != nil || !ok || n != 3 {
		t.Fatalf("GetInt = (%d, %v, %v), want (3, true, nil)", n, ok, err)
	}
	b, ok, err := st.GetBytes("sch_0")
	if err != nil || !ok || string(b) != `{"id":1}` {
		t.Fatalf("GetBytes = (%q, %v, %v)", b, ok, err)
	}
	if _, ok, _ := st.GetBytes("missing"); ok {
		t.Fatal("unexpected hit for missing key")
	}
}

func TestFileDeleteAndUnflushedWritesSurviveClose(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bell.kv.json")

	st := openTestFile(t, path)
	if err := st.PutInt("activeMode", 2); err != nil {
		t.Fatalf("PutInt: %v", err)
	}
	if err := st.PutBytes("sch_0", []byte("x")); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if err := st.Delete("sch_0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// No explicit Flush: Close must still snapshot pending writes.
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st = openTestFile(t, path)
	defer st.Close()
	if _, ok, _ := st.GetBytes("sch_0"); ok {
		t.Fatal("deleted key resurfaced after reload")
	}
	n, ok, err := st.GetInt("activeMode")
	if err != nil || !ok || n != 2 {
		t.Fatalf("GetInt = (%d, %v, %v), want (2, true, nil)", n, ok, err)
	}
}

func TestFileCorruptSnapshotStartsEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bell.kv.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	st := openTestFile(t, path)
	defer st.Close()
	if _, ok, err := st.GetInt("count"); ok || err != nil {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
