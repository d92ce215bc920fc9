package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"belld/pkg/logx"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "belld.yaml", `
listen: ":9090"
logging:
  level: debug
store:
  driver: file
  path: /tmp/bell.kv.json
  capacity: 20
bell:
  tick: 100ms
ring_now:
  rate_per_min: 3
`)
	m := NewManager(path, logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Fatalf("Listen = %q", cfg.Listen)
	}
	if cfg.Store.DriverOrDefault() != "file" || cfg.Store.CapacityOrDefault() != 20 {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Bell.TickOrDefault() != 100*time.Millisecond {
		t.Fatalf("tick = %v", cfg.Bell.TickOrDefault())
	}
	if cfg.RingNow.RateOrDefault() != 3 {
		t.Fatalf("rate = %d", cfg.RingNow.RateOrDefault())
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed snapshot")
	}
}

func TestLoadJSONStrict(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "belld.json", `{"listen": ":8080", "no_such_field": 1}`)
	if _, err := NewManager(path, logx.Nop()).Load(); err == nil {
		t.Fatal("unknown fields must be rejected")
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "belld.json", `{}`)
	cfg, err := NewManager(path, logx.Nop()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenOrDefault() != ":8080" {
		t.Fatalf("listen default = %q", cfg.ListenOrDefault())
	}
	if cfg.Store.DriverOrDefault() != "sqlite" {
		t.Fatalf("driver default = %q", cfg.Store.DriverOrDefault())
	}
	if cfg.Store.CapacityOrDefault() != 100 {
		t.Fatalf("capacity default = %d", cfg.Store.CapacityOrDefault())
	}
	if cfg.Bell.TickOrDefault() != 250*time.Millisecond {
		t.Fatalf("tick default = %v", cfg.Bell.TickOrDefault())
	}
	if !cfg.Logging.ConsoleOrDefault() {
		t.Fatal("console should default on")
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"bad driver", `{"store": {"driver": "redis"}}`},
		{"bad tick", `{"bell": {"tick": "2h"}}`},
		{"bad timezone", `{"clock": {"timezone": "Mars/Olympus"}}`},
		{"notify without token", `{"notify": {"enabled": true}}`},
		{"backup without path", `{"backup": {"enabled": true}}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, "belld.json", tt.body)
			if _, err := NewManager(path, logx.Nop()).Load(); err == nil {
				t.Fatalf("config %s accepted", tt.body)
			}
		})
	}
}
