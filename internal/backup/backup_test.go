package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"belld/internal/bell"
	"belld/internal/clock"
	"belld/internal/controller"
	"belld/internal/engine"
	"belld/internal/kv"
	"belld/internal/schedule"
	"belld/internal/store"
	"belld/pkg/logx"
)

func TestExportNow(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	kvs, err := kv.Open(kv.Config{Driver: "file", Path: filepath.Join(dir, "bell.kv.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	defer kvs.Close()
	st, err := store.Open(kvs, 10, logx.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	b := bell.New(bell.Outputs{}, logx.Nop())
	oracle := clock.NewFake(clock.Reading{Year: 2025, Month: 9, Day: 1, Hour: 10, DayOfWeek: 1})
	ctrl := controller.New(st, engine.New(oracle, st, b, logx.Nop()), b, oracle, 5*time.Millisecond, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = ctrl.Run(ctx); close(done) }()
	defer func() { cancel(); <-done }()

	if _, err := ctrl.AddSchedule(ctx, schedule.Schedule{
		Hour: 8, Minute: 0, DurationSec: 10, DayOfWeek: 1, Enabled: true, Mode: schedule.ModeRegular,
	}); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	if err := ctrl.SetActiveMode(ctx, schedule.ModeMids); err != nil {
		t.Fatalf("SetActiveMode: %v", err)
	}

	path := filepath.Join(dir, "export", "catalog.json")
	svc, err := New(Config{Spec: "0 3 * * *", Path: path}, ctrl, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := svc.ExportNow(ctx); err != nil {
		t.Fatalf("ExportNow: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var exp Export
	if err := json.Unmarshal(raw, &exp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if exp.ActiveMode != schedule.ModeMids || len(exp.Schedules) != 1 || exp.Schedules[0].Hour != 8 {
		t.Fatalf("export = %+v", exp)
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Spec: "not a cron spec", Path: "x"}, nil, logx.Nop()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}
