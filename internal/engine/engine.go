// Package engine matches wall-clock time against the schedule catalog and
// fires the bell at most once per calendar minute.
//
// The dedupe works by remembering the minute-of-hour that was last
// evaluated: the polling loop may run far faster than once per minute
// without double-firing, and a poll landing anywhere inside the target
// minute still triggers. If no poll lands inside the target minute at all
// (device busy), the trigger is skipped; there is no catch-up.
package engine

import (
	"fmt"

	"belld/internal/clock"
	"belld/internal/schedule"
	"belld/pkg/logx"
)

// Catalog is the store view the engine scans. Implemented by *store.Store.
type Catalog interface {
	Schedules() []schedule.Schedule
	ActiveMode() int
}

// Ringer starts a timed ring. Implemented by *bell.Bell.
type Ringer interface {
	Ring(seconds int) bool
}

const neverFired = -1

type Engine struct {
	oracle  clock.Oracle
	catalog Catalog
	ringer  Ringer
	log     logx.Logger

	lastMinute int
}

func New(oracle clock.Oracle, catalog Catalog, ringer Ringer, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		oracle:     oracle,
		catalog:    catalog,
		ringer:     ringer,
		log:        log,
		lastMinute: neverFired,
	}
}

// Tick evaluates the current minute, invoked once per loop turn. Returns
// the fired schedule, or nil.
func (e *Engine) Tick() *schedule.Schedule {
	r, err := e.oracle.Now()
	if err != nil {
		// No clock, no ringing. Never crash, never fire spuriously.
		return nil
	}

	if r.Minute == e.lastMinute {
		return nil
	}
	e.lastMinute = r.Minute

	active := e.catalog.ActiveMode()
	for _, s := range e.catalog.Schedules() {
		if !s.Matches(r.Hour, r.Minute, r.DayOfWeek, active) {
			continue
		}
		// First match wins; overlapping entries at the same minute do not
		// all fire.
		e.ringer.Ring(s.DurationSec)
		e.log.Info("schedule triggered",
			logx.Int("id", s.ID),
			logx.String("label", s.Label),
			logx.Int("mode", s.Mode),
			logx.String("at", fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)))
		fired := s
		return &fired
	}
	return nil
}
