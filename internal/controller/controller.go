// Package controller runs the single cooperative loop that owns the
// schedule store, the trigger engine and the bell actuator.
//
// All external operations are funneled through the loop as synchronous
// commands, so there is exactly one thread of control mutating state. Each
// loop turn handles pending requests first, then evaluates the trigger
// engine, then checks ring expiry; a request that disables a schedule is
// therefore seen by the same turn's trigger evaluation.
package controller

import (
	"context"
	"errors"
	"time"

	"belld/internal/bell"
	"belld/internal/clock"
	"belld/internal/engine"
	"belld/internal/schedule"
	"belld/internal/store"
	"belld/pkg/logx"
)

var ErrStopped = errors.New("controller stopped")

// FireSource distinguishes why the bell rang.
type FireSource string

const (
	FireSchedule FireSource = "schedule"
	FireManual   FireSource = "manual"
)

// FireFunc observes bell fires (for notifications). Called from the loop
// goroutine; implementations must not block.
type FireFunc func(source FireSource, label string, seconds int)

type request struct {
	fn   func()
	done chan struct{}
}

type Controller struct {
	store  *store.Store
	engine *engine.Engine
	bell   *bell.Bell
	oracle clock.Oracle
	log    logx.Logger

	tick   time.Duration
	onFire FireFunc

	reqCh      chan request
	loopExited chan struct{}
}

func New(st *store.Store, eng *engine.Engine, b *bell.Bell, oracle clock.Oracle, tick time.Duration, log logx.Logger) *Controller {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{
		store:      st,
		engine:     eng,
		bell:       b,
		oracle:     oracle,
		log:        log,
		tick:       tick,
		reqCh:      make(chan request, 16),
		loopExited: make(chan struct{}),
	}
}

// SetFireFunc installs the fire observer. Call before Run.
func (c *Controller) SetFireFunc(fn FireFunc) { c.onFire = fn }

// Run owns the loop until ctx is done. Pending requests are completed
// before returning.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.loopExited)

	t := time.NewTicker(c.tick)
	defer t.Stop()

	c.log.Info("control loop started", logx.Duration("tick", c.tick))
	for {
		select {
		case <-ctx.Done():
			c.drainPending()
			c.log.Info("control loop stopped")
			return nil
		case r := <-c.reqCh:
			r.fn()
			close(r.done)
		case <-t.C:
			// Ordering per turn: requests, then trigger, then expiry.
			c.drainPending()
			if fired := c.engine.Tick(); fired != nil && c.onFire != nil {
				c.onFire(FireSchedule, fired.Label, fired.DurationSec)
			}
			c.bell.CheckExpiry()
		}
	}
}

func (c *Controller) drainPending() {
	for {
		select {
		case r := <-c.reqCh:
			r.fn()
			close(r.done)
		default:
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it to complete.
func (c *Controller) do(ctx context.Context, fn func()) error {
	r := request{fn: fn, done: make(chan struct{})}
	select {
	case c.reqCh <- r:
	case <-c.loopExited:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once enqueued, wait for completion: fn captures caller variables, so
	// returning early would race with the loop running it.
	select {
	case <-r.done:
		return nil
	case <-c.loopExited:
		select {
		case <-r.done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// ---- operations (each maps to exactly one Store/Actuator call) ----

func (c *Controller) Schedules(ctx context.Context) ([]schedule.Schedule, error) {
	var out []schedule.Schedule
	err := c.do(ctx, func() { out = c.store.List() })
	return out, err
}

func (c *Controller) AddSchedule(ctx context.Context, s schedule.Schedule) (int, error) {
	var (
		id   int
		oerr error
	)
	err := c.do(ctx, func() { id, oerr = c.store.Add(s) })
	if err != nil {
		return 0, err
	}
	return id, oerr
}

func (c *Controller) UpdateSchedule(ctx context.Context, id int, s schedule.Schedule) error {
	var oerr error
	err := c.do(ctx, func() { oerr = c.store.Update(id, s) })
	if err != nil {
		return err
	}
	return oerr
}

func (c *Controller) DeleteSchedule(ctx context.Context, id int) error {
	var oerr error
	err := c.do(ctx, func() { oerr = c.store.Delete(id) })
	if err != nil {
		return err
	}
	return oerr
}

// RingNow starts a manual ring. started=false means the bell was already
// ringing (a no-op, not an error).
func (c *Controller) RingNow(ctx context.Context, seconds int) (started bool, err error) {
	err = c.do(ctx, func() {
		started = c.bell.Ring(seconds)
		if started && c.onFire != nil {
			c.onFire(FireManual, "", seconds)
		}
	})
	return started, err
}

func (c *Controller) ActiveMode(ctx context.Context) (int, error) {
	var mode int
	err := c.do(ctx, func() { mode = c.store.ActiveMode() })
	return mode, err
}

func (c *Controller) SetActiveMode(ctx context.Context, mode int) error {
	var oerr error
	err := c.do(ctx, func() { oerr = c.store.SetActiveMode(mode) })
	if err != nil {
		return err
	}
	return oerr
}

func (c *Controller) Time(ctx context.Context) (clock.Reading, error) {
	var (
		r    clock.Reading
		oerr error
	)
	err := c.do(ctx, func() { r, oerr = c.oracle.Now() })
	if err != nil {
		return clock.Reading{}, err
	}
	return r, oerr
}

func (c *Controller) SyncTime(ctx context.Context, r clock.Reading) error {
	var oerr error
	err := c.do(ctx, func() { oerr = c.oracle.Set(r) })
	if err != nil {
		return err
	}
	return oerr
}

func (c *Controller) BellState(ctx context.Context) (bell.State, error) {
	var s bell.State
	err := c.do(ctx, func() { s = c.bell.State() })
	return s, err
}
