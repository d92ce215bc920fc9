// Package bell owns the ringing/idle state machine and the physical output
// lines. The recorded state and the outputs never disagree: every transition
// drives the pins in the same step that flips the state.
package bell

import (
	"time"

	"belld/pkg/logx"
)

type State int

const (
	Idle State = iota
	Ringing
)

func (s State) String() string {
	if s == Ringing {
		return "ringing"
	}
	return "idle"
}

// Bell is the actuator. Not internally synchronized; the control loop is
// its single caller.
type Bell struct {
	out Outputs
	log logx.Logger
	now func() time.Time // monotonic via time.Time; test hook

	ringing  bool
	start    time.Time
	duration time.Duration
}

// New forces the outputs inactive before anything else, so power-on never
// leaves the bell ringing from a stale relay state.
func New(out Outputs, log logx.Logger) *Bell {
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bell{out: out, log: log, now: time.Now}
	if err := out.set(false); err != nil {
		log.Error("failed to clear bell outputs at startup", logx.Err(err))
	}
	return b
}

// Ring starts a timed ring. A ring request while already ringing is a no-op:
// it does not extend or restart the duration. Returns whether a new ring
// started.
func (b *Bell) Ring(seconds int) bool {
	if b.ringing || seconds <= 0 {
		return false
	}
	if err := b.out.set(true); err != nil {
		// Keep state and outputs in agreement: do not record a ring the
		// hardware did not start.
		b.log.Error("failed to drive bell outputs", logx.Err(err))
		_ = b.out.set(false)
		return false
	}
	b.ringing = true
	b.start = b.now()
	b.duration = time.Duration(seconds) * time.Second
	b.log.Info("bell ringing", logx.Int("seconds", seconds))
	return true
}

// CheckExpiry stops the ring once the duration has elapsed. Called every
// loop turn; returns whether the bell stopped on this call.
func (b *Bell) CheckExpiry() bool {
	if !b.ringing || b.now().Sub(b.start) < b.duration {
		return false
	}
	if err := b.out.set(false); err != nil {
		b.log.Error("failed to release bell outputs", logx.Err(err))
	}
	b.ringing = false
	b.log.Info("bell stopped")
	return true
}

func (b *Bell) State() State {
	if b.ringing {
		return Ringing
	}
	return Idle
}

func (b *Bell) Ringing() bool { return b.ringing }
