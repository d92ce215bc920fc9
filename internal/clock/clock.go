// Package clock abstracts the wall-clock time source.
//
// On the device this is a battery-backed RTC that may be absent or
// uninitialized; everything time-dependent must degrade to a no-op or an
// error instead of crashing. The system oracle models an RTC adjust by
// keeping an offset from the OS clock, so a time sync survives until the
// process exits without touching the host clock.
package clock

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrUnavailable = errors.New("time source unavailable")

// Reading is a transient calendar snapshot; it is compared, never stored.
type Reading struct {
	Year      int `json:"year"`
	Month     int `json:"month"`
	Day       int `json:"day"`
	Hour      int `json:"hour"`
	Minute    int `json:"minute"`
	Second    int `json:"second"`
	DayOfWeek int `json:"dayOfWeek"` // 0=Sunday .. 6=Saturday
}

// FromTime converts a time.Time into a Reading.
func FromTime(t time.Time) Reading {
	return Reading{
		Year:      t.Year(),
		Month:     int(t.Month()),
		Day:       t.Day(),
		Hour:      t.Hour(),
		Minute:    t.Minute(),
		Second:    t.Second(),
		DayOfWeek: int(t.Weekday()),
	}
}

// Time converts the reading back to a time.Time in loc.
func (r Reading) Time(loc *time.Location) (time.Time, error) {
	if r.Month < 1 || r.Month > 12 || r.Day < 1 || r.Day > 31 ||
		r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 ||
		r.Second < 0 || r.Second > 59 {
		return time.Time{}, fmt.Errorf("invalid calendar fields %04d-%02d-%02d %02d:%02d:%02d",
			r.Year, r.Month, r.Day, r.Hour, r.Minute, r.Second)
	}
	return time.Date(r.Year, time.Month(r.Month), r.Day, r.Hour, r.Minute, r.Second, 0, loc), nil
}

// Oracle provides calendar time and accepts time syncs.
type Oracle interface {
	// Now returns the current reading, or ErrUnavailable.
	Now() (Reading, error)
	// Set adjusts the oracle to the given reading (time sync).
	Set(Reading) error
	Available() bool
}

// SystemOracle derives readings from the OS clock plus an adjustable offset.
type SystemOracle struct {
	mu        sync.Mutex
	offset    time.Duration
	loc       *time.Location
	available bool
	now       func() time.Time // test hook
}

// NewSystem returns an oracle backed by the OS clock. available=false models
// a missing RTC chip.
func NewSystem(loc *time.Location, available bool) *SystemOracle {
	if loc == nil {
		loc = time.Local
	}
	return &SystemOracle{loc: loc, available: available, now: time.Now}
}

func (o *SystemOracle) Available() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.available
}

func (o *SystemOracle) Now() (Reading, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.available {
		return Reading{}, ErrUnavailable
	}
	return FromTime(o.now().Add(o.offset).In(o.loc)), nil
}

func (o *SystemOracle) Set(r Reading) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.available {
		return ErrUnavailable
	}
	target, err := r.Time(o.loc)
	if err != nil {
		return err
	}
	o.offset = target.Sub(o.now())
	return nil
}

// Fake is a hand-cranked oracle for tests and the simulated device.
type Fake struct {
	mu      sync.Mutex
	reading Reading
	ok      bool
}

// NewFake starts available at the given reading.
func NewFake(r Reading) *Fake { return &Fake{reading: r, ok: true} }

func (f *Fake) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ok
}

func (f *Fake) Now() (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ok {
		return Reading{}, ErrUnavailable
	}
	return f.reading, nil
}

func (f *Fake) Set(r Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ok {
		return ErrUnavailable
	}
	t, err := r.Time(time.UTC)
	if err != nil {
		return err
	}
	f.reading = FromTime(t)
	return nil
}

// SetAvailable toggles availability (a disconnected RTC).
func (f *Fake) SetAvailable(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ok = ok
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.reading.Time(time.UTC)
	if err != nil {
		return
	}
	f.reading = FromTime(t.Add(d))
}
