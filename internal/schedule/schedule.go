// Package schedule defines the timetable entry model shared by the store,
// the trigger engine and the HTTP API.
package schedule

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Operating modes. Only schedules tagged with the active mode can fire.
const (
	ModeRegular  = 1
	ModeMids     = 2
	ModeSemester = 3
)

const (
	// MaxLabelLen is the longest label stored; longer labels are truncated.
	MaxLabelLen = 49

	DefaultLabel    = "Bell"
	DefaultMode     = ModeRegular
	DefaultRingSecs = 5
)

var modeNames = [...]string{"Unknown", "Regular", "Mids", "Semester"}

// ModeName returns the display name for a mode, "Unknown" for anything
// outside the defined range.
func ModeName(mode int) string {
	if mode < 1 || mode >= len(modeNames) {
		return modeNames[0]
	}
	return modeNames[mode]
}

// ValidMode reports whether mode is one of the defined operating modes.
func ValidMode(mode int) bool { return mode >= ModeRegular && mode <= ModeSemester }

// Schedule is a single timetable entry: ring for DurationSec seconds at
// Hour:Minute on DayOfWeek, while Mode is the active mode.
type Schedule struct {
	ID          int    `json:"id"`
	Hour        int    `json:"hour"`
	Minute      int    `json:"minute"`
	DurationSec int    `json:"duration"`
	DayOfWeek   int    `json:"dayOfWeek"` // 0=Sunday .. 6=Saturday
	Label       string `json:"label"`
	Enabled     bool   `json:"enabled"`
	Mode        int    `json:"mode"`
}

// Matches reports whether the entry should fire for the given wall-clock
// minute under the given active mode.
func (s Schedule) Matches(hour, minute, dayOfWeek, activeMode int) bool {
	return s.Enabled &&
		s.Mode == activeMode &&
		s.Hour == hour &&
		s.Minute == minute &&
		s.DayOfWeek == dayOfWeek
}

var ErrInvalid = errors.New("invalid schedule")

// Validate checks the field ranges. The ID is not checked; the store owns
// id assignment.
func (s Schedule) Validate() error {
	switch {
	case s.Hour < 0 || s.Hour > 23:
		return fmt.Errorf("%w: hour %d out of range [0,23]", ErrInvalid, s.Hour)
	case s.Minute < 0 || s.Minute > 59:
		return fmt.Errorf("%w: minute %d out of range [0,59]", ErrInvalid, s.Minute)
	case s.DurationSec <= 0:
		return fmt.Errorf("%w: duration %d must be positive", ErrInvalid, s.DurationSec)
	case s.DayOfWeek < 0 || s.DayOfWeek > 6:
		return fmt.Errorf("%w: dayOfWeek %d out of range [0,6]", ErrInvalid, s.DayOfWeek)
	case !ValidMode(s.Mode):
		return fmt.Errorf("%w: mode %d out of range [1,3]", ErrInvalid, s.Mode)
	}
	return nil
}

// Normalize applies field defaults and bounds the label.
func (s *Schedule) Normalize() {
	if s.Label == "" {
		s.Label = DefaultLabel
	}
	if len(s.Label) > MaxLabelLen {
		s.Label = truncateLabel(s.Label, MaxLabelLen)
	}
	if s.Mode == 0 {
		s.Mode = DefaultMode
	}
}

// truncateLabel cuts s to at most max bytes without splitting a rune, so
// the stored label survives a JSON round trip byte for byte.
func truncateLabel(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
