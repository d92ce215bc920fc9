// Package config loads and watches belld's configuration file.
//
// The file may be JSON or YAML; YAML is coerced to JSON so both formats go
// through the same strict decoder (unknown fields are rejected). A fsnotify
// watcher republishes validated changes at runtime; only the reloadable
// settings (log level, ring_now rate, backup) take effect without restart.
package config

import (
	"fmt"
	"time"
)

type Config struct {
	// Listen is the HTTP bind address, e.g. ":8080".
	Listen string `json:"listen,omitempty"`

	Logging LoggingConfig `json:"logging"`
	Store   StoreConfig   `json:"store"`
	Clock   ClockConfig   `json:"clock"`
	Bell    BellConfig    `json:"bell"`
	RingNow RingNowConfig `json:"ring_now"`

	Backup *BackupConfig `json:"backup,omitempty"`
	Notify *NotifyConfig `json:"notify,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"` // nil means true
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path,omitempty"`
	} `json:"file"`
}

// StoreConfig selects the persistence backend for the schedule catalog.
type StoreConfig struct {
	// Driver: "sqlite" or "file". Default "sqlite".
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
	// Capacity bounds the live schedule count. Default 100.
	Capacity int `json:"capacity,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type ClockConfig struct {
	// Timezone is an IANA TZ name, e.g. "Asia/Jakarta". Default: host local.
	Timezone string `json:"timezone,omitempty"`
	// Disabled models a missing RTC: all time-dependent operations error.
	Disabled bool `json:"disabled,omitempty"`
}

// BellConfig wires the output lines. Empty pin paths leave the line as an
// in-memory stub (useful off-device).
type BellConfig struct {
	RelayPin            string `json:"relay_pin,omitempty"` // sysfs value file path
	RelayActiveHigh     *bool  `json:"relay_active_high,omitempty"`
	IndicatorPin        string `json:"indicator_pin,omitempty"`
	IndicatorActiveHigh *bool  `json:"indicator_active_high,omitempty"`
	// Tick is the control loop interval, a Go duration string. Default "250ms".
	Tick string `json:"tick,omitempty"`
}

// RingNowConfig rate-limits manual ring requests from the network.
type RingNowConfig struct {
	// RatePerMin caps manual rings per minute. 0 means default (6).
	RatePerMin int `json:"rate_per_min,omitempty"`
	Burst      int `json:"burst,omitempty"`
}

// BackupConfig controls the scheduled catalog export.
type BackupConfig struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron expression. Default "0 3 * * *" (daily at 03:00).
	Spec string `json:"spec,omitempty"`
	Path string `json:"path,omitempty"`
}

// NotifyConfig controls the optional Telegram notification on bell fires.
type NotifyConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

// ---- defaults and validation ----

func (c *Config) ListenOrDefault() string {
	if c.Listen == "" {
		return ":8080"
	}
	return c.Listen
}

func (c *LoggingConfig) ConsoleOrDefault() bool {
	return c.Console == nil || *c.Console
}

func (c *StoreConfig) DriverOrDefault() string {
	if c.Driver == "" {
		return "sqlite"
	}
	return c.Driver
}

func (c *StoreConfig) CapacityOrDefault() int {
	if c.Capacity <= 0 {
		return 100
	}
	return c.Capacity
}

func (c *BellConfig) TickOrDefault() time.Duration {
	d, err := time.ParseDuration(c.Tick)
	if err != nil || d <= 0 {
		return 250 * time.Millisecond
	}
	return d
}

func (c *RingNowConfig) RateOrDefault() int {
	if c.RatePerMin <= 0 {
		return 6
	}
	return c.RatePerMin
}

func (c *RingNowConfig) BurstOrDefault() int {
	if c.Burst <= 0 {
		return 2
	}
	return c.Burst
}

func (c *BackupConfig) SpecOrDefault() string {
	if c == nil || c.Spec == "" {
		return "0 3 * * *"
	}
	return c.Spec
}

// Validate rejects configs that would fail later in a worse place.
func (c *Config) Validate() error {
	switch c.Store.DriverOrDefault() {
	case "sqlite", "sqlite3", "file":
	default:
		return fmt.Errorf("store.driver %q unknown (want sqlite or file)", c.Store.Driver)
	}
	if c.Store.BusyTimeout != "" {
		if _, err := time.ParseDuration(c.Store.BusyTimeout); err != nil {
			return fmt.Errorf("store.busy_timeout: %w", err)
		}
	}
	if c.Bell.Tick != "" {
		d, err := time.ParseDuration(c.Bell.Tick)
		if err != nil {
			return fmt.Errorf("bell.tick: %w", err)
		}
		if d < 10*time.Millisecond || d > time.Minute {
			return fmt.Errorf("bell.tick %s out of range [10ms,1m]", d)
		}
	}
	if c.Clock.Timezone != "" {
		if _, err := time.LoadLocation(c.Clock.Timezone); err != nil {
			return fmt.Errorf("clock.timezone: %w", err)
		}
	}
	if c.Notify != nil && c.Notify.Enabled {
		if c.Notify.Token == "" || c.Notify.ChatID == 0 {
			return fmt.Errorf("notify: token and chat_id are required when enabled")
		}
	}
	if c.Backup != nil && c.Backup.Enabled && c.Backup.Path == "" {
		return fmt.Errorf("backup: path is required when enabled")
	}
	return nil
}

func (c *StoreConfig) BusyTimeoutOrZero() time.Duration {
	d, err := time.ParseDuration(c.BusyTimeout)
	if err != nil {
		return 0
	}
	return d
}
