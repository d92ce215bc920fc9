package bell

import (
	"fmt"
	"os"
	"sync"
)

// Pin is a single digital output line.
type Pin interface {
	Write(high bool) error
}

// Outputs groups the two physical lines the actuator drives: the relay that
// powers the bell and the indicator LED.
type Outputs struct {
	Relay     Pin
	Indicator Pin
}

func (o Outputs) set(active bool) error {
	if o.Relay != nil {
		if err := o.Relay.Write(active); err != nil {
			return fmt.Errorf("relay: %w", err)
		}
	}
	if o.Indicator != nil {
		if err := o.Indicator.Write(active); err != nil {
			return fmt.Errorf("indicator: %w", err)
		}
	}
	return nil
}

// SysfsPin drives a GPIO line through its exported sysfs value file
// (e.g. /sys/class/gpio/gpio27/value).
type SysfsPin struct {
	Path       string
	ActiveHigh bool
}

func (p SysfsPin) Write(high bool) error {
	v := "0"
	if high == p.ActiveHigh {
		v = "1"
	}
	return os.WriteFile(p.Path, []byte(v), 0o644)
}

// MemPin records the last level written; used in tests and when a line is
// not wired on the host.
type MemPin struct {
	mu     sync.Mutex
	high   bool
	writes int
}

func (p *MemPin) Write(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.high = high
	p.writes++
	return nil
}

func (p *MemPin) High() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}

func (p *MemPin) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}
