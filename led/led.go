// Package led drives a one-shot timed pulse on a single output pin.
package led

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Indicator holds an output high for a fixed number of ticks after being
// armed, then clears it and disarms.
type Indicator struct {
	pin     gpio.PinOut
	onTicks int
	armed   bool
	level   gpio.Level
	written bool
}

// New returns a disarmed Indicator on pin.
func New(pin gpio.PinOut) (*Indicator, error) {
	if pin == nil {
		return nil, errors.New("led: nil pin")
	}
	return &Indicator{pin: pin}, nil
}

// Arm starts a pulse lasting while elapsed ticks are <= onTicks. Re-arming
// restarts the pulse; the caller resets its elapsed counter to zero.
func (i *Indicator) Arm(onTicks int) {
	i.onTicks = onTicks
	i.armed = true
}

// Armed reports whether a pulse is in progress.
func (i *Indicator) Armed() bool {
	return i.armed
}

// Level returns the last level written to the pin.
func (i *Indicator) Level() gpio.Level {
	return i.level
}

// Update drives the pin for elapsed ticks since Arm. It does nothing while
// disarmed.
func (i *Indicator) Update(elapsed int) error {
	if !i.armed {
		return nil
	}
	if elapsed <= i.onTicks {
		return i.set(gpio.High)
	}
	i.armed = false
	return i.set(gpio.Low)
}

// Off clears the output and disarms.
func (i *Indicator) Off() error {
	i.armed = false
	return i.set(gpio.Low)
}

func (i *Indicator) set(l gpio.Level) error {
	if i.written && i.level == l {
		return nil
	}
	if err := i.pin.Out(l); err != nil {
		return fmt.Errorf("led: failed to drive %s %s: %w", i.pin, l, err)
	}
	i.level = l
	i.written = true
	return nil
}
