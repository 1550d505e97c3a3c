// Package keypad scans key matrices and latches the first key seen.
//
// Debouncing is temporal: the caller polls at a coarse interval and a
// latched key suppresses further scans until it is cleared, so a held key
// is reported once.
package keypad

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Code identifies a key. 0 means no key is pressed.
type Code uint8

// None is the code returned when no key is down.
const None Code = 0

// Matrix is anything that can report the key currently held down.
type Matrix interface {
	Scan() (Code, error)
}

// Poller latches the first non-zero code returned by a Matrix.
type Poller struct {
	m     Matrix
	key   Code
	scans int
}

// NewPoller returns a Poller reading m.
func NewPoller(m Matrix) *Poller {
	return &Poller{m: m}
}

// Poll scans the matrix unless a key is already latched, and returns the
// latched key. A scan error leaves the latch unchanged.
func (p *Poller) Poll() (Code, error) {
	if p.key != None {
		return p.key, nil
	}
	k, err := p.m.Scan()
	p.scans++
	if err != nil {
		return None, err
	}
	p.key = k
	return k, nil
}

// Key returns the latched key.
func (p *Poller) Key() Code {
	return p.key
}

// Clear releases the latch so the next Poll scans again.
func (p *Poller) Clear() {
	p.key = None
}

// Scans returns how many times the matrix was read.
func (p *Poller) Scans() int {
	return p.scans
}

// GPIOMatrix is a row/column switch matrix wired directly to GPIO pins.
// Rows are driven low one at a time; columns are read with pull-ups, so a
// pressed switch reads low.
type GPIOMatrix struct {
	rows []gpio.PinOut
	cols []gpio.PinIn
}

// NewGPIOMatrix configures the pins and returns the matrix. Key codes run
// from 1 to len(rows)*len(cols), row by row.
func NewGPIOMatrix(rows []gpio.PinOut, cols []gpio.PinIn) (*GPIOMatrix, error) {
	if len(rows) == 0 || len(cols) == 0 {
		return nil, errors.New("keypad: matrix needs at least one row and one column")
	}
	if len(rows)*len(cols) > 255 {
		return nil, errors.New("keypad: matrix has more than 255 keys")
	}
	for _, c := range cols {
		if err := c.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("keypad: failed to configure column %s: %w", c, err)
		}
	}
	for _, r := range rows {
		if err := r.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("keypad: failed to release row %s: %w", r, err)
		}
	}
	return &GPIOMatrix{rows: rows, cols: cols}, nil
}

// Scan returns the first pressed key in row-major order, or None.
func (m *GPIOMatrix) Scan() (Code, error) {
	for ri, r := range m.rows {
		if err := r.Out(gpio.Low); err != nil {
			return None, fmt.Errorf("keypad: failed to drive row %s: %w", r, err)
		}
		col := -1
		for ci, c := range m.cols {
			if c.Read() == gpio.Low {
				col = ci
				break
			}
		}
		if err := r.Out(gpio.High); err != nil {
			return None, fmt.Errorf("keypad: failed to release row %s: %w", r, err)
		}
		if col >= 0 {
			return Code(ri*len(m.cols) + col + 1), nil
		}
	}
	return None, nil
}
