// Package tm1637 controls a TM1637 LED display controller over its two-wire
// bus, bit-banged on two GPIO pins.
//
// The TM1637 drives up to six 7-segment digits and scans a 2x8 key matrix.
// See the segment package for how values are turned into digits.
package tm1637

import (
	"errors"
	"fmt"

	"github.com/flavioheleno/tm1637/keypad"
	"github.com/flavioheleno/tm1637/segment"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

const (
	cmdData     = 0x40 // write display data, auto-increment address
	cmdReadKeys = 0x42 // read key scan data
	cmdAddress  = 0xC0 // set address to grid 0
	cmdControl  = 0x80 // display control, ORed with on bit and brightness
	controlOn   = 0x08

	// MaxBrightness is the brightest pulse width setting.
	MaxBrightness = 7

	// DefaultClock is the bus clock used when Opts.Clock is zero.
	DefaultClock = 100 * physic.KiloHertz
)

var (
	// ErrNoAck reports that the chip did not acknowledge one or more bytes.
	// The transfer is still completed; callers may treat it as a warning.
	ErrNoAck = errors.New("tm1637: acknowledgment missing")
	// ErrHalted is returned by every operation after Halt.
	ErrHalted = errors.New("tm1637: halted")
)

// Opts is the configuration for the TM1637 display.
type Opts struct {
	Geometry   segment.Geometry // Digit count and grid wiring (default: Digits6)
	Brightness uint8            // 0-7
	Clock      physic.Frequency // Bus clock (default: 100kHz, the chip allows up to 250kHz)
}

// DefaultOpts is used when NewGPIO is given nil options.
var DefaultOpts = Opts{
	Geometry:   segment.Digits6,
	Brightness: 2,
	Clock:      DefaultClock,
}

// Dev is the device handle for a TM1637 display.
type Dev struct {
	w wire

	geometry   segment.Geometry
	brightness uint8
	on         bool
	halted     bool
}

// NewGPIO returns a TM1637 connected to clk and dio.
//
// dio must be bidirectional: it is switched to a pulled-up input while the
// chip acknowledges a byte or returns key data. Both lines are left high
// (idle). Nothing is sent until the first write.
//
// opts can be nil to use DefaultOpts.
func NewGPIO(clk gpio.PinOut, dio gpio.PinIO, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if clk == nil || dio == nil {
		return nil, errors.New("tm1637: CLK and DIO pins are required")
	}
	if !opts.Geometry.Valid() {
		return nil, fmt.Errorf("tm1637: unknown geometry %d", opts.Geometry)
	}
	if opts.Brightness > MaxBrightness {
		return nil, fmt.Errorf("tm1637: brightness must be between 0 and %d", MaxBrightness)
	}
	if opts.Clock < 0 {
		return nil, errors.New("tm1637: clock must not be negative")
	}
	f := opts.Clock
	if f == 0 {
		f = DefaultClock
	}

	d := &Dev{
		w: wire{
			clk:  clk,
			dio:  dio,
			half: f.Period() / 2,
		},
		geometry:   opts.Geometry,
		brightness: opts.Brightness,
		on:         true,
	}

	d.w.setClk(gpio.High)
	d.w.setDio(gpio.High)
	if err := d.w.done(); err != nil {
		return nil, err
	}
	return d, nil
}

// Geometry returns the configured display geometry.
func (d *Dev) Geometry() segment.Geometry {
	return d.geometry
}

// Brightness returns the current brightness (0-7).
func (d *Dev) Brightness() uint8 {
	return d.brightness
}

// Output formats value with opts and sends it to the display.
func (d *Dev) Output(value uint32, opts segment.Options) error {
	return d.WriteSegments(segment.Format(value, opts, d.geometry))
}

// WriteSegments sends one code per digit, in grid-address order, followed
// by the display control command.
func (d *Dev) WriteSegments(codes []segment.Code) error {
	if d.halted {
		return ErrHalted
	}
	if len(codes) != d.geometry.Len() {
		return fmt.Errorf("tm1637: got %d codes for a %d digit display", len(codes), d.geometry.Len())
	}

	d.command(cmdData)
	d.w.start()
	d.w.write(cmdAddress)
	for _, c := range codes {
		d.w.write(byte(c))
	}
	d.w.stop()
	d.command(d.control())
	return d.w.done()
}

// Clear blanks every digit.
func (d *Dev) Clear() error {
	return d.WriteSegments(make([]segment.Code, d.geometry.Len()))
}

// SetBrightness sets the display brightness (0-7).
func (d *Dev) SetBrightness(b uint8) error {
	if d.halted {
		return ErrHalted
	}
	if b > MaxBrightness {
		return fmt.Errorf("tm1637: brightness must be between 0 and %d", MaxBrightness)
	}
	d.brightness = b
	d.command(d.control())
	return d.w.done()
}

// SetOn turns the display on or off without touching its contents.
func (d *Dev) SetOn(on bool) error {
	if d.halted {
		return ErrHalted
	}
	d.on = on
	d.command(d.control())
	return d.w.done()
}

// Scan reads the TM1637 key matrix. Keys on K1 map to codes 1-8 and keys on
// K2 to 9-16, each ordered SG1 to SG8. It returns keypad.None when nothing
// is pressed.
func (d *Dev) Scan() (keypad.Code, error) {
	if d.halted {
		return keypad.None, ErrHalted
	}
	d.w.start()
	d.w.write(cmdReadKeys)
	raw := d.w.read()
	d.w.stop()
	if err := d.w.done(); err != nil {
		return keypad.None, err
	}
	return decodeKey(raw), nil
}

// Halt turns the display off. After calling Halt, the device will not
// accept further commands.
func (d *Dev) Halt() error {
	d.halted = true
	d.on = false
	d.command(d.control())
	return d.w.done()
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("tm1637.Dev{%s, %d digits}", d.w.clk, d.geometry.Len())
}

func (d *Dev) control() byte {
	c := byte(cmdControl) | d.brightness
	if d.on {
		c |= controlOn
	}
	return c
}

// command sends a single byte framed by start and stop.
func (d *Dev) command(c byte) {
	d.w.start()
	d.w.write(c)
	d.w.stop()
}

// decodeKey converts the raw key byte. Bits 0-2 hold the inverted SG line
// and bits 3-4 select K2 (bit 3 high) or K1 (bit 4 high).
func decodeKey(raw byte) keypad.Code {
	if raw == 0xFF {
		return keypad.None
	}
	col := 7 - int(raw&0x07)
	var row int
	switch raw & 0x18 {
	case 0x10:
		row = 0
	case 0x08:
		row = 1
	default:
		return keypad.None
	}
	return keypad.Code(row*8 + col + 1)
}

var (
	_ conn.Resource = &Dev{}
	_ keypad.Matrix = &Dev{}
)
