package config

import (
	"fmt"

	"github.com/flavioheleno/tm1637"
	"github.com/flavioheleno/tm1637/scheduler"
	"github.com/flavioheleno/tm1637/segment"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// DisplayOpts converts the display section. cfg must be valid.
func (cfg *Config) DisplayOpts() (*tm1637.Opts, error) {
	g, ok := segment.ParseGeometry(cfg.Display.Geometry)
	if !ok {
		return nil, fmt.Errorf("display: unknown geometry %q", cfg.Display.Geometry)
	}
	f, err := parseClock(cfg.Display.Clock)
	if err != nil {
		return nil, fmt.Errorf("display: %w", err)
	}
	opts := &tm1637.Opts{Geometry: g, Clock: f, Brightness: tm1637.DefaultOpts.Brightness}
	if cfg.Display.Brightness != nil {
		opts.Brightness = *cfg.Display.Brightness
	}
	return opts, nil
}

// FormatOptions converts the format section.
func (cfg *Config) FormatOptions() segment.Options {
	opts := segment.Options{
		DecimalDigit:      segment.NoDecimal,
		RoundDigits:       cfg.Format.RoundDigits,
		BlankLeadingZeros: cfg.Format.BlankLeadingZeros,
		RightShift:        cfg.Format.RightShift,
	}
	if cfg.Format.DecimalDigit != nil {
		opts.DecimalDigit = *cfg.Format.DecimalDigit
	}
	return opts
}

// ControllerOpts converts the timing, led, format and counter sections.
// Keys, LED, Job and Logger are left for the caller to fill in.
func (cfg *Config) ControllerOpts() *scheduler.Opts {
	opts := &scheduler.Opts{
		Timing: scheduler.Timing{
			WindowTicks:  cfg.Timing.WindowTicks,
			KeyPollTicks: cfg.Timing.KeyPollTicks,
			LedOnTicks:   cfg.LED.OnTicks,
		},
		Format: cfg.FormatOptions(),
		Start:  segment.MaxValue,
	}
	if cfg.Counter.Start != nil {
		opts.Start = *cfg.Counter.Start
	}
	return opts
}

// Pins holds the resolved GPIO pins. Rows, Cols and LED are empty when the
// configuration does not use them.
type Pins struct {
	CLK  gpio.PinIO
	DIO  gpio.PinIO
	Rows []gpio.PinOut
	Cols []gpio.PinIn
	LED  gpio.PinOut
}

// PinNames returns every configured pin name.
func (cfg *Config) PinNames() []string {
	roles := cfg.pinRoles()
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.name)
	}
	return names
}

// Pins resolves every configured pin through the GPIO registry. The host
// drivers must be initialized first.
func (cfg *Config) Pins() (*Pins, error) {
	p := &Pins{}
	var err error
	if p.CLK, err = byName(cfg.Display.CLK, "display clk"); err != nil {
		return nil, err
	}
	if p.DIO, err = byName(cfg.Display.DIO, "display dio"); err != nil {
		return nil, err
	}
	if cfg.Keypad.Source == KeypadMatrix {
		for i, n := range cfg.Keypad.Rows {
			r, err := byName(n, fmt.Sprintf("keypad row %d", i))
			if err != nil {
				return nil, err
			}
			p.Rows = append(p.Rows, r)
		}
		for i, n := range cfg.Keypad.Cols {
			c, err := byName(n, fmt.Sprintf("keypad col %d", i))
			if err != nil {
				return nil, err
			}
			p.Cols = append(p.Cols, c)
		}
	}
	if cfg.LED.Pin != "" {
		if p.LED, err = byName(cfg.LED.Pin, "led"); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func byName(name, role string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%s: GPIO pin %s not found", role, name)
	}
	return p, nil
}
