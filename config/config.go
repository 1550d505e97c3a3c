// Package config loads the YAML description of a TM1637 counter board and
// turns it into driver options and resolved GPIO pins.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/flavioheleno/tm1637/scheduler"
	"github.com/flavioheleno/tm1637/segment"
	"github.com/flavioheleno/tm1637/tick"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Display DisplayConfig `yaml:"display"`
	Format  FormatConfig  `yaml:"format"`
	Keypad  KeypadConfig  `yaml:"keypad"`
	LED     LEDConfig     `yaml:"led"`
	Timing  TimingConfig  `yaml:"timing"`
	Counter CounterConfig `yaml:"counter"`
}

// ---- DISPLAY ----

type DisplayConfig struct {
	CLK        string `yaml:"clk"`
	DIO        string `yaml:"dio"`
	Geometry   string `yaml:"geometry"`   // "4", "6" or "6-reordered"
	Brightness *uint8 `yaml:"brightness"` // 0-7, absent = 2
	Clock      string `yaml:"clock"`      // bus clock, e.g. "100kHz"
}

// ---- FORMAT ----

type FormatConfig struct {
	DecimalDigit      *int `yaml:"decimal_digit"` // absent = no decimal point
	RoundDigits       int  `yaml:"round_digits"`
	BlankLeadingZeros bool `yaml:"blank_leading_zeros"`
	RightShift        int  `yaml:"right_shift"`
}

// ---- KEYPAD ----

// Keypad sources.
const (
	KeypadTM1637 = "tm1637" // the display controller's own key matrix
	KeypadMatrix = "matrix" // rows and columns wired to GPIO pins
	KeypadNone   = "none"
)

type KeypadConfig struct {
	Source string   `yaml:"source"`
	Rows   []string `yaml:"rows"` // matrix only
	Cols   []string `yaml:"cols"` // matrix only
}

// ---- LED ----

type LEDConfig struct {
	Pin     string `yaml:"pin"` // empty disables the indicator
	OnTicks int    `yaml:"on_ticks"`
}

// ---- TIMING ----

type TimingConfig struct {
	Tick         time.Duration `yaml:"tick"`
	WindowTicks  int           `yaml:"window_ticks"`
	KeyPollTicks int           `yaml:"key_poll_ticks"`
}

// ---- COUNTER ----

type CounterConfig struct {
	Start *uint32 `yaml:"start"` // absent = 999999
}

// Default returns the configuration of the reference board.
func Default() *Config {
	cfg := &Config{
		Display: DisplayConfig{CLK: "GPIO23", DIO: "GPIO24"},
		LED:     LEDConfig{Pin: "GPIO18"},
	}
	applyDefaults(cfg)
	return cfg
}

// Load reads and decodes the file at path and fills in defaults. Unknown
// keys are rejected. The result still needs Validate.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes a YAML document and fills in defaults.
func Parse(b []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills in absent values. It is the only place that mutates
// a decoded configuration.
func applyDefaults(cfg *Config) {
	if cfg.Display.Geometry == "" {
		cfg.Display.Geometry = "6"
	}
	if cfg.Display.Brightness == nil {
		b := uint8(2)
		cfg.Display.Brightness = &b
	}
	if cfg.Display.Clock == "" {
		cfg.Display.Clock = "100kHz"
	}
	if cfg.Keypad.Source == "" {
		cfg.Keypad.Source = KeypadTM1637
	}
	if cfg.LED.OnTicks == 0 {
		cfg.LED.OnTicks = scheduler.DefaultTiming.LedOnTicks
	}
	if cfg.Timing.Tick == 0 {
		cfg.Timing.Tick = tick.DefaultInterval
	}
	if cfg.Timing.WindowTicks == 0 {
		cfg.Timing.WindowTicks = scheduler.DefaultTiming.WindowTicks
	}
	if cfg.Timing.KeyPollTicks == 0 {
		cfg.Timing.KeyPollTicks = scheduler.DefaultTiming.KeyPollTicks
	}
	if cfg.Counter.Start == nil {
		s := uint32(segment.MaxValue)
		cfg.Counter.Start = &s
	}
}
