package config

import (
	"fmt"
	"time"

	"github.com/flavioheleno/tm1637"
	"github.com/flavioheleno/tm1637/segment"
	"periph.io/x/conn/v3/physic"
)

// MaxClock is the fastest bus clock the TM1637 accepts.
const MaxClock = 250 * physic.KiloHertz

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// DISPLAY
	// ------------------------------------------------------------

	if cfg.Display.CLK == "" || cfg.Display.DIO == "" {
		return fmt.Errorf("display: clk and dio pins are required")
	}
	g, ok := segment.ParseGeometry(cfg.Display.Geometry)
	if !ok {
		return fmt.Errorf("display: unknown geometry %q (want 4, 6 or 6-reordered)", cfg.Display.Geometry)
	}
	if b := cfg.Display.Brightness; b != nil && *b > tm1637.MaxBrightness {
		return fmt.Errorf("display: brightness %d out of range 0-%d", *b, tm1637.MaxBrightness)
	}
	if _, err := parseClock(cfg.Display.Clock); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	// ------------------------------------------------------------
	// FORMAT
	// ------------------------------------------------------------

	if d := cfg.Format.DecimalDigit; d != nil && (*d < 0 || *d >= g.Len()) {
		return fmt.Errorf("format: decimal_digit %d out of range 0-%d", *d, g.Len()-1)
	}
	if r := cfg.Format.RoundDigits; r < 0 || r > 6 {
		return fmt.Errorf("format: round_digits %d out of range 0-6", r)
	}
	if s := cfg.Format.RightShift; s < 0 || s > 6 {
		return fmt.Errorf("format: right_shift %d out of range 0-6", s)
	}

	// ------------------------------------------------------------
	// KEYPAD
	// ------------------------------------------------------------

	switch cfg.Keypad.Source {
	case KeypadTM1637, KeypadNone, "":
		if len(cfg.Keypad.Rows) > 0 || len(cfg.Keypad.Cols) > 0 {
			return fmt.Errorf("keypad: rows and cols are only used by source %q", KeypadMatrix)
		}
	case KeypadMatrix:
		if len(cfg.Keypad.Rows) == 0 || len(cfg.Keypad.Cols) == 0 {
			return fmt.Errorf("keypad: matrix needs at least one row and one column")
		}
		if len(cfg.Keypad.Rows)*len(cfg.Keypad.Cols) > 255 {
			return fmt.Errorf("keypad: matrix has more than 255 keys")
		}
	default:
		return fmt.Errorf("keypad: unknown source %q", cfg.Keypad.Source)
	}

	// ------------------------------------------------------------
	// LED / TIMING / COUNTER
	// ------------------------------------------------------------

	if cfg.LED.OnTicks < 0 {
		return fmt.Errorf("led: on_ticks must not be negative")
	}
	if cfg.Timing.Tick < time.Millisecond {
		return fmt.Errorf("timing: tick %s is shorter than 1ms", cfg.Timing.Tick)
	}
	if cfg.Timing.WindowTicks < 1 || cfg.Timing.KeyPollTicks < 1 {
		return fmt.Errorf("timing: window_ticks and key_poll_ticks must be positive")
	}
	if s := cfg.Counter.Start; s != nil && *s > segment.MaxValue {
		return fmt.Errorf("counter: start %d exceeds %d", *s, segment.MaxValue)
	}

	// ------------------------------------------------------------
	// PIN OWNERSHIP
	// ------------------------------------------------------------

	owner := make(map[string]string)
	for _, p := range cfg.pinRoles() {
		if p.name == "" {
			return fmt.Errorf("pin for %s has no name", p.role)
		}
		if prev, exists := owner[p.name]; exists {
			return fmt.Errorf("pin %s used as both %s and %s", p.name, prev, p.role)
		}
		owner[p.name] = p.role
	}

	return nil
}

type pinRole struct {
	name string
	role string
}

// pinRoles lists every configured pin name with what it is used for.
func (cfg *Config) pinRoles() []pinRole {
	roles := []pinRole{
		{cfg.Display.CLK, "display clk"},
		{cfg.Display.DIO, "display dio"},
	}
	if cfg.Keypad.Source == KeypadMatrix {
		for i, n := range cfg.Keypad.Rows {
			roles = append(roles, pinRole{n, fmt.Sprintf("keypad row %d", i)})
		}
		for i, n := range cfg.Keypad.Cols {
			roles = append(roles, pinRole{n, fmt.Sprintf("keypad col %d", i)})
		}
	}
	if cfg.LED.Pin != "" {
		roles = append(roles, pinRole{cfg.LED.Pin, "led"})
	}
	return roles
}

func parseClock(s string) (physic.Frequency, error) {
	var f physic.Frequency
	if err := f.Set(s); err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if f <= 0 || f > MaxClock {
		return 0, fmt.Errorf("clock %s out of range (0, %s]", f, MaxClock)
	}
	return f, nil
}
