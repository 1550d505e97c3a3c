package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/flavioheleno/tm1637"
	"github.com/flavioheleno/tm1637/keypad"
	"github.com/flavioheleno/tm1637/led"
	"github.com/flavioheleno/tm1637/segment"
	"github.com/flavioheleno/tm1637/tick"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// fakeDisplay renders every update as text on a 6 digit display.
type fakeDisplay struct {
	shown []string
	err   error
	after func()
}

func (d *fakeDisplay) Output(v uint32, opts segment.Options) error {
	d.shown = append(d.shown, segment.Text(segment.Format(v, opts, segment.Digits6), segment.Digits6))
	if d.after != nil {
		d.after()
	}
	return d.err
}

func (d *fakeDisplay) last() string {
	if len(d.shown) == 0 {
		return ""
	}
	return d.shown[len(d.shown)-1]
}

// fakeMatrix returns codes from a script, repeating the last one.
type fakeMatrix struct {
	codes []keypad.Code
	err   error
	calls int
}

func (m *fakeMatrix) Scan() (keypad.Code, error) {
	m.calls++
	if m.err != nil {
		return keypad.None, m.err
	}
	if len(m.codes) == 0 {
		return keypad.None, nil
	}
	k := m.codes[0]
	if len(m.codes) > 1 {
		m.codes = m.codes[1:]
	}
	return k, nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newController(t *testing.T, d Display, opts *Opts) (*Controller, *tick.Flag) {
	t.Helper()
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	f := tick.NewFlag()
	c, err := NewController(f, d, opts)
	if err != nil {
		t.Fatalf("NewController() = %v", err)
	}
	return c, f
}

func run(t *testing.T, c *Controller, f *tick.Flag, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f.Set()
		ok, err := c.Pass()
		if err != nil {
			t.Fatalf("Pass() = %v", err)
		}
		if !ok {
			t.Fatal("Pass() did not drain the tick")
		}
	}
}

func TestNewControllerValidation(t *testing.T) {
	d := &fakeDisplay{}
	tests := []struct {
		name    string
		flag    *tick.Flag
		display Display
		opts    *Opts
		wantErr bool
	}{
		{"nil options (uses defaults)", tick.NewFlag(), d, nil, false},
		{"nil flag", nil, d, nil, true},
		{"nil display", tick.NewFlag(), nil, nil, true},
		{"start too large", tick.NewFlag(), d, &Opts{Start: segment.MaxValue + 1}, true},
		{"negative window", tick.NewFlag(), d, &Opts{Timing: Timing{WindowTicks: -1}}, true},
		{"negative led", tick.NewFlag(), d, &Opts{Timing: Timing{LedOnTicks: -1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewController(tt.flag, tt.display, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewController() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestControllerTimingDefaults(t *testing.T) {
	c, _ := newController(t, &fakeDisplay{}, &Opts{Timing: Timing{WindowTicks: 10}})
	want := Timing{WindowTicks: 10, KeyPollTicks: 8, LedOnTicks: 1}
	if c.timing != want {
		t.Errorf("timing = %+v, want %+v", c.timing, want)
	}
}

func TestPassWithoutTick(t *testing.T) {
	d := &fakeDisplay{}
	c, _ := newController(t, d, nil)
	for i := 0; i < 100; i++ {
		ok, err := c.Pass()
		if ok || err != nil {
			t.Fatalf("Pass() = %v, %v, want false, nil", ok, err)
		}
	}
	if c.Counters() != (Counters{}) || c.Ticks() != 0 || len(d.shown) != 0 {
		t.Error("Pass() without a tick changed state")
	}
}

func TestOneCyclePerWindow(t *testing.T) {
	tests := []struct {
		ticks         int
		passesPerTick int
	}{
		{39, 1},
		{40, 1},
		{400, 1},
		{400, 5},
		{1000, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d ticks x%d", tt.ticks, tt.passesPerTick), func(t *testing.T) {
			d := &fakeDisplay{}
			c, f := newController(t, d, nil)
			for i := 0; i < tt.ticks; i++ {
				f.Set()
				for p := 0; p < tt.passesPerTick; p++ {
					if _, err := c.Pass(); err != nil {
						t.Fatal(err)
					}
				}
			}
			want := uint64(tt.ticks / 40)
			if got := c.Scheduler().Cycles(); got != want {
				t.Errorf("Cycles() = %d, want %d", got, want)
			}
			if len(d.shown) != int(want) {
				t.Errorf("display updated %d times, want %d", len(d.shown), want)
			}
			if c.Ticks() != uint64(tt.ticks) {
				t.Errorf("Ticks() = %d, want %d", c.Ticks(), tt.ticks)
			}
			if got := c.Counters().SinceSecond; got != tt.ticks%40 {
				t.Errorf("SinceSecond = %d, want %d", got, tt.ticks%40)
			}
		})
	}
}

func TestCounterWraps(t *testing.T) {
	d := &fakeDisplay{}
	c, f := newController(t, d, nil)

	if err := c.Refresh(); err != nil {
		t.Fatal(err)
	}
	run(t, c, f, 80)

	want := []string{"999999", "000000", "000001"}
	if strings.Join(d.shown, ",") != strings.Join(want, ",") {
		t.Errorf("shown = %q, want %q", d.shown, want)
	}
	if c.Value() != 1 {
		t.Errorf("Value() = %d, want 1", c.Value())
	}
}

func TestCounterFormat(t *testing.T) {
	d := &fakeDisplay{}
	opts := DefaultOpts
	opts.Start = 4
	opts.Format = segment.Options{DecimalDigit: segment.NoDecimal, BlankLeadingZeros: true}
	c, f := newController(t, d, &opts)
	run(t, c, f, 40)
	if got := d.last(); got != "     5" {
		t.Errorf("shown %q, want %q", got, "     5")
	}
}

func TestKeyPolling(t *testing.T) {
	m := &fakeMatrix{}
	opts := DefaultOpts
	opts.Keys = keypad.NewPoller(m)
	c, f := newController(t, &fakeDisplay{}, &opts)

	run(t, c, f, 7)
	if m.calls != 0 {
		t.Fatalf("scanned %d times before the first poll interval", m.calls)
	}
	run(t, c, f, 1)
	if m.calls != 1 {
		t.Fatalf("scanned %d times at tick 8, want 1", m.calls)
	}
	if c.Counters().SinceKeyPoll != 0 {
		t.Errorf("SinceKeyPoll = %d after a scan, want 0", c.Counters().SinceKeyPoll)
	}
	run(t, c, f, 32)
	if m.calls != 5 {
		t.Errorf("scanned %d times in 40 ticks, want 5", m.calls)
	}
}

func TestKeyShownOnceThenCounter(t *testing.T) {
	var buf bytes.Buffer
	m := &fakeMatrix{codes: []keypad.Code{0, 7, 0}}
	d := &fakeDisplay{}
	opts := DefaultOpts
	opts.Keys = keypad.NewPoller(m)
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	c, f := newController(t, d, &opts)

	run(t, c, f, 16)
	if opts.Keys.Key() != 7 {
		t.Fatalf("Key() = %d after tick 16, want 7", opts.Keys.Key())
	}
	run(t, c, f, 16)
	if m.calls != 2 {
		t.Errorf("scanned %d times, want 2 while a key is latched", m.calls)
	}

	run(t, c, f, 8)
	if got := d.last(); got != "     7" {
		t.Errorf("window shows %q, want key %q", got, "     7")
	}
	if opts.Keys.Key() != keypad.None {
		t.Error("key not cleared after being shown")
	}
	if c.Counters().SinceKeyPoll != 0 {
		t.Errorf("SinceKeyPoll = %d, want 0 after showing a key", c.Counters().SinceKeyPoll)
	}
	if c.Value() != 0 {
		t.Errorf("counter = %d, want 0: it advances while a key is shown", c.Value())
	}

	run(t, c, f, 40)
	if got := d.last(); got != "000001" {
		t.Errorf("next window shows %q, want %q", got, "000001")
	}
	if !strings.Contains(buf.String(), "key pressed") || !strings.Contains(buf.String(), "code=7") {
		t.Errorf("key press not logged: %s", buf.String())
	}
}

func TestKeyScanErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog string
	}{
		{"missing ack", fmt.Errorf("%w: 1 of 1 bytes", tm1637.ErrNoAck), "key scan not acknowledged"},
		{"pin failure", errors.New("gpio glitch"), "key scan failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			m := &fakeMatrix{err: tt.err}
			d := &fakeDisplay{}
			opts := DefaultOpts
			opts.Keys = keypad.NewPoller(m)
			opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))
			c, f := newController(t, d, &opts)

			// The fifth scan lands on the tick that closes the window.
			run(t, c, f, 40)
			if m.calls != 5 {
				t.Fatalf("scanned %d times, want 5", m.calls)
			}
			if n := strings.Count(buf.String(), tt.wantLog); n != 5 {
				t.Errorf("logged %q %d times, want 5", tt.wantLog, n)
			}
			if c.Scheduler().Cycles() != 1 || c.Counters().SinceSecond != 0 {
				t.Errorf("Cycles() = %d, SinceSecond = %d, want 1, 0", c.Scheduler().Cycles(), c.Counters().SinceSecond)
			}
			if c.Value() != 0 || d.last() != "000000" {
				t.Errorf("Value() = %d, shown %q, want 0, %q", c.Value(), d.last(), "000000")
			}
		})
	}
}

func TestFatalPredicate(t *testing.T) {
	glitch := errors.New("gpio glitch")
	opts := DefaultOpts
	opts.Keys = keypad.NewPoller(&fakeMatrix{err: glitch})
	opts.Fatal = func(err error) bool { return errors.Is(err, glitch) }
	d := &fakeDisplay{}
	c, f := newController(t, d, &opts)

	run(t, c, f, 7)
	f.Set()
	ok, err := c.Pass()
	if !ok || !errors.Is(err, glitch) {
		t.Fatalf("Pass() = %v, %v, want true and wrapped %v", ok, err, glitch)
	}
	if !strings.Contains(err.Error(), "scheduler: key scan") {
		t.Errorf("Pass() error = %q, want the failing operation named", err)
	}
	if c.Ticks() != 8 {
		t.Errorf("Ticks() = %d, want 8", c.Ticks())
	}
}

// brokenPin accepts no output level.
type brokenPin struct {
	gpiotest.Pin
}

func (p *brokenPin) Out(gpio.Level) error {
	return errors.New("pin unavailable")
}

func TestIndicatorErrorsLogged(t *testing.T) {
	var buf bytes.Buffer
	ind, err := led.New(&brokenPin{Pin: gpiotest.Pin{N: "LED", Num: 5}})
	if err != nil {
		t.Fatal(err)
	}
	d := &fakeDisplay{}
	opts := DefaultOpts
	opts.LED = ind
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	c, f := newController(t, d, &opts)

	run(t, c, f, 80)
	if !strings.Contains(buf.String(), "indicator update failed") {
		t.Errorf("indicator failure not logged: %s", buf.String())
	}
	if len(d.shown) != 2 || c.Scheduler().Cycles() != 2 {
		t.Errorf("shown %d times, %d cycles, want 2, 2", len(d.shown), c.Scheduler().Cycles())
	}
}

func TestOverlappedWindow(t *testing.T) {
	var buf bytes.Buffer
	release := false
	d := &fakeDisplay{}
	opts := DefaultOpts
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	opts.Job = JobFunc(func(s State) bool {
		return s != Stage || release
	})
	c, f := newController(t, d, &opts)

	run(t, c, f, 80)
	sched := c.Scheduler()
	if sched.Overlapped() != 1 || sched.Cycles() != 0 || sched.State() != Stage {
		t.Fatalf("Overlapped() = %d, Cycles() = %d, State() = %s, want 1, 0, stage",
			sched.Overlapped(), sched.Cycles(), sched.State())
	}
	if !strings.Contains(buf.String(), "task still running, window skipped") || !strings.Contains(buf.String(), "state=stage") {
		t.Errorf("skipped window not logged: %s", buf.String())
	}
	if strings.Join(d.shown, ",") != "000000,000001" {
		t.Errorf("shown = %q, want the counter to advance on every window", d.shown)
	}

	release = true
	run(t, c, f, 1)
	if sched.State() != Idle || sched.Cycles() != 1 {
		t.Errorf("State() = %s, Cycles() = %d, want idle, 1", sched.State(), sched.Cycles())
	}
	run(t, c, f, 39)
	if sched.Overlapped() != 1 || sched.Cycles() != 2 {
		t.Errorf("Overlapped() = %d, Cycles() = %d, want 1, 2", sched.Overlapped(), sched.Cycles())
	}
}

func TestDisplayErrors(t *testing.T) {
	var buf bytes.Buffer
	d := &fakeDisplay{err: fmt.Errorf("%w: 9 of 9 bytes", tm1637.ErrNoAck)}
	opts := DefaultOpts
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	c, f := newController(t, d, &opts)

	run(t, c, f, 80)
	if n := strings.Count(buf.String(), "display update not acknowledged"); n != 2 {
		t.Errorf("logged %d missing acknowledgments, want 2", n)
	}

	d.err = tm1637.ErrHalted
	for i := 0; i < 40; i++ {
		f.Set()
		if _, err := c.Pass(); err != nil {
			if !errors.Is(err, tm1637.ErrHalted) {
				t.Errorf("Pass() = %v, want wrapped %v", err, tm1637.ErrHalted)
			}
			return
		}
	}
	t.Error("halted display did not stop the loop")
}

func TestLostTicksLogged(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOpts
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	c, f := newController(t, &fakeDisplay{}, &opts)

	f.Set()
	f.Set()
	if ok, _ := c.Pass(); !ok {
		t.Fatal("Pass() did not drain the tick")
	}
	if c.Ticks() != 1 {
		t.Errorf("Ticks() = %d, want 1: lost ticks are not replayed", c.Ticks())
	}
	if !strings.Contains(buf.String(), "ticks lost") || !strings.Contains(buf.String(), "total=1") {
		t.Errorf("lost tick not logged: %s", buf.String())
	}
}

func TestIndicatorPulse(t *testing.T) {
	tests := []struct {
		onTicks int
	}{
		{1}, {3}, {10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("on %d", tt.onTicks), func(t *testing.T) {
			pin := &gpiotest.Pin{N: "LED", Num: 5}
			ind, err := led.New(pin)
			if err != nil {
				t.Fatal(err)
			}
			opts := DefaultOpts
			opts.LED = ind
			opts.Timing.LedOnTicks = tt.onTicks
			c, f := newController(t, &fakeDisplay{}, &opts)

			run(t, c, f, 39)
			if pin.Read() != gpio.Low || ind.Armed() {
				t.Fatal("indicator on before the first window")
			}
			for i := 0; i <= tt.onTicks; i++ {
				run(t, c, f, 1)
				if pin.Read() != gpio.High {
					t.Fatalf("indicator low %d ticks after the window, want high", i)
				}
			}
			run(t, c, f, 1)
			if pin.Read() != gpio.Low || ind.Armed() {
				t.Errorf("indicator still on %d ticks after the window", tt.onTicks+1)
			}
		})
	}
}

func TestYieldingJobResumesEveryPass(t *testing.T) {
	tries := 0
	opts := DefaultOpts
	opts.Job = JobFunc(func(s State) bool {
		if s == Stage {
			tries++
			return tries >= 4
		}
		return true
	})
	c, f := newController(t, &fakeDisplay{}, &opts)

	run(t, c, f, 40)
	if c.Scheduler().State() != Stage {
		t.Fatalf("State() = %s, want stage", c.Scheduler().State())
	}
	for i := 0; i < 3; i++ {
		if _, err := c.Pass(); err != nil {
			t.Fatal(err)
		}
	}
	if c.Scheduler().State() != Idle || c.Scheduler().Cycles() != 1 {
		t.Errorf("State() = %s, Cycles() = %d, want idle, 1", c.Scheduler().State(), c.Scheduler().Cycles())
	}
}

func TestRunShowsStartValue(t *testing.T) {
	d := &fakeDisplay{}
	c, _ := newController(t, d, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want %v", err, context.Canceled)
	}
	if len(d.shown) != 1 || d.shown[0] != "999999" {
		t.Errorf("shown = %q, want [999999]", d.shown)
	}
}

func TestRunWithSource(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := &fakeDisplay{}
	d.after = func() {
		if len(d.shown) == 4 {
			cancel()
		}
	}
	opts := DefaultOpts
	opts.Timing = Timing{WindowTicks: 2}
	c, f := newController(t, d, &opts)

	src, err := tick.NewSource(f, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	go src.Run(ctx)

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want %v", err, context.Canceled)
	}
	want := []string{"999999", "000000", "000001", "000002"}
	if strings.Join(d.shown, ",") != strings.Join(want, ",") {
		t.Errorf("shown = %q, want %q", d.shown, want)
	}
}
