package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flavioheleno/tm1637"
	"github.com/flavioheleno/tm1637/keypad"
	"github.com/flavioheleno/tm1637/led"
	"github.com/flavioheleno/tm1637/segment"
	"github.com/flavioheleno/tm1637/tick"
)

// Display shows a formatted value. *tm1637.Dev implements it.
type Display interface {
	Output(value uint32, opts segment.Options) error
}

// Timing holds the loop intervals, in ticks.
type Timing struct {
	WindowTicks  int // ticks per scheduler window (default: 40)
	KeyPollTicks int // ticks between key scans (default: 8)
	LedOnTicks   int // indicator pulse length after each window (default: 1)
}

// DefaultTiming matches a 25ms tick: one window per second, key scans every
// 200ms, and a 50ms indicator pulse.
var DefaultTiming = Timing{WindowTicks: 40, KeyPollTicks: 8, LedOnTicks: 1}

// Counters are the ticks elapsed since each consumer last fired.
type Counters struct {
	SinceSecond  int
	SinceKeyPoll int
	SinceLedArm  int
}

// Opts is the configuration for a Controller.
type Opts struct {
	Keys   *keypad.Poller  // nil disables key polling
	LED    *led.Indicator  // nil disables the indicator
	Job    Job             // nil runs NopJob
	Logger *slog.Logger    // nil uses slog.Default()
	Timing Timing          // zero fields use DefaultTiming
	Format segment.Options // counter formatting
	Start  uint32          // initial counter value, 0 to segment.MaxValue

	// Fatal reports whether an error from the display, the keypad or the
	// indicator stops the loop. Other errors are logged and the loop goes
	// on. nil stops only on tm1637.ErrHalted.
	Fatal func(error) bool
}

// DefaultOpts is used when NewController is given nil options.
var DefaultOpts = Opts{
	Timing: DefaultTiming,
	Format: segment.DefaultOptions,
	Start:  segment.MaxValue,
}

// Controller is the main loop. It owns the counters and the displayed
// value; every other resource is lent to it.
type Controller struct {
	flag    *tick.Flag
	display Display
	keys    *keypad.Poller
	led     *led.Indicator
	sched   *Scheduler
	log     *slog.Logger
	fatal   func(error) bool

	timing   Timing
	format   segment.Options
	value    uint32
	counters Counters
	ticks    uint64
	lost     uint32
}

// NewController returns a Controller draining flag and showing the counter
// on display.
//
// opts can be nil to use DefaultOpts.
func NewController(flag *tick.Flag, display Display, opts *Opts) (*Controller, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if flag == nil {
		return nil, errors.New("scheduler: nil tick flag")
	}
	if display == nil {
		return nil, errors.New("scheduler: nil display")
	}
	if opts.Start > segment.MaxValue {
		return nil, fmt.Errorf("scheduler: start value %d exceeds %d", opts.Start, segment.MaxValue)
	}
	t := opts.Timing
	if t.WindowTicks == 0 {
		t.WindowTicks = DefaultTiming.WindowTicks
	}
	if t.KeyPollTicks == 0 {
		t.KeyPollTicks = DefaultTiming.KeyPollTicks
	}
	if t.LedOnTicks == 0 {
		t.LedOnTicks = DefaultTiming.LedOnTicks
	}
	if t.WindowTicks < 0 || t.KeyPollTicks < 0 || t.LedOnTicks < 0 {
		return nil, errors.New("scheduler: tick counts must not be negative")
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	fatal := opts.Fatal
	if fatal == nil {
		fatal = Halted
	}
	return &Controller{
		flag:    flag,
		display: display,
		keys:    opts.Keys,
		led:     opts.LED,
		sched:   NewScheduler(opts.Job),
		log:     l,
		fatal:   fatal,
		timing:  t,
		format:  opts.Format,
		value:   opts.Start,
	}, nil
}

// Halted is the default fatal predicate: only a halted display stops the
// loop.
func Halted(err error) bool {
	return errors.Is(err, tm1637.ErrHalted)
}

// Value returns the counter.
func (c *Controller) Value() uint32 {
	return c.value
}

// Counters returns the interval counters.
func (c *Controller) Counters() Counters {
	return c.counters
}

// Ticks returns the number of ticks drained.
func (c *Controller) Ticks() uint64 {
	return c.ticks
}

// Scheduler returns the task scheduler.
func (c *Controller) Scheduler() *Scheduler {
	return c.sched
}

// Refresh shows the counter.
func (c *Controller) Refresh() error {
	return c.show(c.value, c.format)
}

// Pass runs one iteration of the main loop and never blocks. It reports
// whether a tick was drained.
//
// On a tick the counters advance; a key scan runs when it is due and no key
// is latched; at the end of a window the scheduler is triggered, the
// indicator is armed, the counter is incremented, and either the latched
// key or the counter is shown. The scheduler and the indicator are
// serviced on every pass.
//
// Errors are logged and the pass carries on. Only errors matching the fatal
// predicate are returned, joined.
func (c *Controller) Pass() (bool, error) {
	var errs []error
	ticked := c.flag.Take()
	if ticked {
		errs = c.tick(errs)
	}
	c.sched.Pass()
	if c.led != nil {
		errs = c.tolerate(errs, "indicator update", c.led.Update(c.counters.SinceLedArm))
	}
	return ticked, errors.Join(errs...)
}

// Run shows the counter, then waits for ticks and runs a pass for each
// until ctx is done or a pass fails with a fatal error. A job that yields
// is resumed on the next tick.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Refresh(); err != nil {
		return err
	}
	for {
		if err := c.flag.Wait(ctx); err != nil {
			return err
		}
		if _, err := c.Pass(); err != nil {
			return err
		}
	}
}

func (c *Controller) tick(errs []error) []error {
	c.ticks++
	c.counters.SinceSecond++
	c.counters.SinceKeyPoll++
	c.counters.SinceLedArm++

	if n := c.flag.Lost(); n != c.lost {
		c.log.Warn("ticks lost", "total", n)
		c.lost = n
	}

	if c.keys != nil && c.counters.SinceKeyPoll >= c.timing.KeyPollTicks && c.keys.Key() == keypad.None {
		c.counters.SinceKeyPoll = 0
		k, err := c.keys.Poll()
		errs = c.tolerate(errs, "key scan", err)
		if k != keypad.None {
			c.log.Info("key pressed", "code", k)
		}
	}

	if c.counters.SinceSecond < c.timing.WindowTicks {
		return errs
	}
	c.counters.SinceSecond = 0
	if !c.sched.Trigger() {
		c.log.Warn("task still running, window skipped", "state", c.sched.State())
	}
	c.counters.SinceLedArm = 0
	if c.led != nil {
		c.led.Arm(c.timing.LedOnTicks)
	}
	c.value++
	if c.value > segment.MaxValue {
		c.value = 0
	}

	if c.keys != nil {
		if k := c.keys.Key(); k != keypad.None {
			f := c.format
			f.BlankLeadingZeros = true
			c.keys.Clear()
			c.counters.SinceKeyPoll = 0
			return c.tolerate(errs, "display update", c.display.Output(uint32(k), f))
		}
	}
	return c.tolerate(errs, "display update", c.display.Output(c.value, c.format))
}

func (c *Controller) show(v uint32, f segment.Options) error {
	return errors.Join(c.tolerate(nil, "display update", c.display.Output(v, f))...)
}

// tolerate logs err and appends it to errs only when it is fatal.
func (c *Controller) tolerate(errs []error, op string, err error) []error {
	switch {
	case err == nil:
		return errs
	case c.fatal(err):
		return append(errs, fmt.Errorf("scheduler: %s: %w", op, err))
	case errors.Is(err, tm1637.ErrNoAck):
		c.log.Warn(op+" not acknowledged", "err", err)
	default:
		c.log.Warn(op+" failed", "err", err)
	}
	return errs
}
