// Package tick turns a periodic timing event into a single pending flag that
// a cooperative main loop drains once per pass.
//
// The producer side (Flag.Set, Source.Fire) does the minimum an interrupt
// handler may do. Everything else belongs to the main loop.
package tick

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the tick period of the reference board.
const DefaultInterval = 25 * time.Millisecond

// Flag is a single-slot handoff between one producer and one consumer. At
// most one tick is ever pending; a Set while a tick is still pending is
// counted in Lost and otherwise dropped. The zero value is ready to use.
type Flag struct {
	pending atomic.Bool
	lost    atomic.Uint32
	once    sync.Once
	wake    chan struct{}
}

// NewFlag returns a cleared flag.
func NewFlag() *Flag {
	return &Flag{}
}

func (f *Flag) wakeup() chan struct{} {
	f.once.Do(func() { f.wake = make(chan struct{}, 1) })
	return f.wake
}

// Set marks a tick as pending. It never blocks.
func (f *Flag) Set() {
	if f.pending.Swap(true) {
		f.lost.Add(1)
	}
	select {
	case f.wakeup() <- struct{}{}:
	default:
	}
}

// Take reads and clears the flag in one step. It returns true at most once
// per Set.
func (f *Flag) Take() bool {
	return f.pending.Swap(false)
}

// Pending reports whether a tick is waiting without clearing it.
func (f *Flag) Pending() bool {
	return f.pending.Load()
}

// Lost returns how many ticks were overwritten before the consumer took
// them. Drift is reported here and never compensated.
func (f *Flag) Lost() uint32 {
	return f.lost.Load()
}

// Wait blocks until a tick is pending or ctx is done. It does not clear the
// flag.
func (f *Flag) Wait(ctx context.Context) error {
	wake := f.wakeup()
	for !f.pending.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
	return nil
}

// Source produces ticks at a fixed interval.
type Source struct {
	flag     *Flag
	interval time.Duration
	fired    atomic.Uint64
}

// NewSource returns a Source that sets flag every interval. A zero interval
// selects DefaultInterval.
func NewSource(flag *Flag, interval time.Duration) (*Source, error) {
	if flag == nil {
		return nil, errors.New("tick: nil flag")
	}
	if interval < 0 {
		return nil, errors.New("tick: negative interval")
	}
	if interval == 0 {
		interval = DefaultInterval
	}
	return &Source{flag: flag, interval: interval}, nil
}

// Interval returns the tick period.
func (s *Source) Interval() time.Duration {
	return s.interval
}

// Flag returns the flag the source sets.
func (s *Source) Flag() *Flag {
	return s.flag
}

// Fired returns the number of ticks produced so far.
func (s *Source) Fired() uint64 {
	return s.fired.Load()
}

// Fire is the handler body: acknowledge one timing event and set the flag.
// It is safe to call from an interrupt or another goroutine.
func (s *Source) Fire() {
	s.fired.Add(1)
	s.flag.Set()
}

// Run fires once per interval until ctx is done. The ticker reloads itself,
// so a late consumer never delays the next tick.
func (s *Source) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Fire()
		}
	}
}
