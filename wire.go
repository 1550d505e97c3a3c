package tm1637

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// wire bit-bangs the TM1637 two-wire protocol. Unlike I²C there is no
// device address and bytes travel LSB first; the host owns both lines'
// timing.
//
// The first pin error is sticky: later line operations become no-ops and
// the error is returned by done, so a transaction reads as a straight
// sequence of calls.
type wire struct {
	clk  gpio.PinOut
	dio  gpio.PinIO
	half time.Duration

	err    error
	sent   int
	missed int
}

func (w *wire) setClk(l gpio.Level) {
	if w.err != nil {
		return
	}
	if err := w.clk.Out(l); err != nil {
		w.err = fmt.Errorf("tm1637: failed to drive CLK %s: %w", l, err)
	}
}

func (w *wire) setDio(l gpio.Level) {
	if w.err != nil {
		return
	}
	if err := w.dio.Out(l); err != nil {
		w.err = fmt.Errorf("tm1637: failed to drive DIO %s: %w", l, err)
	}
}

// release turns DIO into a pulled-up input so the chip can drive it.
func (w *wire) release() {
	if w.err != nil {
		return
	}
	if err := w.dio.In(gpio.PullUp, gpio.NoEdge); err != nil {
		w.err = fmt.Errorf("tm1637: failed to release DIO: %w", err)
	}
}

// wait spins for half a bit period. Sleeping would hand the timing to the
// scheduler, which on most hosts is orders of magnitude coarser.
func (w *wire) wait() {
	if w.half <= 0 {
		return
	}
	for start := time.Now(); time.Since(start) < w.half; {
	}
}

// start pulls DIO low while CLK is high.
func (w *wire) start() {
	w.setDio(gpio.High)
	w.setClk(gpio.High)
	w.wait()
	w.setDio(gpio.Low)
	w.wait()
}

// stop releases DIO high while CLK is high, leaving both lines idle.
func (w *wire) stop() {
	w.setClk(gpio.Low)
	w.wait()
	w.setDio(gpio.Low)
	w.wait()
	w.setClk(gpio.High)
	w.wait()
	w.setDio(gpio.High)
	w.wait()
}

// write clocks out b LSB first, then samples the chip's acknowledgment on a
// ninth clock. A missing acknowledgment is counted, not fatal.
func (w *wire) write(b byte) {
	for i := 0; i < 8; i++ {
		w.setClk(gpio.Low)
		w.setDio(gpio.Level(b&1 == 1))
		w.wait()
		w.setClk(gpio.High)
		w.wait()
		b >>= 1
	}
	if !w.ack() {
		w.missed++
	}
	w.sent++
}

// read clocks in one byte driven by the chip, LSB first.
func (w *wire) read() byte {
	var b byte
	w.release()
	for i := 0; i < 8; i++ {
		w.setClk(gpio.Low)
		w.wait()
		w.setClk(gpio.High)
		w.wait()
		if w.err == nil && w.dio.Read() == gpio.High {
			b |= 1 << i
		}
	}
	w.ack()
	return b
}

func (w *wire) ack() bool {
	w.setClk(gpio.Low)
	w.release()
	w.wait()
	w.setClk(gpio.High)
	w.wait()
	ok := w.err == nil && w.dio.Read() == gpio.Low
	w.setClk(gpio.Low)
	w.setDio(gpio.Low)
	w.wait()
	return ok
}

// done ends a transaction and resets the counters. Pin errors take
// precedence over missing acknowledgments.
func (w *wire) done() error {
	err, sent, missed := w.err, w.sent, w.missed
	w.err, w.sent, w.missed = nil, 0, 0
	if err != nil {
		return err
	}
	if missed > 0 {
		return fmt.Errorf("%w: %d of %d bytes", ErrNoAck, missed, sent)
	}
	return nil
}
