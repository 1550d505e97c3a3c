package tm1637

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// chip simulates the receiving side of a TM1637. It watches the lines the
// driver produces, decodes start/stop conditions and LSB-first bytes, pulls
// DIO low to acknowledge, and shifts out key data after a read command.
type chip struct {
	clk      gpio.Level
	dio      gpio.Level // level driven by the host
	released bool       // host DIO is an input

	active  bool
	reading bool
	bit     int // clock pulses in the current byte, 1..9
	cur     byte
	frame   []byte

	frames [][]byte
	key    byte // raw key byte returned on a read
	noAck  bool
	starts int
}

func newChip() *chip {
	return &chip{clk: gpio.High, dio: gpio.High, key: 0xFF}
}

// level is what the DIO line reads as.
func (c *chip) level() gpio.Level {
	if !c.released {
		return c.dio
	}
	if !c.active {
		return gpio.High
	}
	if c.reading {
		if c.bit >= 1 && c.bit <= 8 {
			return gpio.Level(c.key>>(c.bit-1)&1 == 1)
		}
		return gpio.High
	}
	if c.bit >= 8 && !c.noAck {
		return gpio.Low
	}
	return gpio.High
}

func (c *chip) drive(l gpio.Level) {
	prev := c.level()
	c.released = false
	c.dio = l
	if c.clk != gpio.High || prev == l {
		return
	}
	if l == gpio.Low {
		c.starts++
		c.active, c.reading = true, false
		c.bit, c.cur, c.frame = 0, 0, nil
		return
	}
	c.active = false
	if len(c.frame) > 0 {
		c.frames = append(c.frames, c.frame)
	}
}

func (c *chip) clock(l gpio.Level) {
	if l == c.clk {
		return
	}
	c.clk = l
	if !c.active {
		return
	}
	if l == gpio.High {
		if !c.reading && c.bit < 8 && c.level() == gpio.High {
			c.cur |= 1 << c.bit
		}
		c.bit++
		return
	}
	if c.bit == 9 {
		if c.reading {
			c.reading = false
		} else {
			c.frame = append(c.frame, c.cur)
			c.reading = len(c.frame) == 1 && c.cur == cmdReadKeys
		}
		c.bit, c.cur = 0, 0
	}
}

type clkPin struct {
	*gpiotest.Pin
	c   *chip
	err error
}

func (p *clkPin) Out(l gpio.Level) error {
	if p.err != nil {
		return p.err
	}
	_ = p.Pin.Out(l)
	p.c.clock(l)
	return nil
}

type dioPin struct {
	*gpiotest.Pin
	c *chip
}

func (p *dioPin) Out(l gpio.Level) error {
	_ = p.Pin.Out(l)
	p.c.drive(l)
	return nil
}

func (p *dioPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if err := p.Pin.In(pull, edge); err != nil {
		return err
	}
	p.c.released = true
	return nil
}

func (p *dioPin) Read() gpio.Level {
	return p.c.level()
}

func newBus() (*chip, *clkPin, *dioPin) {
	c := newChip()
	return c,
		&clkPin{Pin: &gpiotest.Pin{N: "CLK", Num: 2}, c: c},
		&dioPin{Pin: &gpiotest.Pin{N: "DIO", Num: 1}, c: c}
}
