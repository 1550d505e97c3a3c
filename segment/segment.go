// Package segment converts integers into 7-segment codes for TM1637 displays.
//
// A Code is one byte per digit: bits 0-6 drive segments a-g and bit 7 drives
// the decimal point. Format is pure: the same value, options and geometry
// always yield the same codes.
package segment

import "strings"

// Code is the segment pattern for a single digit (dp-g-f-e-d-c-b-a).
type Code byte

const (
	// Blank is the code for an unlit digit.
	Blank Code = 0x00
	// DP is the decimal point bit.
	DP Code = 0x80

	// MaxValue is the largest value a 6-digit display can show.
	MaxValue = 999999

	// NoDecimal disables the decimal point.
	NoDecimal = -1
)

// Digit patterns for 0-9.
var font = [10]Code{
	0x3F, // 0
	0x06, // 1
	0x5B, // 2
	0x4F, // 3
	0x66, // 4
	0x6D, // 5
	0x7D, // 6
	0x07, // 7
	0x7F, // 8
	0x6F, // 9
}

// Digit returns the code for d (0-9). Values above 9 yield Blank.
func Digit(d uint8) Code {
	if d > 9 {
		return Blank
	}
	return font[d]
}

// Geometry selects a display module: its digit count and the order in which
// logical digits are wired to the controller's grid addresses.
type Geometry uint8

const (
	// Digits6 is a 6-digit module wired left to right.
	Digits6 Geometry = iota
	// Digits4 is a 4-digit module wired left to right.
	Digits4
	// Digits6Reordered is the common 6-digit board wired as 2-1-0 5-4-3.
	Digits6Reordered
)

var slotOrder = map[Geometry][]int{
	Digits4:          {0, 1, 2, 3},
	Digits6:          {0, 1, 2, 3, 4, 5},
	Digits6Reordered: {2, 1, 0, 5, 4, 3},
}

// Len returns the number of digits of g, or 0 for an unknown geometry.
func (g Geometry) Len() int {
	return len(slotOrder[g])
}

// Valid reports whether g is a known geometry.
func (g Geometry) Valid() bool {
	return g.Len() != 0
}

// Slot returns the logical digit index (0 = leftmost) shown at grid address
// addr.
func (g Geometry) Slot(addr int) int {
	return slotOrder[g][addr]
}

func (g Geometry) String() string {
	switch g {
	case Digits4:
		return "4"
	case Digits6:
		return "6"
	case Digits6Reordered:
		return "6-reordered"
	}
	return "unknown"
}

// ParseGeometry is the inverse of Geometry.String.
func ParseGeometry(s string) (Geometry, bool) {
	for _, g := range []Geometry{Digits4, Digits6, Digits6Reordered} {
		if g.String() == s {
			return g, true
		}
	}
	return 0, false
}

// Options controls how a single value is rendered.
type Options struct {
	// DecimalDigit is the logical digit (0 = leftmost) whose decimal point is
	// lit. Any index outside the display, such as NoDecimal, lights none.
	DecimalDigit int
	// RoundDigits is the number of low-order digits forced to zero.
	RoundDigits int
	// BlankLeadingZeros hides zeros to the left of the first significant
	// digit. A zero value still shows a single "0".
	BlankLeadingZeros bool
	// RightShift drops this many low-order digits before rounding.
	RightShift int
}

// DefaultOptions renders every digit with no decimal point.
var DefaultOptions = Options{DecimalDigit: NoDecimal}

// Format renders value on a display of geometry g. The result has g.Len()
// codes ordered by grid address.
func Format(value uint32, opts Options, g Geometry) []Code {
	n := g.Len()
	if n == 0 {
		return nil
	}

	v := value
	for i := 0; i < opts.RightShift && v != 0; i++ {
		v /= 10
	}

	p := uint32(1)
	for i := 0; i < opts.RoundDigits && i < n; i++ {
		p *= 10
	}
	v -= v % p

	// Logical digits, most significant first.
	digits := make([]uint8, n)
	for i := n - 1; i >= 0; i-- {
		digits[i] = uint8(v % 10)
		v /= 10
	}

	logical := make([]Code, n)
	leading := opts.BlankLeadingZeros
	for i, d := range digits {
		if leading && d == 0 && i < n-1 {
			logical[i] = Blank
			continue
		}
		leading = false
		logical[i] = font[d]
	}

	if opts.DecimalDigit >= 0 && opts.DecimalDigit < n {
		logical[opts.DecimalDigit] |= DP
	}

	out := make([]Code, n)
	for addr := range out {
		out[addr] = logical[g.Slot(addr)]
	}
	return out
}

// Text decodes codes in grid order back to a left-to-right string for
// geometry g. Blank digits become spaces, a lit decimal point is appended as
// '.', and unknown patterns become '?'.
func Text(codes []Code, g Geometry) string {
	n := g.Len()
	if n == 0 || len(codes) != n {
		return ""
	}
	logical := make([]Code, n)
	for addr, c := range codes {
		logical[g.Slot(addr)] = c
	}

	var b strings.Builder
	for _, c := range logical {
		b.WriteByte(glyph(c &^ DP))
		if c&DP != 0 {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func glyph(c Code) byte {
	if c == Blank {
		return ' '
	}
	for d, f := range font {
		if f == c {
			return byte('0' + d)
		}
	}
	return '?'
}
