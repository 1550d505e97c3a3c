// Package segment provides the numeric formatting used by the TM1637 driver.
//
// A TM1637 holds one byte per grid position. Each byte is a Code:
//
//	bit:     7   6   5   4   3   2   1   0
//	segment: dp  g   f   e   d   c   b   a
//
// Format turns an unsigned value into one Code per digit. The steps are
// applied in this order:
//
//  1. RightShift: drop low-order digits (value / 10^RightShift).
//  2. RoundDigits: zero the low-order digits of the shifted value. Digits are
//     truncated, never carried.
//  3. Split into exactly Geometry.Len() digits; higher digits are discarded.
//  4. BlankLeadingZeros: hide zeros up to the first significant digit, always
//     keeping the ones digit.
//  5. DecimalDigit: light the decimal point of that logical digit, counted
//     from the left.
//  6. Reorder from logical (left to right) to grid-address order.
//
// Example:
//
//	codes := segment.Format(1234, segment.Options{
//		DecimalDigit:      4,
//		BlankLeadingZeros: true,
//	}, segment.Digits6)
//	fmt.Println(segment.Text(codes, segment.Digits6)) // "  123.4"
//
// # Geometry
//
// Some 6-digit boards sold with the TM1637 wire the grids as two groups of
// three in reverse order. Digits6Reordered maps grid address 0..5 to logical
// digits 2, 1, 0, 5, 4, 3 so callers can always think left to right.
package segment
