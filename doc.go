// Package tm1637 controls a TM1637 7-segment LED controller over its
// two-wire bus.
//
// The TM1637 drives up to six common-anode digits with eight brightness
// levels and scans a 2×8 key matrix. It does not speak I²C: there is no
// device address, bytes travel LSB first, and the host generates every
// clock edge. This driver bit-bangs the bus on two GPIO pins.
//
// # Hardware Connection
//
//	Module Pin → System Pin
//	GND        → GND
//	VCC        → 3.3V or 5V
//	CLK        → GPIO (any output)
//	DIO        → GPIO (any bidirectional pin)
//
// Most breakout boards carry pull-up resistors on both lines. DIO is switched
// to an input with the internal pull-up enabled whenever the chip drives it.
//
// # Basic Usage
//
//	package main
//
//	import (
//		"log"
//
//		"github.com/flavioheleno/tm1637"
//		"github.com/flavioheleno/tm1637/segment"
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		if _, err := host.Init(); err != nil {
//			log.Fatal(err)
//		}
//
//		dev, err := tm1637.NewGPIO(gpioreg.ByName("GPIO23"), gpioreg.ByName("GPIO24"), &tm1637.Opts{
//			Geometry:   segment.Digits6,
//			Brightness: 2,
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer dev.Halt()
//
//		// Shows "  12.34".
//		dev.Output(1234, segment.Options{DecimalDigit: 3, BlankLeadingZeros: true})
//	}
//
// Every call to Output recomputes and retransmits all digits: the data
// command, the address command followed by one byte per digit, and the
// display control command.
//
// # Geometry
//
// Six-digit modules are not all wired alike. Opts.Geometry selects the
// digit count and the order in which grid addresses map to visible
// positions; see segment.Geometry.
//
// # Keys
//
// Scan reads the key matrix. Keys wired to K1 return codes 1-8 and keys on
// K2 return 9-16, each ordered SG1 to SG8; 0 means no key. Dev implements
// keypad.Matrix so it can be handed to keypad.NewPoller directly.
//
// # Acknowledgment
//
// The chip pulls DIO low on the ninth clock of every byte. A missing
// acknowledgment does not abort the transfer: the remaining bytes are sent
// and the call returns an error wrapping ErrNoAck. Callers that only care
// about pin failures can test for it with errors.Is and carry on.
//
// # Timing
//
// Opts.Clock sets the bus clock (100kHz when zero). The chip accepts up to
// 250kHz. Half periods are spent busy-waiting, so a transfer holds the
// calling goroutine for roughly (bytes × 9 + framing) clock periods.
//
// # Datasheet
//
// https://www.mcielectronics.cl/website_MCI/static/documents/Datasheet_TM1637.pdf
package tm1637
