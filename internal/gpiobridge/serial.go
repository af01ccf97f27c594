// Package gpiobridge carries register reads and writes to a SUMP3
// acquisition engine over a direct serial/GPIO bench harness instead
// of the network backdoor server: a USB-UART adapter found via udev,
// opened with pkg/term in raw mode, speaking the identical
// "r/w addr [len] [data...]" text
// grammar transport.Session uses, plus GPIO lines (warthog618/go-gpiocdev)
// for toggling a board's reset/program pins. It exists for lab setups
// that talk to the FPGA directly rather than through its Ethernet
// backdoor, and for the bench-harness pty loopback used in tests.
package gpiobridge

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/term"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// SerialBridge carries the register grammar over a raw serial line,
// one request/response pair per call, no framing beyond the trailing
// newline the grammar itself already requires.
type SerialBridge struct {
	tty     *term.Term
	scanner *bufio.Scanner
}

// OpenSerial opens devicename at baud and configures it for 8N1 raw
// I/O.
func OpenSerial(devicename string, baud int) (*SerialBridge, error) {
	tty, err := term.Open(devicename, term.RawMode)
	if err != nil {
		return nil, sumperr.Wrap(sumperr.TransportUnavailable, err, "gpiobridge: open %s", devicename)
	}

	if baud != 0 {
		if err := tty.SetSpeed(baud); err != nil {
			tty.Close()

			return nil, sumperr.Wrap(sumperr.TransportUnavailable, err, "gpiobridge: set speed %d on %s", baud, devicename)
		}
	}

	return &SerialBridge{tty: tty, scanner: bufio.NewScanner(tty)}, nil
}

// Close releases the underlying serial handle.
func (b *SerialBridge) Close() error { return b.tty.Close() }

// Read fetches n words starting at addr, matching transport.Session's
// own request grammar so the same hwdriver.Driver works unmodified
// over either transport.
func (b *SerialBridge) Read(addr uint32, n int, repeat bool) ([]uint32, error) {
	if n <= 0 {
		return nil, sumperr.New(sumperr.ConfigParse, "gpiobridge: Read: n must be positive, got %d", n)
	}

	var req string

	switch {
	case n == 1 && !repeat:
		req = fmt.Sprintf("r %08x\n", addr)
	case repeat:
		req = fmt.Sprintf("k %08x %08x\n", addr, n-1)
	default:
		req = fmt.Sprintf("r %08x %08x\n", addr, n-1)
	}

	if err := b.send(req); err != nil {
		return nil, err
	}

	line, err := b.recvLine()
	if err != nil {
		return nil, err
	}

	return parseHexWords(line, n)
}

// Write sends n words starting at addr, using the repeat-address
// burst form when repeat is set.
func (b *SerialBridge) Write(addr uint32, data []uint32, repeat bool) error {
	if len(data) == 0 {
		return sumperr.New(sumperr.ConfigParse, "gpiobridge: Write: data must be non-empty")
	}

	verb := byte('w')
	if repeat {
		verb = 'W'
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "%c %08x", verb, addr)

	for _, d := range data {
		fmt.Fprintf(&sb, " %08x", d)
	}

	sb.WriteByte('\n')

	return b.send(sb.String())
}

func (b *SerialBridge) send(line string) error {
	_, err := b.tty.Write([]byte(line))
	if err != nil {
		return sumperr.Wrap(sumperr.TransportUnavailable, err, "gpiobridge: write")
	}

	return nil
}

func (b *SerialBridge) recvLine() (string, error) {
	if !b.scanner.Scan() {
		if err := b.scanner.Err(); err != nil {
			return "", sumperr.Wrap(sumperr.TransportUnavailable, err, "gpiobridge: read")
		}

		return "", sumperr.New(sumperr.TransportUnavailable, "gpiobridge: unexpected EOF")
	}

	return b.scanner.Text(), nil
}

func parseHexWords(s string, want int) ([]uint32, error) {
	fields := strings.Fields(s)
	if len(fields) != want {
		return nil, sumperr.New(sumperr.SampleDecode, "gpiobridge: expected %d words, got %d (%q)", want, len(fields), s)
	}

	out := make([]uint32, want)

	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 32)
		if err != nil {
			return nil, sumperr.Wrap(sumperr.SampleDecode, err, "gpiobridge: malformed hex word %q", f)
		}

		out[i] = uint32(v)
	}

	return out, nil
}
