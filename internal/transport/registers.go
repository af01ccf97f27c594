package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// Read fetches n 32-bit words starting at addr. repeat selects the
// same-address ('k') form instead of the auto-incrementing ('r') form.
// A single-word read omits the length field entirely, matching the
// wire grammar's single-DWORD shorthand.
func (s *Session) Read(addr uint32, n int, repeat bool) ([]uint32, error) {
	if n <= 0 {
		return nil, fmt.Errorf("transport: Read: n must be positive, got %d", n)
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

	if err := s.sendFrame([]byte(req)); err != nil {
		return nil, err
	}

	reply, err := s.recvFrame()
	if err != nil {
		return nil, err
	}

	return parseHexWords(string(reply), n)
}

// Write sends n 32-bit words starting at addr. repeat selects the
// same-address burst-write form ('W') instead of auto-increment ('w').
func (s *Session) Write(addr uint32, data []uint32, repeat bool) error {
	if len(data) == 0 {
		return fmt.Errorf("transport: Write: data must be non-empty")
	}

	verb := byte('w')
	if repeat {
		verb = 'W'
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%c %08x", verb, addr)

	for _, d := range data {
		fmt.Fprintf(&b, " %08x", d)
	}

	b.WriteByte('\n')

	return s.sendFrame([]byte(b.String()))
}

func parseHexWords(s string, want int) ([]uint32, error) {
	fields := strings.Fields(s)
	if len(fields) != want {
		return nil, fmt.Errorf("transport: expected %d words in reply, got %d (%q)", want, len(fields), s)
	}

	out := make([]uint32, want)

	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("transport: malformed hex word %q: %w", f, err)
		}

		out[i] = uint32(v)
	}

	return out, nil
}
