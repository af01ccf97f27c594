package gpiobridge

import (
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// ResetLine drives a board's reset or program pin from a host GPIO
// character device line, for bench setups that need to power-cycle
// or reprogram the FPGA between captures without physical access.
type ResetLine struct {
	line *gpiocdev.Line
}

// OpenResetLine requests offset on chip (e.g. "gpiochip0") as an
// output, idle high (not asserted).
func OpenResetLine(chip string, offset int) (*ResetLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(1))
	if err != nil {
		return nil, sumperr.Wrap(sumperr.HardwareMissing, err, "gpiobridge: request reset line %s:%d", chip, offset)
	}

	return &ResetLine{line: line}, nil
}

// Pulse asserts the line low for d, then releases it high again.
func (r *ResetLine) Pulse(d time.Duration) error {
	if err := r.line.SetValue(0); err != nil {
		return sumperr.Wrap(sumperr.HardwareStuck, err, "gpiobridge: assert reset")
	}

	time.Sleep(d)

	if err := r.line.SetValue(1); err != nil {
		return sumperr.Wrap(sumperr.HardwareStuck, err, "gpiobridge: release reset")
	}

	return nil
}

// Close releases the line request.
func (r *ResetLine) Close() error { return r.line.Close() }
