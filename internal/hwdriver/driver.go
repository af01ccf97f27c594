package hwdriver

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// RegisterIO is the minimal surface the driver needs from a
// transport. transport.Session satisfies it; so does the bench-harness
// GPIO bridge, and so does any fake used in tests.
type RegisterIO interface {
	Read(addr uint32, n int, repeat bool) ([]uint32, error)
	Write(addr uint32, data []uint32, repeat bool) error
}

// maxBulkWords is the chunk size for bulk reads per the register
// convention: any read larger than this is split into multiple
// transport reads.
const maxBulkWords = 1024

// Driver wraps a RegisterIO with the hardware's two-register
// ctrl/data convention: base is ctrl, base+4 is data.
type Driver struct {
	IO           RegisterIO
	Base         uint32
	LegacyStatus bool // select legacy vs. modern status decode
	Log          *log.Logger
}

func (d *Driver) ctrlAddr() uint32 { return d.Base }
func (d *Driver) dataAddr() uint32 { return d.Base + 4 }

// writeOpcode writes a command opcode to ctrl.
func (d *Driver) writeOpcode(op Opcode) error {
	return d.IO.Write(d.ctrlAddr(), []uint32{uint32(op)}, false)
}

// readData reads n words from the data register, auto-incrementing,
// chunked at maxBulkWords per transport request.
func (d *Driver) readData(n int) ([]uint32, error) {
	out := make([]uint32, 0, n)

	for remaining := n; remaining > 0; {
		chunk := remaining
		if chunk > maxBulkWords {
			chunk = maxBulkWords
		}

		words, err := d.IO.Read(d.dataAddr(), chunk, false)
		if err != nil {
			return nil, err
		}

		out = append(out, words...)
		remaining -= chunk
	}

	return out, nil
}

// writeData writes words to the data register, auto-incrementing,
// chunked at maxBulkWords per transport request.
func (d *Driver) writeData(words []uint32) error {
	for offset := 0; offset < len(words); offset += maxBulkWords {
		end := offset + maxBulkWords
		if end > len(words) {
			end = len(words)
		}

		if err := d.IO.Write(d.dataAddr(), words[offset:end], false); err != nil {
			return err
		}
	}

	return nil
}

// ReadConfigWord writes op to ctrl, then reads one word from data.
func (d *Driver) ReadConfigWord(op Opcode) (uint32, error) {
	if err := d.writeOpcode(op); err != nil {
		return 0, err
	}

	words, err := d.readData(1)
	if err != nil {
		return 0, err
	}

	return words[0], nil
}

// WriteConfigWord writes op to ctrl, then writes one word to data.
func (d *Driver) WriteConfigWord(op Opcode, value uint32) error {
	if err := d.writeOpcode(op); err != nil {
		return err
	}

	return d.writeData([]uint32{value})
}

// BulkRead writes op to ctrl, then bulk-reads n words from data,
// chunked at maxBulkWords.
func (d *Driver) BulkRead(op Opcode, n int) ([]uint32, error) {
	if err := d.writeOpcode(op); err != nil {
		return nil, err
	}

	return d.readData(n)
}

// SelectPodRegister programs the RLE sub-addressing register so a
// following data-register access targets (hub, pod, reg).
func (d *Driver) SelectPodRegister(hub, pod byte, reg byte) error {
	selector := uint32(hub)<<16 | uint32(pod)<<8 | uint32(reg)

	return d.WriteConfigWord(OpWrPodInstanceSelect, selector)
}

// WritePodRegister selects (hub, pod, reg) and writes value to it.
func (d *Driver) WritePodRegister(hub, pod byte, reg byte, value uint32) error {
	if err := d.SelectPodRegister(hub, pod, reg); err != nil {
		return err
	}

	return d.WriteConfigWord(OpWrPodRegisterValue, value)
}

// ReadPodRegister selects (hub, pod, reg) and reads its value.
func (d *Driver) ReadPodRegister(hub, pod byte, reg byte) (uint32, error) {
	if err := d.SelectPodRegister(hub, pod, reg); err != nil {
		return 0, err
	}

	return d.ReadConfigWord(OpRdPodRegisterValue)
}

// CheckHardwarePresent reads the hardware id/rev word and fails with
// HardwareMissing if it does not match the expected id byte (0x53).
const expectedHardwareID = 0x53

func (d *Driver) CheckHardwarePresent() error {
	word, err := d.ReadConfigWord(OpRdHardwareID)
	if err != nil {
		return err
	}

	if byte(word) != expectedHardwareID {
		return sumperr.New(sumperr.HardwareMissing, "hw_id readback 0x%02x != 0x%02x", byte(word), expectedHardwareID)
	}

	return nil
}

// PollUntilState polls State at ~1s intervals until it matches target
// or timeout elapses, per the arm->acquired polling loop.
func (d *Driver) PollUntilState(target State, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		st, err := d.State()
		if err != nil {
			return err
		}

		if st == target {
			return nil
		}

		if time.Now().After(deadline) {
			return sumperr.New(sumperr.HardwareStuck, "state stuck at %s after %s, want %s", st, timeout, target)
		}

		time.Sleep(time.Second)
	}
}
