package gpiobridge

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// Harness is an in-process bench fixture: a pty pair standing in for
// a real serial link, with a goroutine on the "board" end that
// answers the register grammar out of an in-memory word array. It
// lets the rest of the stack (hwdriver.Driver and up) be exercised
// against SerialBridge without real silicon attached.
type Harness struct {
	master *os.File
	slave  *os.File

	mu   sync.Mutex
	regs map[uint32]uint32

	done chan struct{}
}

// NewHarness opens a pty pair and starts the board-side responder.
// regWidth preallocates that many words of backing store, addressed
// starting at 0.
func NewHarness(regWidth int) (*Harness, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, sumperr.Wrap(sumperr.TransportUnavailable, err, "gpiobridge: open pty pair")
	}

	// The pty line discipline defaults to canonical mode with echo,
	// which would feed every request back into the responder's scanner
	// interleaved with real replies. Raw mode before any traffic.
	if err := makeRaw(slave); err != nil {
		master.Close()
		slave.Close()

		return nil, err
	}

	h := &Harness{
		master: master,
		slave:  slave,
		regs:   make(map[uint32]uint32, regWidth),
		done:   make(chan struct{}),
	}

	go h.serve()

	return h, nil
}

// SlaveName returns the pty slave's device path, suitable for passing
// to OpenSerial from the client side.
func (h *Harness) SlaveName() string { return h.slave.Name() }

// Seed pre-loads the backing register store, e.g. to simulate a
// particular hardware id/state word before a test connects.
func (h *Harness) Seed(addr, value uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.regs[addr] = value
}

// Close stops the responder and closes both pty ends.
func (h *Harness) Close() error {
	close(h.done)
	_ = h.master.Close()

	return h.slave.Close()
}

func makeRaw(f *os.File) error {
	tio, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		return sumperr.Wrap(sumperr.TransportUnavailable, err, "gpiobridge: get termios on %s", f.Name())
	}

	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB
	tio.Cflag |= unix.CS8

	if err := unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, tio); err != nil {
		return sumperr.Wrap(sumperr.TransportUnavailable, err, "gpiobridge: set raw mode on %s", f.Name())
	}

	return nil
}

func (h *Harness) serve() {
	scanner := bufio.NewScanner(h.master)

	for scanner.Scan() {
		select {
		case <-h.done:
			return
		default:
		}

		h.handle(scanner.Text())
	}
}

func (h *Harness) handle(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}

	addr, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return
	}

	switch fields[0] {
	case "r", "k":
		n := 1

		if len(fields) >= 3 {
			last, err := strconv.ParseUint(fields[2], 16, 32)
			if err == nil {
				n = int(last) + 1
			}
		}

		h.reply(uint32(addr), n, fields[0] == "k")
	case "w", "W":
		h.store(uint32(addr), fields[2:], fields[0] == "W")
	}
}

func (h *Harness) reply(addr uint32, n int, repeat bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var sb strings.Builder

	for i := 0; i < n; i++ {
		a := addr
		if !repeat {
			a = addr + uint32(i)
		}

		if i > 0 {
			sb.WriteByte(' ')
		}

		fmt.Fprintf(&sb, "%08x", h.regs[a])
	}

	sb.WriteByte('\n')

	io.WriteString(h.master, sb.String())
}

func (h *Harness) store(addr uint32, words []string, repeat bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, w := range words {
		v, err := strconv.ParseUint(w, 16, 32)
		if err != nil {
			continue
		}

		a := addr
		if !repeat {
			a = addr + uint32(i)
		}

		h.regs[a] = uint32(v)
	}
}
