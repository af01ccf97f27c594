package hwdriver

import (
	"fmt"
	"math/bits"
	"time"
)

const threadBackoff = 100 * time.Millisecond

// ThreadPool allocates one of 32 session IDs from the hardware's
// thread-pool register, guarding against two clients claiming the
// same ID.
type ThreadPool struct {
	Driver  *Driver
	current *uint32
}

// Acquire surrenders any currently held ID, then spins until the
// hardware-busy and lock-held bits are both clear, reads the
// in-use bitmap (which the hardware latches on read, blocking further
// allocation until the following write), picks the lowest free bit,
// and writes it back to release the latch and claim the ID.
func (p *ThreadPool) Acquire() (uint32, error) {
	if p.current != nil {
		if err := p.Surrender(); err != nil {
			return 0, err
		}
	}

	for {
		ctrl, err := p.Driver.IO.Read(p.Driver.ctrlAddr(), 1, false)
		if err != nil {
			return 0, err
		}

		busy := ctrl[0]&(1<<StatusBitHWBusy) != 0
		locked := ctrl[0]&(1<<StatusBitLockHeld) != 0

		if busy || locked {
			time.Sleep(threadBackoff)

			continue
		}

		bitmap, err := p.Driver.ReadConfigWord(OpRdThreadPoolSet)
		if err != nil {
			return 0, err
		}

		id, ok := firstFreeBit(bitmap)
		if !ok {
			time.Sleep(threadBackoff)

			continue
		}

		if err := p.Driver.WriteConfigWord(OpWrThreadPoolSet, bitmap|(1<<id)); err != nil {
			return 0, err
		}

		idCopy := id
		p.current = &idCopy

		return id, nil
	}
}

// Surrender releases the currently held ID, if any.
func (p *ThreadPool) Surrender() error {
	if p.current == nil {
		return nil
	}

	bitmap, err := p.Driver.ReadConfigWord(OpRdThreadPoolSet)
	if err != nil {
		return err
	}

	if err := p.Driver.WriteConfigWord(OpWrThreadPoolSet, bitmap&^(1<<*p.current)); err != nil {
		return err
	}

	p.current = nil

	return nil
}

func firstFreeBit(bitmap uint32) (uint32, bool) {
	inverted := ^bitmap & 0xFFFFFFFF
	if inverted == 0 {
		return 0, false
	}

	return uint32(bits.TrailingZeros32(inverted)), true
}

// ThreadLock guards one compound operation (arm, download, user-bus
// read/write) with the hardware's per-thread lock bit.
type ThreadLock struct {
	Driver   *Driver
	ThreadID uint32
}

// Acquire clears the caller's own lock bit first (recovering from a
// prior crash that left it set), then spins setting and re-reading it
// until the set sticks.
func (l *ThreadLock) Acquire() error {
	if l.ThreadID >= 32 {
		return fmt.Errorf("hwdriver: thread id %d out of range", l.ThreadID)
	}

	mask := uint32(1) << l.ThreadID

	for {
		cur, err := l.Driver.ReadConfigWord(OpRdThreadLock)
		if err != nil {
			return err
		}

		if err := l.Driver.WriteConfigWord(OpWrThreadLock, cur&^mask); err != nil {
			return err
		}

		cleared, err := l.Driver.ReadConfigWord(OpRdThreadLock)
		if err != nil {
			return err
		}

		if err := l.Driver.WriteConfigWord(OpWrThreadLock, cleared|mask); err != nil {
			return err
		}

		verify, err := l.Driver.ReadConfigWord(OpRdThreadLock)
		if err != nil {
			return err
		}

		if verify&mask != 0 {
			return nil
		}

		time.Sleep(threadBackoff)
	}
}

// Release clears the caller's lock bit.
func (l *ThreadLock) Release() error {
	mask := uint32(1) << l.ThreadID

	cur, err := l.Driver.ReadConfigWord(OpRdThreadLock)
	if err != nil {
		return err
	}

	return l.Driver.WriteConfigWord(OpWrThreadLock, cur&^mask)
}

// WithLock runs fn while holding the thread lock.
func (l *ThreadLock) WithLock(fn func() error) error {
	if err := l.Acquire(); err != nil {
		return err
	}

	defer l.Release() //nolint:errcheck

	return fn()
}
