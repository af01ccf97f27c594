package gpiobridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarnessRoundTripsReadWrite(t *testing.T) {
	h, err := NewHarness(16)
	require.NoError(t, err)
	defer h.Close()

	h.Seed(0x10, 0x53)

	bridge, err := OpenSerial(h.SlaveName(), 0)
	require.NoError(t, err)
	defer bridge.Close()

	// Give the responder goroutine a moment to start scanning.
	time.Sleep(10 * time.Millisecond)

	words, err := bridge.Read(0x10, 1, false)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x53}, words)

	require.NoError(t, bridge.Write(0x20, []uint32{0x1, 0x2, 0x3}, false))
	time.Sleep(10 * time.Millisecond)

	words, err = bridge.Read(0x20, 3, false)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x1, 0x2, 0x3}, words)
}

func TestHarnessRepeatAddressBurst(t *testing.T) {
	h, err := NewHarness(4)
	require.NoError(t, err)
	defer h.Close()

	bridge, err := OpenSerial(h.SlaveName(), 0)
	require.NoError(t, err)
	defer bridge.Close()

	time.Sleep(10 * time.Millisecond)

	require.NoError(t, bridge.Write(0x30, []uint32{0x7, 0x7, 0x7}, true))
	time.Sleep(10 * time.Millisecond)

	words, err := bridge.Read(0x30, 1, false)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x7}, words)
}
