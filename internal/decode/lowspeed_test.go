package decode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLowSpeedTwoRecordScenario(t *testing.T) {
	profile := ParseRecordProfile(0x03010200)
	require.Equal(t, RecordProfile{RecordLen: 3, HeaderLen: 1, DigitalLen: 2, AnalogLen: 0}, profile)

	words := []uint32{
		0x80000005, 0x00000001, 0x00000000,
		0xC0000006, 0x00000000, 0x00000003,
	}

	lines, err := DecodeLowSpeed(words, profile)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	firstBits := "1" + strings.Repeat("0", 63)
	assert.Equal(t, firstBits+" 2 00000005", lines[0])

	secondBits := strings.Repeat("0", 32) + "11" + strings.Repeat("0", 30)
	assert.Equal(t, secondBits+" 3 00000006", lines[1])
}

func TestDecodeLowSpeedCullsEmptyRecords(t *testing.T) {
	profile := RecordProfile{RecordLen: 2, HeaderLen: 1, DigitalLen: 1, AnalogLen: 0}

	words := []uint32{
		0x00000000, 0xFFFFFFFF, // stamp 0: culled
		0x80000001, 0x00000001, // stamp 2 (trigger)
	}

	lines, err := DecodeLowSpeed(words, profile)
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestDecodeLowSpeedEmitsAnalogSlots(t *testing.T) {
	profile := RecordProfile{RecordLen: 3, HeaderLen: 1, DigitalLen: 1, AnalogLen: 1}

	// Slot descriptor 0xA8: valid, one channel per slot, 8 bits per
	// channel; the channel value 0x56 follows in the next byte.
	words := []uint32{0x80000001, 0x00000000, 0xA8560000}

	lines, err := DecodeLowSpeed(words, profile)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, strings.Repeat("0", 32)+" 56 2 00000001", lines[0])
}

func TestDecodeLowSpeedInvalidAnalogSlotEmitsNone(t *testing.T) {
	profile := RecordProfile{RecordLen: 3, HeaderLen: 1, DigitalLen: 1, AnalogLen: 1}

	// Same geometry but the valid bit is clear.
	words := []uint32{0x80000001, 0x00000000, 0x28560000}

	lines, err := DecodeLowSpeed(words, profile)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, strings.Repeat("0", 32)+" None 2 00000001", lines[0])
}

func TestDecodeLowSpeedRejectsMismatchedProfile(t *testing.T) {
	profile := RecordProfile{RecordLen: 3, HeaderLen: 1, DigitalLen: 1, AnalogLen: 0}

	_, err := DecodeLowSpeed(nil, profile)
	require.Error(t, err)
}

func TestDecodeHighSpeedWidthTwo(t *testing.T) {
	lines := DecodeHighSpeed([]uint32{0x00000001, 0x00000000, 0x00000000, 0x00000003}, 2)
	require.Len(t, lines, 2)

	assert.Equal(t, "1"+strings.Repeat("0", 63), lines[0])
	assert.Equal(t, strings.Repeat("0", 32)+"11"+strings.Repeat("0", 30), lines[1])
}
