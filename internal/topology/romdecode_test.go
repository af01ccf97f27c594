package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// packROMWords builds the little test fixture's word stream: the ROM
// is read by the hardware top-down (lowest address last), so the
// bytes below are listed in logical emission order and then reversed
// and packed MSB-first into words before being handed to DecodeROM,
// the same transform wordsToBytesMSB/stripTrailingZeroRun undo.
func packROMWords(logicalBytes []byte) []uint32 {
	reversed := make([]byte, len(logicalBytes))
	for i, b := range logicalBytes {
		reversed[len(logicalBytes)-1-i] = b
	}

	// Pad to a whole number of words, then append an 8-byte zero run
	// the decoder trims as end-of-data padding.
	padded := append(append([]byte{}, reversed...), make([]byte, 8)...)
	for len(padded)%4 != 0 {
		padded = append(padded, 0)
	}

	words := make([]uint32, len(padded)/4)
	for i := range words {
		words[i] = uint32(padded[i*4])<<24 | uint32(padded[i*4+1])<<16 | uint32(padded[i*4+2])<<8 | uint32(padded[i*4+3])
	}

	return words
}

func TestDecodeROMParsesMinimalView(t *testing.T) {
	// F0 (ROM Start), F1 "v" (View Name), F2 (source this pod),
	// F6 0x00 0x01 "b" (signal bit 1, name "b"), E2 (source end),
	// E0 (ROM end).
	logical := []byte{0xF0, 0xF1, 'v', 0xF2, 0xF6, 0x00, 0x01, 'b', 0xE2, 0xE0}

	words := packROMWords(logical)

	cmds, err := DecodeROM(words)
	require.NoError(t, err)

	require.Equal(t, []Command{
		CreateView{Name: "v"},
		SourceThisPod{},
		CreateSignalBit{Bit: 1, Name: "b"},
		EndSource{},
	}, cmds)
}

func TestDecodeROMRejectsUnknownOpcode(t *testing.T) {
	logical := []byte{0xF0, 0xFA, 0xE0}

	_, err := DecodeROM(packROMWords(logical))
	assert.Error(t, err)
}

func TestDecodeROMSourceHubPodAndVector(t *testing.T) {
	// F3 hub=2 pod=3 (source hub/pod), F7 hi=0007 lo=0004 "v" (vector).
	logical := []byte{
		0xF0, 0xF3, 0x02, 0x03,
		0xF7, 0x00, 0x07, 0x00, 0x04, 'v',
		0xE2, 0xE0,
	}

	cmds, err := DecodeROM(packROMWords(logical))
	require.NoError(t, err)

	require.Equal(t, []Command{
		SourceHubPod{Hub: 2, Pod: 3},
		CreateSignalVector{Hi: 7, Lo: 4, Name: "v"},
		EndSource{},
	}, cmds)
}
