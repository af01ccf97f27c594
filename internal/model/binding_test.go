package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmesalabs/sump3/internal/topology"
)

func TestBindAnalogLSPadsAlignmentAndParsesHex(t *testing.T) {
	sig := &Signal{Name: "ch0", Source: &Source{Kind: SourceAnalogLS, Channel: 0}}
	lines := []string{
		"1010 0A None 1 5",
		"1010 0B None 1 6",
	}

	err := BindAnalogLS(sig, lines, 2)
	require.NoError(t, err)

	require.Len(t, sig.Values, 4)
	assert.Equal(t, None, sig.Values[0])
	assert.Equal(t, None, sig.Values[1])
	assert.Equal(t, int64(0x0A), sig.Values[2])
	assert.Equal(t, int64(0x0B), sig.Values[3])
}

func TestBindAnalogLSSecondChannelNone(t *testing.T) {
	sig := &Signal{Name: "ch1", Source: &Source{Kind: SourceAnalogLS, Channel: 1}}
	lines := []string{"1010 0A None 1 5"}

	err := BindAnalogLS(sig, lines, 0)
	require.NoError(t, err)

	// Alignment 0 falls back to the default of 4 leading None entries.
	require.Len(t, sig.Values, 5)
	assert.Equal(t, None, sig.Values[4])
}

func TestBindAnalogLSRejectsWrongSourceKind(t *testing.T) {
	sig := &Signal{Name: "bad", Source: &Source{Kind: SourceDigitalLS}}
	err := BindAnalogLS(sig, nil, 0)
	assert.Error(t, err)
}

func TestRipBitsExtractsVector(t *testing.T) {
	assert.Equal(t, int64(13), ripBits("1011", 3, 0))
	assert.Equal(t, int64(1), ripBits("1011", 0, 0))
	assert.Equal(t, int64(0), ripBits("1011", 1, 1))
}

func TestBindDigitalBitStringRipsVector(t *testing.T) {
	sig := &Signal{Name: "bus", Source: &Source{Kind: SourceDigitalLS, Hi: 3, Lo: 0}}
	lines := []string{"1011 2 0", "0001 2 1"}

	err := BindDigitalBitString(sig, lines)
	require.NoError(t, err)

	require.Len(t, sig.Values, 2)
	assert.Equal(t, int64(13), sig.Values[0])
	assert.Equal(t, int64(8), sig.Values[1])
}

func TestBindRLEMarksValuesAndTimes(t *testing.T) {
	pod := topology.PodKey{Hub: 0, Pod: 1}
	sig := &Signal{
		Name:   "rle_bit",
		Source: &Source{Kind: SourceDigitalRLE, Pod: pod, Hi: 1, Lo: 0},
	}
	lines := []string{"1010 2 0", "XX10 1 100"}

	err := BindRLE(sig, lines, 0)
	require.NoError(t, err)

	require.Len(t, sig.Values, 2)
	require.Len(t, sig.RLETime, 2)
	assert.Equal(t, int64(0b01), sig.Values[0])
	assert.Equal(t, int64(-1), sig.Values[1])
	assert.Equal(t, int64(0), sig.RLETime[0])
	assert.Equal(t, int64(100), sig.RLETime[1])
}

func TestBindRLEInvalidatesOnUserCtrlMismatch(t *testing.T) {
	pod := topology.PodKey{Hub: 0, Pod: 1}
	sig := &Signal{
		Name:         "rle_bit",
		Source:       &Source{Kind: SourceDigitalRLE, Pod: pod, Hi: 0, Lo: 0},
		UserCtrlList: []UserCtrlBit{{Pod: pod, Hi: 0, Lo: 0, Value: 1}},
	}

	err := BindRLE(sig, []string{"1 2 0"}, 0)
	require.NoError(t, err)

	assert.True(t, sig.UserCtrlInvalid)
	assert.True(t, sig.Hidden)
	assert.Empty(t, sig.Values)
	assert.Empty(t, sig.RLETime)
}

func TestBindRLEAcceptsMatchingUserCtrl(t *testing.T) {
	pod := topology.PodKey{Hub: 0, Pod: 1}
	sig := &Signal{
		Name:         "rle_bit",
		Source:       &Source{Kind: SourceDigitalRLE, Pod: pod, Hi: 0, Lo: 0},
		UserCtrlList: []UserCtrlBit{{Pod: pod, Hi: 0, Lo: 0, Value: 1}},
	}

	err := BindRLE(sig, []string{"1 2 0"}, 1)
	require.NoError(t, err)

	assert.False(t, sig.UserCtrlInvalid)
	require.Len(t, sig.Values, 1)
}
