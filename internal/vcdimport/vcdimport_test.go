package vcdimport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureVCD = `$var wire 1 ! clk $end
$var wire 4 " data [3:0] $end
$enddefinitions $end
$dumpvars
0!
b0000 "
$end
#0
1!
#10
0!
b0001 "
#20
`

func TestParseBuildsSymbolTableInDeclarationOrder(t *testing.T) {
	p, err := Parse(strings.NewReader(fixtureVCD))
	require.NoError(t, err)

	require.Equal(t, []string{"!", "\""}, p.Order)
	assert.Equal(t, Symbol{Name: "clk", NumBits: 1}, p.Symbols["!"])
	assert.Equal(t, Symbol{Name: "data", NumBits: 4, BitRip: "[3:0]"}, p.Symbols["\""])
}

func TestParseEmitsOneSampleAtEachTimeMarker(t *testing.T) {
	p, err := Parse(strings.NewReader(fixtureVCD))
	require.NoError(t, err)

	require.Len(t, p.Samples, 2)
	assert.Equal(t, "0", p.Samples[0].TimeStamp)
	assert.Equal(t, []string{"1", "0000"}, p.Samples[0].Values)
	assert.Equal(t, "10", p.Samples[1].TimeStamp)
	assert.Equal(t, []string{"0", "0001"}, p.Samples[1].Values)
}

func TestBuildViewROMRipsContiguousBits(t *testing.T) {
	p, err := Parse(strings.NewReader(fixtureVCD))
	require.NoError(t, err)

	lines := BuildViewROM(p)

	assert.Contains(t, lines, "create_signal clk -source digital_rle[0][0][0]")
	assert.Contains(t, lines, "create_signal data[3:0] -source digital_rle[0][0][4:1]")
}

func TestBuildRLESamplesAssignsCodesByPosition(t *testing.T) {
	p, err := Parse(strings.NewReader(fixtureVCD))
	require.NoError(t, err)

	lines := BuildRLESamples(p)

	assert.Contains(t, lines, "# pod 0,0 user_ctrl 00000000")

	// clk at rip position 0, data LSB-first at positions 4:1.
	assert.Contains(t, lines, "10000 1 0")
	assert.Contains(t, lines, "01000 2 10")
}

func TestImportProducesArchiveWithViewAndSamples(t *testing.T) {
	a, err := Import(strings.NewReader(fixtureVCD))
	require.NoError(t, err)

	rom, ok := a.File("rom_vcd_view.txt")
	require.True(t, ok)
	assert.Contains(t, string(rom), "create_view vcd_view")

	samples, ok := a.File("sump_rle_samples.txt")
	require.True(t, ok)
	assert.Contains(t, string(samples), "# pod 0,0 user_ctrl")
}
