package sumphost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmesalabs/sump3/internal/archive"
)

func writeArchive(t *testing.T, a *archive.Archive) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "capture.pza")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, a.Save(f))

	return path
}

func TestLoadPZAPopulatesCaptureConfigAndFlagsDisconnected(t *testing.T) {
	a := archive.New()
	a.Put(archive.FileCaptureCfg, []byte("hw_id = 83\ntick_freq = 100.0\n"))

	e := newTestEngine()
	require.NoError(t, e.LoadPZA(writeArchive(t, a)))

	assert.False(t, e.Connected)
	require.NotNil(t, e.CaptureCfg)
	assert.Equal(t, byte(0x53), e.CaptureCfg.HWID)
	assert.Equal(t, 100.0, e.CaptureCfg.TickFreqMHz)
}

func TestLoadPZASynthesizesMissingSampleFiles(t *testing.T) {
	a := archive.New()
	a.Put(archive.FileCaptureCfg, []byte("hw_id = 83\n"))

	e := newTestEngine()
	require.NoError(t, e.LoadPZA(writeArchive(t, a)))

	for _, name := range []string{archive.FileLSSamples, archive.FileHSSamples, archive.FileRLESamples} {
		data, ok := e.Archive.File(name)
		require.True(t, ok, name)
		assert.Empty(t, data, name)
	}
}

func TestLoadPZARegistersEmbeddedViewROMs(t *testing.T) {
	a := archive.New()
	a.Put("rom_demo.txt", []byte("create_view demo\nsource digital_ls\ncreate_signal clk[0]\nend_view\n"))

	e := newTestEngine()
	require.NoError(t, e.LoadPZA(writeArchive(t, a)))

	_, ok := e.Catalog.ViewsOnTap["demo"]
	assert.True(t, ok)
	require.Len(t, e.Catalog.Signals, 1)
	assert.Equal(t, "clk", e.Catalog.Signals[0].Name)
}

func TestLoadPZARebindsSignalsFromSampleStreams(t *testing.T) {
	a := archive.New()
	a.Put("rom_demo.txt", []byte("create_view demo\nsource digital_ls\ncreate_signal d[0]\nend_view\n"))
	a.Put(archive.FileLSSamples, []byte("10 2 00000005\n01 3 00000006\n"))

	e := newTestEngine()
	require.NoError(t, e.LoadPZA(writeArchive(t, a)))

	require.Len(t, e.Catalog.Signals, 1)
	assert.Equal(t, []int64{1, 0}, e.Catalog.Signals[0].Values)
}

func TestLoadPZARebindsRLESections(t *testing.T) {
	rom := "create_view rleview\nsource_hub_pod 0 1\ncreate_signal r[0]\nend_view\n"
	samples := "# pod 0,1 user_ctrl 00000000\n10 2 0\n01 3 100\n"

	a := archive.New()
	a.Put("rom_rleview.txt", []byte(rom))
	a.Put(archive.FileRLESamples, []byte(samples))

	e := newTestEngine()
	require.NoError(t, e.LoadPZA(writeArchive(t, a)))

	require.Len(t, e.Catalog.Signals, 1)
	sig := e.Catalog.Signals[0]
	assert.Equal(t, []int64{1, 0}, sig.Values)
	assert.Equal(t, []int64{0, 100}, sig.RLETime)
}

func TestLoadPZARejectsInvalidCaptureConfig(t *testing.T) {
	a := archive.New()
	a.Put(archive.FileCaptureCfg, []byte("dig_ram_depth = 10\nls_post_trig_samples = 11\n"))

	e := newTestEngine()
	assert.Error(t, e.LoadPZA(writeArchive(t, a)))
}

func TestParseRLESectionsGroupsByPodHeader(t *testing.T) {
	data := []byte("# pod 0,1 user_ctrl 000000aa\n1 2 0\n# pod 2,3 user_ctrl 00000000\n0 3 10\n")

	sections := parseRLESections(data)
	require.Len(t, sections, 2)
	assert.Equal(t, uint32(0xAA), sections[0].userCtrl)
	assert.Equal(t, []string{"1 2 0"}, sections[0].lines)
	assert.Equal(t, byte(2), sections[1].pod.Hub)
	assert.Equal(t, []string{"0 3 10"}, sections[1].lines)
}
