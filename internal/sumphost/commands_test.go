package sumphost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmesalabs/sump3/internal/hwdriver"
	"github.com/blackmesalabs/sump3/internal/sumplog"
)

func newTestEngine() *Engine {
	return New(sumplog.Discard())
}

func TestExecuteBuildsAndAppliesAView(t *testing.T) {
	e := newTestEngine()

	lines := []string{
		"create_view demo",
		"source digital_ls",
		"create_signal clk[0]",
		"end_view",
		"apply_view demo 1",
	}

	for _, l := range lines {
		_, err := e.Execute(l)
		require.NoError(t, err)
	}

	require.Len(t, e.Catalog.Windows[0].Views, 1)
	assert.Equal(t, "demo", e.Catalog.Windows[0].Views[0].Name)
	require.Len(t, e.Catalog.Signals, 1)
	assert.Equal(t, "clk", e.Catalog.Signals[0].Name)
}

func TestExecuteRemoveViewDropsSignalsAndDetaches(t *testing.T) {
	e := newTestEngine()

	for _, l := range []string{
		"create_view demo",
		"source digital_ls",
		"create_signal a[0]",
		"end_view",
		"apply_view demo 1",
	} {
		_, err := e.Execute(l)
		require.NoError(t, err)
	}

	_, err := e.Execute("remove_view demo")
	require.NoError(t, err)

	assert.Empty(t, e.Catalog.Windows[0].Views)
	assert.Empty(t, e.Catalog.Signals)
}

func TestExecuteApplyViewUnknownNameErrors(t *testing.T) {
	e := newTestEngine()

	_, err := e.Execute("apply_view nosuchview 1")
	assert.Error(t, err)
}

func TestExecuteUnknownVerbErrors(t *testing.T) {
	e := newTestEngine()

	_, err := e.Execute("frobnicate 1 2 3")
	assert.Error(t, err)
}

func TestExecuteIgnoresBlankAndCommentLines(t *testing.T) {
	e := newTestEngine()

	for _, l := range []string{"", "   ", "# a comment"} {
		out, err := e.Execute(l)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestSetTrigsQueuesAndClearTrigsDrops(t *testing.T) {
	e := newTestEngine()

	_, err := e.Execute("sump_set_trigs 0 1 0x20 0x1")
	require.NoError(t, err)

	require.NotNil(t, e.pendingRLE)
	addr := hwdriver.PodAddr{Hub: 0, Pod: 1}
	assert.Equal(t, hwdriver.RLETriggerConfig(hwdriver.RLEPosition50, hwdriver.RLETrigPattern), e.pendingRLE.pods[addr])

	_, err = e.Execute("sump_clear_trigs")
	require.NoError(t, err)
	assert.Nil(t, e.pendingRLE)
}

func TestSumpArmWithoutConnectionFails(t *testing.T) {
	e := newTestEngine()

	_, err := e.Execute("sump_arm")
	assert.Error(t, err)
}
