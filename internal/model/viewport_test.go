package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewportZoomClampsAndUnwinds(t *testing.T) {
	v := Viewport{SamplesShown: 100, StartOffset: 0}

	v.Zoom(1, 2, 1000)
	assert.Equal(t, 50, v.SamplesShown)
	assert.Equal(t, 25, v.StartOffset)

	v.Zoom(1, 100, 1000)
	assert.Equal(t, 1, v.SamplesShown)

	require.True(t, v.Unwind())
	assert.Equal(t, 50, v.SamplesShown)

	require.True(t, v.Unwind())
	assert.Equal(t, 100, v.SamplesShown)
	assert.Equal(t, 0, v.StartOffset)

	assert.False(t, v.Unwind())
}

func TestViewportPanStaysInsideCapture(t *testing.T) {
	v := Viewport{SamplesShown: 100, StartOffset: 0}

	v.Pan(-50, 1000)
	assert.Equal(t, 0, v.StartOffset)

	v.Pan(2000, 1000)
	assert.Equal(t, 900, v.StartOffset)
}

func TestViewportResetClearsHistory(t *testing.T) {
	v := Viewport{SamplesShown: 100, StartOffset: 10}

	v.Pan(20, 1000)
	v.Reset(1000)

	assert.Equal(t, 1000, v.SamplesShown)
	assert.Equal(t, 0, v.StartOffset)
	assert.False(t, v.Unwind())
}

func TestPlaceCursorDerivesTriggerRelativeTime(t *testing.T) {
	w := &Window{Index: 1, SamplePeriodPS: 10000, TriggerIndex: 50}

	w.PlaceCursor(0, 40)
	w.PlaceCursor(1, 60)

	assert.Equal(t, int64(-100000), w.Cursors[0].DeltaToTriggerPS)
	assert.Equal(t, int64(100000), w.Cursors[1].DeltaToTriggerPS)

	delta, ok := w.CursorDeltaPS()
	require.True(t, ok)
	assert.Equal(t, int64(200000), delta)
}

func TestCursorDeltaRequiresBothVisible(t *testing.T) {
	w := &Window{Index: 1, SamplePeriodPS: 1}

	w.PlaceCursor(0, 5)

	_, ok := w.CursorDeltaPS()
	assert.False(t, ok)
}
