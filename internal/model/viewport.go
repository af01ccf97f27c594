package model

// Viewport is a window's derived viewing state: how many samples are
// shown and where the visible span starts, with a history stack so
// zoom and pan steps can be unwound. Rendering itself happens in a
// collaborator; the model only keeps the numbers consistent with the
// window's sample count.
type Viewport struct {
	SamplesShown int
	StartOffset  int

	history []viewportState
}

type viewportState struct {
	samplesShown int
	startOffset  int
}

// Zoom scales the shown-sample count by num/den around the viewport
// center, clamped to [1, totalSamples], recording the prior state.
func (v *Viewport) Zoom(num, den, totalSamples int) {
	if den == 0 || totalSamples <= 0 {
		return
	}

	v.push()

	center := v.StartOffset + v.SamplesShown/2

	shown := v.SamplesShown * num / den
	if shown < 1 {
		shown = 1
	}

	if shown > totalSamples {
		shown = totalSamples
	}

	v.SamplesShown = shown
	v.StartOffset = clampOffset(center-shown/2, shown, totalSamples)
}

// Pan shifts the visible span by delta samples, clamped to the
// capture, recording the prior state.
func (v *Viewport) Pan(delta, totalSamples int) {
	if totalSamples <= 0 {
		return
	}

	v.push()
	v.StartOffset = clampOffset(v.StartOffset+delta, v.SamplesShown, totalSamples)
}

// Unwind restores the most recent recorded state, reporting whether
// there was one.
func (v *Viewport) Unwind() bool {
	if len(v.history) == 0 {
		return false
	}

	last := v.history[len(v.history)-1]
	v.history = v.history[:len(v.history)-1]
	v.SamplesShown = last.samplesShown
	v.StartOffset = last.startOffset

	return true
}

// Reset shows the whole capture and clears the history.
func (v *Viewport) Reset(totalSamples int) {
	v.SamplesShown = totalSamples
	v.StartOffset = 0
	v.history = nil
}

func (v *Viewport) push() {
	v.history = append(v.history, viewportState{samplesShown: v.SamplesShown, startOffset: v.StartOffset})
}

func clampOffset(offset, shown, total int) int {
	if offset > total-shown {
		offset = total - shown
	}

	if offset < 0 {
		offset = 0
	}

	return offset
}

// Cursor is one of a window's two measurement cursors. PixelPos is
// owned by the rendering collaborator; the model only tracks
// visibility and the cursor's time relative to the trigger.
type Cursor struct {
	Visible          bool
	DeltaToTriggerPS int64
	PixelPos         int
}

// PlaceCursor positions cursor n (0 or 1) at a sample index,
// deriving its trigger-relative time from the window's own sample
// period and trigger index.
func (w *Window) PlaceCursor(n, sampleIdx int) {
	if n < 0 || n >= len(w.Cursors) {
		return
	}

	w.Cursors[n].Visible = true
	w.Cursors[n].DeltaToTriggerPS = w.TimeAtSample(sampleIdx)
}

// TimeAtSample returns sample i's time relative to the trigger, in
// picoseconds.
func (w *Window) TimeAtSample(i int) int64 {
	return int64(i-w.TriggerIndex) * w.SamplePeriodPS
}

// CursorDeltaPS returns the time between the two cursors, meaningful
// only while both are visible.
func (w *Window) CursorDeltaPS() (int64, bool) {
	if !w.Cursors[0].Visible || !w.Cursors[1].Visible {
		return 0, false
	}

	return w.Cursors[1].DeltaToTriggerPS - w.Cursors[0].DeltaToTriggerPS, true
}
