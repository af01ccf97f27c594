package decode

import (
	"testing"

	"pgregory.net/rapid"
)

// TestDecodeRLEPagesRoundTripsArbitraryWidths checks that for any
// timestamp/data bit width split (including ones not a multiple of
// 4), packing a (code, time, data) triple into the shared container
// and decoding it recovers exactly the same triple.
func TestDecodeRLEPagesRoundTripsArbitraryWidths(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tsBits := rapid.IntRange(1, 24).Draw(t, "tsBits")
		dataBits := rapid.IntRange(1, 24).Draw(t, "dataBits")

		totalBits := 2 + tsBits + dataBits
		pages := (totalBits + 31) / 32

		code := uint64(rapid.IntRange(0, 3).Draw(t, "code"))
		ts := rapid.Uint64Range(0, (uint64(1)<<uint(tsBits))-1).Draw(t, "ts")
		data := rapid.Uint64Range(0, (uint64(1)<<uint(dataBits))-1).Draw(t, "data")

		combined := (code << uint(tsBits+dataBits)) | (ts << uint(dataBits)) | data

		containerBits := pages * 32
		combined <<= uint(containerBits - totalBits)

		pageRows := make([][]uint32, pages)
		for i := 0; i < pages; i++ {
			shift := uint(containerBits - 32*(i+1))
			pageRows[i] = []uint32{uint32(combined >> shift)}
		}

		samples, err := DecodeRLEPages(pageRows, 0, dataBits, tsBits)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		if samples[0].Code != int(code) {
			t.Fatalf("code: got %d want %d", samples[0].Code, code)
		}

		if samples[0].Time != ts {
			t.Fatalf("time: got %d want %d", samples[0].Time, ts)
		}

		if samples[0].Data != data {
			t.Fatalf("data: got %d want %d", samples[0].Data, data)
		}
	})
}

// TestApplyTriggerOffsetZerosTriggerForAnyInput checks that whatever
// the sample set, trigger position, clock scaling, and latency
// registers — including the non-zero cycle counts a real pod latches
// — the trigger sample's emitted time is always exactly 0, every
// pre-trigger sample keeps its distance to the trigger, and every
// post-trigger sample likewise.
func TestApplyTriggerOffsetZerosTriggerForAnyInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 16).Draw(t, "n")
		triggerPos := rapid.IntRange(0, n-1).Draw(t, "triggerPos")
		psPerClock := rapid.Int64Range(1, 1_000_000).Draw(t, "psPerClock")

		params := TriggerOffsetParams{
			TriggerSourceMISOLatencyPS: rapid.Int64Range(0, 1_000_000).Draw(t, "misoPS"),
			PodCoreClockPS:             psPerClock,
			TriggerCoreCycles:          rapid.Int64Range(0, 255).Draw(t, "coreCycles"),
			PodClockPS:                 psPerClock,
			TriggerMOSICycles:          rapid.Int64Range(0, 255).Draw(t, "mosiCycles"),
		}

		samples := make([]RLESample, n)
		for i := range samples {
			samples[i] = RLESample{Time: rapid.Uint64Range(0, 1<<40).Draw(t, "time")}
		}

		out := ApplyTriggerOffset(samples, triggerPos, psPerClock, params)

		if out[triggerPos].TimePS != 0 {
			t.Fatalf("trigger sample time: got %d want 0 (offset %d)", out[triggerPos].TimePS, params.FixedOffsetPS())
		}

		for i := range out {
			want := (int64(samples[i].Time) - int64(samples[triggerPos].Time)) * psPerClock
			if out[i].TimePS != want {
				t.Fatalf("sample %d: got %d want %d", i, out[i].TimePS, want)
			}
		}
	})
}
