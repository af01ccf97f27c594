package decode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// RLESample is one decoded RAM row: a 2-bit state code (1=pre-trig,
// 2=trigger, 3=post-trig, 0=invalid), a raw (not yet unwrapped)
// timestamp, and the data bits, all still in hardware units.
type RLESample struct {
	Code int
	Time uint64
	Data uint64
}

// RLESignedSample is a post-pipeline sample: signed picosecond time
// relative to the trigger.
type RLESignedSample struct {
	Code  int
	TimePS int64
	Data  uint64
}

// DecodeRLEPages reconstructs one pod's RAM rows from its raw pages.
// Each page holds 2^addrBits words; row i is formed by concatenating
// page[0][i]..page[last][i] MSB-first (transposing the per-page
// layout), then right-shifting off the zero padding the multi-DWORD
// container adds beyond the packed state_code+timestamp+data width,
// and finally splitting code, timestamp, and data off the top.
func DecodeRLEPages(pages [][]uint32, addrBits, dataBits, tsBits int) ([]RLESample, error) {
	if len(pages) == 0 {
		return nil, sumperr.New(sumperr.ConfigParse, "RLE decode: no pages supplied")
	}

	totalBits := 2 + tsBits + dataBits
	containerBits := len(pages) * 32
	padBits := containerBits - totalBits

	if padBits < 0 {
		return nil, sumperr.New(sumperr.ConfigParse,
			"RLE decode: %d pages (%d bits) too narrow for code+time+data width %d",
			len(pages), containerBits, totalBits)
	}

	rows := 1 << uint(addrBits)
	for _, p := range pages {
		if len(p) != rows {
			return nil, sumperr.New(sumperr.ConfigParse, "RLE decode: page length %d != 2^%d", len(p), addrBits)
		}
	}

	dataMask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(dataBits)), big.NewInt(1))
	timeMask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(tsBits)), big.NewInt(1))

	out := make([]RLESample, rows)

	combined := new(big.Int)

	for row := 0; row < rows; row++ {
		combined.SetInt64(0)

		for _, page := range pages {
			combined.Lsh(combined, 32)
			combined.Or(combined, big.NewInt(int64(page[row])))
		}

		combined.Rsh(combined, uint(padBits))

		data := new(big.Int).And(combined, dataMask)
		rest := new(big.Int).Rsh(combined, uint(dataBits))
		code := new(big.Int).And(new(big.Int).Rsh(rest, uint(tsBits)), big.NewInt(0x3))
		ts := new(big.Int).And(rest, timeMask)

		out[row] = RLESample{Code: int(code.Int64()), Time: ts.Uint64(), Data: data.Uint64()}
	}

	return out, nil
}

// RotateToTrigger finds the first trigger sample, then the next
// pre-trigger sample after it wrapping around the ring buffer (or
// falls back to the trigger itself if none precede it within one
// lap), and rotates the slice so that sample comes first. It returns
// the rotated slice and the index of the trigger sample within it.
func RotateToTrigger(samples []RLESample) ([]RLESample, int, error) {
	n := len(samples)
	if n == 0 {
		return nil, 0, sumperr.New(sumperr.SampleDecode, "RLE decode: empty sample set")
	}

	triggerIdx := -1

	for i, s := range samples {
		if s.Code == 2 {
			triggerIdx = i

			break
		}
	}

	if triggerIdx < 0 {
		return nil, 0, sumperr.New(sumperr.SampleDecode, "RLE decode: no trigger sample found")
	}

	start := triggerIdx

	for k := 1; k < n; k++ {
		i := (triggerIdx + k) % n
		if samples[i].Code == 1 {
			start = i

			break
		}
	}

	rotated := make([]RLESample, n)
	for i := range rotated {
		rotated[i] = samples[(start+i)%n]
	}

	triggerPos := (triggerIdx - start + n) % n

	return rotated, triggerPos, nil
}

// UnwrapTime tracks the MSB of the tsBits-wide timestamp field; once
// it is observed to rise and then fall (one full wrap), 2^tsBits is
// added to that sample and every one after it.
func UnwrapTime(samples []RLESample, tsBits int) []RLESample {
	if len(samples) == 0 {
		return samples
	}

	msb := func(t uint64) bool { return t&(1<<uint(tsBits-1)) != 0 }

	out := make([]RLESample, len(samples))
	out[0] = samples[0]

	prevMSB := msb(samples[0].Time)
	sawRise := prevMSB
	wrapped := false
	addAmount := uint64(1) << uint(tsBits)

	for i := 1; i < len(samples); i++ {
		cur := samples[i]
		curMSB := msb(cur.Time)

		if !wrapped && sawRise && prevMSB && !curMSB {
			wrapped = true
		}

		if curMSB {
			sawRise = true
		}

		t := cur.Time
		if wrapped {
			t += addAmount
		}

		out[i] = RLESample{Code: cur.Code, Time: t, Data: cur.Data}
		prevMSB = curMSB
	}

	return out
}

// CullResult is the outcome of TimeCull: the retained window and how
// many samples were dropped on each side.
type CullResult struct {
	Samples      []RLESample
	TriggerPos   int
	DroppedPre   int
	DroppedPost  int
}

// TimeCull walks outward from the trigger sample, requiring
// post-trigger timestamps to be strictly non-decreasing and
// pre-trigger timestamps (walking backward) to be strictly
// non-increasing; the first regression in either direction truncates
// the rest of that side.
func TimeCull(samples []RLESample, triggerPos int, logger *log.Logger) CullResult {
	last := samples[triggerPos].Time
	endIdx := len(samples)

	for i := triggerPos + 1; i < len(samples); i++ {
		if samples[i].Time < last {
			endIdx = i

			break
		}

		last = samples[i].Time
	}

	last = samples[triggerPos].Time
	startIdx := 0

	for i := triggerPos - 1; i >= 0; i-- {
		if samples[i].Time > last {
			startIdx = i + 1

			break
		}

		last = samples[i].Time
	}

	droppedPre := startIdx
	droppedPost := len(samples) - endIdx

	if logger != nil && (droppedPre > 0 || droppedPost > 0) {
		logger.Warn("RLE time-cull dropped regressed samples", "pre", droppedPre, "post", droppedPost)
	}

	return CullResult{
		Samples:     samples[startIdx:endIdx],
		TriggerPos:  triggerPos - startIdx,
		DroppedPre:  droppedPre,
		DroppedPost: droppedPost,
	}
}

// TriggerOffsetParams are the named tunables behind the legacy
// trigger-offset compensation formula; reimplementations should set
// these from the pod's actual trigger-latency registers rather than
// hard-coding them (see the open design question this resolves).
type TriggerOffsetParams struct {
	TriggerSourceMISOLatencyPS int64
	PodCoreClockPS             int64
	TriggerCoreCycles          int64
	PodClockPS                 int64
	TriggerMOSICycles          int64
}

// FixedOffsetPS computes the pod's constant picosecond latency offset.
// ApplyTriggerOffset adds it to every sample before anchoring the
// trigger at 0, so it cancels out of a single pod's timeline.
func (p TriggerOffsetParams) FixedOffsetPS() int64 {
	return p.TriggerSourceMISOLatencyPS +
		p.PodCoreClockPS*p.TriggerCoreCycles +
		p.PodClockPS*(p.TriggerMOSICycles-5)
}

// ApplyTriggerOffset scales every sample's timestamp to picoseconds
// at psPerClock, applies the pod's fixed latency offset, and then
// anchors the zero point at the trigger sample: whatever the latency
// registers latched, the emitted trigger time is exactly 0,
// pre-trigger times negative, post-trigger positive. The latency
// offset shifts every sample of one pod identically, so it cancels
// out of the pod's own timeline; callers aligning several pods
// against each other take it from params.FixedOffsetPS() directly
// instead of skewing any single pod's local zero.
func ApplyTriggerOffset(samples []RLESample, triggerPos int, psPerClock int64, params TriggerOffsetParams) []RLESignedSample {
	offset := params.FixedOffsetPS()

	out := make([]RLESignedSample, len(samples))

	for i, s := range samples {
		out[i] = RLESignedSample{Code: s.Code, TimePS: int64(s.Time)*psPerClock + offset, Data: s.Data}
	}

	anchor := out[triggerPos].TimePS
	for i := range out {
		out[i].TimePS -= anchor
	}

	return out
}

// EmitRLELines renders the final per-sample text lines: the data
// bits LSB-first (masked positions shown as 'X'), the state code, and
// the signed picosecond time.
func EmitRLELines(samples []RLESignedSample, dataBits int, mask uint32) []string {
	lines := make([]string, 0, len(samples))

	for _, s := range samples {
		var b strings.Builder

		for bit := 0; bit < dataBits; bit++ {
			if mask&(1<<uint(bit)) != 0 {
				b.WriteByte('X')

				continue
			}

			if s.Data&(1<<uint(bit)) != 0 {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}

		lines = append(lines, fmt.Sprintf("%s %d %d", b.String(), s.Code, s.TimePS))
	}

	return lines
}
