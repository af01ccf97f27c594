package model

import (
	"math"

	"github.com/blackmesalabs/sump3/internal/hwdriver"
	"github.com/blackmesalabs/sump3/internal/sumperr"
	"github.com/blackmesalabs/sump3/internal/topology"
)

// BuildArmPlan computes the arm sequence's first two steps: collapse
// every attached view's required user-control bits to one word per
// (hub,pod), and recompute each pod's RLE bit-mask from every
// RLEMasked signal whose source targets it.
func BuildArmPlan(cat *Catalog) hwdriver.ArmPlan {
	plan := hwdriver.ArmPlan{
		UserControl: map[hwdriver.PodAddr]uint32{},
		RLEMask:     map[hwdriver.PodAddr]uint32{},
	}

	for _, win := range cat.Windows {
		for _, v := range win.Views {
			for pod, bits := range v.HubPodUserCtrl {
				addr := hwdriver.PodAddr{Hub: pod.Hub, Pod: pod.Pod}

				for _, b := range bits {
					plan.UserControl[addr] |= b.MaskedValue()
				}
			}
		}
	}

	for _, sig := range cat.Signals {
		if !sig.RLEMasked || sig.Source == nil || sig.Source.Kind != SourceDigitalRLE {
			continue
		}

		addr := hwdriver.PodAddr{Hub: sig.Source.Pod.Hub, Pod: sig.Source.Pod.Pod}

		width := sig.Source.Hi - sig.Source.Lo + 1
		if width <= 0 || width > 32 {
			continue
		}

		mask := ((uint32(1) << uint(width)) - 1) << uint(sig.Source.Lo)
		plan.RLEMask[addr] |= mask
	}

	return plan
}

// WindowTiming is the per-timezone timing facts derived once per
// download pass (sample period and trigger index), applied to every
// Window sharing that timezone since neither value varies per-window.
type WindowTiming struct {
	SamplePeriodPS int64
	TriggerIndex   int
}

// ApplyWindowTiming stamps every Window whose Timezone matches tz with
// the supplied timing and sets TotalSamples to the longest Values
// slice among the signals belonging to that window's views.
func ApplyWindowTiming(cat *Catalog, tz string, timing WindowTiming) {
	for _, win := range cat.Windows {
		if win.Timezone != tz {
			continue
		}

		win.SamplePeriodPS = timing.SamplePeriodPS
		win.TriggerIndex = timing.TriggerIndex
		win.TotalSamples = windowTotalSamples(cat, win)

		// A fresh capture invalidates any zoom/pan state carried over
		// from the previous one.
		win.Viewport.Reset(win.TotalSamples)
	}
}

func windowTotalSamples(cat *Catalog, win *Window) int {
	viewNames := make(map[string]bool, len(win.Views))
	for _, v := range win.Views {
		viewNames[v.Name] = true
	}

	total := 0

	for _, sig := range cat.Signals {
		if !viewNames[sig.ViewName] {
			continue
		}

		if len(sig.Values) > total {
			total = len(sig.Values)
		}
	}

	return total
}

// AnalogTriggerFromCatalog resolves the single selected triggerable
// analog signal and converts a trigger level in engineering units to
// the packed (channel << 24 | code) trigger field, using the signal's
// own offset and units-per-code scaling.
func AnalogTriggerFromCatalog(cat *Catalog, levelUnits float64) (uint32, error) {
	var chosen *Signal

	for _, sig := range cat.Signals {
		if sig.Kind != KindAnalog || !sig.Trigger || !sig.Triggerable {
			continue
		}

		if sig.Source == nil || sig.Source.Kind != SourceAnalogLS {
			continue
		}

		if chosen != nil {
			return 0, sumperr.New(sumperr.ConfigParse,
				"analog trigger: both %q and %q selected, want exactly one", chosen.Name, sig.Name)
		}

		chosen = sig
	}

	if chosen == nil {
		return 0, sumperr.New(sumperr.ConfigParse, "analog trigger: no triggerable analog signal selected")
	}

	if chosen.Units.UnitsPerCode == 0 {
		return 0, sumperr.New(sumperr.ConfigParse, "analog trigger: signal %q has no units-per-code scaling", chosen.Name)
	}

	code := int32(math.Round((levelUnits - chosen.Units.OffsetUnits) / chosen.Units.UnitsPerCode))

	return hwdriver.AnalogTriggerField(byte(chosen.Source.Channel), code), nil
}

// PodKeysWithRLESource returns every distinct pod a digital_rle signal
// in the catalog draws from, used to decide which pods' RAM a
// download pass needs to fetch.
func PodKeysWithRLESource(cat *Catalog) []topology.PodKey {
	seen := map[topology.PodKey]bool{}

	var out []topology.PodKey

	for _, sig := range cat.Signals {
		if sig.Source == nil || sig.Source.Kind != SourceDigitalRLE {
			continue
		}

		if !seen[sig.Source.Pod] {
			seen[sig.Source.Pod] = true
			out = append(out, sig.Source.Pod)
		}
	}

	return out
}
