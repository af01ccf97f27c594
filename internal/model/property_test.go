package model

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/blackmesalabs/sump3/internal/topology"
)

// genView draws a view with a random timezone and a random single
// user-control binding on a random pod, so Apply sequences exercise
// both timezone refusal and clash eviction.
func genView(t *rapid.T, name string) *View {
	tz := rapid.SampledFrom([]string{"ls", "hs", "rle"}).Draw(t, "tz")
	pod := topology.PodKey{
		Hub: byte(rapid.IntRange(0, 2).Draw(t, "hub")),
		Pod: byte(rapid.IntRange(0, 2).Draw(t, "pod")),
	}
	value := uint32(rapid.IntRange(0, 3).Draw(t, "value"))

	return &View{
		Name:     name,
		Timezone: tz,
		HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{
			pod: {{Pod: pod, Hi: 1, Lo: 0, Value: value}},
		},
	}
}

// TestApplyViewWindowTimezoneInvariant checks that after any sequence
// of ApplyView calls, every window's attached views all share its
// timezone.
func TestApplyViewWindowTimezoneInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cat := NewCatalog()

		steps := rapid.IntRange(1, 20).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			v := genView(t, fmt.Sprintf("v%d", i))
			win := rapid.IntRange(1, 3).Draw(t, "win")

			// ApplyView may legitimately refuse on timezone mismatch;
			// that's not a violation, just a no-op for this step.
			_, _ = cat.ApplyView(v, win)

			for _, w := range cat.Windows {
				for _, attached := range w.Views {
					if attached.Timezone != w.Timezone {
						t.Fatalf("window %d timezone %q holds view %q with timezone %q",
							w.Index, w.Timezone, attached.Name, attached.Timezone)
					}
				}
			}
		}
	})
}

// TestApplyViewNoSurvivingClash checks that after any sequence of
// ApplyView calls, no two attached views disagree on an overlapping
// user-control bit-rip for the same pod.
func TestApplyViewNoSurvivingClash(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cat := NewCatalog()

		steps := rapid.IntRange(1, 20).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			v := genView(t, fmt.Sprintf("v%d", i))
			win := rapid.IntRange(1, 3).Draw(t, "win")

			_, _ = cat.ApplyView(v, win)

			attached := cat.allAttachedViews()
			for i := range attached {
				for j := range attached {
					if i == j {
						continue
					}

					if clashes(attached[i], attached[j]) {
						t.Fatalf("views %q and %q clash while both attached", attached[i].Name, attached[j].Name)
					}
				}
			}
		}
	})
}
