package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmesalabs/sump3/internal/hwdriver"
	"github.com/blackmesalabs/sump3/internal/topology"
)

func TestBuildArmPlanCollapsesUserCtrlPerPod(t *testing.T) {
	cat := NewCatalog()
	pod := topology.PodKey{Hub: 0, Pod: 1}

	v := &View{
		Name: "v",
		HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{
			pod: {
				{Pod: pod, Hi: 0, Lo: 0, Value: 1},
				{Pod: pod, Hi: 3, Lo: 2, Value: 2},
			},
		},
	}
	cat.Windows[0].Views = append(cat.Windows[0].Views, v)

	plan := BuildArmPlan(cat)

	addr := hwdriver.PodAddr{Hub: 0, Pod: 1}
	assert.Equal(t, uint32(0b1001), plan.UserControl[addr])
}

func TestBuildArmPlanComputesRLEMaskFromMaskedSignals(t *testing.T) {
	cat := NewCatalog()
	pod := topology.PodKey{Hub: 0, Pod: 2}

	cat.Signals = []*Signal{
		{Name: "a", RLEMasked: true, Source: &Source{Kind: SourceDigitalRLE, Pod: pod, Hi: 1, Lo: 0}},
		{Name: "b", RLEMasked: false, Source: &Source{Kind: SourceDigitalRLE, Pod: pod, Hi: 3, Lo: 3}},
		{Name: "c", RLEMasked: true, Source: &Source{Kind: SourceDigitalRLE, Pod: pod, Hi: 5, Lo: 5}},
	}

	plan := BuildArmPlan(cat)

	addr := hwdriver.PodAddr{Hub: 0, Pod: 2}
	assert.Equal(t, uint32(0b100011), plan.RLEMask[addr])
}

func TestApplyWindowTimingStampsMatchingWindowsOnly(t *testing.T) {
	cat := NewCatalog()

	lsView := &View{Name: "ls_view", Timezone: "ls", HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{}}
	hsView := &View{Name: "hs_view", Timezone: "hs", HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{}}

	_, err := cat.ApplyView(lsView, 1)
	assert.NoError(t, err)

	_, err = cat.ApplyView(hsView, 2)
	assert.NoError(t, err)

	cat.Signals = []*Signal{
		{Name: "a", ViewName: "ls_view", Values: make([]int64, 10)},
		{Name: "b", ViewName: "ls_view", Values: make([]int64, 7)},
		{Name: "c", ViewName: "hs_view", Values: make([]int64, 3)},
	}

	ApplyWindowTiming(cat, "ls", WindowTiming{SamplePeriodPS: 10000, TriggerIndex: 4})

	lsWin := cat.WindowByIndex(1)
	assert.Equal(t, int64(10000), lsWin.SamplePeriodPS)
	assert.Equal(t, 4, lsWin.TriggerIndex)
	assert.Equal(t, 10, lsWin.TotalSamples)

	hsWin := cat.WindowByIndex(2)
	assert.Zero(t, hsWin.SamplePeriodPS)
	assert.Zero(t, hsWin.TriggerIndex)
	assert.Zero(t, hsWin.TotalSamples)
}

func TestAnalogTriggerFromCatalogConvertsLevelToCode(t *testing.T) {
	cat := NewCatalog()
	cat.Signals = []*Signal{
		{
			Name:        "vsense",
			Kind:        KindAnalog,
			Trigger:     true,
			Triggerable: true,
			Source:      &Source{Kind: SourceAnalogLS, Channel: 2},
			Units:       Units{UnitsPerCode: 0.5, OffsetUnits: 1.0},
		},
	}

	// (4.0 - 1.0) / 0.5 = code 6, channel 2 in the top byte.
	field, err := AnalogTriggerFromCatalog(cat, 4.0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2)<<24|uint32(6), field)
}

func TestAnalogTriggerFromCatalogRejectsZeroOrMultipleSelections(t *testing.T) {
	cat := NewCatalog()

	_, err := AnalogTriggerFromCatalog(cat, 1.0)
	require.Error(t, err)

	mk := func(name string, ch int) *Signal {
		return &Signal{
			Name:        name,
			Kind:        KindAnalog,
			Trigger:     true,
			Triggerable: true,
			Source:      &Source{Kind: SourceAnalogLS, Channel: ch},
			Units:       Units{UnitsPerCode: 1},
		}
	}

	cat.Signals = []*Signal{mk("a", 0), mk("b", 1)}

	_, err = AnalogTriggerFromCatalog(cat, 1.0)
	assert.Error(t, err)
}

func TestPodKeysWithRLESourceDedupes(t *testing.T) {
	podA := topology.PodKey{Hub: 0, Pod: 1}
	podB := topology.PodKey{Hub: 0, Pod: 2}

	cat := NewCatalog()
	cat.Signals = []*Signal{
		{Source: &Source{Kind: SourceDigitalRLE, Pod: podA}},
		{Source: &Source{Kind: SourceDigitalRLE, Pod: podA}},
		{Source: &Source{Kind: SourceDigitalRLE, Pod: podB}},
		{Source: &Source{Kind: SourceDigitalLS}},
	}

	keys := PodKeysWithRLESource(cat)
	assert.ElementsMatch(t, []topology.PodKey{podA, podB}, keys)
}
