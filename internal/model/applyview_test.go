package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmesalabs/sump3/internal/topology"
)

func TestApplyViewRefusesTimezoneMismatch(t *testing.T) {
	cat := NewCatalog()
	ls := &View{Name: "ls_view", Timezone: "ls", HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{}}
	hs := &View{Name: "hs_view", Timezone: "hs", HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{}}

	_, err := cat.ApplyView(ls, 1)
	require.NoError(t, err)

	_, err = cat.ApplyView(hs, 1)
	require.Error(t, err)
}

func TestApplyViewReattachesToNewWindow(t *testing.T) {
	cat := NewCatalog()
	v := &View{Name: "v", Timezone: "ls", HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{}}

	_, err := cat.ApplyView(v, 1)
	require.NoError(t, err)
	assert.Len(t, cat.WindowByIndex(1).Views, 1)

	_, err = cat.ApplyView(v, 2)
	require.NoError(t, err)
	assert.Len(t, cat.WindowByIndex(1).Views, 0)
	assert.Len(t, cat.WindowByIndex(2).Views, 1)
}

func TestApplyViewEvictsClashingViewOnSharedPod(t *testing.T) {
	cat := NewCatalog()
	pod := topology.PodKey{Hub: 0, Pod: 1}

	a := &View{
		Name: "a", Timezone: "rle",
		HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{pod: {{Pod: pod, Hi: 1, Lo: 0, Value: 0x1}}},
	}
	b := &View{
		Name: "b", Timezone: "rle",
		HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{pod: {{Pod: pod, Hi: 1, Lo: 0, Value: 0x2}}},
	}

	_, err := cat.ApplyView(a, 1)
	require.NoError(t, err)

	removed, err := cat.ApplyView(b, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, removed)
	assert.Len(t, cat.WindowByIndex(1).Views, 0)
}

func TestApplyViewAllowsNonClashingDifferentPods(t *testing.T) {
	cat := NewCatalog()
	podA := topology.PodKey{Hub: 0, Pod: 1}
	podB := topology.PodKey{Hub: 0, Pod: 2}

	a := &View{
		Name: "a", Timezone: "rle",
		HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{podA: {{Pod: podA, Hi: 0, Lo: 0, Value: 1}}},
	}
	b := &View{
		Name: "b", Timezone: "rle",
		HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{podB: {{Pod: podB, Hi: 0, Lo: 0, Value: 1}}},
	}

	_, err := cat.ApplyView(a, 1)
	require.NoError(t, err)

	removed, err := cat.ApplyView(b, 2)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Len(t, cat.WindowByIndex(1).Views, 1)
	assert.Len(t, cat.WindowByIndex(2).Views, 1)
}

func TestRemoveViewDropsItsSignals(t *testing.T) {
	cat := NewCatalog()
	v := &View{Name: "v", Timezone: "ls", HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{}}
	cat.Signals = []*Signal{
		{Name: "sig_a", ViewName: "v"},
		{Name: "sig_b", ViewName: "other"},
	}

	_, err := cat.ApplyView(v, 1)
	require.NoError(t, err)

	cat.RemoveView(v)

	require.Len(t, cat.Signals, 1)
	assert.Equal(t, "sig_b", cat.Signals[0].Name)
	assert.Len(t, cat.WindowByIndex(1).Views, 0)
}
