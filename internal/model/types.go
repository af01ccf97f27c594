// Package model binds decoded sample streams to named signals inside
// named views inside numbered windows: group hierarchies, user-control
// arbitration, and the timezone rules that keep a window's contents
// compatible with each other.
package model

import "github.com/blackmesalabs/sump3/internal/topology"

// SignalKind is the tagged-union discriminant for a Signal's shape,
// replacing the legacy single class with a variant "type" field.
type SignalKind int

const (
	KindAnalog SignalKind = iota
	KindDigital
	KindGroup
	KindSpacer
	KindClock
)

// SourceKind identifies which decoded stream a signal's bits come
// from.
type SourceKind int

const (
	SourceAnalogLS SourceKind = iota
	SourceDigitalLS
	SourceDigitalHS
	SourceDigitalRLE
)

// Source describes where a signal's raw bits live: an analog channel
// index, or a bit/vector rip within a digital stream (LS, HS, or an
// RLE pod).
type Source struct {
	Kind    SourceKind
	Channel int // analog_ls[ch]

	Pod topology.PodKey // digital_rle only

	Hi, Lo int // bit-rip; Hi == Lo for a single bit
}

// Format is the display rendering a digital or analog signal prefers.
type Format int

const (
	FormatBinary Format = iota
	FormatHex
	FormatAnalog
)

const noneSentinel = int64(-1 << 62)

// None is the sentinel value of Signal.Values standing for "no
// sample" (an analog slot the decoder marked invalid, or before the
// ls_ana_dig_alignment padding). RLE's own "masked/unknown" sentinel
// is the ordinary value -1, which None is not, since -1 is a valid
// analog/digital code.
const None = noneSentinel

// Units holds the per-sample scaling an analog signal's raw codes are
// rendered through.
type Units struct {
	UnitsPerCode     float64
	OffsetUnits      float64
	Range            float64
	UnitsPerDivision float64
	DivisionsPerRange float64
	VerticalOffset   float64
}

// UserCtrlBit is one (hub, pod, bit-rip, required value) binding: the
// user_ctrl word must carry Value at bits [Hi:Lo] for data sourced
// from that pod to be considered valid.
type UserCtrlBit struct {
	Pod    topology.PodKey
	Hi, Lo int
	Value  uint32
}

// Mask returns the bit mask this binding occupies within a 32-bit
// user_ctrl word.
func (u UserCtrlBit) Mask() uint32 {
	width := u.Hi - u.Lo + 1
	if width <= 0 || width > 32 {
		return 0
	}

	return ((uint32(1) << uint(width)) - 1) << uint(u.Lo)
}

// MaskedValue returns Value shifted into position and masked to this
// binding's bit-rip, for comparing against a captured user_ctrl word.
func (u UserCtrlBit) MaskedValue() uint32 {
	return (u.Value << uint(u.Lo)) & u.Mask()
}

// Signal is one named waveform, bound to raw decoded samples by the
// binding pass in binding.go.
type Signal struct {
	Name string
	Kind SignalKind

	Source *Source
	Format Format

	Timezone string
	ViewName string

	Visible bool
	Hidden  bool

	RLEMasked   bool
	Trigger     bool
	Triggerable bool
	Maskable    bool

	TriggerField uint32

	Units Units

	ParentGroup *Signal

	Color string

	Values   []int64
	RLETime  []int64 // parallel to Values, signed ps; RLE signals only

	FSMStates map[int]string

	UserCtrlList []UserCtrlBit

	UserCtrlInvalid bool
}

// Depth returns the signal's group-nesting depth, derived from its
// parent chain.
func (s *Signal) Depth() int {
	depth := 0
	for p := s.ParentGroup; p != nil; p = p.ParentGroup {
		depth++
	}

	return depth
}

// View is a named bundle of Signals that can be attached to at most
// one Window at a time.
type View struct {
	Name     string
	Timezone string
	Color    string

	UserCtrlBindings []UserCtrlBit
	HubPods          []topology.PodKey

	// HubPodUserCtrl is the per-(hub,pod) user-control list used for
	// arbitration: a subset of UserCtrlBindings grouped
	// by the pod each applies to.
	HubPodUserCtrl map[topology.PodKey][]UserCtrlBit

	attachedWindow int // 0 = unattached, else 1..3
}

// Window is one of three display regions.
type Window struct {
	Index    int
	Views    []*View
	Timezone string

	SamplePeriodPS int64
	TriggerIndex   int
	TotalSamples   int

	Viewport Viewport
	Cursors  [2]Cursor
}

// Catalog owns the arena of Signal nodes and the set of Views and
// Windows built from them, replacing the legacy process-wide
// singletons (last-view-created, group stack, view-ontap list) with
// an explicit collaborator.
type Catalog struct {
	Signals   []*Signal
	ViewsOnTap map[string]*View
	Windows   [3]*Window
}

// NewCatalog builds an empty catalog with its three windows
// pre-allocated (indices 1..3).
func NewCatalog() *Catalog {
	c := &Catalog{ViewsOnTap: map[string]*View{}}

	for i := range c.Windows {
		c.Windows[i] = &Window{Index: i + 1}
	}

	return c
}

// WindowByIndex returns window 1, 2, or 3.
func (c *Catalog) WindowByIndex(idx int) *Window {
	if idx < 1 || idx > 3 {
		return nil
	}

	return c.Windows[idx-1]
}
