package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blackmesalabs/sump3/internal/topology"
)

// ParseContext is the explicit collaborator that replaces the legacy
// process-wide singletons (last-view-created, group stack, view-ontap
// list) while a normalized command stream is applied to a Catalog.
type ParseContext struct {
	Catalog      *Catalog
	DefaultColor string

	thisPod topology.PodKey

	currentView   *View
	groupStack    []*Signal
	currentSource *Source
	lastCreated   *Signal
}

// NewParseContext builds a context for interpreting one pod's
// (or the core's) normalized command stream. thisPod is the pod whose
// ROM is being parsed, used by SourceThisPod.
func NewParseContext(cat *Catalog, thisPod topology.PodKey, defaultColor string) *ParseContext {
	return &ParseContext{Catalog: cat, DefaultColor: defaultColor, thisPod: thisPod}
}

// Apply interprets a normalized command stream, creating Views,
// Groups, and Signals in the Catalog's arena.
func (pc *ParseContext) Apply(cmds []topology.Command) {
	for _, cmd := range cmds {
		switch v := cmd.(type) {
		case topology.CreateView:
			view := &View{Name: v.Name, HubPodUserCtrl: map[topology.PodKey][]UserCtrlBit{}}
			pc.Catalog.ViewsOnTap[view.Name] = view
			pc.currentView = view
		case topology.EndView:
			pc.currentView = nil
		case topology.AddView:
			// Already registered in ViewsOnTap at CreateView; explicit
			// in some persisted ROM text, implicit from the hardware
			// byte-code.
		case topology.CreateGroup:
			g := &Signal{Name: v.Name, Kind: KindGroup, ParentGroup: pc.currentGroup()}
			pc.inheritMeta(g)
			pc.Catalog.Signals = append(pc.Catalog.Signals, g)
			pc.groupStack = append(pc.groupStack, g)
			pc.lastCreated = g
		case topology.EndGroup:
			if len(pc.groupStack) > 0 {
				pc.groupStack = pc.groupStack[:len(pc.groupStack)-1]
			}
		case topology.SourceThisPod:
			pc.currentSource = &Source{Kind: SourceDigitalRLE, Pod: pc.thisPod}
		case topology.SourceHubPod:
			pc.currentSource = &Source{Kind: SourceDigitalRLE, Pod: topology.PodKey{Hub: v.Hub, Pod: v.Pod}}
		case topology.SourceByName:
			pc.currentSource = resolveNamedSource(v.Name)
		case topology.EndSource:
			pc.currentSource = nil
		case topology.CreateSignalBit:
			sig := pc.newSignalWithDescriptor(v.Name, v.Bit, v.Bit, v.Source)
			pc.Catalog.Signals = append(pc.Catalog.Signals, sig)
			pc.lastCreated = sig
		case topology.CreateSignalVector:
			sig := pc.newSignalWithDescriptor(v.Name, v.Hi, v.Lo, v.Source)
			pc.Catalog.Signals = append(pc.Catalog.Signals, sig)
			pc.lastCreated = sig
		case topology.CreateBitGroup:
			lo, hi := v.Lo, v.Hi
			if lo > hi {
				lo, hi = hi, lo
			}

			for bit := lo; bit <= hi; bit++ {
				sig := pc.newSignal(fmt.Sprintf("%s[%d]", v.Name, bit), bit, bit)
				pc.Catalog.Signals = append(pc.Catalog.Signals, sig)
				pc.lastCreated = sig
			}
		case topology.CreateFSMState:
			if pc.lastCreated != nil {
				if pc.lastCreated.FSMStates == nil {
					pc.lastCreated.FSMStates = map[int]string{}
				}

				pc.lastCreated.FSMStates[v.Value] = v.Name
			}
		case topology.ApplyAttribute:
			if pc.lastCreated != nil {
				applyAttributes(pc.lastCreated, v.Attrs)
			}
		case topology.FreeformCommand:
			// bd_shell passthrough: out of scope for the core.
		}
	}
}

func (pc *ParseContext) currentGroup() *Signal {
	if len(pc.groupStack) == 0 {
		return nil
	}

	return pc.groupStack[len(pc.groupStack)-1]
}

// newSignalWithDescriptor creates a signal whose source comes from an
// explicit descriptor when the command carries one, falling back to
// the stream's current source otherwise. A descriptor without its own
// bit-rip takes the name's hi:lo.
func (pc *ParseContext) newSignalWithDescriptor(name string, hi, lo int, descriptor string) *Signal {
	if descriptor == "" {
		return pc.newSignal(name, hi, lo)
	}

	src, err := ParseSourceDescriptor(descriptor)
	if err != nil {
		return pc.newSignal(name, hi, lo)
	}

	if src.Hi < 0 {
		src.Hi, src.Lo = hi, lo
	}

	saved := pc.currentSource
	pc.currentSource = src

	sig := pc.newSignal(name, src.Hi, src.Lo)

	pc.currentSource = saved

	return sig
}

func (pc *ParseContext) newSignal(name string, hi, lo int) *Signal {
	src := pc.currentSource
	if src != nil {
		withRip := *src
		withRip.Hi, withRip.Lo = hi, lo
		src = &withRip
	}

	kind := KindDigital
	if src != nil && src.Kind == SourceAnalogLS {
		kind = KindAnalog
	}

	sig := &Signal{Name: name, Kind: kind, Source: src, ParentGroup: pc.currentGroup()}
	pc.inheritMeta(sig)

	return sig
}

// ParseSourceDescriptor parses an explicit source descriptor of the
// shape analog_ls[ch], digital_ls[bit|hi:lo], digital_hs[bit|hi:lo],
// or digital_rle[hub][pod][bit|hi:lo]. A missing trailing bit-rip
// leaves Hi and Lo at -1 for the caller to fill in.
func ParseSourceDescriptor(desc string) (*Source, error) {
	base, groups := splitBracketGroups(desc)

	src := &Source{Hi: -1, Lo: -1}

	switch base {
	case "analog_ls":
		if len(groups) != 1 {
			return nil, fmt.Errorf("model: analog_ls wants one [ch] group, got %q", desc)
		}

		ch, err := strconv.Atoi(groups[0])
		if err != nil {
			return nil, fmt.Errorf("model: analog_ls channel %q: %w", groups[0], err)
		}

		src.Kind = SourceAnalogLS
		src.Channel = ch

		return src, nil
	case "digital_ls":
		src.Kind = SourceDigitalLS
	case "digital_hs":
		src.Kind = SourceDigitalHS
	case "digital_rle":
		if len(groups) < 2 {
			return nil, fmt.Errorf("model: digital_rle wants [hub][pod] groups, got %q", desc)
		}

		hub, err := strconv.Atoi(groups[0])
		if err != nil {
			return nil, fmt.Errorf("model: digital_rle hub %q: %w", groups[0], err)
		}

		pod, err := strconv.Atoi(groups[1])
		if err != nil {
			return nil, fmt.Errorf("model: digital_rle pod %q: %w", groups[1], err)
		}

		src.Kind = SourceDigitalRLE
		src.Pod = topology.PodKey{Hub: byte(hub), Pod: byte(pod)}
		groups = groups[2:]
	default:
		return nil, fmt.Errorf("model: unknown source descriptor %q", desc)
	}

	if len(groups) > 1 {
		return nil, fmt.Errorf("model: too many bit-rip groups in %q", desc)
	}

	if len(groups) == 1 {
		hi, lo, err := parseRip(groups[0])
		if err != nil {
			return nil, fmt.Errorf("model: bit rip in %q: %w", desc, err)
		}

		src.Hi, src.Lo = hi, lo
	}

	return src, nil
}

func splitBracketGroups(desc string) (string, []string) {
	base, rest, ok := strings.Cut(desc, "[")
	if !ok {
		return desc, nil
	}

	var groups []string

	for _, part := range strings.Split(rest, "[") {
		groups = append(groups, strings.TrimSuffix(strings.TrimSpace(part), "]"))
	}

	return base, groups
}

func parseRip(group string) (int, int, error) {
	if hi, lo, isRange := strings.Cut(group, ":"); isRange {
		hiN, err := strconv.Atoi(hi)
		if err != nil {
			return 0, 0, err
		}

		loN, err := strconv.Atoi(lo)
		if err != nil {
			return 0, 0, err
		}

		return hiN, loN, nil
	}

	bit, err := strconv.Atoi(group)
	if err != nil {
		return 0, 0, err
	}

	return bit, bit, nil
}

func resolveNamedSource(name string) *Source {
	switch name {
	case "analog_ls":
		return &Source{Kind: SourceAnalogLS}
	case "digital_ls":
		return &Source{Kind: SourceDigitalLS}
	case "digital_hs":
		return &Source{Kind: SourceDigitalHS}
	default:
		// An un-rewritten dotted hub.pod name: the topology package's
		// RewriteSources should have turned this into SourceHubPod
		// before the stream reaches the builder; anything left is
		// unresolvable here.
		return nil
	}
}

func timezoneFromSource(src *Source) string {
	if src == nil {
		return ""
	}

	switch src.Kind {
	case SourceAnalogLS, SourceDigitalLS:
		return "ls"
	case SourceDigitalHS:
		return "hs"
	case SourceDigitalRLE:
		return "rle"
	default:
		return ""
	}
}

// inheritMeta applies the signal-creation inheritance rules, in
// order: timezone from source, view name from the open view, group
// attributes from the enclosing group, user-control merge from the
// view, and color fallback through group -> view -> configured
// default.
func (pc *ParseContext) inheritMeta(sig *Signal) {
	if sig.Timezone == "" {
		sig.Timezone = timezoneFromSource(pc.currentSource)
	}

	if sig.ViewName == "" && pc.currentView != nil {
		sig.ViewName = pc.currentView.Name
	}

	if g := pc.currentGroup(); g != nil {
		sig.ViewName = g.ViewName
		sig.Timezone = g.Timezone
		sig.UserCtrlList = append([]UserCtrlBit{}, g.UserCtrlList...)
		sig.RLEMasked = g.RLEMasked
		sig.Hidden = g.Hidden
		sig.Visible = g.Visible
	}

	if sig.ViewName != "" {
		if view, ok := pc.Catalog.ViewsOnTap[sig.ViewName]; ok {
			sig.UserCtrlList = mergeUserCtrl(sig.UserCtrlList, view.UserCtrlBindings)
		}
	}

	if sig.Color == "" {
		switch {
		case pc.currentGroup() != nil && pc.currentGroup().Color != "":
			sig.Color = pc.currentGroup().Color
		case sig.ViewName != "" && pc.Catalog.ViewsOnTap[sig.ViewName] != nil && pc.Catalog.ViewsOnTap[sig.ViewName].Color != "":
			sig.Color = pc.Catalog.ViewsOnTap[sig.ViewName].Color
		default:
			sig.Color = pc.DefaultColor
		}
	}
}

func mergeUserCtrl(existing, extra []UserCtrlBit) []UserCtrlBit {
	out := append([]UserCtrlBit{}, existing...)

	for _, e := range extra {
		found := false

		for _, have := range out {
			if have.Pod == e.Pod && have.Hi == e.Hi && have.Lo == e.Lo {
				found = true

				break
			}
		}

		if !found {
			out = append(out, e)
		}
	}

	return out
}

func applyAttributes(sig *Signal, attrs map[string]string) {
	if color, ok := attrs["color"]; ok {
		sig.Color = color
	}

	if format, ok := attrs["format"]; ok {
		switch format {
		case "hex":
			sig.Format = FormatHex
		case "analog":
			sig.Format = FormatAnalog
		default:
			sig.Format = FormatBinary
		}
	}

	if _, ok := attrs["hidden"]; ok {
		sig.Hidden = true
	}

	if _, ok := attrs["masked"]; ok {
		sig.RLEMasked = true
	}

	if _, ok := attrs["trigger"]; ok {
		sig.Trigger = true
	}

	if _, ok := attrs["triggerable"]; ok {
		sig.Triggerable = true
	}

	applyUnitAttr(attrs, "units_per_code", &sig.Units.UnitsPerCode)
	applyUnitAttr(attrs, "offset_units", &sig.Units.OffsetUnits)
	applyUnitAttr(attrs, "range", &sig.Units.Range)
	applyUnitAttr(attrs, "units_per_division", &sig.Units.UnitsPerDivision)
	applyUnitAttr(attrs, "divisions_per_range", &sig.Units.DivisionsPerRange)
	applyUnitAttr(attrs, "vertical_offset", &sig.Units.VerticalOffset)
}

func applyUnitAttr(attrs map[string]string, key string, dst *float64) {
	raw, ok := attrs[key]
	if !ok {
		return
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		*dst = v
	}
}
