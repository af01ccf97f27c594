package topology

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is one entry in the normalized view-definition stream
// produced by the view-ROM decoder (or, for a hand-authored ROM
// source, directly from text). Each concrete type below renders to
// (and parses from) the textual form persisted as rom_<view>.txt
// inside a project archive.
type Command interface {
	Text() string
}

type CreateView struct{ Name string }

func (c CreateView) Text() string { return "create_view " + c.Name }

type EndView struct{}

func (EndView) Text() string { return "end_view" }

// AddView marks the view most recently closed by EndView as available
// in the view-ontap catalog. The ROM byte-code language itself never
// emits this — it is an authoring convenience some persisted ROM text
// carries explicitly, and the loader also auto-registers any file
// whose text contains a CreateView regardless of whether AddView is
// present.
type AddView struct{}

func (AddView) Text() string { return "add_view" }

type CreateGroup struct{ Name string }

func (c CreateGroup) Text() string { return "create_group " + c.Name }

type EndGroup struct{}

func (EndGroup) Text() string { return "end_group" }

// SourceThisPod (F2) makes the enclosing pod (the one whose ROM this
// is) the source for following signals.
type SourceThisPod struct{}

func (SourceThisPod) Text() string { return "source_this_pod" }

// SourceHubPod (F3) sets an explicit (hub, pod) source.
type SourceHubPod struct{ Hub, Pod byte }

func (c SourceHubPod) Text() string { return fmt.Sprintf("source_hub_pod %d %d", c.Hub, c.Pod) }

// SourceByName (F4) sets a source by name, or one of the reserved
// timezone keywords analog_ls / digital_ls / digital_hs.
type SourceByName struct{ Name string }

func (c SourceByName) Text() string { return "source " + c.Name }

type EndSource struct{}

func (EndSource) Text() string { return "end_source" }

// CreateSignalBit (F6) names a single-bit signal at the given bit
// position within the current source. Source optionally carries an
// explicit source descriptor ("digital_rle[0][0][5]", "analog_ls[2]",
// ...) overriding the stream's current source; the ROM byte-code
// never emits one, but the scripting surface and persisted ROM text
// may.
type CreateSignalBit struct {
	Name   string
	Bit    int
	Source string
}

func (c CreateSignalBit) Text() string {
	return appendSource(fmt.Sprintf("create_signal %s[%d]", c.Name, c.Bit), c.Source)
}

// CreateSignalVector (F7) names a multi-bit signal spanning hi..lo.
type CreateSignalVector struct {
	Name   string
	Hi, Lo int
	Source string
}

func (c CreateSignalVector) Text() string {
	return appendSource(fmt.Sprintf("create_signal %s[%d:%d]", c.Name, c.Hi, c.Lo), c.Source)
}

func appendSource(text, source string) string {
	if source == "" {
		return text
	}

	return text + " -source " + source
}

// CreateFSMState (F8) names an integer state value for the most
// recently created FSM-typed signal.
type CreateFSMState struct {
	Value int
	Name  string
}

func (c CreateFSMState) Text() string { return fmt.Sprintf("create_fsm_state %d %s", c.Value, c.Name) }

// CreateBitGroup (F9) expands into one signal per bit in hi..lo,
// named name[n].
type CreateBitGroup struct {
	Name   string
	Hi, Lo int
}

func (c CreateBitGroup) Text() string {
	return fmt.Sprintf("create_bit_group %s[%d:%d]", c.Name, c.Hi, c.Lo)
}

// FreeformCommand (FD) is an opaque bd_shell command line. The core
// does not interpret bd_shell (out of scope); it only preserves the
// text so a collaborator that does can see it.
type FreeformCommand struct{ Text_ string }

func (c FreeformCommand) Text() string { return "shell " + c.Text_ }

// ApplyAttribute (FE) attaches comma-separated key=value pairs to the
// most recently created signal.
type ApplyAttribute struct{ Attrs map[string]string }

func (c ApplyAttribute) Text() string {
	keys := make([]string, 0, len(c.Attrs))
	for k := range c.Attrs {
		keys = append(keys, k)
	}

	sortStrings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+c.Attrs[k])
	}

	return "apply_attribute " + strings.Join(parts, ",")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// ParseAttributes splits FE's comma-separated key=value payload.
func ParseAttributes(payload string) map[string]string {
	attrs := map[string]string{}

	for _, kv := range strings.Split(payload, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}

		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}

		attrs[kv[:eq]] = kv[eq+1:]
	}

	return attrs
}

// RenderCommands serializes a command stream to the persisted text
// form, one command per line.
func RenderCommands(cmds []Command) string {
	var b strings.Builder

	for _, c := range cmds {
		b.WriteString(c.Text())
		b.WriteByte('\n')
	}

	return b.String()
}

// ParseCommands parses the persisted text form back into a command
// stream. It is a fixed point of RenderCommands applied to the
// decoder's own output, so persisted ROM text reloads losslessly.
func ParseCommands(text string) ([]Command, error) {
	var cmds []Command

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmd, err := parseCommandLine(line)
		if err != nil {
			return nil, err
		}

		cmds = append(cmds, cmd)
	}

	return cmds, nil
}

func parseCommandLine(line string) (Command, error) {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "create_view":
		return CreateView{Name: rest}, nil
	case "end_view":
		return EndView{}, nil
	case "add_view":
		return AddView{}, nil
	case "create_group":
		return CreateGroup{Name: rest}, nil
	case "end_group":
		return EndGroup{}, nil
	case "source_this_pod":
		return SourceThisPod{}, nil
	case "source_hub_pod":
		var hub, pod byte
		if _, err := fmt.Sscanf(rest, "%d %d", &hub, &pod); err != nil {
			return nil, fmt.Errorf("topology: parsing source_hub_pod %q: %w", rest, err)
		}

		return SourceHubPod{Hub: hub, Pod: pod}, nil
	case "source":
		return SourceByName{Name: rest}, nil
	case "end_source":
		return EndSource{}, nil
	case "create_signal":
		return parseCreateSignal(rest)
	case "create_fsm_state":
		var value int

		fields := strings.SplitN(rest, " ", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("topology: malformed create_fsm_state %q", rest)
		}

		v, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("topology: malformed create_fsm_state value %q: %w", fields[0], err)
		}

		value = v

		return CreateFSMState{Value: value, Name: fields[1]}, nil
	case "create_bit_group":
		return parseCreateBitGroup(rest)
	case "shell":
		return FreeformCommand{Text_: rest}, nil
	case "apply_attribute":
		return ApplyAttribute{Attrs: ParseAttributes(rest)}, nil
	default:
		return nil, fmt.Errorf("topology: unknown command verb %q", verb)
	}
}

func parseCreateSignal(rest string) (Command, error) {
	var source string
	if head, src, hasSrc := strings.Cut(rest, " -source "); hasSrc {
		rest = strings.TrimSpace(head)
		source = strings.TrimSpace(src)
	}

	name, rip, ok := strings.Cut(rest, "[")
	if !ok {
		// A ripless name is only meaningful when a source descriptor
		// supplies the bit position instead.
		if source != "" {
			return CreateSignalBit{Name: rest, Bit: 0, Source: source}, nil
		}

		return nil, fmt.Errorf("topology: malformed create_signal %q", rest)
	}

	rip = strings.TrimSuffix(rip, "]")

	if hi, lo, isRange := strings.Cut(rip, ":"); isRange {
		hiN, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("topology: malformed bit range %q: %w", rip, err)
		}

		loN, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("topology: malformed bit range %q: %w", rip, err)
		}

		return CreateSignalVector{Name: name, Hi: hiN, Lo: loN, Source: source}, nil
	}

	bit, err := strconv.Atoi(rip)
	if err != nil {
		return nil, fmt.Errorf("topology: malformed bit index %q: %w", rip, err)
	}

	return CreateSignalBit{Name: name, Bit: bit, Source: source}, nil
}

func parseCreateBitGroup(rest string) (Command, error) {
	name, rip, ok := strings.Cut(rest, "[")
	if !ok {
		return nil, fmt.Errorf("topology: malformed create_bit_group %q", rest)
	}

	rip = strings.TrimSuffix(rip, "]")

	hi, lo, ok := strings.Cut(rip, ":")
	if !ok {
		return nil, fmt.Errorf("topology: malformed create_bit_group range %q", rip)
	}

	hiN, err := strconv.Atoi(hi)
	if err != nil {
		return nil, fmt.Errorf("topology: malformed create_bit_group hi %q: %w", hi, err)
	}

	loN, err := strconv.Atoi(lo)
	if err != nil {
		return nil, fmt.Errorf("topology: malformed create_bit_group lo %q: %w", lo, err)
	}

	return CreateBitGroup{Name: name, Hi: hiN, Lo: loN}, nil
}
