package sumphost

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/blackmesalabs/sump3/internal/hwdriver"
	"github.com/blackmesalabs/sump3/internal/model"
	"github.com/blackmesalabs/sump3/internal/sumpcfg"
	"github.com/blackmesalabs/sump3/internal/sumperr"
	"github.com/blackmesalabs/sump3/internal/topology"
)

// pendingRLETrig accumulates sump_set_trigs entries until the next
// sump_arm, keyed by the pod they target.
type pendingRLETrig struct {
	pods map[hwdriver.PodAddr]byte
}

// Execute interprets one line of the scripting vocabulary (view/signal
// definition verbs plus the sump_* control verbs) against the engine's
// live catalog and, once connected, its hardware link. It returns
// whatever text response the verb produces (mostly empty) or an error.
func (e *Engine) Execute(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "create_signal", "create_group", "end_group", "create_bit_group",
		"create_fsm_state", "create_view", "end_view", "add_view", "apply_attribute",
		"source", "source_hub_pod", "end_source":
		return "", e.applyDefineLine(line)

	case "remove_view":
		return "", e.execRemoveView(rest)

	case "apply_view":
		return "", e.execApplyView(rest)

	case "add_view_ontap":
		// create_view already registers into ViewsOnTap; nothing
		// further is needed to make it available.
		return "", nil

	case "sump_connect":
		return "", e.execConnect(rest)

	case "sump_arm":
		return "", e.execArm(rest)

	case "sump_acquire":
		return "", e.execAcquire(rest)

	case "sump_force_trig":
		return "", e.ForceTrigger()

	case "sump_force_stop":
		return "", e.ForceStop()

	case "sump_download":
		return "", e.Download()

	case "sump_set_trigs":
		return "", e.execSetTrigs(rest)

	case "sump_clear_trigs":
		e.pendingRLE = nil

		return "", nil

	case "save_pza":
		return "", e.SavePZA(rest)

	case "load_pza":
		return "", e.LoadPZA(rest)

	case "save_vcd":
		return "", e.SaveVCD(rest)

	case "save_list":
		return "", e.SaveList(rest)

	default:
		return "", sumperr.New(sumperr.ConfigParse, "sumphost: unknown command verb %q", verb)
	}
}

// applyDefineLine routes a single view/signal-definition verb through
// the same parser the ROM decoder's normalized stream uses, applying
// it to the engine's scripting context (a context with no owning pod,
// since scripted signals never resolve SourceThisPod).
func (e *Engine) applyDefineLine(line string) error {
	cmds, err := topology.ParseCommands(line)
	if err != nil {
		return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: parsing %q", line)
	}

	if e.scriptPC == nil {
		e.scriptPC = model.NewParseContext(e.Catalog, topology.PodKey{}, "#FFFFFF")
	}

	e.scriptPC.Apply(cmds)

	return nil
}

func (e *Engine) execApplyView(rest string) error {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return sumperr.New(sumperr.ConfigParse, "sumphost: apply_view wants <name> <window>")
	}

	view, ok := e.Catalog.ViewsOnTap[fields[0]]
	if !ok {
		return sumperr.New(sumperr.ViewConflict, "sumphost: no such view on tap: %s", fields[0])
	}

	idx, err := strconv.Atoi(fields[1])
	if err != nil {
		return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: apply_view window %q", fields[1])
	}

	removed, err := e.Catalog.ApplyView(view, idx)
	if err != nil {
		return err
	}

	for _, name := range removed {
		e.log.Warn("view evicted by clash", "view", name, "applied", fields[0])
	}

	return nil
}

func (e *Engine) execRemoveView(name string) error {
	view, ok := e.Catalog.ViewsOnTap[name]
	if !ok {
		return sumperr.New(sumperr.ViewConflict, "sumphost: no such view on tap: %s", name)
	}

	e.Catalog.RemoveView(view)

	return nil
}

func (e *Engine) execConnect(rest string) error {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return sumperr.New(sumperr.ConfigParse, "sumphost: sump_connect wants <host> <port>")
	}

	port, err := strconv.Atoi(fields[1])
	if err != nil {
		return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: sump_connect port %q", fields[1])
	}

	cfg := sumpcfg.Default()
	cfg.Host = fields[0]
	cfg.Port = port

	if len(fields) >= 3 {
		cfg.AESKeyHex = fields[2]
	}

	return e.Connect(context.Background(), cfg)
}

// execArm accepts "<trigger_type> <trigger_field> <post_ls> <post_hs>
// <post_rle>", all optional and defaulting to 0/disabled, and arms
// using whatever RLE triggers sump_set_trigs has queued. For the
// analog trigger types the field token is a level in engineering
// units (a decimal float), converted to the packed channel/code word
// from the selected triggerable analog signal's scaling; for every
// other type it is the raw digital pattern word.
func (e *Engine) execArm(rest string) error {
	fields := strings.Fields(rest)

	var trig hwdriver.TriggerType
	var field uint32
	var postLS, postHS, postRLE uint32

	vals := []*uint32{&field, &postLS, &postHS, &postRLE}

	if len(fields) > 0 {
		n, err := strconv.ParseUint(fields[0], 0, 8)
		if err != nil {
			return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: sump_arm trigger type %q", fields[0])
		}

		trig = hwdriver.TriggerType(n)
	}

	analog := trig == hwdriver.TriggerAnalogRise || trig == hwdriver.TriggerAnalogFall

	for i, v := range vals {
		if i+1 >= len(fields) {
			break
		}

		if analog && i == 0 {
			level, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: sump_arm analog level %q", fields[1])
			}

			packed, err := model.AnalogTriggerFromCatalog(e.Catalog, level)
			if err != nil {
				return err
			}

			field = packed

			continue
		}

		n, err := strconv.ParseUint(fields[i+1], 0, 32)
		if err != nil {
			return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: sump_arm field %q", fields[i+1])
		}

		*v = uint32(n)
	}

	var rle map[hwdriver.PodAddr]byte
	if e.pendingRLE != nil {
		rle = e.pendingRLE.pods
	}

	return e.ArmFromCatalog(trig, field, rle, postLS, postHS, postRLE)
}

func (e *Engine) execAcquire(rest string) error {
	timeoutMs := 30000

	if rest != "" {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: sump_acquire timeout %q", rest)
		}

		timeoutMs = n
	}

	return e.Acquire(time.Duration(timeoutMs) * time.Millisecond)
}

// execSetTrigs parses "<hub> <pod> <position> <kind>" and queues the
// packed trigger-config byte for the next sump_arm.
func (e *Engine) execSetTrigs(rest string) error {
	fields := strings.Fields(rest)
	if len(fields) != 4 {
		return sumperr.New(sumperr.ConfigParse, "sumphost: sump_set_trigs wants <hub> <pod> <position> <kind>")
	}

	hub, err := strconv.ParseUint(fields[0], 0, 8)
	if err != nil {
		return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: sump_set_trigs hub %q", fields[0])
	}

	pod, err := strconv.ParseUint(fields[1], 0, 8)
	if err != nil {
		return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: sump_set_trigs pod %q", fields[1])
	}

	pos, err := strconv.ParseUint(fields[2], 0, 8)
	if err != nil {
		return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: sump_set_trigs position %q", fields[2])
	}

	kind, err := strconv.ParseUint(fields[3], 0, 8)
	if err != nil {
		return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: sump_set_trigs kind %q", fields[3])
	}

	if e.pendingRLE == nil {
		e.pendingRLE = &pendingRLETrig{pods: map[hwdriver.PodAddr]byte{}}
	}

	addr := hwdriver.PodAddr{Hub: byte(hub), Pod: byte(pod)}
	e.pendingRLE.pods[addr] = hwdriver.RLETriggerConfig(hwdriver.RLEPosition(pos), hwdriver.RLETriggerKind(kind))

	return nil
}
