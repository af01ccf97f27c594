package hwdriver

import "github.com/blackmesalabs/sump3/internal/sumperr"

// PodAddr identifies a pod by (hub, pod) index. Kept local to
// hwdriver (rather than importing topology.PodKey) so this package
// has no upward dependency on the topology or model layers.
type PodAddr struct {
	Hub byte
	Pod byte
}

// ArmPlan is the fully-resolved set of writes the arm sequence must
// perform, computed by the caller (the orchestrator, which does know
// about topology and the signal model) from the currently-applied
// Views.
type ArmPlan struct {
	// UserControl is one collapsed 32-bit word per pod touched by any
	// applied View (step 1).
	UserControl map[PodAddr]uint32

	// RLEMask is the recomputed per-pod RLE bit-mask from every
	// rle_masked signal sourced from that pod (step 2).
	RLEMask map[PodAddr]uint32

	// TriggerType, TriggerField program the core trigger logic (step 3).
	// TriggerField is either a digital pattern/mask or, for an analog
	// trigger, (ch<<24 | code[23:0]).
	TriggerType  TriggerType
	TriggerField uint32

	// RLETrigger is the per-pod trigger-position/kind byte (step 4).
	RLETrigger map[PodAddr]byte

	PostTrigLenLS  uint32
	PostTrigLenHS  uint32
	PostTrigLenRLE uint32
}

// AnalogTriggerField packs an analog-level trigger word: channel in
// bits [31:24], signed 24-bit code in bits [23:0].
func AnalogTriggerField(channel byte, code int32) uint32 {
	return uint32(channel)<<24 | uint32(code)&0x00FFFFFF
}

// Arm runs the five-step arm sequence: program user-control, RLE
// masks, and trigger configuration, then reset -> init -> idle -> arm,
// verifying the hardware reaches Armed.
func (d *Driver) Arm(plan ArmPlan) error {
	for addr, value := range plan.UserControl {
		if err := d.WritePodRegister(addr.Hub, addr.Pod, RegRLEUserCtrl, value); err != nil {
			return err
		}
	}

	for addr, mask := range plan.RLEMask {
		if err := d.WritePodRegister(addr.Hub, addr.Pod, RegRLEMask, mask); err != nil {
			return err
		}
	}

	if err := d.WriteConfigWord(OpWrTriggerType, uint32(plan.TriggerType)); err != nil {
		return err
	}

	if plan.TriggerType == TriggerAnalogRise || plan.TriggerType == TriggerAnalogFall {
		if err := d.WriteConfigWord(OpWrAnalogTrigField, plan.TriggerField); err != nil {
			return err
		}
	} else {
		if err := d.WriteConfigWord(OpWrDigitalTrigField, plan.TriggerField); err != nil {
			return err
		}
	}

	for addr, cfg := range plan.RLETrigger {
		if err := d.WritePodRegister(addr.Hub, addr.Pod, RegRLETrigSrc, uint32(cfg)); err != nil {
			return err
		}
	}

	if err := d.WriteConfigWord(OpWrPostTrigLenLS, plan.PostTrigLenLS); err != nil {
		return err
	}

	if err := d.WriteConfigWord(OpWrPostTrigLenHS, plan.PostTrigLenHS); err != nil {
		return err
	}

	if err := d.WriteConfigWord(OpWrPostTrigLenRLE, plan.PostTrigLenRLE); err != nil {
		return err
	}

	if err := d.writeOpcode(OpReset); err != nil {
		return err
	}

	if err := d.writeOpcode(OpInit); err != nil {
		return err
	}

	if err := d.writeOpcode(OpIdle); err != nil {
		return err
	}

	if err := d.writeOpcode(OpArm); err != nil {
		return err
	}

	st, err := d.State()
	if err != nil {
		return err
	}

	if st != StateArmed && st != StatePreTrigFill && st != StateTriggered && st != StateAcquired {
		return sumperr.New(sumperr.HardwareStuck, "arm sequence did not reach armed, got %s", st)
	}

	return nil
}

// ForceTrig and ForceStop live in state.go; Arm only covers the
// programming sequence, not cancellation.
