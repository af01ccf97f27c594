// Package topology enumerates the hardware's hubs and pods, reads
// their embedded view ROMs, and parses the ROM byte-code language
// into a normalized stream of view-definition commands. The
// discovered topology owns Hub and Pod descriptors; everything above
// (the signal/view model) holds non-owning references into it.
package topology

// Pod is one RLE capture unit within a Hub: its own RAM, trigger
// logic, and user-control word.
type Pod struct {
	Index      byte
	Name       string // optional, up to 12 characters
	Instance   int    // -1 if this pod has no instance number
	HWRevision byte

	AddrBits      int
	DataBits      int
	TimestampBits int

	ViewROMPresent bool
	PodNameEnable  bool
	MaskBitsPresent bool
	NoROMGranularity NoROMGranularity

	TriggerableMask uint32

	TriggerLatencyCoreClockCycles int
	TriggerLatencyMISOClockCycles int
	TriggerLatencyMOSIClockCycles int

	UserCtrl      uint32
	TriggerSource uint32
	TriggerPosition byte
	TriggerType     byte

	RLEBitMask uint32

	RAMPageDataPort uint32

	ViewROMSizeWords int
}

// NoROMGranularity selects the packing granularity for a pod's
// synthetic no-ROM view when the pod carries no embedded view ROM.
type NoROMGranularity int

const (
	GranularityBit NoROMGranularity = iota
	GranularityByte
	GranularityWord
	GranularityDWord
)

// Hub is a clock domain aggregating up to 256 Pods.
type Hub struct {
	Index     byte
	Name      string // optional, up to 12 characters
	ClockMHz  float64 // decoded from u12.20 fixed point
	Pods      []*Pod
}

// PodKey identifies a pod uniquely within a topology.
type PodKey struct {
	Hub byte
	Pod byte
}

// Topology is the full set of discovered hubs.
type Topology struct {
	Hubs []*Hub
}

// FindPod looks up a pod by (hub, pod) index.
func (t *Topology) FindPod(key PodKey) (*Hub, *Pod, bool) {
	for _, h := range t.Hubs {
		if h.Index != key.Hub {
			continue
		}

		for _, p := range h.Pods {
			if p.Index == key.Pod {
				return h, p, true
			}
		}
	}

	return nil, nil, false
}

// DecodeU12_20 converts a u12.20 fixed-point register value to MHz.
func DecodeU12_20(raw uint32) float64 {
	return float64(raw) / float64(1<<20)
}
