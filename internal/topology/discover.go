package topology

import (
	"github.com/blackmesalabs/sump3/internal/hwdriver"
)

// Discover enumerates hubs and pods by reading their configuration
// registers in order: hub count, then per hub its clock frequency,
// optional name, and pod count; then per pod its hardware config
// DWORD, RAM geometry, triggerable mask, trigger latency, optional
// name, instance number, and view-ROM size.
func Discover(d *hwdriver.Driver) (*Topology, error) {
	hubCountWord, err := d.ReadConfigWord(hwdriver.OpRdHubCount)
	if err != nil {
		return nil, err
	}

	topo := &Topology{}

	for hubIdx := byte(0); hubIdx < byte(hubCountWord); hubIdx++ {
		hub, err := discoverHub(d, hubIdx)
		if err != nil {
			return nil, err
		}

		topo.Hubs = append(topo.Hubs, hub)
	}

	return topo, nil
}

func discoverHub(d *hwdriver.Driver, hubIdx byte) (*Hub, error) {
	if err := d.SelectPodRegister(hubIdx, 0, hwdriver.RegRLEUserCtrl); err != nil {
		return nil, err
	}

	clockWord, err := d.ReadConfigWord(hwdriver.OpRdHubClock)
	if err != nil {
		return nil, err
	}

	nameWords, err := d.BulkRead(hwdriver.OpRdHubName, 3)
	if err != nil {
		return nil, err
	}

	podCountWord, err := d.ReadConfigWord(hwdriver.OpRdPodCount)
	if err != nil {
		return nil, err
	}

	hub := &Hub{
		Index:    hubIdx,
		Name:     decodeNameTriple(nameWords),
		ClockMHz: DecodeU12_20(clockWord),
	}

	for podIdx := byte(0); podIdx < byte(podCountWord); podIdx++ {
		if err := d.SelectPodRegister(hubIdx, podIdx, hwdriver.RegRLEUserCtrl); err != nil {
			return nil, err
		}

		pod, err := discoverPod(d, podIdx)
		if err != nil {
			return nil, err
		}

		hub.Pods = append(hub.Pods, pod)
	}

	return hub, nil
}

func discoverPod(d *hwdriver.Driver, podIdx byte) (*Pod, error) {
	cfgWord, err := d.ReadConfigWord(hwdriver.OpRdPodConfig)
	if err != nil {
		return nil, err
	}

	geomWord, err := d.ReadConfigWord(hwdriver.OpRdPodRAMGeom)
	if err != nil {
		return nil, err
	}

	triggerableWord, err := d.ReadConfigWord(hwdriver.OpRdPodTriggerable)
	if err != nil {
		return nil, err
	}

	latencyWords, err := d.BulkRead(hwdriver.OpRdPodTriggerLatency, 3)
	if err != nil {
		return nil, err
	}

	nameWords, err := d.BulkRead(hwdriver.OpRdPodName, 3)
	if err != nil {
		return nil, err
	}

	instanceWord, err := d.ReadConfigWord(hwdriver.OpRdPodInstance)
	if err != nil {
		return nil, err
	}

	romSizeWord, err := d.ReadConfigWord(hwdriver.OpRdViewROMSize)
	if err != nil {
		return nil, err
	}

	pod := &Pod{
		Index:      podIdx,
		Name:       decodeNameTriple(nameWords),
		Instance:   decodeInstance(instanceWord),
		HWRevision: byte(cfgWord >> 24),

		AddrBits:      int((geomWord >> 16) & 0xFF),
		DataBits:      int((geomWord >> 8) & 0xFF),
		TimestampBits: int(geomWord & 0xFF),

		ViewROMPresent:  cfgWord&0x01 != 0,
		PodNameEnable:   cfgWord&0x02 != 0,
		MaskBitsPresent: cfgWord&0x04 != 0,
		NoROMGranularity: decodeGranularity(cfgWord),

		TriggerableMask: triggerableWord,

		TriggerLatencyCoreClockCycles: int(latencyWords[0]),
		TriggerLatencyMISOClockCycles: int(latencyWords[1]),
		TriggerLatencyMOSIClockCycles: int(latencyWords[2]),

		ViewROMSizeWords: int(romSizeWord),
	}

	return pod, nil
}

// decodeNameTriple interprets three DWORDs as ASCII big-endian bytes,
// trimmed of trailing NULs/spaces.
func decodeNameTriple(words []uint32) string {
	b := make([]byte, 0, 12)

	for _, w := range words {
		b = append(b, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
	}

	end := len(b)
	for end > 0 && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}

	return string(b[:end])
}

func decodeInstance(word uint32) int {
	if word == 0xFFFFFFFF {
		return -1
	}

	return int(word)
}

func decodeGranularity(cfgWord uint32) NoROMGranularity {
	switch (cfgWord >> 3) & 0x03 {
	case 1:
		return GranularityByte
	case 2:
		return GranularityWord
	case 3:
		return GranularityDWord
	default:
		return GranularityBit
	}
}
