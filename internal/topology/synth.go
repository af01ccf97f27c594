package topology

import "fmt"

// SynthesizeView builds a fallback view for a pod that carries no
// embedded view ROM: a view of the same name holding a single group
// "hub_name.pod_name", exposing its raw data bits packed at the
// granularity the pod's config word declares (bit, byte, word, or
// dword), so a capture from an unprogrammed or ROM-less pod can still
// be viewed instead of discarded.
func SynthesizeView(h *Hub, p *Pod) []Command {
	groupName := synthGroupName(h, p)

	cmds := []Command{
		CreateView{Name: groupName},
		SourceHubPod{Hub: h.Index, Pod: p.Index},
		CreateGroup{Name: groupName},
	}

	cmds = append(cmds, synthesizeSignals(p)...)

	cmds = append(cmds,
		EndGroup{},
		EndSource{},
		EndView{},
		AddView{},
	)

	return cmds
}

// synthGroupName builds the "hub_name.pod_name" identifier, falling
// back to an index-based name for hubs/pods with no configured name
// (names are an optional 12-character field).
func synthGroupName(h *Hub, p *Pod) string {
	hubName := h.Name
	if hubName == "" {
		hubName = fmt.Sprintf("hub%d", h.Index)
	}

	podName := p.Name
	if podName == "" {
		podName = fmt.Sprintf("pod%d", p.Index)
	}

	return hubName + "." + podName
}

func synthesizeSignals(p *Pod) []Command {
	if p.DataBits <= 0 {
		return nil
	}

	switch p.NoROMGranularity {
	case GranularityByte:
		return packedVectors(p.DataBits, 8, "byte")
	case GranularityWord:
		return packedVectors(p.DataBits, 16, "word")
	case GranularityDWord:
		return packedVectors(p.DataBits, 32, "dword")
	default: // GranularityBit
		cmds := make([]Command, 0, p.DataBits)
		for bit := 0; bit < p.DataBits; bit++ {
			cmds = append(cmds, CreateSignalBit{Name: fmt.Sprintf("bit%d", bit), Bit: bit})
		}

		return cmds
	}
}

// packedVectors splits a DataBits-wide bus into chunkWidth-bit
// vectors, name[hi:lo], least-significant chunk first; a final partial
// chunk is narrower than chunkWidth if DataBits doesn't divide evenly.
func packedVectors(dataBits, chunkWidth int, label string) []Command {
	var cmds []Command

	n := 0
	for lo := 0; lo < dataBits; lo += chunkWidth {
		hi := lo + chunkWidth - 1
		if hi >= dataBits {
			hi = dataBits - 1
		}

		cmds = append(cmds, CreateSignalVector{Name: fmt.Sprintf("%s%d", label, n), Hi: hi, Lo: lo})
		n++
	}

	return cmds
}

// MergeViews combines the per-pod command streams discovered across
// a topology into one catalog-wide stream: pods with an embedded view
// ROM contribute their decoded stream verbatim, pods without one
// contribute a synthesized fallback, so coverage is always complete
// even when only some pods carry a programmed ROM.
func MergeViews(topo *Topology, decoded map[PodKey][]Command) []Command {
	var out []Command

	for _, h := range topo.Hubs {
		for _, p := range h.Pods {
			key := PodKey{Hub: h.Index, Pod: p.Index}

			if p.ViewROMPresent {
				if cmds, ok := decoded[key]; ok {
					out = append(out, cmds...)

					continue
				}
			}

			out = append(out, SynthesizeView(h, p)...)
		}
	}

	return out
}
