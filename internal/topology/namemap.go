package topology

import (
	"fmt"
	"strconv"
)

// reserved source keywords a view-ROM may use instead of a dotted
// hub.pod name: the core-level analog and digital record streams.
const (
	SourceAnalogLS  = "analog_ls"
	SourceDigitalLS = "digital_ls"
	SourceDigitalHS = "digital_hs"
)

// NameIndex resolves dotted hub_name.pod_name[.instance] strings to a
// concrete PodKey, built once per discovered Topology.
type NameIndex struct {
	byDotted map[string]PodKey
}

// BuildNameIndex indexes every pod under every hub by its dotted name
// and, when the pod carries an instance number, by the
// instance-qualified form too (hub.pod.instance), since the ROM
// byte-code language allows either to disambiguate repeated pod
// names.
func BuildNameIndex(topo *Topology) *NameIndex {
	idx := &NameIndex{byDotted: map[string]PodKey{}}

	for _, h := range topo.Hubs {
		for _, p := range h.Pods {
			if h.Name == "" || p.Name == "" {
				continue
			}

			key := PodKey{Hub: h.Index, Pod: p.Index}
			dotted := h.Name + "." + p.Name
			idx.byDotted[dotted] = key

			if p.Instance >= 0 {
				idx.byDotted[dotted+"."+strconv.Itoa(p.Instance)] = key
			}
		}
	}

	return idx
}

// Resolve looks up a dotted name, returning false for the reserved
// core-stream keywords, which have no pod.
func (idx *NameIndex) Resolve(name string) (PodKey, bool) {
	switch name {
	case SourceAnalogLS, SourceDigitalLS, SourceDigitalHS:
		return PodKey{}, false
	}

	key, ok := idx.byDotted[name]

	return key, ok
}

// RewriteSources replaces every SourceByName command whose name
// resolves against idx with an equivalent SourceHubPod, matching the
// normalized form the core's own F3 opcode would have produced. Names
// that don't resolve (the reserved core streams, or a name the
// topology doesn't know about) pass through unchanged.
func RewriteSources(idx *NameIndex, cmds []Command) []Command {
	out := make([]Command, len(cmds))

	for i, c := range cmds {
		src, ok := c.(SourceByName)
		if !ok {
			out[i] = c

			continue
		}

		key, resolved := idx.Resolve(src.Name)
		if !resolved {
			out[i] = c

			continue
		}

		out[i] = SourceHubPod{Hub: key.Hub, Pod: key.Pod}
	}

	return out
}

// DottedName formats a pod's fully-qualified source name as the ROM
// byte-code's own F4 opcode would encode it.
func DottedName(h *Hub, p *Pod) string {
	if p.Instance >= 0 {
		return fmt.Sprintf("%s.%s.%d", h.Name, p.Name, p.Instance)
	}

	return h.Name + "." + p.Name
}
