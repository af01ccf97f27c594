package topology

import (
	"sort"
	"strconv"
	"strings"
)

// collectInstances gathers every distinct pod instance number present
// in a topology, ascending, so a wildcard view/group can be expanded
// once per instance actually present on the hardware.
func collectInstances(topo *Topology) []int {
	seen := map[int]bool{}

	for _, h := range topo.Hubs {
		for _, p := range h.Pods {
			if p.Instance >= 0 {
				seen[p.Instance] = true
			}
		}
	}

	instances := make([]int, 0, len(seen))
	for inst := range seen {
		instances = append(instances, inst)
	}

	sort.Ints(instances)

	return instances
}

// GenerateExpand expands any create_view or create_group whose name
// contains a "*" placeholder into one copy per pod instance present
// in topo, substituting the instance number for "*" in the block's
// header name and in any source name within the block that also
// carries the placeholder. A name with no "*" passes through
// untouched, copy count one.
func GenerateExpand(topo *Topology, cmds []Command) []Command {
	instances := collectInstances(topo)

	var out []Command

	for i := 0; i < len(cmds); {
		expanded, next := expandBlock(cmds, i, instances)
		out = append(out, expanded...)
		i = next
	}

	return out
}

func blockName(c Command) (name string, isBlock bool) {
	switch v := c.(type) {
	case CreateView:
		return v.Name, true
	case CreateGroup:
		return v.Name, true
	default:
		return "", false
	}
}

func closeFor(header Command) Command {
	switch header.(type) {
	case CreateView:
		return EndView{}
	case CreateGroup:
		return EndGroup{}
	default:
		return nil
	}
}

func isMatchingClose(header, c Command) bool {
	switch header.(type) {
	case CreateView:
		_, ok := c.(EndView)

		return ok
	case CreateGroup:
		_, ok := c.(EndGroup)

		return ok
	default:
		return false
	}
}

func expandBlock(cmds []Command, i int, instances []int) ([]Command, int) {
	header := cmds[i]

	name, isBlock := blockName(header)
	if !isBlock {
		return []Command{header}, i + 1
	}

	var body []Command

	j := i + 1
	for j < len(cmds) {
		if isMatchingClose(header, cmds[j]) {
			j++

			break
		}

		child, nj := expandBlock(cmds, j, instances)
		body = append(body, child...)
		j = nj
	}

	if !strings.Contains(name, "*") {
		out := make([]Command, 0, len(body)+2)
		out = append(out, header)
		out = append(out, body...)
		out = append(out, closeFor(header))

		return out, j
	}

	var out []Command

	for _, inst := range instances {
		out = append(out, substituteWildcard(header, inst))
		out = append(out, substituteBodyWildcard(body, inst)...)
		out = append(out, closeFor(header))
	}

	return out, j
}

func substituteWildcard(c Command, inst int) Command {
	suffix := strconv.Itoa(inst)

	switch v := c.(type) {
	case CreateView:
		v.Name = strings.ReplaceAll(v.Name, "*", suffix)

		return v
	case CreateGroup:
		v.Name = strings.ReplaceAll(v.Name, "*", suffix)

		return v
	default:
		return c
	}
}

func substituteBodyWildcard(body []Command, inst int) []Command {
	suffix := strconv.Itoa(inst)
	out := make([]Command, len(body))

	for i, c := range body {
		if src, ok := c.(SourceByName); ok && strings.Contains(src.Name, "*") {
			out[i] = SourceByName{Name: strings.ReplaceAll(src.Name, "*", suffix)}

			continue
		}

		out[i] = c
	}

	return out
}
