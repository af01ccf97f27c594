package sumphost

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blackmesalabs/sump3/internal/archive"
	"github.com/blackmesalabs/sump3/internal/hwdriver"
	"github.com/blackmesalabs/sump3/internal/model"
	"github.com/blackmesalabs/sump3/internal/sumperr"
	"github.com/blackmesalabs/sump3/internal/topology"
)

// SaveList writes a plain tabular dump: one line per signal, its
// name followed by every decoded sample value, space-separated. None
// renders as "None" so a re-import can distinguish it from a real
// zero code.
func (e *Engine) SaveList(path string) error {
	var sb strings.Builder

	for _, sig := range e.Catalog.Signals {
		if sig.Kind == model.KindGroup {
			continue
		}

		fmt.Fprintf(&sb, "%s", sig.Name)

		for _, v := range sig.Values {
			if v == model.None {
				sb.WriteString(" None")
			} else {
				fmt.Fprintf(&sb, " %d", v)
			}
		}

		sb.WriteByte('\n')
	}

	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// SaveVCD writes a minimal Verilog VCD rendering of every bound,
// non-group signal: each signal's own Values slice becomes its value
// at successive integer timesteps, one $var per signal keyed by a
// generated identifier (one character for the first 94 signals,
// longer after that).
func (e *Engine) SaveVCD(path string) error {
	var sb strings.Builder

	sb.WriteString("$timescale 1ps $end\n")
	sb.WriteString("$scope module sump3 $end\n")

	ids := map[*model.Signal]string{}
	maxLen := 0

	for i, sig := range e.Catalog.Signals {
		if sig.Kind == model.KindGroup {
			continue
		}

		id := vcdIdent(i)
		ids[sig] = id

		width := vcdWidth(sig)
		fmt.Fprintf(&sb, "$var wire %d %s %s $end\n", width, id, sanitizeVCDName(sig.Name))

		if len(sig.Values) > maxLen {
			maxLen = len(sig.Values)
		}
	}

	sb.WriteString("$upscope $end\n$enddefinitions $end\n$dumpvars\n")

	for t := 0; t < maxLen; t++ {
		fmt.Fprintf(&sb, "#%d\n", t)

		for _, sig := range e.Catalog.Signals {
			id, ok := ids[sig]
			if !ok || t >= len(sig.Values) {
				continue
			}

			writeVCDValue(&sb, sig, id, sig.Values[t])
		}
	}

	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

func vcdWidth(sig *model.Signal) int {
	if sig.Source == nil {
		return 1
	}

	width := sig.Source.Hi - sig.Source.Lo + 1
	if width < 1 {
		return 1
	}

	return width
}

func writeVCDValue(sb *strings.Builder, sig *model.Signal, id string, v int64) {
	width := vcdWidth(sig)

	if v == model.None {
		fmt.Fprintf(sb, "b%s %s\n", strings.Repeat("x", width), id)

		return
	}

	if width == 1 {
		if v != 0 {
			fmt.Fprintf(sb, "1%s\n", id)
		} else {
			fmt.Fprintf(sb, "0%s\n", id)
		}

		return
	}

	bits := make([]byte, width)
	for i := 0; i < width; i++ {
		if v&(1<<uint(width-1-i)) != 0 {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}

	fmt.Fprintf(sb, "b%s %s\n", string(bits), id)
}

// vcdIdent generates the ASCII printable (0x21-0x7E) single-or-more
// character identifier VCD uses for symbol references, by index.
func vcdIdent(i int) string {
	const first, last = 0x21, 0x7E
	const span = last - first + 1

	if i < span {
		return string(rune(first + i))
	}

	return vcdIdent(i/span-1) + vcdIdent(i%span)
}

func sanitizeVCDName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// LoadPZA reads a PZA archive from path and rebuilds the engine's
// offline state from it: the capture configuration, a catalog built
// from every embedded view-ROM file, and signal values rebound from
// the per-timezone sample streams. Sample files the archive lacks are
// synthesized empty rather than failing the load, and the engine is
// flagged disconnected since the data came from disk.
func (e *Engine) LoadPZA(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: open %s", path)
	}
	defer f.Close()

	a, err := archive.Load(f)
	if err != nil {
		return err
	}

	e.Archive = a
	e.Connected = false

	if data, ok := a.File(archive.FileCaptureCfg); ok {
		cfg, cfgErr := hwdriver.ParseCaptureConfig(string(data))
		if cfgErr != nil {
			return cfgErr
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		e.CaptureCfg = cfg
	}

	e.Catalog = model.NewCatalog()
	e.scriptPC = nil

	for name, data := range a.ViewROMFiles() {
		cmds, parseErr := topology.ParseCommands(string(data))
		if parseErr != nil {
			e.log.Warn("skipping malformed view ROM file", "file", name, "err", parseErr)

			continue
		}

		pc := model.NewParseContext(e.Catalog, topology.PodKey{}, "#FFFFFF")
		pc.Apply(cmds)
	}

	for _, name := range []string{archive.FileLSSamples, archive.FileHSSamples, archive.FileRLESamples} {
		if _, ok := a.File(name); !ok {
			a.Put(name, nil)
		}
	}

	e.rebindFromArchive()

	return nil
}

// rebindFromArchive re-runs the binding pass against the archive's
// sample streams instead of a live download.
func (e *Engine) rebindFromArchive() {
	if data, ok := e.Archive.File(archive.FileLSSamples); ok {
		lines := splitSampleLines(data)
		e.bindTimezoneSignals(model.SourceDigitalLS, lines)
		e.bindAnalogLSSignals(lines)
	}

	if data, ok := e.Archive.File(archive.FileHSSamples); ok {
		e.bindTimezoneSignals(model.SourceDigitalHS, splitSampleLines(data))
	}

	if data, ok := e.Archive.File(archive.FileRLESamples); ok {
		for _, section := range parseRLESections(data) {
			e.bindRLESignalsForPod(section.pod, section.lines, section.userCtrl)
		}
	}
}

type rleSection struct {
	pod      topology.PodKey
	userCtrl uint32
	lines    []string
}

// parseRLESections splits the archived RLE sample stream back into
// its per-pod groups, keyed by the "# pod h,p user_ctrl xxxxxxxx"
// header lines the download pass wrote.
func parseRLESections(data []byte) []rleSection {
	var sections []rleSection
	var cur *rleSection

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "# pod ") {
			var hub, pod int
			var userCtrl uint32

			if _, err := fmt.Sscanf(line, "# pod %d,%d user_ctrl %x", &hub, &pod, &userCtrl); err != nil {
				cur = nil

				continue
			}

			sections = append(sections, rleSection{
				pod:      topology.PodKey{Hub: byte(hub), Pod: byte(pod)},
				userCtrl: userCtrl,
			})
			cur = &sections[len(sections)-1]

			continue
		}

		if cur != nil {
			cur.lines = append(cur.lines, line)
		}
	}

	return sections
}

func splitSampleLines(data []byte) []string {
	var out []string

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}

	return out
}

// SavePZA writes the engine's current archive contents to path. path
// is first expanded as a strftime pattern against the current time,
// so a caller can pass a rotating name like "sump3_%Y%m%d_%H%M%S.pza"
// and get one archive per invocation instead of overwriting the last.
func (e *Engine) SavePZA(path string) error {
	name, err := archive.FormatName(path, time.Now())
	if err != nil {
		return err
	}

	f, err := os.Create(name)
	if err != nil {
		return sumperr.Wrap(sumperr.ConfigParse, err, "sumphost: create %s", name)
	}
	defer f.Close()

	return e.Archive.Save(f)
}
