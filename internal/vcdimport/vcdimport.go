// Package vcdimport turns a Verilog VCD dump into a PZA archive
// carrying a synthetic "vcd_view" and a single-pod RLE sample stream,
// the same transformation the Python vcd2pza tool performs, so a
// simulation waveform can be browsed with the same viewer as a live
// capture.
package vcdimport

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/blackmesalabs/sump3/internal/archive"
	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// Symbol is one $var declaration: a VCD single-character identifier
// bound to a signal name, bit width, and optional bit-rip suffix
// (e.g. "[2:0]" on a vector's declared name).
type Symbol struct {
	Name    string
	NumBits int
	BitRip  string
}

// Sample is one #timestamp boundary's snapshot of every symbol's
// last-known value, in the order $var declared them.
type Sample struct {
	TimeStamp string
	Values    []string
}

// Parsed holds a VCD file's symbol table (in declaration order) and
// its time-ordered value-change samples.
type Parsed struct {
	Order   []string
	Symbols map[string]Symbol
	Samples []Sample
}

// Parse reads a VCD file body per IEEE 1364: a $var-declaration
// header ending in $enddefinitions, followed by $dumpvars and
// #timestamp / value-change lines.
func Parse(r io.Reader) (*Parsed, error) {
	p := &Parsed{Symbols: map[string]Symbol{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	inHeader := true
	parsingValues := false
	lastVal := map[string]string{}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if inHeader {
			if fields[0] == "$enddefinitions" {
				inHeader = false
			}

			if fields[0] == "$var" && len(fields) >= 5 && (fields[1] == "wire" || fields[1] == "reg") {
				numBits, err := strconv.Atoi(fields[2])
				if err != nil {
					return nil, sumperr.Wrap(sumperr.ConfigParse, err, "vcd: bad $var width %q", fields[2])
				}

				symbol := fields[3]
				name := fields[4]

				bitRip := ""
				if len(fields) >= 6 && fields[5] != "$end" {
					bitRip = fields[5]
				}

				if _, seen := p.Symbols[symbol]; !seen {
					p.Order = append(p.Order, symbol)
				}

				p.Symbols[symbol] = Symbol{Name: name, NumBits: numBits, BitRip: bitRip}
				lastVal[symbol] = "x"
			}

			continue
		}

		// The first line after the header is consumed here, and it is
		// usually $dumpvars itself.
		parsingValues = fields[0] == "$dumpvars"

		break
	}

	for sym := range p.Symbols {
		lastVal[sym] = "x"
	}

	timeStamp := "0"

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if !parsingValues {
			if fields[0] == "$dumpvars" {
				parsingValues = true
			}

			continue
		}

		switch {
		case strings.HasPrefix(fields[0], "#"):
			if fields[0] != "#0" {
				p.Samples = append(p.Samples, Sample{TimeStamp: timeStamp, Values: snapshot(p.Order, lastVal)})
			}

			timeStamp = strings.TrimPrefix(fields[0], "#")
		case strings.HasPrefix(fields[0], "b"):
			if len(fields) >= 2 {
				lastVal[fields[1]] = fields[0][1:]
			}
		case fields[0][0] == 'x' || fields[0][0] == '0' || fields[0][0] == '1':
			sym := fields[0][1:]
			if sym != "" {
				lastVal[sym] = fields[0][:1]
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, sumperr.Wrap(sumperr.ConfigParse, err, "vcd: read error")
	}

	return p, nil
}

func snapshot(order []string, lastVal map[string]string) []string {
	out := make([]string, len(order))
	for i, sym := range order {
		out[i] = lastVal[sym]
	}

	return out
}

// BuildViewROM renders the "vcd_view" ROM-text block: one
// create_signal line per symbol, each ripping a contiguous slice of
// a single synthetic RLE pod (hub 0, pod 0) in declaration order.
func BuildViewROM(p *Parsed) []string {
	lines := []string{
		"[pza_start rom_vcd_view.txt]",
		"create_view vcd_view",
	}

	bitPos := 0

	for _, sym := range p.Order {
		s := p.Symbols[sym]

		var podRip string
		if s.NumBits == 1 {
			podRip = fmt.Sprintf("[%d]", bitPos)
		} else {
			podRip = fmt.Sprintf("[%d:%d]", bitPos+s.NumBits-1, bitPos)
		}

		bitPos += s.NumBits

		lines = append(lines, fmt.Sprintf("create_signal %s%s -source digital_rle[0][0]%s", s.Name, s.BitRip, podRip))
	}

	lines = append(lines, "end_view", "add_view", "[pza_stop rom_vcd_view.txt]")

	return lines
}

// BuildRLESamples renders the single-pod sump_rle_samples.txt block:
// the same "# pod h,p user_ctrl" section header a live download
// writes (hub 0, pod 0, no user-control), followed by one RLE row per
// recorded sample, codes 1 (pre-trigger), 2 (trigger), 3
// (post-trigger) assigned by position exactly as the importer's
// source tool does: the first row is always "1", the second "2",
// everything after "3".
func BuildRLESamples(p *Parsed) []string {
	lines := []string{
		"[pza_start sump_rle_samples.txt]",
		"# pod 0,0 user_ctrl 00000000",
	}

	for i, sample := range p.Samples {
		code := "3"

		switch i {
		case 0:
			code = "1"
		case 1:
			code = "2"
		}

		lines = append(lines, fmt.Sprintf("%s %s %s", sampleBits(p, sample), code, sample.TimeStamp))
	}

	lines = append(lines, "[pza_stop sump_rle_samples.txt]")

	return lines
}

// sampleBits renders one sample as the LSB-first bit string the RLE
// binding pass reads: each symbol's value is widened to its declared
// bit count, reversed from VCD's MSB-first order, unknowns rendered
// as the 'X' the binder treats as masked, and laid down at the same
// bit offset BuildViewROM assigned the symbol.
func sampleBits(p *Parsed, sample Sample) string {
	var b strings.Builder

	for i, sym := range p.Order {
		s := p.Symbols[sym]

		value := "x"
		if i < len(sample.Values) {
			value = sample.Values[i]
		}

		bits := widen(value, s.NumBits)
		for pos := len(bits) - 1; pos >= 0; pos-- {
			c := bits[pos]
			if c == 'x' || c == 'z' {
				c = 'X'
			}

			b.WriteByte(c)
		}
	}

	return b.String()
}

// widen left-pads a VCD value to width characters: zeros for a known
// value, x for an all-unknown one, per IEEE 1364's left-extension
// rule.
func widen(value string, width int) string {
	if len(value) >= width {
		return value[len(value)-width:]
	}

	pad := byte('0')
	if len(value) > 0 && (value[0] == 'x' || value[0] == 'z') {
		pad = value[0]
	}

	return strings.Repeat(string(pad), width-len(value)) + value
}

// Import converts a VCD stream into a PZA archive carrying the
// synthesized view and RLE sample files.
func Import(r io.Reader) (*archive.Archive, error) {
	parsed, err := Parse(r)
	if err != nil {
		return nil, err
	}

	a := archive.New()
	a.Put("rom_vcd_view.txt", []byte(joinWithNewlines(stripDelimiters(BuildViewROM(parsed)))))
	a.Put(archive.FileRLESamples, []byte(joinWithNewlines(stripDelimiters(BuildRLESamples(parsed)))))

	return a, nil
}

func stripDelimiters(lines []string) []string {
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		if strings.HasPrefix(line, "[pza_start") || strings.HasPrefix(line, "[pza_stop") {
			continue
		}

		out = append(out, line)
	}

	return out
}

func joinWithNewlines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	return strings.Join(lines, "\n") + "\n"
}
