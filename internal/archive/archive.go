// Package archive reads and writes PZA project archives: a gzip
// stream containing one or more named text files, each wrapped in
// "[pza_start name]" / "[pza_stop name]" delimiter lines, the same
// container format the Python vcd2pza tool produces.
package archive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// Well-known file names a capture session writes into an archive.
// Any of these may be absent: a session with no RLE pods
// captured, say, writes no sump_rle_ram.txt.
const (
	FileCaptureCfg  = "sump_capture_cfg.txt"
	FileRLEPodList  = "sump_rle_podlist.txt"
	FileLSRam       = "sump_ls_ram.txt"
	FileHSRam       = "sump_hs_ram.txt"
	FileRLERam      = "sump_rle_ram.txt"
	FileLSSamples   = "sump_ls_samples.txt"
	FileHSSamples   = "sump_hs_samples.txt"
	FileRLESamples  = "sump_rle_samples.txt"
)

// Archive is the decoded, in-memory contents of a .pza file: a set of
// named text blobs in their original order.
type Archive struct {
	order   []string
	entries map[string][]byte
}

// New returns an empty archive ready for Put and Save.
func New() *Archive {
	return &Archive{entries: map[string][]byte{}}
}

// Put stores (or replaces, in place) a named file's contents.
func (a *Archive) Put(name string, data []byte) {
	if _, exists := a.entries[name]; !exists {
		a.order = append(a.order, name)
	}

	a.entries[name] = data
}

// File returns a named file's contents and whether it was present.
func (a *Archive) File(name string) ([]byte, bool) {
	data, ok := a.entries[name]

	return data, ok
}

// Names returns the archive's file names in load/insertion order.
func (a *Archive) Names() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)

	return out
}

// Connected reports whether this archive represents a live capture
// true only when at least one RAM file is present, false for an
// archive synthesized from config alone (no hardware ever connected,
// or only a pre-acquire save).
func (a *Archive) Connected() bool {
	for _, name := range []string{FileLSRam, FileHSRam, FileRLERam} {
		if _, ok := a.entries[name]; ok {
			return true
		}
	}

	return false
}

// ViewROMFiles returns every stored file whose contents declare a
// view (contain "create_view"), keyed by file name — these are the
// ROM-text dumps an archive carries alongside its capture_cfg so a
// loader can reconstruct every view without a live hardware ROM read.
func (a *Archive) ViewROMFiles() map[string][]byte {
	out := map[string][]byte{}

	for name, data := range a.entries {
		if bytes.Contains(data, []byte("create_view")) {
			out[name] = data
		}
	}

	return out
}

// Load parses a gzip-compressed PZA stream into an Archive.
func Load(r io.Reader) (*Archive, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, sumperr.Wrap(sumperr.ConfigParse, err, "archive: not a gzip stream")
	}
	defer gz.Close()

	a := New()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		activeName string
		buf        bytes.Buffer
		inBlock    bool
	)

	for scanner.Scan() {
		line := scanner.Text()

		if !inBlock {
			if name, ok := parseDelimiter(line, "pza_start"); ok {
				activeName = name
				buf.Reset()
				inBlock = true
			}

			continue
		}

		if name, ok := parseDelimiter(line, "pza_stop"); ok && name == activeName {
			a.Put(activeName, append([]byte{}, buf.Bytes()...))
			inBlock = false
			activeName = ""

			continue
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	if err := scanner.Err(); err != nil {
		return nil, sumperr.Wrap(sumperr.ConfigParse, err, "archive: read error")
	}

	if inBlock {
		return nil, sumperr.New(sumperr.ConfigParse, "archive: unterminated block %q", activeName)
	}

	return a, nil
}

// FormatName expands a strftime pattern against t. A plain path with
// no '%' verbs passes through
// unchanged, so callers can use a single field for both a fixed
// archive name and a rotating one like "sump3_%Y%m%d_%H%M%S.pza".
func FormatName(pattern string, t time.Time) (string, error) {
	name, err := strftime.Format(pattern, t)
	if err != nil {
		return "", sumperr.Wrap(sumperr.ConfigParse, err, "archive: timestamp pattern %q", pattern)
	}

	return name, nil
}

func parseDelimiter(line, tag string) (string, bool) {
	line = strings.TrimSpace(line)

	prefix := "[" + tag + " "
	if !strings.HasPrefix(line, prefix) || !strings.HasSuffix(line, "]") {
		return "", false
	}

	return strings.TrimSuffix(strings.TrimPrefix(line, prefix), "]"), true
}

// Save writes every stored file to w as a gzip-compressed PZA
// stream, in the archive's recorded order (deterministic aside from
// that, so repeated saves of the same content round-trip byte for
// byte).
func (a *Archive) Save(w io.Writer) error {
	gz := gzip.NewWriter(w)

	for _, name := range a.order {
		data := a.entries[name]

		if _, err := fmt.Fprintf(gz, "[pza_start %s]\n", name); err != nil {
			return sumperr.Wrap(sumperr.ConfigParse, err, "archive: write start delimiter for %q", name)
		}

		if _, err := gz.Write(data); err != nil {
			return sumperr.Wrap(sumperr.ConfigParse, err, "archive: write body for %q", name)
		}

		if _, err := fmt.Fprintf(gz, "[pza_stop %s]\n", name); err != nil {
			return sumperr.Wrap(sumperr.ConfigParse, err, "archive: write stop delimiter for %q", name)
		}
	}

	if err := gz.Close(); err != nil {
		return sumperr.Wrap(sumperr.ConfigParse, err, "archive: close gzip stream")
	}

	return nil
}
