package decode

import "strings"

// DecodeHighSpeed splits words into ramWidth-DWORD samples and emits
// one line per sample: the LSB-first bit-string concatenation of its
// DWORDs, each DWORD contributing 32 bits.
func DecodeHighSpeed(words []uint32, ramWidth int) []string {
	if ramWidth <= 0 {
		return nil
	}

	lines := make([]string, 0, len(words)/ramWidth)

	for off := 0; off+ramWidth <= len(words); off += ramWidth {
		var b strings.Builder

		for _, dword := range words[off : off+ramWidth] {
			b.WriteString(bitsLSBFirst(dword, 32))
		}

		lines = append(lines, b.String())
	}

	return lines
}
