package topology

import (
	"strconv"
	"strings"
)

// ROMBitSize scans a Verilog source file for its `.view_rom_txt ( { ... } )`
// instantiation and totals the bit width of every literal inside it:
// a quoted string contributes 8 bits per character, and a sized
// literal (64'd0, 8'hF0, ...) contributes its declared width. It
// returns the total in kilobits, matching the sizing tool bundled
// with the hardware core's build scripts.
func ROMBitSize(verilog string) int {
	lines := strings.Split(verilog, "\n")

	inBlock := false
	bits := 0

	for _, line := range lines {
		if !inBlock {
			fields := strings.Fields(line)
			if len(fields) > 0 && fields[0] == ".view_rom_txt" {
				inBlock = true
			}

			continue
		}

		code := line
		if idx := strings.Index(code, "//"); idx >= 0 {
			code = code[:idx]
		}

		for _, word := range strings.Split(code, ",") {
			word = strings.ReplaceAll(word, " ", "")
			if word == "" {
				continue
			}

			bits += literalBits(word)
		}

		if strings.ReplaceAll(line, " ", "") == ")" {
			inBlock = false
		}
	}

	return bits / 1024
}

// literalBits returns the bit width contributed by one Verilog
// literal token: a quoted ASCII string is 8 bits per character; a
// sized literal N'hXX or N'dNN is N bits; anything else is 0.
func literalBits(word string) int {
	if strings.HasPrefix(word, `"`) {
		return (len(word) - 2) * 8
	}

	if !strings.Contains(word, "'") {
		return 0
	}

	width, _, found := strings.Cut(word, "'")
	if !found {
		return 0
	}

	n, err := strconv.Atoi(width)
	if err != nil {
		return 0
	}

	return n
}
