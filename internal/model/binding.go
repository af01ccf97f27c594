package model

import (
	"strconv"
	"strings"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// sumpLSAnaDigAlignment is the default count of leading None entries
// prepended to an analog_ls signal's values so it aligns in time with
// the LS digital stream's own pipeline delay.
const sumpLSAnaDigAlignment = 4

// BindAnalogLS populates sig.Values from per-capture LS sample lines
// ("<bits> [hex_ch...] <stamp> <time>"), taking the Channel-th analog
// token from each line; "None" becomes the None sentinel.
func BindAnalogLS(sig *Signal, lines []string, alignment int) error {
	if sig.Source == nil || sig.Source.Kind != SourceAnalogLS {
		return sumperr.New(sumperr.SampleDecode, "BindAnalogLS: signal %q has no analog_ls source", sig.Name)
	}

	if alignment <= 0 {
		alignment = sumpLSAnaDigAlignment
	}

	values := make([]int64, 0, len(lines)+alignment)
	for i := 0; i < alignment; i++ {
		values = append(values, None)
	}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		analogTokens := fields[1 : len(fields)-2]
		if sig.Source.Channel >= len(analogTokens) {
			values = append(values, None)

			continue
		}

		tok := analogTokens[sig.Source.Channel]
		if tok == "None" {
			values = append(values, None)

			continue
		}

		v, err := strconv.ParseInt(tok, 16, 64)
		if err != nil {
			values = append(values, None)

			continue
		}

		values = append(values, v)
	}

	sig.Values = values

	return nil
}

// BindDigitalBitString populates sig.Values from per-capture LS or HS
// sample lines, each line's first whitespace-delimited field a
// LSB-first bit string; the signal's Hi:Lo rip is extracted from it.
func BindDigitalBitString(sig *Signal, lines []string) error {
	if sig.Source == nil {
		return sumperr.New(sumperr.SampleDecode, "BindDigitalBitString: signal %q has no source", sig.Name)
	}

	values := make([]int64, 0, len(lines))

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		bits := fields[0]
		values = append(values, ripBits(bits, sig.Source.Hi, sig.Source.Lo))
	}

	sig.Values = values

	return nil
}

func ripBits(bits string, hi, lo int) int64 {
	var value int64

	for pos := lo; pos <= hi; pos++ {
		if pos < 0 || pos >= len(bits) {
			continue
		}

		if bits[pos] == '1' {
			value |= int64(1) << uint(pos-lo)
		}
	}

	return value
}

// BindRLE populates sig.Values and sig.RLETime from one pod's RLE
// sample lines ("<data_bits_lsb_first> <code> <signed_time_ps>"),
// after checking that the captured pod user_ctrl matches every
// binding in sig.UserCtrlList. A mismatch marks the signal hidden and
// invalid and leaves both slices empty rather than producing
// misleading data.
func BindRLE(sig *Signal, lines []string, capturedUserCtrl uint32) error {
	if sig.Source == nil || sig.Source.Kind != SourceDigitalRLE {
		return sumperr.New(sumperr.SampleDecode, "BindRLE: signal %q has no digital_rle source", sig.Name)
	}

	for _, bind := range sig.UserCtrlList {
		if bind.Pod != sig.Source.Pod {
			continue
		}

		if capturedUserCtrl&bind.Mask() != bind.MaskedValue() {
			sig.UserCtrlInvalid = true
			sig.Hidden = true
			sig.Values = nil
			sig.RLETime = nil

			return nil
		}
	}

	values := make([]int64, 0, len(lines))
	times := make([]int64, 0, len(lines))

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}

		bits := fields[0]

		timePS, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			continue
		}

		if ripHasMask(bits, sig.Source.Hi, sig.Source.Lo) {
			values = append(values, -1)
		} else {
			values = append(values, ripBits(bits, sig.Source.Hi, sig.Source.Lo))
		}

		times = append(times, timePS)
	}

	sig.Values = values
	sig.RLETime = times

	return nil
}

func ripHasMask(bits string, hi, lo int) bool {
	for pos := lo; pos <= hi; pos++ {
		if pos >= 0 && pos < len(bits) && bits[pos] == 'X' {
			return true
		}
	}

	return false
}
