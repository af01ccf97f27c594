// Package decode turns raw RAM DWORDs downloaded from the hardware
// into the per-timezone sample text the object model re-reads: the
// low-speed fixed-length record stream, the high-speed digital bit
// stream, and the per-pod run-length-encoded stream.
package decode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// RecordProfile is the decoded analog_record_profile config word:
// record length, header length, digital length, and analog length,
// each a DWORD count, with Header+Digital+Analog == Record.
type RecordProfile struct {
	RecordLen  int
	HeaderLen  int
	DigitalLen int
	AnalogLen  int
}

// ParseRecordProfile unpacks the packed (len, header, digital, analog)
// byte fields of a record_profile config word.
func ParseRecordProfile(word uint32) RecordProfile {
	return RecordProfile{
		RecordLen:  int(word>>24) & 0xFF,
		HeaderLen:  int(word>>16) & 0xFF,
		DigitalLen: int(word>>8) & 0xFF,
		AnalogLen:  int(word) & 0xFF,
	}
}

const (
	lsStampEmpty   = 0
	lsStampPreTrig = 1
	lsStampTrigger = 2
	lsStampPost    = 3
)

type lsRecord struct {
	header  uint32
	digital []uint32
	analog  []uint32
}

// DecodeLowSpeed splits words into RecordLen-DWORD records, culls
// pre-acquisition empty records, rotates so the earliest retained
// pre-trigger record (or the trigger record itself, absent one) comes
// first, and emits one text line per record: "<bits> [hex_ch...]
// <stamp> <time>".
func DecodeLowSpeed(words []uint32, profile RecordProfile) ([]string, error) {
	if profile.RecordLen <= 0 {
		return nil, sumperr.New(sumperr.ConfigParse, "low-speed record profile has zero record length")
	}

	if profile.HeaderLen+profile.DigitalLen+profile.AnalogLen != profile.RecordLen {
		return nil, sumperr.New(sumperr.ConfigParse,
			"low-speed record profile mismatch: header %d + digital %d + analog %d != record %d",
			profile.HeaderLen, profile.DigitalLen, profile.AnalogLen, profile.RecordLen)
	}

	var all []lsRecord

	for off := 0; off+profile.RecordLen <= len(words); off += profile.RecordLen {
		rec := words[off : off+profile.RecordLen]
		all = append(all, lsRecord{
			header:  rec[0],
			digital: rec[profile.HeaderLen : profile.HeaderLen+profile.DigitalLen],
			analog:  rec[profile.HeaderLen+profile.DigitalLen:],
		})
	}

	valid := cullEmptyLS(all)
	rotated := rotateLS(valid)

	lines := make([]string, 0, len(rotated))
	for _, rec := range rotated {
		lines = append(lines, emitLSLine(rec))
	}

	return lines, nil
}

func lsStamp(header uint32) int { return int(header>>30) & 0x3 }
func lsTime(header uint32) uint32 { return header & 0x3FFFFFFF }

func cullEmptyLS(records []lsRecord) []lsRecord {
	out := make([]lsRecord, 0, len(records))

	for _, r := range records {
		if lsStamp(r.header) != lsStampEmpty {
			out = append(out, r)
		}
	}

	return out
}

// rotateLS finds the first trigger record, then the first pre-trigger
// record after it (falling back to the trigger index itself), and
// rotates the slice so that record is first, preserving length and
// relative order.
func rotateLS(records []lsRecord) []lsRecord {
	if len(records) == 0 {
		return records
	}

	triggerIdx := -1
	for i, r := range records {
		if lsStamp(r.header) == lsStampTrigger {
			triggerIdx = i

			break
		}
	}

	if triggerIdx < 0 {
		return records
	}

	startIdx := triggerIdx

	for i := triggerIdx + 1; i < len(records); i++ {
		if lsStamp(records[i].header) == lsStampPreTrig {
			startIdx = i

			break
		}
	}

	out := make([]lsRecord, 0, len(records))
	out = append(out, records[startIdx:]...)
	out = append(out, records[:startIdx]...)

	return out
}

func emitLSLine(rec lsRecord) string {
	var bits strings.Builder

	for _, dword := range rec.digital {
		bits.WriteString(bitsLSBFirst(dword, 32))
	}

	var parts []string
	parts = append(parts, bits.String())
	parts = append(parts, emitAnalogSlots(rec.analog)...)
	parts = append(parts, strconv.Itoa(lsStamp(rec.header)), fmt.Sprintf("%08x", lsTime(rec.header)))

	return strings.Join(parts, " ")
}

// bitsLSBFirst renders the low `width` bits of v as a string with bit
// 0 first.
func bitsLSBFirst(v uint32, width int) string {
	var b strings.Builder

	for i := 0; i < width; i++ {
		if v&(1<<uint(i)) != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}

	return b.String()
}

// emitAnalogSlots decodes the analog portion of one record: the first
// byte of the first DWORD is the slot descriptor (bit7 valid, bits
// [6:5] channels-per-slot, bits [4:0] bits-per-channel); the
// remaining bits of the analog area hold that many channel values,
// packed MSB-first immediately after the descriptor byte.
func emitAnalogSlots(analog []uint32) []string {
	if len(analog) == 0 {
		return nil
	}

	bitstream := make([]byte, 0, len(analog)*32)
	for _, w := range analog {
		bitstream = append(bitstream, bitsMSBFirstBytes(w)...)
	}

	var descriptor byte
	for i := 0; i < 8 && i < len(bitstream); i++ {
		descriptor = descriptor<<1 | bitstream[i]
	}

	valid := descriptor&0x80 != 0
	chPerSlot := int(descriptor>>5) & 0x03
	bitsPerChannel := int(descriptor) & 0x1F

	out := make([]string, 0, chPerSlot)

	if !valid || chPerSlot == 0 {
		for i := 0; i < chPerSlot; i++ {
			out = append(out, "None")
		}

		return out
	}

	cursor := 8

	for ch := 0; ch < chPerSlot; ch++ {
		if cursor+bitsPerChannel > len(bitstream) {
			out = append(out, "None")

			continue
		}

		value := uint32(0)
		for b := 0; b < bitsPerChannel; b++ {
			value = value<<1 | uint32(bitstream[cursor+b])
		}

		cursor += bitsPerChannel

		hexWidth := (bitsPerChannel + 3) / 4
		out = append(out, fmt.Sprintf("%0*x", hexWidth, value))
	}

	return out
}

// bitsMSBFirstBytes expands a DWORD into 32 single-bit values, MSB
// first.
func bitsMSBFirstBytes(v uint32) []byte {
	out := make([]byte, 32)
	for i := 0; i < 32; i++ {
		if v&(1<<uint(31-i)) != 0 {
			out[i] = 1
		}
	}

	return out
}
