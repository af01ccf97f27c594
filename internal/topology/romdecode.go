package topology

import (
	"fmt"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// wordsToBytesMSB flattens 32-bit words into bytes, most-significant
// byte first, the order the ROM's bulk-read port delivers them in.
func wordsToBytesMSB(words []uint32) []byte {
	out := make([]byte, 0, len(words)*4)

	for _, w := range words {
		out = append(out, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
	}

	return out
}

// stripTrailingZeroRun drops everything from the first run of 8
// consecutive zero bytes onward (the padding the hardware appends
// after its data), then reverses the remainder: the ROM is read
// top-down by the hardware bulk port, lowest address last, so the
// logical parse order (ROM Start first) is the reverse of read order.
func stripTrailingZeroRun(raw []byte) []byte {
	zeroRun := 0
	cut := len(raw)

	for i, b := range raw {
		if b == 0 {
			zeroRun++
			if zeroRun == 8 {
				cut = i - 7

				break
			}
		} else {
			zeroRun = 0
		}
	}

	trimmed := raw[:cut]

	reversed := make([]byte, len(trimmed))
	for i, b := range trimmed {
		reversed[len(trimmed)-1-i] = b
	}

	return reversed
}

type romCursor struct {
	data []byte
	pos  int
}

func (c *romCursor) next() (byte, bool) {
	if c.pos >= len(c.data) {
		return 0, false
	}

	b := c.data[c.pos]
	c.pos++

	return b, true
}

func (c *romCursor) takeN(n int) ([]byte, error) {
	if c.pos+n > len(c.data) {
		return nil, fmt.Errorf("topology: ROM truncated, wanted %d more bytes at offset %d", n, c.pos)
	}

	out := c.data[c.pos : c.pos+n]
	c.pos += n

	return out, nil
}

// takeASCII reads 7-bit ASCII bytes until the next opcode byte
// (>= 0xE0) or end of stream.
func (c *romCursor) takeASCII() string {
	start := c.pos
	for c.pos < len(c.data) && c.data[c.pos] < 0xE0 {
		c.pos++
	}

	return string(c.data[start:c.pos])
}

func be16(b []byte) int { return int(b[0])<<8 | int(b[1]) }

// DecodeROM parses one pod or core view ROM's raw words into the
// normalized command stream. A bad opcode or truncated field is a
// ConfigParse error local to this ROM; the caller is expected to skip
// the offending ROM and continue enumerating the rest of the
// topology rather than abort.
func DecodeROM(words []uint32) ([]Command, error) {
	raw := stripTrailingZeroRun(wordsToBytesMSB(words))
	cur := &romCursor{data: raw}

	var cmds []Command

	for {
		op, ok := cur.next()
		if !ok {
			return cmds, nil
		}

		switch op {
		case 0xF0: // ROM Start
			continue
		case 0xF1:
			cmds = append(cmds, CreateView{Name: cur.takeASCII()})
		case 0xF2:
			cmds = append(cmds, SourceThisPod{})
		case 0xF3:
			b, err := cur.takeN(2)
			if err != nil {
				return nil, sumperr.Wrap(sumperr.ConfigParse, err, "F3 source hub/pod")
			}

			cmds = append(cmds, SourceHubPod{Hub: b[0], Pod: b[1]})
		case 0xF4:
			cmds = append(cmds, SourceByName{Name: cur.takeASCII()})
		case 0xF5:
			cmds = append(cmds, CreateGroup{Name: cur.takeASCII()})
		case 0xF6:
			b, err := cur.takeN(2)
			if err != nil {
				return nil, sumperr.Wrap(sumperr.ConfigParse, err, "F6 signal bit")
			}

			cmds = append(cmds, CreateSignalBit{Bit: be16(b), Name: cur.takeASCII()})
		case 0xF7:
			b, err := cur.takeN(4)
			if err != nil {
				return nil, sumperr.Wrap(sumperr.ConfigParse, err, "F7 signal vector")
			}

			cmds = append(cmds, CreateSignalVector{Hi: be16(b[0:2]), Lo: be16(b[2:4]), Name: cur.takeASCII()})
		case 0xF8:
			b, err := cur.takeN(1)
			if err != nil {
				return nil, sumperr.Wrap(sumperr.ConfigParse, err, "F8 FSM state")
			}

			cmds = append(cmds, CreateFSMState{Value: int(b[0]), Name: cur.takeASCII()})
		case 0xF9:
			b, err := cur.takeN(4)
			if err != nil {
				return nil, sumperr.Wrap(sumperr.ConfigParse, err, "F9 bit group")
			}

			cmds = append(cmds, CreateBitGroup{Hi: be16(b[0:2]), Lo: be16(b[2:4]), Name: cur.takeASCII()})
		case 0xFD:
			cmds = append(cmds, FreeformCommand{Text_: cur.takeASCII()})
		case 0xFE:
			cmds = append(cmds, ApplyAttribute{Attrs: ParseAttributes(cur.takeASCII())})
		case 0xE0:
			return cmds, nil
		case 0xE1:
			cmds = append(cmds, EndView{})
		case 0xE2, 0xE3, 0xE4:
			cmds = append(cmds, EndSource{})
		case 0xE5:
			cmds = append(cmds, EndGroup{})
		default:
			return nil, sumperr.New(sumperr.ConfigParse, "unknown ROM opcode 0x%02x at offset %d", op, cur.pos-1)
		}
	}
}
