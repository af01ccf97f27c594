// Package hwdriver implements the two-register (ctrl/data)
// command/data convention of the acquisition engine: state
// transitions, configuration reads/writes, RLE pod sub-addressing,
// and the thread-pool/thread-lock cooperative protocol used when more
// than one client session targets the same hardware.
package hwdriver

// Opcode is an 8-bit command written to the ctrl register before the
// following data-register access is interpreted.
type Opcode byte

// State transitions.
const (
	OpIdle  Opcode = 0x01
	OpArm   Opcode = 0x02
	OpReset Opcode = 0x03
	OpInit  Opcode = 0x04
	OpSleep Opcode = 0x05
)

// Config reads.
const (
	OpRdHardwareID      Opcode = 0x10
	OpRdAnalogRAMGeom    Opcode = 0x11
	OpRdDigitalRAMGeom   Opcode = 0x12
	OpRdRecordProfile    Opcode = 0x13
	OpRdTriggerSource    Opcode = 0x14
	OpRdViewROMSize      Opcode = 0x15
	OpRdTickFreq         Opcode = 0x16
	OpRdDigitalClockFreq Opcode = 0x17
	OpRdStatusLegacy     Opcode = 0x18
	OpRdHubCount         Opcode = 0x19
	OpRdHubClock         Opcode = 0x1A
	OpRdHubName          Opcode = 0x1B
	OpRdPodCount         Opcode = 0x1C
	OpRdPodConfig        Opcode = 0x1D
	OpRdPodRAMGeom       Opcode = 0x1E
	OpRdPodTriggerable   Opcode = 0x1F
	OpRdPodTriggerLatency Opcode = 0x20
	OpRdPodName          Opcode = 0x21
	OpRdPodInstance      Opcode = 0x22

	// OpRdPodRegisterValue reads whichever pod register was last
	// selected with OpWrPodInstanceSelect.
	OpRdPodRegisterValue Opcode = 0x23

	// OpRdLSRAMData and OpRdHSRAMData bulk-read the LS/HS capture
	// RAM starting at whatever address OpWrRAMReadPointer last set.
	OpRdLSRAMData Opcode = 0x24
	OpRdHSRAMData Opcode = 0x25
)

// Config writes.
const (
	OpWrUserControl      Opcode = 0x30
	OpWrRecordConfig     Opcode = 0x31
	OpWrTickDivisor      Opcode = 0x32
	OpWrTriggerType      Opcode = 0x33
	OpWrDigitalTrigField Opcode = 0x34
	OpWrAnalogTrigField  Opcode = 0x35
	OpWrPostTrigLenLS    Opcode = 0x36
	OpWrPostTrigLenHS    Opcode = 0x37
	OpWrPostTrigLenRLE   Opcode = 0x38
	OpWrTriggerDelay     Opcode = 0x39
	OpWrTriggerNth       Opcode = 0x3A
	OpWrRAMReadPointer   Opcode = 0x3B
	OpWrRAMPage          Opcode = 0x3C
	OpWrRLEMask          Opcode = 0x3D

	// OpWrPodRegisterValue writes whichever pod register was last
	// selected with OpWrPodInstanceSelect.
	OpWrPodRegisterValue Opcode = 0x3E

	// OpWrSoftTrig sets (data 1) or clears (data 0) the software
	// trigger bit. The bit is not self-clearing, and writing it does
	// not touch the idle/arm state transitions, so an armed
	// acquisition keeps running while it is pulsed.
	OpWrSoftTrig Opcode = 0x3F
)

// RLE sub-addressing: write (hub<<16 | pod<<8 | reg) here, then access
// the pod data register.
const OpWrPodInstanceSelect Opcode = 0x40

// Thread-pool and thread-lock.
const (
	OpRdThreadPoolSet  Opcode = 0x50
	OpWrThreadPoolSet  Opcode = 0x51
	OpRdThreadLock     Opcode = 0x52
	OpWrThreadLock     Opcode = 0x53
)

// RLE bulk register ids, selected via OpWrPodInstanceSelect.
const (
	RegRLEData      byte = 0x00
	RegRLEUserCtrl  byte = 0x01
	RegRLETrigSrc   byte = 0x02
	RegRLEMask      byte = 0x03
	RegViewROM      byte = 0x04
)

// Status bit positions in the ctrl readback.
const (
	StatusBitHWBusy   = 31
	StatusBitLockHeld = 30
)

// Modern status field, bits [28:24].
const (
	ModernArmed     byte = 0x01
	ModernPreTrig   byte = 0x02
	ModernTriggered byte = 0x04
	ModernAcquired  byte = 0x08
)

// TriggerType is the value written to cmd_wr_trig_type.
type TriggerType byte

const (
	TriggerAndRising   TriggerType = 0x00
	TriggerAndFalling  TriggerType = 0x01
	TriggerOrRising    TriggerType = 0x02
	TriggerOrFalling   TriggerType = 0x03
	TriggerAnalogRise  TriggerType = 0x04
	TriggerAnalogFall  TriggerType = 0x05
	TriggerExtRising   TriggerType = 0x06
	TriggerExtFalling  TriggerType = 0x07
)

// RLEPosition selects how far into the RLE pod's RAM the trigger
// event is positioned, as a percentage of the ring buffer.
type RLEPosition byte

const (
	RLEPosition90 RLEPosition = 0x00
	RLEPosition75 RLEPosition = 0x10
	RLEPosition50 RLEPosition = 0x20
	RLEPosition25 RLEPosition = 0x30
	RLEPosition10 RLEPosition = 0x40
)

// RLETriggerKind is the low nibble of an RLE pod's trigger config
// byte.
type RLETriggerKind byte

const (
	RLETrigDisabled RLETriggerKind = 0x0
	RLETrigPattern  RLETriggerKind = 0x1
	RLETrigOrRising RLETriggerKind = 0x2
	RLETrigOrFalling RLETriggerKind = 0x3
	RLETrigAndRising RLETriggerKind = 0x4
	RLETrigAndFalling RLETriggerKind = 0x5
	RLETrigOrAnyEdge RLETriggerKind = 0x6
)

// RLETriggerConfig packs a pod's trigger position and kind into the
// single byte the hardware expects.
func RLETriggerConfig(pos RLEPosition, kind RLETriggerKind) byte {
	return byte(pos) | byte(kind)
}
