package hwdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIO is an in-memory RegisterIO with the two-register semantics
// the driver expects: writing ctrl selects an opcode, data-reads serve
// from a per-opcode word queue, and ctrl-reads return a seedable
// status word the way the hardware's readback does.
type fakeIO struct {
	ctrl    uint32
	status  uint32
	ctrlLog []uint32

	data map[uint32][]uint32

	writes map[uint32][]uint32
}

func newFakeIO() *fakeIO {
	return &fakeIO{data: map[uint32][]uint32{}, writes: map[uint32][]uint32{}}
}

func (f *fakeIO) Read(addr uint32, n int, repeat bool) ([]uint32, error) {
	if addr == 0 {
		out := make([]uint32, n)
		for i := range out {
			out[i] = f.status
		}

		return out, nil
	}

	queue := f.data[f.ctrl]
	out := make([]uint32, n)

	for i := 0; i < n && i < len(queue); i++ {
		out[i] = queue[i]
	}

	if len(queue) > n {
		f.data[f.ctrl] = queue[n:]
	} else {
		f.data[f.ctrl] = nil
	}

	return out, nil
}

func (f *fakeIO) Write(addr uint32, data []uint32, repeat bool) error {
	if addr == 0 {
		f.ctrl = data[0]
		f.ctrlLog = append(f.ctrlLog, data[0])

		return nil
	}

	f.writes[f.ctrl] = append(f.writes[f.ctrl], data...)

	return nil
}

func (f *fakeIO) queue(op Opcode, words ...uint32) {
	f.data[uint32(op)] = append(f.data[uint32(op)], words...)
}

func TestReadConfigWordWritesOpcodeThenReadsData(t *testing.T) {
	io := newFakeIO()
	io.queue(OpRdHardwareID, 0x00000153)

	d := &Driver{IO: io}

	word, err := d.ReadConfigWord(OpRdHardwareID)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x153), word)
	assert.Equal(t, []uint32{uint32(OpRdHardwareID)}, io.ctrlLog)
}

func TestCheckHardwarePresent(t *testing.T) {
	io := newFakeIO()
	io.queue(OpRdHardwareID, 0x53)

	d := &Driver{IO: io}
	require.NoError(t, d.CheckHardwarePresent())

	io.queue(OpRdHardwareID, 0x42)
	require.Error(t, d.CheckHardwarePresent())
}

func TestSelectPodRegisterPacksSelector(t *testing.T) {
	io := newFakeIO()
	d := &Driver{IO: io}

	require.NoError(t, d.SelectPodRegister(2, 3, RegRLEMask))

	assert.Equal(t, []uint32{uint32(2)<<16 | uint32(3)<<8 | uint32(RegRLEMask)},
		io.writes[uint32(OpWrPodInstanceSelect)])
}

func TestModernStatusDecodePriority(t *testing.T) {
	cases := []struct {
		raw  byte
		want State
	}{
		{ModernAcquired | ModernTriggered | ModernArmed, StateAcquired},
		{ModernTriggered | ModernArmed, StateTriggered},
		{ModernPreTrig | ModernArmed, StatePreTrigFill},
		{ModernArmed, StateArmed},
		{0x00, StateIdle},
		{0x10, StateUnknown},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, decodeStatusBits(tc.raw), "raw 0x%02x", tc.raw)
	}
}

func TestStateReadsModernBits(t *testing.T) {
	io := newFakeIO()
	io.status = uint32(ModernTriggered) << 24

	d := &Driver{IO: io}

	st, err := d.State()
	require.NoError(t, err)
	assert.Equal(t, StateTriggered, st)
}

func TestThreadPoolAcquirePicksLowestFreeBit(t *testing.T) {
	io := newFakeIO()
	io.queue(OpRdThreadPoolSet, 0b0111)

	p := &ThreadPool{Driver: &Driver{IO: io}}

	id, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), id)
	assert.Equal(t, []uint32{0b1111}, io.writes[uint32(OpWrThreadPoolSet)])
}

func TestThreadPoolSurrenderClearsOwnBit(t *testing.T) {
	io := newFakeIO()
	io.queue(OpRdThreadPoolSet, 0)
	io.queue(OpRdThreadPoolSet, 0b0001)

	p := &ThreadPool{Driver: &Driver{IO: io}}

	_, err := p.Acquire()
	require.NoError(t, err)

	require.NoError(t, p.Surrender())
	writes := io.writes[uint32(OpWrThreadPoolSet)]
	assert.Equal(t, uint32(0), writes[len(writes)-1])
}

func TestThreadLockClearsOwnBitBeforeSetting(t *testing.T) {
	io := newFakeIO()
	// Stale own bit left by a crash, then the clear, then the set
	// sticking on verify.
	io.queue(OpRdThreadLock, 0b0100)
	io.queue(OpRdThreadLock, 0b0000)
	io.queue(OpRdThreadLock, 0b0100)

	l := &ThreadLock{Driver: &Driver{IO: io}, ThreadID: 2}
	require.NoError(t, l.Acquire())

	writes := io.writes[uint32(OpWrThreadLock)]
	require.Len(t, writes, 2)
	assert.Equal(t, uint32(0), writes[0])
	assert.Equal(t, uint32(0b0100), writes[1])
}

func TestArmSequenceOrdersStateTransitions(t *testing.T) {
	io := newFakeIO()
	io.status = uint32(ModernArmed) << 24

	d := &Driver{IO: io}

	plan := ArmPlan{
		UserControl:  map[PodAddr]uint32{{Hub: 0, Pod: 1}: 0xA},
		RLEMask:      map[PodAddr]uint32{},
		TriggerType:  TriggerOrRising,
		TriggerField: 0x1,
		RLETrigger:   map[PodAddr]byte{},
	}

	require.NoError(t, d.Arm(plan))

	last4 := io.ctrlLog[len(io.ctrlLog)-4:]
	assert.Equal(t, []uint32{uint32(OpReset), uint32(OpInit), uint32(OpIdle), uint32(OpArm)}, last4)

	assert.Equal(t, []uint32{uint32(TriggerOrRising)}, io.writes[uint32(OpWrTriggerType)])
	assert.Equal(t, []uint32{0x1}, io.writes[uint32(OpWrDigitalTrigField)])
}

func TestForceTrigPulsesSoftTrigBitOnly(t *testing.T) {
	io := newFakeIO()
	d := &Driver{IO: io}

	require.NoError(t, d.ForceTrig())
	require.NoError(t, d.ClearForceTrig())

	assert.Equal(t, []uint32{1, 0}, io.writes[uint32(OpWrSoftTrig)])

	// An armed session must stay armed: neither call may write the
	// idle/arm state-transition opcodes.
	for _, op := range io.ctrlLog {
		assert.NotEqual(t, uint32(OpIdle), op)
		assert.NotEqual(t, uint32(OpArm), op)
		assert.NotEqual(t, uint32(OpReset), op)
	}
}

func TestForceStopResetsThenIdles(t *testing.T) {
	io := newFakeIO()
	d := &Driver{IO: io}

	require.NoError(t, d.ForceStop())

	assert.Equal(t, []uint32{uint32(OpReset), uint32(OpIdle)}, io.ctrlLog)
}

func TestAnalogTriggerFieldPacksChannelAndCode(t *testing.T) {
	assert.Equal(t, uint32(0x02_000080), AnalogTriggerField(2, 0x80))
	// Negative codes keep only their low 24 bits.
	assert.Equal(t, uint32(0x01_FFFFFF), AnalogTriggerField(1, -1))
}

func TestRLETriggerConfigSumsPositionAndKind(t *testing.T) {
	assert.Equal(t, byte(0x23), RLETriggerConfig(RLEPosition50, RLETrigOrFalling))
}

func TestCaptureConfigRoundTrip(t *testing.T) {
	cfg := &CaptureConfig{
		HWID:              0x53,
		HWRev:             2,
		AnalogRAMWidth:    32,
		AnalogRAMDepth:    1024,
		DigitalRAMWidth:   64,
		DigitalRAMDepth:   2048,
		RecordProfile:     0x03010200,
		TickFreqMHz:       100.5,
		TickDivisor:       4,
		DigFreqMHz:        400,
		PostTrigSamplesLS: 512,
		PostTrigSamplesHS: 256,
		UserCtrl:          0xDEAD,
		TriggerType:       3,
		TriggerField:      0xFF00,
		TriggerNth:        2,
		TriggerDelay:      10,
	}

	parsed, err := ParseCaptureConfig(cfg.Marshal())
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}

func TestParseCaptureConfigAcceptsHexAndSkipsUnknownKeys(t *testing.T) {
	text := "hw_id = 83\nrecord_profile = 0x03010200\nfuture_key = 7\n"

	cfg, err := ParseCaptureConfig(text)
	require.NoError(t, err)
	assert.Equal(t, byte(0x53), cfg.HWID)
	assert.Equal(t, uint32(0x03010200), cfg.RecordProfile)
}

func TestCaptureConfigValidateRejectsOversizedPostTrig(t *testing.T) {
	cfg := &CaptureConfig{DigitalRAMDepth: 100, PostTrigSamplesLS: 101}
	require.Error(t, cfg.Validate())

	cfg.PostTrigSamplesLS = 100
	require.NoError(t, cfg.Validate())
}
