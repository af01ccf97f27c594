// Package sumphost is the orchestrator that wires transport,
// hwdriver, topology, decode, model, and archive together into the
// connect -> discover -> arm -> acquire -> download -> bind control
// flow, and exposes the scripting-surface command vocabulary
// external layers (a UI, a test harness, a REPL) drive it with.
package sumphost

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blackmesalabs/sump3/internal/archive"
	"github.com/blackmesalabs/sump3/internal/decode"
	"github.com/blackmesalabs/sump3/internal/hwdriver"
	"github.com/blackmesalabs/sump3/internal/model"
	"github.com/blackmesalabs/sump3/internal/sumpcfg"
	"github.com/blackmesalabs/sump3/internal/sumperr"
	"github.com/blackmesalabs/sump3/internal/topology"
	"github.com/blackmesalabs/sump3/internal/transport"
)

// regBase is the two-register window's base address on the backdoor
// bus; the hardware places it at address 0.
const regBase uint32 = 0x00000000

// Engine holds the live hardware link (if connected) and the
// catalog of signals/views built from it or from a loaded archive.
type Engine struct {
	Sess   *transport.Session
	Driver *hwdriver.Driver
	Topo   *topology.Topology
	Catalog *model.Catalog
	Archive *archive.Archive

	// CaptureCfg mirrors the hardware's capture configuration: read
	// from registers at connect, refreshed by Arm with what was
	// actually programmed, or parsed from sump_capture_cfg.txt when an
	// archive is loaded offline.
	CaptureCfg *hwdriver.CaptureConfig

	// Connected is true only while a live hardware session is up;
	// loading an archive flips it false so callers know sample data
	// came from disk.
	Connected bool

	log *log.Logger

	pool *hwdriver.ThreadPool
	lock *hwdriver.ThreadLock

	// podFlushDelay is the pause between observing the triggered/
	// acquired state and starting the download, giving every pod time
	// to flush its post-trigger window.
	podFlushDelay time.Duration

	lsAnaDigAlignment int

	// tickDivisor is the value the LS tick-frequency register is
	// divided by to get the LS sample period; the scripting
	// surface has no verb to program cmd_wr_tick_divisor yet, so this
	// stays at the register's power-on default of 1 until one exists.
	tickDivisor int

	// lastArmPlan is the plan the most recent successful Arm call
	// programmed, kept so download's trigger-index fallback can
	// see the post-trigger lengths that were actually armed with.
	lastArmPlan *hwdriver.ArmPlan

	// scriptPC is the ParseContext the scripting surface's
	// create_view/create_signal/... verbs apply to; lazily created on
	// first use since a scripted view belongs to no ROM-discovered
	// pod.
	scriptPC *model.ParseContext

	// pendingRLE holds sump_set_trigs entries queued for the next
	// sump_arm.
	pendingRLE *pendingRLETrig
}

// New builds an unconnected Engine; sump_connect attaches it to
// hardware.
func New(logger *log.Logger) *Engine {
	return &Engine{
		Catalog:           model.NewCatalog(),
		Archive:           archive.New(),
		log:               logger,
		lsAnaDigAlignment: 4,
		tickDivisor:       1,
	}
}

// Connect dials the backdoor server, checks hardware presence,
// discovers the topology, and builds the signal/view catalog from
// every pod's view ROM (or synthesized fallback).
func (e *Engine) Connect(ctx context.Context, cfg sumpcfg.Config) error {
	sess, err := transport.Connect(ctx, cfg.Host, cfg.Port, transport.Options{
		AESKey:       decodeAESKey(cfg.AESKeyHex),
		Authenticate: cfg.Authenticate,
		Timeout:      time.Duration(cfg.ConnectTimeout) * time.Millisecond,
		Logger:       e.log,
	})
	if err != nil {
		return err
	}

	driver := &hwdriver.Driver{IO: sess, Base: regBase, Log: e.log}

	if err := driver.CheckHardwarePresent(); err != nil {
		sess.Quit()

		return err
	}

	topo, err := topology.Discover(driver)
	if err != nil {
		sess.Quit()

		return err
	}

	pool := &hwdriver.ThreadPool{Driver: driver}

	threadID, err := pool.Acquire()
	if err != nil {
		sess.Quit()

		return err
	}

	captureCfg, err := driver.ReadCaptureConfig()
	if err != nil {
		e.log.Warn("capture config read failed, keeping defaults", "err", err)

		captureCfg = &hwdriver.CaptureConfig{TickDivisor: 1}
	}

	e.Sess = sess
	e.Driver = driver
	e.Topo = topo
	e.pool = pool
	e.lock = &hwdriver.ThreadLock{Driver: driver, ThreadID: threadID}
	e.CaptureCfg = captureCfg
	e.Connected = true
	e.podFlushDelay = time.Duration(cfg.MaxPodAcqTime) * time.Millisecond

	return e.buildCatalog()
}

// Close surrenders the thread-pool ID and tears down the transport
// session. Safe to call when never connected.
func (e *Engine) Close() error {
	if e.pool != nil {
		if err := e.pool.Surrender(); err != nil {
			e.log.Warn("thread-pool surrender failed", "err", err)
		}

		e.pool = nil
		e.lock = nil
	}

	e.Connected = false

	if e.Sess == nil {
		return nil
	}

	err := e.Sess.Quit()
	e.Sess = nil
	e.Driver = nil

	return err
}

// withLock runs fn under the hardware thread lock when one is held
// (live session), or directly when operating without the cooperative
// protocol (tests against a bare driver).
func (e *Engine) withLock(fn func() error) error {
	if e.lock == nil {
		return fn()
	}

	return e.lock.WithLock(fn)
}

func (e *Engine) buildCatalog() error {
	nameIdx := topology.BuildNameIndex(e.Topo)
	e.Catalog = model.NewCatalog()

	for _, hub := range e.Topo.Hubs {
		for _, pod := range hub.Pods {
			key := topology.PodKey{Hub: hub.Index, Pod: pod.Index}

			var cmds []topology.Command

			if pod.ViewROMPresent {
				words, err := topology.ReadViewROM(e.Driver, hub.Index, pod.Index, pod.ViewROMSizeWords)
				if err != nil {
					e.log.Warn("view ROM read failed, using synthetic view", "pod", key, "err", err)
					cmds = topology.SynthesizeView(hub, pod)
				} else {
					raw, err := topology.DecodeROM(words)
					if err != nil {
						e.log.Warn("view ROM decode failed, using synthetic view", "pod", key, "err", err)
						cmds = topology.SynthesizeView(hub, pod)
					} else {
						cmds = topology.GenerateExpand(e.Topo, topology.RewriteSources(nameIdx, raw))
					}
				}
			} else {
				cmds = topology.SynthesizeView(hub, pod)
			}

			pc := model.NewParseContext(e.Catalog, key, "#FFFFFF")
			pc.Apply(cmds)

			// The normalized stream is persisted alongside the capture
			// so an archive can rebuild this view without hardware.
			if name := firstViewName(cmds); name != "" {
				e.Archive.Put("rom_"+name+".txt", []byte(topology.RenderCommands(cmds)))
			}
		}
	}

	return nil
}

func firstViewName(cmds []topology.Command) string {
	for _, c := range cmds {
		if cv, ok := c.(topology.CreateView); ok {
			return cv.Name
		}
	}

	return ""
}

// Arm collapses the catalog's applied views into an ArmPlan and
// drives the hardware's 5-step arm sequence.
func (e *Engine) Arm(plan hwdriver.ArmPlan) error {
	if e.Driver == nil {
		return sumperr.New(sumperr.HardwareMissing, "sumphost: Arm: not connected")
	}

	if err := e.withLock(func() error { return e.Driver.Arm(plan) }); err != nil {
		return err
	}

	e.lastArmPlan = &plan

	if e.CaptureCfg != nil {
		e.CaptureCfg.TriggerType = byte(plan.TriggerType)
		e.CaptureCfg.TriggerField = plan.TriggerField
		e.CaptureCfg.PostTrigSamplesLS = plan.PostTrigLenLS
		e.CaptureCfg.PostTrigSamplesHS = plan.PostTrigLenHS
	}

	return nil
}

// ArmFromCatalog builds the plan from the currently-applied views'
// user-control and RLE-mask requirements, fills the trigger
// programming (steps 3-4) and post-trigger lengths from its
// arguments, and arms with it.
func (e *Engine) ArmFromCatalog(trig hwdriver.TriggerType, field uint32, rle map[hwdriver.PodAddr]byte, postLS, postHS, postRLE uint32) error {
	plan := model.BuildArmPlan(e.Catalog)
	plan.TriggerType = trig
	plan.TriggerField = field
	plan.RLETrigger = rle
	plan.PostTrigLenLS = postLS
	plan.PostTrigLenHS = postHS
	plan.PostTrigLenRLE = postRLE

	return e.Arm(plan)
}

// Acquire polls the state machine until it reaches Acquired or the
// timeout elapses.
func (e *Engine) Acquire(timeout time.Duration) error {
	if e.Driver == nil {
		return sumperr.New(sumperr.HardwareMissing, "sumphost: Acquire: not connected")
	}

	return e.Driver.PollUntilState(hwdriver.StateAcquired, timeout)
}

// ForceTrigger pulses the software trigger bit: an armed acquisition
// sees a trigger event and keeps running through its post-trigger
// fill. The bit is not self-clearing, so it is cleared immediately
// after setting.
func (e *Engine) ForceTrigger() error {
	if e.Driver == nil {
		return sumperr.New(sumperr.HardwareMissing, "sumphost: ForceTrigger: not connected")
	}

	if err := e.Driver.ForceTrig(); err != nil {
		return err
	}

	return e.Driver.ClearForceTrig()
}

// ForceStop abandons the acquisition: reset then idle, always safe.
func (e *Engine) ForceStop() error {
	if e.Driver == nil {
		return sumperr.New(sumperr.HardwareMissing, "sumphost: ForceStop: not connected")
	}

	return e.Driver.ForceStop()
}

// Download pulls the LS and HS RAM plus every RLE pod's RAM the
// catalog's signals reference, decodes each, binds every affected
// signal's values (and, for RLE, times), and records the capture
// configuration, pod list, RAM dumps, and decoded samples in the
// engine's archive so a following save_pza captures the full state.
func (e *Engine) Download() error {
	if e.Driver == nil {
		return sumperr.New(sumperr.HardwareMissing, "sumphost: Download: not connected")
	}

	// Pods flush their post-trigger windows on their own clocks;
	// give the slowest one time to finish before draining RAMs.
	if e.podFlushDelay > 0 {
		time.Sleep(e.podFlushDelay)
	}

	return e.withLock(func() error {
		if e.CaptureCfg != nil {
			e.Archive.Put(archive.FileCaptureCfg, []byte(e.CaptureCfg.Marshal()))
		}

		e.Archive.Put(archive.FileRLEPodList, []byte(e.renderPodList()))

		if err := e.downloadLS(); err != nil {
			return err
		}

		if err := e.downloadHS(); err != nil {
			return err
		}

		return e.downloadRLE()
	})
}

// renderPodList emits one "hub_index,pod_index full.hub.name.pod.name"
// line per discovered pod.
func (e *Engine) renderPodList() string {
	var sb strings.Builder

	if e.Topo == nil {
		return ""
	}

	for _, hub := range e.Topo.Hubs {
		for _, pod := range hub.Pods {
			fmt.Fprintf(&sb, "%d,%d %s\n", hub.Index, pod.Index, topology.DottedName(hub, pod))
		}
	}

	return sb.String()
}

// renderRAMDump emits raw RAM words as one 8-hex DWORD per line.
func renderRAMDump(words []uint32) string {
	var sb strings.Builder

	for _, w := range words {
		fmt.Fprintf(&sb, "%08x\n", w)
	}

	return sb.String()
}

func (e *Engine) downloadLS() error {
	if err := e.Driver.WriteConfigWord(hwdriver.OpWrRAMReadPointer, 0); err != nil {
		return err
	}

	profileWord, err := e.Driver.ReadConfigWord(hwdriver.OpRdRecordProfile)
	if err != nil {
		return err
	}

	profile := decode.ParseRecordProfile(profileWord)

	geomWord, err := e.Driver.ReadConfigWord(hwdriver.OpRdDigitalRAMGeom)
	if err != nil {
		return err
	}

	totalWords := int(geomWord)
	if totalWords <= 0 || profile.RecordLen <= 0 {
		return nil
	}

	words, err := e.Driver.BulkRead(hwdriver.OpRdLSRAMData, totalWords)
	if err != nil {
		return err
	}

	e.Archive.Put(archive.FileLSRam, []byte(renderRAMDump(words)))

	lines, err := decode.DecodeLowSpeed(words, profile)
	if err != nil {
		e.log.Warn("LS decode failed", "err", err)

		return nil
	}

	e.Archive.Put(archive.FileLSSamples, []byte(joinLines(lines)))
	e.bindTimezoneSignals(model.SourceDigitalLS, lines)
	e.bindAnalogLSSignals(lines)

	tickFreqWord, err := e.Driver.ReadConfigWord(hwdriver.OpRdTickFreq)
	if err != nil {
		return err
	}

	samplePeriodPS := samplePeriodFromMHz(topology.DecodeU12_20(tickFreqWord), e.tickDivisor)

	triggerIndex := findStampTriggerIndex(lines)
	if triggerIndex < 0 {
		depth := totalWords / profile.RecordLen
		// The LS engine has no capture pipeline offset.
		triggerIndex = depth - int(e.postTrigLenLS())
	}

	model.ApplyWindowTiming(e.Catalog, "ls", model.WindowTiming{SamplePeriodPS: samplePeriodPS, TriggerIndex: triggerIndex})

	return nil
}

// postTrigLenLS and postTrigLenHS return the post-trigger sample
// counts the most recent successful Arm programmed, or 0 before any
// arm, for the trigger-index fallback formula.
func (e *Engine) postTrigLenLS() uint32 {
	if e.lastArmPlan == nil {
		return 0
	}

	return e.lastArmPlan.PostTrigLenLS
}

func (e *Engine) postTrigLenHS() uint32 {
	if e.lastArmPlan == nil {
		return 0
	}

	return e.lastArmPlan.PostTrigLenHS
}

// findStampTriggerIndex scans DecodeLowSpeed's output lines for the
// explicit trigger-stamp marker (the second-to-last whitespace field,
// "2"), returning its index or -1 if none carries one.
func findStampTriggerIndex(lines []string) int {
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		if fields[len(fields)-2] == "2" {
			return i
		}
	}

	return -1
}

// samplePeriodFromMHz converts a clock frequency in MHz to a sample
// period in picoseconds, scaled by a divisor (1/tick_freq ×
// tick_divisor for LS; HS and RLE callers pass divisor 1).
func samplePeriodFromMHz(freqMHz float64, divisor int) int64 {
	if freqMHz <= 0 {
		return 0
	}

	return int64(1e6 / freqMHz * float64(divisor))
}

func (e *Engine) downloadHS() error {
	geomWord, err := e.Driver.ReadConfigWord(hwdriver.OpRdAnalogRAMGeom)
	if err != nil {
		return err
	}

	totalWords := int(geomWord)
	if totalWords <= 0 {
		return nil
	}

	words, err := e.Driver.BulkRead(hwdriver.OpRdHSRAMData, totalWords)
	if err != nil {
		return err
	}

	e.Archive.Put(archive.FileHSRam, []byte(renderRAMDump(words)))

	const ramWidthDWords = 1

	lines := decode.DecodeHighSpeed(words, ramWidthDWords)

	e.Archive.Put(archive.FileHSSamples, []byte(joinLines(lines)))
	e.bindTimezoneSignals(model.SourceDigitalHS, lines)

	digFreqWord, err := e.Driver.ReadConfigWord(hwdriver.OpRdDigitalClockFreq)
	if err != nil {
		return err
	}

	samplePeriodPS := samplePeriodFromMHz(topology.DecodeU12_20(digFreqWord), 1)

	// HS samples carry no stamp field, so the trigger index always
	// comes from the depth/post-trig/pipeline-offset formula; the HS
	// engine's capture pipeline is 7 samples deep.
	const hsPipelineOffset = 7
	triggerIndex := totalWords - int(e.postTrigLenHS()) - hsPipelineOffset

	model.ApplyWindowTiming(e.Catalog, "hs", model.WindowTiming{SamplePeriodPS: samplePeriodPS, TriggerIndex: triggerIndex})

	return nil
}

func (e *Engine) bindTimezoneSignals(kind model.SourceKind, lines []string) {
	for _, sig := range e.Catalog.Signals {
		if sig.Source == nil || sig.Source.Kind != kind {
			continue
		}

		if err := model.BindDigitalBitString(sig, lines); err != nil {
			e.log.Warn("bind digital signal failed", "signal", sig.Name, "err", err)
		}
	}
}

func (e *Engine) bindAnalogLSSignals(lines []string) {
	for _, sig := range e.Catalog.Signals {
		if sig.Source == nil || sig.Source.Kind != model.SourceAnalogLS {
			continue
		}

		if err := model.BindAnalogLS(sig, lines, e.lsAnaDigAlignment); err != nil {
			e.log.Warn("bind analog signal failed", "signal", sig.Name, "err", err)
		}
	}
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}

	return out
}

func (e *Engine) downloadRLE() error {
	rleTimingSet := false

	var ramDump, sampleDump strings.Builder

	for _, podKey := range model.PodKeysWithRLESource(e.Catalog) {
		hub, pod, ok := e.Topo.FindPod(podKey)
		if !ok {
			continue
		}

		pages, err := topology.ReadRLERAM(e.Driver, hub.Index, pod.Index, pod.AddrBits, pod.DataBits, pod.TimestampBits)
		if err != nil {
			return err
		}

		fmt.Fprintf(&ramDump, "# pod %d,%d pages %d addr_bits %d\n", podKey.Hub, podKey.Pod, len(pages), pod.AddrBits)

		for _, page := range pages {
			ramDump.WriteString(renderRAMDump(page))
		}

		samples, err := decode.DecodeRLEPages(pages, pod.AddrBits, pod.DataBits, pod.TimestampBits)
		if err != nil {
			e.log.Warn("RLE decode failed", "pod", podKey, "err", err)

			continue
		}

		rotated, triggerPos, err := decode.RotateToTrigger(samples)
		if err != nil {
			e.log.Warn("RLE pod has no trigger marker, emitting empty vector", "pod", podKey, "err", err)

			e.clearSamplesForPod(podKey)

			continue
		}

		unwrapped := decode.UnwrapTime(rotated, pod.TimestampBits)
		culled := decode.TimeCull(unwrapped, triggerPos, e.log)

		psPerTick, offsetParams := triggerOffsetParamsForPod(hub, pod)
		e.log.Debug("pod capture skew", "pod", podKey, "skew_ps", offsetParams.FixedOffsetPS())

		signed := decode.ApplyTriggerOffset(culled.Samples, culled.TriggerPos, psPerTick, offsetParams)
		lines := decode.EmitRLELines(signed, pod.DataBits, pod.RLEBitMask)

		fmt.Fprintf(&sampleDump, "# pod %d,%d user_ctrl %08x\n", podKey.Hub, podKey.Pod, pod.UserCtrl)

		for _, line := range lines {
			sampleDump.WriteString(line)
			sampleDump.WriteByte('\n')
		}

		e.bindRLESignalsForPod(podKey, lines, pod.UserCtrl)

		if !rleTimingSet {
			model.ApplyWindowTiming(e.Catalog, "rle", model.WindowTiming{SamplePeriodPS: 1, TriggerIndex: culled.TriggerPos})
			rleTimingSet = true
		}
	}

	e.Archive.Put(archive.FileRLERam, []byte(ramDump.String()))
	e.Archive.Put(archive.FileRLESamples, []byte(sampleDump.String()))

	return nil
}

// triggerOffsetParamsForPod derives the trigger-offset compensation
// tunables from the pod's actual trigger-latency registers and the
// hub clock it runs on, rather than a baked-in constant: the hub
// clock period in picoseconds is psPerTick, used both to scale the
// raw timestamp and to convert the pod's latched core/miso/mosi
// cycle counts into the three terms TriggerOffsetParams.FixedOffsetPS
// sums. The offset never moves a pod's own trigger sample off 0 —
// decode.ApplyTriggerOffset anchors there — it is the pod's capture
// skew, meaningful when lining several pods up against each other.
func triggerOffsetParamsForPod(hub *topology.Hub, pod *topology.Pod) (int64, decode.TriggerOffsetParams) {
	psPerTick := samplePeriodFromMHz(hub.ClockMHz, 1)

	params := decode.TriggerOffsetParams{
		TriggerSourceMISOLatencyPS: int64(pod.TriggerLatencyMISOClockCycles) * psPerTick,
		PodCoreClockPS:             psPerTick,
		TriggerCoreCycles:          int64(pod.TriggerLatencyCoreClockCycles),
		PodClockPS:                 psPerTick,
		TriggerMOSICycles:          int64(pod.TriggerLatencyMOSIClockCycles),
	}

	return psPerTick, params
}

func (e *Engine) bindRLESignalsForPod(podKey topology.PodKey, lines []string, userCtrl uint32) {
	for _, sig := range e.Catalog.Signals {
		if sig.Source == nil || sig.Source.Kind != model.SourceDigitalRLE || sig.Source.Pod != podKey {
			continue
		}

		if err := model.BindRLE(sig, lines, userCtrl); err != nil {
			e.log.Warn("bind RLE signal failed", "signal", sig.Name, "err", err)
		}
	}
}

func (e *Engine) clearSamplesForPod(podKey topology.PodKey) {
	for _, sig := range e.Catalog.Signals {
		if sig.Source != nil && sig.Source.Kind == model.SourceDigitalRLE && sig.Source.Pod == podKey {
			sig.Values = nil
			sig.RLETime = nil
		}
	}
}

func decodeAESKey(hexKey string) []byte {
	if hexKey == "" {
		return nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil
	}

	return key
}
