package hwdriver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// CaptureConfig is the hardware-derived capture configuration: RAM
// geometry, the analog record profile, clocking, and the trigger
// programming of the most recent arm. It is populated from register
// reads on a live session, or from a sump_capture_cfg.txt stream when
// an archive is loaded offline.
type CaptureConfig struct {
	HWID  byte
	HWRev byte

	AnalogRAMWidth  int
	AnalogRAMDepth  int
	DigitalRAMWidth int
	DigitalRAMDepth int

	// RecordProfile is the packed (record-len, header-len, digital-len,
	// analog-len) byte quad, kept in its wire form so the decoder's own
	// profile parser stays the single unpacking point.
	RecordProfile uint32

	TickFreqMHz    float64
	TickDivisor    int
	DigFreqMHz     float64

	FirstSamplePtrLS  uint32
	PostTrigSamplesLS uint32
	FirstSamplePtrHS  uint32
	PostTrigSamplesHS uint32

	UserCtrl     uint32
	TriggerType  byte
	TriggerField uint32
	TriggerNth   uint32
	TriggerDelay uint32
}

// Validate checks the per-engine invariant that a capture cannot
// retain more post-trigger samples than its RAM holds.
func (c *CaptureConfig) Validate() error {
	if c.DigitalRAMDepth > 0 && int(c.PostTrigSamplesLS) > c.DigitalRAMDepth {
		return sumperr.New(sumperr.ConfigParse,
			"capture config: LS post-trigger samples %d exceed engine depth %d",
			c.PostTrigSamplesLS, c.DigitalRAMDepth)
	}

	if c.AnalogRAMDepth > 0 && int(c.PostTrigSamplesHS) > c.AnalogRAMDepth {
		return sumperr.New(sumperr.ConfigParse,
			"capture config: HS post-trigger samples %d exceed engine depth %d",
			c.PostTrigSamplesHS, c.AnalogRAMDepth)
	}

	return nil
}

// ReadCaptureConfig populates a CaptureConfig from the live config
// registers. Fields backed by write-only registers (trigger type,
// nth/delay, post-trigger lengths, user control) are left zero; this
// only reads what the hardware can report back.
func (d *Driver) ReadCaptureConfig() (*CaptureConfig, error) {
	cfg := &CaptureConfig{TickDivisor: 1}

	idWord, err := d.ReadConfigWord(OpRdHardwareID)
	if err != nil {
		return nil, err
	}

	cfg.HWID = byte(idWord)
	cfg.HWRev = byte(idWord >> 8)

	anaGeom, err := d.ReadConfigWord(OpRdAnalogRAMGeom)
	if err != nil {
		return nil, err
	}

	cfg.AnalogRAMWidth = int(anaGeom >> 16)
	cfg.AnalogRAMDepth = int(anaGeom & 0xFFFF)

	digGeom, err := d.ReadConfigWord(OpRdDigitalRAMGeom)
	if err != nil {
		return nil, err
	}

	cfg.DigitalRAMWidth = int(digGeom >> 16)
	cfg.DigitalRAMDepth = int(digGeom & 0xFFFF)

	profile, err := d.ReadConfigWord(OpRdRecordProfile)
	if err != nil {
		return nil, err
	}

	cfg.RecordProfile = profile

	tickFreq, err := d.ReadConfigWord(OpRdTickFreq)
	if err != nil {
		return nil, err
	}

	cfg.TickFreqMHz = float64(tickFreq) / float64(1<<20)

	digFreq, err := d.ReadConfigWord(OpRdDigitalClockFreq)
	if err != nil {
		return nil, err
	}

	cfg.DigFreqMHz = float64(digFreq) / float64(1<<20)

	trigSrc, err := d.ReadConfigWord(OpRdTriggerSource)
	if err != nil {
		return nil, err
	}

	cfg.TriggerField = trigSrc

	return cfg, nil
}

// captureKeyOrder lists the persisted key names in the order Marshal
// emits them. "freq" keys carry decimal floats, everything
// else decimal integers.
var captureKeyOrder = []string{
	"hw_id", "hw_rev",
	"ana_ram_width", "ana_ram_depth",
	"dig_ram_width", "dig_ram_depth",
	"record_profile",
	"tick_freq", "tick_divisor", "dig_freq",
	"ls_first_sample_ptr", "ls_post_trig_samples",
	"hs_first_sample_ptr", "hs_post_trig_samples",
	"user_ctrl", "trig_type", "trig_field", "trig_nth", "trig_delay",
}

// Marshal renders the config as "key = value" lines, one per field.
func (c *CaptureConfig) Marshal() string {
	vals := c.fieldMap()

	var b strings.Builder

	for _, key := range captureKeyOrder {
		fmt.Fprintf(&b, "%s = %s\n", key, vals[key].get())
	}

	return b.String()
}

// ParseCaptureConfig reads "key = value" lines back into a config.
// Unknown keys are skipped rather than rejected so newer archives stay
// loadable; malformed values on known keys are errors.
func ParseCaptureConfig(text string) (*CaptureConfig, error) {
	cfg := &CaptureConfig{TickDivisor: 1}
	vals := cfg.fieldMap()

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		field, known := vals[key]
		if !known {
			continue
		}

		if err := field.set(value); err != nil {
			return nil, sumperr.Wrap(sumperr.ConfigParse, err, "capture config: key %q value %q", key, value)
		}
	}

	return cfg, nil
}

// CaptureConfigKeys returns the known persisted key names, sorted, for diagnostics.
func CaptureConfigKeys() []string {
	out := append([]string{}, captureKeyOrder...)
	sort.Strings(out)

	return out
}

type cfgField struct {
	get func() string
	set func(string) error
}

func intField(p *int) cfgField {
	return cfgField{
		get: func() string { return strconv.Itoa(*p) },
		set: func(s string) error {
			v, err := strconv.ParseInt(s, 0, 64)
			if err != nil {
				return err
			}

			*p = int(v)

			return nil
		},
	}
}

func u32Field(p *uint32) cfgField {
	return cfgField{
		get: func() string { return strconv.FormatUint(uint64(*p), 10) },
		set: func(s string) error {
			v, err := strconv.ParseUint(s, 0, 32)
			if err != nil {
				return err
			}

			*p = uint32(v)

			return nil
		},
	}
}

func byteField(p *byte) cfgField {
	return cfgField{
		get: func() string { return strconv.Itoa(int(*p)) },
		set: func(s string) error {
			v, err := strconv.ParseUint(s, 0, 8)
			if err != nil {
				return err
			}

			*p = byte(v)

			return nil
		},
	}
}

func freqField(p *float64) cfgField {
	return cfgField{
		get: func() string { return strconv.FormatFloat(*p, 'f', -1, 64) },
		set: func(s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}

			*p = v

			return nil
		},
	}
}

func (c *CaptureConfig) fieldMap() map[string]cfgField {
	return map[string]cfgField{
		"hw_id":                byteField(&c.HWID),
		"hw_rev":               byteField(&c.HWRev),
		"ana_ram_width":        intField(&c.AnalogRAMWidth),
		"ana_ram_depth":        intField(&c.AnalogRAMDepth),
		"dig_ram_width":        intField(&c.DigitalRAMWidth),
		"dig_ram_depth":        intField(&c.DigitalRAMDepth),
		"record_profile":       u32Field(&c.RecordProfile),
		"tick_freq":            freqField(&c.TickFreqMHz),
		"tick_divisor":         intField(&c.TickDivisor),
		"dig_freq":             freqField(&c.DigFreqMHz),
		"ls_first_sample_ptr":  u32Field(&c.FirstSamplePtrLS),
		"ls_post_trig_samples": u32Field(&c.PostTrigSamplesLS),
		"hs_first_sample_ptr":  u32Field(&c.FirstSamplePtrHS),
		"hs_post_trig_samples": u32Field(&c.PostTrigSamplesHS),
		"user_ctrl":            u32Field(&c.UserCtrl),
		"trig_type":            byteField(&c.TriggerType),
		"trig_field":           u32Field(&c.TriggerField),
		"trig_nth":             u32Field(&c.TriggerNth),
		"trig_delay":           u32Field(&c.TriggerDelay),
	}
}
