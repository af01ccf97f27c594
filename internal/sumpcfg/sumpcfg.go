// Package sumpcfg holds process-level configuration: how to reach the
// transport, default timeouts, and logging verbosity. This is
// distinct from the hardware Capture Configuration (record profile,
// RAM geometry, trigger fields), which always comes from register
// reads or a PZA archive and is never hand-edited in a file.
package sumpcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk process configuration, loaded once at startup.
type Config struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	AESKeyHex      string `yaml:"aes_key_hex"`
	Authenticate   bool   `yaml:"authenticate"`
	ConnectTimeout int    `yaml:"connect_timeout_ms"`
	PollTimeout    int    `yaml:"poll_timeout_ms"`
	MaxPodAcqTime  int    `yaml:"max_pod_acq_time_ms"`
	Debug          bool   `yaml:"debug"`
	WorkDir        string `yaml:"work_dir"`
	DNSSDName      string `yaml:"dns_sd_name"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8123,
		Authenticate:   false,
		ConnectTimeout: 5000,
		PollTimeout:    30000,
		MaxPodAcqTime:  250,
		WorkDir:        ".",
	}
}

// Load reads a YAML configuration file, filling in defaults for any
// field the file omits.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("sumpcfg: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("sumpcfg: parsing %s: %w", path, err)
	}

	return cfg, nil
}
