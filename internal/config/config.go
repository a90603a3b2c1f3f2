// Package config loads the optional TOML override file that tunes the
// protocol's timing constants and the status server's bind address.
// Nothing here is reachable from a CLI flag: absent a config file, every
// field falls back to Default's spec-mandated defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/meshkeeper/swimd/internal/domain"
	"github.com/meshkeeper/swimd/internal/swim"
)

// ProtocolConfig mirrors swim.Config with TOML-friendly duration strings
// (e.g. "500ms", "3s") instead of time.Duration, and pointer fields so a
// partially-specified file only overrides what it names.
type ProtocolConfig struct {
	TickInterval       string `toml:"tick_interval"`
	ProbeTimeout       string `toml:"probe_timeout"`
	SuspectTimeout     string `toml:"suspect_timeout"`
	IndirectProbeCount *int   `toml:"indirect_probe_count"`
	RTTRingSize        *int   `toml:"rtt_ring_size"`
}

// StatusConfig controls the optional HTTP status/metrics server.
type StatusConfig struct {
	Enabled  *bool  `toml:"enabled"`
	BindAddr string `toml:"bind_addr"`
}

// EventLogConfig controls the optional sqlite-backed transition history.
type EventLogConfig struct {
	Enabled *bool  `toml:"enabled"`
	Path    string `toml:"path"`
}

// File is the shape of config.toml.
type File struct {
	Protocol ProtocolConfig `toml:"protocol"`
	Status   StatusConfig   `toml:"status"`
	EventLog EventLogConfig `toml:"eventlog"`
}

// Config is the fully resolved, in-process configuration: swim.Config
// plus the ambient status/eventlog settings.
type Config struct {
	Protocol swim.Config
	Status   struct {
		Enabled  bool
		BindAddr string
	}
	EventLog struct {
		Enabled bool
		Path    string
	}
}

// Default returns the configuration used when no config file is present:
// swim.DefaultConfig, status server enabled on an ephemeral localhost
// port, and the event log disabled.
func Default() Config {
	var c Config
	c.Protocol = swim.DefaultConfig()
	c.Status.Enabled = true
	c.Status.BindAddr = "127.0.0.1:0"
	c.EventLog.Enabled = false
	c.EventLog.Path = ""
	return c
}

// HomeDir resolves the directory config.toml is read from: $SWIMD_HOME
// if set, else ~/.swimd.
func HomeDir() (string, error) {
	if home := os.Getenv("SWIMD_HOME"); home != "" {
		return home, nil
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(dir, ".swimd"), nil
}

// Load resolves config.toml from HomeDir and merges it over Default. A
// missing file is not an error — it simply means every default applies.
func Load() (Config, error) {
	dir, err := HomeDir()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(filepath.Join(dir, "config.toml"))
}

// LoadFrom merges the TOML file at path over Default. A missing file
// returns Default with no error.
func LoadFrom(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if _, err := toml.Decode(string(data), &f); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, path, err)
	}

	if err := applyProtocol(&cfg.Protocol, f.Protocol); err != nil {
		return Config{}, err
	}
	if f.Status.Enabled != nil {
		cfg.Status.Enabled = *f.Status.Enabled
	}
	if f.Status.BindAddr != "" {
		cfg.Status.BindAddr = f.Status.BindAddr
	}
	if f.EventLog.Enabled != nil {
		cfg.EventLog.Enabled = *f.EventLog.Enabled
	}
	if f.EventLog.Path != "" {
		cfg.EventLog.Path = f.EventLog.Path
	}

	return cfg, nil
}

func applyProtocol(dst *swim.Config, src ProtocolConfig) error {
	if src.TickInterval != "" {
		d, err := time.ParseDuration(src.TickInterval)
		if err != nil {
			return fmt.Errorf("%w: protocol.tick_interval: %v", domain.ErrInvalidConfig, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: protocol.tick_interval: must be positive, got %s", domain.ErrInvalidConfig, d)
		}
		dst.TickInterval = d
	}
	if src.ProbeTimeout != "" {
		d, err := time.ParseDuration(src.ProbeTimeout)
		if err != nil {
			return fmt.Errorf("%w: protocol.probe_timeout: %v", domain.ErrInvalidConfig, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: protocol.probe_timeout: must be positive, got %s", domain.ErrInvalidConfig, d)
		}
		dst.ProbeTimeout = d
	}
	if src.SuspectTimeout != "" {
		d, err := time.ParseDuration(src.SuspectTimeout)
		if err != nil {
			return fmt.Errorf("%w: protocol.suspect_timeout: %v", domain.ErrInvalidConfig, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: protocol.suspect_timeout: must be positive, got %s", domain.ErrInvalidConfig, d)
		}
		dst.SuspectTimeout = d
	}
	if src.IndirectProbeCount != nil {
		if *src.IndirectProbeCount < 0 {
			return fmt.Errorf("%w: protocol.indirect_probe_count: must not be negative, got %d", domain.ErrInvalidConfig, *src.IndirectProbeCount)
		}
		dst.IndirectProbeCount = *src.IndirectProbeCount
	}
	if src.RTTRingSize != nil {
		if *src.RTTRingSize <= 0 {
			return fmt.Errorf("%w: protocol.rtt_ring_size: must be positive, got %d", domain.ErrInvalidConfig, *src.RTTRingSize)
		}
		dst.RTTRingSize = *src.RTTRingSize
	}
	return nil
}
