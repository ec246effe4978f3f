// Package accelcfg loads the accelerator's tunables from a YAML file and
// lets CLI flags override individual fields afterward, the way the
// teacher's site config loads deployment overrides next to the app
// bundle.
package accelcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zboralski/galago/internal/accel/plugin"
)

// maxConfigSize bounds how large a tunables file this will parse, so a
// misplaced binary or log file left at the config path doesn't get fed
// to the YAML decoder.
const maxConfigSize = 1 << 20

// Config is the on-disk shape of the accelerator's tunables: cooldown
// lengths, promotion thresholds, and the step budget per episode.
type Config struct {
	Cooldowns struct {
		NonUnicornBlocks  int `yaml:"non_unicorn_blocks"`
		SymbolicRegisters int `yaml:"symbolic_registers"`
		SymbolicMemory    int `yaml:"symbolic_memory"`
		StopPoint         int `yaml:"stop_point"`
	} `yaml:"cooldowns"`

	Thresholds struct {
		Instruction int `yaml:"instruction"`
		Memory      int `yaml:"memory"`
		Register    int `yaml:"register"`
	} `yaml:"thresholds"`

	MaxSteps uint64 `yaml:"max_steps"`
	Testing  bool   `yaml:"testing"`
	// Debug gates the register round-trip check
	// (regs.Marshaller.CheckRoundTrip) between Setup and Start. Off by
	// default: it costs a full register push/pull per episode.
	Debug bool `yaml:"debug"`
}

// Default returns the tunables the run controller's cooldown lengths
// were originally grounded on (spec.md §4.7's countdown constants).
func Default() Config {
	var c Config
	c.Cooldowns.NonUnicornBlocks = 1
	c.Cooldowns.SymbolicRegisters = 1
	c.Cooldowns.SymbolicMemory = 1
	c.Cooldowns.StopPoint = 1
	c.MaxSteps = 100000
	return c
}

// Load reads path and unmarshals it over Default(). A missing file is
// not an error — it just means the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("accelcfg: stat %s: %w", path, err)
	}
	if info.Size() > maxConfigSize {
		return cfg, fmt.Errorf("accelcfg: %s exceeds %d bytes", path, maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("accelcfg: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("accelcfg: parse %s: %w", path, err)
	}
	return cfg, nil
}

// CooldownSettings converts the loaded tunables into the type the
// accelerator plugin expects.
func (c Config) CooldownSettings() plugin.CooldownSettings {
	return plugin.CooldownSettings{
		NonUnicornBlocks:  c.Cooldowns.NonUnicornBlocks,
		SymbolicRegisters: c.Cooldowns.SymbolicRegisters,
		SymbolicMemory:    c.Cooldowns.SymbolicMemory,
		StopPoint:         c.Cooldowns.StopPoint,
	}
}

// PolicyThresholds converts the loaded tunables into the type the
// concretization policy expects.
func (c Config) PolicyThresholds() plugin.Thresholds {
	return plugin.Thresholds{
		Instruction: c.Thresholds.Instruction,
		Memory:      c.Thresholds.Memory,
		Register:    c.Thresholds.Register,
	}
}
