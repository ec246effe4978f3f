package accelcfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults for a missing file, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accel.yml")
	data := []byte("cooldowns:\n  non_unicorn_blocks: 7\nthresholds:\n  register: 3\nmax_steps: 500\ntesting: true\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cooldowns.NonUnicornBlocks != 7 {
		t.Errorf("expected non_unicorn_blocks=7, got %d", cfg.Cooldowns.NonUnicornBlocks)
	}
	if cfg.Thresholds.Register != 3 {
		t.Errorf("expected register threshold=3, got %d", cfg.Thresholds.Register)
	}
	if cfg.MaxSteps != 500 {
		t.Errorf("expected max_steps=500, got %d", cfg.MaxSteps)
	}
	if !cfg.Testing {
		t.Error("expected testing=true")
	}
	// A field left unset in the fixture keeps its default.
	if cfg.Cooldowns.StopPoint != Default().Cooldowns.StopPoint {
		t.Errorf("expected stop_point to keep its default, got %d", cfg.Cooldowns.StopPoint)
	}
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accel.yml")
	data := make([]byte, maxConfigSize+1)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an oversized config file")
	}
}

func TestCooldownSettingsConversion(t *testing.T) {
	cfg := Default()
	settings := cfg.CooldownSettings()
	if settings.NonUnicornBlocks != cfg.Cooldowns.NonUnicornBlocks {
		t.Fatal("CooldownSettings must mirror the loaded config")
	}
}
