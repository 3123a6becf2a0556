package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "froggies.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[engine]
workers = 3
validate_access = false

[loop]
tick_rate = "50ms"
max_frames = 10

[logging]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Workers != 3 || cfg.Engine.ValidateAccess {
		t.Fatalf("engine section not applied: %+v", cfg.Engine)
	}
	if cfg.Engine.ChunkBytes != 16*1024 {
		t.Fatalf("unset keys keep defaults, got chunk_bytes=%d", cfg.Engine.ChunkBytes)
	}
	if cfg.Loop.TickRate.Duration != 50*time.Millisecond || cfg.Loop.MaxFrames != 10 {
		t.Fatalf("loop section not applied: %+v", cfg.Loop)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Fatalf("logging section not applied: %+v", cfg.Logging)
	}
	if cfg.Game.StartState != "updating" {
		t.Fatalf("expected default start state, got %q", cfg.Game.StartState)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad_toml", "[engine\nworkers = 1", "parse config"},
		{"bad_duration", "[loop]\ntick_rate = \"soon\"", "parse config"},
		{"tiny_chunks", "[engine]\nchunk_bytes = 8", "chunk_bytes"},
		{"zero_batch", "[engine]\nparallel_batch = 0", "parallel_batch"},
		{"zero_period", "[game]\ntarget_period = 0", "target_period"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.body))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("expected error containing %q, got %v", c.want, err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}
