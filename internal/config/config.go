package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Loop    LoopConfig    `toml:"loop"`
	Game    GameConfig    `toml:"game"`
	Logging LoggingConfig `toml:"logging"`
	Profile ProfileConfig `toml:"profile"`
}

type EngineConfig struct {
	Workers            int  `toml:"workers"`              // 0 = GOMAXPROCS
	ChunkBytes         int  `toml:"chunk_bytes"`          // target bytes per chunk
	DefaultBufferBytes int  `toml:"default_buffer_bytes"` // inline bytes per buffer
	ParallelBatch      int  `toml:"parallel_batch"`       // chunks per parallel batch
	ValidateAccess     bool `toml:"validate_access"`      // reject undeclared component access
}

type LoopConfig struct {
	TickRate  Duration `toml:"tick_rate"`
	MaxFrames uint64   `toml:"max_frames"` // 0 = run until signalled
}

type GameConfig struct {
	DataDir      string  `toml:"data_dir"`
	ScriptsDir   string  `toml:"scripts_dir"`
	HotReload    bool    `toml:"hot_reload"`
	StartState   string  `toml:"start_state"`   // "initialising", "updating", "paused"
	TargetRadius float32 `toml:"target_radius"` // radius of the targeting sweep
	TargetPeriod uint64  `toml:"target_period"` // frames per sweep
	StatsEvery   uint64  `toml:"stats_every"`   // frames between stats lines, 0 = off
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ProfileConfig struct {
	Mode string `toml:"mode"` // "", "cpu", "mem", "trace", "block", "mutex"
	Path string `toml:"path"`
}

// Duration lets TOML files spell durations as strings ("16ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return defaults()
}

func (c *Config) validate() error {
	switch {
	case c.Engine.Workers < 0:
		return fmt.Errorf("engine.workers must not be negative")
	case c.Engine.ChunkBytes < 64:
		return fmt.Errorf("engine.chunk_bytes must be at least 64, got %d", c.Engine.ChunkBytes)
	case c.Engine.DefaultBufferBytes < 1:
		return fmt.Errorf("engine.default_buffer_bytes must be positive")
	case c.Engine.ParallelBatch < 1:
		return fmt.Errorf("engine.parallel_batch must be positive")
	case c.Loop.TickRate.Duration <= 0:
		return fmt.Errorf("loop.tick_rate must be positive")
	case c.Game.TargetPeriod == 0:
		return fmt.Errorf("game.target_period must be positive")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			Workers:            0,
			ChunkBytes:         16 * 1024,
			DefaultBufferBytes: 128,
			ParallelBatch:      1,
			ValidateAccess:     true,
		},
		Loop: LoopConfig{
			TickRate: Duration{16 * time.Millisecond},
		},
		Game: GameConfig{
			DataDir:      "data/yaml",
			ScriptsDir:   "scripts",
			HotReload:    false,
			StartState:   "updating",
			TargetRadius: 10,
			TargetPeriod: 120,
			StatsEvery:   60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
