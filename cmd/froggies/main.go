package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kodebolds/froggies/internal/component"
	"github.com/kodebolds/froggies/internal/config"
	"github.com/kodebolds/froggies/internal/core/ecb"
	"github.com/kodebolds/froggies/internal/core/ecs"
	"github.com/kodebolds/froggies/internal/core/event"
	"github.com/kodebolds/froggies/internal/core/job"
	coresys "github.com/kodebolds/froggies/internal/core/system"
	"github.com/kodebolds/froggies/internal/data"
	"github.com/kodebolds/froggies/internal/scripting"
	"github.com/kodebolds/froggies/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(runID string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              froggies  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        chunked ECS · job scheduler        \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mrun:\033[0m %s\n\n", runID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/froggies.toml"
	if p := os.Getenv("FROGGIES_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	startState, err := coresys.ParseGameState(cfg.Game.StartState)
	if err != nil {
		return fmt.Errorf("game.start_state: %w", err)
	}

	// 2. Init logger
	runID := uuid.NewString()
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log = log.With(zap.String("run", runID))
	defer log.Sync()

	printBanner(runID)

	if stop := startProfile(cfg.Profile, log); stop != nil {
		defer stop()
	}

	// 3. Storage
	printSection("store")
	store := ecs.NewStore(ecs.Options{
		ChunkBytes:         cfg.Engine.ChunkBytes,
		DefaultBufferBytes: cfg.Engine.DefaultBufferBytes,
	}, log.Named("ecs"))
	ids := component.Register(store)
	printStat("component types", store.ComponentCount())

	// 4. Data tables
	printSection("data")
	prefabs, err := data.LoadPrefabTable(filepath.Join(cfg.Game.DataDir, "prefabs.yaml"))
	if err != nil {
		return fmt.Errorf("prefabs: %w", err)
	}
	printStat("prefab templates", prefabs.Count())
	spawns, err := data.LoadSpawnList(filepath.Join(cfg.Game.DataDir, "spawns.yaml"))
	if err != nil {
		return fmt.Errorf("spawns: %w", err)
	}
	printStat("spawners", len(spawns))

	// 5. Scripts
	printSection("scripts")
	rules, err := scripting.NewEngine(cfg.Game.ScriptsDir, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	defer rules.Close()
	printOK(fmt.Sprintf("rules loaded from %s", cfg.Game.ScriptsDir))

	var reloads <-chan string
	if cfg.Game.HotReload {
		w, err := data.NewWatcher(cfg.Game.ScriptsDir)
		if err != nil {
			log.Warn("script hot reload disabled", zap.Error(err))
		} else {
			defer w.Close()
			reloads = w.Events
			printOK("hot reload enabled")
		}
	}

	// 6. Scheduler, command buffers, driver
	printSection("systems")
	jobs := job.NewScheduler(cfg.Engine.Workers, log.Named("job"))
	defer jobs.Close()
	bus := event.NewBus()
	driver := coresys.NewDriver(coresys.Config{
		ValidateAccess: cfg.Engine.ValidateAccess,
		Batch:          cfg.Engine.ParallelBatch,
	}, store, jobs, ecb.NewSystem(store, bus, log.Named("ecb")), bus, log.Named("driver"))

	stats := system.NewStatsSystem(cfg.Game.StatsEvery)
	for _, s := range []coresys.System{
		system.NewTargetingSystem(cfg.Game.TargetRadius, cfg.Game.TargetPeriod),
		system.NewSpawningSystem(ids, rules),
		system.NewDamageSystem(ids, rules),
		system.NewDeathSystem(ids, rules),
		stats,
	} {
		if err := driver.Register(s); err != nil {
			return err
		}
	}
	if err := driver.Initialize(); err != nil {
		return fmt.Errorf("initialize systems: %w", err)
	}
	printStat("workers", jobs.Workers())
	printOK("order: " + strings.Join(driver.Order(), " → "))

	world, err := system.Bootstrap(store, ids, prefabs, spawns, log)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	printStat("spawners placed", len(world.Spawners))
	printStat("entities", store.Len())

	// 7. Frame loop
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(signals)

	tick := cfg.Loop.TickRate.Duration
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("frame loop started (tick: %s)", tick))
	fmt.Println()

	state := startState
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := driver.Frame(state, dt); err != nil {
				if errors.Is(err, coresys.ErrUndeclaredAccess) {
					return fmt.Errorf("frame %d: %w", driver.FrameCount(), err)
				}
				log.Error("frame failed", zap.Uint64("frame", driver.FrameCount()), zap.Error(err))
			}
			if state == coresys.StateInitialising {
				state = coresys.StateUpdating
			}
			if cfg.Loop.MaxFrames > 0 && driver.FrameCount() >= cfg.Loop.MaxFrames {
				log.Info("frame limit reached", zap.Uint64("frames", driver.FrameCount()))
				return shutdown(driver, stats, log)
			}
		case path, ok := <-reloads:
			if !ok {
				reloads = nil
				continue
			}
			if err := rules.Reload(); err != nil {
				log.Error("script reload failed", zap.String("file", path), zap.Error(err))
			}
		case sig := <-signals:
			if sig == syscall.SIGUSR1 {
				state = togglePause(state)
				log.Info("pause toggled", zap.Stringer("state", state))
				continue
			}
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			return shutdown(driver, stats, log)
		}
	}
}

func togglePause(s coresys.GameState) coresys.GameState {
	switch s {
	case coresys.StatePaused:
		return coresys.StateUpdating
	case coresys.StateUpdating, coresys.StateInitialising:
		return coresys.StatePaused
	}
	return s
}

func shutdown(driver *coresys.Driver, stats *system.StatsSystem, log *zap.Logger) error {
	err := driver.Shutdown()
	spawned, died := stats.Totals()
	log.Info("stopped",
		zap.Uint64("frames", driver.FrameCount()),
		zap.Uint64("spawned", spawned),
		zap.Uint64("died", died),
	)
	return err
}

// startProfile starts pkg/profile for the configured mode and returns its
// stop function, or nil when profiling is off.
func startProfile(cfg config.ProfileConfig, log *zap.Logger) func() {
	var mode func(*profile.Profile)
	switch cfg.Mode {
	case "":
		return nil
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfileAllocs
	case "trace":
		mode = profile.TraceProfile
	case "block":
		mode = profile.BlockProfile
	case "mutex":
		mode = profile.MutexProfile
	default:
		log.Warn("unknown profile mode, profiling disabled", zap.String("mode", cfg.Mode))
		return nil
	}
	path := cfg.Path
	if path == "" {
		path = "."
	}
	p := profile.Start(mode, profile.ProfilePath(path), profile.NoShutdownHook, profile.Quiet)
	log.Info("profiling", zap.String("mode", cfg.Mode), zap.String("path", path))
	return p.Stop
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
