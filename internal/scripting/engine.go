package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Defaults used when a script is missing or a call fails.
const (
	DefaultDamageScale    float32 = 1
	DefaultDeathThreshold float32 = 0
)

// Engine wraps a single gopher-lua VM holding the gameplay rules.
// Single-goroutine access only (frame loop). Reload swaps the VM between
// frames.
type Engine struct {
	dir string
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every script in dir. A missing
// directory yields an engine that answers with defaults.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{dir: dir, log: log}
	vm, err := e.load()
	if err != nil {
		return nil, err
	}
	e.vm = vm
	return e, nil
}

func (e *Engine) load() (*lua.LState, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	n, err := loadDir(vm, e.dir)
	if err != nil {
		vm.Close()
		return nil, err
	}
	e.log.Debug("loaded lua scripts", zap.String("dir", e.dir), zap.Int("files", n))
	return vm, nil
}

// loadDir runs all .lua files in a directory.
func loadDir(vm *lua.LState, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil // skip missing dirs
		}
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := vm.DoFile(path); err != nil {
			return n, fmt.Errorf("load %s: %w", path, err)
		}
		n++
	}
	return n, nil
}

// Reload builds a fresh VM from the script directory. On failure the
// current VM stays in place.
func (e *Engine) Reload() error {
	vm, err := e.load()
	if err != nil {
		return fmt.Errorf("reload scripts: %w", err)
	}
	e.vm.Close()
	e.vm = vm
	e.log.Info("lua scripts reloaded", zap.String("dir", e.dir))
	return nil
}

// SpawnContext holds pre-packed data for a spawn decision.
type SpawnContext struct {
	Frame    uint64
	Alive    int // drones alive for this spawner
	MaxAlive int
	Spawners int
}

// DefaultSpawnCount refills a spawner up to its cap.
func DefaultSpawnCount(ctx SpawnContext) int {
	return max(0, ctx.MaxAlive-ctx.Alive)
}

// SpawnCount calls the Lua spawn_count function. The result is clamped to
// the room left under MaxAlive.
func (e *Engine) SpawnCount(ctx SpawnContext) int {
	fn := e.vm.GetGlobal("spawn_count")
	if fn == lua.LNil {
		return DefaultSpawnCount(ctx)
	}

	t := e.vm.NewTable()
	t.RawSetString("frame", lua.LNumber(ctx.Frame))
	t.RawSetString("alive", lua.LNumber(ctx.Alive))
	t.RawSetString("max_alive", lua.LNumber(ctx.MaxAlive))
	t.RawSetString("spawners", lua.LNumber(ctx.Spawners))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua spawn_count error", zap.Error(err))
		return DefaultSpawnCount(ctx)
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n := int(lua.LVAsNumber(result))
	return min(max(n, 0), DefaultSpawnCount(ctx))
}

// DamageScale calls the Lua damage_scale function with the frame number.
func (e *Engine) DamageScale(frame uint64) float32 {
	v, ok := e.callNumber("damage_scale", lua.LNumber(frame))
	if !ok {
		return DefaultDamageScale
	}
	return float32(v)
}

// DeathThreshold is the health at or below which an entity dies.
func (e *Engine) DeathThreshold() float32 {
	v, ok := e.callNumber("death_threshold")
	if !ok {
		return DefaultDeathThreshold
	}
	return float32(v)
}

// callNumber calls an optional Lua global returning a number. ok is false
// when the function is absent, fails or returns a non-number.
func (e *Engine) callNumber(name string, args ...lua.LValue) (float64, bool) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return 0, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return 0, false
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	num, ok := result.(lua.LNumber)
	if !ok {
		e.log.Warn("lua function returned non-number",
			zap.String("func", name),
			zap.String("type", result.Type().String()),
		)
		return 0, false
	}
	return float64(num), true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
