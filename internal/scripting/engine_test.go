package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestEngineDefaultsWithoutScripts(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "missing"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()
	if got := e.DamageScale(1); got != DefaultDamageScale {
		t.Fatalf("expected default damage scale, got %v", got)
	}
	if got := e.DeathThreshold(); got != DefaultDeathThreshold {
		t.Fatalf("expected default threshold, got %v", got)
	}
	if got := e.SpawnCount(SpawnContext{Alive: 2, MaxAlive: 5}); got != 3 {
		t.Fatalf("expected refill to cap, got %d", got)
	}
}

func TestEngineCallsScripts(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "rules.lua", `
function damage_scale(frame) return frame * 0.5 end
function death_threshold() return 2 end
function spawn_count(ctx)
  if ctx.frame % 2 == 0 then return 100 end
  return -1
end
`)
	writeScript(t, dir, "README.txt", "not lua")
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if got := e.DamageScale(4); got != 2 {
		t.Fatalf("expected scale 2, got %v", got)
	}
	if got := e.DeathThreshold(); got != 2 {
		t.Fatalf("expected threshold 2, got %v", got)
	}
	cases := []struct {
		name string
		ctx  SpawnContext
		want int
	}{
		{"clamped_to_cap", SpawnContext{Frame: 2, Alive: 1, MaxAlive: 4}, 3},
		{"negative_is_zero", SpawnContext{Frame: 3, Alive: 0, MaxAlive: 4}, 0},
		{"full", SpawnContext{Frame: 2, Alive: 4, MaxAlive: 4}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := e.SpawnCount(c.ctx); got != c.want {
				t.Fatalf("expected %d, got %d", c.want, got)
			}
		})
	}
}

func TestEngineFallsBackOnBadScripts(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "rules.lua", `
function damage_scale(frame) error("boom") end
function death_threshold() return "high" end
`)
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()
	if got := e.DamageScale(1); got != DefaultDamageScale {
		t.Fatalf("runtime error must fall back, got %v", got)
	}
	if got := e.DeathThreshold(); got != DefaultDeathThreshold {
		t.Fatalf("non-number must fall back, got %v", got)
	}
}

func TestEngineReload(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "rules.lua", "function death_threshold() return 1 end")
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	writeScript(t, dir, "rules.lua", "function death_threshold() return 5 end")
	if err := e.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := e.DeathThreshold(); got != 5 {
		t.Fatalf("expected reloaded threshold 5, got %v", got)
	}

	writeScript(t, dir, "rules.lua", "function death_threshold( return")
	if err := e.Reload(); err == nil {
		t.Fatalf("expected syntax error from Reload")
	}
	if got := e.DeathThreshold(); got != 5 {
		t.Fatalf("failed reload must keep the old VM, got %v", got)
	}
}

func TestNewEngineRejectsBrokenScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken.lua", "this is not lua")
	if _, err := NewEngine(dir, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected load error")
	}
}
