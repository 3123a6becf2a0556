package data

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadPrefabTable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prefabs.yaml", `
prefabs:
  - name: drone
    health: 40
    damage_per_second: 8
    rotation: [0, 0, 0, 1]
    part: rotor
    part_count: 2
  - name: rotor
    health: 5
`)
	table, err := LoadPrefabTable(path)
	if err != nil {
		t.Fatalf("LoadPrefabTable: %v", err)
	}
	if table.Count() != 2 || !slices.Equal(table.Names(), []string{"drone", "rotor"}) {
		t.Fatalf("unexpected templates %v", table.Names())
	}
	drone := table.Get("drone")
	if drone == nil || drone.Health != 40 || drone.Part != "rotor" || drone.PartCount != 2 {
		t.Fatalf("unexpected drone template %+v", drone)
	}
	if table.Get("missing") != nil {
		t.Fatalf("unknown names resolve to nil")
	}
}

func TestLoadPrefabTableErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad_yaml", "prefabs: [", "parse prefab_list"},
		{"unnamed", "prefabs:\n  - health: 1", "has no name"},
		{"duplicate", "prefabs:\n  - name: a\n  - name: a", "duplicate"},
		{"short_rotation", "prefabs:\n  - name: a\n    rotation: [0, 1]", "rotation"},
		{"unknown_part", "prefabs:\n  - name: a\n    part: b", "unknown part"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadPrefabTable(writeFile(t, t.TempDir(), "prefabs.yaml", c.body))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("expected error containing %q, got %v", c.want, err)
			}
		})
	}
	if _, err := LoadPrefabTable(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestLoadSpawnList(t *testing.T) {
	path := writeFile(t, t.TempDir(), "spawns.yaml", `
spawns:
  - prefab: drone
    max_alive: 6
  - prefab: drone
    max_alive: 2
`)
	spawns, err := LoadSpawnList(path)
	if err != nil {
		t.Fatalf("LoadSpawnList: %v", err)
	}
	want := []SpawnEntry{{Prefab: "drone", MaxAlive: 6}, {Prefab: "drone", MaxAlive: 2}}
	if !slices.Equal(spawns, want) {
		t.Fatalf("expected %v, got %v", want, spawns)
	}
}

func TestWatcherReportsScripts(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	writeFile(t, dir, "notes.txt", "ignored")
	script := writeFile(t, dir, "rules.lua", "function death_threshold() return 0 end")

	timeout := time.After(5 * time.Second)
	for {
		select {
		case name := <-w.Events:
			if filepath.Ext(name) != ".lua" {
				t.Fatalf("non-script change reported: %s", name)
			}
			if filepath.Base(name) == filepath.Base(script) {
				return
			}
		case err := <-w.Errors:
			t.Fatalf("watcher error: %v", err)
		case <-timeout:
			t.Fatalf("no event for %s", script)
		}
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, ok := <-w.Events; ok {
		t.Fatalf("events channel must be closed")
	}
}
