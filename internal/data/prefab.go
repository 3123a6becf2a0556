package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// PrefabTemplate describes one prefab entity built at bootstrap.
type PrefabTemplate struct {
	Name            string    `yaml:"name"`
	Health          float32   `yaml:"health"`
	DamagePerSecond float32   `yaml:"damage_per_second"`
	Rotation        []float32 `yaml:"rotation,omitempty"` // x, y, z, w
	Part            string    `yaml:"part,omitempty"`     // prefab attached as a child
	PartCount       int32     `yaml:"part_count,omitempty"`
}

type prefabListFile struct {
	Prefabs []PrefabTemplate `yaml:"prefabs"`
}

// PrefabTable holds prefab templates indexed by name.
type PrefabTable struct {
	templates map[string]*PrefabTemplate
}

// LoadPrefabTable loads prefab templates from a YAML file.
func LoadPrefabTable(path string) (*PrefabTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prefab_list: %w", err)
	}
	var f prefabListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prefab_list: %w", err)
	}
	t := &PrefabTable{templates: make(map[string]*PrefabTemplate, len(f.Prefabs))}
	for i := range f.Prefabs {
		p := &f.Prefabs[i]
		if p.Name == "" {
			return nil, fmt.Errorf("prefab_list: entry %d has no name", i)
		}
		if _, dup := t.templates[p.Name]; dup {
			return nil, fmt.Errorf("prefab_list: duplicate prefab %q", p.Name)
		}
		if n := len(p.Rotation); n != 0 && n != 4 {
			return nil, fmt.Errorf("prefab_list: %s: rotation needs 4 values, got %d", p.Name, n)
		}
		t.templates[p.Name] = p
	}
	for _, p := range t.templates {
		if p.Part != "" && t.templates[p.Part] == nil {
			return nil, fmt.Errorf("prefab_list: %s: unknown part %q", p.Name, p.Part)
		}
	}
	return t, nil
}

// Get returns a template by name, or nil if not found.
func (t *PrefabTable) Get(name string) *PrefabTemplate {
	return t.templates[name]
}

// Count returns the number of loaded templates.
func (t *PrefabTable) Count() int {
	return len(t.templates)
}

// Names returns template names in sorted order.
func (t *PrefabTable) Names() []string {
	names := make([]string, 0, len(t.templates))
	for name := range t.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SpawnEntry places one spawner in the world.
type SpawnEntry struct {
	Prefab   string `yaml:"prefab"`
	MaxAlive int32  `yaml:"max_alive"`
}

type spawnListFile struct {
	Spawns []SpawnEntry `yaml:"spawns"`
}

// LoadSpawnList loads spawn entries from a YAML file.
func LoadSpawnList(path string) ([]SpawnEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn_list: %w", err)
	}
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawn_list: %w", err)
	}
	return f.Spawns, nil
}
