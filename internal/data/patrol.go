package data

import (
	"fmt"
	"os"

	"github.com/l1jgo/gridmove/internal/grid"
	"gopkg.in/yaml.v3"
)

// Point is a YAML cell literal: {x: 1, y: 2}.
type Point struct {
	X int32 `yaml:"x"`
	Y int32 `yaml:"y"`
}

func (p Point) Cell() grid.Cell { return grid.Cell{X: p.X, Y: p.Y} }

// PatrolEntry defines one NPC walking between waypoints A and B.
type PatrolEntry struct {
	Name  string  `yaml:"name"`
	Spawn Point   `yaml:"spawn"`
	A     Point   `yaml:"a"`
	B     Point   `yaml:"b"`
	Speed float64 `yaml:"speed"` // tiles/s; 0 means use [movement] npc_speed
}

type patrolListFile struct {
	Patrols []PatrolEntry `yaml:"patrols"`
}

// LoadPatrolList loads NPC patrol entries from a YAML file.
func LoadPatrolList(path string) ([]PatrolEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patrol_list: %w", err)
	}
	var f patrolListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse patrol_list: %w", err)
	}
	for i, p := range f.Patrols {
		if p.Speed < 0 {
			return nil, fmt.Errorf("patrol %d (%s): negative speed", i, p.Name)
		}
	}
	return f.Patrols, nil
}
