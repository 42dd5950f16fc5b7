package data

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/l1jgo/gridmove/internal/grid"
	"gopkg.in/yaml.v3"
)

// MapInfo holds metadata for a single map, loaded from map_list.yaml.
type MapInfo struct {
	MapID  int16  `yaml:"map_id"`
	Name   string `yaml:"name"`
	StartX int32  `yaml:"start_x"`
	EndX   int32  `yaml:"end_x"`
	StartY int32  `yaml:"start_y"`
	EndY   int32  `yaml:"end_y"`
}

// Tile flag bits. A tile is walkable when it carries at least one
// passability bit and the dynamic block bit is clear.
const (
	TilePassableEast  byte = 0x01
	TilePassableNorth byte = 0x02
	TileImpassable    byte = 0x80 // dynamic block, toggled at runtime
)

// TileMap is the loaded tile grid of one map. It implements grid.Oracle
// and is safe for concurrent use.
type TileMap struct {
	info   MapInfo
	mu     sync.RWMutex
	tiles  []byte // flat array [x * height + y]
	width  int32
	height int32
}

// NewTileMap builds a map from a flat [x*height+y] tile slice.
func NewTileMap(info MapInfo, tiles []byte) (*TileMap, error) {
	width := info.EndX - info.StartX + 1
	height := info.EndY - info.StartY + 1
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("map %d: empty bounds", info.MapID)
	}
	if len(tiles) != int(width)*int(height) {
		return nil, fmt.Errorf("map %d: %d tiles for %dx%d", info.MapID, len(tiles), width, height)
	}
	return &TileMap{info: info, tiles: tiles, width: width, height: height}, nil
}

// MapDataTable holds every map that had a tile file.
type MapDataTable struct {
	maps map[int16]*TileMap
}

type mapListFile struct {
	Maps []MapInfo `yaml:"maps"`
}

// LoadMapData loads map metadata from YAML and tile data from text files.
// yamlPath: path to map_list.yaml
// tileDir: directory containing {mapid}.txt tile files
func LoadMapData(yamlPath, tileDir string) (*MapDataTable, error) {
	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", yamlPath, err)
	}
	var file mapListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}

	table := &MapDataTable{
		maps: make(map[int16]*TileMap, len(file.Maps)),
	}

	for _, info := range file.Maps {
		width := info.EndX - info.StartX + 1
		height := info.EndY - info.StartY + 1
		if width <= 0 || height <= 0 {
			continue
		}

		tiles, err := loadTileFile(tileDir, int(info.MapID), int(width), int(height))
		if err != nil {
			// Map file missing is non-fatal: skip it
			continue
		}
		table.maps[info.MapID] = &TileMap{
			info:   info,
			tiles:  tiles,
			width:  width,
			height: height,
		}
	}

	return table, nil
}

// loadTileFile reads a CSV tile file: each line is a row of comma-separated byte values.
// File rows are Y lines, columns are X values.
func loadTileFile(dir string, mapID, xSize, ySize int) ([]byte, error) {
	path := filepath.Join(dir, strconv.Itoa(mapID)+".txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tiles := make([]byte, xSize*ySize)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	y := 0
	for scanner.Scan() && y < ySize {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		x := 0
		for _, tok := range strings.Split(line, ",") {
			if x >= xSize {
				break
			}
			val, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 16)
			if err != nil {
				val = 0
			}
			tiles[x*ySize+y] = byte(val)
			x++
		}
		y++
	}

	return tiles, scanner.Err()
}

// Count returns the number of maps loaded with tile data.
func (t *MapDataTable) Count() int {
	return len(t.maps)
}

// Get returns the map with the given id, or nil.
func (t *MapDataTable) Get(mapID int16) *TileMap {
	return t.maps[mapID]
}

// IDs returns the loaded map ids in ascending order.
func (t *MapDataTable) IDs() []int16 {
	ids := make([]int16, 0, len(t.maps))
	for id := range t.maps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *TileMap) Info() MapInfo { return m.info }

// index returns the flat offset of c, or -1 when c is outside the map.
func (m *TileMap) index(c grid.Cell) int {
	lx := c.X - m.info.StartX
	ly := c.Y - m.info.StartY
	if lx < 0 || lx >= m.width || ly < 0 || ly >= m.height {
		return -1
	}
	return int(lx)*int(m.height) + int(ly)
}

// Contains reports whether c lies inside the map bounds.
func (m *TileMap) Contains(c grid.Cell) bool { return m.index(c) >= 0 }

// IsWalkable implements grid.Oracle.
func (m *TileMap) IsWalkable(c grid.Cell) bool {
	idx := m.index(c)
	if idx < 0 {
		return false
	}
	m.mu.RLock()
	tile := m.tiles[idx]
	m.mu.RUnlock()
	if tile&TileImpassable != 0 {
		return false
	}
	return tile&(TilePassableEast|TilePassableNorth) != 0
}

// SetBlocked sets or clears the dynamic block flag on c. Cells outside
// the map are ignored.
func (m *TileMap) SetBlocked(c grid.Cell, blocked bool) {
	idx := m.index(c)
	if idx < 0 {
		return
	}
	m.mu.Lock()
	if blocked {
		m.tiles[idx] |= TileImpassable
	} else {
		m.tiles[idx] &^= TileImpassable
	}
	m.mu.Unlock()
}

// WalkableCount returns how many cells are currently walkable.
func (m *TileMap) WalkableCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, tile := range m.tiles {
		if tile&TileImpassable == 0 && tile&(TilePassableEast|TilePassableNorth) != 0 {
			n++
		}
	}
	return n
}
