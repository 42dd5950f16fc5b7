package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/l1jgo/gridmove/internal/data"
)

const (
	walkable = data.TilePassableEast | data.TilePassableNorth
	blocked  = byte(0)
)

type asciiMap struct {
	info data.MapInfo
	rows [][]byte // rows[y][x]
}

// parseASCII reads one drawing. Short rows are padded with blocked tiles.
func parseASCII(id int16, src string) (*asciiMap, error) {
	m := &asciiMap{info: data.MapInfo{MapID: id, Name: fmt.Sprintf("map-%d", id)}}
	sc := bufio.NewScanner(strings.NewReader(src))
	width := 0
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if strings.HasPrefix(line, ";") {
			if first {
				if name := strings.TrimSpace(line[1:]); name != "" {
					m.info.Name = name
				}
			}
			continue
		}
		first = false
		if line == "" {
			continue
		}
		row := make([]byte, len(line))
		for x, ch := range []byte(line) {
			switch ch {
			case '.':
				row[x] = walkable
			case '#':
				row[x] = blocked
			default:
				return nil, fmt.Errorf("row %d: unexpected %q at column %d", len(m.rows), ch, x)
			}
		}
		width = max(width, len(row))
		m.rows = append(m.rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(m.rows) == 0 {
		return nil, fmt.Errorf("empty map")
	}
	for y, row := range m.rows {
		if len(row) < width {
			m.rows[y] = append(row, make([]byte, width-len(row))...)
		}
	}
	m.info.EndX = int32(width - 1)
	m.info.EndY = int32(len(m.rows) - 1)
	return m, nil
}

// csv renders the rows in the tile loader's format: one line per Y,
// comma-separated values per X.
func (m *asciiMap) csv() string {
	var sb strings.Builder
	for _, row := range m.rows {
		for x, v := range row {
			if x > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%d", v)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
