// mapconv converts ASCII map drawings to tile CSV files plus map_list.yaml.
//
// Each input file is named {mapid}.map. '.' is walkable, '#' is blocked and
// lines starting with ';' are ignored, except a leading "; name" line which
// sets the map name.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/l1jgo/gridmove/internal/data"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "Usage: mapconv <ascii-dir> <tile-dir> <map_list.yaml>")
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2], os.Args[3]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(srcDir, tileDir, listPath string) error {
	files, err := filepath.Glob(filepath.Join(srcDir, "*.map"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(tileDir, 0o755); err != nil {
		return err
	}

	var infos []data.MapInfo
	for _, path := range files {
		id, err := strconv.ParseInt(strings.TrimSuffix(filepath.Base(path), ".map"), 10, 16)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: file name is not a map id\n", path)
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		m, err := parseASCII(int16(id), string(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out := filepath.Join(tileDir, strconv.Itoa(int(id))+".txt")
		if err := os.WriteFile(out, []byte(m.csv()), 0o644); err != nil {
			return err
		}
		infos = append(infos, m.info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].MapID < infos[j].MapID })

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Map list, auto-generated by mapconv (%d entries)\n", len(infos))
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Maps []data.MapInfo `yaml:"maps"`
	}{infos}); err != nil {
		return err
	}
	enc.Close()
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return err
	}

	fmt.Printf("Wrote %d maps to %s\n", len(infos), listPath)
	return nil
}
