// Command analyze prints quick, human-readable heuristics about the map files
// in the project's maps directory. It summarizes dimensions, start and goal,
// tile type counts, cells with no tile at all, and dead ends a program can
// only leave by turning around. With -tiles it also walks every cell.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/logicpath/game/engine"
)

func main() {
	showTiles := flag.Bool("tiles", false, "list every cell")
	flag.Parse()

	mapsDir := "maps"
	if flag.NArg() > 0 {
		mapsDir = flag.Arg(0)
	}

	entries, err := os.ReadDir(mapsDir)
	if err != nil {
		fmt.Printf("Error reading maps directory: %v\n", err)
		os.Exit(1)
	}

	for _, entry := range entries {
		if entry.IsDir() || !engine.IsMapFile(entry.Name()) {
			continue
		}
		fmt.Printf("\n=== Analyzing %s ===\n", entry.Name())
		analyzeMap(os.Stdout, filepath.Join(mapsDir, entry.Name()), *showTiles)
	}
}

func analyzeMap(w io.Writer, path string, showTiles bool) {
	data, err := engine.LoadMapFile(path)
	if err != nil {
		fmt.Fprintf(w, "Error loading map: %v\n", err)
		return
	}

	m, err := engine.NewGameMap(data)
	if err != nil {
		fmt.Fprintf(w, "Error building map: %v\n", err)
		return
	}

	size := m.Size()
	start, goal := m.StartPosition(), m.Goal()

	fmt.Fprintf(w, "Name: %s\n", m.Name())
	fmt.Fprintf(w, "Grid Size: %d x %d\n", size.Rows, size.Cols)
	fmt.Fprintf(w, "Start: %s facing %s\n", start, m.StartDirection())
	fmt.Fprintf(w, "Goal: %s\n", goal)
	fmt.Fprintf(w, "Manhattan distance: %d\n", engine.ManhattanDistance(start, goal))

	walkable := engine.CountWalkable(m)
	fmt.Fprintf(w, "Walkable tiles: %d/%d\n", walkable, size.Rows*size.Cols)

	counts := engine.CountTileTypes(m)
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, counts[t])
	}

	if missing := size.Rows*size.Cols - len(m.Tiles()); missing > 0 {
		fmt.Fprintf(w, "⚠️  %d cells have no tile and block movement\n", missing)
	}

	ends := deadEnds(m)
	if len(ends) > 0 {
		fmt.Fprintf(w, "Dead ends: %d\n", len(ends))
		for i, p := range ends {
			if i < 5 {
				fmt.Fprintf(w, "   Dead end: %s\n", p)
			}
		}
		if len(ends) > 5 {
			fmt.Fprintf(w, "   ... and %d more\n", len(ends)-5)
		}
	} else {
		fmt.Fprintf(w, "✅ No dead ends\n")
	}

	if showTiles {
		for _, tile := range m.Tiles() {
			fmt.Fprintf(w, "  Tile at %s: %s (walkable: %v)\n", tile.Position(), tile.Type, tile.Walkable)
		}
	}
}

// deadEnds returns walkable cells with exactly one walkable neighbour,
// skipping the start and the goal
func deadEnds(m *engine.GameMap) []engine.Position {
	var ends []engine.Position
	size := m.Size()
	for row := 0; row < size.Rows; row++ {
		for col := 0; col < size.Cols; col++ {
			pos := engine.Position{Row: row, Col: col}
			if !m.IsWalkable(pos) || pos == m.StartPosition() || m.IsGoal(pos) {
				continue
			}
			neighbours := 0
			for _, d := range engine.AllDirections() {
				if m.IsWalkable(pos.Add(d.Vector())) {
					neighbours++
				}
			}
			if neighbours == 1 {
				ends = append(ends, pos)
			}
		}
	}
	return ends
}
