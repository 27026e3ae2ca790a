// Command validate checks the map files in a maps directory (../maps by
// default, or the first argument). For each .json, .yaml or .yml file it checks:
//   - the file parses and passes the loader's validation rules
//   - the declared id matches the file name (the file name wins at load time)
//   - the goal is reachable from the start over walkable tiles
//   - the map has no walkable tile cut off from the start (reported as a note)
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/logicpath/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf("✓ "+format, args...))
}

// validateMap loads and validates a single map file
func validateMap(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	ext := filepath.Ext(filePath)
	data, err := engine.ParseMapData(raw, ext)
	if err != nil {
		result.fail("Invalid map file: %v", err)
		return result
	}

	fileID := strings.TrimSuffix(result.File, ext)
	if data.ID == "" {
		data.ID = fileID
	} else if !strings.EqualFold(data.ID, fileID) {
		result.fail("Declared id %q does not match file name %q", data.ID, fileID)
	}

	if err := engine.ValidateMapData(data); err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), "map validation: "))
		return result
	}

	gameMap, err := engine.NewGameMap(data)
	if err != nil {
		result.fail("Failed to build map: %v", err)
		return result
	}

	reachable := reachableFrom(gameMap, gameMap.StartPosition())
	if !reachable[gameMap.Goal()] {
		result.fail("Connectivity failure: goal %s is unreachable from start %s", gameMap.Goal(), gameMap.StartPosition())
	}

	if result.Valid {
		walkable := engine.CountWalkable(gameMap)
		size := gameMap.Size()
		result.info("Name: %s", data.Name)
		result.info("Grid: %dx%d", size.Rows, size.Cols)
		result.info("Start: %s facing %s", gameMap.StartPosition(), gameMap.StartDirection())
		result.info("Goal: %s (distance %d)", gameMap.Goal(), engine.ManhattanDistance(gameMap.StartPosition(), gameMap.Goal()))
		result.info("Connectivity: goal reachable, %d/%d walkable tiles reachable", len(reachable), walkable)
		if isolated := walkable - len(reachable); isolated > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Note: %d walkable tiles cannot be reached from the start", isolated))
		}
	}

	return result
}

// reachableFrom flood fills walkable tiles from start using 4-directional moves
func reachableFrom(m *engine.GameMap, start engine.Position) map[engine.Position]bool {
	visited := make(map[engine.Position]bool)
	if !m.IsWalkable(start) {
		return visited
	}

	queue := []engine.Position{start}
	visited[start] = true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, d := range engine.AllDirections() {
			next := current.Add(d.Vector())
			if !visited[next] && m.IsWalkable(next) {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

// mapFiles lists the map files in dir, sorted by name
func mapFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && engine.IsMapFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, errors.New("no map files found")
	}
	return files, nil
}

// main validates every map file, printing a concise report and exiting
// with non-zero status if any are invalid.
func main() {
	mapsDir := "../maps"
	if len(os.Args) > 1 {
		mapsDir = os.Args[1]
	}

	files, err := mapFiles(mapsDir)
	if err != nil {
		fmt.Printf("Error finding map files in %s: %v\n", mapsDir, err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateMap(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All maps are valid!")
	} else {
		fmt.Println("❌ Some maps have errors")
		os.Exit(1)
	}
}
