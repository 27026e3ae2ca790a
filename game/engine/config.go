package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SupportedMapExtensions lists the file extensions LoadMapFile understands, in lookup order
var SupportedMapExtensions = []string{".json", ".yaml", ".yml"}

// ValidateMapData checks a map definition for correctness and playability.
// Reachability of the goal is not checked.
func ValidateMapData(data *MapData) error {
	if data == nil {
		return fmt.Errorf("map validation: map is nil")
	}

	// Validate required fields
	if data.ID == "" {
		return fmt.Errorf("map validation: id is required")
	}
	if data.Name == "" {
		return fmt.Errorf("map validation: name is required")
	}

	// Validate grid size
	rows, cols := data.GridSize.Rows, data.GridSize.Cols
	if rows < MinGridSize || rows > MaxGridSize {
		return fmt.Errorf("map validation: gridSize.rows must be between %d and %d, got %d", MinGridSize, MaxGridSize, rows)
	}
	if cols < MinGridSize || cols > MaxGridSize {
		return fmt.Errorf("map validation: gridSize.cols must be between %d and %d, got %d", MinGridSize, MaxGridSize, cols)
	}

	// Validate tiles
	for i, tile := range data.Tiles {
		if tile.Row < 0 || tile.Row >= rows || tile.Col < 0 || tile.Col >= cols {
			return fmt.Errorf("map validation: tile %d at (%d, %d) is outside the %dx%d grid", i, tile.Row, tile.Col, rows, cols)
		}
		if tile.Type == "" {
			return fmt.Errorf("map validation: tile %d at (%d, %d) has no type", i, tile.Row, tile.Col)
		}
	}

	if dir := data.Robot.StartDirection; dir != "" && !dir.Valid() {
		return fmt.Errorf("map validation: robot.startDirection must be one of north, east, south, west, got %q", dir)
	}

	gameMap, err := NewGameMap(data)
	if err != nil {
		return fmt.Errorf("map validation: %w", err)
	}

	start := data.Robot.StartPosition
	if !gameMap.IsInBounds(start) {
		return fmt.Errorf("map validation: robot.startPosition %s is out of bounds", start)
	}
	if !gameMap.IsWalkable(start) {
		return fmt.Errorf("map validation: robot.startPosition %s is not walkable", start)
	}
	if !gameMap.IsInBounds(data.Goal) {
		return fmt.Errorf("map validation: goal %s is out of bounds", data.Goal)
	}
	if !gameMap.IsWalkable(data.Goal) {
		return fmt.Errorf("map validation: goal %s is not walkable", data.Goal)
	}

	return nil
}

// ParseMapData decodes a map definition. ext selects the format: ".yaml" and
// ".yml" use YAML, anything else JSON.
func ParseMapData(raw []byte, ext string) (*MapData, error) {
	var data MapData
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to parse yaml map: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to parse json map: %w", err)
		}
	}
	return &data, nil
}

// LoadMapFile reads, parses and validates a map file. A missing id defaults
// to the file name without extension.
func LoadMapFile(filename string) (*MapData, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(filename)
	data, err := ParseMapData(raw, ext)
	if err != nil {
		return nil, fmt.Errorf("map '%s': %w", filename, err)
	}
	if data.ID == "" {
		data.ID = strings.TrimSuffix(filepath.Base(filename), ext)
	}

	if err := ValidateMapData(data); err != nil {
		return nil, fmt.Errorf("invalid map '%s': %w", filename, err)
	}

	return data, nil
}

// IsMapFile reports whether name has a supported map extension
func IsMapFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedMapExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// CorridorMap returns a 1-row all-grass map with the robot at (0,0) facing
// east and the goal at (0,goalCol).
func CorridorMap(id string, cols, goalCol int) *MapData {
	tiles := make([]TileEntry, 0, cols)
	for col := 0; col < cols; col++ {
		tiles = append(tiles, TileEntry{Row: 0, Col: col, Type: "grass", Walkable: true})
	}
	return &MapData{
		ID:          id,
		Name:        "Corridor",
		Description: "A straight corridor",
		GridSize:    GridSize{Rows: 1, Cols: cols},
		Tiles:       tiles,
		Robot: RobotSpec{
			StartPosition:  Position{Row: 0, Col: 0},
			StartDirection: East,
		},
		Goal: Position{Row: 0, Col: goalCol},
	}
}
