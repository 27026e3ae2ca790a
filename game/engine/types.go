package engine

import "fmt"

const (
	// Validation constants
	MinGridSize = 1
	MaxGridSize = 50

	WebSocketBufferSize = 256
)

// Position represents row,col coordinates. Row grows downward.
type Position struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

// Add returns the position translated by the given vector
func (p Position) Add(v Vector) Position {
	return Position{Row: p.Row + v.DRow, Col: p.Col + v.DCol}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.Row, p.Col)
}

// Vector is a unit movement step
type Vector struct {
	DRow int
	DCol int
}

// GridSize holds map dimensions
type GridSize struct {
	Rows int `json:"rows" yaml:"rows"`
	Cols int `json:"cols" yaml:"cols"`
}

// Tile is a single grid cell. Type is a free label such as "grass" or "water".
type Tile struct {
	Type     string `json:"type" yaml:"type"`
	Walkable bool   `json:"walkable" yaml:"walkable"`
}

// TileEntry is a tile declaration carrying its own coordinates
type TileEntry struct {
	Row      int    `json:"row" yaml:"row"`
	Col      int    `json:"col" yaml:"col"`
	Type     string `json:"type" yaml:"type"`
	Walkable bool   `json:"walkable" yaml:"walkable"`
}

// Position returns the entry coordinates
func (t TileEntry) Position() Position {
	return Position{Row: t.Row, Col: t.Col}
}

// RobotSpec is the robot section of a map definition
type RobotSpec struct {
	StartPosition  Position  `json:"startPosition" yaml:"startPosition"`
	StartDirection Direction `json:"startDirection" yaml:"startDirection"`
}

// MapData is the raw map definition as stored in JSON or YAML files
type MapData struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	GridSize    GridSize    `json:"gridSize" yaml:"gridSize"`
	Tiles       []TileEntry `json:"tiles" yaml:"tiles"`
	Robot       RobotSpec   `json:"robot" yaml:"robot"`
	Goal        Position    `json:"goal" yaml:"goal"`
}

// Clone returns a deep copy of the map definition
func (d *MapData) Clone() *MapData {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Tiles = append([]TileEntry(nil), d.Tiles...)
	return &clone
}

// MapMetadata is the descriptive part of a map
type MapMetadata struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	GridSize    GridSize `json:"gridSize"`
}

// RobotSnapshot is a point-in-time copy of robot state
type RobotSnapshot struct {
	Position  Position  `json:"position"`
	Direction Direction `json:"direction"`
}
