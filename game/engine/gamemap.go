package engine

import (
	"errors"
	"fmt"
)

var ErrMalformedMap = errors.New("malformed map")

type cell struct {
	tile    Tile
	present bool
}

// GameMap is an immutable rectangular tile grid with a start and a goal.
// It is safe for concurrent use once constructed.
type GameMap struct {
	id          string
	name        string
	description string
	size        GridSize

	// cells is row-major, rows*cols long
	cells []cell

	start          Position
	startDirection Direction
	goal           Position
}

// NewGameMap builds the grid from a map definition. Cells without a declared
// tile stay absent. Later duplicates overwrite earlier entries.
func NewGameMap(data *MapData) (*GameMap, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: map data is nil", ErrMalformedMap)
	}
	if data.GridSize.Rows <= 0 || data.GridSize.Cols <= 0 {
		return nil, fmt.Errorf("%w: grid size must be positive, got %dx%d",
			ErrMalformedMap, data.GridSize.Rows, data.GridSize.Cols)
	}

	m := &GameMap{
		id:             data.ID,
		name:           data.Name,
		description:    data.Description,
		size:           data.GridSize,
		cells:          make([]cell, data.GridSize.Rows*data.GridSize.Cols),
		start:          data.Robot.StartPosition,
		startDirection: data.Robot.StartDirection,
		goal:           data.Goal,
	}

	for i, entry := range data.Tiles {
		pos := entry.Position()
		if !m.IsInBounds(pos) {
			return nil, fmt.Errorf("%w: tile %d at %s is outside the %dx%d grid",
				ErrMalformedMap, i, pos, m.size.Rows, m.size.Cols)
		}
		m.cells[m.offset(pos)] = cell{
			tile:    Tile{Type: entry.Type, Walkable: entry.Walkable},
			present: true,
		}
	}

	return m, nil
}

func (m *GameMap) offset(pos Position) int {
	return pos.Row*m.size.Cols + pos.Col
}

// IsInBounds reports whether pos lies inside the grid
func (m *GameMap) IsInBounds(pos Position) bool {
	return pos.Row >= 0 && pos.Row < m.size.Rows &&
		pos.Col >= 0 && pos.Col < m.size.Cols
}

// IsWalkable reports whether the robot may stand on pos
func (m *GameMap) IsWalkable(pos Position) bool {
	tile, ok := m.GetTile(pos)
	return ok && tile.Walkable
}

// GetTile returns the tile at pos. The bool is false when pos is out of
// bounds or no tile was declared there.
func (m *GameMap) GetTile(pos Position) (Tile, bool) {
	if !m.IsInBounds(pos) {
		return Tile{}, false
	}
	c := m.cells[m.offset(pos)]
	return c.tile, c.present
}

// IsGoal reports whether pos is the goal
func (m *GameMap) IsGoal(pos Position) bool {
	return pos == m.goal
}

func (m *GameMap) StartPosition() Position {
	return m.start
}

func (m *GameMap) StartDirection() Direction {
	return m.startDirection
}

func (m *GameMap) Goal() Position {
	return m.goal
}

func (m *GameMap) ID() string {
	return m.id
}

func (m *GameMap) Name() string {
	return m.name
}

func (m *GameMap) Size() GridSize {
	return m.size
}

// Metadata returns id, name, description and dimensions
func (m *GameMap) Metadata() MapMetadata {
	return MapMetadata{
		ID:          m.id,
		Name:        m.name,
		Description: m.description,
		GridSize:    m.size,
	}
}

// Tiles returns the declared tiles in row-major order
func (m *GameMap) Tiles() []TileEntry {
	tiles := make([]TileEntry, 0, len(m.cells))
	for row := 0; row < m.size.Rows; row++ {
		for col := 0; col < m.size.Cols; col++ {
			c := m.cells[row*m.size.Cols+col]
			if !c.present {
				continue
			}
			tiles = append(tiles, TileEntry{Row: row, Col: col, Type: c.tile.Type, Walkable: c.tile.Walkable})
		}
	}
	return tiles
}
