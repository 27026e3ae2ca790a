package engine

import "strings"

// Grid glyphs used by RenderASCII
const (
	GlyphWalkable = '.'
	GlyphBlocked  = '#'
	GlyphAbsent   = ' '
	GlyphGoal     = 'G'
)

var robotGlyphs = map[Direction]rune{
	North: '^',
	East:  '>',
	South: 'v',
	West:  '<',
}

// RobotGlyph returns the arrow used to draw a robot facing d
func RobotGlyph(d Direction) rune {
	if g, ok := robotGlyphs[d]; ok {
		return g
	}
	return 'R'
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dr := from.Row - to.Row
	if dr < 0 {
		dr = -dr
	}
	dc := from.Col - to.Col
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}

// CountWalkable counts walkable tiles on the map
func CountWalkable(m *GameMap) int {
	count := 0
	for _, tile := range m.Tiles() {
		if tile.Walkable {
			count++
		}
	}
	return count
}

// CountTileTypes counts declared tiles per type label
func CountTileTypes(m *GameMap) map[string]int {
	counts := make(map[string]int)
	for _, tile := range m.Tiles() {
		counts[tile.Type]++
	}
	return counts
}

// RenderASCII draws the map one string per row with the robot on top
func RenderASCII(m *GameMap, robot RobotSnapshot) []string {
	size := m.Size()
	lines := make([]string, 0, size.Rows)
	for row := 0; row < size.Rows; row++ {
		var b strings.Builder
		for col := 0; col < size.Cols; col++ {
			b.WriteRune(CellGlyph(m, Position{Row: row, Col: col}, robot))
		}
		lines = append(lines, b.String())
	}
	return lines
}

// CellGlyph returns the glyph for a single cell
func CellGlyph(m *GameMap, pos Position, robot RobotSnapshot) rune {
	if pos == robot.Position {
		return RobotGlyph(robot.Direction)
	}
	if m.IsGoal(pos) {
		return GlyphGoal
	}
	tile, ok := m.GetTile(pos)
	switch {
	case !ok:
		return GlyphAbsent
	case tile.Walkable:
		return GlyphWalkable
	default:
		return GlyphBlocked
	}
}
