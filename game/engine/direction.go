package engine

import "strings"

// Direction is a facing direction on the grid
type Direction string

const (
	North Direction = "north"
	East  Direction = "east"
	South Direction = "south"
	West  Direction = "west"
)

// directionOrder is the clockwise cycle used for rotation
var directionOrder = [4]Direction{North, East, South, West}

var directionVectors = map[Direction]Vector{
	North: {DRow: -1, DCol: 0},
	East:  {DRow: 0, DCol: 1},
	South: {DRow: 1, DCol: 0},
	West:  {DRow: 0, DCol: -1},
}

var directionDegrees = map[Direction]int{
	North: 0,
	East:  90,
	South: 180,
	West:  270,
}

// AllDirections returns the four directions in clockwise order starting at north
func AllDirections() []Direction {
	return directionOrder[:]
}

// ParseDirection converts a case-insensitive name into a Direction
func ParseDirection(s string) (Direction, bool) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	return d, d.Valid()
}

// Valid reports whether d is one of the four directions
func (d Direction) Valid() bool {
	_, ok := directionVectors[d]
	return ok
}

func (d Direction) index() int {
	for i, candidate := range directionOrder {
		if candidate == d {
			return i
		}
	}
	return -1
}

// Left returns the direction after a counter-clockwise quarter turn
func (d Direction) Left() Direction {
	i := d.index()
	if i < 0 {
		return d
	}
	return directionOrder[(i-1+len(directionOrder))%len(directionOrder)]
}

// Right returns the direction after a clockwise quarter turn
func (d Direction) Right() Direction {
	i := d.index()
	if i < 0 {
		return d
	}
	return directionOrder[(i+1)%len(directionOrder)]
}

// Vector returns the unit movement vector, zero for unknown directions
func (d Direction) Vector() Vector {
	return directionVectors[d]
}

// Degrees returns the display rotation angle
func (d Direction) Degrees() int {
	return directionDegrees[d]
}

func (d Direction) String() string {
	return string(d)
}
