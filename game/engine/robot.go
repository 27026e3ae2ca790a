package engine

import "sync"

// Robot holds the robot position and facing direction along with the values
// captured at construction for Reset. Reads are safe while a run mutates it.
type Robot struct {
	mu sync.RWMutex

	position  Position
	direction Direction

	initialPosition  Position
	initialDirection Direction
}

// NewRobot creates a robot at start. An empty or unknown direction falls back to north.
func NewRobot(start Position, direction Direction) *Robot {
	if !direction.Valid() {
		direction = North
	}
	return &Robot{
		position:         start,
		direction:        direction,
		initialPosition:  start,
		initialDirection: direction,
	}
}

// MoveForward moves one tile in the facing direction without any walkability
// check and returns the new position.
func (r *Robot) MoveForward() Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position = r.position.Add(r.direction.Vector())
	return r.position
}

// NextPosition returns where MoveForward would land
func (r *Robot) NextPosition() Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.position.Add(r.direction.Vector())
}

func (r *Robot) RotateLeft() Direction {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direction = r.direction.Left()
	return r.direction
}

func (r *Robot) RotateRight() Direction {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direction = r.direction.Right()
	return r.direction
}

// Reset restores the position and direction captured at construction
func (r *Robot) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position = r.initialPosition
	r.direction = r.initialDirection
}

func (r *Robot) Position() Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.position
}

func (r *Robot) Direction() Direction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.direction
}

// Snapshot returns position and direction read together
func (r *Robot) Snapshot() RobotSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RobotSnapshot{Position: r.position, Direction: r.direction}
}

// InitialState returns the reset target
func (r *Robot) InitialState() RobotSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RobotSnapshot{Position: r.initialPosition, Direction: r.initialDirection}
}

func (r *Robot) SetPosition(pos Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position = pos
}

// SetDirection overrides the facing direction. Unknown values are ignored
// and reported with false.
func (r *Robot) SetDirection(direction Direction) bool {
	if !direction.Valid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direction = direction
	return true
}
