package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wricardo/logicpath/game/engine"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMapNotFound     = errors.New("map not found")
	ErrInvalidMap      = errors.New("invalid map")
	ErrProgramTooLong  = errors.New("program too long")
)

// MaxProgramLength caps the commands accepted in a single run request
const MaxProgramLength = 200

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, mapID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Program execution
	Run(ctx context.Context, sessionID string, req RunRequest) (*RunResult, error)
	Stop(ctx context.Context, sessionID string) (*RobotState, error)
	Reset(ctx context.Context, sessionID string) (*RobotState, error)

	// Robot state
	GetRobotState(ctx context.Context, sessionID string) (*RobotState, error)
	GetLastRun(ctx context.Context, sessionID string) (*RunResult, error)

	// Maps
	ListMaps(ctx context.Context) ([]*MapInfo, error)
	LoadMap(ctx context.Context, mapID string) (*engine.MapData, error)
	SaveMap(ctx context.Context, mapID string, data *engine.MapData) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, data *engine.MapData) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, data *engine.MapData) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// MapManager handles map loading
type MapManager interface {
	LoadMap(id string) (*engine.MapData, error)
	ListMaps() ([]*MapInfo, error)
	GetDefault() *engine.MapData
	SaveMap(id string, data *engine.MapData) error
}

// Session is one player's map, robot and executor
type Session struct {
	ID        string
	MapID     string
	Map       *engine.GameMap
	Robot     *engine.Robot
	Executor  *engine.Executor
	CreatedAt time.Time

	mu             sync.Mutex
	lastAccessedAt time.Time
	lastRun        *RunResult
}

// NewSession builds the map, robot and executor for a map definition
func NewSession(id string, data *engine.MapData, opts engine.ExecutorOptions) (*Session, error) {
	gameMap, err := engine.NewGameMap(data)
	if err != nil {
		return nil, fmt.Errorf("failed to build map: %w", err)
	}

	robot := engine.NewRobot(gameMap.StartPosition(), gameMap.StartDirection())
	now := time.Now()

	return &Session{
		ID:             id,
		MapID:          data.ID,
		Map:            gameMap,
		Robot:          robot,
		Executor:       engine.NewExecutor(robot, gameMap, opts),
		CreatedAt:      now,
		lastAccessedAt: now,
	}, nil
}

// Touch records an access
func (s *Session) Touch() {
	s.SetLastAccessed(time.Now())
}

func (s *Session) SetLastAccessed(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessedAt = t
}

func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessedAt
}

func (s *Session) SetLastRun(run *RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = run
}

// LastRun returns the most recent run, nil if none
func (s *Session) LastRun() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// State builds the robot view for the session
func (s *Session) State() *RobotState {
	snap := s.Robot.Snapshot()
	return &RobotState{
		SessionID:    s.ID,
		Position:     snap.Position,
		Direction:    snap.Direction,
		Degrees:      snap.Direction.Degrees(),
		Goal:         s.Map.Goal(),
		AtGoal:       s.Map.IsGoal(snap.Position),
		Running:      s.Executor.IsRunning(),
		CurrentIndex: s.Executor.CurrentIndex(),
		StepDelayMS:  s.Executor.StepDelay().Milliseconds(),
	}
}
