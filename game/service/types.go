package service

import (
	"time"

	"github.com/wricardo/logicpath/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string          `json:"id"`
	MapID          string          `json:"map_id"`
	MapName        string          `json:"map_name"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
	Robot          *RobotState     `json:"robot"`
	Map            *engine.MapData `json:"map,omitempty"`
}

// RobotState is the renderer view of a session's robot
type RobotState struct {
	SessionID    string           `json:"session_id"`
	Position     engine.Position  `json:"position"`
	Direction    engine.Direction `json:"direction"`
	Degrees      int              `json:"degrees"`
	Goal         engine.Position  `json:"goal"`
	AtGoal       bool             `json:"at_goal"`
	Running      bool             `json:"running"`
	CurrentIndex int              `json:"current_index"`
	StepDelayMS  int64            `json:"step_delay_ms"`
}

// RunRequest describes a program run. StepDelayMS, when set, changes the
// session's step delay for this and later runs.
type RunRequest struct {
	Commands    []string `json:"commands"`
	Reset       bool     `json:"reset,omitempty"`
	StepDelayMS *int     `json:"step_delay_ms,omitempty"`
	RunID       string   `json:"run_id,omitempty"`
}

// RunResult is an execution result with run bookkeeping
type RunResult struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id"`
	engine.ExecutionResult
	Commands   []string             `json:"commands"`
	Start      engine.RobotSnapshot `json:"start"`
	End        engine.RobotSnapshot `json:"end"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// MapInfo provides information about an available map
type MapInfo struct {
	Filename    string `json:"filename"`
	MapID       string `json:"map_id"` // The identifier to use for session creation
	Name        string `json:"name"`
	Description string `json:"description"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
}
