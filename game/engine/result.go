package engine

const (
	MessageNoCommands    = "No commands to execute"
	MessageGoalReached   = "Goal reached!"
	MessageAllExecuted   = "All commands executed"
	MessageStopped       = "Execution stopped"
	MessageBlockedMove   = "Cannot move forward - obstacle or boundary"
	messageUnknownPrefix = "Unknown command: "
)

// StepResult is the outcome of a single command. Position is set by forward
// moves, Direction by turns.
type StepResult struct {
	Index     int       `json:"index"`
	Command   Command   `json:"command"`
	Success   bool      `json:"success"`
	Position  *Position `json:"position,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// ExecutionResult is the outcome of a whole run. CommandIndex points at the
// command that failed or was in flight when the run stopped.
type ExecutionResult struct {
	Success      bool         `json:"success"`
	GoalReached  bool         `json:"goal_reached"`
	Stopped      bool         `json:"stopped,omitempty"`
	Message      string       `json:"message"`
	CommandIndex *int         `json:"command_index,omitempty"`
	Results      []StepResult `json:"results"`
}

// StepsExecuted returns the number of evaluated commands
func (r *ExecutionResult) StepsExecuted() int {
	if r == nil {
		return 0
	}
	return len(r.Results)
}

// EndState replays the successful steps over start. It reflects this run
// only, whatever happened to the robot after the run returned.
func (r *ExecutionResult) EndState(start RobotSnapshot) RobotSnapshot {
	end := start
	if r == nil {
		return end
	}
	for _, step := range r.Results {
		if !step.Success {
			continue
		}
		if step.Position != nil {
			end.Position = *step.Position
		}
		if step.Direction != "" {
			end.Direction = step.Direction
		}
	}
	return end
}

func intPtr(i int) *int {
	return &i
}
