package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	ErrBusy     = errors.New("already executing commands")
	ErrInternal = errors.New("internal execution error")

	errStopped = errors.New("execution stopped")
)

// DefaultStepDelay is the pause after each successful step
const DefaultStepDelay = 500 * time.Millisecond

// GoalCheckOrder decides whether the goal test runs before or after the step delay
type GoalCheckOrder string

const (
	GoalCheckAfterDelay  GoalCheckOrder = "after_delay"
	GoalCheckBeforeDelay GoalCheckOrder = "before_delay"
)

// ParseGoalCheckOrder accepts "after", "before" or the full constant values
func ParseGoalCheckOrder(s string) (GoalCheckOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "after", string(GoalCheckAfterDelay):
		return GoalCheckAfterDelay, nil
	case "before", string(GoalCheckBeforeDelay):
		return GoalCheckBeforeDelay, nil
	}
	return "", fmt.Errorf("unknown goal check order %q", s)
}

// ExecutorOptions configures an Executor
type ExecutorOptions struct {
	StepDelay time.Duration
	GoalCheck GoalCheckOrder
	Observer  Observer
	Logger    *log.Logger
}

// DefaultExecutorOptions returns a 500ms delay with the goal checked after it
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{
		StepDelay: DefaultStepDelay,
		GoalCheck: GoalCheckAfterDelay,
	}
}

// Executor runs programs against a robot and a map, one run at a time.
type Executor struct {
	robot     *Robot
	gameMap   *GameMap
	observer  Observer
	logger    *log.Logger
	goalCheck GoalCheckOrder

	// mu guards everything below and serialises robot mutations
	mu           sync.Mutex
	stepDelay    time.Duration
	running      bool
	currentIndex int
	generation   uint64
	stop         chan struct{}
}

// NewExecutor borrows robot and gameMap for every run
func NewExecutor(robot *Robot, gameMap *GameMap, opts ExecutorOptions) *Executor {
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.GoalCheck == "" {
		opts.GoalCheck = GoalCheckAfterDelay
	}
	if opts.StepDelay < 0 {
		opts.StepDelay = 0
	}
	return &Executor{
		robot:        robot,
		gameMap:      gameMap,
		observer:     opts.Observer,
		logger:       opts.Logger,
		goalCheck:    opts.GoalCheck,
		stepDelay:    opts.StepDelay,
		currentIndex: -1,
	}
}

// RunSetup is applied in the same critical section that claims the
// executor. A caller turned away with ErrBusy never gets to apply it.
type RunSetup struct {
	// ResetRobot puts the robot back on its start tile before the first step
	ResetRobot bool
	// StepDelay replaces the executor's step delay for this and later runs
	StepDelay *time.Duration
	// Started receives the robot state the run begins from
	Started func(start RobotSnapshot)
}

// Execute runs program to completion, failure, goal or stop. A call made
// while another run is in flight returns ErrBusy and leaves that run alone.
// When ctx is cancelled the partial result is returned together with ctx.Err().
func (e *Executor) Execute(ctx context.Context, program []Command) (*ExecutionResult, error) {
	return e.ExecuteWith(ctx, program, RunSetup{})
}

// ExecuteWith is Execute with setup applied atomically with the busy check.
func (e *Executor) ExecuteWith(ctx context.Context, program []Command, setup RunSetup) (result *ExecutionResult, err error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	if setup.StepDelay != nil {
		e.stepDelay = max(*setup.StepDelay, 0)
	}
	if setup.ResetRobot {
		e.robot.Reset()
	}
	if setup.Started != nil {
		setup.Started(e.robot.Snapshot())
	}
	if len(program) == 0 {
		e.mu.Unlock()
		return &ExecutionResult{Message: MessageNoCommands, Results: []StepResult{}}, nil
	}
	e.running = true
	e.generation++
	gen := e.generation
	stop := make(chan struct{})
	e.stop = stop
	e.currentIndex = -1
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			e.finish(gen)
			e.logger.Error("Command execution aborted", "error", r)
			result = nil
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	total := len(program)
	results := make([]StepResult, 0, total)

	for i, cmd := range program {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.finish(gen)
			return stoppedResult(results), ctxErr
		}
		if !e.claim(gen, i) {
			return stoppedResult(results), nil
		}

		e.observer.StepStarted(StepStartEvent{Command: cmd, Index: i, Total: total})
		step := e.evaluate(i, cmd)
		results = append(results, step)
		e.observer.StepCompleted(StepCompleteEvent{Command: cmd, Index: i, Result: step})

		if !step.Success {
			e.logger.Debug("Command failed", "index", i+1, "total", total, "command", cmd, "message", step.Message)
			e.finish(gen)
			return &ExecutionResult{
				Message:      step.Message,
				CommandIndex: intPtr(i),
				Results:      results,
			}, nil
		}
		e.logger.Debug("Command executed", "index", i+1, "total", total, "command", cmd, "position", e.robot.Position())

		if e.goalCheck == GoalCheckBeforeDelay && e.checkGoal() {
			e.finish(gen)
			return goalResult(results), nil
		}

		if waitErr := e.wait(ctx, stop); waitErr != nil {
			e.finish(gen)
			if errors.Is(waitErr, errStopped) {
				return stoppedResult(results), nil
			}
			return stoppedResult(results), waitErr
		}

		if e.goalCheck == GoalCheckAfterDelay && e.checkGoal() {
			e.finish(gen)
			return goalResult(results), nil
		}
	}

	e.finish(gen)
	return &ExecutionResult{
		Success: true,
		Message: MessageAllExecuted,
		Results: results,
	}, nil
}

// Stop forces the executor back to idle. Moves already made are kept; the
// stopped run returns at its next wait point. Returns false when idle.
func (e *Executor) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return false
	}
	e.running = false
	e.currentIndex = -1
	close(e.stop)
	e.stop = nil
	return true
}

// ResetRobot puts the robot back on its start tile. Fails with ErrBusy
// while a run is in flight.
func (e *Executor) ResetRobot() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrBusy
	}
	e.robot.Reset()
	return nil
}

func (e *Executor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// CurrentIndex returns the in-flight command index, -1 when idle
func (e *Executor) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIndex
}

func (e *Executor) StepDelay() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepDelay
}

// SetStepDelay changes the pause after each successful step. It applies from
// the next wait of an in-flight run.
func (e *Executor) SetStepDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepDelay = d
}

func (e *Executor) GoalCheck() GoalCheckOrder {
	return e.goalCheck
}

func (e *Executor) Robot() *Robot {
	return e.robot
}

func (e *Executor) Map() *GameMap {
	return e.gameMap
}

// claim marks index as in flight if gen is still the active run
func (e *Executor) claim(gen uint64, index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.generation != gen {
		return false
	}
	e.currentIndex = index
	return true
}

// finish returns to idle unless a newer run owns the executor
func (e *Executor) finish(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen || !e.running {
		return
	}
	e.running = false
	e.currentIndex = -1
	e.stop = nil
}

func (e *Executor) evaluate(index int, cmd Command) StepResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	step := StepResult{Index: index, Command: cmd}
	switch cmd {
	case CommandForward:
		next := e.robot.NextPosition()
		if !e.gameMap.IsWalkable(next) {
			step.Message = MessageBlockedMove
			return step
		}
		pos := e.robot.MoveForward()
		step.Position = &pos
		step.Success = true
	case CommandTurnLeft:
		step.Direction = e.robot.RotateLeft()
		step.Success = true
	case CommandTurnRight:
		step.Direction = e.robot.RotateRight()
		step.Success = true
	default:
		step.Message = messageUnknownPrefix + string(cmd)
	}
	return step
}

func (e *Executor) checkGoal() bool {
	pos := e.robot.Position()
	if !e.gameMap.IsGoal(pos) {
		return false
	}
	e.logger.Debug("Goal reached", "position", pos)
	e.observer.GoalReached(GoalReachedEvent{Position: pos})
	return true
}

func (e *Executor) wait(ctx context.Context, stop <-chan struct{}) error {
	delay := e.StepDelay()
	if delay <= 0 {
		select {
		case <-stop:
			return errStopped
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-stop:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func goalResult(results []StepResult) *ExecutionResult {
	return &ExecutionResult{
		Success:     true,
		GoalReached: true,
		Message:     MessageGoalReached,
		Results:     results,
	}
}

func stoppedResult(results []StepResult) *ExecutionResult {
	result := &ExecutionResult{
		Stopped: true,
		Message: MessageStopped,
		Results: results,
	}
	if n := len(results); n > 0 {
		result.CommandIndex = intPtr(results[n-1].Index)
	}
	return result
}
