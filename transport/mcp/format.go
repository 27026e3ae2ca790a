package mcp

import (
	"fmt"
	"strings"

	"github.com/wricardo/logicpath/game/engine"
	"github.com/wricardo/logicpath/game/service"
)

func formatSessionInfo(s *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", s.ID)
	fmt.Fprintf(&b, "Map: %s (%s)\n", s.MapName, s.MapID)
	fmt.Fprintf(&b, "Created: %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	if s.Robot != nil {
		b.WriteString("\n")
		b.WriteString(formatRobotState(s.Robot))
	}
	if grid := formatGrid(s.Map, s.Robot); grid != "" {
		b.WriteString("\n")
		b.WriteString(grid)
	}
	return b.String()
}

func formatRobotState(state *service.RobotState) string {
	if state == nil {
		return "Robot state unavailable\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Robot: %s facing %s\n", state.Position, state.Direction)
	fmt.Fprintf(&b, "Goal: %s (distance %d)\n", state.Goal, engine.ManhattanDistance(state.Position, state.Goal))
	if state.AtGoal {
		b.WriteString("🎯 The robot is on the goal\n")
	}
	if state.Running {
		fmt.Fprintf(&b, "Running: command %d\n", state.CurrentIndex)
	}
	return b.String()
}

// formatGrid draws the map with the robot, or "" when the map is missing or malformed
func formatGrid(data *engine.MapData, state *service.RobotState) string {
	if data == nil {
		return ""
	}
	m, err := engine.NewGameMap(data)
	if err != nil {
		return ""
	}

	robot := engine.RobotSnapshot{Position: m.StartPosition(), Direction: m.StartDirection()}
	if state != nil {
		robot = engine.RobotSnapshot{Position: state.Position, Direction: state.Direction}
	}

	var b strings.Builder
	b.WriteString("Grid:\n")
	for i, line := range engine.RenderASCII(m, robot) {
		fmt.Fprintf(&b, "%2d |%s|\n", i, line)
	}
	return b.String()
}

func formatRunResult(run *service.RunResult) string {
	var b strings.Builder

	switch {
	case run.GoalReached:
		b.WriteString("🎯 GOAL REACHED!\n")
	case run.Stopped:
		b.WriteString("⏹ Run stopped\n")
	case run.Success:
		b.WriteString("✅ All commands executed, goal not reached\n")
	default:
		b.WriteString("❌ Run failed\n")
	}

	fmt.Fprintf(&b, "Message: %s\n", run.Message)
	fmt.Fprintf(&b, "Executed: %d/%d commands\n", run.StepsExecuted(), len(run.Commands))
	if run.CommandIndex != nil {
		fmt.Fprintf(&b, "Command index: %d\n", *run.CommandIndex)
	}
	fmt.Fprintf(&b, "Start: %s facing %s\n", run.Start.Position, run.Start.Direction)
	fmt.Fprintf(&b, "End: %s facing %s\n", run.End.Position, run.End.Direction)

	if len(run.Results) > 0 {
		b.WriteString("\nSteps:\n")
		for _, step := range run.Results {
			status := "OK"
			if !step.Success {
				status = "FAIL"
			}
			detail := step.Message
			switch {
			case step.Position != nil:
				detail = "at " + step.Position.String()
			case step.Direction != "":
				detail = "facing " + string(step.Direction)
			}
			fmt.Fprintf(&b, "  %d. %s %s %s\n", step.Index, step.Command, status, detail)
		}
	}

	return b.String()
}

// describeTile explains a single cell of the session's map
func describeTile(data *engine.MapData, state *service.RobotState, pos engine.Position) (string, error) {
	if data == nil {
		return "", fmt.Errorf("session has no map")
	}
	m, err := engine.NewGameMap(data)
	if err != nil {
		return "", err
	}

	size := m.Size()
	if !m.IsInBounds(pos) {
		return "", fmt.Errorf("cell %s is out of bounds. Grid is %dx%d (rows 0-%d, cols 0-%d)",
			pos, size.Rows, size.Cols, size.Rows-1, size.Cols-1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cell %s\n", pos)

	tile, ok := m.GetTile(pos)
	if ok {
		fmt.Fprintf(&b, "Tile: %s\n", tile.Type)
		fmt.Fprintf(&b, "Walkable: %v\n", tile.Walkable)
	} else {
		b.WriteString("Tile: none (blocked)\n")
		b.WriteString("Walkable: false\n")
	}

	if m.IsGoal(pos) {
		b.WriteString("This is the goal\n")
	}
	if state != nil && state.Position == pos {
		fmt.Fprintf(&b, "The robot is here, facing %s\n", state.Direction)
	}
	return b.String(), nil
}
