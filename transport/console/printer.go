package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wricardo/logicpath/game/engine"
)

var (
	robotStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	goalStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	walkableStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	blockedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle   = lipgloss.NewStyle().Bold(true)
	gridBorder    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// RenderGrid draws the map with the robot on top, one styled rune per cell
func RenderGrid(m *engine.GameMap, robot engine.RobotSnapshot) string {
	lines := engine.RenderASCII(m, robot)
	styled := make([]string, len(lines))
	for i, line := range lines {
		var b strings.Builder
		for _, r := range line {
			b.WriteString(glyphStyle(r).Render(string(r)))
		}
		styled[i] = b.String()
	}
	return gridBorder.Render(strings.Join(styled, "\n"))
}

func glyphStyle(r rune) lipgloss.Style {
	switch r {
	case engine.GlyphGoal:
		return goalStyle
	case engine.GlyphWalkable:
		return walkableStyle
	case engine.GlyphBlocked, engine.GlyphAbsent:
		return blockedStyle
	default:
		return robotStyle
	}
}

// Printer is an engine.Observer that writes a step trace to a terminal.
// With ShowGrid set, the grid is redrawn after every step.
type Printer struct {
	out      io.Writer
	gameMap  *engine.GameMap
	robot    *engine.Robot
	ShowGrid bool
}

// NewPrinter creates a printer for one robot on one map
func NewPrinter(out io.Writer, gameMap *engine.GameMap, robot *engine.Robot) *Printer {
	return &Printer{out: out, gameMap: gameMap, robot: robot}
}

func (p *Printer) StepStarted(e engine.StepStartEvent) {
	fmt.Fprintf(p.out, "%s %s\n", headerStyle.Render(fmt.Sprintf("[%d/%d]", e.Index+1, e.Total)), e.Command)
}

func (p *Printer) StepCompleted(e engine.StepCompleteEvent) {
	step := e.Result
	if !step.Success {
		fmt.Fprintf(p.out, "      %s %s\n", failStyle.Render("FAIL"), step.Message)
		return
	}

	snapshot := p.robot.Snapshot()
	fmt.Fprintf(p.out, "      %s robot at %s facing %s\n", okStyle.Render("OK"), snapshot.Position, snapshot.Direction)
	if p.ShowGrid {
		fmt.Fprintln(p.out, RenderGrid(p.gameMap, snapshot))
	}
}

func (p *Printer) GoalReached(e engine.GoalReachedEvent) {
	fmt.Fprintln(p.out, goalStyle.Render(fmt.Sprintf("🎯 Goal reached at %s", e.Position)))
}

// PrintSummary writes the outcome of a finished run
func PrintSummary(out io.Writer, result *engine.ExecutionResult, total int) {
	style := failStyle
	if result.Success || result.GoalReached {
		style = okStyle
	}
	fmt.Fprintln(out, style.Render(result.Message))
	fmt.Fprintf(out, "Executed %d/%d commands\n", result.StepsExecuted(), total)
	if result.CommandIndex != nil {
		fmt.Fprintf(out, "Stopped at command %d\n", *result.CommandIndex)
	}
}
