package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/logicpath/game/engine"
	"github.com/wricardo/logicpath/game/service"
)

// ServerName and ServerVersion identify the MCP server to clients
const (
	ServerName    = "LogicPath"
	ServerVersion = "1.0.0"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Synchronous runs block until the program ends
			Timeout: 2 * time.Minute,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(`LogicPath - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Program the robot to reach the goal tile (G). A program is a list of
commands: forward, left, right. The robot stops at the first command that
fails and as soon as it stands on the goal.

AVAILABLE TOOLS:
- create_session: Create a new session on a map
- list_sessions: List all active sessions
- get_session: Session details
- robot_state: Robot position, direction and the grid
- run_program: Execute a program - requires intent explanation
- stop_run: Stop a running program
- reset_robot: Put the robot back on its start tile
- list_maps: List available maps
- describe_tile: Details of a single grid cell
- game_instructions: Full rules

NOTE: The 'intent' parameter on run_program serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new session with optional map selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"map_id": map[string]any{
					"type":        "string",
					"description": "ID of the map to use (optional, see list_maps)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Robot operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "robot_state",
		Description: "Get the robot's position and direction drawn on the grid",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleRobotState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_program",
		Description: "Execute a program of commands on the robot and wait for the result",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"commands": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "string",
						"enum": []string{string(engine.CommandForward), string(engine.CommandTurnLeft), string(engine.CommandTurnRight)},
					},
					"description": "Commands to execute in order",
				},
				"intent": map[string]any{
					"type":        "string",
					"description": "Brief explanation of the intent behind this program (serves as a rubber duck to help explain your reasoning)",
				},
				"reset": map[string]any{
					"type":        "boolean",
					"description": "Reset the robot before running",
				},
				"step_delay_ms": map[string]any{
					"type":        "integer",
					"description": "Pause after each step in milliseconds",
				},
			},
			Required: []string{"session_id", "commands"},
		},
	}, c.handleRunProgram)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_run",
		Description: "Stop the program running in a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleStopRun)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_robot",
		Description: "Put the robot back on its start tile and direction",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleResetRobot)

	// Maps
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_maps",
		Description: "List available maps",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListMaps)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_tile",
		Description: "Get detailed information about a single grid cell: its tile type, whether it is walkable, and whether the robot or the goal is on it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"row": map[string]any{
					"type":        "integer",
					"description": "Row of the cell (0-based, grows downward)",
				},
				"col": map[string]any{
					"type":        "integer",
					"description": "Column of the cell (0-based)",
				},
			},
			Required: []string{"session_id", "row", "col"},
		},
	}, c.handleDescribeTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the rules and command reference",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HTTPHandler serves the tools over streamable HTTP
func (c *Client) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(c.mcpServer)
}

// ServeStdio serves the tools on stdin/stdout until the input closes
func (c *Client) ServeStdio() error {
	return server.ServeStdio(c.mcpServer)
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

func requireSessionID(args map[string]any) (string, *mcp.CallToolResult) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", mcp.NewToolResultError("session_id is required")
	}
	return sessionID, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mapID, _ := arguments(request)["map_id"].(string)

	body := map[string]string{}
	if mapID != "" {
		body["map_id"] = mapID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (Map: %s, Created: %s)\n",
			s.ID, s.MapID, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireSessionID(arguments(request))
	if errResult != nil {
		return errResult, nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleRobotState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireSessionID(arguments(request))
	if errResult != nil {
		return errResult, nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatRobotState(session.Robot)
	if grid := formatGrid(session.Map, session.Robot); grid != "" {
		result += "\n" + grid
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleRunProgram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSessionID(args)
	if errResult != nil {
		return errResult, nil
	}

	commandsRaw, _ := args["commands"].([]any)
	commands := make([]string, 0, len(commandsRaw))
	for _, cmd := range commandsRaw {
		if s, ok := cmd.(string); ok {
			commands = append(commands, s)
		}
	}

	req := service.RunRequest{Commands: commands}
	req.Reset, _ = args["reset"].(bool)
	if delay, ok := args["step_delay_ms"].(float64); ok {
		ms := int(delay)
		req.StepDelayMS = &ms
	}

	var run service.RunResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/run"), req, &run); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRunResult(&run)), nil
}

func (c *Client) handleStopRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireSessionID(arguments(request))
	if errResult != nil {
		return errResult, nil
	}

	var state service.RobotState
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/stop"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Stop requested\n\n" + formatRobotState(&state)), nil
}

func (c *Client) handleResetRobot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireSessionID(arguments(request))
	if errResult != nil {
		return errResult, nil
	}

	var response struct {
		Message string              `json:"message"`
		State   *service.RobotState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatRobotState(response.State))), nil
}

func (c *Client) handleListMaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var maps []service.MapInfo
	if err := c.apiCall(ctx, "GET", "/api/maps", nil, &maps); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Maps:\n\n"
	for _, m := range maps {
		result += fmt.Sprintf("• %s (map_id: %s)\n  %s\n  Grid: %dx%d\n\n",
			m.Name, m.MapID, m.Description, m.Rows, m.Cols)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleDescribeTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSessionID(args)
	if errResult != nil {
		return errResult, nil
	}
	row, rowOK := args["row"].(float64)
	col, colOK := args["col"].(float64)
	if !rowOK || !colOK {
		return mcp.NewToolResultError("row and col are required integers"), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	description, err := describeTile(session.Map, session.Robot, engine.Position{Row: int(row), Col: int(col)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(description), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `LogicPath - Instructions

OBJECTIVE:
Write a program that drives the robot from its start tile to the goal tile (G).

THE GRID:
• Rows grow downward, columns grow to the right. (0, 0) is the top-left cell.
• Every cell holds a tile with a type (grass, rock, water...) and a walkable flag.
• Cells without a tile behave like walls.

GRID LEGEND (robot_state):
• ^ > v < - The robot, pointing north, east, south or west
• G - Goal
• . - Walkable tile
• # - Blocked tile
• (space) - No tile, blocked

COMMANDS:
• forward - Move one cell in the facing direction
• left    - Turn 90° counter-clockwise without moving
• right   - Turn 90° clockwise without moving

Commands are case-insensitive. Anything else fails with "Unknown command".

HOW A RUN ENDS:
• Goal reached - the robot stands on G after a step; remaining commands are skipped
• Blocked move - forward into a wall, water or the edge fails and halts the run
• Unknown command - halts the run at that command
• All commands executed - the program ran out without reaching G
• Stopped - stop_run was called

Moves made before a failure are kept. Use reset=true on run_program, or
reset_robot, to start again from the start tile.

STRATEGY:
• Call robot_state first and read the grid row by row.
• Use describe_tile when a cell is unclear.
• Count turns carefully: left then left is a U-turn.
• Keep programs short and iterate; the result reports the failing command index.

SESSION MANAGEMENT:
• Each session has a unique 4-character ID and its own robot.
• Only one program runs per session at a time; a second run is rejected as busy.`
