package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/logicpath/api"
	"github.com/wricardo/logicpath/game/engine"
	"github.com/wricardo/logicpath/game/maps"
	"github.com/wricardo/logicpath/transport/console"
	"github.com/wricardo/logicpath/transport/mcp"
	"github.com/wricardo/logicpath/transport/websocket"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp",
		Aliases: []string{"stdio-mcp", "mcp-stdio"},
		Usage:   "run an MCP stdio server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "REST API to proxy; probed first, an internal server is started when unreachable",
				Sources: cli.EnvVars("LOGICPATH_API_URL"),
			},
		},
		Action: runStdioMCP,
	}
}

// runStdioMCP serves MCP over stdio. It reuses a running API when one
// answers, otherwise it starts an internal API on a random loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	externalURL := cmd.String("api-url")
	if externalURL == "" {
		externalURL = fmt.Sprintf("http://localhost:%d", cmd.Int("port"))
	}

	baseURL := externalURL
	log.Info("Checking for external API server", "url", externalURL)

	if !apiAvailable(ctx, externalURL) {
		log.Info("No external API server found, starting internal HTTP server")

		svc, err := initializeServices(configFromCommand(cmd))
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svc.Close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := websocket.NewHub()
		hubCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go hub.Run(hubCtx)
		svc.Sessions.SetObserverFactory(hub.ObserverFor)

		apiServer := api.NewServer(svc.Game, hub)
		httpServer := &http.Server{Handler: apiServer}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Internal HTTP server error", "error", err)
			}
		}()
		defer func() {
			httpServer.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := apiServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("Background runs still going at exit", "error", err)
			}
		}()

		baseURL = "http://" + listener.Addr().String()
		log.Info("Internal HTTP server started", "url", baseURL)
	}

	log.Info("MCP stdio server ready", "api", baseURL)
	return mcp.NewClient(baseURL).ServeStdio()
}

func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute a program on a map and print every step",
		ArgsUsage: "<command>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "map",
				Aliases: []string{"m"},
				Usage:   "map id, the default map when empty",
			},
			&cli.StringFlag{
				Name:  "program",
				Usage: "read commands from a file, separated by spaces, commas or newlines",
			},
			&cli.BoolFlag{
				Name:  "grid",
				Usage: "draw the grid after every step",
			},
		},
		Action: runProgram,
	}
}

// runProgram executes commands locally, without sessions. Ctrl-C stops the
// run at its next wait point. Returns errGoalNotReached when the robot ends
// anywhere but the goal.
func runProgram(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := cmd.Args().Slice()
	if path := cmd.String("program"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read program: %w", err)
		}
		tokens = append(tokens, splitProgram(string(raw))...)
	}
	if len(tokens) == 0 {
		return errEmptyProgram
	}

	cfg := configFromCommand(cmd)
	opts, err := cfg.executorOptions()
	if err != nil {
		return err
	}

	mapManager, err := maps.NewManager(cfg.MapsDir)
	if err != nil {
		return err
	}
	data := mapManager.GetDefault()
	if id := cmd.String("map"); id != "" {
		if data, err = mapManager.LoadMap(id); err != nil {
			return err
		}
	}

	gameMap, err := engine.NewGameMap(data)
	if err != nil {
		return err
	}
	robot := engine.NewRobot(gameMap.StartPosition(), gameMap.StartDirection())

	out := output(cmd)
	printer := console.NewPrinter(out, gameMap, robot)
	printer.ShowGrid = cmd.Bool("grid")

	opts.Observer = printer
	executor := engine.NewExecutor(robot, gameMap, opts)

	fmt.Fprintf(out, "%s (%s)\n", gameMap.Name(), gameMap.ID())
	fmt.Fprintln(out, console.RenderGrid(gameMap, robot.Snapshot()))

	program := engine.ParseProgram(tokens)
	result, err := executor.Execute(ctx, program)
	if result != nil {
		console.PrintSummary(out, result, len(program))
	}
	if err != nil {
		return err
	}
	if !result.GoalReached {
		return errGoalNotReached
	}
	return nil
}

// splitProgram splits a program file into tokens, ignoring # comments
func splitProgram(text string) []string {
	var tokens []string
	for _, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		tokens = append(tokens, strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\r'
		})...)
	}
	return tokens
}

func mapsCommand() *cli.Command {
	return &cli.Command{
		Name:  "maps",
		Usage: "inspect the maps directory",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list available maps",
				Action: listMaps,
			},
			{
				Name:      "show",
				Usage:     "describe a map and draw it",
				ArgsUsage: "<map-id>",
				Action:    showMap,
			},
		},
		Action: listMaps,
	}
}

func listMaps(ctx context.Context, cmd *cli.Command) error {
	mapManager, err := maps.NewManager(cmd.String("maps-dir"))
	if err != nil {
		return err
	}

	infos, err := mapManager.ListMaps()
	if err != nil {
		return err
	}

	out := output(cmd)
	fmt.Fprintf(out, "Available Maps (%d):\n", len(infos))
	for _, m := range infos {
		fmt.Fprintf(out, "  %-12s %-24s %dx%d  %s\n", m.MapID, m.Name, m.Rows, m.Cols, m.Filename)
	}
	return nil
}

func showMap(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errMapIDRequired
	}

	mapManager, err := maps.NewManager(cmd.String("maps-dir"))
	if err != nil {
		return err
	}

	data, err := mapManager.LoadMap(id)
	if err != nil {
		return err
	}
	gameMap, err := engine.NewGameMap(data)
	if err != nil {
		return err
	}

	out := output(cmd)
	meta := gameMap.Metadata()
	fmt.Fprintf(out, "%s (%s)\n", meta.Name, meta.ID)
	if meta.Description != "" {
		fmt.Fprintln(out, meta.Description)
	}
	fmt.Fprintf(out, "Grid: %dx%d\n", meta.GridSize.Rows, meta.GridSize.Cols)
	fmt.Fprintf(out, "Start: %s facing %s\n", gameMap.StartPosition(), gameMap.StartDirection())
	fmt.Fprintf(out, "Goal: %s (distance %d)\n", gameMap.Goal(), engine.ManhattanDistance(gameMap.StartPosition(), gameMap.Goal()))
	fmt.Fprintf(out, "Walkable tiles: %d\n", engine.CountWalkable(gameMap))

	counts := engine.CountTileTypes(gameMap)
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %-10s %d\n", t, counts[t])
	}

	start := engine.RobotSnapshot{Position: gameMap.StartPosition(), Direction: gameMap.StartDirection()}
	fmt.Fprintln(out, console.RenderGrid(gameMap, start))
	return nil
}
