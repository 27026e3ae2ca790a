// Command logicpath serves the LogicPath robot programming game.
//
// Commands:
//  1. "serve" (default) – HTTP server with REST API, WebSocket and the /mcp endpoint
//  2. "mcp" – MCP stdio server backed by an external or internal HTTP API
//  3. "run" – execute a program against a map locally and print each step
//  4. "maps" – list the available maps or draw one
//
// Every flag can also be set through the environment or a .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/logicpath/game/engine"
	"github.com/wricardo/logicpath/game/maps"
	"github.com/wricardo/logicpath/game/service"
	"github.com/wricardo/logicpath/game/session"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "LogicPath Server"
)

// Session store backends
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

var (
	errUnknownStore   = errors.New("unknown session store")
	errGoalNotReached = errors.New("goal not reached")
	errEmptyProgram   = errors.New("no commands given")
	errMapIDRequired  = errors.New("map id is required")
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Error loading .env file", "error", err)
		}
	} else {
		log.Debug("Loaded environment variables from .env file")
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Error("logicpath failed", "error", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Flags declared on the root are inherited
// by every subcommand.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "logicpath",
		Usage:   "program a robot to reach the goal on a tile grid",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "maps-dir",
				Value:   "maps",
				Usage:   "directory containing map files (.json, .yaml, .yml)",
				Sources: cli.EnvVars("MAPS_DIR"),
			},
			&cli.DurationFlag{
				Name:    "step-delay",
				Value:   engine.DefaultStepDelay,
				Usage:   "pause after each successful command",
				Sources: cli.EnvVars("STEP_DELAY"),
			},
			&cli.StringFlag{
				Name:    "goal-check",
				Value:   "after",
				Usage:   "check the goal \"after\" or \"before\" the step delay",
				Sources: cli.EnvVars("GOAL_CHECK"),
			},
			&cli.StringFlag{
				Name:    "session-store",
				Value:   StoreFile,
				Usage:   "where sessions are kept: memory, file or sqlite",
				Sources: cli.EnvVars("SESSION_STORE"),
			},
			&cli.StringFlag{
				Name:    "sessions-dir",
				Value:   "sessions",
				Usage:   "directory for the file session store",
				Sources: cli.EnvVars("SESSIONS_DIR"),
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "logicpath.db",
				Usage:   "database file for the sqlite session store",
				Sources: cli.EnvVars("DB_PATH"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(os.Stderr, cmd.Bool("debug"))
			return ctx, nil
		},
		Action: runServe,
		Commands: []*cli.Command{
			serveCommand(),
			mcpCommand(),
			runCommand(),
			mapsCommand(),
		},
	}
}

// setupLogging sends logs to w so stdout stays free for MCP stdio and CLI output
func setupLogging(w io.Writer, debug bool) {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	log.SetDefault(log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "logicpath",
		Level:           level,
	}))
}

// appConfig is the resolved configuration shared by all commands
type appConfig struct {
	MapsDir      string
	StepDelay    time.Duration
	GoalCheck    string
	SessionStore string
	SessionsDir  string
	DBPath       string
}

func configFromCommand(cmd *cli.Command) appConfig {
	return appConfig{
		MapsDir:      cmd.String("maps-dir"),
		StepDelay:    cmd.Duration("step-delay"),
		GoalCheck:    cmd.String("goal-check"),
		SessionStore: cmd.String("session-store"),
		SessionsDir:  cmd.String("sessions-dir"),
		DBPath:       cmd.String("db-path"),
	}
}

func (c appConfig) executorOptions() (engine.ExecutorOptions, error) {
	order, err := engine.ParseGoalCheckOrder(c.GoalCheck)
	if err != nil {
		return engine.ExecutorOptions{}, err
	}
	return engine.ExecutorOptions{
		StepDelay: c.StepDelay,
		GoalCheck: order,
	}, nil
}

// services holds everything a server needs. Close releases the session store.
type services struct {
	Maps        *maps.Manager
	Sessions    *session.Manager
	Persistence session.SessionPersistence
	Game        service.GameService
	close       func() error
}

func (s *services) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// initializeServices wires map and session managers and the game service
func initializeServices(cfg appConfig) (*services, error) {
	mapManager, err := maps.NewManager(cfg.MapsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create map manager: %w", err)
	}

	opts, err := cfg.executorOptions()
	if err != nil {
		return nil, err
	}

	svc := &services{Maps: mapManager}

	switch strings.ToLower(cfg.SessionStore) {
	case StoreMemory:
		svc.Sessions = session.NewManager()
	case StoreFile, "":
		persistence, err := session.NewFilePersistence(cfg.SessionsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		svc.Persistence = persistence
	case StoreSQLite:
		persistence, err := session.OpenSQLitePersistence(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		svc.Persistence = persistence
		svc.close = persistence.Close
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownStore, cfg.SessionStore)
	}

	if svc.Persistence != nil {
		svc.Sessions = session.NewManagerWithPersistence(svc.Persistence, mapManager)
	}
	svc.Sessions.SetExecutorOptions(opts)

	if svc.Persistence != nil {
		if err := svc.Sessions.LoadPersistedSessions(); err != nil {
			log.Warn("Failed to load persisted sessions", "error", err)
		}
	}

	svc.Game = service.NewGameService(svc.Sessions, mapManager)

	log.Info("Services ready",
		"maps", cfg.MapsDir,
		"store", cfg.SessionStore,
		"sessions", svc.Sessions.Count(),
		"step_delay", cfg.StepDelay,
		"goal_check", opts.GoalCheck)

	return svc, nil
}

// output returns where command results are printed
func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
