package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/logicpath/game/engine"
)

func writeTestMap(t *testing.T, dir string, data *engine.MapData) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to encode map: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, data.ID+".json"), raw, 0644); err != nil {
		t.Fatalf("Failed to write map: %v", err)
	}
}

func newMapsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestMap(t, dir, engine.CorridorMap("corridor", 5, 2))
	return dir
}

// runApp runs the CLI with args and returns what it printed
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(context.Background(), append([]string{"logicpath"}, args...))
	return out.String(), err
}

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}

	expectedAppName := "LogicPath Server"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()

	for _, name := range []string{"serve", "mcp", "run", "maps"} {
		if app.Command(name) == nil {
			t.Errorf("Expected command %q", name)
		}
	}
	if app.Action == nil {
		t.Error("Expected serve to be the default action")
	}
}

func TestInitializeServices(t *testing.T) {
	mapsDir := newMapsDir(t)

	tests := []struct {
		name        string
		store       string
		persistence bool
	}{
		{"memory", StoreMemory, false},
		{"file", StoreFile, true},
		{"sqlite", StoreSQLite, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			svc, err := initializeServices(appConfig{
				MapsDir:      mapsDir,
				StepDelay:    0,
				GoalCheck:    "before",
				SessionStore: tt.store,
				SessionsDir:  filepath.Join(tmp, "sessions"),
				DBPath:       filepath.Join(tmp, "logicpath.db"),
			})
			if err != nil {
				t.Fatalf("Failed to initialize services: %v", err)
			}
			defer svc.Close()

			if svc.Game == nil {
				t.Fatal("Expected game service to be initialized")
			}
			if (svc.Persistence != nil) != tt.persistence {
				t.Errorf("Expected persistence %v, got %v", tt.persistence, svc.Persistence != nil)
			}

			info, err := svc.Game.CreateSession(context.Background(), "corridor")
			if err != nil {
				t.Fatalf("Failed to create session: %v", err)
			}
			if tt.persistence && !svc.Persistence.Exists(info.ID) {
				t.Error("Expected session to be persisted on create")
			}
		})
	}
}

func TestInitializeServices_Errors(t *testing.T) {
	mapsDir := newMapsDir(t)

	tests := []struct {
		name string
		cfg  appConfig
		want error
	}{
		{
			name: "missing maps dir",
			cfg:  appConfig{MapsDir: "/non/existent/path", SessionStore: StoreMemory},
		},
		{
			name: "unknown store",
			cfg:  appConfig{MapsDir: mapsDir, SessionStore: "redis"},
			want: errUnknownStore,
		},
		{
			name: "bad goal check",
			cfg:  appConfig{MapsDir: mapsDir, SessionStore: StoreMemory, GoalCheck: "sometimes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := initializeServices(tt.cfg)
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRunCommand(t *testing.T) {
	mapsDir := newMapsDir(t)

	t.Run("goal reached", func(t *testing.T) {
		out, err := runApp(t, "--maps-dir", mapsDir, "--step-delay", "0s", "run", "--map", "corridor", "forward", "FORWARD")
		if err != nil {
			t.Fatalf("Expected success, got %v\n%s", err, out)
		}
		if !strings.Contains(out, engine.MessageGoalReached) {
			t.Errorf("Expected goal message, got:\n%s", out)
		}
	})

	t.Run("goal not reached", func(t *testing.T) {
		out, err := runApp(t, "--maps-dir", mapsDir, "--step-delay", "0s", "run", "--map", "corridor", "forward", "jump")
		if !errors.Is(err, errGoalNotReached) {
			t.Fatalf("Expected errGoalNotReached, got %v", err)
		}
		if !strings.Contains(out, "Unknown command: jump") {
			t.Errorf("Expected unknown command message, got:\n%s", out)
		}
	})

	t.Run("program file", func(t *testing.T) {
		program := filepath.Join(t.TempDir(), "prog.txt")
		os.WriteFile(program, []byte("# walk east\nforward,\nforward\n"), 0644)

		out, err := runApp(t, "--maps-dir", mapsDir, "--step-delay", "0s", "run", "--map", "corridor", "--program", program)
		if err != nil {
			t.Fatalf("Expected success, got %v\n%s", err, out)
		}
	})

	t.Run("empty program", func(t *testing.T) {
		_, err := runApp(t, "--maps-dir", mapsDir, "run")
		if !errors.Is(err, errEmptyProgram) {
			t.Errorf("Expected errEmptyProgram, got %v", err)
		}
	})

	t.Run("unknown map", func(t *testing.T) {
		_, err := runApp(t, "--maps-dir", mapsDir, "run", "--map", "nowhere", "forward")
		if err == nil {
			t.Error("Expected error for unknown map")
		}
	})
}

func TestMapsCommand(t *testing.T) {
	mapsDir := newMapsDir(t)

	out, err := runApp(t, "--maps-dir", mapsDir, "maps", "list")
	if err != nil {
		t.Fatalf("maps list failed: %v", err)
	}
	if !strings.Contains(out, "Available Maps (1)") || !strings.Contains(out, "corridor") {
		t.Errorf("Unexpected list output:\n%s", out)
	}

	out, err = runApp(t, "--maps-dir", mapsDir, "maps", "show", "corridor")
	if err != nil {
		t.Fatalf("maps show failed: %v", err)
	}
	for _, want := range []string{"Grid: 1x5", "Start: (0, 0) facing east", "Goal: (0, 2) (distance 2)", "Walkable tiles: 5", "grass"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}

	if _, err := runApp(t, "--maps-dir", mapsDir, "maps", "show"); !errors.Is(err, errMapIDRequired) {
		t.Errorf("Expected errMapIDRequired, got %v", err)
	}
}

func TestSplitProgram(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"forward left", []string{"forward", "left"}},
		{"forward,right,\nforward", []string{"forward", "right", "forward"}},
		{"# comment only\n", nil},
		{"left # turn\r\nforward", []string{"left", "forward"}},
	}

	for _, tt := range tests {
		got := splitProgram(tt.input)
		if strings.Join(got, " ") != strings.Join(tt.expected, " ") {
			t.Errorf("splitProgram(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestLoopbackAddr(t *testing.T) {
	tests := []struct {
		addr     string
		expected string
	}{
		{"localhost:8080", "localhost:8080"},
		{"0.0.0.0:8080", "127.0.0.1:8080"},
		{":9090", "127.0.0.1:9090"},
		{"bad", "bad"},
	}

	for _, tt := range tests {
		if got := loopbackAddr(tt.addr); got != tt.expected {
			t.Errorf("loopbackAddr(%q) = %q, expected %q", tt.addr, got, tt.expected)
		}
	}
}

func TestPruneOrphanedSessions(t *testing.T) {
	svc, err := initializeServices(appConfig{
		MapsDir:      newMapsDir(t),
		StepDelay:    time.Millisecond,
		SessionStore: StoreFile,
		SessionsDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	kept, _ := svc.Game.CreateSession(context.Background(), "corridor")
	orphan, _ := svc.Game.CreateSession(context.Background(), "corridor")

	if err := svc.Persistence.Delete(orphan.ID); err != nil {
		t.Fatalf("Failed to delete stored session: %v", err)
	}

	if pruned := pruneOrphanedSessions(svc.Sessions, svc.Persistence); pruned != 1 {
		t.Errorf("Expected 1 pruned session, got %d", pruned)
	}
	if _, err := svc.Sessions.Get(kept.ID); err != nil {
		t.Errorf("Expected kept session to survive: %v", err)
	}
	if _, err := svc.Sessions.Get(orphan.ID); err == nil {
		t.Error("Expected orphaned session to be gone")
	}
}
