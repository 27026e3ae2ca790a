package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wricardo/logicpath/game/engine"
	"github.com/wricardo/logicpath/game/service"
)

func testExecutorOptions() engine.ExecutorOptions {
	return engine.ExecutorOptions{StepDelay: 0, Logger: log.New(io.Discard)}
}

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	mu       sync.Mutex
	sessions map[string]*service.Session
	saves    int
	opts     engine.ExecutorOptions
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
		opts:     testExecutorOptions(),
	}
}

func (m *MockSessionManager) Create(id string, data *engine.MapData) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("test_%d", len(m.sessions)+1)
	}
	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	sess, err := service.NewSession(id, data, m.opts)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = sess
	return sess, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, exists := m.sessions[id]
	if !exists {
		return nil, service.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MockSessionManager) GetOrCreate(id string, data *engine.MapData) (*service.Session, error) {
	if sess, err := m.Get(id); err == nil {
		return sess, nil
	}
	return m.Create(id, data)
}

func (m *MockSessionManager) List() []*service.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*service.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		result = append(result, sess)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; !exists {
		return service.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.Touch()
	return nil
}

func (m *MockSessionManager) Save(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return nil
}

// MockMapManager implements service.MapManager for testing
type MockMapManager struct {
	mu   sync.Mutex
	maps map[string]*engine.MapData
}

func NewMockMapManager() *MockMapManager {
	blocked := engine.CorridorMap("blocked", 4, 3)
	blocked.Tiles[1].Walkable = false

	return &MockMapManager{
		maps: map[string]*engine.MapData{
			"corridor": engine.CorridorMap("corridor", 6, 4),
			"blocked":  blocked,
		},
	}
}

func (m *MockMapManager) LoadMap(id string) (*engine.MapData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.maps[id]
	if !ok {
		return nil, service.ErrMapNotFound
	}
	return data, nil
}

func (m *MockMapManager) ListMaps() ([]*service.MapInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*service.MapInfo
	for id, data := range m.maps {
		result = append(result, &service.MapInfo{
			Filename: id + ".json",
			MapID:    id,
			Name:     data.Name,
			Rows:     data.GridSize.Rows,
			Cols:     data.GridSize.Cols,
		})
	}
	return result, nil
}

func (m *MockMapManager) GetDefault() *engine.MapData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maps["corridor"]
}

func (m *MockMapManager) SaveMap(id string, data *engine.MapData) error {
	if err := engine.ValidateMapData(data); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidMap, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maps[id] = data
	return nil
}

func newTestService() (service.GameService, *MockSessionManager) {
	sessions := NewMockSessionManager()
	return service.NewGameService(sessions, NewMockMapManager()), sessions
}

func TestGameService_CreateSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	t.Run("default map", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "")
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if info.MapID != "corridor" {
			t.Errorf("Expected default map 'corridor', got %q", info.MapID)
		}
		if info.Robot == nil || info.Robot.Position != (engine.Position{Row: 0, Col: 0}) {
			t.Errorf("Expected robot at start, got %+v", info.Robot)
		}
		if info.Robot.Direction != engine.East || info.Robot.Degrees != 90 {
			t.Errorf("Expected robot facing east at 90 degrees, got %+v", info.Robot)
		}
		if info.Map == nil || info.Map.ID != "corridor" {
			t.Error("Expected map definition in session info")
		}
	})

	t.Run("named map", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "blocked")
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if info.MapID != "blocked" {
			t.Errorf("Expected map 'blocked', got %q", info.MapID)
		}
	})

	t.Run("unknown map", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, "atlantis")
		if !errors.Is(err, service.ErrMapNotFound) {
			t.Fatalf("Expected ErrMapNotFound, got %v", err)
		}
		if !strings.Contains(err.Error(), "Available maps") {
			t.Errorf("Expected the error to list available maps, got %v", err)
		}
	})
}

func TestGameService_Run(t *testing.T) {
	svc, sessions := newTestService()
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "corridor")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	t.Run("goal reached", func(t *testing.T) {
		run, err := svc.Run(ctx, info.ID, service.RunRequest{
			Commands: []string{"forward", "FORWARD", " forward ", "forward"},
		})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if !run.GoalReached || !run.Success {
			t.Errorf("Expected goal reached, got %+v", run.ExecutionResult)
		}
		if run.RunID == "" {
			t.Error("Expected a run id")
		}
		if run.Start.Position != (engine.Position{Row: 0, Col: 0}) || run.End.Position != (engine.Position{Row: 0, Col: 4}) {
			t.Errorf("Unexpected start/end: %+v -> %+v", run.Start, run.End)
		}
		if sessions.saves == 0 {
			t.Error("Expected session to be saved after the run")
		}
	})

	t.Run("last run recorded", func(t *testing.T) {
		last, err := svc.GetLastRun(ctx, info.ID)
		if err != nil {
			t.Fatalf("GetLastRun failed: %v", err)
		}
		if last == nil || !last.GoalReached {
			t.Errorf("Expected last run with goal reached, got %+v", last)
		}
	})

	t.Run("reset before run with explicit id", func(t *testing.T) {
		delay := 0
		run, err := svc.Run(ctx, info.ID, service.RunRequest{
			Commands:    []string{"forward"},
			Reset:       true,
			StepDelayMS: &delay,
			RunID:       "run-42",
		})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if run.RunID != "run-42" {
			t.Errorf("Expected run id run-42, got %s", run.RunID)
		}
		if run.Start.Position != (engine.Position{Row: 0, Col: 0}) {
			t.Errorf("Expected run to start from the reset position, got %s", run.Start.Position)
		}
		if run.End.Position != (engine.Position{Row: 0, Col: 1}) {
			t.Errorf("Expected (0, 1), got %s", run.End.Position)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		run, err := svc.Run(ctx, info.ID, service.RunRequest{Commands: []string{"jump"}})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if run.Success || run.Message != "Unknown command: jump" {
			t.Errorf("Expected unknown command failure, got %+v", run.ExecutionResult)
		}
	})

	t.Run("empty program", func(t *testing.T) {
		run, err := svc.Run(ctx, info.ID, service.RunRequest{})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if run.Success || run.Message != engine.MessageNoCommands {
			t.Errorf("Expected no-commands result, got %+v", run.ExecutionResult)
		}
	})

	t.Run("program too long", func(t *testing.T) {
		commands := make([]string, service.MaxProgramLength+1)
		for i := range commands {
			commands[i] = "left"
		}
		_, err := svc.Run(ctx, info.ID, service.RunRequest{Commands: commands})
		if !errors.Is(err, service.ErrProgramTooLong) {
			t.Errorf("Expected ErrProgramTooLong, got %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := svc.Run(ctx, "nope", service.RunRequest{Commands: []string{"forward"}})
		if !errors.Is(err, service.ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestGameService_RunBlocked(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "blocked")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	run, err := svc.Run(ctx, info.ID, service.RunRequest{Commands: []string{"forward"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Success {
		t.Error("Expected blocked run to fail")
	}
	if run.CommandIndex == nil || *run.CommandIndex != 0 {
		t.Errorf("Expected command index 0, got %v", run.CommandIndex)
	}
	if run.End.Position != run.Start.Position {
		t.Errorf("Expected robot not to move, got %s", run.End.Position)
	}
}

func TestGameService_BusyStopAndReset(t *testing.T) {
	svc, sessions := newTestService()
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "corridor")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	sess, _ := sessions.Get(info.ID)
	sess.Executor.SetStepDelay(time.Hour)

	done := make(chan *service.RunResult, 1)
	go func() {
		run, _ := svc.Run(ctx, info.ID, service.RunRequest{Commands: []string{"forward", "forward"}})
		done <- run
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !sess.Executor.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("Run never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := svc.Run(ctx, info.ID, service.RunRequest{Commands: []string{"left"}}); !errors.Is(err, engine.ErrBusy) {
		t.Errorf("Expected ErrBusy for concurrent run, got %v", err)
	}
	if _, err := svc.Reset(ctx, info.ID); !errors.Is(err, engine.ErrBusy) {
		t.Errorf("Expected ErrBusy for reset during run, got %v", err)
	}

	state, err := svc.GetRobotState(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetRobotState failed: %v", err)
	}
	if !state.Running {
		t.Error("Expected state to report a running executor")
	}

	if _, err := svc.Stop(ctx, info.ID); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case run := <-done:
		if run == nil || !run.Stopped {
			t.Fatalf("Expected stopped run, got %+v", run)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after stop")
	}

	state, err = svc.Reset(ctx, info.ID)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if state.Position != (engine.Position{Row: 0, Col: 0}) || state.Running {
		t.Errorf("Expected idle robot at start after reset, got %+v", state)
	}
}

func TestGameService_RejectedRunLeavesRunInFlightAlone(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "corridor")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	delay := 1
	walk := service.RunRequest{Commands: []string{"forward", "forward", "forward"}, StepDelayMS: &delay}
	// Resets and ends facing east on the start tile, so either order leaves walk valid
	spin := service.RunRequest{Commands: []string{"right", "left"}, Reset: true}

	busy := 0
	for round := 0; round < 200; round++ {
		if _, err := svc.Reset(ctx, info.ID); err != nil {
			t.Fatalf("Round %d: reset failed: %v", round, err)
		}

		start := make(chan struct{})
		var wg sync.WaitGroup
		var walkRun, spinRun *service.RunResult
		var walkErr, spinErr error

		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			walkRun, walkErr = svc.Run(ctx, info.ID, walk)
		}()
		go func() {
			defer wg.Done()
			<-start
			spinRun, spinErr = svc.Run(ctx, info.ID, spin)
		}()
		close(start)
		wg.Wait()

		if errors.Is(spinErr, engine.ErrBusy) {
			busy++
			if spinRun != nil {
				t.Fatalf("Round %d: expected no result for a rejected run, got %+v", round, spinRun)
			}
		}
		if walkErr != nil {
			if !errors.Is(walkErr, engine.ErrBusy) {
				t.Fatalf("Round %d: unexpected walk error: %v", round, walkErr)
			}
			continue
		}

		expected := engine.Position{Row: 0, Col: walkRun.Start.Position.Col + 3}
		if !walkRun.Success || walkRun.End.Position != expected {
			t.Fatalf("Round %d: walk from %s ended at %s (success=%v, message=%q), expected %s",
				round, walkRun.Start.Position, walkRun.End.Position, walkRun.Success, walkRun.Message, expected)
		}
	}
	t.Logf("%d of 200 spin runs were rejected as busy", busy)
}

func TestGameService_ListAndDeleteSessions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateSession(ctx, ""); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
	}

	list, err := svc.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(list))
	}

	if err := svc.DeleteSession(ctx, list[0].ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := svc.GetSession(ctx, list[0].ID); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Expected deleted session to be gone, got %v", err)
	}
}

func TestGameService_Maps(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	maps, err := svc.ListMaps(ctx)
	if err != nil {
		t.Fatalf("ListMaps failed: %v", err)
	}
	if len(maps) != 2 {
		t.Errorf("Expected 2 maps, got %d", len(maps))
	}

	data, err := svc.LoadMap(ctx, "corridor")
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}
	data.Tiles[0].Walkable = false
	again, _ := svc.LoadMap(ctx, "corridor")
	if !again.Tiles[0].Walkable {
		t.Error("LoadMap must return a copy")
	}

	newMap := engine.CorridorMap("", 3, 2)
	if err := svc.SaveMap(ctx, "short", newMap); err != nil {
		t.Fatalf("SaveMap failed: %v", err)
	}
	if newMap.ID != "short" {
		t.Errorf("Expected id to default to 'short', got %q", newMap.ID)
	}

	mismatch := engine.CorridorMap("other", 3, 2)
	if err := svc.SaveMap(ctx, "short", mismatch); !errors.Is(err, service.ErrInvalidMap) {
		t.Errorf("Expected ErrInvalidMap for mismatched id, got %v", err)
	}
}
