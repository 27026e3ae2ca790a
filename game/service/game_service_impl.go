package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/wricardo/logicpath/game/engine"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	maps     MapManager
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, maps MapManager) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		maps:     maps,
	}
}

// CreateSession creates a session on the given map, or the default map when mapID is empty
func (s *gameServiceImpl) CreateSession(ctx context.Context, mapID string) (*SessionInfo, error) {
	var data *engine.MapData
	if mapID != "" {
		var err error
		data, err = s.maps.LoadMap(mapID)
		if err != nil {
			if errors.Is(err, ErrMapNotFound) {
				return nil, s.mapNotFound(mapID)
			}
			return nil, fmt.Errorf("failed to load map %s: %w", mapID, err)
		}
	} else {
		data = s.maps.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", data)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info("Session created", "session", sess.ID, "map", sess.MapID)
	return s.sessionInfo(sess, data), nil
}

// GetSession retrieves session information including the map definition
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	data, err := s.maps.LoadMap(sess.MapID)
	if err != nil {
		// The session keeps working on its built map even if the file went away
		log.Warn("Session map unavailable", "session", sess.ID, "map", sess.MapID, "error", err)
		data = nil
	}
	return s.sessionInfo(sess, data), nil
}

// ListSessions returns all active sessions, oldest first
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess, nil))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteSession stops any run in flight and removes the session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	if sess, err := s.sessions.Get(sessionID); err == nil {
		sess.Executor.Stop()
	}
	return s.sessions.Delete(sessionID)
}

// Run executes a program on the session's robot and blocks until it ends
func (s *gameServiceImpl) Run(ctx context.Context, sessionID string, req RunRequest) (*RunResult, error) {
	if len(req.Commands) > MaxProgramLength {
		return nil, fmt.Errorf("%w: %d commands, limit is %d", ErrProgramTooLong, len(req.Commands), MaxProgramLength)
	}

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	run := &RunResult{
		RunID:     runID,
		SessionID: sess.ID,
		Commands:  req.Commands,
	}

	setup := engine.RunSetup{
		ResetRobot: req.Reset,
		Started: func(start engine.RobotSnapshot) {
			run.Start = start
			run.StartedAt = time.Now()
		},
	}
	if req.StepDelayMS != nil {
		delay := time.Duration(*req.StepDelayMS) * time.Millisecond
		setup.StepDelay = &delay
	}

	log.Debug("Run requested", "session", sess.ID, "run", runID, "commands", len(req.Commands))
	result, execErr := sess.Executor.ExecuteWith(ctx, engine.ParseProgram(req.Commands), setup)
	if result == nil {
		return nil, execErr
	}

	run.ExecutionResult = *result
	run.End = result.EndState(run.Start)
	run.FinishedAt = time.Now()
	sess.SetLastRun(run)

	if err := s.sessions.Save(sess.ID); err != nil {
		log.Warn("Failed to persist session after run", "session", sess.ID, "error", err)
	}

	log.Info("Run finished", "session", sess.ID, "run", runID,
		"success", result.Success, "goal", result.GoalReached, "steps", len(result.Results), "message", result.Message)

	return run, execErr
}

// Stop cancels the session's run in flight, if any
func (s *gameServiceImpl) Stop(ctx context.Context, sessionID string) (*RobotState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	if sess.Executor.Stop() {
		log.Info("Run stopped", "session", sess.ID)
	}
	return sess.State(), nil
}

// Reset puts the robot back on its start tile. Fails with engine.ErrBusy during a run.
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*RobotState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.Executor.ResetRobot(); err != nil {
		return nil, err
	}

	if err := s.sessions.Save(sess.ID); err != nil {
		log.Warn("Failed to persist session after reset", "session", sess.ID, "error", err)
	}
	return sess.State(), nil
}

// GetRobotState returns the robot view. Safe to call during a run.
func (s *gameServiceImpl) GetRobotState(ctx context.Context, sessionID string) (*RobotState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.State(), nil
}

// GetLastRun returns the last finished run, nil when the session has none
func (s *gameServiceImpl) GetLastRun(ctx context.Context, sessionID string) (*RunResult, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.LastRun(), nil
}

// ListMaps returns available maps
func (s *gameServiceImpl) ListMaps(ctx context.Context) ([]*MapInfo, error) {
	return s.maps.ListMaps()
}

// LoadMap returns a map definition by id
func (s *gameServiceImpl) LoadMap(ctx context.Context, mapID string) (*engine.MapData, error) {
	data, err := s.maps.LoadMap(mapID)
	if err != nil {
		return nil, err
	}
	return data.Clone(), nil
}

// SaveMap validates and stores a map definition
func (s *gameServiceImpl) SaveMap(ctx context.Context, mapID string, data *engine.MapData) error {
	if data == nil {
		return fmt.Errorf("%w: map is required", ErrInvalidMap)
	}
	if data.ID == "" {
		data.ID = mapID
	}
	if data.ID != mapID {
		return fmt.Errorf("%w: map id %q does not match %q", ErrInvalidMap, data.ID, mapID)
	}
	return s.maps.SaveMap(mapID, data)
}

// getSession looks up a session and records the access
func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	if err := s.sessions.UpdateLastAccessed(sess.ID); err != nil {
		log.Debug("Failed to update last access", "session", sess.ID, "error", err)
	}
	return sess, nil
}

func (s *gameServiceImpl) sessionInfo(sess *Session, data *engine.MapData) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		MapID:          sess.MapID,
		MapName:        sess.Map.Name(),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessed(),
		Robot:          sess.State(),
		Map:            data.Clone(),
	}
}

// mapNotFound lists the available ids to help the caller
func (s *gameServiceImpl) mapNotFound(mapID string) error {
	available, err := s.maps.ListMaps()
	if err != nil || len(available) == 0 {
		return fmt.Errorf("%w: '%s'. Use /api/maps to list available maps", ErrMapNotFound, mapID)
	}
	ids := make([]string, 0, len(available))
	for _, m := range available {
		ids = append(ids, m.MapID)
	}
	return fmt.Errorf("%w: '%s'. Available maps: %v", ErrMapNotFound, mapID, ids)
}
