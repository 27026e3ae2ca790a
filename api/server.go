package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wricardo/logicpath/game/engine"
	"github.com/wricardo/logicpath/game/service"
	"github.com/wricardo/logicpath/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router

	// background runs started with async:true; cancelRuns ends them
	runs       sync.WaitGroup
	runCtx     context.Context
	cancelRuns context.CancelFunc
}

// NewServer creates a new API server. hub may be nil, in which case no
// events are published.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}
	s.runCtx, s.cancelRuns = context.WithCancel(context.Background())

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Robot operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/sessions/{id}/run", s.handleRun).Methods("POST")
	api.HandleFunc("/sessions/{id}/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/last-run", s.handleLastRun).Methods("GET")

	// Maps
	api.HandleFunc("/maps", s.handleListMaps).Methods("GET")
	api.HandleFunc("/maps", s.handleCreateMap).Methods("POST")
	api.HandleFunc("/maps/{id}", s.handleGetMap).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handle mounts an extra handler, such as the MCP endpoint, on the router
func (s *Server) Handle(path string, handler http.Handler) {
	s.router.Handle(path, handler)
}

// Wait blocks until every background run has finished
func (s *Server) Wait() {
	s.runs.Wait()
}

// Shutdown cancels background runs and waits for them to return. Runs keep
// the moves they made. Returns ctx.Err() if they are still going when ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelRuns()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrMapNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidMap), errors.Is(err, service.ErrProgramTooLong),
		errors.Is(err, engine.ErrMalformedMap):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func (s *Server) publish(sessionID, event string, data any) {
	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, event, data)
	}
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MapID string `json:"map_id,omitempty"`
	}

	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := s.service.CreateSession(r.Context(), req.MapID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Info("Session created", "session", session.ID, "map", session.MapID)
	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default)
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Robot Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.service.GetRobotState(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

type runRequest struct {
	service.RunRequest
	Async bool `json:"async,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Commands) > service.MaxProgramLength {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("%v: %d commands, limit is %d", service.ErrProgramTooLong, len(req.Commands), service.MaxProgramLength))
		return
	}

	if req.Async {
		s.startAsyncRun(w, r, sessionID, req.RunRequest)
		return
	}

	result, err := s.service.Run(r.Context(), sessionID, req.RunRequest)
	if err != nil {
		s.publish(sessionID, websocket.EventRunFailed, map[string]string{"error": err.Error()})
		respondServiceError(w, err)
		return
	}

	s.publish(sessionID, websocket.EventRunFinished, result)
	log.Info("Run", "session", sessionID, "run", result.RunID,
		"steps", fmt.Sprintf("%d/%d", result.StepsExecuted(), len(result.Commands)),
		"goal", result.GoalReached, "message", result.Message)

	respondJSON(w, http.StatusOK, result)
}

// startAsyncRun answers 202 right away and streams the outcome over the websocket
func (s *Server) startAsyncRun(w http.ResponseWriter, r *http.Request, sessionID string, req service.RunRequest) {
	state, err := s.service.GetRobotState(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if state.Running {
		respondServiceError(w, engine.ErrBusy)
		return
	}

	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()

		// The run outlives the request but not the server
		result, err := s.service.Run(s.runCtx, sessionID, req)
		if err != nil {
			log.Warn("Background run failed", "session", sessionID, "run", req.RunID, "error", err)
			s.publish(sessionID, websocket.EventRunFailed, map[string]string{
				"run_id": req.RunID,
				"error":  err.Error(),
			})
			return
		}
		s.publish(sessionID, websocket.EventRunFinished, result)
	}()

	respondJSON(w, http.StatusAccepted, map[string]any{
		"run_id":     req.RunID,
		"session_id": sessionID,
		"status":     "started",
		"commands":   len(req.Commands),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.service.Stop(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.service.Reset(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.publish(sessionID, websocket.EventRobotReset, state)

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Robot reset successfully",
		"state":   state,
	})
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	run, err := s.service.GetLastRun(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "no runs yet")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// Map Handlers

func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := s.service.ListMaps(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, maps)
}

func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	mapID := mux.Vars(r)["id"]

	data, err := s.service.LoadMap(r.Context(), mapID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

func (s *Server) handleCreateMap(w http.ResponseWriter, r *http.Request) {
	var data engine.MapData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if data.ID == "" {
		respondError(w, http.StatusBadRequest, "Map id is required")
		return
	}

	if err := s.service.SaveMap(r.Context(), data.ID, &data); err != nil {
		respondServiceError(w, err)
		return
	}

	log.Info("Map saved", "map", data.ID)
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Map saved successfully",
		"map_id":  data.ID,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if s.hub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}

	if _, err := s.service.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
