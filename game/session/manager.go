package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wricardo/logicpath/game/engine"
	"github.com/wricardo/logicpath/game/service"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrNoMapSource          = errors.New("no map source to restore session")
)

// ObserverFactory returns the execution observer for a session, typically a
// websocket broadcaster
type ObserverFactory func(sessionID string) engine.Observer

// MapSource resolves map definitions when restoring persisted sessions
type MapSource interface {
	LoadMap(id string) (*engine.MapData, error)
}

// Manager handles game session lifecycle
type Manager struct {
	sessions     map[string]*service.Session
	persistence  SessionPersistence
	maps         MapSource
	executorOpts engine.ExecutorOptions
	observers    ObserverFactory
	mu           sync.RWMutex
}

// NewManager creates a new in-memory session manager
func NewManager() *Manager {
	return &Manager{
		sessions:     make(map[string]*service.Session),
		executorOpts: engine.DefaultExecutorOptions(),
	}
}

// NewManagerWithPersistence creates a session manager that saves robot state
// and restores sessions using maps to rebuild their grids
func NewManagerWithPersistence(persistence SessionPersistence, maps MapSource) *Manager {
	m := NewManager()
	m.persistence = persistence
	m.maps = maps
	return m
}

// SetExecutorOptions sets the options used for executors of new sessions
func (m *Manager) SetExecutorOptions(opts engine.ExecutorOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executorOpts = opts
}

// SetObserverFactory sets the per-session observer source for new sessions
func (m *Manager) SetObserverFactory(factory ObserverFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = factory
}

// Create creates a new session with the given ID on the map
func (m *Manager) Create(id string, data *engine.MapData) (*service.Session, error) {
	if data == nil {
		return nil, fmt.Errorf("cannot create session without a map")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.generateUniqueID()
	}

	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	session, err := m.newSession(id, data)
	if err != nil {
		return nil, err
	}

	m.sessions[strings.ToLower(id)] = session

	// Auto-save if persistence is enabled
	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			// Log error but don't fail the creation
			log.Warn("Failed to persist session", "session", id, "error", err)
		}
	}

	return session, nil
}

// Get retrieves a session by ID (case-insensitive), restoring it from
// persistence when it is not in memory
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		data, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		// Another caller may have restored it meanwhile
		if session, exists := m.sessions[strings.ToLower(id)]; exists {
			return session, nil
		}

		session, err := m.restore(data)
		if err != nil {
			return nil, err
		}
		m.sessions[strings.ToLower(id)] = session
		return session, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id string, data *engine.MapData) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, data)
	}

	return nil, err
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete removes a session from memory and persistence
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	_, inMemory := m.sessions[lowerID]
	delete(m.sessions, lowerID)

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	if _, exists := m.sessions[lowerID]; !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, lowerID)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	session.Touch()
	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return m.persistence.Save(session)
}

// CleanupExpiredSessions removes idle sessions that haven't been accessed in
// the given duration. Sessions with a run in flight are kept.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, session := range m.sessions {
		if session.Executor.IsRunning() {
			continue
		}
		if session.LastAccessed().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}

	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loadedCount := 0
	for _, id := range sessionIDs {
		if _, exists := m.sessions[strings.ToLower(id)]; exists {
			continue
		}

		data, err := m.persistence.Load(id)
		if err != nil {
			log.Warn("Failed to load persisted session", "session", id, "error", err)
			continue
		}

		session, err := m.restore(data)
		if err != nil {
			log.Warn("Failed to restore persisted session", "session", id, "error", err)
			continue
		}

		m.sessions[strings.ToLower(id)] = session
		loadedCount++
	}

	if loadedCount > 0 {
		log.Info("Loaded persisted sessions", "count", loadedCount)
	}

	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	sessions := m.List()

	errorCount := 0
	for _, session := range sessions {
		if err := m.persistence.Save(session); err != nil {
			log.Warn("Failed to save session", "session", session.ID, "error", err)
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}

	return nil
}

// newSession builds a session with the manager's executor options; callers hold m.mu
func (m *Manager) newSession(id string, data *engine.MapData) (*service.Session, error) {
	opts := m.executorOpts
	if m.observers != nil {
		opts.Observer = engine.Observers(opts.Observer, m.observers(id))
	}

	session, err := service.NewSession(id, data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// restore rebuilds a session from its snapshot; callers hold m.mu
func (m *Manager) restore(data *PersistedSessionData) (*service.Session, error) {
	if m.maps == nil {
		return nil, ErrNoMapSource
	}

	mapData, err := m.maps.LoadMap(data.MapID)
	if err != nil {
		return nil, fmt.Errorf("failed to load map '%s' for session %s: %w", data.MapID, data.ID, err)
	}

	session, err := m.newSession(data.ID, mapData)
	if err != nil {
		return nil, err
	}

	session.CreatedAt = data.CreatedAt
	session.SetLastAccessed(data.LastAccessedAt)
	session.Robot.SetPosition(data.Robot.Position)
	session.Robot.SetDirection(data.Robot.Direction)

	return session, nil
}

// generateUniqueID returns a random 4-character ID not yet in use; callers hold m.mu
func (m *Manager) generateUniqueID() string {
	for {
		id := generateSessionID()
		if !m.sessionExists(id) {
			return id
		}
	}
}

// generateSessionID generates a random 4-character session ID
func generateSessionID() string {
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// sessionExists checks if a session exists (case-insensitive); callers hold m.mu
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}
