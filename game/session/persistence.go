package session

import (
	"time"

	"github.com/wricardo/logicpath/game/engine"
	"github.com/wricardo/logicpath/game/service"
)

// SessionPersistence defines the interface for persisting sessions.
// Only the robot state is stored, never programs.
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session snapshot from storage by ID
	Load(id string) (*PersistedSessionData, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is the stored form of a session
type PersistedSessionData struct {
	ID             string               `json:"id"`
	MapID          string               `json:"map_id"`
	CreatedAt      time.Time            `json:"created_at"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`
	Robot          engine.RobotSnapshot `json:"robot"`
}

func snapshotSession(sess *service.Session) PersistedSessionData {
	return PersistedSessionData{
		ID:             sess.ID,
		MapID:          sess.MapID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessed(),
		Robot:          sess.Robot.Snapshot(),
	}
}
