package session

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/wricardo/logicpath/game/engine"
	"github.com/wricardo/logicpath/game/service"
)

// SQLitePersistence implements SessionPersistence on a SQLite database
type SQLitePersistence struct {
	db *sql.DB
}

// OpenSQLitePersistence creates or opens the database at dbPath and runs migrations
func OpenSQLitePersistence(dbPath string) (*SQLitePersistence, error) {
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("sessions db: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sessions db: cannot create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sessions db: cannot open database: %w", err)
	}
	// SQLite allows one writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions db: cannot connect to database: %w", err)
	}

	p := &SQLitePersistence{db: db}
	if err := p.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions db: migration failed: %w", err)
	}

	return p, nil
}

func (p *SQLitePersistence) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			map_id TEXT NOT NULL,
			robot_row INTEGER NOT NULL,
			robot_col INTEGER NOT NULL,
			robot_direction TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			last_accessed_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_last_accessed ON sessions(last_accessed_at);
	`
	_, err := p.db.Exec(schema)
	return err
}

// Close closes the database connection
func (p *SQLitePersistence) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Save upserts the session row
func (p *SQLitePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	data := snapshotSession(session)
	_, err := p.db.Exec(`
		INSERT INTO sessions (id, map_id, robot_row, robot_col, robot_direction, created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			map_id = excluded.map_id,
			robot_row = excluded.robot_row,
			robot_col = excluded.robot_col,
			robot_direction = excluded.robot_direction,
			last_accessed_at = excluded.last_accessed_at`,
		strings.ToLower(data.ID), data.MapID,
		data.Robot.Position.Row, data.Robot.Position.Col, string(data.Robot.Direction),
		data.CreatedAt.UnixNano(), data.LastAccessedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sessions db: cannot save session %s: %w", data.ID, err)
	}
	return nil
}

// Load reads a session snapshot
func (p *SQLitePersistence) Load(id string) (*PersistedSessionData, error) {
	var (
		data                PersistedSessionData
		direction           string
		created, lastAccess int64
	)
	err := p.db.QueryRow(`
		SELECT id, map_id, robot_row, robot_col, robot_direction, created_at, last_accessed_at
		FROM sessions WHERE id = ?`, strings.ToLower(id),
	).Scan(&data.ID, &data.MapID, &data.Robot.Position.Row, &data.Robot.Position.Col, &direction, &created, &lastAccess)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions db: cannot load session %s: %w", id, err)
	}

	data.Robot.Direction = engine.Direction(direction)
	data.CreatedAt = time.Unix(0, created)
	data.LastAccessedAt = time.Unix(0, lastAccess)
	return &data, nil
}

// Delete removes the session row
func (p *SQLitePersistence) Delete(id string) error {
	res, err := p.db.Exec("DELETE FROM sessions WHERE id = ?", strings.ToLower(id))
	if err != nil {
		return fmt.Errorf("sessions db: cannot delete session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns every stored session id
func (p *SQLitePersistence) ListAll() ([]string, error) {
	rows, err := p.db.Query("SELECT id FROM sessions ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("sessions db: cannot list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sessions db: cannot scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists checks for a session row
func (p *SQLitePersistence) Exists(id string) bool {
	var one int
	err := p.db.QueryRow("SELECT 1 FROM sessions WHERE id = ?", strings.ToLower(id)).Scan(&one)
	return err == nil
}

// DeleteOlderThan removes sessions not accessed since cutoff and returns how many were removed
func (p *SQLitePersistence) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := p.db.Exec("DELETE FROM sessions WHERE last_accessed_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sessions db: cannot prune sessions: %w", err)
	}
	return res.RowsAffected()
}
