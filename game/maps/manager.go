package maps

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/wricardo/logicpath/game/engine"
	"github.com/wricardo/logicpath/game/service"
)

var (
	ErrMapNotFound = service.ErrMapNotFound
	ErrInvalidMap  = service.ErrInvalidMap
)

// DefaultMapID is tried first when picking the default map
const DefaultMapID = "map1"

// Manager loads map definitions from a directory and caches them by id.
// The id of a map is its file name without extension.
type Manager struct {
	mapsDir    string
	defaultMap *engine.MapData
	maps       map[string]*engine.MapData
	mu         sync.RWMutex
}

// NewManager creates a map manager for dir
func NewManager(mapsDir string) (*Manager, error) {
	if _, err := os.Stat(mapsDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("maps directory does not exist: %s", mapsDir)
	}

	m := &Manager{
		mapsDir: mapsDir,
		maps:    make(map[string]*engine.MapData),
	}

	if err := m.loadDefaultMap(); err != nil {
		return nil, fmt.Errorf("failed to load default map: %w", err)
	}

	return m, nil
}

// LoadMap returns a copy of the map with the given id, reading it from disk
// on first use. Ids are file names, so path separators are rejected.
func (m *Manager) LoadMap(id string) (*engine.MapData, error) {
	data, err := m.load(id)
	if err != nil {
		return nil, err
	}
	return data.Clone(), nil
}

// load returns the cached map for id. Callers must not modify it.
func (m *Manager) load(id string) (*engine.MapData, error) {
	id = normalizeID(id)
	if !validID(id) {
		return nil, fmt.Errorf("%w: invalid map id %q", ErrMapNotFound, id)
	}

	m.mu.RLock()
	if data, exists := m.maps[id]; exists {
		m.mu.RUnlock()
		return data, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if data, exists := m.maps[id]; exists {
		return data, nil
	}

	path, err := m.findFile(id)
	if err != nil {
		return nil, err
	}

	data, err := engine.LoadMapFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMapNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidMap, err)
	}
	if data.ID != id {
		log.Warn("Map id does not match file name, using file name", "file", filepath.Base(path), "id", data.ID)
		data.ID = id
	}

	m.maps[id] = data
	return data, nil
}

// HasMap reports whether id is already cached
func (m *Manager) HasMap(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.maps[normalizeID(id)]
	return exists
}

// ListMaps returns information about all valid maps, sorted by id.
// Files that fail to load are skipped.
func (m *Manager) ListMaps() ([]*service.MapInfo, error) {
	entries, err := os.ReadDir(m.mapsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read maps directory: %w", err)
	}

	seen := make(map[string]bool)
	var infos []*service.MapInfo

	for _, entry := range entries {
		if entry.IsDir() || !engine.IsMapFile(entry.Name()) {
			continue
		}

		id := normalizeID(entry.Name())
		if seen[id] {
			continue
		}

		data, err := m.load(id)
		if err != nil {
			log.Debug("Skipping map", "file", entry.Name(), "error", err)
			continue
		}
		seen[id] = true

		infos = append(infos, &service.MapInfo{
			Filename:    entry.Name(),
			MapID:       id,
			Name:        data.Name,
			Description: data.Description,
			Rows:        data.GridSize.Rows,
			Cols:        data.GridSize.Cols,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].MapID < infos[j].MapID
	})
	return infos, nil
}

// GetDefault returns a copy of the default map
func (m *Manager) GetDefault() *engine.MapData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultMap.Clone()
}

// SetDefault sets the default map by id
func (m *Manager) SetDefault(id string) error {
	data, err := m.load(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultMap = data
	return nil
}

// RefreshCache drops every cached map and reloads the default
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.maps = make(map[string]*engine.MapData)
	m.mu.Unlock()

	return m.loadDefaultMap()
}

// SaveMap validates data and writes it as <id>.json
func (m *Manager) SaveMap(id string, data *engine.MapData) error {
	id = normalizeID(id)
	if !validID(id) {
		return fmt.Errorf("%w: invalid map id %q", ErrInvalidMap, id)
	}
	if err := engine.ValidateMapData(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMap, err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal map: %w", err)
	}

	path := filepath.Join(m.mapsDir, id+".json")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write map file: %w", err)
	}

	m.mu.Lock()
	m.maps[id] = data.Clone()
	m.mu.Unlock()

	log.Info("Map saved", "id", id, "path", path)
	return nil
}

// loadDefaultMap picks map1, else the first listed map, else a built-in corridor
func (m *Manager) loadDefaultMap() error {
	data, err := m.load(DefaultMapID)
	if err != nil {
		infos, listErr := m.ListMaps()
		if listErr != nil || len(infos) == 0 {
			m.setDefault(m.createMinimalMap())
			return nil
		}

		data, err = m.load(infos[0].MapID)
		if err != nil {
			m.setDefault(m.createMinimalMap())
			return nil
		}
	}

	m.setDefault(data)
	return nil
}

func (m *Manager) setDefault(data *engine.MapData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultMap = data
	if _, exists := m.maps[data.ID]; !exists {
		m.maps[data.ID] = data
	}
}

// findFile returns the first existing file for id in extension order
func (m *Manager) findFile(id string) (string, error) {
	for _, ext := range engine.SupportedMapExtensions {
		path := filepath.Join(m.mapsDir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrMapNotFound
}

// createMinimalMap is used when the directory holds no valid map
func (m *Manager) createMinimalMap() *engine.MapData {
	data := engine.CorridorMap("default", 6, 5)
	data.Name = "Default"
	data.Description = "Default corridor: walk east to the goal"
	return data
}

// validID accepts plain file names only, so an id never leaves the maps directory
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// normalizeID strips a known extension so "map1.json" and "map1" are the same key
func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if engine.IsMapFile(id) {
		id = strings.TrimSuffix(id, filepath.Ext(id))
	}
	return id
}
