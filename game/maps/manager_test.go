package maps

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wricardo/logicpath/game/engine"
)

func writeMapFile(t *testing.T, dir, filename string, data *engine.MapData) {
	t.Helper()
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal map: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), raw, 0644); err != nil {
		t.Fatalf("Failed to write map file: %v", err)
	}
}

func createValidMap(id, name string) *engine.MapData {
	data := engine.CorridorMap(id, 5, 4)
	data.Name = name
	return data
}

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := t.TempDir()
		writeMapFile(t, dir, "map1.json", createValidMap("map1", "First"))

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if manager.GetDefault().ID != "map1" {
			t.Errorf("Expected map1 as default, got %s", manager.GetDefault().ID)
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		if _, err := NewManager("/non/existent/path"); err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("empty directory falls back to built-in map", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		if err != nil {
			t.Fatalf("NewManager should succeed without map files, got error: %v", err)
		}
		def := manager.GetDefault()
		if def == nil {
			t.Fatal("Expected default map to be available")
		}
		if err := engine.ValidateMapData(def); err != nil {
			t.Errorf("Built-in default map is invalid: %v", err)
		}
	})

	t.Run("first listed map when map1 is missing", func(t *testing.T) {
		dir := t.TempDir()
		writeMapFile(t, dir, "zeta.json", createValidMap("zeta", "Zeta"))
		writeMapFile(t, dir, "alpha.json", createValidMap("alpha", "Alpha"))

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if manager.GetDefault().ID != "alpha" {
			t.Errorf("Expected alpha as default, got %s", manager.GetDefault().ID)
		}
	})
}

func TestManager_LoadMap(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "map1.json", createValidMap("map1", "First"))
	writeMapFile(t, dir, "map2.json", createValidMap("map2", "Second"))

	yamlContent := []byte(`id: hills
name: Hills
description: YAML map
gridSize: {rows: 1, cols: 2}
tiles:
  - {row: 0, col: 0, type: grass, walkable: true}
  - {row: 0, col: 1, type: grass, walkable: true}
robot:
  startPosition: {row: 0, col: 0}
  startDirection: east
goal: {row: 0, col: 1}
`)
	if err := os.WriteFile(filepath.Join(dir, "hills.yml"), yamlContent, 0644); err != nil {
		t.Fatalf("Failed to write yaml map: %v", err)
	}

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("load existing map", func(t *testing.T) {
		data, err := manager.LoadMap("map2")
		if err != nil {
			t.Fatalf("Failed to load map: %v", err)
		}
		if data.Name != "Second" {
			t.Errorf("Expected name 'Second', got '%s'", data.Name)
		}
	})

	t.Run("load with extension", func(t *testing.T) {
		data, err := manager.LoadMap("map2.json")
		if err != nil {
			t.Fatalf("Failed to load map with extension: %v", err)
		}
		if data.ID != "map2" {
			t.Errorf("Expected id 'map2', got '%s'", data.ID)
		}
	})

	t.Run("load yaml", func(t *testing.T) {
		data, err := manager.LoadMap("hills")
		if err != nil {
			t.Fatalf("Failed to load yaml map: %v", err)
		}
		if data.GridSize.Cols != 2 {
			t.Errorf("Expected 2 cols, got %d", data.GridSize.Cols)
		}
	})

	t.Run("load from cache", func(t *testing.T) {
		first, _ := manager.LoadMap("map2")
		second, err := manager.LoadMap("map2")
		if err != nil {
			t.Fatalf("Failed to load map from cache: %v", err)
		}
		if !manager.HasMap("map2") {
			t.Error("Expected HasMap to report cached map")
		}
		if first == second {
			t.Fatal("Expected each load to return its own copy")
		}

		first.Name = "Changed"
		first.Tiles[0].Walkable = false
		third, _ := manager.LoadMap("map2")
		if third.Name == "Changed" || !third.Tiles[0].Walkable {
			t.Error("Expected caller changes not to reach the cache")
		}
	})

	t.Run("path in id", func(t *testing.T) {
		outside := filepath.Join(filepath.Dir(dir), "outside.json")
		writeMapFile(t, filepath.Dir(dir), "outside.json", createValidMap("outside", "Outside"))
		defer os.Remove(outside)

		for _, id := range []string{"../outside", "..\\outside", "sub/map2", "..", "."} {
			if _, err := manager.LoadMap(id); !errors.Is(err, ErrMapNotFound) {
				t.Errorf("LoadMap(%q): expected ErrMapNotFound, got %v", id, err)
			}
		}
	})

	t.Run("non-existent map", func(t *testing.T) {
		_, err := manager.LoadMap("missing")
		if !errors.Is(err, ErrMapNotFound) {
			t.Errorf("Expected ErrMapNotFound, got %v", err)
		}
		if manager.HasMap("missing") {
			t.Error("Missing map must not be cached")
		}
	})

	t.Run("invalid map", func(t *testing.T) {
		invalid := createValidMap("broken", "Broken")
		invalid.Goal = engine.Position{Row: 7, Col: 7}
		writeMapFile(t, dir, "broken.json", invalid)

		_, err := manager.LoadMap("broken")
		if !errors.Is(err, ErrInvalidMap) {
			t.Errorf("Expected ErrInvalidMap, got %v", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "garbled.json"), []byte(`{"id": "garbled", oops}`), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		if _, err := manager.LoadMap("garbled"); err == nil {
			t.Error("Expected error for malformed JSON")
		}
	})

	t.Run("file name wins over declared id", func(t *testing.T) {
		writeMapFile(t, dir, "renamed.json", createValidMap("original", "Renamed"))
		data, err := manager.LoadMap("renamed")
		if err != nil {
			t.Fatalf("Failed to load map: %v", err)
		}
		if data.ID != "renamed" {
			t.Errorf("Expected id 'renamed', got '%s'", data.ID)
		}
	})
}

func TestManager_ListMaps(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"map3", "map1", "map2"} {
		writeMapFile(t, dir, id+".json", createValidMap(id, "Map "+id))
	}
	// Ignored entries
	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("readme"), 0644)
	os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644)
	os.Mkdir(filepath.Join(dir, "nested"), 0755)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	infos, err := manager.ListMaps()
	if err != nil {
		t.Fatalf("Failed to list maps: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 maps, got %d", len(infos))
	}
	for i, want := range []string{"map1", "map2", "map3"} {
		if infos[i].MapID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, infos[i].MapID)
		}
		if infos[i].Rows != 1 || infos[i].Cols != 5 {
			t.Errorf("Unexpected dimensions for %s: %dx%d", want, infos[i].Rows, infos[i].Cols)
		}
	}
}

func TestManager_SaveMap(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("valid map", func(t *testing.T) {
		data := createValidMap("custom", "Custom")
		if err := manager.SaveMap("custom", data); err != nil {
			t.Fatalf("Failed to save map: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "custom.json")); err != nil {
			t.Errorf("Expected map file on disk: %v", err)
		}
		loaded, err := manager.LoadMap("custom")
		if err != nil {
			t.Fatalf("Failed to load saved map: %v", err)
		}
		if loaded.Name != "Custom" {
			t.Errorf("Expected 'Custom', got '%s'", loaded.Name)
		}
	})

	t.Run("invalid map", func(t *testing.T) {
		data := createValidMap("nogoal", "No Goal")
		data.Goal = engine.Position{Row: -1, Col: 0}
		if err := manager.SaveMap("nogoal", data); !errors.Is(err, ErrInvalidMap) {
			t.Errorf("Expected ErrInvalidMap, got %v", err)
		}
	})

	t.Run("path in id", func(t *testing.T) {
		if err := manager.SaveMap("../escape", createValidMap("x", "X")); !errors.Is(err, ErrInvalidMap) {
			t.Errorf("Expected ErrInvalidMap, got %v", err)
		}
	})
}

func TestManager_SetDefaultAndRefresh(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "map1.json", createValidMap("map1", "First"))
	writeMapFile(t, dir, "map2.json", createValidMap("map2", "Second"))

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := manager.SetDefault("map2"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if manager.GetDefault().ID != "map2" {
		t.Errorf("Expected map2 as default, got %s", manager.GetDefault().ID)
	}
	if err := manager.SetDefault("missing"); !errors.Is(err, ErrMapNotFound) {
		t.Errorf("Expected ErrMapNotFound, got %v", err)
	}

	// Modify on disk, refresh, observe the change
	updated := createValidMap("map2", "Second Edition")
	writeMapFile(t, dir, "map2.json", updated)
	if err := manager.RefreshCache(); err != nil {
		t.Fatalf("RefreshCache failed: %v", err)
	}
	if manager.HasMap("map2") {
		t.Error("Expected cache to be cleared")
	}
	data, err := manager.LoadMap("map2")
	if err != nil {
		t.Fatalf("Failed to reload map: %v", err)
	}
	if data.Name != "Second Edition" {
		t.Errorf("Expected reloaded name, got '%s'", data.Name)
	}
	if manager.GetDefault().ID != "map1" {
		t.Errorf("Expected refresh to restore map1 as default, got %s", manager.GetDefault().ID)
	}
}

func TestManager_ConcurrentLoads(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "map1.json", createValidMap("map1", "First"))
	writeMapFile(t, dir, "map2.json", createValidMap("map2", "Second"))

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]*engine.MapData, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := manager.LoadMap("map2")
			if err != nil {
				t.Errorf("Concurrent load failed: %v", err)
				return
			}
			results[i] = data
		}(i)
	}
	wg.Wait()

	for i, data := range results {
		if data == nil || data.ID != "map2" || data.Name != "Second" {
			t.Fatalf("Load %d: unexpected map %+v", i, data)
		}
	}
}

func TestManager_GetDefaultReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	writeMapFile(t, dir, "map1.json", createValidMap("map1", "First"))

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	def := manager.GetDefault()
	def.Name = "Changed"
	def.Goal = engine.Position{Row: 9, Col: 9}

	if again := manager.GetDefault(); again.Name != "First" || again.Goal != (engine.Position{Row: 0, Col: 4}) {
		t.Errorf("Expected default map to be unchanged, got %+v", again)
	}
	if loaded, _ := manager.LoadMap("map1"); loaded.Name != "First" {
		t.Errorf("Expected cached map1 to be unchanged, got %q", loaded.Name)
	}
}
