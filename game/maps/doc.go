// Package maps provides map definition management for LogicPath.
//
// The maps package handles:
//   - Loading map definitions from JSON or YAML files
//   - Validation through engine.ValidateMapData
//   - A keyed cache from map id to definition
//   - Default map selection and map listing
//
// Map Format:
//
// Each file in the maps directory defines one map. The file name without
// extension is the map id used for session creation:
//
//	{
//	  "id": "map1",
//	  "name": "First Steps",
//	  "description": "Walk to the flag",
//	  "gridSize": {"rows": 5, "cols": 5},
//	  "tiles": [{"row": 0, "col": 0, "type": "grass", "walkable": true}],
//	  "robot": {"startPosition": {"row": 0, "col": 0}, "startDirection": "east"},
//	  "goal": {"row": 4, "col": 4}
//	}
//
// Usage:
//
//	manager, err := maps.NewManager("maps")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	data, err := manager.LoadMap("map2")
//	infos, err := manager.ListMaps()
//	fallback := manager.GetDefault()
//
// When no map1 exists the first listed map becomes the default, and when the
// directory has no valid map at all a built-in corridor is used.
package maps
