// Package engine provides the command execution core for LogicPath.
//
// The engine package implements the puzzle mechanics including:
//   - Grid maps with walkable and blocked tiles
//   - Robot position and facing direction with reset support
//   - Sequential execution of forward/left/right programs
//   - Step and goal signals for animation layers
//   - Map definition parsing and validation
//
// Core Types:
//
// GameMap is the immutable tile grid built from a MapData definition. Robot
// holds the mutable position and direction. Executor runs a Program against a
// Robot and a GameMap, one run at a time, and reports an ExecutionResult with
// a per-step trace.
//
// Usage:
//
//	data, err := engine.LoadMapFile("maps/map1.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameMap, err := engine.NewGameMap(data)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	robot := engine.NewRobot(gameMap.StartPosition(), gameMap.StartDirection())
//	executor := engine.NewExecutor(robot, gameMap, engine.DefaultExecutorOptions())
//
//	result, err := executor.Execute(ctx, engine.ParseProgram([]string{"forward", "left", "forward"}))
//
// Game Rules:
//
// The robot moves one tile per forward command in the direction it faces.
// Turning never fails. A forward move into a blocked, missing or out-of-bounds
// tile fails and halts the run. Reaching the goal ends the run successfully and
// discards the remaining commands.
package engine
