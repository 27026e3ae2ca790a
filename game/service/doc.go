// Package service provides the business logic layer for LogicPath.
//
// The service package implements:
//   - Multi-session management, one robot and executor per session
//   - Program runs with a run id and start/end snapshots
//   - Stop and reset of a session's robot
//   - Map listing, loading and saving
//
// Core Interfaces:
//
// GameService is the main service interface used by the REST, websocket and
// MCP transports. SessionManager stores sessions. MapManager loads map
// definitions.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	mapMgr, _ := maps.NewManager("maps")
//	gameService := service.NewGameService(sessionMgr, mapMgr)
//
//	info, err := gameService.CreateSession(ctx, "map1")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	run, err := gameService.Run(ctx, info.ID, service.RunRequest{
//		Commands: []string{"forward", "right", "forward"},
//	})
//
// A run holds no service lock. Concurrent runs on one session are rejected by
// the session's executor with engine.ErrBusy.
package service
