// Package session provides session management for LogicPath.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique 4-character session ID generation
//   - Per-session executors wired to an observer factory
//   - Robot state persistence to JSON files or SQLite
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager stores service.Session values keyed by lower-cased ID. Each session
// owns its own GameMap, Robot and Executor. FilePersistence and
// SQLitePersistence implement SessionPersistence and store only the robot
// position, direction and map id. Sessions are rebuilt from the map on load.
//
// Usage:
//
//	store, err := session.OpenSQLitePersistence("data/sessions.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(store, mapManager)
//	manager.SetObserverFactory(hub.ObserverFor)
//
//	sess, err := manager.Create("", mapData)
//	sess, err = manager.Get(sess.ID)
//
// Cleanup:
//
// CleanupExpiredSessions drops idle sessions from memory. Sessions with a run
// in flight are never dropped.
package session
