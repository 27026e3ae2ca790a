// Package mcp exposes LogicPath to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool calls the REST API and formats the
// response as text, so an agent sees exactly what a browser would.
//
// MCP Tools:
//   - create_session, list_sessions, get_session
//   - robot_state: position, direction and the grid drawn as ASCII
//   - run_program: execute a command list and report each step
//   - stop_run, reset_robot
//   - list_maps, describe_tile
//   - game_instructions
//
// Transport Modes:
//
//	client := mcp.NewClient("http://localhost:8080")
//
//	// Stdio, for local agents
//	client.ServeStdio()
//
//	// Streamable HTTP, mounted next to the REST API
//	apiServer.Handle("/mcp", client.HTTPHandler())
package mcp
