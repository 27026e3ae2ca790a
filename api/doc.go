// Package api provides the HTTP REST API for LogicPath.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session, body {"map_id": "map1"} (optional)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Session info with robot state and map
//   - DELETE /api/sessions/{id} - Delete a session
//
// Robot:
//   - GET /api/sessions/{id}/state - Robot position, direction and run status
//   - POST /api/sessions/{id}/run - Execute a program
//   - POST /api/sessions/{id}/stop - Stop the run in flight
//   - POST /api/sessions/{id}/reset - Put the robot back on its start tile
//   - GET /api/sessions/{id}/last-run - Result of the last finished run
//
// Maps:
//   - GET /api/maps - List available maps
//   - GET /api/maps/{id} - Full map definition
//   - POST /api/maps - Validate and store a map
//
// Other:
//   - GET /api/health - Liveness probe
//   - GET /ws?session={id} - WebSocket event stream for a session
//
// Running Programs:
//
//	POST /api/sessions/ab12/run
//	{
//	  "commands": ["forward", "left", "forward"],
//	  "reset": true,          // optional, reset the robot first
//	  "step_delay_ms": 200,   // optional, pause after each step
//	  "async": true           // optional, answer 202 and stream results
//	}
//
// A synchronous run answers with the full result once the program ends. An
// async run answers 202 with its run_id and publishes run_finished or
// run_failed on the websocket; step events stream either way.
//
// Error Handling:
//
// Errors are returned as {"error": "message"}. Unknown sessions and maps are
// 404, invalid maps and oversized programs 400, and a run or reset while the
// robot is busy 409.
package api
