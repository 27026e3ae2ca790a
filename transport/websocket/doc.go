// Package websocket streams robot execution events to browsers.
//
// A central Hub owns the set of connected clients, grouped by session ID, and
// runs in its own goroutine. Each connection gets a read pump and a write pump.
// Publishing is non-blocking: when the hub's queue is full the event is
// dropped and a warning logged, so a slow browser can never stall a run.
//
// Message Protocol:
//
// Every outgoing frame is one JSON Message:
//
//	{"session_id": "ab12", "type": "step_complete", "data": {...}, "timestamp": "..."}
//
// Types are step_start, step_complete and goal_reached (emitted by the
// observer returned from ObserverFor) plus run_finished, run_failed and
// robot_reset (published by the API). Clients never send commands over the
// socket; programs are submitted through the REST API.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	sessions.SetObserverFactory(hub.ObserverFor)
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
