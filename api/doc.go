// Package api provides the HTTP REST API for observing the grid capture server.
//
// The API never changes the game. Players join and move over the line protocol
// (TCP or WebSocket); these endpoints expose what the server currently knows.
// The one POST re-reads board files from disk.
//
// Endpoints:
//
// Session state:
//   - GET /api/lobby - Phase, countdown and readiness roster
//   - GET /api/players - Connected players
//   - GET /api/board - Rendered board
//   - GET /api/standings - Live standings, final once the game is over
//
// Finished games:
//   - GET /api/matches?limit=n - Recorded games, most recent first
//   - GET /api/matches/{id} - One recorded game
//
// Configuration:
//   - GET /api/boards - Available board layouts
//   - POST /api/boards/reload - Drop cached board files and list them again
//   - GET /api/rules - Configured rules and wire commands
//
// Other:
//   - GET /healthz - Liveness check
//   - /ws - WebSocket upgrade to the line protocol
//
// Errors are returned as {"error": "message"}. An unknown match id yields 404.
//
// Usage:
//
//	ws := websocket.NewHandler(func(ctx context.Context, c *websocket.Conn) error {
//		return gameServer.Serve(ctx, c)
//	}, logger)
//	apiServer := api.NewServer(gameServer, ws)
//	http.ListenAndServe(":8080", apiServer)
package api
