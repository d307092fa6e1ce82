// Package mcp exposes the grid capture server to AI agents over the Model
// Context Protocol.
//
// The client is a thin proxy: every tool calls the REST API and formats the
// JSON response as text. It observes the server only; players still connect
// over TCP or WebSocket to play.
//
// MCP Tools:
//   - lobby_state: phase, countdown and readiness roster
//   - list_players: connected players with positions and owned cells
//   - board: rendered board layout
//   - standings: live or final standings
//   - match_history: recorded games, or one game by match_id
//   - list_boards: available board layouts
//   - game_rules: configured rules and wire commands
//
// Transport Modes:
//
// The MCP server can be served over stdio for local agents, or mounted on
// the HTTP server at /mcp.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
