// Package websocket carries the game protocol over WebSocket.
//
// Each text message is exactly one protocol frame, in both directions, so a
// browser client speaks the same MOVE / READY / LOBBY_STATE vocabulary as a
// stream socket client. The handler upgrades the request and hands the
// connection to the game server, which treats it like any other transport.
//
// Usage:
//
//	handler := websocket.NewHandler(func(ctx context.Context, c *websocket.Conn) error {
//		return server.Serve(ctx, c)
//	}, logger)
//	router.Handle("/ws", handler)
//
// Connection Lifecycle:
//
// 1. Client upgrades on /ws
// 2. Server admits a player and sends ASSIGN_PLAYER
// 3. Client sends commands, receives broadcasts
// 4. Disconnection or a missed pong triggers departure
//
// The server pings every 54 seconds and drops a peer that has not answered
// within 60.
package websocket
