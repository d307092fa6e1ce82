// Package service is the server context of the grid capture game.
//
// A Server owns the shared state of one session:
//   - the grid (engine.Grid), the only place cell ownership changes
//   - the player registry (session.Registry)
//   - the lobby phase machine (lobby.Machine)
//   - the broadcast hub (hub.Hub)
//
// Transports hand each accepted connection to Server.Serve, which admits the
// player, runs its read loop and reverses the admission exactly once when the
// connection ends. The REST and MCP surfaces read the same Server through the
// GameService interface.
//
// Usage:
//
//	server, err := service.NewServer(board, service.DefaultOptions(), recorder, configs, logger)
//	if err != nil {
//		return err
//	}
//	defer server.Close()
//
//	go server.Run(ctx)
//	tcp.Serve(ctx, listener, func(ctx context.Context, c *tcp.Conn) error {
//		return server.Serve(ctx, c)
//	}, logger)
//
// Ordering:
//
// A joining player first receives ASSIGN_PLAYER, then one PLAYER_JOINED per
// player already connected, then the broadcast of its own PLAYER_JOINED. An
// accepted move is confirmed to the mover before PLAYER_MOVED is broadcast.
// Frames to one connection are delivered in the order they were queued.
package service
