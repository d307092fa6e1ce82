// Package lobby implements the session phase machine of the grid capture
// server: Waiting, CountingDown, InProgress and GameOver.
//
// Every transition and every "all players ready" read happens under one
// mutex. Events are handed to a Notifier while that mutex is held; the
// notifier must only enqueue (never block on the network), which keeps the
// order of phase events identical for every connection.
//
// Usage:
//
//	machine := lobby.NewMachine(registry, grid, hub, lobby.Options{
//		CountdownSeconds: 3,
//		TickInterval:     time.Second,
//		Duration:         3 * time.Minute,
//	}, logger)
//	defer machine.Close()
//
//	registry.SetReady("P1", true)
//	machine.Reevaluate()
//
//	go machine.Run(ctx, time.Second, func(r lobby.Result) { ... })
package lobby
