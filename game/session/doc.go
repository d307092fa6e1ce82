// Package session provides the player registry for the grid capture server.
//
// The session package implements:
//   - Admission with a fixed capacity and a distinct ErrServerFull signal
//   - Slot-based ids ("P1".."Pn"), spawn corners and display colors
//   - Readiness flags for the lobby
//   - Per-player locking so moves and departures never interleave
//
// Slots:
//
// A player takes the lowest free slot. Slot n gets id "Pn", a fixed color and,
// for slots 1-4, one of the board corners (top-left, top-right, bottom-left,
// bottom-right). Later slots spawn at the center. A slot is reused only after
// its player has been removed.
//
// Usage:
//
//	registry := session.NewRegistry(4, 10)
//
//	player, err := registry.Admit()
//	if errors.Is(err, session.ErrServerFull) {
//		// reply SERVER_FULL and close
//	}
//
//	registry.SetReady(player.ID, true)
//	roster := registry.Readiness()
//
// Concurrency:
//
// The registry is guarded by a single RWMutex. Each Player additionally has
// its own lock for position updates; Depart takes that lock, so a move that
// races a disconnect either completes first or fails with ErrPlayerGone.
package session
