// Package engine provides the core board logic for the grid capture game.
//
// The engine package implements:
//   - The cell store (Grid): per-cell ownership and permanent walls
//   - Move validation: out of bounds, walls and cells held by other players
//   - Scoring: standings from an owner snapshot
//   - Board layouts loaded from JSON
//
// Usage:
//
//	grid, err := engine.NewGrid(10, nil)
//	if err != nil {
//		return err
//	}
//
//	grid.Claim(0, 0, "P1")
//	decision := grid.Move("P1", engine.Position{X: 0, Y: 0}, engine.Position{X: 1, Y: 0})
//	standings := engine.Resolve(grid.Freeze())
//
// Rules:
//
// A cell has at most one owner and a wall never has one. A successful move
// claims the target and releases the cell the player left, so vacated cells
// become claimable again.
package engine
