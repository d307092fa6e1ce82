package engine

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidBoard is returned when a grid cannot be built from the given size or walls.
var ErrInvalidBoard = errors.New("invalid board")

// BoardView is the read-only surface ValidateMove needs.
type BoardView interface {
	Size() int
	CellAt(x, y int) (Cell, bool)
}

// Grid is the cell store: an N×N board of claimable cells.
//
// All mutation goes through Claim, Release, Move, ClaimNearest and Reset, each of
// which runs under the grid's single lock. Reads that feed game decisions
// (validation, scoring, the full-board check) take the same lock, so every
// observer sees a consistent instant.
type Grid struct {
	mu     sync.RWMutex
	size   int
	cells  [][]Cell // indexed [y][x]
	walls  []Position
	frozen bool
}

// NewGrid creates a size×size grid with the given permanent walls.
func NewGrid(size int, walls []Position) (*Grid, error) {
	if size < MinGridSize || size > MaxGridSize {
		return nil, fmt.Errorf("%w: grid size must be between %d and %d, got %d", ErrInvalidBoard, MinGridSize, MaxGridSize, size)
	}
	seen := make(map[Position]bool, len(walls))
	unique := make([]Position, 0, len(walls))
	for _, w := range walls {
		if w.X < 0 || w.X >= size || w.Y < 0 || w.Y >= size {
			return nil, fmt.Errorf("%w: wall (%d,%d) outside %dx%d grid", ErrInvalidBoard, w.X, w.Y, size, size)
		}
		if !seen[w] {
			seen[w] = true
			unique = append(unique, w)
		}
	}

	g := &Grid{
		size:  size,
		walls: unique,
	}
	g.cells = make([][]Cell, size)
	for y := range g.cells {
		g.cells[y] = make([]Cell, size)
	}
	g.applyWalls()
	return g, nil
}

func (g *Grid) applyWalls() {
	for _, w := range g.walls {
		g.cells[w.Y][w.X] = Cell{Wall: true}
	}
}

// Size returns the side length of the grid.
func (g *Grid) Size() int {
	return g.size
}

// InBounds reports whether (x,y) lies on the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.size && y >= 0 && y < g.size
}

// CellAt returns a copy of the cell at (x,y).
func (g *Grid) CellAt(x, y int) (Cell, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cellAt(x, y)
}

func (g *Grid) cellAt(x, y int) (Cell, bool) {
	if !g.InBounds(x, y) {
		return Cell{}, false
	}
	return g.cells[y][x], true
}

// Claim gives (x,y) to id. It succeeds iff the cell is in bounds, not a wall,
// and either unowned or already owned by id. A failed claim changes nothing.
func (g *Grid) Claim(x, y int, id PlayerID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return false
	}
	return g.claim(x, y, id)
}

func (g *Grid) claim(x, y int, id PlayerID) bool {
	if id == NoOwner || !g.InBounds(x, y) {
		return false
	}
	c := &g.cells[y][x]
	if c.Wall {
		return false
	}
	if c.Owner != NoOwner && c.Owner != id {
		return false
	}
	c.Owner = id
	return true
}

// Release clears ownership of (x,y) when id is the current owner. Releasing a
// wall, an unowned cell or someone else's cell reports false and changes nothing.
func (g *Grid) Release(x, y int, id PlayerID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.release(x, y, id)
}

func (g *Grid) release(x, y int, id PlayerID) bool {
	if id == NoOwner || !g.InBounds(x, y) {
		return false
	}
	c := &g.cells[y][x]
	if c.Wall || c.Owner != id {
		return false
	}
	c.Owner = NoOwner
	return true
}

// ReleaseAll clears every cell owned by id and returns how many were cleared.
func (g *Grid) ReleaseAll(id PlayerID) int {
	if id == NoOwner {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	released := 0
	for y := range g.cells {
		for x := range g.cells[y] {
			if g.cells[y][x].Owner == id {
				g.cells[y][x].Owner = NoOwner
				released++
			}
		}
	}
	return released
}

// Move validates and applies a transition of id from one cell to another as a
// single atomic step: the target is claimed, then the vacated cell is released.
// A rejected move leaves the grid untouched.
func (g *Grid) Move(id PlayerID, from, to Position) MoveDecision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return Reject(RejectGameOver)
	}
	decision := ValidateMove(id, to, lockedView{g})
	if !decision.Accept {
		return decision
	}
	if !g.claim(to.X, to.Y, id) {
		return Reject(RejectOccupied)
	}
	if from != to {
		// The mover may not own its origin if it was already swept; that is harmless.
		g.release(from.X, from.Y, id)
	}
	return Accept
}

// ClaimNearest claims the closest free cell to p for id, searching outward in
// square rings. Within the first ring that has a free cell, the one with the
// smallest Manhattan distance to p wins, so orthogonal neighbours come before
// diagonal ones. It returns false when the board has no free cell left.
func (g *Grid) ClaimNearest(p Position, id PlayerID) (Position, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen || id == NoOwner {
		return Position{}, false
	}

	for r := 0; r < g.size; r++ {
		best, found := Position{}, false
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if abs(dx) != r && abs(dy) != r {
					continue
				}
				x, y := p.X+dx, p.Y+dy
				if !g.InBounds(x, y) {
					continue
				}
				c := g.cells[y][x]
				if c.Wall || c.Locked() {
					continue
				}
				candidate := Position{X: x, Y: y}
				if !found || ManhattanDistance(p, candidate) < ManhattanDistance(p, best) {
					best, found = candidate, true
				}
			}
		}
		if found {
			g.cells[best.Y][best.X].Owner = id
			return best, true
		}
	}
	return Position{}, false
}

// CountOwned returns the number of cells held by id.
func (g *Grid) CountOwned(id PlayerID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	for _, row := range g.cells {
		for _, c := range row {
			if id != NoOwner && c.Owner == id {
				count++
			}
		}
	}
	return count
}

// OwnerSnapshot returns the owner of every cell, [y][x], taken at one instant.
func (g *Grid) OwnerSnapshot() [][]PlayerID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ownerSnapshot()
}

func (g *Grid) ownerSnapshot() [][]PlayerID {
	snap := make([][]PlayerID, g.size)
	for y, row := range g.cells {
		snap[y] = make([]PlayerID, g.size)
		for x, c := range row {
			snap[y][x] = c.Owner
		}
	}
	return snap
}

// Cells returns a copy of the whole board.
func (g *Grid) Cells() [][]Cell {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([][]Cell, g.size)
	for y, row := range g.cells {
		out[y] = append([]Cell(nil), row...)
	}
	return out
}

// Full reports whether every non-wall cell has an owner.
func (g *Grid) Full() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, row := range g.cells {
		for _, c := range row {
			if !c.Wall && c.Owner == NoOwner {
				return false
			}
		}
	}
	return true
}

// OpenCells counts the non-wall cells.
func (g *Grid) OpenCells() int {
	return g.size*g.size - len(g.walls)
}

// Freeze stops all further claims and returns the final owner snapshot.
// Scoring taken from this snapshot cannot race an in-flight claim.
func (g *Grid) Freeze() [][]PlayerID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
	return g.ownerSnapshot()
}

// Frozen reports whether Freeze has been called since the last Reset.
func (g *Grid) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// Reset clears all ownership, restores walls and unfreezes the grid.
func (g *Grid) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for y := range g.cells {
		for x := range g.cells[y] {
			g.cells[y][x] = Cell{}
		}
	}
	g.applyWalls()
	g.frozen = false
}

// lockedView reads the grid without locking; callers must hold g.mu.
type lockedView struct{ g *Grid }

func (v lockedView) Size() int                    { return v.g.size }
func (v lockedView) CellAt(x, y int) (Cell, bool) { return v.g.cellAt(x, y) }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
