package engine

// ValidateMove decides whether id may move onto target. It rejects targets that
// are out of bounds, walls, or owned by a different player. A player may
// "move" onto a cell it already owns, which holds its position.
//
// ValidateMove is pure; Grid.Move calls it under the grid lock so the decision
// and the claim that follows see the same board.
func ValidateMove(id PlayerID, target Position, board BoardView) MoveDecision {
	if id == NoOwner {
		return Reject(RejectPlayerGone)
	}

	cell, ok := board.CellAt(target.X, target.Y)
	if !ok {
		return Reject(RejectOutOfBounds)
	}
	if cell.Wall {
		return Reject(RejectWall)
	}
	if cell.Locked() && cell.Owner != id {
		return Reject(RejectOccupied)
	}
	return Accept
}

// ManhattanDistance calculates the Manhattan distance between two positions.
func ManhattanDistance(from, to Position) int {
	return abs(from.X-to.X) + abs(from.Y-to.Y)
}

// Corners returns the four canonical spawn corners of a size×size board, in
// slot order: top-left, top-right, bottom-left, bottom-right.
func Corners(size int) [4]Position {
	max := size - 1
	return [4]Position{
		{X: 0, Y: 0},
		{X: max, Y: 0},
		{X: 0, Y: max},
		{X: max, Y: max},
	}
}

// Center returns the middle cell of a size×size board.
func Center(size int) Position {
	return Position{X: size / 2, Y: size / 2}
}
