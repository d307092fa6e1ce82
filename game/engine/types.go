package engine

// PlayerID identifies a connected player ("P1".."Pn"). The zero value means no owner.
type PlayerID string

const (
	// NoOwner marks an unclaimed cell.
	NoOwner PlayerID = ""

	// Validation constants
	DefaultGridSize = 10
	MinGridSize     = 2
	MaxGridSize     = 50
)

// Cell represents a single grid cell
type Cell struct {
	Owner PlayerID `json:"owner,omitempty"`
	Wall  bool     `json:"wall,omitempty"`
}

// Locked reports whether the cell is currently held by a player.
func (c Cell) Locked() bool {
	return c.Owner != NoOwner
}

// Position represents x,y coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Standing is one row of the final ranking.
type Standing struct {
	PlayerID PlayerID `json:"player_id"`
	Score    int      `json:"score"`
}

// RejectReason explains why a move was refused.
type RejectReason string

const (
	RejectNone        RejectReason = ""
	RejectOutOfBounds RejectReason = "out_of_bounds"
	RejectWall        RejectReason = "wall"
	RejectOccupied    RejectReason = "occupied"
	RejectGameOver    RejectReason = "game_over"
	RejectPlayerGone  RejectReason = "player_gone"
)

// MoveDecision is the outcome of validating a move.
type MoveDecision struct {
	Accept bool         `json:"accept"`
	Reason RejectReason `json:"reason,omitempty"`
}

// Accept is the decision for a legal move.
var Accept = MoveDecision{Accept: true}

// Reject builds a refusal with the given reason.
func Reject(reason RejectReason) MoveDecision {
	return MoveDecision{Reason: reason}
}
