package service

import (
	"time"

	"github.com/wricardo/gridclaim/game/engine"
	"github.com/wricardo/gridclaim/game/lobby"
	"github.com/wricardo/gridclaim/game/session"
)

// LobbyInfo describes the session phase and readiness roster.
type LobbyInfo struct {
	Phase              lobby.Phase         `json:"phase"`
	CountdownRemaining int                 `json:"countdown_remaining,omitempty"`
	StartedAt          *time.Time          `json:"started_at,omitempty"`
	EndsAt             *time.Time          `json:"ends_at,omitempty"`
	Players            int                 `json:"players"`
	Capacity           int                 `json:"capacity"`
	Roster             []session.Readiness `json:"roster"`
}

// PlayerInfo describes one connected player.
type PlayerInfo struct {
	ID       engine.PlayerID `json:"id"`
	Slot     int             `json:"slot"`
	Color    string          `json:"color"`
	Position engine.Position `json:"position"`
	Ready    bool            `json:"ready"`
	Cells    int             `json:"cells"`
	JoinedAt time.Time       `json:"joined_at"`
}

// BoardInfo is a rendered snapshot of the grid.
type BoardInfo struct {
	Name       string   `json:"name"`
	GridSize   int      `json:"grid_size"`
	OpenCells  int      `json:"open_cells"`
	OwnedCells int      `json:"owned_cells"`
	Frozen     bool     `json:"frozen"`
	Layout     []string `json:"layout"`
}

// StandingsInfo ranks players by owned cells. Final is set once the game
// is over; before that the standings are live.
type StandingsInfo struct {
	Phase     lobby.Phase       `json:"phase"`
	Final     bool              `json:"final"`
	Winner    engine.PlayerID   `json:"winner,omitempty"`
	Tied      []engine.PlayerID `json:"tied,omitempty"`
	Standings []engine.Standing `json:"standings"`
}

// RulesInfo summarises the configured game.
type RulesInfo struct {
	Board            string        `json:"board"`
	GridSize         int           `json:"grid_size"`
	MaxPlayers       int           `json:"max_players"`
	CountdownSeconds int           `json:"countdown_seconds"`
	Duration         time.Duration `json:"duration_ns"`
	DurationText     string        `json:"duration"`
	Commands         []string      `json:"commands"`
}
