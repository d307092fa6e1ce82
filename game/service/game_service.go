package service

import (
	"context"
	"errors"

	"github.com/wricardo/gridclaim/game/config"
	"github.com/wricardo/gridclaim/game/engine"
	"github.com/wricardo/gridclaim/game/record"
	"github.com/wricardo/gridclaim/game/session"
)

var (
	ErrGameOver    = errors.New("game is over")
	ErrInvalidMove = errors.New("invalid move")
	ErrPlayerGone  = session.ErrPlayerGone
)

// GameService is the read-only view of the running server used by the REST
// and MCP surfaces.
type GameService interface {
	// Session state
	Lobby(ctx context.Context) (*LobbyInfo, error)
	Players(ctx context.Context) ([]*PlayerInfo, error)
	Board(ctx context.Context) (*BoardInfo, error)
	Standings(ctx context.Context) (*StandingsInfo, error)

	// Finished games
	Matches(ctx context.Context) ([]record.Match, error)
	Match(ctx context.Context, id string) (*record.Match, error)

	// Configuration
	ListBoards(ctx context.Context) ([]*config.BoardInfo, error)
	ReloadBoards(ctx context.Context) ([]*config.BoardInfo, error)
	Rules(ctx context.Context) *RulesInfo
}

// ConfigManager lists the board layouts available to the server.
type ConfigManager interface {
	LoadConfig(name string) (*engine.BoardConfig, error)
	ListConfigs() ([]*config.BoardInfo, error)
	GetDefault() *engine.BoardConfig
	RefreshCache()
}

// Conn is one client transport connection carrying protocol frames.
type Conn interface {
	// ReadFrame blocks for the next inbound frame. io.EOF means a clean close.
	ReadFrame() (string, error)
	WriteFrame(frame string) error
	Close() error
	RemoteAddr() string
}
