package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wricardo/gridclaim/game/config"
	"github.com/wricardo/gridclaim/game/engine"
	"github.com/wricardo/gridclaim/game/lobby"
	"github.com/wricardo/gridclaim/game/record"
	"github.com/wricardo/gridclaim/game/session"
	"github.com/wricardo/gridclaim/transport/hub"
	"github.com/wricardo/gridclaim/transport/protocol"
)

var _ GameService = (*Server)(nil)

// Options configures a Server.
type Options struct {
	MaxPlayers       int
	Lobby            lobby.Options
	EndCheckInterval time.Duration
	CommandRate      rate.Limit
	CommandBurst     int
	OutboundBuffer   int
}

// DefaultOptions mirrors the default settings.
func DefaultOptions() Options {
	return Options{
		MaxPlayers:       session.DefaultCapacity,
		Lobby:            lobby.DefaultOptions(),
		EndCheckInterval: time.Second,
		CommandRate:      20,
		CommandBurst:     10,
		OutboundBuffer:   hub.DefaultBufferSize,
	}
}

// Server owns the shared game state: the grid, the player registry, the lobby
// phase machine and the broadcast hub. Connection handlers hold a reference
// to it instead of reaching for globals.
type Server struct {
	board    *engine.BoardConfig
	grid     *engine.Grid
	registry *session.Registry
	lobby    *lobby.Machine
	hub      *hub.Hub
	recorder record.Recorder
	configs  ConfigManager
	opts     Options
	logger   *zap.Logger

	// membership serialises joins and departures so that a departure and the
	// reset it may trigger never interleave with an admission.
	membership sync.Mutex
}

// NewServer builds a server for board. recorder and configs may be nil; a nil
// board falls back to the config manager's default.
func NewServer(board *engine.BoardConfig, opts Options, recorder record.Recorder, configs ConfigManager, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if board == nil && configs != nil {
		board = configs.GetDefault()
	}
	if board == nil {
		board = engine.DefaultBoardConfig(engine.DefaultGridSize)
	}
	if recorder == nil {
		recorder = record.Discard{}
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = session.DefaultCapacity
	}
	if opts.CommandRate <= 0 {
		opts.CommandRate = rate.Inf
	}
	if opts.CommandBurst <= 0 {
		opts.CommandBurst = 1
	}

	grid, err := engine.NewGridFromConfig(board)
	if err != nil {
		return nil, fmt.Errorf("failed to build board %s: %w", board.Name, err)
	}

	s := &Server{
		board:    board,
		grid:     grid,
		registry: session.NewRegistry(opts.MaxPlayers, board.GridSize),
		hub:      hub.NewHub(opts.OutboundBuffer, logger.Named("hub")),
		recorder: recorder,
		configs:  configs,
		opts:     opts,
		logger:   logger,
	}
	s.lobby = lobby.NewMachine(s.registry, grid, s.hub, opts.Lobby, logger.Named("lobby"))
	return s, nil
}

// Run drives the end-of-game check until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.lobby.Run(ctx, s.opts.EndCheckInterval, s.finish)
}

// Close stops the countdown and drops every broadcast target.
func (s *Server) Close() {
	s.lobby.Close()
	s.hub.Close()
}

// finish stores the result of a finished game.
func (s *Server) finish(result lobby.Result) {
	match := record.NewMatch(s.board.Name, s.board.GridSize, result.StartedAt, result.EndedAt,
		string(result.Reason), result.Standings)

	logger := s.logger.With(zap.String("match_id", match.ID), zap.String("reason", match.Reason))
	if match.Winner != "" {
		logger = logger.With(zap.String("winner", string(match.Winner)))
	}
	if err := s.recorder.Save(match); err != nil {
		logger.Error("failed to save match record", zap.Error(err))
		return
	}
	logger.Info("match recorded")
}

// join admits a player, claims its spawn and announces it.
func (s *Server) join(conn hub.Conn) (*session.Player, error) {
	s.membership.Lock()
	defer s.membership.Unlock()

	player, err := s.registry.Admit()
	if err != nil {
		return nil, err
	}

	spawn := player.Position()
	if !s.grid.Claim(spawn.X, spawn.Y, player.ID) && !s.grid.Frozen() {
		pos, ok := s.grid.ClaimNearest(spawn, player.ID)
		if !ok {
			s.registry.Remove(player.ID)
			return nil, session.ErrServerFull
		}
		player.Place(pos)
	}
	pos := player.Position()

	// The roster replay is taken with broadcasts held off, so a move is either
	// in the replay or delivered after it.
	s.hub.Register(player.ID, conn, func() []string {
		frames := []string{protocol.AssignPlayer(player.ID, pos, player.Color)}
		for _, other := range s.registry.List() {
			if other.ID == player.ID {
				continue
			}
			frames = append(frames, protocol.PlayerJoined(other.ID, other.Position(), other.Color))
		}
		return frames
	})
	s.hub.Broadcast(protocol.PlayerJoined(player.ID, pos, player.Color))
	s.lobby.Reevaluate()

	return player, nil
}

// leave reverses join. It is safe to call more than once.
func (s *Server) leave(player *session.Player) {
	s.membership.Lock()
	defer s.membership.Unlock()

	s.hub.Unregister(player.ID)

	departed := player.Depart(func(last engine.Position) {
		s.grid.Release(last.X, last.Y, player.ID)
	})
	if !departed {
		return
	}
	if stray := s.grid.ReleaseAll(player.ID); stray > 0 {
		s.logger.Warn("released stray cells on departure",
			zap.String("player_id", string(player.ID)), zap.Int("cells", stray))
	}
	if _, err := s.registry.Remove(player.ID); err != nil {
		s.logger.Warn("departing player was not registered", zap.String("player_id", string(player.ID)))
	}

	s.hub.Broadcast(protocol.PlayerLeft(player.ID))
	s.lobby.Departed()
	if s.lobby.ResetIfEmpty() {
		s.logger.Info("last player left, board cleared")
	}
}

// Move applies a move for player. A rejected move replies INVALID_MOVE; an
// accepted one confirms to the mover and is broadcast to everyone.
func (s *Server) Move(player *session.Player, target engine.Position) (engine.Position, error) {
	if !s.lobby.AcceptingMoves() {
		s.hub.Unicast(player.ID, protocol.EvInvalidMove)
		return player.Position(), ErrGameOver
	}

	var decision engine.MoveDecision
	pos, moved, err := player.Move(func(from engine.Position) (engine.Position, bool) {
		decision = s.grid.Move(player.ID, from, target)
		return target, decision.Accept
	})
	if err != nil {
		return pos, err
	}
	if !moved {
		s.hub.Unicast(player.ID, protocol.EvInvalidMove)
		if decision.Reason == engine.RejectGameOver {
			return pos, ErrGameOver
		}
		return pos, fmt.Errorf("%w: %s", ErrInvalidMove, decision.Reason)
	}

	s.hub.Unicast(player.ID, protocol.MoveConfirmed(player.ID, pos))
	s.hub.Broadcast(protocol.PlayerMoved(player.ID, pos, player.Color))
	return pos, nil
}

// SetReady records readiness and lets the lobby react to it.
func (s *Server) SetReady(id engine.PlayerID, ready bool) error {
	if err := s.registry.SetReady(id, ready); err != nil {
		return err
	}
	s.lobby.Reevaluate()
	return nil
}

// HandleLine decodes and dispatches one client frame.
func (s *Server) HandleLine(player *session.Player, line string, logger *zap.Logger) {
	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		logger.Debug("unknown command", zap.String("line", line), zap.Error(err))
		s.hub.Unicast(player.ID, protocol.EvUnknownCommand)
		return
	}

	switch cmd.Name {
	case protocol.CmdMove:
		if _, err := s.Move(player, cmd.Target); err != nil {
			logger.Debug("move rejected", zap.Int("x", cmd.Target.X), zap.Int("y", cmd.Target.Y), zap.Error(err))
		}
	case protocol.CmdReady, protocol.CmdUnready:
		if err := s.SetReady(player.ID, cmd.Name == protocol.CmdReady); err != nil {
			logger.Debug("readiness change failed", zap.Error(err))
		}
	case protocol.CmdInitState:
		s.hub.Unicast(player.ID, s.lobby.LobbyFrame())
	}
}

// Lobby returns the phase and roster.
func (s *Server) Lobby(ctx context.Context) (*LobbyInfo, error) {
	snap := s.lobby.Snapshot()
	return &LobbyInfo{
		Phase:              snap.Phase,
		CountdownRemaining: snap.Remaining,
		StartedAt:          snap.StartedAt,
		EndsAt:             snap.EndsAt,
		Players:            len(snap.Roster),
		Capacity:           s.registry.Capacity(),
		Roster:             snap.Roster,
	}, nil
}

// Players lists connected players in slot order.
func (s *Server) Players(ctx context.Context) ([]*PlayerInfo, error) {
	players := s.registry.List()
	result := make([]*PlayerInfo, 0, len(players))
	for _, p := range players {
		ready, err := s.registry.IsReady(p.ID)
		if err != nil {
			// Left between List and IsReady.
			continue
		}
		result = append(result, &PlayerInfo{
			ID:       p.ID,
			Slot:     p.Slot,
			Color:    p.Color,
			Position: p.Position(),
			Ready:    ready,
			Cells:    s.grid.CountOwned(p.ID),
			JoinedAt: p.JoinedAt,
		})
	}
	return result, nil
}

// Board renders the grid.
func (s *Server) Board(ctx context.Context) (*BoardInfo, error) {
	cells := s.grid.Cells()
	owned := 0
	for _, row := range cells {
		for _, c := range row {
			if c.Locked() {
				owned++
			}
		}
	}
	return &BoardInfo{
		Name:       s.board.Name,
		GridSize:   s.grid.Size(),
		OpenCells:  s.grid.OpenCells(),
		OwnedCells: owned,
		Frozen:     s.grid.Frozen(),
		Layout:     engine.RenderLayout(cells),
	}, nil
}

// Standings returns the final standings once the game is over, and the live
// ones before that.
func (s *Server) Standings(ctx context.Context) (*StandingsInfo, error) {
	snap := s.lobby.Snapshot()
	info := &StandingsInfo{Phase: snap.Phase}
	if snap.Phase == lobby.GameOver {
		info.Final = true
		info.Standings = snap.Standings
	} else {
		info.Standings = engine.Resolve(s.grid.OwnerSnapshot())
	}
	if w, ok := engine.Winner(info.Standings); ok {
		info.Winner = w.PlayerID
	}
	info.Tied = engine.Tied(info.Standings)
	if info.Standings == nil {
		info.Standings = []engine.Standing{}
	}
	return info, nil
}

// Matches lists recorded games, most recent first.
func (s *Server) Matches(ctx context.Context) ([]record.Match, error) {
	return s.recorder.List()
}

// Match returns one recorded game.
func (s *Server) Match(ctx context.Context, id string) (*record.Match, error) {
	m, err := s.recorder.Get(id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListBoards lists the board layouts the server knows about.
func (s *Server) ListBoards(ctx context.Context) ([]*config.BoardInfo, error) {
	if s.configs == nil {
		return []*config.BoardInfo{{
			ConfigID:    s.board.Name,
			Name:        s.board.Name,
			Description: s.board.Description,
			GridSize:    s.board.GridSize,
			Walls:       len(s.board.Walls()),
		}}, nil
	}
	return s.configs.ListConfigs()
}

// ReloadBoards drops cached board files so edits on disk show up in the
// listing. The running game keeps its board.
func (s *Server) ReloadBoards(ctx context.Context) ([]*config.BoardInfo, error) {
	if s.configs != nil {
		s.configs.RefreshCache()
		s.logger.Info("board cache refreshed")
	}
	return s.ListBoards(ctx)
}

// Rules describes the configured game.
func (s *Server) Rules(ctx context.Context) *RulesInfo {
	return &RulesInfo{
		Board:            s.board.Name,
		GridSize:         s.board.GridSize,
		MaxPlayers:       s.registry.Capacity(),
		CountdownSeconds: s.opts.Lobby.CountdownSeconds,
		Duration:         s.opts.Lobby.Duration,
		DurationText:     s.opts.Lobby.Duration.String(),
		Commands: []string{
			protocol.CmdMove + ",<x>,<y>",
			protocol.CmdReady,
			protocol.CmdUnready,
			protocol.CmdInitState,
		},
	}
}
