package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/gridclaim/game/config"
	"github.com/wricardo/gridclaim/game/engine"
	"github.com/wricardo/gridclaim/game/lobby"
	"github.com/wricardo/gridclaim/game/record"
	"github.com/wricardo/gridclaim/game/session"
)

func TestServer_AssignAndMove(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, fastOptions(), nil)

	c := connect(t, ctx, s)
	assert.Equal(t, "ASSIGN_PLAYER,P1,0,0,#FF0000", c.next())
	assert.Equal(t, "PLAYER_JOINED,P1,0,0,#FF0000", c.next())
	assert.Equal(t, "LOBBY_STATE,P1,NOT_READY;", c.next())

	c.send("MOVE,1,0")
	assert.Equal(t, "MOVE_CONFIRMED,P1,1,0", c.next())
	assert.Equal(t, "PLAYER_MOVED,P1,1,0,#FF0000", c.next())

	cell, _ := s.grid.CellAt(1, 0)
	assert.Equal(t, engine.PlayerID("P1"), cell.Owner)
	vacated, _ := s.grid.CellAt(0, 0)
	assert.Equal(t, engine.NoOwner, vacated.Owner, "the vacated cell is released")

	c.close()
	assert.Equal(t, 0, s.registry.Count())
	assert.Equal(t, 0, s.grid.CountOwned("P1"))
}

func TestServer_JoinReplaysRoster(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, fastOptions(), nil)

	c1 := connect(t, ctx, s)
	c1.expect("LOBBY_STATE,P1,NOT_READY;")

	c2 := connect(t, ctx, s)
	assert.Equal(t, "ASSIGN_PLAYER,P2,9,0,#00FF00", c2.next())
	assert.Equal(t, "PLAYER_JOINED,P1,0,0,#FF0000", c2.next())
	assert.Equal(t, "PLAYER_JOINED,P2,9,0,#00FF00", c2.next())
	assert.Equal(t, "LOBBY_STATE,P1,NOT_READY;P2,NOT_READY;", c2.next())

	c1.expect("PLAYER_JOINED,P2,9,0,#00FF00")
}

func TestServer_AssignmentIsAlwaysTheFirstFrame(t *testing.T) {
	ctx := context.Background()
	opts := fastOptions()
	opts.MaxPlayers = 2
	opts.OutboundBuffer = 1 << 16
	s := newTestServer(t, opts, nil)

	mover, err := s.join(discardConn{})
	require.NoError(t, err)
	hold := mover.Position()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.Move(mover, hold)
				time.Sleep(50 * time.Microsecond)
			}
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for i := 0; i < 100; i++ {
		c := connect(t, ctx, s)
		first := c.next()
		require.Equal(t, "ASSIGN_PLAYER,P2,9,0,#00FF00", first, "connection %d", i)
		assert.Equal(t, "PLAYER_JOINED,P1,0,0,#FF0000", c.next(), "roster replay follows the assignment")
		c.close()
	}
}

func TestServer_OversizedFrameKeepsConnection(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, fastOptions(), nil)

	c := connect(t, ctx, s)
	c.expect("LOBBY_STATE,P1,NOT_READY;")

	c.send(strings.Repeat("MOVE,1,0", 200))
	assert.Equal(t, "UNKNOWN_COMMAND", c.next())

	c.send("MOVE,1,0")
	assert.Equal(t, "MOVE_CONFIRMED,P1,1,0", c.next())
}

func TestServer_RejectedMoves(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, fastOptions(), nil)

	c1 := connect(t, ctx, s)
	c1.expect("LOBBY_STATE,P1,NOT_READY;")
	c2 := connect(t, ctx, s)
	c2.expect("LOBBY_STATE,P1,NOT_READY;P2,NOT_READY;")
	c1.expect("LOBBY_STATE,P1,NOT_READY;P2,NOT_READY;")

	for _, line := range []string{"MOVE,9,0", "MOVE,-1,0", "MOVE,10,3"} {
		c1.send(line)
		assert.Equal(t, "INVALID_MOVE", c1.next(), line)
	}

	c1.send("JUMP")
	assert.Equal(t, "UNKNOWN_COMMAND", c1.next())
	c1.send("MOVE,1")
	assert.Equal(t, "UNKNOWN_COMMAND", c1.next())

	// Non-adjacent moves onto free cells are allowed.
	c1.send("MOVE,5,5")
	assert.Equal(t, "MOVE_CONFIRMED,P1,5,5", c1.next())

	c1.send("INIT_STATE")
	c1.expect("LOBBY_STATE,P1,NOT_READY;P2,NOT_READY;")
}

func TestServer_FourPlayersCountdown(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, fastOptions(), nil)

	clients := make([]*testClient, 4)
	for i := range clients {
		clients[i] = connect(t, ctx, s)
		clients[i].expectPrefix("ASSIGN_PLAYER")
	}
	clients[0].expect("LOBBY_STATE,P1,NOT_READY;P2,NOT_READY;P3,NOT_READY;P4,NOT_READY;")

	clients[0].send("READY")
	clients[0].expect("LOBBY_STATE,P1,READY;P2,NOT_READY;P3,NOT_READY;P4,NOT_READY;")
	clients[1].send("READY")
	clients[0].expect("LOBBY_STATE,P1,READY;P2,READY;P3,NOT_READY;P4,NOT_READY;")
	clients[2].send("READY")
	clients[0].expect("LOBBY_STATE,P1,READY;P2,READY;P3,READY;P4,NOT_READY;")
	clients[3].send("READY")

	for _, c := range clients {
		c.expect("LOBBY_STATE,P1,READY;P2,READY;P3,READY;P4,READY;")
		c.expect("COUNTDOWN,3")
		c.expect("COUNTDOWN,2")
		c.expect("COUNTDOWN,1")
		c.expect("GAME_STARTED")
	}
	assert.Equal(t, lobby.InProgress, s.lobby.Phase())
}

func TestServer_ServerFull(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, fastOptions(), nil)

	for i := 0; i < 4; i++ {
		connect(t, ctx, s).expectPrefix("ASSIGN_PLAYER")
	}

	extra := connect(t, ctx, s)
	assert.Equal(t, "SERVER_FULL", extra.next())
	select {
	case err := <-extra.done:
		assert.True(t, errors.Is(err, session.ErrServerFull))
	case <-time.After(frameTimeout):
		t.Fatal("Serve did not return for a rejected connection")
	}
	assert.Equal(t, 4, s.registry.Count())
	assert.Equal(t, 4, s.hub.Count())
}

func TestServer_DisconnectDuringCountdown(t *testing.T) {
	ctx := context.Background()
	opts := fastOptions()
	opts.Lobby.TickInterval = time.Hour
	s := newTestServer(t, opts, nil)

	c1 := connect(t, ctx, s)
	c1.expectPrefix("ASSIGN_PLAYER")
	c2 := connect(t, ctx, s)
	c2.expectPrefix("ASSIGN_PLAYER")

	c1.send("READY")
	c1.expect("LOBBY_STATE,P1,READY;P2,NOT_READY;")
	c2.send("READY")
	c1.expect("COUNTDOWN,3")
	require.Equal(t, lobby.CountingDown, s.lobby.Phase())

	c2.close()
	c1.expect("PLAYER_LEFT,P2")
	c1.expect("COUNTDOWN_ABORTED")
	c1.expect("LOBBY_STATE,P1,READY;")
	assert.Equal(t, lobby.Waiting, s.lobby.Phase())

	// P2's spawn is free again.
	c1.send("MOVE,9,0")
	c1.expect("MOVE_CONFIRMED,P1,9,0")
}

func TestServer_GameOverAndReset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder, err := record.NewFileRecorder(t.TempDir())
	require.NoError(t, err)

	opts := fastOptions()
	opts.Lobby.CountdownSeconds = 1
	opts.Lobby.Duration = 100 * time.Millisecond
	s := newTestServer(t, opts, recorder)
	go s.Run(ctx)

	c := connect(t, ctx, s)
	c.expect("LOBBY_STATE,P1,NOT_READY;")
	c.send("READY")
	c.expect("GAME_STARTED")
	c.expect("GAME_OVER,P1,1,P1:1;")

	c.send("MOVE,1,0")
	c.expect("INVALID_MOVE")

	require.Eventually(t, func() bool {
		matches, err := recorder.List()
		return err == nil && len(matches) == 1
	}, frameTimeout, 10*time.Millisecond)
	matches, _ := recorder.List()
	assert.Equal(t, engine.PlayerID("P1"), matches[0].Winner)
	assert.Equal(t, string(lobby.EndTimeUp), matches[0].Reason)

	standings, err := s.Standings(ctx)
	require.NoError(t, err)
	assert.True(t, standings.Final)
	assert.Equal(t, engine.PlayerID("P1"), standings.Winner)

	c.close()
	assert.Equal(t, lobby.Waiting, s.lobby.Phase(), "the last departure resets a finished session")
	assert.False(t, s.grid.Frozen())

	again := connect(t, ctx, s)
	assert.Equal(t, "ASSIGN_PLAYER,P1,0,0,#FF0000", again.next())
}

func TestServer_ContextCancelClosesConnections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestServer(t, fastOptions(), nil)

	c := connect(t, ctx, s)
	c.expectPrefix("ASSIGN_PLAYER")
	cancel()

	select {
	case err := <-c.done:
		assert.NoError(t, err)
	case <-time.After(frameTimeout):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 0, s.registry.Count())
}

func TestServer_ConcurrentMovesOnContestedCell(t *testing.T) {
	for round := 0; round < 20; round++ {
		s := newTestServer(t, fastOptions(), nil)
		p1, err := s.join(discardConn{})
		require.NoError(t, err)
		p2, err := s.join(discardConn{})
		require.NoError(t, err)

		target := engine.Position{X: 5, Y: 0}
		errs := make([]error, 2)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i, p := range []*session.Player{p1, p2} {
			wg.Add(1)
			go func(i int, p *session.Player) {
				defer wg.Done()
				<-start
				_, errs[i] = s.Move(p, target)
			}(i, p)
		}
		close(start)
		wg.Wait()

		assert.True(t, (errs[0] == nil) != (errs[1] == nil), "exactly one mover wins: %v", errs)
		cell, _ := s.grid.CellAt(target.X, target.Y)
		assert.NotEqual(t, engine.NoOwner, cell.Owner)
		for _, e := range errs {
			if e != nil {
				assert.True(t, errors.Is(e, ErrInvalidMove))
			}
		}
	}
}

func TestServer_MoveAfterDepartureFails(t *testing.T) {
	s := newTestServer(t, fastOptions(), nil)
	p, err := s.join(discardConn{})
	require.NoError(t, err)

	s.leave(p)
	s.leave(p)

	_, err = s.Move(p, engine.Position{X: 1, Y: 0})
	assert.True(t, errors.Is(err, ErrPlayerGone))
	cell, _ := s.grid.CellAt(1, 0)
	assert.Equal(t, engine.NoOwner, cell.Owner)
	assert.Equal(t, 0, s.registry.Count())
}

func TestServer_SpawnFallsBackToNearestFreeCell(t *testing.T) {
	s := newTestServer(t, fastOptions(), nil)
	p1, err := s.join(discardConn{})
	require.NoError(t, err)

	// P1 parks on P2's corner; P2 spawns next to it.
	_, err = s.Move(p1, engine.Position{X: 9, Y: 0})
	require.NoError(t, err)

	p2, err := s.join(discardConn{})
	require.NoError(t, err)
	pos := p2.Position()
	assert.NotEqual(t, engine.Position{X: 9, Y: 0}, pos)
	assert.Equal(t, 1, engine.ManhattanDistance(pos, engine.Position{X: 9, Y: 0}))
	cell, _ := s.grid.CellAt(pos.X, pos.Y)
	assert.Equal(t, p2.ID, cell.Owner)
}

func TestServer_Inspection(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, fastOptions(), nil)
	p1, err := s.join(discardConn{})
	require.NoError(t, err)
	_, err = s.join(discardConn{})
	require.NoError(t, err)
	require.NoError(t, s.SetReady(p1.ID, true))

	info, err := s.Lobby(ctx)
	require.NoError(t, err)
	assert.Equal(t, lobby.Waiting, info.Phase)
	assert.Equal(t, 2, info.Players)
	assert.Equal(t, 4, info.Capacity)
	assert.Equal(t, []session.Readiness{{ID: "P1", Ready: true}, {ID: "P2", Ready: false}}, info.Roster)

	players, err := s.Players(ctx)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, engine.Position{X: 9, Y: 0}, players[1].Position)
	assert.True(t, players[0].Ready)
	assert.Equal(t, 1, players[0].Cells)

	board, err := s.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1........2", board.Layout[0])
	assert.Equal(t, 2, board.OwnedCells)
	assert.Equal(t, 100, board.OpenCells)

	standings, err := s.Standings(ctx)
	require.NoError(t, err)
	assert.False(t, standings.Final)
	assert.Equal(t, []engine.Standing{{PlayerID: "P1", Score: 1}, {PlayerID: "P2", Score: 1}}, standings.Standings)
	assert.Equal(t, engine.PlayerID("P1"), standings.Winner)
	assert.Equal(t, []engine.PlayerID{"P1", "P2"}, standings.Tied)

	boards, err := s.ListBoards(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "open", boards[0].ConfigID)

	rules := s.Rules(ctx)
	assert.Equal(t, 10, rules.GridSize)
	assert.Contains(t, rules.Commands, "READY")

	matches, err := s.Matches(ctx)
	require.NoError(t, err)
	assert.Empty(t, matches)
	_, err = s.Match(ctx, "nope")
	assert.True(t, errors.Is(err, record.ErrRecordNotFound))
}

func TestServer_ReloadBoards(t *testing.T) {
	dir := t.TempDir()
	writeBoard := func(name string) {
		data := `{"name":"` + name + `","grid_size":5,"layout":[".....",".#.#.",".....",".#.#.","....."]}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "pillars.json"), []byte(data), 0644))
	}
	writeBoard("Pillars")

	manager, err := config.NewManager(dir, 10)
	require.NoError(t, err)
	s, err := NewServer(nil, fastOptions(), nil, manager, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "open", s.Rules(context.Background()).Board, "a nil board falls back to the manager default")

	boardName := func(boards []*config.BoardInfo) string {
		for _, b := range boards {
			if b.ConfigID == "pillars" {
				return b.Name
			}
		}
		return ""
	}

	boards, err := s.ListBoards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pillars", boardName(boards))

	writeBoard("Pillars v2")
	boards, err = s.ListBoards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pillars", boardName(boards), "cached until reloaded")

	boards, err = s.ReloadBoards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pillars v2", boardName(boards))
}
