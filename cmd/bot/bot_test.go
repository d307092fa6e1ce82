package main

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/gridclaim/game/engine"
	"github.com/wricardo/gridclaim/game/lobby"
	"github.com/wricardo/gridclaim/game/service"
	"github.com/wricardo/gridclaim/transport/protocol"
	"github.com/wricardo/gridclaim/transport/tcp"
)

func newGameServer(t *testing.T, maxPlayers int, duration time.Duration) *service.Server {
	t.Helper()
	opts := service.DefaultOptions()
	opts.MaxPlayers = maxPlayers
	opts.Lobby = lobby.Options{CountdownSeconds: 0, TickInterval: 10 * time.Millisecond, Duration: duration}
	opts.EndCheckInterval = 10 * time.Millisecond
	opts.CommandRate = 0

	s, err := service.NewServer(engine.DefaultBoardConfig(5), opts, nil, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func pipeTo(ctx context.Context, s *service.Server) net.Conn {
	client, server := net.Pipe()
	go s.Serve(ctx, tcp.NewConn(server))
	return client
}

func TestBot_PlaysUntilGameOver(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := newGameServer(t, 4, 300*time.Millisecond)
	go s.Run(ctx)

	bot := NewBot(pipeTo(ctx, s), Options{GridSize: 5, Interval: 10 * time.Millisecond, Seed: 7}, zaptest.NewLogger(t))
	stats, err := bot.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, engine.PlayerID("P1"), stats.ID)
	assert.Equal(t, engine.PlayerID("P1"), stats.Winner, "a lone player wins")
	assert.Equal(t, 1, stats.Score)
	assert.Greater(t, stats.Moves, 0)
	assert.LessOrEqual(t, stats.Confirmed+stats.Rejected, stats.Moves)
}

func TestBot_ServerFull(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := newGameServer(t, 1, time.Hour)

	occupant := pipeTo(ctx, s)
	defer occupant.Close()
	line, err := bufio.NewReader(occupant).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, protocol.EvAssignPlayer, protocol.ParseEvent(line).Name)

	_, err = NewBot(pipeTo(ctx, s), Options{GridSize: 5}, zaptest.NewLogger(t)).Run(ctx)
	assert.ErrorIs(t, err, errServerFull)
}

func TestBot_StepStaysOnBoard(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	bot := NewBot(client, Options{GridSize: 2, Seed: 3}, nil)
	bot.pos = engine.Position{X: 0, Y: 0}

	reader := bufio.NewReader(server)
	for i := 0; i < 20; i++ {
		errc := make(chan error, 1)
		go func() { errc <- bot.step() }()

		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		require.NoError(t, <-errc)

		cmd, err := protocol.ParseCommand(line)
		require.NoError(t, err)
		assert.Contains(t, []engine.Position{{X: 1, Y: 0}, {X: 0, Y: 1}}, cmd.Target)
	}
	assert.Equal(t, 20, bot.stats.Moves)
}

func TestBot_HandleEvents(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	go io.Copy(io.Discard, server)

	bot := NewBot(client, Options{GridSize: 10}, nil)

	done, err := bot.handle(protocol.ParseEvent(protocol.AssignPlayer("P2", engine.Position{X: 9, Y: 0}, "#00FF00")))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, engine.PlayerID("P2"), bot.stats.ID)
	assert.Equal(t, engine.Position{X: 9, Y: 0}, bot.pos)

	bot.handle(protocol.ParseEvent(protocol.EvGameStarted))
	assert.True(t, bot.playing)

	bot.handle(protocol.ParseEvent(protocol.MoveConfirmed("P1", engine.Position{X: 1, Y: 0})))
	assert.Equal(t, engine.Position{X: 9, Y: 0}, bot.pos, "other players' confirmations are ignored")

	bot.handle(protocol.ParseEvent(protocol.MoveConfirmed("P2", engine.Position{X: 8, Y: 0})))
	assert.Equal(t, engine.Position{X: 8, Y: 0}, bot.pos)

	bot.handle(protocol.ParseEvent(protocol.EvInvalidMove))
	assert.Equal(t, 1, bot.stats.Rejected)

	done, err = bot.handle(protocol.ParseEvent(protocol.GameOver([]engine.Standing{{PlayerID: "P2", Score: 3}})))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, engine.PlayerID("P2"), bot.stats.Winner)
	assert.Equal(t, 3, bot.stats.Score)
}
