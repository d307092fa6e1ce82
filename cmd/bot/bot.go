package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/gridclaim/game/engine"
	"github.com/wricardo/gridclaim/transport/protocol"
	"github.com/wricardo/gridclaim/transport/tcp"
)

var errServerFull = errors.New("server full")

// Options tune a bot's behaviour.
type Options struct {
	GridSize int
	Interval time.Duration
	Seed     uint64
}

// Stats summarises one bot's game.
type Stats struct {
	ID        engine.PlayerID
	Moves     int
	Confirmed int
	Rejected  int
	Winner    engine.PlayerID
	Score     int
}

// Bot is a scripted player: it readies up as soon as it is assigned, then
// wanders to a random neighbouring cell every interval until the game ends.
type Bot struct {
	conn   *tcp.Conn
	opts   Options
	rng    *rand.Rand
	logger *zap.Logger

	pos     engine.Position
	playing bool
	stats   Stats
}

// NewBot takes ownership of conn.
func NewBot(conn net.Conn, opts Options, logger *zap.Logger) *Bot {
	if opts.Interval <= 0 {
		opts.Interval = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		conn:   tcp.NewConn(conn),
		opts:   opts,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		logger: logger,
	}
}

// Run plays until GAME_OVER or until the connection ends.
func (b *Bot) Run(ctx context.Context) (Stats, error) {
	defer b.conn.Close()
	stop := context.AfterFunc(ctx, func() { b.conn.Close() })
	defer stop()

	done := make(chan struct{})
	defer close(done)
	events := make(chan protocol.Event, 64)
	readErr := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			line, err := b.conn.ReadFrame()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case events <- protocol.ParseEvent(line):
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(b.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				err := <-readErr
				if ctx.Err() != nil {
					return b.stats, ctx.Err()
				}
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return b.stats, fmt.Errorf("connection lost: %w", err)
			}
			finished, err := b.handle(ev)
			if err != nil || finished {
				return b.stats, err
			}
		case <-ticker.C:
			if b.playing {
				if err := b.step(); err != nil {
					return b.stats, err
				}
			}
		}
	}
}

// handle applies one server event and reports whether the game is over.
func (b *Bot) handle(ev protocol.Event) (bool, error) {
	switch ev.Name {
	case protocol.EvAssignPlayer:
		b.stats.ID = engine.PlayerID(ev.Arg(0))
		b.pos = positionArgs(ev, 1)
		b.logger = b.logger.With(zap.String("player_id", string(b.stats.ID)))
		b.logger.Info("assigned", zap.Int("x", b.pos.X), zap.Int("y", b.pos.Y))
		return false, b.conn.WriteFrame(protocol.CmdReady)

	case protocol.EvServerFull:
		return true, errServerFull

	case protocol.EvGameStarted:
		b.playing = true
		b.logger.Info("game started")

	case protocol.EvCountdownAborted:
		b.logger.Debug("countdown aborted")

	case protocol.EvMoveConfirmed:
		if engine.PlayerID(ev.Arg(0)) == b.stats.ID {
			b.pos = positionArgs(ev, 1)
			b.stats.Confirmed++
		}

	case protocol.EvInvalidMove:
		b.stats.Rejected++

	case protocol.EvGameOver:
		b.playing = false
		b.stats.Winner = engine.PlayerID(ev.Arg(0))
		b.stats.Score, _ = ev.Int(1)
		b.logger.Info("game over",
			zap.String("winner", string(b.stats.Winner)),
			zap.Int("moves", b.stats.Moves),
			zap.Int("confirmed", b.stats.Confirmed),
			zap.Int("rejected", b.stats.Rejected),
		)
		return true, nil
	}
	return false, nil
}

// step asks for a random neighbouring cell that lies on the board.
func (b *Bot) step() error {
	dirs := [4]engine.Position{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}
	b.rng.Shuffle(len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })

	for _, d := range dirs {
		next := engine.Position{X: b.pos.X + d.X, Y: b.pos.Y + d.Y}
		if next.X < 0 || next.Y < 0 || (b.opts.GridSize > 0 && (next.X >= b.opts.GridSize || next.Y >= b.opts.GridSize)) {
			continue
		}
		b.stats.Moves++
		return b.conn.WriteFrame(protocol.Move(next.X, next.Y))
	}
	return nil
}

func positionArgs(ev protocol.Event, i int) engine.Position {
	x, _ := ev.Int(i)
	y, _ := ev.Int(i + 1)
	return engine.Position{X: x, Y: y}
}
