package service

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wricardo/gridclaim/game/session"
	"github.com/wricardo/gridclaim/transport/protocol"
)

// Serve runs one client connection from admission to departure. It returns
// when the connection closes or ctx is cancelled, after the player has been
// removed and the connection closed. A full server replies SERVER_FULL,
// closes the connection and returns session.ErrServerFull.
func (s *Server) Serve(ctx context.Context, conn Conn) error {
	logger := s.logger.With(
		zap.String("conn_id", uuid.NewString()),
		zap.String("remote", conn.RemoteAddr()),
	)

	player, err := s.join(conn)
	if err != nil {
		if errors.Is(err, session.ErrServerFull) {
			logger.Info("connection rejected, server full")
			conn.WriteFrame(protocol.EvServerFull)
		} else {
			logger.Error("admission failed", zap.Error(err))
		}
		conn.Close()
		return err
	}

	logger = logger.With(zap.String("player_id", string(player.ID)))
	logger.Info("player joined",
		zap.Int("slot", player.Slot),
		zap.Any("spawn", player.Position()),
		zap.String("phase", s.lobby.Phase().String()))

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.leave(player)
			conn.Close()
			logger.Info("player left", zap.String("phase", s.lobby.Phase().String()))
		})
	}
	defer cleanup()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	limiter := rate.NewLimiter(s.opts.CommandRate, s.opts.CommandBurst)
	for {
		line, err := conn.ReadFrame()
		if errors.Is(err, protocol.ErrFrameTooLong) {
			logger.Debug("oversized frame discarded", zap.Error(err))
			s.hub.Unicast(player.ID, protocol.EvUnknownCommand)
			continue
		}
		if err != nil {
			if isClosed(err) || ctx.Err() != nil {
				return nil
			}
			logger.Debug("read failed", zap.Error(err))
			return err
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		s.HandleLine(player, line, logger)
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
