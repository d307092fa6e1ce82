package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler serves one framed connection until it closes.
type Handler func(ctx context.Context, conn *Conn) error

// Serve accepts connections from ln and runs handler for each in its own
// goroutine. It returns nil once ctx is cancelled and every handler has
// returned, or the first non-temporary accept error.
func Serve(ctx context.Context, ln net.Listener, handler Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	logger.Info("accepting game connections", zap.String("addr", ln.Addr().String()))

	var backoff time.Duration
	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				logger.Warn("accept failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			return err
		}
		backoff = 0

		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := NewConn(raw)
			if err := handler(ctx, conn); err != nil {
				logger.Debug("connection ended with error", zap.String("remote", conn.RemoteAddr()), zap.Error(err))
			}
			conn.Close()
		}()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
