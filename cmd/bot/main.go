// Command bot connects scripted players to a running game server for manual
// load testing. Each bot readies up on arrival and wanders the board once the
// game starts; the command exits when every bot has seen GAME_OVER.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "bot",
		Usage: "connect scripted players to a game server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:12345", Usage: "game server address"},
			&cli.IntFlag{Name: "bots", Value: 4, Usage: "number of players to connect"},
			&cli.IntFlag{Name: "grid-size", Value: 10, Usage: "board size, used to keep moves on the board"},
			&cli.DurationFlag{Name: "interval", Value: 200 * time.Millisecond, Usage: "delay between moves"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "random seed"},
			&cli.BoolFlag{Name: "v", Usage: "verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			if !cmd.Bool("v") {
				logger = logger.WithOptions(zap.IncreaseLevel(zap.InfoLevel))
			}
			defer logger.Sync()

			opts := Options{
				GridSize: int(cmd.Int("grid-size")),
				Interval: cmd.Duration("interval"),
			}
			return runBots(ctx, cmd.String("addr"), int(cmd.Int("bots")), uint64(cmd.Int("seed")), opts, logger)
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBots(ctx context.Context, addr string, n int, seed uint64, opts Options, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]Stats, n)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			var d net.Dialer
			conn, err := d.DialContext(gctx, "tcp", addr)
			if err != nil {
				return fmt.Errorf("bot %d: %w", i+1, err)
			}
			botOpts := opts
			botOpts.Seed = seed + uint64(i)
			stats, err := NewBot(conn, botOpts, logger.With(zap.Int("bot", i+1))).Run(gctx)
			results[i] = stats
			if err != nil {
				return fmt.Errorf("bot %d: %w", i+1, err)
			}
			return nil
		})
	}

	err := g.Wait()
	for _, s := range results {
		if s.ID == "" {
			continue
		}
		fmt.Printf("%s: moves=%d confirmed=%d rejected=%d winner=%s\n",
			s.ID, s.Moves, s.Confirmed, s.Rejected, s.Winner)
	}
	return err
}
