// Command gridclaim starts the grid capture game server.
//
// It supports two modes:
//  1. default: runs the game listener (line protocol over TCP), the HTTP server
//     exposing the REST API, the WebSocket transport at /ws and an /mcp endpoint
//  2. "mcp": runs an MCP stdio server that proxies to a running server's REST API
//
// Settings come from GRIDCLAIM_* environment variables (optionally loaded from
// a .env file); flags override them. With --ngrok the game listener is also
// published through an ngrok TCP tunnel.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wricardo/gridclaim/api"
	"github.com/wricardo/gridclaim/game/config"
	"github.com/wricardo/gridclaim/game/lobby"
	"github.com/wricardo/gridclaim/game/record"
	"github.com/wricardo/gridclaim/game/service"
	"github.com/wricardo/gridclaim/transport/mcp"
	"github.com/wricardo/gridclaim/transport/tcp"
	"github.com/wricardo/gridclaim/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Grid Claim Server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is fine; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "gridclaim",
		Usage:   "authoritative server for the grid capture game",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "game-addr", Usage: "address of the game (line protocol) listener"},
			&cli.StringFlag{Name: "http-addr", Usage: "address of the HTTP server (REST, /ws, /mcp)"},
			&cli.IntFlag{Name: "grid-size", Usage: "board size for the built-in open board"},
			&cli.IntFlag{Name: "max-players", Usage: "maximum number of connected players"},
			&cli.DurationFlag{Name: "duration", Usage: "game duration once started"},
			&cli.IntFlag{Name: "countdown", Usage: "countdown seconds before a game starts"},
			&cli.StringFlag{Name: "board", Usage: "board layout to play on"},
			&cli.StringFlag{Name: "config-dir", Usage: "directory containing board layouts"},
			&cli.StringFlag{Name: "results-dir", Usage: "directory for match records (empty disables)"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "publish the game listener through an ngrok TCP tunnel"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			settings, err := settingsFromCommand(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(settings.Debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return runServer(ctx, settings, logger)
		},
		Commands: []*cli.Command{
			{
				Name:  "mcp",
				Usage: "run an MCP stdio server against a running server's REST API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Value: "http://localhost:8080", Usage: "base URL of the REST API"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					client := mcp.NewClient(cmd.String("api-url"))
					return server.ServeStdio(client.GetMCPServer())
				},
			},
		},
	}
}

// settingsFromCommand loads settings from the environment and applies any
// flags that were set explicitly.
func settingsFromCommand(cmd *cli.Command) (config.Settings, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return config.Settings{}, err
	}

	if cmd.IsSet("game-addr") {
		settings.GameAddr = cmd.String("game-addr")
	}
	if cmd.IsSet("http-addr") {
		settings.HTTPAddr = cmd.String("http-addr")
	}
	if cmd.IsSet("grid-size") {
		settings.GridSize = int(cmd.Int("grid-size"))
	}
	if cmd.IsSet("max-players") {
		settings.MaxPlayers = int(cmd.Int("max-players"))
	}
	if cmd.IsSet("duration") {
		settings.GameDuration = cmd.Duration("duration")
	}
	if cmd.IsSet("countdown") {
		settings.CountdownSeconds = int(cmd.Int("countdown"))
	}
	if cmd.IsSet("board") {
		settings.Board = cmd.String("board")
	}
	if cmd.IsSet("config-dir") {
		settings.ConfigDir = cmd.String("config-dir")
	}
	if cmd.IsSet("results-dir") {
		settings.ResultsDir = cmd.String("results-dir")
	}
	if cmd.IsSet("debug") {
		settings.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("ngrok") {
		settings.Ngrok = cmd.Bool("ngrok")
	}

	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildServer wires the board, match recorder and game server from settings.
func buildServer(settings config.Settings, logger *zap.Logger) (*service.Server, error) {
	configs, err := config.NewManager(settings.ConfigDir, settings.GridSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if err := configs.SetDefault(settings.Board); err != nil {
		return nil, fmt.Errorf("failed to load board %q: %w", settings.Board, err)
	}
	board := configs.GetDefault()
	if err := settings.ValidateBoard(board); err != nil {
		return nil, err
	}

	var recorder record.Recorder = record.Discard{}
	if settings.ResultsDir != "" {
		recorder, err = record.NewFileRecorder(settings.ResultsDir)
		if err != nil {
			return nil, err
		}
	}

	opts := service.Options{
		MaxPlayers: settings.MaxPlayers,
		Lobby: lobby.Options{
			CountdownSeconds: settings.CountdownSeconds,
			TickInterval:     settings.TickInterval,
			Duration:         settings.GameDuration,
		},
		EndCheckInterval: settings.EndCheckInterval,
		CommandRate:      rate.Limit(settings.CommandRate),
		CommandBurst:     settings.CommandBurst,
		OutboundBuffer:   settings.OutboundBuffer,
	}
	return service.NewServer(board, opts, recorder, configs, logger)
}

// runServer runs the game listener, the HTTP server, the end-of-game loop and
// the optional ngrok tunnel until ctx is cancelled or one of them fails.
func runServer(ctx context.Context, settings config.Settings, logger *zap.Logger) error {
	gameServer, err := buildServer(settings, logger)
	if err != nil {
		return err
	}
	defer gameServer.Close()

	gameLn, err := net.Listen("tcp", settings.GameAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", settings.GameAddr, err)
	}
	httpLn, err := net.Listen("tcp", settings.HTTPAddr)
	if err != nil {
		gameLn.Close()
		return fmt.Errorf("failed to listen on %s: %w", settings.HTTPAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	httpServer := &http.Server{
		Handler:     newHTTPHandler(gameServer, localBaseURL(httpLn.Addr()), logger),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return gctx },
	}
	handler := gameHandler(gameServer)

	logger.Info("starting",
		zap.String("app", AppName),
		zap.String("version", Version),
		zap.String("game_addr", gameLn.Addr().String()),
		zap.String("http_addr", httpLn.Addr().String()),
		zap.String("board", settings.Board),
		zap.Int("max_players", settings.MaxPlayers),
		zap.Duration("duration", settings.GameDuration),
	)

	g.Go(func() error {
		return gameServer.Run(gctx)
	})
	g.Go(func() error {
		return tcp.Serve(gctx, gameLn, handler, logger.Named("tcp"))
	})
	g.Go(func() error {
		if err := httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", zap.Error(err))
		}
		gameServer.Close()
		return nil
	})
	if settings.Ngrok {
		g.Go(func() error {
			return runNgrok(gctx, settings.NgrokAuthToken, handler, logger.Named("ngrok"))
		})
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// runNgrok publishes the game protocol through an ngrok TCP endpoint and
// serves it with the same connection handler as the local listener.
func runNgrok(ctx context.Context, authToken string, handler tcp.Handler, logger *zap.Logger) error {
	tun, err := ngrok.Listen(ctx,
		ngrokConfig.TCPEndpoint(),
		ngrok.WithAuthtoken(authToken),
	)
	if err != nil {
		return fmt.Errorf("failed to start ngrok tunnel: %w", err)
	}
	defer tun.Close()

	logger.Info("ngrok tunnel established", zap.String("url", tun.URL()))
	return tcp.Serve(ctx, tun, handler, logger)
}

func gameHandler(gameServer *service.Server) tcp.Handler {
	return func(ctx context.Context, conn *tcp.Conn) error {
		return gameServer.Serve(ctx, conn)
	}
}

// newHTTPHandler mounts the REST API, the WebSocket transport and the MCP
// endpoint. The MCP tools call back into the REST API at baseURL.
func newHTTPHandler(gameServer *service.Server, baseURL string, logger *zap.Logger) http.Handler {
	ws := websocket.NewHandler(func(ctx context.Context, conn *websocket.Conn) error {
		return gameServer.Serve(ctx, conn)
	}, logger.Named("websocket"))

	apiServer := api.NewServer(gameServer, ws)
	apiServer.Router().Handle("/mcp", mcpHandler(mcp.NewClient(baseURL))).Methods("POST")
	return apiServer
}

// mcpHandler answers one JSON-RPC message per POST.
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// localBaseURL turns a listener address into a URL reachable from this
// process, so ":8080" and "0.0.0.0:8080" both become http://localhost:8080.
func localBaseURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
