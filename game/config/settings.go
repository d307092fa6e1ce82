package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/wricardo/gridclaim/game/engine"
)

// Settings holds the server's runtime configuration.
type Settings struct {
	GameAddr         string        `env:"GRIDCLAIM_GAME_ADDR"          envDefault:":12345"`
	HTTPAddr         string        `env:"GRIDCLAIM_HTTP_ADDR"          envDefault:":8080"`
	GridSize         int           `env:"GRIDCLAIM_GRID_SIZE"          envDefault:"10"`
	MaxPlayers       int           `env:"GRIDCLAIM_MAX_PLAYERS"        envDefault:"4"`
	GameDuration     time.Duration `env:"GRIDCLAIM_GAME_DURATION"      envDefault:"3m"`
	CountdownSeconds int           `env:"GRIDCLAIM_COUNTDOWN_SECONDS"  envDefault:"3"`
	TickInterval     time.Duration `env:"GRIDCLAIM_TICK_INTERVAL"      envDefault:"1s"`
	EndCheckInterval time.Duration `env:"GRIDCLAIM_END_CHECK_INTERVAL" envDefault:"1s"`
	Board            string        `env:"GRIDCLAIM_BOARD"              envDefault:"open"`
	ConfigDir        string        `env:"GRIDCLAIM_CONFIG_DIR"         envDefault:"configs"`
	ResultsDir       string        `env:"GRIDCLAIM_RESULTS_DIR"        envDefault:"results"`
	CommandRate      float64       `env:"GRIDCLAIM_COMMAND_RATE"       envDefault:"20"`
	CommandBurst     int           `env:"GRIDCLAIM_COMMAND_BURST"      envDefault:"10"`
	OutboundBuffer   int           `env:"GRIDCLAIM_OUTBOUND_BUFFER"    envDefault:"256"`
	Debug            bool          `env:"GRIDCLAIM_DEBUG"`
	Ngrok            bool          `env:"GRIDCLAIM_NGROK"`
	NgrokAuthToken   string        `env:"NGROK_AUTHTOKEN"`
}

// LoadSettings reads Settings from the environment and validates them.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	switch {
	case s.GameAddr == "":
		return fmt.Errorf("%w: game address is required", ErrInvalidConfig)
	case s.GridSize < engine.MinGridSize || s.GridSize > engine.MaxGridSize:
		return fmt.Errorf("%w: grid size must be between %d and %d, got %d",
			ErrInvalidConfig, engine.MinGridSize, engine.MaxGridSize, s.GridSize)
	case s.MaxPlayers < 1:
		return fmt.Errorf("%w: max players must be at least 1, got %d", ErrInvalidConfig, s.MaxPlayers)
	case s.MaxPlayers > s.GridSize*s.GridSize:
		return fmt.Errorf("%w: %d players cannot fit on a %dx%d board",
			ErrInvalidConfig, s.MaxPlayers, s.GridSize, s.GridSize)
	case s.GameDuration <= 0:
		return fmt.Errorf("%w: game duration must be positive", ErrInvalidConfig)
	case s.CountdownSeconds < 0:
		return fmt.Errorf("%w: countdown cannot be negative", ErrInvalidConfig)
	case s.TickInterval <= 0 || s.EndCheckInterval <= 0:
		return fmt.Errorf("%w: tick intervals must be positive", ErrInvalidConfig)
	case s.CommandRate <= 0 || s.CommandBurst < 1:
		return fmt.Errorf("%w: command rate and burst must be positive", ErrInvalidConfig)
	case s.Ngrok && s.NgrokAuthToken == "":
		return fmt.Errorf("%w: ngrok requires NGROK_AUTHTOKEN", ErrInvalidConfig)
	}
	return nil
}

// ValidateBoard checks that every player slot can hold a cell on board.
func (s Settings) ValidateBoard(board *engine.BoardConfig) error {
	open := board.GridSize*board.GridSize - len(board.Walls())
	if s.MaxPlayers > open {
		return fmt.Errorf("%w: %d players cannot fit on board %q with %d open cells",
			ErrInvalidConfig, s.MaxPlayers, board.Name, open)
	}
	return nil
}
