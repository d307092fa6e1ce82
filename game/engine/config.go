package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	// Layout characters
	OpenChar = '.'
	WallChar = '#'
)

// BoardConfig describes a square board and its permanent walls, loaded from JSON.
type BoardConfig struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	GridSize    int      `json:"grid_size"`
	Layout      []string `json:"layout,omitempty"`
}

// ValidateBoardConfig validates a board configuration for correctness and playability
func ValidateBoardConfig(config *BoardConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidBoard)
	}
	if config.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBoard)
	}

	if config.GridSize < MinGridSize || config.GridSize > MaxGridSize {
		return fmt.Errorf("%w: grid_size must be between %d and %d, got %d", ErrInvalidBoard, MinGridSize, MaxGridSize, config.GridSize)
	}

	// An empty layout means an open board.
	if len(config.Layout) == 0 {
		return nil
	}

	if len(config.Layout) != config.GridSize {
		return fmt.Errorf("%w: layout must have %d rows to match grid_size, got %d",
			ErrInvalidBoard, config.GridSize, len(config.Layout))
	}
	for i, row := range config.Layout {
		if len(row) != config.GridSize {
			return fmt.Errorf("%w: row %d must have %d characters to match grid_size, got %d",
				ErrInvalidBoard, i+1, config.GridSize, len(row))
		}
		for j, char := range row {
			if char != OpenChar && char != WallChar {
				return fmt.Errorf("%w: invalid character '%c' at row %d, col %d", ErrInvalidBoard, char, i+1, j+1)
			}
		}
	}

	// Spawn corners must be enterable.
	for _, c := range Corners(config.GridSize) {
		if config.Layout[c.Y][c.X] == WallChar {
			return fmt.Errorf("%w: spawn corner (%d,%d) is a wall", ErrInvalidBoard, c.X, c.Y)
		}
	}

	return nil
}

// Walls lists the wall positions of a layout.
func (c *BoardConfig) Walls() []Position {
	var walls []Position
	for y, row := range c.Layout {
		for x, char := range row {
			if char == WallChar {
				walls = append(walls, Position{X: x, Y: y})
			}
		}
	}
	return walls
}

// NewGridFromConfig validates the config and builds its grid.
func NewGridFromConfig(config *BoardConfig) (*Grid, error) {
	if err := ValidateBoardConfig(config); err != nil {
		return nil, err
	}
	return NewGrid(config.GridSize, config.Walls())
}

// DefaultBoardConfig is an open board of the given size.
func DefaultBoardConfig(size int) *BoardConfig {
	return &BoardConfig{
		Name:        "open",
		Description: fmt.Sprintf("Open %dx%d board with no walls", size, size),
		GridSize:    size,
	}
}

// LoadBoardConfig loads a board configuration from a JSON file
func LoadBoardConfig(filename string) (*BoardConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseBoardConfig(data)
}

// ParseBoardConfig decodes and validates a JSON board configuration.
func ParseBoardConfig(data []byte) (*BoardConfig, error) {
	var config BoardConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse board config: %w", err)
	}
	if err := ValidateBoardConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// RenderLayout draws an owner snapshot as text rows: '#' walls, '.' free
// cells, and the slot digit of the owner otherwise ('+' past slot 9).
func RenderLayout(cells [][]Cell) []string {
	rows := make([]string, len(cells))
	for y, row := range cells {
		var b strings.Builder
		for _, c := range row {
			switch {
			case c.Wall:
				b.WriteRune(WallChar)
			case c.Owner == NoOwner:
				b.WriteRune(OpenChar)
			default:
				n, ok := slotNumber(c.Owner)
				if ok && n >= 0 && n <= 9 {
					b.WriteByte(byte('0' + n))
				} else {
					b.WriteByte('+')
				}
			}
		}
		rows[y] = b.String()
	}
	return rows
}
