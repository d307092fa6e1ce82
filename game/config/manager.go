package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/gridclaim/game/engine"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// BoardInfo summarises one board file.
type BoardInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	GridSize    int    `json:"grid_size"`
	Walls       int    `json:"walls"`
}

// Manager handles board layout loading and caching
type Manager struct {
	configDir     string
	open          *engine.BoardConfig
	defaultConfig *engine.BoardConfig
	configs       map[string]*engine.BoardConfig
	mu            sync.RWMutex
}

// NewManager creates a board manager over configDir. A missing directory is
// not an error: only the built-in open board of gridSize is available then.
func NewManager(configDir string, gridSize int) (*Manager, error) {
	if gridSize == 0 {
		gridSize = engine.DefaultGridSize
	}
	open := engine.DefaultBoardConfig(gridSize)
	if err := engine.ValidateBoardConfig(open); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &Manager{
		configDir:     configDir,
		open:          open,
		defaultConfig: open,
		configs:       map[string]*engine.BoardConfig{open.Name: open},
	}, nil
}

// LoadConfig loads a board by config id (file name without .json).
func (m *Manager) LoadConfig(name string) (*engine.BoardConfig, error) {
	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, ErrConfigNotFound
	}

	m.mu.RLock()
	if config, exists := m.configs[name]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[name]; exists {
		return config, nil
	}
	if m.configDir == "" {
		return nil, ErrConfigNotFound
	}

	data, err := os.ReadFile(filepath.Join(m.configDir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := engine.ParseBoardConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}

	m.configs[name] = config
	return config, nil
}

// ListConfigs returns every valid board in the config directory plus the
// built-in open board, sorted by config id.
func (m *Manager) ListConfigs() ([]*BoardInfo, error) {
	boards := []*BoardInfo{infoFor("", m.open.Name, m.open)}
	if m.configDir == "" {
		return boards, nil
	}

	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return boards, nil
		}
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		if id == m.open.Name {
			continue
		}

		config, err := m.LoadConfig(id)
		if err != nil {
			// Skip invalid boards
			continue
		}
		boards = append(boards, infoFor(entry.Name(), id, config))
	}

	sort.Slice(boards, func(i, j int) bool { return boards[i].ConfigID < boards[j].ConfigID })
	return boards, nil
}

// GetDefault returns the default board
func (m *Manager) GetDefault() *engine.BoardConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default board by config id
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	return nil
}

// RefreshCache drops every cached board read from disk.
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configs = map[string]*engine.BoardConfig{m.open.Name: m.open}
}

func infoFor(filename, id string, config *engine.BoardConfig) *BoardInfo {
	return &BoardInfo{
		Filename:    filename,
		ConfigID:    id,
		Name:        config.Name,
		Description: config.Description,
		GridSize:    config.GridSize,
		Walls:       len(config.Walls()),
	}
}
