// Package record persists the results of finished games as JSON files.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/gridclaim/game/engine"
)

var ErrRecordNotFound = errors.New("match record not found")

// Match is the stored result of one game.
type Match struct {
	ID        string            `json:"id"`
	Board     string            `json:"board"`
	GridSize  int               `json:"grid_size"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
	Reason    string            `json:"reason"`
	Winner    engine.PlayerID   `json:"winner,omitempty"`
	Tied      []engine.PlayerID `json:"tied,omitempty"`
	Standings []engine.Standing `json:"standings"`
}

// NewMatch fills in a fresh id and the winner from the standings.
func NewMatch(board string, gridSize int, startedAt, endedAt time.Time, reason string, standings []engine.Standing) Match {
	m := Match{
		ID:        uuid.NewString(),
		Board:     board,
		GridSize:  gridSize,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Reason:    reason,
		Standings: standings,
	}
	if w, ok := engine.Winner(standings); ok {
		m.Winner = w.PlayerID
	}
	m.Tied = engine.Tied(standings)
	if m.Standings == nil {
		m.Standings = []engine.Standing{}
	}
	return m
}

// Recorder stores and retrieves match records.
type Recorder interface {
	Save(m Match) error
	List() ([]Match, error)
	Get(id string) (Match, error)
}

// FileRecorder keeps one JSON file per match in a directory.
type FileRecorder struct {
	dir string
}

// NewFileRecorder creates the results directory if needed.
func NewFileRecorder(dir string) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &FileRecorder{dir: dir}, nil
}

// Save writes a record atomically: to a temp file first, then renamed.
func (fr *FileRecorder) Save(m Match) error {
	if m.ID == "" {
		return fmt.Errorf("match id cannot be empty")
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal match record: %w", err)
	}

	tmp, err := os.CreateTemp(fr.dir, ".match-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write match record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close match record: %w", err)
	}

	if err := os.Rename(tmpName, fr.path(m.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to store match record: %w", err)
	}
	return nil
}

// List returns every stored record, most recent first.
func (fr *FileRecorder) List() ([]Match, error) {
	entries, err := os.ReadDir(fr.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	matches := make([]Match, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		m, err := fr.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].EndedAt.After(matches[j].EndedAt) })
	return matches, nil
}

// Get loads one record by match id.
func (fr *FileRecorder) Get(id string) (Match, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return Match{}, ErrRecordNotFound
	}

	data, err := os.ReadFile(fr.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return Match{}, ErrRecordNotFound
	}
	if err != nil {
		return Match{}, fmt.Errorf("failed to read match record: %w", err)
	}

	var m Match
	if err := json.Unmarshal(data, &m); err != nil {
		return Match{}, fmt.Errorf("failed to unmarshal match record %s: %w", id, err)
	}
	return m, nil
}

func (fr *FileRecorder) path(id string) string {
	return filepath.Join(fr.dir, id+".json")
}

// Discard is a Recorder that keeps nothing.
type Discard struct{}

func (Discard) Save(Match) error          { return nil }
func (Discard) List() ([]Match, error)    { return []Match{}, nil }
func (Discard) Get(string) (Match, error) { return Match{}, ErrRecordNotFound }
