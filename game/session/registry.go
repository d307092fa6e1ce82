package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wricardo/gridclaim/game/engine"
)

var (
	ErrServerFull     = errors.New("server full")
	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerGone     = errors.New("player has left")
)

// DefaultCapacity matches the four spawn corners.
const DefaultCapacity = 4

// palette holds the per-slot display colors; slots past its end wrap around.
var palette = []string{
	"#FF0000",
	"#00FF00",
	"#0000FF",
	"#FFFF00",
	"#FF00FF",
	"#00FFFF",
	"#FF8000",
	"#8000FF",
}

// Player is a connected participant.
//
// ID, Slot, Color and JoinedAt never change after admission. The position is
// guarded by the player's own lock so a move and a departure can never
// interleave; the ready flag is guarded by the registry.
type Player struct {
	ID       engine.PlayerID
	Slot     int
	Color    string
	JoinedAt time.Time

	mu   sync.Mutex
	pos  engine.Position
	gone bool

	ready bool
}

// Position returns the player's current cell.
func (p *Player) Position() engine.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Gone reports whether the player has departed.
func (p *Player) Gone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gone
}

// Place sets the player's position without any board checks. It is used when
// the spawn cell is moved to the nearest free cell.
func (p *Player) Place(pos engine.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
}

// Move runs step with the current position under the player's lock. If step
// reports success its position becomes current. A departed player never moves.
func (p *Player) Move(step func(from engine.Position) (engine.Position, bool)) (engine.Position, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gone {
		return p.pos, false, ErrPlayerGone
	}
	to, ok := step(p.pos)
	if ok {
		p.pos = to
	}
	return p.pos, ok, nil
}

// Depart marks the player gone and runs release with its last position. It
// returns false if the player had already departed.
func (p *Player) Depart(release func(last engine.Position)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gone {
		return false
	}
	p.gone = true
	if release != nil {
		release(p.pos)
	}
	return true
}

// Readiness is one lobby roster entry.
type Readiness struct {
	ID    engine.PlayerID `json:"id"`
	Ready bool            `json:"ready"`
}

// Registry tracks connected players, their slots and readiness.
type Registry struct {
	players  map[engine.PlayerID]*Player
	slots    []bool
	gridSize int
	mu       sync.RWMutex
}

// NewRegistry creates a registry for up to capacity players on a gridSize board.
func NewRegistry(capacity, gridSize int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		players:  make(map[engine.PlayerID]*Player),
		slots:    make([]bool, capacity),
		gridSize: gridSize,
	}
}

// Admit assigns the lowest free slot, its id, spawn and color. Beyond capacity
// it returns ErrServerFull and changes nothing.
func (r *Registry) Admit() (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := -1
	for i, taken := range r.slots {
		if !taken {
			slot = i + 1
			break
		}
	}
	if slot == -1 {
		return nil, ErrServerFull
	}

	p := &Player{
		ID:       IDFor(slot),
		Slot:     slot,
		Color:    ColorFor(slot),
		JoinedAt: time.Now(),
		pos:      SpawnFor(slot, r.gridSize),
	}
	r.slots[slot-1] = true
	r.players[p.ID] = p
	return p, nil
}

// Remove deregisters a player and frees its slot for reuse.
func (r *Registry) Remove(id engine.PlayerID) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.players[id]
	if !exists {
		return nil, ErrPlayerNotFound
	}
	delete(r.players, id)
	r.slots[p.Slot-1] = false
	return p, nil
}

// Get retrieves a connected player.
func (r *Registry) Get(id engine.PlayerID) (*Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.players[id]
	if !exists {
		return nil, ErrPlayerNotFound
	}
	return p, nil
}

// List returns all connected players in slot order.
func (r *Registry) List() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Slot < result[j].Slot })
	return result
}

// Count returns the number of connected players.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Capacity returns the maximum number of players.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

// SetReady records a player's readiness.
func (r *Registry) SetReady(id engine.PlayerID, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.players[id]
	if !exists {
		return ErrPlayerNotFound
	}
	p.ready = ready
	return nil
}

// IsReady reports a player's readiness.
func (r *Registry) IsReady(id engine.PlayerID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.players[id]
	if !exists {
		return false, ErrPlayerNotFound
	}
	return p.ready, nil
}

// ClearReady marks every player not ready.
func (r *Registry) ClearReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		p.ready = false
	}
}

// Readiness returns the roster in slot order, taken at one instant.
func (r *Registry) Readiness() []Readiness {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := make([]Readiness, 0, len(r.players))
	for _, p := range r.players {
		roster = append(roster, Readiness{ID: p.ID, Ready: p.ready})
	}
	sort.Slice(roster, func(i, j int) bool { return engine.LessPlayerID(roster[i].ID, roster[j].ID) })
	return roster
}

// IDFor returns the player id for a slot.
func IDFor(slot int) engine.PlayerID {
	return engine.PlayerID(fmt.Sprintf("P%d", slot))
}

// ColorFor returns the deterministic display color of a slot.
func ColorFor(slot int) string {
	if slot < 1 {
		slot = 1
	}
	return palette[(slot-1)%len(palette)]
}

// SpawnFor returns the spawn cell of a slot: the four corners for slots 1-4,
// the center of the board after that.
func SpawnFor(slot, gridSize int) engine.Position {
	if slot >= 1 && slot <= 4 {
		return engine.Corners(gridSize)[slot-1]
	}
	return engine.Center(gridSize)
}
