package lobby

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/gridclaim/game/engine"
	"github.com/wricardo/gridclaim/game/session"
	"github.com/wricardo/gridclaim/transport/protocol"
)

// Phase is the lifecycle state of the session.
type Phase int

const (
	Waiting Phase = iota
	CountingDown
	InProgress
	GameOver
)

func (p Phase) String() string {
	switch p {
	case Waiting:
		return "waiting"
	case CountingDown:
		return "counting_down"
	case InProgress:
		return "in_progress"
	case GameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase name for JSON responses.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{Waiting, CountingDown, InProgress, GameOver} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// EndReason tells why a game finished.
type EndReason string

const (
	EndTimeUp    EndReason = "time_up"
	EndBoardFull EndReason = "board_full"
)

// Roster is the view of connected players the machine decides on.
type Roster interface {
	Readiness() []session.Readiness
	ClearReady()
}

// Board is the part of the cell store the machine drives.
type Board interface {
	Full() bool
	Freeze() [][]engine.PlayerID
	Reset()
}

// Notifier receives broadcast frames. Broadcast must not block.
type Notifier interface {
	Broadcast(frame string)
}

// Options tunes the machine's timing.
type Options struct {
	CountdownSeconds int
	TickInterval     time.Duration
	Duration         time.Duration
}

// DefaultOptions returns the standard 3 second countdown and 3 minute game.
func DefaultOptions() Options {
	return Options{
		CountdownSeconds: 3,
		TickInterval:     time.Second,
		Duration:         3 * time.Minute,
	}
}

// Result describes a finished game.
type Result struct {
	StartedAt time.Time
	EndedAt   time.Time
	Reason    EndReason
	Standings []engine.Standing
}

// Snapshot is a point-in-time view of the machine.
type Snapshot struct {
	Phase     Phase               `json:"phase"`
	Remaining int                 `json:"countdown_remaining,omitempty"`
	StartedAt *time.Time          `json:"started_at,omitempty"`
	EndsAt    *time.Time          `json:"ends_at,omitempty"`
	Roster    []session.Readiness `json:"roster"`
	Standings []engine.Standing   `json:"standings,omitempty"`
}

// Machine is the lobby phase machine.
type Machine struct {
	roster   Roster
	board    Board
	notifier Notifier
	opts     Options
	logger   *zap.Logger

	mu         sync.Mutex
	phase      Phase
	remaining  int
	generation uint64
	startedAt  time.Time
	standings  []engine.Standing

	closed   bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMachine creates a machine in the Waiting phase.
func NewMachine(roster Roster, board Board, notifier Notifier, opts Options, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.CountdownSeconds < 0 {
		opts.CountdownSeconds = 0
	}
	return &Machine{
		roster:   roster,
		board:    board,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		phase:    Waiting,
		stop:     make(chan struct{}),
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// AcceptingMoves reports whether moves may still change the board.
func (m *Machine) AcceptingMoves() bool {
	return m.Phase() != GameOver
}

// Reevaluate is called after any readiness change, join or departure. While
// the lobby is open it broadcasts the roster, starts the countdown once every
// connected player is ready, and aborts a running countdown as soon as one is
// not.
func (m *Machine) Reevaluate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	roster := m.roster.Readiness()
	switch m.phase {
	case Waiting:
		m.notifier.Broadcast(lobbyFrame(roster))
		if allReady(roster) {
			m.beginCountdownLocked()
		}
	case CountingDown:
		if !allReady(roster) {
			m.abortLocked(roster)
			return
		}
		m.notifier.Broadcast(lobbyFrame(roster))
	}
}

// Departed is called after a player has been removed. A running countdown is
// always aborted. A departure never starts a countdown on its own, even when
// everyone left behind is ready.
func (m *Machine) Departed() {
	m.mu.Lock()
	defer m.mu.Unlock()

	roster := m.roster.Readiness()
	switch m.phase {
	case Waiting:
		m.notifier.Broadcast(lobbyFrame(roster))
	case CountingDown:
		m.abortLocked(roster)
	}
}

// LobbyFrame returns the current LOBBY_STATE frame, for INIT_STATE replies.
func (m *Machine) LobbyFrame() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lobbyFrame(m.roster.Readiness())
}

func (m *Machine) beginCountdownLocked() {
	if m.closed {
		return
	}
	m.generation++
	if m.opts.CountdownSeconds == 0 {
		m.startLocked()
		return
	}
	m.phase = CountingDown
	m.remaining = m.opts.CountdownSeconds
	m.logger.Info("countdown started", zap.Int("seconds", m.remaining))
	m.notifier.Broadcast(protocol.Countdown(m.remaining))

	m.wg.Add(1)
	go m.countdown(m.generation)
}

func (m *Machine) abortLocked(roster []session.Readiness) {
	m.generation++
	m.phase = Waiting
	m.remaining = 0
	m.logger.Info("countdown aborted")
	m.notifier.Broadcast(protocol.EvCountdownAborted)
	m.notifier.Broadcast(lobbyFrame(roster))
}

func (m *Machine) startLocked() {
	m.phase = InProgress
	m.remaining = 0
	m.startedAt = time.Now()
	m.logger.Info("game started", zap.Duration("duration", m.opts.Duration))
	m.notifier.Broadcast(protocol.EvGameStarted)
}

// countdown ticks one countdown run. A newer generation (abort, restart or
// reset) makes it exit at the next tick.
func (m *Machine) countdown(gen uint64) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}

		if done := m.tick(gen); done {
			return
		}
	}
}

func (m *Machine) tick(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.phase != CountingDown {
		return true
	}
	roster := m.roster.Readiness()
	if !allReady(roster) {
		m.abortLocked(roster)
		return true
	}

	m.remaining--
	if m.remaining > 0 {
		m.notifier.Broadcast(protocol.Countdown(m.remaining))
		return false
	}
	m.startLocked()
	return true
}

// CheckEnd finishes the game if it is in progress and either its duration has
// elapsed at now or every open cell is owned. The board is frozen and scored
// under the machine's lock, so no claim lands after the standings are taken.
func (m *Machine) CheckEnd(now time.Time) (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != InProgress {
		return Result{}, false
	}

	var reason EndReason
	switch {
	case m.opts.Duration > 0 && now.Sub(m.startedAt) >= m.opts.Duration:
		reason = EndTimeUp
	case m.board.Full():
		reason = EndBoardFull
	default:
		return Result{}, false
	}

	standings := engine.Resolve(m.board.Freeze())
	m.phase = GameOver
	m.standings = standings
	m.logger.Info("game over", zap.String("reason", string(reason)), zap.Int("players_scored", len(standings)))
	m.notifier.Broadcast(protocol.GameOver(standings))

	return Result{
		StartedAt: m.startedAt,
		EndedAt:   now,
		Reason:    reason,
		Standings: standings,
	}, true
}

// Run calls CheckEnd every interval until ctx is done. onFinish, if set, is
// called outside the machine's lock for each finished game.
func (m *Machine) Run(ctx context.Context, interval time.Duration, onFinish func(Result)) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if result, ended := m.CheckEnd(now); ended && onFinish != nil {
				onFinish(result)
			}
		}
	}
}

// ResetIfEmpty returns a finished or running session to Waiting once nobody
// is connected: the board is cleared (walls stay) and readiness dropped.
func (m *Machine) ResetIfEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != InProgress && m.phase != GameOver {
		return false
	}
	if len(m.roster.Readiness()) > 0 {
		return false
	}

	m.generation++
	m.phase = Waiting
	m.remaining = 0
	m.startedAt = time.Time{}
	m.standings = nil
	m.board.Reset()
	m.roster.ClearReady()
	m.logger.Info("session reset")
	return true
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Phase:     m.phase,
		Remaining: m.remaining,
		Roster:    m.roster.Readiness(),
		Standings: append([]engine.Standing(nil), m.standings...),
	}
	if !m.startedAt.IsZero() {
		started := m.startedAt
		snap.StartedAt = &started
		if m.opts.Duration > 0 {
			ends := started.Add(m.opts.Duration)
			snap.EndsAt = &ends
		}
	}
	return snap
}

// Close stops any running countdown and waits for it to exit. A closed
// machine never starts another countdown.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Unlock()

	m.wg.Wait()
}

func allReady(roster []session.Readiness) bool {
	if len(roster) == 0 {
		return false
	}
	for _, r := range roster {
		if !r.Ready {
			return false
		}
	}
	return true
}

func lobbyFrame(roster []session.Readiness) string {
	entries := make([]protocol.LobbyEntry, len(roster))
	for i, r := range roster {
		entries[i] = protocol.LobbyEntry{ID: r.ID, Ready: r.Ready}
	}
	return protocol.LobbyState(entries)
}
