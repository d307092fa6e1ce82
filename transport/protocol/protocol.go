// Package protocol defines the newline-delimited, comma-separated text frames
// exchanged between clients and the game server.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wricardo/gridclaim/game/engine"
)

// ErrUnknownCommand is returned for malformed or unrecognised client frames.
var ErrUnknownCommand = errors.New("unknown command")

// MaxFrameSize bounds a single inbound frame.
const MaxFrameSize = 512

// ErrFrameTooLong is returned by transports for an inbound frame over
// MaxFrameSize. The oversized frame has been discarded and the connection is
// still usable.
var ErrFrameTooLong = errors.New("frame too long")

// Client -> server command names.
const (
	CmdMove      = "MOVE"
	CmdReady     = "READY"
	CmdUnready   = "UNREADY"
	CmdInitState = "INIT_STATE"
)

// Server -> client event names.
const (
	EvAssignPlayer     = "ASSIGN_PLAYER"
	EvPlayerJoined     = "PLAYER_JOINED"
	EvPlayerLeft       = "PLAYER_LEFT"
	EvLobbyState       = "LOBBY_STATE"
	EvCountdown        = "COUNTDOWN"
	EvCountdownAborted = "COUNTDOWN_ABORTED"
	EvGameStarted      = "GAME_STARTED"
	EvMoveConfirmed    = "MOVE_CONFIRMED"
	EvPlayerMoved      = "PLAYER_MOVED"
	EvInvalidMove      = "INVALID_MOVE"
	EvUnknownCommand   = "UNKNOWN_COMMAND"
	EvServerFull       = "SERVER_FULL"
	EvGameOver         = "GAME_OVER"
)

const (
	readyWord    = "READY"
	notReadyWord = "NOT_READY"
)

// Command is a decoded client frame. Target is only set for MOVE.
type Command struct {
	Name   string
	Target engine.Position
}

// ParseCommand decodes one client frame. Surrounding whitespace and a
// trailing carriage return are ignored.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, ",")

	switch parts[0] {
	case CmdMove:
		if len(parts) != 3 {
			return Command{}, fmt.Errorf("%w: MOVE takes 2 arguments, got %d", ErrUnknownCommand, len(parts)-1)
		}
		x, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return Command{}, fmt.Errorf("%w: bad x %q", ErrUnknownCommand, parts[1])
		}
		y, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return Command{}, fmt.Errorf("%w: bad y %q", ErrUnknownCommand, parts[2])
		}
		return Command{Name: CmdMove, Target: engine.Position{X: x, Y: y}}, nil

	case CmdReady, CmdUnready, CmdInitState:
		if len(parts) != 1 {
			return Command{}, fmt.Errorf("%w: %s takes no arguments", ErrUnknownCommand, parts[0])
		}
		return Command{Name: parts[0]}, nil

	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, parts[0])
	}
}

// Move encodes a MOVE command.
func Move(x, y int) string {
	return fmt.Sprintf("%s,%d,%d", CmdMove, x, y)
}

// AssignPlayer is unicast to a newly admitted player.
func AssignPlayer(id engine.PlayerID, pos engine.Position, color string) string {
	return fmt.Sprintf("%s,%s,%d,%d,%s", EvAssignPlayer, id, pos.X, pos.Y, color)
}

// PlayerJoined announces a player and its spawn.
func PlayerJoined(id engine.PlayerID, pos engine.Position, color string) string {
	return fmt.Sprintf("%s,%s,%d,%d,%s", EvPlayerJoined, id, pos.X, pos.Y, color)
}

// PlayerLeft announces a departure.
func PlayerLeft(id engine.PlayerID) string {
	return EvPlayerLeft + "," + string(id)
}

// LobbyEntry is one player's readiness in a LOBBY_STATE frame.
type LobbyEntry struct {
	ID    engine.PlayerID
	Ready bool
}

// LobbyState encodes the roster as "LOBBY_STATE,P1,READY;P2,NOT_READY;".
func LobbyState(entries []LobbyEntry) string {
	var b strings.Builder
	b.WriteString(EvLobbyState)
	b.WriteByte(',')
	for _, e := range entries {
		b.WriteString(string(e.ID))
		b.WriteByte(',')
		if e.Ready {
			b.WriteString(readyWord)
		} else {
			b.WriteString(notReadyWord)
		}
		b.WriteByte(';')
	}
	return b.String()
}

// Countdown encodes the remaining seconds before the game starts.
func Countdown(seconds int) string {
	return fmt.Sprintf("%s,%d", EvCountdown, seconds)
}

// MoveConfirmed is unicast to the mover.
func MoveConfirmed(id engine.PlayerID, pos engine.Position) string {
	return fmt.Sprintf("%s,%s,%d,%d", EvMoveConfirmed, id, pos.X, pos.Y)
}

// PlayerMoved is broadcast after an accepted move.
func PlayerMoved(id engine.PlayerID, pos engine.Position, color string) string {
	return fmt.Sprintf("%s,%s,%d,%d,%s", EvPlayerMoved, id, pos.X, pos.Y, color)
}

// GameOver encodes "GAME_OVER,<winner>,<score>,P1:7;P2:3;". With no standings
// the winner is empty and the score zero.
func GameOver(standings []engine.Standing) string {
	var b strings.Builder
	b.WriteString(EvGameOver)
	b.WriteByte(',')
	if winner, ok := engine.Winner(standings); ok {
		fmt.Fprintf(&b, "%s,%d,", winner.PlayerID, winner.Score)
	} else {
		b.WriteString(",0,")
	}
	for _, s := range standings {
		fmt.Fprintf(&b, "%s:%d;", s.PlayerID, s.Score)
	}
	return b.String()
}

// Event is a decoded server frame, used by clients and tests.
type Event struct {
	Name string
	Args []string
}

// ParseEvent splits a server frame into its name and arguments.
func ParseEvent(line string) Event {
	line = strings.TrimSpace(line)
	name, rest, found := strings.Cut(line, ",")
	ev := Event{Name: name}
	if found {
		ev.Args = strings.Split(rest, ",")
	}
	return ev
}

// Int returns argument i as an integer.
func (e Event) Int(i int) (int, error) {
	if i < 0 || i >= len(e.Args) {
		return 0, fmt.Errorf("%s has no argument %d", e.Name, i)
	}
	return strconv.Atoi(e.Args[i])
}

// Arg returns argument i, or "" when absent.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}
