package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roomplay/tictactoe-room-backend/internal/apperror"
	"github.com/roomplay/tictactoe-room-backend/internal/tictactoe"
)

const (
	StatusWaiting   = "waiting"
	StatusOngoing   = "ongoing"
	StatusFinished  = "finished"
	StatusAbandoned = "abandoned"
)

var (
	ErrUnknownStatus = errors.New("unknown room status")

	// ErrSessionClosed is returned by Join when the session lost the race
	// against registry removal. Callers fetch a fresh session and retry.
	ErrSessionClosed = errors.New("session is closed")
)

// Occupant is one connected participant bound to a room.
type Occupant struct {
	ConnID   string    `json:"conn_id"`
	Mark     string    `json:"mark"`
	JoinedAt time.Time `json:"joined_at"`
}

// Snapshot is the public view of a room, safe to hand out after the
// session lock has been released.
type Snapshot struct {
	ID     string          `json:"id"`
	Board  tictactoe.Board `json:"board"`
	Turn   string          `json:"player_turn"`
	Status string          `json:"status"`
	Winner string          `json:"winner,omitempty"`
}

// Session holds the authoritative state of one room: its occupants, the
// board, whose turn it is and the terminal result. All mutating operations
// serialize on the session mutex; no two moves for the same room are ever
// validated concurrently.
type Session struct {
	id string

	mu        sync.Mutex
	board     tictactoe.Board
	turn      string
	status    string
	winner    string
	occupants []*Occupant
	closed    bool
}

func NewSession(id string) *Session {
	return &Session{
		id:     id,
		board:  tictactoe.EmptyBoard(),
		turn:   tictactoe.PlayerX,
		status: StatusWaiting,
	}
}

func (that *Session) ID() string {
	return that.id
}

// Join binds a connection to the session. The first joiner gets its
// preferred mark (X when no preference is given); the second joiner always
// gets the remaining mark, regardless of preference. A third join is
// rejected with ErrRoomFull.
func (that *Session) Join(connID, preferredMark string) (*Occupant, Snapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil, Snapshot{}, ErrSessionClosed
	}

	// Abandoned is terminal, the vacated slot is never refilled.
	if that.status == StatusAbandoned {
		return nil, that.snapshotLocked(), apperror.ErrRoomAbandoned
	}

	for _, occupant := range that.occupants {
		if occupant.ConnID == connID {
			return nil, that.snapshotLocked(), apperror.ErrAlreadyJoined
		}
	}

	if len(that.occupants) >= 2 {
		return nil, that.snapshotLocked(), apperror.ErrRoomFull
	}

	mark := that.assignMarkLocked(preferredMark)

	occupant := &Occupant{
		ConnID:   connID,
		Mark:     mark,
		JoinedAt: time.Now(),
	}
	that.occupants = append(that.occupants, occupant)

	if len(that.occupants) == 2 {
		that.status = StatusOngoing
	}

	return occupant, that.snapshotLocked(), nil
}

// MakeTurn validates and applies a move for the occupant bound to connID.
// Rejections leave the board, turn and status untouched.
func (that *Session) MakeTurn(connID string, cell int) (Snapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.confirmOngoingLocked(); err != nil {
		return that.snapshotLocked(), err
	}

	occupant := that.occupantLocked(connID)
	if occupant == nil {
		return that.snapshotLocked(), apperror.ErrRoomNotFound
	}

	if that.turn != occupant.Mark {
		return that.snapshotLocked(), apperror.ErrNotYourTurn
	}

	board, err := tictactoe.ApplyMove(that.board, cell, occupant.Mark)
	if err != nil {
		return that.snapshotLocked(), fmt.Errorf("invalid turn: %w", err)
	}

	that.board = board

	switch result := tictactoe.Evaluate(that.board); result {
	case tictactoe.PlayerX, tictactoe.PlayerO, tictactoe.PlayerTie:
		that.winner = result
		that.status = StatusFinished
		that.turn = ""
	default:
		that.turn = tictactoe.ToggleMark(occupant.Mark)
	}

	return that.snapshotLocked(), nil
}

// Restart resets a finished game back to an empty ongoing one. It is only
// honored in the finished state; a restart mid-game would break the
// in-progress invariant and is rejected.
func (that *Session) Restart(connID string) (Snapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.occupantLocked(connID) == nil {
		return that.snapshotLocked(), apperror.ErrRoomNotFound
	}

	switch that.status {
	case StatusFinished:
	case StatusWaiting:
		return that.snapshotLocked(), apperror.ErrGameIsNotStarted
	case StatusAbandoned:
		return that.snapshotLocked(), apperror.ErrRoomAbandoned
	default:
		return that.snapshotLocked(), fmt.Errorf("%w: restart only allowed when finished", apperror.ErrGameFinished)
	}

	that.board = tictactoe.EmptyBoard()
	that.turn = tictactoe.PlayerX
	that.status = StatusOngoing
	that.winner = ""

	return that.snapshotLocked(), nil
}

// Leave unbinds a connection from the session. Any remaining occupant is
// left in an abandoned room; the session is garbage-eligible once empty.
func (that *Session) Leave(connID string) (Snapshot, int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for i, occupant := range that.occupants {
		if occupant.ConnID != connID {
			continue
		}

		that.occupants = append(that.occupants[:i], that.occupants[i+1:]...)
		that.status = StatusAbandoned
		that.turn = ""
		break
	}

	return that.snapshotLocked(), len(that.occupants)
}

// Occupants returns a copy of the current occupant list.
func (that *Session) Occupants() []*Occupant {
	that.mu.Lock()
	defer that.mu.Unlock()

	occupants := make([]*Occupant, len(that.occupants))
	copy(occupants, that.occupants)
	return occupants
}

func (that *Session) Snapshot() Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshotLocked()
}

// closeIfEmpty marks the session closed when no occupants remain, so a
// racing Join cannot resurrect a room the registry is about to drop.
func (that *Session) closeIfEmpty() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.occupants) > 0 {
		return false
	}

	that.closed = true
	return true
}

func (that *Session) assignMarkLocked(preferredMark string) string {
	if len(that.occupants) == 1 {
		return tictactoe.ToggleMark(that.occupants[0].Mark)
	}

	if preferredMark == tictactoe.PlayerX || preferredMark == tictactoe.PlayerO {
		return preferredMark
	}

	return tictactoe.PlayerX
}

func (that *Session) confirmOngoingLocked() error {
	switch that.status {
	case StatusOngoing:
		return nil
	case StatusWaiting:
		return apperror.ErrGameIsNotStarted
	case StatusFinished:
		return apperror.ErrGameFinished
	case StatusAbandoned:
		return apperror.ErrRoomAbandoned
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStatus, that.status)
	}
}

func (that *Session) occupantLocked(connID string) *Occupant {
	for _, occupant := range that.occupants {
		if occupant.ConnID == connID {
			return occupant
		}
	}
	return nil
}

func (that *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:     that.id,
		Board:  that.board,
		Turn:   that.turn,
		Status: that.status,
		Winner: that.winner,
	}
}
