package room

import (
	"sync"

	"github.com/roomplay/tictactoe-room-backend/internal/apperror"
)

// Registry is the process-wide map from room identifier to Session.
// Creation and removal both serialize on the registry mutex, so a remove
// can never race a concurrent GetOrCreate into resurrecting stale state.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for roomID, creating it when absent.
// Concurrent calls for the same unseen roomID produce exactly one session.
func (that *Registry) GetOrCreate(roomID string) *Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	if session, ok := that.rooms[roomID]; ok {
		return session
	}

	session := NewSession(roomID)
	that.rooms[roomID] = session

	return session
}

// Get returns the session for roomID or ErrRoomNotFound.
func (that *Registry) Get(roomID string) (*Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return session, nil
}

// Release drops the session for roomID once it has no occupants left.
// The session is closed before it is removed from the map, so a Join that
// raced Release observes ErrSessionClosed and retries on a fresh session.
func (that *Registry) Release(roomID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.rooms[roomID]
	if !ok {
		return false
	}

	if !session.closeIfEmpty() {
		return false
	}

	delete(that.rooms, roomID)

	return true
}

// Len reports the number of live rooms.
func (that *Registry) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.rooms)
}
