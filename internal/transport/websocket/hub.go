package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client wraps one WebSocket connection. roomID and mark are written only
// from the connection's own read loop, so they need no locking; the write
// mutex serializes frames from concurrent broadcasts.
type Client struct {
	ID string

	conn    *websocket.Conn
	writeMu sync.Mutex

	roomID string
	mark   string
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		conn: conn,
	}
}

// Send writes one protocol message to the client.
func (that *Client) Send(action string, payload Payload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := Message{
		Action:  action,
		Payload: payloadJSON,
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err = that.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// Hub tracks which connections are bound to which room and fans protocol
// messages out to them. Sends happen under the read lock, so a connection
// that has been unregistered can never receive a later broadcast.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

func (that *Hub) Register(roomID string, client *Client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.rooms[roomID] == nil {
		that.rooms[roomID] = make(map[*Client]struct{})
	}
	that.rooms[roomID][client] = struct{}{}
}

func (that *Hub) Unregister(roomID string, client *Client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms[roomID], client)
	if len(that.rooms[roomID]) == 0 {
		delete(that.rooms, roomID)
	}
}

// Broadcast sends the message to every connection bound to the room.
func (that *Hub) Broadcast(roomID, action string, payload Payload) []error {
	return that.broadcast(roomID, nil, action, payload)
}

// BroadcastExcept sends the message to every connection bound to the room
// other than except.
func (that *Hub) BroadcastExcept(roomID string, except *Client, action string, payload Payload) []error {
	return that.broadcast(roomID, except, action, payload)
}

func (that *Hub) broadcast(roomID string, except *Client, action string, payload Payload) []error {
	that.mu.RLock()
	defer that.mu.RUnlock()

	var errs []error
	for client := range that.rooms[roomID] {
		if client == except {
			continue
		}

		if err := client.Send(action, payload); err != nil {
			errs = append(errs, fmt.Errorf("client %s: %w", client.ID, err))
		}
	}

	return errs
}
