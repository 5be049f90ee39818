package websocket

import (
	"encoding/json"

	"github.com/roomplay/tictactoe-room-backend/internal/tictactoe"
)

const (
	ActionRoomJoin   = "room:join"
	ActionRoomAssign = "room:assign"
	ActionPeerJoined = "room:peer_joined"
	ActionPeerLeft   = "room:peer_left"

	ActionGameTurn      = "game:turn"
	ActionGameUpdate    = "game:update"
	ActionGameRestart   = "game:restart"
	ActionGameRestarted = "game:restarted"

	ActionChatMessage = "chat:message"
)

// Message is the wire envelope: an action name plus an action-specific payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload carries every field used by the protocol; unset fields are
// omitted on the wire.
type Payload struct {
	RoomID  string           `json:"room_id,omitempty"`
	Symbol  string           `json:"symbol,omitempty"`
	Cell    *int             `json:"cell,omitempty"`
	Board   *tictactoe.Board `json:"board,omitempty"`
	Turn    string           `json:"player_turn,omitempty"`
	Status  string           `json:"status,omitempty"`
	Winner  string           `json:"winner,omitempty"`
	Message string           `json:"message,omitempty"`
	Info    string           `json:"info,omitempty"`
	Error   string           `json:"error,omitempty"`
}
