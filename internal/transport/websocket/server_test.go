package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roomplay/tictactoe-room-backend/internal/room"
	"github.com/roomplay/tictactoe-room-backend/internal/tictactoe"
	"github.com/roomplay/tictactoe-room-backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopRoomRepo struct{}

func (nopRoomRepo) CreateOrUpdate(_ context.Context, _ room.Snapshot) error { return nil }

func (nopRoomRepo) DeleteByID(_ context.Context, _ string) error { return nil }

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	manager := usecase.NewRoomManager(logger, room.NewRegistry(), nopRoomRepo{})
	server := New(logger, manager)

	srv := httptest.NewServer(server.Handler(context.Background()))
	t.Cleanup(srv.Close)

	return srv
}

func dial(t *testing.T, srv *httptest.Server) *testConn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() {
		conn.Close()
	})

	return &testConn{t: t, conn: conn}
}

func (that *testConn) send(action string, payload Payload) {
	that.t.Helper()

	payloadJSON, err := json.Marshal(payload)
	require.NoError(that.t, err)

	require.NoError(that.t, that.conn.WriteJSON(Message{Action: action, Payload: payloadJSON}))
}

func (that *testConn) receive() (string, Payload) {
	that.t.Helper()

	require.NoError(that.t, that.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var message Message
	require.NoError(that.t, that.conn.ReadJSON(&message))

	var payload Payload
	if len(message.Payload) > 0 {
		require.NoError(that.t, json.Unmarshal(message.Payload, &payload))
	}

	return message.Action, payload
}

func intPtr(v int) *int {
	return &v
}

// The reference exchange from end to end: two real connections join room
// r1, alternate moves with one rejection in between, and chat.
func TestServer_Scenario(t *testing.T) {
	srv := newTestServer(t)

	// A joins requesting X
	connA := dial(t, srv)
	connA.send(ActionRoomJoin, Payload{RoomID: "r1", Symbol: tictactoe.PlayerX})

	action, payload := connA.receive()
	require.Equal(t, ActionRoomAssign, action)
	require.Equal(t, tictactoe.PlayerX, payload.Symbol)

	// B joins and gets the remaining symbol; A learns about the peer
	connB := dial(t, srv)
	connB.send(ActionRoomJoin, Payload{RoomID: "r1"})

	action, payload = connB.receive()
	require.Equal(t, ActionRoomAssign, action)
	require.Equal(t, tictactoe.PlayerO, payload.Symbol)

	action, payload = connA.receive()
	require.Equal(t, ActionPeerJoined, action)
	assert.NotEmpty(t, payload.Info)

	// A moves to cell 4; both sides observe the identical update
	connA.send(ActionGameTurn, Payload{RoomID: "r1", Cell: intPtr(4)})

	action, payloadA := connA.receive()
	require.Equal(t, ActionGameUpdate, action)
	action, payloadB := connB.receive()
	require.Equal(t, ActionGameUpdate, action)

	require.NotNil(t, payloadA.Board)
	assert.Equal(t, tictactoe.PlayerX, payloadA.Board[4])
	assert.Equal(t, tictactoe.PlayerO, payloadA.Turn)
	assert.Equal(t, *payloadA.Board, *payloadB.Board)
	assert.Equal(t, payloadA.Turn, payloadB.Turn)

	// B targets the occupied cell and is rejected privately
	connB.send(ActionGameTurn, Payload{RoomID: "r1", Cell: intPtr(4)})

	action, payload = connB.receive()
	require.Equal(t, ActionGameTurn, action)
	assert.Contains(t, payload.Error, "occupied")

	// B then plays cell 0; both sides observe the update
	connB.send(ActionGameTurn, Payload{RoomID: "r1", Cell: intPtr(0)})

	action, payloadA = connA.receive()
	require.Equal(t, ActionGameUpdate, action)
	action, payloadB = connB.receive()
	require.Equal(t, ActionGameUpdate, action)

	assert.Equal(t, tictactoe.PlayerX, payloadA.Board[4])
	assert.Equal(t, tictactoe.PlayerO, payloadA.Board[0])
	assert.Equal(t, tictactoe.PlayerX, payloadA.Turn)
	assert.Equal(t, *payloadA.Board, *payloadB.Board)

	// B chats; only A receives the relay
	connB.send(ActionChatMessage, Payload{RoomID: "r1", Message: "gg"})

	action, payload = connA.receive()
	require.Equal(t, ActionChatMessage, action)
	assert.Equal(t, "gg", payload.Message)

	// Restart mid-game is rejected privately
	connA.send(ActionGameRestart, Payload{RoomID: "r1"})

	action, payload = connA.receive()
	require.Equal(t, ActionGameRestart, action)
	assert.NotEmpty(t, payload.Error)

	// B disconnects; A is told the peer left
	require.NoError(t, connB.conn.Close())

	action, payload = connA.receive()
	require.Equal(t, ActionPeerLeft, action)
	assert.Equal(t, room.StatusAbandoned, payload.Status)
}

func TestServer_Rejections(t *testing.T) {
	t.Run("Move before joining a room", func(t *testing.T) {
		srv := newTestServer(t)
		conn := dial(t, srv)

		conn.send(ActionGameTurn, Payload{RoomID: "r1", Cell: intPtr(0)})

		action, payload := conn.receive()
		assert.Equal(t, ActionGameTurn, action)
		assert.Contains(t, payload.Error, "room not found")
	})

	t.Run("Unknown action", func(t *testing.T) {
		srv := newTestServer(t)
		conn := dial(t, srv)

		conn.send("game:teleport", Payload{})

		action, payload := conn.receive()
		assert.Equal(t, "game:teleport", action)
		assert.Contains(t, payload.Error, "unknown action")
	})

	t.Run("Second join from the same connection", func(t *testing.T) {
		srv := newTestServer(t)
		conn := dial(t, srv)

		conn.send(ActionRoomJoin, Payload{RoomID: "r1"})
		action, _ := conn.receive()
		require.Equal(t, ActionRoomAssign, action)

		conn.send(ActionRoomJoin, Payload{RoomID: "r2"})

		action, payload := conn.receive()
		assert.Equal(t, ActionRoomJoin, action)
		assert.Contains(t, payload.Error, "already joined")
	})

	t.Run("Third connection is rejected with room full", func(t *testing.T) {
		srv := newTestServer(t)

		connA := dial(t, srv)
		connA.send(ActionRoomJoin, Payload{RoomID: "r1"})
		action, _ := connA.receive()
		require.Equal(t, ActionRoomAssign, action)

		connB := dial(t, srv)
		connB.send(ActionRoomJoin, Payload{RoomID: "r1"})
		action, _ = connB.receive()
		require.Equal(t, ActionRoomAssign, action)

		connC := dial(t, srv)
		connC.send(ActionRoomJoin, Payload{RoomID: "r1"})

		action, payload := connC.receive()
		assert.Equal(t, ActionRoomJoin, action)
		assert.Contains(t, payload.Error, "room is full")
	})

	t.Run("Empty chat message is rejected", func(t *testing.T) {
		srv := newTestServer(t)
		conn := dial(t, srv)

		conn.send(ActionRoomJoin, Payload{RoomID: "r1"})
		action, _ := conn.receive()
		require.Equal(t, ActionRoomAssign, action)

		conn.send(ActionChatMessage, Payload{RoomID: "r1", Message: "   "})

		action, payload := conn.receive()
		assert.Equal(t, ActionChatMessage, action)
		assert.Contains(t, payload.Error, "empty")
	})

	t.Run("Payload naming a foreign room is rejected", func(t *testing.T) {
		srv := newTestServer(t)
		conn := dial(t, srv)

		conn.send(ActionRoomJoin, Payload{RoomID: "r1"})
		action, _ := conn.receive()
		require.Equal(t, ActionRoomAssign, action)

		conn.send(ActionGameTurn, Payload{RoomID: "r2", Cell: intPtr(0)})

		action, payload := conn.receive()
		assert.Equal(t, ActionGameTurn, action)
		assert.Contains(t, payload.Error, "room not found")
	})
}

func TestServer_RestartAfterFinish(t *testing.T) {
	srv := newTestServer(t)

	connA := dial(t, srv)
	connA.send(ActionRoomJoin, Payload{RoomID: "r1", Symbol: tictactoe.PlayerX})
	action, _ := connA.receive()
	require.Equal(t, ActionRoomAssign, action)

	connB := dial(t, srv)
	connB.send(ActionRoomJoin, Payload{RoomID: "r1"})
	action, _ = connB.receive()
	require.Equal(t, ActionRoomAssign, action)
	action, _ = connA.receive()
	require.Equal(t, ActionPeerJoined, action)

	// X wins on the top row
	moves := []struct {
		conn *testConn
		cell int
	}{
		{connA, 0}, {connB, 3},
		{connA, 1}, {connB, 4},
		{connA, 2},
	}

	var last Payload
	for _, move := range moves {
		move.conn.send(ActionGameTurn, Payload{RoomID: "r1", Cell: intPtr(move.cell)})

		action, last = connA.receive()
		require.Equal(t, ActionGameUpdate, action)
		action, _ = connB.receive()
		require.Equal(t, ActionGameUpdate, action)
	}

	require.Equal(t, room.StatusFinished, last.Status)
	require.Equal(t, tictactoe.PlayerX, last.Winner)

	// When: B requests a restart
	connB.send(ActionGameRestart, Payload{RoomID: "r1"})

	// Then: both receive the restart with an empty board and X to move
	action, payloadA := connA.receive()
	require.Equal(t, ActionGameRestarted, action)
	action, payloadB := connB.receive()
	require.Equal(t, ActionGameRestarted, action)

	require.NotNil(t, payloadA.Board)
	assert.Equal(t, tictactoe.EmptyBoard(), *payloadA.Board)
	assert.Equal(t, tictactoe.PlayerX, payloadA.Turn)
	assert.Equal(t, room.StatusOngoing, payloadA.Status)
	assert.Equal(t, *payloadA.Board, *payloadB.Board)
}
