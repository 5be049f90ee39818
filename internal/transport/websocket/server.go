package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roomplay/tictactoe-room-backend/internal/room"
)

var ErrUnknownAction = errors.New("unknown action")

type uRoom interface {
	JoinRoom(ctx context.Context, roomID, connID, preferredMark string) (*room.Occupant, room.Snapshot, error)
	MakeTurn(ctx context.Context, roomID, connID string, cell int) (room.Snapshot, error)
	Restart(ctx context.Context, roomID, connID string) (room.Snapshot, error)
	Leave(ctx context.Context, roomID, connID string) (room.Snapshot, bool, error)
}

// Server is the connection dispatcher: it binds each WebSocket connection
// to at most one room, routes inbound protocol messages to the room
// manager and fans resulting state changes out through the hub.
type Server struct {
	logger *slog.Logger
	uRoom  uRoom
	hub    *Hub

	upgrader websocket.Upgrader
	handlers map[string]func(ctx context.Context, client *Client, payload *Payload) error
}

func New(logger *slog.Logger, uRoom uRoom) *Server {
	server := &Server{
		logger: logger,
		uRoom:  uRoom,
		hub:    NewHub(),

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},

		handlers: make(map[string]func(context.Context, *Client, *Payload) error),
	}

	server.handlers[ActionRoomJoin] = server.handleRoomJoin
	server.handlers[ActionGameTurn] = server.handleGameTurn
	server.handlers[ActionGameRestart] = server.handleGameRestart
	server.handlers[ActionChatMessage] = server.handleChatMessage

	return server
}

// Handler returns the HTTP handler serving the /ws endpoint.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	return mux
}

// Start - starts the WebSocket server and blocks until it fails or the
// context is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(ctx),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down WebSocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveConnection upgrades the request and runs the read loop until the
// peer goes away.
func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	client := newClient(conn)
	log = log.With("connID", client.ID)
	log.Info("WebSocket connection established")

	that.readLoop(ctx, client)

	that.handleDisconnect(ctx, client)
}

func (that *Server) readLoop(ctx context.Context, client *Client) {
	log := that.logger.With("method", "readLoop", "connID", client.ID)

	for {
		var message Message
		if err := client.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("failed to read message", "error", err)
			}
			return
		}

		if err := that.dispatch(ctx, client, &message); err != nil {
			log.Error("failed to process message", "action", message.Action, "error", err)

			if sendErr := that.sendErrorResponse(client, message.Action, err.Error()); sendErr != nil {
				log.Error("failed to send error response", "error", sendErr)
				return
			}
		}
	}
}

// dispatch routes one inbound message to its action handler. Handler
// failures are reported to the originating connection only and never
// terminate the read loop.
func (that *Server) dispatch(ctx context.Context, client *Client, message *Message) error {
	handler, ok := that.handlers[message.Action]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, message.Action)
	}

	var payload Payload
	if len(message.Payload) > 0 {
		if err := json.Unmarshal(message.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return handler(ctx, client, &payload)
}

func (that *Server) sendErrorResponse(client *Client, action, errorMsg string) error {
	if err := client.Send(action, Payload{Error: errorMsg}); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}
