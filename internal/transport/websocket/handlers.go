package websocket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roomplay/tictactoe-room-backend/internal/apperror"
	"github.com/roomplay/tictactoe-room-backend/internal/room"
)

var (
	ErrRoomIDRequired = errors.New("room_id is required")
	ErrCellRequired   = errors.New("cell is required")
)

func (that *Server) handleRoomJoin(ctx context.Context, client *Client, payload *Payload) error {
	log := that.logger.With("method", "handleRoomJoin", "connID", client.ID)

	if client.roomID != "" {
		return apperror.ErrAlreadyJoined
	}

	if payload.RoomID == "" {
		return ErrRoomIDRequired
	}

	occupant, snapshot, err := that.uRoom.JoinRoom(ctx, payload.RoomID, client.ID, payload.Symbol)
	if err != nil {
		return err
	}

	client.roomID = payload.RoomID
	client.mark = occupant.Mark
	that.hub.Register(client.roomID, client)

	if err = client.Send(ActionRoomAssign, Payload{RoomID: client.roomID, Symbol: occupant.Mark}); err != nil {
		return fmt.Errorf("failed to send symbol assignment: %w", err)
	}

	peerPayload := Payload{
		RoomID: client.roomID,
		Info:   fmt.Sprintf("player %s joined the room", occupant.Mark),
		Status: snapshot.Status,
	}
	for _, sendErr := range that.hub.BroadcastExcept(client.roomID, client, ActionPeerJoined, peerPayload) {
		log.Error("failed to notify peer", "error", sendErr)
	}

	log.Info("player joined room", "roomID", client.roomID, "mark", occupant.Mark)

	return nil
}

func (that *Server) handleGameTurn(ctx context.Context, client *Client, payload *Payload) error {
	log := that.logger.With("method", "handleGameTurn", "connID", client.ID)

	if err := that.confirmBound(client, payload); err != nil {
		return err
	}

	if payload.Cell == nil {
		return ErrCellRequired
	}

	snapshot, err := that.uRoom.MakeTurn(ctx, client.roomID, client.ID, *payload.Cell)
	if err != nil {
		return err
	}

	for _, sendErr := range that.hub.Broadcast(client.roomID, ActionGameUpdate, snapshotPayload(snapshot)) {
		log.Error("failed to send game update", "error", sendErr)
	}

	log.Info("player made a turn", "roomID", client.roomID, "cell", *payload.Cell)

	return nil
}

func (that *Server) handleGameRestart(ctx context.Context, client *Client, payload *Payload) error {
	log := that.logger.With("method", "handleGameRestart", "connID", client.ID)

	if err := that.confirmBound(client, payload); err != nil {
		return err
	}

	snapshot, err := that.uRoom.Restart(ctx, client.roomID, client.ID)
	if err != nil {
		return err
	}

	for _, sendErr := range that.hub.Broadcast(client.roomID, ActionGameRestarted, snapshotPayload(snapshot)) {
		log.Error("failed to send restart notification", "error", sendErr)
	}

	log.Info("game restarted", "roomID", client.roomID)

	return nil
}

// handleChatMessage relays text to the other occupants of the sender's
// room. Chat bypasses the session entirely; the sender renders its own
// echo locally and never receives the relay back.
func (that *Server) handleChatMessage(_ context.Context, client *Client, payload *Payload) error {
	log := that.logger.With("method", "handleChatMessage", "connID", client.ID)

	if err := that.confirmBound(client, payload); err != nil {
		return err
	}

	if strings.TrimSpace(payload.Message) == "" {
		return apperror.ErrEmptyMessage
	}

	chatPayload := Payload{
		RoomID:  client.roomID,
		Message: payload.Message,
	}
	for _, sendErr := range that.hub.BroadcastExcept(client.roomID, client, ActionChatMessage, chatPayload) {
		log.Error("failed to relay chat message", "error", sendErr)
	}

	return nil
}

// handleDisconnect tears the connection out of its room. The hub entry is
// removed first so the connection cannot receive broadcasts triggered by
// its own departure.
func (that *Server) handleDisconnect(ctx context.Context, client *Client) {
	log := that.logger.With("method", "handleDisconnect", "connID", client.ID)

	if client.roomID == "" {
		log.Info("connection closed before joining a room")
		return
	}

	that.hub.Unregister(client.roomID, client)

	snapshot, removed, err := that.uRoom.Leave(ctx, client.roomID, client.ID)
	if err != nil {
		log.Error("failed to leave room", "roomID", client.roomID, "error", err)
		return
	}

	if removed {
		log.Info("room released", "roomID", client.roomID)
		return
	}

	leftPayload := Payload{
		RoomID: client.roomID,
		Info:   fmt.Sprintf("player %s left the room", client.mark),
		Status: snapshot.Status,
	}
	for _, sendErr := range that.hub.Broadcast(client.roomID, ActionPeerLeft, leftPayload) {
		log.Error("failed to notify remaining player", "error", sendErr)
	}

	log.Info("player left room", "roomID", client.roomID)
}

// confirmBound rejects game and chat actions from connections that never
// joined a room, or whose payload names a different room than the one
// they are bound to.
func (that *Server) confirmBound(client *Client, payload *Payload) error {
	if client.roomID == "" {
		return apperror.ErrRoomNotFound
	}

	if payload.RoomID != "" && payload.RoomID != client.roomID {
		return fmt.Errorf("%w: not bound to room %s", apperror.ErrRoomNotFound, payload.RoomID)
	}

	return nil
}

func snapshotPayload(snapshot room.Snapshot) Payload {
	board := snapshot.Board

	return Payload{
		RoomID: snapshot.ID,
		Board:  &board,
		Turn:   snapshot.Turn,
		Status: snapshot.Status,
		Winner: snapshot.Winner,
	}
}
