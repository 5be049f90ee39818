package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roomplay/tictactoe-room-backend/internal/room"
)

type roomRepo interface {
	CreateOrUpdate(ctx context.Context, snapshot room.Snapshot) error
	DeleteByID(ctx context.Context, id string) error
}

// RoomManager is the application-level facade over the room registry. It
// owns the join/turn/restart/leave flows and mirrors each room's public
// snapshot into the repository so the REST read model can serve it. The
// repository is a read model only: game state is never loaded back from it.
type RoomManager struct {
	logger   *slog.Logger
	registry *room.Registry
	roomRepo roomRepo
}

func NewRoomManager(logger *slog.Logger, registry *room.Registry, roomRepo roomRepo) *RoomManager {
	return &RoomManager{
		logger:   logger,
		registry: registry,
		roomRepo: roomRepo,
	}
}

// JoinRoom binds connID to the room, creating the room on first join. When
// a join races the removal of a dying session with the same id, the closed
// session is skipped and a fresh one is created.
func (that *RoomManager) JoinRoom(ctx context.Context, roomID, connID, preferredMark string) (*room.Occupant, room.Snapshot, error) {
	for {
		session := that.registry.GetOrCreate(roomID)

		occupant, snapshot, err := session.Join(connID, preferredMark)
		if errors.Is(err, room.ErrSessionClosed) {
			continue
		}

		if err != nil {
			return nil, snapshot, fmt.Errorf("failed to join room %s: %w", roomID, err)
		}

		that.saveSnapshot(ctx, snapshot)

		return occupant, snapshot, nil
	}
}

func (that *RoomManager) MakeTurn(ctx context.Context, roomID, connID string, cell int) (room.Snapshot, error) {
	session, err := that.registry.Get(roomID)
	if err != nil {
		return room.Snapshot{}, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}

	snapshot, err := session.MakeTurn(connID, cell)
	if err != nil {
		return snapshot, fmt.Errorf("failed to make turn: %w", err)
	}

	that.saveSnapshot(ctx, snapshot)

	return snapshot, nil
}

func (that *RoomManager) Restart(ctx context.Context, roomID, connID string) (room.Snapshot, error) {
	session, err := that.registry.Get(roomID)
	if err != nil {
		return room.Snapshot{}, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}

	snapshot, err := session.Restart(connID)
	if err != nil {
		return snapshot, fmt.Errorf("failed to restart game: %w", err)
	}

	that.saveSnapshot(ctx, snapshot)

	return snapshot, nil
}

// Leave unbinds connID from its room. It reports the room snapshot after
// the departure and whether the room was dropped from the registry.
func (that *RoomManager) Leave(ctx context.Context, roomID, connID string) (room.Snapshot, bool, error) {
	session, err := that.registry.Get(roomID)
	if err != nil {
		return room.Snapshot{}, false, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}

	snapshot, remaining := session.Leave(connID)

	if remaining > 0 {
		that.saveSnapshot(ctx, snapshot)
		return snapshot, false, nil
	}

	removed := that.registry.Release(roomID)
	if removed {
		that.deleteSnapshot(ctx, roomID)
	}

	return snapshot, removed, nil
}

// snapshot writes are fire-and-forget relative to game state; a storage
// failure never fails the room operation.
func (that *RoomManager) saveSnapshot(ctx context.Context, snapshot room.Snapshot) {
	if err := that.roomRepo.CreateOrUpdate(ctx, snapshot); err != nil {
		that.logger.Error("failed to save room snapshot", "roomID", snapshot.ID, "error", err)
	}
}

func (that *RoomManager) deleteSnapshot(ctx context.Context, roomID string) {
	if err := that.roomRepo.DeleteByID(ctx, roomID); err != nil {
		that.logger.Error("failed to delete room snapshot", "roomID", roomID, "error", err)
	}
}
