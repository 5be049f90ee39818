package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/roomplay/tictactoe-room-backend/internal/room"
)

var ErrRoomNotFound = errors.New("room snapshot not found")

// RoomRepository mirrors the public snapshot of each live room. Snapshots
// exist only for the lifetime of the room; they are deleted when the room
// is torn down.
type RoomRepository interface {
	CreateOrUpdate(ctx context.Context, snapshot room.Snapshot) error
	GetByID(ctx context.Context, id string) (room.Snapshot, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbRoom struct {
	client *redis.Client
}

func NewRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

func (that *dbRoom) CreateOrUpdate(ctx context.Context, snapshot room.Snapshot) error {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("could not marshal room snapshot: %w", err)
	}

	roomKey := "room:" + snapshot.ID
	if err = that.client.Set(ctx, roomKey, snapshotJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set room snapshot: %w", err)
	}

	return nil
}

func (that *dbRoom) GetByID(ctx context.Context, id string) (room.Snapshot, error) {
	roomKey := "room:" + id

	response, err := that.client.Get(ctx, roomKey).Result()

	if errors.Is(err, redis.Nil) {
		return room.Snapshot{}, ErrRoomNotFound
	}

	if err != nil {
		return room.Snapshot{}, fmt.Errorf("failed to get room snapshot by ID: %w", err)
	}

	var snapshot room.Snapshot
	if err = json.Unmarshal([]byte(response), &snapshot); err != nil {
		return room.Snapshot{}, fmt.Errorf("failed to unmarshal room snapshot: %w", err)
	}

	return snapshot, nil
}

func (that *dbRoom) DeleteByID(ctx context.Context, id string) error {
	roomKey := "room:" + id

	if err := that.client.Del(ctx, roomKey).Err(); err != nil {
		return fmt.Errorf("failed to delete room snapshot by ID: %w", err)
	}

	return nil
}
