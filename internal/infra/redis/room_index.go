package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoomIndex is a Redis-backed implementation of app.RoomIndex.
// Notes:
//   - Room state itself stays in the registry process; Redis only records which
//     codes are taken so a restarted or second process never hands out a live code.
//   - Reservations expire after ttl unless refreshed with Touch.
type RoomIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoomIndex(client *redis.Client, ttl time.Duration) *RoomIndex {
	return &RoomIndex{client: client, ttl: ttl}
}

func (i *RoomIndex) Reserve(ctx context.Context, roomID string) (bool, error) {
	return i.client.SetNX(ctx, i.key(roomID), time.Now().UTC().Format(time.RFC3339), i.ttl).Result()
}

// Touch extends the reservations of the given active rooms.
func (i *RoomIndex) Touch(ctx context.Context, roomIDs []string) error {
	if len(roomIDs) == 0 || i.ttl <= 0 {
		return nil
	}
	pipe := i.client.Pipeline()
	for _, id := range roomIDs {
		pipe.Expire(ctx, i.key(id), i.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (i *RoomIndex) Release(ctx context.Context, roomID string) error {
	return i.client.Del(ctx, i.key(roomID)).Err()
}

func (i *RoomIndex) key(roomID string) string {
	return "trivia:room:" + roomID
}
