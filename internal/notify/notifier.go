package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shoplite/orders-api/internal/redisx"
)

// Frame is the wire shape pushed to realtime subscribers.
type Frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// RedisNotifier fans an event out to a room by publishing on the room's
// Redis channel. Rooms with no subscriber drop the event; nothing is
// queued or replayed.
type RedisNotifier struct {
	Client *redis.Client
}

func (n *RedisNotifier) Emit(ctx context.Context, room, event string, payload any) error {
	b, err := json.Marshal(Frame{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := n.Client.Publish(ctx, redisx.RoomChannel(room), b).Err(); err != nil {
		return fmt.Errorf("publish to room %s: %w", room, err)
	}
	return nil
}
