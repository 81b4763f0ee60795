package notify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shoplite/orders-api/internal/orders"
	"github.com/shoplite/orders-api/internal/redisx"
)

// JoinRequest is the handshake a client sends right after connecting.
// It subscribes the connection to the user's private room and, for
// admins, the shared admin room.
type JoinRequest struct {
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
}

// Hub bridges websocket connections to the Redis room channels.
type Hub struct {
	redis    *redis.Client
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHub(rdb *redis.Client, log *slog.Logger) *Hub {
	return &Hub{
		redis: rdb,
		log:   log,
		upgrader: websocket.Upgrader{
			// storefront and API are served from different origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	h.serve(conn)
}

func (h *Hub) serve(conn *websocket.Conn) {
	defer conn.Close()

	var join JoinRequest
	if err := conn.ReadJSON(&join); err != nil || join.UserID == "" {
		h.log.Warn("ws join handshake failed", "err", err)
		return
	}

	channels := []string{redisx.RoomChannel(join.UserID)}
	if join.IsAdmin {
		channels = append(channels, redisx.RoomChannel(orders.AdminRoom))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := h.redis.Subscribe(ctx, channels...)
	defer sub.Close()

	h.log.Info("ws client joined", "user", join.UserID, "admin", join.IsAdmin)

	// The client sends nothing after the handshake; this read loop only
	// detects the connection closing.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m.Payload)); err != nil {
				return
			}
		}
	}
}
