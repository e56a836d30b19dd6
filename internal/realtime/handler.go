package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/foodmart/foodmart-backend/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler upgrades a request to a websocket and relays the item's status messages until the
// client goes away.
type Handler struct {
	source   Source
	upgrader websocket.Upgrader
	logg     *logger.Logger
}

func NewHandler(source Source, logg *logger.Logger) *Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Handler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logg: logg,
	}
}

// Serve relays messages for itemID over the upgraded connection.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, itemID uuid.UUID) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx = h.logg.WithField(ctx, "item_id", itemID.String())

	sub, err := h.source.Subscribe(ctx, Channel(itemID))
	if err != nil {
		h.logg.Error(ctx, "realtime subscribe failed", err)
		http.Error(w, "realtime unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logg.Warn(ctx, "websocket upgrade failed")
		return
	}
	defer conn.Close()

	go h.drain(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain reads control frames and cancels the relay when the peer disconnects.
func (h *Handler) drain(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
