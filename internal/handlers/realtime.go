package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/framez/backend/internal/auth"
	"github.com/framez/backend/internal/logging"
	"github.com/framez/backend/internal/models"
	"github.com/framez/backend/internal/realtime"
)

const (
	wsWriteWait   = 10 * time.Second
	wsDefaultPing = 30 * time.Second
)

// RealtimeHandler streams the caller's post changes over a websocket.
type RealtimeHandler struct {
	Changes      ChangeFeed
	PingInterval time.Duration
	Upgrader     websocket.Upgrader
}

// NewRealtimeHandler builds a handler accepting any origin. Callers
// authenticate with a bearer token only.
func NewRealtimeHandler(changes ChangeFeed, ping time.Duration) RealtimeHandler {
	return RealtimeHandler{
		Changes:      changes,
		PingInterval: ping,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Posts handles GET /api/v1/realtime/posts.
func (h RealtimeHandler) Posts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if h.Changes == nil {
		logger.Error("change feed unavailable")
		respondError(ctx, w, http.StatusServiceUnavailable, "realtime unavailable")
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.Changes.Subscribe(realtime.Filter{Table: models.TablePosts, UserID: caller.ID})
	defer sub.Close()

	ping := h.PingInterval
	if ping <= 0 {
		ping = wsDefaultPing
	}
	readWait := ping * 2

	logger.Info("realtime subscriber connected")
	defer logger.Info("realtime subscriber disconnected")

	// The read loop only services control frames and notices the peer leaving.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case change, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(change); err != nil {
				logger.Warn("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
