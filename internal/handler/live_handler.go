package handler

import (
	"net/http"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/live"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	pingInterval = 30 * time.Second
	pingTimeout  = 5 * time.Second
	writeTimeout = 2 * time.Second
	tickInterval = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveHandler streams live state over a websocket. Every hub update is
// forwarded, and while a session is active a fresh snapshot is sent each
// tick so the elapsed time keeps moving.
type LiveHandler struct {
	hub      *live.Hub
	snapshot func() live.State
	logger   *zap.Logger
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(hub *live.Hub, snapshot func() live.State, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{hub: hub, snapshot: snapshot, logger: logger}
}

// RegisterRoutes registers the websocket route on the given router group.
func (h *LiveHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/api/v1/tracking/live/ws", h.Stream)
}

// Stream handles GET /api/v1/tracking/live/ws.
func (h *LiveHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close() //nolint:errcheck

	client := h.hub.Register()
	defer h.hub.Unregister(client)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout)) //nolint:errcheck
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout)) //nolint:errcheck
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()
	tick := time.NewTicker(tickInterval)
	defer tick.Stop()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-tick.C:
			st := h.snapshot()
			if st.Status != string(session.StatusActive) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := conn.WriteJSON(st); err != nil {
				return
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}
