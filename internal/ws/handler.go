// Package ws exposes the live event stream over websockets. One goroutine
// serves each connection; the shared events.Hub supplies the data.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sbp-ops/sbp-ops/internal/events"
)

// Handler upgrades HTTP requests into live event stream sessions.
type Handler struct {
	logger    *slog.Logger
	hub       *events.Hub
	heartbeat time.Duration
	timeout   time.Duration
	upgrader  websocket.Upgrader
}

// NewHandler constructs a websocket handler bound to the hub.
func NewHandler(logger *slog.Logger, hub *events.Hub, heartbeat, timeout time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Handler{
		logger:    logger,
		hub:       hub,
		heartbeat: heartbeat,
		timeout:   timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser clients come from the Next.js frontend on another
			// origin. The stream carries no secrets, it stays open.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws?tipe=<topic>. An empty tipe subscribes to all
// topics.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("tipe")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	sub := h.hub.Subscribe()
	sess := newSession(h.logger, conn, sub, topic, h.heartbeat, h.timeout)
	h.logger.Info("websocket client connected", slog.String("topic", topic))
	go sess.run()
}
