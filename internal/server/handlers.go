// Package server exposes HTTP handlers for WebSocket upgrades and health
// checks.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades GET requests from allowed origins and registers
// the resulting client with the hub.
type WebSocketHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	limiter  *handshakeLimiter
	metrics  *Metrics
	log      *slog.Logger
}

// NewWebSocketHandler builds the /ws handler from the origin and handshake
// settings in cfg.
func NewWebSocketHandler(hub *Hub, cfg Config, log *slog.Logger, metrics *Metrics) *WebSocketHandler {
	cfg = sanitizeConfig(cfg)
	origins := newOriginPolicy(cfg.AllowedOrigins, log)
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		limiter: newHandshakeLimiter(cfg.HandshakeRPS, cfg.HandshakeBurst),
		metrics: metrics,
		log:     log,
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	if !h.limiter.allow(r.RemoteAddr) {
		h.metrics.throttled.Inc()
		h.log.Warn("handshake_throttled", "remote", r.RemoteAddr)
		http.Error(w, "Too many connection attempts.", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr)
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// HealthHandler reports that the process is serving.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "OK")
}
