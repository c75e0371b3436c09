// Package server wires HTTP handlers into a ServeMux via routing helpers.
package server

import (
	"log/slog"
	"net/http"
)

// SetupRoutes returns a ServeMux serving the WebSocket endpoint, the health
// check and the Prometheus metrics.
func SetupRoutes(hub *Hub, cfg Config, log *slog.Logger, metrics *Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", NewWebSocketHandler(hub, cfg, log, metrics))
	mux.HandleFunc("GET /healthz", HealthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}
