// Package server carries the relay's WebSocket transport.
//
// A single Hub goroutine owns the chat engine: read pumps decode frames and
// hand them to the hub, the hub applies them in arrival order and fans the
// resulting events out to each target's buffered send channel, and write
// pumps flush those channels to the sockets. Periodic sweeps for history
// expiry and stale rate windows run on the same goroutine.
//
// The package also provides configuration loading, origin checks, per-IP
// handshake throttling, health and Prometheus endpoints.
package server
