// Package server coordinates client registration, event dispatch, and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/relaychat/internal/chat"
)

// Hub owns the chat engine and every client connection. Run is the only
// goroutine that touches the engine, so events are applied one at a time in
// arrival order.
type Hub struct {
	engine       *chat.Engine
	log          *slog.Logger
	metrics      *Metrics
	maxFrameSize int64
	historySweep time.Duration
	rateSweep    time.Duration

	clients    map[chat.ConnID]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub around engine. Frame size and sweep intervals come
// from cfg.
func NewHub(engine *chat.Engine, cfg Config, log *slog.Logger, metrics *Metrics) *Hub {
	cfg = sanitizeConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		engine:       engine,
		log:          log,
		metrics:      metrics,
		maxFrameSize: cfg.MaxFrameSize,
		historySweep: cfg.HistorySweepInterval,
		rateSweep:    cfg.RateLimitSweepInterval,
		clients:      make(map[chat.ConnID]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		inbound:      make(chan inboundFrame),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Register hands a new client to the hub. It returns false once the hub is
// shutting down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// ClientCount reports the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(f inboundFrame) bool {
	select {
	case h.inbound <- f:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	historyTicker := time.NewTicker(h.historySweep)
	defer historyTicker.Stop()
	rateTicker := time.NewTicker(h.rateSweep)
	defer rateTicker.Stop()

	h.log.Info("hub_started", "history_sweep", h.historySweep, "rate_sweep", h.rateSweep)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client)

		case frame := <-h.inbound:
			h.handleFrame(frame)

		case <-historyTicker.C:
			h.dispatch(h.apply(h.engine.PruneHistory))

		case <-rateTicker.C:
			if n := h.engine.SweepRateLimits(); n > 0 {
				h.log.Debug("rate_windows_swept", "removed", n)
			}
		}
		h.metrics.observe(h.engine.Stats())
	}
}

func (h *Hub) add(client *Client) {
	if client == nil {
		h.log.Warn("nil_client_registration")
		return
	}

	h.mutex.Lock()
	h.clients[client.ID()] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.engine.Connect(client.ID())
	client.log.Info("client_registered", "total", clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) remove(client *Client) {
	if !h.detach(client) {
		return
	}
	client.log.Info("client_unregistered", "total", h.ClientCount())
	h.dispatch(h.apply(func() []chat.Delivery { return h.engine.Disconnect(client.ID()) }))
}

// detach drops client from the registry and closes its send channel. It
// reports false if the client was already gone.
func (h *Hub) detach(client *Client) bool {
	h.mutex.Lock()
	current, ok := h.clients[client.ID()]
	if !ok || current != client {
		h.mutex.Unlock()
		return false
	}
	delete(h.clients, client.ID())
	h.mutex.Unlock()

	close(client.send)
	return true
}

func (h *Hub) handleFrame(f inboundFrame) {
	if _, ok := h.clients[f.client.ID()]; !ok {
		return
	}

	if f.err != nil {
		f.client.log.Debug("frame_rejected", "error", f.err)
		h.dispatch([]chat.Delivery{h.engine.Reject(f.client.ID(), f.err)})
		return
	}

	h.metrics.events.WithLabelValues(string(f.event.Type())).Inc()
	h.dispatch(h.apply(func() []chat.Delivery { return h.engine.Handle(f.client.ID(), f.event) }))
}

// apply runs one engine operation, turning a panic into a logged no-op so a
// single bad event cannot stop the loop.
func (h *Hub) apply(op func() []chat.Delivery) (out []chat.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.recovered.Inc()
			h.log.Error("event_panic", "panic", r)
			out = nil
		}
	}()
	return op()
}

// dispatch encodes each delivery once and queues it on every target. Clients
// whose buffer is full are evicted, and the events their departure causes are
// dispatched in turn.
func (h *Hub) dispatch(queue []chat.Delivery) {
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if len(d.To) == 0 {
			continue
		}
		h.metrics.countDelivery(d)

		frame, err := json.Marshal(d.Event)
		if err != nil {
			h.log.Error("encode_failed", "type", d.Event.Type, "error", err)
			continue
		}

		var full []*Client
		for _, id := range d.To {
			client, ok := h.clients[id]
			if !ok {
				continue
			}
			if !h.safeSend(client, frame) {
				full = append(full, client)
			}
		}

		for _, client := range full {
			if !h.detach(client) {
				continue
			}
			h.metrics.dropped.Inc()
			client.log.Warn("client_evicted", "reason", "send buffer full")
			queue = append(queue, h.apply(func() []chat.Delivery { return h.engine.Disconnect(client.ID()) })...)
		}
	}
}

func (h *Hub) safeSend(client *Client, frame []byte) bool {
	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// shutdownClients closes every client connection.
func (h *Hub) shutdownClients() {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		h.detach(client)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.log.Warn("close_failed", "error", err)
			}
		}
	}

	h.log.Info("clients_closed", "count", len(clients))
}

// Shutdown stops Run and waits for it and all client goroutines to finish,
// or for timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("hub_shutdown_started")

	h.cancel()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-h.done:
	case <-deadline.C:
		h.log.Warn("hub_shutdown_timeout", "timeout", timeout, "waiting_for", "run")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub_shutdown_completed")
		return nil
	case <-deadline.C:
		h.log.Warn("hub_shutdown_timeout", "timeout", timeout, "waiting_for", "clients")
		return context.DeadlineExceeded
	}
}
