// Package server manages individual WebSocket clients, handling read/write
// pumps and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/relaychat/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Client represents one WebSocket connection. The hub owns its send channel
// and is the only goroutine that writes to or closes it.
type Client struct {
	id           chat.ConnID
	conn         *websocket.Conn
	send         chan []byte
	hub          *Hub
	addr         string
	maxFrameSize int64
	log          *slog.Logger
}

// NewClient creates a Client for conn with a fresh connection id and a
// buffered send channel.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	id := chat.ConnID(uuid.NewString())
	if conn != nil {
		conn.SetReadLimit(hub.maxFrameSize)
	}

	return &Client{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		hub:          hub,
		addr:         addr,
		maxFrameSize: hub.maxFrameSize,
		log:          hub.log.With("conn", string(id), "remote", addr),
	}
}

// ID returns the connection id the engine knows this client by.
func (c *Client) ID() chat.ConnID {
	return c.id
}

// GetSendChan returns the client's send channel for reading outgoing frames.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("read_deadline_failed", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("read_deadline_failed", "error", err)
		}
		return nil
	})
}

// logReadError reports why the read loop ended at a level matching how
// surprising the cause is.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("frame_too_large", "limit", c.maxFrameSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("client_disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Debug("connection_closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("unexpected_close", "error", err)
	default:
		c.log.Warn("read_failed", "error", err)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("close_failed", "pump", "read", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		kind, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		frame := inboundFrame{client: c}
		frame.event, frame.err = chat.Decode(raw)
		if !c.hub.deliver(frame) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case frame, ok := <-c.send:
		return c.handleFrame(frame, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("close_failed", "pump", "write", "error", err)
	}
}

// handleFrame writes one outgoing frame, or a close frame once the hub has
// closed the send channel.
func (c *Client) handleFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("write_deadline_failed", "error", err)
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("close_frame_failed", "error", err)
		}
		return false
	}

	// One event per frame; clients parse each frame as a single JSON value.
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("write_failed", "error", err)
		}
		return false
	}
	return true
}

func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("write_deadline_failed", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug("ping_failed", "error", err)
		return false
	}
	return true
}
