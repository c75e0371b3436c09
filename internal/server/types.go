// Package server defines the frames passed between client pumps and the hub
// plus small helpers shared by both.
package server

import (
	"strings"

	"github.com/Tyrowin/relaychat/internal/chat"
)

// inboundFrame is one decoded frame handed from a read pump to the hub.
// Exactly one of event and err is set.
type inboundFrame struct {
	client *Client
	event  chat.Inbound
	err    error
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
