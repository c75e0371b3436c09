package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/chat"
	"github.com/Tyrowin/relaychat/internal/logging"
)

const testOrigin = "http://localhost:8080"

type testEnv struct {
	server  *httptest.Server
	hub     *Hub
	metrics *Metrics
	wsURL   string
}

type wireFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func quietLogger() *slog.Logger {
	return logging.NewWithWriter(io.Discard, "error", "text")
}

// newTestEnv starts a hub and an httptest server around it. mutate may
// adjust the configuration first.
func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := *NewConfig()
	cfg.AllowedOrigins = []string{testOrigin}
	cfg.HandshakeBurst = 100
	cfg.HandshakeRPS = 100
	if mutate != nil {
		mutate(&cfg)
	}
	cfg = sanitizeConfig(cfg)

	log := quietLogger()
	engine := chat.NewEngine(log, cfg.Limits(), chat.WithSuffix(func() int { return 482 }))
	metrics := NewMetrics()
	hub := NewHub(engine, cfg, log, metrics)
	go hub.Run()

	ts := httptest.NewServer(SetupRoutes(hub, cfg, log, metrics))
	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
		ts.Close()
	})

	return &testEnv{
		server:  ts,
		hub:     hub,
		metrics: metrics,
		wsURL:   "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := e.dialOrigin(testOrigin)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (e *testEnv) dialOrigin(origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := dialer.Dial(e.wsURL, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": eventType, "payload": payload}))
}

// expect reads frames until one of type eventType arrives and decodes its
// payload into out when out is non-nil.
func expect(t *testing.T, conn *websocket.Conn, eventType string, out any) {
	t.Helper()
	for i := 0; i < 20; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", eventType)
		if f.Type != eventType {
			continue
		}
		if out != nil {
			require.NoError(t, json.Unmarshal(f.Payload, out))
		}
		return
	}
	t.Fatalf("no %s event within 20 frames", eventType)
}

// joinAs dials and joins under name, returning the assigned username.
func (e *testEnv) joinAs(t *testing.T, name string) (*websocket.Conn, string) {
	t.Helper()
	conn := e.dial(t)
	send(t, conn, "join", map[string]string{"username": name})
	var joined chat.JoinedPayload
	expect(t, conn, "joined", &joined)
	expect(t, conn, "history", nil)
	return conn, joined.Username
}
