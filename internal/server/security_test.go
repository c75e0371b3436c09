package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestOriginValidation(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.AllowedOrigins = []string{"HTTP://LOCALHOST:8080", "not-a-url", "https://chat.example.com"}
	})

	cases := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:8080", true},
		{"https://chat.example.com", true},
		{"https://chat.example.com/path?x=1", true},
		{"", false},
		{"not-a-url", false},
		{"http://", false},
		{"https://evil.example.com", false},
		{"http://localhost:9090", false},
	}
	for _, tc := range cases {
		t.Run(tc.origin, func(t *testing.T) {
			conn, resp, err := env.dialOrigin(tc.origin)
			if tc.allowed {
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestOriginWildcard(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.AllowedOrigins = []string{"*"}
	})

	conn, _, err := env.dialOrigin("https://anywhere.example.org")
	require.NoError(t, err)
	_ = conn.Close()

	_, resp, err := env.dialOrigin("")
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandshakeThrottling(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, func(cfg *Config) {
		cfg.HandshakeRPS = 0.001
		cfg.HandshakeBurst = 2
	})

	for i := 0; i < 2; i++ {
		conn, _, err := env.dialOrigin(testOrigin)
		req.NoError(err)
		_ = conn.Close()
	}

	_, resp, err := env.dialOrigin(testOrigin)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusTooManyRequests, resp.StatusCode)
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxFrameSize = 256
	})
	conn := env.dial(t)

	big := `{"type":"message","payload":{"body":"` + strings.Repeat("x", 512) + `"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestWebSocketMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Post(env.server.URL+"/ws", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandshakeLimiter(t *testing.T) {
	req := require.New(t)
	l := newHandshakeLimiter(1, 1)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	req.True(l.allow("10.0.0.1:5000"))
	req.False(l.allow("10.0.0.1:5001"), "same host, different port")
	req.True(l.allow("10.0.0.2:5000"))

	now = now.Add(time.Second)
	req.True(l.allow("10.0.0.1:5002"))
	req.Equal(2, l.size())
}

func TestNormalizeOrigin(t *testing.T) {
	req := require.New(t)
	got, ok := normalizeOrigin("HTTPS://Chat.Example.com:443/room")
	req.True(ok)
	req.Equal("https://chat.example.com:443", got)

	_, ok = normalizeOrigin("chat.example.com")
	req.False(ok)
}
