package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHubShutdownClosesClients(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)

	conns := []string{"alice", "bob", "carol"}
	for _, name := range conns {
		env.joinAs(t, name)
	}
	req.Eventually(func() bool { return env.hub.ClientCount() == len(conns) }, 3*time.Second, 20*time.Millisecond)

	req.NoError(env.hub.Shutdown(2 * time.Second))
	req.Equal(0, env.hub.ClientCount())
	req.False(env.hub.Register(&Client{}), "registration after shutdown")
}

func TestHubShutdownUnblocksReaders(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	conn, _ := env.joinAs(t, "alice")

	req.NoError(env.hub.Shutdown(2 * time.Second))

	req.NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestUpgradeAfterShutdownIsClosed(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	req.NoError(env.hub.Shutdown(2 * time.Second))

	conn, _, err := env.dialOrigin(testOrigin)
	req.NoError(err)
	defer func() { _ = conn.Close() }()

	req.NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	_, _, err = conn.ReadMessage()
	req.Error(err)
}

func TestHubShutdownWithoutRun(t *testing.T) {
	h := newIdleHub()

	start := time.Now()
	err := h.Shutdown(100 * time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
}
