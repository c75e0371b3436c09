// Package server throttles WebSocket handshakes per remote IP so a single
// host cannot flood the hub with connections.
package server

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	handshakeIdleTTL    = 10 * time.Minute
	handshakePruneAfter = 1024
)

type handshakeEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type handshakeLimiter struct {
	mu    sync.Mutex
	m     map[string]*handshakeEntry
	rps   rate.Limit
	burst int
	now   func() time.Time
}

func newHandshakeLimiter(rps float64, burst int) *handshakeLimiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 10
	}
	return &handshakeLimiter{
		m:     make(map[string]*handshakeEntry),
		rps:   rate.Limit(rps),
		burst: burst,
		now:   time.Now,
	}
}

// allow reports whether remoteAddr may open another connection now.
func (l *handshakeLimiter) allow(remoteAddr string) bool {
	key := hostOf(remoteAddr)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.m[key]
	if !ok {
		if len(l.m) >= handshakePruneAfter {
			l.pruneLocked(now)
		}
		e = &handshakeEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.m[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *handshakeLimiter) pruneLocked(now time.Time) {
	for key, e := range l.m {
		if now.Sub(e.lastSeen) > handshakeIdleTTL {
			delete(l.m, key)
		}
	}
}

func (l *handshakeLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func hostOf(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
