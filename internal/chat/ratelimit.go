package chat

import "time"

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a per-connection fixed-window counter. Rejected calls do
// not consume a slot.
type RateLimiter struct {
	max     int
	period  time.Duration
	windows map[ConnID]*window
}

// NewRateLimiter allows max events per period for each connection.
// Non-positive arguments select the defaults.
func NewRateLimiter(max int, period time.Duration) *RateLimiter {
	if max <= 0 {
		max = DefaultRateLimitMax
	}
	if period <= 0 {
		period = DefaultRateLimitWindow
	}
	return &RateLimiter{
		max:     max,
		period:  period,
		windows: make(map[ConnID]*window),
	}
}

// Allow reports whether conn may perform another rate-limited action at now.
func (rl *RateLimiter) Allow(conn ConnID, now time.Time) bool {
	w, ok := rl.windows[conn]
	if !ok || now.After(w.resetAt) {
		rl.windows[conn] = &window{count: 1, resetAt: now.Add(rl.period)}
		return true
	}
	if w.count >= rl.max {
		return false
	}
	w.count++
	return true
}

// Forget drops the window held for conn.
func (rl *RateLimiter) Forget(conn ConnID) {
	delete(rl.windows, conn)
}

// Sweep drops windows for connections that are no longer live and windows
// whose reset time has passed. It returns how many were removed.
func (rl *RateLimiter) Sweep(now time.Time, live func(ConnID) bool) int {
	removed := 0
	for conn, w := range rl.windows {
		if (live != nil && !live(conn)) || now.After(w.resetAt) {
			delete(rl.windows, conn)
			removed++
		}
	}
	return removed
}

// Len reports how many windows are tracked.
func (rl *RateLimiter) Len() int {
	return len(rl.windows)
}
