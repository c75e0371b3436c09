package chat

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/samber/lo"
)

// ConnID identifies one live transport connection.
type ConnID string

// Session binds a connection to the username it joined with.
type Session struct {
	Username string
	Conn     ConnID
	JoinedAt time.Time
}

// SuffixFunc returns the numeric suffix appended to a colliding username.
type SuffixFunc func() int

func randomSuffix() int {
	return 100 + rand.Intn(900)
}

// Presence tracks which usernames are held by live connections. Names are
// unique among current sessions only; a name is free again once its holder
// leaves.
type Presence struct {
	sessions map[ConnID]*Session
	byName   map[string]ConnID
	order    []ConnID
	suffix   SuffixFunc
}

// NewPresence returns an empty registry. A nil suffix draws random
// three-digit suffixes.
func NewPresence(suffix SuffixFunc) *Presence {
	if suffix == nil {
		suffix = randomSuffix
	}
	return &Presence{
		sessions: make(map[ConnID]*Session),
		byName:   make(map[string]ConnID),
		suffix:   suffix,
	}
}

// Join registers conn under requested, or under requested plus a numeric
// suffix when another live session already holds it. Suffixed candidates
// for which reserved reports true are skipped; reserved may be nil. The
// returned name is the one that must be used from then on.
func (p *Presence) Join(conn ConnID, requested string, now time.Time, reserved func(string) bool) string {
	assigned := requested
	for {
		_, taken := p.byName[assigned]
		if !taken && (assigned == requested || reserved == nil || !reserved(assigned)) {
			break
		}
		assigned = suffixed(requested, p.suffix())
	}

	p.sessions[conn] = &Session{Username: assigned, Conn: conn, JoinedAt: now}
	p.byName[assigned] = conn
	p.order = append(p.order, conn)
	return assigned
}

func suffixed(name string, n int) string {
	tail := fmt.Sprintf("_%d", n)
	runes := []rune(name)
	if room := MaxUsernameLength - len(tail); len(runes) > room {
		runes = runes[:room]
	}
	return string(runes) + tail
}

// Leave removes the session held by conn and returns its username.
func (p *Presence) Leave(conn ConnID) (string, bool) {
	s, ok := p.sessions[conn]
	if !ok {
		return "", false
	}
	delete(p.sessions, conn)
	delete(p.byName, s.Username)
	p.order = lo.Without(p.order, conn)
	return s.Username, true
}

// Rename moves conn's session to newName. It fails when another live
// session holds newName.
func (p *Presence) Rename(conn ConnID, newName string) error {
	s, ok := p.sessions[conn]
	if !ok {
		return fmt.Errorf("%w: connection has no session", ErrIdentity)
	}
	if holder, taken := p.byName[newName]; taken && holder != conn {
		return fmt.Errorf("%w: %q", ErrUsernameTaken, newName)
	}
	delete(p.byName, s.Username)
	s.Username = newName
	p.byName[newName] = conn
	return nil
}

// Online lists usernames in registration order.
func (p *Presence) Online() []string {
	return lo.Map(p.order, func(c ConnID, _ int) string {
		return p.sessions[c].Username
	})
}

// Conns lists the connections of every session in registration order.
func (p *Presence) Conns() []ConnID {
	return append([]ConnID(nil), p.order...)
}

// Lookup returns the connection holding username.
func (p *Presence) Lookup(username string) (ConnID, bool) {
	c, ok := p.byName[username]
	return c, ok
}

// Username returns the name conn joined under.
func (p *Presence) Username(conn ConnID) (string, bool) {
	s, ok := p.sessions[conn]
	if !ok {
		return "", false
	}
	return s.Username, true
}

// Count reports the number of live sessions.
func (p *Presence) Count() int {
	return len(p.sessions)
}
