package chat

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

const (
	DefaultHistoryCapacity = 200
	DefaultHistoryTTL      = 24 * time.Hour
	DefaultPrivateCapacity = 100
	DefaultPrivateReplay   = 20
	DefaultRateLimitMax    = 10
	DefaultRateLimitWindow = time.Minute
)

// Limits tunes the engine's retention and throttling.
type Limits struct {
	HistoryCapacity int
	HistoryTTL      time.Duration
	PrivateCapacity int
	PrivateReplay   int
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// DefaultLimits returns the standard retention and throttling settings.
func DefaultLimits() Limits {
	return Limits{
		HistoryCapacity: DefaultHistoryCapacity,
		HistoryTTL:      DefaultHistoryTTL,
		PrivateCapacity: DefaultPrivateCapacity,
		PrivateReplay:   DefaultPrivateReplay,
		RateLimitMax:    DefaultRateLimitMax,
		RateLimitWindow: DefaultRateLimitWindow,
	}
}

// Authenticator checks a join attempt against the credentials table.
// Implementations return ErrInvalidCredentials when a reserved username is
// used with the wrong password and nil otherwise.
type Authenticator interface {
	Authenticate(username, password string) error
}

type connState int

const (
	stateAnonymous connState = iota
	stateActive
)

// Engine owns all chat state and turns connection events into deliveries.
// It is not safe for concurrent use: a single goroutine must drive it so
// that every event runs to completion before the next one starts.
type Engine struct {
	log      *slog.Logger
	auth     Authenticator
	now      func() time.Time
	conns    map[ConnID]connState
	presence *Presence
	limiter  *RateLimiter
	history  *History
	private  *PrivateChats
	typing   map[string]struct{}
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAuthenticator enables password checks for reserved usernames.
func WithAuthenticator(a Authenticator) Option {
	return func(e *Engine) { e.auth = a }
}

// WithSuffix replaces the random source of username collision suffixes.
func WithSuffix(fn SuffixFunc) Option {
	return func(e *Engine) { e.presence.suffix = fn }
}

// NewEngine returns an engine with empty state. A nil logger falls back to
// slog.Default.
func NewEngine(log *slog.Logger, limits Limits, opts ...Option) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		log:      log,
		now:      time.Now,
		conns:    make(map[ConnID]connState),
		presence: NewPresence(nil),
		limiter:  NewRateLimiter(limits.RateLimitMax, limits.RateLimitWindow),
		history:  NewHistory(limits.HistoryCapacity, limits.HistoryTTL),
		private:  NewPrivateChats(limits.PrivateCapacity, limits.PrivateReplay),
		typing:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Connect records a new anonymous connection.
func (e *Engine) Connect(conn ConnID) {
	e.conns[conn] = stateAnonymous
}

// Disconnect tears down conn's session and announces the departure.
func (e *Engine) Disconnect(conn ConnID) []Delivery {
	delete(e.conns, conn)
	e.limiter.Forget(conn)

	username, ok := e.presence.Leave(conn)
	if !ok {
		return nil
	}
	e.log.Info("user_left", "conn", conn, "username", username)

	var out []Delivery
	if _, typing := e.typing[username]; typing {
		delete(e.typing, username)
		out = append(out, e.toActive(Outbound{Type: EventStopTyping, Payload: UserPayload{Username: username}}))
	}
	return append(out,
		e.toActive(Outbound{Type: EventUserLeft, Payload: UserPayload{Username: username}}),
		e.presenceUpdate(),
	)
}

// Handle applies one inbound event from conn. Failures are turned into an
// error event for conn alone and leave the state untouched.
func (e *Engine) Handle(conn ConnID, in Inbound) []Delivery {
	out, err := e.handle(conn, in)
	if err != nil {
		e.log.Debug("event_rejected", "conn", conn, "type", in.Type(), "code", ErrorCode(err), "error", err)
		return []Delivery{e.Reject(conn, err)}
	}
	return out
}

// Reject builds the error delivery for conn.
func (e *Engine) Reject(conn ConnID, err error) Delivery {
	return Delivery{To: []ConnID{conn}, Event: errorEvent(err)}
}

func (e *Engine) handle(conn ConnID, in Inbound) ([]Delivery, error) {
	state, known := e.conns[conn]
	if !known {
		return nil, fmt.Errorf("%w: unknown connection", ErrIdentity)
	}
	if join, ok := in.(Join); ok {
		if state == stateActive {
			return nil, fmt.Errorf("%w: already joined, use rename", ErrValidation)
		}
		return e.join(conn, join)
	}

	username, ok := e.presence.Username(conn)
	if state != stateActive || !ok {
		return nil, fmt.Errorf("%w: %s requires a username", ErrIdentity, in.Type())
	}

	switch ev := in.(type) {
	case Send:
		return e.send(conn, username, ev)
	case React:
		return e.react(username, ev), nil
	case Typing:
		e.typing[username] = struct{}{}
		return []Delivery{e.toActiveExcept(conn, Outbound{Type: EventTyping, Payload: UserPayload{Username: username}})}, nil
	case StopTyping:
		delete(e.typing, username)
		return []Delivery{e.toActiveExcept(conn, Outbound{Type: EventStopTyping, Payload: UserPayload{Username: username}})}, nil
	case Rename:
		return e.rename(conn, username, ev)
	case InvitePrivate:
		return e.invite(conn, username, ev)
	case AcceptPrivate:
		return e.accept(conn, username, ev)
	case SendPrivate:
		return e.sendPrivate(conn, username, ev)
	default:
		return nil, fmt.Errorf("%w: unsupported event %s", ErrValidation, in.Type())
	}
}

func (e *Engine) join(conn ConnID, req Join) ([]Delivery, error) {
	requested, err := SanitizeUsername(req.Username)
	if err != nil {
		return nil, err
	}
	if e.auth != nil {
		if err := e.auth.Authenticate(requested, req.Password); err != nil {
			return nil, err
		}
	}

	assigned := e.presence.Join(conn, requested, e.now(), e.reserved)
	e.conns[conn] = stateActive
	e.log.Info("user_joined", "conn", conn, "requested", requested, "username", assigned)

	return []Delivery{
		e.to(conn, Outbound{Type: EventJoined, Payload: JoinedPayload{Username: assigned, Online: e.presence.Online()}}),
		e.to(conn, Outbound{Type: EventHistory, Payload: HistoryPayload{Messages: e.history.Snapshot(e.now())}}),
		e.toActiveExcept(conn, Outbound{Type: EventUserJoined, Payload: UserPayload{Username: assigned}}),
		e.presenceUpdate(),
	}, nil
}

// reserved reports whether name is held in the credentials table, which
// makes it unavailable as a collision fallback.
func (e *Engine) reserved(name string) bool {
	return e.auth != nil && e.auth.Authenticate(name, "") != nil
}

func (e *Engine) send(conn ConnID, username string, req Send) ([]Delivery, error) {
	body, err := NormalizeBody(req.Body)
	if err != nil {
		return nil, err
	}
	if !e.limiter.Allow(conn, e.now()) {
		return nil, fmt.Errorf("%w: slow down", ErrRateLimited)
	}

	msg, expired := e.history.Append(username, body, e.now())
	out := []Delivery{e.toActive(Outbound{Type: EventMessage, Payload: msg})}
	if len(expired) > 0 {
		out = append(out, e.deleted(expired))
	}
	return out, nil
}

func (e *Engine) react(username string, req React) []Delivery {
	msg, ok := e.history.ApplyReaction(req.MessageID, req.Symbol, username, req.Action)
	if !ok {
		e.log.Debug("reaction_ignored", "username", username, "message", req.MessageID)
		return nil
	}
	return []Delivery{e.toActive(Outbound{
		Type:    EventReaction,
		Payload: ReactionPayload{MessageID: msg.ID, Reactions: msg.Reactions},
	})}
}

func (e *Engine) rename(conn ConnID, current string, req Rename) ([]Delivery, error) {
	name, err := SanitizeUsername(req.NewUsername)
	if err != nil {
		return nil, err
	}
	if name == current {
		return nil, nil
	}
	if e.auth != nil {
		if err := e.auth.Authenticate(name, ""); err != nil {
			return nil, err
		}
	}
	if err := e.presence.Rename(conn, name); err != nil {
		return nil, err
	}
	if _, typing := e.typing[current]; typing {
		delete(e.typing, current)
		e.typing[name] = struct{}{}
	}
	e.log.Info("user_renamed", "conn", conn, "from", current, "to", name)

	return []Delivery{
		e.toActive(Outbound{Type: EventUserRenamed, Payload: RenamedPayload{OldUsername: current, NewUsername: name}}),
		e.presenceUpdate(),
	}, nil
}

func (e *Engine) invite(conn ConnID, from string, req InvitePrivate) ([]Delivery, error) {
	if req.ToUsername == from {
		return nil, fmt.Errorf("%w: cannot invite yourself", ErrValidation)
	}
	target, ok := e.presence.Lookup(req.ToUsername)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not online", ErrNotFound, req.ToUsername)
	}
	return []Delivery{
		e.to(target, Outbound{Type: EventInvite, Payload: InvitePayload{FromUsername: from}}),
		e.to(conn, Outbound{Type: EventInviteSent, Payload: InviteSentPayload{ToUsername: req.ToUsername}}),
	}, nil
}

func (e *Engine) accept(conn ConnID, by string, req AcceptPrivate) ([]Delivery, error) {
	if req.FromUsername == by {
		return nil, fmt.Errorf("%w: cannot accept your own invite", ErrValidation)
	}
	inviter, ok := e.presence.Lookup(req.FromUsername)
	if !ok {
		return nil, fmt.Errorf("%w: %q is no longer online", ErrNotFound, req.FromUsername)
	}

	chat := e.private.Open(req.FromUsername, by)
	e.log.Info("private_chat_opened", "chat", chat.ID)
	replay := Outbound{Type: EventPrivateHistory, Payload: PrivateHistoryPayload{
		ChatID:       chat.ID,
		Participants: []string{chat.Participants[0], chat.Participants[1]},
		Messages:     e.private.Recent(chat.ID),
	}}
	return []Delivery{
		e.to(inviter, Outbound{Type: EventAccepted, Payload: AcceptedPayload{ChatID: chat.ID, Username: by}}),
		{To: []ConnID{inviter, conn}, Event: replay},
	}, nil
}

func (e *Engine) sendPrivate(conn ConnID, from string, req SendPrivate) ([]Delivery, error) {
	body, err := NormalizeBody(req.Body)
	if err != nil {
		return nil, err
	}
	if err := e.private.Check(req.ChatID, from, req.ToUsername); err != nil {
		return nil, err
	}
	if !e.limiter.Allow(conn, e.now()) {
		return nil, fmt.Errorf("%w: slow down", ErrRateLimited)
	}
	msg, err := e.private.Append(req.ChatID, from, req.ToUsername, body, e.now())
	if err != nil {
		return nil, err
	}

	targets := []ConnID{conn}
	if recipient, online := e.presence.Lookup(req.ToUsername); online {
		targets = []ConnID{recipient, conn}
	}
	return []Delivery{{To: targets, Event: Outbound{Type: EventPrivateMsg, Payload: msg}}}, nil
}

// PruneHistory evicts expired messages and announces them.
func (e *Engine) PruneHistory() []Delivery {
	expired := e.history.Prune(e.now())
	if len(expired) == 0 {
		return nil
	}
	e.log.Info("history_pruned", "count", len(expired))
	return []Delivery{e.deleted(expired)}
}

// SweepRateLimits drops rate windows of departed connections and windows
// that have already elapsed.
func (e *Engine) SweepRateLimits() int {
	return e.limiter.Sweep(e.now(), func(c ConnID) bool {
		_, ok := e.conns[c]
		return ok
	})
}

// Stats is a point-in-time view of the engine's size.
type Stats struct {
	Connections int
	Sessions    int
	History     int
	RateWindows int
}

// Stats reports the current state sizes.
func (e *Engine) Stats() Stats {
	return Stats{
		Connections: len(e.conns),
		Sessions:    e.presence.Count(),
		History:     e.history.Len(),
		RateWindows: e.limiter.Len(),
	}
}

func (e *Engine) deleted(ids []string) Delivery {
	return e.toActive(Outbound{Type: EventMessagesDeleted, Payload: DeletedPayload{IDs: ids}})
}

func (e *Engine) presenceUpdate() Delivery {
	users := e.presence.Online()
	return e.toActive(Outbound{Type: EventPresence, Payload: PresencePayload{Count: len(users), Users: users}})
}

func (e *Engine) to(conn ConnID, ev Outbound) Delivery {
	return Delivery{To: []ConnID{conn}, Event: ev}
}

func (e *Engine) toActive(ev Outbound) Delivery {
	return Delivery{To: e.presence.Conns(), Event: ev}
}

func (e *Engine) toActiveExcept(conn ConnID, ev Outbound) Delivery {
	return Delivery{To: lo.Without(e.presence.Conns(), conn), Event: ev}
}
