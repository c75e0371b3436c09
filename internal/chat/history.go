package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Message is one broadcast chat message.
type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Reactions Reactions `json:"reactions"`
}

func (m *Message) clone() Message {
	c := *m
	c.Reactions = m.Reactions.clone()
	return c
}

// NewMessageID returns a time-ordered unique id.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// History is the ordered log of broadcast messages. Messages older than the
// TTL are evicted and reported so clients can drop them; messages beyond the
// capacity are trimmed silently.
type History struct {
	capacity int
	ttl      time.Duration
	messages []*Message
	byID     map[string]*Message
}

// NewHistory returns an empty history. Non-positive arguments select the
// defaults.
func NewHistory(capacity int, ttl time.Duration) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &History{
		capacity: capacity,
		ttl:      ttl,
		byID:     make(map[string]*Message),
	}
}

// Append records a new message and evicts what no longer fits. The ids of
// messages that expired are returned; capacity evictions are not.
func (h *History) Append(author, body string, now time.Time) (Message, []string) {
	m := &Message{
		ID:        NewMessageID(),
		Author:    author,
		Body:      body,
		CreatedAt: now,
		Reactions: Reactions{},
	}
	for _, taken := h.byID[m.ID]; taken; _, taken = h.byID[m.ID] {
		m.ID = NewMessageID()
	}
	h.messages = append(h.messages, m)
	h.byID[m.ID] = m

	expired := h.Prune(now)
	h.trim()
	return m.clone(), expired
}

// Prune drops every message older than the TTL and returns their ids.
func (h *History) Prune(now time.Time) []string {
	cutoff := now.Add(-h.ttl)
	expired, kept := lo.FilterReject(h.messages, func(m *Message, _ int) bool {
		return m.CreatedAt.Before(cutoff)
	})
	if len(expired) == 0 {
		return nil
	}
	h.messages = kept
	return lo.Map(expired, func(m *Message, _ int) string {
		delete(h.byID, m.ID)
		return m.ID
	})
}

func (h *History) trim() {
	if over := len(h.messages) - h.capacity; over > 0 {
		h.drop(over)
	}
}

func (h *History) drop(n int) {
	for _, m := range h.messages[:n] {
		delete(h.byID, m.ID)
	}
	h.messages = append([]*Message(nil), h.messages[n:]...)
}

// Snapshot returns the retained messages that are still within the TTL at
// now, oldest first.
func (h *History) Snapshot(now time.Time) []Message {
	cutoff := now.Add(-h.ttl)
	live := lo.Filter(h.messages, func(m *Message, _ int) bool {
		return !m.CreatedAt.Before(cutoff)
	})
	return lo.Map(live, func(m *Message, _ int) Message { return m.clone() })
}

// Find returns a copy of the message with the given id.
func (h *History) Find(id string) (Message, bool) {
	m, ok := h.byID[id]
	if !ok {
		return Message{}, false
	}
	return m.clone(), true
}

// ApplyReaction adds or removes username's reaction on a message. It
// reports false when the message is unknown, typically because it expired.
func (h *History) ApplyReaction(id, symbol, username string, action ReactionAction) (Message, bool) {
	m, ok := h.byID[id]
	if !ok {
		return Message{}, false
	}
	switch action {
	case ReactionAdd:
		m.Reactions = m.Reactions.Add(symbol, username)
	case ReactionRemove:
		m.Reactions = m.Reactions.Remove(symbol, username)
	}
	return m.clone(), true
}

// Len reports how many messages are retained, expired or not.
func (h *History) Len() int {
	return len(h.messages)
}
