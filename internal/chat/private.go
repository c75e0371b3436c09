package chat

import (
	"fmt"
	"slices"
	"time"
)

// PrivateMessage is one message inside a private chat.
type PrivateMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// PrivateChat is a two-person conversation with a bounded log.
type PrivateChat struct {
	ID           string
	Participants [2]string
	messages     []PrivateMessage
}

func (c *PrivateChat) has(username string) bool {
	return c.Participants[0] == username || c.Participants[1] == username
}

// ChatIDFor derives the chat id for a pair of users. The order of the
// arguments does not matter.
func ChatIDFor(a, b string) string {
	pair := []string{a, b}
	slices.Sort(pair)
	return "pc_" + pair[0] + "_" + pair[1]
}

// PrivateChats holds every private chat opened since start-up. Chats outlive
// their participants' connections so the log can be replayed on the next
// accept.
type PrivateChats struct {
	capacity int
	replay   int
	chats    map[string]*PrivateChat
}

// NewPrivateChats returns an empty registry keeping at most capacity
// messages per chat and replaying the newest replay of them on accept.
func NewPrivateChats(capacity, replay int) *PrivateChats {
	if capacity <= 0 {
		capacity = DefaultPrivateCapacity
	}
	if replay <= 0 {
		replay = DefaultPrivateReplay
	}
	return &PrivateChats{
		capacity: capacity,
		replay:   replay,
		chats:    make(map[string]*PrivateChat),
	}
}

// Open returns the chat between a and b, creating it on first use.
func (p *PrivateChats) Open(a, b string) *PrivateChat {
	id := ChatIDFor(a, b)
	if c, ok := p.chats[id]; ok {
		return c
	}
	pair := [2]string{a, b}
	slices.Sort(pair[:])
	c := &PrivateChat{ID: id, Participants: pair}
	p.chats[id] = c
	return c
}

// Recent returns up to the replay limit of the newest messages in chatID.
func (p *PrivateChats) Recent(chatID string) []PrivateMessage {
	c, ok := p.chats[chatID]
	if !ok {
		return []PrivateMessage{}
	}
	start := max(0, len(c.messages)-p.replay)
	return append([]PrivateMessage{}, c.messages[start:]...)
}

// Check reports whether from may write to to in chatID: the chat must exist
// and hold both users.
func (p *PrivateChats) Check(chatID, from, to string) error {
	_, err := p.lookup(chatID, from, to)
	return err
}

func (p *PrivateChats) lookup(chatID, from, to string) (*PrivateChat, error) {
	c, ok := p.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("%w: private chat %q", ErrNotFound, chatID)
	}
	if from == to || !c.has(from) || !c.has(to) {
		return nil, fmt.Errorf("%w: %q and %q are not the members of %q", ErrNotFound, from, to, chatID)
	}
	return c, nil
}

// Append stores a message from one participant to the other. The chat must
// exist and both users must belong to it.
func (p *PrivateChats) Append(chatID, from, to, body string, now time.Time) (PrivateMessage, error) {
	c, err := p.lookup(chatID, from, to)
	if err != nil {
		return PrivateMessage{}, err
	}
	m := PrivateMessage{
		ID:        NewMessageID(),
		ChatID:    chatID,
		From:      from,
		To:        to,
		Body:      body,
		CreatedAt: now,
	}
	c.messages = append(c.messages, m)
	if over := len(c.messages) - p.capacity; over > 0 {
		c.messages = slices.Clone(c.messages[over:])
	}
	return m, nil
}

// Len reports how many messages chatID holds.
func (p *PrivateChats) Len(chatID string) int {
	c, ok := p.chats[chatID]
	if !ok {
		return 0
	}
	return len(c.messages)
}
