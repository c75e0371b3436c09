package chat

// Outbound is one event sent to clients.
type Outbound struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Delivery pairs an outbound event with the connections it goes to.
type Delivery struct {
	To    []ConnID
	Event Outbound
}

// JoinedPayload confirms a join with the assigned name and who is online.
type JoinedPayload struct {
	Username string   `json:"username"`
	Online   []string `json:"online"`
}

// HistoryPayload carries the retained public messages, oldest first.
type HistoryPayload struct {
	Messages []Message `json:"messages"`
}

// ReactionPayload carries the full reaction state of one message.
type ReactionPayload struct {
	MessageID string    `json:"messageId"`
	Reactions Reactions `json:"reactions"`
}

// UserPayload names the user an event is about.
type UserPayload struct {
	Username string `json:"username"`
}

// RenamedPayload announces a username change.
type RenamedPayload struct {
	OldUsername string `json:"oldUsername"`
	NewUsername string `json:"newUsername"`
}

// PresencePayload lists online users in join order.
type PresencePayload struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// DeletedPayload lists messages that expired from the history.
type DeletedPayload struct {
	IDs []string `json:"ids"`
}

// InvitePayload tells the target who invited them.
type InvitePayload struct {
	FromUsername string `json:"fromUsername"`
}

// InviteSentPayload confirms an invite to its sender.
type InviteSentPayload struct {
	ToUsername string `json:"toUsername"`
}

// AcceptedPayload tells the inviter which chat was opened and by whom.
type AcceptedPayload struct {
	ChatID   string `json:"chatId"`
	Username string `json:"username"`
}

// PrivateHistoryPayload replays the newest messages of a private chat.
type PrivateHistoryPayload struct {
	ChatID       string           `json:"chatId"`
	Participants []string         `json:"participants"`
	Messages     []PrivateMessage `json:"messages"`
}

// ErrorPayload reports a rejected request to its sender only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorEvent(err error) Outbound {
	return Outbound{Type: EventError, Payload: ErrorPayload{Code: ErrorCode(err), Message: err.Error()}}
}
