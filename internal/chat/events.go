package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EventType names an inbound or outbound event on the wire.
type EventType string

const (
	EventJoin          EventType = "join"
	EventMessage       EventType = "message"
	EventReaction      EventType = "reaction"
	EventTyping        EventType = "typing"
	EventStopTyping    EventType = "stop-typing"
	EventRename        EventType = "rename"
	EventInvitePrivate EventType = "invite-private"
	EventAcceptPrivate EventType = "accept-private"
	EventPrivateMsg    EventType = "private-message"

	EventJoined          EventType = "joined"
	EventHistory         EventType = "history"
	EventUserJoined      EventType = "user-joined"
	EventUserLeft        EventType = "user-left"
	EventUserRenamed     EventType = "user-renamed"
	EventPresence        EventType = "presence"
	EventMessagesDeleted EventType = "messages-deleted"
	EventInvite          EventType = "private-chat-invite"
	EventInviteSent      EventType = "private-chat-invite-sent"
	EventAccepted        EventType = "private-chat-accepted"
	EventPrivateHistory  EventType = "private-chat-history"
	EventError           EventType = "error"
)

// Inbound is one decoded client request.
type Inbound interface {
	Type() EventType
}

// Join claims a username, with a password when the name is reserved.
// Names beyond MaxUsernameLength are truncated on join; the validation
// bound only caps the raw input.
type Join struct {
	Username string `json:"username" validate:"required,max=256"`
	Password string `json:"password" validate:"max=128"`
}

// Send posts a public message.
type Send struct {
	Body string `json:"body" validate:"required,max=2048"`
}

// React adds or removes the sender's reaction on a public message.
type React struct {
	MessageID string         `json:"messageId" validate:"required,max=64"`
	Symbol    string         `json:"symbol" validate:"required,max=32"`
	Action    ReactionAction `json:"action" validate:"required,oneof=add remove"`
}

// Typing announces that the sender started typing.
type Typing struct{}

// StopTyping announces that the sender stopped typing.
type StopTyping struct{}

// Rename changes the sender's username. Long names are truncated as on
// join.
type Rename struct {
	NewUsername string `json:"newUsername" validate:"required,max=256"`
}

// InvitePrivate asks another online user to open a private chat.
type InvitePrivate struct {
	ToUsername string `json:"toUsername" validate:"required,max=64"`
}

// AcceptPrivate opens the private chat with the user who sent an invite.
type AcceptPrivate struct {
	FromUsername string `json:"fromUsername" validate:"required,max=64"`
}

// SendPrivate posts a message inside a private chat.
type SendPrivate struct {
	ChatID     string `json:"chatId" validate:"required,max=160"`
	ToUsername string `json:"toUsername" validate:"required,max=64"`
	Body       string `json:"body" validate:"required,max=2048"`
}

func (Join) Type() EventType          { return EventJoin }
func (Send) Type() EventType          { return EventMessage }
func (React) Type() EventType         { return EventReaction }
func (Typing) Type() EventType        { return EventTyping }
func (StopTyping) Type() EventType    { return EventStopTyping }
func (Rename) Type() EventType        { return EventRename }
func (InvitePrivate) Type() EventType { return EventInvitePrivate }
func (AcceptPrivate) Type() EventType { return EventAcceptPrivate }
func (SendPrivate) Type() EventType   { return EventPrivateMsg }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses a raw frame into one of the inbound event types. Frames
// with an unknown type or a payload that does not validate are rejected.
func Decode(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", ErrValidation, err)
	}

	switch env.Type {
	case EventJoin:
		return decodePayload[Join](env.Payload)
	case EventMessage:
		return decodePayload[Send](env.Payload)
	case EventReaction:
		return decodePayload[React](env.Payload)
	case EventTyping:
		return Typing{}, nil
	case EventStopTyping:
		return StopTyping{}, nil
	case EventRename:
		return decodePayload[Rename](env.Payload)
	case EventInvitePrivate:
		return decodePayload[InvitePrivate](env.Payload)
	case EventAcceptPrivate:
		return decodePayload[AcceptPrivate](env.Payload)
	case EventPrivateMsg:
		return decodePayload[SendPrivate](env.Payload)
	case "":
		return nil, fmt.Errorf("%w: missing event type", ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrValidation, env.Type)
	}
}

func decodePayload[T Inbound](raw json.RawMessage) (Inbound, error) {
	var payload T
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: %s requires a payload", ErrValidation, payload.Type())
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrValidation, payload.Type(), err)
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}
	return payload, nil
}

func describe(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err.Error()
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		switch f.Tag() {
		case "required":
			parts = append(parts, f.Field()+" is required")
		case "max":
			parts = append(parts, f.Field()+" is too long")
		case "oneof":
			parts = append(parts, f.Field()+" must be one of "+f.Param())
		default:
			parts = append(parts, f.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
