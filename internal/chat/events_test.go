package chat

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Inbound
	}{
		{"join", `{"type":"join","payload":{"username":"alice"}}`, Join{Username: "alice"}},
		{"join with password", `{"type":"join","payload":{"username":"admin","password":"pw"}}`, Join{Username: "admin", Password: "pw"}},
		{"message", `{"type":"message","payload":{"body":"hi"}}`, Send{Body: "hi"}},
		{"reaction", `{"type":"reaction","payload":{"messageId":"m1","symbol":"👍","action":"remove"}}`,
			React{MessageID: "m1", Symbol: "👍", Action: ReactionRemove}},
		{"typing without payload", `{"type":"typing"}`, Typing{}},
		{"stop typing", `{"type":"stop-typing","payload":{}}`, StopTyping{}},
		{"rename", `{"type":"rename","payload":{"newUsername":"bob"}}`, Rename{NewUsername: "bob"}},
		{"invite", `{"type":"invite-private","payload":{"toUsername":"bob"}}`, InvitePrivate{ToUsername: "bob"}},
		{"accept", `{"type":"accept-private","payload":{"fromUsername":"alice"}}`, AcceptPrivate{FromUsername: "alice"}},
		{"private message", `{"type":"private-message","payload":{"chatId":"pc_alice_bob","toUsername":"bob","body":"psst"}}`,
			SendPrivate{ChatID: "pc_alice_bob", ToUsername: "bob", Body: "psst"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			got, err := Decode([]byte(tc.raw))
			req.NoError(err)
			req.Equal(tc.want, got)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":          `hello`,
		"missing type":      `{"payload":{}}`,
		"unknown type":      `{"type":"shout","payload":{}}`,
		"missing payload":   `{"type":"message"}`,
		"null payload":      `{"type":"join","payload":null}`,
		"wrong field type":  `{"type":"message","payload":{"body":42}}`,
		"missing field":     `{"type":"reaction","payload":{"messageId":"m1","action":"add"}}`,
		"bad action":        `{"type":"reaction","payload":{"messageId":"m1","symbol":"👍","action":"toggle"}}`,
		"empty username":    `{"type":"join","payload":{"username":""}}`,
		"oversized message": `{"type":"message","payload":{"body":"` + strings.Repeat("a", 3000) + `"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			got, err := Decode([]byte(raw))
			req.ErrorIs(err, ErrValidation)
			req.Nil(got)
		})
	}
}

func TestDecode_LongUsernames(t *testing.T) {
	req := require.New(t)
	long := strings.Repeat("n", 60)
	in, err := Decode([]byte(`{"type":"join","payload":{"username":"` + long + `"}}`))
	req.NoError(err, "long names are truncated later, not rejected")
	name, err := SanitizeUsername(in.(Join).Username)
	req.NoError(err)
	req.Equal(strings.Repeat("n", MaxUsernameLength), name)

	_, err = Decode([]byte(`{"type":"rename","payload":{"newUsername":"` + strings.Repeat("n", 300) + `"}}`))
	req.ErrorIs(err, ErrValidation)
}

func TestDecode_FieldNamesInErrors(t *testing.T) {
	req := require.New(t)
	_, err := Decode([]byte(`{"type":"reaction","payload":{"messageId":"m1","symbol":"👍","action":"toggle"}}`))
	req.ErrorContains(err, "action must be one of add remove")
}

func TestOutbound_WireShape(t *testing.T) {
	req := require.New(t)
	raw, err := json.Marshal(Outbound{Type: EventReaction, Payload: ReactionPayload{
		MessageID: "m1",
		Reactions: Reactions{{Symbol: "❤️", Count: 1, Users: []string{"bob"}}},
	}})
	req.NoError(err)
	req.JSONEq(`{"type":"reaction","payload":{"messageId":"m1","reactions":[{"symbol":"❤️","count":1,"users":["bob"]}]}}`, string(raw))
}
