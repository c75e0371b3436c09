package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/chat"
)

func TestPassword_HashAndCompare(t *testing.T) {
	req := require.New(t)
	hash, err := HashPassword("correct horse")
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := ComparePassword("correct horse", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("battery staple", hash)
	req.NoError(err)
	req.False(ok)

	other, err := HashPassword("correct horse")
	req.NoError(err)
	req.NotEqual(hash, other, "salts differ")
}

func TestPassword_Malformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA",
	} {
		_, err := ComparePassword("pw", encoded)
		require.ErrorIs(t, err, ErrMalformedHash, encoded)
	}
}

func TestTable_Authenticate(t *testing.T) {
	req := require.New(t)
	hash, err := HashPassword("s3cret")
	req.NoError(err)

	table, err := Load(strings.NewReader("users:\n  - username: admin\n    password_hash: " + hash + "\n"))
	req.NoError(err)
	req.Equal(1, table.Len())

	req.NoError(table.Authenticate("admin", "s3cret"))
	req.ErrorIs(table.Authenticate("admin", "wrong"), chat.ErrInvalidCredentials)
	req.ErrorIs(table.Authenticate("admin", ""), chat.ErrInvalidCredentials)
	req.NoError(table.Authenticate("guest", ""), "unlisted names are open")
}

func TestTable_LoadRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"markup in name":  "users:\n  - username: \"<b>\"\n    password_hash: x\n",
		"missing hash":    "users:\n  - username: admin\n",
		"duplicate name":  "users:\n  - username: a\n    password_hash: x\n  - username: a\n    password_hash: y\n",
		"not a user list": "users: nope\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestTable_LoadFile(t *testing.T) {
	req := require.New(t)

	empty := filepath.Join(t.TempDir(), "users.yaml")
	req.NoError(os.WriteFile(empty, nil, 0o600))
	table, err := LoadFile(empty)
	req.NoError(err)
	req.Equal(0, table.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	req.Error(err)
}
