// Package auth reserves usernames behind passwords. Names listed in the
// table can only be joined with the matching password; every other name is
// open to anyone.
package auth

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/relaychat/internal/chat"
)

type entry struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

type file struct {
	Users []entry `yaml:"users"`
}

// Table maps reserved usernames to their password hashes.
type Table struct {
	hashes map[string]string
}

// LoadFile reads a table from a YAML file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open users file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a table from YAML of the form
//
//	users:
//	  - username: alice
//	    password_hash: $argon2id$...
func Load(r io.Reader) (*Table, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode users file: %w", err)
	}

	t := &Table{hashes: make(map[string]string, len(doc.Users))}
	for i, u := range doc.Users {
		name, err := chat.SanitizeUsername(u.Username)
		if err != nil || name != u.Username {
			return nil, fmt.Errorf("users[%d]: invalid username %q", i, u.Username)
		}
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("users[%d]: %q has no password_hash", i, u.Username)
		}
		if _, dup := t.hashes[name]; dup {
			return nil, fmt.Errorf("users[%d]: duplicate username %q", i, name)
		}
		t.hashes[name] = u.PasswordHash
	}
	return t, nil
}

// Authenticate implements chat.Authenticator.
func (t *Table) Authenticate(username, password string) error {
	hash, reserved := t.hashes[username]
	if !reserved {
		return nil
	}
	ok, err := ComparePassword(password, hash)
	if err != nil || !ok {
		return fmt.Errorf("%w: %q is reserved", chat.ErrInvalidCredentials, username)
	}
	return nil
}

// Len reports how many usernames are reserved.
func (t *Table) Len() int {
	return len(t.hashes)
}
