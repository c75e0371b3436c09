package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxUsernameLength = 20
	MaxBodyLength     = 500
)

var usernameStripper = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "")

// SanitizeUsername strips markup characters, trims surrounding space and
// truncates to MaxUsernameLength runes.
func SanitizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(usernameStripper.Replace(raw))
	if utf8.RuneCountInString(name) > MaxUsernameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxUsernameLength]))
	}
	if name == "" {
		return "", fmt.Errorf("%w: username is empty", ErrValidation)
	}
	return name, nil
}

// NormalizeBody trims a message body and enforces the length bounds.
func NormalizeBody(raw string) (string, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return "", fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if n := utf8.RuneCountInString(body); n > MaxBodyLength {
		return "", fmt.Errorf("%w: message is %d characters, limit is %d", ErrValidation, n, MaxBodyLength)
	}
	return body, nil
}
