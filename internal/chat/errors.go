package chat

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = fmt.Errorf("validation failed")
	ErrRateLimited        = fmt.Errorf("rate limit exceeded")
	ErrNotFound           = fmt.Errorf("not found")
	ErrIdentity           = fmt.Errorf("join required")
	ErrUsernameTaken      = fmt.Errorf("username already in use")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
)

// ErrorCode maps an engine error onto the code carried by outbound error events.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrIdentity):
		return "identity"
	case errors.Is(err, ErrUsernameTaken):
		return "username_taken"
	case errors.Is(err, ErrInvalidCredentials):
		return "unauthorized"
	default:
		return "internal"
	}
}
