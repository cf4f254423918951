package auth

import (
	"context"

	"github.com/pkg/errors"
)

// Identity is the verified principal attached to a session after a
// successful token check. Immutable once attached.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

var (
	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Gate verifies a bearer credential and returns the identity it names.
// Implementations must honor ctx cancellation; callers enforce the timeout.
type Gate interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
