package identity

import (
	"context"

	"github.com/pixiscript/dashboard/auth/state"
)

// Backend is the contract the session core needs from the remote
// identity backend.
type Backend interface {
	Authenticator
	Refresher
}

// Authenticator performs the initial email/password login.
type Authenticator interface {
	Login(ctx context.Context, email string, password string) (*state.Credentials, error)
}

// Refresher exchanges a refresh token for a fresh set of credentials.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*state.Credentials, error)
}
