package state

import (
	"context"
	"time"
)

// TerminalError marks a credential record as permanently unusable.
// Once set, the only way back to a working session is a new login.
type TerminalError string

const (
	// TerminalErrorNone means the record is still exchangeable.
	TerminalErrorNone TerminalError = ""
	// TerminalErrorRefreshFailed is set when the refresh-token
	// exchange failed. The record must never be exchanged again.
	TerminalErrorRefreshFailed TerminalError = "refresh-failed"
)

// Credentials represents the short-lived session credentials issued by
// the identity backend.
type Credentials struct {
	// AccessToken is the Bearer token used to access the backend API.
	AccessToken string
	// RefreshToken is used to acquire a new access token.
	RefreshToken string
	// IssuedAt is when this record was created. Diagnostics only.
	IssuedAt time.Time
	// ExpiresAt marks the end of validity for the access token. The
	// session must exchange the refresh token before this time.
	ExpiresAt time.Time
	// TerminalError, when set, marks the record permanently unusable.
	TerminalError TerminalError `json:",omitempty"`
}

// Dead reports whether the record is in a terminal state.
func (c *Credentials) Dead() bool {
	return c.TerminalError != TerminalErrorNone
}

// Store defines the interface for persisting the session credentials
// so that a session survives a process restart.
type Store interface {
	GetCredentials(context.Context) (*Credentials, error)
	PutCredentials(context.Context, *Credentials) error
	ClearCredentials(context.Context) error
}
