// Package auth gates transport connection on an authenticated user
// session. The transport refuses to dial until the configured
// Authenticator reports an active session.
package auth

import (
	"context"
	"fmt"
)

// Authenticator reports whether a user session is active and supplies
// the credential the transport presents on connect.
type Authenticator interface {
	// Authenticated reports whether a valid session exists.
	Authenticated(ctx context.Context) (bool, error)

	// Token returns the bearer credential for the session, or an
	// error when no session is active.
	Token(ctx context.Context) (string, error)
}

// Error indicates a connection was refused for lack of a session.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth: %s", e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}
