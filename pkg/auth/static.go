package auth

import "context"

// Static is an Authenticator backed by a fixed token. An empty token
// means no session.
type Static struct {
	token string
}

// NewStatic creates a static authenticator.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

// Authenticated reports whether a token is present.
func (s *Static) Authenticated(ctx context.Context) (bool, error) {
	return s.token != "", nil
}

// Token returns the configured token.
func (s *Static) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", &Error{Reason: "no token configured"}
	}
	return s.token, nil
}

var _ Authenticator = (*Static)(nil)
