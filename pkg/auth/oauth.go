package auth

import (
	"context"

	"golang.org/x/oauth2"
)

// OAuth adapts an oauth2.TokenSource to the Authenticator interface.
// The source handles refresh; an expired, unrefreshable token reads as
// no session.
type OAuth struct {
	source oauth2.TokenSource
}

// NewOAuth creates an authenticator over an oauth2 token source.
func NewOAuth(source oauth2.TokenSource) *OAuth {
	return &OAuth{source: source}
}

// Authenticated reports whether a valid token can be obtained.
func (o *OAuth) Authenticated(ctx context.Context) (bool, error) {
	token, err := o.source.Token()
	if err != nil {
		// Refresh failure means the session lapsed, not a transport
		// error worth surfacing.
		return false, nil
	}
	return token.Valid(), nil
}

// Token returns the current access token, refreshing if needed.
func (o *OAuth) Token(ctx context.Context) (string, error) {
	token, err := o.source.Token()
	if err != nil {
		return "", &Error{Reason: "obtain oauth token", Err: err}
	}
	if !token.Valid() {
		return "", &Error{Reason: "oauth token expired"}
	}
	return token.AccessToken, nil
}

var _ Authenticator = (*OAuth)(nil)
