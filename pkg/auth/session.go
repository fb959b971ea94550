package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/voicelink/voicelink/internal/httpc"
)

// SessionChecker validates a token against a session-check endpoint
// before each connect. The endpoint is expected to return 200 with
// `{"active": true}` for a live session.
type SessionChecker struct {
	checkURL string
	token    string
	client   *http.Client
}

// NewSessionChecker creates an authenticator that asks checkURL
// whether the token still maps to an active session.
func NewSessionChecker(checkURL, token string) *SessionChecker {
	return &SessionChecker{
		checkURL: checkURL,
		token:    token,
		client:   httpc.Client,
	}
}

type sessionStatus struct {
	Active bool `json:"active"`
}

// Authenticated queries the session-check endpoint.
func (s *SessionChecker) Authenticated(ctx context.Context) (bool, error) {
	if s.token == "" {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.checkURL, nil)
	if err != nil {
		return false, &Error{Reason: "build session check request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, &Error{Reason: "session check failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, &Error{Reason: fmt.Sprintf("session check returned %d", resp.StatusCode)}
	}

	var status sessionStatus
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, &Error{Reason: "decode session check response", Err: err}
	}

	return status.Active, nil
}

// Token returns the configured token when a session is active.
func (s *SessionChecker) Token(ctx context.Context) (string, error) {
	ok, err := s.Authenticated(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &Error{Reason: "no active session"}
	}
	return s.token, nil
}

var _ Authenticator = (*SessionChecker)(nil)
