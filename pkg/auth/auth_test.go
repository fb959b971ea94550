package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()

	a := NewStatic("secret")
	ok, err := a.Authenticated(ctx)
	if err != nil || !ok {
		t.Errorf("Authenticated() = %v, %v, want true, nil", ok, err)
	}
	token, err := a.Token(ctx)
	if err != nil || token != "secret" {
		t.Errorf("Token() = %q, %v, want secret, nil", token, err)
	}

	empty := NewStatic("")
	ok, err = empty.Authenticated(ctx)
	if err != nil || ok {
		t.Errorf("empty Authenticated() = %v, %v, want false, nil", ok, err)
	}
	if _, err := empty.Token(ctx); err == nil {
		t.Error("empty Token() should error")
	}
}

func TestSessionChecker(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantActive bool
		wantErr    bool
	}{
		{"active session", http.StatusOK, `{"active":true}`, true, false},
		{"inactive session", http.StatusOK, `{"active":false}`, false, false},
		{"unauthorized", http.StatusUnauthorized, ``, false, false},
		{"server error", http.StatusInternalServerError, ``, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer tok" {
					t.Errorf("Authorization = %q, want Bearer tok", got)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a := NewSessionChecker(srv.URL, "tok")
			ok, err := a.Authenticated(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Authenticated() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantActive {
				t.Errorf("Authenticated() = %v, want %v", ok, tt.wantActive)
			}
			if tt.wantErr {
				var authErr *Error
				if !errors.As(err, &authErr) {
					t.Errorf("error = %T, want *Error", err)
				}
			}
		})
	}
}

func TestSessionCheckerNoToken(t *testing.T) {
	a := NewSessionChecker("http://unused.invalid", "")
	ok, err := a.Authenticated(context.Background())
	if err != nil || ok {
		t.Errorf("Authenticated() = %v, %v, want false, nil", ok, err)
	}
}
