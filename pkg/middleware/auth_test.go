package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/platinummonkey/couchuser/pkg/auth"
)

// stubChecker accepts exactly one name/token pair
type stubChecker struct {
	name  string
	token string
	err   error
	calls int
}

func (s *stubChecker) CheckSession(ctx context.Context, name, token string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return name == s.name && token == s.token, nil
}

func TestNewAuthMiddleware(t *testing.T) {
	checker := &stubChecker{}

	m := NewAuthMiddleware(checker, false, nil)
	if m == nil {
		t.Fatal("expected non-nil middleware")
	}
	if m.checker != checker {
		t.Error("token checker not set correctly")
	}
	if m.optional {
		t.Error("expected optional to be false")
	}
	if m.logger == nil {
		t.Error("expected default logger")
	}
}

func TestAuthMiddleware_Handler(t *testing.T) {
	token := auth.IssueToken("alice", "pw")

	tests := []struct {
		name       string
		optional   bool
		header     string
		checkerErr error
		wantStatus int
		wantUser   string
		wantBody   string
	}{
		{
			name:       "rejects missing header when required",
			header:     "",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "missing authorization header",
		},
		{
			name:       "allows missing header when optional",
			optional:   true,
			header:     "",
			wantStatus: http.StatusOK,
		},
		{
			name:       "rejects basic scheme",
			header:     "Basic " + token,
			wantStatus: http.StatusUnauthorized,
			wantBody:   "invalid authorization header format",
		},
		{
			name:       "rejects empty bearer",
			header:     "Bearer ",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "invalid authorization header format",
		},
		{
			name:       "rejects undecodable token",
			header:     "Bearer %%%",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "invalid or expired token",
		},
		{
			name:       "rejects token that is not cached",
			header:     "Bearer " + auth.IssueToken("alice", "other"),
			wantStatus: http.StatusUnauthorized,
			wantBody:   "invalid or expired token",
		},
		{
			name:       "accepts live token",
			header:     "Bearer " + token,
			wantStatus: http.StatusOK,
			wantUser:   "alice",
		},
		{
			name:       "scheme is case insensitive",
			header:     "bearer " + token,
			wantStatus: http.StatusOK,
			wantUser:   "alice",
		},
		{
			name:       "token store failure",
			header:     "Bearer " + token,
			checkerErr: errors.New("redis down"),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "token store unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &stubChecker{name: "alice", token: token, err: tt.checkerErr}
			var gotUser string
			handler := NewAuthMiddleware(checker, tt.optional, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUser(r)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/-/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if gotUser != tt.wantUser {
				t.Errorf("expected user %q, got %q", tt.wantUser, gotUser)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestGetUser_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetUser(req); got != "" {
		t.Errorf("expected empty user, got %q", got)
	}
}
