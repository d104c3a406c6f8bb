package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIdentityMiddleware_InjectsUserIDFromHeader(t *testing.T) {
	var gotUserID string
	handler := NewIdentityMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me/stats", nil)
	req.Header.Set(UserIDHeader, "  user-123 ")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotUserID != "user-123" {
		t.Errorf("user ID = %q, want %q", gotUserID, "user-123")
	}
}

func TestIdentityMiddleware_InvalidHeaderIsIgnored(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"whitespace inside", "user 123"},
		{"too long", strings.Repeat("a", maxUserIDLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewIdentityMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if _, err := UserIDFromContext(r.Context()); err == nil {
					t.Error("expected no user ID in context")
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/contests", nil)
			if tt.value != "" {
				req.Header.Set(UserIDHeader, tt.value)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if !called {
				t.Error("next handler should be called for anonymous requests")
			}
		})
	}
}

func TestRequireIdentity_NoUserID_Returns401Envelope(t *testing.T) {
	handlerCalled := false
	handler := RequireIdentity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me/connections", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if handlerCalled {
		t.Error("next handler should not be called without identity")
	}
	var body Envelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != StatusError {
		t.Errorf("status field = %q, want %q", body.Status, StatusError)
	}
}

func TestRequireIdentity_WithUserID_PassesThrough(t *testing.T) {
	handler := NewIdentityMiddleware()(RequireIdentity()(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/api/me/connections", nil)
	req.Header.Set(UserIDHeader, "user-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for context without user ID")
	}
}

func TestContextWithUserID_RoundTrip(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-9")
	got, err := UserIDFromContext(ctx)
	if err != nil || got != "user-9" {
		t.Errorf("UserIDFromContext = %q, %v; want user-9, nil", got, err)
	}
}
