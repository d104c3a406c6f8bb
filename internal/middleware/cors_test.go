package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const dashboardOrigin = "http://localhost:5173"

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantNext   bool
	}{
		{name: "contest list", method: http.MethodGet, path: "/contests", wantStatus: http.StatusOK, wantNext: true},
		{name: "connect platform", method: http.MethodPut, path: "/api/me/connections/leetcode", wantStatus: http.StatusOK, wantNext: true},
		{name: "disconnect preflight", method: http.MethodOptions, path: "/api/me/connections/leetcode", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			handler := NewCORSMiddleware(dashboardOrigin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if nextCalled != tt.wantNext {
				t.Errorf("next called = %v, want %v", nextCalled, tt.wantNext)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != dashboardOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, dashboardOrigin)
			}
		})
	}
}

func TestCORSMiddleware_AllowsIdentityAndRequestIDHeaders(t *testing.T) {
	handler := NewCORSMiddleware(dashboardOrigin)(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/me/stats", nil))

	h := rec.Header()
	want := map[string]string{
		"Access-Control-Allow-Methods":     "GET, PUT, DELETE, OPTIONS",
		"Access-Control-Allow-Headers":     "Content-Type, " + UserIDHeader + ", " + RequestIDHeader,
		"Access-Control-Expose-Headers":    RequestIDHeader + ", Retry-After",
		"Access-Control-Allow-Credentials": "true",
		"Access-Control-Max-Age":           "86400",
		"Vary":                             "Origin",
	}
	for name, v := range want {
		if got := h.Get(name); got != v {
			t.Errorf("%s = %q, want %q", name, got, v)
		}
	}
}
