package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	for _, tc := range []struct {
		name   string
		token  string
		method string
		path   string
		header string
		want   int
	}{
		{"NoHeader", "secret", http.MethodGet, "/v1/instances", "", http.StatusUnauthorized},
		{"WrongToken", "secret", http.MethodGet, "/v1/instances", "Bearer wrong", http.StatusUnauthorized},
		{"InvalidScheme", "secret", http.MethodGet, "/v1/instances", "Basic secret", http.StatusUnauthorized},
		{"CorrectToken", "secret", http.MethodGet, "/v1/instances", "Bearer secret", http.StatusOK},
		{"HealthExempt", "secret", http.MethodGet, "/v1/health", "", http.StatusOK},
		{"MetricsExempt", "secret", http.MethodGet, "/metrics", "", http.StatusOK},
		{"WebsocketNoToken", "secret", http.MethodGet, "/ws/shop-42", "", http.StatusUnauthorized},
		{"WebsocketQueryToken", "secret", http.MethodGet, "/ws/shop-42?token=secret", "", http.StatusOK},
		{"WebsocketWrongQueryToken", "secret", http.MethodGet, "/ws/shop-42?token=nope", "", http.StatusUnauthorized},
		{"WebsocketHeaderToken", "secret", http.MethodGet, "/ws/shop-42", "Bearer secret", http.StatusOK},
		{"QueryTokenOnlyForWebsocket", "secret", http.MethodGet, "/v1/instances?token=secret", "", http.StatusUnauthorized},
		{"PostToHealthNotExempt", "secret", http.MethodPost, "/v1/health", "", http.StatusUnauthorized},
		{"Disabled", "", http.MethodPost, "/v1/events/emit", "", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthMiddleware(tc.token, okHandler())
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d; body: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(discardLogger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	var seen int
	handler := LoggingMiddleware(discardLogger(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		seen = w.(*statusRecorder).status
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot || seen != http.StatusTeapot {
		t.Fatalf("code=%d seen=%d", rec.Code, seen)
	}
}
