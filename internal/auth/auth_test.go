package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func tokenServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginCachesToken(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/token" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "sk-valid" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"jwt-abc","token_type":"bearer","expires_in":3600,"user_id":"u-1"}`))
	})

	client := New(srv.URL, zerolog.Nop())
	token, err := client.Login(context.Background(), "sk-valid")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if token.AccessToken != "jwt-abc" || token.UserID != "u-1" {
		t.Fatalf("unexpected token: %+v", token)
	}
	if client.CachedToken() != "jwt-abc" {
		t.Fatalf("expected cached token, got %q", client.CachedToken())
	}
	if !client.IsAuthenticated() {
		t.Fatalf("expected authenticated after login")
	}
}

func TestLoginInvalidKey(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client := New(srv.URL, zerolog.Nop())
	_, err := client.Login(context.Background(), "sk-bad")
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected invalid key error, got %v", err)
	}
	if client.IsAuthenticated() {
		t.Fatalf("expected no cached token after failed login")
	}
}

func TestLoginRateLimited(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client := New(srv.URL, zerolog.Nop())
	_, err := client.Login(context.Background(), "sk-hot")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestCachedTokenExpiresEarly(t *testing.T) {
	// expires_in within the refresh buffer means the token is already stale.
	srv := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"short-lived","expires_in":60,"user_id":"u-1"}`))
	})
	client := New(srv.URL, zerolog.Nop())
	if _, err := client.Login(context.Background(), "sk-valid"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if client.CachedToken() != "" {
		t.Fatalf("expected token inside expiry buffer to be treated as stale")
	}
}

func TestLogout(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"jwt-abc","expires_in":3600,"user_id":"u-1"}`))
	})
	client := New(srv.URL, zerolog.Nop())
	if _, err := client.Login(context.Background(), "sk-valid"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	client.Logout()
	if client.IsAuthenticated() {
		t.Fatalf("expected logout to clear the token")
	}
}

func TestWebSocketURL(t *testing.T) {
	srv := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"jwt-abc","expires_in":3600,"user_id":"u-1"}`))
	})
	client := New(srv.URL, zerolog.Nop())

	if _, err := client.WebSocketURL("ws://host/ws/simulate"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected not-authenticated error, got %v", err)
	}

	if _, err := client.Login(context.Background(), "sk-valid"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	url, err := client.WebSocketURL("ws://host/ws/simulate")
	if err != nil {
		t.Fatalf("WebSocketURL returned error: %v", err)
	}
	if url != "ws://host/ws/simulate?token=jwt-abc" {
		t.Fatalf("unexpected url: %s", url)
	}

	url, err = client.WebSocketURL("ws://host/ws/simulate?compress=1")
	if err != nil {
		t.Fatalf("WebSocketURL returned error: %v", err)
	}
	if !strings.HasSuffix(url, "&token=jwt-abc") {
		t.Fatalf("expected & separator for existing query, got %s", url)
	}
}
