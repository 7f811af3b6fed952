// Package auth exchanges an API key for a JWT and composes authenticated
// WebSocket URLs. The token is cached in memory with its expiry; there is no
// automatic refresh.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotAuthenticated reports a missing or expired cached token.
	ErrNotAuthenticated = errors.New("auth: not authenticated, call Login first")
	// ErrInvalidAPIKey reports a 401 from the token endpoint.
	ErrInvalidAPIKey = errors.New("auth: invalid API key")
	// ErrRateLimited reports a 429 from the token endpoint.
	ErrRateLimited = errors.New("auth: rate limit exceeded")
)

// expiryBuffer invalidates the cached token slightly before the server does,
// so in-flight connects never race expiry.
const expiryBuffer = 5 * time.Minute

// TokenResponse is the token endpoint's success payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      string `json:"user_id"`
}

// Client authenticates against the SimuTrador REST server.
type Client struct {
	serverURL  string
	httpClient *http.Client
	log        zerolog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// New builds an auth client for the given base server URL.
func New(serverURL string, log zerolog.Logger) *Client {
	return &Client{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// ServerURL returns the configured REST base URL.
func (c *Client) ServerURL() string { return c.serverURL }

// Login exchanges the API key for a JWT and caches it.
func (c *Client) Login(ctx context.Context, apiKey string) (TokenResponse, error) {
	if strings.TrimSpace(apiKey) == "" {
		return TokenResponse{}, fmt.Errorf("%w: empty API key", ErrInvalidAPIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/auth/token", bytes.NewBufferString("{}"))
	if err != nil {
		return TokenResponse{}, err
	}
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("auth: token request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return TokenResponse{}, ErrInvalidAPIKey
	case http.StatusTooManyRequests:
		return TokenResponse{}, ErrRateLimited
	default:
		return TokenResponse{}, fmt.Errorf("auth: unexpected status %d from token endpoint", resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return TokenResponse{}, fmt.Errorf("auth: decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return TokenResponse{}, errors.New("auth: token response missing access_token")
	}

	c.mu.Lock()
	c.token = token.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	c.mu.Unlock()

	c.log.Info().Str("user", token.UserID).Msg("authenticated")
	return token, nil
}

// CachedToken returns the cached JWT, or "" when absent or within the expiry
// buffer. An expired token is dropped from the cache.
func (c *Client) CachedToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return ""
	}
	if time.Now().After(c.expiresAt.Add(-expiryBuffer)) {
		c.token = ""
		c.expiresAt = time.Time{}
		return ""
	}
	return c.token
}

// IsAuthenticated reports whether a valid token is cached.
func (c *Client) IsAuthenticated() bool { return c.CachedToken() != "" }

// Logout clears the cached token.
func (c *Client) Logout() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// WebSocketURL appends the bearer token to a base WebSocket URL.
func (c *Client) WebSocketURL(base string) (string, error) {
	token := c.CachedToken()
	if token == "" {
		return "", ErrNotAuthenticated
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + token, nil
}
