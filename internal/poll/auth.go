package poll

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Authenticator performs the pre-flight authentication exchange for
// session-token backends and yields a short-lived session token.
//
// Authenticate resolves exactly once: token on success, error on failure.
// The error path is explicit so an authentication failure terminates the
// containing workload the same way a transport failure does.
type Authenticator interface {
	Authenticate(ctx context.Context, authURL, username, password string) (string, error)
}

const authRequestTimeout = 15 * time.Second

// HTTPAuthenticator exchanges credentials for a session token over HTTP.
//
// It POSTs the credentials as JSON to the auth endpoint and expects a JSON
// response carrying the token. Tokens are ephemeral: scoped to a single
// exchange, never persisted, never reused across polling cycles.
type HTTPAuthenticator struct {
	client *http.Client
}

// NewHTTPAuthenticator creates an [HTTPAuthenticator].
func NewHTTPAuthenticator() *HTTPAuthenticator {
	return &HTTPAuthenticator{
		client: &http.Client{Timeout: authRequestTimeout},
	}
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Authenticate performs the exchange against authURL and returns the
// session token.
func (a *HTTPAuthenticator) Authenticate(ctx context.Context, authURL, username, password string) (string, error) {
	target, err := normalizeTarget(authURL)
	if err != nil {
		return "", fmt.Errorf("invalid auth endpoint: %w", err)
	}

	payload, err := json.Marshal(authRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read auth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("auth endpoint returned status %d", resp.StatusCode)
	}

	var ar authResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	if ar.Token == "" {
		return "", fmt.Errorf("auth endpoint returned no token")
	}
	return ar.Token, nil
}
