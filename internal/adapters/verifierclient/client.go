// Package verifierclient calls a remote /verify-admin-login endpoint.
package verifierclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.CredentialVerifier = (*Client)(nil)

// Client implements ports.CredentialVerifier over HTTP.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

// New creates a Client. A nil httpClient uses a 30s-timeout client.
func New(url, apiKey string, httpClient *http.Client) (*Client, error) {
	if url == "" {
		return nil, errors.New("verifier URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, apiKey: apiKey, http: httpClient}, nil
}

type verifyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Valid *bool  `json:"valid"`
	Error string `json:"error"`
}

// Verify returns ports.ErrMissingCredentials when the endpoint answers 400.
func (c *Client) Verify(ctx context.Context, username, password string) (bool, error) {
	payload, err := json.Marshal(verifyRequest{Username: username, Password: password})
	if err != nil {
		return false, fmt.Errorf("marshal verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("call verifier: %w", err)
	}
	defer resp.Body.Close()

	var out verifyResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	decodeErr := json.Unmarshal(body, &out)

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return false, ports.ErrMissingCredentials
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("verifier returned status %d: %s", resp.StatusCode, out.Error)
	case decodeErr != nil:
		return false, fmt.Errorf("decode verifier response: %w", decodeErr)
	case out.Valid == nil:
		return false, errors.New("verifier response has no valid field")
	}
	return *out.Valid, nil
}
