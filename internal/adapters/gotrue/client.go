// Package gotrue is an identity provider backed by a Supabase/GoTrue auth server.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/sessionfeed"
	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.IdentityProvider = (*Client)(nil)

const maxResponseBytes = 1 << 20

// ErrSessionRejected means the server refused a refresh token.
var ErrSessionRejected = errors.New("gotrue rejected the session")

// Config configures the GoTrue client.
type Config struct {
	// URL is the auth base, e.g. https://xyz.supabase.co/auth/v1.
	URL    string
	APIKey string
	// UserIDPath and EmailPath are JMESPath expressions over token and sign-up
	// responses. Defaults are "user.id" and "user.email".
	UserIDPath    string
	EmailPath     string
	RefreshMargin time.Duration
}

// Options configures NewClient.
type Options struct {
	Config     Config
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements ports.IdentityProvider over the GoTrue REST API and keeps
// the access token fresh while Run is active.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time

	listeners sessionfeed.Broadcaster
	changed   chan struct{}

	mu      sync.Mutex
	current *domainauth.Session
}

// NewClient validates the JMESPath expressions and returns a Client.
func NewClient(opts Options) (*Client, error) {
	cfg := opts.Config
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.URL == "" {
		return nil, errors.New("gotrue URL is required")
	}
	if cfg.UserIDPath == "" {
		cfg.UserIDPath = "user.id"
	}
	if cfg.EmailPath == "" {
		cfg.EmailPath = "user.email"
	}
	for _, expr := range []string{cfg.UserIDPath, cfg.EmailPath} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid JMESPath %q: %w", expr, err)
		}
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = time.Minute
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		logger:  logger.With("component", "gotrue"),
		now:     time.Now,
		changed: make(chan struct{}, 1),
	}, nil
}

func (c *Client) Subscribe(listener ports.SessionListener) func() {
	return c.listeners.Subscribe(listener)
}

// AccessToken returns the current access token, or "" when signed out.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.AccessToken
}

// GetSession returns the current session, refreshing it when already expired.
func (c *Client) GetSession(ctx context.Context) (*domainauth.Session, error) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return nil, nil
	}
	if !cur.Expired(c.now()) {
		out := *cur
		return &out, nil
	}
	if err := c.Refresh(ctx); err != nil {
		if errors.Is(err, ErrSessionRejected) {
			return nil, nil
		}
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, nil
	}
	out := *c.current
	return &out, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	body, status, err := c.post(ctx, "/token?grant_type=password", "", map[string]any{
		"email": email, "password": password,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		apiErr := decodeAPIError(status, body)
		if apiErr.invalidLogin() {
			return nil, ports.ErrInvalidLogin
		}
		return nil, apiErr
	}
	sess, err := c.sessionFrom(body)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.New("gotrue token response has no access token")
	}
	c.adopt(sess, domainauth.EventSignedIn, "")
	return sess, nil
}

// SignUpWithPassword returns a nil session when the server requires email confirmation.
func (c *Client) SignUpWithPassword(
	ctx context.Context,
	email, password string,
	metadata map[string]string,
) (*domainauth.Session, error) {
	body, status, err := c.post(ctx, "/signup", "", map[string]any{
		"email": email, "password": password, "data": metadata,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		apiErr := decodeAPIError(status, body)
		switch {
		case apiErr.alreadyRegistered():
			return nil, ports.ErrAlreadyRegistered
		case apiErr.signUpDisabled():
			return nil, ports.ErrSignUpUnsupported
		}
		return nil, apiErr
	}
	sess, err := c.sessionFrom(body)
	if err != nil || sess == nil {
		return nil, err
	}
	c.adopt(sess, domainauth.EventSignedIn, "")
	return sess, nil
}

// SignOut revokes the session server-side and always clears it locally.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return nil
	}
	c.dropIf("")

	body, status, err := c.post(ctx, "/logout", cur.AccessToken, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusUnauthorized && status != http.StatusNotFound {
		return decodeAPIError(status, body)
	}
	return nil
}

// Refresh exchanges the refresh token for a new session and emits TOKEN_REFRESHED.
// A rejected refresh token signs the client out and returns ErrSessionRejected.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil || cur.RefreshToken == "" {
		return nil
	}

	body, status, err := c.post(ctx, "/token?grant_type=refresh_token", "", map[string]any{
		"refresh_token": cur.RefreshToken,
	})
	if err != nil {
		return err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		c.dropIf(cur.AccessToken)
		return fmt.Errorf("%w: %v", ErrSessionRejected, decodeAPIError(status, body))
	}
	if status != http.StatusOK {
		return decodeAPIError(status, body)
	}
	sess, err := c.sessionFrom(body)
	if err != nil {
		return err
	}
	if sess == nil {
		return errors.New("gotrue refresh response has no access token")
	}
	if !c.adopt(sess, domainauth.EventTokenRefreshed, cur.AccessToken) {
		c.logger.DebugContext(ctx, "refresh discarded, session changed meanwhile")
	}
	return nil
}

// Run refreshes the session RefreshMargin before it expires until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	const retryDelay = 5 * time.Second
	for {
		wait, ok := c.untilRefresh()
		var fire <-chan time.Time
		var timer *time.Timer
		if ok {
			timer = time.NewTimer(max(wait, 0))
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil
		case <-c.changed:
			stopTimer(timer)
			continue
		case <-fire:
		}

		if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrSessionRejected) {
			c.logger.WarnContext(ctx, "session refresh failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (c *Client) untilRefresh() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.RefreshToken == "" || c.current.ExpiresAt.IsZero() {
		return 0, false
	}
	return c.current.ExpiresAt.Add(-c.cfg.RefreshMargin).Sub(c.now()), true
}

// adopt installs sess and emits event. A non-empty replaces makes the swap
// conditional on the current session still holding that access token.
func (c *Client) adopt(sess *domainauth.Session, event domainauth.SessionEvent, replaces string) bool {
	held := *sess
	c.mu.Lock()
	if replaces != "" && (c.current == nil || c.current.AccessToken != replaces) {
		c.mu.Unlock()
		return false
	}
	c.current = &held
	c.mu.Unlock()
	c.notifyChanged()
	out := *sess
	c.listeners.Emit(domainauth.SessionChange{Event: event, Session: &out})
	return true
}

// dropIf clears the session; a non-empty token limits it to that session.
func (c *Client) dropIf(token string) {
	c.mu.Lock()
	had := c.current != nil && (token == "" || c.current.AccessToken == token)
	if had {
		c.current = nil
	}
	c.mu.Unlock()
	if had {
		c.notifyChanged()
		c.listeners.Emit(domainauth.SessionChange{Event: domainauth.EventSignedOut})
	}
}

func (c *Client) notifyChanged() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

func (c *Client) post(ctx context.Context, path, bearer string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("apikey", c.cfg.APIKey)
	}
	switch {
	case bearer != "":
		req.Header.Set("Authorization", "Bearer "+bearer)
	case c.cfg.APIKey != "":
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("gotrue %s: %w", strings.SplitN(path, "?", 2)[0], err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
