package gotrue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
)

// APIError is a non-success GoTrue response. GoTrue has used both the OAuth
// shape (error, error_description) and its own (code, error_code, msg).
type APIError struct {
	Status      int    `json:"-"`
	OAuthError  string `json:"error"`
	Description string `json:"error_description"`
	ErrorCode   string `json:"error_code"`
	Msg         string `json:"msg"`
}

func (e *APIError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Description
	}
	code := e.ErrorCode
	if code == "" {
		code = e.OAuthError
	}
	return fmt.Sprintf("gotrue: status %d: %s %s", e.Status, code, msg)
}

func decodeAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	_ = json.Unmarshal(body, e)
	return e
}

func (e *APIError) text() string {
	return strings.ToLower(strings.Join([]string{e.OAuthError, e.Description, e.ErrorCode, e.Msg}, " "))
}

func (e *APIError) invalidLogin() bool {
	t := e.text()
	return e.Status == 400 && (strings.Contains(t, "invalid_grant") ||
		strings.Contains(t, "invalid_credentials") || strings.Contains(t, "invalid login credentials"))
}

func (e *APIError) alreadyRegistered() bool {
	t := e.text()
	return strings.Contains(t, "user_already_exists") || strings.Contains(t, "already registered")
}

func (e *APIError) signUpDisabled() bool {
	t := e.text()
	return strings.Contains(t, "signup_disabled") || strings.Contains(t, "signups not allowed")
}

// sessionFrom decodes a token or sign-up response. It returns nil without an
// error when the response carries no access token.
func (c *Client) sessionFrom(body []byte) (*domainauth.Session, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode gotrue response: %w", err)
	}
	access, _ := doc["access_token"].(string)
	if access == "" {
		return nil, nil
	}

	id, err := c.searchString(c.cfg.UserIDPath, doc)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("gotrue response: %s is empty", c.cfg.UserIDPath)
	}
	email, err := c.searchString(c.cfg.EmailPath, doc)
	if err != nil {
		return nil, err
	}

	sess := &domainauth.Session{
		Principal: domainauth.Principal{
			ID:       id,
			Email:    strings.ToLower(email),
			Metadata: userMetadata(doc),
		},
		AccessToken: access,
	}
	sess.RefreshToken, _ = doc["refresh_token"].(string)
	switch {
	case number(doc["expires_at"]) > 0:
		sess.ExpiresAt = time.Unix(int64(number(doc["expires_at"])), 0)
	case number(doc["expires_in"]) > 0:
		sess.ExpiresAt = c.now().Add(time.Duration(number(doc["expires_in"])) * time.Second)
	}
	return sess, nil
}

func (c *Client) searchString(expr string, doc any) (string, error) {
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", expr, err)
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return fmt.Sprint(t), nil
	}
}

func userMetadata(doc map[string]any) map[string]string {
	user, _ := doc["user"].(map[string]any)
	raw, _ := user["user_metadata"].(map[string]any)
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func number(v any) float64 {
	f, _ := v.(float64)
	return f
}
