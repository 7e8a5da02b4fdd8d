package auth

// Package auth contains domain-level types for admin authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role represents an authorization role recorded in the role-grant store.
// Keep string form for easy persistence.
type Role string

const (
	RoleAdmin Role = "admin"
)

// AdminCredential is a provisioned admin username with its password hash.
// Rows are created out of band and are read-only for the login flow.
type AdminCredential struct {
	Username     string
	PasswordHash string
}

// Principal is the identity-provider user an admin username maps to.
type Principal struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RoleGrant records that a principal holds a role.
type RoleGrant struct {
	UserID string
	Role   Role
}

// Session is an identity-provider session held by the client.
// Token material is opaque to everything except the adapter that issued it.
type Session struct {
	Principal    Principal `json:"principal"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
// A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SessionEvent names the reason a session-change notification was emitted.
type SessionEvent string

const (
	EventInitialSession SessionEvent = "INITIAL_SESSION"
	EventSignedIn       SessionEvent = "SIGNED_IN"
	EventSignedOut      SessionEvent = "SIGNED_OUT"
	EventTokenRefreshed SessionEvent = "TOKEN_REFRESHED"
)

// SessionChange is delivered to identity-provider subscribers.
// Session is nil when the change leaves no active session.
type SessionChange struct {
	Event   SessionEvent
	Session *Session
}

// Phase is the provider's authentication state.
type Phase string

const (
	PhaseUnauthenticated    Phase = "unauthenticated"
	PhaseAuthenticatingRole Phase = "authenticating_role"
	PhaseAuthenticated      Phase = "authenticated"
)

// Snapshot is a point-in-time copy of the provider's local state.
// IsAdmin is only meaningful once IsLoading is false.
type Snapshot struct {
	Phase     Phase
	User      *Principal
	Session   *Session
	IsAdmin   bool
	IsLoading bool
}

// DefaultAdminEmailDomain is the suffix used for synthetic admin emails.
const DefaultAdminEmailDomain = "aust-mecha.admin"

// SyntheticEmail derives the identity-provider email for an admin username.
// The mapping is deterministic so repeated logins reach the same principal.
func SyntheticEmail(username, domain string) string {
	if domain == "" {
		domain = DefaultAdminEmailDomain
	}
	return strings.ToLower(strings.TrimSpace(username)) + "@" + domain
}
