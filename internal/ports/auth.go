package ports

// Package ports defines interfaces (hexagonal ports) for admin-auth behavior.
// Implementations live in internal/adapters and internal/data; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
)

// Sentinel errors adapters return so the service can classify failures
// without knowing backend-specific payloads.
var (
	// ErrInvalidLogin means the identity provider rejected the email/password pair.
	ErrInvalidLogin = errors.New("identity provider rejected credentials")
	// ErrAlreadyRegistered means sign-up found an existing account for the email.
	ErrAlreadyRegistered = errors.New("identity already registered")
	// ErrSignUpUnsupported means the backend cannot create accounts on demand.
	ErrSignUpUnsupported = errors.New("identity provider does not support sign-up")
	// ErrCredentialNotFound means no AdminCredential exists for the username.
	ErrCredentialNotFound = errors.New("admin credential not found")
	// ErrMissingCredentials means username or password was empty after trimming.
	ErrMissingCredentials = errors.New("missing username or password")
)

// SessionListener receives session-change notifications. Implementations must
// not block or perform network calls; adapters may invoke it while holding
// internal locks.
type SessionListener func(domainauth.SessionChange)

// IdentityProvider is the backend that owns principals and their sessions.
type IdentityProvider interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*domainauth.Session, error)
	// Subscribe registers a listener and returns a function that removes it.
	Subscribe(listener SessionListener) (unsubscribe func())
	// SignInWithPassword establishes a session. It returns ErrInvalidLogin when
	// the account is missing or the password is wrong.
	SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error)
	// SignUpWithPassword creates the account. The returned session is nil when the
	// backend requires confirmation before issuing one. Returns ErrAlreadyRegistered
	// when the email exists.
	SignUpWithPassword(ctx context.Context, email, password string, metadata map[string]string) (*domainauth.Session, error)
	// SignOut terminates the current session. Signing out without a session is not an error.
	SignOut(ctx context.Context) error
}

// RoleStore is the authoritative record of role grants.
type RoleStore interface {
	HasRole(ctx context.Context, userID string, role domainauth.Role) (bool, error)
	// AssignRole is idempotent: repeated or concurrent calls leave a single grant.
	AssignRole(ctx context.Context, userID, username string, role domainauth.Role) error
}

// CredentialVerifier answers whether a username/password pair is a valid admin credential.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// CredentialStore reads and provisions AdminCredential rows.
type CredentialStore interface {
	// PasswordHash returns ErrCredentialNotFound when the username is unknown.
	PasswordHash(ctx context.Context, username string) (string, error)
	Upsert(ctx context.Context, cred domainauth.AdminCredential) error
}
