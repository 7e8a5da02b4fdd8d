package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.RoleStore          = (*MemoryRoleStore)(nil)
	_ ports.CredentialVerifier = (*StaticVerifier)(nil)
	_ ports.CredentialStore    = (*MemoryCredentialStore)(nil)
)

// MemoryRoleStore keeps grants in a set keyed by (user, role).
// Func fields override the default behavior when set.
type MemoryRoleStore struct {
	HasRoleFunc    func(ctx context.Context, userID string, role domainauth.Role) (bool, error)
	AssignRoleFunc func(ctx context.Context, userID, username string, role domainauth.Role) error

	mu          sync.Mutex
	grants      map[domainauth.RoleGrant]struct{}
	assignCalls int
	lookupCalls int
}

// NewMemoryRoleStore creates an empty MemoryRoleStore.
func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{grants: make(map[domainauth.RoleGrant]struct{})}
}

func (m *MemoryRoleStore) HasRole(ctx context.Context, userID string, role domainauth.Role) (bool, error) {
	m.mu.Lock()
	m.lookupCalls++
	m.mu.Unlock()
	if m.HasRoleFunc != nil {
		return m.HasRoleFunc(ctx, userID, role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.grants[domainauth.RoleGrant{UserID: userID, Role: role}]
	return ok, nil
}

func (m *MemoryRoleStore) AssignRole(ctx context.Context, userID, username string, role domainauth.Role) error {
	m.mu.Lock()
	m.assignCalls++
	m.mu.Unlock()
	if m.AssignRoleFunc != nil {
		return m.AssignRoleFunc(ctx, userID, username, role)
	}
	m.Grant(userID, role)
	return nil
}

// Grant records a grant directly.
func (m *MemoryRoleStore) Grant(userID string, role domainauth.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grants == nil {
		m.grants = make(map[domainauth.RoleGrant]struct{})
	}
	m.grants[domainauth.RoleGrant{UserID: userID, Role: role}] = struct{}{}
}

// Revoke removes a grant directly.
func (m *MemoryRoleStore) Revoke(userID string, role domainauth.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, domainauth.RoleGrant{UserID: userID, Role: role})
}

// GrantCount returns the number of stored grants.
func (m *MemoryRoleStore) GrantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.grants)
}

// AssignCalls returns how many times AssignRole was called.
func (m *MemoryRoleStore) AssignCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignCalls
}

// LookupCalls returns how many times HasRole was called.
func (m *MemoryRoleStore) LookupCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookupCalls
}

// StaticVerifier accepts exactly the configured username/password pairs.
type StaticVerifier struct {
	VerifyFunc func(ctx context.Context, username, password string) (bool, error)
	Valid      map[string]string
}

func (v *StaticVerifier) Verify(ctx context.Context, username, password string) (bool, error) {
	if v.VerifyFunc != nil {
		return v.VerifyFunc(ctx, username, password)
	}
	want, ok := v.Valid[username]
	return ok && want == password, nil
}

// MemoryCredentialStore stores AdminCredential rows in memory.
type MemoryCredentialStore struct {
	PasswordHashFunc func(ctx context.Context, username string) (string, error)

	mu     sync.Mutex
	hashes map[string]string
}

// NewMemoryCredentialStore creates an empty MemoryCredentialStore.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{hashes: make(map[string]string)}
}

func (m *MemoryCredentialStore) PasswordHash(ctx context.Context, username string) (string, error) {
	if m.PasswordHashFunc != nil {
		return m.PasswordHashFunc(ctx, username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[username]
	if !ok {
		return "", ports.ErrCredentialNotFound
	}
	return h, nil
}

func (m *MemoryCredentialStore) Upsert(_ context.Context, cred domainauth.AdminCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes == nil {
		m.hashes = make(map[string]string)
	}
	m.hashes[cred.Username] = cred.PasswordHash
	return nil
}
