package auth

import (
	"context"
	"fmt"
	"maps"
	"sync"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.IdentityProvider = (*MemoryIdentityProvider)(nil)

type memoryAccount struct {
	principal domainauth.Principal
	password  string
}

// MemoryIdentityProvider is an in-memory identity provider for unit tests.
// Listeners are invoked synchronously, after internal locks are released.
// Func fields override the default behavior when set.
type MemoryIdentityProvider struct {
	GetSessionFunc func(ctx context.Context) (*domainauth.Session, error)
	SignInFunc     func(ctx context.Context, email, password string) (*domainauth.Session, error)
	SignUpFunc     func(ctx context.Context, email, password string, metadata map[string]string) (*domainauth.Session, error)
	SignOutFunc    func(ctx context.Context) error

	// RequireConfirmation makes sign-up create the account without a session.
	RequireConfirmation bool

	mu          sync.Mutex
	accounts    map[string]memoryAccount
	current     *domainauth.Session
	listeners   map[int]ports.SessionListener
	nextID      int
	signInCalls int
	signUpCalls int
}

// NewMemoryIdentityProvider creates an empty MemoryIdentityProvider.
func NewMemoryIdentityProvider() *MemoryIdentityProvider {
	return &MemoryIdentityProvider{
		accounts:  make(map[string]memoryAccount),
		listeners: make(map[int]ports.SessionListener),
	}
}

func (m *MemoryIdentityProvider) GetSession(ctx context.Context) (*domainauth.Session, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil
	}
	s := *m.current
	return &s, nil
}

func (m *MemoryIdentityProvider) Subscribe(listener ports.SessionListener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = listener
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *MemoryIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	m.mu.Lock()
	m.signInCalls++
	m.mu.Unlock()
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, email, password)
	}

	m.mu.Lock()
	acct, ok := m.accounts[email]
	if !ok || acct.password != password {
		m.mu.Unlock()
		return nil, ports.ErrInvalidLogin
	}
	sess := m.newSessionLocked(acct.principal)
	m.mu.Unlock()

	m.Emit(domainauth.SessionChange{Event: domainauth.EventSignedIn, Session: sess})
	return sess, nil
}

func (m *MemoryIdentityProvider) SignUpWithPassword(
	ctx context.Context,
	email, password string,
	metadata map[string]string,
) (*domainauth.Session, error) {
	m.mu.Lock()
	m.signUpCalls++
	m.mu.Unlock()
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, email, password, metadata)
	}

	m.mu.Lock()
	if _, exists := m.accounts[email]; exists {
		m.mu.Unlock()
		return nil, ports.ErrAlreadyRegistered
	}
	m.nextID++
	principal := domainauth.Principal{
		ID:       fmt.Sprintf("user-%d", m.nextID),
		Email:    email,
		Metadata: maps.Clone(metadata),
	}
	m.accounts[email] = memoryAccount{principal: principal, password: password}
	if m.RequireConfirmation {
		m.mu.Unlock()
		return nil, nil
	}
	sess := m.newSessionLocked(principal)
	m.mu.Unlock()

	m.Emit(domainauth.SessionChange{Event: domainauth.EventSignedIn, Session: sess})
	return sess, nil
}

func (m *MemoryIdentityProvider) SignOut(ctx context.Context) error {
	if m.SignOutFunc != nil {
		if err := m.SignOutFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	had := m.current != nil
	m.current = nil
	m.mu.Unlock()
	if had {
		m.Emit(domainauth.SessionChange{Event: domainauth.EventSignedOut})
	}
	return nil
}

// AddAccount registers an account directly and returns its principal.
func (m *MemoryIdentityProvider) AddAccount(email, password string) domainauth.Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := domainauth.Principal{ID: fmt.Sprintf("user-%d", m.nextID), Email: email}
	m.accounts[email] = memoryAccount{principal: p, password: password}
	return p
}

// SetSession replaces the current session without notifying listeners.
func (m *MemoryIdentityProvider) SetSession(s *domainauth.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
}

// Emit delivers change to every listener.
func (m *MemoryIdentityProvider) Emit(change domainauth.SessionChange) {
	m.mu.Lock()
	ls := make([]ports.SessionListener, 0, len(m.listeners))
	for _, l := range m.listeners {
		ls = append(ls, l)
	}
	m.mu.Unlock()
	for _, l := range ls {
		l(change)
	}
}

// SignInCalls returns how many times SignInWithPassword was called.
func (m *MemoryIdentityProvider) SignInCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signInCalls
}

// SignUpCalls returns how many times SignUpWithPassword was called.
func (m *MemoryIdentityProvider) SignUpCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signUpCalls
}

// ListenerCount returns the number of active subscriptions.
func (m *MemoryIdentityProvider) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *MemoryIdentityProvider) newSessionLocked(p domainauth.Principal) *domainauth.Session {
	m.nextID++
	m.current = &domainauth.Session{
		Principal:   p,
		AccessToken: fmt.Sprintf("token-%d", m.nextID),
	}
	s := *m.current
	return &s
}
