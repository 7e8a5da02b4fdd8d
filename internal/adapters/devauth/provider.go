// Package devauth provides in-process identity, role, and credential backends
// for local development (AUTH_IDENTITY_BACKEND=memory).
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/sessionfeed"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data/cryptoutil"
	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.IdentityProvider = (*Provider)(nil)

// Config controls the dev identity provider.
type Config struct {
	SessionDuration time.Duration // default 8h when zero
	Hasher          cryptoutil.Hasher
}

type account struct {
	principal domainauth.Principal
	hash      string
}

// Provider keeps accounts and the current session in memory.
type Provider struct {
	cfg       Config
	listeners sessionfeed.Broadcaster

	mu       sync.Mutex
	accounts map[string]account
	current  *domainauth.Session
	seq      int
}

// NewProvider constructs a dev identity provider.
func NewProvider(cfg Config) *Provider {
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = 8 * time.Hour
	}
	return &Provider{cfg: cfg, accounts: make(map[string]account)}
}

func (p *Provider) Subscribe(listener ports.SessionListener) func() {
	return p.listeners.Subscribe(listener)
}

// GetSession returns the current session; an expired one counts as signed out.
func (p *Provider) GetSession(context.Context) (*domainauth.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.Expired(time.Now()) {
		return nil, nil
	}
	out := *p.current
	return &out, nil
}

func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (*domainauth.Session, error) {
	p.mu.Lock()
	acct, ok := p.accounts[strings.ToLower(email)]
	p.mu.Unlock()
	if !ok {
		cryptoutil.CompareDummy(password)
		return nil, ports.ErrInvalidLogin
	}
	match, err := cryptoutil.Compare(acct.hash, password)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, ports.ErrInvalidLogin
	}
	return p.issue(acct.principal)
}

func (p *Provider) SignUpWithPassword(
	_ context.Context,
	email, password string,
	metadata map[string]string,
) (*domainauth.Session, error) {
	hash, err := p.cfg.Hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(email)

	p.mu.Lock()
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return nil, ports.ErrAlreadyRegistered
	}
	p.seq++
	acct := account{
		principal: domainauth.Principal{
			ID:       fmt.Sprintf("dev-%d", p.seq),
			Email:    email,
			Metadata: maps.Clone(metadata),
		},
		hash: hash,
	}
	p.accounts[email] = acct
	p.mu.Unlock()

	return p.issue(acct.principal)
}

func (p *Provider) SignOut(context.Context) error {
	p.mu.Lock()
	had := p.current != nil
	p.current = nil
	p.mu.Unlock()
	if had {
		p.listeners.Emit(domainauth.SessionChange{Event: domainauth.EventSignedOut})
	}
	return nil
}

func (p *Provider) issue(principal domainauth.Principal) (*domainauth.Session, error) {
	token, err := randomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	sess := domainauth.Session{
		Principal:   principal,
		AccessToken: token,
		ExpiresAt:   time.Now().Add(p.cfg.SessionDuration),
	}
	held := sess
	p.mu.Lock()
	p.current = &held
	p.mu.Unlock()

	out := sess
	p.listeners.Emit(domainauth.SessionChange{Event: domainauth.EventSignedIn, Session: &out})
	return &sess, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
