// Package localidp is a self-hosted identity provider: principals live in
// PostgreSQL (auth_users) and sessions in Redis.
package localidp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/redis"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/sessionfeed"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data/cryptoutil"
	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.IdentityProvider = (*Provider)(nil)

// UserStore is the subset of data.IdentityUserRepo the provider needs.
type UserStore interface {
	Create(ctx context.Context, user data.IdentityUser) (*data.IdentityUser, error)
	GetByEmail(ctx context.Context, email string) (*data.IdentityUser, error)
}

// SessionStore persists issued sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, token string) (domainauth.Session, error)
	Delete(ctx context.Context, sess domainauth.Session) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

// ChangeFeed carries principal-level changes between processes.
type ChangeFeed interface {
	Publish(ctx context.Context, change redis.PrincipalChange) error
	Listen(ctx context.Context, ready chan<- struct{}, handle func(redis.PrincipalChange)) error
}

// Stores groups the provider's persistence dependencies. Feed is optional.
type Stores struct {
	Users    UserStore
	Sessions SessionStore
	Feed     ChangeFeed
}

// Config tunes session lifetime and hashing.
type Config struct {
	SessionTTL time.Duration // default 1h
	// RefreshMargin is how long before expiry Run rotates the token. Default SessionTTL/4.
	RefreshMargin time.Duration
	Hasher        cryptoutil.Hasher
}

// Options configures NewProvider.
type Options struct {
	Stores Stores
	Config Config
	Logger *slog.Logger
}

// Provider holds at most one current session, like a browser auth client.
type Provider struct {
	users    UserStore
	sessions SessionStore
	feed     ChangeFeed
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	listeners sessionfeed.Broadcaster

	mu      sync.Mutex
	current *domainauth.Session
}

// NewProvider constructs a Provider.
func NewProvider(opts Options) *Provider {
	if opts.Stores.Users == nil || opts.Stores.Sessions == nil {
		panic("localidp.NewProvider: user and session stores are required")
	}
	cfg := opts.Config
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.RefreshMargin <= 0 || cfg.RefreshMargin >= cfg.SessionTTL {
		cfg.RefreshMargin = cfg.SessionTTL / 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		users:    opts.Stores.Users,
		sessions: opts.Stores.Sessions,
		feed:     opts.Stores.Feed,
		cfg:      cfg,
		logger:   logger.With("component", "local_idp"),
		now:      time.Now,
	}
}

// Subscribe implements ports.IdentityProvider.
func (p *Provider) Subscribe(listener ports.SessionListener) func() {
	return p.listeners.Subscribe(listener)
}

// GetSession returns the current session if it is still live in the session store.
// A revoked or expired session is dropped silently.
func (p *Provider) GetSession(ctx context.Context) (*domainauth.Session, error) {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil {
		return nil, nil
	}

	stored, err := p.sessions.Get(ctx, cur.AccessToken)
	if errors.Is(err, redis.ErrNotFound) {
		p.mu.Lock()
		if p.current != nil && p.current.AccessToken == cur.AccessToken {
			p.current = nil
		}
		p.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &stored, nil
}

// SignInWithPassword implements ports.IdentityProvider.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	user, err := p.users.GetByEmail(ctx, email)
	if errors.Is(err, data.ErrIdentityNotFound) {
		cryptoutil.CompareDummy(password)
		return nil, ports.ErrInvalidLogin
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	ok, err := cryptoutil.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("compare identity password: %w", err)
	}
	if !ok {
		return nil, ports.ErrInvalidLogin
	}
	return p.issue(ctx, principalOf(user), domainauth.EventSignedIn, "")
}

// SignUpWithPassword creates the principal and signs it in immediately.
func (p *Provider) SignUpWithPassword(
	ctx context.Context,
	email, password string,
	metadata map[string]string,
) (*domainauth.Session, error) {
	hash, err := p.cfg.Hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user, err := p.users.Create(ctx, data.IdentityUser{
		Email:        email,
		PasswordHash: hash,
		Metadata:     maps.Clone(metadata),
	})
	if errors.Is(err, data.ErrIdentityExists) {
		return nil, ports.ErrAlreadyRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	p.logger.InfoContext(ctx, "identity created", "user_id", user.ID)
	return p.issue(ctx, principalOf(user), domainauth.EventSignedIn, "")
}

// SignOut drops the current session locally even when the store delete fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	cur := p.current
	p.current = nil
	p.mu.Unlock()
	if cur == nil {
		return nil
	}

	p.listeners.Emit(domainauth.SessionChange{Event: domainauth.EventSignedOut})
	if err := p.sessions.Delete(ctx, *cur); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Refresh rotates the current session's tokens and emits TOKEN_REFRESHED.
// It is a no-op when signed out.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil {
		return nil
	}
	_, err := p.issue(ctx, cur.Principal, domainauth.EventTokenRefreshed, cur.AccessToken)
	if errors.Is(err, errSuperseded) {
		p.logger.DebugContext(ctx, "refresh discarded, session changed meanwhile")
		return nil
	}
	return err
}

// RevokeAll deletes every session of userID and tells other processes to drop theirs.
func (p *Provider) RevokeAll(ctx context.Context, userID string) (int, error) {
	n, err := p.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	p.dropIfCurrent(userID)
	if p.feed != nil {
		change := redis.PrincipalChange{UserID: userID, Event: domainauth.EventSignedOut}
		if err := p.feed.Publish(ctx, change); err != nil {
			return n, fmt.Errorf("publish revocation: %w", err)
		}
	}
	return n, nil
}

// Run refreshes the session before it expires and applies revocations from the
// change feed. It blocks until ctx is done.
func (p *Provider) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if p.feed != nil {
		g.Go(func() error {
			return p.feed.Listen(ctx, nil, func(c redis.PrincipalChange) {
				if c.Event == domainauth.EventSignedOut {
					p.dropIfCurrent(c.UserID)
				}
			})
		})
	}
	g.Go(func() error {
		interval := max(p.cfg.RefreshMargin/2, time.Second)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				p.refreshIfDue(ctx)
			}
		}
	})
	return g.Wait()
}

func (p *Provider) refreshIfDue(ctx context.Context) {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil || cur.ExpiresAt.Sub(p.now()) > p.cfg.RefreshMargin {
		return
	}
	if err := p.Refresh(ctx); err != nil {
		p.logger.WarnContext(ctx, "session refresh failed", "error", err)
	}
}

func (p *Provider) dropIfCurrent(userID string) {
	p.mu.Lock()
	cur := p.current
	if cur == nil || cur.Principal.ID != userID {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()
	p.logger.Info("session revoked", "user_id", userID)
	p.listeners.Emit(domainauth.SessionChange{Event: domainauth.EventSignedOut})
}

// errSuperseded reports that the session a refresh started from is no longer current.
var errSuperseded = errors.New("session superseded")

// issue stores a fresh session for principal, replaces the current one and emits event.
// A non-empty replaces makes the swap conditional on the current session still
// holding that access token; otherwise the new session is deleted and errSuperseded returned.
func (p *Provider) issue(
	ctx context.Context,
	principal domainauth.Principal,
	event domainauth.SessionEvent,
	replaces string,
) (*domainauth.Session, error) {
	sess := domainauth.Session{
		Principal:    principal,
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    p.now().Add(p.cfg.SessionTTL),
	}
	if err := p.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	held := sess
	p.mu.Lock()
	prev := p.current
	if replaces != "" && (prev == nil || prev.AccessToken != replaces) {
		p.mu.Unlock()
		if err := p.sessions.Delete(ctx, sess); err != nil {
			p.logger.WarnContext(ctx, "delete discarded session", "error", err)
		}
		return nil, errSuperseded
	}
	p.current = &held
	p.mu.Unlock()

	if prev != nil {
		if err := p.sessions.Delete(ctx, *prev); err != nil {
			p.logger.WarnContext(ctx, "delete replaced session", "error", err)
		}
	}

	out := sess
	p.listeners.Emit(domainauth.SessionChange{Event: event, Session: &out})
	return &sess, nil
}

func principalOf(u *data.IdentityUser) domainauth.Principal {
	return domainauth.Principal{
		ID:       u.ID.String(),
		Email:    u.Email,
		Metadata: maps.Clone(u.Metadata),
	}
}
