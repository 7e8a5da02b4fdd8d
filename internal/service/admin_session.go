package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data/cryptoutil"
	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/observability/metrics"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var (
	// ErrNotAuthenticated is returned by RequireAdmin when there is no session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotAdmin is returned by RequireAdmin when the principal lacks the admin grant.
	ErrNotAdmin = errors.New("admin role required")
)

const defaultCallTimeout = 10 * time.Second

// AdminSessionPorts are the collaborators of AdminSessionProvider. All are required.
type AdminSessionPorts struct {
	Identity ports.IdentityProvider
	Roles    ports.RoleStore
	Verifier ports.CredentialVerifier
}

// AdminSessionConfig tunes AdminSessionProvider.
type AdminSessionConfig struct {
	// EmailDomain is appended to usernames; defaults to domainauth.DefaultAdminEmailDomain.
	EmailDomain string
	// CallTimeout bounds each verifier, identity provider, and role store call.
	CallTimeout time.Duration
}

// AdminSessionProviderOptions groups dependencies for AdminSessionProvider.
type AdminSessionProviderOptions struct {
	Ports  AdminSessionPorts
	Config AdminSessionConfig
	Logger *slog.Logger
}

// AdminSessionProvider owns the client-side admin authentication state: the
// current session, whether its principal holds the admin grant, and whether
// that answer is still being worked out.
//
// Session-change notifications only record state and hand a refresh task to a
// single worker goroutine; role lookups never run on the notifier's stack. A
// generation counter discards lookup results that finished after the session
// they were started for was replaced.
type AdminSessionProvider struct {
	identity ports.IdentityProvider
	roles    ports.RoleStore
	verifier ports.CredentialVerifier
	domain   string
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	state   sessionState
	pending *refreshTask
	wake    chan struct{}

	lookups singleflight.Group

	startOnce   sync.Once
	closeOnce   sync.Once
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewAdminSessionProvider constructs an AdminSessionProvider. Call Start before use.
func NewAdminSessionProvider(opts AdminSessionProviderOptions) *AdminSessionProvider {
	if opts.Ports.Identity == nil || opts.Ports.Roles == nil || opts.Ports.Verifier == nil {
		panic("service: AdminSessionProvider requires identity, roles, and verifier ports")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Config.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	domain := opts.Config.EmailDomain
	if domain == "" {
		domain = domainauth.DefaultAdminEmailDomain
	}
	return &AdminSessionProvider{
		identity: opts.Ports.Identity,
		roles:    opts.Ports.Roles,
		verifier: opts.Ports.Verifier,
		domain:   domain,
		timeout:  timeout,
		logger:   logger.With("component", "admin_session"),
		state:    sessionState{initializing: true},
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start subscribes to session changes, starts the role-refresh worker, and
// resolves the initial session. A failed session query is treated as no session.
func (p *AdminSessionProvider) Start(ctx context.Context) error {
	started := false
	p.startOnce.Do(func() {
		started = true
		workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		p.cancel = cancel
		p.unsubscribe = p.identity.Subscribe(p.handleSessionChange)
		go p.run(workerCtx)
	})
	if !started {
		return errors.New("admin session provider already started")
	}

	p.mu.Lock()
	gen := p.state.gen
	p.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	sess, err := p.identity.GetSession(callCtx)
	cancel()
	if err != nil {
		p.logger.WarnContext(ctx, "initial session query failed; starting signed out", "error", err)
		sess = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// A notification that arrived during the query is newer than its answer.
	if p.state.gen == gen {
		if sess != nil {
			p.applySessionLocked(sess)
		} else {
			p.clearSessionLocked()
		}
	}
	p.state.initializing = false
	return nil
}

// Close unsubscribes from the identity provider and stops the worker.
func (p *AdminSessionProvider) Close() {
	p.closeOnce.Do(func() {
		if p.unsubscribe != nil {
			p.unsubscribe()
		}
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
	})
}

// Snapshot returns a consistent copy of the provider state.
func (p *AdminSessionProvider) Snapshot() domainauth.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.snapshot()
}

// handleSessionChange is the identity-provider listener. It must stay
// non-blocking: it records the change and queues a refresh for the worker.
func (p *AdminSessionProvider) handleSessionChange(change domainauth.SessionChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if change.Event == domainauth.EventSignedOut || change.Session == nil {
		p.clearSessionLocked()
		return
	}
	if change.Event == domainauth.EventTokenRefreshed &&
		(p.state.session == nil || p.state.session.Principal.ID != change.Session.Principal.ID) {
		p.logger.Debug("ignoring token refresh for a session no longer held")
		return
	}
	if sameSession(p.state.session, change.Session) {
		return
	}
	p.applySessionLocked(cloneSession(change.Session))
}

// applySessionLocked installs sess as the current session and queues a role
// refresh for it. Caller holds p.mu.
func (p *AdminSessionProvider) applySessionLocked(sess *domainauth.Session) uint64 {
	p.state.gen++
	p.state.session = sess
	p.state.isAdmin = false
	p.state.awaitingRole = true
	p.pending = &refreshTask{userID: sess.Principal.ID, gen: p.state.gen}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return p.state.gen
}

// clearSessionLocked drops the session and invalidates in-flight lookups. Caller holds p.mu.
func (p *AdminSessionProvider) clearSessionLocked() {
	p.state.gen++
	p.state.session = nil
	p.state.isAdmin = false
	p.state.awaitingRole = false
	p.pending = nil
}

// run is the role-refresh worker. Only the latest pending task is kept.
func (p *AdminSessionProvider) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}

		p.mu.Lock()
		task := p.pending
		p.pending = nil
		p.mu.Unlock()
		if task == nil {
			continue
		}

		ticket, ok := p.ticketFor(task.gen)
		if !ok {
			continue
		}
		isAdmin, err := p.lookupRole(ctx, task.userID, false)
		if ctx.Err() != nil {
			return
		}
		p.applyLookup(ctx, ticket, isAdmin, err)
	}
}

// ticketFor numbers a lookup for gen. It reports false when gen is already stale.
func (p *AdminSessionProvider) ticketFor(gen uint64) (lookupTicket, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.state.gen {
		return lookupTicket{}, false
	}
	p.state.lookupSeq++
	return lookupTicket{gen: gen, seq: p.state.lookupSeq}, true
}

// lookupRole asks the role store whether userID holds the admin role.
// Concurrent lookups for the same principal share one call unless fresh is
// set, in which case a call already in flight is not joined.
func (p *AdminSessionProvider) lookupRole(ctx context.Context, userID string, fresh bool) (bool, error) {
	if fresh {
		p.lookups.Forget(userID)
	}
	ch := p.lookups.DoChan(userID, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		start := time.Now()
		ok, err := p.roles.HasRole(callCtx, userID, domainauth.RoleAdmin)
		metrics.ObserveRoleLookup(time.Since(start), ok, err)
		return ok, err
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		ok, _ := res.Val.(bool)
		return ok, nil
	}
}

// applyLookup stores a completed lookup result if gen is still current.
// Errors resolve to not-admin. Reports whether the result was applied.
func (p *AdminSessionProvider) applyLookup(ctx context.Context, t lookupTicket, isAdmin bool, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.gen != p.state.gen || t.seq < p.state.appliedSeq || p.state.session == nil {
		metrics.ObserveStaleLookup()
		p.logger.DebugContext(ctx, "discarding stale role lookup", "gen", t.gen, "current_gen", p.state.gen)
		return false
	}
	p.state.appliedSeq = t.seq
	if err != nil {
		p.logger.WarnContext(ctx, "role lookup failed; treating as not admin",
			"user_id", p.state.session.Principal.ID, "error", err)
		isAdmin = false
	}
	p.state.isAdmin = isAdmin
	p.state.awaitingRole = false
	return true
}

// adoptSession makes sess current unless a notification already did, and
// returns the generation it lives under.
func (p *AdminSessionProvider) adoptSession(sess *domainauth.Session) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sameSession(p.state.session, sess) {
		return p.state.gen
	}
	return p.applySessionLocked(cloneSession(sess))
}

func (p *AdminSessionProvider) beginLogin() {
	p.mu.Lock()
	p.state.loginsInFlight++
	p.mu.Unlock()
}

func (p *AdminSessionProvider) endLogin() {
	p.mu.Lock()
	p.state.loginsInFlight--
	p.mu.Unlock()
}

// AdminLogin verifies the credential, signs in (or on first use signs up) the
// matching principal, makes sure it holds the admin grant, and refreshes the
// role flag. Failures are returned as a LoginResult; nothing escapes as a panic
// or raw error.
func (p *AdminSessionProvider) AdminLogin(ctx context.Context, username, password string) (result domainauth.LoginResult) {
	p.beginLogin()
	defer p.endLogin()
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "admin login panicked", "panic", r)
			result = domainauth.Failed(domainauth.NewLoginError(domainauth.KindUnexpected, fmt.Errorf("panic: %v", r)))
		}
		if result.Success {
			metrics.ObserveAdminLogin(metrics.ResultSuccess)
		} else {
			metrics.ObserveAdminLogin(string(result.Kind))
		}
	}()

	if lerr := p.adminLogin(ctx, username, password); lerr != nil {
		level := slog.LevelWarn
		if lerr.Kind == domainauth.KindInvalidCredentials {
			level = slog.LevelInfo
		}
		p.logger.Log(ctx, level, "admin login failed",
			"username", strings.TrimSpace(username), "kind", lerr.Kind, "error", lerr.Err)
		return domainauth.Failed(lerr)
	}
	p.logger.InfoContext(ctx, "admin login succeeded", "username", strings.TrimSpace(username))
	return domainauth.Succeeded()
}

func (p *AdminSessionProvider) adminLogin(ctx context.Context, username, password string) *domainauth.LoginError {
	valid, err := p.verify(ctx, username, password)
	switch {
	case errors.Is(err, ports.ErrMissingCredentials):
		return domainauth.NewLoginError(domainauth.KindInvalidCredentials, err)
	case err != nil:
		return domainauth.NewLoginError(domainauth.KindVerificationUnavailable, err)
	case !valid:
		return domainauth.NewLoginError(domainauth.KindInvalidCredentials, nil)
	}

	// The verifier accepts whitespace variants of one credential; the identity
	// provider always sees the same canonical secret for it.
	name := strings.TrimSpace(username)
	secret := cryptoutil.CanonicalPassword(password)
	sess, lerr := p.establishSession(ctx, domainauth.SyntheticEmail(name, p.domain), secret, name)
	if lerr != nil {
		return lerr
	}
	gen := p.adoptSession(sess)

	if err := p.assignAdmin(ctx, sess.Principal.ID, name); err != nil {
		return domainauth.NewLoginError(domainauth.KindGrantAssignmentFailed, err)
	}

	ticket, _ := p.ticketFor(gen)
	isAdmin, err := p.lookupRole(ctx, sess.Principal.ID, true)
	if ctx.Err() == nil {
		p.applyLookup(ctx, ticket, isAdmin, err)
	}
	if err != nil {
		return domainauth.NewLoginError(domainauth.KindUnexpected, fmt.Errorf("refresh admin role: %w", err))
	}
	if !isAdmin {
		return domainauth.NewLoginError(domainauth.KindGrantAssignmentFailed,
			errors.New("admin grant not visible after assignment"))
	}
	return nil
}

func (p *AdminSessionProvider) verify(ctx context.Context, username, password string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.verifier.Verify(callCtx, username, password)
}

// establishSession signs in, falling back to sign-up when the identity
// provider has no usable account for email.
func (p *AdminSessionProvider) establishSession(
	ctx context.Context,
	email, password, username string,
) (*domainauth.Session, *domainauth.LoginError) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	sess, err := p.identity.SignInWithPassword(callCtx, email, password)
	cancel()
	switch {
	case err == nil && sess != nil:
		return sess, nil
	case err != nil && !errors.Is(err, ports.ErrInvalidLogin):
		return nil, domainauth.NewLoginError(domainauth.KindUnexpected, fmt.Errorf("sign in: %w", err))
	}

	p.logger.InfoContext(ctx, "no identity for admin; signing up", "username", username)
	callCtx, cancel = context.WithTimeout(ctx, p.timeout)
	sess, err = p.identity.SignUpWithPassword(callCtx, email, password, map[string]string{"username": username})
	cancel()
	switch {
	case errors.Is(err, ports.ErrAlreadyRegistered), errors.Is(err, ports.ErrSignUpUnsupported):
		return nil, domainauth.NewLoginError(domainauth.KindAccountDesynced, err)
	case err != nil:
		return nil, domainauth.NewLoginError(domainauth.KindUnexpected, fmt.Errorf("sign up: %w", err))
	case sess == nil:
		return nil, &domainauth.LoginError{
			Kind:    domainauth.KindUnexpected,
			Message: domainauth.MsgSessionUnavailable,
			Err:     errors.New("sign-up returned no session"),
		}
	}
	return sess, nil
}

func (p *AdminSessionProvider) assignAdmin(ctx context.Context, userID, username string) error {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.roles.AssignRole(callCtx, userID, username, domainauth.RoleAdmin); err != nil {
		return fmt.Errorf("assign admin role: %w", err)
	}
	return nil
}

// Logout signs out at the identity provider and clears local state. Identity
// provider errors are logged and otherwise ignored. Safe to call repeatedly.
func (p *AdminSessionProvider) Logout(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.identity.SignOut(callCtx)
	cancel()
	if err != nil {
		p.logger.WarnContext(ctx, "identity provider sign-out failed; clearing local session anyway", "error", err)
	}

	p.mu.Lock()
	p.clearSessionLocked()
	p.mu.Unlock()
}

// RequireAdmin re-checks the admin grant for the current principal with a
// fresh lookup. Use it before privileged operations instead of trusting a
// cached Snapshot.
func (p *AdminSessionProvider) RequireAdmin(ctx context.Context) error {
	p.mu.Lock()
	sess := p.state.session
	gen := p.state.gen
	p.mu.Unlock()
	if sess == nil {
		return ErrNotAuthenticated
	}

	ticket, _ := p.ticketFor(gen)
	isAdmin, err := p.lookupRole(ctx, sess.Principal.ID, true)
	if ctx.Err() == nil {
		p.applyLookup(ctx, ticket, isAdmin, err)
	}
	if err != nil {
		return fmt.Errorf("check admin role: %w", err)
	}
	if !isAdmin {
		return ErrNotAdmin
	}
	return nil
}
