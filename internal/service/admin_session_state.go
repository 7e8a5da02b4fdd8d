package service

import (
	"maps"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
)

// sessionState is the provider's mutable state. Guarded by AdminSessionProvider.mu.
type sessionState struct {
	session *domainauth.Session
	isAdmin bool

	// initializing is true until Start has resolved the first session query.
	initializing bool
	// awaitingRole is true from a session change until a lookup for that
	// session's generation has been applied.
	awaitingRole   bool
	loginsInFlight int

	// gen increases on every session change and on logout.
	gen uint64
	// lookupSeq numbers lookups as they start; appliedSeq is the newest one
	// whose result is in isAdmin. An older lookup never overwrites a newer one.
	lookupSeq  uint64
	appliedSeq uint64
}

// lookupTicket identifies one role lookup: the session generation it belongs
// to and its start order.
type lookupTicket struct {
	gen uint64
	seq uint64
}

// refreshTask asks the worker to look up the role for userID at generation gen.
type refreshTask struct {
	userID string
	gen    uint64
}

func (s *sessionState) phase() domainauth.Phase {
	switch {
	case s.session == nil:
		return domainauth.PhaseUnauthenticated
	case s.awaitingRole:
		return domainauth.PhaseAuthenticatingRole
	default:
		return domainauth.PhaseAuthenticated
	}
}

func (s *sessionState) loading() bool {
	return s.initializing || s.awaitingRole || s.loginsInFlight > 0
}

func (s *sessionState) snapshot() domainauth.Snapshot {
	snap := domainauth.Snapshot{
		Phase:     s.phase(),
		IsAdmin:   s.session != nil && s.isAdmin,
		IsLoading: s.loading(),
	}
	if s.session != nil {
		sess := cloneSession(s.session)
		user := sess.Principal
		snap.Session = sess
		snap.User = &user
	}
	return snap
}

// sameSession reports whether a and b carry the same principal and token.
func sameSession(a, b *domainauth.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Principal.ID == b.Principal.ID && a.AccessToken == b.AccessToken
}

func cloneSession(s *domainauth.Session) *domainauth.Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Principal.Metadata = maps.Clone(s.Principal.Metadata)
	return &c
}
