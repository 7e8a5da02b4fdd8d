package devauth

import (
	"context"
	"sync"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.RoleStore = (*RoleStore)(nil)

// RoleStore keeps grants in memory.
type RoleStore struct {
	mu     sync.RWMutex
	grants map[domainauth.RoleGrant]string
}

// NewRoleStore creates an empty RoleStore.
func NewRoleStore() *RoleStore {
	return &RoleStore{grants: make(map[domainauth.RoleGrant]string)}
}

func (s *RoleStore) HasRole(_ context.Context, userID string, role domainauth.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[domainauth.RoleGrant{UserID: userID, Role: role}]
	return ok, nil
}

// AssignRole keeps the username recorded by the first grant.
func (s *RoleStore) AssignRole(_ context.Context, userID, username string, role domainauth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domainauth.RoleGrant{UserID: userID, Role: role}
	if _, ok := s.grants[key]; !ok {
		s.grants[key] = username
	}
	return nil
}
