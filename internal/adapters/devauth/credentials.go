package devauth

import (
	"context"
	"strings"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data/cryptoutil"
	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.CredentialStore = (*CredentialStore)(nil)

// CredentialStore holds a single admin credential seeded from configuration.
// Upsert replaces it.
type CredentialStore struct {
	cred domainauth.AdminCredential
}

// NewCredentialStore hashes the canonical form of password with hasher.
func NewCredentialStore(username, password string, hasher cryptoutil.Hasher) (*CredentialStore, error) {
	hash, err := hasher.Hash(cryptoutil.CanonicalPassword(password))
	if err != nil {
		return nil, err
	}
	return &CredentialStore{cred: domainauth.AdminCredential{
		Username:     strings.TrimSpace(username),
		PasswordHash: hash,
	}}, nil
}

func (s *CredentialStore) PasswordHash(_ context.Context, username string) (string, error) {
	if username != s.cred.Username {
		return "", ports.ErrCredentialNotFound
	}
	return s.cred.PasswordHash, nil
}

func (s *CredentialStore) Upsert(_ context.Context, cred domainauth.AdminCredential) error {
	s.cred = cred
	return nil
}
