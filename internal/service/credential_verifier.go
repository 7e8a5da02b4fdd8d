package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data/cryptoutil"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/observability/metrics"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

// ErrVerifierMisconfigured is returned when no credential store is wired.
var ErrVerifierMisconfigured = errors.New("credential verifier misconfigured")

// CredentialVerifierServiceOptions groups dependencies for CredentialVerifierService.
type CredentialVerifierServiceOptions struct {
	Store  ports.CredentialStore // Required at call time; nil yields ErrVerifierMisconfigured
	Logger *slog.Logger
}

// CredentialVerifierService checks a username/password pair against stored
// AdminCredential hashes. It is stateless and safe for concurrent use.
type CredentialVerifierService struct {
	store  ports.CredentialStore
	logger *slog.Logger
}

var _ ports.CredentialVerifier = (*CredentialVerifierService)(nil)

// NewCredentialVerifierService constructs a CredentialVerifierService.
func NewCredentialVerifierService(opts CredentialVerifierServiceOptions) *CredentialVerifierService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVerifierService{
		store:  opts.Store,
		logger: logger.With("component", "credential_verifier"),
	}
}

// Verify reports whether password matches the stored hash for username.
//
// Both inputs are trimmed. The username lookup is exact after trimming. When
// the trimmed password does not match, the same password with every whitespace
// rune removed is tried as well. An unknown username is (false, nil).
func (s *CredentialVerifierService) Verify(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		metrics.ObserveCredentialCheck(metrics.ResultMissing)
		return false, ports.ErrMissingCredentials
	}
	if s.store == nil {
		metrics.ObserveCredentialCheck(metrics.ResultError)
		return false, ErrVerifierMisconfigured
	}

	hash, err := s.store.PasswordHash(ctx, username)
	if errors.Is(err, ports.ErrCredentialNotFound) {
		cryptoutil.CompareDummy(password)
		metrics.ObserveCredentialCheck(metrics.ResultInvalid)
		return false, nil
	}
	if err != nil {
		metrics.ObserveCredentialCheck(metrics.ResultError)
		return false, fmt.Errorf("lookup admin credential: %w", err)
	}

	ok, err := s.matches(hash, password)
	if err != nil {
		metrics.ObserveCredentialCheck(metrics.ResultError)
		s.logger.ErrorContext(ctx, "stored password hash unusable", "username", username, "error", err)
		return false, fmt.Errorf("compare password: %w", err)
	}
	if ok {
		metrics.ObserveCredentialCheck(metrics.ResultValid)
	} else {
		metrics.ObserveCredentialCheck(metrics.ResultInvalid)
	}
	return ok, nil
}

func (s *CredentialVerifierService) matches(hash, password string) (bool, error) {
	ok, err := cryptoutil.Compare(hash, password)
	if err != nil || ok {
		return ok, err
	}
	stripped := cryptoutil.StripWhitespace(password)
	if stripped == password || stripped == "" {
		return false, nil
	}
	return cryptoutil.Compare(hash, stripped)
}
