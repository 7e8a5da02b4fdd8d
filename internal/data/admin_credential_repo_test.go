package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	apperrors "github.com/hasifahmed52-lang/mecha-29-hub/internal/errors"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/testutil"
)

func TestAdminCredentialRepo_UpsertAndLookup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAdminCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.PasswordHash(ctx, "ops")
	require.ErrorIs(t, err, ports.ErrCredentialNotFound)

	require.NoError(t, repo.Upsert(ctx, domainauth.AdminCredential{Username: " ops ", PasswordHash: "h1"}))
	require.NoError(t, repo.Upsert(ctx, domainauth.AdminCredential{Username: "ops", PasswordHash: "h2"}))

	hash, err := repo.PasswordHash(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, "h2", hash)

	// Lookups are exact.
	_, err = repo.PasswordHash(ctx, "OPS")
	require.ErrorIs(t, err, ports.ErrCredentialNotFound)

	names, err := repo.Usernames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops"}, names)

	require.NoError(t, repo.Delete(ctx, "ops"))
	require.NoError(t, repo.Delete(ctx, "ops"))
	_, err = repo.PasswordHash(ctx, "ops")
	require.ErrorIs(t, err, ports.ErrCredentialNotFound)
}

func TestAdminCredentialRepo_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAdminCredentialRepo(db)

	err := repo.Upsert(context.Background(), domainauth.AdminCredential{Username: "  ", PasswordHash: "h"})
	require.ErrorIs(t, err, ErrUsernameRequired)
}

func TestAdminCredentialRepo_UsernameUniqueIgnoringCase(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAdminCredentialRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, domainauth.AdminCredential{Username: "ops", PasswordHash: "h1"}))

	err := repo.Upsert(ctx, domainauth.AdminCredential{Username: "Ops", PasswordHash: "h2"})
	require.ErrorIs(t, err, ErrUsernameTaken)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "username", apperrors.GetField(err))

	hash, err := repo.PasswordHash(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, "h1", hash)
	_, err = repo.PasswordHash(ctx, "Ops")
	require.ErrorIs(t, err, ports.ErrCredentialNotFound)

	names, err := repo.Usernames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops"}, names)
}
