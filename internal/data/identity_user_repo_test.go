package data

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/testutil"
)

func TestIdentityUserRepo_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewIdentityUserRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, IdentityUser{
		Email:        " Ops@Aust-Mecha.Admin ",
		PasswordHash: "hash",
		Metadata:     map[string]string{"username": "ops"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "ops@aust-mecha.admin", created.Email)
	assert.Equal(t, "ops", created.Metadata["username"])
	assert.False(t, created.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "OPS@aust-mecha.admin")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)

	_, err = repo.Create(ctx, IdentityUser{Email: "ops@aust-mecha.admin", PasswordHash: "x"})
	require.ErrorIs(t, err, ErrIdentityExists)
}

func TestIdentityUserRepo_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewIdentityUserRepo(db)
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "ghost@d.test")
	require.ErrorIs(t, err, ErrIdentityNotFound)

	err = repo.UpdatePassword(ctx, uuid.New(), "h")
	require.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestIdentityUserRepo_UpdatePassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewIdentityUserRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, IdentityUser{Email: "lead@d.test", PasswordHash: "old"})
	require.NoError(t, err)
	require.NoError(t, repo.UpdatePassword(ctx, created.ID, "new"))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.Empty(t, got.Metadata)
}
