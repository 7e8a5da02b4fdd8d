package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasifahmed52-lang/mecha-29-hub/config"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/devauth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/gotrue"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/postgrest"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/verifierclient"
	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/service"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func devConfig() *config.AppConfig {
	return &config.AppConfig{
		IsDev: true,
		Auth: config.AuthConfig{
			IdentityBackend:  config.IdentityBackendMemory,
			RoleStore:        config.RoleStoreBackendMemory,
			AdminEmailDomain: "d.test",
			PasswordHash:     "argon2id",
			CallTimeout:      5 * time.Second,
			Dev:              config.DevAuthConfig{AdminUsername: "ops", AdminPassword: "correct horse"},
		},
	}
}

func TestBuildAuth_MemoryBackendsLogin(t *testing.T) {
	cfg := devConfig()
	comps, err := BuildAuth(context.Background(), AuthDeps{Config: cfg, Logger: quietLogger()})
	require.NoError(t, err)
	assert.IsType(t, &devauth.Provider{}, comps.Identity)
	assert.IsType(t, &devauth.RoleStore{}, comps.Roles)
	assert.IsType(t, &service.CredentialVerifierService{}, comps.Verifier)
	assert.Empty(t, comps.Runners)

	provider := NewAdminSession(cfg.Auth, comps, quietLogger())
	require.NoError(t, provider.Start(context.Background()))
	t.Cleanup(provider.Close)

	res := provider.AdminLogin(context.Background(), "ops", "wrong")
	assert.False(t, res.Success)
	assert.Equal(t, domainauth.KindInvalidCredentials, res.Kind)

	res = provider.AdminLogin(context.Background(), " ops ", "correct horse")
	require.True(t, res.Success, "login failed: %+v", res)

	snap := provider.Snapshot()
	assert.True(t, snap.IsAdmin)
	assert.Equal(t, domainauth.PhaseAuthenticated, snap.Phase)
	require.NotNil(t, snap.User)
	assert.Equal(t, "ops@d.test", snap.User.Email)

	provider.Logout(context.Background())
	assert.Equal(t, domainauth.PhaseUnauthenticated, provider.Snapshot().Phase)
}

func TestBuildAuth_RemoteBackends(t *testing.T) {
	cfg := &config.AppConfig{Auth: config.AuthConfig{
		IdentityBackend:  config.IdentityBackendGoTrue,
		RoleStore:        config.RoleStoreBackendPostgREST,
		AdminEmailDomain: "d.test",
		PasswordHash:     "argon2id",
		CallTimeout:      time.Second,
		VerifierURL:      "https://fn.example.test/verify-admin-login",
		GoTrue:           config.GoTrueConfig{URL: "https://auth.example.test/auth/v1", APIKey: "anon"},
		PostgREST:        config.PostgRESTConfig{URL: "https://auth.example.test/rest/v1", APIKey: "anon"},
	}}

	comps, err := BuildAuth(context.Background(), AuthDeps{Config: cfg, Logger: quietLogger()})
	require.NoError(t, err)
	assert.IsType(t, &gotrue.Client{}, comps.Identity)
	assert.IsType(t, &postgrest.RoleStore{}, comps.Roles)
	assert.IsType(t, &verifierclient.Client{}, comps.Verifier)
	assert.Len(t, comps.Runners, 1)
	assert.Nil(t, comps.Local)
}

func TestBuildAuth_MissingInfra(t *testing.T) {
	tests := []struct {
		name     string
		identity config.IdentityBackend
		roles    config.RoleStoreBackend
		wantErr  string
	}{
		{"local identity", config.IdentityBackendLocal, config.RoleStoreBackendMemory, "identity backend local"},
		{"postgres roles", config.IdentityBackendMemory, config.RoleStoreBackendPostgres, "role store postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := devConfig()
			cfg.Auth.IdentityBackend = tt.identity
			cfg.Auth.RoleStore = tt.roles
			_, err := BuildAuth(context.Background(), AuthDeps{Config: cfg})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildLocalVerifier_WithoutStore(t *testing.T) {
	cfg := devConfig()
	cfg.IsDev = false

	verifier, err := BuildLocalVerifier(AuthDeps{Config: cfg, Logger: quietLogger()})
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), "ops", "correct horse")
	require.ErrorIs(t, err, service.ErrVerifierMisconfigured)
}

func TestBuildCredentialStore(t *testing.T) {
	store, err := BuildCredentialStore(AuthDeps{Config: devConfig()})
	require.NoError(t, err)
	assert.IsType(t, &devauth.CredentialStore{}, store)

	cfg := devConfig()
	cfg.Auth.IdentityBackend = config.IdentityBackendLocal
	store, err = BuildCredentialStore(AuthDeps{Config: cfg})
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestPasswordHasher(t *testing.T) {
	h, err := PasswordHasher(config.AuthConfig{PasswordHash: "bcrypt"})
	require.NoError(t, err)
	assert.Equal(t, "bcrypt", string(h.Algorithm))

	_, err = PasswordHasher(config.AuthConfig{PasswordHash: "md5"})
	require.Error(t, err)
}
