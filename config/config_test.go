package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, IdentityBackendLocal, cfg.Auth.IdentityBackend)
	assert.Equal(t, RoleStoreBackendPostgres, cfg.Auth.RoleStore)
	assert.Equal(t, "aust-mecha.admin", cfg.Auth.AdminEmailDomain)
	assert.Equal(t, 10*time.Second, cfg.Auth.CallTimeout)
	assert.Equal(t, "argon2id", cfg.Auth.PasswordHash)
	assert.Equal(t, "user.id", cfg.Auth.GoTrue.UserIDPath)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "*", cfg.HTTP.AllowedOrigin)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Observability.Metrics.Path)
	assert.True(t, cfg.NeedsPostgres())
	assert.True(t, cfg.NeedsRedis())
	require.NoError(t, cfg.Validate())
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_IDENTITY_BACKEND", "GoTrue")
	t.Setenv("AUTH_ROLE_STORE", "postgrest")
	t.Setenv("ADMIN_EMAIL_DOMAIN", " Mecha.Example. ")
	t.Setenv("AUTH_CALL_TIMEOUT", "3s")
	t.Setenv("AUTH_VERIFIER_URL", "https://fn.example.com/verify-admin-login")
	t.Setenv("GOTRUE_URL", "https://auth.example.com/auth/v1/")
	t.Setenv("GOTRUE_API_KEY", "anon")
	t.Setenv("POSTGREST_URL", "https://auth.example.com/rest/v1")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, IdentityBackendGoTrue, cfg.Auth.IdentityBackend)
	assert.Equal(t, RoleStoreBackendPostgREST, cfg.Auth.RoleStore)
	assert.Equal(t, "mecha.example", cfg.Auth.AdminEmailDomain)
	assert.Equal(t, 3*time.Second, cfg.Auth.CallTimeout)
	assert.Equal(t, "https://auth.example.com/auth/v1", cfg.Auth.GoTrue.URL)
	assert.False(t, cfg.NeedsPostgres())
	assert.False(t, cfg.NeedsRedis())
	require.NoError(t, cfg.Validate())
}

func TestAppConfig_InvalidBackend(t *testing.T) {
	t.Setenv("AUTH_IDENTITY_BACKEND", "ldap")

	var cfg AppConfig
	require.Error(t, env.Parse(&cfg))
}

func TestAuthConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr string
	}{
		{
			name:    "gotrue without url",
			cfg:     AuthConfig{IdentityBackend: IdentityBackendGoTrue, AdminEmailDomain: "d.test"},
			wantErr: "GOTRUE_URL is required",
		},
		{
			name: "oidc without client id",
			cfg: AuthConfig{
				IdentityBackend:  IdentityBackendOIDC,
				AdminEmailDomain: "d.test",
				OAuth:            OAuthConfig{IssuerURL: "https://issuer.example.com"},
			},
			wantErr: "OAUTH_CLIENT_ID",
		},
		{
			name: "relative verifier url",
			cfg: AuthConfig{
				IdentityBackend:  IdentityBackendLocal,
				AdminEmailDomain: "d.test",
				VerifierURL:      "/verify-admin-login",
			},
			wantErr: "AUTH_VERIFIER_URL",
		},
		{
			name: "postgrest without url",
			cfg: AuthConfig{
				IdentityBackend:  IdentityBackendLocal,
				RoleStore:        RoleStoreBackendPostgREST,
				AdminEmailDomain: "d.test",
			},
			wantErr: "POSTGREST_URL",
		},
		{
			name: "unknown hash algorithm",
			cfg: AuthConfig{
				IdentityBackend:  IdentityBackendLocal,
				AdminEmailDomain: "d.test",
				PasswordHash:     "md5",
			},
			wantErr: "AUTH_PASSWORD_HASH",
		},
		{
			name:    "empty domain",
			cfg:     AuthConfig{IdentityBackend: IdentityBackendLocal},
			wantErr: "ADMIN_EMAIL_DOMAIN",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAppConfig_MemoryBackendRequiresDev(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	cfg := AppConfig{Auth: AuthConfig{IdentityBackend: IdentityBackendMemory, RoleStore: RoleStoreBackendMemory}}
	cfg.Sanitize()
	require.Error(t, cfg.Validate())

	cfg.IsDev = true
	require.NoError(t, cfg.Validate())
}

func TestAppConfig_NeedsPostgres(t *testing.T) {
	cfg := AppConfig{IsDev: true, Auth: AuthConfig{
		IdentityBackend: IdentityBackendMemory,
		RoleStore:       RoleStoreBackendMemory,
	}}
	assert.True(t, cfg.NeedsPostgres(), "in-process verifier reads admin_users")
	assert.False(t, cfg.NeedsRedis())

	cfg.Auth.Dev = DevAuthConfig{AdminUsername: "ops", AdminPassword: "pass123"}
	assert.True(t, cfg.UsesDevCredentials())
	assert.False(t, cfg.NeedsPostgres())

	cfg.IsDev = false
	assert.False(t, cfg.UsesDevCredentials())

	cfg = AppConfig{Auth: AuthConfig{
		IdentityBackend: IdentityBackendGoTrue,
		RoleStore:       RoleStoreBackendPostgREST,
		VerifierURL:     "https://fn.example/verify-admin-login",
	}}
	assert.False(t, cfg.NeedsPostgres())

	cfg.Auth.IdentityBackend = IdentityBackendLocal
	assert.True(t, cfg.NeedsPostgres())
	assert.True(t, cfg.NeedsRedis())
}

func TestNormalizeEmailDomain(t *testing.T) {
	assert.Equal(t, "aust-mecha.admin", NormalizeEmailDomain(""))
	assert.Equal(t, "example.org", NormalizeEmailDomain("EXAMPLE.org."))
	assert.Equal(t, "xn--bcher-kva.example", NormalizeEmailDomain("bücher.example"))
}

func TestLoggingConfig_Sanitize(t *testing.T) {
	cfg := LoggingConfig{Level: " WARNING ", Format: "TEXT"}
	cfg.Sanitize()
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "text", cfg.Format)

	cfg = LoggingConfig{Level: "verbose", Format: "yaml"}
	cfg.Sanitize()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
}

func TestMetricsConfig_Sanitize(t *testing.T) {
	cfg := MetricsConfig{Path: "prom"}
	cfg.Sanitize()
	assert.Equal(t, "/prom", cfg.Path)
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	cfg := HTTPConfig{}
	cfg.Sanitize()
	assert.Equal(t, "*", cfg.AllowedOrigin)
	assert.Equal(t, 5*time.Second, cfg.ReadHeaderTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}
