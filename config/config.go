package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the root configuration for mecha-hub and mecha-admin.
//
// Values are loaded from environment variables with github.com/caarlos0/env.
// Each section lives in its own file:
//   - auth.go: identity backend, role store, and credential verifier settings
//   - database.go: PostgreSQL and Redis connections
//   - http.go: HTTP server settings
//   - observability.go: logging and metrics
type AppConfig struct {
	// IsDev relaxes a few production guardrails (memory identity backend, text logs).
	// Set DEV=true or NODE_ENV=development.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth AuthConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to values loaded from env.
func (c *AppConfig) Sanitize() {
	c.detectDevMode()
	c.Auth.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()
}

// Validate reports configuration that cannot be used to start the process.
// Call it after Sanitize.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.IdentityBackend == IdentityBackendMemory && !c.IsDev {
		errs = append(errs, errors.New("AUTH_IDENTITY_BACKEND=memory requires DEV=true"))
	}
	return errors.Join(errs...)
}

// NeedsPostgres reports whether any configured component reads from PostgreSQL.
func (c *AppConfig) NeedsPostgres() bool {
	return c.Auth.IdentityBackend == IdentityBackendLocal ||
		c.Auth.RoleStore == RoleStoreBackendPostgres ||
		(c.Auth.VerifierURL == "" && !c.UsesDevCredentials())
}

// UsesDevCredentials reports whether the verifier checks the DEV_AUTH_* credential
// in process instead of reading admin_users.
func (c *AppConfig) UsesDevCredentials() bool {
	return c.IsDev && c.Auth.IdentityBackend == IdentityBackendMemory && c.Auth.Dev.Enabled()
}

// NeedsRedis reports whether any configured component uses Redis.
func (c *AppConfig) NeedsRedis() bool {
	return c.Auth.IdentityBackend == IdentityBackendLocal
}

// detectDevMode falls back to NODE_ENV when DEV is unset.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
