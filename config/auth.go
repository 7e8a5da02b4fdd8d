package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/idna"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
)

// IdentityBackend selects the ports.IdentityProvider implementation.
type IdentityBackend string

const (
	// IdentityBackendGoTrue talks to a Supabase/GoTrue auth server over REST.
	IdentityBackendGoTrue IdentityBackend = "gotrue"
	// IdentityBackendLocal keeps principals in PostgreSQL and sessions in Redis.
	IdentityBackendLocal IdentityBackend = "local"
	// IdentityBackendOIDC uses the OAuth2 password grant against an OIDC issuer.
	IdentityBackendOIDC IdentityBackend = "oidc"
	// IdentityBackendMemory keeps everything in process (development only).
	IdentityBackendMemory IdentityBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for IdentityBackend.
func (b *IdentityBackend) UnmarshalText(text []byte) error {
	v := IdentityBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case IdentityBackendGoTrue, IdentityBackendLocal, IdentityBackendOIDC, IdentityBackendMemory:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid IdentityBackend: %q (valid options: gotrue, local, oidc, memory)", v)
	}
}

// RoleStoreBackend selects the ports.RoleStore implementation.
type RoleStoreBackend string

const (
	// RoleStoreBackendPostgres reads and writes the user_roles table directly.
	RoleStoreBackendPostgres RoleStoreBackend = "postgres"
	// RoleStoreBackendPostgREST calls the has_role / assign_admin_role RPCs.
	RoleStoreBackendPostgREST RoleStoreBackend = "postgrest"
	// RoleStoreBackendMemory keeps grants in process (development only).
	RoleStoreBackendMemory RoleStoreBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for RoleStoreBackend.
func (b *RoleStoreBackend) UnmarshalText(text []byte) error {
	v := RoleStoreBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case RoleStoreBackendPostgres, RoleStoreBackendPostgREST, RoleStoreBackendMemory:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid RoleStoreBackend: %q (valid options: postgres, postgrest, memory)", v)
	}
}

// GoTrueConfig configures the gotrue identity backend.
type GoTrueConfig struct {
	// URL is the auth server base, e.g. https://xyz.supabase.co/auth/v1.
	URL    string `env:"URL"`
	APIKey string `env:"API_KEY"`
	// UserIDPath and EmailPath are JMESPath expressions evaluated against token
	// and sign-up responses.
	UserIDPath string `env:"USER_ID_PATH" envDefault:"user.id"`
	EmailPath  string `env:"EMAIL_PATH"   envDefault:"user.email"`
	// RefreshMargin is how long before expiry the access token is refreshed.
	RefreshMargin time.Duration `env:"REFRESH_MARGIN" envDefault:"60s"`
}

// PostgRESTConfig configures the postgrest role store.
type PostgRESTConfig struct {
	// URL is the REST base, e.g. https://xyz.supabase.co/rest/v1.
	URL    string `env:"URL"`
	APIKey string `env:"API_KEY"`
}

// OAuthConfig configures the oidc identity backend.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	// IssuerURL is used for discovery (/.well-known/openid-configuration).
	IssuerURL string `env:"ISSUER_URL"`
}

// LocalIdPConfig configures the local identity backend.
type LocalIdPConfig struct {
	SessionTTL    time.Duration `env:"SESSION_TTL"    envDefault:"1h"`
	SessionPrefix string        `env:"SESSION_PREFIX" envDefault:"mecha:session:"`
	ChangeChannel string        `env:"CHANGE_CHANNEL" envDefault:"mecha:auth:changes"`
}

// DevAuthConfig seeds an in-process admin credential for the memory backend.
type DevAuthConfig struct {
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// Enabled reports whether both username and password are set.
func (c DevAuthConfig) Enabled() bool {
	return strings.TrimSpace(c.AdminUsername) != "" && c.AdminPassword != ""
}

// AuthConfig groups admin authentication settings.
type AuthConfig struct {
	IdentityBackend IdentityBackend  `env:"AUTH_IDENTITY_BACKEND" envDefault:"local"`
	RoleStore       RoleStoreBackend `env:"AUTH_ROLE_STORE"       envDefault:"postgres"`

	// AdminEmailDomain is appended to usernames to build principal emails.
	AdminEmailDomain string `env:"ADMIN_EMAIL_DOMAIN" envDefault:"aust-mecha.admin"`

	// PasswordHash is the algorithm for newly provisioned credentials: argon2id or bcrypt.
	// Verification accepts either format.
	PasswordHash string `env:"AUTH_PASSWORD_HASH" envDefault:"argon2id"`

	// CallTimeout bounds every verifier, identity provider, and role store call.
	CallTimeout time.Duration `env:"AUTH_CALL_TIMEOUT" envDefault:"10s"`

	// VerifierURL points at a remote /verify-admin-login endpoint. When empty the
	// credential verifier runs in process against the admin_users table.
	VerifierURL    string `env:"AUTH_VERIFIER_URL"`
	VerifierAPIKey string `env:"AUTH_VERIFIER_API_KEY"`

	GoTrue    GoTrueConfig    `envPrefix:"GOTRUE_"`
	PostgREST PostgRESTConfig `envPrefix:"POSTGREST_"`
	OAuth     OAuthConfig     `envPrefix:"OAUTH_"`
	Local     LocalIdPConfig  `envPrefix:"LOCAL_IDP_"`
	Dev       DevAuthConfig   `envPrefix:"DEV_AUTH_"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *AuthConfig) Sanitize() {
	c.AdminEmailDomain = NormalizeEmailDomain(c.AdminEmailDomain)
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	c.PasswordHash = strings.ToLower(strings.TrimSpace(c.PasswordHash))
	if c.PasswordHash == "" {
		c.PasswordHash = "argon2id"
	}
	c.VerifierURL = strings.TrimSpace(c.VerifierURL)
	c.GoTrue.URL = strings.TrimRight(strings.TrimSpace(c.GoTrue.URL), "/")
	c.PostgREST.URL = strings.TrimRight(strings.TrimSpace(c.PostgREST.URL), "/")
	c.OAuth.IssuerURL = strings.TrimSpace(c.OAuth.IssuerURL)
	if c.GoTrue.RefreshMargin < 0 {
		c.GoTrue.RefreshMargin = 0
	}
	if c.Local.SessionTTL <= 0 {
		c.Local.SessionTTL = time.Hour
	}
}

// Validate checks that the selected backends have what they need.
func (c *AuthConfig) Validate() error {
	var errs []error
	if c.AdminEmailDomain == "" {
		errs = append(errs, errors.New("ADMIN_EMAIL_DOMAIN is not a valid domain"))
	}
	if c.VerifierURL != "" {
		if err := requireHTTPURL("AUTH_VERIFIER_URL", c.VerifierURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.PasswordHash != "argon2id" && c.PasswordHash != "bcrypt" {
		errs = append(errs, fmt.Errorf("AUTH_PASSWORD_HASH must be argon2id or bcrypt, got %q", c.PasswordHash))
	}
	switch c.IdentityBackend {
	case IdentityBackendGoTrue:
		if err := requireHTTPURL("GOTRUE_URL", c.GoTrue.URL); err != nil {
			errs = append(errs, err)
		}
	case IdentityBackendOIDC:
		if err := requireHTTPURL("OAUTH_ISSUER_URL", c.OAuth.IssuerURL); err != nil {
			errs = append(errs, err)
		}
		if c.OAuth.ClientID == "" {
			errs = append(errs, errors.New("OAUTH_CLIENT_ID is required for the oidc identity backend"))
		}
	case IdentityBackendLocal, IdentityBackendMemory:
	}
	if c.RoleStore == RoleStoreBackendPostgREST {
		if err := requireHTTPURL("POSTGREST_URL", c.PostgREST.URL); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NormalizeEmailDomain lowercases the domain and converts it to its ASCII
// (punycode) form. Invalid input yields "".
func NormalizeEmailDomain(raw string) string {
	d := strings.Trim(strings.TrimSpace(raw), ".")
	if d == "" {
		d = domainauth.DefaultAdminEmailDomain
	}
	ascii, err := idna.Lookup.ToASCII(d)
	if err != nil {
		return ""
	}
	return strings.ToLower(ascii)
}

func requireHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", name)
	}
	return nil
}
