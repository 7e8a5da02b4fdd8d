package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/hasifahmed52-lang/mecha-29-hub/config"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/devauth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/gotrue"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/localidp"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/oidc"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/postgrest"
	redisadapter "github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/redis"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/verifierclient"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data/cryptoutil"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/service"
)

// Infra holds connections shared by the auth backends. Either may be nil when
// the configuration does not need it.
type Infra struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

// AuthDeps groups what BuildAuth needs.
type AuthDeps struct {
	Config *config.AppConfig
	Infra  Infra
	Logger *slog.Logger
}

// Runner is a background loop owned by an identity backend.
type Runner interface {
	Run(ctx context.Context) error
}

// AuthComponents are the ports backing an AdminSessionProvider.
type AuthComponents struct {
	Identity ports.IdentityProvider
	Roles    ports.RoleStore
	Verifier ports.CredentialVerifier
	// Runners must be running for sessions to stay fresh (local and gotrue backends).
	Runners []Runner
	// Local is set when the local identity backend is selected.
	Local *localidp.Provider
}

// BuildAuth wires the identity provider, role store, and credential verifier
// selected by configuration.
func BuildAuth(ctx context.Context, deps AuthDeps) (*AuthComponents, error) {
	if deps.Config == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	deps.Logger = logger

	comps := &AuthComponents{}
	if err := buildIdentity(ctx, deps, comps); err != nil {
		return nil, fmt.Errorf("identity backend %s: %w", deps.Config.Auth.IdentityBackend, err)
	}

	roles, err := BuildRoleStore(deps, comps.Identity)
	if err != nil {
		return nil, fmt.Errorf("role store %s: %w", deps.Config.Auth.RoleStore, err)
	}
	comps.Roles = roles

	verifier, err := BuildVerifier(deps)
	if err != nil {
		return nil, fmt.Errorf("credential verifier: %w", err)
	}
	comps.Verifier = verifier
	return comps, nil
}

// NewAdminSession builds an AdminSessionProvider over comps. Call Start before use.
func NewAdminSession(cfg config.AuthConfig, comps *AuthComponents, logger *slog.Logger) *service.AdminSessionProvider {
	return service.NewAdminSessionProvider(service.AdminSessionProviderOptions{
		Ports: service.AdminSessionPorts{
			Identity: comps.Identity,
			Roles:    comps.Roles,
			Verifier: comps.Verifier,
		},
		Config: service.AdminSessionConfig{
			EmailDomain: cfg.AdminEmailDomain,
			CallTimeout: cfg.CallTimeout,
		},
		Logger: logger,
	})
}

// PasswordHasher returns the hasher for newly provisioned credentials.
func PasswordHasher(cfg config.AuthConfig) (cryptoutil.Hasher, error) {
	return cryptoutil.NewHasher(cryptoutil.Algorithm(cfg.PasswordHash))
}

func buildIdentity(ctx context.Context, deps AuthDeps, comps *AuthComponents) error {
	cfg := deps.Config.Auth
	httpClient := &http.Client{Timeout: cfg.CallTimeout}

	switch cfg.IdentityBackend {
	case config.IdentityBackendGoTrue:
		client, err := gotrue.NewClient(gotrue.Options{
			Config: gotrue.Config{
				URL:           cfg.GoTrue.URL,
				APIKey:        cfg.GoTrue.APIKey,
				UserIDPath:    cfg.GoTrue.UserIDPath,
				EmailPath:     cfg.GoTrue.EmailPath,
				RefreshMargin: cfg.GoTrue.RefreshMargin,
			},
			HTTPClient: httpClient,
			Logger:     deps.Logger,
		})
		if err != nil {
			return err
		}
		comps.Identity = client
		comps.Runners = append(comps.Runners, client)

	case config.IdentityBackendLocal:
		if deps.Infra.DB == nil || deps.Infra.Redis == nil {
			return errors.New("postgres and redis connections are required")
		}
		hasher, err := PasswordHasher(cfg)
		if err != nil {
			return err
		}
		prov := localidp.NewProvider(localidp.Options{
			Stores: localidp.Stores{
				Users:    data.NewIdentityUserRepo(deps.Infra.DB),
				Sessions: redisadapter.NewSessionStore(deps.Infra.Redis, cfg.Local.SessionPrefix),
				Feed: redisadapter.NewChangeFeed(redisadapter.ChangeFeedOptions{
					Client:  deps.Infra.Redis,
					Channel: cfg.Local.ChangeChannel,
					Logger:  deps.Logger,
				}),
			},
			Config: localidp.Config{SessionTTL: cfg.Local.SessionTTL, Hasher: hasher},
			Logger: deps.Logger,
		})
		comps.Identity = prov
		comps.Local = prov
		comps.Runners = append(comps.Runners, prov)

	case config.IdentityBackendOIDC:
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			Scope:        cfg.OAuth.Scope,
			IssuerURL:    cfg.OAuth.IssuerURL,
			HTTPClient:   httpClient,
		})
		if err != nil {
			return err
		}
		comps.Identity = prov

	case config.IdentityBackendMemory:
		hasher, err := PasswordHasher(cfg)
		if err != nil {
			return err
		}
		comps.Identity = devauth.NewProvider(devauth.Config{Hasher: hasher})

	default:
		return fmt.Errorf("unsupported identity backend %q", cfg.IdentityBackend)
	}
	return nil
}

// BuildRoleStore returns the configured role store. With the gotrue identity
// backend, PostgREST calls carry the signed-in principal's access token.
//
//nolint:ireturn // backends are selected at runtime.
func BuildRoleStore(deps AuthDeps, identity ports.IdentityProvider) (ports.RoleStore, error) {
	cfg := deps.Config.Auth
	switch cfg.RoleStore {
	case config.RoleStoreBackendPostgres:
		if deps.Infra.DB == nil {
			return nil, errors.New("postgres connection is required")
		}
		return data.NewRoleGrantRepo(deps.Infra.DB), nil

	case config.RoleStoreBackendPostgREST:
		opts := postgrest.Options{URL: cfg.PostgREST.URL, APIKey: cfg.PostgREST.APIKey}
		if client, ok := identity.(*gotrue.Client); ok {
			opts.Bearer = client.AccessToken
		}
		return postgrest.NewRoleStore(opts, &http.Client{Timeout: cfg.CallTimeout})

	case config.RoleStoreBackendMemory:
		return devauth.NewRoleStore(), nil

	default:
		return nil, fmt.Errorf("unsupported role store %q", cfg.RoleStore)
	}
}

// BuildVerifier returns a client for the remote verifier when AUTH_VERIFIER_URL
// is set, and the in-process verifier otherwise.
//
//nolint:ireturn // backends are selected at runtime.
func BuildVerifier(deps AuthDeps) (ports.CredentialVerifier, error) {
	cfg := deps.Config.Auth
	if cfg.VerifierURL != "" {
		return verifierclient.New(cfg.VerifierURL, cfg.VerifierAPIKey, &http.Client{Timeout: cfg.CallTimeout})
	}
	return BuildLocalVerifier(deps)
}

// BuildLocalVerifier returns the in-process verifier. Without a credential
// store every check fails with service.ErrVerifierMisconfigured.
func BuildLocalVerifier(deps AuthDeps) (*service.CredentialVerifierService, error) {
	store, err := BuildCredentialStore(deps)
	if err != nil {
		return nil, err
	}
	return service.NewCredentialVerifierService(service.CredentialVerifierServiceOptions{
		Store:  store,
		Logger: deps.Logger,
	}), nil
}

// BuildCredentialStore returns the admin_users repository, or the seeded
// DEV_AUTH_* credential in development. It returns nil when neither is available.
//
//nolint:ireturn // backends are selected at runtime.
func BuildCredentialStore(deps AuthDeps) (ports.CredentialStore, error) {
	if deps.Config.UsesDevCredentials() {
		hasher, err := PasswordHasher(deps.Config.Auth)
		if err != nil {
			return nil, err
		}
		dev := deps.Config.Auth.Dev
		return devauth.NewCredentialStore(dev.AdminUsername, dev.AdminPassword, hasher)
	}
	if deps.Infra.DB != nil {
		return data.NewAdminCredentialRepo(deps.Infra.DB), nil
	}
	return nil, nil
}
