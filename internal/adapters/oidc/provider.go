// Package oidc is an identity provider that signs admins in with the OAuth2
// resource-owner password grant and verifies the returned ID token.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/adapters/sessionfeed"
	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.IdentityProvider = (*Provider)(nil)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	// IssuerURL may also be given as the full discovery URL.
	IssuerURL  string
	HTTPClient *http.Client // Optional, defaults to a 30s-timeout client
}

// Provider implements ports.IdentityProvider against an OIDC issuer.
// Accounts are managed by the issuer, so sign-up is unsupported.
type Provider struct {
	config     *oauth2.Config
	verifier   *gooidc.IDTokenVerifier
	httpClient *http.Client
	now        func() time.Time

	listeners sessionfeed.Broadcaster

	mu      sync.Mutex
	current *domainauth.Session
	token   *oauth2.Token
}

// NewProvider discovers the issuer's endpoints and keys.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(cfg.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	scope := cfg.Scope
	if strings.TrimSpace(scope) == "" {
		scope = "openid profile email"
	}
	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       strings.Fields(scope),
			Endpoint:     op.Endpoint(),
		},
		verifier:   op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Subscribe implements ports.IdentityProvider.
func (p *Provider) Subscribe(listener ports.SessionListener) func() {
	return p.listeners.Subscribe(listener)
}

// GetSession returns the current session, refreshing it first when the access
// token has expired and a refresh token is available.
func (p *Provider) GetSession(ctx context.Context) (*domainauth.Session, error) {
	p.mu.Lock()
	cur, tok := p.current, p.token
	p.mu.Unlock()
	if cur == nil {
		return nil, nil
	}
	if !cur.Expired(p.now()) {
		out := *cur
		return &out, nil
	}
	if tok == nil || tok.RefreshToken == "" {
		p.drop()
		return nil, nil
	}

	// An access-token-less token forces the token source to use the refresh grant.
	stale := &oauth2.Token{RefreshToken: tok.RefreshToken}
	fresh, err := p.config.TokenSource(p.clientCtx(ctx), stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	sess, err := p.sessionFrom(ctx, fresh, cur.Principal)
	if err != nil {
		return nil, err
	}
	p.adopt(sess, fresh, domainauth.EventTokenRefreshed)
	return sess, nil
}

// SignInWithPassword exchanges the email/password pair for tokens.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	tok, err := p.config.PasswordCredentialsToken(p.clientCtx(ctx), email, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && isRejection(re) {
			return nil, ports.ErrInvalidLogin
		}
		return nil, fmt.Errorf("password grant: %w", err)
	}
	sess, err := p.sessionFrom(ctx, tok, domainauth.Principal{})
	if err != nil {
		return nil, err
	}
	p.adopt(sess, tok, domainauth.EventSignedIn)
	return sess, nil
}

// SignUpWithPassword always returns ports.ErrSignUpUnsupported.
func (p *Provider) SignUpWithPassword(context.Context, string, string, map[string]string) (*domainauth.Session, error) {
	return nil, ports.ErrSignUpUnsupported
}

// SignOut forgets the tokens locally. The issuer session is left to expire.
func (p *Provider) SignOut(context.Context) error {
	p.drop()
	return nil
}

func (p *Provider) drop() {
	p.mu.Lock()
	had := p.current != nil
	p.current, p.token = nil, nil
	p.mu.Unlock()
	if had {
		p.listeners.Emit(domainauth.SessionChange{Event: domainauth.EventSignedOut})
	}
}

func (p *Provider) adopt(sess *domainauth.Session, tok *oauth2.Token, event domainauth.SessionEvent) {
	held := *sess
	p.mu.Lock()
	p.current, p.token = &held, tok
	p.mu.Unlock()
	out := *sess
	p.listeners.Emit(domainauth.SessionChange{Event: event, Session: &out})
}

type idClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

// sessionFrom verifies the ID token. Refresh responses may omit it, in which
// case fallback supplies the principal.
func (p *Provider) sessionFrom(
	ctx context.Context,
	tok *oauth2.Token,
	fallback domainauth.Principal,
) (*domainauth.Session, error) {
	principal := fallback
	rawID, _ := tok.Extra("id_token").(string)
	switch {
	case rawID != "":
		idTok, err := p.verifier.Verify(p.clientCtx(ctx), rawID)
		if err != nil {
			return nil, fmt.Errorf("verify id token: %w", err)
		}
		var claims idClaims
		if err := idTok.Claims(&claims); err != nil {
			return nil, fmt.Errorf("decode id token claims: %w", err)
		}
		principal = domainauth.Principal{ID: idTok.Subject, Email: strings.ToLower(claims.Email)}
		if claims.PreferredUsername != "" {
			principal.Metadata = map[string]string{"username": claims.PreferredUsername}
		}
	case principal.ID == "":
		return nil, errors.New("token response has no id_token")
	}

	return &domainauth.Session{
		Principal:    principal,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

func isRejection(re *oauth2.RetrieveError) bool {
	if re.ErrorCode == "invalid_grant" {
		return true
	}
	return re.Response != nil && re.Response.StatusCode == http.StatusUnauthorized && re.ErrorCode != "invalid_client"
}

func (p *Provider) clientCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}
