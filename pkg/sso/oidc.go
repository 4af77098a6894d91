package sso

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/platinummonkey/couchuser/pkg/users"
)

// OIDCProvider verifies credentials with the password grant against an
// OpenID Connect issuer and trusts the verified ID token claims
type OIDCProvider struct {
	config       *ProviderConfig
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	httpClient   *http.Client
	directory    *accountDirectory
	mapping      AttributeMap
}

// NewOIDCProvider creates a new OIDC provider, running issuer discovery
func NewOIDCProvider(ctx context.Context, config *ProviderConfig) (*OIDCProvider, error) {
	if config.OIDCConfig == nil {
		return nil, fmt.Errorf("OIDC config is required")
	}

	cfg := config.OIDCConfig
	httpClient := newHTTPClient(config)
	mapping := config.AttributeMapping.withDefaults()

	// Discover OIDC provider
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:        cfg.ClientID,
		SkipIssuerCheck: cfg.SkipIssuerCheck,
	})

	endpoint := provider.Endpoint()
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       cfg.Scopes,
	}

	directory := newAccountDirectory(cfg.AccountURL, &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     endpoint.TokenURL,
	}, httpClient, mapping)

	return &OIDCProvider{
		config:       config,
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
		httpClient:   httpClient,
		directory:    directory,
		mapping:      mapping,
	}, nil
}

// GetType returns the provider type
func (p *OIDCProvider) GetType() ProviderType {
	return ProviderTypeOIDC
}

// VerifyCredentials runs the password grant and verifies the returned ID token
func (p *OIDCProvider) VerifyCredentials(ctx context.Context, name, password string) (*users.Profile, error) {
	ctx = oidc.ClientContext(ctx, p.httpClient)

	oauth2Token, err := p.oauth2Config.PasswordCredentialsToken(ctx, name, password)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, unavailable("token response", fmt.Errorf("missing id_token in response"))
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w: %w", users.ErrAuthentication, err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, unavailable("parse claims", err)
	}

	if p.config.OIDCConfig.UseUserInfo {
		userInfo, err := p.fetchUserInfo(ctx, oauth2Token)
		if err != nil {
			return nil, unavailable("fetch user info", err)
		}
		for k, v := range userInfo {
			claims[k] = v
		}
	}

	return mapProfile(claims, p.mapping), nil
}

// fetchUserInfo fetches additional user information from userinfo endpoint
func (p *OIDCProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (map[string]interface{}, error) {
	userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, err
	}

	var claims map[string]interface{}
	if err := userInfo.Claims(&claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// VerifyAccount checks the account against the directory endpoint
func (p *OIDCProvider) VerifyAccount(ctx context.Context, account string) (*users.Profile, error) {
	return p.directory.lookup(ctx, account)
}

// ValidateConfig validates the OIDC configuration
func (p *OIDCProvider) ValidateConfig() error {
	if p.config.OIDCConfig == nil {
		return fmt.Errorf("OIDC config is required")
	}

	cfg := p.config.OIDCConfig

	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if cfg.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}

	// Verify "openid" scope is present
	hasOpenID := false
	for _, scope := range cfg.Scopes {
		if scope == oidc.ScopeOpenID {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return fmt.Errorf("'openid' scope is required for OIDC")
	}

	return nil
}

// Close releases idle connections
func (p *OIDCProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
