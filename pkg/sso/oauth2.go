package sso

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/platinummonkey/couchuser/pkg/users"
)

// OAuth2Provider verifies credentials with the OAuth2 password grant and
// resolves the profile from the userinfo endpoint
type OAuth2Provider struct {
	config       *ProviderConfig
	oauth2Config *oauth2.Config
	httpClient   *http.Client
	directory    *accountDirectory
	mapping      AttributeMap
}

// NewOAuth2Provider creates a new OAuth2 provider
func NewOAuth2Provider(config *ProviderConfig) (*OAuth2Provider, error) {
	if config.OAuth2Config == nil {
		return nil, fmt.Errorf("OAuth2 config is required")
	}

	cfg := config.OAuth2Config
	httpClient := newHTTPClient(config)
	mapping := config.AttributeMapping.withDefaults()

	oauth2Cfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: cfg.TokenURL,
		},
		Scopes: cfg.Scopes,
	}

	directory := newAccountDirectory(cfg.AccountURL, &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}, httpClient, mapping)

	return &OAuth2Provider{
		config:       config,
		oauth2Config: oauth2Cfg,
		httpClient:   httpClient,
		directory:    directory,
		mapping:      mapping,
	}, nil
}

// GetType returns the provider type
func (p *OAuth2Provider) GetType() ProviderType {
	return ProviderTypeOAuth2
}

// VerifyCredentials exchanges name and password for a token and fetches
// the user's profile with it
func (p *OAuth2Provider) VerifyCredentials(ctx context.Context, name, password string) (*users.Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth2Config.PasswordCredentialsToken(ctx, name, password)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	client := p.oauth2Config.Client(ctx, token)
	client.Timeout = p.httpClient.Timeout

	userInfo, err := getJSON(ctx, client, p.config.OAuth2Config.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return mapProfile(userInfo, p.mapping), nil
}

// VerifyAccount checks the account against the directory endpoint
func (p *OAuth2Provider) VerifyAccount(ctx context.Context, account string) (*users.Profile, error) {
	return p.directory.lookup(ctx, account)
}

// ValidateConfig validates the OAuth2 configuration
func (p *OAuth2Provider) ValidateConfig() error {
	if p.config.OAuth2Config == nil {
		return fmt.Errorf("OAuth2 config is required")
	}

	cfg := p.config.OAuth2Config

	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if cfg.TokenURL == "" {
		return fmt.Errorf("token_url is required")
	}
	if cfg.UserInfoURL == "" {
		return fmt.Errorf("user_info_url is required")
	}

	return nil
}

// Close releases idle connections
func (p *OAuth2Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
