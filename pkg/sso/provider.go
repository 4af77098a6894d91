package sso

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/couchuser/pkg/observability"
	"github.com/platinummonkey/couchuser/pkg/users"
)

// Provider is an identity authority backend
type Provider interface {
	users.Authority

	// GetType returns the provider type (OAuth2, OIDC, static)
	GetType() ProviderType

	// ValidateConfig validates the provider configuration
	ValidateConfig() error

	// Close releases the provider's resources
	Close() error
}

// ProviderFactory creates identity authority providers based on configuration
type ProviderFactory struct {
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewProviderFactory creates a new provider factory. Either argument may be nil.
func NewProviderFactory(logger *observability.Logger, metrics *observability.Metrics) *ProviderFactory {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &ProviderFactory{
		logger:  logger,
		metrics: metrics,
	}
}

// CreateProvider creates a validated, instrumented provider from configuration
func (f *ProviderFactory) CreateProvider(ctx context.Context, config *ProviderConfig) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch config.ProviderType {
	case ProviderTypeOAuth2:
		if config.OAuth2Config == nil {
			return nil, fmt.Errorf("OAuth2 config is required for OAuth2 provider")
		}
		provider, err = NewOAuth2Provider(config)

	case ProviderTypeOIDC:
		if config.OIDCConfig == nil {
			return nil, fmt.Errorf("OIDC config is required for OIDC provider")
		}
		provider, err = NewOIDCProvider(ctx, config)

	case ProviderTypeStatic:
		provider, err = NewStaticProvider(config, f.logger)

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if err := provider.ValidateConfig(); err != nil {
		provider.Close()
		return nil, fmt.Errorf("invalid %s provider config: %w", config.ProviderType, err)
	}

	return &instrumentedProvider{
		Provider: provider,
		logger:   f.logger.WithField("authority", string(config.ProviderType)),
		metrics:  f.metrics,
	}, nil
}

// instrumentedProvider records metrics and logs authority outages
type instrumentedProvider struct {
	Provider
	logger  *observability.Logger
	metrics *observability.Metrics
}

func (p *instrumentedProvider) VerifyAccount(ctx context.Context, account string) (*users.Profile, error) {
	start := time.Now()
	profile, err := p.Provider.VerifyAccount(ctx, account)
	p.record(ctx, "verify_account", start, err)
	return profile, err
}

func (p *instrumentedProvider) VerifyCredentials(ctx context.Context, name, password string) (*users.Profile, error) {
	start := time.Now()
	profile, err := p.Provider.VerifyCredentials(ctx, name, password)
	p.record(ctx, "verify_credentials", start, err)
	return profile, err
}

// record counts only outages as errors; a rejected or unknown identity is an answer
func (p *instrumentedProvider) record(ctx context.Context, op string, start time.Time, err error) {
	var failure error
	if err != nil && !errors.Is(err, users.ErrAuthentication) && !errors.Is(err, users.ErrNotFound) {
		failure = err
		p.logger.WithContext(ctx).WithError(err).WithField("operation", op).Warn("identity authority request failed")
	}
	p.metrics.RecordAuthorityRequest(op, start, failure)
}
