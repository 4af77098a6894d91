package users

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/couchuser/pkg/auth"
	"github.com/platinummonkey/couchuser/pkg/observability"
)

const tracerName = "github.com/platinummonkey/couchuser/pkg/users"

// Lookup sources, used as metric labels
const (
	sourceCache     = "cache"
	sourceStore     = "store"
	sourceAuthority = "authority"
)

// DefaultWriteTimeout bounds the write phase of Lookup and Login
const DefaultWriteTimeout = 10 * time.Second

// Options configures a Service
type Options struct {
	// LoginExpire is the time-to-live of issued tokens in the cache
	LoginExpire time.Duration
	// WriteTimeout bounds store writes, which are detached from caller cancellation
	WriteTimeout time.Duration
	Logger       *observability.Logger
	Metrics      *observability.Metrics
}

// Service orchestrates user reads and writes across the durable store,
// the cache store and the identity authority.
type Service struct {
	store     Store
	cache     Cache
	authority Authority
	opts      Options
	tracer    trace.Tracer
}

// NewService creates a new user service
func NewService(store Store, cache Cache, authority Authority, opts Options) *Service {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &Service{
		store:     store,
		cache:     cache,
		authority: authority,
		opts:      opts,
		tracer:    otel.Tracer(tracerName),
	}
}

// GetUser returns the document for account, serving the cached snapshot
// when present and falling back to Lookup otherwise.
func (s *Service) GetUser(ctx context.Context, account string) (*Document, error) {
	ctx, span := s.tracer.Start(ctx, "users.GetUser", trace.WithAttributes(attribute.String("account", account)))
	defer span.End()

	if account == "" {
		return nil, ValidationFailed("account", "account is required")
	}

	var cached User
	hit, err := s.cache.Get(ctx, KindUser, account, &cached)
	if err != nil {
		s.log(ctx).WithError(err).WithField("account", account).Warn("user cache read failed")
		s.opts.Metrics.RecordCacheError("get")
	}
	if hit {
		s.opts.Metrics.RecordLookup(sourceCache, "found")
		span.SetAttributes(attribute.String("source", sourceCache))
		return cached.Document(), nil
	}

	user, source, err := s.lookup(ctx, account)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("source", source))

	if source == sourceStore {
		wctx, cancel := s.writeContext(ctx)
		defer cancel()
		s.buildSnapshot(wctx, user)
	}

	return user.Document(), nil
}

// Lookup resolves account from the durable store, adopting it from the
// identity authority when no row exists yet.
func (s *Service) Lookup(ctx context.Context, account string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "users.Lookup", trace.WithAttributes(attribute.String("account", account)))
	defer span.End()

	if account == "" {
		return nil, ValidationFailed("account", "account is required")
	}

	user, _, err := s.lookup(ctx, account)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return user, nil
}

func (s *Service) lookup(ctx context.Context, account string) (*User, string, error) {
	user, err := s.store.FindByAccount(ctx, account)
	if err == nil {
		s.opts.Metrics.RecordLookup(sourceStore, "found")
		return user, sourceStore, nil
	}
	if !errors.Is(err, ErrNotFound) {
		s.opts.Metrics.RecordLookup(sourceStore, "error")
		return nil, "", StorageFailed("find user", err)
	}

	profile, err := s.authority.VerifyAccount(ctx, account)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.Metrics.RecordLookup(sourceAuthority, "not_found")
			return nil, "", NotFound(account, err)
		}
		s.opts.Metrics.RecordLookup(sourceAuthority, "error")
		return nil, "", AuthorityUnavailable("verify account", err)
	}

	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	user, err = s.store.Insert(wctx, account, *profile)
	if err != nil {
		s.opts.Metrics.RecordLookup(sourceAuthority, "error")
		return nil, "", StorageFailed("insert user", err)
	}

	s.log(ctx).WithFields(map[string]interface{}{
		"account": account,
		"user_id": user.ID,
	}).Info("adopted user from identity authority")

	s.buildSnapshot(wctx, user)
	s.opts.Metrics.RecordLookup(sourceAuthority, "found")
	return user, sourceAuthority, nil
}

// Login verifies the credentials with the identity authority, creates or
// updates the durable row, and caches the user snapshot and issued token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "users.Login", trace.WithAttributes(attribute.String("account", req.Account)))
	defer span.End()

	result, err := s.login(ctx, req)
	if err != nil {
		recordSpanError(span, err)
		s.opts.Metrics.RecordLogin(loginStatus(err))
		s.log(ctx).WithError(err).WithField("account", req.Account).Info("login failed")
		return nil, err
	}

	s.opts.Metrics.RecordLogin("success")
	return result, nil
}

// Authenticate is Login under the name used by the HTTP boundary
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	return s.Login(ctx, req)
}

func (s *Service) login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := validateLogin(req); err != nil {
		return nil, err
	}

	profile, err := s.authority.VerifyCredentials(ctx, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrNotFound) {
			return nil, AuthenticationFailed(req.Name, err)
		}
		return nil, AuthorityUnavailable("verify credentials", err)
	}

	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	existing, err := s.store.FindByAccount(wctx, req.Account)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, StorageFailed("find user", err)
	}

	tx, err := s.beginJoint(wctx)
	if err != nil {
		return nil, StorageFailed("begin transaction", err)
	}

	// a row created by another writer since the read still takes this profile
	var user *User
	if existing == nil {
		user, err = tx.store.Upsert(wctx, req.Account, *profile)
	} else {
		user, err = tx.store.UpdateByID(wctx, existing.ID, *profile)
	}
	if err != nil {
		tx.rollback()
		return nil, StorageFailed("write user", err)
	}

	token := auth.IssueToken(req.Name, req.Password)

	if err := tx.queueLogin(wctx, user, req.Name, token, s.opts.LoginExpire); err != nil {
		tx.rollback()
		return nil, StorageFailed("queue cache writes", err)
	}

	cacheErr, err := tx.commit(wctx)
	if err != nil {
		return nil, StorageFailed("commit user", err)
	}
	if cacheErr != nil {
		s.opts.Metrics.RecordCacheError("commit")
		s.log(ctx).WithError(cacheErr).WithField("account", req.Account).
			Warn("cache commit failed after durable commit, next lookup will repair it")
	}

	s.log(ctx).WithFields(map[string]interface{}{
		"account": req.Account,
		"user_id": user.ID,
		"created": existing == nil,
	}).Info("user logged in")

	return &LoginResult{
		OK:  true,
		ID:  DocumentID(req.Account),
		Rev: token,
	}, nil
}

// CheckToken reports whether token is the live token cached for account
func (s *Service) CheckToken(ctx context.Context, account, token string) (bool, error) {
	return s.checkEntry(ctx, KindToken, account, token)
}

// CheckSession reports whether token is the live token issued to name by its
// most recent login, whichever account that login was made under
func (s *Service) CheckSession(ctx context.Context, name, token string) (bool, error) {
	return s.checkEntry(ctx, KindSession, name, token)
}

func (s *Service) checkEntry(ctx context.Context, kind Kind, key, token string) (bool, error) {
	if key == "" || token == "" {
		return false, nil
	}

	var entry TokenEntry
	hit, err := s.cache.Get(ctx, kind, key, &entry)
	if err != nil {
		return false, StorageFailed("get token", err)
	}
	if !hit {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(entry.Token), []byte(token)) == 1, nil
}

func validateLogin(req LoginRequest) error {
	if req.Account == "" {
		return ValidationFailed("account", "params missing: account is required")
	}
	if req.Name == "" || req.Password == "" {
		return ValidationFailed("name", "params missing: name or password missing")
	}
	return nil
}

// buildSnapshot writes the user snapshot outside of a transaction. The cache
// is self-healing, so failures are logged and counted only.
func (s *Service) buildSnapshot(ctx context.Context, u *User) {
	if err := s.cache.Build(ctx, u); err != nil {
		s.opts.Metrics.RecordCacheError("build")
		s.log(ctx).WithError(err).WithField("account", u.Account).Warn("failed to cache user snapshot")
	}
}

// writeContext detaches writes from caller cancellation and bounds them
func (s *Service) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.WriteTimeout)
}

func (s *Service) log(ctx context.Context) *observability.Logger {
	return s.opts.Logger.WithContext(ctx)
}

func loginStatus(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrAuthentication):
		return "rejected"
	case errors.Is(err, ErrAuthorityUnavailable):
		return "authority_unavailable"
	default:
		return "error"
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
