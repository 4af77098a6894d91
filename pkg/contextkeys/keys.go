// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application must be defined here.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/couchuser/pkg/contextkeys"
//	ctx = contextkeys.WithRequestID(ctx, requestID)
//	requestID := contextkeys.GetRequestID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger
	// Type: string
	RequestIDKey Key = "request_id"

	// AccountKey contains the account named by the request path
	// Set by: api user handlers
	// Used by: Logger
	// Type: string
	AccountKey Key = "account"

	// UserKey contains the name carried by a verified bearer token
	// Set by: middleware.AuthMiddleware
	// Used by: api whoami handler
	// Type: string
	UserKey Key = "user"

	// LoggerKey contains *observability.Logger
	// Set by: cmd/couchuser as the server base context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithAccount adds the request account to the context
func WithAccount(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}

// GetAccount retrieves the request account from context
func GetAccount(ctx context.Context) string {
	if account, ok := ctx.Value(AccountKey).(string); ok {
		return account
	}
	return ""
}

// WithUser adds the authenticated user name to the context
func WithUser(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, UserKey, name)
}

// GetUser retrieves the authenticated user name, empty when unauthenticated
func GetUser(ctx context.Context) string {
	if name, ok := ctx.Value(UserKey).(string); ok {
		return name
	}
	return ""
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetLogger retrieves the logger from context, nil when absent
func GetLogger(ctx context.Context) interface{} {
	return ctx.Value(LoggerKey)
}
