// Package middleware provides HTTP middleware for token authentication and
// rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: bearer token authentication
//
//	authn := middleware.NewAuthMiddleware(service, false, logger)
//	router.Handle("/-/whoami", authn.Handler(whoami))
//	// Decodes the token's name, asks the token store whether it is live,
//	// and stores the name in the request context
//
// RateLimitMiddleware: Redis-backed fixed window rate limiting
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, middleware.DefaultLoginRateLimitConfig(), "couchuser:ratelimit")
//	limit := middleware.NewRateLimitMiddleware(limiter, keyFunc, logger, metrics)
//	router.Handle(path, limit.Handler(login))
//
// Limits are shared by every instance using the same Redis. Redis errors fail
// open and are counted as cache errors with operation "ratelimit".
//
// # Related Packages
//
//   - pkg/auth: Token decoding
//   - pkg/users: Token checking
//   - pkg/api: Route wiring
package middleware
