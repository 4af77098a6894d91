// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, doc)
//	httputil.WriteCreated(w, result)
//	httputil.WriteUnauthorized(w, "authentication failed")
//	httputil.WriteUnprocessable(w, "name", "params missing")
//
// Every error body has the shape {"error": "...", "field": "..."}.
//
// # Request Parsing
//
//	var req LoginBody
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	account, ok := httputil.ParsePathStringOrError(w, r, "account")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
