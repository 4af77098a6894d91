// Package api provides the HTTP server for the registry user endpoints.
//
// # Overview
//
// The routes follow the CouchDB user document convention used by npm clients:
//
//	GET /-/user/org.couchdb.user:{account}   read the user document
//	PUT /-/user/org.couchdb.user:{account}   log in, creating the user if needed
//	GET /-/whoami                            name behind a bearer token
//
// A successful PUT returns 201 with {"ok": true, "id": ..., "rev": <token>}.
// Setting ServerOptions.LoginRateLimiter limits PUTs per account; rejected
// attempts get 429 with Retry-After.
//
// # Errors
//
// Service error kinds map to status codes:
//
//	users.ErrValidation            422 (with "field")
//	users.ErrAuthentication        401
//	users.ErrNotFound              404
//	users.ErrAuthorityUnavailable  503
//	users.ErrStorage               500
//
// Malformed JSON bodies are rejected with 400 before reaching the service.
// Error bodies are {"error": "..."}; storage causes are logged, never returned.
//
// # Usage
//
//	server := api.NewServer(service, api.ServerOptions{
//		Logger:  logger,
//		Metrics: metrics,
//	})
//	http.ListenAndServe(":8080", server)
//
// Requests pass through request id, logging, panic recovery, body limit and
// content type middleware, are traced with otelhttp, and are counted per route
// template so account names never become metric labels.
package api
