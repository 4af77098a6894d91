// Package users resolves and authenticates registry users.
//
// A user is read through three tiers, each repairing the one above it:
//
//	cache store  ->  durable store  ->  identity authority
//
// GetUser serves the cached snapshot when present. On a miss it looks the
// account up in the durable store and, failing that, asks the identity
// authority, adopting the account into the durable store before returning.
//
// Login verifies a name and password with the identity authority, then writes
// the durable row and the cache entries in a joint transaction. The durable
// commit is authoritative: if it fails nothing is cached. If only the cache
// pipeline fails the login still succeeds and the next read repairs the
// snapshot.
//
// The issued token is auth.IssueToken(name, password) and lives in the cache
// for Options.LoginExpire. A zero LoginExpire issues a token without caching it.
package users
