// Package auth issues the registry bearer tokens.
//
// # Token Format
//
// A token is the standard base64 encoding of "name:password":
//
//	token := auth.IssueToken("alice", "secret")
//	// token == "YWxpY2U6c2VjcmV0"
//
//	name, password, err := auth.DecodeToken(token)
//	// name == "alice", password == "secret"
//
// The encoding is reversible and carries no secret. Clients reuse the token as
// the "rev" of their user document, so the derivation must stay stable. The
// token is only a bearer credential for as long as the cache keeps it (see
// pkg/users); it is not a security boundary on its own.
//
// # Related Packages
//
//   - pkg/users: issues tokens on login and stores them with a TTL
package auth
