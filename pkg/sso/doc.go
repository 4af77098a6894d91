// Package sso adapts external identity providers to the users.Authority
// interface.
//
// Three providers are available:
//
//   - oauth2: resource owner password grant, profile from the userinfo endpoint
//   - oidc: password grant against a discovered issuer, profile from the
//     verified ID token (optionally merged with userinfo)
//   - static: a YAML directory of bcrypt password hashes, optionally reloaded
//     when the file changes
//
// Account verification for oauth2 and oidc calls a directory endpoint
// (AccountURL, with "{account}" substituted) authenticated with client
// credentials. Without a directory every unknown account is reported as
// users.ErrNotFound.
//
// Errors wrap users.ErrAuthentication for rejected credentials,
// users.ErrNotFound for unknown accounts and users.ErrAuthorityUnavailable
// for transport failures and timeouts.
//
// # Usage
//
//	factory := sso.NewProviderFactory(logger, metrics)
//	authority, err := factory.CreateProvider(ctx, &sso.ProviderConfig{
//		ProviderType: sso.ProviderTypeStatic,
//		StaticConfig: &sso.StaticConfig{Path: "users.yaml", Watch: true},
//	})
//	defer authority.Close()
package sso
