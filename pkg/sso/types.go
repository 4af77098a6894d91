package sso

import "time"

// ProviderType represents the identity authority type
type ProviderType string

const (
	ProviderTypeOAuth2 ProviderType = "oauth2"
	ProviderTypeOIDC   ProviderType = "oidc"
	ProviderTypeStatic ProviderType = "static"
)

// DefaultTimeout bounds every request to a remote identity authority
const DefaultTimeout = 10 * time.Second

// ProviderConfig represents identity authority configuration
type ProviderConfig struct {
	Name             string        `json:"name"`
	ProviderType     ProviderType  `json:"provider_type"`
	Timeout          time.Duration `json:"timeout"`
	OAuth2Config     *OAuth2Config `json:"oauth2_config,omitempty"`
	OIDCConfig       *OIDCConfig   `json:"oidc_config,omitempty"`
	StaticConfig     *StaticConfig `json:"static_config,omitempty"`
	AttributeMapping AttributeMap  `json:"attribute_mapping"`
}

// OAuth2Config holds OAuth2 configuration. Credentials are checked with the
// resource owner password grant.
type OAuth2Config struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"-"` // Never expose secret in JSON
	TokenURL     string   `json:"token_url"`
	UserInfoURL  string   `json:"user_info_url"`
	Scopes       []string `json:"scopes"`
	// AccountURL is the directory endpoint used to verify an account exists.
	// "{account}" is replaced with the escaped account name.
	AccountURL string `json:"account_url,omitempty"`
}

// OIDCConfig holds OpenID Connect configuration
type OIDCConfig struct {
	ClientID        string   `json:"client_id"`
	ClientSecret    string   `json:"-"` // Never expose secret in JSON
	IssuerURL       string   `json:"issuer_url"` // Discovery endpoint
	Scopes          []string `json:"scopes"`
	SkipIssuerCheck bool     `json:"skip_issuer_check,omitempty"`
	// UseUserInfo merges the userinfo endpoint claims over the ID token claims
	UseUserInfo bool   `json:"use_userinfo,omitempty"`
	AccountURL  string `json:"account_url,omitempty"`
}

// StaticConfig points at a YAML user directory
type StaticConfig struct {
	Path string `json:"path"`
	// Watch reloads the directory when the file changes
	Watch bool `json:"watch"`
}

// AttributeMap defines how authority attributes map to profile fields
type AttributeMap struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Groups   string `json:"groups,omitempty"` // Attribute containing the user's scopes
}

// DefaultAttributeMap returns the standard OIDC claim names
func DefaultAttributeMap() AttributeMap {
	return AttributeMap{
		Username: "preferred_username",
		Email:    "email",
		FullName: "name",
		Avatar:   "picture",
		Groups:   "groups",
	}
}

func (m AttributeMap) withDefaults() AttributeMap {
	d := DefaultAttributeMap()
	if m.Username == "" {
		m.Username = d.Username
	}
	if m.Email == "" {
		m.Email = d.Email
	}
	if m.FullName == "" {
		m.FullName = d.FullName
	}
	if m.Avatar == "" {
		m.Avatar = d.Avatar
	}
	if m.Groups == "" {
		m.Groups = d.Groups
	}
	return m
}
