package users

import (
	"context"
	"time"
)

// DocumentIDPrefix is the CouchDB namespace for user documents
const DocumentIDPrefix = "org.couchdb.user:"

// DocumentType is the fixed "type" field of a user document
const DocumentType = "user"

// DocumentID derives the external document id for an account
func DocumentID(account string) string {
	return DocumentIDPrefix + account
}

// User is the durable record of an account
type User struct {
	ID        int64                  `json:"id"`
	Account   string                 `json:"account"`
	Name      string                 `json:"name"`
	Email     string                 `json:"email"`
	Avatar    string                 `json:"avatar"`
	Scopes    []string               `json:"scopes"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Profile returns the mutable profile fields of the user
func (u *User) Profile() Profile {
	return Profile{
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
		Scopes: u.Scopes,
		Extra:  u.Extra,
	}
}

// Document renders the user as its CouchDB-shaped document
func (u *User) Document() *Document {
	scopes := u.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return &Document{
		ID:     DocumentID(u.Account),
		Name:   u.Name,
		Email:  u.Email,
		Type:   DocumentType,
		Avatar: u.Avatar,
		Scopes: scopes,
	}
}

// Profile is the canonical user profile resolved by the identity authority
type Profile struct {
	Name   string                 `json:"name"`
	Email  string                 `json:"email"`
	Avatar string                 `json:"avatar"`
	Scopes []string               `json:"scopes"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// Document is the response shape of GET /-/user/org.couchdb.user:{account}
type Document struct {
	ID     string   `json:"_id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Type   string   `json:"type"`
	Avatar string   `json:"avatar"`
	Scopes []string `json:"scopes"`
}

// LoginRequest carries the request-scoped inputs of a login
type LoginRequest struct {
	Account  string
	Name     string
	Password string
}

// LoginResult is the response shape of PUT /-/user/org.couchdb.user:{account}
type LoginResult struct {
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// TokenEntry is the cached payload of an issued token
type TokenEntry struct {
	Token string `json:"token"`
}

// Kind namespaces cache entries
type Kind string

const (
	// KindUser holds the user snapshot
	KindUser Kind = "user"
	// KindToken holds the issued bearer token, keyed by account
	KindToken Kind = "/authorization/:token"
	// KindSession holds the same token keyed by the name it encodes
	KindSession Kind = "/authorization/name"
)

// Authority verifies identities against the external identity provider.
//
// Implementations wrap ErrNotFound when an account is unknown,
// ErrAuthentication when credentials are rejected, and
// ErrAuthorityUnavailable for transport failures and timeouts.
type Authority interface {
	VerifyAccount(ctx context.Context, account string) (*Profile, error)
	VerifyCredentials(ctx context.Context, name, password string) (*Profile, error)
}

// UserWriter creates and updates durable user rows
type UserWriter interface {
	// Insert creates the row for account. If the row already exists the
	// existing row is returned instead of a duplicate-key error.
	Insert(ctx context.Context, account string, profile Profile) (*User, error)
	// Upsert creates the row for account or, if it already exists, replaces
	// its profile fields
	Upsert(ctx context.Context, account string, profile Profile) (*User, error)
	// UpdateByID replaces the profile fields of an existing row
	UpdateByID(ctx context.Context, id int64, profile Profile) (*User, error)
}

// Store is the durable user store. FindByAccount wraps ErrNotFound on a miss.
type Store interface {
	UserWriter
	FindByAccount(ctx context.Context, account string) (*User, error)
	Begin(ctx context.Context) (StoreTx, error)
}

// StoreTx is a durable store transaction
type StoreTx interface {
	UserWriter
	Commit() error
	Rollback() error
}

// CacheWriter writes namespaced cache entries
type CacheWriter interface {
	// Build stores the canonical snapshot of u under KindUser
	Build(ctx context.Context, u *User) error
	Set(ctx context.Context, kind Kind, account string, value interface{}) error
	// Expire sets the entry's time-to-live; ttl <= 0 removes it
	Expire(ctx context.Context, kind Kind, account string, ttl time.Duration) error
}

// Cache is the non-authoritative cache store
type Cache interface {
	CacheWriter
	// Get decodes the entry into dest and reports whether it was present
	Get(ctx context.Context, kind Kind, account string, dest interface{}) (bool, error)
	Begin(ctx context.Context) CacheTx
}

// CacheTx queues cache writes until Commit
type CacheTx interface {
	CacheWriter
	Commit(ctx context.Context) error
	Discard()
}
