package sso

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/couchuser/pkg/observability"
	"github.com/platinummonkey/couchuser/pkg/users"
)

// StaticEntry is one user of a static directory file
type StaticEntry struct {
	PasswordHash string                 `yaml:"password_hash"` // bcrypt
	Name         string                 `yaml:"name"`
	Email        string                 `yaml:"email"`
	Avatar       string                 `yaml:"avatar"`
	Scopes       []string               `yaml:"scopes"`
	Extra        map[string]interface{} `yaml:"extra,omitempty"`
}

// StaticDirectory is the on-disk layout of a static directory file:
//
//	users:
//	  alice:
//	    password_hash: $2a$10$...
//	    name: Alice
//	    email: alice@example.com
//	    scopes: [read]
type StaticDirectory struct {
	Users map[string]StaticEntry `yaml:"users"`
}

// StaticProvider serves identities from a YAML directory file. It is meant
// for development and for registries without an external identity provider.
type StaticProvider struct {
	config *ProviderConfig
	logger *observability.Logger

	mu      sync.RWMutex
	entries map[string]StaticEntry

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewStaticProvider loads the directory file and, if configured, watches it
// for changes
func NewStaticProvider(config *ProviderConfig, logger *observability.Logger) (*StaticProvider, error) {
	if config.StaticConfig == nil || config.StaticConfig.Path == "" {
		return nil, fmt.Errorf("static directory path is required")
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	p := &StaticProvider{
		config: config,
		logger: logger.WithField("component", "static_authority"),
		done:   make(chan struct{}),
	}

	if err := p.reload(); err != nil {
		return nil, err
	}

	if config.StaticConfig.Watch {
		if err := p.watch(); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// GetType returns the provider type
func (p *StaticProvider) GetType() ProviderType {
	return ProviderTypeStatic
}

// VerifyCredentials checks password against the entry's bcrypt hash
func (p *StaticProvider) VerifyCredentials(ctx context.Context, name, password string) (*users.Profile, error) {
	entry, ok := p.entry(name)
	if !ok {
		return nil, fmt.Errorf("user %q: %w", name, users.ErrNotFound)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(entry.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, fmt.Errorf("invalid password for %q: %w", name, users.ErrAuthentication)
		}
		// a hash bcrypt cannot read is a directory fault, not a refusal
		return nil, fmt.Errorf("comparing password hash for %q: %w: %w", name, users.ErrAuthorityUnavailable, err)
	}

	return entry.profile(), nil
}

// VerifyAccount reports whether account is listed in the directory
func (p *StaticProvider) VerifyAccount(ctx context.Context, account string) (*users.Profile, error) {
	entry, ok := p.entry(account)
	if !ok {
		return nil, fmt.Errorf("user %q: %w", account, users.ErrNotFound)
	}
	return entry.profile(), nil
}

// ValidateConfig validates the static directory configuration
func (p *StaticProvider) ValidateConfig() error {
	if p.config.StaticConfig == nil || p.config.StaticConfig.Path == "" {
		return fmt.Errorf("static directory path is required")
	}
	return nil
}

// Len returns the number of users in the directory
func (p *StaticProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Close stops watching the directory file
func (p *StaticProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}
	close(p.done)
	err := p.watcher.Close()
	p.wg.Wait()
	return err
}

func (p *StaticProvider) entry(name string) (StaticEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[name]
	return e, ok
}

func (p *StaticProvider) reload() error {
	data, err := os.ReadFile(p.config.StaticConfig.Path)
	if err != nil {
		return fmt.Errorf("failed to read static directory: %w", err)
	}
	// truncation while the file is rewritten shows up as an empty read
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("static directory %s is empty", p.config.StaticConfig.Path)
	}

	var dir StaticDirectory
	if err := yaml.Unmarshal(data, &dir); err != nil {
		return fmt.Errorf("failed to parse static directory: %w", err)
	}
	for name, e := range dir.Users {
		if e.PasswordHash == "" {
			return fmt.Errorf("static directory user %q has no password_hash", name)
		}
		if _, err := bcrypt.Cost([]byte(e.PasswordHash)); err != nil {
			return fmt.Errorf("static directory user %q has an invalid password_hash: %w", name, err)
		}
	}

	p.mu.Lock()
	p.entries = dir.Users
	p.mu.Unlock()

	p.logger.WithField("users", len(dir.Users)).Info("static directory loaded")
	return nil
}

// watch reloads on writes to the file. The parent directory is watched so
// editors that replace the file by rename are picked up.
func (p *StaticProvider) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	path := filepath.Clean(p.config.StaticConfig.Path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	p.watcher = watcher

	eventsCh := watcher.Events
	errorsCh := watcher.Errors

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.done:
				return
			case event, ok := <-eventsCh:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				// a failed reload keeps the previous directory
				if err := p.reload(); err != nil {
					p.logger.WithError(err).Warn("static directory reload failed")
				}
			case err, ok := <-errorsCh:
				if !ok {
					return
				}
				p.logger.WithError(err).Error("file watcher error")
			}
		}
	}()

	return nil
}

func (e StaticEntry) profile() *users.Profile {
	scopes := e.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return &users.Profile{
		Name:   e.Name,
		Email:  e.Email,
		Avatar: e.Avatar,
		Scopes: scopes,
		Extra:  e.Extra,
	}
}
