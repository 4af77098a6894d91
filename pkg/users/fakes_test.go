package users

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// fakeStore is an in-memory Store
type fakeStore struct {
	mu     sync.Mutex
	rows   map[string]*User
	nextID int64
	writes int

	findErr   error
	insertErr error
	updateErr error
	beginErr  error
	commitErr error

	rolledBack int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*User)}
}

func (s *fakeStore) FindByAccount(ctx context.Context, account string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.rows[account]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", account, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) Insert(ctx context.Context, account string, p Profile) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(account, p)
}

func (s *fakeStore) insertLocked(account string, p Profile) (*User, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	if existing, ok := s.rows[account]; ok {
		cp := *existing
		return &cp, nil
	}
	s.nextID++
	s.writes++
	now := time.Now().UTC()
	u := &User{
		ID: s.nextID, Account: account,
		Name: p.Name, Email: p.Email, Avatar: p.Avatar, Scopes: p.Scopes, Extra: p.Extra,
		CreatedAt: now, UpdatedAt: now,
	}
	s.rows[account] = u
	cp := *u
	return &cp, nil
}

func (s *fakeStore) Upsert(ctx context.Context, account string, p Profile) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[account]; ok {
		return s.updateLocked(existing.ID, p)
	}
	return s.insertLocked(account, p)
}

func (s *fakeStore) UpdateByID(ctx context.Context, id int64, p Profile) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, p)
}

func (s *fakeStore) updateLocked(id int64, p Profile) (*User, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	for _, u := range s.rows {
		if u.ID == id {
			s.writes++
			u.Name, u.Email, u.Avatar, u.Scopes, u.Extra = p.Name, p.Email, p.Avatar, p.Scopes, p.Extra
			u.UpdatedAt = time.Now().UTC()
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user id %d: %w", id, ErrNotFound)
}

func (s *fakeStore) Begin(ctx context.Context) (StoreTx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]User, len(s.rows))
	for k, u := range s.rows {
		snapshot[k] = *u
	}
	return &fakeStoreTx{store: s, snapshot: snapshot, nextID: s.nextID, writes: s.writes}, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// fakeStoreTx writes through and restores the snapshot taken at Begin on
// rollback or a failed commit
type fakeStoreTx struct {
	store    *fakeStore
	snapshot map[string]User
	nextID   int64
	writes   int
	done     bool
}

func (t *fakeStoreTx) Insert(ctx context.Context, account string, p Profile) (*User, error) {
	return t.store.Insert(ctx, account, p)
}

func (t *fakeStoreTx) Upsert(ctx context.Context, account string, p Profile) (*User, error) {
	return t.store.Upsert(ctx, account, p)
}

func (t *fakeStoreTx) UpdateByID(ctx context.Context, id int64, p Profile) (*User, error) {
	return t.store.UpdateByID(ctx, id, p)
}

func (t *fakeStoreTx) Commit() error {
	if t.done {
		return fmt.Errorf("tx done")
	}
	t.done = true
	if t.store.commitErr != nil {
		t.restore()
		return t.store.commitErr
	}
	return nil
}

func (t *fakeStoreTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.restore()
	t.store.mu.Lock()
	t.store.rolledBack++
	t.store.mu.Unlock()
	return nil
}

func (t *fakeStoreTx) restore() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	rows := make(map[string]*User, len(t.snapshot))
	for k, u := range t.snapshot {
		cp := u
		rows[k] = &cp
	}
	t.store.rows = rows
	t.store.nextID = t.nextID
	t.store.writes = t.writes
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// fakeCache is an in-memory Cache keyed by kind and account
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttls    map[string]time.Duration

	getErr    error
	buildErr  error
	commitErr error

	gets      int
	discarded int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string]cacheEntry),
		ttls:    make(map[string]time.Duration),
	}
}

func cacheKey(kind Kind, account string) string {
	return string(kind) + ":" + account
}

func (c *fakeCache) Build(ctx context.Context, u *User) error {
	if c.buildErr != nil {
		return c.buildErr
	}
	return c.Set(ctx, KindUser, u.Account, u)
}

func (c *fakeCache) Set(ctx context.Context, kind Kind, account string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(kind, account)] = cacheEntry{data: data}
	return nil
}

func (c *fakeCache) Expire(ctx context.Context, kind Kind, account string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(kind, account)
	if ttl <= 0 {
		delete(c.entries, key)
		delete(c.ttls, key)
		return nil
	}
	if e, ok := c.entries[key]; ok {
		e.expiresAt = time.Now().Add(ttl)
		c.entries[key] = e
		c.ttls[key] = ttl
	}
	return nil
}

func (c *fakeCache) Get(ctx context.Context, kind Kind, account string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return false, c.getErr
	}
	e, ok := c.entries[cacheKey(kind, account)]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		return false, nil
	}
	return true, json.Unmarshal(e.data, dest)
}

func (c *fakeCache) Begin(ctx context.Context) CacheTx {
	return &fakeCacheTx{cache: c}
}

func (c *fakeCache) has(kind Kind, account string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[cacheKey(kind, account)]
	return ok
}

func (c *fakeCache) ttl(kind Kind, account string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[cacheKey(kind, account)]
}

type fakeCacheTx struct {
	cache   *fakeCache
	pending []func() error
}

func (t *fakeCacheTx) Build(ctx context.Context, u *User) error {
	t.pending = append(t.pending, func() error { return t.cache.Build(ctx, u) })
	return nil
}

func (t *fakeCacheTx) Set(ctx context.Context, kind Kind, account string, value interface{}) error {
	t.pending = append(t.pending, func() error { return t.cache.Set(ctx, kind, account, value) })
	return nil
}

func (t *fakeCacheTx) Expire(ctx context.Context, kind Kind, account string, ttl time.Duration) error {
	t.pending = append(t.pending, func() error { return t.cache.Expire(ctx, kind, account, ttl) })
	return nil
}

func (t *fakeCacheTx) Commit(ctx context.Context) error {
	if t.cache.commitErr != nil {
		return t.cache.commitErr
	}
	for _, op := range t.pending {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

func (t *fakeCacheTx) Discard() {
	t.pending = nil
	t.cache.mu.Lock()
	t.cache.discarded++
	t.cache.mu.Unlock()
}

// fakeAuthority knows a fixed set of accounts and passwords
type fakeAuthority struct {
	mu        sync.Mutex
	profiles  map[string]Profile
	passwords map[string]string
	err       error

	accountCalls     int
	credentialsCalls int

	// onVerify runs inside VerifyCredentials
	onVerify func()
}

func newFakeAuthority() *fakeAuthority {
	return &fakeAuthority{
		profiles: map[string]Profile{
			"alice": {Name: "Alice", Email: "alice@example.com", Scopes: []string{"read"}},
			"u1":    {Name: "User One", Email: "u1@example.com", Scopes: []string{}},
		},
		passwords: map[string]string{"alice": "pw"},
	}
}

func (a *fakeAuthority) VerifyAccount(ctx context.Context, account string) (*Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accountCalls++
	if a.err != nil {
		return nil, a.err
	}
	p, ok := a.profiles[account]
	if !ok {
		return nil, fmt.Errorf("account %q: %w", account, ErrNotFound)
	}
	return &p, nil
}

func (a *fakeAuthority) VerifyCredentials(ctx context.Context, name, password string) (*Profile, error) {
	a.mu.Lock()
	a.credentialsCalls++
	onVerify := a.onVerify
	a.mu.Unlock()

	if onVerify != nil {
		onVerify()
	}
	if a.err != nil {
		return nil, a.err
	}
	if pw, ok := a.passwords[name]; !ok || pw != password {
		return nil, fmt.Errorf("bad credentials for %q: %w", name, ErrAuthentication)
	}
	p := a.profiles[name]
	return &p, nil
}
