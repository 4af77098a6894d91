package users

import (
	"context"
	"time"
)

// jointTx spans the durable store and the cache store. The two are
// independent systems: the durable transaction commits first and is
// authoritative, the cache pipeline is executed afterwards.
type jointTx struct {
	store StoreTx
	cache CacheTx
}

func (s *Service) beginJoint(ctx context.Context) (*jointTx, error) {
	stx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &jointTx{
		store: stx,
		cache: s.cache.Begin(ctx),
	}, nil
}

// queueLogin queues the user snapshot and the token entries, under the
// account and under the login name, with their TTL
func (t *jointTx) queueLogin(ctx context.Context, u *User, name, token string, ttl time.Duration) error {
	if err := t.cache.Build(ctx, u); err != nil {
		return err
	}
	for _, e := range []struct {
		kind Kind
		key  string
	}{{KindToken, u.Account}, {KindSession, name}} {
		if err := t.cache.Set(ctx, e.kind, e.key, TokenEntry{Token: token}); err != nil {
			return err
		}
		if err := t.cache.Expire(ctx, e.kind, e.key, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (t *jointTx) rollback() {
	t.cache.Discard()
	_ = t.store.Rollback()
}

// commit returns err when the durable commit failed, in which case nothing
// was written to the cache. cacheErr is set when only the cache failed.
func (t *jointTx) commit(ctx context.Context) (cacheErr error, err error) {
	if err := t.store.Commit(); err != nil {
		t.cache.Discard()
		_ = t.store.Rollback()
		return nil, err
	}
	return t.cache.Commit(ctx), nil
}
