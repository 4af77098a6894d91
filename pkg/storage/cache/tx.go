package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/couchuser/pkg/users"
)

// ErrTxDone is returned when a finished transaction is used again
var ErrTxDone = errors.New("cache transaction already committed or discarded")

// Tx queues writes in a redis MULTI/EXEC pipeline
type Tx struct {
	client *Client
	pipe   redis.Pipeliner
	l1     []l1Op
	done   bool
}

// l1Op is an in-process cache change applied once EXEC succeeds
type l1Op struct {
	kind users.Kind
	key  string
	data []byte
}

// Build queues the canonical snapshot of u
func (t *Tx) Build(ctx context.Context, u *users.User) error {
	if u == nil {
		return fmt.Errorf("cannot cache a nil user")
	}
	return t.Set(ctx, users.KindUser, u.Account, u)
}

// Set queues a write of value under kind and account
func (t *Tx) Set(ctx context.Context, kind users.Kind, account string, value interface{}) error {
	if t.done {
		return ErrTxDone
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s entry: %w", kindLabel(kind), err)
	}

	key := t.client.key(kind, account)
	t.pipe.Set(ctx, key, data, 0)
	t.l1 = append(t.l1, l1Op{kind: kind, key: key, data: data})
	return nil
}

// Expire queues a time-to-live change. A non-positive ttl queues a delete.
func (t *Tx) Expire(ctx context.Context, kind users.Kind, account string, ttl time.Duration) error {
	if t.done {
		return ErrTxDone
	}

	key := t.client.key(kind, account)
	if ttl <= 0 {
		t.pipe.Del(ctx, key)
		t.l1 = append(t.l1, l1Op{kind: kind, key: key})
		return nil
	}
	t.pipe.Expire(ctx, key, ttl)
	return nil
}

// Commit executes the queued writes atomically
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	if _, err := t.pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis exec failed: %w", err)
	}

	for _, op := range t.l1 {
		if op.data == nil {
			t.client.l1Remove(op.kind, op.key)
			continue
		}
		t.client.l1Add(op.kind, op.key, op.data)
	}
	return nil
}

// Discard drops the queued writes. It is safe to call after Commit.
func (t *Tx) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.l1 = nil
	_ = t.pipe.Discard()
}
