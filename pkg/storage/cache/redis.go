package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/couchuser/pkg/observability"
	"github.com/platinummonkey/couchuser/pkg/storage"
	"github.com/platinummonkey/couchuser/pkg/users"
)

// Options configures a Client built over an existing redis connection
type Options struct {
	// Prefix is prepended to every key
	Prefix string
	// L1Size enables an in-process snapshot cache in front of redis when > 0
	L1Size int
	L1TTL  time.Duration
}

// Client is the redis-backed cache store. Entries are JSON encoded under
// "<prefix><kind>:<account>".
type Client struct {
	rdb     *redis.Client
	prefix  string
	l1      *lru.LRU[string, []byte]
	metrics *observability.Metrics
}

// NewClient connects to redis using config and verifies the connection
func NewClient(config storage.Config, metrics *observability.Metrics) (*Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(rdb, Options{
		Prefix: config.CachePrefix,
		L1Size: config.L1CacheSize,
		L1TTL:  config.L1CacheTTL,
	}, metrics), nil
}

// New wraps an existing redis client. metrics may be nil.
func New(rdb *redis.Client, opts Options, metrics *observability.Metrics) *Client {
	c := &Client{
		rdb:     rdb,
		prefix:  opts.Prefix,
		metrics: metrics,
	}
	if opts.L1Size > 0 {
		c.l1 = lru.NewLRU[string, []byte](opts.L1Size, nil, opts.L1TTL)
	}
	return c
}

func (c *Client) key(kind users.Kind, account string) string {
	return c.prefix + string(kind) + ":" + account
}

// Build stores the canonical snapshot of u
func (c *Client) Build(ctx context.Context, u *users.User) error {
	if u == nil {
		return fmt.Errorf("cannot cache a nil user")
	}
	return c.Set(ctx, users.KindUser, u.Account, u)
}

// Set stores value under kind and account without an expiry
func (c *Client) Set(ctx context.Context, kind users.Kind, account string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s entry: %w", kindLabel(kind), err)
	}

	key := c.key(kind, account)
	if err := c.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	c.l1Add(kind, key, data)
	return nil
}

// Expire sets the entry's time-to-live. A non-positive ttl removes the entry.
func (c *Client) Expire(ctx context.Context, kind users.Kind, account string, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Delete(ctx, kind, account)
	}
	if err := c.rdb.Expire(ctx, c.key(kind, account), ttl).Err(); err != nil {
		return fmt.Errorf("redis expire failed: %w", err)
	}
	return nil
}

// Delete removes the entry for kind and account
func (c *Client) Delete(ctx context.Context, kind users.Kind, account string) error {
	key := c.key(kind, account)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	c.l1Remove(kind, key)
	return nil
}

// Get decodes the entry into dest. A miss returns false with no error.
// Undecodable entries are deleted so the next read can repair them.
func (c *Client) Get(ctx context.Context, kind users.Kind, account string, dest interface{}) (bool, error) {
	key := c.key(kind, account)

	if data, ok := c.l1Get(kind, key); ok {
		if err := json.Unmarshal(data, dest); err == nil {
			c.metrics.RecordCacheHit(kindLabel(kind))
			return true, nil
		}
		c.l1.Remove(key)
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.RecordCacheMiss(kindLabel(kind))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.rdb.Del(ctx, key)
		return false, fmt.Errorf("failed to unmarshal %s entry: %w", kindLabel(kind), err)
	}

	c.metrics.RecordCacheHit(kindLabel(kind))
	c.l1Add(kind, key, data)
	return true, nil
}

// GetUser returns the cached snapshot for account, or nil on a miss
func (c *Client) GetUser(ctx context.Context, account string) (*users.User, error) {
	var u users.User
	hit, err := c.Get(ctx, users.KindUser, account, &u)
	if err != nil || !hit {
		return nil, err
	}
	return &u, nil
}

// TTL returns the remaining time to live of an entry
func (c *Client) TTL(ctx context.Context, kind users.Kind, account string) (time.Duration, error) {
	return c.rdb.TTL(ctx, c.key(kind, account)).Result()
}

// Begin starts a MULTI/EXEC transaction. Queued writes are not visible
// until Commit.
func (c *Client) Begin(ctx context.Context) users.CacheTx {
	return &Tx{
		client: c,
		pipe:   c.rdb.TxPipeline(),
	}
}

// Ping checks redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Redis returns the underlying redis client for health checks
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Close closes the redis connection
func (c *Client) Close() error {
	if c.l1 != nil {
		c.l1.Purge()
	}
	return c.rdb.Close()
}

// only user snapshots are held in process; tokens must observe redis expiry
func (c *Client) l1Add(kind users.Kind, key string, data []byte) {
	if c.l1 != nil && kind == users.KindUser {
		c.l1.Add(key, data)
	}
}

func (c *Client) l1Get(kind users.Kind, key string) ([]byte, bool) {
	if c.l1 == nil || kind != users.KindUser {
		return nil, false
	}
	return c.l1.Get(key)
}

func (c *Client) l1Remove(kind users.Kind, key string) {
	if c.l1 != nil && kind == users.KindUser {
		c.l1.Remove(key)
	}
}

func kindLabel(kind users.Kind) string {
	switch kind {
	case users.KindUser:
		return "user"
	case users.KindToken:
		return "token"
	case users.KindSession:
		return "session"
	default:
		return "other"
	}
}

var (
	_ users.Cache   = (*Client)(nil)
	_ users.CacheTx = (*Tx)(nil)
)
