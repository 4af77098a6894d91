// Package storage holds the configuration shared by the user persistence
// backends.
//
// # Backends
//
//   - pkg/storage/postgres: the durable user store (PostgreSQL, or SQLite for
//     development and tests) with embedded goose migrations
//   - pkg/storage/cache: the Redis cache store with an optional in-process L1
//
// The durable store is the source of truth. The cache is non-authoritative
// and is rebuilt from the durable store on a miss; the one exception is the
// issued token, which lives only in the cache and expires there.
//
// # Configuration
//
//	cfg := storage.DefaultConfig()
//	cfg.Driver = storage.DriverSQLite
//	cfg.DatabaseURL = "file:couchuser.db?_foreign_keys=on"
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package storage
