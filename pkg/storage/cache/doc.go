// Package cache implements the redis cache store for user snapshots and
// issued tokens.
//
// Keys have the form "<prefix><kind>:<account>" and values are JSON.
// Begin returns a MULTI/EXEC transaction whose writes become visible only
// on Commit. An optional in-process LRU holds user snapshots in front of
// redis; token entries always go to redis so their expiry is observed.
package cache
