// Package cache provides the named-partition lookup cache used by the
// store decorators. Partitions are populated lazily by readers and cleared
// wholesale by the invalidation path; a backend failure is never surfaced
// to the caller, only logged, so a mutation can never fail because cache
// cleanup failed.
package cache

import "context"

// Cache is a partitioned byte cache. Get reports a miss for any backend
// error; Set and Clear swallow errors after logging them.
type Cache interface {
	Get(ctx context.Context, partition, key string) ([]byte, bool)
	Set(ctx context.Context, partition, key string, value []byte)
	Clear(ctx context.Context, partition string)
}
