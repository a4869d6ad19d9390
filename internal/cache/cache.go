package cache

import (
	"context"
	"time"
)

// Cache defines the cache interface
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, pattern string) error
}

// CacheKey generates a hierarchical cache key. scope namespaces unrelated
// callers (e.g. "ingest" dedup keys vs "mrclassifier" config caches) the
// way the teacher's tenantID namespaced per-tenant entries.
func CacheKey(scope, studyUID, seriesUID, instanceUID, suffix string) string {
	if instanceUID != "" {
		return scope + ":" + studyUID + ":" + seriesUID + ":" + instanceUID + ":" + suffix
	}
	if seriesUID != "" {
		return scope + ":" + studyUID + ":" + seriesUID + ":" + suffix
	}
	return scope + ":" + studyUID + ":" + suffix
}
