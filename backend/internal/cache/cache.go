// Package cache holds read-through snapshots of stored documents. The cache is never a source of
// truth: writes always compare-and-swap against the store, so a stale entry can at worst produce a
// version conflict that the caller resolves by reloading.
package cache

import (
	"context"
	"time"

	"course-graph/backend/internal/store"
)

// SnapshotCache caches the latest known document per (kind, course id)
type SnapshotCache interface {
	// Get returns a cached document, or false on a miss or a cache failure.
	Get(ctx context.Context, kind, courseID string) (*store.Document, bool)
	// Set records doc unless a newer version is already cached.
	Set(ctx context.Context, doc *store.Document)
	// Invalidate drops the entry for (kind, course id).
	Invalidate(ctx context.Context, kind, courseID string)
	Close() error
}

// Noop is used when no cache is configured
type Noop struct{}

func (Noop) Get(context.Context, string, string) (*store.Document, bool) { return nil, false }
func (Noop) Set(context.Context, *store.Document)                        {}
func (Noop) Invalidate(context.Context, string, string)                  {}
func (Noop) Close() error                                                { return nil }

const keyPrefix = "course-graph:snapshot:"

func key(kind, courseID string) string {
	return keyPrefix + kind + ":" + courseID
}

// DefaultTTL bounds how long an entry lives without being refreshed
const DefaultTTL = 5 * time.Minute
