// Package overview computes the cached activity overview: operational
// counters plus a short narrative highlight for one viewer and lookback
// window.
package overview

import (
	"context"
	"time"

	"opsdeck/internal/domain"
)

// ActivityLog reads the immutable activity ledger.
type ActivityLog interface {
	// ListSince returns entries with OccurredAt >= since, newest first,
	// capped at limit.
	ListSince(ctx context.Context, since time.Time, limit int) ([]domain.LogEntry, error)
}

// Counters answers the window-bound and snapshot counting queries. Every
// count excludes soft-deleted rows.
type Counters interface {
	TasksDoneSince(ctx context.Context, since time.Time) (int, error)
	LeadsCreatedSince(ctx context.Context, since time.Time) (int, error)
	TasksBlocked(ctx context.Context) (int, error)
}

// PermissionSource enumerates the entities one viewer may resolve.
type PermissionSource interface {
	AccessibleProjectIDs(ctx context.Context, userID string) ([]string, error)
	AccessibleClientIDs(ctx context.Context, userID string) ([]string, error)
}

// Directory batch-resolves display names, excluding soft-deleted records.
type Directory interface {
	ProjectsByIDs(ctx context.Context, ids []string) (map[string]domain.ProjectRef, error)
	ClientsByIDs(ctx context.Context, ids []string) (map[string]domain.ClientRef, error)
}

// Generator is the external text-generation collaborator. It may return an
// error or an empty string; callers treat both as failure.
type Generator interface {
	Generate(ctx context.Context, systemInstruction, userInstruction string) (string, error)
}

// CacheEntry is one stored overview payload with its freshness timestamps.
// Staleness decisions belong to the caller, never to the store.
type CacheEntry struct {
	Payload   []byte
	CachedAt  time.Time
	ExpiresAt time.Time
}

// SummaryCache is a dumb keyed store over (user, timeframe). Put overwrites
// unconditionally.
type SummaryCache interface {
	Get(ctx context.Context, userID string, timeframeDays int) (CacheEntry, bool, error)
	Put(ctx context.Context, userID string, timeframeDays int, payload []byte, cachedAt, expiresAt time.Time) error
}
