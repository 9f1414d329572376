package overview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	charmLog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"opsdeck/internal/domain"
)

// cacheTTL is the fixed freshness window for stored overview payloads.
// ExpiresAt is always derived as CachedAt + cacheTTL, never set on its own.
const cacheTTL = time.Hour

// logFetchLimit bounds the newest-first log slice fed into aggregation and
// narrative formatting.
const logFetchLimit = 200

// generationTimeout bounds the external text-generation call. Expiry is
// treated like any other generation failure.
const generationTimeout = 15 * time.Second

// CacheStatus tags a response as served from cache or freshly computed.
type CacheStatus string

const (
	CacheHit  CacheStatus = "hit"
	CacheMiss CacheStatus = "miss"
)

// Clock returns the current time.
type Clock func() time.Time

// Dependencies wires the orchestrator's collaborators. Generator may be nil;
// every generation attempt then takes the deterministic fallback path.
type Dependencies struct {
	Logs      ActivityLog
	Counters  Counters
	Perms     PermissionSource
	Directory Directory
	Generator Generator
	Cache     SummaryCache
	Clock     Clock
	Logger    *charmLog.Logger
}

// Service orchestrates one overview request: cache check, concurrent
// aggregation and context resolution, narrative generation, best-effort
// cache persistence.
type Service struct {
	logs    ActivityLog
	counter Counters
	perms   PermissionSource
	dir     Directory
	gen     Generator
	cache   SummaryCache
	clock   Clock
	logger  *charmLog.Logger
}

func NewService(deps Dependencies) *Service {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = charmLog.New(io.Discard)
	}
	return &Service{
		logs:    deps.Logs,
		counter: deps.Counters,
		perms:   deps.Perms,
		dir:     deps.Directory,
		gen:     deps.Generator,
		cache:   deps.Cache,
		clock:   deps.Clock,
		logger:  deps.Logger,
	}
}

// Result is the overview response plus its cache metadata.
type Result struct {
	Summary     domain.Summary
	CacheStatus CacheStatus
	CachedAt    time.Time
	ExpiresAt   time.Time
}

// Overview serves one request for the viewer's activity overview. Cache
// reads, generation, and the cache write all degrade locally; log fetch,
// metrics, and context resolution are fatal.
func (s *Service) Overview(ctx context.Context, viewer domain.User, timeframe domain.Timeframe, forceRefresh bool) (Result, error) {
	if _, err := domain.ParseTimeframe(timeframe.Days()); err != nil {
		return Result{}, err
	}

	now := s.clock().UTC()
	if !forceRefresh {
		if result, ok := s.cachedResult(ctx, viewer.ID, timeframe, now); ok {
			return result, nil
		}
	}

	// In-flight work keeps running after a client disconnect so the cache
	// write still lands.
	ctx = context.WithoutCancel(ctx)

	since := timeframe.WindowStart(now)
	entries, err := s.logs.ListSince(ctx, since, logFetchLimit)
	if err != nil {
		return Result{}, fmt.Errorf("fetch activity log: %w", err)
	}

	var (
		metrics  domain.Metrics
		resolved resolvedContext
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		metrics, err = s.collectMetrics(gctx, since, entries)
		return err
	})
	g.Go(func() error {
		var err error
		resolved, err = s.resolveContext(gctx, viewer, entries)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	highlight := s.buildHighlight(ctx, metrics, resolved, entries, timeframe, now)
	summary := domain.Summary{
		Metrics:   metrics,
		Highlight: domain.ClampHighlight(highlight),
	}

	cachedAt := s.clock().UTC()
	expiresAt := cachedAt.Add(cacheTTL)
	s.persistSummary(ctx, viewer.ID, timeframe, summary, cachedAt, expiresAt)

	return Result{
		Summary:     summary,
		CacheStatus: CacheMiss,
		CachedAt:    cachedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// cachedResult returns a fresh cached overview when one exists. Store errors
// and undecodable payloads degrade to a recompute.
func (s *Service) cachedResult(ctx context.Context, userID string, timeframe domain.Timeframe, now time.Time) (Result, bool) {
	entry, ok, err := s.cache.Get(ctx, userID, timeframe.Days())
	if err != nil {
		s.logger.Warn("overview cache read failed", "user_id", userID, "timeframe_days", timeframe.Days(), "err", err)
		return Result{}, false
	}
	if !ok || !entry.ExpiresAt.After(now) {
		return Result{}, false
	}

	var summary domain.Summary
	if err := json.Unmarshal(entry.Payload, &summary); err != nil {
		s.logger.Warn("overview cache payload undecodable", "user_id", userID, "timeframe_days", timeframe.Days(), "err", err)
		return Result{}, false
	}
	return Result{
		Summary:     summary,
		CacheStatus: CacheHit,
		CachedAt:    entry.CachedAt,
		ExpiresAt:   entry.ExpiresAt,
	}, true
}

// persistSummary writes the computed overview to the cache store. Failure is
// logged and swallowed; the response stays valid without it.
func (s *Service) persistSummary(ctx context.Context, userID string, timeframe domain.Timeframe, summary domain.Summary, cachedAt, expiresAt time.Time) {
	payload, err := json.Marshal(summary)
	if err != nil {
		s.logger.Warn("overview cache encode failed", "user_id", userID, "timeframe_days", timeframe.Days(), "err", err)
		return
	}
	if err := s.cache.Put(ctx, userID, timeframe.Days(), payload, cachedAt, expiresAt); err != nil {
		s.logger.Warn("overview cache write failed", "user_id", userID, "timeframe_days", timeframe.Days(), "err", err)
	}
}
