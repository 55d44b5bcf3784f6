// Package resolver looks up TMDB metadata for canonical titles and keeps a
// process-wide cache of the outcome, misses included.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"watch-history/pkg/domain"
	"watch-history/pkg/tmdb"
)

const DefaultTimeout = 10 * time.Second

// errThrottled marks a lookup that never reached TMDB because the rate
// limiter gave up. Such lookups are not cached.
var errThrottled = errors.New("rate limiter wait failed")

// Searcher is the part of the TMDB client the resolver needs.
type Searcher interface {
	IsConfigured() bool
	SearchMulti(ctx context.Context, query string) (*tmdb.SearchResponse, error)
}

// Config holds resolver tuning.
type Config struct {
	// Timeout bounds each external lookup. <= 0 selects DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the number of lookups per second. 0 disables limiting.
	RateLimit float64

	// Burst is the limiter bucket size. <= 0 uses max(1, RateLimit).
	Burst int
}

// Stats is a snapshot of resolver counters.
type Stats struct {
	Lookups       int64
	CacheHits     int64
	ExternalCalls int64
	Failures      int64
	NoResults     int64
	// Coalesced counts callers that joined another caller's in-flight lookup.
	Coalesced     int64
	CachedTitles  int
}

// Resolver resolves canonical titles to their first TMDB match.
//
// The cache maps a title to its result; a stored nil records that the
// title has no usable match. Entries are never evicted.
type Resolver struct {
	searcher Searcher
	logger   *slog.Logger
	timeout  time.Duration
	limiter  *rate.Limiter

	mu    sync.RWMutex
	cache map[string]*domain.MetadataResult
	group singleflight.Group

	lookups   atomic.Int64
	hits      atomic.Int64
	calls     atomic.Int64
	failures  atomic.Int64
	noResults atomic.Int64
	coalesced atomic.Int64
}

// New creates a Resolver with an empty cache.
func New(searcher Searcher, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.RateLimit))
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Resolver{
		searcher: searcher,
		logger:   logger.With("component", "resolver"),
		timeout:  timeout,
		limiter:  limiter,
		cache:    make(map[string]*domain.MetadataResult),
	}
}

// Resolve returns the metadata for canonicalTitle, or nil when the title is
// empty, unknown to TMDB, or the lookup failed. It never returns an error.
// Failed TMDB calls are logged and cached as misses; a title that never
// reached TMDB is not cached.
//
// Returned values are shared with the cache and must not be modified.
func (r *Resolver) Resolve(ctx context.Context, canonicalTitle string) *domain.MetadataResult {
	r.lookups.Add(1)
	if canonicalTitle == "" {
		return nil
	}

	if m, ok := r.cached(canonicalTitle); ok {
		r.hits.Add(1)
		return m
	}

	if r.searcher == nil || !r.searcher.IsConfigured() {
		r.logger.Warn("Resolver: TMDB API key missing, skipping metadata lookup", "title", canonicalTitle)
		return nil
	}

	executed := false
	v, _, shared := r.group.Do(canonicalTitle, func() (any, error) {
		executed = true

		// A caller that lost the race to an earlier flight finds the entry here.
		if m, ok := r.cached(canonicalTitle); ok {
			r.hits.Add(1)
			return m, nil
		}

		m, err := r.lookup(ctx, canonicalTitle)
		switch {
		case errors.Is(err, errThrottled):
			r.failures.Add(1)
			r.logger.Warn("Resolver: rate limited before TMDB lookup, not caching", "title", canonicalTitle, "error", err)
			return nil, nil
		case err != nil:
			r.failures.Add(1)
			r.logger.Error("Resolver: TMDB lookup failed, caching as no match", "title", canonicalTitle, "error", err)
		case m == nil:
			r.noResults.Add(1)
			r.logger.Debug("Resolver: no TMDB results", "title", canonicalTitle)
		default:
			r.logger.Debug("Resolver: matched title", "title", canonicalTitle, "tmdb_id", m.ID, "match", m.DisplayTitle(), "media_type", m.MediaType)
		}

		r.store(canonicalTitle, m)
		return m, nil
	})
	if shared && !executed {
		r.coalesced.Add(1)
	}

	m, _ := v.(*domain.MetadataResult)
	return m
}

// Stats returns the current counters.
func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	size := len(r.cache)
	r.mu.RUnlock()

	return Stats{
		Lookups:       r.lookups.Load(),
		CacheHits:     r.hits.Load(),
		ExternalCalls: r.calls.Load(),
		Failures:      r.failures.Load(),
		NoResults:     r.noResults.Load(),
		Coalesced:     r.coalesced.Load(),
		CachedTitles:  size,
	}
}

// lookup performs one external search. A nil result with a nil error means
// TMDB answered with zero results.
//
// The call runs on a context detached from the caller's cancellation so a
// cancelled request cannot record a miss on behalf of other callers. The
// resolver timeout bounds the TMDB call only; time spent queued behind the
// rate limiter does not count against it.
func (r *Resolver) lookup(ctx context.Context, canonicalTitle string) (*domain.MetadataResult, error) {
	detached := context.WithoutCancel(ctx)

	if r.limiter != nil {
		if err := r.limiter.Wait(detached); err != nil {
			return nil, fmt.Errorf("%w: %v", errThrottled, err)
		}
	}

	callCtx, cancel := context.WithTimeout(detached, r.timeout)
	defer cancel()

	r.calls.Add(1)
	resp, err := r.searcher.SearchMulti(callCtx, canonicalTitle)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Results) == 0 {
		return nil, nil
	}

	// First result wins: TMDB ranking is kept as-is.
	return resp.Results[0].ToMetadata(), nil
}

func (r *Resolver) cached(canonicalTitle string) (*domain.MetadataResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.cache[canonicalTitle]
	return m, ok
}

func (r *Resolver) store(canonicalTitle string, m *domain.MetadataResult) {
	r.mu.Lock()
	r.cache[canonicalTitle] = m
	r.mu.Unlock()
}
