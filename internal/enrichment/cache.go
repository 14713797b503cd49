// Package enrichment implements a best-effort, TTL-bound cache of current
// weather keyed by zone id.
//
// Reads (Get) are memory-only and never wait on the network. A miss or an
// expired entry reports absent and schedules a background refresh. Refreshes
// run on a context detached from the caller and bounded by Options.Timeout,
// so a caller that gives up does not cancel a fetch other readers will use.
// Concurrent refreshes of one zone share a single provider call. A failed
// fetch never replaces or removes the previous entry.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-timezones-backend/internal/domain"
	"github.com/tbourn/go-timezones-backend/internal/weather"
)

// Locator resolves a zone id to its catalog entry (for coordinates).
type Locator interface {
	Find(zoneID string) (domain.CatalogEntry, error)
}

// Options tunes a Cache. Zero values pick the defaults noted per field.
type Options struct {
	TTL            time.Duration    // entry lifetime; default 10m
	Timeout        time.Duration    // per provider call; default 2s
	BatchSize      int              // zones per batch call; default 50
	Concurrency    int              // parallel fetches; default 4
	FailureBackoff time.Duration    // suppress background retries after a failure; default 30s
	Shared         SharedStore      // optional cross-instance store
	Now            func() time.Time // clock; default time.Now
	Logger         *zerolog.Logger  // default: disabled
}

// Cache is safe for concurrent use.
type Cache struct {
	provider weather.Provider
	zones    Locator
	opts     Options
	log      zerolog.Logger

	mu       sync.RWMutex
	entries  map[string]domain.EnrichmentEntry
	pending  map[string]struct{}
	failedAt map[string]time.Time

	group singleflight.Group
	bg    sync.WaitGroup
}

// New returns a Cache backed by provider. A nil provider yields a disabled
// cache: every Get is absent and nothing is fetched.
func New(provider weather.Provider, zones Locator, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.FailureBackoff <= 0 {
		opts.FailureBackoff = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	lg := zerolog.Nop()
	if opts.Logger != nil {
		lg = opts.Logger.With().Str("component", "enrichment").Logger()
	}
	return &Cache{
		provider: provider,
		zones:    zones,
		opts:     opts,
		log:      lg,
		entries:  make(map[string]domain.EnrichmentEntry),
		pending:  make(map[string]struct{}),
		failedAt: make(map[string]time.Time),
	}
}

// Enabled reports whether a provider is configured.
func (c *Cache) Enabled() bool { return c != nil && c.provider != nil }

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.opts.TTL }

// Get returns a fresh entry for zoneID. When the entry is missing or expired
// it reports false and schedules a background refresh.
func (c *Cache) Get(zoneID string) (domain.EnrichmentEntry, bool) {
	if !c.Enabled() {
		return domain.EnrichmentEntry{}, false
	}
	e, ok := c.lookup(zoneID)
	switch {
	case ok:
		cacheLookups.WithLabelValues("hit").Inc()
		return e, true
	case e.ZoneID != "":
		cacheLookups.WithLabelValues("stale").Inc()
	default:
		cacheLookups.WithLabelValues("miss").Inc()
	}
	c.Prefetch(zoneID)
	return domain.EnrichmentEntry{}, false
}

// Peek is Get without side effects: no refresh is scheduled and no metric
// is recorded.
func (c *Cache) Peek(zoneID string) (domain.EnrichmentEntry, bool) {
	if !c.Enabled() {
		return domain.EnrichmentEntry{}, false
	}
	e, ok := c.lookup(zoneID)
	if !ok {
		return domain.EnrichmentEntry{}, false
	}
	return e, true
}

// lookup returns the stored entry and whether it is still fresh. The entry
// is returned even when stale so callers can tell stale from missing.
func (c *Cache) lookup(zoneID string) (domain.EnrichmentEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[zoneID]
	c.mu.RUnlock()
	if !ok {
		return domain.EnrichmentEntry{}, false
	}
	return e, !e.Expired(c.opts.Now())
}

// Prefetch schedules a background refresh of zoneID unless a single or
// batched refresh of it is already pending, or the zone failed within
// FailureBackoff.
func (c *Cache) Prefetch(zoneID string) {
	if !c.Enabled() || zoneID == "" {
		return
	}
	c.mu.Lock()
	if _, busy := c.pending[zoneID]; busy {
		c.mu.Unlock()
		return
	}
	if at, failed := c.failedAt[zoneID]; failed && c.opts.Now().Sub(at) < c.opts.FailureBackoff {
		c.mu.Unlock()
		return
	}
	c.pending[zoneID] = struct{}{}
	c.bg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.bg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.pending, zoneID)
			c.mu.Unlock()
		}()
		c.Refresh(context.Background(), zoneID)
	}()
}

// Refresh fetches zoneID and reports whether a fresh entry was stored. If ctx
// ends first Refresh returns false, but the fetch continues and its result is
// still cached.
func (c *Cache) Refresh(ctx context.Context, zoneID string) bool {
	if !c.Enabled() {
		return false
	}
	base := context.WithoutCancel(ctx)
	ch := c.group.DoChan(zoneID, func() (any, error) {
		return nil, c.fetchOne(base, zoneID)
	})
	select {
	case res := <-ch:
		return res.Err == nil
	case <-ctx.Done():
		return false
	}
}

func (c *Cache) fetchOne(base context.Context, zoneID string) error {
	zone, err := c.zones.Find(zoneID)
	if err != nil {
		return fmt.Errorf("enrichment: %s: %w", zoneID, err)
	}
	ctx, cancel := context.WithTimeout(base, c.opts.Timeout)
	defer cancel()

	if c.fromShared(ctx, zoneID) {
		return nil
	}

	start := time.Now()
	r, err := c.provider.FetchCurrent(ctx, locationOf(zone))
	refreshLatency.WithLabelValues("single").Observe(time.Since(start).Seconds())
	refreshes.WithLabelValues("single", outcome(err == nil)).Inc()
	if err != nil {
		c.markFailed(zoneID)
		c.log.Warn().Err(err).Str("zone_id", zoneID).Msg("weather refresh failed")
		return err
	}
	c.store(ctx, zoneID, r)
	return nil
}

// fromShared installs a fresh entry from the shared store, if there is one.
func (c *Cache) fromShared(ctx context.Context, zoneID string) bool {
	if c.opts.Shared == nil {
		return false
	}
	e, ok, err := c.opts.Shared.Get(ctx, zoneID)
	if err != nil {
		refreshes.WithLabelValues("shared", "failure").Inc()
		c.log.Debug().Err(err).Str("zone_id", zoneID).Msg("shared weather lookup failed")
		return false
	}
	if !ok || e.Expired(c.opts.Now()) {
		return false
	}
	refreshes.WithLabelValues("shared", "success").Inc()
	c.put(e)
	return true
}

func (c *Cache) store(ctx context.Context, zoneID string, r weather.Reading) {
	e := domain.EnrichmentEntry{
		ZoneID:                zoneID,
		TemperatureCelsius:    r.TemperatureCelsius,
		TemperatureFahrenheit: r.TemperatureFahrenheit,
		FetchedAt:             c.opts.Now().UTC(),
		TTLSeconds:            int(c.opts.TTL / time.Second),
	}
	c.put(e)
	if c.opts.Shared != nil {
		if err := c.opts.Shared.Set(ctx, e); err != nil {
			c.log.Debug().Err(err).Str("zone_id", zoneID).Msg("shared weather store failed")
		}
	}
}

// put installs e unless a newer entry for the zone is already present.
func (c *Cache) put(e domain.EnrichmentEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[e.ZoneID]; ok && cur.FetchedAt.After(e.FetchedAt) {
		return
	}
	c.entries[e.ZoneID] = e
	delete(c.failedAt, e.ZoneID)
	cachedEntries.Set(float64(len(c.entries)))
}

func (c *Cache) markFailed(zoneID string) {
	c.mu.Lock()
	c.failedAt[zoneID] = c.opts.Now()
	c.mu.Unlock()
}

// Sweep evicts entries that expired more than grace ago and returns how many
// were removed.
func (c *Cache) Sweep(grace time.Duration) int {
	now := c.opts.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if e.Expired(now.Add(-grace)) {
			delete(c.entries, id)
			n++
		}
	}
	for id, at := range c.failedAt {
		if now.Sub(at) >= c.opts.FailureBackoff {
			delete(c.failedAt, id)
		}
	}
	cachedEntries.Set(float64(len(c.entries)))
	return n
}

// Len reports the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Wait blocks until background refreshes finish or ctx ends.
func (c *Cache) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func locationOf(z domain.CatalogEntry) weather.Location {
	return weather.Location{ZoneID: z.ZoneID, Latitude: z.Latitude, Longitude: z.Longitude}
}

// errZoneMissing marks a zone a batch response did not cover.
var errZoneMissing = errors.New("no reading returned")
