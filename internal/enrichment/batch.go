package enrichment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-timezones-backend/internal/weather"
)

// RefreshMany refreshes every zone in zoneIDs that lacks a fresh entry and
// returns how many of the requested zones hold a fresh entry afterwards.
// Failures for individual zones do not affect the others; they are collected
// and logged once. Duplicate and blank ids are ignored.
//
// When the provider supports batching, zones are fetched in chunks of
// Options.BatchSize; otherwise up to Options.Concurrency single refreshes
// run at once. If ctx ends early the count reflects what completed so far.
func (c *Cache) RefreshMany(ctx context.Context, zoneIDs []string) int {
	if !c.Enabled() {
		return 0
	}
	wanted := dedupe(zoneIDs)
	var stale []string
	for _, id := range wanted {
		if _, fresh := c.lookup(id); !fresh {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		var err error
		if bp, ok := c.provider.(weather.BatchProvider); ok && len(stale) > 1 {
			err = c.refreshBatched(ctx, bp, stale)
		} else {
			err = c.refreshEach(ctx, stale)
		}
		if err != nil {
			c.log.Warn().Err(err).
				Int("requested", len(stale)).
				Msg("weather refresh incomplete")
		}
	}

	n := 0
	for _, id := range wanted {
		if _, fresh := c.lookup(id); fresh {
			n++
		}
	}
	return n
}

func (c *Cache) refreshEach(ctx context.Context, ids []string) error {
	var (
		mu   sync.Mutex
		merr *multierror.Error
	)
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if !c.Refresh(ctx, id) {
				mu.Lock()
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", id, weather.ErrProviderUnavailable))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return merr.ErrorOrNil()
}

// refreshBatched splits ids into chunks and fetches them in parallel. Each
// chunk is coalesced by its exact id list and runs detached from ctx. While a
// chunk is in flight its zones count as pending, so reads that miss on them
// do not start a second, single-zone fetch.
func (c *Cache) refreshBatched(ctx context.Context, bp weather.BatchProvider, ids []string) error {
	var (
		mu   sync.Mutex
		merr *multierror.Error
	)
	appendErr := func(err error) {
		mu.Lock()
		merr = multierror.Append(merr, err)
		mu.Unlock()
	}

	base := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	for start := 0; start < len(ids); start += c.opts.BatchSize {
		chunk := ids[start:min(start+c.opts.BatchSize, len(ids))]
		g.Go(func() error {
			key := "batch:" + strings.Join(chunk, ",")
			ch := c.group.DoChan(key, func() (any, error) {
				claimed := c.claim(chunk)
				defer c.release(claimed)
				return c.fetchChunk(base, bp, chunk), nil
			})
			select {
			case res := <-ch:
				if err, _ := res.Val.(error); err != nil {
					appendErr(err)
				}
			case <-ctx.Done():
				appendErr(fmt.Errorf("batch of %d: %w", len(chunk), ctx.Err()))
			}
			return nil
		})
	}
	_ = g.Wait()
	return merr.ErrorOrNil()
}

// fetchChunk returns the per-zone failures of one batch call, or nil.
func (c *Cache) fetchChunk(base context.Context, bp weather.BatchProvider, ids []string) error {
	var merr *multierror.Error
	locs := make([]weather.Location, 0, len(ids))
	for _, id := range ids {
		z, err := c.zones.Find(id)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", id, err))
			continue
		}
		locs = append(locs, locationOf(z))
	}
	if len(locs) == 0 {
		return merr.ErrorOrNil()
	}

	ctx, cancel := context.WithTimeout(base, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	got, err := bp.FetchCurrentBatch(ctx, locs)
	refreshLatency.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	refreshes.WithLabelValues("batch", outcome(err == nil)).Inc()
	if err != nil {
		for _, l := range locs {
			c.markFailed(l.ZoneID)
		}
		return multierror.Append(merr, err).ErrorOrNil()
	}

	for _, l := range locs {
		r, ok := got[l.ZoneID]
		if !ok {
			c.markFailed(l.ZoneID)
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", l.ZoneID, errZoneMissing))
			continue
		}
		c.store(ctx, l.ZoneID, r)
	}
	return merr.ErrorOrNil()
}

// claim marks ids as pending and returns the ones that were not already.
func (c *Cache) claim(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, busy := c.pending[id]; busy {
			continue
		}
		c.pending[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (c *Cache) release(ids []string) {
	c.mu.Lock()
	for _, id := range ids {
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
