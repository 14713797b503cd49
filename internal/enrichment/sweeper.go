package enrichment

import (
	"context"
	"sync"
	"time"
)

// ZoneLister returns the zone ids worth keeping warm, typically every zone
// some user has selected.
type ZoneLister func(ctx context.Context) ([]string, error)

// Sweeper periodically evicts long-expired entries and, when a lister is
// set, refreshes the listed zones ahead of reads.
type Sweeper struct {
	cache    *Cache
	zones    ZoneLister
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper returns a stopped Sweeper. zones may be nil.
func NewSweeper(cache *Cache, zones ZoneLister, interval time.Duration) *Sweeper {
	return &Sweeper{cache: cache, zones: zones, interval: interval}
}

// RunOnce performs one pass and reports how many entries were evicted and
// how many listed zones hold a fresh entry afterwards.
func (s *Sweeper) RunOnce(ctx context.Context) (evicted, warm int) {
	evicted = s.cache.Sweep(s.cache.TTL())
	if s.zones == nil || !s.cache.Enabled() {
		return evicted, 0
	}
	ids, err := s.zones(ctx)
	if err != nil {
		s.cache.log.Warn().Err(err).Msg("prewarm: list zones")
		return evicted, 0
	}
	warm = s.cache.RefreshMany(ctx, ids)
	s.cache.log.Debug().
		Int("evicted", evicted).
		Int("zones", len(ids)).
		Int("warm", warm).
		Msg("sweep")
	return evicted, warm
}

// Start launches the loop. It is a no-op when interval <= 0 or the loop is
// already running.
func (s *Sweeper) Start() {
	if s.interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop ends the loop and waits for it, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
