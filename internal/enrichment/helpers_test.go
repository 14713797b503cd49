package enrichment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/go-timezones-backend/internal/catalog"
	"github.com/tbourn/go-timezones-backend/internal/domain"
	"github.com/tbourn/go-timezones-backend/internal/weather"
)

type zones map[string]domain.CatalogEntry

func (z zones) Find(id string) (domain.CatalogEntry, error) {
	e, ok := z[id]
	if !ok {
		return domain.CatalogEntry{}, catalog.ErrNotFound
	}
	return e, nil
}

func testZones(ids ...string) zones {
	z := zones{}
	for i, id := range ids {
		z[id] = domain.CatalogEntry{ZoneID: id, Cities: []string{id}, Latitude: float64(i), Longitude: float64(i)}
	}
	return z
}

// fakeProvider returns celsius[zone] (default 20) unless the zone is in fail.
// When gate is non-nil every call waits for it or for ctx.
type fakeProvider struct {
	mu       sync.Mutex
	celsius  map[string]float64
	fail     map[string]bool
	gate     chan struct{}
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	ctxErrs  []error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{celsius: map[string]float64{}, fail: map[string]bool{}}
}

func (p *fakeProvider) setFail(id string, v bool) {
	p.mu.Lock()
	p.fail[id] = v
	p.mu.Unlock()
}

func (p *fakeProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	if ctx.Err() != nil {
		return weather.Reading{}, errors.Join(weather.ErrProviderUnavailable, ctx.Err())
	}
	if p.fail[loc.ZoneID] {
		return weather.Reading{}, weather.ErrProviderUnavailable
	}
	c, ok := p.celsius[loc.ZoneID]
	if !ok {
		c = 20
	}
	return weather.NewReading(c), nil
}

// fakeBatch adds batching; zones in omit are left out of the response.
// Batch calls wait on the embedded provider's gate too.
type fakeBatch struct {
	*fakeProvider
	omit       map[string]bool
	batchCalls atomic.Int32
	sizes      []int
	sizesMu    sync.Mutex
}

func (b *fakeBatch) FetchCurrentBatch(ctx context.Context, locs []weather.Location) (map[string]weather.Reading, error) {
	b.batchCalls.Add(1)
	b.sizesMu.Lock()
	b.sizes = append(b.sizes, len(locs))
	b.sizesMu.Unlock()
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := map[string]weather.Reading{}
	for _, l := range locs {
		if b.omit[l.ZoneID] {
			continue
		}
		out[l.ZoneID] = weather.NewReading(1)
	}
	return out, nil
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memStore struct {
	mu   sync.Mutex
	data map[string]domain.EnrichmentEntry
	err  error
}

func newMemStore() *memStore { return &memStore{data: map[string]domain.EnrichmentEntry{}} }

func (m *memStore) Get(_ context.Context, id string) (domain.EnrichmentEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.EnrichmentEntry{}, false, m.err
	}
	e, ok := m.data[id]
	return e, ok, nil
}

func (m *memStore) Set(_ context.Context, e domain.EnrichmentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[e.ZoneID] = e
	return nil
}
