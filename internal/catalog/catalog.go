// Package catalog provides the process-wide list of known time zones.
//
// A Provider holds an immutable snapshot (entries, id lookup, search index)
// behind an atomic pointer. Reads never block and never observe a partially
// built catalog; Reload and Replace build a complete new snapshot first and
// swap it in only when it validates. A failed load leaves the current snapshot
// in place.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tbourn/go-timezones-backend/internal/domain"
	"github.com/tbourn/go-timezones-backend/internal/search"
)

var (
	// ErrNotFound is returned by Find for ids absent from the catalog.
	ErrNotFound = errors.New("zone not found in catalog")
	// ErrEmpty is returned when a load yields no entries.
	ErrEmpty = errors.New("catalog is empty")
)

type snapshot struct {
	entries  []domain.CatalogEntry // ordered by offset, then zone id
	byID     map[string]int
	idx      search.Index
	loadedAt time.Time
}

// Provider serves catalog reads. The zero value is not usable; construct
// with New or Open.
type Provider struct {
	snap atomic.Pointer[snapshot]

	reloadMu sync.Mutex
	source   Source
	now      func() time.Time
}

// New validates entries and returns a Provider serving them. It has no
// source, so Reload fails; use Replace to swap entries.
func New(entries []domain.CatalogEntry) (*Provider, error) {
	p := &Provider{now: time.Now}
	if err := p.Replace(entries); err != nil {
		return nil, err
	}
	return p, nil
}

// Open reads src once and fails fast if it is unavailable or invalid.
func Open(src Source) (*Provider, error) {
	p := &Provider{source: src, now: time.Now}
	if err := p.Reload(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

// Replace validates entries and atomically installs them.
func (p *Provider) Replace(entries []domain.CatalogEntry) error {
	s, err := build(entries, p.now())
	if err != nil {
		return err
	}
	p.snap.Store(s)
	return nil
}

// Reload re-reads the configured source and swaps the snapshot. Offsets are
// recomputed as of now, which picks up DST transitions since the last load.
func (p *Provider) Reload(ctx context.Context) error {
	if p.source == nil {
		return errors.New("catalog: no source configured")
	}
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := Read(p.source, p.now())
	if err != nil {
		return err
	}
	return p.Replace(entries)
}

// ListAll returns a copy of every entry, ordered by UTC offset then zone id.
func (p *Provider) ListAll() []domain.CatalogEntry {
	s := p.snap.Load()
	out := make([]domain.CatalogEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = clone(e)
	}
	return out
}

// Find returns the entry for zoneID or ErrNotFound.
func (p *Provider) Find(zoneID string) (domain.CatalogEntry, error) {
	s := p.snap.Load()
	i, ok := s.byID[zoneID]
	if !ok {
		return domain.CatalogEntry{}, ErrNotFound
	}
	return clone(s.entries[i]), nil
}

// Search matches query against cities, country, continent, zone id and alias.
// A blank query returns the full catalog in ListAll order.
func (p *Provider) Search(query string) []domain.CatalogEntry {
	if strings.TrimSpace(query) == "" {
		return p.ListAll()
	}
	s := p.snap.Load()
	hits := s.idx.Search(query, 0)
	out := make([]domain.CatalogEntry, 0, len(hits))
	for _, h := range hits {
		out = append(out, clone(s.entries[s.byID[h.ID]]))
	}
	return out
}

// Len reports the number of entries in the current snapshot.
func (p *Provider) Len() int { return len(p.snap.Load().entries) }

// LoadedAt reports when the current snapshot was built.
func (p *Provider) LoadedAt() time.Time { return p.snap.Load().loadedAt }

func build(entries []domain.CatalogEntry, at time.Time) (*snapshot, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog: %w", ErrEmpty)
	}
	sorted := make([]domain.CatalogEntry, 0, len(entries))
	byID := make(map[string]int, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.ZoneID) == "" {
			return nil, errors.New("catalog: entry with empty zone id")
		}
		if len(e.Cities) == 0 || strings.TrimSpace(e.Cities[0]) == "" {
			return nil, fmt.Errorf("catalog: zone %q has no primary city", e.ZoneID)
		}
		if _, dup := byID[e.ZoneID]; dup {
			return nil, fmt.Errorf("catalog: duplicate zone %q", e.ZoneID)
		}
		byID[e.ZoneID] = -1
		sorted = append(sorted, clone(e))
	}
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].UTCOffsetMinutes != sorted[b].UTCOffsetMinutes {
			return sorted[a].UTCOffsetMinutes < sorted[b].UTCOffsetMinutes
		}
		return sorted[a].ZoneID < sorted[b].ZoneID
	})

	docs := make([]search.Document, len(sorted))
	for i, e := range sorted {
		byID[e.ZoneID] = i
		fields := append([]string{e.ZoneID, e.CountryName, e.Continent, e.Alias}, e.Cities...)
		docs[i] = search.Document{ID: e.ZoneID, Fields: fields, Rank: i}
	}

	return &snapshot{
		entries:  sorted,
		byID:     byID,
		idx:      search.NewIndex(docs),
		loadedAt: at,
	}, nil
}

func clone(e domain.CatalogEntry) domain.CatalogEntry {
	e.Cities = append([]string(nil), e.Cities...)
	return e
}
