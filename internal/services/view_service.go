// Package services – ViewService
//
// ViewService composes the per-user read model: each selection joined with
// its catalog entry and, on request, the cached weather for that zone.
// Weather is best effort. A missing or failed reading leaves Weather nil and
// never fails the request.
package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-timezones-backend/internal/domain"
)

// ZoneCatalog is the catalog surface the read model needs.
type ZoneCatalog interface {
	ZoneFinder
	Search(query string) []domain.CatalogEntry
}

// WeatherCache is the enrichment surface the read model needs.
type WeatherCache interface {
	Enabled() bool
	Peek(zoneID string) (domain.EnrichmentEntry, bool)
	Get(zoneID string) (domain.EnrichmentEntry, bool)
	RefreshMany(ctx context.Context, zoneIDs []string) int
}

// Lister returns a user's selections in canonical order.
type Lister interface {
	List(ctx context.Context, userID string) ([]domain.Selection, error)
}

// ViewService builds TimeZoneView rows.
type ViewService struct {
	Selections Lister
	Catalog    ZoneCatalog
	Weather    WeatherCache // nil disables enrichment

	// WeatherWait bounds how long a request waits for missing readings.
	WeatherWait time.Duration
}

// NewViewService returns a ViewService. weather may be nil.
func NewViewService(sel Lister, cat ZoneCatalog, weather WeatherCache, wait time.Duration) *ViewService {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &ViewService{Selections: sel, Catalog: cat, Weather: weather, WeatherWait: wait}
}

// UserTimeZones returns userID's selections joined with the catalog, in
// canonical order. With includeWeather, fresh readings are attached and
// missing ones are fetched for at most WeatherWait; without it the weather
// cache is not touched.
//
// Selections whose zone is missing from the catalog are left out of the
// rows and reported through an *IntegrityError returned alongside the rows.
func (v *ViewService) UserTimeZones(ctx context.Context, userID string, includeWeather bool) ([]domain.TimeZoneView, error) {
	ctx, span := otel.Tracer("services/ViewService").Start(ctx, "UserTimeZones",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Bool("include_weather", includeWeather),
		),
	)
	defer span.End()

	sels, err := v.Selections.List(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}

	views := make([]domain.TimeZoneView, 0, len(sels))
	var dangling []string
	for _, sel := range sels {
		z, err := v.Catalog.Find(sel.ZoneID)
		if err != nil {
			dangling = append(dangling, sel.ZoneID)
			continue
		}
		views = append(views, domain.TimeZoneView{Selection: sel, Zone: z})
	}

	if includeWeather && v.Weather != nil && v.Weather.Enabled() {
		v.attachWeather(ctx, views)
	}

	if len(dangling) > 0 {
		ierr := &IntegrityError{UserID: userID, ZoneIDs: dangling}
		span.RecordError(ierr)
		return views, ierr
	}
	return views, nil
}

func (v *ViewService) attachWeather(ctx context.Context, views []domain.TimeZoneView) {
	var missing []string
	for i := range views {
		if _, ok := v.Weather.Peek(views[i].Zone.ZoneID); !ok {
			missing = append(missing, views[i].Zone.ZoneID)
		}
	}
	if len(missing) > 0 {
		wctx, cancel := context.WithTimeout(ctx, v.WeatherWait)
		v.Weather.RefreshMany(wctx, missing)
		cancel()
	}

	hits := 0
	for i := range views {
		if e, ok := v.Weather.Get(views[i].Zone.ZoneID); ok {
			views[i].Weather = &e
			hits++
		}
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("weather.missing", len(missing)),
		attribute.Int("weather.attached", hits),
	)
}

// AvailableZones searches the catalog. With excludeSelected, zones userID
// already selected are left out.
func (v *ViewService) AvailableZones(ctx context.Context, userID, query string, excludeSelected bool) ([]domain.CatalogEntry, error) {
	ctx, span := otel.Tracer("services/ViewService").Start(ctx, "AvailableZones",
		trace.WithAttributes(
			attribute.String("query", query),
			attribute.Bool("exclude_selected", excludeSelected),
		),
	)
	defer span.End()

	found := v.Catalog.Search(query)
	if !excludeSelected {
		return found, nil
	}

	sels, err := v.Selections.List(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	taken := make(map[string]struct{}, len(sels))
	for _, s := range sels {
		taken[s.ZoneID] = struct{}{}
	}
	out := found[:0]
	for _, z := range found {
		if _, ok := taken[z.ZoneID]; !ok {
			out = append(out, z)
		}
	}
	return out, nil
}
