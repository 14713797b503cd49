// Package services – SelectionService
//
// This file implements SelectionService, which owns a user's set of selected
// time zones and the home designation among them. It validates zone ids
// against the catalog, serializes each user's writes with UserLocks, and
// performs the home swap inside one transaction so no reader ever observes
// two homes.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the user and zone identifiers.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-timezones-backend/internal/domain"
	"github.com/tbourn/go-timezones-backend/internal/repo"
)

// SelectionRepo defines the repository contract required by
// SelectionService. Implementations must report missing rows as
// repo.ErrNotFound and unique violations as repo.ErrDuplicate.
type SelectionRepo interface {
	CreateSelection(ctx context.Context, db *gorm.DB, userID, zoneID string, isHome bool) (*domain.Selection, error)
	ListSelections(ctx context.Context, db *gorm.DB, userID string) ([]domain.Selection, error)
	GetSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) (*domain.Selection, error)
	DeleteSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) error
	ClearHome(ctx context.Context, db *gorm.DB, userID, exceptZoneID string) error
	MarkHome(ctx context.Context, db *gorm.DB, userID, zoneID string) error
	SelectionsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error)
	DistinctZoneIDs(ctx context.Context, db *gorm.DB) ([]string, error)
}

// ZoneFinder resolves catalog entries by zone id.
type ZoneFinder interface {
	Find(zoneID string) (domain.CatalogEntry, error)
}

// Prefetcher warms enrichment for a newly selected zone. It must not block.
type Prefetcher interface {
	Prefetch(zoneID string)
}

// SelectionService provides add, delete, set-home, and ordered listing of a
// user's selections.
type SelectionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the selection repository used by this service.
	Repo SelectionRepo
	// Catalog validates zone ids and supplies offsets for ordering.
	Catalog ZoneFinder
	// Locks serializes writes per user.
	Locks *UserLocks
	// Prefetch is optional.
	Prefetch Prefetcher
}

// NewSelectionService constructs a SelectionService with its own lock table.
func NewSelectionService(db *gorm.DB, r SelectionRepo, cat ZoneFinder, pf Prefetcher) *SelectionService {
	return &SelectionService{
		DB:       db,
		Repo:     r,
		Catalog:  cat,
		Locks:    NewUserLocks(),
		Prefetch: pf,
	}
}

func tracer() trace.Tracer { return otel.Tracer("services/SelectionService") }

func fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// List returns userID's selections in canonical order: the home selection
// first, then ascending UTC offset, then zone id. Selections whose zone is
// not in the catalog follow every known zone, ordered by zone id.
func (s *SelectionService) List(ctx context.Context, userID string) ([]domain.Selection, error) {
	ctx, span := tracer().Start(ctx, "List",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	sels, err := s.Repo.ListSelections(ctx, s.DB, userID)
	if err != nil {
		return nil, fail(span, storageErr("list", err))
	}
	s.order(sels)
	span.SetAttributes(attribute.Int("selections", len(sels)))
	return sels, nil
}

// Add selects zoneID for userID. Adding a zone that is already selected
// returns the existing selection with created=false and changes nothing.
// New selections are never home.
func (s *SelectionService) Add(ctx context.Context, userID, zoneID string) (sel *domain.Selection, created bool, err error) {
	ctx, span := tracer().Start(ctx, "Add",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("zone.id", zoneID),
		),
	)
	defer span.End()

	zoneID = strings.TrimSpace(zoneID)
	if zoneID == "" {
		return nil, false, ErrUnknownZone
	}
	if _, err := s.Catalog.Find(zoneID); err != nil {
		return nil, false, ErrUnknownZone
	}

	unlock, err := s.Locks.Lock(ctx, userID)
	if err != nil {
		return nil, false, fail(span, err)
	}
	sel, created, err = s.add(ctx, userID, zoneID)
	unlock()
	if err != nil {
		return nil, false, fail(span, err)
	}

	span.SetAttributes(attribute.Bool("created", created))
	if created && s.Prefetch != nil {
		s.Prefetch.Prefetch(zoneID)
	}
	return sel, created, nil
}

func (s *SelectionService) add(ctx context.Context, userID, zoneID string) (*domain.Selection, bool, error) {
	existing, err := s.Repo.GetSelection(ctx, s.DB, userID, zoneID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, repo.ErrNotFound):
		return nil, false, storageErr("get", err)
	}

	sel, err := s.Repo.CreateSelection(ctx, s.DB, userID, zoneID, false)
	if errors.Is(err, repo.ErrDuplicate) {
		// Another instance inserted it first.
		existing, gerr := s.Repo.GetSelection(ctx, s.DB, userID, zoneID)
		if gerr != nil {
			return nil, false, storageErr("get", gerr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, storageErr("create", err)
	}
	return sel, true, nil
}

// Delete removes userID's selection of zoneID. Deleting the home selection
// leaves the user without a home.
func (s *SelectionService) Delete(ctx context.Context, userID, zoneID string) error {
	ctx, span := tracer().Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("zone.id", zoneID),
		),
	)
	defer span.End()

	unlock, err := s.Locks.Lock(ctx, userID)
	if err != nil {
		return fail(span, err)
	}
	defer unlock()

	err = s.Repo.DeleteSelection(ctx, s.DB, userID, strings.TrimSpace(zoneID))
	if errors.Is(err, repo.ErrNotFound) {
		return ErrSelectionNotFound
	}
	return fail(span, storageErr("delete", err))
}

// SetHome makes zoneID userID's home, clearing any previous home in the same
// transaction. Setting the current home again succeeds without change.
func (s *SelectionService) SetHome(ctx context.Context, userID, zoneID string) error {
	ctx, span := tracer().Start(ctx, "SetHome",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("zone.id", zoneID),
		),
	)
	defer span.End()

	zoneID = strings.TrimSpace(zoneID)
	unlock, err := s.Locks.Lock(ctx, userID)
	if err != nil {
		return fail(span, err)
	}
	defer unlock()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sel, err := s.Repo.GetSelection(ctx, tx, userID, zoneID)
		if err != nil {
			return err
		}
		if sel.IsHome {
			return nil
		}
		if err := s.Repo.ClearHome(ctx, tx, userID, zoneID); err != nil {
			return err
		}
		return s.Repo.MarkHome(ctx, tx, userID, zoneID)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrSelectionNotFound
	}
	return fail(span, storageErr("set home", err))
}

// Stats returns the selection count and latest change time for userID.
func (s *SelectionService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	n, at, err := s.Repo.SelectionsStats(ctx, s.DB, userID)
	if err != nil {
		return 0, nil, storageErr("stats", err)
	}
	return n, at, nil
}

// SelectedZones returns every zone id selected by at least one user.
func (s *SelectionService) SelectedZones(ctx context.Context) ([]string, error) {
	ids, err := s.Repo.DistinctZoneIDs(ctx, s.DB)
	if err != nil {
		return nil, storageErr("distinct zones", err)
	}
	return ids, nil
}

// order sorts sels in place into canonical order.
func (s *SelectionService) order(sels []domain.Selection) {
	type key struct {
		known  bool
		offset int
	}
	keys := make(map[string]key, len(sels))
	for _, sel := range sels {
		if z, err := s.Catalog.Find(sel.ZoneID); err == nil {
			keys[sel.ZoneID] = key{known: true, offset: z.UTCOffsetMinutes}
		}
	}
	sort.SliceStable(sels, func(i, j int) bool {
		a, b := sels[i], sels[j]
		if a.IsHome != b.IsHome {
			return a.IsHome
		}
		ka, kb := keys[a.ZoneID], keys[b.ZoneID]
		if ka.known != kb.known {
			return ka.known
		}
		if ka.offset != kb.offset {
			return ka.offset < kb.offset
		}
		return a.ZoneID < b.ZoneID
	})
}
