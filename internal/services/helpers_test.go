package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-timezones-backend/internal/catalog"
	"github.com/tbourn/go-timezones-backend/internal/domain"
	"github.com/tbourn/go-timezones-backend/internal/repo"
)

// ----- DB + repo -----

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	// One connection keeps shared-cache SQLite from reporting table locks
	// under concurrent writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// sqlRepo adapts the repo package functions to SelectionRepo.
type sqlRepo struct{}

func (sqlRepo) CreateSelection(ctx context.Context, db *gorm.DB, userID, zoneID string, isHome bool) (*domain.Selection, error) {
	return repo.CreateSelection(ctx, db, userID, zoneID, isHome)
}
func (sqlRepo) ListSelections(ctx context.Context, db *gorm.DB, userID string) ([]domain.Selection, error) {
	return repo.ListSelections(ctx, db, userID)
}
func (sqlRepo) GetSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) (*domain.Selection, error) {
	return repo.GetSelection(ctx, db, userID, zoneID)
}
func (sqlRepo) DeleteSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) error {
	return repo.DeleteSelection(ctx, db, userID, zoneID)
}
func (sqlRepo) ClearHome(ctx context.Context, db *gorm.DB, userID, exceptZoneID string) error {
	return repo.ClearHome(ctx, db, userID, exceptZoneID)
}
func (sqlRepo) MarkHome(ctx context.Context, db *gorm.DB, userID, zoneID string) error {
	return repo.MarkHome(ctx, db, userID, zoneID)
}
func (sqlRepo) SelectionsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.SelectionsStats(ctx, db, userID)
}
func (sqlRepo) DistinctZoneIDs(ctx context.Context, db *gorm.DB) ([]string, error) {
	return repo.DistinctZoneIDs(ctx, db)
}

// brokenRepo fails every call with err, or with errMark on MarkHome only.
type brokenRepo struct {
	sqlRepo
	err     error
	errMark error
}

func (b brokenRepo) ListSelections(context.Context, *gorm.DB, string) ([]domain.Selection, error) {
	if b.err != nil {
		return nil, b.err
	}
	return []domain.Selection{}, nil
}
func (b brokenRepo) GetSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) (*domain.Selection, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.sqlRepo.GetSelection(ctx, db, userID, zoneID)
}
func (b brokenRepo) DeleteSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) error {
	if b.err != nil {
		return b.err
	}
	return b.sqlRepo.DeleteSelection(ctx, db, userID, zoneID)
}
func (b brokenRepo) MarkHome(ctx context.Context, db *gorm.DB, userID, zoneID string) error {
	if b.errMark != nil {
		return b.errMark
	}
	return b.sqlRepo.MarkHome(ctx, db, userID, zoneID)
}

var errDisk = errors.New("disk I/O error")

// ----- catalog -----

func testCatalog(t *testing.T) *catalog.Provider {
	t.Helper()
	p, err := catalog.New([]domain.CatalogEntry{
		{ZoneID: "Europe/Paris", Cities: []string{"Paris"}, CountryName: "France", Continent: "Europe", UTCOffsetMinutes: 60},
		{ZoneID: "Europe/Athens", Cities: []string{"Athens"}, CountryName: "Greece", Continent: "Europe", UTCOffsetMinutes: 120},
		{ZoneID: "America/New_York", Cities: []string{"New York"}, CountryName: "United States", Continent: "North America", UTCOffsetMinutes: -300},
		{ZoneID: "Europe/London", Cities: []string{"London"}, CountryName: "United Kingdom", Continent: "Europe", UTCOffsetMinutes: 0},
		{ZoneID: "UTC", Cities: []string{"UTC"}, CountryName: "", Continent: "", UTCOffsetMinutes: 0},
		{ZoneID: "Asia/Tokyo", Cities: []string{"Tokyo"}, CountryName: "Japan", Continent: "Asia", UTCOffsetMinutes: 540},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return p
}

// ----- enrichment fakes -----

type recordingPrefetcher struct {
	mu    sync.Mutex
	zones []string
}

func (r *recordingPrefetcher) Prefetch(zoneID string) {
	r.mu.Lock()
	r.zones = append(r.zones, zoneID)
	r.mu.Unlock()
}

// fakeWeather serves entries from fresh; RefreshMany moves ids listed in
// onRefresh into fresh.
type fakeWeather struct {
	enabled   bool
	fresh     map[string]domain.EnrichmentEntry
	onRefresh map[string]domain.EnrichmentEntry
	refreshed [][]string
	gets      int
	block     bool
}

func (f *fakeWeather) Enabled() bool { return f.enabled }

func (f *fakeWeather) Peek(id string) (domain.EnrichmentEntry, bool) {
	e, ok := f.fresh[id]
	return e, ok
}

func (f *fakeWeather) Get(id string) (domain.EnrichmentEntry, bool) {
	f.gets++
	e, ok := f.fresh[id]
	return e, ok
}

func (f *fakeWeather) RefreshMany(ctx context.Context, ids []string) int {
	f.refreshed = append(f.refreshed, ids)
	if f.block {
		<-ctx.Done()
		return 0
	}
	for _, id := range ids {
		if e, ok := f.onRefresh[id]; ok {
			f.fresh[id] = e
		}
	}
	return len(f.fresh)
}

func zoneIDsOf(sels []domain.Selection) []string {
	out := make([]string, len(sels))
	for i, s := range sels {
		out[i] = s.ZoneID
	}
	return out
}
