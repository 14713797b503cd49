package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-timezones-backend/internal/catalog"
	"github.com/tbourn/go-timezones-backend/internal/domain"
	"github.com/tbourn/go-timezones-backend/internal/repo"
	"github.com/tbourn/go-timezones-backend/internal/services"
)

// ---------- test DB + repo shim ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:tz_handlers_%s?mode=memory&cache=shared", uuid.NewString())

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
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shim implementing services.SelectionRepo (like router.go)
type testSelectionRepo struct{}

func (testSelectionRepo) CreateSelection(ctx context.Context, db *gorm.DB, userID, zoneID string, isHome bool) (*domain.Selection, error) {
	return repo.CreateSelection(ctx, db, userID, zoneID, isHome)
}

func (testSelectionRepo) ListSelections(ctx context.Context, db *gorm.DB, userID string) ([]domain.Selection, error) {
	return repo.ListSelections(ctx, db, userID)
}

func (testSelectionRepo) GetSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) (*domain.Selection, error) {
	return repo.GetSelection(ctx, db, userID, zoneID)
}

func (testSelectionRepo) DeleteSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) error {
	return repo.DeleteSelection(ctx, db, userID, zoneID)
}

func (testSelectionRepo) ClearHome(ctx context.Context, db *gorm.DB, userID, exceptZoneID string) error {
	return repo.ClearHome(ctx, db, userID, exceptZoneID)
}

func (testSelectionRepo) MarkHome(ctx context.Context, db *gorm.DB, userID, zoneID string) error {
	return repo.MarkHome(ctx, db, userID, zoneID)
}

func (testSelectionRepo) SelectionsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.SelectionsStats(ctx, db, userID)
}

func (testSelectionRepo) DistinctZoneIDs(ctx context.Context, db *gorm.DB) ([]string, error) {
	return repo.DistinctZoneIDs(ctx, db)
}

func newTestCatalog(t *testing.T) *catalog.Provider {
	t.Helper()
	p, err := catalog.New([]domain.CatalogEntry{
		{ZoneID: "Europe/Paris", Cities: []string{"Paris"}, CountryName: "France", Continent: "Europe", UTCOffsetMinutes: 60},
		{ZoneID: "Europe/London", Cities: []string{"London"}, CountryName: "United Kingdom", Continent: "Europe", UTCOffsetMinutes: 0},
		{ZoneID: "America/New_York", Cities: []string{"New York"}, CountryName: "United States", Continent: "North America", UTCOffsetMinutes: -300},
		{ZoneID: "Asia/Tokyo", Cities: []string{"Tokyo"}, CountryName: "Japan", Continent: "Asia", UTCOffsetMinutes: 540},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return p
}

// newRealHandlers wires handlers to SQLite-backed services without weather.
func newRealHandlers(t *testing.T) (*Handlers, *catalog.Provider) {
	t.Helper()
	cat := newTestCatalog(t)
	sel := services.NewSelectionService(newHandlerDB(t), testSelectionRepo{}, cat, nil)
	view := services.NewViewService(sel, cat, nil, 0)
	return New(sel, view, cat), cat
}

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/timezones", h.ListTimeZones)
	r.GET("/timezones/lookup", h.LookupTimeZone)
	r.GET("/me/timezones", h.ListMyTimeZones)
	r.POST("/me/timezones", h.AddMyTimeZone)
	r.DELETE("/me/timezones", h.RemoveMyTimeZone)
	r.PUT("/me/timezones/home", h.SetMyHomeTimeZone)
	r.POST("/admin/catalog/refresh", h.RefreshCatalog)
	return r
}

func do(r http.Handler, method, target, user, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---------- stubs ----------

type stubSel struct {
	add     func(context.Context, string, string) (*domain.Selection, bool, error)
	del     func(context.Context, string, string) error
	setHome func(context.Context, string, string) error
	stats   func(context.Context, string) (int64, *time.Time, error)
}

func (s stubSel) Add(ctx context.Context, u, z string) (*domain.Selection, bool, error) {
	if s.add != nil {
		return s.add(ctx, u, z)
	}
	return &domain.Selection{ID: "s", UserID: u, ZoneID: z}, true, nil
}

func (s stubSel) Delete(ctx context.Context, u, z string) error {
	if s.del != nil {
		return s.del(ctx, u, z)
	}
	return nil
}

func (s stubSel) SetHome(ctx context.Context, u, z string) error {
	if s.setHome != nil {
		return s.setHome(ctx, u, z)
	}
	return nil
}

func (s stubSel) Stats(ctx context.Context, u string) (int64, *time.Time, error) {
	if s.stats != nil {
		return s.stats(ctx, u)
	}
	return 0, nil, nil
}

type stubView struct {
	user      func(context.Context, string, bool) ([]domain.TimeZoneView, error)
	available func(context.Context, string, string, bool) ([]domain.CatalogEntry, error)
}

func (s stubView) UserTimeZones(ctx context.Context, u string, w bool) ([]domain.TimeZoneView, error) {
	if s.user != nil {
		return s.user(ctx, u, w)
	}
	return nil, nil
}

func (s stubView) AvailableZones(ctx context.Context, u, q string, ex bool) ([]domain.CatalogEntry, error) {
	if s.available != nil {
		return s.available(ctx, u, q, ex)
	}
	return nil, nil
}

type stubCatalog struct {
	reloadErr error
	reloads   int
	at        time.Time
}

func (s *stubCatalog) Find(id string) (domain.CatalogEntry, error) {
	return domain.CatalogEntry{}, catalog.ErrNotFound
}

func (s *stubCatalog) Reload(context.Context) error {
	s.reloads++
	if s.reloadErr == nil {
		s.at = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}
	return s.reloadErr
}

func (s *stubCatalog) Len() int            { return 7 }
func (s *stubCatalog) LoadedAt() time.Time { return s.at }
