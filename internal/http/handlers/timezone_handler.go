// Time zone HTTP handlers.
//
// This file exposes REST endpoints for the catalog and per-user selections:
//   - GET    /timezones            (catalog search, paginated)
//   - GET    /timezones/lookup     (single catalog entry)
//   - GET    /me/timezones         (my time zones, paginated, ETag support)
//   - POST   /me/timezones         (add)
//   - DELETE /me/timezones         (remove)
//   - PUT    /me/timezones/home    (set home)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into the canonical envelope.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-timezones-backend/internal/catalog"
	"github.com/tbourn/go-timezones-backend/internal/domain"
	"github.com/tbourn/go-timezones-backend/internal/http/middleware"
	"github.com/tbourn/go-timezones-backend/internal/services"
	"github.com/tbourn/go-timezones-backend/internal/sysutil"
	"github.com/tbourn/go-timezones-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SelectionService mutates a user's selections.
//
// Implementations must be safe for concurrent use and honor ctx.
type SelectionService interface {
	// Add selects zoneID; created is false when it was already selected.
	Add(ctx context.Context, userID, zoneID string) (sel *domain.Selection, created bool, err error)
	// Delete removes the selection of zoneID.
	Delete(ctx context.Context, userID, zoneID string) error
	// SetHome makes zoneID the user's only home selection.
	SetHome(ctx context.Context, userID, zoneID string) error
	// Stats returns the selection count and the latest change time.
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
}

// ViewService composes read models.
type ViewService interface {
	UserTimeZones(ctx context.Context, userID string, includeWeather bool) ([]domain.TimeZoneView, error)
	AvailableZones(ctx context.Context, userID, query string, excludeSelected bool) ([]domain.CatalogEntry, error)
}

// Catalog is the catalog surface used by lookup and admin endpoints.
type Catalog interface {
	Find(zoneID string) (domain.CatalogEntry, error)
	Reload(ctx context.Context) error
	Len() int
	LoadedAt() time.Time
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for the catalog and user selections.
type Handlers struct {
	selSvc  SelectionService
	viewSvc ViewService
	catalog Catalog
}

// New constructs and returns a Handlers instance bound to the given services.
func New(selSvc SelectionService, viewSvc ViewService, cat Catalog) *Handlers {
	return &Handlers{selSvc: selSvc, viewSvc: viewSvc, catalog: cat}
}

// userID extracts the caller identity: the "userID" context key set upstream,
// then the X-User-ID header, then "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// SelectZoneRequest is the JSON payload for add and set-home.
type SelectZoneRequest struct {
	ZoneID string `json:"zoneId" binding:"required,max=64" example:"Europe/Paris"`
}

// TimeZoneList is the data member of GET /me/timezones.
type TimeZoneList struct {
	Items      []domain.TimeZoneView `json:"items"`
	TotalCount int                   `json:"totalCount"`
	HomeID     *string               `json:"homeId"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	HasNext    bool                  `json:"hasNext"`
}

// CatalogList is the data member of GET /timezones.
type CatalogList struct {
	Items      []domain.CatalogEntry `json:"items"`
	TotalCount int                   `json:"totalCount"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	HasNext    bool                  `json:"hasNext"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// zoneParam reads the target zone from the query (zone_id or zoneId).
func zoneParam(c *gin.Context) string {
	return strings.TrimSpace(sysutil.FirstNonEmpty(c.Query("zone_id"), c.Query("zoneId")))
}

func bindZone(c *gin.Context) (string, bool) {
	var req SelectZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ZoneID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "zoneId required (1-64 chars)")
		return "", false
	}
	return strings.TrimSpace(req.ZoneID), true
}

//
// Catalog
//

// ListTimeZones godoc
// @ID          listTimeZones
// @Summary     Search the time zone catalog
// @Description Returns catalog entries matching q (all entries when blank), ordered by UTC offset.
// @Tags        Catalog
// @Produce     json
//
// @Param       X-User-ID         header  string  false "User ID (demo header)"                  example(user123)
// @Param       q                 query   string  false "City, country, continent or zone id"    example(paris)
// @Param       exclude_selected  query   bool    false "Leave out zones the user already selected"
// @Param       page              query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size         query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.Envelope{data=handlers.CatalogList}
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /timezones [get]
func (h *Handlers) ListTimeZones(c *gin.Context) {
	page, pageSize := clampPagination(c)
	exclude := sysutil.IsTruthy(c.Query("exclude_selected"))

	zones, err := h.viewSvc.AvailableZones(c.Request.Context(), userID(c), c.Query("q"), exclude)
	if err != nil {
		failService(c, err)
		return
	}

	items, meta := utils.Paginate(zones, page, pageSize)
	ok(c, http.StatusOK, CatalogList{
		Items:      items,
		TotalCount: meta.TotalCount,
		Page:       meta.Page,
		PageSize:   meta.PageSize,
		HasNext:    meta.HasNext,
	})
}

// LookupTimeZone godoc
// @ID          lookupTimeZone
// @Summary     Look up one catalog zone
// @Tags        Catalog
// @Produce     json
//
// @Param       zone_id  query  string  true  "IANA zone id"  example(Europe/Paris)
//
// @Success     200  {object}  handlers.Envelope{data=domain.CatalogEntry}
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Zone not in catalog"
// @Router      /timezones/lookup [get]
func (h *Handlers) LookupTimeZone(c *gin.Context) {
	zoneID := zoneParam(c)
	if zoneID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "zone_id required")
		return
	}
	z, err := h.catalog.Find(zoneID)
	if errors.Is(err, catalog.ErrNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("zone %q is not in the catalog", zoneID))
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, z)
}

//
// My time zones
//

// ListMyTimeZones godoc
// @ID          listMyTimeZones
// @Summary     List my time zones (paginated)
// @Description Returns the user's selections joined with catalog data, home first. With include_weather the
// @Description current temperature is attached where available; weather never fails the request. Without
// @Description weather the response carries a weak ETag and honours If-None-Match.
// @Tags        Selections
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"        example(user123)
// @Param       If-None-Match    header  string  false "Return 304 if ETag matches"
// @Param       include_weather  query   bool    false "Attach cached weather"
// @Param       page             query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size        query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.Envelope{data=handlers.TimeZoneList}
// @Header      200  {string}  ETag  "Weak ETag (without weather)"
// @Success     304  {string}  string "Not Modified"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /me/timezones [get]
func (h *Handlers) ListMyTimeZones(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)
	withWeather := sysutil.IsTruthy(c.Query("include_weather"))

	// Weather changes independently of storage, so only the plain view is
	// cacheable.
	if !withWeather {
		if count, maxTS, err := h.selSvc.Stats(ctx, uid); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"tz:%s:%d:%d:%d:%d:%d"`, uid, count, ts, h.catalog.LoadedAt().UnixNano(), page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	views, err := h.viewSvc.UserTimeZones(ctx, uid, withWeather)
	var ierr *services.IntegrityError
	if err != nil && !errors.As(err, &ierr) {
		failService(c, err)
		return
	}

	var homeID *string
	for i := range views {
		if views[i].Selection.IsHome {
			id := views[i].Zone.ZoneID
			homeID = &id
			break
		}
	}

	items, meta := utils.Paginate(views, page, pageSize)
	data := TimeZoneList{
		Items:      items,
		TotalCount: meta.TotalCount,
		HomeID:     homeID,
		Page:       meta.Page,
		PageSize:   meta.PageSize,
		HasNext:    meta.HasNext,
	}

	if ierr != nil {
		middleware.LoggerFrom(c).Error().
			Str("code", ErrCodeIntegrity).
			Strs("zone_ids", ierr.ZoneIDs).
			Msg("selections reference zones missing from the catalog")
		okMessage(c, http.StatusOK, fmt.Sprintf("%s: %d selection(s) omitted", ErrCodeIntegrity, len(ierr.ZoneIDs)), data)
		return
	}
	ok(c, http.StatusOK, data)
}

// AddMyTimeZone godoc
// @ID          addMyTimeZone
// @Summary     Add a time zone
// @Description Selects a catalog zone. Adding an already selected zone returns the existing selection with 200.
// @Tags        Selections
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Retry-safe request key"
// @Param       body             body    handlers.SelectZoneRequest  true  "Zone to add"
//
// @Success     201  {object}  handlers.Envelope{data=domain.Selection}
// @Success     200  {object}  handlers.Envelope{data=domain.Selection}
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Zone not in catalog"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /me/timezones [post]
func (h *Handlers) AddMyTimeZone(c *gin.Context) {
	zoneID, valid := bindZone(c)
	if !valid {
		return
	}

	sel, created, err := h.selSvc.Add(c.Request.Context(), userID(c), zoneID)
	if err != nil {
		failService(c, err)
		return
	}
	if !created {
		okMessage(c, http.StatusOK, "already selected", sel)
		return
	}
	ok(c, http.StatusCreated, sel)
}

// RemoveMyTimeZone godoc
// @ID          removeMyTimeZone
// @Summary     Remove a time zone
// @Description Deletes the selection. Removing the home zone leaves the user without a home.
// @Tags        Selections
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Replays the first outcome"
// @Param       zone_id          query   string  true  "IANA zone id"  example(Europe/Paris)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Zone not selected"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /me/timezones [delete]
func (h *Handlers) RemoveMyTimeZone(c *gin.Context) {
	zoneID := zoneParam(c)
	if zoneID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "zone_id required")
		return
	}
	if err := h.selSvc.Delete(c.Request.Context(), userID(c), zoneID); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// SetMyHomeTimeZone godoc
// @ID          setMyHomeTimeZone
// @Summary     Set the home time zone
// @Description Makes a selected zone the user's single home; the previous home is cleared atomically.
// @Tags        Selections
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Replays the first outcome"
// @Param       body             body    handlers.SelectZoneRequest  true  "New home zone"
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Zone not selected"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /me/timezones/home [put]
func (h *Handlers) SetMyHomeTimeZone(c *gin.Context) {
	zoneID, valid := bindZone(c)
	if !valid {
		return
	}
	if err := h.selSvc.SetHome(c.Request.Context(), userID(c), zoneID); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
