package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-timezones-backend/internal/http/middleware"
)

// CatalogStatus reports the catalog snapshot being served.
type CatalogStatus struct {
	Zones    int       `json:"zones" example:"418"`
	LoadedAt time.Time `json:"loadedAt"`
}

// RefreshCatalog godoc
// @ID          refreshCatalog
// @Summary     Reload the time zone catalog
// @Description Re-reads the catalog source and swaps it in. A failed load keeps the current catalog.
// @Tags        Admin
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true  "Admin token"
//
// @Success     200  {object}  handlers.Envelope{data=handlers.CatalogStatus}
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or wrong token"
// @Failure     500  {object}  handlers.ErrorResponse  "Reload failed"
// @Router      /admin/catalog/refresh [post]
func (h *Handlers) RefreshCatalog(c *gin.Context) {
	if err := h.catalog.Reload(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCatalogReload, err.Error())
		return
	}
	st := CatalogStatus{Zones: h.catalog.Len(), LoadedAt: h.catalog.LoadedAt()}
	middleware.LoggerFrom(c).Info().Int("zones", st.Zones).Msg("catalog reloaded")
	ok(c, http.StatusOK, st)
}
