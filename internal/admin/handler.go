package admin

import (
	"errors"
	"net/http"
	"time"

	"eventsbga/internal/api"
	"eventsbga/internal/availability"
	"eventsbga/internal/logger"

	"github.com/gin-gonic/gin"
)

// defaultWindow is the activity range used when from/to are omitted.
const defaultWindow = 30 * 24 * time.Hour

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// @Summary      Platform stats
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} api.Response{data=admin.Stats}
// @Router       /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		logger.Error("failed to load stats", "error", err)
		api.Fail(c, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	api.OK(c, "", stats)
}

// @Summary      Event activity
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        from     query string false "YYYY-MM-DD, defaults to 30 days ago"
// @Param        to       query string false "YYYY-MM-DD, defaults to today"
// @Param        group_by query string false "day or venue"
// @Success      200 {object} api.Response{data=[]admin.ActivityRow}
// @Router       /admin/activity [get]
func (h *Handler) GetActivity(c *gin.Context) {
	now := time.Now().UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := to.Add(-defaultWindow)

	if raw := c.Query("from"); raw != "" {
		d, err := availability.ParseDate(raw)
		if err != nil {
			api.Fail(c, http.StatusBadRequest, "invalid from, use YYYY-MM-DD")
			return
		}
		from = d
	}
	if raw := c.Query("to"); raw != "" {
		d, err := availability.ParseDate(raw)
		if err != nil {
			api.Fail(c, http.StatusBadRequest, "invalid to, use YYYY-MM-DD")
			return
		}
		to = d
	}

	groupBy := c.DefaultQuery("group_by", GroupByDay)
	rows, err := h.service.Activity(c.Request.Context(), from, to, groupBy)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) || errors.Is(err, ErrInvalidGroupBy) {
			api.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("failed to load activity", "error", err)
		api.Fail(c, http.StatusInternalServerError, "Failed to load activity")
		return
	}

	api.OK(c, "", gin.H{
		"groupBy": groupBy,
		"from":    from.Format(availability.DateLayout),
		"to":      to.Format(availability.DateLayout),
		"rows":    rows,
	})
}

// @Summary      Reconcile legacy manager references
// @Description  Rewrites availability rows keyed by identity subject to the profile id.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} api.Response{data=identity.ReconcileSummary}
// @Router       /admin/reconcile [post]
func (h *Handler) Reconcile(c *gin.Context) {
	summary, err := h.service.ReconcileLegacy(c.Request.Context())
	if err != nil {
		logger.Error("failed to reconcile manager refs", "error", err)
		api.Fail(c, http.StatusInternalServerError, "Failed to reconcile manager references")
		return
	}
	api.OK(c, "Manager references reconciled", summary)
}
