package availability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"eventsbga/internal/api"
	"eventsbga/internal/auth"
	"eventsbga/internal/logger"

	"github.com/gin-gonic/gin"
)

// SelfRef addresses the caller's own venue in route parameters.
const SelfRef = "me"

type Handler struct {
	service  Service
	managers ManagerResolver
}

func NewHandler(service Service, managers ManagerResolver) *Handler {
	return &Handler{
		service:  service,
		managers: managers,
	}
}

// managerRef resolves the :managerRef route parameter, mapping "me" to the
// caller's subject.
func managerRef(c *gin.Context) (string, bool) {
	ref := c.Param("managerRef")
	if ref != SelfRef {
		return ref, ref != ""
	}
	return auth.GetSubject(c)
}

// authorize lets admins through and otherwise requires the caller's subject
// to be one of the manager's references.
func (h *Handler) authorize(c *gin.Context) (string, bool) {
	ref, ok := managerRef(c)
	if !ok {
		api.Fail(c, http.StatusBadRequest, "Manager reference required")
		return "", false
	}
	if auth.IsAdmin(c) {
		return ref, true
	}

	subject, ok := auth.GetSubject(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}

	refs, err := h.managers.WriteRefs(c.Request.Context(), ref)
	if err != nil {
		logger.Error("resolve manager failed", "ref", ref, "error", err)
		api.Fail(c, http.StatusInternalServerError, "Failed to resolve manager")
		return "", false
	}
	for _, r := range refs {
		if r == subject {
			return ref, true
		}
	}

	api.Fail(c, http.StatusForbidden, "You can only manage your own venue")
	return "", false
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrManagerNotFound):
		api.Fail(c, http.StatusNotFound, "Manager not found")
	case errors.Is(err, ErrBlockNotFound):
		api.Fail(c, http.StatusNotFound, "Blocked slot not found")
	case errors.Is(err, ErrRuleNotFound):
		api.Fail(c, http.StatusNotFound, "Availability not found")
	case errors.Is(err, ErrInvalidHour),
		errors.Is(err, ErrInvalidDay),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrMissingScope),
		errors.Is(err, ErrOneOffWeekday),
		errors.Is(err, ErrMissingAvailability),
		errors.Is(err, ErrAmbiguousDateEntry),
		errors.Is(err, ErrInvalidAvailability):
		api.Fail(c, http.StatusBadRequest, err.Error())
	default:
		logger.Error(fallback, "path", c.FullPath(), "error", err)
		api.Fail(c, http.StatusInternalServerError, fallback)
	}
}

// @Summary      Get effective availability
// @Tags         availability
// @Produce      json
// @Param        managerRef path  string true  "Manager profile id or subject"
// @Param        date       query string false "Target date (YYYY-MM-DD)"
// @Success      200 {object} api.Response{data=availability.Resolution}
// @Failure      400 {object} api.Response
// @Failure      404 {object} api.Response
// @Router       /venues/{managerRef}/availability [get]
func (h *Handler) GetAvailability(c *gin.Context) {
	ref, ok := managerRef(c)
	if !ok {
		api.Fail(c, http.StatusBadRequest, "Manager reference required")
		return
	}

	var date *time.Time
	if raw := c.Query("date"); raw != "" {
		d, err := ParseDate(raw)
		if err != nil {
			api.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		date = &d
	}

	res, err := h.service.ResolveAvailability(c.Request.Context(), ref, date)
	if err != nil {
		h.fail(c, err, "Failed to resolve availability")
		return
	}

	api.OK(c, "", res)
}

// @Summary      Replace availability
// @Description  Replaces the recurring week, or one date when date is set.
// @Tags         availability
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        managerRef path string true "Manager profile id, subject or me"
// @Param        request body availability.ReplaceRequest true "Availability payload"
// @Success      200 {object} api.Response{data=availability.ReplaceResult}
// @Failure      400 {object} api.Response
// @Failure      403 {object} api.Response
// @Router       /venues/{managerRef}/availability [post]
func (h *Handler) ReplaceAvailability(c *gin.Context) {
	ref, ok := h.authorize(c)
	if !ok {
		return
	}

	var req ReplaceRequest
	if !api.BindJSON(c, &req) {
		return
	}

	result, err := h.service.ReplaceAvailability(c.Request.Context(), ref, req)
	if err != nil {
		if errors.Is(err, ErrInvalidAvailability) && result != nil {
			api.FailWithData(c, http.StatusBadRequest, err.Error(), result)
			return
		}
		h.fail(c, err, "Failed to save availability")
		return
	}

	api.OK(c, "Availability saved", result)
}

// @Summary      List blocked slots
// @Tags         availability
// @Produce      json
// @Param        managerRef path string true "Manager profile id or subject"
// @Success      200 {object} api.Response{data=[]availability.BlockedSlotView}
// @Router       /venues/{managerRef}/blocked-slots [get]
func (h *Handler) ListBlockedSlots(c *gin.Context) {
	ref, ok := managerRef(c)
	if !ok {
		api.Fail(c, http.StatusBadRequest, "Manager reference required")
		return
	}

	slots, err := h.service.GetBlockedSlots(c.Request.Context(), ref)
	if err != nil {
		h.fail(c, err, "Failed to fetch blocked slots")
		return
	}

	api.OK(c, "", slots)
}

// @Summary      Block a slot
// @Description  Idempotent: blocking an already blocked slot returns the existing record with 200.
// @Tags         availability
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        managerRef path string true "Manager profile id, subject or me"
// @Param        request body availability.BlockRequest true "Block payload"
// @Success      200 {object} api.Response{data=availability.BlockResult}
// @Success      201 {object} api.Response{data=availability.BlockResult}
// @Failure      400 {object} api.Response
// @Failure      403 {object} api.Response
// @Router       /venues/{managerRef}/blocked-slots/block [post]
func (h *Handler) BlockSlot(c *gin.Context) {
	ref, ok := h.authorize(c)
	if !ok {
		return
	}

	var req BlockRequest
	if !api.BindJSON(c, &req) {
		return
	}

	result, err := h.service.BlockSlot(c.Request.Context(), ref, req)
	if err != nil {
		h.fail(c, err, "Failed to block slot")
		return
	}

	if result.AlreadyBlocked {
		api.OK(c, "Slot already blocked", result)
		return
	}
	api.Created(c, "Slot blocked", result)
}

// @Summary      Unblock a slot
// @Tags         availability
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        managerRef path string true "Manager profile id, subject or me"
// @Param        request body availability.UnblockRequest true "Unblock payload"
// @Success      200 {object} api.Response
// @Failure      404 {object} api.Response
// @Router       /venues/{managerRef}/blocked-slots/unblock [post]
func (h *Handler) UnblockSlot(c *gin.Context) {
	ref, ok := h.authorize(c)
	if !ok {
		return
	}

	var req UnblockRequest
	if !api.BindJSON(c, &req) {
		return
	}

	removed, err := h.service.UnblockSlot(c.Request.Context(), ref, req)
	if err != nil {
		h.fail(c, err, "Failed to unblock slot")
		return
	}

	api.OK(c, "Slot unblocked", gin.H{"removed": removed})
}

// @Summary      Delete a blocked slot by id
// @Tags         availability
// @Produce      json
// @Security     BearerAuth
// @Param        managerRef path string true "Manager profile id, subject or me"
// @Param        id         path int    true "Blocked slot id"
// @Success      200 {object} api.Response
// @Failure      404 {object} api.Response
// @Router       /venues/{managerRef}/blocked-slots/{id} [delete]
func (h *Handler) DeleteBlockedSlot(c *gin.Context) {
	ref, ok := h.authorize(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "Invalid blocked slot ID")
		return
	}

	if err := h.service.UnblockByID(c.Request.Context(), ref, id); err != nil {
		h.fail(c, err, "Failed to delete blocked slot")
		return
	}

	api.OK(c, "Slot unblocked", gin.H{"removed": 1})
}

// @Summary      Reset venue configuration
// @Description  Deletes every rule and block, then restores the default week.
// @Tags         availability
// @Produce      json
// @Security     BearerAuth
// @Param        managerRef path string true "Manager profile id, subject or me"
// @Success      200 {object} api.Response{data=availability.ResetResult}
// @Router       /venues/{managerRef}/reset [post]
func (h *Handler) Reset(c *gin.Context) {
	ref, ok := h.authorize(c)
	if !ok {
		return
	}

	result, err := h.service.ResetAll(c.Request.Context(), ref)
	if err != nil {
		h.fail(c, err, "Failed to reset configuration")
		return
	}

	api.OK(c, "Configuration reset", result)
}
