package events

import (
	"errors"
	"net/http"

	"eventsbga/internal/api"
	"eventsbga/internal/auth"
	"eventsbga/internal/availability"
	"eventsbga/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrEventNotFound):
		api.Fail(c, http.StatusNotFound, "Event not found")
	case errors.Is(err, ErrVenueNotFound):
		api.Fail(c, http.StatusNotFound, "Venue not found")
	case errors.Is(err, ErrForbidden):
		api.Fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrSlotTaken),
		errors.Is(err, ErrSlotUnavailable):
		api.Fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPastDate),
		errors.Is(err, ErrNotApproved),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, availability.ErrInvalidDate),
		errors.Is(err, availability.ErrInvalidHour):
		api.Fail(c, http.StatusBadRequest, err.Error())
	default:
		logger.Error(fallback, "path", c.FullPath(), "error", err)
		api.Fail(c, http.StatusInternalServerError, fallback)
	}
}

func subjectOrAbort(c *gin.Context) (string, bool) {
	subject, ok := auth.GetSubject(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
	}
	return subject, ok
}

// @Summary      Request an event
// @Description  Requests a venue date and hour; the venue must be open and free.
// @Tags         events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body events.CreateRequest true "Event request"
// @Success      201 {object} api.Response{data=events.Event}
// @Failure      400 {object} api.Response
// @Failure      404 {object} api.Response
// @Failure      409 {object} api.Response
// @Router       /events [post]
func (h *Handler) Create(c *gin.Context) {
	subject, ok := subjectOrAbort(c)
	if !ok {
		return
	}

	var req CreateRequest
	if !api.BindJSON(c, &req) {
		return
	}

	e, err := h.service.RequestEvent(c.Request.Context(), subject, auth.GetEmail(c), req)
	if err != nil {
		h.fail(c, err, "Failed to request event")
		return
	}

	api.Created(c, "Event requested", e)
}

// @Summary      List upcoming events
// @Tags         events
// @Produce      json
// @Success      200 {object} api.Response{data=[]events.UpcomingEvent}
// @Router       /events [get]
func (h *Handler) ListUpcoming(c *gin.Context) {
	list, err := h.service.ListUpcoming(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to fetch events")
		return
	}
	api.OK(c, "", list)
}

// @Summary      List my event requests
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} api.Response{data=[]events.Event}
// @Router       /events/mine [get]
func (h *Handler) ListMine(c *gin.Context) {
	subject, ok := subjectOrAbort(c)
	if !ok {
		return
	}

	list, err := h.service.ListMine(c.Request.Context(), subject)
	if err != nil {
		h.fail(c, err, "Failed to fetch events")
		return
	}
	api.OK(c, "", list)
}

// @Summary      List requests for my venue
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "pending, approved, rejected or cancelled"
// @Success      200 {object} api.Response{data=[]events.Event}
// @Router       /venues/me/events [get]
func (h *Handler) ListVenueRequests(c *gin.Context) {
	subject, ok := subjectOrAbort(c)
	if !ok {
		return
	}

	list, err := h.service.ListVenueRequests(c.Request.Context(), subject, c.Query("status"))
	if err != nil {
		h.fail(c, err, "Failed to fetch venue events")
		return
	}
	api.OK(c, "", list)
}

// @Summary      Approve an event
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Event id"
// @Success      200 {object} api.Response{data=events.Event}
// @Failure      403 {object} api.Response
// @Failure      409 {object} api.Response
// @Router       /events/{id}/approve [post]
func (h *Handler) Approve(c *gin.Context) {
	subject, ok := subjectOrAbort(c)
	if !ok {
		return
	}

	e, err := h.service.Approve(c.Request.Context(), subject, c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to approve event")
		return
	}
	api.OK(c, "Event approved", e)
}

// @Summary      Reject an event
// @Tags         events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string               true  "Event id"
// @Param        request body events.RejectRequest false "Rejection reason"
// @Success      200 {object} api.Response{data=events.Event}
// @Router       /events/{id}/reject [post]
func (h *Handler) Reject(c *gin.Context) {
	subject, ok := subjectOrAbort(c)
	if !ok {
		return
	}

	var req RejectRequest
	if c.Request.ContentLength != 0 {
		if !api.BindJSON(c, &req) {
			return
		}
	}

	e, err := h.service.Reject(c.Request.Context(), subject, c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err, "Failed to reject event")
		return
	}
	api.OK(c, "Event rejected", e)
}

// @Summary      Cancel my event
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Event id"
// @Success      200 {object} api.Response{data=events.Event}
// @Router       /events/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	subject, ok := subjectOrAbort(c)
	if !ok {
		return
	}

	e, err := h.service.Cancel(c.Request.Context(), subject, c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to cancel event")
		return
	}
	api.OK(c, "Event cancelled", e)
}

// @Summary      Confirm attendance
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Event id"
// @Success      200 {object} api.Response
// @Success      201 {object} api.Response
// @Router       /events/{id}/attend [post]
func (h *Handler) Attend(c *gin.Context) {
	subject, ok := subjectOrAbort(c)
	if !ok {
		return
	}

	added, err := h.service.ConfirmAttendance(c.Request.Context(), subject, c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to confirm attendance")
		return
	}

	if !added {
		api.OK(c, "Attendance already confirmed", gin.H{"confirmed": true})
		return
	}
	api.Created(c, "Attendance confirmed", gin.H{"confirmed": true})
}

// @Summary      List attendees
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Event id"
// @Success      200 {object} api.Response{data=[]events.Attendee}
// @Router       /events/{id}/attendees [get]
func (h *Handler) ListAttendees(c *gin.Context) {
	subject, ok := subjectOrAbort(c)
	if !ok {
		return
	}

	list, err := h.service.ListAttendees(c.Request.Context(), subject, auth.IsAdmin(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to fetch attendees")
		return
	}
	api.OK(c, "", list)
}
