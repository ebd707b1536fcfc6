package identity

import (
	"errors"
	"net/http"

	"eventsbga/internal/api"
	"eventsbga/internal/auth"
	"eventsbga/internal/logger"
	"eventsbga/internal/storage"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrProfileNotFound):
		api.Fail(c, http.StatusNotFound, "Manager profile not found")
	case errors.Is(err, ErrProfileExists):
		api.Fail(c, http.StatusConflict, "Manager profile already exists")
	case errors.Is(err, ErrStorageDisabled):
		api.Fail(c, http.StatusServiceUnavailable, "Image upload is not available")
	case errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, storage.ErrEmpty):
		api.Fail(c, http.StatusBadRequest, err.Error())
	default:
		logger.Error(fallback, "path", c.FullPath(), "error", err)
		api.Fail(c, http.StatusInternalServerError, fallback)
	}
}

// @Summary      Register manager profile
// @Description  Creates the caller's venue profile and provisions the default weekly availability.
// @Tags         managers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body identity.RegisterRequest true "Profile payload"
// @Success      201 {object} api.Response{data=identity.Profile}
// @Failure      400 {object} api.Response
// @Failure      409 {object} api.Response
// @Router       /managers [post]
func (h *Handler) Register(c *gin.Context) {
	subject, ok := auth.GetSubject(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req RegisterRequest
	if !api.BindJSON(c, &req) {
		return
	}

	profile, err := h.service.Register(c.Request.Context(), subject, auth.GetEmail(c), req)
	if err != nil {
		h.fail(c, err, "Failed to register manager")
		return
	}

	api.Created(c, "Manager registered", profile)
}

// @Summary      Get own profile
// @Tags         managers
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} api.Response{data=identity.Profile}
// @Failure      404 {object} api.Response
// @Router       /managers/me [get]
func (h *Handler) Me(c *gin.Context) {
	subject, ok := auth.GetSubject(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	profile, err := h.service.GetBySubject(c.Request.Context(), subject)
	if err != nil {
		h.fail(c, err, "Failed to fetch profile")
		return
	}

	api.OK(c, "", profile)
}

// @Summary      Get a manager profile
// @Tags         managers
// @Produce      json
// @Param        managerRef path string true "Manager profile id or subject"
// @Success      200 {object} api.Response{data=identity.PublicProfile}
// @Failure      404 {object} api.Response
// @Router       /managers/{managerRef} [get]
func (h *Handler) Get(c *gin.Context) {
	profile, err := h.service.Resolve(c.Request.Context(), c.Param("managerRef"))
	if err != nil {
		h.fail(c, err, "Failed to fetch profile")
		return
	}

	api.OK(c, "", profile.Public())
}

// @Summary      Update own profile
// @Tags         managers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body identity.UpdateRequest true "Fields to change"
// @Success      200 {object} api.Response{data=identity.Profile}
// @Router       /managers/me [put]
func (h *Handler) Update(c *gin.Context) {
	subject, ok := auth.GetSubject(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req UpdateRequest
	if !api.BindJSON(c, &req) {
		return
	}

	profile, err := h.service.Update(c.Request.Context(), subject, req)
	if err != nil {
		h.fail(c, err, "Failed to update profile")
		return
	}

	api.OK(c, "Profile updated", profile)
}

// @Summary      Delete own profile
// @Description  Removes the profile with its availability, blocked slots and events.
// @Tags         managers
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} api.Response{data=identity.DeleteResult}
// @Router       /managers/me [delete]
func (h *Handler) Delete(c *gin.Context) {
	subject, ok := auth.GetSubject(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	result, err := h.service.Delete(c.Request.Context(), subject)
	if err != nil {
		h.fail(c, err, "Failed to delete profile")
		return
	}

	api.OK(c, "Profile deleted", result)
}

// @Summary      Upload venue image
// @Tags         managers
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        image formData file true "JPEG, PNG or WebP up to 5MB"
// @Success      200 {object} api.Response{data=identity.Profile}
// @Failure      400 {object} api.Response
// @Failure      503 {object} api.Response
// @Router       /managers/me/image [post]
func (h *Handler) UploadImage(c *gin.Context) {
	subject, ok := auth.GetSubject(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxImageSize+1<<20)
	fh, err := c.FormFile("image")
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "Image file is required")
		return
	}

	file, err := fh.Open()
	if err != nil {
		api.Fail(c, http.StatusBadRequest, "Unable to read image")
		return
	}
	defer file.Close()

	profile, err := h.service.SetImage(c.Request.Context(), subject, fh.Header.Get("Content-Type"), fh.Size, file)
	if err != nil {
		h.fail(c, err, "Failed to upload image")
		return
	}

	api.OK(c, "Image uploaded", profile)
}
