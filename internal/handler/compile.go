package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/fanreel/api/internal/middleware"
	"github.com/fanreel/api/internal/model"
	"github.com/fanreel/api/internal/service"
	"github.com/fanreel/api/pkg/response"
)

type CompileHandler struct {
	service   *service.CompileService
	artifacts *service.ArtifactService
	validator *validator.Validate
}

func NewCompileHandler(svc *service.CompileService, artifacts *service.ArtifactService, v *validator.Validate) *CompileHandler {
	return &CompileHandler{
		service:   svc,
		artifacts: artifacts,
		validator: v,
	}
}

// Start handles POST /api/reels/compile
// @Summary      Submit a highlight reel compilation
// @Description  Queue an asynchronous compilation of the selected clips with an optional background track
// @Tags         Reels
// @Accept       json
// @Produce      json
// @Param        request body model.CompileStartRequest true "Compilation request"
// @Success      202 {object} model.CompileStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/reels/compile [post]
func (h *CompileHandler) Start(c *fiber.Ctx) error {
	var req model.CompileStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	ownerID := middleware.GetUserID(c)
	result, err := h.service.StartCompile(c.Context(), ownerID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuality):
			return response.ValidationError(c, "Unknown quality preset", map[string]interface{}{
				"quality": req.Quality,
			})
		case errors.Is(err, service.ErrEmptyClipList):
			return response.ValidationError(c, "At least one clip is required", nil)
		case errors.Is(err, service.ErrTrackNotFound):
			return response.ValidationError(c, "Referenced audio track does not exist", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/reels/status/:jobId
// @Summary      Get compilation status
// @Description  Get the current pipeline state of a compilation job
// @Tags         Reels
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.CompileStatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/reels/status/{jobId} [get]
func (h *CompileHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	ownerID := middleware.GetUserID(c)
	result, err := h.service.GetStatus(c.Context(), ownerID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/reels/cancel/:jobId
// @Summary      Cancel a compilation
// @Description  Cancel a non-terminal compilation job, aborting in-flight work
// @Tags         Reels
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.CompileCancelResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/reels/cancel/{jobId} [post]
func (h *CompileHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	ownerID := middleware.GetUserID(c)
	result, err := h.service.Cancel(c.Context(), ownerID, jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobTerminal):
			return response.Conflict(c, "Job already finished")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Download handles GET /api/reels/download/:jobId
// @Summary      Download a finished reel
// @Description  Stream the rendered MP4 of a completed compilation owned by the caller
// @Tags         Reels
// @Produce      video/mp4
// @Param        jobId path string true "Job ID"
// @Success      200 {file} binary
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/reels/download/{jobId} [get]
func (h *CompileHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	ownerID := middleware.GetUserID(c)
	job, err := h.service.GetJob(c.Context(), ownerID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	switch job.Status {
	case model.JobStatusCompleted:
		// fall through to the artifact
	case model.JobStatusFailed:
		// Failed jobs never expose an artifact.
		return response.NotFound(c, "Job not found")
	default:
		return response.NotReady(c, "Compilation still in progress")
	}

	body, size, err := h.artifacts.Open(c.Context(), ownerID, jobID)
	if err != nil {
		return response.NotFound(c, "Job not found")
	}

	c.Set(fiber.HeaderContentType, "video/mp4")
	if size > 0 {
		return c.SendStream(body, int(size))
	}
	return c.SendStream(body)
}

// Share issues a time-limited presigned link to a completed reel.
// Same gating as Download: only the owner of a completed job gets
// one, but the link itself needs no authentication to follow.
func (h *CompileHandler) Share(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	ownerID := middleware.GetUserID(c)
	job, err := h.service.GetJob(c.Context(), ownerID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	switch job.Status {
	case model.JobStatusCompleted:
		// fall through to the signed link
	case model.JobStatusFailed:
		return response.NotFound(c, "Job not found")
	default:
		return response.NotReady(c, "Compilation still in progress")
	}

	url, expiresAt, err := h.artifacts.ShareLink(c.Context(), ownerID, jobID)
	if err != nil {
		return response.NotFound(c, "Job not found")
	}

	return response.OK(c, model.ShareLinkResponse{
		Success:   true,
		JobID:     jobID,
		URL:       url,
		ExpiresAt: expiresAt,
	})
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
