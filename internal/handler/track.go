package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/fanreel/api/internal/middleware"
	"github.com/fanreel/api/internal/model"
	"github.com/fanreel/api/internal/service"
	"github.com/fanreel/api/pkg/response"
)

type TrackHandler struct {
	service *service.TrackService
}

func NewTrackHandler(svc *service.TrackService) *TrackHandler {
	return &TrackHandler{service: svc}
}

// Upload handles POST /api/tracks
// @Summary      Upload a custom audio track
// @Description  Store an audio file for later use as a reel background track
// @Tags         Tracks
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Audio file (MP3, WAV, M4A or AAC, max 16 MiB)"
// @Success      201 {object} model.TrackUploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      413 {object} response.ErrorResponse
// @Failure      415 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/tracks [post]
func (h *TrackHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Audio file is required", map[string]interface{}{
			"field": "file",
		})
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if err := service.ValidateUpload(contentType, fileHeader.Size); err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedType):
			return response.UnsupportedMediaType(c, "Unsupported audio type", map[string]interface{}{
				"contentType": contentType,
			})
		case errors.Is(err, service.ErrPayloadTooLarge):
			return response.PayloadTooLarge(c, "Audio file exceeds the size limit", map[string]interface{}{
				"maxSizeBytes": model.MaxTrackSizeBytes,
				"sizeBytes":    fileHeader.Size,
			})
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.ServiceError(c, fmt.Sprintf("failed to read upload: %v", err))
	}
	defer file.Close()

	ownerID := middleware.GetUserID(c)
	track, err := h.service.Upload(c.Context(), ownerID, fileHeader.Filename, contentType, fileHeader.Size, file)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, model.TrackUploadResponse{
		Success: true,
		Track:   *track,
	})
}

// List handles GET /api/tracks
// @Summary      List custom audio tracks
// @Description  List the caller's uploaded audio tracks, newest first
// @Tags         Tracks
// @Produce      json
// @Success      200 {object} model.TrackListResponse
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/tracks [get]
func (h *TrackHandler) List(c *fiber.Ctx) error {
	ownerID := middleware.GetUserID(c)
	tracks, err := h.service.List(c.Context(), ownerID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.TrackListResponse{
		Success: true,
		Tracks:  tracks,
	})
}

// Delete handles DELETE /api/tracks/:trackId
// @Summary      Delete a custom audio track
// @Description  Remove an uploaded track that is not referenced by any active compilation
// @Tags         Tracks
// @Produce      json
// @Param        trackId path string true "Track ID"
// @Success      204
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/tracks/{trackId} [delete]
func (h *TrackHandler) Delete(c *fiber.Ctx) error {
	trackID := c.Params("trackId")
	if trackID == "" {
		return response.ValidationError(c, "Track ID is required", nil)
	}

	ownerID := middleware.GetUserID(c)
	if err := h.service.Delete(c.Context(), ownerID, trackID); err != nil {
		switch {
		case errors.Is(err, service.ErrTrackNotFound):
			return response.NotFound(c, "Track not found")
		case errors.Is(err, service.ErrTrackInUse):
			return response.Conflict(c, "Track is referenced by an active compilation")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
