package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/arstudio/api/internal/middleware"
	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/service"
	"github.com/arstudio/api/pkg/response"
)

type UploadHandler struct {
	service   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Batch handles POST /api/scenes/:sceneId/batch-upload
// @Summary      Batch upload asset
// @Description  Place one asset into a scene several times, optionally at random locations
// @Tags         Upload
// @Accept       json
// @Produce      json
// @Param        sceneId path string true "Scene ID"
// @Param        request body model.BatchUploadRequest true "Batch request"
// @Success      200 {object} model.BatchUploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/scenes/{sceneId}/batch-upload [post]
func (h *UploadHandler) Batch(c *fiber.Ctx) error {
	var req model.BatchUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.BatchUpload(c.UserContext(), middleware.GetToken(c), c.Params("sceneId"), &req)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, result)
}
