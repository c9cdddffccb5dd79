package handler

import (
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/arstudio/api/internal/client"
	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/service"
	"github.com/arstudio/api/pkg/response"
)

type GenerationHandler struct {
	service   *service.GenerationService
	validator *validator.Validate
}

func NewGenerationHandler(svc *service.GenerationService, v *validator.Validate) *GenerationHandler {
	return &GenerationHandler{
		service:   svc,
		validator: v,
	}
}

// RemoveBackground handles POST /api/generate/remove-background
// @Summary      Remove image background
// @Tags         Generate
// @Accept       multipart/form-data
// @Param        image formData file true "PNG, JPEG or WebP image"
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/generate/remove-background [post]
func (h *GenerationHandler) RemoveBackground(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return response.ValidationError(c, "Image file is required", nil)
	}
	if file.Size > service.MaxBackgroundRemovalUpload {
		return response.ValidationError(c, "Image exceeds 20 MB", nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return response.ServiceError(c, "Failed to read uploaded file")
	}

	result, err := h.service.RemoveBackground(c.UserContext(), file.Filename, data)
	if err != nil {
		return generationError(c, err)
	}
	return passThrough(c, result)
}

// Image handles POST /api/generate/image
func (h *GenerationHandler) Image(c *fiber.Ctx) error {
	var req model.TextToImageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.TextToImage(c.UserContext(), &req)
	if err != nil {
		return generationError(c, err)
	}
	return passThrough(c, result)
}

// Speech handles POST /api/generate/speech
func (h *GenerationHandler) Speech(c *fiber.Ctx) error {
	var req model.TextToSpeechRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.TextToSpeech(c.UserContext(), &req)
	if err != nil {
		return generationError(c, err)
	}
	return passThrough(c, result)
}

// generationError reports every upstream failure of a generation service
// as a bad gateway.
func generationError(c *fiber.Ctx, err error) error {
	var upstreamErr *client.UpstreamError
	if errors.As(err, &upstreamErr) || errors.Is(err, client.ErrUpstreamUnavailable) {
		return response.UpstreamError(c, err.Error())
	}
	return writeError(c, err)
}

func passThrough(c *fiber.Ctx, p *model.PassThrough) error {
	return response.Raw(c, p.Status, p.ContentType, p.Body)
}
