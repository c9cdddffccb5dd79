package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/arstudio/api/internal/middleware"
	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/service"
	"github.com/arstudio/api/pkg/response"
)

type AssetHandler struct {
	service   *service.AssetService
	validator *validator.Validate
}

func NewAssetHandler(svc *service.AssetService, v *validator.Validate) *AssetHandler {
	return &AssetHandler{
		service:   svc,
		validator: v,
	}
}

// List handles GET /api/assets
// @Summary      List assets
// @Description  Search upstream assets, normalized to one shape
// @Tags         Assets
// @Produce      json
// @Param        page  query int    false "Page"
// @Param        limit query int    false "Page size"
// @Param        type  query string false "image, video, model or audio"
// @Param        q     query string false "Search text"
// @Success      200 {object} model.AssetPage
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/assets [get]
func (h *AssetHandler) List(c *fiber.Ctx) error {
	var q model.AssetQuery
	if err := c.QueryParser(&q); err != nil {
		return response.ValidationError(c, "Invalid query parameters", nil)
	}

	if err := h.validator.Struct(&q); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	page, err := h.service.ListAssets(c.UserContext(), middleware.GetToken(c), q)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, page)
}

// Get handles GET /api/assets/:assetId
func (h *AssetHandler) Get(c *fiber.Ctx) error {
	asset, err := h.service.GetAsset(c.UserContext(), middleware.GetToken(c), c.Params("assetId"))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, asset)
}

// Scenes handles GET /api/scenes
// @Summary      List scenes
// @Tags         Scenes
// @Produce      json
// @Success      200 {array} model.Scene
// @Security     BearerAuth
// @Router       /api/scenes [get]
func (h *AssetHandler) Scenes(c *fiber.Ctx) error {
	scenes, err := h.service.ListScenes(c.UserContext(), middleware.GetToken(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, scenes)
}
