package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/arstudio/api/internal/middleware"
	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/service"
	"github.com/arstudio/api/pkg/response"
)

// SceneHandler serves the placement engine over a scene's objects
type SceneHandler struct {
	service   *service.SceneService
	validator *validator.Validate
}

func NewSceneHandler(svc *service.SceneService, v *validator.Validate) *SceneHandler {
	return &SceneHandler{
		service:   svc,
		validator: v,
	}
}

// Objects handles GET /api/scenes/:sceneId/objects
// @Summary      List scene placements
// @Description  Normalized AR objects with media info and render transforms
// @Tags         Scenes
// @Produce      json
// @Param        sceneId path string true "Scene ID"
// @Success      200 {array} placement.Placement
// @Failure      401 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/scenes/{sceneId}/objects [get]
func (h *SceneHandler) Objects(c *fiber.Ctx) error {
	placements, err := h.service.ListPlacements(c.UserContext(), middleware.GetToken(c), c.Params("sceneId"))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, placements)
}

// FromAsset handles POST /api/scenes/:sceneId/objects/from-asset
func (h *SceneHandler) FromAsset(c *fiber.Ctx) error {
	var req model.CreateObjectFromAssetRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	created, err := h.service.CreateFromAsset(c.UserContext(), middleware.GetToken(c), c.Params("sceneId"), &req)
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, created)
}

// Preview handles POST /api/scenes/:sceneId/objects/preview
// @Summary      Preview draft edits
// @Description  Apply draft edits to the scene and return the resulting transforms without writing upstream
// @Tags         Scenes
// @Accept       json
// @Produce      json
// @Param        sceneId path string true "Scene ID"
// @Param        request body model.EditsRequest true "Draft edits"
// @Success      200 {array} placement.Placement
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/scenes/{sceneId}/objects/preview [post]
func (h *SceneHandler) Preview(c *fiber.Ctx) error {
	var req model.EditsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	placements, err := h.service.Preview(c.UserContext(), middleware.GetToken(c), c.Params("sceneId"), req.Edits)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, placements)
}

// Save handles POST /api/scenes/:sceneId/objects/save
// @Summary      Save draft edits
// @Description  PATCH every edited object concurrently, then refetch the scene. Per-object failures are reported, not fatal.
// @Tags         Scenes
// @Accept       json
// @Produce      json
// @Param        sceneId path string true "Scene ID"
// @Param        request body model.EditsRequest true "Draft edits"
// @Success      200 {object} service.SaveResult
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/scenes/{sceneId}/objects/save [post]
func (h *SceneHandler) Save(c *fiber.Ctx) error {
	var req model.EditsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Save(c.UserContext(), middleware.GetToken(c), c.Params("sceneId"), req.Edits)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, result)
}

// Replace handles POST /api/scenes/:sceneId/objects/:objectId/replace
// @Summary      Replace object media
// @Description  Swap an object's media for an asset of the same kind
// @Tags         Scenes
// @Accept       json
// @Produce      json
// @Param        sceneId  path string true "Scene ID"
// @Param        objectId path string true "Object ID"
// @Param        request body model.ReplaceMediaRequest true "Replacement asset"
// @Success      200 {array} placement.Placement
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/scenes/{sceneId}/objects/{objectId}/replace [post]
func (h *SceneHandler) Replace(c *fiber.Ctx) error {
	var req model.ReplaceMediaRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	placements, err := h.service.Replace(c.UserContext(), middleware.GetToken(c), c.Params("sceneId"), c.Params("objectId"), &req)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, placements)
}
