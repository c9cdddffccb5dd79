package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arstudio/api/internal/middleware"
	"github.com/arstudio/api/internal/service"
	"github.com/arstudio/api/pkg/response"
)

// ObjectHandler forwards raw AR object writes
type ObjectHandler struct {
	service *service.SceneService
}

func NewObjectHandler(svc *service.SceneService) *ObjectHandler {
	return &ObjectHandler{service: svc}
}

// Create handles POST /api/objects
func (h *ObjectHandler) Create(c *fiber.Ctx) error {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil || len(body) == 0 {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	created, err := h.service.CreateObject(c.UserContext(), middleware.GetToken(c), body)
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, created)
}

// Patch handles PATCH /api/objects/:objectId
func (h *ObjectHandler) Patch(c *fiber.Ctx) error {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil || len(body) == 0 {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	updated, err := h.service.PatchObject(c.UserContext(), middleware.GetToken(c), c.Params("objectId"), body)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, updated)
}

// Delete handles DELETE /api/objects/:objectId?confirm=true[&sceneId=]
// @Summary      Delete AR object
// @Description  Requires confirm=true. With sceneId the refetched scene is returned.
// @Tags         Objects
// @Produce      json
// @Param        objectId path  string true  "Object ID"
// @Param        confirm  query bool   true  "Confirmation"
// @Param        sceneId  query string false "Scene to refetch"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/objects/{objectId} [delete]
func (h *ObjectHandler) Delete(c *fiber.Ctx) error {
	objectID := c.Params("objectId")
	confirmed := c.QueryBool("confirm", false)

	placements, err := h.service.DeleteObject(c.UserContext(), middleware.GetToken(c), c.Query("sceneId"), objectID, confirmed)
	if err != nil {
		return writeError(c, err)
	}

	result := fiber.Map{"success": true, "objectId": objectID}
	if placements != nil {
		result["placements"] = placements
	}
	return response.OK(c, result)
}
