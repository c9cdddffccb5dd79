package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/arstudio/api/internal/middleware"
	"github.com/arstudio/api/internal/model"
	"github.com/arstudio/api/internal/service"
	"github.com/arstudio/api/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewJobHandler(svc *service.JobService, v *validator.Validate) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/jobs
// @Summary      Create batch job
// @Description  Queue a downscale or transcode job over a set of assets
// @Tags         Jobs
// @Accept       json
// @Produce      json
// @Param        request body model.CreateJobRequest true "Job request"
// @Success      201 {object} model.Job
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs [post]
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req model.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.service.CreateJob(c.UserContext(), &req, middleware.GetToken(c))
	if err != nil {
		return writeError(c, err)
	}

	return response.Created(c, job)
}

// List handles GET /api/jobs
// @Summary      List jobs
// @Tags         Jobs
// @Produce      json
// @Success      200 {array} model.Job
// @Security     BearerAuth
// @Router       /api/jobs [get]
func (h *JobHandler) List(c *fiber.Ctx) error {
	jobs, err := h.service.ListJobs(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, jobs)
}

// Get handles GET /api/jobs/:jobId
// @Summary      Get job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.Job
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId} [get]
func (h *JobHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.GetJob(c.UserContext(), jobID)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, job)
}

// Cancel handles POST /api/jobs/:jobId/cancel
// @Summary      Cancel job
// @Description  Cancel a job that has not reached a terminal state
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.CancelJobResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId}/cancel [post]
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.CancelJob(c.UserContext(), jobID)
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, result)
}

// Download handles GET /api/jobs/:jobId/download
// @Summary      Download job artifact
// @Description  Stable per-job archive URL
// @Tags         Jobs
// @Produce      application/zip
// @Param        jobId path string true "Job ID"
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/jobs/{jobId}/download [get]
func (h *JobHandler) Download(c *fiber.Ctx) error {
	filename, data, err := h.service.Download(c.UserContext(), c.Params("jobId"))
	if err != nil {
		return writeError(c, err)
	}

	return response.Attachment(c, filename, "application/zip", data)
}
