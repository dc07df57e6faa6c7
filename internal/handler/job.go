package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/doclingui/api/internal/service"
	"github.com/doclingui/api/internal/storage"
	"github.com/doclingui/api/pkg/response"
)

type JobHandler struct {
	service *service.JobService
}

func NewJobHandler(svc *service.JobService) *JobHandler {
	return &JobHandler{service: svc}
}

// Get handles GET /job/:jobId
// @Summary      Get job
// @Description  Return job metadata and the list of downloadable artifacts
// @Tags         Job
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /job/{jobId} [get]
func (h *JobHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Progress handles GET /job/:jobId/progress
// @Summary      Get extraction progress
// @Description  Return the current extraction stage and percent for polling
// @Tags         Job
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.Progress
// @Failure      404 {object} response.ErrorResponse
// @Router       /job/{jobId}/progress [get]
func (h *JobHandler) Progress(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetProgress(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
