package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/doclingui/api/internal/model"
	"github.com/doclingui/api/internal/service"
	"github.com/doclingui/api/internal/storage"
	"github.com/doclingui/api/pkg/response"
)

type ExtractHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewExtractHandler(svc *service.JobService, v *validator.Validate) *ExtractHandler {
	return &ExtractHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /extract/:jobId
// @Summary      Start extraction
// @Description  Run extraction and chunking for an uploaded document in the background; poll for status
// @Tags         Extract
// @Accept       json
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Param        request body model.ExtractRequest false "Optional chunking config"
// @Success      202 {object} model.ExtractAcceptedResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /extract/{jobId} [post]
func (h *ExtractHandler) Start(c *fiber.Ctx) error {
	// Copy the param: it is backed by the request buffer, which fasthttp
	// recycles after the handler returns, while the extraction goroutine
	// keeps using the job ID in the background.
	jobID := utils.CopyString(c.Params("jobId"))
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	var req model.ExtractRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
		if req.Chunking != nil {
			if err := h.validator.Struct(req.Chunking); err != nil {
				return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
			}
		}
	}

	result, err := h.service.StartExtraction(c.Context(), jobID, req.Chunking)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "Upload not found for this job")
		}
		if errors.Is(err, service.ErrConflict) {
			return response.Conflict(c, "Extraction already in progress for this job")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	out := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, map[string]string{
			"field": fe.Field(),
			"rule":  fe.Tag(),
			"value": fmt.Sprintf("%v", fe.Value()),
		})
	}
	return out
}
