package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/doclingui/api/internal/config"
	"github.com/doclingui/api/internal/service"
	"github.com/doclingui/api/pkg/response"
)

type UploadHandler struct {
	service      *service.JobService
	validator    *validator.Validate
	maxSize      int64
	minFreeBytes uint64
}

func NewUploadHandler(svc *service.JobService, v *validator.Validate, cfg *config.UploadConfig) *UploadHandler {
	return &UploadHandler{
		service:      svc,
		validator:    v,
		maxSize:      int64(cfg.MaxSizeMB) * 1024 * 1024,
		minFreeBytes: uint64(cfg.MinFreeMB) * 1024 * 1024,
	}
}

// Upload handles POST /upload
// @Summary      Upload document
// @Description  Accept a document file (PDF, DOCX, PPTX, XLSX, HTML, images, etc.), store it, return a job
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Document file"
// @Success      201 {object} model.UploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      507 {object} response.ErrorResponse
// @Router       /upload [post]
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if !config.IsAllowedFile(file.Filename) {
		return response.ValidationError(c,
			"File type not allowed. Allowed: PDF, DOCX, PPTX, XLSX, HTML, MD, CSV, TXT, PNG, TIFF, JPG.", nil)
	}

	if file.Size > h.maxSize {
		return response.ValidationError(c, "File size exceeds limit", map[string]interface{}{
			"maxSize":  h.maxSize,
			"fileSize": file.Size,
		})
	}

	// Soft check: the container may report Docker's disk, not the data mount
	if free, ferr := h.service.FreeBytes(); ferr == nil && free < h.minFreeBytes {
		return response.InsufficientStorage(c,
			"Server out of disk space. Use POST /storage/clean to remove old uploads and outputs.")
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.CreateJob(c.Context(), file.Filename, f, file.Size)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}
