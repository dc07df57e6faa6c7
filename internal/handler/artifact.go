package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/doclingui/api/internal/service"
	"github.com/doclingui/api/internal/storage"
	"github.com/doclingui/api/pkg/response"
)

type ArtifactHandler struct {
	service *service.JobService
}

func NewArtifactHandler(svc *service.JobService) *ArtifactHandler {
	return &ArtifactHandler{service: svc}
}

// Download handles GET /artifact/:jobId/:filename
// @Summary      Download artifact
// @Description  Return the contents of a stored artifact file as an attachment
// @Tags         Artifact
// @Produce      octet-stream
// @Param        jobId path string true "Job ID"
// @Param        filename path string true "Artifact filename"
// @Success      200 {file} binary
// @Failure      404 {object} response.ErrorResponse
// @Router       /artifact/{jobId}/{filename} [get]
func (h *ArtifactHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	filename := c.Params("filename")
	if jobID == "" || filename == "" {
		return response.ValidationError(c, "Job ID and filename are required", nil)
	}

	path, err := h.service.ArtifactPath(jobID, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "Artifact not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return c.Download(path, filename)
}
