package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/doclingui/api/internal/service"
	"github.com/doclingui/api/pkg/response"
)

type StorageHandler struct {
	service *service.JobService
}

func NewStorageHandler(svc *service.JobService) *StorageHandler {
	return &StorageHandler{service: svc}
}

// Clean handles POST /storage/clean
// @Summary      Clean storage
// @Description  Delete all uploaded files and extraction outputs to free disk space
// @Tags         Storage
// @Produce      json
// @Success      200 {object} model.CleanResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /storage/clean [post]
func (h *StorageHandler) Clean(c *fiber.Ctx) error {
	result, err := h.service.CleanStorage(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
