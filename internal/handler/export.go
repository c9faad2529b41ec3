package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cvalign/api/internal/service"
	"github.com/cvalign/api/pkg/response"
)

type ExportHandler struct {
	analysis *service.AnalysisService
	export   *service.ExportService
}

func NewExportHandler(analysis *service.AnalysisService, export *service.ExportService) *ExportHandler {
	return &ExportHandler{
		analysis: analysis,
		export:   export,
	}
}

// CSV handles GET /api/export/:jobId/csv
func (h *ExportHandler) CSV(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	records, err := h.analysis.GetResult(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrJobNotCompleted) {
			return response.ValidationError(c, "Job not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	csv, err := h.export.ToCSV(records)
	if err != nil {
		if errors.Is(err, service.ErrNoRecords) {
			return response.ExportError(c, "No candidate records to export")
		}
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+h.export.Filename(jobID)+`"`)
	return c.SendString(csv)
}
