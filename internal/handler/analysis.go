package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cvalign/api/internal/client"
	"github.com/cvalign/api/internal/model"
	"github.com/cvalign/api/internal/service"
	"github.com/cvalign/api/pkg/response"
)

const maxJDSize = 10 * 1024 * 1024 // 10MB

type AnalysisHandler struct {
	service   *service.AnalysisService
	validator *validator.Validate
}

func NewAnalysisHandler(svc *service.AnalysisService, v *validator.Validate) *AnalysisHandler {
	return &AnalysisHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/analysis/start
func (h *AnalysisHandler) Start(c *fiber.Ctx) error {
	file, err := c.FormFile("jd_file")
	if err != nil {
		return response.ValidationError(c, "jd_file is required", nil)
	}

	if file.Size > maxJDSize {
		return response.ValidationError(c, "Job description exceeds 10MB limit", map[string]interface{}{
			"maxSize":  maxJDSize,
			"fileSize": file.Size,
		})
	}

	weights, err := parseWeights(c)
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	if err := h.validator.Struct(weights); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return response.ServiceError(c, "Failed to read file")
	}

	jd := client.FilePart{Filename: file.Filename, Content: content}

	result, err := h.service.StartAnalysis(c.Context(), jd, *weights)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return response.ValidationError(c, verr.Msg, nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/analysis/status/:jobId
func (h *AnalysisHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/analysis/result/:jobId
func (h *AnalysisHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	records, err := h.service.GetResult(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrJobNotCompleted) {
			return response.ValidationError(c, "Job not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, &model.AnalysisResultResponse{
		JobID:      jobID,
		Candidates: records,
	})
}

// Cancel handles POST /api/analysis/cancel/:jobId
func (h *AnalysisHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Cancel(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrJobTerminal) {
			return response.ValidationError(c, "Job already completed", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

func parseWeights(c *fiber.Ctx) (*model.Weights, error) {
	education, err := parseWeightField(c, "education_weight")
	if err != nil {
		return nil, err
	}
	experience, err := parseWeightField(c, "experience_weight")
	if err != nil {
		return nil, err
	}
	skills, err := parseWeightField(c, "skills_weight")
	if err != nil {
		return nil, err
	}
	return &model.Weights{
		Education:  education,
		Experience: experience,
		Skills:     skills,
	}, nil
}

func parseWeightField(c *fiber.Ctx, name string) (float64, error) {
	raw := c.FormValue(name)
	if raw == "" {
		return 0, errors.New(name + " is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return v, nil
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
