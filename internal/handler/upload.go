package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/cvalign/api/internal/client"
	"github.com/cvalign/api/internal/model"
	"github.com/cvalign/api/pkg/response"
)

const maxResumeSize = 10 * 1024 * 1024 // 10MB per file

type UploadHandler struct {
	analyzer client.ResumeAnalyzer
}

func NewUploadHandler(analyzer client.ResumeAnalyzer) *UploadHandler {
	return &UploadHandler{analyzer: analyzer}
}

// Resumes handles POST /api/upload/resumes
func (h *UploadHandler) Resumes(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return response.ValidationError(c, "Multipart form is required", nil)
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return response.ValidationError(c, "At least one resume file is required", nil)
	}

	files := make([]client.FilePart, 0, len(headers))
	names := make([]string, 0, len(headers))

	for _, header := range headers {
		if header.Size > maxResumeSize {
			return response.ValidationError(c, "Resume exceeds 10MB limit", map[string]interface{}{
				"filename": header.Filename,
				"maxSize":  maxResumeSize,
				"fileSize": header.Size,
			})
		}

		f, err := header.Open()
		if err != nil {
			return response.ServiceError(c, "Failed to open file")
		}

		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return response.ServiceError(c, "Failed to read file")
		}

		files = append(files, client.FilePart{Filename: header.Filename, Content: content})
		names = append(names, header.Filename)
	}

	if err := h.analyzer.UploadResumes(c.Context(), files); err != nil {
		return response.UpstreamError(c, err.Error())
	}

	return response.OK(c, &model.UploadResumesResponse{FilesUploaded: names})
}
