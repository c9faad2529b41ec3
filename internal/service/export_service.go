package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cvalign/api/internal/model"
)

// ErrNoRecords is returned when an export is attempted with zero data rows.
// An export with only a header is not useful output; the HTTP layer reports
// this and skips generation.
var ErrNoRecords = errors.New("no records to export")

// csvHeader is the fixed column schema of an analysis export.
var csvHeader = []string{
	"name",
	"original_filename",
	"score",
	"semantic_score",
	"education",
	"experience",
	"skills_matched",
	"strengths",
	"weaknesses",
	"raw_feedback",
}

// listJoiner separates the elements of sequence-valued cells before quoting.
const listJoiner = " | "

// ExportService serializes candidate records into a portable delimited text
// format for download.
type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

// ToCSV renders records over the fixed column schema. Every cell is quoted
// with internal quotes doubled; sequence fields are joined with " | "; a
// value the upstream never reported renders as an empty cell, not a literal
// null. The header row is always emitted.
func (s *ExportService) ToCSV(records []model.CandidateRecord) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}

	lines := make([]string, 0, len(records)+1)
	lines = append(lines, joinRow(csvHeader))

	for _, r := range records {
		row := []string{
			r.Name,
			r.OriginalFilename,
			formatScore(r.Score),
			formatScore(r.SemanticScore),
			r.Education,
			r.Experience,
			strings.Join(r.SkillsMatched, listJoiner),
			strings.Join(r.Strengths, listJoiner),
			strings.Join(r.Weaknesses, listJoiner),
			r.Feedback,
		}
		lines = append(lines, joinRow(row))
	}

	return strings.Join(lines, "\n"), nil
}

// Filename names the download artifact for one job.
func (s *ExportService) Filename(jobID string) string {
	return fmt.Sprintf("analysis_%s.csv", jobID)
}

func joinRow(cells []string) string {
	quoted := make([]string, len(cells))
	for i, cell := range cells {
		quoted[i] = `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
