package model

import "time"

// AnalysisStartResponse is returned from POST /api/analysis/start.
type AnalysisStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnalysisStatusResponse is returned from GET /api/analysis/status/:jobId.
type AnalysisStatusResponse struct {
	JobID       string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// AnalysisResultResponse is returned from GET /api/analysis/result/:jobId
// once the job has succeeded.
type AnalysisResultResponse struct {
	JobID      string            `json:"jobId"`
	Candidates []CandidateRecord `json:"candidates"`
}

// AnalysisCancelResponse is returned from POST /api/analysis/cancel/:jobId.
type AnalysisCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}

// UploadResumesResponse is returned after pre-staging reference resumes.
type UploadResumesResponse struct {
	FilesUploaded []string `json:"filesUploaded"`
}
