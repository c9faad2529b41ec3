package model

import "time"

// JobStatus is the lifecycle state of a gateway analysis job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// AnalysisJob tracks one orchestrated analysis run. The record lives in Redis
// for the duration of the run plus a retention window; it is never a durable
// store — each run replaces its results wholesale and nothing is merged
// across jobs.
type AnalysisJob struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Result      []byte     `json:"result,omitempty"` // normalized records as JSON
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// AnalysisJobPayload carries everything the worker needs to execute a run:
// the job-description artifact and the opaque weights.
type AnalysisJobPayload struct {
	JDFilename string  `json:"jdFilename"`
	JDContent  []byte  `json:"jdContent"`
	Weights    Weights `json:"weights"`
}
