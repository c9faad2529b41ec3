package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cvalign/api/internal/client"
	"github.com/cvalign/api/internal/metrics"
	"github.com/cvalign/api/internal/model"
	"github.com/cvalign/api/internal/service"
	"github.com/cvalign/api/pkg/response"
)

// JobStore is the slice of the analysis service the worker drives. State
// transitions report whether they were applied; a canceled job rejects them.
type JobStore interface {
	IsCanceled(ctx context.Context, jobID string) bool
	UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) (bool, error)
	CompleteJob(ctx context.Context, jobID string, records []model.CandidateRecord) (bool, error)
	FailJob(ctx context.Context, jobID string, errMsg string) (bool, error)
}

// Notifier pushes job events to stream subscribers.
type Notifier interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus, step string)
	BroadcastComplete(jobID string, candidates []model.CandidateRecord)
	BroadcastError(jobID string, code, message string)
}

// AnalysisWorker executes one orchestrated analysis run per task.
type AnalysisWorker struct {
	store        JobStore
	orchestrator *service.Orchestrator
	hub          Notifier
}

func NewAnalysisWorker(store JobStore, orchestrator *service.Orchestrator, hub Notifier) *AnalysisWorker {
	return &AnalysisWorker{
		store:        store,
		orchestrator: orchestrator,
		hub:          hub,
	}
}

// ProcessTask handles an analysis task end to end: submit, poll, normalize,
// store. The task is enqueued with MaxRetry 0, so any error here is terminal
// for the job; retrying means the user starts a fresh run. A job canceled
// mid-run has its late outcome dropped entirely: no store write and no
// broadcast.
func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting analysis job: %s", jobID)

	var payload model.AnalysisJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, response.CodeJobFailed, "Invalid payload")
		return fmt.Errorf("failed to unmarshal analysis payload: %w", err)
	}

	// The caller may have abandoned the job while it sat in the queue.
	if w.store.IsCanceled(ctx, jobID) {
		log.Printf("Analysis job %s canceled before start", jobID)
		return nil
	}

	w.updateProgress(ctx, jobID, 5, "Submitting job description...")

	jd := client.FilePart{Filename: payload.JDFilename, Content: payload.JDContent}
	started := time.Now()

	records, err := w.orchestrator.Run(ctx, jd, payload.Weights, func(stage string) {
		w.updateProgress(ctx, jobID, 30, stage)
	})

	metrics.AnalysisDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		code, outcome := classifyRunError(err)
		metrics.AnalysisRuns.WithLabelValues(outcome).Inc()
		w.failJob(ctx, jobID, code, err.Error())
		return err
	}

	metrics.AnalysisRuns.WithLabelValues(metrics.OutcomeSucceeded).Inc()

	stored, err := w.store.CompleteJob(ctx, jobID, records)
	if err != nil {
		w.failJob(ctx, jobID, response.CodeJobFailed, "Failed to save result")
		return err
	}
	if !stored {
		log.Printf("Analysis job %s canceled mid-run, result dropped", jobID)
		return nil
	}

	w.hub.BroadcastComplete(jobID, records)
	log.Printf("Analysis job %s completed: %d candidates", jobID, len(records))
	return nil
}

func (w *AnalysisWorker) updateProgress(ctx context.Context, jobID string, progress int, step string) {
	applied, err := w.store.UpdateJobProgress(ctx, jobID, progress, step)
	if err != nil {
		log.Printf("Failed to update progress: %v", err)
	}
	if applied {
		w.hub.BroadcastProgress(jobID, progress, model.JobStatusRunning, step)
	}
}

func (w *AnalysisWorker) failJob(ctx context.Context, jobID, code, errMsg string) {
	applied, err := w.store.FailJob(ctx, jobID, errMsg)
	if err != nil {
		log.Printf("Failed to mark job as failed: %v", err)
	}
	if applied {
		w.hub.BroadcastError(jobID, code, errMsg)
	}
}

func classifyRunError(err error) (code, outcome string) {
	var submission *client.SubmissionError
	var failed *client.AnalysisFailedError
	var validation *service.ValidationError

	switch {
	case errors.Is(err, client.ErrPollTimeout):
		return response.CodeAnalysisTimeout, metrics.OutcomeTimeout
	case errors.As(err, &submission):
		return response.CodeSubmissionError, metrics.OutcomeRejected
	case errors.As(err, &failed):
		return response.CodeAnalysisFailed, metrics.OutcomeFailed
	case errors.As(err, &validation):
		return response.CodeValidationError, metrics.OutcomeFailed
	default:
		return response.CodeJobFailed, metrics.OutcomeFailed
	}
}
