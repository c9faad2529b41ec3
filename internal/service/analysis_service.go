package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/cvalign/api/internal/client"
	"github.com/cvalign/api/internal/model"
)

const TaskTypeAnalysis = "analysis:process"

// jobRetention bounds how long a finished run stays readable. Job records are
// transient coordination state, not a datastore.
const jobRetention = 24 * time.Hour

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotCompleted = errors.New("job not completed")
	ErrJobTerminal     = errors.New("job already completed")
)

// TaskEnqueuer is the slice of asynq.Client the service needs.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AnalysisService manages analysis job lifecycle: registration, task
// dispatch, progress, results and cancellation. One job per submission; a
// new run never inherits anything from a previous one.
type AnalysisService struct {
	redis *redis.Client
	tasks TaskEnqueuer
}

func NewAnalysisService(redisClient *redis.Client, tasks TaskEnqueuer) *AnalysisService {
	return &AnalysisService{
		redis: redisClient,
		tasks: tasks,
	}
}

// StartAnalysis registers a queued job for the given job-description artifact
// and dispatches it to the worker. The artifact must be present; weights pass
// through untouched. MaxRetry is zero on purpose: a failed submission is
// never retried automatically, retrying is the user's decision.
func (s *AnalysisService) StartAnalysis(ctx context.Context, jd client.FilePart, weights model.Weights) (*model.AnalysisStartResponse, error) {
	if jd.Filename == "" || len(jd.Content) == 0 {
		return nil, &ValidationError{Msg: "a job description file is required"}
	}

	jobID := uuid.New().String()
	now := time.Now()

	job := &model.AnalysisJob{
		ID:        jobID,
		Status:    model.JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
	}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	payload := &model.AnalysisJobPayload{
		JDFilename: jd.Filename,
		JDContent:  jd.Content,
		Weights:    weights,
	}

	task, err := newAnalysisTask(jobID, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.tasks.Enqueue(task,
		asynq.Queue("analysis"),
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(jobRetention),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.AnalysisStartResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the current state of a job.
func (s *AnalysisService) GetStatus(ctx context.Context, jobID string) (*model.AnalysisStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.AnalysisStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetResult returns the normalized candidate records of a succeeded job.
func (s *AnalysisService) GetResult(ctx context.Context, jobID string) ([]model.CandidateRecord, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusSucceeded {
		return nil, ErrJobNotCompleted
	}

	var records []model.CandidateRecord
	if err := json.Unmarshal(job.Result, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return records, nil
}

// Cancel abandons a queued or running job. Cancellation is cooperative: any
// in-flight upstream query finishes on its own and its result is discarded.
func (s *AnalysisService) Cancel(ctx context.Context, jobID string) (*model.AnalysisCancelResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == model.JobStatusSucceeded || job.Status == model.JobStatusFailed {
		return nil, ErrJobTerminal
	}

	job.Status = model.JobStatusCanceled
	now := time.Now()
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}

	return &model.AnalysisCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusCanceled,
	}, nil
}

// UpdateJobProgress is called by the worker while a run is in flight. The
// returned bool reports whether the update was applied; it is false for a
// canceled job, whose state must not move anymore.
func (s *AnalysisService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) (bool, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	if job.Status == model.JobStatusCanceled {
		return false, nil
	}

	job.Progress = progress
	job.CurrentStep = step

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	if err := s.saveJob(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

// CompleteJob stores the normalized records and marks the job succeeded. A
// job canceled mid-run keeps its canceled state and the late result is
// dropped; the returned bool tells the caller whether the result was stored
// so a dropped result is never announced to subscribers.
func (s *AnalysisService) CompleteJob(ctx context.Context, jobID string, records []model.CandidateRecord) (bool, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	if job.Status == model.JobStatusCanceled {
		return false, nil
	}

	resultBytes, err := json.Marshal(records)
	if err != nil {
		return false, err
	}

	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.CurrentStep = ""
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

// FailJob marks the job failed with a human-readable message. As with
// CompleteJob, a canceled job is left alone and the bool reports it.
func (s *AnalysisService) FailJob(ctx context.Context, jobID string, errMsg string) (bool, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	if job.Status == model.JobStatusCanceled {
		return false, nil
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

// IsCanceled reports whether the job was abandoned by the caller.
func (s *AnalysisService) IsCanceled(ctx context.Context, jobID string) bool {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return false
	}
	return job.Status == model.JobStatusCanceled
}

// Helper methods

func (s *AnalysisService) saveJob(ctx context.Context, job *model.AnalysisJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobRetention).Err()
}

func (s *AnalysisService) getJob(ctx context.Context, jobID string) (*model.AnalysisJob, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.AnalysisJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func jobKey(jobID string) string {
	return fmt.Sprintf("analysis:job:%s", jobID)
}

func newAnalysisTask(jobID string, payload *model.AnalysisJobPayload) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payloadBytes),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAnalysis, data), nil
}
