package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cvalign/api/internal/client"
	"github.com/cvalign/api/internal/config"
	"github.com/cvalign/api/internal/metrics"
	"github.com/cvalign/api/internal/model"
	"github.com/cvalign/api/internal/service"
	"github.com/cvalign/api/pkg/response"
)

// fakeStore simulates the job registry. With canceledMidRun set, every state
// transition reports not-applied, as the real registry does once a job record
// is marked canceled.
type fakeStore struct {
	canceledMidRun bool

	progressCalls int
	completeCalls int
	failCalls     int
}

func (s *fakeStore) IsCanceled(ctx context.Context, jobID string) bool {
	return false
}

func (s *fakeStore) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) (bool, error) {
	s.progressCalls++
	return !s.canceledMidRun, nil
}

func (s *fakeStore) CompleteJob(ctx context.Context, jobID string, records []model.CandidateRecord) (bool, error) {
	s.completeCalls++
	return !s.canceledMidRun, nil
}

func (s *fakeStore) FailJob(ctx context.Context, jobID string, errMsg string) (bool, error) {
	s.failCalls++
	return !s.canceledMidRun, nil
}

// fakeNotifier records every broadcast.
type fakeNotifier struct {
	progressCalls int
	completeCalls int
	errorCalls    int
	lastErrorCode string
}

func (n *fakeNotifier) BroadcastProgress(jobID string, progress int, status model.JobStatus, step string) {
	n.progressCalls++
}

func (n *fakeNotifier) BroadcastComplete(jobID string, candidates []model.CandidateRecord) {
	n.completeCalls++
}

func (n *fakeNotifier) BroadcastError(jobID string, code, message string) {
	n.errorCalls++
	n.lastErrorCode = code
}

// scriptedAnalyzer returns a fixed terminal payload or error.
type scriptedAnalyzer struct {
	runErr  error
	payload model.ResultPayload
}

func (a *scriptedAnalyzer) UploadResumes(ctx context.Context, files []client.FilePart) error {
	return nil
}

func (a *scriptedAnalyzer) StartAnalysis(ctx context.Context, jd client.FilePart, weights model.Weights) (*client.JobHandle, error) {
	if a.runErr != nil {
		return nil, a.runErr
	}
	return &client.JobHandle{ID: "up-1", SubmittedAt: time.Now()}, nil
}

func (a *scriptedAnalyzer) PollResult(ctx context.Context, jobID string, interval, maxWait time.Duration) (model.ResultPayload, error) {
	return a.payload, nil
}

func newAnalysisTaskForTest(t *testing.T, jobID string) *asynq.Task {
	t.Helper()
	payload := model.AnalysisJobPayload{
		JDFilename: "jd.txt",
		JDContent:  []byte("senior go engineer"),
		Weights:    model.Weights{Education: 30, Experience: 40, Skills: 30},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	data, err := json.Marshal(map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payloadBytes),
	})
	if err != nil {
		t.Fatalf("failed to marshal task: %v", err)
	}
	return asynq.NewTask(service.TaskTypeAnalysis, data)
}

func newTestWorker(store *fakeStore, notifier *fakeNotifier, analyzer client.ResumeAnalyzer) *AnalysisWorker {
	cfg := &config.AnalyzerConfig{
		BaseURL:      "http://analyzer.test",
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  time.Second,
	}
	return NewAnalysisWorker(store, service.NewOrchestrator(analyzer, cfg), notifier)
}

func TestProcessTask_Success(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	analyzer := &scriptedAnalyzer{
		payload: model.ParseResultPayload([]byte(`[{"name": "Alice", "score": 87}]`)),
	}

	w := newTestWorker(store, notifier, analyzer)
	if err := w.ProcessTask(context.Background(), newAnalysisTaskForTest(t, "job-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.completeCalls != 1 {
		t.Errorf("expected 1 complete call, got %d", store.completeCalls)
	}
	if notifier.completeCalls != 1 {
		t.Errorf("expected 1 complete broadcast, got %d", notifier.completeCalls)
	}
	if notifier.progressCalls == 0 {
		t.Error("expected at least one progress broadcast")
	}
	if notifier.errorCalls != 0 {
		t.Errorf("expected no error broadcasts, got %d", notifier.errorCalls)
	}
}

func TestProcessTask_CanceledMidRunDropsAllBroadcasts(t *testing.T) {
	store := &fakeStore{canceledMidRun: true}
	notifier := &fakeNotifier{}
	analyzer := &scriptedAnalyzer{
		payload: model.ParseResultPayload([]byte(`[{"name": "Alice", "score": 87}]`)),
	}

	w := newTestWorker(store, notifier, analyzer)
	if err := w.ProcessTask(context.Background(), newAnalysisTaskForTest(t, "job-2")); err != nil {
		t.Fatalf("a dropped result must not fail the task: %v", err)
	}

	// The registry refused the transitions, so subscribers hear nothing
	if notifier.completeCalls != 0 {
		t.Errorf("canceled job must not broadcast its result, got %d complete broadcasts", notifier.completeCalls)
	}
	if notifier.progressCalls != 0 {
		t.Errorf("canceled job must not broadcast progress, got %d", notifier.progressCalls)
	}
	if notifier.errorCalls != 0 {
		t.Errorf("canceled job must not broadcast errors, got %d", notifier.errorCalls)
	}
}

func TestProcessTask_CanceledMidRunFailureStaysSilent(t *testing.T) {
	store := &fakeStore{canceledMidRun: true}
	notifier := &fakeNotifier{}
	analyzer := &scriptedAnalyzer{runErr: client.ErrPollTimeout}

	w := newTestWorker(store, notifier, analyzer)
	err := w.ProcessTask(context.Background(), newAnalysisTaskForTest(t, "job-3"))
	if !errors.Is(err, client.ErrPollTimeout) {
		t.Fatalf("expected the run error to propagate, got %v", err)
	}

	if notifier.errorCalls != 0 {
		t.Errorf("canceled job must not broadcast the late failure, got %d", notifier.errorCalls)
	}
}

func TestProcessTask_FailureBroadcastsClassifiedCode(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	analyzer := &scriptedAnalyzer{runErr: &client.SubmissionError{StatusCode: 400, Detail: "bad weights"}}

	w := newTestWorker(store, notifier, analyzer)
	if err := w.ProcessTask(context.Background(), newAnalysisTaskForTest(t, "job-4")); err == nil {
		t.Fatal("expected the run error to propagate")
	}

	if notifier.errorCalls != 1 {
		t.Fatalf("expected 1 error broadcast, got %d", notifier.errorCalls)
	}
	if notifier.lastErrorCode != response.CodeSubmissionError {
		t.Errorf("expected code %q, got %q", response.CodeSubmissionError, notifier.lastErrorCode)
	}
}

func TestClassifyRunError(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		wantCode    string
		wantOutcome string
	}{
		{"timeout", client.ErrPollTimeout, response.CodeAnalysisTimeout, metrics.OutcomeTimeout},
		{"submission", &client.SubmissionError{StatusCode: 422}, response.CodeSubmissionError, metrics.OutcomeRejected},
		{"failed", &client.AnalysisFailedError{Detail: "crash"}, response.CodeAnalysisFailed, metrics.OutcomeFailed},
		{"validation", &service.ValidationError{Msg: "missing jd"}, response.CodeValidationError, metrics.OutcomeFailed},
		{"other", errors.New("boom"), response.CodeJobFailed, metrics.OutcomeFailed},
	}

	for _, tc := range cases {
		code, outcome := classifyRunError(tc.err)
		if code != tc.wantCode {
			t.Errorf("%s: expected code %q, got %q", tc.name, tc.wantCode, code)
		}
		if outcome != tc.wantOutcome {
			t.Errorf("%s: expected outcome %q, got %q", tc.name, tc.wantOutcome, outcome)
		}
	}
}
