package service

import (
	"context"
	"time"

	"github.com/cvalign/api/internal/client"
	"github.com/cvalign/api/internal/config"
	"github.com/cvalign/api/internal/model"
)

// ValidationError reports missing or malformed caller input, caught before
// any network call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Progress stages reported to the run's progress callback.
const (
	StageSubmitted = "Analysis in progress..."
)

// Orchestrator composes submission, polling and normalization into one run.
// Each run owns its handle and timer; concurrent runs are independent and
// never serialize against one another.
type Orchestrator struct {
	analyzer client.ResumeAnalyzer
	interval time.Duration
	timeout  time.Duration
}

func NewOrchestrator(analyzer client.ResumeAnalyzer, cfg *config.AnalyzerConfig) *Orchestrator {
	return &Orchestrator{
		analyzer: analyzer,
		interval: cfg.PollInterval,
		timeout:  cfg.PollTimeout,
	}
}

// Run submits the job description, waits for the terminal result and returns
// the normalized candidate sequence. A missing job-description artifact fails
// fast with *ValidationError and issues zero network calls. Submission and
// polling errors propagate as-is; a failed run leaves nothing partial behind,
// so the caller can immediately retry from scratch.
func (o *Orchestrator) Run(ctx context.Context, jd client.FilePart, weights model.Weights, progress func(stage string)) ([]model.CandidateRecord, error) {
	if jd.Filename == "" || len(jd.Content) == 0 {
		return nil, &ValidationError{Msg: "a job description file is required"}
	}

	handle, err := o.analyzer.StartAnalysis(ctx, jd, weights)
	if err != nil {
		return nil, err
	}

	if progress != nil {
		progress(StageSubmitted)
	}

	payload, err := o.analyzer.PollResult(ctx, handle.ID, o.interval, o.timeout)
	if err != nil {
		return nil, err
	}

	return Normalize(payload), nil
}
