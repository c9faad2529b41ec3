package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/cvalign/api/internal/config"
	"github.com/cvalign/api/internal/metrics"
	"github.com/cvalign/api/internal/model"
)

// ResumeAnalyzer defines the interface for the remote analysis service.
type ResumeAnalyzer interface {
	UploadResumes(ctx context.Context, files []FilePart) error
	StartAnalysis(ctx context.Context, jd FilePart, weights model.Weights) (*JobHandle, error)
	PollResult(ctx context.Context, jobID string, interval, maxWait time.Duration) (model.ResultPayload, error)
}

// FilePart is one artifact sent to the analysis service.
type FilePart struct {
	Filename string
	Content  []byte
}

// JobHandle identifies one accepted analysis job. The id is opaque and
// server-assigned; the handle is immutable once created.
type JobHandle struct {
	ID          string
	SubmittedAt time.Time
}

// AnalyzerClient implements ResumeAnalyzer against the CVAlign analysis API.
type AnalyzerClient struct {
	httpClient *http.Client
	baseURL    string
}

// acceptResponse is the body of a successful (202) submission.
type acceptResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// resultEnvelope is the loose shape of a poll response body. The status field
// in the payload decides pending vs terminal — the HTTP status code alone is
// not reliable across revisions of the service.
type resultEnvelope struct {
	Status  string          `json:"status"`
	Error   string          `json:"error"`
	Results json.RawMessage `json:"results"`
}

// NewAnalyzerClient creates a client for the analysis service. The base URL
// always comes from configuration; nothing is baked in here.
func NewAnalyzerClient(cfg *config.AnalyzerConfig) *AnalyzerClient {
	return &AnalyzerClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: cfg.BaseURL,
	}
}

// IsConfigured returns true if the client has a service address.
func (c *AnalyzerClient) IsConfigured() bool {
	return c.baseURL != ""
}

// UploadResumes pre-stages reference resumes on the analysis service. This is
// best-effort: a failure is reported to the caller but never blocks a later
// job submission.
func (c *AnalyzerClient) UploadResumes(ctx context.Context, files []FilePart) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, f := range files {
		part, err := writer.CreateFormFile("files", f.Filename)
		if err != nil {
			return fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return fmt.Errorf("failed to write form file: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/resume/upload-resumes/", &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Printf("[Analyzer] → POST %s (%d files)", req.URL.String(), len(files))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload resumes: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	log.Printf("[Analyzer] ← %d POST %s", resp.StatusCode, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("resume upload rejected (status %d): %s", resp.StatusCode, serverDetail(body))
	}
	return nil
}

// StartAnalysis submits one job-description artifact together with the score
// weights and returns the handle of the accepted job. Weights are forwarded
// untouched. There is no automatic retry; retrying a rejected submission is
// the caller's decision.
func (c *AnalyzerClient) StartAnalysis(ctx context.Context, jd FilePart, weights model.Weights) (*JobHandle, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("jd_file", jd.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(jd.Content); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	_ = writer.WriteField("education_weight", formatWeight(weights.Education))
	_ = writer.WriteField("experience_weight", formatWeight(weights.Experience))
	_ = writer.WriteField("skills_weight", formatWeight(weights.Skills))
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/resume/analyze/", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Printf("[Analyzer] → POST %s (jd=%s)", req.URL.String(), jd.Filename)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit analysis: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Analyzer] ← %d POST %s — %s", resp.StatusCode, req.URL.String(), string(body))

	if resp.StatusCode != http.StatusAccepted {
		return nil, &SubmissionError{StatusCode: resp.StatusCode, Detail: serverDetail(body)}
	}

	var accepted acceptResponse
	if err := json.Unmarshal(body, &accepted); err != nil || accepted.JobID == "" {
		return nil, &SubmissionError{StatusCode: resp.StatusCode, Detail: "accepted response did not carry a job id"}
	}

	return &JobHandle{ID: accepted.JobID, SubmittedAt: time.Now()}, nil
}

// PollResult queries job status until a terminal result appears or maxWait
// elapses, measured from the call's start. Transport failures, malformed
// bodies and explicit pending envelopes are all treated as non-terminal: they
// are swallowed and the loop simply tries again after interval. A job the
// service reports as failed terminates with *AnalysisFailedError; every other
// terminal body is returned as the raw payload. Polls are strictly
// sequential — one query in flight at a time.
func (c *AnalyzerClient) PollResult(ctx context.Context, jobID string, interval, maxWait time.Duration) (model.ResultPayload, error) {
	deadline := time.Now().Add(maxWait)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++
		metrics.PollAttempts.Inc()
		payload, terminal, err := c.fetchResult(ctx, jobID)
		if err != nil {
			var failed *AnalysisFailedError
			if errors.As(err, &failed) {
				log.Printf("[Analyzer] Poll #%d (job=%s) — failed: %s", attempt, jobID, failed.Detail)
				return model.ResultPayload{}, failed
			}
			if ctx.Err() != nil {
				return model.ResultPayload{}, ctx.Err()
			}
			log.Printf("[Analyzer] Poll #%d (job=%s) — transient: %v", attempt, jobID, err)
		} else if terminal {
			log.Printf("[Analyzer] Poll #%d (job=%s) — terminal", attempt, jobID)
			return payload, nil
		} else {
			log.Printf("[Analyzer] Poll #%d (job=%s) — pending", attempt, jobID)
		}

		select {
		case <-ctx.Done():
			log.Printf("[Analyzer] Poll (job=%s) — context cancelled", jobID)
			return model.ResultPayload{}, ctx.Err()
		case <-time.After(interval):
		}
	}

	return model.ResultPayload{}, ErrPollTimeout
}

// fetchResult performs a single status query. terminal is false for pending
// envelopes; err marks transient conditions the poller absorbs. A server-
// reported job failure comes back as *AnalysisFailedError with terminal
// semantics (the returned error is not transient and must propagate).
func (c *AnalyzerClient) fetchResult(ctx context.Context, jobID string) (model.ResultPayload, bool, error) {
	endpoint := fmt.Sprintf("%s/resume/results/%s", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.ResultPayload{}, false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ResultPayload{}, false, fmt.Errorf("status query failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ResultPayload{}, false, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.ResultPayload{}, false, fmt.Errorf("status query returned %d", resp.StatusCode)
	}

	if !json.Valid(body) {
		return model.ResultPayload{}, false, fmt.Errorf("status query returned malformed body")
	}

	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		var envelope resultEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil {
			switch {
			case envelope.Status == "pending":
				return model.ResultPayload{}, false, nil
			case envelope.Error != "":
				return model.ResultPayload{}, false, &AnalysisFailedError{Detail: envelope.Error}
			case len(envelope.Results) > 0:
				return model.ParseResultPayload(envelope.Results), true, nil
			case envelope.Status != "":
				// Terminal status with no results: the job finished but
				// matched nothing. The envelope itself is not candidate data.
				return model.ResultPayload{}, true, nil
			}
		}
	}

	return model.ParseResultPayload(body), true, nil
}

// serverDetail extracts a human-readable message from an error body, falling
// back to the raw body text.
func serverDetail(body []byte) string {
	var detail struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &detail); err == nil {
		switch {
		case detail.Error != "":
			return detail.Error
		case detail.Detail != "":
			return detail.Detail
		case detail.Message != "":
			return detail.Message
		}
	}
	return string(bytes.TrimSpace(body))
}

func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
