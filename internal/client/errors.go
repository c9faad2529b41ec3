package client

import (
	"errors"
	"fmt"
)

// ErrPollTimeout is returned when no terminal status was observed within the
// full polling window. Individual poll failures never surface on their own;
// only the cumulative timeout does.
var ErrPollTimeout = errors.New("analysis timed out waiting for results")

// SubmissionError reports a job submission the analysis service did not
// accept: a non-202 status, or an accepted response missing the job id.
type SubmissionError struct {
	StatusCode int
	Detail     string
}

func (e *SubmissionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("analysis submission rejected (status %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("analysis submission rejected (status %d)", e.StatusCode)
}

// AnalysisFailedError reports a terminal, server-side failure of a job the
// service did accept.
type AnalysisFailedError struct {
	Detail string
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("analysis failed: %s", e.Detail)
}
