package model

// Frame types pushed over a job's progress stream.
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the envelope every stream frame shares. Type selects the
// concrete shape; ping and pong frames carry nothing else.
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports how far an analysis run has advanced.
type WSProgressMessage struct {
	Type        string    `json:"type"`
	JobID       string    `json:"jobId"`
	Progress    int       `json:"progress"`
	Status      JobStatus `json:"status"`
	CurrentStep string    `json:"currentStep,omitempty"`
}

// WSCompleteMessage delivers the normalized candidate records of a run that
// reached a successful terminal state.
type WSCompleteMessage struct {
	Type       string            `json:"type"`
	JobID      string            `json:"jobId"`
	Candidates []CandidateRecord `json:"candidates"`
}

// WSErrorMessage reports a terminal failure. Code carries the run outcome
// classification; Message is the human-readable detail.
type WSErrorMessage struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
