package model

// NotAvailable is the explicit marker used when the upstream service reports
// nothing for an optional field. Consumers render it as-is instead of
// special-casing missing keys.
const NotAvailable = "N/A"

// CandidateRecord is the canonical record one analyzed resume normalizes to.
// Every field except Name is optional upstream; normalization guarantees the
// keys below are always present (slices non-nil, strings possibly a marker).
type CandidateRecord struct {
	Name             string   `json:"name"`
	OriginalFilename string   `json:"original_filename"`
	Score            float64  `json:"score"`
	SemanticScore    float64  `json:"semantic_score"`
	Education        string   `json:"education"`
	Experience       string   `json:"experience"`
	SkillsMatched    []string `json:"skills_matched"`
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
	Feedback         string   `json:"feedback"`
}

// Weights are passed through to the analysis service opaquely. They are not
// required to sum to 100 and the gateway never clamps or rescales them —
// normalization of the weighting is the upstream service's concern.
type Weights struct {
	Education  float64 `json:"education" validate:"gte=0,lte=100"`
	Experience float64 `json:"experience" validate:"gte=0,lte=100"`
	Skills     float64 `json:"skills" validate:"gte=0,lte=100"`
}
