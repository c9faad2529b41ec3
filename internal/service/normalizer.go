package service

import (
	"encoding/json"

	"github.com/cvalign/api/internal/model"
)

// rawCandidate is the loose record shape the analysis service emits. Field
// presence is never trusted beyond this decode; everything downstream works
// with the canonical CandidateRecord.
type rawCandidate struct {
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
	RawFeedback      string   `json:"raw_feedback"`
}

// Normalize converts a raw result payload into the canonical ordered
// candidate sequence. It is total: list payloads map element-for-element in
// order, map payloads map entry-for-entry in document order with the key
// supplying the name when the record has none, and anything else becomes an
// empty sequence. The returned records always carry every key — absent
// optional fields hold the not-available marker or an empty slice, never a
// missing key.
func Normalize(payload model.ResultPayload) []model.CandidateRecord {
	switch payload.Kind {
	case model.PayloadList:
		records := make([]model.CandidateRecord, 0, len(payload.List))
		for _, raw := range payload.List {
			var rc rawCandidate
			_ = json.Unmarshal(raw, &rc)
			records = append(records, buildRecord(rc))
		}
		return records

	case model.PayloadMap:
		records := make([]model.CandidateRecord, 0, len(payload.Entries))
		for _, entry := range payload.Entries {
			var rc rawCandidate
			_ = json.Unmarshal(entry.Record, &rc)
			if rc.Name == "" {
				rc.Name = entry.Key
			}
			if rc.OriginalFilename == "" {
				rc.OriginalFilename = entry.Key
			}
			records = append(records, buildRecord(rc))
		}
		return records

	default:
		return []model.CandidateRecord{}
	}
}

func buildRecord(rc rawCandidate) model.CandidateRecord {
	if rc.Name == "" {
		rc.Name = rc.OriginalFilename
	}
	if rc.Education == "" {
		rc.Education = model.NotAvailable
	}
	if rc.Experience == "" {
		rc.Experience = model.NotAvailable
	}
	feedback := rc.Feedback
	if feedback == "" {
		feedback = rc.RawFeedback
	}

	return model.CandidateRecord{
		Name:             rc.Name,
		OriginalFilename: rc.OriginalFilename,
		Score:            rc.Score,
		SemanticScore:    rc.SemanticScore,
		Education:        rc.Education,
		Experience:       rc.Experience,
		SkillsMatched:    nonNil(rc.SkillsMatched),
		Strengths:        nonNil(rc.Strengths),
		Weaknesses:       nonNil(rc.Weaknesses),
		Feedback:         feedback,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
