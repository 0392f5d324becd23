package model

import "time"

// MappingStatus is the lifecycle state of a mapping.
type MappingStatus string

const (
	MappingPending   MappingStatus = "pending"
	MappingProposed  MappingStatus = "proposed"
	MappingValidated MappingStatus = "validated"
	MappingIssues    MappingStatus = "issues"
)

// Valid reports whether s is a known mapping status.
func (s MappingStatus) Valid() bool {
	switch s {
	case MappingPending, MappingProposed, MappingValidated, MappingIssues:
		return true
	}
	return false
}

// Mapping links one source attribute to one target attribute. At most one
// mapping may exist per (source_attribute_id, target_attribute_id) pair.
// Status and confidence writes are serialized per mapping id by the
// validator; everything else treats mappings as read-only.
type Mapping struct {
	ID                  string        `json:"id"`
	SourceAttributeID   string        `json:"source_attribute_id"`
	TargetAttributeID   string        `json:"target_attribute_id"`
	TransformationLogic string        `json:"transformation_logic,omitempty"`
	Status              MappingStatus `json:"status"`
	ConfidenceScore     float64       `json:"confidence_score"`
	// SuggestedConfidence is the suggestion-time score, fixed at creation.
	// Validation blends against this, never against ConfidenceScore, so
	// re-validating unchanged data reproduces the same result.
	SuggestedConfidence float64       `json:"suggested_confidence"`
	CreatedBy           string        `json:"created_by,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// SampleResult is one sampled input/output pair recorded during validation.
type SampleResult struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	IsNull bool   `json:"is_null"`
	Error  string `json:"error,omitempty"`
}

// ValidationRun is the append-only audit record of one validation pass.
// A new run supersedes the previous result but prior runs are retained.
type ValidationRun struct {
	ID         string         `json:"id"`
	MappingID  string         `json:"mapping_id"`
	Confidence float64        `json:"confidence"`
	Status     MappingStatus  `json:"status"`
	Issues     []string       `json:"issues,omitempty"`
	Samples    []SampleResult `json:"samples,omitempty"`
	RanAt      time.Time      `json:"ran_at"`
}

// Suggestion is a candidate mapping proposed by the suggestion engine.
// Suggestions are advisory and never persisted; a caller turns one into
// a Mapping explicitly.
type Suggestion struct {
	SourceAttributeID   string  `json:"source_attribute_id"`
	SourceAttribute     string  `json:"source_attribute"`
	TargetAttributeID   string  `json:"target_attribute_id"`
	TargetAttribute     string  `json:"target_attribute"`
	ConfidenceScore     float64 `json:"confidence_score"`
	TransformationLogic string  `json:"transformation_logic,omitempty"`
	// Scorer records which scorer produced the confidence: "heuristic" or
	// "enhanced". A fallback from the enhanced scorer reports "heuristic"
	// so callers can tell degraded results from the real thing.
	Scorer string `json:"scorer"`
}

// MappingStats summarizes mappings by status.
type MappingStats struct {
	Total    int                   `json:"total"`
	ByStatus map[MappingStatus]int `json:"by_status"`
}
