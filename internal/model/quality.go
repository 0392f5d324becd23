package model

import "time"

// IssueSeverity grades a quality issue.
type IssueSeverity string

const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

// IssueType identifies which quality dimension an issue violates.
type IssueType string

const (
	IssueCompleteness IssueType = "completeness"
	IssueConsistency  IssueType = "consistency"
	IssueAccuracy     IssueType = "accuracy"
	IssueTimeliness   IssueType = "timeliness"
)

// FixType names a remediation that can be applied to an issue.
type FixType string

const (
	FixFillDefault    FixType = "fill_default"
	FixDeduplicate    FixType = "deduplicate_keep_recent"
	FixTrimRevalidate FixType = "trim_and_revalidate"
	FixTouchRefresh   FixType = "touch_refresh"
)

// FixOption describes one candidate remediation attached to an issue.
type FixOption struct {
	Type        FixType `json:"type"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	// Parameters maps parameter name to a short description of the
	// expected value, e.g. {"default_value": "value written to null records"}.
	Parameters map[string]string `json:"parameters,omitempty"`
}

// QualityIssue is a detected violation of a quality check against the
// materialized data for one target attribute.
type QualityIssue struct {
	ID                  string        `json:"id"`
	TargetAttributeID   string        `json:"target_attribute_id"`
	Type                IssueType     `json:"issue_type"`
	Severity            IssueSeverity `json:"severity"`
	Description         string        `json:"description"`
	AffectedRecordCount int           `json:"affected_record_count"`
	FixOptions          []FixOption   `json:"fix_options,omitempty"`
	DetectedAt          time.Time     `json:"detected_at"`
	ResolvedAt          *time.Time    `json:"resolved_at,omitempty"`
}

// Resolved reports whether the issue has been remediated.
func (q *QualityIssue) Resolved() bool {
	return q.ResolvedAt != nil
}

// QualityMetrics holds the five per-dimension scores plus their mean,
// each in [0,1].
type QualityMetrics struct {
	Completeness float64 `json:"completeness"`
	Uniqueness   float64 `json:"uniqueness"`
	Consistency  float64 `json:"consistency"`
	Accuracy     float64 `json:"accuracy"`
	Timeliness   float64 `json:"timeliness"`
	Overall      float64 `json:"overall"`
	RecordCount  int     `json:"record_count"`
}

// ComputeOverall sets Overall to the unweighted mean of the five dimensions.
func (m *QualityMetrics) ComputeOverall() {
	m.Overall = (m.Completeness + m.Uniqueness + m.Consistency + m.Accuracy + m.Timeliness) / 5
}

// MetricsSnapshot is one historical quality measurement for an attribute.
type MetricsSnapshot struct {
	ID                string         `json:"id"`
	TargetAttributeID string         `json:"target_attribute_id"`
	Metrics           QualityMetrics `json:"metrics"`
	MeasuredAt        time.Time      `json:"measured_at"`
}

// FixResult reports the outcome of applying a fix.
type FixResult struct {
	IssueID         string   `json:"issue_id"`
	FixType         FixType  `json:"fix_type"`
	AffectedRecords int      `json:"affected_records"`
	Changes         []Change `json:"changes,omitempty"`
}

// Change is one entry in the structured diff summary of a fix.
type Change struct {
	RecordKey string `json:"record_key"`
	Before    string `json:"before"`
	After     string `json:"after"`
}

// MaterializedRecord is one physically materialized value for a target
// attribute, keyed by the record it belongs to. The quality engine reads
// and remediates these; nothing else mutates them outside job execution.
type MaterializedRecord struct {
	TargetAttributeID string    `json:"target_attribute_id"`
	RecordKey         string    `json:"record_key"`
	Value             *string   `json:"value"` // nil means null
	UpdatedAt         time.Time `json:"updated_at"`
}
