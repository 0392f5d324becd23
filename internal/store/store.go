package store

import (
	"context"
	"time"

	"github.com/harborgrid/c360/internal/model"
)

// MappingFilter specifies criteria for listing mappings.
type MappingFilter struct {
	SourceSystemID    string              `json:"source_system_id,omitempty"`
	TargetAttributeID string              `json:"target_attribute_id,omitempty"`
	Status            model.MappingStatus `json:"status,omitempty"`
	Limit             int                 `json:"limit,omitempty"`
}

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status         model.JobStatus `json:"status,omitempty"`
	SourceSystemID string          `json:"source_system_id,omitempty"`
	// Active selects only queued and running jobs.
	Active bool `json:"active,omitempty"`
	Limit  int  `json:"limit,omitempty"`
}

// IssueFilter specifies criteria for listing quality issues.
type IssueFilter struct {
	TargetAttributeID string              `json:"target_attribute_id,omitempty"`
	Severity          model.IssueSeverity `json:"severity,omitempty"`
	UnresolvedOnly    bool                `json:"unresolved_only,omitempty"`
}

// Store defines the persistence interface for the integration engine.
// Implementations must be safe for concurrent use; per-key write
// serialization for mappings and fixes is the caller's responsibility.
type Store interface {
	// Source registry
	CreateSourceSystem(ctx context.Context, s *model.SourceSystem) error
	GetSourceSystem(ctx context.Context, id string) (*model.SourceSystem, error)
	ListSourceSystems(ctx context.Context) ([]model.SourceSystem, error)
	DeactivateSourceSystem(ctx context.Context, id string) error
	// ReplaceSourceAttributes swaps the system's attribute set wholesale
	// in one transaction and stamps last_scanned_at.
	ReplaceSourceAttributes(ctx context.Context, sourceSystemID string, attrs []model.SourceAttribute) error
	MarkSourceDegraded(ctx context.Context, sourceSystemID string, scanErr string) error
	ListSourceAttributes(ctx context.Context, sourceSystemID string) ([]model.SourceAttribute, error)
	GetSourceAttribute(ctx context.Context, id string) (*model.SourceAttribute, error)

	// Attribute catalog
	CreateTargetAttribute(ctx context.Context, a *model.TargetAttribute) error
	GetTargetAttribute(ctx context.Context, id string) (*model.TargetAttribute, error)
	ListTargetAttributes(ctx context.Context, category string) ([]model.TargetAttribute, error)

	// Mappings
	CreateMapping(ctx context.Context, m *model.Mapping) error
	GetMapping(ctx context.Context, id string) (*model.Mapping, error)
	ListMappings(ctx context.Context, filter MappingFilter) ([]model.Mapping, error)
	// UpdateMappingValidation writes the status/confidence pair produced
	// by a validation pass.
	UpdateMappingValidation(ctx context.Context, id string, status model.MappingStatus, confidence float64) error
	MappingStats(ctx context.Context) (*model.MappingStats, error)
	AppendValidationRun(ctx context.Context, run *model.ValidationRun) error
	ListValidationRuns(ctx context.Context, mappingID string) ([]model.ValidationRun, error)

	// Jobs
	CreateJob(ctx context.Context, j *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	// CompareAndSetJobStatus transitions a job from one status to another
	// atomically. It returns false when the job was not in the expected
	// status, without error.
	CompareAndSetJobStatus(ctx context.Context, id string, from, to model.JobStatus) (bool, error)
	FinishJob(ctx context.Context, id string, status model.JobStatus, summary, errMsg string) error
	CreateJobSteps(ctx context.Context, jobID string, steps []model.JobStep) error
	UpdateJobStep(ctx context.Context, step *model.JobStep) error
	AppendJobLog(ctx context.Context, entry *model.JobLog) error
	ListJobLogs(ctx context.Context, jobID string, limit int) ([]model.JobLog, error)
	JobStats(ctx context.Context) (*model.JobStats, error)
	// LatestJobForSource returns the most recently created job for a
	// source system, or nil when none exists.
	LatestJobForSource(ctx context.Context, sourceSystemID string) (*model.Job, error)

	// Scheduled jobs
	CreateScheduledJob(ctx context.Context, s *model.ScheduledJob) error
	ListScheduledJobs(ctx context.Context) ([]model.ScheduledJob, error)
	DeleteScheduledJob(ctx context.Context, id string) error
	SetScheduledJobLastRun(ctx context.Context, id string, at time.Time) error

	// Quality issues and history
	UpsertQualityIssue(ctx context.Context, issue *model.QualityIssue) error
	GetQualityIssue(ctx context.Context, id string) (*model.QualityIssue, error)
	ListQualityIssues(ctx context.Context, filter IssueFilter) ([]model.QualityIssue, error)
	ResolveQualityIssue(ctx context.Context, id string, at time.Time) error
	AppendMetricsSnapshot(ctx context.Context, snap *model.MetricsSnapshot) error
	ListMetricsSnapshots(ctx context.Context, targetAttributeID string, since time.Time) ([]model.MetricsSnapshot, error)

	// Materialized data (read side)
	MaterializedCounts(ctx context.Context, targetAttributeID string) (total, nulls int, err error)
	ListMaterialized(ctx context.Context, targetAttributeID string, limit int) ([]model.MaterializedRecord, error)
	DuplicateRecordCount(ctx context.Context, targetAttributeID string) (int, error)
	LastMaterializedUpdate(ctx context.Context, targetAttributeID string) (*time.Time, error)

	// Materialized data (write side). Each call is a single transaction:
	// it fully applies or leaves the data untouched.
	ReplaceMaterialized(ctx context.Context, targetAttributeID string, records []model.MaterializedRecord) error
	UpsertMaterialized(ctx context.Context, records []model.MaterializedRecord) error
	FillNullValues(ctx context.Context, targetAttributeID, defaultValue string, now time.Time) (int, []model.Change, error)
	DeduplicateKeepRecent(ctx context.Context, targetAttributeID string) (int, []model.Change, error)
	TrimValues(ctx context.Context, targetAttributeID string, now time.Time) (int, []model.Change, error)
	TouchMaterialized(ctx context.Context, targetAttributeID string, now time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
