package model

import "time"

// JobStatus is the lifecycle state of an ETL job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// JobType selects which job-type adapter executes the job.
type JobType string

const (
	JobFullLoad        JobType = "full_load"
	JobIncremental     JobType = "incremental"
	JobRefreshMetadata JobType = "refresh_metadata"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobFullLoad, JobIncremental, JobRefreshMetadata:
		return true
	}
	return false
}

// StepStatus is the state of one job step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Job is one unit of ETL execution against a source system.
type Job struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           JobType    `json:"type"`
	SourceSystemID string     `json:"source_system_id"`
	Status         JobStatus  `json:"status"`
	CreatedBy      string     `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	ResultSummary  string     `json:"result_summary,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	Steps          []JobStep  `json:"steps,omitempty"`
}

// JobStep is one ordered step within a job run.
type JobStep struct {
	ID               string     `json:"id"`
	JobID            string     `json:"job_id"`
	Name             string     `json:"name"`
	Order            int        `json:"order"`
	Status           StepStatus `json:"status"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsFailed    int        `json:"records_failed"`
	Error            string     `json:"error,omitempty"`
}

// JobLog is one timestamped log line attached to a job.
type JobLog struct {
	JobID     string    `json:"job_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// JobStats counts jobs by status. Total always equals the sum of the
// buckets; no job exists outside exactly one bucket at a time.
type JobStats struct {
	Total            int             `json:"total"`
	Queued           int             `json:"queued"`
	Running          int             `json:"running"`
	Completed        int             `json:"completed"`
	Failed           int             `json:"failed"`
	Cancelled        int             `json:"cancelled"`
	ByType           map[JobType]int `json:"by_type,omitempty"`
	RecordsProcessed int             `json:"records_processed"`
	RecordsFailed    int             `json:"records_failed"`
}

// ScheduleInterval is the recurrence cadence of a scheduled job.
type ScheduleInterval string

const (
	ScheduleHourly ScheduleInterval = "hourly"
	ScheduleDaily  ScheduleInterval = "daily"
	ScheduleWeekly ScheduleInterval = "weekly"
)

// Valid reports whether i is a known schedule interval.
func (i ScheduleInterval) Valid() bool {
	switch i {
	case ScheduleHourly, ScheduleDaily, ScheduleWeekly:
		return true
	}
	return false
}

// ScheduledJob is a recurring job spec. The scheduler submits a concrete
// Job each time the schedule comes due.
type ScheduledJob struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Type           JobType          `json:"type"`
	SourceSystemID string           `json:"source_system_id"`
	Interval       ScheduleInterval `json:"interval"`
	Enabled        bool             `json:"enabled"`
	LastRunAt      *time.Time       `json:"last_run_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
