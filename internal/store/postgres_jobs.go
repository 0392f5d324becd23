package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/harborgrid/c360/internal/db"
	"github.com/harborgrid/c360/internal/model"
)

func (s *PostgresStore) CreateJob(ctx context.Context, j *model.Job) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	j.Status = model.JobQueued
	j.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, name, type, source_system_id, status, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		j.ID, j.Name, string(j.Type), j.SourceSystemID, string(j.Status), j.CreatedBy, j.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert job")
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, type, source_system_id, status, created_by, created_at, started_at, ended_at, result_summary, error_message
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Name, &j.Type, &j.SourceSystemID, &j.Status, &j.CreatedBy,
		&j.CreatedAt, &j.StartedAt, &j.EndedAt, &j.ResultSummary, &j.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get job")
	}

	steps, err := s.listJobSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	j.Steps = steps
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, name, type, source_system_id, status, created_by, created_at, started_at, ended_at, result_summary, error_message
		 FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.SourceSystemID != "" {
		query += fmt.Sprintf(` AND source_system_id = $%d`, argIdx)
		args = append(args, filter.SourceSystemID)
		argIdx++
	}
	if filter.Active {
		query += ` AND status IN ('queued', 'running')`
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.Name, &j.Type, &j.SourceSystemID, &j.Status, &j.CreatedBy,
			&j.CreatedAt, &j.StartedAt, &j.EndedAt, &j.ResultSummary, &j.ErrorMessage); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		out = append(out, j)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) CompareAndSetJobStatus(ctx context.Context, id string, from, to model.JobStatus) (bool, error) {
	query := `UPDATE jobs SET status = $1 WHERE id = $2 AND status = $3`
	args := []any{string(to), id, string(from)}
	if to == model.JobRunning {
		query = `UPDATE jobs SET status = $1, started_at = $2 WHERE id = $3 AND status = $4`
		args = []any{string(to), time.Now().UTC(), id, string(from)}
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: transition job %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) FinishJob(ctx context.Context, id string, status model.JobStatus, summary, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, ended_at = $2, result_summary = $3, error_message = $4 WHERE id = $5`,
		string(status), time.Now().UTC(), summary, errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "job %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateJobSteps(ctx context.Context, jobID string, steps []model.JobStep) error {
	rows := make([][]any, 0, len(steps))
	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = uuid.New().String()
		}
		steps[i].JobID = jobID
		if steps[i].Status == "" {
			steps[i].Status = model.StepPending
		}
		rows = append(rows, []any{steps[i].ID, jobID, steps[i].Name, steps[i].Order, string(steps[i].Status), 0, 0, ""})
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := db.CopyFrom(ctx, s.pool, "job_steps",
		[]string{"id", "job_id", "name", "step_order", "status", "records_processed", "records_failed", "error"},
		rows)
	return eris.Wrapf(err, "postgres: copy steps for job %s", jobID)
}

func (s *PostgresStore) UpdateJobStep(ctx context.Context, step *model.JobStep) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_steps SET status = $1, records_processed = $2, records_failed = $3, error = $4 WHERE id = $5`,
		string(step.Status), step.RecordsProcessed, step.RecordsFailed, step.Error, step.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update step %s", step.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "job step %s", step.ID)
	}
	return nil
}

func (s *PostgresStore) AppendJobLog(ctx context.Context, entry *model.JobLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_logs (job_id, level, message, ts) VALUES ($1, $2, $3, $4)`,
		entry.JobID, entry.Level, entry.Message, entry.Timestamp,
	)
	return eris.Wrap(err, "postgres: insert job log")
}

func (s *PostgresStore) ListJobLogs(ctx context.Context, jobID string, limit int) ([]model.JobLog, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, level, message, ts FROM job_logs WHERE job_id = $1 ORDER BY ts LIMIT $2`,
		jobID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list job logs")
	}
	defer rows.Close()

	var out []model.JobLog
	for rows.Next() {
		var l model.JobLog
		if err := rows.Scan(&l.JobID, &l.Level, &l.Message, &l.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job log")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list job logs iterate")
}

func (s *PostgresStore) JobStats(ctx context.Context) (*model.JobStats, error) {
	stats := &model.JobStats{ByType: map[model.JobType]int{}}

	rows, err := s.pool.Query(ctx,
		`SELECT status, type, COUNT(*) FROM jobs GROUP BY status, type`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: job stats")
	}
	defer rows.Close()

	for rows.Next() {
		var status, jobType string
		var n int
		if err := rows.Scan(&status, &jobType, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job stats")
		}
		stats.Total += n
		stats.ByType[model.JobType(jobType)] += n
		switch model.JobStatus(status) {
		case model.JobQueued:
			stats.Queued += n
		case model.JobRunning:
			stats.Running += n
		case model.JobCompleted:
			stats.Completed += n
		case model.JobFailed:
			stats.Failed += n
		case model.JobCancelled:
			stats.Cancelled += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: job stats iterate")
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(records_processed), 0), COALESCE(SUM(records_failed), 0) FROM job_steps`,
	).Scan(&stats.RecordsProcessed, &stats.RecordsFailed)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: job record totals")
	}
	return stats, nil
}

func (s *PostgresStore) LatestJobForSource(ctx context.Context, sourceSystemID string) (*model.Job, error) {
	var j model.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, type, source_system_id, status, created_by, created_at, started_at, ended_at, result_summary, error_message
		 FROM jobs WHERE source_system_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		sourceSystemID,
	).Scan(&j.ID, &j.Name, &j.Type, &j.SourceSystemID, &j.Status, &j.CreatedBy,
		&j.CreatedAt, &j.StartedAt, &j.EndedAt, &j.ResultSummary, &j.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest job for source")
	}
	return &j, nil
}

// Scheduled jobs

func (s *PostgresStore) CreateScheduledJob(ctx context.Context, sj *model.ScheduledJob) error {
	if sj.ID == "" {
		sj.ID = uuid.New().String()
	}
	sj.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scheduled_jobs (id, name, type, source_system_id, interval, enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sj.ID, sj.Name, string(sj.Type), sj.SourceSystemID, string(sj.Interval), sj.Enabled, sj.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert scheduled job")
}

func (s *PostgresStore) ListScheduledJobs(ctx context.Context) ([]model.ScheduledJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, type, source_system_id, interval, enabled, last_run_at, created_at
		 FROM scheduled_jobs ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scheduled jobs")
	}
	defer rows.Close()

	var out []model.ScheduledJob
	for rows.Next() {
		var sj model.ScheduledJob
		if err := rows.Scan(&sj.ID, &sj.Name, &sj.Type, &sj.SourceSystemID, &sj.Interval, &sj.Enabled, &sj.LastRunAt, &sj.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scheduled job")
		}
		out = append(out, sj)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scheduled jobs iterate")
}

func (s *PostgresStore) DeleteScheduledJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete scheduled job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "scheduled job %s", id)
	}
	return nil
}

func (s *PostgresStore) SetScheduledJobLastRun(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scheduled_jobs SET last_run_at = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set scheduled job last run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "scheduled job %s", id)
	}
	return nil
}

func (s *PostgresStore) listJobSteps(ctx context.Context, jobID string) ([]model.JobStep, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, name, step_order, status, records_processed, records_failed, error
		 FROM job_steps WHERE job_id = $1 ORDER BY step_order`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list job steps")
	}
	defer rows.Close()

	var out []model.JobStep
	for rows.Next() {
		var st model.JobStep
		if err := rows.Scan(&st.ID, &st.JobID, &st.Name, &st.Order, &st.Status, &st.RecordsProcessed, &st.RecordsFailed, &st.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job step")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list job steps iterate")
}
