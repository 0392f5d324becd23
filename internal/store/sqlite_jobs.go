package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/harborgrid/c360/internal/model"
)

func (s *SQLiteStore) CreateJob(ctx context.Context, j *model.Job) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	j.Status = model.JobQueued
	j.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, name, type, source_system_id, status, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Name, string(j.Type), j.SourceSystemID, string(j.Status), j.CreatedBy, j.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert job")
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, source_system_id, status, created_by, created_at, started_at, ended_at, result_summary, error_message
		 FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err != nil {
		return nil, err
	}

	steps, err := s.listJobSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	j.Steps = steps
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, name, type, source_system_id, status, created_by, created_at, started_at, ended_at, result_summary, error_message
		 FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SourceSystemID != "" {
		query += ` AND source_system_id = ?`
		args = append(args, filter.SourceSystemID)
	}
	if filter.Active {
		query += ` AND status IN ('queued', 'running')`
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) CompareAndSetJobStatus(ctx context.Context, id string, from, to model.JobStatus) (bool, error) {
	query := `UPDATE jobs SET status = ? WHERE id = ? AND status = ?`
	args := []any{string(to), id, string(from)}
	if to == model.JobRunning {
		query = `UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`
		args = []any{string(to), time.Now().UTC(), id, string(from)}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: transition job %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) FinishJob(ctx context.Context, id string, status model.JobStatus, summary, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, ended_at = ?, result_summary = ?, error_message = ? WHERE id = ?`,
		string(status), time.Now().UTC(), summary, errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish job %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) CreateJobSteps(ctx context.Context, jobID string, steps []model.JobStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin create steps")
	}
	defer tx.Rollback()

	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = uuid.New().String()
		}
		steps[i].JobID = jobID
		if steps[i].Status == "" {
			steps[i].Status = model.StepPending
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_steps (id, job_id, name, step_order, status, records_processed, records_failed, error)
			 VALUES (?, ?, ?, ?, ?, 0, 0, '')`,
			steps[i].ID, jobID, steps[i].Name, steps[i].Order, string(steps[i].Status),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert step %s", steps[i].Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit create steps")
}

func (s *SQLiteStore) UpdateJobStep(ctx context.Context, step *model.JobStep) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_steps SET status = ?, records_processed = ?, records_failed = ?, error = ? WHERE id = ?`,
		string(step.Status), step.RecordsProcessed, step.RecordsFailed, step.Error, step.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update step %s", step.ID)
	}
	return checkRowsAffected(res, "job step", step.ID)
}

func (s *SQLiteStore) AppendJobLog(ctx context.Context, entry *model.JobLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_logs (job_id, level, message, ts) VALUES (?, ?, ?, ?)`,
		entry.JobID, entry.Level, entry.Message, entry.Timestamp,
	)
	return eris.Wrap(err, "sqlite: insert job log")
}

func (s *SQLiteStore) ListJobLogs(ctx context.Context, jobID string, limit int) ([]model.JobLog, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, level, message, ts FROM job_logs WHERE job_id = ? ORDER BY ts, rowid LIMIT ?`,
		jobID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list job logs")
	}
	defer rows.Close()

	var out []model.JobLog
	for rows.Next() {
		var l model.JobLog
		if err := rows.Scan(&l.JobID, &l.Level, &l.Message, &l.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job log")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list job logs iterate")
}

func (s *SQLiteStore) JobStats(ctx context.Context) (*model.JobStats, error) {
	stats := &model.JobStats{ByType: map[model.JobType]int{}}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, type, COUNT(*) FROM jobs GROUP BY status, type`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: job stats")
	}
	defer rows.Close()

	for rows.Next() {
		var status, jobType string
		var n int
		if err := rows.Scan(&status, &jobType, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job stats")
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
		return nil, eris.Wrap(err, "sqlite: job stats iterate")
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(records_processed), 0), COALESCE(SUM(records_failed), 0) FROM job_steps`,
	).Scan(&stats.RecordsProcessed, &stats.RecordsFailed)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: job record totals")
	}
	return stats, nil
}

func (s *SQLiteStore) LatestJobForSource(ctx context.Context, sourceSystemID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, source_system_id, status, created_by, created_at, started_at, ended_at, result_summary, error_message
		 FROM jobs WHERE source_system_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		sourceSystemID)
	j, err := scanJob(row)
	if eris.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Scheduled jobs

func (s *SQLiteStore) CreateScheduledJob(ctx context.Context, sj *model.ScheduledJob) error {
	if sj.ID == "" {
		sj.ID = uuid.New().String()
	}
	sj.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (id, name, type, source_system_id, interval, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sj.ID, sj.Name, string(sj.Type), sj.SourceSystemID, string(sj.Interval), sj.Enabled, sj.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert scheduled job")
}

func (s *SQLiteStore) ListScheduledJobs(ctx context.Context) ([]model.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, source_system_id, interval, enabled, last_run_at, created_at
		 FROM scheduled_jobs ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scheduled jobs")
	}
	defer rows.Close()

	var out []model.ScheduledJob
	for rows.Next() {
		var sj model.ScheduledJob
		var jobType, interval string
		var lastRun sql.NullTime
		if err := rows.Scan(&sj.ID, &sj.Name, &jobType, &sj.SourceSystemID, &interval, &sj.Enabled, &lastRun, &sj.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scheduled job")
		}
		sj.Type = model.JobType(jobType)
		sj.Interval = model.ScheduleInterval(interval)
		if lastRun.Valid {
			t := lastRun.Time
			sj.LastRunAt = &t
		}
		out = append(out, sj)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list scheduled jobs iterate")
}

func (s *SQLiteStore) DeleteScheduledJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete scheduled job %s", id)
	}
	return checkRowsAffected(res, "scheduled job", id)
}

func (s *SQLiteStore) SetScheduledJobLastRun(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET last_run_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set scheduled job last run %s", id)
	}
	return checkRowsAffected(res, "scheduled job", id)
}

func (s *SQLiteStore) listJobSteps(ctx context.Context, jobID string) ([]model.JobStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, name, step_order, status, records_processed, records_failed, error
		 FROM job_steps WHERE job_id = ? ORDER BY step_order`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list job steps")
	}
	defer rows.Close()

	var out []model.JobStep
	for rows.Next() {
		var st model.JobStep
		var status string
		if err := rows.Scan(&st.ID, &st.JobID, &st.Name, &st.Order, &status, &st.RecordsProcessed, &st.RecordsFailed, &st.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job step")
		}
		st.Status = model.StepStatus(status)
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list job steps iterate")
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	var jobType, status string
	var startedAt, endedAt sql.NullTime

	err := row.Scan(&j.ID, &j.Name, &jobType, &j.SourceSystemID, &status, &j.CreatedBy,
		&j.CreatedAt, &startedAt, &endedAt, &j.ResultSummary, &j.ErrorMessage)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	j.Type = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		j.EndedAt = &t
	}
	return &j, nil
}
