package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/harborgrid/c360/internal/db"
	"github.com/harborgrid/c360/internal/model"
)

// Quality issues and history

func (s *PostgresStore) UpsertQualityIssue(ctx context.Context, issue *model.QualityIssue) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin upsert issue")
	}
	defer tx.Rollback(ctx)

	var existingID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM quality_issues
		 WHERE target_attribute_id = $1 AND issue_type = $2 AND resolved_at IS NULL`,
		issue.TargetAttributeID, string(issue.Type),
	).Scan(&existingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrap(err, "postgres: find open issue")
	}

	fixJSON, err := json.Marshal(issue.FixOptions)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fix options")
	}
	if issue.DetectedAt.IsZero() {
		issue.DetectedAt = time.Now().UTC()
	}

	if existingID != "" {
		issue.ID = existingID
		_, err = tx.Exec(ctx,
			`UPDATE quality_issues SET severity = $1, description = $2, affected_record_count = $3, fix_options = $4, detected_at = $5
			 WHERE id = $6`,
			string(issue.Severity), issue.Description, issue.AffectedRecordCount,
			fixJSON, issue.DetectedAt, existingID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update issue %s", existingID)
		}
	} else {
		if issue.ID == "" {
			issue.ID = uuid.New().String()
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO quality_issues (id, target_attribute_id, issue_type, severity, description, affected_record_count, fix_options, detected_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			issue.ID, issue.TargetAttributeID, string(issue.Type), string(issue.Severity),
			issue.Description, issue.AffectedRecordCount, fixJSON, issue.DetectedAt,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert issue")
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit upsert issue")
}

func (s *PostgresStore) GetQualityIssue(ctx context.Context, id string) (*model.QualityIssue, error) {
	var iss model.QualityIssue
	var fixJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, target_attribute_id, issue_type, severity, description, affected_record_count, fix_options, detected_at, resolved_at
		 FROM quality_issues WHERE id = $1`, id,
	).Scan(&iss.ID, &iss.TargetAttributeID, &iss.Type, &iss.Severity,
		&iss.Description, &iss.AffectedRecordCount, &fixJSON, &iss.DetectedAt, &iss.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get issue")
	}
	if len(fixJSON) > 0 {
		if err := json.Unmarshal(fixJSON, &iss.FixOptions); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal fix options")
		}
	}
	return &iss, nil
}

func (s *PostgresStore) ListQualityIssues(ctx context.Context, filter IssueFilter) ([]model.QualityIssue, error) {
	query := `SELECT id, target_attribute_id, issue_type, severity, description, affected_record_count, fix_options, detected_at, resolved_at
		 FROM quality_issues WHERE true`
	args := []any{}
	argIdx := 1

	if filter.TargetAttributeID != "" {
		query += ` AND target_attribute_id = $1`
		args = append(args, filter.TargetAttributeID)
		argIdx++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(` AND severity = $%d`, argIdx)
		args = append(args, string(filter.Severity))
		argIdx++
	}
	if filter.UnresolvedOnly {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY detected_at DESC, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list issues")
	}
	defer rows.Close()

	var out []model.QualityIssue
	for rows.Next() {
		var iss model.QualityIssue
		var fixJSON []byte
		if err := rows.Scan(&iss.ID, &iss.TargetAttributeID, &iss.Type, &iss.Severity,
			&iss.Description, &iss.AffectedRecordCount, &fixJSON, &iss.DetectedAt, &iss.ResolvedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan issue")
		}
		if len(fixJSON) > 0 {
			if err := json.Unmarshal(fixJSON, &iss.FixOptions); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal fix options")
			}
		}
		out = append(out, iss)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list issues iterate")
}

func (s *PostgresStore) ResolveQualityIssue(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quality_issues SET resolved_at = COALESCE(resolved_at, $1) WHERE id = $2`,
		at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve issue %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "quality issue %s", id)
	}
	return nil
}

func (s *PostgresStore) AppendMetricsSnapshot(ctx context.Context, snap *model.MetricsSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.MeasuredAt.IsZero() {
		snap.MeasuredAt = time.Now().UTC()
	}
	metricsJSON, err := json.Marshal(snap.Metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metrics")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO metrics_snapshots (id, target_attribute_id, metrics, measured_at) VALUES ($1, $2, $3, $4)`,
		snap.ID, snap.TargetAttributeID, metricsJSON, snap.MeasuredAt,
	)
	return eris.Wrap(err, "postgres: insert metrics snapshot")
}

func (s *PostgresStore) ListMetricsSnapshots(ctx context.Context, targetAttributeID string, since time.Time) ([]model.MetricsSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_attribute_id, metrics, measured_at FROM metrics_snapshots
		 WHERE target_attribute_id = $1 AND measured_at >= $2 ORDER BY measured_at`,
		targetAttributeID, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list metrics snapshots")
	}
	defer rows.Close()

	var out []model.MetricsSnapshot
	for rows.Next() {
		var snap model.MetricsSnapshot
		var metricsJSON []byte
		if err := rows.Scan(&snap.ID, &snap.TargetAttributeID, &metricsJSON, &snap.MeasuredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan metrics snapshot")
		}
		if err := json.Unmarshal(metricsJSON, &snap.Metrics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metrics")
		}
		out = append(out, snap)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list metrics snapshots iterate")
}

// Materialized data

func (s *PostgresStore) MaterializedCounts(ctx context.Context, targetAttributeID string) (int, int, error) {
	var total, nulls int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN value IS NULL THEN 1 ELSE 0 END), 0)
		 FROM materialized_records WHERE target_attribute_id = $1`,
		targetAttributeID,
	).Scan(&total, &nulls)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: materialized counts")
	}
	return total, nulls, nil
}

func (s *PostgresStore) ListMaterialized(ctx context.Context, targetAttributeID string, limit int) ([]model.MaterializedRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT target_attribute_id, record_key, value, updated_at FROM materialized_records
		 WHERE target_attribute_id = $1 ORDER BY record_key LIMIT $2`,
		targetAttributeID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list materialized")
	}
	defer rows.Close()

	var out []model.MaterializedRecord
	for rows.Next() {
		var r model.MaterializedRecord
		if err := rows.Scan(&r.TargetAttributeID, &r.RecordKey, &r.Value, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan materialized record")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list materialized iterate")
}

func (s *PostgresStore) DuplicateRecordCount(ctx context.Context, targetAttributeID string) (int, error) {
	var dupes int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(value) - COUNT(DISTINCT value) FROM materialized_records
		 WHERE target_attribute_id = $1`,
		targetAttributeID,
	).Scan(&dupes)
	return dupes, eris.Wrap(err, "postgres: duplicate record count")
}

func (s *PostgresStore) LastMaterializedUpdate(ctx context.Context, targetAttributeID string) (*time.Time, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(updated_at) FROM materialized_records WHERE target_attribute_id = $1`,
		targetAttributeID,
	).Scan(&last)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last materialized update")
	}
	return last, nil
}

func (s *PostgresStore) ReplaceMaterialized(ctx context.Context, targetAttributeID string, records []model.MaterializedRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace materialized")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM materialized_records WHERE target_attribute_id = $1`, targetAttributeID,
	); err != nil {
		return eris.Wrap(err, "postgres: clear materialized")
	}

	rows := make([][]any, 0, len(records))
	for i := range records {
		records[i].TargetAttributeID = targetAttributeID
		if records[i].UpdatedAt.IsZero() {
			records[i].UpdatedAt = time.Now().UTC()
		}
		rows = append(rows, []any{targetAttributeID, records[i].RecordKey, records[i].Value, records[i].UpdatedAt})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"materialized_records"},
			[]string{"target_attribute_id", "record_key", "value", "updated_at"},
			pgx.CopyFromRows(rows)); err != nil {
			return eris.Wrap(err, "postgres: copy materialized")
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace materialized")
}

func (s *PostgresStore) UpsertMaterialized(ctx context.Context, records []model.MaterializedRecord) error {
	rows := make([][]any, 0, len(records))
	for i := range records {
		if records[i].UpdatedAt.IsZero() {
			records[i].UpdatedAt = time.Now().UTC()
		}
		rows = append(rows, []any{records[i].TargetAttributeID, records[i].RecordKey, records[i].Value, records[i].UpdatedAt})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "materialized_records",
		Columns:      []string{"target_attribute_id", "record_key", "value", "updated_at"},
		ConflictKeys: []string{"target_attribute_id", "record_key"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert materialized")
}

func (s *PostgresStore) FillNullValues(ctx context.Context, targetAttributeID, defaultValue string, now time.Time) (int, []model.Change, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, nil, eris.Wrap(err, "postgres: begin fill nulls")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE materialized_records SET value = $1, updated_at = $2
		 WHERE target_attribute_id = $3 AND value IS NULL
		 RETURNING record_key`,
		defaultValue, now.UTC(), targetAttributeID)
	if err != nil {
		return 0, nil, eris.Wrap(err, "postgres: fill nulls")
	}
	var changes []model.Change
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, nil, eris.Wrap(err, "postgres: scan filled record")
		}
		changes = append(changes, model.Change{RecordKey: key, Before: "", After: defaultValue})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, eris.Wrap(err, "postgres: fill nulls iterate")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, eris.Wrap(err, "postgres: commit fill nulls")
	}
	return len(changes), changes, nil
}

func (s *PostgresStore) DeduplicateKeepRecent(ctx context.Context, targetAttributeID string) (int, []model.Change, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, nil, eris.Wrap(err, "postgres: begin deduplicate")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`DELETE FROM materialized_records
		 WHERE target_attribute_id = $1 AND (record_key, value) IN (
			SELECT record_key, value FROM (
				SELECT record_key, value,
				       ROW_NUMBER() OVER (PARTITION BY value ORDER BY updated_at DESC, record_key) AS rn
				FROM materialized_records
				WHERE target_attribute_id = $1 AND value IS NOT NULL
			) ranked WHERE rn > 1
		 )
		 RETURNING record_key, value`,
		targetAttributeID)
	if err != nil {
		return 0, nil, eris.Wrap(err, "postgres: deduplicate")
	}
	var changes []model.Change
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return 0, nil, eris.Wrap(err, "postgres: scan deduplicated record")
		}
		changes = append(changes, model.Change{RecordKey: key, Before: value, After: ""})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, eris.Wrap(err, "postgres: deduplicate iterate")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, eris.Wrap(err, "postgres: commit deduplicate")
	}
	return len(changes), changes, nil
}

func (s *PostgresStore) TrimValues(ctx context.Context, targetAttributeID string, now time.Time) (int, []model.Change, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, nil, eris.Wrap(err, "postgres: begin trim values")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE materialized_records SET value = TRIM(value), updated_at = $1
		 WHERE target_attribute_id = $2 AND value IS NOT NULL AND value <> TRIM(value)
		 RETURNING record_key, TRIM(value)`,
		now.UTC(), targetAttributeID)
	if err != nil {
		return 0, nil, eris.Wrap(err, "postgres: trim values")
	}
	var changes []model.Change
	for rows.Next() {
		var key, after string
		if err := rows.Scan(&key, &after); err != nil {
			rows.Close()
			return 0, nil, eris.Wrap(err, "postgres: scan trimmed record")
		}
		changes = append(changes, model.Change{RecordKey: key, After: after})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, eris.Wrap(err, "postgres: trim values iterate")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, eris.Wrap(err, "postgres: commit trim values")
	}
	return len(changes), changes, nil
}

func (s *PostgresStore) TouchMaterialized(ctx context.Context, targetAttributeID string, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE materialized_records SET updated_at = $1 WHERE target_attribute_id = $2`,
		now.UTC(), targetAttributeID)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: touch materialized")
	}
	return int(tag.RowsAffected()), nil
}
