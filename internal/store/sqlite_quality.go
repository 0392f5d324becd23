package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/harborgrid/c360/internal/model"
)

// Quality issues and history

// UpsertQualityIssue updates the open issue for the same attribute and
// dimension when one exists; otherwise it inserts a new row. Resolved
// issues are never reopened, so re-detection after a fix creates a
// fresh record.
func (s *SQLiteStore) UpsertQualityIssue(ctx context.Context, issue *model.QualityIssue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert issue")
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM quality_issues
		 WHERE target_attribute_id = ? AND issue_type = ? AND resolved_at IS NULL`,
		issue.TargetAttributeID, string(issue.Type),
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return eris.Wrap(err, "sqlite: find open issue")
	}

	fixJSON, err := json.Marshal(issue.FixOptions)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fix options")
	}
	if issue.DetectedAt.IsZero() {
		issue.DetectedAt = time.Now().UTC()
	}

	if existingID != "" {
		issue.ID = existingID
		_, err = tx.ExecContext(ctx,
			`UPDATE quality_issues SET severity = ?, description = ?, affected_record_count = ?, fix_options = ?, detected_at = ?
			 WHERE id = ?`,
			string(issue.Severity), issue.Description, issue.AffectedRecordCount,
			string(fixJSON), issue.DetectedAt, existingID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update issue %s", existingID)
		}
	} else {
		if issue.ID == "" {
			issue.ID = uuid.New().String()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO quality_issues (id, target_attribute_id, issue_type, severity, description, affected_record_count, fix_options, detected_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.ID, issue.TargetAttributeID, string(issue.Type), string(issue.Severity),
			issue.Description, issue.AffectedRecordCount, string(fixJSON), issue.DetectedAt,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert issue")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert issue")
}

func (s *SQLiteStore) GetQualityIssue(ctx context.Context, id string) (*model.QualityIssue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, target_attribute_id, issue_type, severity, description, affected_record_count, fix_options, detected_at, resolved_at
		 FROM quality_issues WHERE id = ?`, id)
	return scanQualityIssue(row)
}

func (s *SQLiteStore) ListQualityIssues(ctx context.Context, filter IssueFilter) ([]model.QualityIssue, error) {
	query := `SELECT id, target_attribute_id, issue_type, severity, description, affected_record_count, fix_options, detected_at, resolved_at
		 FROM quality_issues WHERE 1=1`
	var args []any

	if filter.TargetAttributeID != "" {
		query += ` AND target_attribute_id = ?`
		args = append(args, filter.TargetAttributeID)
	}
	if filter.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, string(filter.Severity))
	}
	if filter.UnresolvedOnly {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY detected_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list issues")
	}
	defer rows.Close()

	var out []model.QualityIssue
	for rows.Next() {
		iss, err := scanQualityIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *iss)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list issues iterate")
}

// ResolveQualityIssue stamps resolved_at, keeping the earlier stamp if
// the issue was already resolved.
func (s *SQLiteStore) ResolveQualityIssue(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quality_issues SET resolved_at = COALESCE(resolved_at, ?) WHERE id = ?`,
		at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve issue %s", id)
	}
	return checkRowsAffected(res, "quality issue", id)
}

func (s *SQLiteStore) AppendMetricsSnapshot(ctx context.Context, snap *model.MetricsSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.MeasuredAt.IsZero() {
		snap.MeasuredAt = time.Now().UTC()
	}
	metricsJSON, err := json.Marshal(snap.Metrics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metrics")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO metrics_snapshots (id, target_attribute_id, metrics, measured_at) VALUES (?, ?, ?, ?)`,
		snap.ID, snap.TargetAttributeID, string(metricsJSON), snap.MeasuredAt,
	)
	return eris.Wrap(err, "sqlite: insert metrics snapshot")
}

func (s *SQLiteStore) ListMetricsSnapshots(ctx context.Context, targetAttributeID string, since time.Time) ([]model.MetricsSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_attribute_id, metrics, measured_at FROM metrics_snapshots
		 WHERE target_attribute_id = ? AND measured_at >= ? ORDER BY measured_at`,
		targetAttributeID, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list metrics snapshots")
	}
	defer rows.Close()

	var out []model.MetricsSnapshot
	for rows.Next() {
		var snap model.MetricsSnapshot
		var metricsJSON string
		if err := rows.Scan(&snap.ID, &snap.TargetAttributeID, &metricsJSON, &snap.MeasuredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metrics snapshot")
		}
		if err := json.Unmarshal([]byte(metricsJSON), &snap.Metrics); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
		}
		out = append(out, snap)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list metrics snapshots iterate")
}

// Materialized data

func (s *SQLiteStore) MaterializedCounts(ctx context.Context, targetAttributeID string) (int, int, error) {
	var total, nulls int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN value IS NULL THEN 1 ELSE 0 END), 0)
		 FROM materialized_records WHERE target_attribute_id = ?`,
		targetAttributeID,
	).Scan(&total, &nulls)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: materialized counts")
	}
	return total, nulls, nil
}

func (s *SQLiteStore) ListMaterialized(ctx context.Context, targetAttributeID string, limit int) ([]model.MaterializedRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_attribute_id, record_key, value, updated_at FROM materialized_records
		 WHERE target_attribute_id = ? ORDER BY record_key LIMIT ?`,
		targetAttributeID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list materialized")
	}
	defer rows.Close()

	var out []model.MaterializedRecord
	for rows.Next() {
		var r model.MaterializedRecord
		var value sql.NullString
		if err := rows.Scan(&r.TargetAttributeID, &r.RecordKey, &value, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan materialized record")
		}
		if value.Valid {
			v := value.String
			r.Value = &v
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list materialized iterate")
}

// DuplicateRecordCount counts non-null records beyond the first holding
// each value, i.e. non-null total minus distinct values.
func (s *SQLiteStore) DuplicateRecordCount(ctx context.Context, targetAttributeID string) (int, error) {
	var dupes int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(value) - COUNT(DISTINCT value) FROM materialized_records
		 WHERE target_attribute_id = ?`,
		targetAttributeID,
	).Scan(&dupes)
	return dupes, eris.Wrap(err, "sqlite: duplicate record count")
}

func (s *SQLiteStore) LastMaterializedUpdate(ctx context.Context, targetAttributeID string) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(updated_at) FROM materialized_records WHERE target_attribute_id = ?`,
		targetAttributeID,
	).Scan(&last)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last materialized update")
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

func (s *SQLiteStore) ReplaceMaterialized(ctx context.Context, targetAttributeID string, records []model.MaterializedRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace materialized")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM materialized_records WHERE target_attribute_id = ?`, targetAttributeID,
	); err != nil {
		return eris.Wrap(err, "sqlite: clear materialized")
	}
	for i := range records {
		records[i].TargetAttributeID = targetAttributeID
		if records[i].UpdatedAt.IsZero() {
			records[i].UpdatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO materialized_records (target_attribute_id, record_key, value, updated_at) VALUES (?, ?, ?, ?)`,
			targetAttributeID, records[i].RecordKey, nullable(records[i].Value), records[i].UpdatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert materialized %s", records[i].RecordKey)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace materialized")
}

func (s *SQLiteStore) UpsertMaterialized(ctx context.Context, records []model.MaterializedRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert materialized")
	}
	defer tx.Rollback()

	for i := range records {
		if records[i].UpdatedAt.IsZero() {
			records[i].UpdatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO materialized_records (target_attribute_id, record_key, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(target_attribute_id, record_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			records[i].TargetAttributeID, records[i].RecordKey, nullable(records[i].Value), records[i].UpdatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert materialized %s", records[i].RecordKey)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert materialized")
}

func (s *SQLiteStore) FillNullValues(ctx context.Context, targetAttributeID, defaultValue string, now time.Time) (int, []model.Change, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: begin fill nulls")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT record_key FROM materialized_records
		 WHERE target_attribute_id = ? AND value IS NULL ORDER BY record_key`,
		targetAttributeID)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: find null records")
	}
	var changes []model.Change
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, nil, eris.Wrap(err, "sqlite: scan null record")
		}
		changes = append(changes, model.Change{RecordKey: key, Before: "", After: defaultValue})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: find null records iterate")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE materialized_records SET value = ?, updated_at = ?
		 WHERE target_attribute_id = ? AND value IS NULL`,
		defaultValue, now.UTC(), targetAttributeID)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: fill nulls")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil, eris.Wrap(err, "rows affected")
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: commit fill nulls")
	}
	return int(n), changes, nil
}

// DeduplicateKeepRecent removes records that share a non-null value with
// another record, keeping the most recently updated one per value.
func (s *SQLiteStore) DeduplicateKeepRecent(ctx context.Context, targetAttributeID string) (int, []model.Change, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: begin deduplicate")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT record_key, value FROM materialized_records
		 WHERE target_attribute_id = ? AND value IS NOT NULL
		 ORDER BY value, updated_at DESC, record_key`,
		targetAttributeID)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: find duplicates")
	}

	var changes []model.Change
	var doomed []string
	prev := ""
	first := true
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return 0, nil, eris.Wrap(err, "sqlite: scan duplicate")
		}
		if !first && value == prev {
			doomed = append(doomed, key)
			changes = append(changes, model.Change{RecordKey: key, Before: value, After: ""})
		}
		prev = value
		first = false
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: find duplicates iterate")
	}

	for _, key := range doomed {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM materialized_records WHERE target_attribute_id = ? AND record_key = ?`,
			targetAttributeID, key,
		); err != nil {
			return 0, nil, eris.Wrapf(err, "sqlite: delete duplicate %s", key)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: commit deduplicate")
	}
	return len(doomed), changes, nil
}

func (s *SQLiteStore) TrimValues(ctx context.Context, targetAttributeID string, now time.Time) (int, []model.Change, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: begin trim values")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT record_key, value FROM materialized_records
		 WHERE target_attribute_id = ? AND value IS NOT NULL AND value <> TRIM(value)
		 ORDER BY record_key`,
		targetAttributeID)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: find untrimmed")
	}
	var changes []model.Change
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return 0, nil, eris.Wrap(err, "sqlite: scan untrimmed")
		}
		changes = append(changes, model.Change{RecordKey: key, Before: value, After: strings.TrimSpace(value)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: find untrimmed iterate")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE materialized_records SET value = TRIM(value), updated_at = ?
		 WHERE target_attribute_id = ? AND value IS NOT NULL AND value <> TRIM(value)`,
		now.UTC(), targetAttributeID)
	if err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: trim values")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil, eris.Wrap(err, "rows affected")
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, eris.Wrap(err, "sqlite: commit trim values")
	}
	return int(n), changes, nil
}

func (s *SQLiteStore) TouchMaterialized(ctx context.Context, targetAttributeID string, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE materialized_records SET updated_at = ? WHERE target_attribute_id = ?`,
		now.UTC(), targetAttributeID)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: touch materialized")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "rows affected")
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanQualityIssue(row scannable) (*model.QualityIssue, error) {
	var iss model.QualityIssue
	var issueType, severity string
	var fixJSON sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(&iss.ID, &iss.TargetAttributeID, &issueType, &severity,
		&iss.Description, &iss.AffectedRecordCount, &fixJSON, &iss.DetectedAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan issue")
	}
	iss.Type = model.IssueType(issueType)
	iss.Severity = model.IssueSeverity(severity)
	if fixJSON.Valid && fixJSON.String != "" {
		if err := json.Unmarshal([]byte(fixJSON.String), &iss.FixOptions); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal fix options")
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		iss.ResolvedAt = &t
	}
	return &iss, nil
}
