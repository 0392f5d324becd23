package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/harborgrid/c360/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS source_systems (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL UNIQUE,
	description     TEXT NOT NULL DEFAULT '',
	owner           TEXT NOT NULL DEFAULT '',
	active          INTEGER NOT NULL DEFAULT 1,
	degraded        INTEGER NOT NULL DEFAULT 0,
	last_scan_error TEXT NOT NULL DEFAULT '',
	last_scanned_at DATETIME,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS source_attributes (
	id               TEXT PRIMARY KEY,
	source_system_id TEXT NOT NULL REFERENCES source_systems(id),
	name             TEXT NOT NULL,
	data_type        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS target_attributes (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	data_type    TEXT NOT NULL,
	required     INTEGER NOT NULL DEFAULT 0,
	pii          INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS mappings (
	id                   TEXT PRIMARY KEY,
	source_attribute_id  TEXT NOT NULL REFERENCES source_attributes(id),
	target_attribute_id  TEXT NOT NULL REFERENCES target_attributes(id),
	transformation_logic TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'pending',
	confidence_score     REAL NOT NULL DEFAULT 0,
	suggested_confidence REAL NOT NULL DEFAULT 0,
	created_by           TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL,
	UNIQUE(source_attribute_id, target_attribute_id)
);

CREATE TABLE IF NOT EXISTS validation_runs (
	id         TEXT PRIMARY KEY,
	mapping_id TEXT NOT NULL REFERENCES mappings(id),
	confidence REAL NOT NULL,
	status     TEXT NOT NULL,
	issues     TEXT,
	samples    TEXT,
	ran_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	type             TEXT NOT NULL,
	source_system_id TEXT NOT NULL REFERENCES source_systems(id),
	status           TEXT NOT NULL DEFAULT 'queued',
	created_by       TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	started_at       DATETIME,
	ended_at         DATETIME,
	result_summary   TEXT NOT NULL DEFAULT '',
	error_message    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS job_steps (
	id                TEXT PRIMARY KEY,
	job_id            TEXT NOT NULL REFERENCES jobs(id),
	name              TEXT NOT NULL,
	step_order        INTEGER NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	records_processed INTEGER NOT NULL DEFAULT 0,
	records_failed    INTEGER NOT NULL DEFAULT 0,
	error             TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS job_logs (
	job_id  TEXT NOT NULL REFERENCES jobs(id),
	level   TEXT NOT NULL,
	message TEXT NOT NULL,
	ts      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_jobs (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	type             TEXT NOT NULL,
	source_system_id TEXT NOT NULL REFERENCES source_systems(id),
	interval         TEXT NOT NULL,
	enabled          INTEGER NOT NULL DEFAULT 1,
	last_run_at      DATETIME,
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS quality_issues (
	id                    TEXT PRIMARY KEY,
	target_attribute_id   TEXT NOT NULL REFERENCES target_attributes(id),
	issue_type            TEXT NOT NULL,
	severity              TEXT NOT NULL,
	description           TEXT NOT NULL DEFAULT '',
	affected_record_count INTEGER NOT NULL DEFAULT 0,
	fix_options           TEXT,
	detected_at           DATETIME NOT NULL,
	resolved_at           DATETIME
);

CREATE TABLE IF NOT EXISTS metrics_snapshots (
	id                  TEXT PRIMARY KEY,
	target_attribute_id TEXT NOT NULL REFERENCES target_attributes(id),
	metrics             TEXT NOT NULL,
	measured_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS materialized_records (
	target_attribute_id TEXT NOT NULL REFERENCES target_attributes(id),
	record_key          TEXT NOT NULL,
	value               TEXT,
	updated_at          DATETIME NOT NULL,
	PRIMARY KEY (target_attribute_id, record_key)
);

CREATE INDEX IF NOT EXISTS idx_source_attributes_system ON source_attributes(source_system_id);
CREATE INDEX IF NOT EXISTS idx_target_attributes_category ON target_attributes(category);
CREATE INDEX IF NOT EXISTS idx_mappings_source ON mappings(source_attribute_id);
CREATE INDEX IF NOT EXISTS idx_mappings_target ON mappings(target_attribute_id);
CREATE INDEX IF NOT EXISTS idx_mappings_status ON mappings(status);
CREATE INDEX IF NOT EXISTS idx_validation_runs_mapping ON validation_runs(mapping_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs(source_system_id);
CREATE INDEX IF NOT EXISTS idx_job_steps_job ON job_steps(job_id);
CREATE INDEX IF NOT EXISTS idx_job_logs_job ON job_logs(job_id);
CREATE INDEX IF NOT EXISTS idx_quality_issues_target ON quality_issues(target_attribute_id);
CREATE INDEX IF NOT EXISTS idx_metrics_snapshots_target ON metrics_snapshots(target_attribute_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Source registry

func (s *SQLiteStore) CreateSourceSystem(ctx context.Context, src *model.SourceSystem) error {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	src.Active = true
	src.CreatedAt = now
	src.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_systems (id, name, description, owner, active, degraded, last_scan_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, 0, '', ?, ?)`,
		src.ID, src.Name, src.Description, src.Owner, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewValidationError("name", "a source system with this name already exists")
		}
		return eris.Wrap(err, "sqlite: insert source system")
	}
	return nil
}

func (s *SQLiteStore) GetSourceSystem(ctx context.Context, id string) (*model.SourceSystem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, owner, active, degraded, last_scan_error, last_scanned_at, created_at, updated_at
		 FROM source_systems WHERE id = ?`, id)
	return scanSourceSystem(row)
}

func (s *SQLiteStore) ListSourceSystems(ctx context.Context) ([]model.SourceSystem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, owner, active, degraded, last_scan_error, last_scanned_at, created_at, updated_at
		 FROM source_systems ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list source systems")
	}
	defer rows.Close()

	var out []model.SourceSystem
	for rows.Next() {
		sys, err := scanSourceSystem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sys)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list source systems iterate")
}

func (s *SQLiteStore) DeactivateSourceSystem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE source_systems SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate source system %s", id)
	}
	return checkRowsAffected(res, "source system", id)
}

func (s *SQLiteStore) ReplaceSourceAttributes(ctx context.Context, sourceSystemID string, attrs []model.SourceAttribute) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace attributes")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE source_systems SET degraded = 0, last_scan_error = '', last_scanned_at = ?, updated_at = ? WHERE id = ?`,
		now, now, sourceSystemID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: stamp scan %s", sourceSystemID)
	}
	if err := checkRowsAffected(res, "source system", sourceSystemID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM source_attributes WHERE source_system_id = ?`, sourceSystemID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: clear attributes %s", sourceSystemID)
	}

	for i := range attrs {
		if attrs[i].ID == "" {
			attrs[i].ID = uuid.New().String()
		}
		attrs[i].SourceSystemID = sourceSystemID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO source_attributes (id, source_system_id, name, data_type) VALUES (?, ?, ?, ?)`,
			attrs[i].ID, sourceSystemID, attrs[i].Name, string(attrs[i].DataType),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert attribute %s", attrs[i].Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace attributes")
}

func (s *SQLiteStore) MarkSourceDegraded(ctx context.Context, sourceSystemID string, scanErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE source_systems SET degraded = 1, last_scan_error = ?, updated_at = ? WHERE id = ?`,
		scanErr, time.Now().UTC(), sourceSystemID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark degraded %s", sourceSystemID)
	}
	return checkRowsAffected(res, "source system", sourceSystemID)
}

func (s *SQLiteStore) ListSourceAttributes(ctx context.Context, sourceSystemID string) ([]model.SourceAttribute, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_system_id, name, data_type FROM source_attributes
		 WHERE source_system_id = ? ORDER BY name`, sourceSystemID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list source attributes")
	}
	defer rows.Close()

	var out []model.SourceAttribute
	for rows.Next() {
		var a model.SourceAttribute
		if err := rows.Scan(&a.ID, &a.SourceSystemID, &a.Name, &a.DataType); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source attribute")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list source attributes iterate")
}

func (s *SQLiteStore) GetSourceAttribute(ctx context.Context, id string) (*model.SourceAttribute, error) {
	var a model.SourceAttribute
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_system_id, name, data_type FROM source_attributes WHERE id = ?`, id,
	).Scan(&a.ID, &a.SourceSystemID, &a.Name, &a.DataType)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get source attribute")
	}
	return &a, nil
}

// Attribute catalog

func (s *SQLiteStore) CreateTargetAttribute(ctx context.Context, a *model.TargetAttribute) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO target_attributes (id, name, display_name, category, data_type, required, pii, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.DisplayName, a.Category, string(a.DataType), a.Required, a.PII, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewValidationError("name", "a target attribute with this name already exists")
		}
		return eris.Wrap(err, "sqlite: insert target attribute")
	}
	return nil
}

func (s *SQLiteStore) GetTargetAttribute(ctx context.Context, id string) (*model.TargetAttribute, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, display_name, category, data_type, required, pii, created_at
		 FROM target_attributes WHERE id = ?`, id)
	return scanTargetAttribute(row)
}

func (s *SQLiteStore) ListTargetAttributes(ctx context.Context, category string) ([]model.TargetAttribute, error) {
	query := `SELECT id, name, display_name, category, data_type, required, pii, created_at
		 FROM target_attributes WHERE 1=1`
	var args []any
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list target attributes")
	}
	defer rows.Close()

	var out []model.TargetAttribute
	for rows.Next() {
		a, err := scanTargetAttribute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list target attributes iterate")
}

// Mappings

func (s *SQLiteStore) CreateMapping(ctx context.Context, m *model.Mapping) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = model.MappingPending
	}
	if m.SuggestedConfidence == 0 {
		m.SuggestedConfidence = m.ConfidenceScore
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mappings (id, source_attribute_id, target_attribute_id, transformation_logic, status, confidence_score, suggested_confidence, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SourceAttributeID, m.TargetAttributeID, m.TransformationLogic,
		string(m.Status), m.ConfidenceScore, m.SuggestedConfidence, m.CreatedBy, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewValidationError("source_attribute_id", "this source attribute is already mapped to the target")
		}
		return eris.Wrap(err, "sqlite: insert mapping")
	}
	return nil
}

func (s *SQLiteStore) GetMapping(ctx context.Context, id string) (*model.Mapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_attribute_id, target_attribute_id, transformation_logic, status, confidence_score, suggested_confidence, created_by, created_at, updated_at
		 FROM mappings WHERE id = ?`, id)
	return scanMapping(row)
}

func (s *SQLiteStore) ListMappings(ctx context.Context, filter MappingFilter) ([]model.Mapping, error) {
	query := `SELECT m.id, m.source_attribute_id, m.target_attribute_id, m.transformation_logic, m.status, m.confidence_score, m.suggested_confidence, m.created_by, m.created_at, m.updated_at
		 FROM mappings m`
	var args []any

	if filter.SourceSystemID != "" {
		query += ` JOIN source_attributes sa ON sa.id = m.source_attribute_id`
	}
	query += ` WHERE 1=1`
	if filter.SourceSystemID != "" {
		query += ` AND sa.source_system_id = ?`
		args = append(args, filter.SourceSystemID)
	}
	if filter.TargetAttributeID != "" {
		query += ` AND m.target_attribute_id = ?`
		args = append(args, filter.TargetAttributeID)
	}
	if filter.Status != "" {
		query += ` AND m.status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY m.created_at DESC, m.id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mappings")
	}
	defer rows.Close()

	var out []model.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list mappings iterate")
}

func (s *SQLiteStore) UpdateMappingValidation(ctx context.Context, id string, status model.MappingStatus, confidence float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE mappings SET status = ?, confidence_score = ?, updated_at = ? WHERE id = ?`,
		string(status), confidence, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update mapping validation %s", id)
	}
	return checkRowsAffected(res, "mapping", id)
}

func (s *SQLiteStore) MappingStats(ctx context.Context) (*model.MappingStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM mappings GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: mapping stats")
	}
	defer rows.Close()

	stats := &model.MappingStats{ByStatus: map[model.MappingStatus]int{}}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mapping stats")
		}
		stats.ByStatus[model.MappingStatus(status)] = n
		stats.Total += n
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: mapping stats iterate")
}

func (s *SQLiteStore) AppendValidationRun(ctx context.Context, run *model.ValidationRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.RanAt.IsZero() {
		run.RanAt = time.Now().UTC()
	}

	issuesJSON, err := json.Marshal(run.Issues)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal validation issues")
	}
	samplesJSON, err := json.Marshal(run.Samples)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal validation samples")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO validation_runs (id, mapping_id, confidence, status, issues, samples, ran_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.MappingID, run.Confidence, string(run.Status),
		string(issuesJSON), string(samplesJSON), run.RanAt,
	)
	return eris.Wrap(err, "sqlite: insert validation run")
}

func (s *SQLiteStore) ListValidationRuns(ctx context.Context, mappingID string) ([]model.ValidationRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mapping_id, confidence, status, issues, samples, ran_at
		 FROM validation_runs WHERE mapping_id = ? ORDER BY ran_at DESC, id`, mappingID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list validation runs")
	}
	defer rows.Close()

	var out []model.ValidationRun
	for rows.Next() {
		var r model.ValidationRun
		var status string
		var issuesJSON, samplesJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.MappingID, &r.Confidence, &status, &issuesJSON, &samplesJSON, &r.RanAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan validation run")
		}
		r.Status = model.MappingStatus(status)
		if issuesJSON.Valid && issuesJSON.String != "" {
			if err := json.Unmarshal([]byte(issuesJSON.String), &r.Issues); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal validation issues")
			}
		}
		if samplesJSON.Valid && samplesJSON.String != "" {
			if err := json.Unmarshal([]byte(samplesJSON.String), &r.Samples); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal validation samples")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list validation runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSourceSystem(row scannable) (*model.SourceSystem, error) {
	var sys model.SourceSystem
	var scannedAt sql.NullTime

	err := row.Scan(&sys.ID, &sys.Name, &sys.Description, &sys.Owner, &sys.Active,
		&sys.Degraded, &sys.LastScanError, &scannedAt, &sys.CreatedAt, &sys.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan source system")
	}
	if scannedAt.Valid {
		t := scannedAt.Time
		sys.LastScannedAt = &t
	}
	return &sys, nil
}

func scanTargetAttribute(row scannable) (*model.TargetAttribute, error) {
	var a model.TargetAttribute
	err := row.Scan(&a.ID, &a.Name, &a.DisplayName, &a.Category, &a.DataType,
		&a.Required, &a.PII, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan target attribute")
	}
	return &a, nil
}

func scanMapping(row scannable) (*model.Mapping, error) {
	var m model.Mapping
	var status string
	err := row.Scan(&m.ID, &m.SourceAttributeID, &m.TargetAttributeID, &m.TransformationLogic,
		&status, &m.ConfidenceScore, &m.SuggestedConfidence, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan mapping")
	}
	m.Status = model.MappingStatus(status)
	return &m, nil
}
