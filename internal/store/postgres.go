package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/harborgrid/c360/internal/db"
	"github.com/harborgrid/c360/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_mapping":        `SELECT id, source_attribute_id, target_attribute_id, transformation_logic, status, confidence_score, suggested_confidence, created_by, created_at, updated_at FROM mappings WHERE id = $1`,
	"get_job":            `SELECT id, name, type, source_system_id, status, created_by, created_at, started_at, ended_at, result_summary, error_message FROM jobs WHERE id = $1`,
	"update_validation":  `UPDATE mappings SET status = $1, confidence_score = $2, updated_at = $3 WHERE id = $4`,
	"append_job_log":     `INSERT INTO job_logs (job_id, level, message, ts) VALUES ($1, $2, $3, $4)`,
	"update_job_step":    `UPDATE job_steps SET status = $1, records_processed = $2, records_failed = $3, error = $4 WHERE id = $5`,
	"materialized_count": `SELECT COUNT(*), COALESCE(SUM(CASE WHEN value IS NULL THEN 1 ELSE 0 END), 0) FROM materialized_records WHERE target_attribute_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS source_systems (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name            TEXT NOT NULL UNIQUE,
	description     TEXT NOT NULL DEFAULT '',
	owner           TEXT NOT NULL DEFAULT '',
	active          BOOLEAN NOT NULL DEFAULT true,
	degraded        BOOLEAN NOT NULL DEFAULT false,
	last_scan_error TEXT NOT NULL DEFAULT '',
	last_scanned_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS source_attributes (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_system_id TEXT NOT NULL REFERENCES source_systems(id),
	name             TEXT NOT NULL,
	data_type        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS target_attributes (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	data_type    TEXT NOT NULL,
	required     BOOLEAN NOT NULL DEFAULT false,
	pii          BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mappings (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_attribute_id  TEXT NOT NULL REFERENCES source_attributes(id),
	target_attribute_id  TEXT NOT NULL REFERENCES target_attributes(id),
	transformation_logic TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'pending',
	confidence_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	suggested_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_by           TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(source_attribute_id, target_attribute_id)
);

CREATE TABLE IF NOT EXISTS validation_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	mapping_id TEXT NOT NULL REFERENCES mappings(id),
	confidence DOUBLE PRECISION NOT NULL,
	status     TEXT NOT NULL,
	issues     JSONB,
	samples    JSONB,
	ran_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS jobs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name             TEXT NOT NULL,
	type             TEXT NOT NULL,
	source_system_id TEXT NOT NULL REFERENCES source_systems(id),
	status           TEXT NOT NULL DEFAULT 'queued',
	created_by       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at       TIMESTAMPTZ,
	ended_at         TIMESTAMPTZ,
	result_summary   TEXT NOT NULL DEFAULT '',
	error_message    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS job_steps (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	ts      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scheduled_jobs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name             TEXT NOT NULL,
	type             TEXT NOT NULL,
	source_system_id TEXT NOT NULL REFERENCES source_systems(id),
	interval         TEXT NOT NULL,
	enabled          BOOLEAN NOT NULL DEFAULT true,
	last_run_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS quality_issues (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	target_attribute_id   TEXT NOT NULL REFERENCES target_attributes(id),
	issue_type            TEXT NOT NULL,
	severity              TEXT NOT NULL,
	description           TEXT NOT NULL DEFAULT '',
	affected_record_count INTEGER NOT NULL DEFAULT 0,
	fix_options           JSONB,
	detected_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at           TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS metrics_snapshots (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	target_attribute_id TEXT NOT NULL REFERENCES target_attributes(id),
	metrics             JSONB NOT NULL,
	measured_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS materialized_records (
	target_attribute_id TEXT NOT NULL REFERENCES target_attributes(id),
	record_key          TEXT NOT NULL,
	value               TEXT,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (target_attribute_id, record_key)
);

CREATE INDEX IF NOT EXISTS idx_source_attributes_system ON source_attributes(source_system_id);
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Source registry

func (s *PostgresStore) CreateSourceSystem(ctx context.Context, src *model.SourceSystem) error {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	src.Active = true
	src.CreatedAt = now
	src.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO source_systems (id, name, description, owner, active, degraded, last_scan_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, true, false, '', $5, $6)`,
		src.ID, src.Name, src.Description, src.Owner, now, now,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return model.NewValidationError("name", "a source system with this name already exists")
		}
		return eris.Wrap(err, "postgres: insert source system")
	}
	return nil
}

func (s *PostgresStore) GetSourceSystem(ctx context.Context, id string) (*model.SourceSystem, error) {
	var sys model.SourceSystem
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, owner, active, degraded, last_scan_error, last_scanned_at, created_at, updated_at
		 FROM source_systems WHERE id = $1`, id,
	).Scan(&sys.ID, &sys.Name, &sys.Description, &sys.Owner, &sys.Active,
		&sys.Degraded, &sys.LastScanError, &sys.LastScannedAt, &sys.CreatedAt, &sys.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get source system")
	}
	return &sys, nil
}

func (s *PostgresStore) ListSourceSystems(ctx context.Context) ([]model.SourceSystem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, owner, active, degraded, last_scan_error, last_scanned_at, created_at, updated_at
		 FROM source_systems ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list source systems")
	}
	defer rows.Close()

	var out []model.SourceSystem
	for rows.Next() {
		var sys model.SourceSystem
		if err := rows.Scan(&sys.ID, &sys.Name, &sys.Description, &sys.Owner, &sys.Active,
			&sys.Degraded, &sys.LastScanError, &sys.LastScannedAt, &sys.CreatedAt, &sys.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source system")
		}
		out = append(out, sys)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list source systems iterate")
}

func (s *PostgresStore) DeactivateSourceSystem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE source_systems SET active = false, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate source system %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "source system %s", id)
	}
	return nil
}

func (s *PostgresStore) ReplaceSourceAttributes(ctx context.Context, sourceSystemID string, attrs []model.SourceAttribute) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace attributes")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE source_systems SET degraded = false, last_scan_error = '', last_scanned_at = $1, updated_at = $2 WHERE id = $3`,
		now, now, sourceSystemID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: stamp scan %s", sourceSystemID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "source system %s", sourceSystemID)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM source_attributes WHERE source_system_id = $1`, sourceSystemID,
	); err != nil {
		return eris.Wrapf(err, "postgres: clear attributes %s", sourceSystemID)
	}

	rows := make([][]any, 0, len(attrs))
	for i := range attrs {
		if attrs[i].ID == "" {
			attrs[i].ID = uuid.New().String()
		}
		attrs[i].SourceSystemID = sourceSystemID
		rows = append(rows, []any{attrs[i].ID, sourceSystemID, attrs[i].Name, string(attrs[i].DataType)})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"source_attributes"},
			[]string{"id", "source_system_id", "name", "data_type"},
			pgx.CopyFromRows(rows)); err != nil {
			return eris.Wrapf(err, "postgres: copy attributes %s", sourceSystemID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace attributes")
}

func (s *PostgresStore) MarkSourceDegraded(ctx context.Context, sourceSystemID string, scanErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE source_systems SET degraded = true, last_scan_error = $1, updated_at = $2 WHERE id = $3`,
		scanErr, time.Now().UTC(), sourceSystemID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark degraded %s", sourceSystemID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "source system %s", sourceSystemID)
	}
	return nil
}

func (s *PostgresStore) ListSourceAttributes(ctx context.Context, sourceSystemID string) ([]model.SourceAttribute, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_system_id, name, data_type FROM source_attributes
		 WHERE source_system_id = $1 ORDER BY name`, sourceSystemID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list source attributes")
	}
	defer rows.Close()

	var out []model.SourceAttribute
	for rows.Next() {
		var a model.SourceAttribute
		if err := rows.Scan(&a.ID, &a.SourceSystemID, &a.Name, &a.DataType); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source attribute")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list source attributes iterate")
}

func (s *PostgresStore) GetSourceAttribute(ctx context.Context, id string) (*model.SourceAttribute, error) {
	var a model.SourceAttribute
	err := s.pool.QueryRow(ctx,
		`SELECT id, source_system_id, name, data_type FROM source_attributes WHERE id = $1`, id,
	).Scan(&a.ID, &a.SourceSystemID, &a.Name, &a.DataType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get source attribute")
	}
	return &a, nil
}

// Attribute catalog

func (s *PostgresStore) CreateTargetAttribute(ctx context.Context, a *model.TargetAttribute) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO target_attributes (id, name, display_name, category, data_type, required, pii, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Name, a.DisplayName, a.Category, string(a.DataType), a.Required, a.PII, a.CreatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return model.NewValidationError("name", "a target attribute with this name already exists")
		}
		return eris.Wrap(err, "postgres: insert target attribute")
	}
	return nil
}

func (s *PostgresStore) GetTargetAttribute(ctx context.Context, id string) (*model.TargetAttribute, error) {
	var a model.TargetAttribute
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, display_name, category, data_type, required, pii, created_at
		 FROM target_attributes WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.DisplayName, &a.Category, &a.DataType, &a.Required, &a.PII, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get target attribute")
	}
	return &a, nil
}

func (s *PostgresStore) ListTargetAttributes(ctx context.Context, category string) ([]model.TargetAttribute, error) {
	query := `SELECT id, name, display_name, category, data_type, required, pii, created_at
		 FROM target_attributes WHERE true`
	args := []any{}
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list target attributes")
	}
	defer rows.Close()

	var out []model.TargetAttribute
	for rows.Next() {
		var a model.TargetAttribute
		if err := rows.Scan(&a.ID, &a.Name, &a.DisplayName, &a.Category, &a.DataType, &a.Required, &a.PII, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan target attribute")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list target attributes iterate")
}

// Mappings

func (s *PostgresStore) CreateMapping(ctx context.Context, m *model.Mapping) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO mappings (id, source_attribute_id, target_attribute_id, transformation_logic, status, confidence_score, suggested_confidence, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.SourceAttributeID, m.TargetAttributeID, m.TransformationLogic,
		string(m.Status), m.ConfidenceScore, m.SuggestedConfidence, m.CreatedBy, now, now,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return model.NewValidationError("source_attribute_id", "this source attribute is already mapped to the target")
		}
		return eris.Wrap(err, "postgres: insert mapping")
	}
	return nil
}

func (s *PostgresStore) GetMapping(ctx context.Context, id string) (*model.Mapping, error) {
	var m model.Mapping
	err := s.pool.QueryRow(ctx,
		`SELECT id, source_attribute_id, target_attribute_id, transformation_logic, status, confidence_score, suggested_confidence, created_by, created_at, updated_at
		 FROM mappings WHERE id = $1`, id,
	).Scan(&m.ID, &m.SourceAttributeID, &m.TargetAttributeID, &m.TransformationLogic,
		&m.Status, &m.ConfidenceScore, &m.SuggestedConfidence, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get mapping")
	}
	return &m, nil
}

func (s *PostgresStore) ListMappings(ctx context.Context, filter MappingFilter) ([]model.Mapping, error) {
	query := `SELECT m.id, m.source_attribute_id, m.target_attribute_id, m.transformation_logic, m.status, m.confidence_score, m.suggested_confidence, m.created_by, m.created_at, m.updated_at
		 FROM mappings m`
	args := []any{}
	argIdx := 1

	if filter.SourceSystemID != "" {
		query += ` JOIN source_attributes sa ON sa.id = m.source_attribute_id`
	}
	query += ` WHERE true`
	if filter.SourceSystemID != "" {
		query += fmt.Sprintf(` AND sa.source_system_id = $%d`, argIdx)
		args = append(args, filter.SourceSystemID)
		argIdx++
	}
	if filter.TargetAttributeID != "" {
		query += fmt.Sprintf(` AND m.target_attribute_id = $%d`, argIdx)
		args = append(args, filter.TargetAttributeID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND m.status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY m.created_at DESC, m.id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mappings")
	}
	defer rows.Close()

	var out []model.Mapping
	for rows.Next() {
		var m model.Mapping
		if err := rows.Scan(&m.ID, &m.SourceAttributeID, &m.TargetAttributeID, &m.TransformationLogic,
			&m.Status, &m.ConfidenceScore, &m.SuggestedConfidence, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mapping")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list mappings iterate")
}

func (s *PostgresStore) UpdateMappingValidation(ctx context.Context, id string, status model.MappingStatus, confidence float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mappings SET status = $1, confidence_score = $2, updated_at = $3 WHERE id = $4`,
		string(status), confidence, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update mapping validation %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "mapping %s", id)
	}
	return nil
}

func (s *PostgresStore) MappingStats(ctx context.Context) (*model.MappingStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM mappings GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: mapping stats")
	}
	defer rows.Close()

	stats := &model.MappingStats{ByStatus: map[model.MappingStatus]int{}}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mapping stats")
		}
		stats.ByStatus[model.MappingStatus(status)] = n
		stats.Total += n
	}
	return stats, eris.Wrap(rows.Err(), "postgres: mapping stats iterate")
}

func (s *PostgresStore) AppendValidationRun(ctx context.Context, run *model.ValidationRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.RanAt.IsZero() {
		run.RanAt = time.Now().UTC()
	}

	issuesJSON, err := json.Marshal(run.Issues)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal validation issues")
	}
	samplesJSON, err := json.Marshal(run.Samples)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal validation samples")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO validation_runs (id, mapping_id, confidence, status, issues, samples, ran_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.MappingID, run.Confidence, string(run.Status), issuesJSON, samplesJSON, run.RanAt,
	)
	return eris.Wrap(err, "postgres: insert validation run")
}

func (s *PostgresStore) ListValidationRuns(ctx context.Context, mappingID string) ([]model.ValidationRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, mapping_id, confidence, status, issues, samples, ran_at
		 FROM validation_runs WHERE mapping_id = $1 ORDER BY ran_at DESC, id`, mappingID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list validation runs")
	}
	defer rows.Close()

	var out []model.ValidationRun
	for rows.Next() {
		var r model.ValidationRun
		var issuesJSON, samplesJSON []byte
		if err := rows.Scan(&r.ID, &r.MappingID, &r.Confidence, &r.Status, &issuesJSON, &samplesJSON, &r.RanAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan validation run")
		}
		if len(issuesJSON) > 0 {
			if err := json.Unmarshal(issuesJSON, &r.Issues); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal validation issues")
			}
		}
		if len(samplesJSON) > 0 {
			if err := json.Unmarshal(samplesJSON, &r.Samples); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal validation samples")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list validation runs iterate")
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
