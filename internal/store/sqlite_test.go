package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid/c360/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedSourceSystem(t *testing.T, st *SQLiteStore, name string) *model.SourceSystem {
	t.Helper()
	sys := &model.SourceSystem{Name: name, Owner: "data-eng"}
	require.NoError(t, st.CreateSourceSystem(context.Background(), sys))
	return sys
}

func seedTargetAttribute(t *testing.T, st *SQLiteStore, name string, dt model.DataType) *model.TargetAttribute {
	t.Helper()
	a := &model.TargetAttribute{Name: name, DataType: dt, Category: "identity"}
	require.NoError(t, st.CreateTargetAttribute(context.Background(), a))
	return a
}

func seedScannedAttribute(t *testing.T, st *SQLiteStore, sys *model.SourceSystem, name string, dt model.DataType) model.SourceAttribute {
	t.Helper()
	ctx := context.Background()
	attrs, err := st.ListSourceAttributes(ctx, sys.ID)
	require.NoError(t, err)
	attrs = append(attrs, model.SourceAttribute{Name: name, DataType: dt})
	require.NoError(t, st.ReplaceSourceAttributes(ctx, sys.ID, attrs))
	attrs, err = st.ListSourceAttributes(ctx, sys.ID)
	require.NoError(t, err)
	for _, a := range attrs {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("attribute %s not found after scan", name)
	return model.SourceAttribute{}
}

// --- Source registry ---

func TestSQLite_SourceSystem_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")

	got, err := st.GetSourceSystem(ctx, sys.ID)
	require.NoError(t, err)
	assert.Equal(t, "crm", got.Name)
	assert.True(t, got.Active)
	assert.False(t, got.Degraded)
	assert.Nil(t, got.LastScannedAt)
}

func TestSQLite_SourceSystem_DuplicateName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedSourceSystem(t, st, "crm")
	err := st.CreateSourceSystem(ctx, &model.SourceSystem{Name: "crm"})
	assert.True(t, model.IsValidationError(err))
}

func TestSQLite_SourceSystem_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetSourceSystem(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLite_SourceSystem_Deactivate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "billing")
	require.NoError(t, st.DeactivateSourceSystem(ctx, sys.ID))

	got, err := st.GetSourceSystem(ctx, sys.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestSQLite_ReplaceSourceAttributes_Wholesale(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")

	first := []model.SourceAttribute{
		{Name: "cust_email", DataType: model.TypeText},
		{Name: "cust_id", DataType: model.TypeInteger},
	}
	require.NoError(t, st.ReplaceSourceAttributes(ctx, sys.ID, first))

	// A later scan replaces the set wholesale, dropped attributes vanish.
	second := []model.SourceAttribute{
		{Name: "cust_email", DataType: model.TypeText},
		{Name: "signup_date", DataType: model.TypeDate},
	}
	require.NoError(t, st.ReplaceSourceAttributes(ctx, sys.ID, second))

	attrs, err := st.ListSourceAttributes(ctx, sys.ID)
	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.Equal(t, "cust_email", attrs[0].Name)
	assert.Equal(t, "signup_date", attrs[1].Name)

	got, err := st.GetSourceSystem(ctx, sys.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastScannedAt)
}

func TestSQLite_MarkSourceDegraded(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")
	attr := seedScannedAttribute(t, st, sys, "cust_email", model.TypeText)

	require.NoError(t, st.MarkSourceDegraded(ctx, sys.ID, "connection refused"))

	got, err := st.GetSourceSystem(ctx, sys.ID)
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.Equal(t, "connection refused", got.LastScanError)

	// Degraded keeps the last successful attribute set.
	attrs, err := st.ListSourceAttributes(ctx, sys.ID)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, attr.ID, attrs[0].ID)
}

// --- Attribute catalog ---

func TestSQLite_TargetAttribute_CreateListByCategory(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedTargetAttribute(t, st, "email", model.TypeText)
	a := &model.TargetAttribute{Name: "lifetime_value", DataType: model.TypeReal, Category: "commerce"}
	require.NoError(t, st.CreateTargetAttribute(ctx, a))

	all, err := st.ListTargetAttributes(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	commerce, err := st.ListTargetAttributes(ctx, "commerce")
	require.NoError(t, err)
	require.Len(t, commerce, 1)
	assert.Equal(t, "lifetime_value", commerce[0].Name)
}

// --- Mappings ---

func TestSQLite_Mapping_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")
	src := seedScannedAttribute(t, st, sys, "cust_email", model.TypeText)
	tgt := seedTargetAttribute(t, st, "email", model.TypeText)

	m := &model.Mapping{SourceAttributeID: src.ID, TargetAttributeID: tgt.ID, TransformationLogic: "cust_email", ConfidenceScore: 0.8}
	require.NoError(t, st.CreateMapping(ctx, m))

	got, err := st.GetMapping(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MappingPending, got.Status)
	assert.Equal(t, src.ID, got.SourceAttributeID)
	// Suggestion-time score is fixed at creation and survives validation updates.
	assert.InDelta(t, 0.8, got.SuggestedConfidence, 1e-9)

	require.NoError(t, st.UpdateMappingValidation(ctx, m.ID, model.MappingValidated, 0.95))
	got, err = st.GetMapping(ctx, m.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, got.ConfidenceScore, 1e-9)
	assert.InDelta(t, 0.8, got.SuggestedConfidence, 1e-9)
}

func TestSQLite_Mapping_DuplicatePairRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")
	src := seedScannedAttribute(t, st, sys, "cust_email", model.TypeText)
	tgt := seedTargetAttribute(t, st, "email", model.TypeText)

	require.NoError(t, st.CreateMapping(ctx, &model.Mapping{SourceAttributeID: src.ID, TargetAttributeID: tgt.ID}))
	err := st.CreateMapping(ctx, &model.Mapping{SourceAttributeID: src.ID, TargetAttributeID: tgt.ID})
	assert.True(t, model.IsValidationError(err))
}

func TestSQLite_Mapping_FanInAllowed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	crm := seedSourceSystem(t, st, "crm")
	billing := seedSourceSystem(t, st, "billing")
	a1 := seedScannedAttribute(t, st, crm, "cust_email", model.TypeText)
	a2 := seedScannedAttribute(t, st, billing, "contact_email", model.TypeText)
	tgt := seedTargetAttribute(t, st, "email", model.TypeText)

	require.NoError(t, st.CreateMapping(ctx, &model.Mapping{SourceAttributeID: a1.ID, TargetAttributeID: tgt.ID}))
	require.NoError(t, st.CreateMapping(ctx, &model.Mapping{SourceAttributeID: a2.ID, TargetAttributeID: tgt.ID}))

	got, err := st.ListMappings(ctx, MappingFilter{TargetAttributeID: tgt.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLite_Mapping_FilterBySourceSystem(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	crm := seedSourceSystem(t, st, "crm")
	billing := seedSourceSystem(t, st, "billing")
	a1 := seedScannedAttribute(t, st, crm, "cust_email", model.TypeText)
	a2 := seedScannedAttribute(t, st, billing, "contact_email", model.TypeText)
	tgt := seedTargetAttribute(t, st, "email", model.TypeText)

	require.NoError(t, st.CreateMapping(ctx, &model.Mapping{SourceAttributeID: a1.ID, TargetAttributeID: tgt.ID}))
	require.NoError(t, st.CreateMapping(ctx, &model.Mapping{SourceAttributeID: a2.ID, TargetAttributeID: tgt.ID}))

	got, err := st.ListMappings(ctx, MappingFilter{SourceSystemID: billing.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a2.ID, got[0].SourceAttributeID)
}

func TestSQLite_Mapping_UpdateValidationAndStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")
	src := seedScannedAttribute(t, st, sys, "cust_email", model.TypeText)
	tgt := seedTargetAttribute(t, st, "email", model.TypeText)

	m := &model.Mapping{SourceAttributeID: src.ID, TargetAttributeID: tgt.ID}
	require.NoError(t, st.CreateMapping(ctx, m))
	require.NoError(t, st.UpdateMappingValidation(ctx, m.ID, model.MappingValidated, 0.92))

	got, err := st.GetMapping(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MappingValidated, got.Status)
	assert.InDelta(t, 0.92, got.ConfidenceScore, 1e-9)

	stats, err := st.MappingStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[model.MappingValidated])
}

func TestSQLite_ValidationRuns_AppendOnly(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")
	src := seedScannedAttribute(t, st, sys, "cust_email", model.TypeText)
	tgt := seedTargetAttribute(t, st, "email", model.TypeText)
	m := &model.Mapping{SourceAttributeID: src.ID, TargetAttributeID: tgt.ID}
	require.NoError(t, st.CreateMapping(ctx, m))

	require.NoError(t, st.AppendValidationRun(ctx, &model.ValidationRun{
		MappingID:  m.ID,
		Confidence: 0.5,
		Status:     model.MappingIssues,
		Issues:     []string{"3 of 10 samples errored"},
		Samples:    []model.SampleResult{{Input: "x", Error: "bad integer"}},
		RanAt:      time.Now().UTC().Add(-time.Minute),
	}))
	require.NoError(t, st.AppendValidationRun(ctx, &model.ValidationRun{
		MappingID:  m.ID,
		Confidence: 0.95,
		Status:     model.MappingValidated,
	}))

	runs, err := st.ListValidationRuns(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first, older runs retained.
	assert.Equal(t, model.MappingValidated, runs[0].Status)
	assert.Equal(t, model.MappingIssues, runs[1].Status)
	assert.Equal(t, []string{"3 of 10 samples errored"}, runs[1].Issues)
}

// --- Jobs ---

func TestSQLite_Job_CreateGetWithSteps(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")
	j := &model.Job{Name: "nightly load", Type: model.JobFullLoad, SourceSystemID: sys.ID}
	require.NoError(t, st.CreateJob(ctx, j))
	require.NoError(t, st.CreateJobSteps(ctx, j.ID, []model.JobStep{
		{Name: "extract", Order: 1},
		{Name: "transform", Order: 2},
		{Name: "load", Order: 3},
	}))

	got, err := st.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobQueued, got.Status)
	require.Len(t, got.Steps, 3)
	assert.Equal(t, "extract", got.Steps[0].Name)
	assert.Equal(t, model.StepPending, got.Steps[0].Status)
}

func TestSQLite_Job_CompareAndSetStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")
	j := &model.Job{Name: "load", Type: model.JobFullLoad, SourceSystemID: sys.ID}
	require.NoError(t, st.CreateJob(ctx, j))

	ok, err := st.CompareAndSetJobStatus(ctx, j.ID, model.JobQueued, model.JobRunning)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second transition from queued loses the race.
	ok, err = st.CompareAndSetJobStatus(ctx, j.ID, model.JobQueued, model.JobCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := st.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestSQLite_Job_FinishAndStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")
	j1 := &model.Job{Name: "a", Type: model.JobFullLoad, SourceSystemID: sys.ID}
	j2 := &model.Job{Name: "b", Type: model.JobIncremental, SourceSystemID: sys.ID}
	require.NoError(t, st.CreateJob(ctx, j1))
	require.NoError(t, st.CreateJob(ctx, j2))

	_, err := st.CompareAndSetJobStatus(ctx, j1.ID, model.JobQueued, model.JobRunning)
	require.NoError(t, err)
	require.NoError(t, st.FinishJob(ctx, j1.ID, model.JobCompleted, "120 records", ""))

	stats, err := st.JobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, stats.Total, stats.Queued+stats.Running+stats.Completed+stats.Failed+stats.Cancelled)
	assert.Equal(t, 1, stats.ByType[model.JobFullLoad])
}

func TestSQLite_Job_Logs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")
	j := &model.Job{Name: "load", Type: model.JobFullLoad, SourceSystemID: sys.ID}
	require.NoError(t, st.CreateJob(ctx, j))

	require.NoError(t, st.AppendJobLog(ctx, &model.JobLog{JobID: j.ID, Level: "info", Message: "starting"}))
	require.NoError(t, st.AppendJobLog(ctx, &model.JobLog{JobID: j.ID, Level: "error", Message: "row 17 rejected"}))

	logs, err := st.ListJobLogs(ctx, j.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "starting", logs[0].Message)
}

func TestSQLite_LatestJobForSource(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")

	latest, err := st.LatestJobForSource(ctx, sys.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	j := &model.Job{Name: "load", Type: model.JobFullLoad, SourceSystemID: sys.ID}
	require.NoError(t, st.CreateJob(ctx, j))

	latest, err = st.LatestJobForSource(ctx, sys.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, j.ID, latest.ID)
}

func TestSQLite_ScheduledJob_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sys := seedSourceSystem(t, st, "crm")
	sj := &model.ScheduledJob{Name: "nightly", Type: model.JobFullLoad, SourceSystemID: sys.ID, Interval: model.ScheduleDaily, Enabled: true}
	require.NoError(t, st.CreateScheduledJob(ctx, sj))

	listed, err := st.ListScheduledJobs(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].LastRunAt)

	ranAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.SetScheduledJobLastRun(ctx, sj.ID, ranAt))

	listed, err = st.ListScheduledJobs(ctx)
	require.NoError(t, err)
	require.NotNil(t, listed[0].LastRunAt)

	require.NoError(t, st.DeleteScheduledJob(ctx, sj.ID))
	err = st.DeleteScheduledJob(ctx, sj.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
