package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid/c360/internal/model"
)

func strptr(s string) *string { return &s }

func seedMaterialized(t *testing.T, st *SQLiteStore, attrID string, values map[string]*string) {
	t.Helper()
	var records []model.MaterializedRecord
	for key, v := range values {
		records = append(records, model.MaterializedRecord{RecordKey: key, Value: v})
	}
	require.NoError(t, st.ReplaceMaterialized(context.Background(), attrID, records))
}

func TestSQLite_MaterializedCounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tgt := seedTargetAttribute(t, st, "email", model.TypeText)
	seedMaterialized(t, st, tgt.ID, map[string]*string{
		"r1": strptr("a@x.com"),
		"r2": nil,
		"r3": strptr("b@x.com"),
		"r4": nil,
	})

	total, nulls, err := st.MaterializedCounts(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, nulls)
}

func TestSQLite_DuplicateRecordCount(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tgt := seedTargetAttribute(t, st, "email", model.TypeText)
	seedMaterialized(t, st, tgt.ID, map[string]*string{
		"r1": strptr("a@x.com"),
		"r2": strptr("a@x.com"),
		"r3": strptr("a@x.com"),
		"r4": strptr("b@x.com"),
		"r5": nil,
	})

	dupes, err := st.DuplicateRecordCount(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, dupes)
}

func TestSQLite_FillNullValues(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tgt := seedTargetAttribute(t, st, "email", model.TypeText)
	seedMaterialized(t, st, tgt.ID, map[string]*string{
		"r1": strptr("a@x.com"),
		"r2": nil,
		"r3": nil,
	})

	n, changes, err := st.FillNullValues(ctx, tgt.ID, "unknown", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, changes, 2)

	// Idempotent: a second apply touches nothing.
	n, changes, err = st.FillNullValues(ctx, tgt.ID, "unknown", time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, changes)

	_, nulls, err := st.MaterializedCounts(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Zero(t, nulls)
}

func TestSQLite_DeduplicateKeepRecent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tgt := seedTargetAttribute(t, st, "email", model.TypeText)
	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()
	require.NoError(t, st.ReplaceMaterialized(ctx, tgt.ID, []model.MaterializedRecord{
		{RecordKey: "r1", Value: strptr("a@x.com"), UpdatedAt: older},
		{RecordKey: "r2", Value: strptr("a@x.com"), UpdatedAt: newer},
		{RecordKey: "r3", Value: strptr("b@x.com"), UpdatedAt: older},
	}))

	n, changes, err := st.DeduplicateKeepRecent(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, changes, 1)
	assert.Equal(t, "r1", changes[0].RecordKey)

	records, err := st.ListMaterialized(ctx, tgt.ID, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSQLite_TrimValues(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tgt := seedTargetAttribute(t, st, "email", model.TypeText)
	seedMaterialized(t, st, tgt.ID, map[string]*string{
		"r1": strptr("  a@x.com "),
		"r2": strptr("b@x.com"),
	})

	n, changes, err := st.TrimValues(ctx, tgt.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, changes, 1)
	assert.Equal(t, "a@x.com", changes[0].After)
}

func TestSQLite_UpsertMaterialized(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tgt := seedTargetAttribute(t, st, "email", model.TypeText)
	require.NoError(t, st.UpsertMaterialized(ctx, []model.MaterializedRecord{
		{TargetAttributeID: tgt.ID, RecordKey: "r1", Value: strptr("old@x.com")},
	}))
	require.NoError(t, st.UpsertMaterialized(ctx, []model.MaterializedRecord{
		{TargetAttributeID: tgt.ID, RecordKey: "r1", Value: strptr("new@x.com")},
		{TargetAttributeID: tgt.ID, RecordKey: "r2", Value: nil},
	}))

	records, err := st.ListMaterialized(ctx, tgt.ID, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new@x.com", *records[0].Value)
	assert.Nil(t, records[1].Value)
}

// --- Quality issues ---

func TestSQLite_QualityIssue_UpsertReplacesOpen(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tgt := seedTargetAttribute(t, st, "email", model.TypeText)
	first := &model.QualityIssue{
		TargetAttributeID:   tgt.ID,
		Type:                model.IssueCompleteness,
		Severity:            model.SeverityMedium,
		Description:         "12% of records are null",
		AffectedRecordCount: 12,
		FixOptions: []model.FixOption{{
			Type:       model.FixFillDefault,
			Name:       "Fill with default",
			Parameters: map[string]string{"default_value": "value written to null records"},
		}},
	}
	require.NoError(t, st.UpsertQualityIssue(ctx, first))

	second := &model.QualityIssue{
		TargetAttributeID:   tgt.ID,
		Type:                model.IssueCompleteness,
		Severity:            model.SeverityHigh,
		Description:         "20% of records are null",
		AffectedRecordCount: 20,
	}
	require.NoError(t, st.UpsertQualityIssue(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	open, err := st.ListQualityIssues(ctx, IssueFilter{TargetAttributeID: tgt.ID, UnresolvedOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, model.SeverityHigh, open[0].Severity)
	assert.Equal(t, 20, open[0].AffectedRecordCount)
}

func TestSQLite_QualityIssue_ResolveThenRedetect(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tgt := seedTargetAttribute(t, st, "email", model.TypeText)
	iss := &model.QualityIssue{TargetAttributeID: tgt.ID, Type: model.IssueConsistency, Severity: model.SeverityLow}
	require.NoError(t, st.UpsertQualityIssue(ctx, iss))
	require.NoError(t, st.ResolveQualityIssue(ctx, iss.ID, time.Now().UTC()))

	got, err := st.GetQualityIssue(ctx, iss.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved())

	// Resolving again keeps the original stamp.
	stamp := *got.ResolvedAt
	require.NoError(t, st.ResolveQualityIssue(ctx, iss.ID, time.Now().UTC().Add(time.Hour)))
	got, err = st.GetQualityIssue(ctx, iss.ID)
	require.NoError(t, err)
	assert.Equal(t, stamp.Unix(), got.ResolvedAt.Unix())

	// Re-detection opens a fresh issue instead of reopening.
	again := &model.QualityIssue{TargetAttributeID: tgt.ID, Type: model.IssueConsistency, Severity: model.SeverityLow}
	require.NoError(t, st.UpsertQualityIssue(ctx, again))
	assert.NotEqual(t, iss.ID, again.ID)
}

func TestSQLite_MetricsSnapshots_History(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tgt := seedTargetAttribute(t, st, "email", model.TypeText)
	m := model.QualityMetrics{Completeness: 0.9, Uniqueness: 1, Consistency: 1, Accuracy: 0.8, Timeliness: 1, RecordCount: 100}
	m.ComputeOverall()
	require.NoError(t, st.AppendMetricsSnapshot(ctx, &model.MetricsSnapshot{TargetAttributeID: tgt.ID, Metrics: m}))

	snaps, err := st.ListMetricsSnapshots(ctx, tgt.ID, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.InDelta(t, 0.94, snaps[0].Metrics.Overall, 1e-9)
}
