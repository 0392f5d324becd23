package quality

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid/c360/internal/config"
	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(t.TempDir() + "/quality.db")
	require.NoError(t, err)
	t.Cleanup(func() {
		st.Close() //nolint:errcheck
	})
	require.NoError(t, st.Migrate(context.Background()))

	eng := NewEngine(st, config.QualityConfig{
		NullRateThreshold:      0.05,
		DuplicateRateThreshold: 0.02,
		FormatFailureThreshold: 0.05,
		StaleSLAHours:          48,
		FixMaxAttempts:         3,
	})
	return eng, st
}

func strptr(s string) *string { return &s }

func seedAttribute(t *testing.T, st store.Store, name string, dt model.DataType) *model.TargetAttribute {
	t.Helper()
	tgt := &model.TargetAttribute{Name: name, DataType: dt}
	require.NoError(t, st.CreateTargetAttribute(context.Background(), tgt))
	return tgt
}

func seedRecords(t *testing.T, st store.Store, attrID string, values []*string) {
	t.Helper()
	now := time.Now().UTC()
	records := make([]model.MaterializedRecord, len(values))
	for i, v := range values {
		records[i] = model.MaterializedRecord{
			TargetAttributeID: attrID,
			RecordKey:         "r" + string(rune('0'+i)),
			Value:             v,
			UpdatedAt:         now,
		}
	}
	require.NoError(t, st.ReplaceMaterialized(context.Background(), attrID, records))
}

func TestComputeMetrics_CleanData(t *testing.T) {
	eng, st := newTestEngine(t)
	tgt := seedAttribute(t, st, "customer_id", model.TypeText)
	seedRecords(t, st, tgt.ID, []*string{strptr("C1"), strptr("C2"), strptr("C3"), strptr("C4")})

	m, err := eng.ComputeMetrics(context.Background(), tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, m.RecordCount)
	assert.InDelta(t, 1.0, m.Completeness, 1e-9)
	assert.InDelta(t, 1.0, m.Uniqueness, 1e-9)
	assert.InDelta(t, 1.0, m.Consistency, 1e-9)
	assert.InDelta(t, 1.0, m.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, m.Timeliness, 1e-9)
	assert.InDelta(t, 1.0, m.Overall, 1e-9)
}

func TestComputeMetrics_Dimensions(t *testing.T) {
	eng, st := newTestEngine(t)
	tgt := seedAttribute(t, st, "age", model.TypeInteger)
	// 1 null of 5; one duplicate pair; "abc" violates the integer type.
	seedRecords(t, st, tgt.ID, []*string{
		strptr("30"), strptr("30"), strptr("abc"), strptr("41"), nil,
	})

	m, err := eng.ComputeMetrics(context.Background(), tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, m.RecordCount)
	assert.InDelta(t, 0.8, m.Completeness, 1e-9)
	assert.InDelta(t, 0.75, m.Uniqueness, 1e-9) // 1 dup of 4 non-null
	assert.InDelta(t, 0.75, m.Consistency, 1e-9)
	assert.InDelta(t, (m.Completeness+m.Uniqueness+m.Consistency+m.Accuracy+m.Timeliness)/5, m.Overall, 1e-9)
}

func TestComputeMetrics_EmptyAttribute(t *testing.T) {
	eng, st := newTestEngine(t)
	tgt := seedAttribute(t, st, "empty", model.TypeText)

	m, err := eng.ComputeMetrics(context.Background(), tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, m.RecordCount)
	assert.Zero(t, m.Overall)
}

func TestComputeMetrics_AppendsHistory(t *testing.T) {
	eng, st := newTestEngine(t)
	tgt := seedAttribute(t, st, "customer_id", model.TypeText)
	seedRecords(t, st, tgt.ID, []*string{strptr("C1")})

	_, err := eng.ComputeMetrics(context.Background(), tgt.ID)
	require.NoError(t, err)
	_, err = eng.ComputeMetrics(context.Background(), tgt.ID)
	require.NoError(t, err)

	history, err := eng.History(context.Background(), tgt.ID, time.Time{})
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestComputeMetrics_StaleData(t *testing.T) {
	eng, st := newTestEngine(t)
	tgt := seedAttribute(t, st, "customer_id", model.TypeText)
	seedRecords(t, st, tgt.ID, []*string{strptr("C1")})

	// Pretend four days have passed since the records were written.
	eng.now = func() time.Time { return time.Now().UTC().Add(96 * time.Hour) }

	m, err := eng.ComputeMetrics(context.Background(), tgt.ID)
	require.NoError(t, err)
	assert.Less(t, m.Timeliness, 1.0)
	assert.InDelta(t, 0.5, m.Timeliness, 0.01) // 48h SLA over 96h age
}

func TestDetectIssues_NullRate(t *testing.T) {
	eng, st := newTestEngine(t)
	tgt := seedAttribute(t, st, "customer_id", model.TypeText)
	// 20% nulls against a 5% threshold.
	seedRecords(t, st, tgt.ID, []*string{
		strptr("C1"), strptr("C2"), strptr("C3"), strptr("C4"), nil,
	})

	issues, err := eng.DetectIssues(context.Background(), tgt.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	issue := issues[0]
	assert.Equal(t, model.IssueCompleteness, issue.Type)
	assert.Equal(t, 1, issue.AffectedRecordCount)
	assert.Equal(t, model.SeverityHigh, issue.Severity)
	require.Len(t, issue.FixOptions, 1)
	assert.Equal(t, model.FixFillDefault, issue.FixOptions[0].Type)
}

func TestDetectIssues_RedetectionReusesOpenIssue(t *testing.T) {
	eng, st := newTestEngine(t)
	tgt := seedAttribute(t, st, "customer_id", model.TypeText)
	seedRecords(t, st, tgt.ID, []*string{strptr("C1"), nil})

	first, err := eng.DetectIssues(context.Background(), tgt.ID)
	require.NoError(t, err)
	second, err := eng.DetectIssues(context.Background(), tgt.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)

	open, err := st.ListQualityIssues(context.Background(), store.IssueFilter{UnresolvedOnly: true})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestApplyFix_FillDefaultResolvesCompleteness(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	tgt := seedAttribute(t, st, "customer_id", model.TypeText)
	seedRecords(t, st, tgt.ID, []*string{
		strptr("C1"), strptr("C2"), strptr("C3"), strptr("C4"), nil,
	})

	issues, err := eng.DetectIssues(ctx, tgt.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	result, err := eng.ApplyFix(ctx, issues[0].ID, model.FixFillDefault, map[string]string{"default_value": "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AffectedRecords)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "unknown", result.Changes[0].After)

	// The null is gone, so re-detection reports nothing.
	after, err := eng.DetectIssues(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestApplyFix_ResolvedIssueIsNoOp(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	tgt := seedAttribute(t, st, "customer_id", model.TypeText)
	seedRecords(t, st, tgt.ID, []*string{strptr("C1"), nil})

	issues, err := eng.DetectIssues(ctx, tgt.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	_, err = eng.ApplyFix(ctx, issues[0].ID, model.FixFillDefault, map[string]string{"default_value": "x"})
	require.NoError(t, err)

	again, err := eng.ApplyFix(ctx, issues[0].ID, model.FixFillDefault, map[string]string{"default_value": "x"})
	require.NoError(t, err)
	assert.Zero(t, again.AffectedRecords)
}

func TestApplyFix_MalformedParams(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	tgt := seedAttribute(t, st, "customer_id", model.TypeText)
	seedRecords(t, st, tgt.ID, []*string{strptr("C1"), nil})

	issues, err := eng.DetectIssues(ctx, tgt.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	_, err = eng.ApplyFix(ctx, issues[0].ID, model.FixFillDefault, nil)
	assert.True(t, model.IsValidationError(err))

	// Data untouched: the issue is still open and detectable.
	got, err := st.GetQualityIssue(ctx, issues[0].ID)
	require.NoError(t, err)
	assert.False(t, got.Resolved())
}

func TestApplyFix_UnofferedFixRejected(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	tgt := seedAttribute(t, st, "customer_id", model.TypeText)
	seedRecords(t, st, tgt.ID, []*string{strptr("C1"), nil})

	issues, err := eng.DetectIssues(ctx, tgt.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	_, err = eng.ApplyFix(ctx, issues[0].ID, model.FixDeduplicate, nil)
	assert.True(t, model.IsValidationError(err))
}

func TestApplyFix_UnknownIssue(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.ApplyFix(context.Background(), "nope", model.FixFillDefault, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApplyFix_Deduplicate(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	tgt := seedAttribute(t, st, "email", model.TypeText)

	now := time.Now().UTC()
	require.NoError(t, st.ReplaceMaterialized(ctx, tgt.ID, []model.MaterializedRecord{
		{TargetAttributeID: tgt.ID, RecordKey: "r1", Value: strptr("a@x.com"), UpdatedAt: now.Add(-time.Hour)},
		{TargetAttributeID: tgt.ID, RecordKey: "r2", Value: strptr("a@x.com"), UpdatedAt: now},
		{TargetAttributeID: tgt.ID, RecordKey: "r3", Value: strptr("b@x.com"), UpdatedAt: now},
	}))

	issues, err := eng.DetectIssues(ctx, tgt.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, model.IssueConsistency, issues[0].Type)

	result, err := eng.ApplyFix(ctx, issues[0].ID, model.FixDeduplicate, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AffectedRecords)

	total, _, err := st.MaterializedCounts(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestDetectIssues_StaleDataTimeliness(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	tgt := seedAttribute(t, st, "customer_id", model.TypeText)
	seedRecords(t, st, tgt.ID, []*string{strptr("C1"), strptr("C2")})

	eng.now = func() time.Time { return time.Now().UTC().Add(72 * time.Hour) }

	issues, err := eng.DetectIssues(ctx, tgt.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, model.IssueTimeliness, issues[0].Type)
	assert.Equal(t, 2, issues[0].AffectedRecordCount)

	result, err := eng.ApplyFix(ctx, issues[0].ID, model.FixTouchRefresh, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AffectedRecords)
}

func TestApplyFix_TrimRevalidate(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	tgt := seedAttribute(t, st, "city", model.TypeText)
	seedRecords(t, st, tgt.ID, []*string{
		strptr("  Boston "), strptr("Austin"),
	})

	issues, err := eng.DetectIssues(ctx, tgt.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, model.IssueAccuracy, issues[0].Type)

	result, err := eng.ApplyFix(ctx, issues[0].ID, model.FixTrimRevalidate, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AffectedRecords)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "Boston", result.Changes[0].After)

	after, err := eng.DetectIssues(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Empty(t, after)
}
