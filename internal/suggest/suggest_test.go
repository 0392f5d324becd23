package suggest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid/c360/internal/config"
	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

func newTestEngine(t *testing.T, scorer Scorer) (*Engine, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(t.TempDir() + "/suggest.db")
	require.NoError(t, err)
	t.Cleanup(func() {
		st.Close() //nolint:errcheck
	})
	require.NoError(t, st.Migrate(context.Background()))

	return NewEngine(st, scorer, config.SuggestConfig{MinScore: 0.3}), st
}

func seedCRM(t *testing.T, st store.Store) *model.SourceSystem {
	t.Helper()
	ctx := context.Background()

	src := &model.SourceSystem{Name: "CRM", Owner: "data-eng"}
	require.NoError(t, st.CreateSourceSystem(ctx, src))
	require.NoError(t, st.ReplaceSourceAttributes(ctx, src.ID, []model.SourceAttribute{
		{Name: "cust_id", DataType: model.TypeText},
		{Name: "full_nm", DataType: model.TypeText},
	}))

	for _, tgt := range []*model.TargetAttribute{
		{Name: "customer_id", Category: "identity", DataType: model.TypeText, Required: true},
		{Name: "full_name", Category: "identity", DataType: model.TypeText},
	} {
		require.NoError(t, st.CreateTargetAttribute(ctx, tgt))
	}
	return src
}

func TestSuggest_RanksTypeAndNameMatchFirst(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	src := seedCRM(t, st)

	got, err := eng.Suggest(context.Background(), src.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	// cust_id -> customer_id must outrank cust_id -> full_name.
	rank := map[string]int{}
	for i, s := range got {
		if s.SourceAttribute == "cust_id" {
			rank[s.TargetAttribute] = i + 1
		}
	}
	require.Contains(t, rank, "customer_id")
	if fn, ok := rank["full_name"]; ok {
		assert.Less(t, rank["customer_id"], fn)
	}

	for _, s := range got {
		assert.GreaterOrEqual(t, s.ConfidenceScore, 0.3)
		assert.LessOrEqual(t, s.ConfidenceScore, 1.0)
		assert.Equal(t, ScorerHeuristic, s.Scorer)
		assert.NotEmpty(t, s.TransformationLogic)
	}
}

func TestSuggest_UnknownSourceSystem(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	_, err := eng.Suggest(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSuggest_UnscannedSourceSystem(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	ctx := context.Background()

	src := &model.SourceSystem{Name: "Empty"}
	require.NoError(t, st.CreateSourceSystem(ctx, src))

	_, err := eng.Suggest(ctx, src.ID)
	assert.True(t, model.IsValidationError(err))
}

func TestSuggest_SkipsAlreadyMappedPairs(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	ctx := context.Background()
	src := seedCRM(t, st)

	attrs, err := st.ListSourceAttributes(ctx, src.ID)
	require.NoError(t, err)
	targets, err := st.ListTargetAttributes(ctx, "")
	require.NoError(t, err)
	byName := map[string]string{}
	for _, a := range attrs {
		byName[a.Name] = a.ID
	}
	for _, tgt := range targets {
		byName[tgt.Name] = tgt.ID
	}

	require.NoError(t, st.CreateMapping(ctx, &model.Mapping{
		SourceAttributeID: byName["cust_id"],
		TargetAttributeID: byName["customer_id"],
		ConfidenceScore:   0.9,
	}))

	got, err := eng.Suggest(ctx, src.ID)
	require.NoError(t, err)
	for _, s := range got {
		if s.SourceAttribute == "cust_id" {
			assert.NotEqual(t, "customer_id", s.TargetAttribute)
		}
	}
}

func TestSuggest_Deterministic(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	src := seedCRM(t, st)

	first, err := eng.Suggest(context.Background(), src.ID)
	require.NoError(t, err)
	second, err := eng.Suggest(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

type stubScorer struct {
	score float64
	err   error
	calls int
}

func (s *stubScorer) Score(_ context.Context, _ *model.SourceAttribute, _ *model.TargetAttribute, _ float64) (float64, error) {
	s.calls++
	return s.score, s.err
}

func TestSuggest_EnhancedScorerOverridesConfidence(t *testing.T) {
	sc := &stubScorer{score: 0.95}
	eng, st := newTestEngine(t, sc)
	src := seedCRM(t, st)

	got, err := eng.Suggest(context.Background(), src.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Positive(t, sc.calls)
	for _, s := range got {
		assert.Equal(t, ScorerEnhanced, s.Scorer)
		assert.InDelta(t, 0.95, s.ConfidenceScore, 1e-9)
	}
}

func TestSuggest_HeuristicSkipsConfiguredScorer(t *testing.T) {
	sc := &stubScorer{score: 0.95}
	eng, st := newTestEngine(t, sc)
	src := seedCRM(t, st)

	got, err := eng.SuggestHeuristic(context.Background(), src.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Zero(t, sc.calls)
	for _, s := range got {
		assert.Equal(t, ScorerHeuristic, s.Scorer)
	}
}

func TestSuggest_ScorerFailureFallsBackSilently(t *testing.T) {
	sc := &stubScorer{err: errors.New("api down")}
	eng, st := newTestEngine(t, sc)
	src := seedCRM(t, st)

	got, err := eng.Suggest(context.Background(), src.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, s := range got {
		assert.Equal(t, ScorerHeuristic, s.Scorer)
	}
}

type slowScorer struct{}

func (slowScorer) Score(ctx context.Context, _ *model.SourceAttribute, _ *model.TargetAttribute, _ float64) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(time.Minute):
		return 1, nil
	}
}

func TestSuggest_ScorerTimeoutFallsBack(t *testing.T) {
	eng, st := newTestEngine(t, slowScorer{})
	eng.cfg.EnhancedTimeoutSecs = 1
	src := seedCRM(t, st)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	got, err := eng.Suggest(ctx, src.ID)
	require.NoError(t, err)
	for _, s := range got {
		assert.Equal(t, ScorerHeuristic, s.Scorer)
	}
}

func TestSuggest_CutoffDropsWeakPairs(t *testing.T) {
	eng, st := newTestEngine(t, nil)
	ctx := context.Background()

	src := &model.SourceSystem{Name: "billing"}
	require.NoError(t, st.CreateSourceSystem(ctx, src))
	require.NoError(t, st.ReplaceSourceAttributes(ctx, src.ID, []model.SourceAttribute{
		{Name: "invoice_total", DataType: model.TypeReal},
	}))
	require.NoError(t, st.CreateTargetAttribute(ctx, &model.TargetAttribute{
		Name: "signup_date", DataType: model.TypeDate,
	}))

	got, err := eng.Suggest(ctx, src.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHeuristicScore(t *testing.T) {
	score := HeuristicScore(
		&model.SourceAttribute{Name: "cust_id", DataType: model.TypeText},
		&model.TargetAttribute{Name: "customer_id", DataType: model.TypeText},
	)
	// Shares "id" out of {cust, id, customer}; exact type match.
	assert.InDelta(t, 1.0/3.0, score, 1e-9)

	mismatched := HeuristicScore(
		&model.SourceAttribute{Name: "cust_id", DataType: model.TypeDate},
		&model.TargetAttribute{Name: "customer_id", DataType: model.TypeInteger},
	)
	assert.Less(t, mismatched, score)
}

func TestTokenize(t *testing.T) {
	cases := map[string][]string{
		"cust_id":       {"cust", "id"},
		"custEmail":     {"cust", "email"},
		"CUST-EMAIL":    {"cust", "email"},
		"Signup Date":   {"signup", "date"},
		"HTTPStatus":    {"http", "status"},
		"customer.name": {"customer", "name"},
	}
	for in, want := range cases {
		assert.Equal(t, want, tokenize(in), in)
	}
}
