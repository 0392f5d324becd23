package lineage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

type lineageFixture struct {
	assembler *Assembler
	store     store.Store
	target    *model.TargetAttribute
}

func newLineageFixture(t *testing.T) *lineageFixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(t.TempDir() + "/lineage.db")
	require.NoError(t, err)
	t.Cleanup(func() {
		st.Close() //nolint:errcheck
	})
	require.NoError(t, st.Migrate(ctx))

	target := &model.TargetAttribute{Name: "email", DataType: model.TypeText}
	require.NoError(t, st.CreateTargetAttribute(ctx, target))

	return &lineageFixture{assembler: New(st), store: st, target: target}
}

func (f *lineageFixture) addSource(t *testing.T, system, attr, logic string) *model.SourceSystem {
	t.Helper()
	ctx := context.Background()

	src := &model.SourceSystem{Name: system}
	require.NoError(t, f.store.CreateSourceSystem(ctx, src))
	require.NoError(t, f.store.ReplaceSourceAttributes(ctx, src.ID, []model.SourceAttribute{
		{Name: attr, DataType: model.TypeText},
	}))
	attrs, err := f.store.ListSourceAttributes(ctx, src.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.CreateMapping(ctx, &model.Mapping{
		SourceAttributeID:   attrs[0].ID,
		TargetAttributeID:   f.target.ID,
		TransformationLogic: logic,
		Status:              model.MappingValidated,
		ConfidenceScore:     0.9,
	}))
	return src
}

func TestAssemble_UnmappedTarget(t *testing.T) {
	f := newLineageFixture(t)

	_, err := f.assembler.Assemble(context.Background(), f.target.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAssemble_UnknownTarget(t *testing.T) {
	f := newLineageFixture(t)

	_, err := f.assembler.Assemble(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAssemble_DirectMapping(t *testing.T) {
	f := newLineageFixture(t)
	f.addSource(t, "CRM", "email_addr", "")

	g, err := f.assembler.Assemble(context.Background(), f.target.ID)
	require.NoError(t, err)

	// No transformations: just source and target stages.
	require.Len(t, g.Stages, 2)
	require.Len(t, g.Stages[0].Nodes, 1)
	src := g.Stages[0].Nodes[0]
	assert.Equal(t, model.LineageSource, src.Kind)
	assert.Equal(t, "CRM", src.Label)
	require.Len(t, src.Attributes, 1)
	assert.Equal(t, "email_addr", src.Attributes[0].Name)
	assert.Equal(t, model.MappingValidated, src.Attributes[0].MappingStatus)

	tgt := g.Stages[1].Nodes[0]
	assert.Equal(t, model.LineageTarget, tgt.Kind)
	assert.Equal(t, 1, tgt.SourceCount)

	require.Len(t, g.Edges, 1)
	assert.Equal(t, src.ID, g.Edges[0].From)
	assert.Equal(t, tgt.ID, g.Edges[0].To)
}

func TestAssemble_MergesIdenticalTransforms(t *testing.T) {
	f := newLineageFixture(t)
	f.addSource(t, "CRM", "email_raw", "lower(email_raw)")
	f.addSource(t, "Billing", "email_raw", "lower(email_raw)")
	f.addSource(t, "Support", "contact_email", "trim(contact_email)")

	g, err := f.assembler.Assemble(context.Background(), f.target.ID)
	require.NoError(t, err)

	require.Len(t, g.Stages, 3)
	assert.Len(t, g.Stages[0].Nodes, 3)

	// Two distinct transformation texts, identical ones merged.
	transforms := g.Stages[1].Nodes
	require.Len(t, transforms, 2)
	assert.Equal(t, "lower(email_raw)", transforms[0].Label)
	assert.Equal(t, "trim(contact_email)", transforms[1].Label)

	assert.Equal(t, 3, g.Stages[2].Nodes[0].SourceCount)

	// Three source->transform edges plus two transform->target edges.
	assert.Len(t, g.Edges, 5)
}

func TestAssemble_MixedRoutingFromOneSource(t *testing.T) {
	f := newLineageFixture(t)
	ctx := context.Background()

	// One system feeding the target twice: once through a transform, once
	// directly. Both routes must survive in the graph.
	src := &model.SourceSystem{Name: "CRM"}
	require.NoError(t, f.store.CreateSourceSystem(ctx, src))
	require.NoError(t, f.store.ReplaceSourceAttributes(ctx, src.ID, []model.SourceAttribute{
		{Name: "email_raw", DataType: model.TypeText},
		{Name: "email_alt", DataType: model.TypeText},
	}))
	attrs, err := f.store.ListSourceAttributes(ctx, src.ID)
	require.NoError(t, err)
	byName := map[string]string{}
	for _, a := range attrs {
		byName[a.Name] = a.ID
	}
	require.NoError(t, f.store.CreateMapping(ctx, &model.Mapping{
		SourceAttributeID:   byName["email_raw"],
		TargetAttributeID:   f.target.ID,
		TransformationLogic: "lower(email_raw)",
		Status:              model.MappingValidated,
	}))
	require.NoError(t, f.store.CreateMapping(ctx, &model.Mapping{
		SourceAttributeID: byName["email_alt"],
		TargetAttributeID: f.target.ID,
		Status:            model.MappingValidated,
	}))

	g, err := f.assembler.Assemble(ctx, f.target.ID)
	require.NoError(t, err)
	require.Len(t, g.Stages, 3)

	sourceID := "source:" + src.ID
	targetID := "target:" + f.target.ID
	transformID := "transform:lower(email_raw)"
	assert.Contains(t, g.Edges, model.LineageEdge{From: sourceID, To: transformID})
	assert.Contains(t, g.Edges, model.LineageEdge{From: transformID, To: targetID})
	assert.Contains(t, g.Edges, model.LineageEdge{From: sourceID, To: targetID})
	assert.Len(t, g.Edges, 3)
}

func TestAssemble_Pure(t *testing.T) {
	f := newLineageFixture(t)
	f.addSource(t, "CRM", "email_raw", "lower(email_raw)")
	f.addSource(t, "Billing", "bill_email", "")

	first, err := f.assembler.Assemble(context.Background(), f.target.ID)
	require.NoError(t, err)
	second, err := f.assembler.Assemble(context.Background(), f.target.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssemble_SourceNodeCarriesLastJob(t *testing.T) {
	f := newLineageFixture(t)
	ctx := context.Background()
	src := f.addSource(t, "CRM", "email_addr", "")

	job := &model.Job{Name: "nightly", Type: model.JobFullLoad, SourceSystemID: src.ID, Status: model.JobQueued}
	require.NoError(t, f.store.CreateJob(ctx, job))
	require.NoError(t, f.store.FinishJob(ctx, job.ID, model.JobCompleted, "ok", ""))

	g, err := f.assembler.Assemble(ctx, f.target.ID)
	require.NoError(t, err)
	node := g.Stages[0].Nodes[0]
	assert.Equal(t, job.ID, node.LastJobID)
	assert.Equal(t, model.JobCompleted, node.LastJobStatus)
}
