package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harborgrid/c360/internal/mapping"
	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/scan"
	"github.com/harborgrid/c360/internal/store"
)

// StepSpec is one step of a job type: a name, its body, and whether a
// failure lets the remaining steps proceed.
type StepSpec struct {
	Name            string
	ContinueOnError bool
	Run             func(ctx context.Context, rt *Runtime) (processed, failed int, err error)
}

// TypeAdapter supplies the ordered step list for one job type.
type TypeAdapter interface {
	Type() model.JobType
	Steps() []StepSpec
}

// Runtime carries shared state across one job's steps.
type Runtime struct {
	store   store.Store
	job     *model.Job
	src     *model.SourceSystem
	adapter scan.Adapter

	extracted []extraction
	staged    map[string][]model.MaterializedRecord // by target attribute id
}

type extraction struct {
	mapping model.Mapping
	attr    *model.SourceAttribute
	values  []string
}

func newRuntime(ctx context.Context, o *Orchestrator, job *model.Job) (*Runtime, error) {
	src, err := o.store.GetSourceSystem(ctx, job.SourceSystemID)
	if err != nil {
		return nil, err
	}
	adapter, err := o.scanReg.Get(o.scanAdapter)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		store:   o.store,
		job:     job,
		src:     src,
		adapter: adapter,
		staged:  map[string][]model.MaterializedRecord{},
	}, nil
}

func (rt *Runtime) logf(level, format string, args ...any) {
	entry := &model.JobLog{
		JobID:     rt.job.ID,
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().UTC(),
	}
	if err := rt.store.AppendJobLog(context.Background(), entry); err != nil {
		zap.L().Warn("job log write failed", zap.String("job_id", rt.job.ID), zap.Error(err))
	}
}

// extract samples values for every validated mapping of the job's source
// system.
func (rt *Runtime) extract(ctx context.Context) (int, int, error) {
	mappings, err := rt.store.ListMappings(ctx, store.MappingFilter{
		SourceSystemID: rt.src.ID,
		Status:         model.MappingValidated,
	})
	if err != nil {
		return 0, 0, err
	}
	if len(mappings) == 0 {
		return 0, 0, fmt.Errorf("no validated mappings for source system %s", rt.src.Name)
	}

	total := 0
	for _, m := range mappings {
		attr, err := rt.store.GetSourceAttribute(ctx, m.SourceAttributeID)
		if err != nil {
			return total, 0, err
		}
		values, err := rt.adapter.Sample(ctx, rt.src, attr, 0)
		if err != nil {
			return total, 0, err
		}
		rt.extracted = append(rt.extracted, extraction{mapping: m, attr: attr, values: values})
		total += len(values)
	}
	return total, 0, nil
}

// transform applies each mapping's transformation to its extracted values
// and stages materialized records. Values that fail to transform count as
// failed records and stage nothing.
func (rt *Runtime) transform(context.Context) (int, int, error) {
	processed, failed := 0, 0
	for _, ex := range rt.extracted {
		logic := ex.mapping.TransformationLogic
		if logic == "" {
			logic = ex.attr.Name
		}
		t, err := mapping.ParseTransform(logic)
		if err != nil {
			return processed, failed, err
		}
		for i, value := range ex.values {
			out, isNull, err := t.Apply(value)
			if err != nil {
				failed++
				continue
			}
			rec := model.MaterializedRecord{
				TargetAttributeID: ex.mapping.TargetAttributeID,
				RecordKey:         fmt.Sprintf("%s:%d", rt.src.Name, i),
				UpdatedAt:         time.Now().UTC(),
			}
			if !isNull {
				rec.Value = &out
			}
			rt.staged[ex.mapping.TargetAttributeID] = append(rt.staged[ex.mapping.TargetAttributeID], rec)
			processed++
		}
	}
	return processed, failed, nil
}

// load replaces each target attribute's materialized data with the staged
// records.
func (rt *Runtime) load(ctx context.Context) (int, int, error) {
	written := 0
	for attrID, records := range rt.staged {
		if err := rt.store.ReplaceMaterialized(ctx, attrID, records); err != nil {
			return written, 0, err
		}
		written += len(records)
	}
	return written, 0, nil
}

// merge upserts the staged records, leaving unmatched existing records in
// place.
func (rt *Runtime) merge(ctx context.Context) (int, int, error) {
	written := 0
	for _, records := range rt.staged {
		if err := rt.store.UpsertMaterialized(ctx, records); err != nil {
			return written, 0, err
		}
		written += len(records)
	}
	return written, 0, nil
}

// rescan refreshes the source system's attribute set through the scan
// adapter.
func (rt *Runtime) rescan(ctx context.Context) (int, int, error) {
	attrs, err := rt.adapter.Scan(ctx, rt.src)
	if err != nil {
		if derr := rt.store.MarkSourceDegraded(ctx, rt.src.ID, err.Error()); derr != nil {
			zap.L().Warn("degrade mark failed", zap.String("source_system", rt.src.Name), zap.Error(derr))
		}
		return 0, 0, err
	}
	if err := rt.store.ReplaceSourceAttributes(ctx, rt.src.ID, attrs); err != nil {
		return 0, 0, err
	}
	return len(attrs), 0, nil
}

// verify re-reads the attribute set as a post-rescan sanity check.
func (rt *Runtime) verify(ctx context.Context) (int, int, error) {
	attrs, err := rt.store.ListSourceAttributes(ctx, rt.src.ID)
	if err != nil {
		return 0, 0, err
	}
	if len(attrs) == 0 {
		return 0, 0, fmt.Errorf("source system %s has no attributes after rescan", rt.src.Name)
	}
	return len(attrs), 0, nil
}

type fullLoadAdapter struct{}

func (fullLoadAdapter) Type() model.JobType { return model.JobFullLoad }

func (fullLoadAdapter) Steps() []StepSpec {
	return []StepSpec{
		{Name: "extract", Run: func(ctx context.Context, rt *Runtime) (int, int, error) { return rt.extract(ctx) }},
		{Name: "transform", Run: func(ctx context.Context, rt *Runtime) (int, int, error) { return rt.transform(ctx) }},
		{Name: "load", Run: func(ctx context.Context, rt *Runtime) (int, int, error) { return rt.load(ctx) }},
	}
}

type incrementalAdapter struct{}

func (incrementalAdapter) Type() model.JobType { return model.JobIncremental }

func (incrementalAdapter) Steps() []StepSpec {
	return []StepSpec{
		{Name: "extract", Run: func(ctx context.Context, rt *Runtime) (int, int, error) { return rt.extract(ctx) }},
		{Name: "transform", Run: func(ctx context.Context, rt *Runtime) (int, int, error) { return rt.transform(ctx) }},
		{Name: "merge", Run: func(ctx context.Context, rt *Runtime) (int, int, error) { return rt.merge(ctx) }},
	}
}

type refreshMetadataAdapter struct{}

func (refreshMetadataAdapter) Type() model.JobType { return model.JobRefreshMetadata }

func (refreshMetadataAdapter) Steps() []StepSpec {
	return []StepSpec{
		{Name: "rescan", Run: func(ctx context.Context, rt *Runtime) (int, int, error) { return rt.rescan(ctx) }},
		{Name: "verify", ContinueOnError: true, Run: func(ctx context.Context, rt *Runtime) (int, int, error) { return rt.verify(ctx) }},
	}
}
