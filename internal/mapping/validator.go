// Package mapping validates source-to-target mappings against sampled data
// and hosts the transformation mini-language suggestions and validation
// share.
package mapping

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborgrid/c360/internal/config"
	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/resilience"
	"github.com/harborgrid/c360/internal/scan"
	"github.com/harborgrid/c360/internal/store"
)

// Validator runs validation passes over mappings. Writes to any one mapping
// are serialized by id; distinct mappings validate concurrently.
type Validator struct {
	store    store.Store
	adapters *scan.Registry
	cfg      config.ValidateConfig
	locks    resilience.KeyedMutex
}

// NewValidator builds a Validator.
func NewValidator(st store.Store, adapters *scan.Registry, cfg config.ValidateConfig) *Validator {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 100
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.8
	}
	if cfg.ValidationWeight <= 0 {
		cfg.ValidationWeight = 0.7
	}
	return &Validator{store: st, adapters: adapters, cfg: cfg}
}

// Validate runs one validation pass over a mapping: static transformation
// checks, a duplicate-source fan-in check, then sample classification
// through the source system's scan adapter. The mapping's status and
// confidence are updated and an audit run is appended. Re-validating an
// unchanged mapping against unchanged data reproduces the same outcome.
func (v *Validator) Validate(ctx context.Context, mappingID, adapterName string) (*model.ValidationRun, error) {
	unlock := v.locks.Lock(mappingID)
	defer unlock()

	m, err := v.store.GetMapping(ctx, mappingID)
	if err != nil {
		return nil, err
	}
	attr, err := v.store.GetSourceAttribute(ctx, m.SourceAttributeID)
	if err != nil {
		return nil, err
	}
	tgt, err := v.store.GetTargetAttribute(ctx, m.TargetAttributeID)
	if err != nil {
		return nil, err
	}
	src, err := v.store.GetSourceSystem(ctx, attr.SourceSystemID)
	if err != nil {
		return nil, err
	}

	logic := m.TransformationLogic
	if logic == "" {
		logic = attr.Name
	}

	issues := CheckTransform(logic, attr.DataType, tgt.DataType)
	if dup, err := v.fanInIssue(ctx, m, attr); err != nil {
		return nil, err
	} else if dup != "" {
		issues = append(issues, dup)
	}

	samples, sampleIssue, err := v.classifySamples(ctx, src, attr, logic, adapterName)
	if err != nil {
		return nil, err
	}
	if sampleIssue != "" {
		issues = append(issues, sampleIssue)
	}

	// Blend against the suggestion-time score, not the previous run's
	// blended output, so repeated passes over unchanged data agree.
	confidence := v.blend(validFraction(samples, tgt.Required), m.SuggestedConfidence)
	status := model.MappingIssues
	if len(issues) == 0 && confidence >= v.cfg.ConfidenceThreshold {
		status = model.MappingValidated
	}

	if err := v.store.UpdateMappingValidation(ctx, m.ID, status, confidence); err != nil {
		return nil, err
	}
	run := &model.ValidationRun{
		MappingID:  m.ID,
		Confidence: confidence,
		Status:     status,
		Issues:     issues,
		Samples:    samples,
		RanAt:      time.Now().UTC(),
	}
	if err := v.store.AppendValidationRun(ctx, run); err != nil {
		return nil, err
	}

	zap.L().Info("mapping validated",
		zap.String("mapping_id", m.ID),
		zap.String("status", string(status)),
		zap.Float64("confidence", confidence),
		zap.Int("issues", len(issues)))
	return run, nil
}

// ValidateAll validates every mapping, optionally restricted to one source
// system. Per-mapping failures are recorded and do not abort the batch.
func (v *Validator) ValidateAll(ctx context.Context, sourceSystemID, adapterName string) ([]model.ValidationRun, error) {
	mappings, err := v.store.ListMappings(ctx, store.MappingFilter{SourceSystemID: sourceSystemID})
	if err != nil {
		return nil, eris.Wrap(err, "mapping: list for batch validation")
	}

	runs := make([]model.ValidationRun, 0, len(mappings))
	for _, m := range mappings {
		if ctx.Err() != nil {
			return runs, eris.Wrap(ctx.Err(), "mapping: batch validation")
		}
		run, err := v.Validate(ctx, m.ID, adapterName)
		if err != nil {
			zap.L().Warn("validation pass failed",
				zap.String("mapping_id", m.ID),
				zap.Error(err))
			continue
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// fanInIssue reports when another mapping already feeds the same target
// attribute from the same source system. Fan-in across systems is fine;
// two attributes of one system competing for a target is flagged.
func (v *Validator) fanInIssue(ctx context.Context, m *model.Mapping, attr *model.SourceAttribute) (string, error) {
	others, err := v.store.ListMappings(ctx, store.MappingFilter{TargetAttributeID: m.TargetAttributeID})
	if err != nil {
		return "", eris.Wrap(err, "mapping: fan-in check")
	}
	for _, other := range others {
		if other.ID == m.ID {
			continue
		}
		otherAttr, err := v.store.GetSourceAttribute(ctx, other.SourceAttributeID)
		if err != nil {
			continue
		}
		if otherAttr.SourceSystemID == attr.SourceSystemID {
			return "target already mapped from attribute " + otherAttr.Name + " of the same source system", nil
		}
	}
	return "", nil
}

func (v *Validator) classifySamples(ctx context.Context, src *model.SourceSystem, attr *model.SourceAttribute, logic, adapterName string) ([]model.SampleResult, string, error) {
	adapter, err := v.adapters.Get(adapterName)
	if err != nil {
		return nil, "", err
	}
	values, err := adapter.Sample(ctx, src, attr, v.cfg.SampleSize)
	if err != nil {
		return nil, "sampling failed: " + err.Error(), nil
	}
	if len(values) == 0 {
		return nil, "no sample data available", nil
	}

	t, err := ParseTransform(logic)
	if err != nil {
		// Already reported by the static check; classify nothing.
		return nil, "", nil
	}

	results := make([]model.SampleResult, 0, len(values))
	for _, value := range values {
		out, isNull, err := t.Apply(value)
		r := model.SampleResult{Input: value, Output: out, IsNull: isNull}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results, "", nil
}

// validFraction is the share of samples that transformed cleanly. Nulls are
// neutral unless the target attribute is required, in which case they count
// against the mapping.
func validFraction(samples []model.SampleResult, required bool) float64 {
	if len(samples) == 0 {
		return 0
	}
	valid, counted := 0, 0
	for _, s := range samples {
		switch {
		case s.Error != "":
			counted++
		case s.IsNull:
			if required {
				counted++
			}
		default:
			valid++
			counted++
		}
	}
	if counted == 0 {
		return 0
	}
	return float64(valid) / float64(counted)
}

// blend combines sample-validation confidence with the suggestion-time
// confidence, weighted toward what the data showed.
func (v *Validator) blend(validation, suggestion float64) float64 {
	w := v.cfg.ValidationWeight
	c := w*validation + (1-w)*suggestion
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
