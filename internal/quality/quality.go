// Package quality measures materialized attribute data against the five
// quality dimensions, detects threshold violations, and applies fixes.
package quality

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborgrid/c360/internal/config"
	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/resilience"
	"github.com/harborgrid/c360/internal/store"
)

// Engine computes quality metrics and remediates issues. Fixes to any one
// target attribute are serialized; distinct attributes proceed in parallel.
type Engine struct {
	store store.Store
	cfg   config.QualityConfig
	locks resilience.KeyedMutex
	now   func() time.Time
}

// NewEngine builds an Engine.
func NewEngine(st store.Store, cfg config.QualityConfig) *Engine {
	if cfg.NullRateThreshold <= 0 {
		cfg.NullRateThreshold = 0.05
	}
	if cfg.DuplicateRateThreshold <= 0 {
		cfg.DuplicateRateThreshold = 0.02
	}
	if cfg.FormatFailureThreshold <= 0 {
		cfg.FormatFailureThreshold = 0.05
	}
	if cfg.StaleSLAHours <= 0 {
		cfg.StaleSLAHours = 48
	}
	if cfg.FixMaxAttempts <= 0 {
		cfg.FixMaxAttempts = 3
	}
	return &Engine{store: st, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// ComputeMetrics measures one target attribute and appends the result to
// its metrics history.
func (e *Engine) ComputeMetrics(ctx context.Context, targetAttributeID string) (*model.QualityMetrics, error) {
	tgt, err := e.store.GetTargetAttribute(ctx, targetAttributeID)
	if err != nil {
		return nil, err
	}
	metrics, err := e.measure(ctx, tgt)
	if err != nil {
		return nil, err
	}
	snap := &model.MetricsSnapshot{
		TargetAttributeID: tgt.ID,
		Metrics:           *metrics,
		MeasuredAt:        e.now(),
	}
	if err := e.store.AppendMetricsSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return metrics, nil
}

// ComputeAll measures every target attribute and returns the unweighted
// mean across attributes with data. Unlike ComputeMetrics it records no
// history.
func (e *Engine) ComputeAll(ctx context.Context) (*model.QualityMetrics, error) {
	targets, err := e.store.ListTargetAttributes(ctx, "")
	if err != nil {
		return nil, eris.Wrap(err, "quality: list target attributes")
	}

	var agg model.QualityMetrics
	measured := 0
	for _, tgt := range targets {
		m, err := e.measure(ctx, &tgt)
		if err != nil {
			return nil, err
		}
		if m.RecordCount == 0 {
			continue
		}
		agg.Completeness += m.Completeness
		agg.Uniqueness += m.Uniqueness
		agg.Consistency += m.Consistency
		agg.Accuracy += m.Accuracy
		agg.Timeliness += m.Timeliness
		agg.RecordCount += m.RecordCount
		measured++
	}
	if measured > 0 {
		agg.Completeness /= float64(measured)
		agg.Uniqueness /= float64(measured)
		agg.Consistency /= float64(measured)
		agg.Accuracy /= float64(measured)
		agg.Timeliness /= float64(measured)
	}
	agg.ComputeOverall()
	return &agg, nil
}

// History returns the attribute's metrics snapshots measured at or after
// since, oldest first.
func (e *Engine) History(ctx context.Context, targetAttributeID string, since time.Time) ([]model.MetricsSnapshot, error) {
	if _, err := e.store.GetTargetAttribute(ctx, targetAttributeID); err != nil {
		return nil, err
	}
	return e.store.ListMetricsSnapshots(ctx, targetAttributeID, since)
}

func (e *Engine) measure(ctx context.Context, tgt *model.TargetAttribute) (*model.QualityMetrics, error) {
	total, nulls, err := e.store.MaterializedCounts(ctx, tgt.ID)
	if err != nil {
		return nil, err
	}
	m := &model.QualityMetrics{RecordCount: total}
	if total == 0 {
		m.ComputeOverall()
		return m, nil
	}

	nonNull := total - nulls
	m.Completeness = float64(nonNull) / float64(total)

	dups, err := e.store.DuplicateRecordCount(ctx, tgt.ID)
	if err != nil {
		return nil, err
	}
	if nonNull > 0 {
		m.Uniqueness = 1 - float64(dups)/float64(nonNull)
	} else {
		m.Uniqueness = 1
	}

	records, err := e.store.ListMaterialized(ctx, tgt.ID, 0)
	if err != nil {
		return nil, err
	}
	consistent, accurate := 0, 0
	for _, r := range records {
		if r.Value == nil {
			continue
		}
		if conformsType(*r.Value, tgt.DataType) {
			consistent++
		}
		if wellFormed(*r.Value, tgt) {
			accurate++
		}
	}
	if nonNull > 0 {
		m.Consistency = float64(consistent) / float64(nonNull)
		m.Accuracy = float64(accurate) / float64(nonNull)
	} else {
		m.Consistency = 1
		m.Accuracy = 1
	}

	m.Timeliness = e.timeliness(ctx, tgt.ID)
	m.ComputeOverall()
	logMetrics(tgt, m)
	return m, nil
}

func (e *Engine) timeliness(ctx context.Context, targetAttributeID string) float64 {
	last, err := e.store.LastMaterializedUpdate(ctx, targetAttributeID)
	if err != nil || last == nil {
		return 0
	}
	sla := time.Duration(e.cfg.StaleSLAHours) * time.Hour
	age := e.now().Sub(*last)
	if age <= sla {
		return 1
	}
	return float64(sla) / float64(age)
}

// conformsType reports whether a materialized value parses as the
// attribute's declared type.
func conformsType(value string, dt model.DataType) bool {
	switch dt {
	case model.TypeInteger:
		_, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		return err == nil
	case model.TypeReal:
		_, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return err == nil
	case model.TypeDate:
		_, err := time.Parse("2006-01-02", strings.TrimSpace(value))
		return err == nil
	case model.TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "false", "0", "1", "yes", "no":
			return true
		}
		return false
	}
	return true
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// wellFormed applies the attribute's format check: values must carry no
// surrounding whitespace, and email-like attributes must look like an
// address.
func wellFormed(value string, tgt *model.TargetAttribute) bool {
	if value != strings.TrimSpace(value) {
		return false
	}
	if strings.Contains(strings.ToLower(tgt.Name), "email") {
		return emailPattern.MatchString(value)
	}
	return true
}

func logMetrics(tgt *model.TargetAttribute, m *model.QualityMetrics) {
	zap.L().Debug("quality measured",
		zap.String("target_attribute", tgt.Name),
		zap.Float64("overall", m.Overall),
		zap.Int("records", m.RecordCount))
}
