package quality

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harborgrid/c360/internal/model"
)

// DetectIssues runs the check battery over one target attribute and
// upserts a QualityIssue per violated threshold. Re-detection of an
// already-open issue refreshes it in place rather than opening a second
// one; resolved issues stay resolved.
func (e *Engine) DetectIssues(ctx context.Context, targetAttributeID string) ([]model.QualityIssue, error) {
	tgt, err := e.store.GetTargetAttribute(ctx, targetAttributeID)
	if err != nil {
		return nil, err
	}

	total, nulls, err := e.store.MaterializedCounts(ctx, tgt.ID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	var issues []model.QualityIssue

	nullRate := float64(nulls) / float64(total)
	if nullRate > e.cfg.NullRateThreshold {
		issues = append(issues, model.QualityIssue{
			TargetAttributeID:   tgt.ID,
			Type:                model.IssueCompleteness,
			Severity:            e.grade(nullRate, e.cfg.NullRateThreshold),
			Description:         fmt.Sprintf("%.1f%% of records are null (threshold %.1f%%)", nullRate*100, e.cfg.NullRateThreshold*100),
			AffectedRecordCount: nulls,
			FixOptions: []model.FixOption{{
				Type:        model.FixFillDefault,
				Name:        "Fill with default",
				Description: "Write a default value to every null record",
				Parameters:  map[string]string{"default_value": "value written to null records"},
			}},
		})
	}

	nonNull := total - nulls
	if nonNull > 0 {
		dups, err := e.store.DuplicateRecordCount(ctx, tgt.ID)
		if err != nil {
			return nil, err
		}
		dupRate := float64(dups) / float64(nonNull)
		if dupRate > e.cfg.DuplicateRateThreshold {
			issues = append(issues, model.QualityIssue{
				TargetAttributeID:   tgt.ID,
				Type:                model.IssueConsistency,
				Severity:            e.grade(dupRate, e.cfg.DuplicateRateThreshold),
				Description:         fmt.Sprintf("%d duplicate values across %d records", dups, nonNull),
				AffectedRecordCount: dups,
				FixOptions: []model.FixOption{{
					Type:        model.FixDeduplicate,
					Name:        "Deduplicate",
					Description: "Keep the most recently updated record per value, remove the rest",
				}},
			})
		}

		malformed, err := e.countMalformed(ctx, tgt)
		if err != nil {
			return nil, err
		}
		failRate := float64(malformed) / float64(nonNull)
		if failRate > e.cfg.FormatFailureThreshold {
			issues = append(issues, model.QualityIssue{
				TargetAttributeID:   tgt.ID,
				Type:                model.IssueAccuracy,
				Severity:            e.grade(failRate, e.cfg.FormatFailureThreshold),
				Description:         fmt.Sprintf("%d records fail the format check", malformed),
				AffectedRecordCount: malformed,
				FixOptions: []model.FixOption{{
					Type:        model.FixTrimRevalidate,
					Name:        "Trim and revalidate",
					Description: "Strip surrounding whitespace and re-run the format check",
				}},
			})
		}
	}

	if stale, age := e.staleness(ctx, tgt.ID); stale {
		issues = append(issues, model.QualityIssue{
			TargetAttributeID:   tgt.ID,
			Type:                model.IssueTimeliness,
			Severity:            model.SeverityMedium,
			Description:         fmt.Sprintf("data last updated %s ago (SLA %dh)", age.Round(time.Minute), e.cfg.StaleSLAHours),
			AffectedRecordCount: total,
			FixOptions: []model.FixOption{{
				Type:        model.FixTouchRefresh,
				Name:        "Mark refreshed",
				Description: "Stamp every record as freshly verified",
			}},
		})
	}

	now := e.now()
	for i := range issues {
		issues[i].DetectedAt = now
		if err := e.store.UpsertQualityIssue(ctx, &issues[i]); err != nil {
			return nil, err
		}
	}

	zap.L().Info("issue detection pass",
		zap.String("target_attribute", tgt.Name),
		zap.Int("records", total),
		zap.Int("issues", len(issues)))
	return issues, nil
}

func (e *Engine) countMalformed(ctx context.Context, tgt *model.TargetAttribute) (int, error) {
	records, err := e.store.ListMaterialized(ctx, tgt.ID, 0)
	if err != nil {
		return 0, err
	}
	malformed := 0
	for _, r := range records {
		if r.Value != nil && !wellFormed(*r.Value, tgt) {
			malformed++
		}
	}
	return malformed, nil
}

func (e *Engine) staleness(ctx context.Context, targetAttributeID string) (bool, time.Duration) {
	last, err := e.store.LastMaterializedUpdate(ctx, targetAttributeID)
	if err != nil || last == nil {
		return false, 0
	}
	age := e.now().Sub(*last)
	return age > time.Duration(e.cfg.StaleSLAHours)*time.Hour, age
}

// grade maps how far a rate overshoots its threshold onto a severity.
func (e *Engine) grade(rate, threshold float64) model.IssueSeverity {
	switch {
	case rate >= 4*threshold:
		return model.SeverityHigh
	case rate >= 2*threshold:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
