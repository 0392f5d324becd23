package quality

import (
	"context"

	"go.uber.org/zap"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/resilience"
)

// ApplyFix remediates one quality issue. The call is idempotent: fixing an
// already-resolved issue affects zero records and returns no error.
// Malformed parameters fail fast; transient store errors are retried, and
// exhaustion surfaces as a FixApplicationError with the data untouched
// (every fix primitive is a single transaction).
func (e *Engine) ApplyFix(ctx context.Context, issueID string, fixType model.FixType, params map[string]string) (*model.FixResult, error) {
	issue, err := e.store.GetQualityIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(issue.TargetAttributeID)
	defer unlock()

	// Re-read under the lock; a concurrent fix may have resolved it.
	issue, err = e.store.GetQualityIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Resolved() {
		return &model.FixResult{IssueID: issue.ID, FixType: fixType}, nil
	}

	if err := validateFix(issue, fixType, params); err != nil {
		return nil, err
	}

	policy := resilience.DefaultPolicy()
	policy.MaxAttempts = e.cfg.FixMaxAttempts
	policy.OnRetry = resilience.RetryLogger("quality", string(fixType))

	result, err := resilience.RetryVal(ctx, policy, func(ctx context.Context) (*model.FixResult, error) {
		return e.execute(ctx, issue, fixType, params)
	})
	if err != nil {
		return nil, &model.FixApplicationError{IssueID: issue.ID, Err: err}
	}

	if err := e.store.ResolveQualityIssue(ctx, issue.ID, e.now()); err != nil {
		return nil, &model.FixApplicationError{IssueID: issue.ID, Err: err}
	}

	zap.L().Info("fix applied",
		zap.String("issue_id", issue.ID),
		zap.String("fix_type", string(fixType)),
		zap.Int("affected", result.AffectedRecords))
	return result, nil
}

func (e *Engine) execute(ctx context.Context, issue *model.QualityIssue, fixType model.FixType, params map[string]string) (*model.FixResult, error) {
	var (
		count   int
		changes []model.Change
		err     error
	)
	switch fixType {
	case model.FixFillDefault:
		count, changes, err = e.store.FillNullValues(ctx, issue.TargetAttributeID, params["default_value"], e.now())
	case model.FixDeduplicate:
		count, changes, err = e.store.DeduplicateKeepRecent(ctx, issue.TargetAttributeID)
	case model.FixTrimRevalidate:
		count, changes, err = e.store.TrimValues(ctx, issue.TargetAttributeID, e.now())
	case model.FixTouchRefresh:
		count, err = e.store.TouchMaterialized(ctx, issue.TargetAttributeID, e.now())
	}
	if err != nil {
		return nil, err
	}
	return &model.FixResult{
		IssueID:         issue.ID,
		FixType:         fixType,
		AffectedRecords: count,
		Changes:         changes,
	}, nil
}

func validateFix(issue *model.QualityIssue, fixType model.FixType, params map[string]string) error {
	offered := false
	for _, opt := range issue.FixOptions {
		if opt.Type == fixType {
			offered = true
			break
		}
	}
	if !offered {
		return model.NewValidationError("fix_type", "fix "+string(fixType)+" is not offered for this issue")
	}
	if fixType == model.FixFillDefault && params["default_value"] == "" {
		return model.NewValidationError("default_value", "required parameter missing")
	}
	return nil
}
