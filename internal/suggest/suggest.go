// Package suggest proposes candidate mappings between scanned source
// attributes and the target catalog. Suggestions are advisory: nothing here
// writes to the store, and a caller promotes a suggestion into a mapping
// explicitly.
package suggest

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/harborgrid/c360/internal/config"
	"github.com/harborgrid/c360/internal/mapping"
	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

// Engine scores source attributes against the target catalog. The heuristic
// path is pure and deterministic; an optional Scorer refines confidence for
// candidates that clear the cutoff, with a silent fallback to the heuristic
// score when the scorer is slow or failing.
type Engine struct {
	store   store.Store
	scorer  Scorer
	cfg     config.SuggestConfig
	limiter *rate.Limiter
}

// NewEngine builds an Engine. scorer may be nil, in which case every
// suggestion is heuristic-scored.
func NewEngine(st store.Store, scorer Scorer, cfg config.SuggestConfig) *Engine {
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.3
	}
	if cfg.EnhancedTimeoutSecs <= 0 {
		cfg.EnhancedTimeoutSecs = 10
	}
	if cfg.EnhancedRatePerSec <= 0 {
		cfg.EnhancedRatePerSec = 2.0
	}
	return &Engine{
		store:   st,
		scorer:  scorer,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.EnhancedRatePerSec), 1),
	}
}

// Suggest ranks candidate mappings for every scanned attribute of the given
// source system. Pairs already covered by a mapping are skipped, and a
// system with no scanned attributes is a validation error. Candidates below
// the configured cutoff are dropped. The result is ordered by confidence
// descending, ties broken by name edit distance and then target attribute
// id so repeated calls agree.
func (e *Engine) Suggest(ctx context.Context, sourceSystemID string) ([]model.Suggestion, error) {
	return e.suggest(ctx, sourceSystemID, true)
}

// SuggestHeuristic ranks candidates without the enhanced scorer even when
// one is configured.
func (e *Engine) SuggestHeuristic(ctx context.Context, sourceSystemID string) ([]model.Suggestion, error) {
	return e.suggest(ctx, sourceSystemID, false)
}

func (e *Engine) suggest(ctx context.Context, sourceSystemID string, enhanced bool) ([]model.Suggestion, error) {
	src, err := e.store.GetSourceSystem(ctx, sourceSystemID)
	if err != nil {
		return nil, err
	}

	attrs, err := e.store.ListSourceAttributes(ctx, src.ID)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: list source attributes")
	}
	if len(attrs) == 0 {
		return nil, model.NewValidationError("source_system_id", "no scanned attributes for source system "+src.Name)
	}
	targets, err := e.store.ListTargetAttributes(ctx, "")
	if err != nil {
		return nil, eris.Wrap(err, "suggest: list target attributes")
	}
	existing, err := e.store.ListMappings(ctx, store.MappingFilter{SourceSystemID: src.ID})
	if err != nil {
		return nil, eris.Wrap(err, "suggest: list existing mappings")
	}
	mapped := make(map[[2]string]struct{}, len(existing))
	for _, m := range existing {
		mapped[[2]string{m.SourceAttributeID, m.TargetAttributeID}] = struct{}{}
	}

	var out []model.Suggestion
	for _, attr := range attrs {
		for _, tgt := range targets {
			if _, ok := mapped[[2]string{attr.ID, tgt.ID}]; ok {
				continue
			}
			score := HeuristicScore(&attr, &tgt)
			if score < e.cfg.MinScore {
				continue
			}
			s := model.Suggestion{
				SourceAttributeID:   attr.ID,
				SourceAttribute:     attr.Name,
				TargetAttributeID:   tgt.ID,
				TargetAttribute:     tgt.Name,
				ConfidenceScore:     score,
				TransformationLogic: mapping.GenerateTransform(attr.Name, attr.DataType, tgt.DataType),
				Scorer:              ScorerHeuristic,
			}
			if enhanced && e.scorer != nil {
				if refined, ok := e.enhance(ctx, &attr, &tgt, score); ok {
					s.ConfidenceScore = refined
					s.Scorer = ScorerEnhanced
				}
			}
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		da := levenshtein.Distance(a.SourceAttribute, a.TargetAttribute, nil)
		db := levenshtein.Distance(b.SourceAttribute, b.TargetAttribute, nil)
		if da != db {
			return da < db
		}
		return a.TargetAttributeID < b.TargetAttributeID
	})

	zap.L().Info("suggestions computed",
		zap.String("source_system", src.Name),
		zap.Int("attributes", len(attrs)),
		zap.Int("suggestions", len(out)))
	return out, nil
}

// enhance runs the optional scorer under the configured rate limit and
// timeout. Any failure keeps the heuristic score; suggestion generation
// never fails because the enhanced scorer is unavailable.
func (e *Engine) enhance(ctx context.Context, attr *model.SourceAttribute, tgt *model.TargetAttribute, heuristic float64) (float64, bool) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.EnhancedTimeoutSecs)*time.Second)
	defer cancel()

	if err := e.limiter.Wait(callCtx); err != nil {
		zap.L().Debug("enhanced scorer rate wait aborted", zap.Error(err))
		return 0, false
	}
	score, err := e.scorer.Score(callCtx, attr, tgt, heuristic)
	if err != nil {
		zap.L().Debug("enhanced scorer failed, keeping heuristic",
			zap.String("source_attribute", attr.Name),
			zap.String("target_attribute", tgt.Name),
			zap.Error(err))
		return 0, false
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, true
}

// HeuristicScore is the base confidence for pairing a source attribute with
// a target attribute: Jaccard overlap of name tokens scaled by how well the
// types line up.
func HeuristicScore(attr *model.SourceAttribute, tgt *model.TargetAttribute) float64 {
	return jaccard(tokenize(attr.Name), tokenize(tgt.Name)) * model.TypeCompatibility(attr.DataType, tgt.DataType)
}

// tokenize lowercases a name and splits it on separators and camelCase
// boundaries, so "custEmail", "cust_email" and "CUST-EMAIL" all tokenize
// the same way.
func tokenize(name string) []string {
	var (
		tokens []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				flush()
			}
			cur.WriteRune(unicode.ToLower(r))
		default:
			cur.WriteRune(unicode.ToLower(r))
		}
	}
	flush()
	return tokens
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	union := len(set)
	shared := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}
