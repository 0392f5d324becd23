package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/pkg/anthropic"
)

// Scorer labels recorded on suggestions.
const (
	ScorerHeuristic = "heuristic"
	ScorerEnhanced  = "enhanced"
)

// Scorer refines the heuristic confidence for one candidate pair. A scorer
// must respect ctx; the engine bounds each call with a deadline.
type Scorer interface {
	Score(ctx context.Context, attr *model.SourceAttribute, tgt *model.TargetAttribute, heuristic float64) (float64, error)
}

// AnthropicScorer asks a model whether a source attribute plausibly feeds a
// target attribute, returning a confidence in [0,1].
type AnthropicScorer struct {
	client anthropic.Client
	model  string
}

// NewAnthropicScorer builds a scorer on the given client.
func NewAnthropicScorer(client anthropic.Client, model string) *AnthropicScorer {
	return &AnthropicScorer{client: client, model: model}
}

const scorerSystemPrompt = `You judge whether a source-system attribute should map onto a canonical customer attribute.
Respond with only a JSON object: {"confidence": <number between 0 and 1>}.
High confidence means the attributes describe the same real-world field; consider the names, their data types, and common naming conventions across CRM, billing and support systems.`

type scorerVerdict struct {
	Confidence float64 `json:"confidence"`
}

// Score sends one candidate pair for judgment. The heuristic score is
// included as an anchor so the model refines rather than re-derives.
func (s *AnthropicScorer) Score(ctx context.Context, attr *model.SourceAttribute, tgt *model.TargetAttribute, heuristic float64) (float64, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   64,
		System:      scorerSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role: "user",
			Content: fmt.Sprintf(
				"Source attribute: %q (type %s)\nTarget attribute: %q (type %s)\nName-similarity baseline: %.2f",
				attr.Name, attr.DataType, tgt.Name, tgt.DataType, heuristic),
		}},
	}

	resp, err := s.client.CreateMessage(ctx, req)
	if err != nil {
		return 0, eris.Wrap(err, "suggest: enhanced score")
	}
	resp.Usage.LogCost(s.model, "suggest")

	text := strings.TrimSpace(resp.Text())
	// Tolerate fenced or prefixed output; the verdict is the first JSON object.
	if i := strings.IndexByte(text, '{'); i >= 0 {
		if j := strings.LastIndexByte(text, '}'); j > i {
			text = text[i : j+1]
		}
	}
	var verdict scorerVerdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return 0, eris.Wrapf(err, "suggest: parse verdict %q", text)
	}
	return verdict.Confidence, nil
}
