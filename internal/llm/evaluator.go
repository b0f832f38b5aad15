package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crestdev/CREST/internal/optimize"
)

const evaluatorSystemPrompt = `You judge a candidate post against named quality dimensions.
The candidate must convey the same meaning as the original text.
Score every dimension with an integer from %d to %d and explain each score briefly.
Respond with JSON only, in the form:
{"scores":[{"name":"<dimension>","rationale":"<why>","value":<1-9>}]}`

// Evaluator scores candidates through the completion API. It implements
// optimize.Evaluator; any malformed judgment surfaces as a fatal evaluation
// error rather than being repaired or re-requested.
type Evaluator struct {
	client *Client
}

// NewEvaluator creates an evaluator over the given client.
func NewEvaluator(client *Client) *Evaluator {
	return &Evaluator{client: client}
}

// Evaluate judges candidate against every requested dimension and returns
// exactly one score per dimension, in request order.
func (e *Evaluator) Evaluate(ctx context.Context, source string, best, candidate optimize.Candidate, dimensions []string) (*optimize.EvaluationResult, error) {
	system := fmt.Sprintf(evaluatorSystemPrompt, optimize.MinScore, optimize.MaxScore)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Original text:\n%s\n", source)
	if best != candidate && best.String() != "" {
		fmt.Fprintf(&prompt, "\nCurrent best version, for comparison:\n%s\n", best.String())
	}
	fmt.Fprintf(&prompt, "\nCandidate to evaluate:\n%s\n", candidate.String())
	fmt.Fprintf(&prompt, "\nDimensions to score:\n")
	for _, d := range dimensions {
		fmt.Fprintf(&prompt, "- %s\n", d)
	}

	text, err := e.client.Complete(ctx, system, prompt.String())
	if err != nil {
		return nil, optimize.WrapEvaluationError(err, "evaluating candidate")
	}

	result, err := parseEvaluation(text, dimensions)
	if err != nil {
		return nil, optimize.WrapEvaluationError(err, "unusable judgment")
	}
	return result, nil
}

type evaluationPayload struct {
	Scores []struct {
		Name      string `json:"name"`
		Rationale string `json:"rationale"`
		Value     int    `json:"value"`
	} `json:"scores"`
}

// parseEvaluation decodes the model's JSON judgment and reorders it to the
// requested dimensions. The model may return dimensions in any order, but
// each requested dimension must appear exactly once.
func parseEvaluation(text string, dimensions []string) (*optimize.EvaluationResult, error) {
	var payload evaluationPayload
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &payload); err != nil {
		return nil, fmt.Errorf("decoding judgment JSON: %w", err)
	}

	byName := make(map[string]optimize.DimensionScore, len(payload.Scores))
	for _, s := range payload.Scores {
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("judgment scores dimension %q more than once", s.Name)
		}
		byName[s.Name] = optimize.DimensionScore{Name: s.Name, Rationale: s.Rationale, Value: s.Value}
	}

	scores := make([]optimize.DimensionScore, 0, len(dimensions))
	for _, d := range dimensions {
		s, ok := byName[d]
		if !ok {
			return nil, fmt.Errorf("judgment is missing dimension %q", d)
		}
		scores = append(scores, s)
	}
	if len(payload.Scores) != len(dimensions) {
		return nil, fmt.Errorf("judgment scored %d dimensions, want %d", len(payload.Scores), len(dimensions))
	}

	return optimize.NewEvaluationResult(scores)
}

// stripCodeFence removes a surrounding markdown code fence if the model
// wrapped its JSON in one.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
