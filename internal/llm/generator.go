package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/crestdev/CREST/internal/optimize"
)

const generatorSystemPrompt = `You rewrite text into a single sharp, self-contained post.
Respond with the post text only: no preamble, no quotes, no commentary.
Stay within %d characters and preserve the meaning of the original text.`

// weakScoreThreshold marks dimensions called out for focused improvement in
// the revision prompt.
const weakScoreThreshold = 7

// Generator produces candidates through the completion API. It implements
// optimize.Generator and enforces the candidate length ceiling at this
// boundary, so the optimization loop never sees an oversized candidate.
type Generator struct {
	client *Client
	limit  int
}

// NewGenerator creates a generator over the given client. limit is the
// candidate rune ceiling; non-positive values fall back to the default.
func NewGenerator(client *Client, limit int) *Generator {
	if limit <= 0 {
		limit = optimize.DefaultCandidateLimit
	}
	return &Generator{client: client, limit: limit}
}

// Generate asks the model for an initial candidate (nil feedback) or a
// revision of the current best guided by its evaluation.
func (g *Generator) Generate(ctx context.Context, source string, best optimize.Candidate, feedback *optimize.EvaluationResult) (optimize.Candidate, error) {
	system := fmt.Sprintf(generatorSystemPrompt, g.limit)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Original text:\n%s\n", source)
	if feedback == nil {
		prompt.WriteString("\nWrite the first draft of the post.")
	} else {
		fmt.Fprintf(&prompt, "\nCurrent best version:\n%s\n", best.String())
		fmt.Fprintf(&prompt, "\nEvaluation of the current best:\n%s\n", FormatFeedback(feedback))
		fmt.Fprintf(&prompt, "\n%s", improvementHint(feedback))
	}

	text, err := g.client.Complete(ctx, system, prompt.String())
	if err != nil {
		return "", optimize.WrapGenerationError(err, "generating candidate")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", optimize.NewGenerationError("model returned an empty candidate")
	}
	return optimize.TruncateCandidate(text, g.limit), nil
}

// FormatFeedback renders an evaluation as per-dimension reasoning lines for
// the revision prompt.
func FormatFeedback(result *optimize.EvaluationResult) string {
	lines := make([]string, 0, len(result.Scores))
	for _, s := range result.Scores {
		lines = append(lines, fmt.Sprintf("%s (Score: %d/%d): %s", s.Name, s.Value, optimize.MaxScore, s.Rationale))
	}
	return strings.Join(lines, "\n")
}

// improvementHint points the model at the weak dimensions, or asks for minor
// refinement when every dimension already scores well.
func improvementHint(result *optimize.EvaluationResult) string {
	var weak []string
	for _, s := range result.Scores {
		if s.Value < weakScoreThreshold {
			weak = append(weak, fmt.Sprintf("%s (current score: %d/%d)", s.Name, s.Value, optimize.MaxScore))
		}
	}
	if len(weak) == 0 {
		return "Every dimension already scores well. Make minor refinements for even better performance."
	}
	return fmt.Sprintf("Focus on improving these areas: %s. Make the post more engaging, concise, and impactful.",
		strings.Join(weak, "; "))
}
