package optimize

import (
	"context"
)

// Generator produces candidates. On the first call of a run, feedback is nil
// and best equals the literal source content, signaling "produce an initial
// candidate" rather than "revise". Implementations must not carry hidden
// state across calls beyond what the loop passes explicitly, and must be
// safe for concurrent use by independent runs.
type Generator interface {
	// Generate produces a new candidate from the source text, the current
	// best candidate, and the evaluation of that best (nil before the
	// first evaluation). A returned error of KindGeneration aborts the
	// whole run.
	Generate(ctx context.Context, source string, best Candidate, feedback *EvaluationResult) (Candidate, error)
}

// Evaluator scores a candidate against named dimensions. Implementations
// must produce exactly one DimensionScore per requested dimension,
// order-independent, and must be safe for concurrent use by independent
// runs. A returned error of KindEvaluation aborts the whole run.
type Evaluator interface {
	Evaluate(ctx context.Context, source string, best, candidate Candidate, dimensions []string) (*EvaluationResult, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, source string, best Candidate, feedback *EvaluationResult) (Candidate, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, source string, best Candidate, feedback *EvaluationResult) (Candidate, error) {
	return f(ctx, source, best, feedback)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, source string, best, candidate Candidate, dimensions []string) (*EvaluationResult, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, source string, best, candidate Candidate, dimensions []string) (*EvaluationResult, error) {
	return f(ctx, source, best, candidate, dimensions)
}
