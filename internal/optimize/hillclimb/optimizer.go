// Package hillclimb implements patience-bounded hill climbing over text
// candidates. Each iteration asks the generator for a revision of the best
// candidate so far, scores it with the evaluator, and keeps it only on a
// strict total-score improvement. The run stops at the iteration budget or
// after patience consecutive non-improving iterations, whichever comes
// first.
package hillclimb

import (
	"context"

	"github.com/crestdev/CREST/internal/optimize"
)

// Config contains configuration for a hill-climbing optimizer.
type Config struct {
	// Dimensions are the named quality axes every candidate is judged on.
	// Must be non-empty with unique, non-empty names.
	Dimensions []string

	// MaxIterations bounds the total number of generate+evaluate cycles.
	MaxIterations int

	// Patience is the maximum number of consecutive non-improving
	// iterations tolerated before stopping.
	Patience int
}

// Optimizer drives the hill-climbing loop over a generator and an
// evaluator. It holds no run state; each Start call owns its own.
type Optimizer struct {
	generator optimize.Generator
	evaluator optimize.Evaluator
	config    Config
}

// New creates a hill-climbing optimizer. It fails fast with a configuration
// error before any generation or evaluation call can be made.
func New(generator optimize.Generator, evaluator optimize.Evaluator, config Config) (*Optimizer, error) {
	if generator == nil {
		return nil, optimize.NewConfigurationError("generator is required")
	}
	if evaluator == nil {
		return nil, optimize.NewConfigurationError("evaluator is required")
	}
	if len(config.Dimensions) == 0 {
		return nil, optimize.NewConfigurationError("at least one dimension is required")
	}
	seen := make(map[string]struct{}, len(config.Dimensions))
	for _, d := range config.Dimensions {
		if d == "" {
			return nil, optimize.NewConfigurationError("dimension names must not be empty")
		}
		if _, dup := seen[d]; dup {
			return nil, optimize.NewConfigurationErrorf("duplicate dimension %q", d)
		}
		seen[d] = struct{}{}
	}
	if config.MaxIterations < 1 {
		return nil, optimize.NewConfigurationErrorf("max iterations must be >= 1, got %d", config.MaxIterations)
	}
	if config.Patience < 1 {
		return nil, optimize.NewConfigurationErrorf("patience must be >= 1, got %d", config.Patience)
	}

	return &Optimizer{
		generator: generator,
		evaluator: evaluator,
		config:    config,
	}, nil
}

// Config returns the optimizer configuration.
func (o *Optimizer) Config() Config { return o.config }

// Snapshot is the state surfaced after one completed iteration. It always
// carries the running best, never the just-generated candidate, so a caller
// tracking progress never observes a regression.
type Snapshot struct {
	// Iteration counts completed generate+evaluate cycles, starting at 1.
	Iteration int `json:"iteration"`

	// Best is the best candidate found so far.
	Best optimize.Candidate `json:"best"`

	// Result is the evaluation of Best.
	Result *optimize.EvaluationResult `json:"result"`

	// Improved reports whether this iteration strictly improved on the
	// previous best. Equal totals are not improvements.
	Improved bool `json:"improved"`

	// Streak is the count of consecutive non-improving iterations ending
	// at this one.
	Streak int `json:"streak"`
}

// Run is the lazy snapshot sequence of one optimization invocation. Each
// element is computed synchronously when Next is called; the only suspension
// points are the generator and evaluator calls. A Run is exclusively owned
// by its caller and is not restartable once consumed.
type Run struct {
	opt    *Optimizer
	ctx    context.Context
	source string

	best       optimize.Candidate
	bestResult *optimize.EvaluationResult
	iteration  int
	streak     int

	snapshot Snapshot
	err      error
	done     bool
}

// Start begins a run over the given source content. The source itself is the
// zeroth-round best candidate; no generation happens until the first Next.
// Cancellation of ctx ends the sequence cleanly at the next iteration
// boundary, with the best state so far retained.
func (o *Optimizer) Start(ctx context.Context, source string) *Run {
	return &Run{
		opt:    o,
		ctx:    ctx,
		source: source,
		best:   optimize.Candidate(source),
	}
}

// Next advances the run by one generate+evaluate cycle. It returns false
// when the iteration budget is exhausted, patience runs out, the context is
// cancelled, or a port call fails; inspect Err to distinguish failure from
// normal termination.
func (r *Run) Next() bool {
	if r.done {
		return false
	}
	if r.iteration >= r.opt.config.MaxIterations || r.streak >= r.opt.config.Patience {
		r.done = true
		return false
	}

	select {
	case <-r.ctx.Done():
		r.err = r.ctx.Err()
		r.done = true
		return false
	default:
	}

	candidate, err := r.opt.generator.Generate(r.ctx, r.source, r.best, r.bestResult)
	if err != nil {
		if !optimize.IsKind(err, optimize.KindGeneration) {
			err = optimize.WrapGenerationError(err, "generator call failed")
		}
		r.err = err
		r.done = true
		return false
	}

	result, err := r.opt.evaluator.Evaluate(r.ctx, r.source, r.best, candidate, r.opt.config.Dimensions)
	if err != nil {
		if !optimize.IsKind(err, optimize.KindEvaluation) {
			err = optimize.WrapEvaluationError(err, "evaluator call failed")
		}
		r.err = err
		r.done = true
		return false
	}

	improved := r.bestResult == nil || result.BetterThan(r.bestResult)
	if improved {
		r.best = candidate
		r.bestResult = result
		r.streak = 0
	} else {
		r.streak++
	}
	r.iteration++

	r.snapshot = Snapshot{
		Iteration: r.iteration,
		Best:      r.best,
		Result:    r.bestResult,
		Improved:  improved,
		Streak:    r.streak,
	}
	return true
}

// Snapshot returns the snapshot produced by the last successful Next call.
func (r *Run) Snapshot() Snapshot { return r.snapshot }

// Err returns the error that ended the sequence, or nil if it terminated on
// budget or patience. Context cancellation surfaces as the context's error.
func (r *Run) Err() error { return r.err }

// Iterations returns the number of completed generate+evaluate cycles.
func (r *Run) Iterations() int { return r.iteration }

// Streak returns the current count of consecutive non-improving iterations.
// After normal termination, Streak() == Patience means the run stopped on
// patience rather than on the iteration budget.
func (r *Run) Streak() int { return r.streak }

// Best returns the best candidate found so far.
func (r *Run) Best() optimize.Candidate { return r.best }

// BestResult returns the evaluation of the best candidate, or nil before
// the first evaluation completes.
func (r *Run) BestResult() *optimize.EvaluationResult { return r.bestResult }

// Result contains the outcome of a drained run.
type Result struct {
	// Best is the best candidate found. Equals the source when no
	// iteration completed.
	Best optimize.Candidate

	// BestResult is the evaluation of Best, nil when no iteration
	// completed.
	BestResult *optimize.EvaluationResult

	// Iterations is the number of completed cycles.
	Iterations int

	// NoImprovementStreak is the trailing count of non-improving
	// iterations at termination.
	NoImprovementStreak int

	// History holds every snapshot in iteration order.
	History []Snapshot
}

// Optimize drains a full run and returns its terminal state. On a port
// failure or cancellation the partial result up to the last completed
// iteration is returned alongside the error; nothing is rolled back.
func (o *Optimizer) Optimize(ctx context.Context, source string) (*Result, error) {
	run := o.Start(ctx, source)
	history := make([]Snapshot, 0, o.config.MaxIterations)
	for run.Next() {
		history = append(history, run.Snapshot())
	}

	result := &Result{
		Best:                run.Best(),
		BestResult:          run.BestResult(),
		Iterations:          run.Iterations(),
		NoImprovementStreak: run.Streak(),
		History:             history,
	}
	return result, run.Err()
}
