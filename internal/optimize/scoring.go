package optimize

import (
	"fmt"
)

// Score bounds for a single dimension. Judgments outside this range are
// rejected at construction.
const (
	MinScore = 1
	MaxScore = 9
)

// DimensionScore is one judged dimension of a candidate.
type DimensionScore struct {
	// Name identifies the dimension; it must match one of the dimensions
	// requested for the run.
	Name string `json:"name"`

	// Rationale is the judge's free-text explanation for the score. It may
	// be empty but is always carried alongside the value.
	Rationale string `json:"rationale"`

	// Value is the integer score, always within [MinScore, MaxScore].
	Value int `json:"value"`
}

// NewDimensionScore validates and constructs a DimensionScore.
func NewDimensionScore(name, rationale string, value int) (DimensionScore, error) {
	if name == "" {
		return DimensionScore{}, NewValidationError("dimension name must not be empty")
	}
	if value < MinScore || value > MaxScore {
		return DimensionScore{}, NewValidationErrorf(
			"score %d for dimension %q outside [%d, %d]", value, name, MinScore, MaxScore)
	}
	return DimensionScore{Name: name, Rationale: rationale, Value: value}, nil
}

// EvaluationResult is the full judgment of one candidate: one score per
// requested dimension, dimension names unique.
type EvaluationResult struct {
	Scores []DimensionScore `json:"scores"`
}

// NewEvaluationResult validates and constructs an EvaluationResult. It fails
// when scores is empty, any score is out of range, or a dimension name is
// duplicated.
func NewEvaluationResult(scores []DimensionScore) (*EvaluationResult, error) {
	if len(scores) == 0 {
		return nil, NewValidationError("evaluation result must contain at least one score")
	}

	seen := make(map[string]struct{}, len(scores))
	for _, s := range scores {
		if _, err := NewDimensionScore(s.Name, s.Rationale, s.Value); err != nil {
			return nil, err
		}
		if _, dup := seen[s.Name]; dup {
			return nil, NewValidationErrorf("duplicate dimension %q in evaluation result", s.Name)
		}
		seen[s.Name] = struct{}{}
	}

	out := make([]DimensionScore, len(scores))
	copy(out, scores)
	return &EvaluationResult{Scores: out}, nil
}

// Total returns the sum of all dimension scores. This total is the sole
// ordering used by the optimization loop.
func (r *EvaluationResult) Total() int {
	total := 0
	for _, s := range r.Scores {
		total += s.Value
	}
	return total
}

// Average returns the mean score across dimensions.
func (r *EvaluationResult) Average() float64 {
	return float64(r.Total()) / float64(len(r.Scores))
}

// BetterThan reports whether r strictly beats other on total score.
// Equal totals are not an improvement.
func (r *EvaluationResult) BetterThan(other *EvaluationResult) bool {
	return other == nil || r.Total() > other.Total()
}

// EqualTo reports whether r and other have equal total scores.
func (r *EvaluationResult) EqualTo(other *EvaluationResult) bool {
	return other != nil && r.Total() == other.Total()
}

// WorseThan reports whether r strictly loses to other on total score.
func (r *EvaluationResult) WorseThan(other *EvaluationResult) bool {
	return other != nil && r.Total() < other.Total()
}

// String renders the result in "total (avg x.x)" form for logs.
func (r *EvaluationResult) String() string {
	return fmt.Sprintf("%d (avg %.2f over %d dimensions)", r.Total(), r.Average(), len(r.Scores))
}
