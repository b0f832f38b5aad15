package optimize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDimensionScore(t *testing.T) {
	tests := []struct {
		name    string
		dim     string
		value   int
		wantErr bool
	}{
		{name: "lower bound", dim: "clarity", value: 1},
		{name: "upper bound", dim: "clarity", value: 9},
		{name: "mid range", dim: "impact", value: 5},
		{name: "zero", dim: "clarity", value: 0, wantErr: true},
		{name: "above range", dim: "clarity", value: 10, wantErr: true},
		{name: "negative", dim: "clarity", value: -3, wantErr: true},
		{name: "empty name", dim: "", value: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := NewDimensionScore(tt.dim, "because", tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindValidation), "expected validation error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dim, score.Name)
			assert.Equal(t, tt.value, score.Value)
			assert.Equal(t, "because", score.Rationale)
		})
	}
}

func TestNewEvaluationResult(t *testing.T) {
	tests := []struct {
		name    string
		scores  []DimensionScore
		wantErr bool
	}{
		{
			name:   "single dimension",
			scores: []DimensionScore{{Name: "clarity", Value: 5}},
		},
		{
			name: "multiple dimensions",
			scores: []DimensionScore{
				{Name: "clarity", Value: 3},
				{Name: "impact", Value: 9},
			},
		},
		{name: "empty", scores: nil, wantErr: true},
		{
			name: "duplicate dimension",
			scores: []DimensionScore{
				{Name: "clarity", Value: 3},
				{Name: "clarity", Value: 4},
			},
			wantErr: true,
		},
		{
			name:    "out of range value",
			scores:  []DimensionScore{{Name: "clarity", Value: 12}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewEvaluationResult(tt.scores)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindValidation))
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			require.Len(t, result.Scores, len(tt.scores))
		})
	}
}

func TestEvaluationResultCopiesScores(t *testing.T) {
	scores := []DimensionScore{{Name: "clarity", Value: 5}}
	result, err := NewEvaluationResult(scores)
	require.NoError(t, err)

	scores[0].Value = 9
	assert.Equal(t, 5, result.Scores[0].Value, "result must not alias the caller's slice")
}

func TestTotalAndAverage(t *testing.T) {
	result, err := NewEvaluationResult([]DimensionScore{
		{Name: "clarity", Value: 4},
		{Name: "impact", Value: 7},
		{Name: "relevance", Value: 9},
	})
	require.NoError(t, err)

	assert.Equal(t, 20, result.Total())
	assert.InDelta(t, 20.0/3.0, result.Average(), 1e-9)
}

func TestComparison(t *testing.T) {
	low, err := NewEvaluationResult([]DimensionScore{{Name: "clarity", Value: 3}})
	require.NoError(t, err)
	high, err := NewEvaluationResult([]DimensionScore{{Name: "clarity", Value: 8}})
	require.NoError(t, err)
	// Different per-dimension shape, same total as low: only totals matter.
	alsoLow, err := NewEvaluationResult([]DimensionScore{
		{Name: "clarity", Value: 1},
		{Name: "impact", Value: 2},
	})
	require.NoError(t, err)

	assert.True(t, high.BetterThan(low))
	assert.False(t, low.BetterThan(high))
	assert.True(t, low.WorseThan(high))
	assert.False(t, high.WorseThan(low))

	assert.True(t, low.EqualTo(alsoLow))
	assert.False(t, low.BetterThan(alsoLow), "equal totals are not improvements")
	assert.False(t, low.WorseThan(alsoLow))

	// A nil incumbent is always beaten.
	assert.True(t, low.BetterThan(nil))
	assert.False(t, low.EqualTo(nil))
	assert.False(t, low.WorseThan(nil))
}

func TestTruncateCandidate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{name: "under limit", text: "short", limit: 280, want: "short"},
		{name: "exactly at limit", text: strings.Repeat("a", 280), limit: 280, want: strings.Repeat("a", 280)},
		{name: "over limit", text: strings.Repeat("a", 300), limit: 280, want: strings.Repeat("a", 277) + "..."},
		{name: "whitespace trimmed", text: "  padded  ", limit: 280, want: "padded"},
		{name: "multibyte runes", text: strings.Repeat("é", 300), limit: 280, want: strings.Repeat("é", 277) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateCandidate(tt.text, tt.limit)
			assert.Equal(t, tt.want, got.String())
			assert.LessOrEqual(t, got.Len(), tt.limit)
		})
	}
}

func TestErrorKinds(t *testing.T) {
	genErr := WrapGenerationError(assert.AnError, "call failed")
	require.Error(t, genErr)
	assert.True(t, IsKind(genErr, KindGeneration))
	assert.False(t, IsKind(genErr, KindEvaluation))
	assert.ErrorIs(t, genErr, assert.AnError)

	evalErr := WrapEvaluationError(NewValidationError("bad score"), "unusable judgment")
	assert.True(t, IsKind(evalErr, KindEvaluation))
	assert.True(t, IsKind(evalErr, KindValidation), "wrapped kinds stay discoverable")

	assert.Nil(t, WrapGenerationError(nil, "noop"))
	assert.Nil(t, WrapEvaluationError(nil, "noop"))

	cfgErr := NewConfigurationErrorf("patience must be >= 1, got %d", 0)
	assert.Contains(t, cfgErr.Error(), "configuration")
	assert.Contains(t, cfgErr.WithOperation("New").Error(), "New")
}
