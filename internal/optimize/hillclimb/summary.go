package hillclimb

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TrajectorySummary aggregates the score trajectory of a run's history.
type TrajectorySummary struct {
	Iterations   int     `json:"iterations"`
	Improvements int     `json:"improvements"`
	MeanTotal    float64 `json:"mean_total"`
	StdDevTotal  float64 `json:"stddev_total"`
	MinTotal     float64 `json:"min_total"`
	MaxTotal     float64 `json:"max_total"`
}

// Summarize computes trajectory statistics over the best-so-far totals of a
// run's snapshots. The totals are non-decreasing, so MaxTotal is always the
// final best. Returns the zero summary for an empty history.
func Summarize(history []Snapshot) TrajectorySummary {
	if len(history) == 0 {
		return TrajectorySummary{}
	}

	totals := make([]float64, len(history))
	improvements := 0
	for i, s := range history {
		totals[i] = float64(s.Result.Total())
		if s.Improved {
			improvements++
		}
	}

	summary := TrajectorySummary{
		Iterations:   len(history),
		Improvements: improvements,
		MeanTotal:    stat.Mean(totals, nil),
		MinTotal:     floats.Min(totals),
		MaxTotal:     floats.Max(totals),
	}
	if len(totals) > 1 {
		summary.StdDevTotal = stat.StdDev(totals, nil)
	}
	return summary
}
