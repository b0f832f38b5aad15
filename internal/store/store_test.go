package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	s, err := Open("file::memory:?cache=shared&_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettingsRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "no settings saved yet")

	want := Settings{
		Dimensions:    []string{"clarity", "impact"},
		MaxIterations: 10,
		Patience:      5,
		Model:         "openrouter/test-model",
	}
	require.NoError(t, s.SaveSettings(ctx, want))

	got, err = s.GetSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	// Saving again replaces, never duplicates.
	want.Patience = 3
	require.NoError(t, s.SaveSettings(ctx, want))
	got, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Patience)
}

func TestInputHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddInput(ctx, "first"))
	require.NoError(t, s.AddInput(ctx, "second"))
	require.NoError(t, s.AddInput(ctx, "third"))

	inputs, err := s.RecentInputs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, inputs)

	// Resubmitting moves the entry to the front without duplicating it.
	require.NoError(t, s.AddInput(ctx, "first"))
	inputs, err = s.RecentInputs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "third", "second"}, inputs)
}

func TestInputHistoryPruning(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < MaxHistoryItems+7; i++ {
		require.NoError(t, s.AddInput(ctx, fmt.Sprintf("entry %03d", i)))
	}

	inputs, err := s.RecentInputs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, inputs, MaxHistoryItems)
	assert.Equal(t, fmt.Sprintf("entry %03d", MaxHistoryItems+6), inputs[0])
	assert.NotContains(t, inputs, "entry 000", "oldest entries are pruned")
}

func TestRunRecords(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	got, err := s.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	started := time.Now().UTC().Truncate(time.Millisecond)
	rec := RunRecord{
		ID:        "run-1",
		Source:    "hello",
		Status:    "running",
		StartedAt: started,
	}
	require.NoError(t, s.SaveRun(ctx, rec))

	// Terminal update.
	finished := started.Add(3 * time.Second)
	rec.Status = "completed"
	rec.Best = "a better hello"
	rec.BestTotal = 14
	rec.BestAverage = 7.0
	rec.Iterations = 5
	rec.Streak = 2
	rec.FinishedAt = &finished
	require.NoError(t, s.SaveRun(ctx, rec))

	got, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "a better hello", got.Best)
	assert.Equal(t, 14, got.BestTotal)
	assert.Equal(t, 5, got.Iterations)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(finished))

	require.NoError(t, s.SaveRun(ctx, RunRecord{
		ID: "run-2", Source: "other", Status: "failed",
		Error: "evaluation: judge unavailable", StartedAt: started.Add(time.Minute),
	}))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID, "most recently started first")
	assert.Equal(t, "evaluation: judge unavailable", runs[0].Error)
}
