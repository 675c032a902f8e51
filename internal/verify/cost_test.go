package verify_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/verify"
)

func TestCostTracker_TracksSpend(t *testing.T) {
	tracker := verify.NewCostTracker(1.0)
	tracker.AddCost(0.25)
	tracker.AddCost(0.25)

	require.Equal(t, 0.5, tracker.TotalCost())
	require.False(t, tracker.ExceedsCeiling())
	require.InDelta(t, 0.5, tracker.RemainingBudget(), 1e-9)
}

func TestCostTracker_ExceedsCeiling(t *testing.T) {
	tracker := verify.NewCostTracker(0.5)
	tracker.AddCost(0.5)

	require.True(t, tracker.ExceedsCeiling())
	require.Equal(t, 0.0, tracker.RemainingBudget())
}

func TestCostTracker_ZeroCeilingNeverPermitsSpend(t *testing.T) {
	tracker := verify.NewCostTracker(0)

	require.True(t, tracker.ExceedsCeiling())
	require.Equal(t, 0.0, tracker.RemainingBudget())
}

func TestCostTracker_ConcurrentAdds(t *testing.T) {
	tracker := verify.NewCostTracker(100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.AddCost(1)
		}()
	}
	wg.Wait()

	require.Equal(t, 50.0, tracker.TotalCost())
}
