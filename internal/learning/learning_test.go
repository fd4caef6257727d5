package learning_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/learning"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// TestCheckPatternRisk_S4 exercises scenario S4 from spec.md §8.4.
func TestCheckPatternRisk_S4(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "failed", Pattern: "regex-parser", Type: store.LearningFailure})
		require.NoError(t, err)
	}
	_, err := s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "worked", Pattern: "regex-parser", Type: store.LearningSuccess})
	require.NoError(t, err)

	risk, err := learning.CheckPatternRisk(ctx, s, "regex-parser")
	require.NoError(t, err)
	require.InDelta(t, 0.75, risk.FailureRate, 0.001)
	require.Equal(t, "high", risk.RiskLevel)
	require.True(t, risk.IsRisky)
}

func TestCheckPatternRisk_NoDataIsNotRisky(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	risk, err := learning.CheckPatternRisk(ctx, s, "never-seen")
	require.NoError(t, err)
	require.False(t, risk.IsRisky)
	require.Equal(t, "none", risk.RiskLevel)
	require.Equal(t, 0.0, risk.FailureRate)
}

// TestDetectFailurePatterns_BoundaryBelowMinOccurrences exercises spec.md
// §8.3: frequency below min_occurrences is excluded entirely.
func TestDetectFailurePatterns_BoundaryBelowMinOccurrences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "failed", Pattern: "flaky", Type: store.LearningFailure})
		require.NoError(t, err)
	}

	patterns, err := learning.DetectFailurePatterns(ctx, s, 3, 0.5)
	require.NoError(t, err)
	require.Empty(t, patterns)
}

func TestDetectFailurePatterns_RankedByFailureRateThenFrequency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := func(pattern string, failures, successes int) {
		for i := 0; i < failures; i++ {
			_, err := s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "failed", Pattern: pattern, Type: store.LearningFailure})
			require.NoError(t, err)
		}
		for i := 0; i < successes; i++ {
			_, err := s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "ok", Pattern: pattern, Type: store.LearningSuccess})
			require.NoError(t, err)
		}
	}
	seed("always-fails", 4, 0)  // rate 1.0, freq 4
	seed("mostly-fails", 3, 1)  // rate 0.75, freq 4
	seed("sometimes-fails", 2, 2) // rate 0.5, freq 4

	patterns, err := learning.DetectFailurePatterns(ctx, s, 3, 0.5)
	require.NoError(t, err)
	require.Len(t, patterns, 3)
	require.Equal(t, "always-fails", patterns[0].Pattern)
	require.Equal(t, "mostly-fails", patterns[1].Pattern)
	require.Equal(t, "sometimes-fails", patterns[2].Pattern)
	require.Equal(t, "high", patterns[0].RiskLevel)
	require.Equal(t, "medium", patterns[2].RiskLevel)
}

// TestRiskMonotonicity is the law from spec.md §8.2: adding one more
// failure learning to a pattern must not decrease its failure_rate or
// classified risk level.
func TestRiskMonotonicity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	levelRank := map[string]int{"none": 0, "low": 1, "medium": 2, "high": 3}

	_, err := s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "ok", Pattern: "p", Type: store.LearningSuccess})
	require.NoError(t, err)
	prev, err := learning.CheckPatternRisk(ctx, s, "p")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "failed", Pattern: "p", Type: store.LearningFailure})
		require.NoError(t, err)
		cur, err := learning.CheckPatternRisk(ctx, s, "p")
		require.NoError(t, err)
		require.GreaterOrEqual(t, cur.FailureRate, prev.FailureRate)
		require.GreaterOrEqual(t, levelRank[cur.RiskLevel], levelRank[prev.RiskLevel])
		prev = cur
	}
}

func TestTrendingPatterns_MergesSuccessRate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "ok", Pattern: "recent", Type: store.LearningSuccess})
	require.NoError(t, err)
	_, err = s.AddFeedback(ctx, &store.Learning{Context: "c", Result: "failed", Pattern: "recent", Type: store.LearningFailure})
	require.NoError(t, err)

	trending, err := learning.TrendingPatterns(ctx, s, 7, 10)
	require.NoError(t, err)
	require.Len(t, trending, 1)
	require.Equal(t, "recent", trending[0].Pattern)
	require.Equal(t, 2, trending[0].RecentCount)
	require.InDelta(t, 0.5, trending[0].SuccessRate, 0.001)
}
