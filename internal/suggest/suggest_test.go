package suggest_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
	"github.com/taskforge-mcp/taskforge-mcp/internal/suggest"
)

func TestScore_ConfidenceFormula(t *testing.T) {
	c := suggest.Candidate{
		Name:     "database-guardian",
		Keywords: []string{"database", "schema", "migration", "sql", "table"},
	}
	// "database" and "schema" match -> match_count 2, total 5.
	confidence, matched := suggest.Score(c, "Add a new database schema for users", "")
	require.ElementsMatch(t, []string{"database", "schema"}, matched)
	require.InDelta(t, 2.0/5.0+0.2, confidence, 0.001)
}

func TestScore_CategoryBonusAndCap(t *testing.T) {
	c := suggest.Candidate{
		Name:     "database-guardian",
		Category: store.CategoryBackendDatabase,
		Keywords: []string{"database", "schema", "migration", "sql", "table"},
	}
	confidence, _ := suggest.Score(c, "database schema migration sql table indexes", store.CategoryBackendDatabase)
	// match_count 5 (all keywords) + 2 (category) = 7; 7/5 + 0.2 = 1.6 -> capped at 0.95.
	require.Equal(t, 0.95, confidence)
}

// TestSuggestionInvariant is spec.md §8.1: every output must have
// 0.2 <= confidence <= 0.95.
func TestSuggestionInvariant_ConfidenceBounds(t *testing.T) {
	texts := []string{
		"",
		"implement a thing",
		"database schema migration sql table index query review security production",
		"completely unrelated text about nothing technical whatsoever",
	}
	for _, text := range texts {
		for _, registry := range [][]suggest.Candidate{suggest.DefaultAgents, suggest.DefaultTools} {
			for _, cat := range []string{"", store.CategoryBackendDatabase, store.CategoryDesignFrontend, store.CategoryTestFix} {
				out := suggest.Top(registry, text, cat, 3)
				for _, s := range out {
					require.GreaterOrEqual(t, s.Confidence, 0.2)
					require.LessOrEqual(t, s.Confidence, 0.95)
				}
			}
		}
	}
}

func TestTop_DeterministicForFixedInput(t *testing.T) {
	text := "Add a database migration for the new schema"
	a := suggest.Top(suggest.DefaultAgents, text, store.CategoryBackendDatabase, 3)
	b := suggest.Top(suggest.DefaultAgents, text, store.CategoryBackendDatabase, 3)
	require.Equal(t, a, b)
}

func TestTop_ReturnsAtMostN(t *testing.T) {
	out := suggest.Top(suggest.DefaultAgents, "database schema migration sql table api endpoint route test coverage review security", "", 3)
	require.LessOrEqual(t, len(out), 3)
}

func TestTop_RankedDescendingByConfidence(t *testing.T) {
	out := suggest.Top(suggest.DefaultAgents, "database schema migration and a general implementation task", store.CategoryBackendDatabase, 5)
	for i := 1; i < len(out); i++ {
		require.GreaterOrEqual(t, out[i-1].Confidence, out[i].Confidence)
	}
}

// TestTop_DropsZeroMatchCandidatesWithNoCategory covers the case where
// both the task and a candidate have no category: the category-equality
// proxy used to be vacuously false ("" == "") and let zero-keyword
// candidates through.
func TestTop_DropsZeroMatchCandidatesWithNoCategory(t *testing.T) {
	out := suggest.Top(suggest.DefaultAgents, "completely unrelated text about nothing technical whatsoever", "", 3)
	require.Empty(t, out)
}
