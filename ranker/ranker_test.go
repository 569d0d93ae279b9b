package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/findhub/index/flat"
	"github.com/hupe1980/findhub/store"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"red", "umbrella"}, Tokenize("Red  Umbrella"))
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   "))
}

func TestRecallK(t *testing.T) {
	opts := DefaultOptions
	assert.Equal(t, 3, RecallK(3, opts))
	assert.Equal(t, 100, RecallK(100, opts))
	assert.Equal(t, 100, RecallK(5000, opts))
	assert.Equal(t, 0, RecallK(0, opts))
}

func TestRank(t *testing.T) {
	t.Run("EmptyCandidates", func(t *testing.T) {
		results := Rank(nil, []flat.SearchResult{{ID: 0, Distance: 1}}, "x", DefaultOptions)
		assert.Empty(t, results)
	})

	t.Run("EmptyNeighbors", func(t *testing.T) {
		results := Rank([]store.Record{{VecID: 0}}, nil, "x", DefaultOptions)
		assert.Empty(t, results)
	})

	t.Run("RecallGating", func(t *testing.T) {
		candidates := []store.Record{
			{ID: "in", VecID: 0, Description: "black wallet"},
			// Perfect keyword match, but not in the recall set: must be
			// excluded entirely, not zero-scored.
			{ID: "out", VecID: 1, Description: "red umbrella"},
		}
		neighbors := []flat.SearchResult{{ID: 0, Distance: 0.5}}

		results := Rank(candidates, neighbors, "red umbrella", DefaultOptions)
		require.Len(t, results, 1)
		assert.Equal(t, "in", results[0].Record.ID)
	})

	t.Run("NonCandidateNeighborsSetSemanticScale", func(t *testing.T) {
		candidates := []store.Record{{ID: "a", VecID: 0, Description: "bag"}}
		neighbors := []flat.SearchResult{
			{ID: 5, Distance: 0.1}, // filtered out in metadata space
			{ID: 0, Distance: 0.9},
		}

		results := Rank(candidates, neighbors, "bag", DefaultOptions)
		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].Record.ID)
		// The filtered-out neighbor is not returned, but its distance
		// still anchors max_s: norm_s = (1/0.9)/(1/0.1) = 1/9, and the
		// keyword maximum stays with the survivor.
		assert.InDelta(t, 0.8/9.0+0.2, results[0].Score, 1e-6)
	})

	t.Run("NonCandidateNeighborShiftsWeightToKeywords", func(t *testing.T) {
		candidates := []store.Record{
			{ID: "near", VecID: 0, Description: "zzz"},
			{ID: "match", VecID: 1, Description: "red umbrella"},
		}
		neighbors := []flat.SearchResult{
			{ID: 9, Distance: 0.001}, // filtered out, but dominates max_s
			{ID: 0, Distance: 1.0},
			{ID: 1, Distance: 2.0},
		}

		// With max_s anchored near 1000, both candidates' norm_s are
		// tiny and the keyword match decides the order.
		results := Rank(candidates, neighbors, "red umbrella", DefaultOptions)
		require.Len(t, results, 2)
		assert.Equal(t, "match", results[0].Record.ID)
		assert.InDelta(t, 0.2004, results[0].Score, 1e-5)
		assert.Equal(t, "near", results[1].Record.ID)
		assert.InDelta(t, 0.0008, results[1].Score, 1e-5)
	})

	t.Run("FusionArithmetic", func(t *testing.T) {
		// Three items, equal semantic proximity, tags empty.
		candidates := []store.Record{
			{ID: "backpack", VecID: 0, Description: "red backpack"},
			{ID: "blue", VecID: 1, Description: "blue umbrella"},
			{ID: "red", VecID: 2, Description: "red umbrella"},
		}
		neighbors := []flat.SearchResult{
			{ID: 0, Distance: 1.0},
			{ID: 1, Distance: 1.0},
			{ID: 2, Distance: 1.0},
		}

		results := Rank(candidates, neighbors, "red umbrella", DefaultOptions)
		require.Len(t, results, 3)

		// norm_s = 1 for all; keyword raw = 1,1,2 -> norm_k = .5,.5,1.
		// score = 0.8*norm_s + 0.2*norm_k.
		assert.Equal(t, "red", results[0].Record.ID)
		assert.Equal(t, 1.0, results[0].Score)
		assert.InDelta(t, 0.9, results[1].Score, 1e-12)
		assert.InDelta(t, 0.9, results[2].Score, 1e-12)

		// Strictly above the partial matches.
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("TiesKeepCandidateOrder", func(t *testing.T) {
		candidates := []store.Record{
			{ID: "first", VecID: 0, Description: "umbrella"},
			{ID: "second", VecID: 1, Description: "umbrella"},
		}
		neighbors := []flat.SearchResult{
			{ID: 0, Distance: 2.0},
			{ID: 1, Distance: 2.0},
		}

		results := Rank(candidates, neighbors, "umbrella", DefaultOptions)
		require.Len(t, results, 2)
		assert.Equal(t, results[0].Score, results[1].Score)
		assert.Equal(t, "first", results[0].Record.ID)
		assert.Equal(t, "second", results[1].Record.ID)
	})

	t.Run("IdenticalKeywordScoresNormalizeToOne", func(t *testing.T) {
		candidates := []store.Record{
			{ID: "a", VecID: 0, Description: "umbrella stand"},
			{ID: "b", VecID: 1, Description: "umbrella rack"},
		}
		neighbors := []flat.SearchResult{
			{ID: 0, Distance: 1.0},
			{ID: 1, Distance: 1.0},
		}

		// Identical raw keyword score (1) for both: norm_k must be
		// exactly 1.0, so the fused score is exactly alpha + (1-alpha).
		results := Rank(candidates, neighbors, "umbrella", DefaultOptions)
		require.Len(t, results, 2)
		assert.Equal(t, 1.0, results[0].Score)
		assert.Equal(t, 1.0, results[1].Score)
	})

	t.Run("NoQueryTextScoresSemanticallyOnly", func(t *testing.T) {
		candidates := []store.Record{
			{ID: "near", VecID: 0, Description: "x"},
			{ID: "far", VecID: 1, Description: "x"},
		}
		neighbors := []flat.SearchResult{
			{ID: 0, Distance: 0.5},
			{ID: 1, Distance: 2.0},
		}

		results := Rank(candidates, neighbors, "", DefaultOptions)
		require.Len(t, results, 2)
		assert.Equal(t, "near", results[0].Record.ID)
		// Keyword contribution is zero, not NaN.
		assert.Equal(t, 0.8, results[0].Score)
	})

	t.Run("ExactMatchDistanceZero", func(t *testing.T) {
		candidates := []store.Record{{ID: "a", VecID: 0, Description: "x"}}
		neighbors := []flat.SearchResult{{ID: 0, Distance: 0}}

		// epsilon guards the 1/(d+eps) transform.
		results := Rank(candidates, neighbors, "", DefaultOptions)
		require.Len(t, results, 1)
		assert.False(t, results[0].Score != results[0].Score, "score must not be NaN")
	})

	t.Run("Alpha", func(t *testing.T) {
		candidates := []store.Record{
			{ID: "semantic", VecID: 0, Description: "zzz"},
			{ID: "keyword", VecID: 1, Description: "red umbrella"},
		}
		neighbors := []flat.SearchResult{
			{ID: 0, Distance: 0.1},
			{ID: 1, Distance: 10.0},
		}

		// With all weight on keywords the keyword match wins.
		results := Rank(candidates, neighbors, "red umbrella", Options{Alpha: 0, RecallLimit: 100})
		require.Len(t, results, 2)
		assert.Equal(t, "keyword", results[0].Record.ID)

		// With all weight on semantics the near vector wins.
		results = Rank(candidates, neighbors, "red umbrella", Options{Alpha: 1, RecallLimit: 100})
		require.Len(t, results, 2)
		assert.Equal(t, "semantic", results[0].Record.ID)
	})
}
