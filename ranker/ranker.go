// Package ranker fuses semantic similarity and keyword matching into a
// single relevance ordering over a filtered candidate set.
//
// The ranking is recall-gated: a candidate must appear in the semantic
// recall set to be shown at all, however good its keyword match.
package ranker

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/findhub/index/flat"
	"github.com/hupe1980/findhub/store"
)

// epsilon guards the distance-to-similarity transform against division
// by zero on an exact match (distance 0).
const epsilon = 1e-9

// Options contains configuration options for rank fusion.
type Options struct {
	// Alpha is the fusion weight on the semantic signal;
	// the keyword signal gets 1-Alpha. Empirically chosen default.
	Alpha float64

	// RecallLimit bounds the semantic recall set: the query asks the
	// index for min(RecallLimit, len(candidates)) nearest neighbors.
	RecallLimit int
}

// DefaultOptions contains the default configuration options for rank fusion.
var DefaultOptions = Options{
	Alpha:       0.8,
	RecallLimit: 100,
}

// ScoredRecord is a record with its fused relevance score attached.
type ScoredRecord struct {
	store.Record
	Score float64 `json:"score"`
}

// Tokenize lowercases the query text and splits it on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// RecallK returns the size of the semantic recall set for a candidate
// set of the given size.
func RecallK(numCandidates int, opts Options) int {
	if numCandidates < opts.RecallLimit {
		return numCandidates
	}
	return opts.RecallLimit
}

// Rank computes fused scores for the candidates and returns them in
// descending score order.
//
// neighbors is the semantic recall set over the FULL index; candidates
// outside it are dropped (recall-gating), while neighbors outside the
// candidate set still participate in semantic normalization. Ties keep
// the original candidate order (stable sort); no secondary key is
// defined.
func Rank(candidates []store.Record, neighbors []flat.SearchResult, queryText string, opts Options) []ScoredRecord {
	if len(candidates) == 0 || len(neighbors) == 0 {
		return nil
	}

	// Raw semantic scores for the FULL recall set. Neighbors that later
	// fail the candidate join still set the normalization scale: a very
	// close filtered-out vector shrinks every survivor's norm_s and
	// shifts weight to the keyword channel.
	recalled := roaring.New()
	semanticRaw := make(map[uint32]float64, len(neighbors))
	for _, n := range neighbors {
		recalled.Add(n.ID)
		semanticRaw[n.ID] = 1.0 / (float64(n.Distance) + epsilon)
	}

	tokens := Tokenize(queryText)

	keywordRaw := make(map[uint32]float64, len(candidates))
	for _, rec := range candidates {
		if !recalled.Contains(rec.VecID) {
			continue
		}
		var score float64
		if len(tokens) > 0 {
			text := rec.MatchText()
			for _, tok := range tokens {
				if strings.Contains(text, tok) {
					score++
				}
			}
		}
		keywordRaw[rec.VecID] = score
	}

	maxSemantic := maxValue(semanticRaw)
	maxKeyword := maxValue(keywordRaw)

	results := make([]ScoredRecord, 0, len(candidates))
	for _, rec := range candidates {
		if !recalled.Contains(rec.VecID) {
			continue
		}
		normS := semanticRaw[rec.VecID] / maxSemantic
		normK := keywordRaw[rec.VecID] / maxKeyword

		results = append(results, ScoredRecord{
			Record: rec,
			Score:  opts.Alpha*normS + (1-opts.Alpha)*normK,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

// maxValue returns the maximum of m's values, or 1.0 when the map is
// empty or the maximum is zero, so normalization never divides by zero.
func maxValue(m map[uint32]float64) float64 {
	max := 0.0
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return 1.0
	}
	return max
}
