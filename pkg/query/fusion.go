// Package query implements the fusion and query pipeline (spec
// component C6): the outward search/text_search/hybrid_search/
// multi_query_search/batch_search/recommend operations, and the four
// ranking-fusion strategies they share.
//
// Grounded on the teacher's pkg/search/search.go fuseRRF (rank maps,
// reciprocal-rank formula, k_rrf default 60), generalized from "exactly
// one vector ranking plus one BM25 ranking" to N arbitrary rankings and
// extended with the Average/Maximum/Weighted strategies spec.md §4.5
// also requires.
package query

import "sort"

// Strategy selects how per-query rankings are combined into one fused
// ranking (spec.md §4.5's fusion strategy table).
type Strategy int

const (
	RRF Strategy = iota
	Average
	Maximum
	Weighted
)

// Ranked is one entry in a single query's result ranking, ascending
// rank order (index 0 is rank 1).
type Ranked struct {
	ID    uint64
	Score float64
}

// Fused is one id's combined result after fusion.
type Fused struct {
	ID    uint64
	Score float64
}

// Options configures a fusion pass. RRFK defaults to 60 when zero.
// Weights (WAvg, WMax, WHit) are only consulted by Weighted; Fuse does
// not check that they are non-negative or that they sum to 1.
type Options struct {
	RRFK float64
	WAvg float64
	WMax float64
	WHit float64
}

// DefaultOptions returns spec.md §4.5's RRF default (k_rrf=60).
func DefaultOptions() Options {
	return Options{RRFK: 60}
}

// Fuse combines q independent rankings into one fused ranking sorted by
// score descending, ties broken by ascending id (spec.md §4.5's final
// tie-break rule, applied uniformly across strategies since nothing in
// the spec says otherwise for non-hybrid fusion).
func Fuse(strategy Strategy, rankings [][]Ranked, opts Options) []Fused {
	switch strategy {
	case RRF:
		return fuseRRF(rankings, opts)
	case Average:
		return fuseAverage(rankings)
	case Maximum:
		return fuseMaximum(rankings)
	case Weighted:
		return fuseWeighted(rankings, opts)
	default:
		return fuseRRF(rankings, opts)
	}
}

func sortFused(out []Fused) []Fused {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// fuseRRF implements spec.md §4.5's RRF strategy:
// score(id) = Σ_i 1/(k_rrf + rank_i(id)), with a missing rank
// contributing 0 (equivalent to "rank = ∞"). Grounded on the teacher's
// fuseRRF, generalized from two fixed rankings to an arbitrary list.
func fuseRRF(rankings [][]Ranked, opts Options) []Fused {
	k := opts.RRFK
	if k == 0 {
		k = 60
	}
	scores := make(map[uint64]float64)
	for _, ranking := range rankings {
		for i, r := range ranking {
			rank := float64(i + 1)
			scores[r.ID] += 1.0 / (k + rank)
		}
	}
	out := make([]Fused, 0, len(scores))
	for id, s := range scores {
		out = append(out, Fused{ID: id, Score: s})
	}
	return sortFused(out)
}

// normalizeScores min-max-normalizes one ranking's scores to [0,1], per
// spec.md §9 Open Question resolution #2: Average/Maximum/Weighted
// inputs are normalized per query before combining (RRF stays
// rank-based and skips this). Missing ids are implicitly 0 per
// spec.md's "treating missing ids as 0".
func normalizeScores(ranking []Ranked) map[uint64]float64 {
	out := make(map[uint64]float64, len(ranking))
	if len(ranking) == 0 {
		return out
	}
	min, max := ranking[0].Score, ranking[0].Score
	for _, r := range ranking {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	span := max - min
	for _, r := range ranking {
		if span == 0 {
			out[r.ID] = 1
			continue
		}
		out[r.ID] = (r.Score - min) / span
	}
	return out
}

// fuseAverage implements spec.md §4.5's Average strategy over min-max
// normalized per-query scores, treating an id missing from a ranking as
// contributing 0 to that ranking's term.
func fuseAverage(rankings [][]Ranked) []Fused {
	sums := make(map[uint64]float64)
	for _, ranking := range rankings {
		for id, score := range normalizeScores(ranking) {
			sums[id] += score
		}
	}
	out := make([]Fused, 0, len(sums))
	for id, s := range sums {
		out = append(out, Fused{ID: id, Score: s / float64(len(rankings))})
	}
	return sortFused(out)
}

// fuseMaximum implements spec.md §4.5's Maximum strategy: the best
// min-max normalized score for id across all rankings.
func fuseMaximum(rankings [][]Ranked) []Fused {
	maxes := make(map[uint64]float64)
	for _, ranking := range rankings {
		for id, score := range normalizeScores(ranking) {
			if cur, ok := maxes[id]; !ok || score > cur {
				maxes[id] = score
			}
		}
	}
	out := make([]Fused, 0, len(maxes))
	for id, s := range maxes {
		out = append(out, Fused{ID: id, Score: s})
	}
	return sortFused(out)
}

// fuseWeighted implements spec.md §4.5's Weighted strategy:
// w_avg·avg + w_max·max + w_hit·(hit_count/q), over min-max normalized
// per-query scores.
func fuseWeighted(rankings [][]Ranked, opts Options) []Fused {
	sums := make(map[uint64]float64)
	maxes := make(map[uint64]float64)
	hits := make(map[uint64]int)
	ids := make(map[uint64]struct{})
	q := len(rankings)

	for _, ranking := range rankings {
		for id, score := range normalizeScores(ranking) {
			ids[id] = struct{}{}
			sums[id] += score
			hits[id]++
			if cur, ok := maxes[id]; !ok || score > cur {
				maxes[id] = score
			}
		}
	}

	out := make([]Fused, 0, len(ids))
	for id := range ids {
		avg := sums[id] / float64(q)
		max := maxes[id]
		hitFrac := float64(hits[id]) / float64(q)
		score := opts.WAvg*avg + opts.WMax*max + opts.WHit*hitFrac
		out = append(out, Fused{ID: id, Score: score})
	}
	return sortFused(out)
}
