// Copyright 2025 Certen Protocol
//
// Scorer — advisory-only candidate ranking. A scorer reorders expansion
// attempts but never changes the candidate set (spec.md §4.4); the search
// loop re-sorts the scored candidates by (bonus desc, canonical_hash asc)
// before applying them in order.
// Grounded on original_source/search/src/scorer.rs (inferred from usage in
// search.rs/graph.rs) plus original_source/tests/lock/tests/sc1_m3_2_table_scorer.rs
// for the Uniform/Table scorer split.

package search

// ScoreSourceKind distinguishes where a candidate's bonus came from.
type ScoreSourceKind string

const (
	// ScoreSourceUniform means every candidate receives bonus 0 — no
	// scorer artifact participates.
	ScoreSourceUniform ScoreSourceKind = "uniform"
	// ScoreSourceModelDigest means the bonus came from a table scorer
	// artifact, content-addressed by ModelDigest.
	ScoreSourceModelDigest ScoreSourceKind = "model_digest"
	// ScoreSourceUnavailable marks a candidate scored after a scorer
	// contract violation (spec.md §4.4's ScorerContractViolation path);
	// preserved as evidence, never a binding bonus.
	ScoreSourceUnavailable ScoreSourceKind = "unavailable"
)

// ScoreSource records provenance for a candidate's bonus.
type ScoreSource struct {
	Kind        ScoreSourceKind
	ModelDigest string // hex digest, set only when Kind == ScoreSourceModelDigest
}

// CandidateScore is one candidate's advisory ranking bonus plus provenance.
type CandidateScore struct {
	Bonus  int64
	Source ScoreSource
}

// Scorer assigns an advisory bonus to each candidate at a node. Must return
// exactly one score per candidate, in the same order; a length mismatch is
// a ScorerContractViolation (spec.md §4.4).
type Scorer interface {
	ScoreCandidates(node SearchNode, candidates []CandidateAction) []CandidateScore

	// Digest returns the content hash of the scorer's backing artifact, or
	// the empty string for the uniform scorer (no artifact).
	Digest() string
}

// UniformScorer assigns bonus 0 to every candidate and carries no backing
// artifact — the M1 default (sc1_m3_2_table_scorer.rs's "uniform bundle has
// 5 artifacts" case, i.e. no scorer.json).
type UniformScorer struct{}

func (UniformScorer) ScoreCandidates(_ SearchNode, candidates []CandidateAction) []CandidateScore {
	scores := make([]CandidateScore, len(candidates))
	for i := range scores {
		scores[i] = CandidateScore{Bonus: 0, Source: ScoreSource{Kind: ScoreSourceUniform}}
	}
	return scores
}

func (UniformScorer) Digest() string { return "" }
