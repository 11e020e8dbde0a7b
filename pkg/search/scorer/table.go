// Copyright 2025 Certen Protocol
//
// TableScorer: a deterministic, content-addressed bonus lookup keyed by
// candidate canonical_hash. Ships as a normative bundle artifact
// (scorer.json) so Cert-profile verification can bind candidate scores to
// the exact table that produced them.
// Grounded on original_source/tests/lock/tests/sc1_m3_2_table_scorer.rs
// (build_table_scorer_input / ScorerInputV1::Table) — the producing
// sterling_harness::runner module is absent from the pack, so this package
// supplies the table scorer type directly rather than inferring a runner
// shim around it.

package scorer

import (
	"sort"

	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/search"
)

// Table is a canonical_hash -> bonus lookup. Missing entries score 0.
type Table struct {
	entries map[string]int64
}

// NewTable builds a Table from a hash->bonus map. The map is copied; later
// mutation of the caller's map does not affect the Table.
func NewTable(entries map[string]int64) *Table {
	t := &Table{entries: make(map[string]int64, len(entries))}
	for k, v := range entries {
		t.entries[k] = v
	}
	return t
}

// Lookup returns the bonus for hash, or 0 if absent.
func (t *Table) Lookup(hash string) int64 {
	return t.entries[hash]
}

// CanonicalBytes renders the table as canonical JSON: a sorted array of
// {canonical_hash, bonus} entries, matching scorer.json's normative shape.
func (t *Table) CanonicalBytes() ([]byte, error) {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, map[string]any{
			"canonical_hash": k,
			"bonus":          t.entries[k],
		})
	}
	return codec.CanonicalJSONBytes(map[string]any{"table": entries})
}

// Digest computes H(DomainCompilationPayload, CanonicalBytes) — the
// content hash bound into scorer.json's content_hash and into
// search_graph.json's metadata.scorer_digest.
func (t *Table) Digest() (codec.ContentHash, error) {
	b, err := t.CanonicalBytes()
	if err != nil {
		return codec.ContentHash{}, err
	}
	return codec.Hash(codec.DomainCompilationPayload, b), nil
}

// TableScorer scores candidates by table lookup, tagging every candidate's
// score (zero bonus included) with ScoreSourceModelDigest so the bundle can
// bind the score back
// to this table's content hash.
type TableScorer struct {
	table     *Table
	digestHex string
}

// NewTableScorer wraps table, precomputing its digest for per-candidate
// provenance tagging.
func NewTableScorer(table *Table) (*TableScorer, error) {
	digest, err := table.Digest()
	if err != nil {
		return nil, err
	}
	return &TableScorer{table: table, digestHex: digest.HexDigest()}, nil
}

// Table returns the backing lookup table.
func (s *TableScorer) Table() *Table { return s.table }

func (s *TableScorer) ScoreCandidates(_ search.SearchNode, candidates []search.CandidateAction) []search.CandidateScore {
	scores := make([]search.CandidateScore, len(candidates))
	for i, c := range candidates {
		scores[i] = search.CandidateScore{
			Bonus: s.table.Lookup(c.CanonicalHash),
			Source: search.ScoreSource{
				Kind:        search.ScoreSourceModelDigest,
				ModelDigest: s.digestHex,
			},
		}
	}
	return scores
}

func (s *TableScorer) Digest() string { return s.digestHex }
