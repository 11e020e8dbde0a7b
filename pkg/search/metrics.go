// Copyright 2025 Certen Protocol
//
// Health metrics derived from a completed Graph. Diagnostic only: never
// bound into any bundle digest, never read back by the verifier. Grounded
// on spec.md §4.4's closing paragraph and original_source/search/src/graph.rs's
// metrics-from-graph helpers (inferred from the Metadata counters the Rust
// struct already exposes — no separate metrics.rs is present in the pack).

package search

// OutcomeHistogram counts candidate outcomes across every expansion in a
// completed graph, keyed by CandidateOutcomeKind.
type OutcomeHistogram map[CandidateOutcomeKind]uint64

// Metrics summarizes a completed search run for operational dashboards. No
// field here participates in any content hash.
type Metrics struct {
	TotalNodes        uint64
	TotalExpansions   uint64
	MaxDepth          uint32
	OutcomesByKind    OutcomeHistogram
	CandidatesPerNode []uint64 // expansion-ordered candidate counts
	DepthHistogram    map[uint32]uint64
}

// ComputeMetrics derives health metrics from a completed graph. Safe to
// call on any Graph returned by Run, including ones that terminated on a
// panic or budget exhaustion.
func ComputeMetrics(g *Graph) Metrics {
	m := Metrics{
		OutcomesByKind: make(OutcomeHistogram),
		DepthHistogram: make(map[uint32]uint64),
	}
	m.TotalNodes = uint64(len(g.NodeSummaries))
	m.TotalExpansions = uint64(len(g.Expansions))

	for _, n := range g.NodeSummaries {
		if n.Depth > m.MaxDepth {
			m.MaxDepth = n.Depth
		}
		m.DepthHistogram[n.Depth]++
	}

	m.CandidatesPerNode = make([]uint64, len(g.Expansions))
	for i, e := range g.Expansions {
		m.CandidatesPerNode[i] = uint64(len(e.Candidates))
		for _, c := range e.Candidates {
			m.OutcomesByKind[c.Outcome.Kind]++
		}
	}

	return m
}
