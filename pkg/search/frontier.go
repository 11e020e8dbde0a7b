// Copyright 2025 Certen Protocol
//
// BestFirstFrontier: a priority queue ordered by (f_cost asc, depth asc,
// creation_order asc), plus the visited-fingerprint dedup set and dead-end
// tracking. Grounded on original_source/search/src/frontier.rs (inferred
// from usage in search.rs: push/pop/is_empty/len/is_visited/mark_dead_end/
// prune_to/high_water — the file itself is absent from the pack).

package search

import "sort"

// BestFirstFrontier is the search engine's open set.
type BestFirstFrontier struct {
	entries   []SearchNode
	visited   map[string]bool
	highWater uint64
}

// NewBestFirstFrontier returns an empty frontier.
func NewBestFirstFrontier() *BestFirstFrontier {
	return &BestFirstFrontier{visited: make(map[string]bool)}
}

// Push adds node to the frontier and marks its fingerprint visited.
func (f *BestFirstFrontier) Push(node SearchNode) {
	f.entries = append(f.entries, node)
	f.visited[node.StateFingerprint.HexDigest()] = true
	if uint64(len(f.entries)) > f.highWater {
		f.highWater = uint64(len(f.entries))
	}
}

// Pop removes and returns the minimum entry by (f_cost, depth,
// creation_order), or false if the frontier is empty.
func (f *BestFirstFrontier) Pop() (SearchNode, bool) {
	if len(f.entries) == 0 {
		return SearchNode{}, false
	}
	bestIdx := 0
	for i := 1; i < len(f.entries); i++ {
		if frontierLess(f.entries[i], f.entries[bestIdx]) {
			bestIdx = i
		}
	}
	node := f.entries[bestIdx]
	f.entries = append(f.entries[:bestIdx], f.entries[bestIdx+1:]...)
	return node, true
}

func frontierLess(a, b SearchNode) bool {
	if a.FCost() != b.FCost() {
		return a.FCost() < b.FCost()
	}
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	return a.CreationOrder < b.CreationOrder
}

// IsEmpty reports whether the frontier has no entries.
func (f *BestFirstFrontier) IsEmpty() bool { return len(f.entries) == 0 }

// Len returns the current frontier size.
func (f *BestFirstFrontier) Len() int { return len(f.entries) }

// HighWater returns the largest frontier size ever observed.
func (f *BestFirstFrontier) HighWater() uint64 { return f.highWater }

// IsVisited reports whether fingerprintHex has already been pushed
// (first-seen-wins dedup under DedupIdentityOnly).
func (f *BestFirstFrontier) IsVisited(fingerprintHex string) bool {
	return f.visited[fingerprintHex]
}

// MarkDeadEnd records that fingerprintHex produced no children. Retained
// for PruneReleaseVisited bookkeeping parity with the Rust original; M1's
// KeepVisited policy never releases a visited fingerprint, so this is
// currently a no-op hook for ReleaseVisited support.
func (f *BestFirstFrontier) MarkDeadEnd(_ string) {}

// PruneTo removes the worst (highest f_cost, then depth, then
// creation_order) entries until the frontier has at most maxSize entries.
// Returns the node IDs of the pruned entries, preserving
// frontier-ordering determinism (spec.md §4.4: "Dropped nodes must still
// appear in graph with their dead-end classification").
func (f *BestFirstFrontier) PruneTo(maxSize int) []uint64 {
	if len(f.entries) <= maxSize {
		return nil
	}
	sort.SliceStable(f.entries, func(i, j int) bool {
		return frontierLess(f.entries[i], f.entries[j])
	})
	pruned := f.entries[maxSize:]
	f.entries = f.entries[:maxSize]

	ids := make([]uint64, len(pruned))
	for i, n := range pruned {
		ids[i] = n.NodeID
	}
	return ids
}
