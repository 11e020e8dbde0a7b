// Copyright 2025 Certen Protocol
//
// Artifact assembly helpers: the small canonical-JSON renderings RunSearch
// needs that aren't owned by any one domain package (policy_snapshot.json,
// compilation_manifest.json, verification_report.json, and the tape
// header). Grounded on original_source/harness/src/policy.rs's
// build_policy and runner.rs's build_search_verification_report /
// build_fixture_json shapes.
package harness

import (
	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/search"
)

// buildPolicySnapshotJSON renders the search policy's canonical snapshot —
// the artifact policy_snapshot.json holds, and the one basis both
// PolicySnapshotDigest and SearchPolicyDigest hash (this harness has no
// separate world-side policy surface distinct from the search policy, so
// the two digests coincide).
func buildPolicySnapshotJSON(policy search.Policy) ([]byte, error) {
	return codec.CanonicalJSONBytes(map[string]any{
		"schema_version":          "search_policy.v1",
		"dedup_key":               string(policy.DedupKey),
		"prune_visited_policy":    string(policy.PruneVisitedPolicy),
		"max_candidates_per_node": policy.MaxCandidatesPerNode,
		"max_depth":               policy.MaxDepth,
		"max_expansions":          policy.MaxExpansions,
		"max_frontier_size":       policy.MaxFrontierSize,
	})
}

// buildCompilationManifestJSON renders the root-state compilation summary:
// the schema/registry bindings the world compiled against, plus the root
// state's own dimensions and fingerprint. Grounded on runner.rs's
// `compile()` output (compilation.compilation_manifest); this module has no
// separate compile step, so RunSearch renders the manifest directly from
// the already-built root state.
func buildCompilationManifestJSON(w interface {
	WorldID() string
	Dimensions() (int, int, int, []string)
}, rootState *carrier.ByteState, schemaHash codec.ContentHash, registryDigest codec.ContentHash) ([]byte, error) {
	layerCount, slotCount, argSlotCount, _ := w.Dimensions()
	return codec.CanonicalJSONBytes(map[string]any{
		"schema_version":         "compilation_manifest.v1",
		"world_id":               w.WorldID(),
		"schema_descriptor_hash": schemaHash.HexDigest(),
		"registry_digest":        registryDigest.HexDigest(),
		"layer_count":            layerCount,
		"slot_count":             slotCount,
		"arg_slot_count":         argSlotCount,
		"root_state_fingerprint": rootState.Fingerprint().HexDigest(),
	})
}

// reportFields is the subset of verifier.VerificationReport's fields
// RunSearch computes directly; mode is always "search" for this harness
// (spec.md §6 also defines a "linear" mode, out of scope for the world
// descriptors this module ships).
type reportFields struct {
	WorldID              string
	PolicyDigest         string
	FixtureDigest        string
	ScorerDigest         string
	SearchGraphDigest    string
	TapeDigest           string
	OperatorSetDigest    string
	ConceptSetDigest     string
	ToolTranscriptDigest string
}

func buildVerificationReportJSON(f reportFields) ([]byte, error) {
	doc := map[string]any{
		"mode":                "search",
		"world_id":            f.WorldID,
		"policy_digest":       f.PolicyDigest,
		"fixture_digest":      f.FixtureDigest,
		"search_graph_digest": f.SearchGraphDigest,
		"tape_digest":         f.TapeDigest,
		"operator_set_digest": f.OperatorSetDigest,
		"concept_set_digest":  f.ConceptSetDigest,
	}
	if f.ScorerDigest != "" {
		doc["scorer_digest"] = f.ScorerDigest
	}
	if f.ToolTranscriptDigest != "" {
		doc["tool_transcript_digest"] = f.ToolTranscriptDigest
	}
	return codec.CanonicalJSONBytes(doc)
}

// tapeHeaderJSON renders the .stap header: the same snapshot bindings the
// graph metadata carries, plus the root state's fingerprint and the
// policy's dedup/prune fields tape.ToGraph needs to re-derive a Metadata
// identical to the one search.Run built directly (pkg/tape/render.go's
// metadataFromHeader).
func tapeHeaderJSON(bindings search.MetadataBindings, rootState *carrier.ByteState, policy search.Policy, operatorSetDigest string) ([]byte, error) {
	doc := map[string]any{
		"world_id":               bindings.WorldID,
		"schema_descriptor":      bindings.SchemaDescriptor,
		"registry_digest":        bindings.RegistryDigest,
		"policy_snapshot_digest": bindings.PolicySnapshotDigest,
		"search_policy_digest":   bindings.SearchPolicyDigest,
		"root_state_fingerprint": rootState.Fingerprint().HexDigest(),
		"dedup_key":              string(policy.DedupKey),
		"prune_visited_policy":   string(policy.PruneVisitedPolicy),
	}
	if operatorSetDigest != "" {
		doc["operator_set_digest"] = operatorSetDigest
	}
	if bindings.RootIdentityDigest != "" {
		doc["root_identity_digest"] = bindings.RootIdentityDigest
	}
	if bindings.RootEvidenceDigest != "" {
		doc["root_evidence_digest"] = bindings.RootEvidenceDigest
	}
	return codec.CanonicalJSONBytes(doc)
}
