// Copyright 2025 Certen Protocol
//
// Structural decode of search_graph.json. pkg/search only exports the
// canonical-JSON encode direction (Graph.ToCanonicalJSONBytes) — decoding is
// a verifier-only need, so it lives here rather than growing pkg/search an
// unused Unmarshal path. Cert-profile tape<->graph equivalence (checkTape*)
// instead reconstructs a full *search.Graph from the tape and compares
// canonical bytes directly, sidestepping this decode entirely.

package verifier

import "encoding/json"

type graphMetadataJSON struct {
	WorldID              string `json:"world_id"`
	PolicySnapshotDigest string `json:"policy_snapshot_digest"`
	ScorerDigest         string `json:"scorer_digest"`
	OperatorSetDigest    string `json:"operator_set_digest"`
	RootIdentityDigest   string `json:"root_identity_digest"`
	RootEvidenceDigest   string `json:"root_evidence_digest"`
	RegistryDigest       string `json:"registry_digest"`
	TerminationReason    struct {
		Type string `json:"type"`
	} `json:"termination_reason"`
}

type nodeSummaryJSON struct {
	NodeID uint64 `json:"node_id"`
	IsGoal bool   `json:"is_goal"`
}

type candidateScoreSourceJSON struct {
	Source json.RawMessage `json:"source"`
}

type candidateJSON struct {
	Score struct {
		Source json.RawMessage `json:"source"`
	} `json:"score"`
}

type expansionJSON struct {
	Candidates []candidateJSON `json:"candidates"`
}

type graphEnvelopeJSON struct {
	Metadata      graphMetadataJSON `json:"metadata"`
	NodeSummaries []nodeSummaryJSON `json:"node_summaries"`
	Expansions    []expansionJSON   `json:"expansions"`
}

func parseGraphEnvelope(content []byte) (*graphEnvelopeJSON, error) {
	var g graphEnvelopeJSON
	if err := json.Unmarshal(content, &g); err != nil {
		return nil, &VerifyError{Kind: ErrGraphMetadataInvalid, Artifact: "search_graph.json", Detail: err.Error()}
	}
	return &g, nil
}

// modelDigestsUsed returns the distinct model_digest hex values referenced
// by any candidate whose score source is "model_digest", and reports
// whether any candidate used a non-uniform, non-model_digest source kind
// unexpectedly (none are expected in this milestone, but the check stays
// open to the closed source-kind set rather than assuming only two exist).
func (g *graphEnvelopeJSON) modelDigestsUsed() (map[string]bool, error) {
	seen := make(map[string]bool)
	for _, e := range g.Expansions {
		for _, c := range e.Candidates {
			var tagged string
			if err := json.Unmarshal(c.Score.Source, &tagged); err == nil {
				continue // bare string source ("uniform"/"unavailable")
			}
			var obj struct {
				ModelDigest string `json:"model_digest"`
			}
			if err := json.Unmarshal(c.Score.Source, &obj); err != nil {
				return nil, &VerifyError{Kind: ErrGraphMetadataInvalid, Artifact: "search_graph.json", Field: "score.source", Detail: err.Error()}
			}
			seen[obj.ModelDigest] = true
		}
	}
	return seen, nil
}
