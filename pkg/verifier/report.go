// Copyright 2025 Certen Protocol
//
// VerificationReport decodes the verification_report.json artifact — the
// producer's own account of what it built, which VerifyBundle cross-checks
// against every other artifact rather than trusting outright. Field set
// grounded on spec.md §4.6 steps 7-13.

package verifier

import "encoding/json"

// VerificationReport is the decoded verification_report.json artifact.
type VerificationReport struct {
	Mode                 string `json:"mode"` // "linear" or "search"
	WorldID              string `json:"world_id"`
	PolicyDigest         string `json:"policy_digest"`
	FixtureDigest        string `json:"fixture_digest"`
	ScorerDigest         string `json:"scorer_digest,omitempty"`
	SearchGraphDigest    string `json:"search_graph_digest,omitempty"`
	TapeDigest           string `json:"tape_digest,omitempty"`
	OperatorSetDigest    string `json:"operator_set_digest"`
	ConceptSetDigest     string `json:"concept_set_digest,omitempty"`
	ToolTranscriptDigest string `json:"tool_transcript_digest,omitempty"`
	IdentityDigest       string `json:"identity_digest,omitempty"`
	EvidenceDigest       string `json:"evidence_digest,omitempty"`
}

func parseReport(content []byte) (*VerificationReport, error) {
	var r VerificationReport
	if err := json.Unmarshal(content, &r); err != nil {
		return nil, &VerifyError{Kind: ErrReportFieldInvalid, Step: 7, Artifact: "verification_report.json", Detail: err.Error()}
	}
	if r.Mode != "linear" && r.Mode != "search" {
		return nil, &VerifyError{Kind: ErrReportFieldInvalid, Step: 7, Artifact: "verification_report.json", Field: "mode", Actual: r.Mode}
	}
	return &r, nil
}
