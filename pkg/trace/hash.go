// Copyright 2025 Certen Protocol
//
// Trace hashing: payload hash and step chain digest. Two independent claim
// surfaces computed from the same trace:
//
//   - Payload hash: whole-trace digest over magic||header_json||body||footer_json.
//   - Step chain: per-frame hash chain for O(1) divergence localization.
//
// These are never mixed — separate columns in the bundle's claim surface.
// Grounded on original_source/kernel/src/proof/trace_hash.rs.

package trace

import "github.com/certen/sterling/pkg/codec"

// PayloadHash computes H(DomainByteTrace, magic||header_json||body||footer_json).
// The envelope is excluded; the magic bytes are included.
func PayloadHash(t *ByteTrace) (codec.ContentHash, error) {
	payload, err := ExtractPayloadBytes(t)
	if err != nil {
		return codec.ContentHash{}, err
	}
	return codec.Hash(codec.DomainByteTrace, payload), nil
}

// StepChainResult is the output of StepChain: the final digest plus the
// full chain of intermediate per-frame digests.
type StepChainResult struct {
	Digest codec.ContentHash
	Chain  []codec.ContentHash
}

// StepChain computes the per-frame hash chain:
//
//	chain_0 = H(DomainTraceStep, frame_0.Bytes())
//	chain_i = H(DomainTraceStepChain, chain_{i-1}.Bytes() || frame_i.Bytes())
//
// Returns ErrEmptyTrace if the trace has no frames.
func StepChain(t *ByteTrace) (StepChainResult, error) {
	if len(t.Frames) == 0 {
		return StepChainResult{}, &TraceError{Kind: ErrEmptyTrace}
	}

	chain := make([]codec.ContentHash, 0, len(t.Frames))

	prev := codec.Hash(codec.DomainTraceStep, t.Frames[0].Bytes())
	chain = append(chain, prev)

	for _, frame := range t.Frames[1:] {
		prevBytes, err := prev.Bytes()
		if err != nil {
			return StepChainResult{}, &TraceError{Kind: ErrCanonicalization,
				Detail: "step chain digest did not decode as hex: " + err.Error()}
		}
		input := append(append([]byte(nil), prevBytes...), frame.Bytes()...)
		prev = codec.Hash(codec.DomainTraceStepChain, input)
		chain = append(chain, prev)
	}

	return StepChainResult{Digest: prev, Chain: chain}, nil
}
