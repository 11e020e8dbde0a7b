// Copyright 2025 Certen Protocol
//
// ByteTrace binary writer: serializes traces to `.bst1` format. Pure byte
// transform; header/footer canonical JSON comes exclusively from
// pkg/codec.CanonicalJSONBytes. Grounded on
// original_source/kernel/src/carrier/trace_writer.rs.
//
// Wire layout:
//
//	[envelope_len:u16le][envelope:JSON]        -- NOT hashed
//	[magic:4 = "BST1"]                         -- hashed
//	[header_len:u16le][header:canonical JSON]  -- hashed
//	[body: fixed-stride frames]                -- hashed
//	[footer_len:u16le][footer:canonical JSON]  -- hashed

package trace

import (
	"encoding/binary"
	"encoding/json"

	"github.com/certen/sterling/pkg/codec"
)

// TraceToBytes serializes trace to .bst1 bytes.
func TraceToBytes(t *ByteTrace) ([]byte, error) {
	stride, err := validateTrace(t)
	if err != nil {
		return nil, err
	}

	envelopeJSON, err := envelopeToJSON(t.Envelope)
	if err != nil {
		return nil, err
	}
	if err := checkSectionLen("envelope", len(envelopeJSON)); err != nil {
		return nil, err
	}
	headerJSON, err := headerToCanonicalJSON(t.Header)
	if err != nil {
		return nil, err
	}
	if err := checkSectionLen("header", len(headerJSON)); err != nil {
		return nil, err
	}
	footerJSON, err := footerToCanonicalJSON(t.Footer)
	if err != nil {
		return nil, err
	}
	if err := checkSectionLen("footer", len(footerJSON)); err != nil {
		return nil, err
	}

	bodyLen := len(t.Frames) * stride
	total := 2 + len(envelopeJSON) + 4 + 2 + len(headerJSON) + bodyLen + 2 + len(footerJSON)
	buf := make([]byte, 0, total)

	buf = appendU16LE(buf, len(envelopeJSON))
	buf = append(buf, envelopeJSON...)

	buf = append(buf, Magic[:]...)

	buf = appendU16LE(buf, len(headerJSON))
	buf = append(buf, headerJSON...)

	for _, frame := range t.Frames {
		op := frame.OpCode.Bytes()
		buf = append(buf, op[:]...)
		buf = append(buf, frame.OpArgs...)
		buf = append(buf, frame.ResultIdentity...)
		buf = append(buf, frame.ResultStatus...)
	}

	buf = appendU16LE(buf, len(footerJSON))
	buf = append(buf, footerJSON...)

	return buf, nil
}

// ExtractPayloadBytes returns magic || header_json || body || footer_json —
// the exact input to the payload hash. Skips the unhashed envelope.
func ExtractPayloadBytes(t *ByteTrace) ([]byte, error) {
	headerJSON, err := headerToCanonicalJSON(t.Header)
	if err != nil {
		return nil, err
	}
	footerJSON, err := footerToCanonicalJSON(t.Footer)
	if err != nil {
		return nil, err
	}
	stride, ok := t.Header.FrameStride()
	if !ok {
		return nil, &TraceError{Kind: ErrDimensionOverflow, Detail: "header dimensions cause overflow"}
	}

	bodyLen := len(t.Frames) * stride
	total := 4 + len(headerJSON) + bodyLen + len(footerJSON)
	buf := make([]byte, 0, total)
	buf = append(buf, Magic[:]...)
	buf = append(buf, headerJSON...)
	for _, frame := range t.Frames {
		op := frame.OpCode.Bytes()
		buf = append(buf, op[:]...)
		buf = append(buf, frame.OpArgs...)
		buf = append(buf, frame.ResultIdentity...)
		buf = append(buf, frame.ResultStatus...)
	}
	buf = append(buf, footerJSON...)
	return buf, nil
}

func validateTrace(t *ByteTrace) (int, error) {
	if len(t.Frames) != t.Header.StepCount {
		return 0, &TraceError{Kind: ErrStepCountMismatch, Want: t.Header.StepCount, Got: len(t.Frames)}
	}

	stride, ok := t.Header.FrameStride()
	if !ok {
		return 0, &TraceError{Kind: ErrDimensionOverflow, Detail: "header dimensions cause overflow in frame_stride"}
	}

	totalSlots := t.Header.LayerCount * t.Header.SlotCount
	identityLen := totalSlots * 4
	statusLen := totalSlots
	argsLen := t.Header.ArgSlotCount * 4

	if len(t.Frames) > 0 {
		frame0 := t.Frames[0]
		if frame0.OpCode != InitialStateOpCode {
			return 0, &TraceError{Kind: ErrBadInitialFrame,
				Detail: "frame 0 op_code must be InitialStateOpCode"}
		}
		for _, b := range frame0.OpArgs {
			if b != 0 {
				return 0, &TraceError{Kind: ErrBadInitialFrame, Detail: "frame 0 op_args must be zero-filled"}
			}
		}
	}

	for i, frame := range t.Frames {
		frameLen := 4 + len(frame.OpArgs) + len(frame.ResultIdentity) + len(frame.ResultStatus)
		if frameLen != stride {
			return 0, &TraceError{Kind: ErrFrameDimensionMismatch, Index: i,
				Detail: "frame size does not match header-derived stride"}
		}
		if len(frame.OpArgs) != argsLen {
			return 0, &TraceError{Kind: ErrFrameDimensionMismatch, Index: i,
				Detail: "op_args length does not match arg_slot_count"}
		}
		if len(frame.ResultIdentity) != identityLen {
			return 0, &TraceError{Kind: ErrFrameDimensionMismatch, Index: i,
				Detail: "result_identity length does not match layer_count*slot_count*4"}
		}
		if len(frame.ResultStatus) != statusLen {
			return 0, &TraceError{Kind: ErrFrameDimensionMismatch, Index: i,
				Detail: "result_status length does not match layer_count*slot_count"}
		}
	}

	return stride, nil
}

func appendU16LE(buf []byte, length int) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(length))
	return append(buf, b[:]...)
}

func checkSectionLen(section string, length int) error {
	if length > MaxSectionLen {
		return &TraceError{Kind: ErrSectionTooLong, Section: section, Got: length}
	}
	return nil
}

// envelopeToJSON serializes the envelope with plain encoding/json — the
// envelope is explicitly excluded from all hashing, so it never goes
// through canonical encoding.
func envelopeToJSON(e Envelope) ([]byte, error) {
	value := map[string]any{
		"runner_version": e.RunnerVersion,
		"timestamp":      e.Timestamp,
		"trace_id":       e.TraceID,
		"wall_time_ms":   e.WallTimeMs,
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, &TraceError{Kind: ErrCanonicalization, Section: "envelope", Detail: err.Error()}
	}
	return b, nil
}

func headerToCanonicalJSON(h Header) ([]byte, error) {
	value := map[string]any{
		"arg_slot_count":       h.ArgSlotCount,
		"codebook_hash":        h.CodebookHash,
		"domain_id":            h.DomainID,
		"fixture_hash":         h.FixtureHash,
		"layer_count":          h.LayerCount,
		"registry_epoch_hash":  h.RegistryEpochHash,
		"schema_version":       h.SchemaVersion,
		"slot_count":           h.SlotCount,
		"step_count":           h.StepCount,
	}
	b, err := codec.CanonicalJSONBytes(value)
	if err != nil {
		return nil, &TraceError{Kind: ErrCanonicalization, Section: "header", Detail: err.Error()}
	}
	return b, nil
}

func footerToCanonicalJSON(f Footer) ([]byte, error) {
	value := map[string]any{"suite_identity": f.SuiteIdentity}
	if f.WitnessStoreDigest != "" {
		value["witness_store_digest"] = f.WitnessStoreDigest
	}
	b, err := codec.CanonicalJSONBytes(value)
	if err != nil {
		return nil, &TraceError{Kind: ErrCanonicalization, Section: "footer", Detail: err.Error()}
	}
	return b, nil
}
