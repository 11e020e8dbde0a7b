// Copyright 2025 Certen Protocol
//
// ByteTrace binary reader: deserializes `.bst1` bytes. Fail-closed: rejects
// truncated input, bad magic, wrong body length, invalid SlotStatus
// discriminants — no partial frames, no panics on malformed input.
// Grounded on original_source/kernel/src/carrier/trace_reader.rs.

package trace

import (
	"encoding/binary"
	"encoding/json"

	"github.com/certen/sterling/pkg/carrier"
)

// BytesToTrace parses .bst1 bytes into a ByteTrace.
func BytesToTrace(data []byte) (*ByteTrace, error) {
	cursor := 0

	envelopeLen, err := readU16LE(data, &cursor, "envelope")
	if err != nil {
		return nil, err
	}
	if err := checkSectionLen("envelope", envelopeLen); err != nil {
		return nil, err
	}
	envelopeBytes, err := readSlice(data, &cursor, envelopeLen, "envelope")
	if err != nil {
		return nil, err
	}
	envelope, err := parseEnvelope(envelopeBytes)
	if err != nil {
		return nil, err
	}

	magicBytes, err := readSlice(data, &cursor, 4, "magic")
	if err != nil {
		return nil, err
	}
	var magic [4]byte
	copy(magic[:], magicBytes)
	if magic != Magic {
		return nil, &TraceError{Kind: ErrBadMagic, Magic: magic}
	}

	headerLen, err := readU16LE(data, &cursor, "header")
	if err != nil {
		return nil, err
	}
	if err := checkSectionLen("header", headerLen); err != nil {
		return nil, err
	}
	headerBytes, err := readSlice(data, &cursor, headerLen, "header")
	if err != nil {
		return nil, err
	}
	header, err := parseHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	stride, ok := header.FrameStride()
	if !ok {
		return nil, &TraceError{Kind: ErrDimensionOverflow, Detail: "header dimensions cause arithmetic overflow"}
	}
	expectedBodyLen, ok := header.ExpectedBodyLen()
	if !ok {
		return nil, &TraceError{Kind: ErrDimensionOverflow, Detail: "step_count * stride overflows"}
	}

	remaining := len(data) - cursor
	if remaining < expectedBodyLen {
		return nil, &TraceError{Kind: ErrTruncated, Want: expectedBodyLen, Got: remaining,
			Detail: "body truncated"}
	}

	bodyBytes, err := readSlice(data, &cursor, expectedBodyLen, "body")
	if err != nil {
		return nil, err
	}
	frames, err := parseFrames(bodyBytes, header, stride)
	if err != nil {
		return nil, err
	}

	footerLen, err := readU16LE(data, &cursor, "footer")
	if err != nil {
		return nil, err
	}
	if err := checkSectionLen("footer", footerLen); err != nil {
		return nil, err
	}
	footerBytes, err := readSlice(data, &cursor, footerLen, "footer")
	if err != nil {
		return nil, err
	}
	footer, err := parseFooter(footerBytes)
	if err != nil {
		return nil, err
	}

	return &ByteTrace{Envelope: envelope, Header: header, Frames: frames, Footer: footer}, nil
}

func readU16LE(data []byte, cursor *int, section string) (int, error) {
	if *cursor+2 > len(data) {
		return 0, &TraceError{Kind: ErrTruncated, Section: section, Detail: "need 2 bytes for length prefix"}
	}
	n := int(binary.LittleEndian.Uint16(data[*cursor : *cursor+2]))
	*cursor += 2
	return n, nil
}

func readSlice(data []byte, cursor *int, length int, section string) ([]byte, error) {
	if *cursor+length > len(data) {
		return nil, &TraceError{Kind: ErrTruncated, Section: section,
			Detail: "not enough bytes remaining"}
	}
	s := data[*cursor : *cursor+length]
	*cursor += length
	return s, nil
}

func parseEnvelope(b []byte) (Envelope, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return Envelope{}, &TraceError{Kind: ErrInvalidEnvelope, Detail: "JSON parse: " + err.Error()}
	}
	timestamp, err := getString(raw, "timestamp", "envelope")
	if err != nil {
		return Envelope{}, err
	}
	traceID, err := getString(raw, "trace_id", "envelope")
	if err != nil {
		return Envelope{}, err
	}
	runnerVersion, err := getString(raw, "runner_version", "envelope")
	if err != nil {
		return Envelope{}, err
	}
	wallTimeMs, err := getUint64(raw, "wall_time_ms", "envelope")
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Timestamp: timestamp, TraceID: traceID, RunnerVersion: runnerVersion, WallTimeMs: wallTimeMs}, nil
}

func parseHeader(b []byte) (Header, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return Header{}, &TraceError{Kind: ErrInvalidHeader, Detail: "JSON parse: " + err.Error()}
	}
	schemaVersion, err := getString(raw, "schema_version", "header")
	if err != nil {
		return Header{}, err
	}
	domainID, err := getString(raw, "domain_id", "header")
	if err != nil {
		return Header{}, err
	}
	registryEpochHash, err := getString(raw, "registry_epoch_hash", "header")
	if err != nil {
		return Header{}, err
	}
	codebookHash, err := getString(raw, "codebook_hash", "header")
	if err != nil {
		return Header{}, err
	}
	fixtureHash, err := getString(raw, "fixture_hash", "header")
	if err != nil {
		return Header{}, err
	}
	stepCount, err := getInt(raw, "step_count", "header")
	if err != nil {
		return Header{}, err
	}
	layerCount, err := getInt(raw, "layer_count", "header")
	if err != nil {
		return Header{}, err
	}
	slotCount, err := getInt(raw, "slot_count", "header")
	if err != nil {
		return Header{}, err
	}
	argSlotCount, err := getInt(raw, "arg_slot_count", "header")
	if err != nil {
		return Header{}, err
	}
	return Header{
		SchemaVersion: schemaVersion, DomainID: domainID, RegistryEpochHash: registryEpochHash,
		CodebookHash: codebookHash, FixtureHash: fixtureHash, StepCount: stepCount,
		LayerCount: layerCount, SlotCount: slotCount, ArgSlotCount: argSlotCount,
	}, nil
}

func parseFooter(b []byte) (Footer, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return Footer{}, &TraceError{Kind: ErrInvalidFooter, Detail: "JSON parse: " + err.Error()}
	}
	suiteIdentity, err := getString(raw, "suite_identity", "footer")
	if err != nil {
		return Footer{}, err
	}
	witnessDigest := ""
	if v, ok := raw["witness_store_digest"].(string); ok {
		witnessDigest = v
	}
	return Footer{SuiteIdentity: suiteIdentity, WitnessStoreDigest: witnessDigest}, nil
}

func parseFrames(body []byte, header Header, stride int) ([]Frame, error) {
	expected := header.StepCount * stride
	if len(body) != expected {
		return nil, &TraceError{Kind: ErrBodyLengthMismatch, Want: expected, Got: len(body)}
	}

	totalSlots := header.LayerCount * header.SlotCount
	argBytes := header.ArgSlotCount * 4
	identityBytes := totalSlots * 4
	statusBytes := totalSlots

	frames := make([]Frame, 0, header.StepCount)
	for i := 0; i < header.StepCount; i++ {
		pos := i * stride

		opCode := carrier.Code32FromSlice(body[pos : pos+4])
		pos += 4

		opArgs := append([]byte(nil), body[pos:pos+argBytes]...)
		pos += argBytes

		resultIdentity := append([]byte(nil), body[pos:pos+identityBytes]...)
		pos += identityBytes

		statusSlice := body[pos : pos+statusBytes]
		for _, b := range statusSlice {
			if !carrier.SlotStatus(b).IsValid() {
				return nil, &TraceError{Kind: ErrInvalidSlotStatus, Index: i, Byte: b}
			}
		}
		resultStatus := append([]byte(nil), statusSlice...)

		frames = append(frames, Frame{
			OpCode: opCode, OpArgs: opArgs, ResultIdentity: resultIdentity, ResultStatus: resultStatus,
		})
	}
	return frames, nil
}

func getString(m map[string]any, key, section string) (string, error) {
	v, ok := m[key].(string)
	if !ok {
		return "", invalidSection(section, "missing or non-string field \""+key+"\"")
	}
	return v, nil
}

func getUint64(m map[string]any, key, section string) (uint64, error) {
	v, ok := m[key].(float64)
	if !ok || v < 0 {
		return 0, invalidSection(section, "missing or non-integer field \""+key+"\"")
	}
	return uint64(v), nil
}

func getInt(m map[string]any, key, section string) (int, error) {
	v, ok := m[key].(float64)
	if !ok || v < 0 {
		return 0, invalidSection(section, "missing or non-integer field \""+key+"\"")
	}
	return int(v), nil
}

func invalidSection(section, detail string) error {
	switch section {
	case "header":
		return &TraceError{Kind: ErrInvalidHeader, Detail: detail}
	case "footer":
		return &TraceError{Kind: ErrInvalidFooter, Detail: detail}
	case "envelope":
		return &TraceError{Kind: ErrInvalidEnvelope, Detail: detail}
	default:
		return &TraceError{Kind: ErrTruncated, Detail: detail}
	}
}
