// Copyright 2025 Certen Protocol
//
// ByteTrace — the `.bst1` binary trace carrier. Fixed-stride frames over a
// canonical-JSON header/footer, with an unhashed observability envelope
// (spec.md §4.3; original_source/kernel/src/carrier/bytetrace.rs usage
// inferred from trace_writer.rs/trace_reader.rs).

package trace

import "github.com/certen/sterling/pkg/carrier"

// Magic is the 4-byte .bst1 format tag.
var Magic = [4]byte{'B', 'S', 'T', '1'}

// MaxSectionLen is the maximum byte length of any u16-length-prefixed JSON
// section (envelope, header, footer).
const MaxSectionLen = 0xFFFF

// InitialStateOpCode is the sentinel op_code frame 0 must carry: not a real
// kernel operator, just the "this frame is the initial state, not an
// applied operator" marker.
var InitialStateOpCode = carrier.NewCode32(0, 0, 0xFFFF)

// Envelope is the unhashed, observability-only section. Producers may set
// these fields freely; verifiers never check them.
type Envelope struct {
	Timestamp     string
	TraceID       string
	RunnerVersion string
	WallTimeMs    uint64
}

// Header is the normative, hashed trace header.
type Header struct {
	SchemaVersion      string
	DomainID           string
	RegistryEpochHash  string
	CodebookHash       string
	FixtureHash        string
	StepCount          int
	LayerCount         int
	SlotCount          int
	ArgSlotCount       int
}

// FrameStride returns the per-frame byte length (op_code + op_args +
// identity + status), or false if the dimensions overflow int arithmetic.
func (h Header) FrameStride() (int, bool) {
	totalSlots := h.LayerCount * h.SlotCount
	if h.LayerCount != 0 && totalSlots/h.LayerCount != h.SlotCount {
		return 0, false
	}
	identityLen := totalSlots * 4
	statusLen := totalSlots
	argsLen := h.ArgSlotCount * 4
	stride := 4 + argsLen + identityLen + statusLen
	if stride < 0 {
		return 0, false
	}
	return stride, true
}

// ExpectedBodyLen returns step_count * frame_stride, or false on overflow.
func (h Header) ExpectedBodyLen() (int, bool) {
	stride, ok := h.FrameStride()
	if !ok {
		return 0, false
	}
	return h.StepCount * stride, true
}

// Footer is the normative, hashed trace footer.
type Footer struct {
	SuiteIdentity      string
	WitnessStoreDigest string // empty means absent (omitted from canonical JSON)
}

// Frame is one fixed-stride trace record: the operator invoked, its
// argument bytes, and the resulting state's full identity/status planes.
type Frame struct {
	OpCode         carrier.Code32
	OpArgs         []byte
	ResultIdentity []byte
	ResultStatus   []byte
}

// Bytes concatenates op_code || op_args || result_identity || result_status
// — the exact input to the per-frame step-chain hash.
func (f Frame) Bytes() []byte {
	opCode := f.OpCode.Bytes()
	out := make([]byte, 0, 4+len(f.OpArgs)+len(f.ResultIdentity)+len(f.ResultStatus))
	out = append(out, opCode[:]...)
	out = append(out, f.OpArgs...)
	out = append(out, f.ResultIdentity...)
	out = append(out, f.ResultStatus...)
	return out
}

// ByteTrace is the full in-memory trace: envelope (unhashed) plus
// header/frames/footer (hashed).
type ByteTrace struct {
	Envelope Envelope
	Header   Header
	Frames   []Frame
	Footer   Footer
}
