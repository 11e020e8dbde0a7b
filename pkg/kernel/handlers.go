// Copyright 2025 Certen Protocol
//
// Well-known kernel operator handlers. Each handler clones its input state
// (never mutates in place — carrier.ByteState.Clone()) and writes exactly
// the slots its EffectKind contract declares. Arg decoding matches
// original_source/kernel/src/operators/apply.rs byte-for-byte.

package kernel

import (
	"encoding/binary"
	"fmt"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/registry"
)

// handler is the dispatch-table entry signature.
type handler func(state *carrier.ByteState, opArgs []byte) (*carrier.ByteState, StepRecord, error)

func dispatchTable() map[carrier.Code32]handler {
	return map[carrier.Code32]handler{
		registry.OpSetSlot:  applySetSlot,
		registry.OpStage:    applyStage,
		registry.OpCommit:   applyCommit,
		registry.OpRollback: applyRollback,
		registry.OpGuess:    applyGuess,
		registry.OpFeedback: applyFeedback,
		registry.OpDeclare:  applyDeclare,
	}
}

func readU32(b []byte, offset int) int {
	return int(binary.LittleEndian.Uint32(b[offset : offset+4]))
}

// SetSlotArgs builds op_args for SET_SLOT: [layer, slot, value].
func SetSlotArgs(layer, slot uint32, value carrier.Code32) []byte {
	return encodeLayerSlotValue(layer, slot, value)
}

// StageArgs builds op_args for STAGE (same layout as SET_SLOT).
func StageArgs(layer, slot uint32, value carrier.Code32) []byte {
	return encodeLayerSlotValue(layer, slot, value)
}

func encodeLayerSlotValue(layer, slot uint32, value carrier.Code32) []byte {
	out := make([]byte, 12)
	binary.LittleEndian.PutUint32(out[0:4], layer)
	binary.LittleEndian.PutUint32(out[4:8], slot)
	vb := value.Bytes()
	copy(out[8:12], vb[:])
	return out
}

// CommitArgs builds op_args for COMMIT: [layer].
func CommitArgs(layer uint32) []byte { return encodeLayer(layer) }

// RollbackArgs builds op_args for ROLLBACK: [layer].
func RollbackArgs(layer uint32) []byte { return encodeLayer(layer) }

func encodeLayer(layer uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, layer)
	return out
}

// GuessArgs builds op_args for GUESS: [layer, start_slot, values...].
func GuessArgs(layer, startSlot uint32, values []carrier.Code32) []byte {
	return encodeLayerStartValues(layer, startSlot, values)
}

// DeclareArgs builds op_args for DECLARE: [layer, solved_marker_slot, values...].
func DeclareArgs(layer, solvedMarkerSlot uint32, values []carrier.Code32) []byte {
	return encodeLayerStartValues(layer, solvedMarkerSlot, values)
}

func encodeLayerStartValues(layer, start uint32, values []carrier.Code32) []byte {
	out := make([]byte, 8+4*len(values))
	binary.LittleEndian.PutUint32(out[0:4], layer)
	binary.LittleEndian.PutUint32(out[4:8], start)
	for i, v := range values {
		vb := v.Bytes()
		copy(out[8+i*4:12+i*4], vb[:])
	}
	return out
}

// FeedbackArgs builds op_args for FEEDBACK: [layer, slot, value].
func FeedbackArgs(layer, slot uint32, value carrier.Code32) []byte {
	return encodeLayerSlotValue(layer, slot, value)
}

func applySetSlot(state *carrier.ByteState, opArgs []byte) (*carrier.ByteState, StepRecord, error) {
	layer := readU32(opArgs, 0)
	slot := readU32(opArgs, 4)
	value := carrier.Code32FromSlice(opArgs[8:12])

	layerCount, slotCount := state.Dimensions()
	if layer >= layerCount || slot >= slotCount {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpSetSlot,
			boundsDetail("SET_SLOT", layer, slot, layerCount, slotCount))
	}

	next := state.Clone()
	if err := next.Set(layer, slot, value, carrier.StatusProvisional); err != nil {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpSetSlot, err.Error())
	}
	return next, newStepRecord(registry.OpSetSlot, opArgs, next), nil
}

func applyStage(state *carrier.ByteState, opArgs []byte) (*carrier.ByteState, StepRecord, error) {
	layer := readU32(opArgs, 0)
	slot := readU32(opArgs, 4)
	value := carrier.Code32FromSlice(opArgs[8:12])

	layerCount, slotCount := state.Dimensions()
	if layer >= layerCount || slot >= slotCount {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpStage,
			boundsDetail("STAGE", layer, slot, layerCount, slotCount))
	}

	next := state.Clone()
	if err := next.Set(layer, slot, value, carrier.StatusProvisional); err != nil {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpStage, err.Error())
	}
	return next, newStepRecord(registry.OpStage, opArgs, next), nil
}

// CommitMarker is the kernel-level sentinel COMMIT writes to the txn_marker
// slot. Worlds map this to their own domain concept (e.g. "kv:commit").
var CommitMarker = carrier.NewCode32(0, 0, 1)

// RollbackMarker is the kernel-level sentinel ROLLBACK writes to the
// txn_marker slot.
var RollbackMarker = carrier.NewCode32(0, 0, 2)

func applyCommit(state *carrier.ByteState, opArgs []byte) (*carrier.ByteState, StepRecord, error) {
	layer := readU32(opArgs, 0)
	layerCount, _ := state.Dimensions()
	if layer >= layerCount {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpCommit, layerBoundsDetail("COMMIT", layer, layerCount))
	}

	markerSlot := state.MarkerSlot()
	_, status, err := state.Get(layer, markerSlot)
	if err != nil {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpCommit, err.Error())
	}
	if status != carrier.StatusHole {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpCommit,
			"txn_marker slot is not Hole (already finalized)")
	}

	next := state.Clone()
	if err := next.Set(layer, markerSlot, CommitMarker, carrier.StatusProvisional); err != nil {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpCommit, err.Error())
	}
	return next, newStepRecord(registry.OpCommit, opArgs, next), nil
}

func applyRollback(state *carrier.ByteState, opArgs []byte) (*carrier.ByteState, StepRecord, error) {
	layer := readU32(opArgs, 0)
	layerCount, _ := state.Dimensions()
	if layer >= layerCount {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpRollback, layerBoundsDetail("ROLLBACK", layer, layerCount))
	}

	markerSlot := state.MarkerSlot()
	_, status, err := state.Get(layer, markerSlot)
	if err != nil {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpRollback, err.Error())
	}
	if status != carrier.StatusHole {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpRollback,
			"txn_marker slot is not Hole (already finalized)")
	}

	next := state.Clone()
	if err := next.Set(layer, markerSlot, RollbackMarker, carrier.StatusProvisional); err != nil {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpRollback, err.Error())
	}
	return next, newStepRecord(registry.OpRollback, opArgs, next), nil
}

// applyGuess writes K consecutive slots starting at start_slot on layer.
// Never reads layer 0 (truth) — pure bounded-write primitive.
func applyGuess(state *carrier.ByteState, opArgs []byte) (*carrier.ByteState, StepRecord, error) {
	layer := readU32(opArgs, 0)
	startSlot := readU32(opArgs, 4)
	k := (len(opArgs) - 8) / 4
	if k == 0 {
		return nil, StepRecord{}, errArgumentMismatch(registry.OpGuess, "no values in args (need at least 1)")
	}

	layerCount, slotCount := state.Dimensions()
	if layer >= layerCount || startSlot+k > slotCount {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpGuess,
			boundsDetail("GUESS", layer, startSlot+k-1, layerCount, slotCount))
	}

	next := state.Clone()
	for i := 0; i < k; i++ {
		offset := 8 + i*4
		value := carrier.Code32FromSlice(opArgs[offset : offset+4])
		if err := next.Set(layer, startSlot+i, value, carrier.StatusProvisional); err != nil {
			return nil, StepRecord{}, errPreconditionNotMet(registry.OpGuess, err.Error())
		}
	}
	return next, newStepRecord(registry.OpGuess, opArgs, next), nil
}

// applyFeedback writes one externally-supplied feedback value. Never reads
// layer 0 or computes feedback itself — verified later by winning-path
// replay (pkg/witness).
func applyFeedback(state *carrier.ByteState, opArgs []byte) (*carrier.ByteState, StepRecord, error) {
	layer := readU32(opArgs, 0)
	slot := readU32(opArgs, 4)
	value := carrier.Code32FromSlice(opArgs[8:12])

	layerCount, slotCount := state.Dimensions()
	if layer >= layerCount || slot >= slotCount {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpFeedback,
			boundsDetail("FEEDBACK", layer, slot, layerCount, slotCount))
	}

	next := state.Clone()
	if err := next.Set(layer, slot, value, carrier.StatusProvisional); err != nil {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpFeedback, err.Error())
	}
	return next, newStepRecord(registry.OpFeedback, opArgs, next), nil
}

// applyDeclare writes only the SolvedMarker sentinel to the solved_marker
// slot; the declared solution values travel in op_args for the transcript
// but are never written to state. Correctness of the declared solution is
// checked by is_goal() and winning-path replay, never by the kernel.
func applyDeclare(state *carrier.ByteState, opArgs []byte) (*carrier.ByteState, StepRecord, error) {
	layer := readU32(opArgs, 0)
	solvedSlot := readU32(opArgs, 4)

	layerCount, slotCount := state.Dimensions()
	if layer >= layerCount || solvedSlot >= slotCount {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpDeclare,
			boundsDetail("DECLARE", layer, solvedSlot, layerCount, slotCount))
	}

	_, status, err := state.Get(layer, solvedSlot)
	if err != nil {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpDeclare, err.Error())
	}
	if status != carrier.StatusHole {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpDeclare,
			"solved_marker slot is not Hole (already declared)")
	}

	next := state.Clone()
	if err := next.Set(layer, solvedSlot, registry.SolvedMarker, carrier.StatusProvisional); err != nil {
		return nil, StepRecord{}, errPreconditionNotMet(registry.OpDeclare, err.Error())
	}
	return next, newStepRecord(registry.OpDeclare, opArgs, next), nil
}

func newStepRecord(opCode carrier.Code32, opArgs []byte, result *carrier.ByteState) StepRecord {
	return StepRecord{
		OpCode:         opCode,
		OpArgs:         append([]byte(nil), opArgs...),
		ResultIdentity: result.IdentityBytes(),
		ResultStatus:   result.StatusBytes(),
	}
}

func boundsDetail(op string, layer, slot, layerCount, slotCount int) string {
	return fmt.Sprintf("%s target (%d, %d) out of bounds for %dx%d state", op, layer, slot, layerCount, slotCount)
}

func layerBoundsDetail(op string, layer, layerCount int) string {
	return fmt.Sprintf("%s target layer %d out of bounds for %d layers", op, layer, layerCount)
}
