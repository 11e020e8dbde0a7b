// Copyright 2025 Certen Protocol
//
// apply() — the three-phase gate between an operator registry (contract)
// and a dispatch table (implementation), closing with mechanical
// post-apply effect-kind validation. Grounded on
// original_source/kernel/src/operators/apply.rs.

package kernel

import (
	"strconv"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/registry"
)

// Apply runs one operator against state, returning the resulting state and
// its StepRecord, or a typed ApplyFailure.
//
// Phase 1: registry lookup (UnknownOperator if absent) and argument-length
// check against the declared arg_byte_count (ArgumentMismatch on mismatch).
// Phase 2: dispatch lookup (OperatorNotImplemented if the registry declares
// an operator with no installed handler).
// Phase 3: execute, then mechanically validate the resulting diff against
// the operator's declared EffectKind (EffectContractViolation on mismatch).
func Apply(state *carrier.ByteState, opCode carrier.Code32, opArgs []byte, reg *registry.OperatorRegistry) (*carrier.ByteState, StepRecord, error) {
	entry, ok := reg.Get(opCode)
	if !ok {
		return nil, StepRecord{}, errUnknownOperator(opCode)
	}

	if len(opArgs) != entry.ArgByteCount {
		return nil, StepRecord{}, errArgumentMismatch(opCode,
			fmtArgMismatch(entry.Name, entry.ArgByteCount, len(opArgs)))
	}

	h, ok := dispatchTable()[opCode]
	if !ok {
		return nil, StepRecord{}, errOperatorNotImplemented(opCode)
	}

	next, record, err := h(state, opArgs)
	if err != nil {
		return nil, StepRecord{}, err
	}

	if err := validateEffectKind(state, next, opCode, entry.EffectKind, opArgs); err != nil {
		return nil, StepRecord{}, err
	}

	return next, record, nil
}

func fmtArgMismatch(name string, want, got int) string {
	return name + " expects " + strconv.Itoa(want) + " arg bytes, got " + strconv.Itoa(got)
}

func validateEffectKind(before, after *carrier.ByteState, opCode carrier.Code32, kind registry.EffectKind, opArgs []byte) error {
	switch kind {
	case registry.EffectWritesOneSlotFromArgs:
		return assertOneSlotWrite(before, after, opCode, "WritesOneSlotFromArgs")

	case registry.EffectStagesOneSlot:
		return assertOneSlotWrite(before, after, opCode, "StagesOneSlot")

	case registry.EffectCommitsTransaction:
		if err := assertOneSlotWrite(before, after, opCode, "CommitsTransaction"); err != nil {
			return err
		}
		layer := readU32(opArgs, 0)
		markerSlot := before.MarkerSlot()
		hasStaged, err := before.LayerHasStatus(layer, carrier.StatusProvisional, markerSlot)
		if err != nil {
			return errEffectContractViolation(opCode, err.Error())
		}
		if !hasStaged {
			return errEffectContractViolation(opCode,
				"CommitsTransaction: no non-marker slot on target layer is Provisional (empty commit)")
		}
		return nil

	case registry.EffectRollsBackTransaction:
		return assertOneSlotWrite(before, after, opCode, "RollsBackTransaction")

	case registry.EffectWritesGuess:
		k := (len(opArgs) - 8) / 4
		idDiffs, stDiffs, err := diffCounts(before, after)
		if err != nil {
			return errEffectContractViolation(opCode, err.Error())
		}
		if idDiffs != k {
			return errEffectContractViolation(opCode, countMismatchDetail("WritesGuess", "identity", k, idDiffs))
		}
		if stDiffs != k {
			return errEffectContractViolation(opCode, countMismatchDetail("WritesGuess", "status", k, stDiffs))
		}
		return nil

	case registry.EffectWritesFeedback:
		return assertOneSlotWrite(before, after, opCode, "WritesFeedback")

	case registry.EffectDeclaresSolution:
		return assertOneSlotWrite(before, after, opCode, "DeclaresSolution")

	default:
		return errEffectContractViolation(opCode, "unrecognized effect kind")
	}
}

func diffCounts(before, after *carrier.ByteState) (identityDiffs, statusDiffs int, err error) {
	d, err := carrier.Diff(before, after)
	if err != nil {
		return 0, 0, err
	}
	for _, s := range d {
		if s.IdentityChanged {
			identityDiffs++
		}
		if s.StatusChanged {
			statusDiffs++
		}
	}
	return identityDiffs, statusDiffs, nil
}

func assertOneSlotWrite(before, after *carrier.ByteState, opCode carrier.Code32, kindName string) error {
	idDiffs, stDiffs, err := diffCounts(before, after)
	if err != nil {
		return errEffectContractViolation(opCode, err.Error())
	}
	if idDiffs != 1 {
		return errEffectContractViolation(opCode, countMismatchDetail(kindName, "identity", 1, idDiffs))
	}
	if stDiffs != 1 {
		return errEffectContractViolation(opCode, countMismatchDetail(kindName, "status", 1, stDiffs))
	}
	return nil
}

func countMismatchDetail(kindName, plane string, want, got int) string {
	return kindName + ": expected " + strconv.Itoa(want) + " " + plane + " slots changed, got " + strconv.Itoa(got)
}
