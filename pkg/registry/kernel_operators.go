// Copyright 2025 Certen Protocol
//
// The seven well-known kernel operators, with op_ids fixed by contract
// epoch "v1". SET_SLOT/STAGE/COMMIT/ROLLBACK are the transactional carrier
// primitives; GUESS/FEEDBACK/DECLARE supplement them for probe-and-feedback
// worlds (spec.md §4.2, §4.4; original_source kernel/src/operators/apply.rs).

package registry

import (
	"fmt"

	"github.com/certen/sterling/pkg/carrier"
)

var (
	OpSetSlot  = carrier.NewCode32(1, 1, 1)
	OpStage    = carrier.NewCode32(1, 1, 2)
	OpCommit   = carrier.NewCode32(1, 1, 3)
	OpRollback = carrier.NewCode32(1, 1, 4)
	OpGuess    = carrier.NewCode32(1, 2, 1)
	OpFeedback = carrier.NewCode32(1, 2, 2)
	OpDeclare  = carrier.NewCode32(1, 2, 3)

	// SolvedMarker is the sentinel identity value OP_DECLARE writes to the
	// solved-marker slot. Kernel-level, not world-specific.
	SolvedMarker = carrier.NewCode32(0, 0, 3)
)

// KernelContractEpoch is the contract_epoch tag for all seven well-known
// operators below.
const KernelContractEpoch = "v1"

// KernelOperatorRegistry builds the normative registry of the four
// transactional carrier operators shared by every world.
func KernelOperatorRegistry() (*OperatorRegistry, error) {
	return NewOperatorRegistry("v1", transactionalEntries())
}

func transactionalEntries() []OperatorEntry {
	return []OperatorEntry{
		{
			OpID: OpSetSlot, Name: "SET_SLOT", Category: CategoryMemorize,
			ArgByteCount: 12, EffectKind: EffectWritesOneSlotFromArgs,
			CostModel: "unit", ContractEpoch: KernelContractEpoch,
		},
		{
			OpID: OpStage, Name: "STAGE", Category: CategoryMemorize,
			ArgByteCount: 12, EffectKind: EffectStagesOneSlot,
			CostModel: "unit", ContractEpoch: KernelContractEpoch,
		},
		{
			OpID: OpCommit, Name: "COMMIT", Category: CategoryControl,
			ArgByteCount: 4, EffectKind: EffectCommitsTransaction,
			CostModel: "unit", ContractEpoch: KernelContractEpoch,
		},
		{
			OpID: OpRollback, Name: "ROLLBACK", Category: CategoryControl,
			ArgByteCount: 4, EffectKind: EffectRollsBackTransaction,
			CostModel: "unit", ContractEpoch: KernelContractEpoch,
		},
	}
}

// EpistemicOperatorRegistry builds the registry of the three guess/feedback
// operators used by probe-and-feedback worlds (e.g. codebreak). codeLength
// is the number of Code32 values per GUESS/DECLARE call (the puzzle's
// secret length); FEEDBACK always writes exactly one Code32 per probe.
func EpistemicOperatorRegistry(codeLength int) (*OperatorRegistry, error) {
	if codeLength <= 0 {
		return nil, fmt.Errorf("registry: codeLength must be positive, got %d", codeLength)
	}
	entries := []OperatorEntry{
		{
			// [layer: u32, start_slot: u32, value_0..value_{K-1}: Code32]
			OpID: OpGuess, Name: "GUESS", Category: CategorySeek,
			ArgByteCount: 8 + 4*codeLength, EffectKind: EffectWritesGuess,
			CostModel: "unit", ContractEpoch: KernelContractEpoch,
		},
		{
			// [layer: u32, slot: u32, value: Code32]
			OpID: OpFeedback, Name: "FEEDBACK", Category: CategorySeek,
			ArgByteCount: 12, EffectKind: EffectWritesFeedback,
			CostModel: "unit", ContractEpoch: KernelContractEpoch,
		},
		{
			// [layer: u32, solved_marker_slot: u32, value_0..value_{K-1}: Code32]
			OpID: OpDeclare, Name: "DECLARE", Category: CategoryControl,
			ArgByteCount: 8 + 4*codeLength, EffectKind: EffectDeclaresSolution,
			CostModel: "unit", ContractEpoch: KernelContractEpoch,
		},
	}
	return NewOperatorRegistry("v1", entries)
}

// FullOperatorRegistry merges the transactional and epistemic operator sets,
// as used by the codebreak world (which layers guess/feedback atop the
// transactional slot primitives for its commit-checkpointed probe history).
func FullOperatorRegistry(codeLength int) (*OperatorRegistry, error) {
	epistemic, err := EpistemicOperatorRegistry(codeLength)
	if err != nil {
		return nil, err
	}
	entries := append(transactionalEntries(), epistemic.Entries()...)
	return NewOperatorRegistry("v1", entries)
}
