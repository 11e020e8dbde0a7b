// Copyright 2025 Certen Protocol

package kernel

import (
	"fmt"

	"github.com/certen/sterling/pkg/carrier"
)

// ApplyFailure is the typed error family returned by Apply. Structured
// fields, not wrapped strings, so callers can render or branch on Kind
// deterministically (spec.md §7).
type ApplyFailure struct {
	Kind   string // "precondition_not_met" | "argument_mismatch" | "unknown_operator" | "operator_not_implemented" | "effect_contract_violation"
	OpCode carrier.Code32
	Detail string
}

func (e *ApplyFailure) Error() string {
	switch e.Kind {
	case "unknown_operator":
		return fmt.Sprintf("kernel: unknown operator %s", e.OpCode)
	case "operator_not_implemented":
		return fmt.Sprintf("kernel: operator %s declared but not implemented", e.OpCode)
	case "argument_mismatch":
		return fmt.Sprintf("kernel: argument mismatch for %s: %s", e.OpCode, e.Detail)
	case "precondition_not_met":
		return fmt.Sprintf("kernel: precondition not met for %s: %s", e.OpCode, e.Detail)
	case "effect_contract_violation":
		return fmt.Sprintf("kernel: effect contract violation for %s: %s", e.OpCode, e.Detail)
	default:
		return fmt.Sprintf("kernel: apply failure (%s) for %s: %s", e.Kind, e.OpCode, e.Detail)
	}
}

func errUnknownOperator(opCode carrier.Code32) error {
	return &ApplyFailure{Kind: "unknown_operator", OpCode: opCode}
}

func errOperatorNotImplemented(opCode carrier.Code32) error {
	return &ApplyFailure{Kind: "operator_not_implemented", OpCode: opCode}
}

func errArgumentMismatch(opCode carrier.Code32, detail string) error {
	return &ApplyFailure{Kind: "argument_mismatch", OpCode: opCode, Detail: detail}
}

func errPreconditionNotMet(opCode carrier.Code32, detail string) error {
	return &ApplyFailure{Kind: "precondition_not_met", OpCode: opCode, Detail: detail}
}

func errEffectContractViolation(opCode carrier.Code32, detail string) error {
	return &ApplyFailure{Kind: "effect_contract_violation", OpCode: opCode, Detail: detail}
}
