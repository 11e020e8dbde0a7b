// Copyright 2025 Certen Protocol

package kernel

import "github.com/certen/sterling/pkg/carrier"

// StepRecord is the per-apply transcript entry: the operator invoked, its
// argument bytes, and the resulting state's full identity/status planes.
// Consumed by pkg/trace to build the byte-trace step hash chain.
type StepRecord struct {
	OpCode         carrier.Code32
	OpArgs         []byte
	ResultIdentity []byte
	ResultStatus   []byte
}
