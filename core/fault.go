package core

import (
	"errors"
	"fmt"

	"github.com/sarchlab/zemu/insts"
)

// FaultKind partitions failures by origin.
type FaultKind uint8

// Fault kinds.
const (
	FaultDecode      FaultKind = iota // pc outside the instruction store or unknown op
	FaultHandler                      // a secondary unit rejected an operand
	FaultConsistency                  // counted and expanded runs disagree
	FaultResource                     // configuration cannot make progress
)

// String returns the kind name.
func (k FaultKind) String() string {
	switch k {
	case FaultDecode:
		return "decode"
	case FaultHandler:
		return "handler"
	case FaultConsistency:
		return "consistency"
	case FaultResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Handler rejection causes.
var (
	ErrOutOfRange     = errors.New("address outside the declared address space")
	ErrWriteProtected = errors.New("write to the read-only input window")
	ErrMisaligned     = errors.New("misaligned access with strict alignment set")
	ErrUnsupportedOp  = errors.New("operation code outside the unit's set")
	ErrNoInstruction  = errors.New("no instruction at program counter")
	ErrFetchMismatch  = errors.New("fetched record does not match the instruction store")
)

// Fault is the structured failure record returned instead of a partial
// trace. It carries enough context to reproduce the failure by re-running
// the same input and phase.
type Fault struct {
	Kind    FaultKind
	Phase   string // filled by the orchestrator
	Segment int    // filled by the orchestrator; -1 before assignment
	Step    uint64
	PC      uint64
	Addr    uint64 // offending address for memory faults
	Op      insts.Op
	Err     error
}

// Error formats the fault with its full context.
func (f *Fault) Error() string {
	msg := fmt.Sprintf("%s fault", f.Kind)
	if f.Phase != "" {
		msg += fmt.Sprintf(" in %s", f.Phase)
	}
	if f.Segment >= 0 {
		msg += fmt.Sprintf(" (segment %d)", f.Segment)
	}
	msg += fmt.Sprintf(" at step %d pc 0x%x", f.Step, f.PC)
	if f.Op != insts.OpInvalid {
		msg += fmt.Sprintf(" op %s", f.Op)
	}
	if f.Addr != 0 {
		msg += fmt.Sprintf(" addr 0x%x", f.Addr)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (f *Fault) Unwrap() error {
	return f.Err
}

// AsFault extracts a *Fault from an error chain.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// NewFault builds a fault with no segment assigned yet.
func NewFault(kind FaultKind, step, pc uint64, err error) *Fault {
	return &Fault{Kind: kind, Segment: -1, Step: step, PC: pc, Err: err}
}
