// Package trace defines the witness-ready trace rows emitted during
// expansion and the aggregation that merges per-segment slices into one
// ordered trace set.
package trace

import (
	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/insts"
)

// MainRow is the primary trace row, one per instruction step.
type MainRow struct {
	Step  uint64
	PC    uint64
	Op    insts.Op
	Class insts.Class

	// Resolved operand values and the operation result.
	A    uint64
	B    uint64
	C    uint64
	Flag bool

	NextPC uint64

	// Memory-step counter before and after the step. The step's memory
	// accesses consumed ids above MemStepBefore, up to and including
	// MemStepAfter; unused ids in that window are skipped.
	MemStepBefore uint64
	MemStepAfter  uint64
}

// ArithRow is one arithmetic-unit row. The multiply family fills Lo/Hi with
// the full 128-bit product; the divide family fills Quot/Rem so the
// division identity a = b*q + r is checkable.
type ArithRow struct {
	Step uint64
	Op   insts.Op
	A    uint64
	B    uint64
	C    uint64

	Lo   uint64
	Hi   uint64
	Quot uint64
	Rem  uint64
}

// BinaryRow is one binary-unit row carrying the byte decomposition the
// constraint layer consumes.
type BinaryRow struct {
	Step uint64
	Op   insts.Op
	A    uint64
	B    uint64
	C    uint64
	Flag bool

	ABytes [8]uint8
	BBytes [8]uint8
	CBytes [8]uint8

	// Carry is the per-byte carry chain for the additive and comparison
	// operations; zero elsewhere.
	Carry [8]uint8

	// ShiftAmt is the effective 6-bit shift amount for the shift
	// operations; zero elsewhere.
	ShiftAmt uint8
}

// MemRow is one memory access record, one per aligned sub-access.
type MemRow struct {
	Step    uint64
	MemStep uint64
	Addr    uint64
	Width   uint8
	Kind    bus.AccessKind
	Value   uint64

	// Aligned is false for rows produced by splitting an unaligned
	// access into its aligned halves.
	Aligned bool

	// PrevStep is the memory-step id of the previous access to the same
	// aligned double-word, zero when this row is the first. Filled during
	// aggregation.
	PrevStep uint64
}

// Word returns the aligned double-word index the access falls in. Every
// aligned sub-access lies entirely inside one double-word.
func (r *MemRow) Word() uint64 {
	return r.Addr >> 3
}

// RomRow is one fetch-multiplicity row, one per program address.
type RomRow struct {
	Addr         uint64
	Op           insts.Op
	Multiplicity uint64
}

// Segment holds the trace slices produced by one segment. Slices are
// append-only during execution and immutable once the segment closes.
type Segment struct {
	Index int

	Main   []MainRow
	Arith  []ArithRow
	Binary []BinaryRow
	Mem    []MemRow

	// RomFetch counts instruction fetches per program address within the
	// segment; the aggregated multiplicity table is built from these.
	RomFetch map[uint64]uint64
}

// NewSegment returns an empty segment trace.
func NewSegment(index int) *Segment {
	return &Segment{
		Index:    index,
		RomFetch: make(map[uint64]uint64),
	}
}

// Presize reserves row capacity from full-count results so expansion does
// not reallocate.
func (s *Segment) Presize(main, arith, binary, mem int) {
	if cap(s.Main) < main {
		s.Main = make([]MainRow, 0, main)
	}
	if cap(s.Arith) < arith {
		s.Arith = make([]ArithRow, 0, arith)
	}
	if cap(s.Binary) < binary {
		s.Binary = make([]BinaryRow, 0, binary)
	}
	if cap(s.Mem) < mem {
		s.Mem = make([]MemRow, 0, mem)
	}
}
