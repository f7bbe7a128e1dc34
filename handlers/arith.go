package handlers

import (
	"math"
	"math/bits"

	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/trace"
)

// Arith computes the wide multiply and divide operations. Division edge
// cases follow the usual RISC conventions: dividing by zero yields all ones
// (quotient) or the dividend (remainder), and the one signed overflow case
// wraps. These are defined results, not faults.
type Arith struct {
	seg    *trace.Segment
	record bool
	counts OpCounts
}

// NewArith returns a detached arithmetic unit.
func NewArith() *Arith {
	return &Arith{}
}

// Class implements Unit.
func (a *Arith) Class() bus.Class {
	return bus.ClassArith
}

// Attach points the unit at a segment trace and resets its counters.
// Rows are appended only when record is set.
func (a *Arith) Attach(seg *trace.Segment, record bool) {
	a.seg = seg
	a.record = record
	a.counts = OpCounts{}
}

// Counts returns the per-operation tallies of the current segment.
func (a *Arith) Counts() OpCounts {
	return a.counts
}

// Process implements Unit.
func (a *Arith) Process(entries []*bus.Entry) error {
	for _, e := range entries {
		if e.Op.Class() != insts.ClassArith {
			f := core.NewFault(core.FaultHandler, e.Step, e.PC, core.ErrUnsupportedOp)
			f.Op = e.Op
			return f
		}

		row := compute(e.Op, e.A, e.B)
		row.Step = e.Step

		e.C = row.C
		e.Flag = false
		e.Done = true

		a.counts[e.Op]++
		if a.record {
			a.seg.Arith = append(a.seg.Arith, row)
		}
	}
	return nil
}

// compute evaluates one arithmetic operation and fills its witness values.
func compute(op insts.Op, av, bv uint64) trace.ArithRow {
	row := trace.ArithRow{Op: op, A: av, B: bv}

	switch op {
	case insts.OpMul, insts.OpMulh, insts.OpMulhu, insts.OpMulhsu:
		hi, lo := bits.Mul64(av, bv)
		row.Lo = lo
		row.Hi = hi
		switch op {
		case insts.OpMul:
			row.C = lo
		case insts.OpMulhu:
			row.C = hi
		case insts.OpMulh:
			// Adjust the unsigned high half for both signs.
			if int64(av) < 0 {
				hi -= bv
			}
			if int64(bv) < 0 {
				hi -= av
			}
			row.Hi = hi
			row.C = hi
		case insts.OpMulhsu:
			if int64(av) < 0 {
				hi -= bv
			}
			row.Hi = hi
			row.C = hi
		}

	case insts.OpDivu:
		if bv == 0 {
			row.Quot = math.MaxUint64
			row.Rem = av
		} else {
			row.Quot = av / bv
			row.Rem = av % bv
		}
		row.C = row.Quot

	case insts.OpRemu:
		if bv == 0 {
			row.Quot = math.MaxUint64
			row.Rem = av
		} else {
			row.Quot = av / bv
			row.Rem = av % bv
		}
		row.C = row.Rem

	case insts.OpDiv, insts.OpRem:
		q, r := signedDivRem(int64(av), int64(bv))
		row.Quot = uint64(q)
		row.Rem = uint64(r)
		if op == insts.OpDiv {
			row.C = row.Quot
		} else {
			row.C = row.Rem
		}
	}

	return row
}

// signedDivRem applies the divide-by-zero and overflow conventions.
func signedDivRem(av, bv int64) (q, r int64) {
	switch {
	case bv == 0:
		return -1, av
	case av == math.MinInt64 && bv == -1:
		return math.MinInt64, 0
	default:
		return av / bv, av % bv
	}
}
