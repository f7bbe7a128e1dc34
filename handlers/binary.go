package handlers

import (
	"encoding/binary"

	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/trace"
)

// Binary computes the additive, logic, comparison, shift and sign-extension
// operations. Comparison results raise the flag consumed by conditional
// jumps; all other operations leave it clear.
type Binary struct {
	seg    *trace.Segment
	record bool
	counts OpCounts
}

// NewBinary returns a detached binary unit.
func NewBinary() *Binary {
	return &Binary{}
}

// Class implements Unit.
func (b *Binary) Class() bus.Class {
	return bus.ClassBinary
}

// Attach points the unit at a segment trace and resets its counters.
func (b *Binary) Attach(seg *trace.Segment, record bool) {
	b.seg = seg
	b.record = record
	b.counts = OpCounts{}
}

// Counts returns the per-operation tallies of the current segment.
func (b *Binary) Counts() OpCounts {
	return b.counts
}

// Process implements Unit.
func (b *Binary) Process(entries []*bus.Entry) error {
	for _, e := range entries {
		if e.Op.Class() != insts.ClassBinary {
			f := core.NewFault(core.FaultHandler, e.Step, e.PC, core.ErrUnsupportedOp)
			f.Op = e.Op
			return f
		}

		c, flag := evalBinary(e.Op, e.A, e.B)
		e.C = c
		e.Flag = flag
		e.Done = true

		b.counts[e.Op]++
		if b.record {
			b.seg.Binary = append(b.seg.Binary, decompose(e.Op, e.Step, e.A, e.B, c, flag))
		}
	}
	return nil
}

// evalBinary computes the result and flag of one binary operation.
func evalBinary(op insts.Op, a, bv uint64) (c uint64, flag bool) {
	switch op {
	case insts.OpAdd:
		return a + bv, false
	case insts.OpSub:
		return a - bv, false
	case insts.OpLtu:
		return boolWord(a < bv)
	case insts.OpLt:
		return boolWord(int64(a) < int64(bv))
	case insts.OpLeu:
		return boolWord(a <= bv)
	case insts.OpLe:
		return boolWord(int64(a) <= int64(bv))
	case insts.OpEq:
		return boolWord(a == bv)
	case insts.OpMinu:
		if bv < a {
			return bv, false
		}
		return a, false
	case insts.OpMin:
		if int64(bv) < int64(a) {
			return bv, false
		}
		return a, false
	case insts.OpMaxu:
		if bv > a {
			return bv, false
		}
		return a, false
	case insts.OpMax:
		if int64(bv) > int64(a) {
			return bv, false
		}
		return a, false
	case insts.OpAnd:
		return a & bv, false
	case insts.OpOr:
		return a | bv, false
	case insts.OpXor:
		return a ^ bv, false
	case insts.OpSll:
		return a << (bv & 63), false
	case insts.OpSrl:
		return a >> (bv & 63), false
	case insts.OpSra:
		return uint64(int64(a) >> (bv & 63)), false
	case insts.OpSignExt8:
		return uint64(int64(int8(bv))), false
	case insts.OpSignExt16:
		return uint64(int64(int16(bv))), false
	case insts.OpSignExt32:
		return uint64(int64(int32(bv))), false
	default:
		return 0, false
	}
}

// boolWord encodes a comparison outcome as result and flag.
func boolWord(v bool) (uint64, bool) {
	if v {
		return 1, true
	}
	return 0, false
}

// decompose fills the byte-level auxiliary columns for one operation.
func decompose(op insts.Op, step, a, bv, c uint64, flag bool) trace.BinaryRow {
	row := trace.BinaryRow{Step: step, Op: op, A: a, B: bv, C: c, Flag: flag}
	binary.LittleEndian.PutUint64(row.ABytes[:], a)
	binary.LittleEndian.PutUint64(row.BBytes[:], bv)
	binary.LittleEndian.PutUint64(row.CBytes[:], c)

	switch op {
	case insts.OpAdd:
		carry := uint16(0)
		for i := 0; i < 8; i++ {
			sum := uint16(row.ABytes[i]) + uint16(row.BBytes[i]) + carry
			carry = sum >> 8
			row.Carry[i] = uint8(carry)
		}
	case insts.OpSub, insts.OpLtu, insts.OpLt, insts.OpLeu, insts.OpLe:
		borrow := int16(0)
		for i := 0; i < 8; i++ {
			diff := int16(row.ABytes[i]) - int16(row.BBytes[i]) - borrow
			if diff < 0 {
				borrow = 1
			} else {
				borrow = 0
			}
			row.Carry[i] = uint8(borrow)
		}
	case insts.OpEq:
		equal := uint8(1)
		for i := 0; i < 8; i++ {
			if row.ABytes[i] != row.BBytes[i] {
				equal = 0
			}
			row.Carry[i] = equal
		}
	case insts.OpSll, insts.OpSrl, insts.OpSra:
		row.ShiftAmt = uint8(bv & 63)
	}

	return row
}
