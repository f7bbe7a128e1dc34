package handlers

import (
	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/trace"
)

// Rom verifies fetch integrity: every fetched record must match the shared
// instruction store field for field. It accumulates per-address fetch
// multiplicities; the aggregated table is built over the whole program, so
// the unit emits no per-step rows of its own.
type Rom struct {
	prog   *insts.Program
	seg    *trace.Segment
	record bool
	count  uint64
}

// NewRom returns a fetch-verification unit over prog.
func NewRom(prog *insts.Program) *Rom {
	return &Rom{prog: prog}
}

// Class implements Unit.
func (r *Rom) Class() bus.Class {
	return bus.ClassRom
}

// Attach points the unit at a segment trace and resets its counter.
func (r *Rom) Attach(seg *trace.Segment, record bool) {
	r.seg = seg
	r.record = record
	r.count = 0
}

// Count returns the fetches verified in the current segment.
func (r *Rom) Count() uint64 {
	return r.count
}

// Process implements Unit.
func (r *Rom) Process(entries []*bus.Entry) error {
	for _, e := range entries {
		want, ok := r.prog.At(e.PC)
		if !ok {
			f := core.NewFault(core.FaultHandler, e.Step, e.PC, core.ErrNoInstruction)
			return f
		}
		if e.Inst == nil || *e.Inst != *want {
			f := core.NewFault(core.FaultHandler, e.Step, e.PC, core.ErrFetchMismatch)
			f.Op = e.Op
			return f
		}

		e.Done = true
		r.count++
		if r.record {
			r.seg.RomFetch[e.PC]++
		}
	}
	return nil
}
