package trace

import (
	"fmt"

	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/insts"
)

// Set is the aggregated trace of a whole run, every component in global
// step order.
type Set struct {
	Main   []MainRow
	Arith  []ArithRow
	Binary []BinaryRow
	Mem    []MemRow
	Rom    []RomRow

	// Steps is the total instruction-step count.
	Steps uint64
}

// Aggregate concatenates per-segment traces in segment order, links and
// verifies the memory chain, and builds the fetch-multiplicity table over
// prog. Segments must be supplied in index order with no gaps.
//
// Aggregation re-checks the global ordering invariants; a violation means
// the phases disagreed and surfaces as a consistency fault.
func Aggregate(segments []*Segment, prog *insts.Program) (*Set, error) {
	set := &Set{}

	var mainTotal, arithTotal, binaryTotal, memTotal int
	for i, seg := range segments {
		if seg.Index != i {
			return nil, consistency(0, fmt.Errorf("segment %d delivered at position %d", seg.Index, i))
		}
		mainTotal += len(seg.Main)
		arithTotal += len(seg.Arith)
		binaryTotal += len(seg.Binary)
		memTotal += len(seg.Mem)
	}

	set.Main = make([]MainRow, 0, mainTotal)
	set.Arith = make([]ArithRow, 0, arithTotal)
	set.Binary = make([]BinaryRow, 0, binaryTotal)
	set.Mem = make([]MemRow, 0, memTotal)

	fetch := make(map[uint64]uint64, prog.Len())
	for _, seg := range segments {
		set.Main = append(set.Main, seg.Main...)
		set.Arith = append(set.Arith, seg.Arith...)
		set.Binary = append(set.Binary, seg.Binary...)
		set.Mem = append(set.Mem, seg.Mem...)
		for addr, n := range seg.RomFetch {
			fetch[addr] += n
		}
	}
	set.Steps = uint64(len(set.Main))

	// Steps must be dense in global order.
	for i := range set.Main {
		if set.Main[i].Step != uint64(i) {
			return nil, consistency(set.Main[i].Step,
				fmt.Errorf("main row %d carries step %d", i, set.Main[i].Step))
		}
	}

	if err := set.linkMemChain(); err != nil {
		return nil, err
	}

	// One multiplicity row per program address, program order. Every
	// fetch must land on a known address and the multiplicities must add
	// up to the step count.
	var fetched uint64
	set.Rom = make([]RomRow, 0, prog.Len())
	for _, addr := range prog.Addrs() {
		inst, _ := prog.At(addr)
		n := fetch[addr]
		fetched += n
		set.Rom = append(set.Rom, RomRow{Addr: addr, Op: inst.Op, Multiplicity: n})
		delete(fetch, addr)
	}
	if len(fetch) != 0 {
		for addr := range fetch {
			return nil, consistency(0, fmt.Errorf("fetch recorded at unknown address 0x%x", addr))
		}
	}
	if fetched != set.Steps {
		return nil, consistency(0,
			fmt.Errorf("fetch multiplicities add to %d, steps are %d", fetched, set.Steps))
	}

	return set, nil
}

// linkMemChain fills every memory row's PrevStep with the id of the
// previous access to the same aligned double-word and verifies that ids
// strictly increase, globally and per word.
func (s *Set) linkMemChain() error {
	last := make(map[uint64]uint64)
	var lastID uint64
	for i := range s.Mem {
		row := &s.Mem[i]
		if i > 0 && row.MemStep <= lastID {
			return consistency(row.Step,
				fmt.Errorf("memory-step %d does not increase past %d", row.MemStep, lastID))
		}
		lastID = row.MemStep
		row.PrevStep = last[row.Word()]
		last[row.Word()] = row.MemStep
	}
	return nil
}

// VerifyMemChain re-checks the linked memory ordering property on an
// already aggregated set.
func (s *Set) VerifyMemChain() error {
	last := make(map[uint64]uint64)
	var lastID uint64
	for i := range s.Mem {
		row := &s.Mem[i]
		if i > 0 && row.MemStep <= lastID {
			return consistency(row.Step,
				fmt.Errorf("memory-step %d does not increase past %d", row.MemStep, lastID))
		}
		lastID = row.MemStep
		if row.PrevStep != last[row.Word()] {
			return consistency(row.Step,
				fmt.Errorf("memory row at step %d links to %d, expected %d",
					row.Step, row.PrevStep, last[row.Word()]))
		}
		last[row.Word()] = row.MemStep
	}
	return nil
}

func consistency(step uint64, err error) error {
	return core.NewFault(core.FaultConsistency, step, 0, err)
}
