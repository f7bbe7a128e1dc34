package insts

import (
	"fmt"
	"sort"
)

// InstSpacing is the address distance between consecutive instruction
// records. Program addresses are multiples of it from the entry point.
const InstSpacing = 8

// Program is the immutable, address-indexed instruction store. It is built
// once and shared read-only across all workers.
type Program struct {
	byAddr map[uint64]*Instruction
	addrs  []uint64
	entry  uint64
	halt   uint64
}

// NewProgram builds a Program from validated instruction records.
// entry is the initial program counter and halt the address whose
// reaching terminates execution.
func NewProgram(entry, halt uint64, list []*Instruction) (*Program, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("program: no instructions")
	}
	p := &Program{
		byAddr: make(map[uint64]*Instruction, len(list)),
		addrs:  make([]uint64, 0, len(list)),
		entry:  entry,
		halt:   halt,
	}
	for _, inst := range list {
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("program: %w", err)
		}
		if _, dup := p.byAddr[inst.Addr]; dup {
			return nil, fmt.Errorf("program: duplicate instruction at 0x%x", inst.Addr)
		}
		p.byAddr[inst.Addr] = inst
		p.addrs = append(p.addrs, inst.Addr)
	}
	sort.Slice(p.addrs, func(i, j int) bool { return p.addrs[i] < p.addrs[j] })
	if _, ok := p.byAddr[entry]; !ok {
		return nil, fmt.Errorf("program: entry 0x%x has no instruction", entry)
	}
	return p, nil
}

// At returns the instruction record at addr, if any.
func (p *Program) At(addr uint64) (*Instruction, bool) {
	inst, ok := p.byAddr[addr]
	return inst, ok
}

// Entry returns the initial program counter.
func (p *Program) Entry() uint64 {
	return p.entry
}

// HaltAddr returns the terminal program counter.
func (p *Program) HaltAddr() uint64 {
	return p.halt
}

// Len returns the number of instruction records.
func (p *Program) Len() int {
	return len(p.byAddr)
}

// Addrs returns the instruction addresses in increasing order. The returned
// slice is shared; callers must not modify it.
func (p *Program) Addrs() []uint64 {
	return p.addrs
}

// Index returns the position of addr in the sorted address list, or -1.
func (p *Program) Index(addr uint64) int {
	i := sort.Search(len(p.addrs), func(i int) bool { return p.addrs[i] >= addr })
	if i < len(p.addrs) && p.addrs[i] == addr {
		return i
	}
	return -1
}

// ProgramBuilder assembles a Program sequentially from the entry point.
// The first error sticks and is reported by Build.
type ProgramBuilder struct {
	entry uint64
	next  uint64
	list  []*Instruction
	err   error
}

// NewProgramBuilder starts a program whose first instruction sits at entry.
func NewProgramBuilder(entry uint64) *ProgramBuilder {
	return &ProgramBuilder{entry: entry, next: entry}
}

// PC returns the address the next emitted instruction will occupy.
func (b *ProgramBuilder) PC() uint64 {
	return b.next
}

// Emit appends inst at the next sequential address. Jump fields default to
// the sequential successor when left zero.
func (b *ProgramBuilder) Emit(inst Instruction) *ProgramBuilder {
	if b.err != nil {
		return b
	}
	inst.Addr = b.next
	if inst.Jump2 == 0 {
		inst.Jump2 = InstSpacing
	}
	// For SetPC records Jump1 is a displacement from c and zero is
	// meaningful, so only sequential records get the default.
	if inst.Jump1 == 0 && !inst.SetPC {
		inst.Jump1 = InstSpacing
	}
	if err := inst.Validate(); err != nil {
		b.err = err
		return b
	}
	b.list = append(b.list, &inst)
	b.next += InstSpacing
	return b
}

// Op emits a register-to-register operation: dst = op(ra, rb).
func (b *ProgramBuilder) Op(op Op, dst, ra, rb uint8) *ProgramBuilder {
	return b.Emit(Instruction{
		Op:  op,
		A:   RegOperand(ra),
		B:   RegOperand(rb),
		Dst: RegStore(dst),
	})
}

// OpImm emits a register-immediate operation: dst = op(ra, imm).
func (b *ProgramBuilder) OpImm(op Op, dst, ra uint8, imm uint64) *ProgramBuilder {
	return b.Emit(Instruction{
		Op:  op,
		A:   RegOperand(ra),
		B:   ImmOperand(imm),
		Dst: RegStore(dst),
	})
}

// LoadImm emits dst = imm.
func (b *ProgramBuilder) LoadImm(dst uint8, imm uint64) *ProgramBuilder {
	return b.Emit(Instruction{
		Op:  OpCopyB,
		A:   ImmOperand(0),
		B:   ImmOperand(imm),
		Dst: RegStore(dst),
	})
}

// Load emits dst = width bytes at reg base plus offset, zero-extended.
func (b *ProgramBuilder) Load(dst, base uint8, offset int64, width uint8) *ProgramBuilder {
	return b.Emit(Instruction{
		Op:  OpCopyB,
		A:   RegOperand(base),
		B:   IndOperand(offset, width),
		Dst: RegStore(dst),
	})
}

// Store emits width bytes of src at reg base plus offset.
func (b *ProgramBuilder) Store(src, base uint8, offset int64, width uint8) *ProgramBuilder {
	return b.Emit(Instruction{
		Op:  OpCopyB,
		A:   RegOperand(base),
		B:   RegOperand(src),
		Dst: IndStore(offset, width),
	})
}

// BranchIf emits a conditional branch: evaluate op(ra, rb) and jump by
// taken instructions forward (backward if negative) when the flag is set.
func (b *ProgramBuilder) BranchIf(op Op, ra, rb uint8, taken int64) *ProgramBuilder {
	return b.Emit(Instruction{
		Op:    op,
		A:     RegOperand(ra),
		B:     RegOperand(rb),
		Dst:   NoStore(),
		Jump1: taken * InstSpacing,
		Jump2: InstSpacing,
	})
}

// Jump emits an unconditional jump to the absolute address target,
// storing the return address in ra when ra is nonzero.
func (b *ProgramBuilder) Jump(target uint64, ra uint8) *ProgramBuilder {
	inst := Instruction{
		Op:    OpCopyB,
		A:     ImmOperand(0),
		B:     ImmOperand(target),
		Dst:   NoStore(),
		SetPC: true,
		Jump2: InstSpacing,
	}
	if ra != 0 {
		inst.Dst = RegStore(ra)
		inst.StoreRA = true
	}
	return b.Emit(inst)
}

// End emits the terminal instruction.
func (b *ProgramBuilder) End() *ProgramBuilder {
	return b.Emit(Instruction{
		Op:  OpCopyB,
		A:   ImmOperand(0),
		B:   ImmOperand(0),
		Dst: NoStore(),
		End: true,
	})
}

// Build finalizes the program. The halt address is the address one past the
// last emitted instruction.
func (b *ProgramBuilder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	return NewProgram(b.entry, b.next, b.list)
}
