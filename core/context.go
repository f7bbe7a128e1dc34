package core

import "github.com/sarchlab/zemu/insts"

// MemStepsPerStep is the number of memory-step ids reserved by every
// instruction step. Step s hands out ids s*MemStepsPerStep+1 through
// (s+1)*MemStepsPerStep in access order; unused ids are skipped so the
// counter always sits on a window boundary between steps. Id zero is never
// assigned, which lets chain links use zero for "no previous access".
const MemStepsPerStep = 4

// Context is the mutable machine state of one in-flight execution. It is
// exclusively owned by the segment currently stepping it; clones taken at
// segment boundaries are fully independent.
type Context struct {
	// Regs is the general-purpose register file. Register 0 is hardwired
	// to zero: reads return 0 and writes are dropped.
	Regs [insts.NumRegs]uint64

	// PC is the program counter.
	PC uint64

	// Step counts executed instructions across the whole run.
	Step uint64

	// MemStep is the memory-step counter. It advances by exactly
	// MemStepsPerStep per instruction, so MemStep == MemStepsPerStep*Step
	// holds at every step boundary.
	MemStep uint64

	// Mem is the current memory view.
	Mem *MemView

	// PubOut holds values published by the program, keyed by output index.
	PubOut map[uint64]uint64

	// Halted is set when a terminal instruction executes or the program
	// counter reaches the halt address.
	Halted bool
}

// NewContext returns a context positioned at pc with empty memory.
func NewContext(pc uint64) *Context {
	return &Context{
		PC:     pc,
		Mem:    NewMemView(),
		PubOut: make(map[uint64]uint64),
	}
}

// ReadReg reads a register. Register 0 always reads as zero.
func (c *Context) ReadReg(reg uint8) uint64 {
	if reg == 0 || reg >= insts.NumRegs {
		return 0
	}
	return c.Regs[reg]
}

// WriteReg writes a register. Writes to register 0 are dropped.
func (c *Context) WriteReg(reg uint8, value uint64) {
	if reg == 0 || reg >= insts.NumRegs {
		return
	}
	c.Regs[reg] = value
}

// Publish records value at output index idx.
func (c *Context) Publish(idx, value uint64) {
	c.PubOut[idx] = value
}

// Clone returns an independent copy sharing memory pages copy-on-write.
func (c *Context) Clone() *Context {
	dup := &Context{
		Regs:    c.Regs,
		PC:      c.PC,
		Step:    c.Step,
		MemStep: c.MemStep,
		Mem:     c.Mem.Clone(),
		PubOut:  make(map[uint64]uint64, len(c.PubOut)),
		Halted:  c.Halted,
	}
	for k, v := range c.PubOut {
		dup.PubOut[k] = v
	}
	return dup
}

// Checkpoint is an execution-context snapshot taken at a segment boundary.
// The exit checkpoint of one segment must equal the entry checkpoint of the
// next field for field.
type Checkpoint struct {
	Regs    [insts.NumRegs]uint64
	PC      uint64
	Step    uint64
	MemStep uint64
	PubOut  map[uint64]uint64
	Mem     *MemView
	Halted  bool
}

// Snapshot captures the context as a checkpoint, cloning the memory view.
func (c *Context) Snapshot() *Checkpoint {
	pub := make(map[uint64]uint64, len(c.PubOut))
	for k, v := range c.PubOut {
		pub[k] = v
	}
	return &Checkpoint{
		Regs:    c.Regs,
		PC:      c.PC,
		Step:    c.Step,
		MemStep: c.MemStep,
		PubOut:  pub,
		Mem:     c.Mem.Clone(),
		Halted:  c.Halted,
	}
}

// Restore builds a fresh context from the checkpoint. The checkpoint's
// memory view is cloned, so the checkpoint stays reusable.
func (cp *Checkpoint) Restore() *Context {
	pub := make(map[uint64]uint64, len(cp.PubOut))
	for k, v := range cp.PubOut {
		pub[k] = v
	}
	return &Context{
		Regs:    cp.Regs,
		PC:      cp.PC,
		Step:    cp.Step,
		MemStep: cp.MemStep,
		PubOut:  pub,
		Mem:     cp.Mem.Clone(),
		Halted:  cp.Halted,
	}
}

// Equal compares the register state, counters and published outputs of two
// checkpoints. Memory contents are covered by trace comparison, not here.
func (cp *Checkpoint) Equal(other *Checkpoint) bool {
	if cp.Regs != other.Regs ||
		cp.PC != other.PC ||
		cp.Step != other.Step ||
		cp.MemStep != other.MemStep ||
		cp.Halted != other.Halted {
		return false
	}
	if len(cp.PubOut) != len(other.PubOut) {
		return false
	}
	for k, v := range cp.PubOut {
		if ov, ok := other.PubOut[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
