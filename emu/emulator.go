// Package emu implements the main interpreter: the fetch, resolve,
// delegate, store, advance loop that every execution phase runs. The loop
// is identical in all recording fidelities; only what gets written to the
// segment trace differs.
package emu

import (
	"fmt"

	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/handlers"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/trace"
)

// Mode selects the recording fidelity.
type Mode uint8

// Recording fidelities. Control flow is bit-identical across all three;
// the counting modes merely skip row emission.
const (
	// ModeCountSteps keeps step and class counters only.
	ModeCountSteps Mode = iota
	// ModeCountOps additionally reads back per-operation tallies.
	ModeCountOps
	// ModeRecord emits full trace rows.
	ModeRecord
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeCountSteps:
		return "count-steps"
	case ModeCountOps:
		return "count-ops"
	case ModeRecord:
		return "record"
	default:
		return "unknown"
	}
}

// StepResult reports what a single executed instruction did.
type StepResult struct {
	// PC is the address of the executed record.
	PC uint64

	// NextPC is the successor program counter.
	NextPC uint64

	// Halted is true when the executed record was terminal or the next
	// program counter reached the halt address.
	Halted bool
}

// Counts is the per-class work tally accumulated since the last
// BeginSegment.
type Counts struct {
	Arith  handlers.OpCounts
	Binary handlers.OpCounts
	Memory handlers.MemCounts
	Rom    uint64
}

// Emulator executes instruction records against a context, delegating
// operand traffic over the bus to the secondary units it owns.
type Emulator struct {
	prog *insts.Program
	ctx  *core.Context
	bus  *bus.Bus

	// Secondary units.
	arith  *handlers.Arith
	binary *handlers.Binary
	memory *handlers.Memory
	rom    *handlers.Rom

	seg  *trace.Segment
	mode Mode

	haltAddr    uint64
	strictAlign bool
}

// Option is a functional option for configuring the Emulator.
type Option func(*Emulator)

// WithContext resumes execution from ctx instead of starting a fresh
// context at the program entry.
func WithContext(ctx *core.Context) Option {
	return func(e *Emulator) {
		e.ctx = ctx
	}
}

// WithHaltAddr overrides the program's halt address.
func WithHaltAddr(addr uint64) Option {
	return func(e *Emulator) {
		e.haltAddr = addr
	}
}

// WithStrictAlign makes unaligned memory requests fault instead of being
// split into aligned halves.
func WithStrictAlign(on bool) Option {
	return func(e *Emulator) {
		e.strictAlign = on
	}
}

// New creates an emulator for prog. Without options it starts at the
// program entry with empty memory, counters only.
func New(prog *insts.Program, opts ...Option) *Emulator {
	e := &Emulator{
		prog:     prog,
		bus:      bus.New(),
		haltAddr: prog.HaltAddr(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ctx == nil {
		e.ctx = core.NewContext(prog.Entry())
	}

	e.arith = handlers.NewArith()
	e.binary = handlers.NewBinary()
	e.memory = handlers.NewMemory(e.strictAlign)
	e.rom = handlers.NewRom(prog)

	// A detached emulator still runs; BeginSegment re-points the units
	// when a caller wants the trace.
	e.BeginSegment(trace.NewSegment(0), ModeCountSteps)
	return e
}

// BeginSegment points the secondary units at seg with the given fidelity
// and resets their per-segment counters.
func (e *Emulator) BeginSegment(seg *trace.Segment, mode Mode) {
	e.seg = seg
	e.mode = mode
	record := mode == ModeRecord
	e.arith.Attach(seg, record)
	e.binary.Attach(seg, record)
	e.memory.Attach(seg, e.ctx.Mem, record)
	e.rom.Attach(seg, record)
}

// Context returns the execution context the emulator is stepping.
func (e *Emulator) Context() *core.Context {
	return e.ctx
}

// Program returns the shared instruction store.
func (e *Emulator) Program() *insts.Program {
	return e.prog
}

// Counts returns the per-class tallies of the current segment.
func (e *Emulator) Counts() Counts {
	return Counts{
		Arith:  e.arith.Counts(),
		Binary: e.binary.Counts(),
		Memory: e.memory.Counts(),
		Rom:    e.rom.Count(),
	}
}

// Step executes a single instruction record. A halted context is a no-op.
func (e *Emulator) Step() (StepResult, error) {
	if e.ctx.Halted {
		return StepResult{PC: e.ctx.PC, NextPC: e.ctx.PC, Halted: true}, nil
	}
	pc := e.ctx.PC
	if pc == e.haltAddr {
		e.ctx.Halted = true
		return StepResult{PC: pc, NextPC: pc, Halted: true}, nil
	}

	inst, ok := e.prog.At(pc)
	if !ok {
		return StepResult{}, core.NewFault(
			core.FaultDecode, e.ctx.Step, pc, core.ErrNoInstruction)
	}
	if err := e.fetch(inst); err != nil {
		return StepResult{}, err
	}

	a, err := e.resolveA(inst)
	if err != nil {
		return StepResult{}, err
	}
	b, err := e.resolveB(inst, a)
	if err != nil {
		return StepResult{}, err
	}

	c, flag, err := e.operate(inst, a, b)
	if err != nil {
		return StepResult{}, err
	}

	if err := e.store(inst, a, c); err != nil {
		return StepResult{}, err
	}

	next := inst.NextPC(c, flag)
	if e.mode == ModeRecord {
		e.seg.Main = append(e.seg.Main, trace.MainRow{
			Step:          e.ctx.Step,
			PC:            pc,
			Op:            inst.Op,
			Class:         inst.Op.Class(),
			A:             a,
			B:             b,
			C:             c,
			Flag:          flag,
			NextPC:        next,
			MemStepBefore: e.ctx.MemStep,
			MemStepAfter:  e.ctx.MemStep + core.MemStepsPerStep,
		})
	}

	e.ctx.Step++
	e.ctx.MemStep += core.MemStepsPerStep
	e.ctx.PC = next
	if inst.End || next == e.haltAddr {
		e.ctx.Halted = true
	}
	return StepResult{PC: pc, NextPC: next, Halted: e.ctx.Halted}, nil
}

// Run steps until the context halts or limit steps have executed; limit
// zero means no limit. It returns the number of steps executed, counted by
// the context's step counter so a halt detected at the resume point counts
// as zero.
func (e *Emulator) Run(limit uint64) (uint64, error) {
	start := e.ctx.Step
	for !e.ctx.Halted {
		if limit > 0 && e.ctx.Step-start >= limit {
			break
		}
		if _, err := e.Step(); err != nil {
			return e.ctx.Step - start, err
		}
	}
	return e.ctx.Step - start, nil
}

// fetch routes the record through the fetch-verification unit.
func (e *Emulator) fetch(inst *insts.Instruction) error {
	fe := &bus.Entry{
		Class: bus.ClassRom,
		Op:    inst.Op,
		Step:  e.ctx.Step,
		PC:    inst.Addr,
		Inst:  inst,
	}
	e.bus.Submit(fe)
	return e.rom.Process(e.bus.Drain(bus.ClassRom))
}

// resolveA produces the A operand value.
func (e *Emulator) resolveA(inst *insts.Instruction) (uint64, error) {
	op := inst.A
	switch op.Kind {
	case insts.SrcReg:
		return e.ctx.ReadReg(op.Reg), nil
	case insts.SrcImm:
		return op.Imm, nil
	case insts.SrcMem:
		return e.load(inst, op.Addr, op.Width)
	default:
		return 0, core.NewFault(core.FaultDecode, e.ctx.Step, inst.Addr,
			fmt.Errorf("operand A source %s not allowed", op.Kind))
	}
}

// resolveB produces the B operand value. Indirection bases off the already
// resolved A value.
func (e *Emulator) resolveB(inst *insts.Instruction, a uint64) (uint64, error) {
	op := inst.B
	switch op.Kind {
	case insts.SrcReg:
		return e.ctx.ReadReg(op.Reg), nil
	case insts.SrcImm:
		return op.Imm, nil
	case insts.SrcMem:
		return e.load(inst, op.Addr, op.Width)
	case insts.SrcInd:
		return e.load(inst, a+uint64(op.Offset), op.Width)
	default:
		return 0, core.NewFault(core.FaultDecode, e.ctx.Step, inst.Addr,
			fmt.Errorf("operand B source %s not allowed", op.Kind))
	}
}

// operate computes the operation result. Internal operations run in place;
// everything else goes over the bus to its class unit.
func (e *Emulator) operate(inst *insts.Instruction, a, b uint64) (uint64, bool, error) {
	switch inst.Op {
	case insts.OpFlag:
		return 0, true, nil
	case insts.OpCopyB:
		return b, false, nil
	case insts.OpPubOut:
		e.ctx.Publish(a, b)
		return b, false, nil
	}

	class, ok := bus.ClassFor(inst.Op)
	if !ok {
		f := core.NewFault(core.FaultDecode, e.ctx.Step, inst.Addr, core.ErrUnsupportedOp)
		f.Op = inst.Op
		return 0, false, f
	}
	de := &bus.Entry{
		Class: class,
		Op:    inst.Op,
		Step:  e.ctx.Step,
		PC:    inst.Addr,
		A:     a,
		B:     b,
	}
	e.bus.Submit(de)

	var err error
	if class == bus.ClassArith {
		err = e.arith.Process(e.bus.Drain(class))
	} else {
		err = e.binary.Process(e.bus.Drain(class))
	}
	if err != nil {
		return 0, false, err
	}
	return de.C, de.Flag, nil
}

// store writes the step result to its destination. With StoreRA set, the
// fall-through address is stored instead of the result.
func (e *Emulator) store(inst *insts.Instruction, a, c uint64) error {
	value := c
	if inst.StoreRA {
		value = inst.ReturnAddr()
	}
	st := inst.Dst
	switch st.Kind {
	case insts.StoreNone:
		return nil
	case insts.StoreReg:
		e.ctx.WriteReg(st.Reg, value)
		return nil
	case insts.StoreMem:
		return e.storeMem(inst, st.Addr, st.Width, value)
	case insts.StoreInd:
		return e.storeMem(inst, a+uint64(st.Offset), st.Width, value)
	default:
		return core.NewFault(core.FaultDecode, e.ctx.Step, inst.Addr,
			fmt.Errorf("store kind %s not allowed", st.Kind))
	}
}

// load routes a read through the memory unit and returns the value.
func (e *Emulator) load(inst *insts.Instruction, addr uint64, width uint8) (uint64, error) {
	me := &bus.Entry{
		Class: bus.ClassMemory,
		Kind:  bus.AccessRead,
		Op:    inst.Op,
		Step:  e.ctx.Step,
		PC:    inst.Addr,
		Addr:  addr,
		Width: width,
	}
	e.bus.Submit(me)
	if err := e.memory.Process(e.bus.Drain(bus.ClassMemory)); err != nil {
		return 0, err
	}
	return me.C, nil
}

// storeMem routes a write through the memory unit.
func (e *Emulator) storeMem(inst *insts.Instruction, addr uint64, width uint8, value uint64) error {
	me := &bus.Entry{
		Class: bus.ClassMemory,
		Kind:  bus.AccessWrite,
		Op:    inst.Op,
		Step:  e.ctx.Step,
		PC:    inst.Addr,
		Addr:  addr,
		Width: width,
		Value: value,
	}
	e.bus.Submit(me)
	return e.memory.Process(e.bus.Drain(bus.ClassMemory))
}
