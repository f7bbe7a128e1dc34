// Package benchmarks provides the workload suite and harness used to
// measure pipeline throughput and spot-check run integrity.
package benchmarks

import (
	"fmt"

	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/insts"
)

// Workload is one benchmark program together with the publish-output image
// a correct run must produce.
type Workload struct {
	// Name identifies the workload.
	Name string

	// Description explains which area the workload stresses.
	Description string

	// Program is the instruction stream to execute.
	Program *insts.Program

	// Input is the payload written into the input window, usually empty.
	Input []byte

	// ExpectedOut maps publish indices to the values a correct run
	// produces.
	ExpectedOut map[uint64]uint64
}

// GetWorkloads returns the standard workload suite. Each workload targets
// one trace area so per-area throughput regressions show up in isolation.
func GetWorkloads() []Workload {
	return []Workload{
		Fibonacci(64),
		ArithChain(1024),
		BinaryMix(1024),
		MemorySweep(1024),
		UnalignedSweep(512),
		BranchLoop(4096),
	}
}

// GetCoreWorkloads returns a minimal suite for quick validation runs.
func GetCoreWorkloads() []Workload {
	return []Workload{
		Fibonacci(32),
		MemorySweep(128),
		BranchLoop(256),
	}
}

func mustBuild(b *insts.ProgramBuilder) *insts.Program {
	prog, err := b.Build()
	if err != nil {
		panic(err)
	}
	return prog
}

// The loops below run their body exactly n times: the counter increments
// before the bound check, so n is clamped to at least 1.
func clamp(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	return n
}

// Fibonacci computes fib(n) iteratively and publishes it at index 0.
// Mixed adds and a backward branch per iteration.
func Fibonacci(n uint64) Workload {
	n = clamp(n)
	b := insts.NewProgramBuilder(core.RomEntry)
	b.LoadImm(1, 0)
	b.LoadImm(2, 1)
	b.LoadImm(3, n)
	b.LoadImm(4, 0)
	b.Op(insts.OpAdd, 5, 1, 2)
	b.OpImm(insts.OpAdd, 1, 2, 0)
	b.OpImm(insts.OpAdd, 2, 5, 0)
	b.OpImm(insts.OpAdd, 4, 4, 1)
	b.BranchIf(insts.OpLtu, 4, 3, -4)
	b.Emit(insts.Instruction{
		Op:  insts.OpPubOut,
		A:   insts.ImmOperand(0),
		B:   insts.RegOperand(1),
		Dst: insts.NoStore(),
	})
	b.End()

	x, y := uint64(0), uint64(1)
	for i := uint64(0); i < n; i++ {
		x, y = y, x+y
	}

	return Workload{
		Name:        "fibonacci",
		Description: fmt.Sprintf("iterative fib(%d), dependent adds with a tight loop", n),
		Program:     mustBuild(b),
		ExpectedOut: map[uint64]uint64{0: x},
	}
}

// ArithChain squares an accumulator n times, one wide multiply per
// iteration.
func ArithChain(n uint64) Workload {
	n = clamp(n)
	b := insts.NewProgramBuilder(core.RomEntry)
	b.LoadImm(1, 3)
	b.LoadImm(3, n)
	b.LoadImm(4, 0)
	b.Op(insts.OpMul, 1, 1, 1)
	b.OpImm(insts.OpAdd, 4, 4, 1)
	b.BranchIf(insts.OpLtu, 4, 3, -2)
	b.Emit(insts.Instruction{
		Op:  insts.OpPubOut,
		A:   insts.ImmOperand(0),
		B:   insts.RegOperand(1),
		Dst: insts.NoStore(),
	})
	b.End()

	v := uint64(3)
	for i := uint64(0); i < n; i++ {
		v *= v
	}

	return Workload{
		Name:        "arith_chain",
		Description: fmt.Sprintf("%d dependent wide multiplies", n),
		Program:     mustBuild(b),
		ExpectedOut: map[uint64]uint64{0: v},
	}
}

// BinaryMix folds xor, shift and or over an accumulator so every loop step
// lands in the binary unit.
func BinaryMix(n uint64) Workload {
	n = clamp(n)
	const seed = 0x9e37_79b9_7f4a_7c15
	const tweak = 0x00ff_00ff_00ff_00ff

	b := insts.NewProgramBuilder(core.RomEntry)
	b.LoadImm(1, seed)
	b.LoadImm(3, n)
	b.LoadImm(4, 0)
	b.OpImm(insts.OpXor, 1, 1, tweak)
	b.OpImm(insts.OpSrl, 2, 1, 7)
	b.Op(insts.OpOr, 1, 1, 2)
	b.OpImm(insts.OpAdd, 4, 4, 1)
	b.BranchIf(insts.OpLtu, 4, 3, -4)
	b.Emit(insts.Instruction{
		Op:  insts.OpPubOut,
		A:   insts.ImmOperand(0),
		B:   insts.RegOperand(1),
		Dst: insts.NoStore(),
	})
	b.End()

	v := uint64(seed)
	for i := uint64(0); i < n; i++ {
		v ^= tweak
		v |= v >> 7
	}

	return Workload{
		Name:        "binary_mix",
		Description: fmt.Sprintf("%d iterations of xor/shift/or", n),
		Program:     mustBuild(b),
		ExpectedOut: map[uint64]uint64{0: v},
	}
}

// MemorySweep walks aligned double-words through RAM, one store/load pair
// per iteration.
func MemorySweep(n uint64) Workload {
	n = clamp(n)
	b := insts.NewProgramBuilder(core.RomEntry)
	b.LoadImm(1, 1)
	b.LoadImm(2, core.RAMStart)
	b.LoadImm(3, n)
	b.LoadImm(4, 0)
	b.Store(1, 2, 0, 8)
	b.Load(5, 2, 0, 8)
	b.Op(insts.OpAdd, 1, 1, 5)
	b.OpImm(insts.OpAdd, 2, 2, 8)
	b.OpImm(insts.OpAdd, 4, 4, 1)
	b.BranchIf(insts.OpLtu, 4, 3, -5)
	b.Emit(insts.Instruction{
		Op:  insts.OpPubOut,
		A:   insts.ImmOperand(0),
		B:   insts.RegOperand(1),
		Dst: insts.NoStore(),
	})
	b.End()

	v := uint64(1)
	for i := uint64(0); i < n; i++ {
		v += v
	}

	return Workload{
		Name:        "memory_sweep",
		Description: fmt.Sprintf("%d aligned store/load pairs over sequential addresses", n),
		Program:     mustBuild(b),
		ExpectedOut: map[uint64]uint64{0: v},
	}
}

// UnalignedSweep stores and reloads 4-byte values at addresses one past
// the double-word boundary, forcing every access to split.
func UnalignedSweep(n uint64) Workload {
	n = clamp(n)
	b := insts.NewProgramBuilder(core.RomEntry)
	b.LoadImm(1, 0xaabb_ccdd)
	b.LoadImm(2, core.RAMStart+1)
	b.LoadImm(3, n)
	b.LoadImm(4, 0)
	b.Store(1, 2, 0, 4)
	b.Load(5, 2, 0, 4)
	b.Op(insts.OpAdd, 1, 1, 5)
	b.OpImm(insts.OpAdd, 2, 2, 16)
	b.OpImm(insts.OpAdd, 4, 4, 1)
	b.BranchIf(insts.OpLtu, 4, 3, -5)
	b.Emit(insts.Instruction{
		Op:  insts.OpPubOut,
		A:   insts.ImmOperand(0),
		B:   insts.RegOperand(1),
		Dst: insts.NoStore(),
	})
	b.End()

	v := uint64(0xaabb_ccdd)
	for i := uint64(0); i < n; i++ {
		v += uint64(uint32(v))
	}

	return Workload{
		Name:        "unaligned_sweep",
		Description: fmt.Sprintf("%d split store/load pairs off the word boundary", n),
		Program:     mustBuild(b),
		ExpectedOut: map[uint64]uint64{0: v},
	}
}

// BranchLoop is the tightest possible counted loop, one increment and one
// backward branch per iteration.
func BranchLoop(n uint64) Workload {
	n = clamp(n)
	b := insts.NewProgramBuilder(core.RomEntry)
	b.LoadImm(3, n)
	b.LoadImm(4, 0)
	b.OpImm(insts.OpAdd, 4, 4, 1)
	b.BranchIf(insts.OpLtu, 4, 3, -1)
	b.Emit(insts.Instruction{
		Op:  insts.OpPubOut,
		A:   insts.ImmOperand(0),
		B:   insts.RegOperand(4),
		Dst: insts.NoStore(),
	})
	b.End()

	return Workload{
		Name:        "branch_loop",
		Description: fmt.Sprintf("counted loop of %d taken branches", n),
		Program:     mustBuild(b),
		ExpectedOut: map[uint64]uint64{0: n},
	}
}
