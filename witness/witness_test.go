package witness_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/trace"
	"github.com/sarchlab/zemu/witness"
)

var _ = Describe("Limb encoding", func() {
	It("round-trips representative values", func() {
		values := []uint64{
			0, 1, 0xffff_ffff, 1 << 32,
			0x0123_4567_89ab_cdef,
			0xffff_ffff_0000_0001, // the field modulus, irrecoverable if taken whole
			^uint64(0),
		}
		for _, v := range values {
			lo, hi := witness.Limbs(v)
			Expect(witness.Join(lo, hi)).To(Equal(v))
		}
	})

	It("keeps each limb below 2^32", func() {
		lo, hi := witness.Limbs(^uint64(0))
		Expect(lo.Uint64()).To(Equal(uint64(0xffff_ffff)))
		Expect(hi.Uint64()).To(Equal(uint64(0xffff_ffff)))
	})
})

var _ = Describe("FromTrace", func() {
	var cols *witness.Columns

	BeforeEach(func() {
		set := &trace.Set{
			Main: []trace.MainRow{
				{Step: 0, PC: 0x8000_0000, Op: insts.OpAdd, Class: insts.ClassBinary,
					A: 7, B: 5, C: 12, NextPC: 0x8000_0008,
					MemStepBefore: 0, MemStepAfter: 4},
				{Step: 1, PC: 0x8000_0008, Op: insts.OpMul, Class: insts.ClassArith,
					A: 1 << 40, B: 3, C: 3 << 40, NextPC: 0x8000_0010,
					MemStepBefore: 4, MemStepAfter: 8},
			},
			Arith: []trace.ArithRow{
				{Step: 1, Op: insts.OpMul, A: 1 << 40, B: 3, C: 3 << 40, Lo: 3 << 40},
			},
			Binary: []trace.BinaryRow{
				{Step: 0, Op: insts.OpAdd, A: 7, B: 5, C: 12,
					ABytes: [8]uint8{7}, BBytes: [8]uint8{5}, CBytes: [8]uint8{12}},
			},
			Mem: []trace.MemRow{
				{Step: 0, MemStep: 1, Addr: 0xa000_0008, Width: 8,
					Kind: bus.AccessWrite, Value: 0xfedc_ba98_7654_3210, Aligned: true},
				{Step: 1, MemStep: 5, Addr: 0xa000_0008, Width: 8,
					Kind: bus.AccessRead, Value: 0xfedc_ba98_7654_3210, Aligned: true,
					PrevStep: 1},
			},
			Rom: []trace.RomRow{
				{Addr: 0x8000_0000, Op: insts.OpAdd, Multiplicity: 1},
				{Addr: 0x8000_0008, Op: insts.OpMul, Multiplicity: 1},
			},
			Steps: 2,
		}
		cols = witness.FromTrace(set)
	})

	It("lays groups out in component order", func() {
		var names []string
		for _, g := range cols.Groups() {
			names = append(names, g.Name)
		}
		Expect(names).To(Equal([]string{"main", "arith", "binary", "memory", "rom"}))
	})

	It("sizes every group to its component's row count", func() {
		Expect(cols.Main.Rows).To(Equal(2))
		Expect(cols.Arith.Rows).To(Equal(1))
		Expect(cols.Binary.Rows).To(Equal(1))
		Expect(cols.Mem.Rows).To(Equal(2))
		Expect(cols.Rom.Rows).To(Equal(2))
		Expect(cols.Validate()).To(Succeed())
	})

	It("reconstructs main rows from their limb pairs", func() {
		Expect(rejoin(&cols.Main, "pc")).To(Equal([]uint64{0x8000_0000, 0x8000_0008}))
		Expect(rejoin(&cols.Main, "a")).To(Equal([]uint64{7, 1 << 40}))
		Expect(rejoin(&cols.Main, "c")).To(Equal([]uint64{12, 3 << 40}))
		Expect(rejoin(&cols.Main, "next_pc")).To(Equal([]uint64{0x8000_0008, 0x8000_0010}))
		Expect(rejoin(&cols.Main, "mem_step_before")).To(Equal([]uint64{0, 4}))
		Expect(scalars(&cols.Main, "op")).To(Equal([]uint64{
			uint64(insts.OpAdd), uint64(insts.OpMul)}))
		Expect(scalars(&cols.Main, "flag")).To(Equal([]uint64{0, 0}))
	})

	It("carries the wide product limbs in the arith group", func() {
		Expect(rejoin(&cols.Arith, "prod_lo")).To(Equal([]uint64{3 << 40}))
		Expect(rejoin(&cols.Arith, "prod_hi")).To(Equal([]uint64{0}))
		Expect(scalars(&cols.Arith, "op")).To(Equal([]uint64{uint64(insts.OpMul)}))
	})

	It("spreads byte decompositions over one column per lane", func() {
		Expect(scalars(&cols.Binary, "a_byte_0")).To(Equal([]uint64{7}))
		Expect(scalars(&cols.Binary, "b_byte_0")).To(Equal([]uint64{5}))
		Expect(scalars(&cols.Binary, "c_byte_0")).To(Equal([]uint64{12}))
		Expect(scalars(&cols.Binary, "c_byte_7")).To(Equal([]uint64{0}))
		Expect(scalars(&cols.Binary, "carry_0")).To(Equal([]uint64{0}))
		Expect(scalars(&cols.Binary, "shift_amt")).To(Equal([]uint64{0}))
	})

	It("encodes memory kind and alignment as bit columns", func() {
		Expect(scalars(&cols.Mem, "wr")).To(Equal([]uint64{1, 0}))
		Expect(scalars(&cols.Mem, "aligned")).To(Equal([]uint64{1, 1}))
		Expect(rejoin(&cols.Mem, "value")).To(Equal([]uint64{
			0xfedc_ba98_7654_3210, 0xfedc_ba98_7654_3210}))
		Expect(rejoin(&cols.Mem, "prev_step")).To(Equal([]uint64{0, 1}))
	})

	It("carries the fetch multiplicity table", func() {
		Expect(rejoin(&cols.Rom, "addr")).To(Equal([]uint64{0x8000_0000, 0x8000_0008}))
		Expect(rejoin(&cols.Rom, "multiplicity")).To(Equal([]uint64{1, 1}))
		Expect(scalars(&cols.Rom, "op")).To(Equal([]uint64{
			uint64(insts.OpAdd), uint64(insts.OpMul)}))
	})

	It("returns nil for an unknown column name", func() {
		Expect(cols.Main.Col("no_such_column")).To(BeNil())
	})

	It("produces empty but well-formed groups from an empty set", func() {
		empty := witness.FromTrace(&trace.Set{})
		for _, g := range empty.Groups() {
			Expect(g.Rows).To(Equal(0))
			Expect(g.Cols).NotTo(BeEmpty())
		}
		Expect(empty.Validate()).To(Succeed())
	})
})

// rejoin joins the lo/hi limb columns of name back into u64 values.
func rejoin(g *witness.Group, name string) []uint64 {
	lo := g.Col(name + "_lo")
	hi := g.Col(name + "_hi")
	ExpectWithOffset(1, lo).NotTo(BeNil())
	ExpectWithOffset(1, hi).NotTo(BeNil())
	out := make([]uint64, g.Rows)
	for i := range out {
		out[i] = witness.Join(lo.Values[i], hi.Values[i])
	}
	return out
}

// scalars reads a single-column value list as u64.
func scalars(g *witness.Group, name string) []uint64 {
	col := g.Col(name)
	ExpectWithOffset(1, col).NotTo(BeNil())
	out := make([]uint64, g.Rows)
	for i := range out {
		out[i] = col.Values[i].Uint64()
	}
	return out
}
