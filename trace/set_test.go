package trace_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/trace"
)

// twoInstProgram builds a two-instruction program for multiplicity checks.
func twoInstProgram() *insts.Program {
	prog, err := insts.NewProgramBuilder(core.RomEntry).
		LoadImm(1, 1).
		End().
		Build()
	Expect(err).NotTo(HaveOccurred())
	return prog
}

var _ = Describe("Aggregate", func() {
	var prog *insts.Program

	BeforeEach(func() {
		prog = twoInstProgram()
	})

	segWithSteps := func(index int, steps ...uint64) *trace.Segment {
		seg := trace.NewSegment(index)
		for _, s := range steps {
			addr := core.RomEntry + (s%2)*insts.InstSpacing
			seg.Main = append(seg.Main, trace.MainRow{Step: s, PC: addr})
			seg.RomFetch[addr]++
		}
		return seg
	}

	It("should concatenate segments in order", func() {
		a := segWithSteps(0, 0, 1)
		b := segWithSteps(1, 2, 3)

		set, err := trace.Aggregate([]*trace.Segment{a, b}, prog)
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Steps).To(Equal(uint64(4)))
		Expect(set.Main).To(HaveLen(4))
		Expect(set.Main[2].Step).To(Equal(uint64(2)))
	})

	It("should reject out-of-position segments", func() {
		a := segWithSteps(1, 0, 1)

		_, err := trace.Aggregate([]*trace.Segment{a}, prog)
		Expect(err).To(HaveOccurred())
		f, ok := core.AsFault(err)
		Expect(ok).To(BeTrue())
		Expect(f.Kind).To(Equal(core.FaultConsistency))
	})

	It("should reject non-dense steps", func() {
		a := segWithSteps(0, 0, 2)

		_, err := trace.Aggregate([]*trace.Segment{a}, prog)
		Expect(err).To(HaveOccurred())
		f, _ := core.AsFault(err)
		Expect(f.Kind).To(Equal(core.FaultConsistency))
	})

	It("should build the multiplicity table over the whole program", func() {
		a := segWithSteps(0, 0, 1)

		set, err := trace.Aggregate([]*trace.Segment{a}, prog)
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Rom).To(HaveLen(prog.Len()))

		var total uint64
		for _, row := range set.Rom {
			total += row.Multiplicity
		}
		Expect(total).To(Equal(set.Steps))
	})

	It("should reject fetch counts that disagree with the step count", func() {
		a := segWithSteps(0, 0, 1)
		a.RomFetch[core.RomEntry] += 5

		_, err := trace.Aggregate([]*trace.Segment{a}, prog)
		Expect(err).To(HaveOccurred())
	})

	It("should reject fetches at unknown addresses", func() {
		a := segWithSteps(0, 0)
		a.RomFetch[0x1234] = 1
		delete(a.RomFetch, core.RomEntry)

		_, err := trace.Aggregate([]*trace.Segment{a}, prog)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("memory chain", func() {
	var prog *insts.Program

	BeforeEach(func() {
		prog = twoInstProgram()
	})

	memSeg := func(rows ...trace.MemRow) *trace.Segment {
		seg := trace.NewSegment(0)
		seg.Main = append(seg.Main, trace.MainRow{Step: 0, PC: core.RomEntry})
		seg.RomFetch[core.RomEntry] = 1
		seg.Mem = append(seg.Mem, rows...)
		return seg
	}

	It("should link accesses to the same double-word", func() {
		seg := memSeg(
			trace.MemRow{Step: 0, MemStep: 1, Addr: core.RAMStart, Width: 8, Kind: bus.AccessWrite},
			trace.MemRow{Step: 0, MemStep: 2, Addr: core.RAMStart + 16, Width: 8, Kind: bus.AccessWrite},
			trace.MemRow{Step: 0, MemStep: 3, Addr: core.RAMStart, Width: 8, Kind: bus.AccessRead},
		)

		set, err := trace.Aggregate([]*trace.Segment{seg}, prog)
		Expect(err).NotTo(HaveOccurred())

		Expect(set.Mem[0].PrevStep).To(BeZero())
		Expect(set.Mem[1].PrevStep).To(BeZero())
		Expect(set.Mem[2].PrevStep).To(Equal(uint64(1)))

		Expect(set.VerifyMemChain()).To(Succeed())
	})

	It("should link sub-word accesses through their double-word", func() {
		seg := memSeg(
			trace.MemRow{Step: 0, MemStep: 1, Addr: core.RAMStart, Width: 8, Kind: bus.AccessWrite},
			trace.MemRow{Step: 0, MemStep: 2, Addr: core.RAMStart + 4, Width: 4, Kind: bus.AccessRead},
		)

		set, err := trace.Aggregate([]*trace.Segment{seg}, prog)
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Mem[1].PrevStep).To(Equal(uint64(1)))
	})

	It("should reject non-increasing memory-steps", func() {
		seg := memSeg(
			trace.MemRow{Step: 0, MemStep: 2, Addr: core.RAMStart, Width: 8},
			trace.MemRow{Step: 0, MemStep: 2, Addr: core.RAMStart + 8, Width: 8},
		)

		_, err := trace.Aggregate([]*trace.Segment{seg}, prog)
		Expect(err).To(HaveOccurred())
		f, _ := core.AsFault(err)
		Expect(f.Kind).To(Equal(core.FaultConsistency))
	})

	It("should detect broken links on re-verification", func() {
		seg := memSeg(
			trace.MemRow{Step: 0, MemStep: 1, Addr: core.RAMStart, Width: 8},
			trace.MemRow{Step: 0, MemStep: 2, Addr: core.RAMStart, Width: 8},
		)

		set, err := trace.Aggregate([]*trace.Segment{seg}, prog)
		Expect(err).NotTo(HaveOccurred())

		set.Mem[1].PrevStep = 7
		Expect(set.VerifyMemChain()).NotTo(Succeed())
	})
})

var _ = Describe("Segment", func() {
	It("should reserve capacity without losing rows", func() {
		seg := trace.NewSegment(0)
		seg.Presize(10, 2, 3, 4)

		Expect(seg.Main).To(BeEmpty())
		Expect(cap(seg.Main)).To(BeNumerically(">=", 10))
		Expect(cap(seg.Mem)).To(BeNumerically(">=", 4))
	})
})
