package handlers_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/handlers"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/trace"
)

var _ = Describe("Arith", func() {
	var (
		unit *handlers.Arith
		seg  *trace.Segment
	)

	BeforeEach(func() {
		unit = handlers.NewArith()
		seg = trace.NewSegment(0)
		unit.Attach(seg, true)
	})

	run := func(op insts.Op, a, b uint64) *bus.Entry {
		e := &bus.Entry{Class: bus.ClassArith, Op: op, A: a, B: b, Step: 3}
		Expect(unit.Process([]*bus.Entry{e})).To(Succeed())
		Expect(e.Done).To(BeTrue())
		return e
	}

	It("should multiply with a full-width product", func() {
		e := run(insts.OpMul, 1<<40, 1<<30)
		Expect(e.C).To(Equal(uint64(1) << 6)) // low 64 bits of 2^70

		row := seg.Arith[0]
		Expect(row.Lo).To(Equal(uint64(1) << 6))
		Expect(row.Hi).To(Equal(uint64(1) << 6)) // high 64 bits of 2^70
		Expect(row.Step).To(Equal(uint64(3)))
	})

	It("should compute the unsigned high half", func() {
		e := run(insts.OpMulhu, math.MaxUint64, math.MaxUint64)
		Expect(e.C).To(Equal(uint64(math.MaxUint64 - 1)))
	})

	It("should compute the signed high half", func() {
		// -1 * -1 = 1, high half 0.
		e := run(insts.OpMulh, ^uint64(0), ^uint64(0))
		Expect(e.C).To(BeZero())

		// -2 * 3 = -6, high half is the sign extension.
		e = run(insts.OpMulh, uint64(int64(-2)), 3)
		Expect(e.C).To(Equal(^uint64(0)))
	})

	It("should compute the signed-by-unsigned high half", func() {
		// -1 * 2 = -2: high half all ones.
		e := run(insts.OpMulhsu, ^uint64(0), 2)
		Expect(e.C).To(Equal(^uint64(0)))
	})

	It("should divide and leave the identity witness", func() {
		e := run(insts.OpDivu, 100, 7)
		Expect(e.C).To(Equal(uint64(14)))

		row := seg.Arith[0]
		Expect(row.Quot).To(Equal(uint64(14)))
		Expect(row.Rem).To(Equal(uint64(2)))
	})

	It("should follow the divide-by-zero conventions", func() {
		Expect(run(insts.OpDivu, 42, 0).C).To(Equal(uint64(math.MaxUint64)))
		Expect(run(insts.OpRemu, 42, 0).C).To(Equal(uint64(42)))
		Expect(run(insts.OpDiv, uint64(int64(-42)), 0).C).To(Equal(^uint64(0)))
		Expect(run(insts.OpRem, uint64(int64(-42)), 0).C).To(Equal(uint64(int64(-42))))
	})

	It("should wrap the signed overflow case", func() {
		minInt := uint64(1) << 63
		negOne := ^uint64(0)
		Expect(run(insts.OpDiv, minInt, negOne).C).To(Equal(minInt))
		Expect(run(insts.OpRem, minInt, negOne).C).To(BeZero())
	})

	It("should divide signed operands", func() {
		Expect(run(insts.OpDiv, uint64(int64(-7)), 2).C).To(Equal(uint64(int64(-3))))
		Expect(run(insts.OpRem, uint64(int64(-7)), 2).C).To(Equal(uint64(int64(-1))))
	})

	It("should tally per-operation counts", func() {
		run(insts.OpMul, 2, 3)
		run(insts.OpMul, 4, 5)
		run(insts.OpDivu, 10, 2)

		counts := unit.Counts()
		Expect(counts[insts.OpMul]).To(Equal(uint64(2)))
		Expect(counts[insts.OpDivu]).To(Equal(uint64(1)))
		Expect(counts.Total()).To(Equal(uint64(3)))
	})

	It("should not append rows when counting only", func() {
		unit.Attach(seg, false)
		run(insts.OpMul, 2, 3)
		Expect(seg.Arith).To(BeEmpty())
		Expect(unit.Counts()[insts.OpMul]).To(Equal(uint64(1)))
	})

	It("should fault on an operation outside its set", func() {
		e := &bus.Entry{Class: bus.ClassArith, Op: insts.OpAdd, Step: 9, PC: 0x8000_0008}
		err := unit.Process([]*bus.Entry{e})
		Expect(err).To(HaveOccurred())

		f, ok := core.AsFault(err)
		Expect(ok).To(BeTrue())
		Expect(f.Kind).To(Equal(core.FaultHandler))
		Expect(f.Step).To(Equal(uint64(9)))
		Expect(f.Op).To(Equal(insts.OpAdd))
	})
})
