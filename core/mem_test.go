package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zemu/core"
)

var _ = Describe("MemView", func() {
	var m *core.MemView

	BeforeEach(func() {
		m = core.NewMemView()
	})

	It("should read unmapped memory as zero", func() {
		Expect(m.Read(core.RAMStart, 8)).To(BeZero())
		Expect(m.Read(core.RAMStart+5, 1)).To(BeZero())
	})

	It("should round-trip words of every width", func() {
		base := core.RAMStart
		m.Write(base, 8, 0x1122334455667788)
		Expect(m.Read(base, 8)).To(Equal(uint64(0x1122334455667788)))
		Expect(m.Read(base, 4)).To(Equal(uint64(0x55667788)))
		Expect(m.Read(base, 2)).To(Equal(uint64(0x7788)))
		Expect(m.Read(base, 1)).To(Equal(uint64(0x88)))

		m.Write(base+16, 2, 0xffff_abcd)
		Expect(m.Read(base+16, 2)).To(Equal(uint64(0xabcd)))
		Expect(m.Read(base+16, 8)).To(Equal(uint64(0xabcd)))
	})

	It("should store little-endian", func() {
		base := core.RAMStart
		m.Write(base, 4, 0xdeadbeef)
		Expect(m.Read(base, 1)).To(Equal(uint64(0xef)))
		Expect(m.Read(base+1, 1)).To(Equal(uint64(0xbe)))
		Expect(m.Read(base+2, 1)).To(Equal(uint64(0xad)))
		Expect(m.Read(base+3, 1)).To(Equal(uint64(0xde)))
	})

	It("should handle accesses crossing a page boundary", func() {
		addr := core.RAMStart + core.PageSize - 3
		m.Write(addr, 8, 0x0102030405060708)
		Expect(m.Read(addr, 8)).To(Equal(uint64(0x0102030405060708)))
		Expect(m.Read(addr+4, 1)).To(Equal(uint64(0x04)))
	})

	It("should copy byte slices across pages", func() {
		payload := make([]byte, 3*core.PageSize)
		for i := range payload {
			payload[i] = byte(i * 7)
		}
		m.WriteBytes(core.InputStart+100, payload)
		Expect(m.ReadBytes(core.InputStart+100, len(payload))).To(Equal(payload))
	})

	Describe("Clone", func() {
		It("should share pages until either side writes", func() {
			m.Write(core.RAMStart, 8, 42)
			before := m.Pages()

			c := m.Clone()
			Expect(c.Pages()).To(Equal(before))
			Expect(c.Read(core.RAMStart, 8)).To(Equal(uint64(42)))
		})

		It("should isolate writes after cloning", func() {
			m.Write(core.RAMStart, 8, 42)
			c := m.Clone()

			m.Write(core.RAMStart, 8, 99)
			c.Write(core.RAMStart+8, 8, 7)

			Expect(m.Read(core.RAMStart, 8)).To(Equal(uint64(99)))
			Expect(c.Read(core.RAMStart, 8)).To(Equal(uint64(42)))
			Expect(m.Read(core.RAMStart+8, 8)).To(BeZero())
			Expect(c.Read(core.RAMStart+8, 8)).To(Equal(uint64(7)))
		})

		It("should isolate chains of clones", func() {
			m.Write(core.RAMStart, 8, 1)
			c1 := m.Clone()
			c1.Write(core.RAMStart, 8, 2)
			c2 := c1.Clone()
			c2.Write(core.RAMStart, 8, 3)

			Expect(m.Read(core.RAMStart, 8)).To(Equal(uint64(1)))
			Expect(c1.Read(core.RAMStart, 8)).To(Equal(uint64(2)))
			Expect(c2.Read(core.RAMStart, 8)).To(Equal(uint64(3)))
		})
	})

	Describe("Equal", func() {
		It("should treat zero pages as equal to unmapped ones", func() {
			a := core.NewMemView()
			b := core.NewMemView()
			a.Write(core.RAMStart, 8, 0)
			Expect(a.Equal(b)).To(BeTrue())
			Expect(b.Equal(a)).To(BeTrue())
		})

		It("should detect differing bytes", func() {
			a := core.NewMemView()
			b := core.NewMemView()
			a.Write(core.RAMStart, 1, 5)
			Expect(a.Equal(b)).To(BeFalse())
		})
	})

	Describe("address windows", func() {
		It("should bound the input window", func() {
			Expect(core.InInput(core.InputStart, 8)).To(BeTrue())
			Expect(core.InInput(core.InputEnd-8, 8)).To(BeTrue())
			Expect(core.InInput(core.InputEnd-4, 8)).To(BeFalse())
			Expect(core.InInput(core.RAMStart, 8)).To(BeFalse())
		})

		It("should bound the RAM window", func() {
			Expect(core.InRAM(core.RAMStart, 1)).To(BeTrue())
			Expect(core.InRAM(core.RAMEnd-1, 1)).To(BeTrue())
			Expect(core.InRAM(core.RAMEnd-1, 2)).To(BeFalse())
			Expect(core.InRAM(core.InputStart, 1)).To(BeFalse())
		})
	})
})
