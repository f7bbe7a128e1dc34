package stats_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/stats"
	"github.com/sarchlab/zemu/trace"
)

var _ = Describe("Cost report", func() {
	var set *trace.Set

	BeforeEach(func() {
		set = &trace.Set{
			Main: []trace.MainRow{
				{Step: 0, Op: insts.OpAdd},
				{Step: 1, Op: insts.OpMul},
				{Step: 2, Op: insts.OpAdd},
			},
			Arith: []trace.ArithRow{
				{Step: 1, Op: insts.OpMul},
			},
			Binary: []trace.BinaryRow{
				{Step: 0, Op: insts.OpAdd},
				{Step: 2, Op: insts.OpAdd},
			},
			Mem: []trace.MemRow{
				{Step: 0, MemStep: 1, Addr: 0xa000_0000, Kind: bus.AccessWrite, Aligned: true},
				{Step: 2, MemStep: 9, Addr: 0xa000_0008, Kind: bus.AccessRead, Aligned: false},
				{Step: 2, MemStep: 10, Addr: 0xa000_0010, Kind: bus.AccessRead, Aligned: true},
			},
			Rom: []trace.RomRow{
				{Addr: 0x8000_0000, Op: insts.OpAdd, Multiplicity: 2},
				{Addr: 0x8000_0008, Op: insts.OpMul, Multiplicity: 1},
			},
			Steps: 3,
		}
	})

	It("prices every area and sums the total", func() {
		model := stats.CostModel{
			MainStep:  2,
			ArithRow:  3,
			BinaryRow: 5,
			MemRow:    7,
			MemSplit:  11,
			TableRow:  13,
		}
		rep := stats.FromSetWith(set, model, stats.LocalityConfig{})

		var names []string
		var rows []uint64
		for _, a := range rep.Areas {
			names = append(names, a.Name)
			rows = append(rows, a.Rows)
		}
		Expect(names).To(Equal([]string{"main", "arith", "binary", "memory", "rom"}))
		Expect(rows).To(Equal([]uint64{3, 1, 2, 3, 2}))

		// memory carries a split surcharge for the one unaligned row
		Expect(rep.Areas[3].Cost).To(Equal(3*7.0 + 1*11.0))
		Expect(rep.Total).To(Equal(3*2.0 + 1*3.0 + 2*5.0 + (3*7.0 + 11.0) + 2*13.0))
	})

	It("ranks the histogram by frequency", func() {
		rep := stats.FromSet(set)
		Expect(rep.Ops).To(Equal([]stats.OpCount{
			{Op: insts.OpAdd, Count: 2},
			{Op: insts.OpMul, Count: 1},
		}))
	})

	It("replays the memory rows into the locality estimate", func() {
		rep := stats.FromSet(set)
		Expect(rep.Locality.Accesses).To(Equal(uint64(3)))
		Expect(rep.Locality.Writes).To(Equal(uint64(1)))
		Expect(rep.Locality.Reads).To(Equal(uint64(2)))
	})

	It("renders the breakdown as text", func() {
		var buf bytes.Buffer
		stats.FromSet(set).Render(&buf)
		out := buf.String()
		Expect(out).To(ContainSubstring("steps: 3"))
		Expect(out).To(ContainSubstring("main"))
		Expect(out).To(ContainSubstring("add"))
		Expect(out).To(ContainSubstring("memory locality"))
	})
})

var _ = Describe("Locality estimate", func() {
	read := func(addr uint64) trace.MemRow {
		return trace.MemRow{Addr: addr, Kind: bus.AccessRead, Width: 8, Aligned: true}
	}
	write := func(addr uint64) trace.MemRow {
		return trace.MemRow{Addr: addr, Kind: bus.AccessWrite, Width: 8, Aligned: true}
	}

	It("tracks reuse through a tiny two-way set", func() {
		// One set, two ways, 8-byte lines.
		cfg := stats.LocalityConfig{Size: 16, Associativity: 2, BlockSize: 8}
		a, b, c := uint64(0xa000_0000), uint64(0xa000_0008), uint64(0xa000_0010)

		loc := stats.EstimateLocality([]trace.MemRow{
			write(a), // miss, fills way 0
			read(b),  // miss, fills way 1
			read(a),  // hit
			read(c),  // miss, evicts b
			read(b),  // miss, evicts a
			read(a),  // miss, evicts c
		}, cfg)

		Expect(loc.Accesses).To(Equal(uint64(6)))
		Expect(loc.Hits).To(Equal(uint64(1)))
		Expect(loc.Misses).To(Equal(uint64(5)))
		Expect(loc.Evictions).To(Equal(uint64(3)))
		Expect(loc.Writes).To(Equal(uint64(1)))
		Expect(loc.Reads).To(Equal(uint64(5)))
		Expect(loc.HitRate()).To(BeNumerically("~", 1.0/6.0, 1e-9))
	})

	It("treats neighbors in one line as hits", func() {
		loc := stats.EstimateLocality([]trace.MemRow{
			read(0xa000_0000),
			read(0xa000_0008),
			read(0xa000_0038),
		}, stats.DefaultLocalityConfig())

		Expect(loc.Misses).To(Equal(uint64(1)))
		Expect(loc.Hits).To(Equal(uint64(2)))
	})

	It("returns zeros for an empty replay", func() {
		loc := stats.EstimateLocality(nil, stats.DefaultLocalityConfig())
		Expect(loc.Accesses).To(Equal(uint64(0)))
		Expect(loc.HitRate()).To(Equal(0.0))
	})

	It("falls back to the default geometry for a zero config", func() {
		loc := stats.EstimateLocality([]trace.MemRow{
			read(0xa000_0000),
			read(0xa000_0008),
		}, stats.LocalityConfig{})

		Expect(loc.Misses).To(Equal(uint64(1)))
		Expect(loc.Hits).To(Equal(uint64(1)))
	})
})
