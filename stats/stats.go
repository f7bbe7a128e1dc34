// Package stats derives a post-run cost report from an expanded trace set:
// per-area row counts and costs, an executed-operation histogram, and a
// memory-locality estimate.
package stats

import (
	"fmt"
	"io"
	"sort"

	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/trace"
)

// CostModel weighs each witness area in abstract area units per row. The
// weights approximate the relative constraint cost of the components; the
// report is an estimate, not an exact proving budget.
type CostModel struct {
	MainStep  float64
	ArithRow  float64
	BinaryRow float64
	MemRow    float64
	// MemSplit is the surcharge per row produced by an unaligned split.
	MemSplit float64
	TableRow float64
}

// DefaultCostModel returns the built-in area weights.
func DefaultCostModel() CostModel {
	return CostModel{
		MainStep:  50,
		ArithRow:  95,
		BinaryRow: 75,
		MemRow:    10,
		MemSplit:  10,
		TableRow:  1,
	}
}

// Area is the cost contribution of one witness component.
type Area struct {
	Name string
	Rows uint64
	Cost float64
}

// OpCount is one histogram bucket.
type OpCount struct {
	Op    insts.Op
	Count uint64
}

// Report is the cost breakdown of one expanded run.
type Report struct {
	Steps uint64

	// Areas lists component costs in main, arith, binary, memory, rom
	// order; Total is their sum.
	Areas []Area
	Total float64

	// Ops is the executed-operation histogram, most frequent first.
	Ops []OpCount

	Locality Locality
}

// FromSet builds the report for set with the default cost model and
// locality directory.
func FromSet(set *trace.Set) *Report {
	return FromSetWith(set, DefaultCostModel(), DefaultLocalityConfig())
}

// FromSetWith builds the report with explicit area weights and directory
// geometry.
func FromSetWith(set *trace.Set, model CostModel, loc LocalityConfig) *Report {
	r := &Report{Steps: set.Steps}

	var split uint64
	for i := range set.Mem {
		if !set.Mem[i].Aligned {
			split++
		}
	}

	r.Areas = []Area{
		{Name: "main", Rows: set.Steps,
			Cost: float64(set.Steps) * model.MainStep},
		{Name: "arith", Rows: uint64(len(set.Arith)),
			Cost: float64(len(set.Arith)) * model.ArithRow},
		{Name: "binary", Rows: uint64(len(set.Binary)),
			Cost: float64(len(set.Binary)) * model.BinaryRow},
		{Name: "memory", Rows: uint64(len(set.Mem)),
			Cost: float64(len(set.Mem))*model.MemRow + float64(split)*model.MemSplit},
		{Name: "rom", Rows: uint64(len(set.Rom)),
			Cost: float64(len(set.Rom)) * model.TableRow},
	}
	for _, a := range r.Areas {
		r.Total += a.Cost
	}

	hist := make([]uint64, insts.NumOps)
	for i := range set.Main {
		if op := set.Main[i].Op; int(op) < len(hist) {
			hist[op]++
		}
	}
	for op, n := range hist {
		if n > 0 {
			r.Ops = append(r.Ops, OpCount{Op: insts.Op(op), Count: n})
		}
	}
	sort.Slice(r.Ops, func(i, j int) bool {
		if r.Ops[i].Count != r.Ops[j].Count {
			return r.Ops[i].Count > r.Ops[j].Count
		}
		return r.Ops[i].Op < r.Ops[j].Op
	})

	r.Locality = EstimateLocality(set.Mem, loc)
	return r
}

// Render writes the report as aligned text.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "steps: %d\n\n", r.Steps)

	fmt.Fprintf(w, "%-8s %10s %14s\n", "area", "rows", "cost")
	for _, a := range r.Areas {
		fmt.Fprintf(w, "%-8s %10d %14.1f\n", a.Name, a.Rows, a.Cost)
	}
	fmt.Fprintf(w, "%-8s %10s %14.1f\n\n", "total", "", r.Total)

	fmt.Fprintf(w, "%-8s %10s %8s\n", "op", "count", "class")
	for _, oc := range r.Ops {
		fmt.Fprintf(w, "%-8s %10d %8s\n", oc.Op, oc.Count, oc.Op.Class())
	}

	fmt.Fprintf(w, "\nmemory locality: %d accesses, %d hits (%.1f%%), %d misses, %d evictions\n",
		r.Locality.Accesses, r.Locality.Hits, 100*r.Locality.HitRate(),
		r.Locality.Misses, r.Locality.Evictions)
}
