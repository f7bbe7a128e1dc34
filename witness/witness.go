// Package witness lowers an aggregated trace set into Goldilocks
// field-element columns. A 64-bit machine value does not embed in the
// field, so every u64 source column is carried as a lo/hi pair of 32-bit
// limbs; flags, bytes and other sub-32-bit values take a single column.
package witness

import (
	"fmt"

	"github.com/consensys/gnark-crypto/field/goldilocks"

	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/trace"
)

const loMask = (1 << 32) - 1

// Limbs splits v into its 32-bit limb encoding. Both limbs are below the
// field modulus, so the encoding is exact.
func Limbs(v uint64) (lo, hi goldilocks.Element) {
	lo.SetUint64(v & loMask)
	hi.SetUint64(v >> 32)
	return lo, hi
}

// Join recovers the 64-bit value from its limb encoding.
func Join(lo, hi goldilocks.Element) uint64 {
	return hi.Uint64()<<32 | lo.Uint64()
}

// Column is one named witness column.
type Column struct {
	Name   string
	Values []goldilocks.Element
}

// Group holds the columns of one trace component. Every column in a group
// has exactly Rows entries, one per component row.
type Group struct {
	Name string
	Rows int
	Cols []Column
}

// Col returns the named column, nil when the group has no such column.
func (g *Group) Col(name string) *Column {
	for i := range g.Cols {
		if g.Cols[i].Name == name {
			return &g.Cols[i]
		}
	}
	return nil
}

// limbs appends the lo/hi column pair for one 64-bit source column.
func (g *Group) limbs(name string, get func(int) uint64) {
	lo := make([]goldilocks.Element, g.Rows)
	hi := make([]goldilocks.Element, g.Rows)
	for i := range lo {
		v := get(i)
		lo[i].SetUint64(v & loMask)
		hi[i].SetUint64(v >> 32)
	}
	g.Cols = append(g.Cols,
		Column{Name: name + "_lo", Values: lo},
		Column{Name: name + "_hi", Values: hi})
}

// scalar appends a single column for a source value already below 2^32.
func (g *Group) scalar(name string, get func(int) uint64) {
	vals := make([]goldilocks.Element, g.Rows)
	for i := range vals {
		vals[i].SetUint64(get(i))
	}
	g.Cols = append(g.Cols, Column{Name: name, Values: vals})
}

// Columns is the full witness layout, one group per trace component in
// main, arith, binary, memory, rom order.
type Columns struct {
	Main   Group
	Arith  Group
	Binary Group
	Mem    Group
	Rom    Group
}

// Groups returns the component groups in layout order.
func (c *Columns) Groups() []*Group {
	return []*Group{&c.Main, &c.Arith, &c.Binary, &c.Mem, &c.Rom}
}

// Validate checks that every column carries exactly its group's row count.
func (c *Columns) Validate() error {
	for _, g := range c.Groups() {
		for _, col := range g.Cols {
			if len(col.Values) != g.Rows {
				return fmt.Errorf("column %s/%s has %d values, group has %d rows",
					g.Name, col.Name, len(col.Values), g.Rows)
			}
		}
	}
	return nil
}

// FromTrace lowers an aggregated trace set into its witness columns.
func FromTrace(set *trace.Set) *Columns {
	return &Columns{
		Main:   mainGroup(set.Main),
		Arith:  arithGroup(set.Arith),
		Binary: binaryGroup(set.Binary),
		Mem:    memGroup(set.Mem),
		Rom:    romGroup(set.Rom),
	}
}

func mainGroup(rows []trace.MainRow) Group {
	g := Group{Name: "main", Rows: len(rows)}
	g.limbs("step", func(i int) uint64 { return rows[i].Step })
	g.limbs("pc", func(i int) uint64 { return rows[i].PC })
	g.scalar("op", func(i int) uint64 { return uint64(rows[i].Op) })
	g.scalar("class", func(i int) uint64 { return uint64(rows[i].Class) })
	g.limbs("a", func(i int) uint64 { return rows[i].A })
	g.limbs("b", func(i int) uint64 { return rows[i].B })
	g.limbs("c", func(i int) uint64 { return rows[i].C })
	g.scalar("flag", func(i int) uint64 { return bit(rows[i].Flag) })
	g.limbs("next_pc", func(i int) uint64 { return rows[i].NextPC })
	g.limbs("mem_step_before", func(i int) uint64 { return rows[i].MemStepBefore })
	g.limbs("mem_step_after", func(i int) uint64 { return rows[i].MemStepAfter })
	return g
}

func arithGroup(rows []trace.ArithRow) Group {
	g := Group{Name: "arith", Rows: len(rows)}
	g.limbs("step", func(i int) uint64 { return rows[i].Step })
	g.scalar("op", func(i int) uint64 { return uint64(rows[i].Op) })
	g.limbs("a", func(i int) uint64 { return rows[i].A })
	g.limbs("b", func(i int) uint64 { return rows[i].B })
	g.limbs("c", func(i int) uint64 { return rows[i].C })
	g.limbs("prod_lo", func(i int) uint64 { return rows[i].Lo })
	g.limbs("prod_hi", func(i int) uint64 { return rows[i].Hi })
	g.limbs("quot", func(i int) uint64 { return rows[i].Quot })
	g.limbs("rem", func(i int) uint64 { return rows[i].Rem })
	return g
}

func binaryGroup(rows []trace.BinaryRow) Group {
	g := Group{Name: "binary", Rows: len(rows)}
	g.limbs("step", func(i int) uint64 { return rows[i].Step })
	g.scalar("op", func(i int) uint64 { return uint64(rows[i].Op) })
	g.limbs("a", func(i int) uint64 { return rows[i].A })
	g.limbs("b", func(i int) uint64 { return rows[i].B })
	g.limbs("c", func(i int) uint64 { return rows[i].C })
	g.scalar("flag", func(i int) uint64 { return bit(rows[i].Flag) })
	for b := 0; b < 8; b++ {
		g.scalar(fmt.Sprintf("a_byte_%d", b), func(i int) uint64 { return uint64(rows[i].ABytes[b]) })
	}
	for b := 0; b < 8; b++ {
		g.scalar(fmt.Sprintf("b_byte_%d", b), func(i int) uint64 { return uint64(rows[i].BBytes[b]) })
	}
	for b := 0; b < 8; b++ {
		g.scalar(fmt.Sprintf("c_byte_%d", b), func(i int) uint64 { return uint64(rows[i].CBytes[b]) })
	}
	for b := 0; b < 8; b++ {
		g.scalar(fmt.Sprintf("carry_%d", b), func(i int) uint64 { return uint64(rows[i].Carry[b]) })
	}
	g.scalar("shift_amt", func(i int) uint64 { return uint64(rows[i].ShiftAmt) })
	return g
}

func memGroup(rows []trace.MemRow) Group {
	g := Group{Name: "memory", Rows: len(rows)}
	g.limbs("step", func(i int) uint64 { return rows[i].Step })
	g.limbs("mem_step", func(i int) uint64 { return rows[i].MemStep })
	g.limbs("addr", func(i int) uint64 { return rows[i].Addr })
	g.scalar("width", func(i int) uint64 { return uint64(rows[i].Width) })
	g.scalar("wr", func(i int) uint64 { return bit(rows[i].Kind == bus.AccessWrite) })
	g.limbs("value", func(i int) uint64 { return rows[i].Value })
	g.scalar("aligned", func(i int) uint64 { return bit(rows[i].Aligned) })
	g.limbs("prev_step", func(i int) uint64 { return rows[i].PrevStep })
	return g
}

func romGroup(rows []trace.RomRow) Group {
	g := Group{Name: "rom", Rows: len(rows)}
	g.limbs("addr", func(i int) uint64 { return rows[i].Addr })
	g.scalar("op", func(i int) uint64 { return uint64(rows[i].Op) })
	g.limbs("multiplicity", func(i int) uint64 { return rows[i].Multiplicity })
	return g
}

func bit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
