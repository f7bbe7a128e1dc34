package insts

import "fmt"

// SourceKind selects how an operand value is produced.
type SourceKind uint8

// Operand source kinds.
const (
	SrcReg SourceKind = iota // read register Reg
	SrcImm                   // use immediate Imm
	SrcMem                   // load Width bytes at absolute address Addr
	SrcInd                   // load Width bytes at resolved A + Offset (operand B only)
)

// String returns the source kind name.
func (k SourceKind) String() string {
	switch k {
	case SrcReg:
		return "reg"
	case SrcImm:
		return "imm"
	case SrcMem:
		return "mem"
	case SrcInd:
		return "ind"
	default:
		return "unknown"
	}
}

// Operand is an operand-source selector. Which fields are meaningful
// depends on Kind.
type Operand struct {
	Kind   SourceKind
	Reg    uint8  // register index for SrcReg
	Imm    uint64 // immediate value for SrcImm
	Addr   uint64 // absolute address for SrcMem
	Offset int64  // displacement from resolved A for SrcInd
	Width  uint8  // access width in bytes for SrcMem/SrcInd (1, 2, 4, 8)
}

// RegOperand selects register reg.
func RegOperand(reg uint8) Operand {
	return Operand{Kind: SrcReg, Reg: reg}
}

// ImmOperand selects the immediate value v.
func ImmOperand(v uint64) Operand {
	return Operand{Kind: SrcImm, Imm: v}
}

// MemOperand selects a double-word load at the absolute address addr.
// Absolute addresses must be 8-aligned; only indirection operands may
// resolve to unaligned addresses at run time.
func MemOperand(addr uint64) Operand {
	return Operand{Kind: SrcMem, Addr: addr, Width: 8}
}

// IndOperand selects a width-byte load at resolved A plus offset.
// Loads narrower than 8 bytes zero-extend; use the sign-extension
// operations for signed loads.
func IndOperand(offset int64, width uint8) Operand {
	return Operand{Kind: SrcInd, Offset: offset, Width: width}
}

// StoreKind selects where the step's result goes.
type StoreKind uint8

// Store kinds.
const (
	StoreNone StoreKind = iota // discard the result
	StoreReg                   // write register Reg
	StoreMem                   // store Width bytes at absolute address Addr
	StoreInd                   // store Width bytes at resolved A + Offset
)

// String returns the store kind name.
func (k StoreKind) String() string {
	switch k {
	case StoreNone:
		return "none"
	case StoreReg:
		return "reg"
	case StoreMem:
		return "mem"
	case StoreInd:
		return "ind"
	default:
		return "unknown"
	}
}

// Store is a result-store selector.
type Store struct {
	Kind   StoreKind
	Reg    uint8  // register index for StoreReg
	Addr   uint64 // absolute address for StoreMem
	Offset int64  // displacement from resolved A for StoreInd
	Width  uint8  // access width in bytes for StoreMem/StoreInd
}

// NoStore discards the result.
func NoStore() Store {
	return Store{Kind: StoreNone}
}

// RegStore writes the result to register reg.
func RegStore(reg uint8) Store {
	return Store{Kind: StoreReg, Reg: reg}
}

// MemStore writes the full result at the absolute address addr.
func MemStore(addr uint64) Store {
	return Store{Kind: StoreMem, Addr: addr, Width: 8}
}

// IndStore writes the low width bytes of the result at resolved A plus offset.
func IndStore(offset int64, width uint8) Store {
	return Store{Kind: StoreInd, Offset: offset, Width: width}
}

// Instruction is one immutable instruction record.
//
// Successor rule: if SetPC, the next pc is c + Jump1; otherwise the next pc
// is pc + Jump1 when the operation raised its flag and pc + Jump2 when it
// did not. With StoreRA set, the stored value is pc + Jump2 (the fall-through
// address) instead of c.
type Instruction struct {
	Addr uint64 // program address of this record
	Op   Op

	A   Operand // operand A selector (SrcInd not allowed)
	B   Operand // operand B selector
	Dst Store   // result destination

	StoreRA bool  // store the return address instead of the result
	SetPC   bool  // jump to c + Jump1 instead of advancing pc
	Jump1   int64 // taken/jump displacement
	Jump2   int64 // fall-through displacement
	End     bool  // executing this record halts the machine
}

// NextPC computes the successor program counter from the operation result.
func (i *Instruction) NextPC(c uint64, flag bool) uint64 {
	if i.SetPC {
		return uint64(int64(c) + i.Jump1)
	}
	if flag {
		return uint64(int64(i.Addr) + i.Jump1)
	}
	return uint64(int64(i.Addr) + i.Jump2)
}

// ReturnAddr is the value stored when StoreRA is set.
func (i *Instruction) ReturnAddr() uint64 {
	return uint64(int64(i.Addr) + i.Jump2)
}

// IndCount counts the indirection selectors used by this record.
func (i *Instruction) IndCount() int {
	n := 0
	if i.B.Kind == SrcInd {
		n++
	}
	if i.Dst.Kind == StoreInd {
		n++
	}
	return n
}

func validWidth(w uint8) bool {
	return w == 1 || w == 2 || w == 4 || w == 8
}

// Validate checks structural well-formedness of the record. It does not
// check that referenced addresses are mapped; that is the memory unit's
// concern at execution time.
func (i *Instruction) Validate() error {
	if !i.Op.Valid() {
		return fmt.Errorf("instruction at 0x%x: unknown op code %d", i.Addr, uint8(i.Op))
	}
	if i.A.Kind == SrcInd {
		return fmt.Errorf("instruction at 0x%x: operand A cannot use indirection", i.Addr)
	}
	if i.A.Kind == SrcReg && i.A.Reg >= NumRegs {
		return fmt.Errorf("instruction at 0x%x: operand A register %d out of range", i.Addr, i.A.Reg)
	}
	if i.B.Kind == SrcReg && i.B.Reg >= NumRegs {
		return fmt.Errorf("instruction at 0x%x: operand B register %d out of range", i.Addr, i.B.Reg)
	}
	if i.Dst.Kind == StoreReg && i.Dst.Reg >= NumRegs {
		return fmt.Errorf("instruction at 0x%x: store register %d out of range", i.Addr, i.Dst.Reg)
	}
	if i.A.Kind == SrcMem && !validWidth(i.A.Width) {
		return fmt.Errorf("instruction at 0x%x: operand A width %d", i.Addr, i.A.Width)
	}
	if (i.B.Kind == SrcMem || i.B.Kind == SrcInd) && !validWidth(i.B.Width) {
		return fmt.Errorf("instruction at 0x%x: operand B width %d", i.Addr, i.B.Width)
	}
	if (i.Dst.Kind == StoreMem || i.Dst.Kind == StoreInd) && !validWidth(i.Dst.Width) {
		return fmt.Errorf("instruction at 0x%x: store width %d", i.Addr, i.Dst.Width)
	}
	// Absolute addresses are fixed at build time and must be 8-aligned.
	// Together with the one-indirection rule below this caps the memory
	// traffic of any step at four sub-accesses, the reserved window.
	if i.A.Kind == SrcMem && i.A.Addr%8 != 0 {
		return fmt.Errorf("instruction at 0x%x: operand A address 0x%x not 8-aligned", i.Addr, i.A.Addr)
	}
	if i.B.Kind == SrcMem && i.B.Addr%8 != 0 {
		return fmt.Errorf("instruction at 0x%x: operand B address 0x%x not 8-aligned", i.Addr, i.B.Addr)
	}
	if i.Dst.Kind == StoreMem && i.Dst.Addr%8 != 0 {
		return fmt.Errorf("instruction at 0x%x: store address 0x%x not 8-aligned", i.Addr, i.Dst.Addr)
	}
	if i.IndCount() > 1 {
		return fmt.Errorf("instruction at 0x%x: at most one indirection selector allowed", i.Addr)
	}
	return nil
}

// NumRegs is the size of the register file. Register 0 is hardwired to zero.
const NumRegs = 32
