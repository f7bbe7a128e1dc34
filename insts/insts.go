// Package insts defines the machine's operation set and instruction records.
//
// An instruction record is pure data: two operand-source selectors, an
// operation code, a store selector, and jump/halt flags. Together they fully
// determine the behavior of one step. Semantics live with the execution
// units; this package only classifies and validates.
package insts

// Op is an operation code.
type Op uint8

// Operation codes, grouped by the unit that computes them.
const (
	OpInvalid Op = iota

	// Internal operations, computed by the main interpreter.
	OpFlag   // c = 0, flag = 1
	OpCopyB  // c = b
	OpPubOut // publish b at output index a; c = b

	// Binary operations.
	OpAdd
	OpSub
	OpLtu
	OpLt
	OpLeu
	OpLe
	OpEq
	OpMinu
	OpMin
	OpMaxu
	OpMax
	OpAnd
	OpOr
	OpXor
	OpSll
	OpSrl
	OpSra
	OpSignExt8
	OpSignExt16
	OpSignExt32

	// Arithmetic (wide multiply / divide) operations.
	OpMul
	OpMulh
	OpMulhu
	OpMulhsu
	OpDiv
	OpDivu
	OpRem
	OpRemu

	numOps
)

// Class identifies which unit computes an operation.
type Class uint8

// Operation classes.
const (
	ClassInvalid  Class = iota
	ClassInternal       // computed in place by the main interpreter
	ClassBinary         // delegated to the binary unit
	ClassArith          // delegated to the arithmetic unit
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassInternal:
		return "internal"
	case ClassBinary:
		return "binary"
	case ClassArith:
		return "arith"
	default:
		return "invalid"
	}
}

// opInfo describes one operation code.
type opInfo struct {
	name  string
	class Class
}

var opTable = [numOps]opInfo{
	OpInvalid:   {"invalid", ClassInvalid},
	OpFlag:      {"flag", ClassInternal},
	OpCopyB:     {"copyb", ClassInternal},
	OpPubOut:    {"pubout", ClassInternal},
	OpAdd:       {"add", ClassBinary},
	OpSub:       {"sub", ClassBinary},
	OpLtu:       {"ltu", ClassBinary},
	OpLt:        {"lt", ClassBinary},
	OpLeu:       {"leu", ClassBinary},
	OpLe:        {"le", ClassBinary},
	OpEq:        {"eq", ClassBinary},
	OpMinu:      {"minu", ClassBinary},
	OpMin:       {"min", ClassBinary},
	OpMaxu:      {"maxu", ClassBinary},
	OpMax:       {"max", ClassBinary},
	OpAnd:       {"and", ClassBinary},
	OpOr:        {"or", ClassBinary},
	OpXor:       {"xor", ClassBinary},
	OpSll:       {"sll", ClassBinary},
	OpSrl:       {"srl", ClassBinary},
	OpSra:       {"sra", ClassBinary},
	OpSignExt8:  {"se8", ClassBinary},
	OpSignExt16: {"se16", ClassBinary},
	OpSignExt32: {"se32", ClassBinary},
	OpMul:       {"mul", ClassArith},
	OpMulh:      {"mulh", ClassArith},
	OpMulhu:     {"mulhu", ClassArith},
	OpMulhsu:    {"mulhsu", ClassArith},
	OpDiv:       {"div", ClassArith},
	OpDivu:      {"divu", ClassArith},
	OpRem:       {"rem", ClassArith},
	OpRemu:      {"remu", ClassArith},
}

// Valid reports whether op is a known operation code.
func (op Op) Valid() bool {
	return op > OpInvalid && op < numOps
}

// Class returns the operation's class.
func (op Op) Class() Class {
	if !op.Valid() {
		return ClassInvalid
	}
	return opTable[op].class
}

// External reports whether the operation is delegated to a secondary unit.
func (op Op) External() bool {
	c := op.Class()
	return c == ClassBinary || c == ClassArith
}

// String returns the operation mnemonic.
func (op Op) String() string {
	if !op.Valid() {
		return "invalid"
	}
	return opTable[op].name
}

// NumOps is the number of defined operation codes, including OpInvalid.
// Histogram consumers index by Op below this bound.
const NumOps = int(numOps)
