// Package bus provides the ordered request/response channel between the
// main interpreter and the secondary units. It is a pure ordering and
// addressing mechanism: entries are queued per unit class in submission
// order and drained in batches, and the bus never inspects operand
// semantics.
package bus

import "github.com/sarchlab/zemu/insts"

// Class identifies the secondary unit a bus entry is addressed to.
type Class uint8

// Unit classes.
const (
	ClassArith Class = iota
	ClassBinary
	ClassMemory
	ClassRom

	NumClasses
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassArith:
		return "arith"
	case ClassBinary:
		return "binary"
	case ClassMemory:
		return "memory"
	case ClassRom:
		return "rom"
	default:
		return "unknown"
	}
}

// ClassFor maps a delegated operation code to its unit class.
// Internal operations have no class.
func ClassFor(op insts.Op) (Class, bool) {
	switch op.Class() {
	case insts.ClassArith:
		return ClassArith, true
	case insts.ClassBinary:
		return ClassBinary, true
	default:
		return 0, false
	}
}

// AccessKind distinguishes memory reads from writes.
type AccessKind uint8

// Memory access kinds.
const (
	AccessRead AccessKind = iota
	AccessWrite
)

// String returns the access kind name.
func (k AccessKind) String() string {
	if k == AccessWrite {
		return "write"
	}
	return "read"
}

// Entry is one request on the bus. The issuing step fills the request
// fields; the addressed unit fills C and Flag and marks the entry done.
type Entry struct {
	Class Class
	Op    insts.Op
	Step  uint64 // issuing instruction step
	PC    uint64

	// Operand values for arith/binary requests.
	A uint64
	B uint64

	// Access description for memory requests.
	Addr  uint64
	Width uint8
	Kind  AccessKind
	Value uint64 // store value for writes

	// Fetched record for rom requests.
	Inst *insts.Instruction

	// Response.
	C    uint64
	Flag bool
	Done bool
}

// Bus queues entries per class. Intra-class order is submission order;
// cross-class order is unspecified and must not be relied on. A Bus is
// segment-scoped and not safe for concurrent use.
type Bus struct {
	queues [NumClasses][]*Entry
	counts [NumClasses]uint64
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// Submit enqueues an entry for its class and bumps the class counter.
func (b *Bus) Submit(e *Entry) {
	b.queues[e.Class] = append(b.queues[e.Class], e)
	b.counts[e.Class]++
}

// Drain returns the pending entries of one class, in submission order, and
// clears the queue. The addressed unit must answer them in that order.
func (b *Bus) Drain(c Class) []*Entry {
	pending := b.queues[c]
	b.queues[c] = nil
	return pending
}

// Pending returns the number of undrained entries of a class.
func (b *Bus) Pending(c Class) int {
	return len(b.queues[c])
}

// Count returns the number of entries ever submitted for a class.
// Draining does not reset it.
func (b *Bus) Count(c Class) uint64 {
	return b.counts[c]
}

// Counts returns all class counters.
func (b *Bus) Counts() [NumClasses]uint64 {
	return b.counts
}
