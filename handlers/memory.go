package handlers

import (
	"encoding/binary"
	"errors"

	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/trace"
)

// errWindowExhausted guards the per-step id window. Instruction validation
// makes it unreachable for well-formed programs.
var errWindowExhausted = errors.New("memory-step window exhausted for this step")

// MemCounts tallies the memory unit's work in one segment.
type MemCounts struct {
	Rows      uint64 // emitted access records (sub-accesses)
	Reads     uint64
	Writes    uint64
	Unaligned uint64 // requests that needed splitting
}

// Memory resolves every load and store against the segment's memory view.
// Unaligned requests are split into two aligned sub-accesses; every
// sub-access gets one access record and one memory-step id from the
// issuing step's reserved window.
//
// Reads are answered from the input window or RAM; writes only land in
// RAM. Anything else is a fault, as is an unaligned request when strict
// alignment is on.
type Memory struct {
	seg         *trace.Segment
	view        *core.MemView
	record      bool
	strictAlign bool
	counts      MemCounts

	// Memory-step slot cursor within the current instruction step.
	curStep uint64
	slot    uint64
	started bool
}

// NewMemory returns a detached memory unit. With strictAlign set, unaligned
// requests fault instead of splitting.
func NewMemory(strictAlign bool) *Memory {
	return &Memory{strictAlign: strictAlign}
}

// Class implements Unit.
func (m *Memory) Class() bus.Class {
	return bus.ClassMemory
}

// Attach points the unit at a segment trace and memory view and resets its
// counters and slot cursor.
func (m *Memory) Attach(seg *trace.Segment, view *core.MemView, record bool) {
	m.seg = seg
	m.view = view
	m.record = record
	m.counts = MemCounts{}
	m.started = false
	m.slot = 0
}

// Counts returns the tallies of the current segment.
func (m *Memory) Counts() MemCounts {
	return m.counts
}

// Process implements Unit. Entries must arrive in chronological order; the
// memory-step ids assigned here depend on it.
func (m *Memory) Process(entries []*bus.Entry) error {
	for _, e := range entries {
		if err := m.access(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) access(e *bus.Entry) error {
	aligned := e.Addr%uint64(e.Width) == 0

	if !aligned && m.strictAlign {
		return m.fault(e, core.ErrMisaligned)
	}

	if !m.started || e.Step != m.curStep {
		m.curStep = e.Step
		m.slot = 0
		m.started = true
	}

	if aligned {
		if err := m.reserve(e, 1); err != nil {
			return err
		}
		if err := m.checkRange(e, e.Addr); err != nil {
			return err
		}
		m.single(e)
		return nil
	}

	// Split at the preceding width boundary. Two aligned sub-accesses
	// always cover the request: a width-w access can straddle at most
	// one w boundary.
	lo := e.Addr - e.Addr%uint64(e.Width)
	hi := lo + uint64(e.Width)
	if err := m.reserve(e, 2); err != nil {
		return err
	}
	if err := m.checkRange(e, lo); err != nil {
		return err
	}
	if err := m.checkRange(e, hi); err != nil {
		return err
	}
	m.counts.Unaligned++
	m.split(e, lo, hi)
	return nil
}

// reserve checks that n more ids fit in the step's window.
func (m *Memory) reserve(e *bus.Entry, n uint64) error {
	if m.slot+n > core.MemStepsPerStep {
		return m.fault(e, errWindowExhausted)
	}
	return nil
}

// checkRange validates one aligned sub-access at addr.
func (m *Memory) checkRange(e *bus.Entry, addr uint64) error {
	switch e.Kind {
	case bus.AccessRead:
		if core.InInput(addr, e.Width) || core.InRAM(addr, e.Width) {
			return nil
		}
		return m.fault(e, core.ErrOutOfRange)
	default:
		if core.InRAM(addr, e.Width) {
			return nil
		}
		if core.InInput(addr, e.Width) {
			return m.fault(e, core.ErrWriteProtected)
		}
		return m.fault(e, core.ErrOutOfRange)
	}
}

// single performs an aligned access.
func (m *Memory) single(e *bus.Entry) {
	var value uint64
	if e.Kind == bus.AccessRead {
		value = m.view.Read(e.Addr, e.Width)
		e.C = value
	} else {
		value = truncate(e.Value, e.Width)
		m.view.Write(e.Addr, e.Width, value)
		e.C = value
	}
	e.Done = true
	m.emit(e, e.Addr, value, true)
}

// split performs an unaligned access as two aligned ones at lo and hi.
func (m *Memory) split(e *bus.Entry, lo, hi uint64) {
	w := int(e.Width)
	off := int(e.Addr - lo)

	// Stage both aligned words in a byte window, operate on the
	// unaligned span, and read the aligned halves back out.
	var buf [16]byte
	putWord(buf[0:], m.view.Read(lo, e.Width), w)
	putWord(buf[w:], m.view.Read(hi, e.Width), w)

	var value, vlo, vhi uint64
	if e.Kind == bus.AccessRead {
		value = getWord(buf[off:], w)
		vlo = getWord(buf[0:], w)
		vhi = getWord(buf[w:], w)
		e.C = value
	} else {
		value = truncate(e.Value, e.Width)
		putWord(buf[off:], value, w)
		vlo = getWord(buf[0:], w)
		vhi = getWord(buf[w:], w)
		m.view.Write(lo, e.Width, vlo)
		m.view.Write(hi, e.Width, vhi)
		e.C = value
	}
	e.Done = true
	m.emit(e, lo, vlo, false)
	m.emit(e, hi, vhi, false)
}

// emit assigns the next memory-step id and appends one access record.
func (m *Memory) emit(e *bus.Entry, addr, value uint64, aligned bool) {
	id := core.MemStepsPerStep*e.Step + 1 + m.slot
	m.slot++

	m.counts.Rows++
	if e.Kind == bus.AccessRead {
		m.counts.Reads++
	} else {
		m.counts.Writes++
	}

	if m.record {
		m.seg.Mem = append(m.seg.Mem, trace.MemRow{
			Step:    e.Step,
			MemStep: id,
			Addr:    addr,
			Width:   e.Width,
			Kind:    e.Kind,
			Value:   value,
			Aligned: aligned,
		})
	}
}

func (m *Memory) fault(e *bus.Entry, cause error) error {
	f := core.NewFault(core.FaultHandler, e.Step, e.PC, cause)
	f.Addr = e.Addr
	f.Op = e.Op
	return f
}

func truncate(v uint64, width uint8) uint64 {
	if width >= 8 {
		return v
	}
	return v & (1<<(8*uint(width)) - 1)
}

func putWord(b []byte, v uint64, w int) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	copy(b[:w], tmp[:w])
}

func getWord(b []byte, w int) uint64 {
	var tmp [8]byte
	copy(tmp[:w], b[:w])
	return binary.LittleEndian.Uint64(tmp[:])
}
