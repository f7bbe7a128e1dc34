// Package core holds the mutable machine state: the execution context, the
// copy-on-write memory view, and the structured fault type shared by every
// execution phase.
package core

import "encoding/binary"

// Address-space layout. The instruction store occupies its own address
// range; data lives in a read-only input window and a read-write RAM
// window. The memory unit rejects accesses outside these windows.
const (
	RomEntry   uint64 = 0x8000_0000
	InputStart uint64 = 0x9000_0000
	InputEnd   uint64 = 0x9800_0000
	RAMStart   uint64 = 0xa000_0000
	RAMEnd     uint64 = 0xc000_0000
)

// Page geometry for the sparse memory view.
const (
	PageShift = 12
	PageSize  = 1 << PageShift
	pageMask  = PageSize - 1
)

// MemView is a sparse, copy-on-write view of the machine's byte-addressable
// memory. Unmapped bytes read as zero. Clone is cheap: pages are shared
// until either side writes them, so segment-boundary snapshots cost one map
// copy rather than a memory image.
//
// A view is not safe for concurrent use; clones are independent and may be
// used from different goroutines.
type MemView struct {
	pages map[uint64][]byte
	owned map[uint64]bool
}

// NewMemView returns an empty view.
func NewMemView() *MemView {
	return &MemView{
		pages: make(map[uint64][]byte),
		owned: make(map[uint64]bool),
	}
}

// Clone returns an independent view sharing all current pages. Neither side
// observes the other's subsequent writes.
func (m *MemView) Clone() *MemView {
	c := &MemView{
		pages: make(map[uint64][]byte, len(m.pages)),
		owned: make(map[uint64]bool),
	}
	for idx, data := range m.pages {
		c.pages[idx] = data
	}
	// The parent gives up in-place write rights too; both sides now
	// copy on first write.
	m.owned = make(map[uint64]bool)
	return c
}

// writablePage returns the page containing addr, copying a shared page or
// allocating a missing one.
func (m *MemView) writablePage(idx uint64) []byte {
	data, ok := m.pages[idx]
	if !ok {
		data = make([]byte, PageSize)
		m.pages[idx] = data
		m.owned[idx] = true
		return data
	}
	if !m.owned[idx] {
		dup := make([]byte, PageSize)
		copy(dup, data)
		m.pages[idx] = dup
		m.owned[idx] = true
		return dup
	}
	return data
}

// ReadBytes copies n bytes starting at addr into a fresh slice.
func (m *MemView) ReadBytes(addr uint64, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; {
		idx := (addr + uint64(i)) >> PageShift
		off := int((addr + uint64(i)) & pageMask)
		run := PageSize - off
		if run > n-i {
			run = n - i
		}
		if data, ok := m.pages[idx]; ok {
			copy(out[i:i+run], data[off:off+run])
		}
		i += run
	}
	return out
}

// WriteBytes stores b starting at addr.
func (m *MemView) WriteBytes(addr uint64, b []byte) {
	for i := 0; i < len(b); {
		idx := (addr + uint64(i)) >> PageShift
		off := int((addr + uint64(i)) & pageMask)
		run := PageSize - off
		if run > len(b)-i {
			run = len(b) - i
		}
		data := m.writablePage(idx)
		copy(data[off:off+run], b[i:i+run])
		i += run
	}
}

// Read returns width bytes at addr as a little-endian, zero-extended word.
// Width must be 1, 2, 4 or 8.
func (m *MemView) Read(addr uint64, width uint8) uint64 {
	idx := addr >> PageShift
	off := addr & pageMask
	if off+uint64(width) <= PageSize {
		data, ok := m.pages[idx]
		if !ok {
			return 0
		}
		switch width {
		case 1:
			return uint64(data[off])
		case 2:
			return uint64(binary.LittleEndian.Uint16(data[off:]))
		case 4:
			return uint64(binary.LittleEndian.Uint32(data[off:]))
		default:
			return binary.LittleEndian.Uint64(data[off:])
		}
	}
	var buf [8]byte
	copy(buf[:width], m.ReadBytes(addr, int(width)))
	return binary.LittleEndian.Uint64(buf[:])
}

// Write stores the low width bytes of value at addr, little-endian.
func (m *MemView) Write(addr uint64, width uint8, value uint64) {
	idx := addr >> PageShift
	off := addr & pageMask
	if off+uint64(width) <= PageSize {
		data := m.writablePage(idx)
		switch width {
		case 1:
			data[off] = byte(value)
		case 2:
			binary.LittleEndian.PutUint16(data[off:], uint16(value))
		case 4:
			binary.LittleEndian.PutUint32(data[off:], uint32(value))
		default:
			binary.LittleEndian.PutUint64(data[off:], value)
		}
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	m.WriteBytes(addr, buf[:width])
}

// Pages returns the number of mapped pages.
func (m *MemView) Pages() int {
	return len(m.pages)
}

// Equal reports whether both views contain identical bytes. Used by tests;
// phase-consistency checks compare register state and traces instead.
func (m *MemView) Equal(other *MemView) bool {
	zero := make([]byte, PageSize)
	pageEqual := func(a, b []byte) bool {
		if a == nil {
			a = zero
		}
		if b == nil {
			b = zero
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	seen := make(map[uint64]bool, len(m.pages))
	for idx, data := range m.pages {
		seen[idx] = true
		if !pageEqual(data, other.pages[idx]) {
			return false
		}
	}
	for idx, data := range other.pages {
		if !seen[idx] && !pageEqual(data, nil) {
			return false
		}
	}
	return true
}

// InInput reports whether the width-byte access at addr falls entirely
// inside the read-only input window.
func InInput(addr uint64, width uint8) bool {
	return addr >= InputStart && addr+uint64(width) <= InputEnd
}

// InRAM reports whether the width-byte access at addr falls entirely
// inside the read-write RAM window.
func InRAM(addr uint64, width uint8) bool {
	return addr >= RAMStart && addr+uint64(width) <= RAMEnd
}
