// Package loader reads and writes the packed program image format and the
// raw input payload.
package loader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/insts"
)

// Magic identifies a program image file.
var Magic = [4]byte{'Z', 'E', 'M', 'U'}

// Version is the image format version this package reads and writes.
const Version uint16 = 1

// imageHeader is the fixed on-disk file header. All multi-byte fields are
// little-endian.
type imageHeader struct {
	Magic   [4]byte
	Version uint16
	_       uint16
	Entry   uint64
	Halt    uint64
	Count   uint64
}

// Record flag bits.
const (
	flagStoreRA = 1 << iota
	flagSetPC
	flagEnd
)

// imageRecord is the fixed on-disk form of one instruction record,
// little-endian, 104 bytes. The wide fields come first so readers mapping
// the file keep them 8-aligned.
type imageRecord struct {
	Addr uint64

	AImm    uint64
	AAddr   uint64
	AOffset int64

	BImm    uint64
	BAddr   uint64
	BOffset int64

	DstAddr   uint64
	DstOffset int64

	Jump1 int64
	Jump2 int64

	Op       uint8
	AKind    uint8
	AReg     uint8
	AWidth   uint8
	BKind    uint8
	BReg     uint8
	BWidth   uint8
	DstKind  uint8
	DstReg   uint8
	DstWidth uint8
	Flags    uint8

	_ [5]uint8
}

func packRecord(inst *insts.Instruction) imageRecord {
	rec := imageRecord{
		Addr: inst.Addr,
		Op:   uint8(inst.Op),

		AKind:   uint8(inst.A.Kind),
		AReg:    inst.A.Reg,
		AImm:    inst.A.Imm,
		AAddr:   inst.A.Addr,
		AOffset: inst.A.Offset,
		AWidth:  inst.A.Width,

		BKind:   uint8(inst.B.Kind),
		BReg:    inst.B.Reg,
		BImm:    inst.B.Imm,
		BAddr:   inst.B.Addr,
		BOffset: inst.B.Offset,
		BWidth:  inst.B.Width,

		DstKind:   uint8(inst.Dst.Kind),
		DstReg:    inst.Dst.Reg,
		DstAddr:   inst.Dst.Addr,
		DstOffset: inst.Dst.Offset,
		DstWidth:  inst.Dst.Width,

		Jump1: inst.Jump1,
		Jump2: inst.Jump2,
	}
	if inst.StoreRA {
		rec.Flags |= flagStoreRA
	}
	if inst.SetPC {
		rec.Flags |= flagSetPC
	}
	if inst.End {
		rec.Flags |= flagEnd
	}
	return rec
}

func (rec *imageRecord) instruction() *insts.Instruction {
	return &insts.Instruction{
		Addr: rec.Addr,
		Op:   insts.Op(rec.Op),

		A: insts.Operand{
			Kind:   insts.SourceKind(rec.AKind),
			Reg:    rec.AReg,
			Imm:    rec.AImm,
			Addr:   rec.AAddr,
			Offset: rec.AOffset,
			Width:  rec.AWidth,
		},
		B: insts.Operand{
			Kind:   insts.SourceKind(rec.BKind),
			Reg:    rec.BReg,
			Imm:    rec.BImm,
			Addr:   rec.BAddr,
			Offset: rec.BOffset,
			Width:  rec.BWidth,
		},
		Dst: insts.Store{
			Kind:   insts.StoreKind(rec.DstKind),
			Reg:    rec.DstReg,
			Addr:   rec.DstAddr,
			Offset: rec.DstOffset,
			Width:  rec.DstWidth,
		},

		StoreRA: rec.Flags&flagStoreRA != 0,
		SetPC:   rec.Flags&flagSetPC != 0,
		End:     rec.Flags&flagEnd != 0,
		Jump1:   rec.Jump1,
		Jump2:   rec.Jump2,
	}
}

// Encode writes prog to w in image format, records in address order.
func Encode(w io.Writer, prog *insts.Program) error {
	hdr := imageHeader{
		Magic:   Magic,
		Version: Version,
		Entry:   prog.Entry(),
		Halt:    prog.HaltAddr(),
		Count:   uint64(prog.Len()),
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("failed to write image header: %w", err)
	}
	for _, addr := range prog.Addrs() {
		inst, _ := prog.At(addr)
		rec := packRecord(inst)
		if err := binary.Write(bw, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("failed to write record at 0x%x: %w", addr, err)
		}
	}
	return bw.Flush()
}

// Decode parses an image from r and rebuilds the validated program.
func Decode(r io.Reader) (*insts.Program, error) {
	br := bufio.NewReader(r)

	var hdr imageHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if !bytes.Equal(hdr.Magic[:], Magic[:]) {
		return nil, fmt.Errorf("not a zemu image")
	}
	if hdr.Version != Version {
		return nil, fmt.Errorf("unsupported image version %d", hdr.Version)
	}

	list := make([]*insts.Instruction, 0)
	for i := uint64(0); i < hdr.Count; i++ {
		var rec imageRecord
		if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("failed to read record %d of %d: %w", i, hdr.Count, err)
		}
		list = append(list, rec.instruction())
	}

	prog, err := insts.NewProgram(hdr.Entry, hdr.Halt, list)
	if err != nil {
		return nil, fmt.Errorf("image rejected: %w", err)
	}
	return prog, nil
}

// Write serializes prog to the file at path.
func Write(path string, prog *insts.Program) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := Encode(f, prog); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load reads the program image at path.
func Load(path string) (*insts.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// MaxInputSize is the capacity of the input window.
const MaxInputSize = core.InputEnd - core.InputStart

// LoadInput reads the raw input payload at path, rejecting payloads larger
// than the input window.
func LoadInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	if uint64(len(data)) > MaxInputSize {
		return nil, fmt.Errorf("input of %d bytes exceeds the input window (%d bytes)",
			len(data), MaxInputSize)
	}
	return data, nil
}
