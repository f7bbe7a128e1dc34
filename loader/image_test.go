package loader_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/loader"
)

// fullProgram exercises every operand kind, store kind and flag the record
// format carries.
func fullProgram() *insts.Program {
	b := insts.NewProgramBuilder(core.RomEntry)
	b.LoadImm(1, 0x0123_4567_89ab_cdef)
	b.LoadImm(2, core.RAMStart)
	b.Op(insts.OpMul, 3, 1, 1)
	b.Store(3, 2, 16, 8)
	b.Load(4, 2, 16, 4)
	b.Emit(insts.Instruction{
		Op:  insts.OpAdd,
		A:   insts.MemOperand(core.RAMStart + 16),
		B:   insts.ImmOperand(1),
		Dst: insts.MemStore(core.RAMStart + 24),
	})
	b.Load(5, 2, -8, 2)
	b.BranchIf(insts.OpLtu, 0, 1, -2)
	b.Jump(b.PC()+2*insts.InstSpacing, 7)
	b.Emit(insts.Instruction{
		Op:  insts.OpPubOut,
		A:   insts.ImmOperand(0),
		B:   insts.RegOperand(3),
		Dst: insts.NoStore(),
	})
	b.End()

	prog, err := b.Build()
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return prog
}

var _ = Describe("Program image", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "image-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Context("round trip", func() {
		It("preserves every record through a file", func() {
			prog := fullProgram()
			path := filepath.Join(tempDir, "prog.zemu")

			Expect(loader.Write(path, prog)).To(Succeed())
			got, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())

			Expect(got.Entry()).To(Equal(prog.Entry()))
			Expect(got.HaltAddr()).To(Equal(prog.HaltAddr()))
			Expect(got.Len()).To(Equal(prog.Len()))
			for _, addr := range prog.Addrs() {
				want, _ := prog.At(addr)
				inst, ok := got.At(addr)
				Expect(ok).To(BeTrue())
				Expect(*inst).To(Equal(*want))
			}
		})

		It("round-trips through a stream", func() {
			prog := fullProgram()
			var buf bytes.Buffer

			Expect(loader.Encode(&buf, prog)).To(Succeed())
			got, err := loader.Decode(&buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Len()).To(Equal(prog.Len()))
		})

		It("writes a fixed-width layout", func() {
			prog := fullProgram()
			var buf bytes.Buffer
			Expect(loader.Encode(&buf, prog)).To(Succeed())

			// 32-byte header, 104 bytes per record.
			Expect(buf.Len()).To(Equal(32 + prog.Len()*104))
			Expect(buf.Bytes()[:4]).To(Equal([]byte("ZEMU")))
			Expect(buf.Bytes()[4]).To(Equal(uint8(loader.Version)))
		})
	})

	Context("with an invalid file", func() {
		It("rejects a non-existent path", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.zemu"))
			Expect(err).To(MatchError(ContainSubstring("failed to open")))
		})

		It("rejects a file without the magic", func() {
			path := filepath.Join(tempDir, "not-image.bin")
			data := bytes.Repeat([]byte("not an image "), 16)
			Expect(os.WriteFile(path, data, 0644)).To(Succeed())

			_, err := loader.Load(path)
			Expect(err).To(MatchError(ContainSubstring("not a zemu image")))
		})

		It("rejects an empty file", func() {
			path := filepath.Join(tempDir, "empty.zemu")
			Expect(os.WriteFile(path, nil, 0644)).To(Succeed())

			_, err := loader.Load(path)
			Expect(err).To(MatchError(ContainSubstring("failed to read image header")))
		})

		It("rejects an unsupported version", func() {
			var buf bytes.Buffer
			Expect(loader.Encode(&buf, fullProgram())).To(Succeed())
			img := buf.Bytes()
			img[4] = 0x7f // bump the version field

			_, err := loader.Decode(bytes.NewReader(img))
			Expect(err).To(MatchError(ContainSubstring("unsupported image version")))
		})

		It("rejects a truncated record list", func() {
			var buf bytes.Buffer
			Expect(loader.Encode(&buf, fullProgram())).To(Succeed())
			img := buf.Bytes()[:buf.Len()-40]

			_, err := loader.Decode(bytes.NewReader(img))
			Expect(err).To(MatchError(ContainSubstring("failed to read record")))
		})

		It("rejects a record that fails validation", func() {
			var buf bytes.Buffer
			Expect(loader.Encode(&buf, fullProgram())).To(Succeed())
			img := buf.Bytes()
			// The op byte of the first record sits after the header's 32
			// bytes and the record's eleven wide fields.
			img[32+88] = 0xff

			_, err := loader.Decode(bytes.NewReader(img))
			Expect(err).To(MatchError(ContainSubstring("image rejected")))
		})
	})

	Context("input payloads", func() {
		It("reads raw bytes back", func() {
			path := filepath.Join(tempDir, "input.bin")
			payload := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
			Expect(os.WriteFile(path, payload, 0644)).To(Succeed())

			got, err := loader.LoadInput(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(payload))
		})

		It("rejects a missing input file", func() {
			_, err := loader.LoadInput(filepath.Join(tempDir, "missing.bin"))
			Expect(err).To(MatchError(ContainSubstring("failed to read input file")))
		})
	})
})
