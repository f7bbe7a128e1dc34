// Package segment slices one execution into bounded, independently
// re-runnable pieces. A segment opens on a context checkpoint, runs until a
// closing trigger fires, and seals into a Record whose exit checkpoint is
// the next segment's entry.
package segment

import (
	"errors"

	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/emu"
	"github.com/sarchlab/zemu/trace"
)

// ErrZeroChunk reports a chunk size that cannot make progress.
var ErrZeroChunk = errors.New("chunk size must be at least one step")

// State is the lifecycle position of the current segment.
type State uint8

// Lifecycle states. A segment is Open while stepping, Closing once a
// boundary trigger has fired and Closed after sealing.
const (
	Open State = iota
	Closing
	Closed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Record is one sealed segment.
type Record struct {
	Index int

	// Entry and Exit are the context checkpoints bracketing the segment.
	// Exit of segment i equals Entry of segment i+1 field for field.
	Entry *core.Checkpoint
	Exit  *core.Checkpoint

	// Steps is the number of instructions the segment executed.
	Steps uint64

	// Counts is the per-class work tally of the segment.
	Counts emu.Counts

	// Trace holds the rows recorded by the segment; empty in the
	// counting fidelities.
	Trace *trace.Segment

	// Halted is true for the final segment of a run.
	Halted bool
}

// Plan is the fast-count product: where every segment starts and how many
// steps it runs. Later phases re-run segments from it independently.
type Plan struct {
	Entries []*core.Checkpoint
	Steps   []uint64
	Total   uint64

	// Final is the exit checkpoint of the last segment added.
	Final *core.Checkpoint
}

// Add appends a sealed segment to the plan.
func (p *Plan) Add(rec *Record) {
	p.Entries = append(p.Entries, rec.Entry)
	p.Steps = append(p.Steps, rec.Steps)
	p.Total += rec.Steps
	p.Final = rec.Exit
}

// Segments returns the number of planned segments.
func (p *Plan) Segments() int {
	return len(p.Entries)
}

// Segmenter drives an emulator through the segment lifecycle. Closing
// triggers are the chunk-size step bound, program halt, an exceeded handler
// capacity and ForceBoundary.
type Segmenter struct {
	em    *emu.Emulator
	mode  emu.Mode
	chunk uint64
	cap   uint64

	index  int
	state  State
	steps  uint64
	entry  *core.Checkpoint
	seg    *trace.Segment
	forced bool
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithHandlerCap closes a segment once any handler's row count reaches n.
// Zero leaves capacity unbounded.
func WithHandlerCap(n uint64) Option {
	return func(s *Segmenter) {
		s.cap = n
	}
}

// New returns a segmenter slicing em's execution into chunks of at most
// chunk steps, recorded at the given fidelity.
func New(em *emu.Emulator, mode emu.Mode, chunk uint64, opts ...Option) *Segmenter {
	s := &Segmenter{
		em:    em,
		mode:  mode,
		chunk: chunk,
		state: Closed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the lifecycle position of the current segment.
func (s *Segmenter) State() State {
	return s.state
}

// Index returns the index the next sealed segment will carry.
func (s *Segmenter) Index() int {
	return s.index
}

// ForceBoundary requests a close at the next step boundary, regardless of
// the chunk bound.
func (s *Segmenter) ForceBoundary() {
	s.forced = true
}

// open starts a new segment at the current context.
func (s *Segmenter) open() {
	ctx := s.em.Context()
	s.entry = ctx.Snapshot()
	s.seg = trace.NewSegment(s.index)
	s.em.BeginSegment(s.seg, s.mode)
	s.steps = 0
	s.forced = false
	s.state = Open
}

// Step executes one instruction inside the current segment, opening one if
// needed. Faults are tagged with the segment index.
func (s *Segmenter) Step() error {
	if s.chunk == 0 {
		ctx := s.em.Context()
		f := core.NewFault(core.FaultResource, ctx.Step, ctx.PC, ErrZeroChunk)
		f.Segment = s.index
		return f
	}
	if s.state == Closed {
		s.open()
	}

	before := s.em.Context().Step
	if _, err := s.em.Step(); err != nil {
		if f, ok := core.AsFault(err); ok && f.Segment < 0 {
			f.Segment = s.index
		}
		return err
	}
	if s.em.Context().Step != before {
		s.steps++
	}

	if s.boundary() {
		s.state = Closing
	}
	return nil
}

// boundary reports whether a closing trigger has fired.
func (s *Segmenter) boundary() bool {
	if s.forced || s.em.Context().Halted {
		return true
	}
	if s.steps >= s.chunk {
		return true
	}
	if s.cap > 0 {
		c := s.em.Counts()
		if c.Arith.Total() >= s.cap ||
			c.Binary.Total() >= s.cap ||
			c.Memory.Rows >= s.cap {
			return true
		}
	}
	return false
}

// Close seals the current segment into a Record and advances the index.
func (s *Segmenter) Close() *Record {
	ctx := s.em.Context()
	rec := &Record{
		Index:  s.index,
		Entry:  s.entry,
		Exit:   ctx.Snapshot(),
		Steps:  s.steps,
		Counts: s.em.Counts(),
		Trace:  s.seg,
		Halted: ctx.Halted,
	}
	s.index++
	s.state = Closed
	s.entry = nil
	s.seg = nil
	return rec
}

// Next runs one full segment and seals it. It returns nil once the context
// has halted and every segment is sealed.
func (s *Segmenter) Next() (*Record, error) {
	if s.state == Closed && s.em.Context().Halted {
		return nil, nil
	}
	for s.state != Closing {
		if err := s.Step(); err != nil {
			return nil, err
		}
	}
	return s.Close(), nil
}

// Drain runs segments until the program halts, sealing each into the plan.
func (s *Segmenter) Drain(plan *Plan) error {
	for {
		rec, err := s.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		plan.Add(rec)
	}
}
