// Package executor orchestrates the execution pipeline: a single-threaded
// fast count that slices the run into a segment plan, a parallel full count
// that prices every segment, and a parallel expansion that re-derives each
// segment into witness-ready trace rows. All three phases drive the same
// interpreter; the later phases verify that they reproduced the earlier
// ones exactly and fail the run otherwise.
package executor

import (
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/zemu/core"
	"github.com/sarchlab/zemu/emu"
	"github.com/sarchlab/zemu/insts"
	"github.com/sarchlab/zemu/segment"
	"github.com/sarchlab/zemu/trace"
)

// Result bundles the products of a run, filled up to the configured phase.
type Result struct {
	// Plan is the fast-count product.
	Plan *segment.Plan

	// Counts is the full-count product, one entry per plan segment.
	Counts []emu.Counts

	// Trace is the aggregated trace; nil below the expand phase.
	Trace *trace.Set

	// Final is the context checkpoint at halt.
	Final *core.Checkpoint

	// PubOut holds the values the program published, keyed by output
	// index.
	PubOut map[uint64]uint64
}

// Executor runs the multi-phase pipeline for one program and input.
type Executor struct {
	prog  *insts.Program
	input []byte
	cfg   *Config
}

// New validates the configuration and returns an executor. A nil config
// uses the defaults.
func New(prog *insts.Program, input []byte, cfg *Config) (*Executor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("run config: %w", err)
	}
	if uint64(len(input)) > core.InputEnd-core.InputStart {
		return nil, fmt.Errorf("input of %d bytes exceeds the input window", len(input))
	}
	return &Executor{prog: prog, input: input, cfg: cfg.Clone()}, nil
}

// Run executes the phases up to the configured one. Any fault aborts the
// whole run; there are no partial results.
func (x *Executor) Run() (*Result, error) {
	plan, err := x.FastCount()
	if err != nil {
		return nil, err
	}
	res := &Result{
		Plan:   plan,
		Final:  plan.Final,
		PubOut: plan.Final.PubOut,
	}
	if x.cfg.Phase == PhaseFastCount {
		return res, nil
	}

	res.Counts, err = x.FullCount(plan)
	if err != nil {
		return nil, err
	}
	if x.cfg.Phase == PhaseFullCount {
		return res, nil
	}

	res.Trace, err = x.Expand(plan, res.Counts)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FastCount runs the whole program once, single-threaded, slicing it into
// the segment plan the parallel phases re-run.
func (x *Executor) FastCount() (*segment.Plan, error) {
	stats := newPerfStats()
	ctx := core.NewContext(x.prog.Entry())
	ctx.Mem.WriteBytes(core.InputStart, x.input)

	seg := segment.New(x.newEmulator(ctx), emu.ModeCountSteps, x.cfg.ChunkSize,
		segment.WithHandlerCap(x.cfg.HandlerCap))

	plan := &segment.Plan{}
	for {
		rec, err := seg.Next()
		if err != nil {
			return nil, x.tag(err, PhaseFastCount)
		}
		if rec == nil {
			break
		}
		plan.Add(rec)
		if x.cfg.MaxSteps > 0 && plan.Total > x.cfg.MaxSteps {
			f := core.NewFault(core.FaultResource, rec.Exit.Step, rec.Exit.PC,
				fmt.Errorf("step bound %d exceeded", x.cfg.MaxSteps))
			f.Phase = PhaseFastCount
			f.Segment = rec.Index
			return nil, f
		}
	}

	log.Debugf("fast count planned %d segments over %d steps",
		plan.Segments(), plan.Total)
	stats.log("fast count")
	return plan, nil
}

// FullCount re-runs every plan segment with operation tallies, verifying
// the plan as it goes.
func (x *Executor) FullCount(plan *segment.Plan) ([]emu.Counts, error) {
	stats := newPerfStats()
	counts := make([]emu.Counts, plan.Segments())
	err := x.eachSegment(plan, PhaseFullCount, func(i int) error {
		run, err := x.replay(plan, i, emu.ModeCountOps, nil)
		if err != nil {
			return err
		}
		counts[i] = run.counts
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.log(fmt.Sprintf("full count of %d segments", plan.Segments()))
	return counts, nil
}

// Expand re-derives every plan segment into full trace rows and aggregates
// them in segment order. Row buffers are pre-sized from the full count,
// which expansion must reproduce exactly.
func (x *Executor) Expand(plan *segment.Plan, counts []emu.Counts) (*trace.Set, error) {
	if len(counts) != plan.Segments() {
		return nil, fmt.Errorf("full-count product covers %d segments, plan has %d",
			len(counts), plan.Segments())
	}

	stats := newPerfStats()
	segs := make([]*trace.Segment, plan.Segments())
	err := x.eachSegment(plan, PhaseExpand, func(i int) error {
		run, err := x.replay(plan, i, emu.ModeRecord, &counts[i])
		if err != nil {
			return err
		}
		if run.counts != counts[i] {
			f := core.NewFault(core.FaultConsistency,
				plan.Entries[i].Step, plan.Entries[i].PC,
				fmt.Errorf("expansion work disagrees with the full count"))
			f.Segment = i
			return f
		}
		segs[i] = run.trace
		return nil
	})
	if err != nil {
		return nil, err
	}

	set, err := trace.Aggregate(segs, x.prog)
	if err != nil {
		return nil, x.tag(err, PhaseExpand)
	}

	stats.log(fmt.Sprintf("expansion of %d segments (%d steps)",
		plan.Segments(), set.Steps))
	return set, nil
}

// segRun is one re-executed segment.
type segRun struct {
	counts emu.Counts
	trace  *trace.Segment
	exit   *core.Checkpoint
}

// replay re-runs plan segment i at the given fidelity and verifies that it
// reproduced the plan: the step count, the continuation checkpoint, and
// for the final segment the halt itself.
func (x *Executor) replay(plan *segment.Plan, i int, mode emu.Mode, presize *emu.Counts) (*segRun, error) {
	entry := plan.Entries[i]
	if entry.MemStep != entry.Step*core.MemStepsPerStep {
		f := core.NewFault(core.FaultConsistency, entry.Step, entry.PC,
			fmt.Errorf("entry checkpoint memory-step %d off the window boundary", entry.MemStep))
		f.Segment = i
		return nil, f
	}

	ctx := entry.Restore()
	em := x.newEmulator(ctx)
	seg := trace.NewSegment(i)
	if presize != nil {
		seg.Presize(int(plan.Steps[i]), int(presize.Arith.Total()),
			int(presize.Binary.Total()), int(presize.Memory.Rows))
	}
	em.BeginSegment(seg, mode)

	steps, err := em.Run(plan.Steps[i])
	if err != nil {
		if f, ok := core.AsFault(err); ok && f.Segment < 0 {
			f.Segment = i
		}
		return nil, err
	}
	if steps != plan.Steps[i] {
		f := core.NewFault(core.FaultConsistency, ctx.Step, ctx.PC,
			fmt.Errorf("segment ran %d steps, plan says %d", steps, plan.Steps[i]))
		f.Segment = i
		return nil, f
	}

	exit := ctx.Snapshot()
	if i+1 < plan.Segments() {
		if !exit.Equal(plan.Entries[i+1]) {
			f := core.NewFault(core.FaultConsistency, ctx.Step, ctx.PC,
				fmt.Errorf("segment continuation does not meet the next entry checkpoint"))
			f.Segment = i
			return nil, f
		}
	} else if !ctx.Halted {
		f := core.NewFault(core.FaultConsistency, ctx.Step, ctx.PC,
			fmt.Errorf("final segment did not halt"))
		f.Segment = i
		return nil, f
	}

	return &segRun{counts: em.Counts(), trace: seg, exit: exit}, nil
}

// eachSegment fans work over the plan's segments with a fixed worker pool.
// The first fault in segment order wins; an abort flag drops queued work
// once any worker has failed.
func (x *Executor) eachSegment(plan *segment.Plan, phase string, work func(int) error) error {
	n := plan.Segments()
	if n == 0 {
		return nil
	}
	threads := x.cfg.Threads
	if threads > n {
		threads = n
	}

	jobs := make(chan int)
	errs := make([]error, n)
	var abort atomic.Bool
	var wg sync.WaitGroup
	for w := 0; w < threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if abort.Load() {
					continue
				}
				if err := work(i); err != nil {
					errs[i] = err
					abort.Store(true)
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return x.tag(err, phase)
		}
	}
	return nil
}

// newEmulator builds a segment interpreter over ctx with the configured
// execution options.
func (x *Executor) newEmulator(ctx *core.Context) *emu.Emulator {
	opts := []emu.Option{
		emu.WithContext(ctx),
		emu.WithStrictAlign(x.cfg.StrictAlign),
	}
	if x.cfg.HaltAddr != 0 {
		opts = append(opts, emu.WithHaltAddr(x.cfg.HaltAddr))
	}
	return emu.New(x.prog, opts...)
}

// tag stamps the phase onto a fault missing one.
func (x *Executor) tag(err error, phase string) error {
	if f, ok := core.AsFault(err); ok && f.Phase == "" {
		f.Phase = phase
	}
	return err
}
