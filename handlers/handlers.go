// Package handlers implements the secondary units that answer delegated bus
// entries: arithmetic, binary, memory and fetch verification. Every unit
// follows the same contract: drain a batch of entries of its class, answer
// them in submission order, append auxiliary trace rows when recording, and
// report a structured fault on the first entry it rejects.
//
// Units are segment-scoped. Attach points a unit at the segment trace it
// writes and resets its per-segment counters; the executor reads the
// counters back when the segment closes.
package handlers

import (
	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/insts"
)

// Unit is the contract every secondary unit implements.
type Unit interface {
	// Class identifies the bus entries this unit answers.
	Class() bus.Class

	// Process answers entries in order. On the first rejected entry it
	// returns a *core.Fault and leaves later entries unanswered.
	Process(entries []*bus.Entry) error
}

// OpCounts tallies processed operations by code.
type OpCounts [insts.NumOps]uint64

// Total sums all tallies.
func (c *OpCounts) Total() uint64 {
	var n uint64
	for _, v := range c {
		n += v
	}
	return n
}

// Add accumulates other into c.
func (c *OpCounts) Add(other *OpCounts) {
	for i, v := range other {
		c[i] += v
	}
}
