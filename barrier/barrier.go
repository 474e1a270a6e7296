// Package barrier implements the consensus layer: a named, two-phase
// team-wide synchronization point used to generate the per-collective IN
// and OUT synchronization points. It is deliberately a thin sequencer over
// an external team barrier primitive (transport.Barrier); the barrier
// package itself does not talk to the network.
//
// Modeled on the "reached / not yet" decision shape of the teacher's
// quorum/static.go and quorum/dynamic.go threshold types, specialized to
// the exact two-phase counter encoding the reference engine depends on.
package barrier

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrMismatch is returned when the external barrier reports that peers
// disagreed about which synchronization point they were notifying —
// detectable only when Notifier runs with named (value-checked) flags.
var ErrMismatch = errors.New("barrier: named barrier mismatch")

// Notifier is the external team-wide barrier primitive the consensus layer
// sequences. named selects value-checked flags (true) or anonymous flags
// (false), mirroring spec §6.
type Notifier interface {
	Notify(ctx context.Context, id uint64, named bool) error
	Try(ctx context.Context, id uint64, named bool) (ready bool, err error)
}

// Status is the outcome of one Try call.
type Status uint8

const (
	Pending Status = iota
	Reached
	Mismatch
)

// Counter is the process-wide two-phase consensus sequencer. issued mints
// ids; current advances through notify/wait pairs with its low bit encoding
// the phase. Both fields are process-wide per spec §3, not per-team — this
// core only ever serves the implicit "all" team.
type Counter struct {
	issued  atomic.Uint32
	current atomic.Uint32

	// named enables value-checked (debug) barrier flags, which can surface
	// ErrMismatch; anonymous (production) flags make a mismatch structurally
	// impossible, per spec §4.3/§7.
	named bool
}

// New creates a Counter. namedCheck corresponds to a debug build: it asks
// the external barrier to value-check the synchronization point, turning a
// user-level mismatch into a detectable (and fatal) error instead of silent
// corruption.
func New(namedCheck bool) *Counter {
	return &Counter{named: namedCheck}
}

// Mint allocates a fresh consensus id. Wrapping-safe: ids are compared to
// current using signed difference, per spec §9.
func (c *Counter) Mint() uint32 {
	return c.issued.Add(1) - 1
}

// Try advances the counter toward id's synchronization point and reports
// whether it has been reached. It must be called repeatedly (it is a poll
// step, not a blocking wait) until it returns Reached or Mismatch.
//
// Preserves the reference engine's exact two-phase encoding: current's low
// bit is the notify/wait phase, and id is "past" once
// current - 2*id > 1 (signed, wrap-safe).
func (c *Counter) Try(ctx context.Context, n Notifier, id uint32) (Status, error) {
	target := 2 * id
	cur := c.current.Load()

	if past(cur, id) {
		return Reached, nil
	}

	switch cur {
	case target:
		// notify phase: issue the barrier and advance into the wait phase.
		// The network-level id is the consensus id itself, not cur — cur only
		// tracks this rank's local notify/wait phase bookkeeping, and the
		// wait phase below must query the same round this call just
		// notified.
		if err := n.Notify(ctx, uint64(id), c.named); err != nil {
			return Pending, err
		}
		c.current.CompareAndSwap(cur, cur+1)
		if past(c.current.Load(), id) {
			return Reached, nil
		}
		return Pending, nil

	case target + 1:
		// wait phase: poll the barrier for completion.
		ready, err := n.Try(ctx, uint64(id), c.named)
		if err != nil {
			if c.named && errors.Is(err, ErrMismatch) {
				return Mismatch, err
			}
			return Pending, err
		}
		if ready {
			c.current.CompareAndSwap(cur, cur+1)
		}
		if past(c.current.Load(), id) {
			return Reached, nil
		}
		return Pending, nil

	default:
		// another id is still being sequenced ahead of this one, or this
		// id has not been reached by the sequence yet; nothing to do this
		// pass.
		return Pending, nil
	}
}

// past implements "current - 2*id > 1" using signed 32-bit wraparound
// arithmetic, exactly as spec §9 requires — this must survive
// current/issued wrapping past 2^31 consensus steps.
func past(current uint32, id uint32) bool {
	diff := int32(current) - int32(2*id)
	return diff > 1
}
