// Package aggregate implements the begin/end_nbi_accessregion façade: a
// client-declared group of submitted ops sharing one completion handle.
// Grounded on the mutex-guarded accumulate-then-drain shape of
// protocol/quasar/quasar_aggregator.go, replacing its channel buffers with
// the intrusive circular ring over pool.Op indices that the reference
// engine itself uses.
package aggregate

import (
	"errors"

	"github.com/luxfi/pgasc/pool"
)

// ErrNotOpen is returned by Add/End when no region is open.
var ErrNotOpen = errors.New("aggregate: no access region is open")

// ErrAlreadyOpen is returned by Begin when a region is already open. The
// client model is inherently single-threaded — nesting or interleaving
// regions across threads is a client bug, not a runtime race to arbitrate.
var ErrAlreadyOpen = errors.New("aggregate: an access region is already open")

// Region tracks one thread's in-progress aggregation. A Context owns at
// most one Region at a time.
type Region struct {
	open      bool
	container pool.OpIndex
}

// Begin opens a new access region, allocating its container op at once. The
// container carries no algorithm (Kind == KindAggregateContainer) and no
// handle until End seals it.
func (r *Region) Begin(ctx *pool.Context) error {
	if r.open {
		return ErrAlreadyOpen
	}
	c := ctx.AllocOp()
	c.Kind = pool.KindAggregateContainer
	c.AggNext = c.Index
	c.AggPrev = c.Index
	r.container = c.Index
	r.open = true
	return nil
}

// Add threads op into the region's circular ring. The caller must have
// validated that op was submitted with an invalid handle argument (the
// AGGREGATE flag's precondition); Add itself only maintains the ring.
func (r *Region) Add(arena *pool.Allocator, op *pool.Op) error {
	if !r.open {
		return ErrNotOpen
	}
	container := arena.Get(r.container)
	tail := arena.Get(container.AggPrev)

	op.AggNext = container.Index
	op.AggPrev = tail.Index
	tail.AggNext = op.Index
	container.AggPrev = op.Index
	container.AggCount++
	return nil
}

// End terminates aggregation: every member's AggHead is stamped to the
// container, the container adopts a handle, and members that already
// finished their state machine before sealing (LocalDone) are folded in
// immediately. The container's handle is returned in place of whatever
// handle the final (non-aggregate) submit would otherwise have produced.
func (r *Region) End(arena *pool.Allocator, ctx *pool.Context) (pool.Handle, error) {
	if !r.open {
		return pool.InvalidHandle, ErrNotOpen
	}
	r.open = false

	container := arena.Get(r.container)
	h := ctx.HandleCreate()
	container.Handle = h

	// Walk the ring once, stamping AggHead. Members already LocalDone are
	// folded in on this same pass — their completion happened while the
	// aggregate was still "under construction", so the driver deliberately
	// held off on unlinking them from the ring (spec §4.4's emptiness
	// guard: an aggregate must not appear drained before it is sealed).
	for i := container.AggNext; i != container.Index; {
		m := arena.Get(i)
		next := m.AggNext
		m.AggHead = container.Index
		if m.LocalDone {
			unlinkRingMember(arena, container, m)
			ctx.FreeOp(m)
		}
		i = next
	}

	if container.AggCount == 0 {
		// every member was already done by the time we sealed: signal
		// immediately.
		ctx.HandleSignal(h)
		ctx.FreeOp(container)
	}
	return h, nil
}

// unlinkRingMember removes m from container's ring and decrements the
// outstanding count. Caller frees m afterward.
func unlinkRingMember(arena *pool.Allocator, container, m *pool.Op) {
	prev := arena.Get(m.AggPrev)
	next := arena.Get(m.AggNext)
	prev.AggNext = next.Index
	next.AggPrev = prev.Index
	container.AggCount--
}

// CompleteOp is invoked by the poll driver whenever a poll function reports
// ResultComplete. For a plain (non-aggregated) op it signals the handle
// directly and returns the op to the pool. For an aggregate member it either
// folds into the container immediately (if the region has been sealed) or
// parks as LocalDone, deferring the fold to Region.End — per the invariant
// that a still-open aggregate must never appear to complete.
func CompleteOp(arena *pool.Allocator, ctx *pool.Context, op *pool.Op) {
	switch {
	case op.AggNext == 0 && op.AggPrev == 0:
		// never linked into any ring: a plain op.
		if op.Handle.Valid() {
			ctx.HandleSignal(op.Handle)
		}
		ctx.FreeOp(op)

	case !op.AggHead.Valid():
		// linked into a ring but not yet sealed by End(): park it.
		op.LocalDone = true

	default:
		// sealed member completing after Region.End already ran.
		container := arena.Get(op.AggHead)
		unlinkRingMember(arena, container, op)
		ctx.FreeOp(op)
		if container.AggCount == 0 {
			ctx.HandleSignal(container.Handle)
			ctx.FreeOp(container)
		}
	}
}
