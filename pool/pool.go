// Package pool implements the bulk-chunked, per-thread free lists that back
// every operation record and handle in the collective engine. Allocation
// chunks are 256 entries, scattered across separate backing arrays so that a
// handle or op stays addressable across arena growth — mirroring the
// reference engine's "allocate in large chunks, never free until exit"
// freelist discipline.
package pool

import (
	"sync"
	"sync/atomic"
)

// chunkSize is the bulk allocation granularity for ops and handles.
const chunkSize = 256

// OpIndex addresses an Op inside an Allocator's arena. The zero value is the
// invalid index; real indices are minted starting at 1.
type OpIndex uint32

// Valid reports whether idx refers to a real Op.
func (idx OpIndex) Valid() bool { return idx != 0 }

// OpKind distinguishes algorithm ops (which carry a live poll function) from
// aggregate container ops (which hold no algorithm of their own, only the
// client's handle, until every sibling drains).
type OpKind uint8

const (
	KindAlgorithm OpKind = iota
	KindAggregateContainer
)

// Result is the poll function's report to the driver: COMPLETE asks the
// driver to signal (or fold into an aggregate) the op's handle and return the
// op to the pool; INACTIVE asks the driver to unlink the op from the active
// list.
// The two bits are independent — an op can complete without being removed
// from the driver's bookkeeping in the same pass, and vice versa.
type Result uint8

const (
	ResultNone     Result = 0
	ResultComplete Result = 1 << 0
	ResultInactive Result = 1 << 1
)

func (r Result) Complete() bool { return r&ResultComplete != 0 }
func (r Result) Inactive() bool { return r&ResultInactive != 0 }

// PollFunc advances one op's state machine by one step. It must never block;
// it returns having made progress or having found a pending predicate still
// unsatisfied. Poll functions must be idempotent and safe to call repeatedly
// after completion.
type PollFunc func(op *Op) Result

// Op is an operation record: created on submit, destroyed after completion.
type Op struct {
	Index OpIndex

	Team     uint64 // 0 is the implicit "all" team
	Sequence uint32
	Flags    uint32
	Kind     OpKind
	Owner    uint64 // thread id that created the op; recorded, not checked

	// Data is the algorithm-specific captured argument record (a
	// *collective.BcastArgs, *collective.ScatterArgs, ...). The pool layer
	// never inspects it.
	Data any

	PollFn PollFunc
	State  int32 // the op's own small state-machine cursor; monotone non-decreasing

	Handle Handle // the op's own handle; Region.Add leaves it unchanged

	// Aggregation ring. AggHead is the container's index, set only once the
	// aggregate region has been sealed; until then a member that finishes
	// its state machine is parked (LocalDone) rather than unlinked.
	AggHead    OpIndex
	AggNext    OpIndex
	AggPrev    OpIndex
	AggCount   int32 // container-only: number of members still outstanding
	LocalDone  bool  // member-only: state machine finished before sealing

	inUse bool
}

// Allocator owns the shared op/handle arenas. Per-Context free lists front
// it; Context.AllocOp refills from here in chunks of 256 under mu, keeping
// per-thread fast paths lock-free in the common case. Handles come from
// HandlePool instead.
type Allocator struct {
	mu       sync.Mutex
	opChunks [][]Op
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Get returns the Op at idx. idx must be valid and previously allocated.
func (a *Allocator) Get(idx OpIndex) *Op {
	i := int(idx) - 1
	chunk := i / chunkSize
	slot := i % chunkSize
	return &a.opChunks[chunk][slot]
}

// refillOps allocates a fresh chunk of 256 ops and returns their indices.
func (a *Allocator) refillOps() []OpIndex {
	a.mu.Lock()
	defer a.mu.Unlock()
	base := len(a.opChunks) * chunkSize
	a.opChunks = append(a.opChunks, make([]Op, chunkSize))
	indices := make([]OpIndex, chunkSize)
	chunk := a.opChunks[len(a.opChunks)-1]
	for i := range chunk {
		idx := OpIndex(base + i + 1)
		chunk[i].Index = idx
		indices[i] = idx
	}
	return indices
}

// Context is the per-thread handle threaded through every public call,
// replacing the reference engine's thread-specific-data lookup
// (GASNETE_THREAD_FARG). It owns this thread's free-list fast paths.
type Context struct {
	ThreadID uint64

	alloc *Allocator

	freeOps     []OpIndex
	freeHandles []Handle

	handles *HandlePool
}

// NewContext creates a per-thread context bound to the given shared
// allocator and handle pool.
func NewContext(threadID uint64, alloc *Allocator, handles *HandlePool) *Context {
	return &Context{ThreadID: threadID, alloc: alloc, handles: handles}
}

// AllocOp pops an op off this thread's free list, refilling from the shared
// allocator in a chunk of 256 if the local list is empty.
func (c *Context) AllocOp() *Op {
	if len(c.freeOps) == 0 {
		c.freeOps = append(c.freeOps, c.alloc.refillOps()...)
	}
	n := len(c.freeOps) - 1
	idx := c.freeOps[n]
	c.freeOps = c.freeOps[:n]

	op := c.alloc.Get(idx)
	*op = Op{Index: idx, Owner: c.ThreadID, inUse: true}
	return op
}

// FreeOp returns an op to this thread's free list. The caller must have
// already unlinked it from every list it participated in.
func (c *Context) FreeOp(op *Op) {
	op.inUse = false
	op.Data = nil
	op.PollFn = nil
	c.freeOps = append(c.freeOps, op.Index)
}

// Arena exposes the shared allocator for components (active list, aggregate
// ring) that must resolve an OpIndex to an *Op without owning a Context.
func (c *Context) Arena() *Allocator { return c.alloc }

// atomicStateAdvance is a small helper enforcing the "state only moves
// forward, never back to 0 except between distinct ops" invariant; the check
// runs on every call.
func atomicStateAdvance(state *int32, next int32) {
	prev := atomic.LoadInt32(state)
	if next < prev {
		panic("pool: op state moved backward")
	}
	atomic.StoreInt32(state, next)
}

// AdvanceState moves an op's state machine cursor forward, panicking (debug
// assertion) if the caller tries to move it backward.
func (op *Op) AdvanceState(next int32) {
	atomicStateAdvance(&op.State, next)
}
