// Package active implements the process-wide active list of in-flight
// operations and the poll driver that advances them. Modeled on the
// register/iterate/complete shape of the teacher's poll.Set, but the
// "vote" step is replaced by invoking each op's own PollFunc.
package active

import (
	"sync"

	"github.com/luxfi/pgasc/aggregate"
	"github.com/luxfi/pgasc/metrics"
	"github.com/luxfi/pgasc/pool"
)

// List is a singly-linked-forward, doubly-linked-for-removal list of ops,
// threaded by index rather than by the reference engine's raw prev_p
// pointer-to-predecessor's-next-field trick (Go has no equivalent of taking
// the address of a struct field through an arbitrary pointer safely across
// reallocation, so we keep a parallel prev index instead).
type List struct {
	mu   sync.Mutex
	next map[pool.OpIndex]pool.OpIndex
	prev map[pool.OpIndex]pool.OpIndex
	head pool.OpIndex
	tail pool.OpIndex
	n    int
}

func NewList() *List {
	return &List{
		next: make(map[pool.OpIndex]pool.OpIndex),
		prev: make(map[pool.OpIndex]pool.OpIndex),
	}
}

// Insert appends op to the tail of the active list. O(1).
func (l *List) Insert(idx pool.OpIndex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next[idx] = 0
	l.prev[idx] = l.tail
	if l.tail.Valid() {
		l.next[l.tail] = idx
	} else {
		l.head = idx
	}
	l.tail = idx
	l.n++
}

// remove unlinks idx. Caller must hold l.mu.
func (l *List) remove(idx pool.OpIndex) {
	p, hasP := l.prev[idx]
	nx, hasNx := l.next[idx]
	if !hasP || !hasNx {
		return
	}
	if p.Valid() {
		l.next[p] = nx
	} else {
		l.head = nx
	}
	if nx.Valid() {
		l.prev[nx] = p
	} else {
		l.tail = p
	}
	delete(l.next, idx)
	delete(l.prev, idx)
	l.n--
}

// Len returns the number of active ops. Used only for diagnostics/tests; the
// driver snapshots the head itself while polling.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

// snapshot copies the current ordering of active op indices under the list
// lock, matching step 2 of the driver algorithm in spec §4.2: the lock is
// held only while the list is copied, never across a poll function.
func (l *List) snapshot() []pool.OpIndex {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]pool.OpIndex, 0, l.n)
	for i := l.head; i.Valid(); i = l.next[i] {
		out = append(out, i)
	}
	return out
}

// Driver is the poll loop: it holds the single-runner poll lock across a
// full pass over the active list, invoking each op's poll function outside
// the list lock and reconciling results afterward.
type Driver struct {
	list  *List
	arena *pool.Allocator

	// pollLock enforces "only one thread runs the driver at a time." It is
	// a plain mutex; its TryLock backs the idle-thread try-lock path so
	// idle pollers don't starve a thread with known local work (spec §5/§9).
	pollLock sync.Mutex

	// Metrics is nil-safe: a Driver built without SetMetrics runs with zero
	// observability overhead, matching spec §8's Non-goal excluding a
	// mandatory metrics dependency.
	Metrics *metrics.Metrics
}

func NewDriver(list *List, arena *pool.Allocator) *Driver {
	return &Driver{list: list, arena: arena}
}

// SetMetrics attaches a metrics sink. Call once, before the first Poll.
func (d *Driver) SetMetrics(m *metrics.Metrics) { d.Metrics = m }

// Poll runs one pass over the active list. hasLocalWork selects the locking
// policy: a thread that just submitted an op (and so has known local work to
// progress) blocks for the poll lock; an idle thread merely polling for
// general progress only try-locks, so it never starves the thread that has
// something to do. Returns false if another thread already holds the lock
// and hasLocalWork is false.
func (d *Driver) Poll(ctx *pool.Context, hasLocalWork bool) bool {
	if hasLocalWork {
		d.pollLock.Lock()
	} else if !d.pollLock.TryLock() {
		if d.Metrics != nil {
			d.Metrics.PollLockBusy.Inc()
		}
		return false
	}
	defer d.pollLock.Unlock()

	if d.Metrics != nil {
		d.Metrics.PollPasses.Inc()
	}

	for _, idx := range d.list.snapshot() {
		op := d.arena.Get(idx)
		if op == nil {
			continue
		}
		res := op.PollFn(op)
		d.reconcile(ctx, op, res)
	}
	return true
}

// reconcile applies a poll result: COMPLETE hands the op to
// aggregate.CompleteOp, which owns every decision about signaling and
// returning ops to the pool (see its doc comment); INACTIVE only unlinks the
// op from the active list itself, and that unlink is the only step taken
// under the list lock.
func (d *Driver) reconcile(ctx *pool.Context, op *pool.Op, res pool.Result) {
	if res.Complete() {
		aggregate.CompleteOp(d.arena, ctx, op)
	}
	if res.Inactive() {
		d.list.mu.Lock()
		d.list.remove(op.Index)
		d.list.mu.Unlock()
	}
}
