package pool

import (
	"sync"
	"sync/atomic"
)

// Handle is the lightweight token returned to the client. It is a
// (buffer-index, slot-index) pair into a HandlePool's chunked arena, widened
// from the reference engine's byte-pair encoding (which reserved the literal
// value (0xFF,0xFF) as its sentinel) so a long-running process is not capped
// at 255 chunks.
type Handle struct {
	buf  uint32
	slot uint32
}

// InvalidHandle is distinguishable from any handle a HandlePool ever mints.
var InvalidHandle = Handle{buf: ^uint32(0), slot: ^uint32(0)}

// Valid reports whether h could have been returned by HandlePool.Create.
func (h Handle) Valid() bool { return h != InvalidHandle }

type handleSlot struct {
	done  atomic.Uint32
	owner uint64
	inUse bool
}

// HandlePool is the shared, chunk-allocated arena backing Handle. Per-thread
// fast paths live on Context.
type HandlePool struct {
	mu     sync.Mutex
	chunks [][]handleSlot
}

func NewHandlePool() *HandlePool {
	return &HandlePool{}
}

func (p *HandlePool) slotAt(h Handle) *handleSlot {
	return &p.chunks[h.buf][h.slot]
}

// refill allocates a fresh chunk of 256 handle slots and returns their
// addresses.
func (p *HandlePool) refill() []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := uint32(len(p.chunks))
	p.chunks = append(p.chunks, make([]handleSlot, chunkSize))
	out := make([]Handle, chunkSize)
	for i := range out {
		out[i] = Handle{buf: buf, slot: uint32(i)}
	}
	return out
}

// HandleCreate returns a new pending handle owned by ctx's thread, refilling
// this thread's free list from the shared pool in chunks of 256 as needed.
func (c *Context) HandleCreate() Handle {
	if len(c.freeHandles) == 0 {
		c.freeHandles = append(c.freeHandles, c.handles.refill()...)
	}
	n := len(c.freeHandles) - 1
	h := c.freeHandles[n]
	c.freeHandles = c.freeHandles[:n]

	s := c.handles.slotAt(h)
	s.done.Store(0)
	s.owner = c.ThreadID
	s.inUse = true
	return h
}

// HandleSignal marks h done. Safe to call from any thread (handle signaling
// crosses threads routinely — the poller that completes an op is rarely its
// creator).
func (c *Context) HandleSignal(h Handle) {
	c.handles.slotAt(h).done.Store(1)
}

// HandleDone reports whether h is done, and if so recycles it onto the
// owning thread's free list. A caller observing true has, by virtue of the
// atomic load, also observed every write that happened before the
// corresponding HandleSignal — no separate read fence is needed under Go's
// memory model.
func (c *Context) HandleDone(h Handle) bool {
	s := c.handles.slotAt(h)
	if s.done.Load() == 0 {
		return false
	}
	s.inUse = false
	c.freeHandles = append(c.freeHandles, h)
	return true
}
