// Package p2p implements the point-to-point eager table: one slot per
// (team, sequence) pair, used for sub-message rendezvous between ranks.
// Hashed into a fixed-size bucket table (default 16), with chaining and a
// shared freelist, modeled on the bucket/chain shape of the teacher's
// networking/router dispatch tables.
package p2p

import (
	"sync"
	"sync/atomic"
)

// DefaultBuckets is the reference engine's default P2P table size.
const DefaultBuckets = 16

// Sizing defaults for a slot's payload area, recovered from
// original_source/gasnet_internal.h's eager-buffer sizing commentary.
const (
	DefaultEagerMin   = 4096
	DefaultEagerScale = 1024
)

// Key identifies a slot.
type Key struct {
	Team     uint64
	Sequence uint32
}

// Slot is one P2P eager buffer. State[i] is the per-image synchronization
// word; Data is the bounded payload area. Payload writes are ordered before
// the corresponding State store by a plain (non-atomic) write followed by an
// atomic.Uint32.Store; readers load State atomically before touching Data —
// Go's memory model gives atomic store/load the release/acquire pairing the
// reference engine gets from explicit fences.
type Slot struct {
	key   Key
	State []atomic.Uint32
	Data  []byte

	next *Slot // chain link within its bucket
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

func newSlot(images int, eagerMin, eagerScale int) *Slot {
	stateSize := alignUp(images, 2) // word array; alignUp to 8 bytes == 2 uint32s
	dataSize := eagerMin
	if v := images * eagerScale; v > dataSize {
		dataSize = v
	}
	return &Slot{
		State: make([]atomic.Uint32, stateSize),
		Data:  make([]byte, dataSize),
	}
}

func (s *Slot) reset(key Key) {
	s.key = key
	for i := range s.State {
		s.State[i].Store(0)
	}
	for i := range s.Data {
		s.Data[i] = 0
	}
	s.next = nil
}

type bucket struct {
	mu    sync.Mutex
	chain *Slot
}

// Table is the shared P2P eager table.
type Table struct {
	buckets    []bucket
	eagerMin   int
	eagerScale int

	freeMu sync.Mutex
	free   *Slot
}

// Config parameterizes a Table; zero values select the reference defaults.
type Config struct {
	Buckets    int
	EagerMin   int
	EagerScale int
}

func NewTable(cfg Config) *Table {
	if cfg.Buckets <= 0 {
		cfg.Buckets = DefaultBuckets
	}
	if cfg.EagerMin <= 0 {
		cfg.EagerMin = DefaultEagerMin
	}
	if cfg.EagerScale <= 0 {
		cfg.EagerScale = DefaultEagerScale
	}
	return &Table{
		buckets:    make([]bucket, cfg.Buckets),
		eagerMin:   cfg.EagerMin,
		eagerScale: cfg.EagerScale,
	}
}

func (t *Table) bucketFor(seq uint32) *bucket {
	return &t.buckets[int(seq)%len(t.buckets)]
}

// Get finds or creates the slot for key, sized for totalImages. Lookup
// auto-creates on first touch per spec §3's slot invariant.
func (t *Table) Get(key Key, totalImages int) *Slot {
	b := t.bucketFor(key.Sequence)
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := b.chain; s != nil; s = s.next {
		if s.key == key {
			return s
		}
	}

	s := t.popFree(totalImages)
	s.reset(key)
	s.next = b.chain
	b.chain = s
	return s
}

// Free unlinks key's slot and returns it to the shared freelist. The caller
// must be the slot's sole consumer; the table does not count references.
func (t *Table) Free(key Key) {
	b := t.bucketFor(key.Sequence)
	b.mu.Lock()
	var prev *Slot
	cur := b.chain
	for cur != nil {
		if cur.key == key {
			if prev == nil {
				b.chain = cur.next
			} else {
				prev.next = cur.next
			}
			break
		}
		prev = cur
		cur = cur.next
	}
	b.mu.Unlock()

	if cur != nil {
		t.pushFree(cur)
	}
}

func (t *Table) popFree(images int) *Slot {
	t.freeMu.Lock()
	s := t.free
	if s != nil {
		t.free = s.next
	}
	t.freeMu.Unlock()
	if s == nil || len(s.State) < alignUp(images, 2) {
		return newSlot(images, t.eagerMin, t.eagerScale)
	}
	return s
}

func (t *Table) pushFree(s *Slot) {
	t.freeMu.Lock()
	s.next = t.free
	t.free = s
	t.freeMu.Unlock()
}

// Empty reports whether every bucket is empty, asserted at shutdown per
// spec §3.
func (t *Table) Empty() bool {
	for i := range t.buckets {
		t.buckets[i].mu.Lock()
		empty := t.buckets[i].chain == nil
		t.buckets[i].mu.Unlock()
		if !empty {
			return false
		}
	}
	return true
}
