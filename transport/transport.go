// Package transport defines the external collaborators the collective
// engine consumes but does not implement: one-sided RMA put/get, the
// active-message transport, the team barrier primitive, and bootstrap.
// Concrete implementations live in transport/inproc (tests, single process)
// and transport/zmq4 (real network, backed by github.com/luxfi/zmq/v4).
package transport

import "context"

// Rank identifies one process participating in the run.
type Rank int

// CompletionHandle is an opaque, transport-owned token for a non-blocking
// RMA operation's completion, tested via RMA.TrySync.
type CompletionHandle uint64

// AccessRegion batches a group of non-blocking-implicit puts issued between
// BeginAccessRegion and EndAccessRegion into one CompletionHandle, per
// spec §4.6's "Put" algorithm (root opens a region, issues one put per
// peer, then closes into a single implicit handle).
type AccessRegion interface {
	Put(ctx context.Context, dst Rank, addr uintptr, src []byte) error
}

// RMA is the one-sided put/get transport. Implicit-handle calls return a
// CompletionHandle tested later via TrySync; this core never blocks inside
// a poll function, so only the non-blocking entry points are used.
type RMA interface {
	GetNB(ctx context.Context, src Rank, srcAddr uintptr, dstBuf []byte) (CompletionHandle, error)
	PutNB(ctx context.Context, dst Rank, dstAddr uintptr, src []byte) (CompletionHandle, error)

	BeginAccessRegion() AccessRegion
	EndAccessRegion(AccessRegion) (CompletionHandle, error)

	// TrySync reports whether h has completed locally. It must not block.
	TrySync(h CompletionHandle) (bool, error)
}

// AMKind selects which of the three active-message size classes a request
// uses, per spec §1/§6.
type AMKind uint8

const (
	AMShort AMKind = iota
	AMMedium
	AMLong
)

// Published per-kind maxima the selector and the eager fragmenter consult,
// matching spec §1's "bounded maximum payload per kind."
type Limits struct {
	MaxMedium      int
	MaxLongRequest int
}

// AMHandler processes one inbound active-message request of a given kind.
// The collective engine registers its put-signal and eager-payload handlers
// through AM.RegisterHandler; the transport demultiplexes inbound wire
// frames to the right handler by an opaque Op code.
type AMHandler func(from Rank, header []uint32, payload []byte)

// AM is the active-message transport.
type AM interface {
	Limits() Limits

	RegisterHandler(op uint8, kind AMKind, h AMHandler)

	RequestShort(ctx context.Context, dst Rank, op uint8, header []uint32) error
	RequestMedium(ctx context.Context, dst Rank, op uint8, header []uint32, payload []byte) error
	RequestLong(ctx context.Context, dst Rank, op uint8, header []uint32, payload []byte, remoteAddr uintptr) error

	// Poll drains inbound messages, dispatching to registered handlers. It
	// must not block; it is called from the same poll pass as the
	// collective driver (spec §4.2/§5: "try_sync runs an AM-poll and a
	// collective-poll, then test handles").
	Poll()
}

// Barrier is the named, two-phase team-wide barrier the consensus layer
// sequences (spec §6). Reused directly as barrier.Notifier.
type Barrier interface {
	Notify(ctx context.Context, id uint64, named bool) error
	Try(ctx context.Context, id uint64, named bool) (ready bool, err error)
}

// Bootstrap is the MPI-style process group used only during Init: rank
// discovery, allgather, broadcast, barrier, and abort.
type Bootstrap interface {
	Size() int
	Rank() Rank
	Allgather(ctx context.Context, local []byte) ([][]byte, error)
	Broadcast(ctx context.Context, root Rank, data []byte) ([]byte, error)
	Barrier(ctx context.Context) error
	Abort(reason string)
}

// SegmentTable answers whether an address on a rank lies in that rank's
// registered RMA segment, used by the bounds-checking validation recovered
// from original_source/extended-ref/gasnet_coll_eager.c's
// gasnete_coll_validate.
type SegmentTable interface {
	InSegment(r Rank, addr uintptr, length int) bool
}
