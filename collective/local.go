package collective

import "github.com/luxfi/pgasc/pool"

// localBroadcast and localScatter/localGather are the M-variant's
// same-process fan-out/fan-in helpers (spec §4.6: "the owning thread fans
// out locally... before signaling OUT"). Every image an M-variant entry
// point addresses through Params.DstList/SrcList lives in this rank's own
// memory, so these are plain copies, no RMA round-trip, unlike the
// network-facing half of the same op.

// localBroadcast copies the rank-level result already landed in primary
// into every other locally hosted image's destination.
func localBroadcast(primary []byte, rest [][]byte) {
	for _, dst := range rest {
		copy(dst, primary)
	}
}

// localScatter re-slices a rank-level aggregate (one NBytes piece per
// locally hosted image, in image order) across each image's own
// destination buffer.
func localScatter(aggregate []byte, nbytes int, rest [][]byte) {
	off := len(aggregate) - nbytes*len(rest)
	for _, dst := range rest {
		copy(dst, aggregate[off:off+nbytes])
		off += nbytes
	}
}

// localGather concatenates every locally hosted image's own source buffer
// (image 0 first) into one rank-level aggregate, the shape the network
// gather contribution expects.
func localGather(first []byte, rest [][]byte, nbytes int) []byte {
	agg := make([]byte, nbytes*(1+len(rest)))
	copy(agg[:nbytes], first)
	off := nbytes
	for _, src := range rest {
		copy(agg[off:off+nbytes], src)
		off += nbytes
	}
	return agg
}

// wireLocalFanout attaches a one-shot, synchronous local fan-out to s: a
// plain memcpy runs to completion inside the op's StateFanout step, right
// after WaitLocal, so it never needs its own polled completion check (spec §4.6's fan-out state, StateFanout
// in core.go, degenerates to "always done" for same-process work).
func wireLocalFanout(s *scaffold, do func()) {
	s.fanoutIssue = func(op *pool.Op, e *Engine) error {
		do()
		return nil
	}
	s.fanoutDone = func(op *pool.Op, e *Engine) bool { return true }
}

// NewBroadcastM is broadcast's LOCAL-addressing (M-variant) entry point.
// On a non-root rank, Params.DstList must carry exactly MyImages(rank)
// destinations, one per image this rank hosts; DstAddr is resolved from
// DstList[MyFirstImage(self, true)] rather than supplied directly, per
// Mapping.MyFirstImage's LOCAL convention of addressing a thread's own
// image list starting at 0. The caller supplies imageBufs, its own Go
// buffers for images 1..MyImages-1 in list order (localBuf is image 0's
// buffer and is not repeated in imageBufs).
func NewBroadcastM(ctx *pool.Context, e *Engine, p Params, localBuf []byte, imageBufs [][]byte) (*pool.Op, error) {
	if !p.Flags.isLocal() {
		return nil, &ErrBadArg{Msg: "NewBroadcastM requires the LOCAL addressing flag"}
	}
	myImages := e.Images.MyImages(e.MyRank)
	isRoot := e.MyRank == p.Root
	if len(imageBufs) != wantImageBufs(myImages) {
		return nil, &ErrBadArg{Msg: "imageBufs must carry one entry per locally hosted image beyond the first"}
	}

	// The network-level transfer below addresses exactly one slot per rank,
	// same as SINGLE; only the fan-out that follows is LOCAL-specific, so
	// NewBroadcast is called with Single substituted in for Local. Root is
	// the broadcast's single source (Params.SrcAddr), so DstList only
	// applies to non-root ranks, each of which owns MyImages(rank)
	// destinations; MyFirstImage(self, true) resolves which of those is the
	// one localBuf already addresses.
	primary := p
	primary.Flags = (p.Flags &^ Local) | Single
	if !isRoot {
		if len(p.DstList) != myImages {
			return nil, &ErrBadArg{Msg: "DstList must carry one destination address per locally hosted image"}
		}
		for _, addr := range p.DstList {
			if err := validate(e.Segments, e.MyRank, addr, p.NBytes, p.Flags.dstInSeg()); err != nil {
				return nil, err
			}
		}
		primary.DstAddr = p.DstList[e.Images.MyFirstImage(e.MyRank, true)]
	}
	op, err := NewBroadcast(ctx, e, primary, localBuf)
	if err != nil {
		return nil, err
	}
	if myImages > 1 {
		a := op.Data.(*BcastArgs)
		wireLocalFanout(&a.sc, func() {
			localBroadcast(localBuf[:p.NBytes], imageBufs)
		})
	}
	return op, nil
}

// NewScatterM is scatter's LOCAL-addressing entry point: root's SrcAddr
// still holds one NBytes piece per image team-wide (NewScatter already
// derives per-rank byte ranges from Mapping), but every rank additionally
// re-slices its own MyImages(rank)*NBytes piece across DstList. localBuf
// must therefore be sized MyImages(rank)*NBytes, the whole rank-level piece
// the network transfer lands in one shot; imageBufs receives the pieces for
// every image but the first, which localScatter re-slices out of localBuf's
// own tail, leaving localBuf's own first NBytes holding image 0's piece.
func NewScatterM(ctx *pool.Context, e *Engine, p Params, localBuf []byte, imageBufs [][]byte) (*pool.Op, error) {
	if !p.Flags.isLocal() {
		return nil, &ErrBadArg{Msg: "NewScatterM requires the LOCAL addressing flag"}
	}
	myImages := e.Images.MyImages(e.MyRank)
	if len(p.DstList) != myImages || len(imageBufs) != wantImageBufs(myImages) {
		return nil, &ErrBadArg{Msg: "DstList/imageBufs must carry one entry per locally hosted image beyond the first"}
	}
	for _, addr := range p.DstList {
		if err := validate(e.Segments, e.MyRank, addr, p.NBytes, p.Flags.dstInSeg()); err != nil {
			return nil, err
		}
	}

	// Every rank, root included, receives its own piece, so unlike
	// broadcast DstList always applies here; MyFirstImage(self, true)
	// resolves which entry is the one localBuf already addresses.
	primary := p
	primary.Flags = (p.Flags &^ Local) | Single
	primary.DstAddr = p.DstList[e.Images.MyFirstImage(e.MyRank, true)]
	op, err := NewScatter(ctx, e, primary, localBuf)
	if err != nil {
		return nil, err
	}
	if myImages > 1 {
		a := op.Data.(*ScatterArgs)
		myPieceBytes := myImages * p.NBytes
		wireLocalFanout(&a.sc, func() {
			localScatter(localBuf[:myPieceBytes], p.NBytes, imageBufs)
		})
	}
	return op, nil
}

// NewGatherM is gather's LOCAL-addressing entry point: this rank's
// contribution to the network gather is the concatenation of every locally
// hosted image's own source (SrcList), assembled once up front with
// localGather. The assembly happens before the op is even constructed,
// since unlike a network transfer it is a synchronous same-process copy
// with nothing to poll.
func NewGatherM(ctx *pool.Context, e *Engine, p Params, firstImageSrc []byte, imageBufs [][]byte) (*pool.Op, error) {
	if !p.Flags.isLocal() {
		return nil, &ErrBadArg{Msg: "NewGatherM requires the LOCAL addressing flag"}
	}
	myImages := e.Images.MyImages(e.MyRank)
	if len(p.SrcList) != myImages || len(imageBufs) != wantImageBufs(myImages) {
		return nil, &ErrBadArg{Msg: "SrcList/imageBufs must carry one entry per locally hosted image beyond the first"}
	}
	for _, addr := range p.SrcList {
		if err := validate(e.Segments, e.MyRank, addr, p.NBytes, p.Flags.srcInSeg()); err != nil {
			return nil, err
		}
	}

	// Every rank, root included, contributes its own piece, so SrcList
	// always applies; MyFirstImage(self, true) resolves which entry
	// firstImageSrc already addresses.
	primary := p
	primary.Flags = (p.Flags &^ Local) | Single
	primary.SrcAddr = p.SrcList[e.Images.MyFirstImage(e.MyRank, true)]
	aggregate := localGather(firstImageSrc, imageBufs, p.NBytes)
	return NewGather(ctx, e, primary, aggregate)
}

// wantImageBufs returns how many extra per-image buffers a caller must
// supply beyond the rank-level primary: every locally hosted image past
// the first, or zero if this rank hosts none.
func wantImageBufs(myImages int) int {
	if myImages == 0 {
		return 0
	}
	return myImages - 1
}
