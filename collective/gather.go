package collective

import (
	"context"

	"github.com/luxfi/pgasc/p2p"
	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// gatherAMOp carries one contributing rank's slice toward the root's
// destination buffer.
const gatherAMOp uint8 = 4

// NewGather builds a gather op: every rank's localBuf holds its
// MyImages(rank)*NBytes contribution; root's localBuf receives all
// contributions concatenated in rank order, each rank's images contiguous
// within its slice (spec §4.6). Under SINGLE addressing every rank hosts
// exactly one image and this collapses to the original one-piece-per-rank
// layout.
func NewGather(ctx *pool.Context, e *Engine, p Params, localBuf []byte) (*pool.Op, error) {
	claimedDst := p.Flags&DstInSegment != 0
	claimedSrc := p.Flags&SrcInSegment != 0
	if err := p.Flags.Validate(); err != nil {
		return nil, err
	}
	if p.Flags.isLocal() {
		return nil, &ErrBadArg{Msg: "NewGather does not support LOCAL addressing; use NewGatherM"}
	}
	nRanks := len(e.Images.ImagesPerRank)
	isRoot := e.MyRank == p.Root
	myPieceBytes := e.Images.MyImages(e.MyRank) * p.NBytes
	if isRoot {
		if err := validate(e.Segments, e.MyRank, p.DstAddr, p.NBytes*e.Images.Total, claimedDst); err != nil {
			return nil, err
		}
	} else {
		if err := validate(e.Segments, e.MyRank, p.SrcAddr, myPieceBytes, claimedSrc); err != nil {
			return nil, err
		}
	}

	algo, err := Select(p.Flags, p.NBytes, e.EagerMin)
	if err != nil {
		return nil, err
	}
	opts := DeriveSyncOptions(p.Flags, algo)

	args := &GatherArgs{Params: p, Algo: algo, RankOffset: int(e.MyRank)}
	args.sc.Opts = opts
	args.sc.kind = "gather"
	if e.Metrics != nil {
		e.Metrics.OpsSubmitted.WithLabelValues("gather").Inc()
	}
	if opts.InSync {
		args.sc.InID = e.Barrier.Mint()
	}
	if opts.OutSync {
		args.sc.OutID = e.Barrier.Mint()
	}

	op := ctx.AllocOp()
	op.Kind = pool.KindAlgorithm
	op.Sequence = e.NextSequence()
	op.Data = args

	wireGather(args, e, isRoot, localBuf, algo, nRanks)

	op.PollFn = makePollFunc(e)
	if opts.OutSync {
		op.Handle = ctx.HandleCreate()
	}
	return op, nil
}

// wireGather implements Get/Put/RVGet/RVPut normally, but the Eager
// algorithm needs the two-phase behavior the reference
// gasnete_coll_gather_Eager uses a single poll function for: phase one
// (non-root) pushes this rank's slice and is immediately done; phase one
// (root) also pushes its own slice into the shared slot, then phase two
// (root only) repeatedly re-checks every rank's slot state until all have
// landed. The pushes run in the issue closure and the re-check in the
// localDone closure below, each distinguished only by isRoot, so no extra
// scaffold state is needed.
func wireGather(a *GatherArgs, e *Engine, isRoot bool, localBuf []byte, algo Algorithm, nRanks int) {
	type gatherState struct {
		handle     transport.CompletionHandle
		issued     bool
		getHandles []transport.CompletionHandle
		slot       *p2p.Slot
		done       bool
	}
	st := &gatherState{}
	myPieceBytes := e.Images.MyImages(e.MyRank) * a.NBytes

	a.sc.issue = func(op *pool.Op, e *Engine) error {
		ctx := context.Background()
		switch algo {
		case AlgoEager:
			key := p2p.Key{Team: uint64(op.Team), Sequence: op.Sequence}
			st.slot = e.P2P.Get(key, e.Images.Total)
			piece := localBuf
			if isRoot {
				off := e.Images.MyFirstImage(e.MyRank, false) * a.NBytes
				piece = localBuf[off : off+myPieceBytes]
			}
			if isRoot {
				st.slot.EagerPayload(e.Images.MyFirstImage(e.MyRank, false), piece, a.NBytes, e.Images.MyImages(e.MyRank), 1)
				return nil
			}
			hdr := []uint32{
				uint32(op.Team), op.Sequence, uint32(a.NBytes),
				uint32(e.Images.MyFirstImage(e.MyRank, false)), uint32(e.Images.MyImages(e.MyRank)),
			}
			return e.AM.RequestMedium(ctx, a.Root, gatherAMOp, hdr, piece[:myPieceBytes])

		case AlgoPut, AlgoRVPut:
			if isRoot {
				return nil
			}
			offset := uintptr(e.Images.MyFirstImage(e.MyRank, false) * a.NBytes)
			h, err := e.RMA.PutNB(ctx, a.Root, a.DstAddr+offset, localBuf[:myPieceBytes])
			if err != nil {
				return err
			}
			st.handle = h
			st.issued = true
			return nil

		default: // Get, RVGet
			if !isRoot {
				return nil
			}
			for r := 0; r < nRanks; r++ {
				if transport.Rank(r) == a.Root {
					continue
				}
				off := e.Images.FirstImage(transport.Rank(r)) * a.NBytes
				n := e.Images.MyImages(transport.Rank(r)) * a.NBytes
				h, err := e.RMA.GetNB(ctx, transport.Rank(r), a.SrcAddr, localBuf[off:off+n])
				if err != nil {
					return err
				}
				st.getHandles = append(st.getHandles, h)
			}
			return nil
		}
	}

	a.sc.localDone = func(op *pool.Op, e *Engine) bool {
		e.AM.Poll()
		if st.done {
			return true
		}
		switch algo {
		case AlgoEager:
			if !isRoot {
				st.done = true
				return true
			}
			for r := 0; r < nRanks; r++ {
				n := e.Images.MyImages(transport.Rank(r)) * a.NBytes
				_, ready := st.slot.ReadAfterState(e.Images.FirstImage(transport.Rank(r)), a.NBytes, n)
				if !ready {
					return false
				}
			}
			for r := 0; r < nRanks; r++ {
				off := e.Images.FirstImage(transport.Rank(r)) * a.NBytes
				n := e.Images.MyImages(transport.Rank(r)) * a.NBytes
				data, _ := st.slot.ReadAfterState(e.Images.FirstImage(transport.Rank(r)), a.NBytes, n)
				copy(localBuf[off:off+n], data)
			}
			e.P2P.Free(p2p.Key{Team: uint64(op.Team), Sequence: op.Sequence})
			st.done = true
			return true

		case AlgoPut, AlgoRVPut:
			if isRoot || !st.issued {
				st.done = true
				return true
			}
			ok, err := e.RMA.TrySync(st.handle)
			if err != nil || !ok {
				return false
			}
			st.done = true
			return true

		default: // Get, RVGet
			if !isRoot {
				st.done = true
				return true
			}
			for _, h := range st.getHandles {
				ok, err := e.RMA.TrySync(h)
				if err != nil || !ok {
					return false
				}
			}
			st.done = true
			return true
		}
	}
}

func registerGatherHandler(e *Engine) {
	e.AM.RegisterHandler(gatherAMOp, transport.AMMedium, func(from transport.Rank, header []uint32, payload []byte) {
		if len(header) < 5 {
			return
		}
		key := p2p.Key{Team: uint64(header[0]), Sequence: header[1]}
		perImage := int(header[2])
		imgOffset := int(header[3])
		imgCount := int(header[4])
		nbytes := perImage * imgCount
		slot := e.P2P.Get(key, e.Images.Total)
		slot.EagerPayload(imgOffset, payload[:nbytes], perImage, imgCount, 1)
		if e.Metrics != nil {
			e.Metrics.EagerBytes.Add(float64(nbytes))
		}
	})
}
