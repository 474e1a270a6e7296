package collective

import (
	"context"

	"github.com/luxfi/pgasc/p2p"
	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// NewScatter builds a scatter op: root's localBuf holds one
// NBytes-per-image piece for every image in the team, laid out in rank
// order with each rank's images contiguous (spec §4.6); every rank receives
// its own rank-level slice, MyImages(rank)*NBytes bytes, into its own
// localBuf. Under SINGLE addressing every rank hosts exactly one image and
// this collapses to the original one-piece-per-rank layout.
func NewScatter(ctx *pool.Context, e *Engine, p Params, localBuf []byte) (*pool.Op, error) {
	claimedDst := p.Flags&DstInSegment != 0
	claimedSrc := p.Flags&SrcInSegment != 0
	if err := p.Flags.Validate(); err != nil {
		return nil, err
	}
	if p.Flags.isLocal() {
		return nil, &ErrBadArg{Msg: "NewScatter does not support LOCAL addressing; use NewScatterM"}
	}
	isRoot := e.MyRank == p.Root
	myPieceBytes := e.Images.MyImages(e.MyRank) * p.NBytes
	if isRoot {
		if err := validate(e.Segments, e.MyRank, p.SrcAddr, p.NBytes*e.Images.Total, claimedSrc); err != nil {
			return nil, err
		}
	} else {
		if err := validate(e.Segments, e.MyRank, p.DstAddr, myPieceBytes, claimedDst); err != nil {
			return nil, err
		}
	}

	algo, err := Select(p.Flags, p.NBytes, e.EagerMin)
	if err != nil {
		return nil, err
	}
	opts := DeriveSyncOptions(p.Flags, algo)

	args := &ScatterArgs{Params: p, Algo: algo}
	args.sc.Opts = opts
	args.sc.kind = "scatter"
	if e.Metrics != nil {
		e.Metrics.OpsSubmitted.WithLabelValues("scatter").Inc()
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

	wireScatter(args, e, isRoot, localBuf, algo)

	op.PollFn = makePollFunc(e)
	if opts.OutSync {
		op.Handle = ctx.HandleCreate()
	}
	return op, nil
}

func wireScatter(a *ScatterArgs, e *Engine, isRoot bool, localBuf []byte, algo Algorithm) {
	type scatterState struct {
		handles []transport.CompletionHandle
		slot    *p2p.Slot
		done    bool
	}
	st := &scatterState{}
	nRanks := len(e.Images.ImagesPerRank)
	myPieceBytes := e.Images.MyImages(e.MyRank) * a.NBytes

	a.sc.issue = func(op *pool.Op, e *Engine) error {
		ctx := context.Background()
		switch algo {
		case AlgoEager:
			key := p2p.Key{Team: uint64(op.Team), Sequence: op.Sequence}
			st.slot = e.P2P.Get(key, e.Images.Total)
			if isRoot {
				for r := 0; r < nRanks; r++ {
					off := e.Images.FirstImage(transport.Rank(r)) * a.NBytes
					count := e.Images.MyImages(transport.Rank(r))
					n := count * a.NBytes
					piece := localBuf[off : off+n]
					if transport.Rank(r) == a.Root {
						st.slot.EagerPayload(e.Images.FirstImage(transport.Rank(r)), piece, a.NBytes, count, 1)
						continue
					}
					hdr := []uint32{uint32(op.Team), op.Sequence, uint32(a.NBytes), uint32(e.Images.FirstImage(transport.Rank(r))), uint32(count)}
					if err := e.AM.RequestMedium(ctx, transport.Rank(r), scatterAMOp, hdr, piece); err != nil {
						return err
					}
				}
			}
		case AlgoPut, AlgoRVPut:
			if !isRoot {
				return nil
			}
			for r := 0; r < nRanks; r++ {
				if transport.Rank(r) == a.Root {
					continue
				}
				off := e.Images.FirstImage(transport.Rank(r)) * a.NBytes
				n := e.Images.MyImages(transport.Rank(r)) * a.NBytes
				piece := localBuf[off : off+n]
				h, err := e.RMA.PutNB(ctx, transport.Rank(r), a.DstAddr, piece)
				if err != nil {
					return err
				}
				st.handles = append(st.handles, h)
			}
		default: // Get, RVGet
			if isRoot {
				return nil
			}
			srcOff := uintptr(e.Images.MyFirstImage(e.MyRank, false) * a.NBytes)
			h, err := e.RMA.GetNB(ctx, a.Root, a.SrcAddr+srcOff, localBuf[:myPieceBytes])
			if err != nil {
				return err
			}
			st.handles = append(st.handles, h)
		}
		return nil
	}

	a.sc.localDone = func(op *pool.Op, e *Engine) bool {
		e.AM.Poll()
		if st.done {
			return true
		}
		switch algo {
		case AlgoEager:
			if isRoot {
				st.done = true
				return true
			}
			data, ready := st.slot.ReadAfterState(e.Images.MyFirstImage(e.MyRank, false), a.NBytes, myPieceBytes)
			if ready {
				copy(localBuf[:myPieceBytes], data)
				st.done = true
			}
			return ready
		case AlgoPut, AlgoRVPut:
			if !isRoot {
				st.done = true
				return true
			}
		}
		for _, h := range st.handles {
			ok, err := e.RMA.TrySync(h)
			if err != nil || !ok {
				return false
			}
		}
		st.done = true
		return true
	}
}

// scatterAMOp carries one rank's slice of the scattered payload.
const scatterAMOp uint8 = 3

func registerScatterHandler(e *Engine) {
	e.AM.RegisterHandler(scatterAMOp, transport.AMMedium, func(from transport.Rank, header []uint32, payload []byte) {
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
