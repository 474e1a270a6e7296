package collective

import (
	"context"

	"github.com/luxfi/pgasc/p2p"
	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// eagerAMOp is the active-message opcode broadcast's Eager algorithm uses for
// payload delivery (rendezvous signaling, scatter and gather each have their
// own opcode). The header carries (team, sequence, nbytes) and the handler
// demultiplexes by looking up the matching p2p.Table slot.
const eagerAMOp uint8 = 1

// rvSignalAMOp carries no payload, only a header (team, sequence): it marks
// a rendezvous-put's destination slot ready once the preceding PutNB has
// landed, letting the receiver's localDone resolve without an OUT barrier.
const rvSignalAMOp uint8 = 2

// NewBroadcast builds a broadcast op: root's localBuf is the source, every
// other rank's localBuf is the NBytes-sized destination the op
// fills in, per spec §4.6. The caller is responsible for inserting the
// returned op into the active list.
func NewBroadcast(ctx *pool.Context, e *Engine, p Params, localBuf []byte) (*pool.Op, error) {
	claimedDst := p.Flags&DstInSegment != 0
	claimedSrc := p.Flags&SrcInSegment != 0
	if err := p.Flags.Validate(); err != nil {
		return nil, err
	}
	if p.Flags.isLocal() {
		return nil, &ErrBadArg{Msg: "NewBroadcast does not support LOCAL addressing; use NewBroadcastM"}
	}
	isRoot := e.MyRank == p.Root
	if isRoot {
		if err := validate(e.Segments, e.MyRank, p.SrcAddr, p.NBytes, claimedSrc); err != nil {
			return nil, err
		}
	} else {
		if err := validate(e.Segments, e.MyRank, p.DstAddr, p.NBytes, claimedDst); err != nil {
			return nil, err
		}
	}

	algo, err := Select(p.Flags, p.NBytes, e.EagerMin)
	if err != nil {
		return nil, err
	}
	opts := DeriveSyncOptions(p.Flags, algo)

	args := &BcastArgs{Params: p, Algo: algo}
	args.sc.Opts = opts
	args.sc.kind = "broadcast"
	if e.Metrics != nil {
		e.Metrics.OpsSubmitted.WithLabelValues("broadcast").Inc()
	}
	if opts.InSync {
		args.sc.InID = e.Barrier.Mint()
	}
	if opts.OutSync {
		args.sc.OutID = e.Barrier.Mint()
	}

	op := ctx.AllocOp()
	op.Team = 0
	op.Kind = pool.KindAlgorithm
	op.Sequence = e.NextSequence()
	op.Data = args

	switch algo {
	case AlgoPut, AlgoRVPut:
		wireBcastPut(args, e, isRoot, localBuf, algo == AlgoRVPut)
	case AlgoGet, AlgoRVGet:
		wireBcastGet(args, e, isRoot, localBuf, algo == AlgoRVGet)
	case AlgoEager:
		wireBcastEager(args, e, isRoot, localBuf)
	}

	op.PollFn = makePollFunc(e)
	if opts.OutSync {
		op.Handle = ctx.HandleCreate()
	}
	return op, nil
}

// wireBcastPut implements the Put/RVPut algorithms: root issues one PutNB
// per peer; a plain Put relies on the OUT barrier to signal arrival, while
// RVPut additionally follows up with a short AM so the peer's localDone
// resolves without waiting on a team-wide barrier (spec §4.6's distinction
// between barrier-gated and AM-gated completion).
func wireBcastPut(a *BcastArgs, e *Engine, isRoot bool, localBuf []byte, rendezvous bool) {
	type putState struct {
		handles []transport.CompletionHandle
		slot    *p2p.Slot
		done    bool
	}
	st := &putState{}

	a.sc.issue = func(op *pool.Op, e *Engine) error {
		ctx := context.Background()
		if !isRoot {
			if rendezvous {
				st.slot = e.P2P.Get(p2p.Key{Team: uint64(op.Team), Sequence: op.Sequence}, e.Images.Total)
			}
			return nil
		}
		for r := 0; r < len(e.Images.ImagesPerRank); r++ {
			peer := transport.Rank(r)
			if peer == a.Root {
				continue
			}
			h, err := e.RMA.PutNB(ctx, peer, a.DstAddr, localBuf[:a.NBytes])
			if err != nil {
				return err
			}
			st.handles = append(st.handles, h)
			if rendezvous {
				if err := e.AM.RequestShort(ctx, peer, rvSignalAMOp, []uint32{uint32(op.Team), op.Sequence}); err != nil {
					return err
				}
			}
		}
		return nil
	}

	a.sc.localDone = func(op *pool.Op, e *Engine) bool {
		e.AM.Poll()
		if isRoot {
			for _, h := range st.handles {
				ok, err := e.RMA.TrySync(h)
				if err != nil || !ok {
					return false
				}
			}
			return true
		}
		if !rendezvous {
			return true
		}
		if st.done {
			return true
		}
		_, ready := st.slot.ReadAfterState(0, 1, 1)
		st.done = ready
		return ready
	}
}

// wireBcastGet implements Get/RVGet: every non-root rank pulls directly
// from root's published source address.
func wireBcastGet(a *BcastArgs, e *Engine, isRoot bool, localBuf []byte, rendezvous bool) {
	var handle transport.CompletionHandle
	var issued bool

	a.sc.issue = func(op *pool.Op, e *Engine) error {
		if isRoot {
			return nil
		}
		ctx := context.Background()
		h, err := e.RMA.GetNB(ctx, a.Root, a.SrcAddr, localBuf[:a.NBytes])
		if err != nil {
			return err
		}
		handle = h
		issued = true
		return nil
	}

	a.sc.localDone = func(op *pool.Op, e *Engine) bool {
		e.AM.Poll()
		if isRoot || !issued {
			return true
		}
		ok, err := e.RMA.TrySync(handle)
		return err == nil && ok
	}
}

// wireBcastEager implements the Eager algorithm: root pushes the payload to
// every peer via an active message straight into the peer's p2p.Table slot;
// no RMA segment round-trip. Root also stamps its own slot; root's own
// localDone reports done at once without reading it.
func wireBcastEager(a *BcastArgs, e *Engine, isRoot bool, localBuf []byte) {
	type eagerState struct {
		slot *p2p.Slot
		done bool
	}
	st := &eagerState{}

	a.sc.issue = func(op *pool.Op, e *Engine) error {
		key := p2p.Key{Team: uint64(op.Team), Sequence: op.Sequence}
		st.slot = e.P2P.Get(key, e.Images.Total)
		ctx := context.Background()
		if isRoot {
			st.slot.EagerPayload(0, localBuf[:a.NBytes], a.NBytes, 1, 1)
			for r := 0; r < len(e.Images.ImagesPerRank); r++ {
				peer := transport.Rank(r)
				if peer == a.Root {
					continue
				}
				hdr := []uint32{uint32(op.Team), op.Sequence, uint32(a.NBytes)}
				if err := e.AM.RequestMedium(ctx, peer, eagerAMOp, hdr, localBuf[:a.NBytes]); err != nil {
					return err
				}
			}
		}
		return nil
	}

	a.sc.localDone = func(op *pool.Op, e *Engine) bool {
		e.AM.Poll()
		if st.done {
			return true
		}
		if isRoot {
			st.done = true
			return true
		}
		data, ready := st.slot.ReadAfterState(0, a.NBytes, 1)
		if ready {
			copy(localBuf[:a.NBytes], data[:a.NBytes])
			e.P2P.Free(p2p.Key{Team: uint64(op.Team), Sequence: op.Sequence})
			st.done = true
		}
		return ready
	}
}

// registerAMHandlers wires the two AM handlers the collective layer needs:
// eager payload delivery and rendezvous-put completion signaling.
// bootstrap.Init registers these once per Engine.
func registerAMHandlers(e *Engine) {
	e.AM.RegisterHandler(eagerAMOp, transport.AMMedium, func(from transport.Rank, header []uint32, payload []byte) {
		if len(header) < 3 {
			return
		}
		key := p2p.Key{Team: uint64(header[0]), Sequence: header[1]}
		nbytes := int(header[2])
		slot := e.P2P.Get(key, e.Images.Total)
		slot.EagerPayload(0, payload[:nbytes], nbytes, 1, 1)
		if e.Metrics != nil {
			e.Metrics.EagerBytes.Add(float64(nbytes))
		}
	})

	e.AM.RegisterHandler(rvSignalAMOp, transport.AMShort, func(from transport.Rank, header []uint32, payload []byte) {
		if len(header) < 2 {
			return
		}
		key := p2p.Key{Team: uint64(header[0]), Sequence: header[1]}
		slot := e.P2P.Get(key, e.Images.Total)
		slot.PutSignal(0, nil, 0, 1)
	})
}
