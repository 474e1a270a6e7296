package collective

import (
	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// NewGatherAll builds a gather-all op: every rank ends up with every other
// rank's contribution. Composed of one NOSYNC gather per root (spec §4.6),
// all issued together and driven to completion by a single outer scaffold
// whose own IN/OUT sync brackets the whole batch, since per-gather barriers
// would serialize what can run concurrently.
func NewGatherAll(ctx *pool.Context, e *Engine, p Params, localBuf []byte, dsts []uintptr) (*pool.Op, error) {
	if err := p.Flags.Validate(); err != nil {
		return nil, err
	}
	if p.Flags.isLocal() {
		return nil, &ErrBadArg{Msg: "NewGatherAll does not support LOCAL addressing: no M-variant composition is implemented for gather-all"}
	}
	nRanks := len(e.Images.ImagesPerRank)

	algo, err := Select(p.Flags, p.NBytes, e.EagerMin)
	if err != nil {
		return nil, err
	}
	outerOpts := DeriveSyncOptions(p.Flags, algo)

	args := &GatherAllArgs{Params: p, Dsts: dsts}
	args.sc.Opts = outerOpts
	args.sc.kind = "gatherall"
	if e.Metrics != nil {
		e.Metrics.OpsSubmitted.WithLabelValues("gatherall").Inc()
	}
	if outerOpts.InSync {
		args.sc.InID = e.Barrier.Mint()
	}
	if outerOpts.OutSync {
		args.sc.OutID = e.Barrier.Mint()
	}

	op := ctx.AllocOp()
	op.Kind = pool.KindAlgorithm
	op.Sequence = e.NextSequence()
	op.Data = args

	args.sc.issue = func(op *pool.Op, e *Engine) error {
		noSync := (p.Flags &^ (syncInMask | syncOutMask)) | InNoSync | OutNoSync
		for r := 0; r < nRanks; r++ {
			sub := p
			sub.Root = transport.Rank(r)
			sub.DstAddr = dsts[r]
			sub.Flags = noSync
			subOp, err := NewGather(ctx, e, sub, localBuf)
			if err != nil {
				return err
			}
			args.subOp = append(args.subOp, subOp)
		}
		return nil
	}

	args.sc.localDone = func(op *pool.Op, e *Engine) bool {
		for _, sub := range args.subOp {
			res := sub.PollFn(sub)
			if !res.Complete() {
				return false
			}
		}
		return true
	}

	op.PollFn = makePollFunc(e)
	if outerOpts.OutSync {
		op.Handle = ctx.HandleCreate()
	}
	return op, nil
}
