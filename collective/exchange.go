package collective

import (
	"context"

	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// NewExchange builds an all-to-all personalized exchange: srcs[r] is the
// NBytes local buffer this rank sends to rank r, dsts[r] is the remote
// address on rank r where this rank's contribution should land, per spec
// §4.6's exchange Non-goal-adjacent "personalized alltoall" shape.
func NewExchange(ctx *pool.Context, e *Engine, p Params, dsts []uintptr, srcs [][]byte) (*pool.Op, error) {
	if err := p.Flags.Validate(); err != nil {
		return nil, err
	}
	if p.Flags.isLocal() {
		return nil, &ErrBadArg{Msg: "NewExchange does not support LOCAL addressing: no M-variant reindexing is implemented for exchange"}
	}
	nRanks := len(e.Images.ImagesPerRank)
	if len(dsts) != nRanks || len(srcs) != nRanks {
		return nil, &ErrBadArg{Msg: "exchange requires one dst address and one src buffer per rank"}
	}

	algo, err := Select(p.Flags, p.NBytes, e.EagerMin)
	if err != nil {
		return nil, err
	}
	opts := DeriveSyncOptions(p.Flags, algo)

	args := &ExchangeArgs{Params: p, Dsts: dsts}
	args.sc.Opts = opts
	args.sc.kind = "exchange"
	if e.Metrics != nil {
		e.Metrics.OpsSubmitted.WithLabelValues("exchange").Inc()
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

	var handles []transport.CompletionHandle

	args.sc.issue = func(op *pool.Op, e *Engine) error {
		ctx := context.Background()
		for r := 0; r < nRanks; r++ {
			if transport.Rank(r) == e.MyRank {
				continue
			}
			h, err := e.RMA.PutNB(ctx, transport.Rank(r), dsts[r], srcs[r][:p.NBytes])
			if err != nil {
				return err
			}
			handles = append(handles, h)
		}
		return nil
	}

	args.sc.localDone = func(op *pool.Op, e *Engine) bool {
		e.AM.Poll()
		for _, h := range handles {
			ok, err := e.RMA.TrySync(h)
			if err != nil || !ok {
				return false
			}
		}
		return true
	}

	op.PollFn = makePollFunc(e)
	if opts.OutSync {
		op.Handle = ctx.HandleCreate()
	}
	return op, nil
}
