package pgasc

import (
	"github.com/luxfi/pgasc/collective"
	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// The *NB entry points below always submit directly to the active list and
// return their own handle. A caller that wants AGGREGATE semantics
// (spec §4.4) should not use them: build the op with the matching
// collective.New* constructor directly, passing the Aggregate flag, and
// thread it through AccessRegionHandle.Add instead of submit.

// BroadcastNB issues a non-blocking broadcast: root's localBuf is the
// NBytes-sized source, every other rank's localBuf is the destination the
// op fills in. Returns the completion handle to poll with TrySync.
func (c *Client) BroadcastNB(ctx *pool.Context, team Team, root transport.Rank, dst, src uintptr, nbytes int, localBuf []byte, flags collective.Flags) (pool.Handle, error) {
	if err := team.validate(); err != nil {
		return pool.InvalidHandle, err
	}
	op, err := collective.NewBroadcast(ctx, c.state.Engine, collective.Params{
		Root: root, DstAddr: dst, SrcAddr: src, NBytes: nbytes, Flags: flags,
	}, localBuf)
	if err != nil {
		return pool.InvalidHandle, err
	}
	return c.submit(op), nil
}

// ScatterNB issues a non-blocking scatter: root's localBuf holds one
// NBytes-sized piece per rank in rank order; every rank's own localBuf
// receives its piece.
func (c *Client) ScatterNB(ctx *pool.Context, team Team, root transport.Rank, dst, src uintptr, nbytes int, localBuf []byte, flags collective.Flags) (pool.Handle, error) {
	if err := team.validate(); err != nil {
		return pool.InvalidHandle, err
	}
	op, err := collective.NewScatter(ctx, c.state.Engine, collective.Params{
		Root: root, DstAddr: dst, SrcAddr: src, NBytes: nbytes, Flags: flags,
	}, localBuf)
	if err != nil {
		return pool.InvalidHandle, err
	}
	return c.submit(op), nil
}

// GatherNB issues a non-blocking gather: every rank's localBuf holds its
// NBytes contribution; root's localBuf receives every contribution
// concatenated in rank order.
func (c *Client) GatherNB(ctx *pool.Context, team Team, root transport.Rank, dst, src uintptr, nbytes int, localBuf []byte, flags collective.Flags) (pool.Handle, error) {
	if err := team.validate(); err != nil {
		return pool.InvalidHandle, err
	}
	op, err := collective.NewGather(ctx, c.state.Engine, collective.Params{
		Root: root, DstAddr: dst, SrcAddr: src, NBytes: nbytes, Flags: flags,
	}, localBuf)
	if err != nil {
		return pool.InvalidHandle, err
	}
	return c.submit(op), nil
}

// GatherAllNB issues a non-blocking gather-all: every rank ends up with
// every rank's contribution. dsts[r] is the remote address on rank r where
// this rank's contribution should land.
func (c *Client) GatherAllNB(ctx *pool.Context, team Team, nbytes int, localBuf []byte, dsts []uintptr, flags collective.Flags) (pool.Handle, error) {
	if err := team.validate(); err != nil {
		return pool.InvalidHandle, err
	}
	op, err := collective.NewGatherAll(ctx, c.state.Engine, collective.Params{NBytes: nbytes, Flags: flags}, localBuf, dsts)
	if err != nil {
		return pool.InvalidHandle, err
	}
	return c.submit(op), nil
}

// ExchangeNB issues a non-blocking personalized all-to-all: srcs[r] is the
// NBytes buffer this rank sends to rank r; dsts[r] is the remote address on
// rank r where that contribution should land.
func (c *Client) ExchangeNB(ctx *pool.Context, team Team, nbytes int, dsts []uintptr, srcs [][]byte, flags collective.Flags) (pool.Handle, error) {
	if err := team.validate(); err != nil {
		return pool.InvalidHandle, err
	}
	op, err := collective.NewExchange(ctx, c.state.Engine, collective.Params{NBytes: nbytes, Flags: flags}, dsts, srcs)
	if err != nil {
		return pool.InvalidHandle, err
	}
	return c.submit(op), nil
}

// The *MNB entry points below are the LOCAL-addressing (image-list)
// counterparts of BroadcastNB/ScatterNB/GatherNB, for a rank that hosts
// more than one image. flags must carry collective.Local rather than
// collective.Single; GatherAll and Exchange have no *MNB counterpart (see
// DESIGN.md's "M-variant scope" entry for why).

// BroadcastMNB is BroadcastNB's LOCAL-addressing entry point: on every
// non-root rank, dstList must carry one destination per locally hosted
// image, and imageBufs supplies the Go buffers for every image but the
// first (which localBuf itself addresses).
func (c *Client) BroadcastMNB(ctx *pool.Context, team Team, root transport.Rank, dstList []uintptr, src uintptr, nbytes int, localBuf []byte, imageBufs [][]byte, flags collective.Flags) (pool.Handle, error) {
	if err := team.validate(); err != nil {
		return pool.InvalidHandle, err
	}
	op, err := collective.NewBroadcastM(ctx, c.state.Engine, collective.Params{
		Root: root, SrcAddr: src, NBytes: nbytes, Flags: flags, DstList: dstList,
	}, localBuf, imageBufs)
	if err != nil {
		return pool.InvalidHandle, err
	}
	return c.submit(op), nil
}

// ScatterMNB is ScatterNB's LOCAL-addressing entry point: localBuf must be
// sized MyImages(rank)*nbytes, the whole rank-level piece the network
// transfer lands in one shot; dstList/imageBufs carry one entry per locally
// hosted image beyond the first.
func (c *Client) ScatterMNB(ctx *pool.Context, team Team, root transport.Rank, dstList []uintptr, src uintptr, nbytes int, localBuf []byte, imageBufs [][]byte, flags collective.Flags) (pool.Handle, error) {
	if err := team.validate(); err != nil {
		return pool.InvalidHandle, err
	}
	op, err := collective.NewScatterM(ctx, c.state.Engine, collective.Params{
		Root: root, SrcAddr: src, NBytes: nbytes, Flags: flags, DstList: dstList,
	}, localBuf, imageBufs)
	if err != nil {
		return pool.InvalidHandle, err
	}
	return c.submit(op), nil
}

// GatherMNB is GatherNB's LOCAL-addressing entry point: firstImageSrc and
// imageBufs are assembled locally into one rank-level contribution before
// the network-level gather is issued, so dst still addresses the rank-level
// slot the way GatherNB's dst does.
func (c *Client) GatherMNB(ctx *pool.Context, team Team, root transport.Rank, srcList []uintptr, dst uintptr, nbytes int, firstImageSrc []byte, imageBufs [][]byte, flags collective.Flags) (pool.Handle, error) {
	if err := team.validate(); err != nil {
		return pool.InvalidHandle, err
	}
	op, err := collective.NewGatherM(ctx, c.state.Engine, collective.Params{
		Root: root, DstAddr: dst, NBytes: nbytes, Flags: flags, SrcList: srcList,
	}, firstImageSrc, imageBufs)
	if err != nil {
		return pool.InvalidHandle, err
	}
	return c.submit(op), nil
}
