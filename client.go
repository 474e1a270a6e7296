// Package pgasc is the public API of the collective engine: non-blocking
// broadcast, scatter, gather, gather-all, and exchange over a one-sided
// transport, built on the poll-driven op/handle pools in pool, the
// cooperative driver in active, and the algorithm implementations in
// collective. Every entry point is non-blocking; callers drive completion
// by repeatedly calling TrySync (directly, or through WaitSync's spin
// loop) from whichever thread is convenient, per spec §1's "no per-thread
// progress obligation" requirement.
package pgasc

import (
	"context"

	"github.com/luxfi/log"
	"github.com/luxfi/pgasc/active"
	"github.com/luxfi/pgasc/bootstrap"
	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// Client is the process-wide handle returned by Init; every thread shares
// one Client and gets its own *pool.Context from NewContext.
type Client struct {
	state  *bootstrap.State
	list   *active.List
	driver *active.Driver
}

// Init discovers the team over boot, brings up the shared runtime state,
// and returns a Client. It must be called exactly once per process;
// additional calls from other local threads observe the same underlying
// state (see bootstrap.Init) and should instead call JoinPrivateBarrier
// once every participating thread has its own Context.
func Init(ctx context.Context, boot transport.Bootstrap, cfg bootstrap.Config, threadCount int, lg log.Logger) (*Client, error) {
	st, err := bootstrap.Init(ctx, boot, cfg, threadCount, lg)
	if err != nil {
		return nil, err
	}
	list := active.NewList()
	driver := active.NewDriver(list, st.Alloc)
	driver.SetMetrics(st.Metrics)
	return &Client{state: st, list: list, driver: driver}, nil
}

// NewContext allocates a per-thread pool.Context. Callers should create one
// per goroutine that submits ops, never share one across goroutines.
func (c *Client) NewContext(threadID uint64) *pool.Context {
	return c.state.NewContext(threadID)
}

// JoinPrivateBarrier blocks the calling thread until every thread the
// process declared at Init time (bootstrap.Config/threadCount) has also
// called it, matching the reference engine's "all threads attach before any
// thread submits" invariant.
func (c *Client) JoinPrivateBarrier() { c.state.JoinPrivateBarrier() }

// submit inserts a freshly built op into the active list so the driver will
// poll it going forward, and returns the op's own handle. submit never
// threads the op into an aggregation region; AccessRegionHandle.Add does.
func (c *Client) submit(op *pool.Op) pool.Handle {
	c.list.Insert(op.Index)
	return op.Handle
}

// Poll runs one pass of the cooperative driver. hasLocalWork should be true
// when the calling thread has known local work to progress (it blocks for
// the poll lock); false, for a thread merely polling for general progress,
// lets it fall through immediately if another thread already holds the poll
// lock (spec §5's fairness policy).
func (c *Client) Poll(ctx *pool.Context, hasLocalWork bool) bool {
	return c.driver.Poll(ctx, hasLocalWork)
}
