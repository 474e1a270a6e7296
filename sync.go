package pgasc

import "github.com/luxfi/pgasc/pool"

// TrySync is a single non-blocking poll-and-test: it drives the engine one
// pass, then reports whether h has completed. Safe to call from any thread
// that owns ctx; per spec §5 it is the unit every higher-level sync helper
// below is built from.
func (c *Client) TrySync(ctx *pool.Context, h pool.Handle) bool {
	c.Poll(ctx, true)
	return ctx.HandleDone(h)
}

// TrySyncSome drives one poll pass and reports which of handles have
// completed, preserving order.
func (c *Client) TrySyncSome(ctx *pool.Context, handles []pool.Handle) []bool {
	c.Poll(ctx, true)
	done := make([]bool, len(handles))
	for i, h := range handles {
		done[i] = ctx.HandleDone(h)
	}
	return done
}

// TrySyncAll drives one poll pass (through TrySyncSome) and returns true
// only if every handle is done after it.
func (c *Client) TrySyncAll(ctx *pool.Context, handles []pool.Handle) bool {
	done := c.TrySyncSome(ctx, handles)
	for _, d := range done {
		if !d {
			return false
		}
	}
	return true
}

// WaitSync blocks the calling thread, repeatedly polling, until h
// completes. It never calls out to a blocking transport primitive itself —
// every iteration is a TrySync — so it composes with cooperative
// multi-threaded polling instead of monopolizing the poll lock.
func (c *Client) WaitSync(ctx *pool.Context, h pool.Handle) {
	for !c.TrySync(ctx, h) {
	}
}

// WaitSyncAll blocks until every handle in handles has completed.
func (c *Client) WaitSyncAll(ctx *pool.Context, handles []pool.Handle) {
	for !c.TrySyncAll(ctx, handles) {
	}
}
