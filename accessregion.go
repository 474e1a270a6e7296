package pgasc

import (
	"fmt"

	"github.com/luxfi/pgasc/aggregate"
	"github.com/luxfi/pgasc/pool"
)

// AccessRegionHandle scopes a begin/end_nbi_accessregion block to a single
// thread's Context, per spec §4.4.
type AccessRegionHandle struct {
	region aggregate.Region
	ctx    *pool.Context
	client *Client
}

// BeginNbiAccessRegion opens an aggregation region on ctx. Every op threaded
// in with Add between Begin and End folds into the one shared completion
// handle End returns. The *NB entry points do not read the AGGREGATE flag:
// an op they submit keeps its own handle and is not added to the region.
func (c *Client) BeginNbiAccessRegion(ctx *pool.Context) (*AccessRegionHandle, error) {
	h := &AccessRegionHandle{ctx: ctx, client: c}
	if err := h.region.Begin(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArg, err)
	}
	return h, nil
}

// Add threads an already-submitted op into the region. Entry points called
// with the AGGREGATE flag must not have been independently inserted into
// the active list's handle-signaling path; this core expects the caller to
// route op submission through Add instead of submit when a region is open.
func (h *AccessRegionHandle) Add(op *pool.Op) error {
	if err := h.region.Add(h.client.state.Alloc, op); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArg, err)
	}
	h.client.list.Insert(op.Index)
	return nil
}

// End seals the region and returns the one completion handle every member
// folds into.
func (h *AccessRegionHandle) End() (pool.Handle, error) {
	hdl, err := h.region.End(h.client.state.Alloc, h.ctx)
	if err != nil {
		return pool.InvalidHandle, fmt.Errorf("%w: %v", ErrBadArg, err)
	}
	return hdl, nil
}
