package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleLifecycle(t *testing.T) {
	require := require.New(t)
	hp := NewHandlePool()
	alloc := NewAllocator()
	ctx := NewContext(1, alloc, hp)

	h := ctx.HandleCreate()
	require.True(h.Valid(), "fresh handle should be valid")
	require.False(ctx.HandleDone(h), "handle should not be done before signal")
	ctx.HandleSignal(h)
	require.True(ctx.HandleDone(h), "handle should be done after signal")
}

func TestHandleBulkAllocationMintsUniqueHandles(t *testing.T) {
	require := require.New(t)
	hp := NewHandlePool()
	alloc := NewAllocator()
	ctx := NewContext(1, alloc, hp)

	var handles []Handle
	for i := 0; i < chunkSize*2+5; i++ {
		handles = append(handles, ctx.HandleCreate())
	}
	seen := make(map[Handle]bool, len(handles))
	for _, h := range handles {
		require.False(seen[h], "duplicate handle minted: %+v", h)
		seen[h] = true
	}
	require.GreaterOrEqual(len(hp.chunks), 3)
}

func TestOpPoolRecyclesAfterFree(t *testing.T) {
	require := require.New(t)
	hp := NewHandlePool()
	alloc := NewAllocator()
	ctx := NewContext(1, alloc, hp)

	op := ctx.AllocOp()
	idx := op.Index
	op.Flags = 42
	ctx.FreeOp(op)

	op2 := ctx.AllocOp()
	require.Equal(idx, op2.Index, "expected op pool to recycle its index")
	require.Zero(op2.Flags, "recycled op should be zeroed")
}

func TestOpStateMonotone(t *testing.T) {
	hp := NewHandlePool()
	alloc := NewAllocator()
	ctx := NewContext(1, alloc, hp)
	op := ctx.AllocOp()

	op.AdvanceState(1)
	op.AdvanceState(2)

	require.Panics(t, func() { op.AdvanceState(1) }, "expected panic moving state backward")
}
