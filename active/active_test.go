package active

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/pgasc/pool"
)

func newHarness() (*pool.Allocator, *pool.HandlePool, *pool.Context, *List, *Driver) {
	arena := pool.NewAllocator()
	hp := pool.NewHandlePool()
	ctx := pool.NewContext(1, arena, hp)
	list := NewList()
	drv := NewDriver(list, arena)
	return arena, hp, ctx, list, drv
}

func TestDriverCompletesSimpleOp(t *testing.T) {
	require := require.New(t)
	_, _, ctx, list, drv := newHarness()

	op := ctx.AllocOp()
	op.Handle = ctx.HandleCreate()
	calls := 0
	op.PollFn = func(o *pool.Op) pool.Result {
		calls++
		return pool.ResultComplete | pool.ResultInactive
	}
	list.Insert(op.Index)

	drv.Poll(ctx, true)

	require.Equal(1, calls)
	require.Equal(0, list.Len(), "op should have been unlinked")
	require.True(ctx.HandleDone(op.Handle))
}

func TestDriverMultiPassUntilComplete(t *testing.T) {
	require := require.New(t)
	_, _, ctx, list, drv := newHarness()

	op := ctx.AllocOp()
	op.Handle = ctx.HandleCreate()
	passes := 0
	op.PollFn = func(o *pool.Op) pool.Result {
		passes++
		if passes < 3 {
			return pool.ResultNone
		}
		return pool.ResultComplete | pool.ResultInactive
	}
	list.Insert(op.Index)

	drv.Poll(ctx, true)
	drv.Poll(ctx, true)
	require.False(ctx.HandleDone(op.Handle), "handle should not be done yet")
	drv.Poll(ctx, true)
	require.True(ctx.HandleDone(op.Handle), "handle should be done after third pass")
}

func TestDriverTryLockDoesNotBlockOnIdlePoll(t *testing.T) {
	_, _, ctx, _, drv := newHarness()
	drv.pollLock.Lock()
	defer drv.pollLock.Unlock()

	require.False(t, drv.Poll(ctx, false), "idle poll should not have acquired a held lock")
}
