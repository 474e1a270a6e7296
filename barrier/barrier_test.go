package barrier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	notifyCalls int
	tryReady    bool
	tryCalls    int
}

func (f *fakeNotifier) Notify(ctx context.Context, id uint64, named bool) error {
	f.notifyCalls++
	return nil
}

func (f *fakeNotifier) Try(ctx context.Context, id uint64, named bool) (bool, error) {
	f.tryCalls++
	return f.tryReady, nil
}

func TestCounterReachesAfterNotifyAndWait(t *testing.T) {
	require := require.New(t)
	c := New(false)
	n := &fakeNotifier{}
	id := c.Mint()

	status, err := c.Try(context.Background(), n, id)
	require.NoError(err)
	require.Equal(Pending, status, "expected pending after notify")
	require.Equal(1, n.notifyCalls)

	n.tryReady = false
	status, _ = c.Try(context.Background(), n, id)
	require.Equal(Pending, status, "expected still pending while try is not ready")

	n.tryReady = true
	status, _ = c.Try(context.Background(), n, id)
	require.Equal(Reached, status, "expected reached once try succeeds")
}

func TestPastPredicateWrapSafe(t *testing.T) {
	// an id whose doubled value 2*id reaches 2^31 (and so wraps negative as
	// int32) must not be reported past while current is still 0.
	var c Counter
	c.current.Store(0)
	require.False(t, past(c.current.Load(), 1<<30), "id far ahead of current must not be past")
}

func TestSequentialIdsMustWaitTheirTurn(t *testing.T) {
	require := require.New(t)
	c := New(false)
	n := &fakeNotifier{tryReady: true}
	id0 := c.Mint()
	id1 := c.Mint()

	status, _ := c.Try(context.Background(), n, id1)
	require.Equal(Pending, status, "id1 should be pending until id0's sequence catches up")

	c.Try(context.Background(), n, id0)
	status, _ = c.Try(context.Background(), n, id0)
	require.Equal(Reached, status, "id0 should be reached")

	status, _ = c.Try(context.Background(), n, id1)
	require.Equal(Pending, status, "id1 should now be in its notify phase")
}
