package pgasc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"

	"github.com/luxfi/pgasc/bootstrap"
	"github.com/luxfi/pgasc/collective"
	"github.com/luxfi/pgasc/transport"
	"github.com/luxfi/pgasc/transport/inproc"
)

// allSegment claims every address is in-segment: the scenario below only
// needs the selector to see a segment-backed transport, not a real one.
type allSegment struct{}

func (allSegment) InSegment(transport.Rank, uintptr, int) bool { return true }

// TestScenarioAggregate implements spec §8 scenario 5 on a single-rank team:
// begin_nbi_accessregion, two AGGREGATE broadcasts plus one plain scatter,
// end_nbi_accessregion. The one handle End returns must become done iff and
// only once all three component ops have completed. A one-rank, one-image
// team means every op here also exercises spec §8's "count 0 or 1-image
// teams must complete with no communication" boundary behavior: broadcast's
// and scatter's root-equals-self paths never issue a single RMA or AM call.
func TestScenarioAggregate(t *testing.T) {
	require := require.New(t)

	net := inproc.NewNetwork(1)
	boot := inproc.NewBoot(net, 0)
	ep := inproc.NewEndpoint(net, 0)

	client, err := Init(context.Background(), boot, bootstrap.Config{
		Images:   1,
		RMA:      ep,
		AM:       ep,
		Notifier: net,
		Segments: allSegment{},
	}, 1, log.NewNoOpLogger())
	require.NoError(err)

	ctx := client.NewContext(1)

	region, err := client.BeginNbiAccessRegion(ctx)
	require.NoError(err)

	bcast1Src := []byte{1, 2, 3, 4}
	bcast1Dst := make([]byte, 4)
	addr1 := net.Register(0, bcast1Dst)
	bcastOp1, err := collective.NewBroadcast(ctx, client.state.Engine, collective.Params{
		Root: 0, DstAddr: addr1, SrcAddr: addr1, NBytes: 4,
		Flags: collective.InAllSync | collective.OutAllSync | collective.Single |
			collective.SrcInSegment | collective.DstInSegment | collective.Aggregate,
	}, bcast1Src)
	require.NoError(err)
	require.NoError(region.Add(bcastOp1))

	bcast2Src := []byte{5, 6, 7, 8}
	bcast2Dst := make([]byte, 4)
	addr2 := net.Register(0, bcast2Dst)
	bcastOp2, err := collective.NewBroadcast(ctx, client.state.Engine, collective.Params{
		Root: 0, DstAddr: addr2, SrcAddr: addr2, NBytes: 4,
		Flags: collective.InAllSync | collective.OutAllSync | collective.Single |
			collective.SrcInSegment | collective.DstInSegment | collective.Aggregate,
	}, bcast2Src)
	require.NoError(err)
	require.NoError(region.Add(bcastOp2))

	scatterBuf := []byte{9, 9, 9, 9}
	scatterOp, err := collective.NewScatter(ctx, client.state.Engine, collective.Params{
		Root: 0, NBytes: 4,
		Flags: collective.InAllSync | collective.OutAllSync | collective.Single |
			collective.SrcInSegment | collective.DstInSegment,
	}, scatterBuf)
	require.NoError(err)
	require.NoError(region.Add(scatterOp))

	h, err := region.End()
	require.NoError(err)

	done := false
	for i := 0; i < 20 && !done; i++ {
		done = client.TrySync(ctx, h)
	}
	require.True(done, "aggregate handle never completed")

	require.Equal(bcast1Src, bcast1Dst)
	require.Equal(bcast2Src, bcast2Dst)
}
