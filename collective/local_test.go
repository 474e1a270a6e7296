package collective

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// TestScenarioBroadcastM extends spec §8 scenario 1 to a rank hosting two
// images: rank 1's second image must receive the broadcast value through
// local fan-out, not the network, since it never appears as a PutNB/AM
// destination of its own.
func TestScenarioBroadcastM(t *testing.T) {
	require := require.New(t)
	imagesPerRank := []int{1, 2, 1}
	const root = transport.Rank(0)
	net, engines := newScenarioEnginesWithImages(imagesPerRank)

	src := []byte{0xAA, 0xBB}
	flags := InMySync | OutMySync | Single | SrcInSegment | DstInSegment
	localFlags := InMySync | OutMySync | Local | SrcInSegment | DstInSegment

	rank0Buf := src
	rank1Img0 := make([]byte, 2)
	rank1Img1 := make([]byte, 2)
	rank2Buf := make([]byte, 2)

	dst1List := []uintptr{
		net.Register(1, rank1Img0),
		net.Register(1, rank1Img1),
	}

	ops := make([]*pool.Op, 3)

	op0, err := NewBroadcast(newScenarioCtx(), engines[0], Params{
		Root: root, NBytes: 2, Flags: flags,
	}, rank0Buf)
	require.NoError(err)
	ops[0] = op0

	op1, err := NewBroadcastM(newScenarioCtx(), engines[1], Params{
		Root: root, NBytes: 2, Flags: localFlags, DstList: dst1List,
	}, rank1Img0, [][]byte{rank1Img1})
	require.NoError(err)
	a := op1.Data.(*BcastArgs)
	require.Equal(AlgoEager, a.Algo)
	ops[1] = op1

	op2, err := NewBroadcast(newScenarioCtx(), engines[2], Params{
		Root: root, NBytes: 2, Flags: flags,
	}, rank2Buf)
	require.NoError(err)
	ops[2] = op2

	driveAll(t, ops)

	require.Equal(src, rank1Img0, "rank 1's first image did not receive the broadcast over the network")
	require.Equal(src, rank1Img1, "rank 1's second image did not receive the broadcast through local fan-out")
	require.Equal(src, rank2Buf)
}

// TestScenarioScatterM extends spec §8 scenario 3's shape to a rank hosting
// two images: root's source buffer holds one piece per image team-wide, and
// rank 1's two images split their two adjacent pieces via DstList/local
// fan-out rather than each separately pulling over the network.
func TestScenarioScatterM(t *testing.T) {
	require := require.New(t)
	imagesPerRank := []int{1, 2, 1}
	const pieceSize = 8
	const root = transport.Rank(0)
	net, engines := newScenarioEnginesWithImages(imagesPerRank)

	// Total images = 4, team-wide buffer is 4 pieces, image-contiguous.
	rootSrc := make([]byte, pieceSize*4)
	for img := 0; img < 4; img++ {
		for i := 0; i < pieceSize; i++ {
			rootSrc[img*pieceSize+i] = byte(img)
		}
	}
	srcAddr := net.Register(root, rootSrc)

	flags := InMySync | OutMySync | Single | SrcInSegment | DstInSegment
	localFlags := InMySync | OutMySync | Local | SrcInSegment | DstInSegment

	rank0Buf := make([]byte, pieceSize)
	copy(rank0Buf, rootSrc[:pieceSize])

	// rank1Agg is the whole rank-level piece (both of rank 1's images, one
	// network write); rank1Img1 is the second image's own destination,
	// filled by local fan-out after the network write lands.
	rank1Agg := make([]byte, 2*pieceSize)
	rank1Img1 := make([]byte, pieceSize)
	rank2Buf := make([]byte, pieceSize)

	dst1List := []uintptr{
		net.Register(1, rank1Agg[:pieceSize]),
		net.Register(1, rank1Img1),
	}

	ops := make([]*pool.Op, 3)

	// root's localBuf is the whole team-wide source, per NewScatter.
	op0, err := NewScatter(newScenarioCtx(), engines[0], Params{
		Root: root, SrcAddr: srcAddr, NBytes: pieceSize, Flags: flags,
	}, rootSrc)
	require.NoError(err)
	ops[0] = op0

	op1, err := NewScatterM(newScenarioCtx(), engines[1], Params{
		Root: root, SrcAddr: srcAddr, NBytes: pieceSize, Flags: localFlags, DstList: dst1List,
	}, rank1Agg, [][]byte{rank1Img1})
	require.NoError(err)
	a := op1.Data.(*ScatterArgs)
	require.Equal(AlgoEager, a.Algo)
	ops[1] = op1

	op2, err := NewScatter(newScenarioCtx(), engines[2], Params{
		Root: root, SrcAddr: srcAddr, NBytes: pieceSize, Flags: flags,
	}, rank2Buf)
	require.NoError(err)
	ops[2] = op2

	driveAll(t, ops)

	require.Equal(rootSrc[0:pieceSize], rank0Buf)
	require.Equal(rootSrc[pieceSize:2*pieceSize], rank1Agg[:pieceSize], "rank 1's first image did not receive its piece over the network")
	require.Equal(rootSrc[2*pieceSize:3*pieceSize], rank1Img1, "rank 1's second image did not receive its piece through local fan-out")
	require.Equal(rootSrc[3*pieceSize:4*pieceSize], rank2Buf)
}

// TestScenarioGatherM mirrors TestScenarioScatterM in reverse: rank 1's two
// images each contribute their own piece, combined locally with localGather
// before the single network-level gather contribution is issued.
func TestScenarioGatherM(t *testing.T) {
	require := require.New(t)
	imagesPerRank := []int{1, 2, 1}
	const pieceSize = 8
	const root = transport.Rank(0)
	_, engines := newScenarioEnginesWithImages(imagesPerRank)

	rootDst := make([]byte, pieceSize*4)

	contrib := make([][]byte, 4)
	for img := 0; img < 4; img++ {
		contrib[img] = make([]byte, pieceSize)
		for i := range contrib[img] {
			contrib[img][i] = byte(img + 1)
		}
	}

	flags := InMySync | OutMySync | Single | SrcInSegment | DstInSegment
	localFlags := InMySync | OutMySync | Local | SrcInSegment | DstInSegment

	rank0Buf := rootDst
	copy(rank0Buf[0:pieceSize], contrib[0])

	rank2Buf := contrib[3]

	ops := make([]*pool.Op, 3)

	op0, err := NewGather(newScenarioCtx(), engines[0], Params{
		Root: root, NBytes: pieceSize, Flags: flags,
	}, rank0Buf)
	require.NoError(err)
	ops[0] = op0

	op1, err := NewGatherM(newScenarioCtx(), engines[1], Params{
		Root: root, NBytes: pieceSize, Flags: localFlags,
		SrcList: []uintptr{1, 2}, // no segment residency is asserted for the Eager path's AM push
	}, contrib[1], [][]byte{contrib[2]})
	require.NoError(err)
	a := op1.Data.(*GatherArgs)
	require.Equal(AlgoEager, a.Algo)
	ops[1] = op1

	op2, err := NewGather(newScenarioCtx(), engines[2], Params{
		Root: root, NBytes: pieceSize, Flags: flags,
	}, rank2Buf)
	require.NoError(err)
	ops[2] = op2

	driveAll(t, ops)

	for img := 0; img < 4; img++ {
		got := rootDst[img*pieceSize : (img+1)*pieceSize]
		require.Equal(contrib[img], got, "root's slot for image %d did not land", img)
	}
}

// TestLocalBroadcastRejectsMismatchedDstList confirms NewBroadcastM rejects
// a non-root DstList whose length differs from the rank's image count: a
// rank hosting one image must pass exactly one destination, so two fail
// validation the same way a mismatched image count would for a true
// multi-image rank.
func TestLocalBroadcastRejectsMismatchedDstList(t *testing.T) {
	require := require.New(t)
	_, engines := newScenarioEnginesWithImages([]int{1, 1})

	_, err := NewBroadcastM(newScenarioCtx(), engines[1], Params{
		Root: 0, NBytes: 2, Flags: InMySync | OutMySync | Local | DstInSegment | SrcInSegment,
		DstList: []uintptr{1, 2},
	}, make([]byte, 2), nil)
	require.Error(err, "DstList of length 2 on a single-image rank must be rejected")
}

// TestNewBroadcastRejectsLocal confirms the SINGLE-only entry points refuse
// the LOCAL flag outright rather than silently falling back to SINGLE
// addressing.
func TestNewBroadcastRejectsLocal(t *testing.T) {
	require := require.New(t)
	_, engines := newScenarioEnginesWithImages([]int{1, 1})

	_, err := NewBroadcast(newScenarioCtx(), engines[0], Params{
		Root: 0, NBytes: 2, Flags: InMySync | OutMySync | Local | DstInSegment | SrcInSegment,
	}, make([]byte, 2))
	require.Error(err)

	_, err = NewScatter(newScenarioCtx(), engines[0], Params{
		Root: 0, NBytes: 2, Flags: InMySync | OutMySync | Local | DstInSegment | SrcInSegment,
	}, make([]byte, 2))
	require.Error(err)

	_, err = NewGather(newScenarioCtx(), engines[0], Params{
		Root: 0, NBytes: 2, Flags: InMySync | OutMySync | Local | DstInSegment | SrcInSegment,
	}, make([]byte, 2))
	require.Error(err)

	_, err = NewGatherAll(newScenarioCtx(), engines[0], Params{
		NBytes: 2, Flags: InMySync | OutMySync | Local,
	}, make([]byte, 2), []uintptr{0, 0})
	require.Error(err)

	_, err = NewExchange(newScenarioCtx(), engines[0], Params{
		NBytes: 2, Flags: InMySync | OutMySync | Local,
	}, []uintptr{0, 0}, [][]byte{nil, nil})
	require.Error(err)
}
