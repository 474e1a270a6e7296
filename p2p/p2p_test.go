package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetAutoCreatesAndIsUnique(t *testing.T) {
	tbl := NewTable(Config{})
	k := Key{Team: 0, Sequence: 7}

	s1 := tbl.Get(k, 4)
	s2 := tbl.Get(k, 4)
	require.Same(t, s1, s2, "Get for the same key must return the same slot")
}

func TestFreeReturnsSlotToFreelistAndTableGoesEmpty(t *testing.T) {
	require := require.New(t)
	tbl := NewTable(Config{Buckets: 4})
	k := Key{Team: 0, Sequence: 1}
	tbl.Get(k, 4)
	require.False(tbl.Empty(), "table should not be empty after Get")
	tbl.Free(k)
	require.True(tbl.Empty(), "table should be empty after Free")
}

func TestEagerPayloadOrderingAndReadback(t *testing.T) {
	require := require.New(t)
	tbl := NewTable(Config{})
	s := tbl.Get(Key{Sequence: 3}, 4)

	payload := []byte{1, 2, 3, 4}
	s.EagerPayload(0, payload, 4, 1, 1)

	data, ready := s.ReadAfterState(0, 4, 4)
	require.True(ready, "expected state to be published")
	require.Equal(payload, data)
}

func TestPutSignal(t *testing.T) {
	require := require.New(t)
	tbl := NewTable(Config{})
	s := tbl.Get(Key{Sequence: 9}, 1)
	s.PutSignal(0, []byte{0xAA, 0xBB}, 0, 1)

	data, ready := s.ReadAfterState(0, 2, 2)
	require.True(ready)
	require.Equal(byte(0xAA), data[0])
	require.Equal(byte(0xBB), data[1])
}

func TestFragmentCount(t *testing.T) {
	require := require.New(t)
	n, err := FragmentCount(1024, 8)
	require.NoError(err)
	require.Equal(128, n)

	_, err = FragmentCount(4, 8)
	require.Error(err, "expected error when element exceeds medium max")
}
