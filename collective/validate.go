package collective

import (
	"fmt"

	"github.com/luxfi/pgasc/transport"
)

// ErrBadArg is returned by validation failures that spec §7 marks fatal at
// the public API boundary; the root package wraps it in a process abort.
type ErrBadArg struct{ Msg string }

func (e *ErrBadArg) Error() string { return "collective: bad arg: " + e.Msg }

// validate reproduces the bounds-checking recovered from
// original_source/extended-ref/gasnet_coll_eager.c's gasnete_coll_validate:
// any buffer the caller claims is in-segment is checked against the
// process's registered segment range before any algorithm is scheduled.
func validate(seg transport.SegmentTable, r transport.Rank, addr uintptr, length int, claimedInSegment bool) error {
	if !claimedInSegment {
		return nil
	}
	if !seg.InSegment(r, addr, length) {
		return &ErrBadArg{Msg: fmt.Sprintf("rank %d: address %#x/%d claimed in-segment but is not", r, addr, length)}
	}
	return nil
}
