package collective

import "errors"

// Algorithm is the chosen data-movement strategy for one op, selected at
// entry per spec §4.6.
type Algorithm uint8

const (
	AlgoGet Algorithm = iota
	AlgoPut
	AlgoEager
	AlgoRVGet
	AlgoRVPut
)

func (a Algorithm) String() string {
	switch a {
	case AlgoGet:
		return "Get"
	case AlgoPut:
		return "Put"
	case AlgoEager:
		return "Eager"
	case AlgoRVGet:
		return "RVGet"
	case AlgoRVPut:
		return "RVPut"
	default:
		return "?"
	}
}

// ErrNoSegmentTransport is returned when neither end of a transfer is
// in-segment: the selector's terminal AM-only case, which this core does
// not implement (spec §4.6 step 5, and the Non-goal excluding alternative
// transports for out-of-segment multi-image data).
var ErrNoSegmentTransport = errors.New("collective: no in-segment endpoint and no AM-only transport is implemented")

// Select implements the algorithm-selection policy of spec §4.6.
func Select(f Flags, payload int, eagerMin int) (Algorithm, error) {
	dst := f.dstInSeg()
	src := f.srcInSeg()
	wantsFast := f.isLocal() || f&InMySync != 0 || f&OutMySync != 0

	if dst && src && payload <= eagerMin && wantsFast {
		return AlgoEager, nil
	}
	if dst {
		if wantsFast {
			return AlgoRVPut, nil
		}
		return AlgoPut, nil
	}
	if src {
		if wantsFast {
			return AlgoRVGet, nil
		}
		return AlgoGet, nil
	}
	return 0, ErrNoSegmentTransport
}

// SyncOptions derives the INSYNC/OUTSYNC option bits for an op from its
// client flags and the chosen algorithm, per spec §4.6: barrier-based
// algorithms (Get, Put) sync unless *_NOSYNC was requested; eager and
// rendezvous algorithms sync implicitly through the P2P handshake, so they
// only honor an explicit *_ALLSYNC request (anything less and the handshake
// already provides the ordering).
type SyncOptions struct {
	InSync  bool
	OutSync bool
	// P2P is enabled on any op that will consult a slot — every algorithm
	// except plain Get/Put — but conditionally skipped on the image that
	// owns the root (no rendezvous needed with oneself), which callers
	// apply themselves when they are the root.
	P2P bool
}

func DeriveSyncOptions(f Flags, algo Algorithm) SyncOptions {
	switch algo {
	case AlgoGet, AlgoPut:
		return SyncOptions{
			InSync:  f&InNoSync == 0,
			OutSync: f&OutNoSync == 0,
			P2P:     false,
		}
	default:
		return SyncOptions{
			InSync:  f&InAllSync != 0,
			OutSync: f&OutAllSync != 0,
			P2P:     true,
		}
	}
}
