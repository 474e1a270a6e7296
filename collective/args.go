package collective

import (
	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// Params is the common addressing shape every entry point accepts: a
// single address under SINGLE addressing, or a per-local-image address
// list under LOCAL addressing (the M-variant), per spec §6's
// "dst[list], src[image,addr]" shape.
type Params struct {
	Root transport.Rank

	DstAddr uintptr
	DstList []uintptr // LOCAL: this rank's own per-image destinations

	SrcAddr uintptr
	SrcList []uintptr // LOCAL: this rank's own per-image sources

	NBytes int
	Flags  Flags
}

func (p Params) dstIsRemoteRoot(e *Engine) bool { return e.MyRank != p.Root }

// BcastArgs is broadcast's captured argument record. The scaffold field is
// named (not embedded) because every Args type also needs a scaffold()
// accessor for the scaffolded interface, and Go rejects a field and a
// method of the same name on one type.
type BcastArgs struct {
	sc scaffold
	Params
	Algo Algorithm
}

func (a *BcastArgs) scaffold() *scaffold { return &a.sc }

// ScatterArgs is scatter's captured argument record: root slices
// Params.SrcAddr into per-rank NBytes-sized pieces.
type ScatterArgs struct {
	sc scaffold
	Params
	Algo Algorithm
}

func (a *ScatterArgs) scaffold() *scaffold { return &a.sc }

// GatherArgs is gather's captured argument record: every rank's
// Params.SrcAddr contributes NBytes into root's Params.DstAddr at its
// rank-ordered offset.
type GatherArgs struct {
	sc scaffold
	Params
	Algo       Algorithm
	RankOffset int // this rank's slot within the root's destination buffer
}

func (a *GatherArgs) scaffold() *scaffold { return &a.sc }

// GatherAllArgs is an orchestrating op composed of one non-blocking gather
// per root, all NOSYNC, per spec §4.6: every rank gathers into every other
// rank's destination simultaneously and a single OUT barrier at the end
// stands in for the per-gather ones.
type GatherAllArgs struct {
	sc scaffold
	Params
	Dsts  []uintptr // one destination per root, indexed by rank
	subOp []*pool.Op
}

func (a *GatherAllArgs) scaffold() *scaffold { return &a.sc }

// ExchangeArgs is gather-all's sibling: every rank sends a distinct buffer
// to every other rank, rather than one shared source for every root.
type ExchangeArgs struct {
	sc scaffold
	Params
	Dsts []uintptr // Dsts[r] is the remote address on rank r to put into
}

func (a *ExchangeArgs) scaffold() *scaffold { return &a.sc }
