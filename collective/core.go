// Package collective implements the per-operation state machines for
// broadcast, scatter, gather, gather-all, and exchange (spec §4.6), the
// algorithm selector (spec §4.6), and the shared IN/OUT synchronization
// scaffolding every algorithm variant rides on (spec §4.2's state table).
//
// Modeled on consensus/beam/engine.go's small state-machine-over-poll shape:
// a handful of integer states, a poll function invoked repeatedly by the
// driver, and a clean separation between the generic scaffolding (sync
// phases) and the one state that is genuinely algorithm-specific.
package collective

import (
	"context"
	"sync/atomic"

	"github.com/luxfi/log"
	"github.com/luxfi/pgasc/barrier"
	"github.com/luxfi/pgasc/metrics"
	"github.com/luxfi/pgasc/p2p"
	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// State is an op's position in the five-phase scaffolding of spec §4.6.
type State int32

const (
	StateInSync State = iota
	StateIssue
	StateWaitLocal
	StateFanout
	StateOutSync
	StateDone
)

// Engine bundles every shared dependency an algorithm's poll function
// needs: the image-to-rank map, the transports, the P2P table, and the
// consensus counter. One Engine serves the implicit "all" team (spec's
// single-team Non-goal); it is built once by bootstrap.Init and passed to
// every entry point as its explicit *Engine argument.
type Engine struct {
	Log log.Logger

	RMA       transport.RMA
	AM        transport.AM
	Barrier   *barrier.Counter
	Notifier  barrier.Notifier
	P2P       *p2p.Table
	Segments  transport.SegmentTable
	EagerMin  int
	MyRank    transport.Rank
	MyImage   int
	Images    Mapping

	// Metrics is nil-safe; bootstrap.Init attaches one when the caller
	// supplies a prometheus.Registerer.
	Metrics *metrics.Metrics

	seq atomic.Uint32
}

// NextSequence mints the per-op sequence number every p2p.Key uses to
// disambiguate concurrent ops sharing a team, per spec §4.5's "sequence mod
// N" bucketing.
func (e *Engine) NextSequence() uint32 { return e.seq.Add(1) }

// scaffold is the common IN-sync / issue / wait-local / OUT-sync state
// carried by every algorithm's Args as the named field sc (held by value),
// so each collective's Args struct gets it for free.
type scaffold struct {
	Opts   SyncOptions
	InID   uint32
	OutID  uint32
	issued bool
	kind   string // for metrics labeling only; set by the constructing entry point

	// algo-specific hooks, set by the constructing entry point.
	issue     func(op *pool.Op, e *Engine) error
	localDone func(op *pool.Op, e *Engine) bool

	// fanoutIssue/fanoutDone implement the M-variant's local fan-out: after
	// the primary data transfer completes, the owning thread distributes
	// the result across its own image list with local_broadcast /
	// local_scatter / local_gather before OUT sync (spec §4.6). Nil under
	// SINGLE addressing, where this state is a no-op pass-through.
	fanoutIssue func(op *pool.Op, e *Engine) error
	fanoutDone  func(op *pool.Op, e *Engine) bool
	fanoutSent  bool
}

// poll drives the shared five-phase scaffolding. Returns the next
// pool.Result; algorithms never call this directly — they go through
// makePollFunc, which closes over the Engine and the owning *scaffold.
func (s *scaffold) poll(op *pool.Op, e *Engine) pool.Result {
	ctx := context.Background()

	switch State(op.State) {
	case StateInSync:
		if !s.Opts.InSync {
			op.AdvanceState(int32(StateIssue))
			return s.poll(op, e)
		}
		status, err := e.Barrier.Try(ctx, e.Notifier, s.InID)
		if e.Metrics != nil {
			e.Metrics.BarrierRounds.Inc()
		}
		if err != nil {
			panic("collective: IN barrier error: " + err.Error())
		}
		if status == barrier.Reached {
			op.AdvanceState(int32(StateIssue))
			return s.poll(op, e)
		}
		return pool.ResultNone

	case StateIssue:
		if !s.issued {
			if err := s.issue(op, e); err != nil {
				panic("collective: issue failed: " + err.Error())
			}
			s.issued = true
		}
		op.AdvanceState(int32(StateWaitLocal))
		return s.poll(op, e)

	case StateWaitLocal:
		if !s.localDone(op, e) {
			return pool.ResultNone
		}
		op.AdvanceState(int32(StateFanout))
		return s.poll(op, e)

	case StateFanout:
		if s.fanoutIssue == nil {
			op.AdvanceState(int32(StateOutSync))
			return s.poll(op, e)
		}
		if !s.fanoutSent {
			if err := s.fanoutIssue(op, e); err != nil {
				panic("collective: local fan-out failed: " + err.Error())
			}
			s.fanoutSent = true
		}
		if !s.fanoutDone(op, e) {
			return pool.ResultNone
		}
		op.AdvanceState(int32(StateOutSync))
		return s.poll(op, e)

	case StateOutSync:
		if !s.Opts.OutSync {
			op.AdvanceState(int32(StateDone))
			s.reportDone(e)
			return pool.ResultComplete | pool.ResultInactive
		}
		status, err := e.Barrier.Try(ctx, e.Notifier, s.OutID)
		if e.Metrics != nil {
			e.Metrics.BarrierRounds.Inc()
		}
		if err != nil {
			panic("collective: OUT barrier error: " + err.Error())
		}
		if status == barrier.Reached {
			op.AdvanceState(int32(StateDone))
			s.reportDone(e)
			return pool.ResultComplete | pool.ResultInactive
		}
		return pool.ResultNone

	default: // StateDone: idempotent re-poll after completion.
		return pool.ResultComplete | pool.ResultInactive
	}
}

// reportDone increments the OpsCompleted counter once, the moment an op's
// scaffold first reaches StateDone.
func (s *scaffold) reportDone(e *Engine) {
	if e.Metrics != nil {
		e.Metrics.OpsCompleted.WithLabelValues(s.kind).Inc()
	}
}

// makePollFunc returns the pool.PollFunc for an op carrying a *scaffold
// reachable from op.Data (every Args type holds a scaffold in its sc field
// and exposes it via the scaffolded interface below).
func makePollFunc(e *Engine) pool.PollFunc {
	return func(op *pool.Op) pool.Result {
		s := op.Data.(scaffolded).scaffold()
		return s.poll(op, e)
	}
}

// scaffolded is implemented by every per-collective Args type, giving
// core.go access to the Args' scaffold without a type switch per
// collective.
type scaffolded interface {
	scaffold() *scaffold
}
