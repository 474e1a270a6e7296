// Package bootstrap brings up the shared collective.Engine exactly once per
// process: it discovers the team's rank layout over transport.Bootstrap,
// builds the image-to-rank Mapping, wires every active-message handler the
// collective algorithms need, and opens the private barrier that later
// threads in the same process join before any op can be submitted.
package bootstrap

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/pgasc/barrier"
	"github.com/luxfi/pgasc/collective"
	"github.com/luxfi/pgasc/metrics"
	"github.com/luxfi/pgasc/p2p"
	"github.com/luxfi/pgasc/pool"
	"github.com/luxfi/pgasc/transport"
)

// Config overrides the defaults NewTable and the engine otherwise use, per
// spec §6's client-configurable P2P sizing.
type Config struct {
	Images   int // images hosted by this process; 0 defaults to 1
	EagerMin int
	P2P      p2p.Config

	RMA      transport.RMA
	AM       transport.AM
	Notifier transport.Barrier
	Segments transport.SegmentTable

	// NamedBarrier enables value-checked barrier flags (debug builds catch
	// a caller mismatch as an error instead of silent corruption).
	NamedBarrier bool

	// Registerer, if non-nil, turns on the metrics package's collectors.
	Registerer prometheus.Registerer
}

// State is the fully initialized, process-wide collective runtime. A single
// State is shared by every thread's *pool.Context; bootstrap.Init is the
// only place one is ever constructed.
type State struct {
	Engine  *collective.Engine
	Alloc   *pool.Allocator
	Handles *pool.HandlePool
	Metrics *metrics.Metrics

	externalBarrier transport.Bootstrap

	privMu   sync.Mutex
	privCnt  int
	privSize int
	privCond *sync.Cond
}

var (
	once      sync.Once
	globalErr error
	global    *State
)

// Init brings up the shared State exactly once per process. Every later
// call to Init returns that same State (or the first call's error) without
// attaching again; Init itself does not join the private barrier, each
// thread calls JoinPrivateBarrier for that. This matches the reference
// engine's single-attach, multi-thread-join discipline (spec §3's "single
// process/team" Non-goal still allows multiple local threads).
func Init(ctx context.Context, boot transport.Bootstrap, cfg Config, threadCount int, lg log.Logger) (*State, error) {
	once.Do(func() {
		global, globalErr = attach(ctx, boot, cfg, threadCount, lg)
	})
	if globalErr != nil {
		return nil, globalErr
	}
	return global, nil
}

func attach(ctx context.Context, boot transport.Bootstrap, cfg Config, threadCount int, lg log.Logger) (*State, error) {
	if lg == nil {
		lg = log.NewNoOpLogger()
	}
	if cfg.Images <= 0 {
		cfg.Images = 1
	}
	if threadCount <= 0 {
		threadCount = 1
	}

	local := make([]byte, 4)
	binary.LittleEndian.PutUint32(local, uint32(cfg.Images))
	gathered, err := boot.Allgather(ctx, local)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: allgather image counts: %w", err)
	}

	imagesPerRank := make([]int, len(gathered))
	for i, b := range gathered {
		if len(b) != 4 {
			return nil, fmt.Errorf("bootstrap: rank %d reported a malformed image count", i)
		}
		imagesPerRank[i] = int(binary.LittleEndian.Uint32(b))
	}
	mapping := collective.NewMapping(imagesPerRank)

	if err := boot.Barrier(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: entry barrier: %w", err)
	}

	alloc := pool.NewAllocator()
	handles := pool.NewHandlePool()

	eagerMin := cfg.EagerMin
	if eagerMin <= 0 {
		eagerMin = p2p.DefaultEagerMin
	}
	p2pCfg := cfg.P2P
	table := p2p.NewTable(p2pCfg)

	var m *metrics.Metrics
	if cfg.Registerer != nil {
		m = metrics.New(cfg.Registerer)
	}

	engine := &collective.Engine{
		Log:      lg.With("component", "pgasc.collective"),
		RMA:      cfg.RMA,
		AM:       cfg.AM,
		Barrier:  barrier.New(cfg.NamedBarrier),
		Notifier: barrierAdapter{cfg.Notifier},
		P2P:      table,
		Segments: cfg.Segments,
		EagerMin: eagerMin,
		MyRank:   boot.Rank(),
		MyImage:  mapping.FirstImage(boot.Rank()),
		Images:   mapping,
		Metrics:  m,
	}
	collective.RegisterHandlers(engine)

	st := &State{
		Engine:          engine,
		Alloc:           alloc,
		Handles:         handles,
		Metrics:         m,
		externalBarrier: boot,
		privSize:        threadCount,
	}
	st.privCond = sync.NewCond(&st.privMu)

	if err := boot.Barrier(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: exit barrier: %w", err)
	}
	return st, nil
}

// barrierAdapter lets transport.Barrier (whose Try also returns a ready bool
// and an error) satisfy barrier.Notifier directly; the two interfaces already share a
// shape, so this is a pass-through, not a translation.
type barrierAdapter struct{ b transport.Barrier }

func (a barrierAdapter) Notify(ctx context.Context, id uint64, named bool) error {
	return a.b.Notify(ctx, id, named)
}

func (a barrierAdapter) Try(ctx context.Context, id uint64, named bool) (bool, error) {
	return a.b.Try(ctx, id, named)
}

// JoinPrivateBarrier is the later-thread counterpart to attach's external
// barrier: every local thread sharing this State must call it before
// submitting ops, so that a thread which attaches late never observes a
// collective op another thread already started racing against a stale
// Mapping.
func (s *State) JoinPrivateBarrier() {
	s.privMu.Lock()
	defer s.privMu.Unlock()
	s.privCnt++
	if s.privCnt >= s.privSize {
		s.privCond.Broadcast()
		return
	}
	for s.privCnt < s.privSize {
		s.privCond.Wait()
	}
}

// NewContext allocates a per-thread pool.Context bound to this State's
// shared arenas.
func (s *State) NewContext(threadID uint64) *pool.Context {
	return pool.NewContext(threadID, s.Alloc, s.Handles)
}
