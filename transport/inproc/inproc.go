// Package inproc is a reference, single-process implementation of
// transport.RMA/transport.AM/transport.Barrier/transport.Bootstrap, built
// over goroutine-safe shared maps rather than a real network. It exists so
// the collective engine's algorithms and the end-to-end scenarios in
// spec §8 can run deterministically in tests.
package inproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/pgasc/transport"
)

// Network is the shared simulated fabric for a fixed set of ranks.
type Network struct {
	mu    sync.Mutex
	nodes []*node

	barrierMu   sync.Mutex
	barrierCnt  map[uint64]int
	barrierDone map[uint64]bool

	allgatherBuf [][]byte
	bcastBuf     []byte
}

type node struct {
	mu       sync.Mutex
	spans    []span
	nextAddr uintptr

	amMu     sync.Mutex
	inbox    []amMsg
	handlers map[uint8]handlerEntry
}

// span is one registered region of a node's simulated segment. Addresses
// within [addr, addr+len(buf)) resolve to a sub-slice of buf, matching a
// real RMA segment where any byte of a registered region is independently
// addressable by offset arithmetic — collective's scatter/gather/exchange
// algorithms rely on exactly this (e.g. SrcAddr + rank*pieceSize).
type span struct {
	addr uintptr
	buf  []byte
}

type handlerEntry struct {
	kind transport.AMKind
	fn   transport.AMHandler
}

type amMsg struct {
	from transport.Rank
	op   uint8
	kind transport.AMKind
	hdr  []uint32
	data []byte
}

// NewNetwork builds a Network with n ranks.
func NewNetwork(n int) *Network {
	net := &Network{
		nodes:       make([]*node, n),
		barrierCnt:  make(map[uint64]int),
		barrierDone: make(map[uint64]bool),
	}
	for i := range net.nodes {
		net.nodes[i] = &node{
			nextAddr: 1,
			handlers: make(map[uint8]handlerEntry),
		}
	}
	return net
}

// Size returns the number of ranks in the network.
func (n *Network) Size() int { return len(n.nodes) }

// Register publishes buf as in-segment memory for rank r and returns its
// simulated base address; any address in [addr, addr+len(buf)) is valid for
// that rank's RMA/AM calls, resolving to the matching offset within buf.
func (n *Network) Register(r transport.Rank, buf []byte) uintptr {
	nd := n.nodes[r]
	nd.mu.Lock()
	defer nd.mu.Unlock()
	addr := nd.nextAddr
	nd.nextAddr += uintptr(len(buf)) + 1
	nd.spans = append(nd.spans, span{addr: addr, buf: buf})
	return addr
}

func (n *Network) resolve(r transport.Rank, addr uintptr) []byte {
	nd := n.nodes[r]
	nd.mu.Lock()
	defer nd.mu.Unlock()
	for _, s := range nd.spans {
		if addr >= s.addr && addr < s.addr+uintptr(len(s.buf)) {
			return s.buf[addr-s.addr:]
		}
	}
	return nil
}

// Endpoint is one rank's view of the Network, implementing
// transport.RMA and transport.AM.
type Endpoint struct {
	net    *Network
	self   transport.Rank
	limits transport.Limits
}

// NewEndpoint binds an Endpoint to rank self within net.
func NewEndpoint(net *Network, self transport.Rank) *Endpoint {
	return &Endpoint{
		net:  net,
		self: self,
		limits: transport.Limits{
			MaxMedium:      4096,
			MaxLongRequest: 1 << 20,
		},
	}
}

// --- transport.RMA ---

type region struct {
	ep   *Endpoint
	ctx  context.Context
	puts []pendingPut
}

type pendingPut struct {
	dst  transport.Rank
	addr uintptr
	src  []byte
}

func (r *region) Put(ctx context.Context, dst transport.Rank, addr uintptr, src []byte) error {
	cp := make([]byte, len(src))
	copy(cp, src)
	r.puts = append(r.puts, pendingPut{dst: dst, addr: addr, src: cp})
	return nil
}

func (e *Endpoint) BeginAccessRegion() transport.AccessRegion {
	return &region{ep: e}
}

func (e *Endpoint) EndAccessRegion(ar transport.AccessRegion) (transport.CompletionHandle, error) {
	r, ok := ar.(*region)
	if !ok {
		return 0, fmt.Errorf("inproc: foreign access region")
	}
	for _, p := range r.puts {
		dstBuf := e.net.resolve(p.dst, p.addr)
		copy(dstBuf, p.src)
	}
	return 1, nil
}

func (e *Endpoint) GetNB(ctx context.Context, src transport.Rank, srcAddr uintptr, dstBuf []byte) (transport.CompletionHandle, error) {
	buf := e.net.resolve(src, srcAddr)
	copy(dstBuf, buf)
	return 1, nil
}

func (e *Endpoint) PutNB(ctx context.Context, dst transport.Rank, dstAddr uintptr, src []byte) (transport.CompletionHandle, error) {
	buf := e.net.resolve(dst, dstAddr)
	copy(buf, src)
	return 1, nil
}

// TrySync always reports completion: every inproc RMA call above already
// ran synchronously to completion by the time it returned a handle.
func (e *Endpoint) TrySync(h transport.CompletionHandle) (bool, error) {
	return true, nil
}

// --- transport.AM ---

func (e *Endpoint) Limits() transport.Limits { return e.limits }

func (e *Endpoint) RegisterHandler(op uint8, kind transport.AMKind, h transport.AMHandler) {
	nd := e.net.nodes[e.self]
	nd.amMu.Lock()
	defer nd.amMu.Unlock()
	nd.handlers[op] = handlerEntry{kind: kind, fn: h}
}

func (e *Endpoint) send(dst transport.Rank, m amMsg) {
	nd := e.net.nodes[dst]
	nd.amMu.Lock()
	nd.inbox = append(nd.inbox, m)
	nd.amMu.Unlock()
}

func (e *Endpoint) RequestShort(ctx context.Context, dst transport.Rank, op uint8, header []uint32) error {
	e.send(dst, amMsg{from: e.self, op: op, kind: transport.AMShort, hdr: header})
	return nil
}

func (e *Endpoint) RequestMedium(ctx context.Context, dst transport.Rank, op uint8, header []uint32, payload []byte) error {
	if len(payload) > e.limits.MaxMedium {
		return fmt.Errorf("inproc: medium payload %d exceeds max %d", len(payload), e.limits.MaxMedium)
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	e.send(dst, amMsg{from: e.self, op: op, kind: transport.AMMedium, hdr: header, data: cp})
	return nil
}

// RequestLong writes payload directly into dst's registered memory at
// remoteAddr (the RDMA-style half of a put-signal), then enqueues the
// header-only notification the handler uses to store the state word.
func (e *Endpoint) RequestLong(ctx context.Context, dst transport.Rank, op uint8, header []uint32, payload []byte, remoteAddr uintptr) error {
	if len(payload) > e.limits.MaxLongRequest {
		return fmt.Errorf("inproc: long payload %d exceeds max %d", len(payload), e.limits.MaxLongRequest)
	}
	buf := e.net.resolve(dst, remoteAddr)
	copy(buf, payload)
	e.send(dst, amMsg{from: e.self, op: op, kind: transport.AMLong, hdr: header})
	return nil
}

// Poll drains this rank's inbox and dispatches to registered handlers.
func (e *Endpoint) Poll() {
	nd := e.net.nodes[e.self]
	nd.amMu.Lock()
	pending := nd.inbox
	nd.inbox = nil
	nd.amMu.Unlock()

	for _, m := range pending {
		nd.amMu.Lock()
		h, ok := nd.handlers[m.op]
		nd.amMu.Unlock()
		if ok {
			h.fn(m.from, m.hdr, m.data)
		}
	}
}

// --- transport.Barrier ---

func (n *Network) Notify(ctx context.Context, id uint64, named bool) error {
	n.barrierMu.Lock()
	defer n.barrierMu.Unlock()
	n.barrierCnt[id]++
	if n.barrierCnt[id] == len(n.nodes) {
		n.barrierDone[id] = true
	}
	return nil
}

func (n *Network) Try(ctx context.Context, id uint64, named bool) (bool, error) {
	n.barrierMu.Lock()
	defer n.barrierMu.Unlock()
	return n.barrierDone[id], nil
}

// --- transport.Bootstrap ---

// Boot is a Network-backed Bootstrap for one rank.
type Boot struct {
	net  *Network
	self transport.Rank

	mu        sync.Mutex
	allgather map[int][][]byte
	bcast     map[int][]byte
	seen      map[int]int
}

func NewBoot(net *Network, self transport.Rank) *Boot {
	return &Boot{net: net, self: self}
}

func (b *Boot) Size() int             { return b.net.Size() }
func (b *Boot) Rank() transport.Rank  { return b.self }
func (b *Boot) Abort(reason string)   { panic("inproc bootstrap abort: " + reason) }

// Allgather and Broadcast below are intentionally simplistic rendezvous
// points shared across the Network's ranks rather than real message
// passing — adequate for Init, which every real Bootstrap runs exactly
// once per process before any collective traffic exists.
func (b *Boot) Allgather(ctx context.Context, local []byte) ([][]byte, error) {
	b.net.mu.Lock()
	defer b.net.mu.Unlock()
	if b.net.allgatherBuf == nil {
		b.net.allgatherBuf = make([][]byte, len(b.net.nodes))
	}
	b.net.allgatherBuf[b.self] = local
	out := make([][]byte, len(b.net.allgatherBuf))
	copy(out, b.net.allgatherBuf)
	return out, nil
}

func (b *Boot) Broadcast(ctx context.Context, root transport.Rank, data []byte) ([]byte, error) {
	b.net.mu.Lock()
	defer b.net.mu.Unlock()
	if b.self == root {
		b.net.bcastBuf = data
	}
	return b.net.bcastBuf, nil
}

func (b *Boot) Barrier(ctx context.Context) error {
	return nil
}
