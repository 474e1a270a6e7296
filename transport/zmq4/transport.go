// Package zmq4 is a real-network implementation of transport.AM and
// transport.RMA, wrapping github.com/luxfi/zmq/v4/networking the way the
// teacher's own networking/zmq4/transport.go embeds it: a thin struct
// around the shared transport, adding only the framing this protocol
// needs. RMA here is necessarily request/reply rather than true hardware
// RDMA — a store maintained by the peer being written to, addressed by a
// transport-minted key — since ZeroMQ gives us messaging, not a memory bus.
package zmq4

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/zmq/v4/networking"

	"github.com/luxfi/pgasc/transport"
)

const (
	msgTypeAM     = "pgasc.am"
	msgTypePut    = "pgasc.put"
	msgTypeGetReq = "pgasc.get.req"
	msgTypeGetRep = "pgasc.get.rep"
)

// Transport wraps the shared zmq4 networking transport for one rank of the
// collective engine, grounded on the teacher's Transport wrapper.
type Transport struct {
	*networking.Transport
	self   transport.Rank
	nodeID string

	mu       sync.Mutex
	mem      map[uintptr][]byte
	nextAddr uintptr
	pending  map[uintptr]chan []byte

	amMu     sync.Mutex
	handlers map[uint8]struct {
		kind transport.AMKind
		fn   transport.AMHandler
	}

	limits transport.Limits
}

// New creates a zmq4-backed Transport for rank self, listening on basePort.
func New(ctx context.Context, self transport.Rank, nodeID string, basePort int) *Transport {
	cfg := networking.DefaultConfig(nodeID, basePort)
	t := &Transport{
		Transport: networking.New(ctx, cfg),
		self:      self,
		nodeID:    nodeID,
		mem:       make(map[uintptr][]byte),
		nextAddr:  1,
		pending:   make(map[uintptr]chan []byte),
		handlers: make(map[uint8]struct {
			kind transport.AMKind
			fn   transport.AMHandler
		}),
		limits: transport.Limits{MaxMedium: 4096, MaxLongRequest: 1 << 20},
	}
	t.Transport.RegisterHandler(msgTypeAM, t.onAM)
	t.Transport.RegisterHandler(msgTypePut, t.onPut)
	t.Transport.RegisterHandler(msgTypeGetReq, t.onGetReq)
	t.Transport.RegisterHandler(msgTypeGetRep, t.onGetRep)
	return t
}

// Register publishes buf as in-segment memory reachable by remote puts and
// gets, returning its address.
func (t *Transport) Register(buf []byte) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr := t.nextAddr
	t.nextAddr++
	t.mem[addr] = buf
	return addr
}

func peerID(r transport.Rank) string { return fmt.Sprintf("rank-%d", r) }

// --- transport.AM ---

func (t *Transport) Limits() transport.Limits { return t.limits }

// RegisterHandler implements transport.AM's op-indexed dispatch, distinct
// from the embedded networking.Transport's own string-keyed
// RegisterHandler (invoked directly as t.Transport.RegisterHandler in New).
func (t *Transport) RegisterHandler(op uint8, kind transport.AMKind, h transport.AMHandler) {
	t.amMu.Lock()
	defer t.amMu.Unlock()
	t.handlers[op] = struct {
		kind transport.AMKind
		fn   transport.AMHandler
	}{kind: kind, fn: h}
}

func (t *Transport) onAM(msg *networking.Message) {
	f, err := unmarshalFrame(msg.Data)
	if err != nil {
		return
	}
	t.amMu.Lock()
	h, ok := t.handlers[uint8(f.Op)]
	t.amMu.Unlock()
	if !ok {
		return
	}
	from := rankFromPeerID(msg.From)
	h.fn(from, f.Header, f.Payload)
}

func (t *Transport) RequestShort(ctx context.Context, dst transport.Rank, op uint8, header []uint32) error {
	return t.sendFrame(dst, frame{Op: uint32(op), Header: header})
}

func (t *Transport) RequestMedium(ctx context.Context, dst transport.Rank, op uint8, header []uint32, payload []byte) error {
	if len(payload) > t.limits.MaxMedium {
		return fmt.Errorf("zmq4: medium payload %d exceeds max %d", len(payload), t.limits.MaxMedium)
	}
	return t.sendFrame(dst, frame{Op: uint32(op), Header: header, Payload: payload})
}

// RequestLong writes payload into dst's registered memory at remoteAddr via
// a put message, then a header-only AM frame carries the state-word
// notification, mirroring the two-step put-signal of spec §4.5.
func (t *Transport) RequestLong(ctx context.Context, dst transport.Rank, op uint8, header []uint32, payload []byte, remoteAddr uintptr) error {
	if len(payload) > t.limits.MaxLongRequest {
		return fmt.Errorf("zmq4: long payload %d exceeds max %d", len(payload), t.limits.MaxLongRequest)
	}
	if err := t.putRemote(ctx, dst, remoteAddr, payload); err != nil {
		return err
	}
	return t.sendFrame(dst, frame{Op: uint32(op), Header: header})
}

func (t *Transport) sendFrame(dst transport.Rank, f frame) error {
	msg := &networking.Message{
		Type: msgTypeAM,
		From: peerID(t.self),
		Data: f.marshal(),
	}
	return t.Send(peerID(dst), msg)
}

// Poll is a no-op here: the embedded networking.Transport delivers inbound
// messages to onAM/onPut/... via its own registered-handler dispatch loop,
// so there is nothing left to drain synchronously. It is kept to satisfy
// transport.AM's interface, matching the reference engine's requirement
// that AM progress be reachable from the same poll pass as collective
// progress even when the underlying transport is event-driven.
func (t *Transport) Poll() {}

func rankFromPeerID(id string) transport.Rank {
	var r int
	fmt.Sscanf(id, "rank-%d", &r)
	return transport.Rank(r)
}

// --- transport.RMA (request/reply over messaging, see package doc) ---

type region struct {
	t    *Transport
	dsts []struct {
		dst  transport.Rank
		addr uintptr
		src  []byte
	}
}

func (r *region) Put(ctx context.Context, dst transport.Rank, addr uintptr, src []byte) error {
	cp := append([]byte(nil), src...)
	r.dsts = append(r.dsts, struct {
		dst  transport.Rank
		addr uintptr
		src  []byte
	}{dst, addr, cp})
	return nil
}

func (t *Transport) BeginAccessRegion() transport.AccessRegion { return &region{t: t} }

func (t *Transport) EndAccessRegion(ar transport.AccessRegion) (transport.CompletionHandle, error) {
	r := ar.(*region)
	for _, p := range r.dsts {
		if err := t.putRemote(context.Background(), p.dst, p.addr, p.src); err != nil {
			return 0, err
		}
	}
	return 1, nil
}

func (t *Transport) putRemote(ctx context.Context, dst transport.Rank, addr uintptr, data []byte) error {
	f := frame{Header: []uint32{uint32(addr)}, Payload: data}
	msg := &networking.Message{Type: msgTypePut, From: peerID(t.self), Data: f.marshal()}
	return t.Send(peerID(dst), msg)
}

func (t *Transport) onPut(msg *networking.Message) {
	f, err := unmarshalFrame(msg.Data)
	if err != nil || len(f.Header) == 0 {
		return
	}
	addr := uintptr(f.Header[0])
	t.mu.Lock()
	buf := t.mem[addr]
	t.mu.Unlock()
	if buf != nil {
		copy(buf, f.Payload)
	}
}

func (t *Transport) GetNB(ctx context.Context, src transport.Rank, srcAddr uintptr, dstBuf []byte) (transport.CompletionHandle, error) {
	ch := make(chan []byte, 1)
	t.mu.Lock()
	t.pending[srcAddr] = ch
	t.mu.Unlock()

	f := frame{Header: []uint32{uint32(srcAddr), uint32(len(dstBuf))}}
	msg := &networking.Message{Type: msgTypeGetReq, From: peerID(t.self), Data: f.marshal()}
	if err := t.Send(peerID(src), msg); err != nil {
		return 0, err
	}

	select {
	case data := <-ch:
		copy(dstBuf, data)
		return 1, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (t *Transport) onGetReq(msg *networking.Message) {
	f, err := unmarshalFrame(msg.Data)
	if err != nil || len(f.Header) < 2 {
		return
	}
	addr := uintptr(f.Header[0])
	n := int(f.Header[1])
	t.mu.Lock()
	buf := t.mem[addr]
	t.mu.Unlock()
	if buf == nil {
		return
	}
	if n > len(buf) {
		n = len(buf)
	}
	reply := frame{Header: []uint32{uint32(addr)}, Payload: buf[:n]}
	replyMsg := &networking.Message{Type: msgTypeGetRep, From: peerID(t.self), Data: reply.marshal()}
	t.Send(msg.From, replyMsg)
}

func (t *Transport) onGetRep(msg *networking.Message) {
	f, err := unmarshalFrame(msg.Data)
	if err != nil || len(f.Header) == 0 {
		return
	}
	addr := uintptr(f.Header[0])
	t.mu.Lock()
	ch := t.pending[addr]
	delete(t.pending, addr)
	t.mu.Unlock()
	if ch != nil {
		ch <- f.Payload
	}
}

func (t *Transport) PutNB(ctx context.Context, dst transport.Rank, dstAddr uintptr, src []byte) (transport.CompletionHandle, error) {
	if err := t.putRemote(ctx, dst, dstAddr, src); err != nil {
		return 0, err
	}
	return 1, nil
}

// TrySync always reports completion for this request/reply backing: GetNB
// blocks inline until its reply arrives and PutNB/EndAccessRegion send
// synchronously, so every handle this Transport mints is already done.
func (t *Transport) TrySync(h transport.CompletionHandle) (bool, error) {
	return true, nil
}
