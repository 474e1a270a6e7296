package p2p

import "errors"

// ErrShortElem is returned when a caller asks for an eager fragment size
// that can't hold even one element.
var ErrShortElem = errors.New("p2p: element size exceeds medium active-message payload")

// PutSignal writes payload directly into the slot's Data at byteOffset, then
// publishes by storing state into State[wordOffset]. This mirrors the
// "put-signal" eager request of spec §4.5/§6: a reliable small RDMA-style
// write plus a single state word, used when the whole payload fits the
// transport's long-request maximum in one shot.
func (s *Slot) PutSignal(byteOffset int, payload []byte, wordOffset int, state uint32) {
	copy(s.Data[byteOffset:], payload)
	s.State[wordOffset].Store(state)
}

// EagerPayload copies count*elemSize bytes into Data at
// offset*elemSize and marks State[offset:offset+count] with state. The
// collective layer's eager headers carry (team, sequence, nbytes) for
// broadcast and (team, sequence, per-image size, image offset, image count)
// for scatter and gather; no state word travels on the wire, and every
// receiving handler stores state 1. No caller fragments a transfer: each
// eager payload goes out as a single medium active message.
func (s *Slot) EagerPayload(offset int, payload []byte, elemSize int, count int, state uint32) {
	base := offset * elemSize
	copy(s.Data[base:base+len(payload)], payload)
	for i := offset; i < offset+count; i++ {
		s.State[i].Store(state)
	}
}

// FragmentCount returns how many elemSize-sized elements fit in one eager
// medium active message of at most maxMedium bytes.
func FragmentCount(maxMedium, elemSize int) (int, error) {
	if elemSize > maxMedium {
		return 0, ErrShortElem
	}
	return maxMedium / elemSize, nil
}

// ReadAfterState loads State[offset] and, if non-zero, returns the bytes
// published at Data[offset*elemSize : +len], honoring the read-after-state
// ordering spec §3/§5 requires (payload writes are ordered before the state
// store on the producer; the atomic load here is the matching acquire on
// the consumer).
func (s *Slot) ReadAfterState(offset int, elemSize int, n int) (data []byte, ready bool) {
	if s.State[offset].Load() == 0 {
		return nil, false
	}
	base := offset * elemSize
	return s.Data[base : base+n], true
}
