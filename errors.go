package pgasc

import "errors"

// Sentinel errors returned at the public API boundary, per spec §7's error
// taxonomy. A caller that gets one of these back, rather than a specific
// *collective.ErrBadArg, hit a condition the reference engine treats as
// fatal; Fatal wraps the conventional response to that.
var (
	// ErrNotReady names the not-yet-completed condition. TrySync reports it
	// by returning false; no function in this package returns this error.
	ErrNotReady = errors.New("pgasc: operation not ready")

	// ErrBarrierMismatch surfaces barrier.ErrMismatch at the public boundary:
	// two threads disagreed about which synchronization point they were
	// waiting on.
	ErrBarrierMismatch = errors.New("pgasc: barrier mismatch")

	// ErrBadArg covers malformed call arguments caught before any op is
	// scheduled (bad flags, out-of-segment addresses, wrong list lengths).
	ErrBadArg = errors.New("pgasc: bad argument")

	// ErrResource is returned when the process-wide arenas could not satisfy
	// an allocation (unreachable in this core's unbounded chunked pools, kept
	// for parity with the reference engine's resource-exhaustion path).
	ErrResource = errors.New("pgasc: resource exhausted")

	// ErrNotInit names the called-before-Init condition. No function in this
	// package returns it: a *Client only exists once Init has succeeded.
	ErrNotInit = errors.New("pgasc: not initialized")
)
