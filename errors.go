package asyncio

import "errors"

var (
	// ErrTimeout means the operation exceeded its deadline before completion
	ErrTimeout = errors.New("asyncio: operation timed out")
	// ErrNoResult means the coroutine result slot has not been set yet
	ErrNoResult = errors.New("asyncio: result is unset")
	// ErrInvalidFuture means the task's frame is nil or has been released
	ErrInvalidFuture = errors.New("asyncio: future is invalid")
	// ErrLoopRunning means RunUntilComplete was entered reentrantly
	ErrLoopRunning = errors.New("asyncio: event loop already running")
	// ErrEventConflict means the fd direction already has a registered owner
	ErrEventConflict = errors.New("asyncio: fd direction already registered")
	// ErrSelectorClosed means the selector has been closed
	ErrSelectorClosed = errors.New("asyncio: selector closed")
	// ErrStreamClosed means the stream has been closed or shut down
	ErrStreamClosed = errors.New("asyncio: stream closed")
	// ErrAddressFamily means the socket address is neither IPv4 nor IPv6
	ErrAddressFamily = errors.New("asyncio: address family not inet")
	// ErrUnsupported means the platform has no readiness or affinity backend
	ErrUnsupported = errors.New("asyncio: not supported on this platform")
	// ErrCPUID indicates the given cpuid is invalid
	ErrCPUID = errors.New("asyncio: no such core")
)

// errUnwind is panicked inside a coroutine frame when its pull iterator is
// stopped, so that deferred cleanups run before the frame is released. It is
// recovered by the frame wrapper and never escapes the task.
var errUnwind = errors.New("asyncio: frame unwound")
