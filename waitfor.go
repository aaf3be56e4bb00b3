package asyncio

import "time"

// WaitFor awaits t for at most d. If the deadline passes first, t is
// cancelled and ErrTimeout is returned; otherwise the result is exactly
// what Await would have produced. An unstarted task begins here, like in
// Await.
func WaitFor[T any](co *Coro, t *Task[T], d time.Duration) (T, error) {
	var zero T
	if t == nil || t.core == nil || t.core.released {
		return zero, ErrInvalidFuture
	}
	if t.core.finished {
		return t.Result()
	}
	t.core.continuation = co.self
	t.core.awaiter = co.core
	if !t.core.started && t.core.st == stateSuspended {
		co.loop.CallSoon(t)
	}
	// Completion and expiry race through the same handle; whichever loses
	// is torn down after the wakeup.
	tid := co.loop.CallLater(d, co.self)
	defer co.loop.CancelTimer(tid)
	co.suspend()
	t.core.awaiter = nil
	if t.core.finished {
		return t.Result()
	}
	t.Cancel()
	return zero, ErrTimeout
}
