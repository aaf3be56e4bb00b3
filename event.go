package asyncio

// EventFlags selects the readiness directions of interest for an fd.
type EventFlags uint8

const (
	// EventRead requests wakeup when the fd becomes readable
	EventRead EventFlags = 1 << iota
	// EventWrite requests wakeup when the fd becomes writable
	EventWrite
)

// Event binds a file descriptor and the directions a handle wants to be
// woken for. The selector delivers the bound handle back when the fd is
// ready.
type Event struct {
	FD    int
	Flags EventFlags
}

// eventAwaiter suspends its owner until the selector reports readiness on
// the bound event. Interest is registered on each await and dropped on
// resume or unwind, so the selector never holds a reference to a handle
// past its suspension.
type eventAwaiter struct {
	loop       *EventLoop
	ev         Event
	registered bool
}

// waitEvent constructs an awaiter for ev bound to this loop.
func (l *EventLoop) waitEvent(ev Event) *eventAwaiter {
	return &eventAwaiter{loop: l, ev: ev}
}

// await registers the caller with the selector and parks it until delivery.
// The deferred destroy also covers cancellation unwinds, so no selector
// entry can outlive the suspended frame.
func (a *eventAwaiter) await(co *Coro) error {
	if err := a.loop.sel.register(a.ev.FD, a.ev.Flags, co.self); err != nil {
		return err
	}
	a.registered = true
	defer a.destroy()
	co.suspend()
	return nil
}

// destroy drops outstanding selector interest. Idempotent.
func (a *eventAwaiter) destroy() {
	if a.registered {
		a.loop.sel.unregister(a.ev.FD, a.ev.Flags)
		a.registered = false
	}
}
