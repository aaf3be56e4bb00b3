package asyncio

import (
	"fmt"
	"iter"
	"path/filepath"
	"runtime"
)

// Void is the uniform stand-in result for coroutines that produce nothing,
// so the result slot has the same shape regardless of type.
type Void struct{}

// resultState tracks the one-shot transition of a task's result slot.
type resultState uint8

const (
	resultUnset resultState = iota
	resultValue
	resultError
)

// taskCore is the type-erased promise state the loop works with: identity,
// scheduling state, continuation linkage and the backtrace link used for
// callstack dumps.
type taskCore struct {
	handleBase
	loop     *EventLoop
	location string // spawn site, for diagnostics

	started  bool
	finished bool
	released bool // frame unwound by Cancel

	// continuation is resumed via CallSoon when this frame reaches its
	// final suspension.
	continuation Handle
	// awaiter is the promise suspended awaiting this one. Diagnostic only.
	awaiter *taskCore
}

// Coro is the capability handle passed to every coroutine body. It carries
// the owning loop, the frame's promise state and the yield used at each
// suspension point.
type Coro struct {
	loop  *EventLoop
	core  *taskCore
	self  Handle
	yield func(struct{}) bool
}

// Loop returns the event loop driving this coroutine.
func (co *Coro) Loop() *EventLoop { return co.loop }

// suspend parks the coroutine until the loop resumes its handle. When the
// frame is being unwound, suspend never returns: it panics with errUnwind so
// deferred cleanups run before the frame is released.
func (co *Coro) suspend() {
	if !co.yield(struct{}{}) {
		panic(errUnwind)
	}
}

// Task is an owning reference to a coroutine frame producing a single
// result. The result slot transitions unset -> value-or-error exactly once;
// reading it earlier yields ErrNoResult.
type Task[T any] struct {
	core *taskCore
	co   *Coro

	next func() (struct{}, bool)
	stop func()

	rstate resultState
	value  T
	err    error
}

// Spawn creates a coroutine running fn and schedules it immediately
// (eager-start). The returned task may be awaited with Await or detached
// with ScheduleTask.
func Spawn[T any](l *EventLoop, fn func(*Coro) (T, error)) *Task[T] {
	t := newTask(l, fn, callerLocation(2))
	l.CallSoon(t)
	return t
}

// NewTask creates a coroutine running fn but leaves it at its initial
// suspension: nothing runs until the task is awaited or scheduled.
func NewTask[T any](l *EventLoop, fn func(*Coro) (T, error)) *Task[T] {
	return newTask(l, fn, callerLocation(2))
}

func newTask[T any](l *EventLoop, fn func(*Coro) (T, error), loc string) *Task[T] {
	t := &Task[T]{
		core: &taskCore{handleBase: handleBase{id: l.nextID()}, loop: l, location: loc},
	}
	t.co = &Coro{loop: l, core: t.core, self: t}
	seq := func(yield func(struct{}) bool) {
		t.co.yield = yield
		defer func() {
			if r := recover(); r != nil {
				if r == errUnwind {
					return
				}
				panic(r)
			}
		}()
		v, err := fn(t.co)
		if err != nil {
			t.err = err
			t.rstate = resultError
		} else {
			t.value = v
			t.rstate = resultValue
		}
	}
	t.next, t.stop = iter.Pull(seq)
	return t
}

func (t *Task[T]) base() *handleBase { return &t.core.handleBase }

// run resumes the frame until its next suspension or completion. Called by
// the loop's drain step only.
func (t *Task[T]) run() {
	if t.core.finished || t.core.released {
		return
	}
	t.core.started = true
	prev := t.core.loop.current
	t.core.loop.current = t.core
	_, more := t.next()
	t.core.loop.current = prev
	if !more {
		t.finish()
	}
}

// finish records final suspension: release the frame and hand the
// continuation to the loop. The continuation runs no earlier than the next
// drain step, never inline.
func (t *Task[T]) finish() {
	t.core.finished = true
	t.stop()
	if c := t.core.continuation; c != nil {
		t.core.continuation = nil
		t.core.loop.CallSoon(c)
	}
}

// Done reports whether the result slot has been set.
func (t *Task[T]) Done() bool {
	return t != nil && t.rstate != resultUnset
}

// Cancelled reports whether the frame was unwound before producing a result.
func (t *Task[T]) Cancelled() bool {
	return t != nil && t.core.released && t.rstate == resultUnset
}

// Result returns the stored value or error. It fails with ErrNoResult while
// the slot is unset and with ErrInvalidFuture on a nil task or one whose
// frame was released by Cancel.
func (t *Task[T]) Result() (T, error) {
	var zero T
	if t == nil || t.core == nil || t.core.released {
		return zero, ErrInvalidFuture
	}
	switch t.rstate {
	case resultValue:
		return t.value, nil
	case resultError:
		return zero, t.err
	}
	return zero, ErrNoResult
}

// Cancel unwinds the frame: the handle is dropped from any queue it sits
// in, deferred cleanups inside the body release timer and selector entries,
// and the result slot stays unset forever. Cancelling a finished task is a
// no-op. Cancelling the currently running task is a programming error.
func (t *Task[T]) Cancel() {
	if t == nil || t.core == nil || t.core.finished || t.core.released {
		return
	}
	if t.core.loop.current == t.core {
		panic("asyncio: cannot cancel the running task from within itself")
	}
	t.core.st = stateCancelled
	t.core.continuation = nil
	t.core.released = true
	t.stop()
}

// Await suspends the calling coroutine until t's result slot is set, then
// returns the stored value or error. If t has not started yet it is
// scheduled first (lazy tasks begin here).
func Await[T any](co *Coro, t *Task[T]) (T, error) {
	var zero T
	if t == nil || t.core == nil {
		return zero, ErrInvalidFuture
	}
	if t.core.released {
		return zero, ErrInvalidFuture
	}
	if !t.core.finished {
		t.core.continuation = co.self
		t.core.awaiter = co.core
		if !t.core.started && t.core.st == stateSuspended {
			co.loop.CallSoon(t)
		}
		co.suspend()
		t.core.awaiter = nil
	}
	return t.Result()
}

func callerLocation(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	name := "func"
	if f := runtime.FuncForPC(pc); f != nil {
		name = filepath.Base(f.Name())
	}
	return fmt.Sprintf("%s(%s:%d)", name, filepath.Base(file), line)
}
