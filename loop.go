package asyncio

import (
	"container/heap"
	"log/slog"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"
)

const (
	// Maximum number of kernel events per poll.
	maxEvents = 4096
	// Upper bound on a single selector poll, so the loop re-checks its
	// termination condition even when no timer is pending.
	maxPollTimeout = time.Second
)

// EventLoop owns the ready queue, the timer heap, the selector and the
// current-task pointer. It is single-threaded and not safe for use from
// more than one goroutine; all handles it stores are non-owning and must be
// cancelled before the referenced unit is destroyed.
type EventLoop struct {
	ready    *queue.Queue
	timers   timerHeap
	timerIDs map[uint64]*timerHandle
	sel      *selector

	current *taskCore
	seq     uint64
	running bool
	closed  bool

	selSize int
	log     *slog.Logger
}

// Option customizes event loop construction.
type Option func(*EventLoop)

// WithLogger replaces the loop's structured logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *EventLoop) { l.log = lg }
}

// WithSelectorBufferSize caps the number of kernel events fetched per poll.
func WithSelectorBufferSize(n int) Option {
	return func(l *EventLoop) {
		if n > 0 {
			l.selSize = n
		}
	}
}

// NewEventLoop creates an event loop and its selector backend.
func NewEventLoop(opts ...Option) (*EventLoop, error) {
	l := &EventLoop{
		ready:    queue.New(),
		timerIDs: make(map[uint64]*timerHandle),
		selSize:  maxEvents,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	sel, err := newSelector(l.selSize)
	if err != nil {
		return nil, err
	}
	l.sel = sel
	l.log = l.log.With(slog.String("loop", uuid.NewString()))
	return l, nil
}

// Close releases the selector. The loop must not be running.
func (l *EventLoop) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return l.sel.close()
}

// Logger returns the loop's structured logger.
func (l *EventLoop) Logger() *slog.Logger { return l.log }

func (l *EventLoop) nextID() uint64 {
	l.seq++
	return l.seq
}

// TaskInfo identifies a spawned coroutine for diagnostics.
type TaskInfo struct {
	ID       uint64
	Location string
}

// CurrentTask describes the coroutine whose body is executing, or returns
// nil between resumptions.
func (l *EventLoop) CurrentTask() *TaskInfo {
	if l.current == nil {
		return nil
	}
	return &TaskInfo{ID: l.current.id, Location: l.current.location}
}

// CallSoon pushes h to the back of the ready queue. A handle already queued
// or cancelled is left alone, keeping the at-most-once queue invariant.
func (l *EventLoop) CallSoon(h Handle) {
	b := h.base()
	if b.st != stateSuspended {
		return
	}
	b.st = stateScheduled
	l.ready.Add(h)
}

// CallLater schedules h to run after delay. The returned id cancels the
// wakeup via CancelTimer.
func (l *EventLoop) CallLater(delay time.Duration, h Handle) uint64 {
	return l.CallAt(time.Now().Add(delay), h)
}

// CallAt schedules h to run at deadline. Timers with equal deadlines fire
// in scheduling order.
func (l *EventLoop) CallAt(deadline time.Time, h Handle) uint64 {
	t := &timerHandle{when: deadline, id: l.nextID(), h: h}
	heap.Push(&l.timers, t)
	l.timerIDs[t.id] = t
	return t.id
}

// CancelTimer marks the timer entry cancelled; it is discarded when it
// surfaces from the heap. Unknown ids (already fired or cancelled) are
// ignored.
func (l *EventLoop) CancelTimer(id uint64) {
	if t, ok := l.timerIDs[id]; ok {
		t.cancelled = true
		delete(l.timerIDs, id)
	}
}

// RunUntilComplete drives the loop until t's result slot is set, then
// returns the stored value or error. It must not be called reentrantly.
func RunUntilComplete[T any](l *EventLoop, t *Task[T]) (T, error) {
	var zero T
	if t == nil || t.core == nil {
		return zero, ErrInvalidFuture
	}
	if l.running {
		return zero, ErrLoopRunning
	}
	if l.closed {
		return zero, ErrSelectorClosed
	}
	l.running = true
	defer func() { l.running = false }()

	if t.core.finished {
		return t.Result()
	}
	done := false
	t.core.continuation = l.newFuncHandle(func() { done = true })
	if !t.core.started && t.core.st == stateSuspended {
		l.CallSoon(t)
	}
	for !done {
		if t.core.released {
			return zero, ErrInvalidFuture
		}
		if err := l.tick(); err != nil {
			return zero, err
		}
	}
	return t.Result()
}

// tick is one loop iteration: move expired timers, poll the selector, then
// drain the ready queue. Work enqueued during the drain runs in the same
// tick.
func (l *EventLoop) tick() error {
	now := time.Now()
	for l.timers.Len() > 0 {
		t := l.timers[0]
		if t.when.After(now) {
			break
		}
		heap.Pop(&l.timers)
		if t.cancelled {
			continue
		}
		delete(l.timerIDs, t.id)
		l.CallSoon(t.h)
	}

	timeout := maxPollTimeout
	if l.ready.Length() > 0 {
		timeout = 0
	} else if l.timers.Len() > 0 {
		timeout = time.Until(l.timers[0].when)
		if timeout < 0 {
			timeout = 0
		} else if timeout > maxPollTimeout {
			timeout = maxPollTimeout
		}
	}

	handles, err := l.sel.selectEvents(timeout)
	if err != nil {
		return err
	}
	for _, h := range handles {
		l.CallSoon(h)
	}

	for l.ready.Length() > 0 {
		h := l.ready.Remove().(Handle)
		b := h.base()
		if b.st == stateCancelled {
			continue
		}
		b.st = stateSuspended
		h.run()
	}
	return nil
}
