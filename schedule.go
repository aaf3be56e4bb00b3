package asyncio

import "log/slog"

// ScheduleTask detaches t to run in the background: the task is scheduled
// if it has not started and a logging continuation reports a failed result
// when it finishes. Awaiting the task afterwards replaces that
// continuation, since a frame resumes at most one waiter. The task must
// not outlive its loop.
func ScheduleTask[T any](l *EventLoop, t *Task[T]) *Task[T] {
	if t == nil || t.core == nil || t.core.finished || t.core.released {
		return t
	}
	t.core.continuation = l.newFuncHandle(func() {
		if _, err := t.Result(); err != nil {
			l.log.Warn("background task failed",
				slog.String("task", t.core.location),
				slog.Any("err", err))
		}
	})
	if !t.core.started && t.core.st == stateSuspended {
		l.CallSoon(t)
	}
	return t
}
