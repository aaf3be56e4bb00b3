package asyncio

import "time"

// Sleep suspends the calling coroutine for at least d. Other coroutines and
// selector events keep running while it sleeps. A non-positive d still
// yields to the loop for one round trip.
func Sleep(co *Coro, d time.Duration) {
	id := co.loop.CallLater(d, co.self)
	defer co.loop.CancelTimer(id)
	co.suspend()
}

// SleepTask wraps Sleep in a lazy task, so a delay can be gathered or
// raced with WaitFor.
func SleepTask(l *EventLoop, d time.Duration) *Task[Void] {
	return newTask(l, func(co *Coro) (Void, error) {
		Sleep(co, d)
		return Void{}, nil
	}, callerLocation(2))
}
