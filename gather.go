package asyncio

// Gather runs the given tasks concurrently and suspends the caller until
// every one of them has a result. On success it returns the values in
// argument order. When a task fails, the unfinished rest are cancelled and
// the error of the earliest failed argument is returned. Cancelling a
// gathered task from outside while Gather is suspended is a programming
// error; the released frame surfaces as ErrInvalidFuture.
func Gather[T any](co *Coro, tasks ...*Task[T]) ([]T, error) {
	for _, t := range tasks {
		if t == nil || t.core == nil || t.core.released {
			return nil, ErrInvalidFuture
		}
	}
	for _, t := range tasks {
		if t.core.finished {
			continue
		}
		t.core.continuation = co.self
		t.core.awaiter = co.core
		if !t.core.started && t.core.st == stateSuspended {
			co.loop.CallSoon(t)
		}
	}
	defer func() {
		for _, t := range tasks {
			if t.core.awaiter == co.core {
				t.core.awaiter = nil
			}
		}
	}()
	for {
		pending := 0
		for _, t := range tasks {
			switch {
			case t.core.released && t.rstate == resultUnset:
				cancelRest(tasks)
				return nil, ErrInvalidFuture
			case !t.core.finished:
				pending++
			case t.rstate == resultError:
				cancelRest(tasks)
				return nil, t.err
			}
		}
		if pending == 0 {
			break
		}
		co.suspend()
	}
	out := make([]T, len(tasks))
	for i, t := range tasks {
		out[i] = t.value
	}
	return out, nil
}

func cancelRest[T any](tasks []*Task[T]) {
	for _, t := range tasks {
		if !t.core.finished && !t.core.released {
			t.Cancel()
		}
	}
}
