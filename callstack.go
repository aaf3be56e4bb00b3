package asyncio

import "log/slog"

// Callstack returns the await chain of the calling coroutine, innermost
// frame first, walking each frame's recorded waiter outward. Only frames
// currently linked by Await, WaitFor or Gather appear.
func (co *Coro) Callstack() []TaskInfo {
	var frames []TaskInfo
	for c := co.core; c != nil; c = c.awaiter {
		frames = append(frames, TaskInfo{ID: c.id, Location: c.location})
	}
	return frames
}

// DumpCallstack writes the await chain to the loop's logger, one frame per
// record.
func (co *Coro) DumpCallstack() {
	for depth, f := range co.Callstack() {
		co.loop.log.Info("callstack",
			slog.Int("depth", depth),
			slog.Uint64("task", f.ID),
			slog.String("at", f.Location))
	}
}
