// Package asyncio is a single-threaded asynchronous I/O runtime for Go.
//
// asyncio acts in reactor mode: coroutines suspend on awaitables and an
// event loop resumes them when a timer expires or the OS readiness selector
// (epoll on Linux, kqueue on BSD/macOS) reports their file descriptor ready.
// Scheduling is strictly cooperative; exactly one coroutine runs at a time
// and a loop must never be touched from more than one goroutine.
package asyncio
