//go:build linux
// +build linux

package asyncio

/*
#define _GNU_SOURCE
#include <sched.h>
#include <pthread.h>

void lock_thread(int cpuid) {
	pthread_t tid;
	cpu_set_t cpuset;

	tid = pthread_self();
	CPU_ZERO(&cpuset);
	CPU_SET(cpuid, &cpuset);
	pthread_setaffinity_np(tid, sizeof(cpu_set_t), &cpuset);
}
*/
import "C"
import (
	"runtime"
)

// BindCPU pins the calling goroutine and its thread to the given core. Call
// it from the goroutine that drives the loop, before RunUntilComplete, to
// keep the reactor on one core.
func (l *EventLoop) BindCPU(cpuid int) error {
	if cpuid < 0 || cpuid >= runtime.NumCPU() {
		return ErrCPUID
	}
	runtime.LockOSThread()
	C.lock_thread(C.int(cpuid))
	return nil
}
