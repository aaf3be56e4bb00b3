//go:build netbsd || freebsd || openbsd || dragonfly
// +build netbsd freebsd openbsd dragonfly

package asyncio

/*
#include <pthread_np.h>
#include <pthread.h>
#include <sys/_cpuset.h>
#include <sys/cpuset.h>

void lock_thread(int cpuid) {
	cpuset_t cpuset;
	CPU_ZERO(&cpuset);
	CPU_SET(cpuid, &cpuset);

	pthread_t tid = pthread_self();
	pthread_setaffinity_np(tid, sizeof(cpuset_t), &cpuset);
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
