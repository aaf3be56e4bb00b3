//go:build linux
// +build linux

package asyncio

import (
	"time"

	"golang.org/x/sys/unix"
)

// fdInterest holds the at-most-one reader and at-most-one writer registered
// for a descriptor.
type fdInterest struct {
	reader Handle
	writer Handle
}

// selector is the epoll backend. Registration is level-triggered: a ready
// descriptor keeps surfacing until its owner consumes the readiness and
// unregisters.
type selector struct {
	pollFD   int
	interest map[int]*fdInterest
	events   []unix.EpollEvent
	closed   bool
}

func newSelector(size int) (*selector, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &selector{
		pollFD:   fd,
		interest: make(map[int]*fdInterest),
		events:   make([]unix.EpollEvent, size),
	}, nil
}

func (s *selector) close() error {
	if s.pollFD < 0 {
		return nil
	}
	err := unix.Close(s.pollFD)
	s.pollFD = -1
	s.closed = true
	return err
}

func (in *fdInterest) mask() uint32 {
	var m uint32
	if in.reader != nil {
		m |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if in.writer != nil {
		m |= unix.EPOLLOUT
	}
	return m
}

// register adds h as the owner of the given direction on fd. A direction
// already owned by another handle fails with ErrEventConflict.
func (s *selector) register(fd int, flags EventFlags, h Handle) error {
	if s.closed {
		return ErrSelectorClosed
	}
	in, known := s.interest[fd]
	if !known {
		in = &fdInterest{}
	}
	if flags&EventRead != 0 && in.reader != nil {
		return ErrEventConflict
	}
	if flags&EventWrite != 0 && in.writer != nil {
		return ErrEventConflict
	}
	prevR, prevW := in.reader, in.writer
	if flags&EventRead != 0 {
		in.reader = h
	}
	if flags&EventWrite != 0 {
		in.writer = h
	}
	op := unix.EPOLL_CTL_ADD
	if known {
		op = unix.EPOLL_CTL_MOD
	}
	ev := unix.EpollEvent{Events: in.mask(), Fd: int32(fd)}
	if err := unix.EpollCtl(s.pollFD, op, fd, &ev); err != nil {
		in.reader, in.writer = prevR, prevW
		return err
	}
	s.interest[fd] = in
	return nil
}

// unregister drops the given direction from fd. Unknown descriptors and
// directions are ignored.
func (s *selector) unregister(fd int, flags EventFlags) {
	in, ok := s.interest[fd]
	if !ok {
		return
	}
	if flags&EventRead != 0 {
		in.reader = nil
	}
	if flags&EventWrite != 0 {
		in.writer = nil
	}
	if in.reader == nil && in.writer == nil {
		delete(s.interest, fd)
		unix.EpollCtl(s.pollFD, unix.EPOLL_CTL_DEL, fd, nil)
		return
	}
	ev := unix.EpollEvent{Events: in.mask(), Fd: int32(fd)}
	unix.EpollCtl(s.pollFD, unix.EPOLL_CTL_MOD, fd, &ev)
}

// selectEvents polls once and returns the handles whose direction became
// ready. Error conditions on a descriptor wake both directions so the owner
// observes the failure from the following syscall.
func (s *selector) selectEvents(timeout time.Duration) ([]Handle, error) {
	if s.closed {
		return nil, ErrSelectorClosed
	}
	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
		if timeout > 0 && msec == 0 {
			msec = 1
		}
	}
	n, err := unix.EpollWait(s.pollFD, s.events, msec)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	var ready []Handle
	for i := 0; i < n; i++ {
		e := &s.events[i]
		in, ok := s.interest[int(e.Fd)]
		if !ok {
			continue
		}
		if e.Events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0 && in.reader != nil {
			ready = append(ready, in.reader)
		}
		if e.Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0 && in.writer != nil {
			ready = append(ready, in.writer)
		}
	}
	return ready, nil
}
