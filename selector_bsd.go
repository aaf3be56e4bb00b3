//go:build darwin || netbsd || freebsd || openbsd || dragonfly
// +build darwin netbsd freebsd openbsd dragonfly

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

// selector is the kqueue backend. Filters are added without EV_CLEAR so
// readiness reports stay level-triggered.
type selector struct {
	pollFD   int
	interest map[int]*fdInterest
	events   []unix.Kevent_t
	closed   bool
}

func newSelector(size int) (*selector, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &selector{
		pollFD:   fd,
		interest: make(map[int]*fdInterest),
		events:   make([]unix.Kevent_t, size),
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
	var changes []unix.Kevent_t
	if flags&EventRead != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD,
		})
	}
	if flags&EventWrite != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD,
		})
	}
	if _, err := unix.Kevent(s.pollFD, changes, nil, nil); err != nil {
		return err
	}
	if flags&EventRead != 0 {
		in.reader = h
	}
	if flags&EventWrite != 0 {
		in.writer = h
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
	var changes []unix.Kevent_t
	if flags&EventRead != 0 && in.reader != nil {
		in.reader = nil
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE,
		})
	}
	if flags&EventWrite != 0 && in.writer != nil {
		in.writer = nil
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE,
		})
	}
	if len(changes) > 0 {
		// The descriptor may already be closed; the kernel then removed
		// the filters itself.
		unix.Kevent(s.pollFD, changes, nil, nil)
	}
	if in.reader == nil && in.writer == nil {
		delete(s.interest, fd)
	}
}

// selectEvents polls once and returns the handles whose direction became
// ready. EV_EOF is delivered as readiness so the owner observes the closed
// peer from the following syscall.
func (s *selector) selectEvents(timeout time.Duration) ([]Handle, error) {
	if s.closed {
		return nil, ErrSelectorClosed
	}
	var tsp *unix.Timespec
	if timeout >= 0 {
		ts := unix.NsecToTimespec(timeout.Nanoseconds())
		tsp = &ts
	}
	n, err := unix.Kevent(s.pollFD, nil, s.events, tsp)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	var ready []Handle
	for i := 0; i < n; i++ {
		e := &s.events[i]
		in, ok := s.interest[int(e.Ident)]
		if !ok {
			continue
		}
		switch e.Filter {
		case unix.EVFILT_READ:
			if in.reader != nil {
				ready = append(ready, in.reader)
			}
		case unix.EVFILT_WRITE:
			if in.writer != nil {
				ready = append(ready, in.writer)
			}
		}
	}
	return ready, nil
}
