package asyncio

import (
	"net"

	"golang.org/x/sys/unix"
)

// Listener is a non-blocking listening socket whose Accept suspends the
// calling coroutine until a connection is pending.
type Listener struct {
	loop *EventLoop
	fd   int
}

// Listen binds and listens on a TCP address of the form "host:port". An
// empty host binds all interfaces.
func Listen(l *EventLoop, addr string) (*Listener, error) {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	family, sa := sockaddrFromTCP(tcp)
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(fd)
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Listener{loop: l, fd: fd}, nil
}

// Accept suspends until a connection is pending and returns its stream.
func (ln *Listener) Accept(co *Coro) (*Stream, error) {
	if ln.fd < 0 {
		return nil, ErrStreamClosed
	}
	for {
		if err := ln.loop.waitEvent(Event{FD: ln.fd, Flags: EventRead}).await(co); err != nil {
			return nil, err
		}
		if ln.fd < 0 {
			return nil, ErrStreamClosed
		}
		nfd, _, err := unix.Accept(ln.fd)
		if err == unix.EAGAIN || err == unix.ECONNABORTED {
			continue
		}
		if err != nil {
			return nil, err
		}
		unix.CloseOnExec(nfd)
		return newStream(ln.loop, nfd)
	}
}

// Addr returns the listener's bound address, useful when listening on
// port 0.
func (ln *Listener) Addr() net.Addr {
	if ln.fd < 0 {
		return nil
	}
	sa, err := unix.Getsockname(ln.fd)
	if err != nil {
		return nil
	}
	return sockaddrToTCP(sa)
}

// Close releases the listening descriptor. A coroutine suspended in Accept
// wakes with ErrStreamClosed.
func (ln *Listener) Close() error {
	if ln.fd < 0 {
		return nil
	}
	fd := ln.fd
	ln.fd = -1
	return unix.Close(fd)
}

func sockaddrFromTCP(a *net.TCPAddr) (int, unix.Sockaddr) {
	ip := a.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], ip.To16())
	if a.Zone != "" {
		if ifi, err := net.InterfaceByName(a.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return unix.AF_INET6, sa
}
