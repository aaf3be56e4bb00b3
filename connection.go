package asyncio

import (
	"net"

	"golang.org/x/sys/unix"
)

// OpenConnection resolves host, starts a non-blocking connect and suspends
// the caller until the handshake completes. host may be an IP literal or a
// name; names are looked up via the loop's resolver.
func OpenConnection(co *Coro, host string, port int) (*Stream, error) {
	ips, err := ResolveHost(co, host)
	if err != nil {
		return nil, err
	}
	var firstErr error
	for _, ip := range ips {
		s, err := connectIP(co, ip, port)
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func connectIP(co *Coro, ip net.IP, port int) (*Stream, error) {
	family, sa := sockaddrFromTCP(&net.TCPAddr{IP: ip, Port: port})
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	err = unix.Connect(fd, sa)
	if err == unix.EINPROGRESS {
		aw := co.loop.waitEvent(Event{FD: fd, Flags: EventWrite})
		if err := aw.await(co); err != nil {
			unix.Close(fd)
			return nil, err
		}
		soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			unix.Close(fd)
			return nil, err
		}
		if soerr != 0 {
			unix.Close(fd)
			return nil, unix.Errno(soerr)
		}
	} else if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return newStream(co.loop, fd)
}
