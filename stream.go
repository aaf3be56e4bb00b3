package asyncio

import (
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// chunkSize is the read granularity of a stream.
const chunkSize = 4096

// Stream is a non-blocking connected socket driven by the event loop. It
// carries persistent per-direction awaiters; at most one coroutine may read
// and one may write at a time, so a second reader or writer fails with
// ErrEventConflict at registration.
type Stream struct {
	loop *EventLoop
	fd   int
	shut bool

	rd *eventAwaiter
	wr *eventAwaiter

	local  unix.Sockaddr
	remote unix.Sockaddr
}

// newStream wraps an already connected descriptor, switching it to
// non-blocking mode, binding the direction awaiters and caching the socket
// addresses.
func newStream(l *EventLoop, fd int) (*Stream, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	s := &Stream{
		loop: l,
		fd:   fd,
		rd:   l.waitEvent(Event{FD: fd, Flags: EventRead}),
		wr:   l.waitEvent(Event{FD: fd, Flags: EventWrite}),
	}
	if sa, err := unix.Getsockname(fd); err == nil {
		s.local = sa
	}
	// Peer lookup is best effort; listeners hand over connected sockets
	// but other descriptors may have no peer.
	if sa, err := unix.Getpeername(fd); err == nil {
		s.remote = sa
	}
	return s, nil
}

// Read suspends until the socket is readable and returns the next chunk of
// at most n bytes. n == 0 returns empty without suspending; a negative n
// reads until the peer closes, like ReadUntilEOF. A closed peer yields
// io.EOF.
func (s *Stream) Read(co *Coro, n int) ([]byte, error) {
	if s.fd < 0 {
		return nil, ErrStreamClosed
	}
	if n == 0 {
		return nil, nil
	}
	if n < 0 {
		return s.ReadUntilEOF(co)
	}
	buf := make([]byte, n)
	nr, err := s.ReadInPlace(co, buf)
	if err != nil {
		return nil, err
	}
	return buf[:nr], nil
}

// ReadInPlace reads the next chunk into buf, avoiding the per-read
// allocation of Read.
func (s *Stream) ReadInPlace(co *Coro, buf []byte) (int, error) {
	if s.fd < 0 {
		return 0, ErrStreamClosed
	}
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		if err := s.rd.await(co); err != nil {
			return 0, err
		}
		if s.fd < 0 {
			return 0, ErrStreamClosed
		}
		nr, err := unix.Read(s.fd, buf)
		if err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return 0, err
		}
		if nr == 0 {
			return 0, io.EOF
		}
		return nr, nil
	}
}

// ReadFull reads exactly n bytes. When the peer closes early it returns the
// short prefix with io.ErrUnexpectedEOF, or io.EOF if nothing arrived.
func (s *Stream) ReadFull(co *Coro, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		nr, err := s.ReadInPlace(co, buf[got:])
		if err == io.EOF {
			if got == 0 {
				return nil, io.EOF
			}
			return buf[:got], io.ErrUnexpectedEOF
		}
		if err != nil {
			return buf[:got], err
		}
		got += nr
	}
	return buf, nil
}

// ReadUntilEOF reads chunk by chunk until the peer closes, returning
// everything received.
func (s *Stream) ReadUntilEOF(co *Coro) ([]byte, error) {
	var all []byte
	chunk := make([]byte, chunkSize)
	for {
		nr, err := s.ReadInPlace(co, chunk)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return all, err
		}
		all = append(all, chunk[:nr]...)
	}
}

// Write sends all of p, suspending whenever the socket buffer is full.
// Writing after Shutdown fails with ErrStreamClosed.
func (s *Stream) Write(co *Coro, p []byte) error {
	if s.fd < 0 || s.shut {
		return ErrStreamClosed
	}
	for len(p) > 0 {
		nw, err := unix.Write(s.fd, p)
		if err == nil && nw > 0 {
			p = p[nw:]
			continue
		}
		if err == nil && nw == 0 {
			return io.ErrUnexpectedEOF
		}
		if err != unix.EAGAIN {
			return err
		}
		if err := s.wr.await(co); err != nil {
			return err
		}
		if s.fd < 0 {
			return ErrStreamClosed
		}
	}
	return nil
}

// Shutdown shuts down both directions of the connection, signalling EOF to
// the peer and to the stream's own readers, whose next Read returns io.EOF.
// Further writes fail with ErrStreamClosed. The descriptor stays open until
// Close. Idempotent.
func (s *Stream) Shutdown() error {
	if s.fd < 0 {
		return ErrStreamClosed
	}
	if s.shut {
		return nil
	}
	s.shut = true
	s.rd.destroy()
	s.wr.destroy()
	return unix.Shutdown(s.fd, unix.SHUT_RDWR)
}

// Close drops the stream's selector interest and releases the descriptor.
// Later reads and writes fail with ErrStreamClosed; a coroutine already
// suspended in a read or write is not resumed by Close. Close is idempotent.
func (s *Stream) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	s.rd.destroy()
	s.wr.destroy()
	return unix.Close(fd)
}

// Sockaddr returns the cached local address, or the peer's when peer is
// true. It fails with ErrAddressFamily when the socket is neither IPv4 nor
// IPv6.
func (s *Stream) Sockaddr(peer bool) (*net.TCPAddr, error) {
	sa := s.local
	if peer {
		sa = s.remote
	}
	if a, ok := sockaddrToTCP(sa).(*net.TCPAddr); ok {
		return a, nil
	}
	return nil, ErrAddressFamily
}

// Port returns the local port, or the peer's when peer is true.
func (s *Stream) Port(peer bool) (int, error) {
	a, err := s.Sockaddr(peer)
	if err != nil {
		return 0, err
	}
	return a.Port, nil
}

// LocalAddr returns the socket's bound address, or nil for non-inet
// families.
func (s *Stream) LocalAddr() net.Addr {
	a, err := s.Sockaddr(false)
	if err != nil {
		return nil
	}
	return a
}

// RemoteAddr returns the peer's address, or nil for non-inet families.
func (s *Stream) RemoteAddr() net.Addr {
	a, err := s.Sockaddr(true)
	if err != nil {
		return nil
	}
	return a
}

func sockaddrToTCP(sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), v.Addr[:]...), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), v.Addr[:]...), Port: v.Port, Zone: zoneName(v.ZoneId)}
	}
	return nil
}

func zoneName(id uint32) string {
	if id == 0 {
		return ""
	}
	if ifi, err := net.InterfaceByIndex(int(id)); err == nil {
		return ifi.Name
	}
	return ""
}
