package asyncio

import (
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sys/unix"
)

const (
	resolvConfPath  = "/etc/resolv.conf"
	dnsQueryTimeout = 5 * time.Second
	dnsBufSize      = 4096
)

// ResolveHost turns a host name into its addresses without leaving the
// event loop: queries go out on a non-blocking UDP socket and the caller
// suspends until the nameserver answers or the per-query timeout fires.
// IP literals are returned as-is.
func ResolveHost(co *Coro, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	cfg, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		return nil, err
	}
	port := 53
	if p, err := strconv.Atoi(cfg.Port); err == nil {
		port = p
	}
	fqdn := dns.Fqdn(host)
	var ips []net.IP
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		for _, server := range cfg.Servers {
			found, err := queryServer(co, server, port, fqdn, qtype)
			if err != nil {
				lastErr = err
				continue
			}
			ips = append(ips, found...)
			break
		}
	}
	if len(ips) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return ips, nil
}

func queryServer(co *Coro, server string, port int, fqdn string, qtype uint16) ([]net.IP, error) {
	ip := net.ParseIP(server)
	if ip == nil {
		return nil, &net.DNSError{Err: "bad nameserver address", Server: server}
	}
	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, qtype)
	pkt, err := msg.Pack()
	if err != nil {
		return nil, err
	}

	family := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := ip.To4(); ip4 != nil {
		v := &unix.SockaddrInet4{Port: port}
		copy(v.Addr[:], ip4)
		sa = v
	} else {
		family = unix.AF_INET6
		v := &unix.SockaddrInet6{Port: port}
		copy(v.Addr[:], ip.To16())
		sa = v
	}
	fd, err := unix.Socket(family, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	if err := unix.Connect(fd, sa); err != nil {
		return nil, err
	}
	if _, err := unix.Write(fd, pkt); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(dnsQueryTimeout)
	buf := make([]byte, dnsBufSize)
	for {
		// The timer wakes the suspended frame if the server never
		// answers; readiness and timeout race through the same handle.
		tid := co.loop.CallAt(deadline, co.self)
		err := co.loop.waitEvent(Event{FD: fd, Flags: EventRead}).await(co)
		co.loop.CancelTimer(tid)
		if err != nil {
			return nil, err
		}
		n, rerr := unix.Read(fd, buf)
		if rerr == unix.EAGAIN {
			if time.Now().After(deadline) {
				return nil, ErrTimeout
			}
			continue
		}
		if rerr != nil {
			return nil, rerr
		}
		resp := new(dns.Msg)
		if err := resp.Unpack(buf[:n]); err != nil || resp.Id != msg.Id {
			if time.Now().After(deadline) {
				return nil, ErrTimeout
			}
			continue
		}
		var ips []net.IP
		for _, rr := range resp.Answer {
			switch a := rr.(type) {
			case *dns.A:
				ips = append(ips, a.A)
			case *dns.AAAA:
				ips = append(ips, a.AAAA)
			}
		}
		return ips, nil
	}
}
