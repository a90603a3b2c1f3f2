//go:build linux

package transport

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// epollEndpoint drives a non-blocking UDP socket through a raw epoll
// instance. It owns exactly one file descriptor pair: the socket and the
// epoll instance watching it.
type epollEndpoint struct {
	fd        int
	epfd      int
	localAddr *net.UDPAddr
	conn      *net.UDPConn // kept alive only to hold the fd open via SyscallConn
}

// NewEpollEndpoint binds a non-blocking UDP socket at bindAddr and wires
// it into a fresh epoll instance watching for both readability and
// writability.
func NewEpollEndpoint(bindAddr string) (Endpoint, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve bind address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp: %w", err)
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: syscall conn: %w", err)
	}

	var fd int
	var ctrlErr error
	err = raw.Control(func(sysfd uintptr) {
		fd = int(sysfd)
		ctrlErr = unix.SetNonblock(fd, true)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: raw control: %w", err)
	}
	if ctrlErr != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: set nonblocking: %w", ctrlErr)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: epoll create: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		unix.Close(epfd)
		conn.Close()
		return nil, fmt.Errorf("transport: epoll ctl add: %w", err)
	}

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		unix.Close(epfd)
		conn.Close()
		return nil, fmt.Errorf("transport: unexpected local addr type %T", conn.LocalAddr())
	}

	return &epollEndpoint{fd: fd, epfd: epfd, localAddr: localAddr, conn: conn}, nil
}

func (e *epollEndpoint) LocalAddr() *net.UDPAddr {
	return e.localAddr
}

func (e *epollEndpoint) RecvFrom(buf []byte) (int, *net.UDPAddr, error) {
	n, from, err := unix.Recvfrom(e.fd, buf, 0)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil, ErrWouldBlock
		}
		return 0, nil, fmt.Errorf("transport: recvfrom: %w", err)
	}
	addr, err := fromSockaddr(from)
	if err != nil {
		return 0, nil, fmt.Errorf("transport: recvfrom: %w", err)
	}
	return n, addr, nil
}

func (e *epollEndpoint) SendTo(data []byte, to *net.UDPAddr) error {
	sa, err := toSockaddr(to)
	if err != nil {
		return fmt.Errorf("transport: sendto: %w", err)
	}
	if err := unix.Sendto(e.fd, data, 0, sa); err != nil {
		if err == unix.EAGAIN {
			return ErrWouldBlock
		}
		return fmt.Errorf("transport: sendto: %w", err)
	}
	return nil
}

func (e *epollEndpoint) Wait(timeout time.Duration) (readable, writable bool, err error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}

	events := make([]unix.EpollEvent, 1)
	for {
		n, err := unix.EpollWait(e.epfd, events, ms)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return false, false, fmt.Errorf("transport: epoll wait: %w", err)
		}
		if n == 0 {
			return false, false, nil
		}
		mask := events[0].Events
		return mask&unix.EPOLLIN != 0, mask&unix.EPOLLOUT != 0, nil
	}
}

func (e *epollEndpoint) Close() error {
	unix.Close(e.epfd)
	return e.conn.Close()
}

// toSockaddr converts a resolved *net.UDPAddr into the unix.Sockaddr the
// raw syscalls expect, choosing the v4 or v6 representation based on
// whether the address has a usable 4-byte form.
func toSockaddr(addr *net.UDPAddr) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	ip16 := addr.IP.To16()
	if ip16 == nil {
		return nil, fmt.Errorf("unroutable address %v", addr.IP)
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], ip16)
	return sa, nil
}

// fromSockaddr converts a raw unix.Sockaddr (as produced by Recvfrom)
// back into a *net.UDPAddr.
func fromSockaddr(sa unix.Sockaddr) (*net.UDPAddr, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.UDPAddr{IP: net.IP(v.Addr[:]).To4(), Port: v.Port}, nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, v.Addr[:])
		return &net.UDPAddr{IP: ip, Port: v.Port}, nil
	default:
		return nil, fmt.Errorf("unsupported sockaddr type %T", sa)
	}
}
