// Package transport provides the non-blocking UDP datagram endpoint the
// event loop drives directly, plus the FIFO send queue that bridges a
// tick's worth of outgoing datagrams against the endpoint's write
// readiness.
//
// Go's net.PacketConn has no portable way to ask "is this socket
// readable or writable right now" without blocking, which is what a
// single-threaded, readiness-driven event loop needs. Endpoint is the
// seam: production code drives a real epoll-backed socket
// (endpoint_linux.go), while tests drive an in-memory fake that
// implements the same interface without any real file descriptor.
package transport

import (
	"errors"
	"net"
	"time"
)

// ErrWouldBlock is returned by RecvFrom/SendTo when the operation cannot
// complete without blocking — the non-blocking equivalent of EAGAIN.
var ErrWouldBlock = errors.New("transport: operation would block")

// Endpoint is a non-blocking datagram endpoint. All methods must be safe
// to call from a single goroutine only; Endpoint makes no concurrency
// guarantees of its own.
type Endpoint interface {
	// LocalAddr returns the address this endpoint is bound to.
	LocalAddr() *net.UDPAddr

	// RecvFrom attempts to read one datagram without blocking. It returns
	// ErrWouldBlock if no datagram is currently available.
	RecvFrom(buf []byte) (n int, from *net.UDPAddr, err error)

	// SendTo attempts to write one datagram without blocking. It returns
	// ErrWouldBlock if the socket's send buffer is currently full.
	SendTo(data []byte, to *net.UDPAddr) error

	// Wait blocks until the endpoint is readable, writable, or the
	// timeout elapses, whichever comes first. A negative timeout waits
	// indefinitely. It returns the readiness observed.
	Wait(timeout time.Duration) (readable, writable bool, err error)

	// Close releases the endpoint's resources.
	Close() error
}
