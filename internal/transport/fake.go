package transport

import (
	"net"
	"sync"
	"time"
)

// Network is a shared in-memory medium connecting FakeEndpoints by bind
// address, used in place of real sockets wherever a test wants to drive
// the event loop deterministically without a kernel epoll instance.
type Network struct {
	mu        sync.Mutex
	endpoints map[string]*FakeEndpoint
}

// NewNetwork creates an empty fake network.
func NewNetwork() *Network {
	return &Network{endpoints: make(map[string]*FakeEndpoint)}
}

// Bind creates a FakeEndpoint at addr and registers it on the network.
func (n *Network) Bind(addr string) (*FakeEndpoint, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	ep := &FakeEndpoint{net: n, local: udpAddr}
	n.mu.Lock()
	n.endpoints[udpAddr.String()] = ep
	n.mu.Unlock()
	return ep, nil
}

func (n *Network) deliver(to *net.UDPAddr, datagram fakeDatagram) {
	n.mu.Lock()
	ep, ok := n.endpoints[to.String()]
	n.mu.Unlock()
	if !ok {
		return // no listener at that address: dropped, same as real UDP
	}
	ep.mu.Lock()
	ep.inbox = append(ep.inbox, datagram)
	ep.mu.Unlock()
}

type fakeDatagram struct {
	data []byte
	from *net.UDPAddr
}

// FakeEndpoint is an in-memory Endpoint implementation: writes from one
// FakeEndpoint are delivered synchronously into the recipient's inbox.
// There is no real kernel readiness to await: Wait only checks the
// inbox, sleeping out the timeout when it is empty.
type FakeEndpoint struct {
	net   *Network
	local *net.UDPAddr

	mu     sync.Mutex
	inbox  []fakeDatagram
	closed bool
}

func (e *FakeEndpoint) LocalAddr() *net.UDPAddr {
	return e.local
}

func (e *FakeEndpoint) RecvFrom(buf []byte) (int, *net.UDPAddr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.inbox) == 0 {
		return 0, nil, ErrWouldBlock
	}
	d := e.inbox[0]
	e.inbox = e.inbox[1:]
	n := copy(buf, d.data)
	return n, d.from, nil
}

func (e *FakeEndpoint) SendTo(data []byte, to *net.UDPAddr) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	e.net.deliver(to, fakeDatagram{data: cp, from: e.local})
	return nil
}

// Wait reports readable=true whenever the inbox is non-empty and always
// reports writable=true, since the fake network never applies
// backpressure. It never blocks for the full timeout if the inbox is
// already non-empty.
func (e *FakeEndpoint) Wait(timeout time.Duration) (readable, writable bool, err error) {
	e.mu.Lock()
	readable = len(e.inbox) > 0
	e.mu.Unlock()
	if !readable && timeout > 0 {
		time.Sleep(timeout)
		e.mu.Lock()
		readable = len(e.inbox) > 0
		e.mu.Unlock()
	}
	return readable, true, nil
}

func (e *FakeEndpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.net.mu.Lock()
	delete(e.net.endpoints, e.local.String())
	e.net.mu.Unlock()
	return nil
}
