package transport

import "net"

// Outbound is one datagram waiting to be flushed to the wire.
type Outbound struct {
	Target *net.UDPAddr
	Data   []byte
}

// Queue is a plain FIFO of outbound datagrams. The event loop pushes onto
// it while building a tick's worth of sends, then drains it against
// whatever the endpoint's readiness allows. The epoll endpoint is
// registered level-triggered (EPOLLIN|EPOLLOUT, no EPOLLET), but the
// loop's readiness wait is bounded by the next tick deadline rather than
// driven purely by writable events, so it always attempts a flush after
// every tick and after every recv drain regardless of the last readiness
// result, rather than waiting on a dedicated writable notification.
type Queue struct {
	items []Outbound
}

// NewQueue creates an empty send queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a datagram to the back of the queue.
func (q *Queue) Push(o Outbound) {
	q.items = append(q.items, o)
}

// Front returns the datagram at the head of the queue without removing
// it. ok is false if the queue is empty.
func (q *Queue) Front() (o Outbound, ok bool) {
	if len(q.items) == 0 {
		return Outbound{}, false
	}
	return q.items[0], true
}

// Pop removes the datagram at the head of the queue.
func (q *Queue) Pop() {
	if len(q.items) == 0 {
		return
	}
	q.items = q.items[1:]
}

// Len returns the number of datagrams currently queued.
func (q *Queue) Len() int {
	return len(q.items)
}
