// Package swim implements the single-threaded, readiness-driven SWIM
// event loop: one goroutine owns the membership table, the probe
// tracker, and the non-blocking transport endpoint, and drives all three
// from a single tick/readiness loop with no internal locking of its own.
package swim

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/meshkeeper/swimd/internal/domain"
	"github.com/meshkeeper/swimd/internal/membership"
	"github.com/meshkeeper/swimd/internal/metrics"
	"github.com/meshkeeper/swimd/internal/probe"
	"github.com/meshkeeper/swimd/internal/transport"
	"github.com/meshkeeper/swimd/internal/wire"
)

// relayEntry records an in-flight indirect probe this node is ferrying
// on behalf of another node, keyed by the probe's sequence number. An
// ack is relayed when its seq has an entry and it comes from that
// entry's target; there is no separate relay identifier. Each requester
// allocates its own seqs, so a second ping-req carrying the same seq
// replaces the earlier entry.
type relayEntry struct {
	requester string
	target    string
	at        time.Time
}

// Node is one participant in the membership protocol.
type Node struct {
	cfg        Config
	localAddr  string
	instanceID string

	endpoint transport.Endpoint
	queue    *transport.Queue
	table    *membership.Table
	tracker  *probe.Tracker
	metrics  *metrics.Metrics
	rng      *rand.Rand

	relay map[uint32]relayEntry

	extraHook membership.TransitionFunc
}

// New constructs a Node bound to the given endpoint. localAddr is the
// address the endpoint is bound to, in the same string form used
// throughout the wire protocol and membership table.
func New(localAddr string, cfg Config, ep transport.Endpoint) *Node {
	n := &Node{
		cfg:        cfg,
		localAddr:  localAddr,
		instanceID: uuid.NewString(),
		endpoint:   ep,
		queue:     transport.NewQueue(),
		table:     membership.New(localAddr),
		tracker:   probe.New(),
		metrics:   metrics.New(cfg.RTTRingSize),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		relay:     make(map[uint32]relayEntry),
	}
	n.table.OnTransition(n.onMemberTransition)
	return n
}

// OnTransition installs an additional callback fired after this node's
// own status logging on every membership state change — the hook the
// event log is wired through.
func (n *Node) OnTransition(fn membership.TransitionFunc) {
	n.extraHook = fn
}

func (n *Node) onMemberTransition(addr string, existed bool, prev, next domain.PeerState) {
	if !existed {
		log.Printf("[swim] member joined: %s", addr)
	} else {
		log.Printf("[swim] member %s: %s -> %s", addr, prev, next)
	}
	if n.extraHook != nil {
		n.extraHook(addr, existed, prev, next)
	}
}

// Join sends an initial direct ping to each seed address. A seed is not
// inducted into the membership table here: that only happens once its
// ack arrives (mark_active on a not-yet-known address performs the
// ensure_member), per the "ack from which inducts the seed" contract.
// An unreachable seed that never acks simply never becomes a member.
func (n *Node) Join(seeds []string) error {
	now := time.Now()
	for _, s := range seeds {
		if _, err := net.ResolveUDPAddr("udp", s); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidSeedAddr, s, err)
		}
		n.sendPing(s, now)
	}
	return nil
}

// Snapshot is a point-in-time view of the node's state, consumed by the
// status API.
type Snapshot struct {
	LocalAddr     string
	InstanceID    string
	Members       []domain.Member
	Counters      metrics.Counters
	Stats         metrics.Stats
	HasStats      bool
	PendingProbes int
}

// Snapshot returns a copy of the node's current membership, counters,
// and RTT statistics.
func (n *Node) Snapshot() Snapshot {
	stats, ok := n.metrics.Stats()
	return Snapshot{
		LocalAddr:     n.localAddr,
		InstanceID:    n.instanceID,
		Members:       n.table.Snapshot(),
		Counters:      n.metrics.Counts(),
		Stats:         stats,
		HasStats:      ok,
		PendingProbes: n.tracker.Len(),
	}
}

// Run drives the event loop until ctx is cancelled or the endpoint
// returns a fatal error. Every iteration: fire a tick if its deadline has
// elapsed, flush as much of the send queue as the endpoint will accept,
// wait for readiness up to the remaining time until the next tick, drain
// any readable datagrams, then flush once more. The writable result of
// the wait is not consulted: the loop always attempts a flush rather
// than waiting on a dedicated writable notification.
func (n *Node) Run(ctx context.Context) error {
	now := time.Now()
	nextTick := now.Add(n.cfg.TickInterval)

	buf := make([]byte, 64*1024)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now = time.Now()
		if !now.Before(nextTick) {
			n.tick(now)
			nextTick = now.Add(n.cfg.TickInterval)
		}

		if err := n.flushQueue(); err != nil {
			return err
		}

		timeout := nextTick.Sub(now)
		if timeout < 0 {
			timeout = 0
		}
		readable, _, err := n.endpoint.Wait(timeout)
		if err != nil {
			return fmt.Errorf("swim: endpoint wait: %w", err)
		}
		if readable {
			if err := n.drainRecv(buf); err != nil {
				return err
			}
		}
		if err := n.flushQueue(); err != nil {
			return err
		}
	}
}

// flushQueue drains the send queue until it empties or the endpoint
// reports would-block. Any other send error is fatal to the loop: per
// the error taxonomy, would-block is the only expected transport
// condition on send.
func (n *Node) flushQueue() error {
	for {
		out, ok := n.queue.Front()
		if !ok {
			return nil
		}
		if err := n.endpoint.SendTo(out.Data, out.Target); err != nil {
			if err == transport.ErrWouldBlock {
				return nil
			}
			return fmt.Errorf("swim: send to %s: %w", out.Target, err)
		}
		n.queue.Pop()
	}
}

// drainRecv reads and dispatches datagrams until the endpoint reports
// would-block. A decode error is logged and the datagram discarded,
// never fatal; any other recv error is fatal to the loop.
func (n *Node) drainRecv(buf []byte) error {
	for {
		nread, from, err := n.endpoint.RecvFrom(buf)
		if err != nil {
			if err == transport.ErrWouldBlock {
				return nil
			}
			return fmt.Errorf("swim: recv: %w", err)
		}
		msg, decErr := wire.Decode(buf[:nread])
		if decErr != nil {
			log.Printf("[swim] dropping malformed datagram from %s: %v", from, decErr)
			continue
		}
		n.handleMessage(msg, time.Now())
	}
}

func (n *Node) handleMessage(msg wire.Message, now time.Time) {
	switch msg.Type {
	case wire.Ping:
		n.handlePing(msg, now)
	case wire.Ack:
		n.handleAck(msg, now)
	case wire.PingReq:
		n.handlePingReq(msg, now)
	}
}

func (n *Node) handlePing(msg wire.Message, now time.Time) {
	// A Ping only inducts a wholly new peer (ensure_member); unlike an
	// Ack, it never resurrects an existing Suspect or Dead member — only
	// fresh ack evidence does that.
	n.table.EnsureMember(msg.From)
	addr, err := net.ResolveUDPAddr("udp", msg.From)
	if err != nil {
		log.Printf("[swim] ping from unresolvable address %q: %v", msg.From, err)
		return
	}
	n.enqueue(wire.NewAck(msg.Seq, n.localAddr), addr)
}

func (n *Node) handleAck(msg wire.Message, now time.Time) {
	// An ack that matches no pending probe is still accepted as
	// evidence of liveness — mark_active(from) happens unconditionally,
	// independent of whether this ack resolves a probe of ours or is
	// being relayed on someone else's behalf.
	if rtt, ok := n.tracker.RemoveMatching(msg.Seq, msg.From, now); ok {
		n.metrics.RecordRTT(rtt)
	}
	n.table.MarkActive(msg.From)

	if entry, ok := n.relay[msg.Seq]; ok && entry.target == msg.From {
		delete(n.relay, msg.Seq)
		addr, err := net.ResolveUDPAddr("udp", entry.requester)
		if err != nil {
			log.Printf("[swim] relay ack to unresolvable requester %q: %v", entry.requester, err)
			return
		}
		n.enqueue(wire.NewAck(msg.Seq, msg.From), addr)
	}
}

func (n *Node) handlePingReq(msg wire.Message, now time.Time) {
	n.table.EnsureMember(msg.From)

	addr, err := net.ResolveUDPAddr("udp", msg.Target)
	if err != nil {
		log.Printf("[swim] ping-req target unresolvable %q: %v", msg.Target, err)
		return
	}
	n.relay[msg.Seq] = relayEntry{requester: msg.From, target: msg.Target, at: now}
	n.enqueue(wire.NewPing(msg.Seq, n.localAddr), addr)
}

func (n *Node) enqueue(msg wire.Message, to *net.UDPAddr) {
	data, err := wire.Encode(msg)
	if err != nil {
		log.Printf("[swim] encode %s failed: %v", msg.Type, err)
		return
	}
	n.queue.Push(transport.Outbound{Target: to, Data: data})
}

func (n *Node) tick(now time.Time) {
	log.Printf("[swim] tick: active=%d suspect=%d dead=%d pending=%d",
		n.table.CountByState(domain.Active), n.table.CountByState(domain.Suspect),
		n.table.CountByState(domain.Dead), n.tracker.Len())

	needIndirect, timedOut := n.tracker.Due(n.cfg.ProbeTimeout, now)
	for _, p := range needIndirect {
		n.sendIndirectProbes(p.Seq, p.Target, now)
		n.tracker.PromoteIndirect(p.Target, now)
	}
	for _, p := range timedOut {
		n.table.MarkSuspect(p.Target)
		n.metrics.RecordTimeout()
	}
	n.tracker.Purge(n.cfg.ProbeTimeout, now)
	n.pruneRelay(now)

	cutoff := now.Add(-n.cfg.SuspectTimeout)
	for _, addr := range n.table.SuspectsOlderThan(cutoff) {
		n.table.MarkDead(addr)
	}

	n.probeRandomMember(now)
}

func (n *Node) probeRandomMember(now time.Time) {
	candidates := n.table.ActiveAddresses(n.localAddr)
	if len(candidates) == 0 {
		return
	}
	target := candidates[n.rng.Intn(len(candidates))]
	if n.tracker.HasPendingFor(target) {
		return
	}
	n.sendPing(target, now)
}

func (n *Node) sendPing(target string, now time.Time) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		log.Printf("[swim] probe target unresolvable %q: %v", target, err)
		return
	}
	seq := n.table.NextSeq()
	n.enqueue(wire.NewPing(seq, n.localAddr), addr)
	n.tracker.AddDirect(seq, target, now)
	n.metrics.RecordPingSent()
}

// sendIndirectProbes fans a ping-req for target, carrying the original
// probe's sequence number, out to up to IndirectProbeCount distinct
// active members other than target (selection without replacement).
func (n *Node) sendIndirectProbes(seq uint32, target string, now time.Time) {
	helpers := n.table.ActiveAddresses(n.localAddr)
	helpers = slices.DeleteFunc(helpers, func(x string) bool { return x == target })
	n.rng.Shuffle(len(helpers), func(i, j int) { helpers[i], helpers[j] = helpers[j], helpers[i] })

	k := n.cfg.IndirectProbeCount
	if k > len(helpers) {
		k = len(helpers)
	}
	for _, helper := range helpers[:k] {
		addr, err := net.ResolveUDPAddr("udp", helper)
		if err != nil {
			log.Printf("[swim] indirect helper unresolvable %q: %v", helper, err)
			continue
		}
		n.enqueue(wire.NewPingReq(seq, n.localAddr, target), addr)
	}
}

func (n *Node) pruneRelay(now time.Time) {
	ttl := 2 * n.cfg.ProbeTimeout
	for seq, entry := range n.relay {
		if now.Sub(entry.at) > ttl {
			delete(n.relay, seq)
		}
	}
}
