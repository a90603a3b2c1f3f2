// Package membership maintains the mapping from peer address to member
// record (state, incarnation, last-state-change) plus the local outbound
// sequence counter used to correlate acks with pings.
package membership

import (
	"sync"
	"time"

	"github.com/meshkeeper/swimd/internal/domain"
)

// TransitionFunc is invoked whenever a member's state changes, including
// the absent→Active transition on first contact. existed is false on that
// first-contact case, in which case prev is meaningless.
type TransitionFunc func(addr string, existed bool, prev, next domain.PeerState)

// Table is the membership table. A single mutex guards it: the event loop
// that owns it never contends (it is the only regular writer and reader),
// but the optional HTTP status server reads a snapshot from its own
// goroutine, so the lock exists to bridge that boundary.
type Table struct {
	mu         sync.Mutex
	localAddr  string
	members    map[string]*domain.Member
	seq        uint32
	onTransition TransitionFunc
}

// New creates an empty membership table. localAddr is excluded from ever
// appearing in the table.
func New(localAddr string) *Table {
	return &Table{localAddr: localAddr, members: make(map[string]*domain.Member)}
}

// OnTransition registers a callback fired on every state change (including
// first contact). Replaces any previously registered callback.
func (t *Table) OnTransition(fn TransitionFunc) {
	t.mu.Lock()
	t.onTransition = fn
	t.mu.Unlock()
}

// EnsureMember inserts addr with state=Active, incarnation=0 if it isn't
// already present and isn't the local address. No-op otherwise.
func (t *Table) EnsureMember(addr string) {
	if addr == t.localAddr {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLocked(addr)
}

// ensureLocked must be called with t.mu held.
func (t *Table) ensureLocked(addr string) *domain.Member {
	if m, ok := t.members[addr]; ok {
		return m
	}
	m := &domain.Member{Address: addr, State: domain.Active, LastStateChange: time.Now()}
	t.members[addr] = m
	t.fireLocked(addr, false, domain.Active, domain.Active)
	return m
}

// MarkActive sets addr to Active if it exists and isn't already Active; if
// it doesn't exist, it is inserted via EnsureMember semantics.
func (t *Table) MarkActive(addr string) {
	if addr == t.localAddr {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.members[addr]
	if !ok {
		t.ensureLocked(addr)
		return
	}
	if m.State != domain.Active {
		prev := m.State
		m.State = domain.Active
		m.LastStateChange = time.Now()
		t.fireLocked(addr, true, prev, domain.Active)
	}
}

// MarkSuspect transitions addr from Active to Suspect. No-op if addr is
// absent, or already Suspect or Dead — once suspect, only the suspect
// timer (not further probe failures) may promote it to Dead.
func (t *Table) MarkSuspect(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.members[addr]
	if !ok || m.State != domain.Active {
		return
	}
	m.State = domain.Suspect
	m.LastStateChange = time.Now()
	t.fireLocked(addr, true, domain.Active, domain.Suspect)
}

// MarkDead transitions addr to Dead if it exists and isn't already Dead.
func (t *Table) MarkDead(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.members[addr]
	if !ok || m.State == domain.Dead {
		return
	}
	prev := m.State
	m.State = domain.Dead
	m.LastStateChange = time.Now()
	t.fireLocked(addr, true, prev, domain.Dead)
}

// NextSeq returns the local sequence counter and advances it, wrapping on
// overflow.
func (t *Table) NextSeq() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.seq
	t.seq++
	return seq
}

// CountByState returns the number of members currently in state s.
func (t *Table) CountByState(s domain.PeerState) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, m := range t.members {
		if m.State == s {
			n++
		}
	}
	return n
}

// ActiveAddresses returns the addresses of all members currently Active,
// optionally excluding one address.
func (t *Table) ActiveAddresses(exclude string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.members))
	for addr, m := range t.members {
		if m.State == domain.Active && addr != exclude {
			out = append(out, addr)
		}
	}
	return out
}

// SuspectsOlderThan returns addresses currently Suspect whose
// last-state-change predates the cutoff.
func (t *Table) SuspectsOlderThan(cutoff time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for addr, m := range t.members {
		if m.State == domain.Suspect && m.LastStateChange.Before(cutoff) {
			out = append(out, addr)
		}
	}
	return out
}

// Snapshot returns a copy of every member record, for diagnostics.
func (t *Table) Snapshot() []domain.Member {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Member, 0, len(t.members))
	for _, m := range t.members {
		out = append(out, *m)
	}
	return out
}

// fireLocked must be called with t.mu held; it must not itself try to
// re-acquire the lock.
func (t *Table) fireLocked(addr string, existed bool, prev, next domain.PeerState) {
	if t.onTransition != nil {
		t.onTransition(addr, existed, prev, next)
	}
}
