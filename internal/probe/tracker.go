// Package probe tracks outstanding pings awaiting an ack: direct probes,
// their promotion to indirect once a probe timeout elapses without reply,
// and eventual reaping into a suspect decision.
package probe

import (
	"time"

	"github.com/meshkeeper/swimd/internal/domain"
)

// Tracker holds the set of currently pending probes, keyed by sequence
// number. It is owned exclusively by the event loop and carries no lock.
type Tracker struct {
	pending map[uint32]*domain.PendingProbe
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{pending: make(map[uint32]*domain.PendingProbe)}
}

// AddDirect registers a freshly sent direct ping.
func (t *Tracker) AddDirect(seq uint32, target string, now time.Time) {
	t.pending[seq] = &domain.PendingProbe{Seq: seq, Target: target, SentAt: now}
}

// HasPendingFor reports whether any probe currently targets addr, direct
// or promoted. Used to avoid double-probing a member already in flight.
func (t *Tracker) HasPendingFor(target string) bool {
	for _, p := range t.pending {
		if p.Target == target {
			return true
		}
	}
	return false
}

// RemoveMatching removes the probe with the given seq if its target
// matches from, and returns the elapsed RTT. ok is false if no such
// pending probe exists — a stale, duplicate, or forged ack.
func (t *Tracker) RemoveMatching(seq uint32, from string, now time.Time) (rtt time.Duration, ok bool) {
	p, exists := t.pending[seq]
	if !exists || p.Target != from {
		return 0, false
	}
	delete(t.pending, seq)
	return now.Sub(p.SentAt), true
}

// PromoteIndirect marks every pending probe whose target matches the given
// address as indirect-sent, resetting its sent-at to now so the probe
// timeout window restarts for the indirect round. This affects every probe
// matching the target, not only the one that triggered the promotion —
// in practice there is normally exactly one, but the rule is defined over
// the whole set to match the reference algorithm exactly.
func (t *Tracker) PromoteIndirect(target string, now time.Time) {
	for _, p := range t.pending {
		if p.Target == target {
			p.IndirectSent = true
			p.SentAt = now
		}
	}
}

// Due partitions currently pending probes relative to the given deadline
// (now minus the probe timeout). needIndirect holds probes past the
// deadline that have not yet been promoted to indirect; timedOut holds
// probes past the deadline that already went through an indirect round
// and must now be reaped as failed.
func (t *Tracker) Due(probeTimeout time.Duration, now time.Time) (needIndirect, timedOut []domain.PendingProbe) {
	for _, p := range t.pending {
		if now.Sub(p.SentAt) <= probeTimeout {
			continue
		}
		if p.IndirectSent {
			timedOut = append(timedOut, *p)
		} else {
			needIndirect = append(needIndirect, *p)
		}
	}
	return needIndirect, timedOut
}

// Purge drops probes that have exceeded the timeout on their indirect
// round. It must run after the caller has already acted on the timedOut
// list from Due and promoted the needIndirect list via PromoteIndirect —
// that promotion resets sent_at, so a just-promoted probe survives this
// pass. The retain predicate is: keep if
// now-sent_at <= probeTimeout || !indirectSent. It returns the addresses
// actually dropped, for logging only — callers must not treat this as a
// second discovery of failed targets, since those were already handled
// via the timedOut list Due returned earlier in the same tick.
func (t *Tracker) Purge(probeTimeout time.Duration, now time.Time) []string {
	var dropped []string
	for seq, p := range t.pending {
		if now.Sub(p.SentAt) <= probeTimeout || !p.IndirectSent {
			continue
		}
		dropped = append(dropped, p.Target)
		delete(t.pending, seq)
	}
	return dropped
}

// Probes returns a snapshot of all currently pending probes, for
// diagnostics.
func (t *Tracker) Probes() []domain.PendingProbe {
	out := make([]domain.PendingProbe, 0, len(t.pending))
	for _, p := range t.pending {
		out = append(out, *p)
	}
	return out
}

// Len returns the number of currently pending probes.
func (t *Tracker) Len() int {
	return len(t.pending)
}
