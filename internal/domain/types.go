// Package domain contains pure SWIM protocol types with ZERO infrastructure
// imports. This is the innermost ring — it depends on nothing but the
// standard library's time and encoding/json packages.
package domain

import (
	"encoding/json"
	"time"
)

// ─── Peer State ─────────────────────────────────────────────────────────────

// PeerState is a peer's liveness classification. The zero value is Active.
// The three values form a total order (Active < Suspect < Dead) used only
// for monotonic downgrade within a single probe-failure chain — there is no
// other meaning attached to the ordering.
type PeerState int

const (
	Active PeerState = iota
	Suspect
	Dead
)

// String renders the state the way tick status lines and the status API do.
func (s PeerState) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Suspect:
		return "SUSPECT"
	case Dead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the state as its string form, so diagnostic JSON
// (the status API's /members view) reads naturally.
func (s PeerState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses the string form produced by MarshalJSON.
func (s *PeerState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "ACTIVE":
		*s = Active
	case "SUSPECT":
		*s = Suspect
	case "DEAD":
		*s = Dead
	default:
		*s = Active
	}
	return nil
}

// ─── Member Record ──────────────────────────────────────────────────────────

// Member is what the membership table keeps per known peer address.
// Incarnation is carried for future suspect-refutation gossip; this design
// never increments it.
type Member struct {
	Address         string
	State           PeerState
	Incarnation     uint32
	LastStateChange time.Time
}

// ─── Pending Probe ──────────────────────────────────────────────────────────

// PendingProbe tracks one outstanding ping (direct or promoted-to-indirect)
// awaiting an ack.
type PendingProbe struct {
	Seq          uint32
	Target       string
	SentAt       time.Time
	IndirectSent bool
}
