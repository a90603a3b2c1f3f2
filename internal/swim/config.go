package swim

import "time"

// Config holds the tunable timing constants that drive a Node's event
// loop. Every field has a spec-mandated default via DefaultConfig; the
// optional TOML config file is the only supported way to override them —
// there is deliberately no CLI flag for any of these.
type Config struct {
	TickInterval       time.Duration
	ProbeTimeout       time.Duration
	SuspectTimeout     time.Duration
	IndirectProbeCount int
	RTTRingSize        int
}

// DefaultConfig returns the protocol's default timing constants.
func DefaultConfig() Config {
	return Config{
		TickInterval:       1 * time.Second,
		ProbeTimeout:       500 * time.Millisecond,
		SuspectTimeout:     3 * time.Second,
		IndirectProbeCount: 3,
		RTTRingSize:        1000,
	}
}
