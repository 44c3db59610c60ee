package manager

import (
	"time"

	ma "github.com/multiformats/go-multiaddr"
)

const (
	defaultTarget               = 50
	defaultHeartbeat            = 30 * time.Second
	defaultStatusInterval       = 5 * time.Minute
	defaultPingIntervalInbound  = 15 * time.Second
	defaultPingIntervalOutbound = 20 * time.Second
)

// Filters lets the host veto dials of discovered peers after the
// manager's own should_dial/ban/capacity admission has chosen them,
// e.g. for subnet-aware selection logic that
// sits outside this package's scope (spec.md §9: subnet-aware pruning is
// a Non-goal here, expressed instead as a pluggable predicate).
type Filters struct {
	// AllowDial, if set, gates outbound dialing of a discovered address on
	// top of should_dial/ban checks. A nil AllowDial allows everything.
	AllowDial func(ma.Multiaddr) bool
}

// Config bounds the manager's target peer count and timer periods
// (spec.md §4/§7: the target plus the heartbeat/status/ping cadences).
type Config struct {
	// Target is the steady-state peer count capacity/ budgets derive from.
	Target int

	Heartbeat            time.Duration
	StatusInterval       time.Duration
	PingIntervalInbound  time.Duration
	PingIntervalOutbound time.Duration

	// DiscoveryEnabled gates maintain_peer_count: when false, the manager
	// never emits EventDiscoverPeers (spec.md §4.5).
	DiscoveryEnabled bool
	// MetricsEnabled gates prometheus collector registration and the
	// per-heartbeat score metrics (spec.md §6). The connection, identify
	// and RPC-error collectors are updated either way; they are simply
	// not registered when this is false.
	MetricsEnabled bool

	Filters Filters
}

// DefaultConfig returns the manager's documented defaults (spec.md §7).
func DefaultConfig() *Config {
	return &Config{
		Target:               defaultTarget,
		Heartbeat:            defaultHeartbeat,
		StatusInterval:       defaultStatusInterval,
		PingIntervalInbound:  defaultPingIntervalInbound,
		PingIntervalOutbound: defaultPingIntervalOutbound,
		DiscoveryEnabled:     true,
		MetricsEnabled:       true,
	}
}

func (c *Config) validate() error {
	if c.Target <= 0 {
		return ErrInvalidTarget
	}
	if c.Heartbeat <= 0 || c.StatusInterval <= 0 || c.PingIntervalInbound <= 0 || c.PingIntervalOutbound <= 0 {
		return ErrInvalidInterval
	}
	return nil
}
