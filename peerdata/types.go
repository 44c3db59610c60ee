package peerdata

import (
	"net"
	"time"
)

// ConnectionState enumerates the state-machine states a PeerRecord's
// status can be in. It is the discriminant of Status; state-specific
// payload lives alongside it rather than in separate Go types, since the
// state machine is small and closed.
type ConnectionState int

const (
	StateUnknown ConnectionState = iota
	StateDialing
	StateConnected
	StateDisconnecting
	StateDisconnected
	StateBanned
)

func (s ConnectionState) String() string {
	switch s {
	case StateDialing:
		return "dialing"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateBanned:
		return "banned"
	default:
		return "unknown"
	}
}

// Status is the tagged union described by spec.md §3: exactly one of the
// fields below is meaningful, selected by State.
type Status struct {
	State ConnectionState

	// Connected{inbound_count, outbound_count}
	InboundCount  int
	OutboundCount int

	// Disconnecting{will_ban}
	WillBan bool

	// Dialing{since} / Disconnected{since} / Banned{since, ips}
	Since time.Time
	IPs   []net.IP
}

// IsConnected reports whether the status is Connected.
func (s Status) IsConnected() bool { return s.State == StateConnected }

// IsDialing reports whether the status is Dialing.
func (s Status) IsDialing() bool { return s.State == StateDialing }

// IsDisconnected reports whether the status is Disconnected.
func (s Status) IsDisconnected() bool { return s.State == StateDisconnected }

// IsDisconnecting reports whether the status is Disconnecting.
func (s Status) IsDisconnecting() bool { return s.State == StateDisconnecting }

// IsBanned reports whether the status is Banned.
func (s Status) IsBanned() bool { return s.State == StateBanned }

// IsOutboundOnly reports whether a Connected peer has no inbound
// connections (outbound-only, per spec.md's connected_outbound_only_peers).
func (s Status) IsOutboundOnly() bool {
	return s.State == StateConnected && s.InboundCount == 0 && s.OutboundCount > 0
}
