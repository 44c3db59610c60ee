// Package client identifies the implementation family of a remote peer
// from its libp2p identify agent string.
package client

import "strings"

// Kind enumerates the consensus-client implementations the peer manager
// recognizes in RPC error accounting and metrics. Unrecognized agent
// strings fall back to Unknown.
type Kind int

const (
	Unknown Kind = iota
	Lighthouse
	Prysm
	Teku
	Nimbus
	Lodestar
	Grandine
)

func (k Kind) String() string {
	switch k {
	case Lighthouse:
		return "lighthouse"
	case Prysm:
		return "prysm"
	case Teku:
		return "teku"
	case Nimbus:
		return "nimbus"
	case Lodestar:
		return "lodestar"
	case Grandine:
		return "grandine"
	default:
		return "unknown"
	}
}

// Client carries the raw identify strings alongside the parsed Kind.
type Client struct {
	Kind            Kind
	AgentVersion    string
	ProtocolVersion string
}

// FromAgentVersion parses a libp2p identify "agent version" string into a
// Client. Matching is a case-insensitive prefix/substring match against
// each known implementation's conventional self-identification, mirroring
// the original Lighthouse peer manager's Client::from_identify_info.
func FromAgentVersion(agentVersion, protocolVersion string) Client {
	c := Client{AgentVersion: agentVersion, ProtocolVersion: protocolVersion}
	lower := strings.ToLower(agentVersion)
	switch {
	case strings.Contains(lower, "lighthouse"):
		c.Kind = Lighthouse
	case strings.Contains(lower, "prysm"):
		c.Kind = Prysm
	case strings.Contains(lower, "teku"):
		c.Kind = Teku
	case strings.Contains(lower, "nimbus"):
		c.Kind = Nimbus
	case strings.Contains(lower, "lodestar"):
		c.Kind = Lodestar
	case strings.Contains(lower, "grandine"):
		c.Kind = Grandine
	default:
		c.Kind = Unknown
	}
	return c
}

// Kinds returns every known Kind, in a stable order, for metrics
// initialization (mirrors the teacher's ClientKind::iter() use in
// update_connected_peer_metrics).
func Kinds() []Kind {
	return []Kind{Unknown, Lighthouse, Prysm, Teku, Nimbus, Lodestar, Grandine}
}
