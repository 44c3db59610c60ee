package manager

import (
	"net"

	"github.com/libp2p/go-libp2p-core/peer"
)

// PeerManagerEventKind discriminates PeerManagerEvent, the tagged union
// the manager emits to its host (spec.md §4: "the manager emits events
// rather than acting on the swarm directly"). The nine kinds are exactly
// spec.md §6's output event list.
type PeerManagerEventKind int

const (
	// EventPeerConnectedIncoming is informational: a new inbound
	// connection from Peer was accepted.
	EventPeerConnectedIncoming PeerManagerEventKind = iota
	// EventPeerConnectedOutgoing is informational: a new outbound
	// connection to Peer was accepted.
	EventPeerConnectedOutgoing
	// EventPeerDisconnected is informational: Peer fully disconnected.
	EventPeerDisconnected
	// EventStatus asks the host to run a status round-trip with Peer.
	EventStatus
	// EventPing asks the host to send a keepalive ping to Peer.
	EventPing
	// EventDisconnectPeer asks the host to close Peer's connection,
	// citing Reason.
	EventDisconnectPeer
	// EventBanPeer tells the host Peer is now Banned; BanIPs lists
	// addresses that should be rejected at the transport level going
	// forward.
	EventBanPeer
	// EventUnbanAddresses tells the host that BanIPs are no longer
	// associated with any Banned peer and may be un-rejected.
	EventUnbanAddresses
	// EventDiscoverPeers asks the host's discovery mechanism to surface
	// Count additional dial candidates.
	EventDiscoverPeers
)

// PeerManagerEvent is emitted on the manager's Events() channel. Exactly
// one field group is meaningful, selected by Kind.
type PeerManagerEvent struct {
	Kind PeerManagerEventKind

	Peer   peer.ID
	Reason GoodbyeReason
	BanIPs []net.IP
	Count  int // meaningful only for EventDiscoverPeers
}
