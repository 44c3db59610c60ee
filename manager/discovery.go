package manager

import (
	"time"

	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/libp2p/go-libp2p-core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/eth2node/peerd/capacity"
	"github.com/eth2node/peerd/peerdb"
)

// maxDiscoveryWanted bounds a single maintain_peer_count call, mirroring
// the original peer_manager's SmallVec-sized burst of at most 16.
const maxDiscoveryWanted = 16

// DiscoveredPeer is a dial candidate surfaced by the host's discovery
// mechanism (e.g. discv5), passed into PeersDiscovered. MinTTL, if set,
// marks the candidate as needed for a known upcoming duty, admitting it
// against the larger MaxPriorityPeers budget instead of MaxPeers.
type DiscoveredPeer struct {
	ID     peer.ID
	Addr   ma.Multiaddr
	ENR    *enr.Record
	MinTTL *time.Time
}

// PeersDiscovered implements spec.md §4.5's peers_discovered: it walks
// candidates in order, admitting each iff should_dial(id) and either it
// carries a MinTTL and the priority budget (MaxPriorityPeers) has room,
// or the ordinary budget (MaxPeers) has room. Admitted MinTTL candidates
// have their record's min_ttl updated. Filters.AllowDial is then applied
// to the whole admitted set (a post-hoc retain, not an inline skip, per
// original_source/.../peer_manager/mod.rs:254-289), and the pass finishes
// by calling maintainPeerCount with however many dials were actually
// started.
func (m *PeerManager) PeersDiscovered(candidates []DiscoveredPeer, now time.Time) []peer.ID {
	maxPeers := capacity.MaxPeers(m.cfg.Target)
	maxPriorityPeers := capacity.MaxPriorityPeers(m.cfg.Target)
	connectedOrDialing := m.globals.Peers().ConnectedOrDialingPeers()

	var chosen []DiscoveredPeer
	for _, c := range candidates {
		if !m.globals.Peers().ShouldDial(c.ID) {
			continue
		}
		if m.globals.Peers().BanStatus(c.ID).Kind != peerdb.NotBanned {
			continue
		}

		admitted := false
		if c.MinTTL != nil && connectedOrDialing+len(chosen) < maxPriorityPeers {
			admitted = true
		} else if connectedOrDialing+len(chosen) < maxPeers {
			admitted = true
		}
		if !admitted {
			continue
		}

		if c.MinTTL != nil {
			m.globals.Peers().SetMinTTL(c.ID, *c.MinTTL, now)
		}
		chosen = append(chosen, c)
	}

	if m.cfg.Filters.AllowDial != nil {
		filtered := chosen[:0]
		for _, c := range chosen {
			if c.Addr == nil || m.cfg.Filters.AllowDial(c.Addr) {
				filtered = append(filtered, c)
			}
		}
		chosen = filtered
	}

	toDial := make([]peer.ID, 0, len(chosen))
	for _, c := range chosen {
		m.globals.Peers().DialingPeer(c.ID, c.ENR, now)
		toDial = append(toDial, c.ID)
	}

	m.maintainPeerCount(len(toDial))
	return toDial
}

// maintainPeerCount computes how many additional dial candidates are
// wanted right now and, if nonzero, emits EventDiscoverPeers (spec.md
// §4.5's maintain_peer_count). dialingNow is the number of dials the
// caller just started (0 from the heartbeat, which only wants to check
// the steady state).
func (m *PeerManager) maintainPeerCount(dialingNow int) {
	if !m.cfg.DiscoveryEnabled {
		return
	}

	target := m.cfg.Target
	connectedOrDialing := m.globals.Peers().ConnectedOrDialingPeers()

	var wanted int
	switch {
	case connectedOrDialing < target-dialingNow:
		wanted = min(maxDiscoveryWanted, (target-dialingNow)-connectedOrDialing)
	case m.globals.Peers().ConnectedOutboundOnlyPeers() < capacity.MinOutbound(target) &&
		connectedOrDialing < capacity.MaxOutboundDialing(target):
		wanted = min(maxDiscoveryWanted, capacity.MaxOutboundDialing(target)-dialingNow-connectedOrDialing)
	default:
		wanted = 0
	}

	if wanted > 0 {
		m.emit(PeerManagerEvent{Kind: EventDiscoverPeers, Count: wanted})
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
