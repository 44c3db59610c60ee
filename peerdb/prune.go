package peerdb

import (
	"net"
	"sort"
	"time"

	"github.com/libp2p/go-libp2p-core/peer"

	"github.com/eth2node/peerd/peerdata"
)

// purgeIfNeeded enforces MaxDisconnectedPeers/MaxBannedPeers by evicting
// the oldest record(s) in each terminal bucket once it overflows,
// releasing any IPs that become fully unbanned as a result. Must be
// called with the write lock held.
func (db *PeerDB) purgeIfNeeded(now time.Time) []UnbanEvent {
	var unbans []UnbanEvent
	unbans = append(unbans, db.purgeTerminal(peerdata.StateDisconnected, &db.disconnectedOrder, db.cfg.MaxDisconnectedPeers)...)
	unbans = append(unbans, db.purgeTerminal(peerdata.StateBanned, &db.bannedOrder, db.cfg.MaxBannedPeers)...)
	return unbans
}

func (db *PeerDB) countInState(state peerdata.ConnectionState) int {
	n := 0
	for _, r := range db.peers {
		if r.status.State == state {
			n++
		}
	}
	return n
}

// purgeTerminal evicts the oldest entries of order whose record is still
// in state, until state's population no longer exceeds max. Stale order
// entries (the record since left that state) are skipped, not purged.
func (db *PeerDB) purgeTerminal(state peerdata.ConnectionState, order *[]peer.ID, max int) []UnbanEvent {
	var unbans []UnbanEvent
	for db.countInState(state) > max && len(*order) > 0 {
		id := (*order)[0]
		*order = (*order)[1:]

		r, ok := db.peers[id]
		if !ok || r.status.State != state {
			continue
		}

		if state == peerdata.StateBanned {
			if ev, released := db.releaseBannedIPs(id, r); released {
				unbans = append(unbans, ev)
			}
		}
		delete(db.peers, id)
	}
	return unbans
}

// releaseBannedIPs decrements the shared-IP counters for r's banned IPs
// and reports which of them dropped to zero (spec.md §4.2: an IP is
// unbanned once no Banned peer holds it any longer).
func (db *PeerDB) releaseBannedIPs(id peer.ID, r *Record) (UnbanEvent, bool) {
	var zeroed []net.IP
	for _, ip := range r.status.IPs {
		key := ipKey(ip)
		db.bannedIPs[key]--
		if db.bannedIPs[key] <= 0 {
			delete(db.bannedIPs, key)
			zeroed = append(zeroed, ip)
		}
	}
	if len(zeroed) == 0 {
		return UnbanEvent{}, false
	}
	return UnbanEvent{Peer: id, IPs: zeroed}, true
}

// WorstConnectedPeers returns Connected peer IDs sorted worst-score-first,
// excluding any peer with a future duty (spec.md §4.4 prune_excess_peers:
// peers serving an upcoming duty are exempt from pruning).
func (db *PeerDB) WorstConnectedPeers(now time.Time) []peer.ID {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var ids []peer.ID
	for id, r := range db.peers {
		if r.status.IsConnected() && !r.HasFutureDuty(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return db.peers[ids[i]].Score(now) < db.peers[ids[j]].Score(now)
	})
	return ids
}

// BestPeersByStatus returns peer IDs whose Record satisfies filter,
// sorted best-score-first. The manager uses it for its per-heartbeat
// score metrics.
func (db *PeerDB) BestPeersByStatus(now time.Time, filter func(*Record) bool) []peer.ID {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var ids []peer.ID
	for id, r := range db.peers {
		if filter(r) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return db.peers[ids[i]].Score(now) > db.peers[ids[j]].Score(now)
	})
	return ids
}
