package peerdb

import (
	"time"

	"github.com/libp2p/go-libp2p-core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/eth2node/peerd/client"
	"github.com/eth2node/peerd/syncstatus"
)

// SetIdentity records the client kind and listening addresses learned
// from an identify exchange, returning whether the listening addresses
// changed from what was previously known (spec.md §3: identify updates
// client_kind/listening_addresses; the teacher's identify handler uses
// an equivalent change signal to decide whether to re-announce a peer).
func (db *PeerDB) SetIdentity(id peer.ID, c client.Client, addrs []ma.Multiaddr, now time.Time) (changed bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := db.getOrCreate(id, now)
	r.client = c
	prev := r.setListeningAddresses(addrs)
	return !sameAddrs(prev, addrs)
}

// SetSyncStatus records a peer's last reported chain-sync posture.
func (db *PeerDB) SetSyncStatus(id peer.ID, s syncstatus.Status, now time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := db.getOrCreate(id, now)
	r.syncStatus = s
}

// SetMinTTL records the instant until which id is needed for a current
// duty, exempting it from pruning until then (spec.md §3: has_future_duty).
func (db *PeerDB) SetMinTTL(id peer.ID, until time.Time, now time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := db.getOrCreate(id, now)
	r.minTTL = &until
}

func sameAddrs(a, b []ma.Multiaddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
