package peerdb

import (
	"net"
	"sort"
	"time"

	"github.com/libp2p/go-libp2p-core/peer"

	"github.com/eth2node/peerd/peerdata"
	"github.com/eth2node/peerd/score"
)

// ScoreUpdateResultKind discriminates ScoreUpdateResult.
type ScoreUpdateResultKind int

const (
	NoAction ScoreUpdateResultKind = iota
	Disconnect
	Ban
)

// ScoreUpdateResult is returned by ReportPeer/UpdateScores: the caller
// (manager) must act on it outside the store's lock, per spec.md §4.1/§5.
type ScoreUpdateResult struct {
	Kind ScoreUpdateResultKind
	Ban  BanOperation // meaningful only when Kind == Ban
}

// BanOperationKind discriminates BanOperation.
type BanOperationKind int

const (
	// DisconnectThePeer: the peer is still Connected; the manager must
	// disconnect it first, then call InjectDisconnect to complete the ban.
	DisconnectThePeer BanOperationKind = iota
	// PeerDisconnecting: the peer is already Disconnecting; no extra
	// action besides letting the in-flight disconnect complete.
	PeerDisconnecting
	// ReadyToBan: the peer has fully disconnected; it is now Banned and
	// its IPs are listed for the manager to propagate to the transport.
	ReadyToBan
)

// BanOperation tells the manager what banning id currently requires.
type BanOperation struct {
	Kind BanOperationKind
	IPs  []net.IP // populated only for ReadyToBan
}

// UnbanEvent reports that a purged Banned record released its IPs.
type UnbanEvent struct {
	Peer peer.ID
	IPs  []net.IP
}

// ReportPeer applies action to id's score and returns what the manager
// must do as a result (spec.md §4.1/§4.2 report_peer).
func (db *PeerDB) ReportPeer(id peer.ID, action score.PeerAction, now time.Time) ScoreUpdateResult {
	db.mu.Lock()
	defer db.mu.Unlock()

	r := db.getOrCreate(id, now)
	r.score.Apply(action, now)
	return db.evaluateScore(id, r, now)
}

// UpdateScores re-evaluates the decayed score of every Connected peer and
// returns a Disconnect/Ban result for each one at or past a threshold
// (spec.md §4.1 update_scores, invoked from the manager's heartbeat).
// Peers in any other state are not evaluated.
func (db *PeerDB) UpdateScores(now time.Time) map[peer.ID]ScoreUpdateResult {
	db.mu.Lock()
	defer db.mu.Unlock()

	results := make(map[peer.ID]ScoreUpdateResult)
	for id, r := range db.peers {
		if !r.status.IsConnected() {
			continue
		}
		res := db.evaluateScore(id, r, now)
		if res.Kind != NoAction {
			results[id] = res
		}
	}
	return results
}

// UpdateGossipsubScores blends a gossipsub-reported score into the
// corresponding record's Model and evaluates the result exactly as
// ReportPeer/UpdateScores do (spec.md §4.1). targetPeers caps how many of
// the supplied candidates are actually penalized: only the targetPeers
// peers with the lowest gossipsub score are touched, mirroring
// original_source/.../peer_manager/mod.rs:548-557's
// `update_gossipsub_scores(self.target_peers, gossipsub)` call.
func (db *PeerDB) UpdateGossipsubScores(scores map[peer.ID]float64, targetPeers int, now time.Time) map[peer.ID]ScoreUpdateResult {
	db.mu.Lock()
	defer db.mu.Unlock()

	type candidate struct {
		id peer.ID
		gs float64
	}
	candidates := make([]candidate, 0, len(scores))
	for id, gs := range scores {
		r, ok := db.peers[id]
		if !ok || !r.status.IsConnected() {
			continue
		}
		candidates = append(candidates, candidate{id: id, gs: gs})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].gs < candidates[j].gs })

	if targetPeers >= 0 && len(candidates) > targetPeers {
		candidates = candidates[:targetPeers]
	}

	results := make(map[peer.ID]ScoreUpdateResult)
	for _, c := range candidates {
		r := db.peers[c.id]
		r.score.SetGossipsubScore(c.gs)
		res := db.evaluateScore(c.id, r, now)
		if res.Kind != NoAction {
			results[c.id] = res
		}
	}
	return results
}

// evaluateScore inspects r's current effective score and decides whether
// it still warrants a NoAction/Disconnect/Ban outcome. Must be called
// with the write lock held.
func (db *PeerDB) evaluateScore(id peer.ID, r *Record, now time.Time) ScoreUpdateResult {
	if r.score.IsBanned(now) {
		return ScoreUpdateResult{Kind: Ban, Ban: db.beginBan(id, r, now)}
	}
	if r.score.IsDisconnectWorthy(now) {
		return ScoreUpdateResult{Kind: Disconnect}
	}
	return ScoreUpdateResult{Kind: NoAction}
}

// beginBan starts (or continues) the ban sequence for r, returning the
// BanOperation the manager must carry out next. Must be called with the
// write lock held.
func (db *PeerDB) beginBan(id peer.ID, r *Record, now time.Time) BanOperation {
	switch r.status.State {
	case peerdata.StateConnected:
		r.status.WillBan = true
		return BanOperation{Kind: DisconnectThePeer}
	case peerdata.StateDisconnecting:
		r.status.WillBan = true
		return BanOperation{Kind: PeerDisconnecting}
	case peerdata.StateBanned:
		// Already banned: its IPs were tallied when the ban was applied.
		return BanOperation{Kind: ReadyToBan, IPs: r.status.IPs}
	default:
		return db.banReadyNow(id, r, now)
	}
}

// banReadyNow transitions r directly to Banned, recording its known IPs
// for the manager to propagate to the transport layer, and updates the
// bannedIPs bookkeeping used by BanStatus. Must be called with the write
// lock held.
func (db *PeerDB) banReadyNow(id peer.ID, r *Record, now time.Time) BanOperation {
	ips := r.bannedIPs()
	if addrIP := ipFromMultiaddr(r.connectAddr); addrIP != nil {
		ips = appendIfMissing(ips, addrIP)
	}

	r.status = peerdata.Status{State: peerdata.StateBanned, Since: now, IPs: ips}
	db.bannedOrder = append(db.bannedOrder, id)
	for _, ip := range ips {
		db.bannedIPs[ipKey(ip)]++
	}

	return BanOperation{Kind: ReadyToBan, IPs: ips}
}

func appendIfMissing(ips []net.IP, ip net.IP) []net.IP {
	for _, existing := range ips {
		if existing.Equal(ip) {
			return ips
		}
	}
	return append(ips, ip)
}
