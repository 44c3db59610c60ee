package peerdb

import (
	"net"
	"time"

	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/eth2node/peerd/peerdata"
)

// BanResultKind discriminates BanResult.
type BanResultKind int

const (
	NotBanned BanResultKind = iota
	BannedPeer
	BannedIP
)

// BanResult is the outcome of BanStatus: either the peer is not banned,
// the peer itself is Banned, or one of its known IPs has crossed the
// banned-IP threshold (spec.md §4.2).
type BanResult struct {
	Kind BanResultKind
	IP   net.IP
}

func (r BanResult) String() string {
	switch r.Kind {
	case BannedPeer:
		return "banned_peer"
	case BannedIP:
		return "banned_ip(" + r.IP.String() + ")"
	default:
		return "not_banned"
	}
}

// ipFromMultiaddr extracts the IP component of a multiaddr, if any.
func ipFromMultiaddr(addr ma.Multiaddr) net.IP {
	if addr == nil {
		return nil
	}
	if v, err := addr.ValueForProtocol(ma.P_IP4); err == nil {
		return net.ParseIP(v)
	}
	if v, err := addr.ValueForProtocol(ma.P_IP6); err == nil {
		return net.ParseIP(v)
	}
	return nil
}

// DialingPeer records that a connection attempt to id is in progress.
// Callers must not invoke this for a peer currently BannedPeer/BannedIP
// (spec.md §4.2: "forbidden from Banned, must be rejected by caller").
func (db *PeerDB) DialingPeer(id peer.ID, rec *enr.Record, now time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := db.getOrCreate(id, now)
	r.status = peerdata.Status{State: peerdata.StateDialing, Since: now}
	if rec != nil {
		r.enr = rec
	}
}

// ConnectIngoing transitions id into Connected with an additional inbound
// connection, recording addr and enr.
func (db *PeerDB) ConnectIngoing(id peer.ID, addr ma.Multiaddr, rec *enr.Record, now time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := db.getOrCreate(id, now)
	db.connect(r, addr, rec, network.DirInbound)
}

// ConnectOutgoing transitions id into Connected with an additional
// outbound connection, recording addr and enr.
func (db *PeerDB) ConnectOutgoing(id peer.ID, addr ma.Multiaddr, rec *enr.Record, now time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := db.getOrCreate(id, now)
	db.connect(r, addr, rec, network.DirOutbound)
}

func (db *PeerDB) connect(r *Record, addr ma.Multiaddr, rec *enr.Record, dir network.Direction) {
	if r.status.State != peerdata.StateConnected {
		r.status = peerdata.Status{State: peerdata.StateConnected}
	}
	switch dir {
	case network.DirInbound:
		r.status.InboundCount++
	case network.DirOutbound:
		r.status.OutboundCount++
	}
	r.connectAddr = addr
	if rec != nil {
		r.enr = rec
	}
	r.direction = directionFromCounts(r.status.InboundCount, r.status.OutboundCount)
}

func directionFromCounts(inbound, outbound int) network.Direction {
	switch {
	case inbound > 0 && outbound == 0:
		return network.DirInbound
	case outbound > 0 && inbound == 0:
		return network.DirOutbound
	case inbound > 0 && outbound > 0:
		return network.DirOutbound // mixed: treated as not outbound-only for pruning purposes via IsOutboundOnly
	default:
		return network.DirUnknown
	}
}

// NotifyDisconnecting marks id as Disconnecting, carrying whether it
// should be banned once the disconnection completes. Calling this twice
// in a row on the same peer is a no-op (guarded against double
// invocation, per spec.md §4.2).
func (db *PeerDB) NotifyDisconnecting(id peer.ID, willBan bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r, ok := db.peers[id]
	if !ok || r.status.State == peerdata.StateDisconnecting {
		return
	}
	r.status = peerdata.Status{State: peerdata.StateDisconnecting, WillBan: willBan}
}

// InjectDisconnect finalizes a disconnection: if the record was
// Disconnecting{will_ban: true} it becomes ReadyToBan; otherwise it
// becomes Disconnected. The second return value lists peers purged by
// age-out during this call, each with the IPs that became unbanned.
func (db *PeerDB) InjectDisconnect(id peer.ID, now time.Time) (*BanOperation, []UnbanEvent) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, ok := db.peers[id]
	if !ok {
		return nil, nil
	}

	if r.status.State == peerdata.StateDisconnecting && r.status.WillBan {
		op := db.banReadyNow(id, r, now)
		return &op, db.purgeIfNeeded(now)
	}

	r.status = peerdata.Status{State: peerdata.StateDisconnected, Since: now}
	r.direction = network.DirUnknown
	db.disconnectedOrder = append(db.disconnectedOrder, id)
	return nil, db.purgeIfNeeded(now)
}

// ShouldDial reports whether id is eligible for dialing: Disconnected or
// Unknown (including entirely unseen IDs), never Banned, never currently
// Dialing (spec.md §4.2).
func (db *PeerDB) ShouldDial(id peer.ID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.peers[id]
	if !ok {
		return true
	}
	switch r.status.State {
	case peerdata.StateDisconnected, peerdata.StateUnknown:
		return true
	default:
		return false
	}
}

// BanStatus reports whether id is banned directly, via a shared IP, or
// not at all.
func (db *PeerDB) BanStatus(id peer.ID) BanResult {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.peers[id]
	if !ok {
		return BanResult{Kind: NotBanned}
	}
	if r.status.IsBanned() {
		return BanResult{Kind: BannedPeer}
	}
	known := []net.IP{ipFromMultiaddr(r.connectAddr)}
	for _, a := range r.listeningAddresses {
		known = append(known, ipFromMultiaddr(a))
	}
	for _, ip := range known {
		if ip != nil && db.bannedIPs[ipKey(ip)] > BannedPeersPerIPThreshold {
			return BanResult{Kind: BannedIP, IP: ip}
		}
	}
	return BanResult{Kind: NotBanned}
}

// CleanupDialingPeers reverts any record in Dialing older than
// DialTimeout back to Disconnected.
func (db *PeerDB) CleanupDialingPeers(now time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for id, r := range db.peers {
		if r.status.State == peerdata.StateDialing && now.Sub(r.status.Since) > DialTimeout {
			r.status = peerdata.Status{State: peerdata.StateDisconnected, Since: now}
			db.disconnectedOrder = append(db.disconnectedOrder, id)
		}
	}
}
