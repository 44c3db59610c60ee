// Package peerdb implements the indexed peer store described in
// spec.md §3/§4.2: PeerRecord state, the connection-status state machine,
// score accounting, and ban/unban bookkeeping including IP-level bans.
package peerdb

import (
	"net"
	"time"

	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/eth2node/peerd/client"
	"github.com/eth2node/peerd/peerdata"
	"github.com/eth2node/peerd/score"
	"github.com/eth2node/peerd/syncstatus"
	"github.com/libp2p/go-libp2p-core/network"
	ma "github.com/multiformats/go-multiaddr"
)

// Record is the per-peer state described by spec.md §3. Its Status
// evolves only through PeerDB's API (invariant 1): callers never mutate
// a Record obtained from the store directly for anything beyond reading.
type Record struct {
	id        string // string form for logging; canonical key lives in the store's map
	status    peerdata.Status
	direction network.Direction

	listeningAddresses []ma.Multiaddr
	enr                *enr.Record

	// connectAddr is the address of the most recent inbound or outbound
	// connection, used to derive the peer's IP for ban-by-IP bookkeeping.
	connectAddr ma.Multiaddr

	client     client.Client
	syncStatus syncstatus.Status

	minTTL *time.Time

	score score.Model

	// firstSeen is the instant the record was created; it is not part of
	// the spec's public surface.
	firstSeen time.Time
}

func newRecord(now time.Time) *Record {
	return &Record{
		status:    peerdata.Status{State: peerdata.StateUnknown},
		direction: network.DirUnknown,
		score:     score.NewModel(now),
		firstSeen: now,
	}
}

// Status returns a copy of the record's current connection status.
func (r *Record) Status() peerdata.Status { return r.status }

// Direction returns the connection direction.
func (r *Record) Direction() network.Direction { return r.direction }

// ListeningAddresses returns the last advertised listening addresses.
func (r *Record) ListeningAddresses() []ma.Multiaddr { return r.listeningAddresses }

// ENR returns the peer's last known Ethereum Node Record, or nil.
func (r *Record) ENR() *enr.Record { return r.enr }

// Client returns the parsed client identification.
func (r *Record) Client() client.Client { return r.client }

// SyncStatus returns the peer's sync posture.
func (r *Record) SyncStatus() syncstatus.Status { return r.syncStatus }

// MinTTL returns the absolute instant until which this peer is required
// for a current duty, if any.
func (r *Record) MinTTL() *time.Time { return r.minTTL }

// HasFutureDuty reports whether MinTTL is set and still in the future
// relative to now (spec.md §3: has_future_duty).
func (r *Record) HasFutureDuty(now time.Time) bool {
	return r.minTTL != nil && r.minTTL.After(now)
}

// Score returns the effective, decayed score as of now.
func (r *Record) Score(now time.Time) float64 { return r.score.Score(now) }

// IsOutboundOnly reports whether the peer is Connected with only outbound
// connections.
func (r *Record) IsOutboundOnly() bool { return r.status.IsOutboundOnly() }

// setListeningAddresses replaces the listening addresses and returns the
// previous value, so callers can detect a change (mirrors the teacher's
// set_listening_addresses returning the prior value for its identify
// change-detection).
func (r *Record) setListeningAddresses(addrs []ma.Multiaddr) []ma.Multiaddr {
	prev := r.listeningAddresses
	r.listeningAddresses = addrs
	return prev
}

func (r *Record) bannedIPs() []net.IP {
	return r.status.IPs
}
