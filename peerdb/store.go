package peerdb

import (
	"net"
	"sync"
	"time"

	"github.com/eth2node/peerd/peerdata"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "peerdb")

const (
	// BannedPeersPerIPThreshold is the number of currently-Banned peers
	// that must share an IP before that IP itself is considered banned
	// (spec.md §4.2, banned-IP test).
	BannedPeersPerIPThreshold = 5

	// DialTimeout bounds how long a Dialing record may remain in that
	// state before cleanup_dialing_peers reverts it to Disconnected.
	DialTimeout = 15 * time.Second
)

// Config bounds the store's terminal-state buckets.
type Config struct {
	// MaxBannedPeers is the maximum number of Banned records retained;
	// the oldest is purged once exceeded.
	MaxBannedPeers int
	// MaxDisconnectedPeers is the maximum number of Disconnected records
	// retained; the oldest is purged once exceeded.
	MaxDisconnectedPeers int
}

// DefaultConfig mirrors the bucket sizes the teacher's peer store uses for
// its own MaxPeers-style bounds (beacon-chain/p2p/peers/peerdata/store_test.go
// exercises an analogous MaxPeers-bounded store).
func DefaultConfig() *Config {
	return &Config{
		MaxBannedPeers:       1000,
		MaxDisconnectedPeers: 1000,
	}
}

// PeerDB is the indexed peer store of spec.md §3/§4.2. All mutating
// methods take the embedded RWMutex's write lock; read-only accessors
// take the read lock. Event emission happens outside the lock by callers
// (manager package), per spec.md §5.
type PeerDB struct {
	mu sync.RWMutex

	cfg *Config

	peers map[peer.ID]*Record

	// bannedOrder/disconnectedOrder track insertion order into their
	// respective terminal states, oldest first, for the purge algorithm.
	bannedOrder       []peer.ID
	disconnectedOrder []peer.ID

	// bannedIPs counts, per IP, how many currently-Banned peers hold it.
	bannedIPs map[string]int
}

// New returns an empty PeerDB. A nil cfg uses DefaultConfig.
func New(cfg *Config) *PeerDB {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &PeerDB{
		cfg:       cfg,
		peers:     make(map[peer.ID]*Record),
		bannedIPs: make(map[string]int),
	}
}

// getOrCreate returns the Record for id, creating (and logging) a default
// one if absent. Callers must hold the write lock.
func (db *PeerDB) getOrCreate(id peer.ID, now time.Time) *Record {
	r, ok := db.peers[id]
	if !ok {
		log.WithField("peer", id.Pretty()).Warn("Creating default record for unknown peer")
		r = newRecord(now)
		db.peers[id] = r
	}
	return r
}

// PeerInfo returns the Record for id, if present.
func (db *PeerDB) PeerInfo(id peer.ID) (*Record, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.peers[id]
	return r, ok
}

// Peers returns every known PeerID. Order is unspecified (spec.md §3:
// insertion order irrelevant).
func (db *PeerDB) Peers() []peer.ID {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ids := make([]peer.ID, 0, len(db.peers))
	for id := range db.peers {
		ids = append(ids, id)
	}
	return ids
}

// ConnectedPeers returns the count of Connected records (invariant 6).
func (db *PeerDB) ConnectedPeers() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for _, r := range db.peers {
		if r.status.IsConnected() {
			n++
		}
	}
	return n
}

// ConnectedOrDialingPeers returns Connected + Dialing (invariant 7).
func (db *PeerDB) ConnectedOrDialingPeers() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for _, r := range db.peers {
		if r.status.IsConnected() || r.status.IsDialing() {
			n++
		}
	}
	return n
}

// ConnectedOutboundOnlyPeers returns the count of Connected peers with no
// inbound connections.
func (db *PeerDB) ConnectedOutboundOnlyPeers() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for _, r := range db.peers {
		if r.IsOutboundOnly() {
			n++
		}
	}
	return n
}

// IsConnected reports whether id is currently Connected.
func (db *PeerDB) IsConnected(id peer.ID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.peers[id]
	return ok && r.status.IsConnected()
}

// Score returns the effective score for id as of now, or DefaultScore if
// the peer is unknown.
func (db *PeerDB) Score(id peer.ID, now time.Time) float64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.peers[id]
	if !ok {
		return 0
	}
	return r.Score(now)
}

// ipKey renders a net.IP to a stable map key.
func ipKey(ip net.IP) string { return ip.String() }
