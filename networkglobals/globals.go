// Package networkglobals provides the explicit, non-singleton context
// object threaded through the manager and its collaborators, mirroring
// the teacher's beacon-chain/p2p NetworkGlobals struct (a single place
// other node components reach the peer store through, instead of each
// package importing peerdb directly and risking cyclic imports).
package networkglobals

import "github.com/eth2node/peerd/peerdb"

// NetworkGlobals bundles the peer-facing state a node's various p2p
// components need to share. spec.md §9 explicitly rejects a singleton
// here: constructing one and passing it into PeerManager (and anything
// else that needs it) keeps dependencies acyclic and testable.
type NetworkGlobals struct {
	peers *peerdb.PeerDB
}

// New returns a NetworkGlobals wrapping db.
func New(db *peerdb.PeerDB) *NetworkGlobals {
	return &NetworkGlobals{peers: db}
}

// Peers returns the shared PeerDB.
func (g *NetworkGlobals) Peers() *peerdb.PeerDB { return g.peers }
