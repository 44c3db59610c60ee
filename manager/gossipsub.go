package manager

import "github.com/libp2p/go-libp2p-core/peer"

// GossipsubScoreSource is the narrow slice of a pubsub router's
// scoring state the manager needs: the last-computed score for a peer.
// It is defined here, rather than depending on go-libp2p-pubsub
// directly, because a router's score state is internal to its own
// package (see the pack's LeastAuthority-go-libp2p-pubsub example,
// where *PubSub.rt/score live unexported) — any host wiring a real
// gossipsub.PubSub in satisfies this by wrapping PeerScore with a tiny
// adapter of its own.
type GossipsubScoreSource interface {
	PeerScore(p peer.ID) (score float64, ok bool)
}

// noGossipsub is used when a host has no pubsub router to report
// scores from; every lookup misses.
type noGossipsub struct{}

func (noGossipsub) PeerScore(peer.ID) (float64, bool) { return 0, false }
