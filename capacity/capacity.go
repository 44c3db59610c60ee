// Package capacity derives the peer-count budgets described in spec.md
// §4.4 from a single target-peer-count T, the same way the teacher's
// beacon-chain/p2p/peers package derives its MaxPeers/MaxOutbound figures
// from a configured target.
package capacity

import "math"

const (
	// PeerExcessFactor allows the peer count to briefly exceed T before
	// pruning kicks in (spec.md §4.4: MaxPeers = ceil(T * 1.10)).
	PeerExcessFactor = 0.10

	// PriorityPeerExcess further relaxes the excess bound for
	// application-priority peers (spec.md §4.4: MaxPriorityPeers = ceil(T * 1.30)).
	PriorityPeerExcess = 0.20

	// TargetOutboundOnlyFactor is the fraction of T we aim to keep as
	// outbound-only connections (spec.md §4.4: TargetOutbound = ceil(T * 0.30)).
	TargetOutboundOnlyFactor = 0.30

	// MinOutboundOnlyFactor is the floor below which outbound-only peer
	// count triggers supplemental dialing (spec.md §4.4: MinOutbound = ceil(T * 0.20)).
	MinOutboundOnlyFactor = 0.20
)

func ceilFactor(t int, factor float64) int {
	// The small epsilon absorbs binary rounding error in the product
	// (50 * 1.1 is 55.00000000000001 in float64), so exact results are
	// not rounded up to the next integer.
	return int(math.Ceil(float64(t)*factor - 1e-9))
}

// MaxPeers returns the connected-or-dialing peer count at which new dials
// and inbound connections stop being admitted. Pruning back to T happens
// in the heartbeat whenever more than T peers are connected.
func MaxPeers(t int) int {
	return ceilFactor(t, 1+PeerExcessFactor)
}

// MaxPriorityPeers returns the maximum total peer count for connections
// serving an application priority (e.g. a peer with a future duty),
// which is allowed a larger excess than ordinary peers.
func MaxPriorityPeers(t int) int {
	return ceilFactor(t, 1+PeerExcessFactor+PriorityPeerExcess)
}

// TargetOutbound returns the number of outbound-only connections the
// manager tries to maintain.
func TargetOutbound(t int) int {
	return ceilFactor(t, TargetOutboundOnlyFactor)
}

// MinOutbound returns the floor below which the manager dials more
// outbound-only peers even if MaxPeers has not been reached.
func MinOutbound(t int) int {
	return ceilFactor(t, MinOutboundOnlyFactor)
}

// MaxOutboundDialing bounds the connected-or-dialing peer count up to
// which the manager keeps asking for discovery to restore the
// outbound-only minimum once T is reached (spec.md §4.4:
// MaxOutboundDialing = ceil(T * 1.20)).
func MaxOutboundDialing(t int) int {
	return ceilFactor(t, 1.20)
}
