// Package score implements the numeric reputation model described in
// spec.md §4.1: a decaying, threshold-gated score blended from
// protocol-level reports and an externally supplied gossipsub score.
package score

import (
	"math"
	"time"
)

const (
	// MinScore and MaxScore bound the lighthouse_score component. These
	// match the constants used by the original Lighthouse peer manager
	// (original_source/node/network/src/peer_manager/mod.rs references a
	// bounded f64 score; the pack's filtered excerpt omits the exact
	// clamp constants, so we adopt Lighthouse's own published values).
	MinScore = -100.0
	MaxScore = 100.0

	// DefaultScore is the starting lighthouse_score for a freshly observed
	// peer.
	DefaultScore = 0.0

	// DisconnectThreshold and BannedThreshold gate lifecycle transitions
	// in peerdb, per spec.md §3/§4.2.
	DisconnectThreshold = -20.0
	BannedThreshold     = -50.0

	// GossipWeight blends the externally supplied gossipsub score into
	// the effective score (spec.md §3: "weighted(gossipsub_score)").
	GossipWeight = 1.0

	// HalfLife is the time it takes a non-zero lighthouse_score to decay
	// to half its magnitude, applied lazily on every read (spec.md §4.1).
	HalfLife = 10 * time.Hour
)

var decayRate = math.Ln2 / HalfLife.Seconds()

// PeerAction is a protocol-level event that adjusts a peer's score.
// Ordering must be preserved exactly as spec.md §4.1 lists it, since
// callers (manager/rpc_errors.go) select among them by tolerance level.
type PeerAction int

const (
	// Fatal drives the peer's score below BannedThreshold immediately.
	Fatal PeerAction = iota
	LowToleranceError
	MidToleranceError
	HighToleranceError
	ValuableGossipMessage
)

// delta returns the additive adjustment for non-Fatal actions. Fatal is
// handled specially in Model.Apply because it isn't a fixed delta — it
// must guarantee the post-action score is at or below BannedThreshold
// regardless of the starting score.
func (a PeerAction) delta() float64 {
	switch a {
	case LowToleranceError:
		return -5.0
	case MidToleranceError:
		return -2.5
	case HighToleranceError:
		return -1.0
	case ValuableGossipMessage:
		return 0.1
	default:
		return 0
	}
}

// Model is the per-peer reputation state. It has no internal locking: the
// embedding PeerRecord is always accessed under the owning PeerDB's
// sync.RWMutex (spec.md §5).
type Model struct {
	lighthouseScore float64
	gossipsubScore  float64
	lastUpdate      time.Time
}

// NewModel returns a Model at DefaultScore.
func NewModel(now time.Time) Model {
	return Model{lighthouseScore: DefaultScore, lastUpdate: now}
}

// Apply adds the action's delta (or, for Fatal, forces the score below
// BannedThreshold), clamps to [MinScore, MaxScore], and records now as the
// last-update instant.
func (m *Model) Apply(action PeerAction, now time.Time) {
	m.decay(now)
	if action == Fatal {
		m.lighthouseScore = BannedThreshold - 1
	} else {
		m.lighthouseScore += action.delta()
	}
	m.clamp()
	m.lastUpdate = now
}

// AddToScore directly adjusts the lighthouse_score component by delta,
// clamped to bounds. This exists for callers (and tests) that need to set
// up a score directly rather than through the PeerAction table, mirroring
// the teacher's PeerInfo::add_to_score test helper.
func (m *Model) AddToScore(delta float64, now time.Time) {
	m.decay(now)
	m.lighthouseScore += delta
	m.clamp()
	m.lastUpdate = now
}

// SetGossipsubScore overwrites the externally supplied gossipsub
// component. It does not touch lighthouse_score or lastUpdate for decay
// purposes beyond what Score(now) already applies lazily.
func (m *Model) SetGossipsubScore(gossip float64) {
	m.gossipsubScore = gossip
}

// GossipsubScore returns the last gossipsub score set via
// SetGossipsubScore, without blending or decay.
func (m *Model) GossipsubScore() float64 { return m.gossipsubScore }

// LighthouseScore returns the raw, un-blended protocol-reputation
// component after applying decay for now.
func (m *Model) LighthouseScore(now time.Time) float64 {
	m.decay(now)
	return m.lighthouseScore
}

// Score returns the effective, decayed, gossip-blended score as of now.
// Per invariant 4 (spec.md §3), repeated calls with no intervening report
// never increase the magnitude of the lighthouse_score component; the
// gossipsub component is not decayed.
func (m *Model) Score(now time.Time) float64 {
	m.decay(now)
	return m.lighthouseScore + GossipWeight*m.gossipsubScore
}

// decay multiplies the magnitude of lighthouse_score by e^(-k*dt) toward
// zero, lazily, based on elapsed time since lastUpdate.
func (m *Model) decay(now time.Time) {
	if m.lastUpdate.IsZero() {
		m.lastUpdate = now
		return
	}
	dt := now.Sub(m.lastUpdate)
	if dt <= 0 {
		return
	}
	factor := math.Exp(-decayRate * dt.Seconds())
	m.lighthouseScore *= factor
	m.lastUpdate = now
}

func (m *Model) clamp() {
	if m.lighthouseScore > MaxScore {
		m.lighthouseScore = MaxScore
	}
	if m.lighthouseScore < MinScore {
		m.lighthouseScore = MinScore
	}
}

// IsBanned reports whether the effective score is at or below
// BannedThreshold as of now.
func (m *Model) IsBanned(now time.Time) bool {
	return m.Score(now) <= BannedThreshold
}

// IsDisconnectWorthy reports whether the effective score is at or below
// DisconnectThreshold (but callers must check IsBanned separately, since
// Banned implies Disconnect-worthy too).
func (m *Model) IsDisconnectWorthy(now time.Time) bool {
	return m.Score(now) <= DisconnectThreshold
}
