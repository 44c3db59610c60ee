// Package syncstatus describes a remote peer's sync posture relative to
// our own chain view.
package syncstatus

// Status is the sync-state variant attached to a PeerRecord.
type Status int

const (
	// Unknown means we have not yet received a STATUS from this peer.
	Unknown Status = iota
	// Synced means the peer is within tolerance of our head.
	Synced
	// Advanced means the peer is ahead of us.
	Advanced
	// Behind means the peer is behind us.
	Behind
	// IrrelevantPeer means the peer is on an incompatible network/fork
	// and should not be used for sync.
	IrrelevantPeer
)

func (s Status) String() string {
	switch s {
	case Synced:
		return "synced"
	case Advanced:
		return "advanced"
	case Behind:
		return "behind"
	case IrrelevantPeer:
		return "irrelevant_peer"
	default:
		return "unknown"
	}
}
