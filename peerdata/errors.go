// Package peerdata holds the small value types and sentinel errors shared
// across the peer manager packages.
package peerdata

import "github.com/pkg/errors"

// ErrPeerUnknown is the sentinel for a lookup against a peer ID that is
// not present in the peer database. PeerDB lookups report absence with a
// boolean and do not return it.
var ErrPeerUnknown = errors.New("peer unknown")

// ErrInvalidConfig is the sentinel for required configuration parameters
// that are missing or out of range. manager.New reports those with its
// own ErrInvalidTarget/ErrInvalidInterval and does not return it.
var ErrInvalidConfig = errors.New("invalid configuration")
