package gossip

import (
	"errors"
	"fmt"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

var (
	// ErrNoLocalArc is returned by the Host if the local agent has no published arc.
	ErrNoLocalArc = errors.New("no local arc")
	// ErrProtocol matches every *ProtocolError.
	ErrProtocol = errors.New("protocol error")
	// ErrStaleRound is returned when a frame belongs to a round that is no longer live.
	ErrStaleRound = errors.New("stale round")
	// ErrHostUnavailable wraps storage failures, which stop the gossip loop.
	ErrHostUnavailable = errors.New("host unavailable")
	// ErrUnknownModule is returned by the Router for frames of unregistered spaces.
	ErrUnknownModule = errors.New("unknown gossip module")
)

// ProtocolError is a violation of the gossip protocol by a remote peer.
type ProtocolError struct {
	Peer   types.PeerCert
	Reason string
}

func protocolErrorf(peer types.PeerCert, format string, args ...any) *ProtocolError {
	return &ProtocolError{Peer: peer, Reason: fmt.Sprintf(format, args...)}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error from %s: %s", e.Peer, e.Reason)
}

// Is makes errors.Is(err, ErrProtocol) match.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}
