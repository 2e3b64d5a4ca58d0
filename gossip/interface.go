package gossip

import (
	"context"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
)

//go:generate mockgen -typed -package=gossip -destination=./mocks.go -source=./interface.go

// Host is the storage and query collaborator of the gossip engine.
// Store methods must be idempotent: storing a known op or an agent info
// that is not newer than the stored one is a no-op.
type Host interface {
	// LocalArcs returns the coverage claimed by the local agent.
	// It returns ErrNoLocalArc if the agent hasn't published an arc yet.
	LocalArcs(ctx context.Context, space types.SpaceID, agent types.AgentID) (arc.Set, error)
	// AgentInfoInArcSet returns the known agent infos whose arcs overlap the set.
	AgentInfoInArcSet(ctx context.Context, space types.SpaceID, set arc.Set) ([]*types.AgentInfo, error)
	// OpHashesInArcSet returns the hashes of the ops with basis in the set
	// and timestamp within the window.
	OpHashesInArcSet(
		ctx context.Context,
		space types.SpaceID,
		set arc.Set,
		window types.TimeWindow,
	) ([]types.OpHash, error)
	// OpData returns the ops for the hashes. Unknown hashes are skipped.
	OpData(ctx context.Context, space types.SpaceID, hashes []types.OpHash) ([]*types.Op, error)
	// StoreAgentInfo merges the agent info, keeping the newest record per agent.
	StoreAgentInfo(ctx context.Context, info *types.AgentInfo) error
	// StoreOp merges the op.
	StoreOp(ctx context.Context, space types.SpaceID, op *types.Op) error
	// PruneAgentInfo deletes the expired agent infos and returns their number.
	PruneAgentInfo(ctx context.Context, space types.SpaceID) (int, error)
}

// Transport delivers frames to remote peers.
// Frames sent to the same peer cert must be delivered in order.
type Transport interface {
	Send(ctx context.Context, cert types.PeerCert, msg []byte) error
	// PeerCert resolves the peer cert from the addresses of the agent info.
	PeerCert(info *types.AgentInfo) (types.PeerCert, error)
}

// Verifier checks agent info signatures.
type Verifier interface {
	VerifyAgentInfo(info *types.AgentInfo) bool
}

// Handler handles frames received from remote peers.
type Handler interface {
	HandleMessage(ctx context.Context, from types.PeerCert, msg []byte) error
}

// Module is a gossip strategy bound to one space and gossip type.
type Module interface {
	// HandleMessage handles a decoded frame received from the peer.
	HandleMessage(ctx context.Context, from types.PeerCert, env *Envelope) error
	// LocalAgentJoin adds a local agent to gossip on behalf of.
	LocalAgentJoin(agent types.AgentID)
	// LocalAgentLeave removes a local agent.
	LocalAgentLeave(agent types.AgentID)
	// Run runs the gossip loop until the context is canceled.
	Run(ctx context.Context) error
}
