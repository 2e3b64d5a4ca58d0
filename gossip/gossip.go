// Package gossip implements sharded bloom-filter gossip: pairwise rounds that
// reconcile the agent infos and ops two peers hold within their common arc set.
package gossip

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/peers"
)

// PendingGossipTarget is a remote agent eligible for a round.
type PendingGossipTarget struct {
	Local  types.AgentID
	Remote *types.AgentInfo
	Cert   types.PeerCert
}

// Opt specifies an option for ShardedGossip.
type Opt func(g *ShardedGossip)

// WithLogger specifies the logger for ShardedGossip.
func WithLogger(logger *zap.Logger) Opt {
	return func(g *ShardedGossip) {
		g.logger = logger
	}
}

// WithConfig specifies the configuration for ShardedGossip.
func WithConfig(cfg Config) Opt {
	return func(g *ShardedGossip) {
		g.cfg = cfg
	}
}

// WithPeers specifies the peer tracker used to order gossip targets.
func WithPeers(p *peers.Peers) Opt {
	return func(g *ShardedGossip) {
		g.peers = p
	}
}

func withClock(clock clockwork.Clock) Opt {
	return func(g *ShardedGossip) {
		g.clock = clock
	}
}

// ShardedGossip is the gossip module for one space and gossip type.
type ShardedGossip struct {
	logger    *zap.Logger
	cfg       Config
	space     types.SpaceID
	host      Host
	transport Transport
	verifier  Verifier
	peers     *peers.Peers
	clock     clockwork.Clock
	limiter   *rate.Limiter
	table     *roundTable
	fatalCh   chan error

	mu            sync.Mutex
	localAgents   map[types.AgentID]struct{}
	queue         []PendingGossipTarget
	lastDiscovery time.Time
	forceDiscover bool
	err           error
}

var _ Module = &ShardedGossip{}

// New creates a new gossip module for the space.
func New(space types.SpaceID, host Host, transport Transport, verifier Verifier, opts ...Opt) (*ShardedGossip, error) {
	g := &ShardedGossip{
		logger:      zap.NewNop(),
		cfg:         DefaultConfig(),
		space:       space,
		host:        host,
		transport:   transport,
		verifier:    verifier,
		clock:       clockwork.NewRealClock(),
		fatalCh:     make(chan error, 1),
		localAgents: make(map[types.AgentID]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gossip config: %w", err)
	}
	if g.peers == nil {
		g.peers = peers.New()
	}
	g.logger = g.logger.With(zap.Stringer("space", g.space), zap.Stringer("type", g.cfg.Type))
	g.limiter = rate.NewLimiter(rate.Limit(g.cfg.InitiateRate), g.cfg.MaxConcurrentRounds)
	g.table = newRoundTable(g.cfg)
	return g, nil
}

// Space returns the space of the module.
func (g *ShardedGossip) Space() types.SpaceID { return g.space }

// Type returns the gossip type of the module.
func (g *ShardedGossip) Type() GossipType { return g.cfg.Type }

// LocalAgentJoin implements Module.
func (g *ShardedGossip) LocalAgentJoin(agent types.AgentID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.localAgents[agent] = struct{}{}
	g.forceDiscover = true
	g.logger.Debug("local agent joined", zap.Stringer("agent", agent))
}

// LocalAgentLeave implements Module.
func (g *ShardedGossip) LocalAgentLeave(agent types.AgentID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.localAgents, agent)
	g.queue = slices.DeleteFunc(g.queue, func(t PendingGossipTarget) bool {
		return t.Local == agent
	})
	g.logger.Debug("local agent left", zap.Stringer("agent", agent))
}

// Err returns the last fatal host error, if any.
func (g *ShardedGossip) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Round returns a copy of the live round with the peer, if any.
func (g *ShardedGossip) Round(cert types.PeerCert) (RoundState, bool) {
	return g.table.snapshot(cert)
}

// ActiveRounds returns the number of live rounds.
func (g *ShardedGossip) ActiveRounds() int {
	return g.table.active()
}

func (g *ShardedGossip) sortedLocalAgents() []types.AgentID {
	g.mu.Lock()
	defer g.mu.Unlock()
	agents := make([]types.AgentID, 0, len(g.localAgents))
	for agent := range g.localAgents {
		agents = append(agents, agent)
	}
	slices.SortFunc(agents, types.AgentID.Compare)
	return agents
}

func (g *ShardedGossip) isLocal(agent types.AgentID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.localAgents[agent]
	return ok
}

// coverage is the arc coverage of the local agents.
type coverage struct {
	agents []types.AgentID
	sets   map[types.AgentID]arc.Set
	union  arc.Set
}

// localCoverage queries the arcs of the joined local agents. Agents that
// haven't published an arc yet are assumed to claim the default arc.
func (g *ShardedGossip) localCoverage(ctx context.Context) (*coverage, error) {
	agents := g.sortedLocalAgents()
	c := &coverage{agents: agents, sets: make(map[types.AgentID]arc.Set, len(agents))}
	for _, agent := range agents {
		set, err := g.host.LocalArcs(ctx, g.space, agent)
		switch {
		case errors.Is(err, ErrNoLocalArc):
			set = arc.Arc{Center: agent.Loc(), HalfLength: g.cfg.DefaultArcHalfLength}.Set()
		case err != nil:
			return nil, g.hostErr("local arcs", err)
		}
		c.sets[agent] = set
		c.union = c.union.Union(set)
	}
	return c, nil
}

// local returns the local agent claiming the largest part of the set.
func (c *coverage) local(set arc.Set) (types.AgentID, bool) {
	var (
		best    types.AgentID
		bestLen uint64
		found   bool
	)
	for _, agent := range c.agents {
		l := c.sets[agent].Intersect(set).Len()
		if !found || l > bestLen {
			best, bestLen, found = agent, l, true
		}
	}
	return best, found
}

func (g *ShardedGossip) window(now time.Time) types.TimeWindow {
	threshold := types.TimestampFrom(now.Add(-g.cfg.RecentThreshold))
	if g.cfg.Type == GossipHistorical {
		return types.TimeWindow{Start: 0, End: threshold}
	}
	return types.TimeWindow{Start: threshold, End: types.MaxTimestamp}
}

// loadLocal loads the local items eligible for a round over the common set.
func (g *ShardedGossip) loadLocal(ctx context.Context, common arc.Set) (*localData, error) {
	data := &localData{}
	if common.Empty() {
		return data, nil
	}
	now := g.clock.Now()
	if g.cfg.Type == GossipRecent {
		infos, err := g.host.AgentInfoInArcSet(ctx, g.space, common)
		if err != nil {
			return nil, g.hostErr("agent infos", err)
		}
		ts := types.TimestampFrom(now)
		data.agents = slices.DeleteFunc(infos, func(info *types.AgentInfo) bool {
			return info.IsExpired(ts)
		})
	}
	hashes, err := g.host.OpHashesInArcSet(ctx, g.space, common, g.window(now))
	if err != nil {
		return nil, g.hostErr("op hashes", err)
	}
	data.hashes = hashes
	return data, nil
}

func (g *ShardedGossip) hostErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrHostUnavailable, what, err)
}

// fatal records a host failure and stops the gossip loop.
func (g *ShardedGossip) fatal(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
	hostFailures.WithLabelValues(g.cfg.Type.String()).Inc()
	select {
	case g.fatalCh <- err:
	default:
	}
}

// send encodes and sends the message to the peer.
func (g *ShardedGossip) send(ctx context.Context, cert types.PeerCert, msg Message) (int, error) {
	frame, err := EncodeFrame(g.space, g.cfg.Type, msg)
	if err != nil {
		return 0, err
	}
	if err := g.transport.Send(ctx, cert, frame); err != nil {
		return 0, fmt.Errorf("%w: %s to %s: %w", errSendFailed, msg.Kind(), cert, err)
	}
	g.logger.Debug("sent",
		zap.Stringer("peer", cert),
		zap.Stringer("kind", msg.Kind()),
		zap.Stringer("nonce", msg.RoundNonce()),
		zap.Int("size", len(frame)))
	return len(frame), nil
}

// finish ends the round and records its outcome.
func (g *ShardedGossip) finish(cert types.PeerCert, nonce Nonce, outcome Outcome) {
	r, ok := g.table.finish(cert, nonce, outcome, g.clock.Now())
	if !ok {
		return
	}
	g.recordFinished(&r, outcome)
}

func (g *ShardedGossip) recordFinished(r *RoundState, outcome Outcome) {
	activeRounds.WithLabelValues(g.cfg.Type.String()).Set(float64(g.table.active()))
	roundsFinished.WithLabelValues(g.cfg.Type.String(), r.Role.String(), outcome.String()).Inc()
	elapsed := r.LastTouched.Sub(r.Begin)
	switch outcome {
	case OutcomeComplete:
		roundDuration.WithLabelValues(g.cfg.Type.String()).Observe(elapsed.Seconds())
		g.peers.OnComplete(r.Peer, r.Stats.BytesSent+r.Stats.BytesReceived, elapsed)
		g.logger.Debug("round complete", zap.Object("round", r), zap.Duration("duration", elapsed))
	case OutcomeBusy:
		g.logger.Debug("peer is busy", zap.Object("round", r))
	case OutcomeSuperseded:
		g.logger.Debug("round superseded", zap.Object("round", r))
	case OutcomeTimedOut:
		g.peers.OnFailure(r.Peer)
		g.logger.Debug("round timed out", zap.Object("round", r))
	default:
		g.peers.OnFailure(r.Peer)
		g.logger.Debug("round failed", zap.Object("round", r), zap.Stringer("outcome", outcome))
	}
}
