package gossip

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

// Run implements Module. It drives the gossip loop until the context is
// canceled. Host failures stop every round, the loop is recreated after the
// fatal backoff.
func (g *ShardedGossip) Run(ctx context.Context) error {
	for {
		err := g.runLoop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.mu.Lock()
		g.err = err
		g.queue = nil
		g.forceDiscover = true
		g.mu.Unlock()
		for _, r := range g.table.clear(g.clock.Now()) {
			g.recordFinished(&r, OutcomeErrored)
		}
		g.logger.Error("gossip loop failed",
			zap.Error(err),
			zap.Duration("backoff", g.cfg.FatalBackoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.clock.After(g.cfg.FatalBackoff):
		}
		select {
		case <-g.fatalCh:
		default:
		}
		g.logger.Info("restarting gossip loop")
	}
}

func (g *ShardedGossip) runLoop(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	ticker := g.clock.NewTicker(g.cfg.TickInterval)
	defer ticker.Stop()
	var err error
LOOP:
	for {
		select {
		case <-ctx.Done():
			break LOOP
		case err = <-g.fatalCh:
			break LOOP
		case <-ticker.Chan():
			if err = g.tick(ctx, eg); err != nil {
				break LOOP
			}
		}
	}
	cancel()
	if werr := eg.Wait(); err == nil {
		err = werr
	}
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// tick reaps timed out rounds, refreshes the targets when needed and
// starts new rounds while there are free slots.
func (g *ShardedGossip) tick(ctx context.Context, eg *errgroup.Group) error {
	now := g.clock.Now()
	for _, r := range g.table.reap(now) {
		g.recordFinished(&r, OutcomeTimedOut)
	}
	g.mu.Lock()
	discover := g.forceDiscover || g.lastDiscovery.IsZero() ||
		now.Sub(g.lastDiscovery) >= g.cfg.DiscoveryInterval
	g.mu.Unlock()
	if discover {
		if err := g.discover(ctx); err != nil {
			return err
		}
	}
	for range g.queueLen() {
		if g.table.active() >= g.cfg.MaxConcurrentRounds {
			break
		}
		target, ok := g.nextTarget()
		if !ok {
			break
		}
		if !g.table.available(target.Cert, now) {
			continue
		}
		r := &RoundState{
			Peer:        target.Cert,
			Nonce:       newNonce(),
			Role:        RoleInitiator,
			Phase:       PhaseInitiated,
			LocalAgent:  target.Local,
			RemoteAgent: target.Remote.Agent,
			StartedAt:   types.TimestampFrom(now),
			Initiator:   target.Local,
		}
		if !g.table.reserve(r, now) {
			continue
		}
		if !g.limiter.AllowN(now, 1) {
			g.table.release(r.Peer, r.Nonce)
			break
		}
		activeRounds.WithLabelValues(g.cfg.Type.String()).Set(float64(g.table.active()))
		eg.Go(func() error {
			err := g.initiate(ctx, r.Peer, r.Nonce, target.Remote)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrHostUnavailable):
				g.finish(r.Peer, r.Nonce, OutcomeErrored)
				return err
			case errors.Is(err, errSendFailed):
				g.logger.Debug("failed to initiate round", zap.Stringer("peer", r.Peer), zap.Error(err))
				g.finish(r.Peer, r.Nonce, OutcomeTimedOut)
			default:
				g.logger.Debug("round aborted", zap.Stringer("peer", r.Peer), zap.Error(err))
				g.finish(r.Peer, r.Nonce, OutcomeErrored)
			}
			return nil
		})
	}
	return nil
}

func (g *ShardedGossip) queueLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// nextTarget rotates the target queue and returns its former head.
func (g *ShardedGossip) nextTarget() (PendingGossipTarget, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		return PendingGossipTarget{}, false
	}
	target := g.queue[0]
	g.queue = append(g.queue[1:], target)
	return target, true
}

// discover rebuilds the target queue out of the remote agent infos that
// overlap the local arcs.
func (g *ShardedGossip) discover(ctx context.Context) error {
	cov, err := g.localCoverage(ctx)
	if err != nil {
		return err
	}
	var targets []PendingGossipTarget
	if len(cov.agents) != 0 {
		pruned, err := g.host.PruneAgentInfo(ctx, g.space)
		if err != nil {
			return g.hostErr("prune agent infos", err)
		}
		if pruned > 0 {
			g.logger.Debug("pruned expired agent infos", zap.Int("count", pruned))
		}
		infos, err := g.host.AgentInfoInArcSet(ctx, g.space, cov.union)
		if err != nil {
			return g.hostErr("agent infos", err)
		}
		now := types.TimestampFrom(g.clock.Now())
		byCert := make(map[types.PeerCert]PendingGossipTarget)
		for _, info := range infos {
			if g.isLocal(info.Agent) || info.IsExpired(now) {
				continue
			}
			cert, err := g.transport.PeerCert(info)
			if err != nil {
				g.logger.Debug("skipping agent without reachable address",
					zap.Stringer("agent", info.Agent),
					zap.Error(err))
				continue
			}
			if prev, ok := byCert[cert]; ok && !info.Newer(prev.Remote) {
				continue
			}
			local, _ := cov.local(info.Arc.Set())
			byCert[cert] = PendingGossipTarget{Local: local, Remote: info, Cert: cert}
		}
		certs := make([]types.PeerCert, 0, len(byCert))
		for cert := range byCert {
			g.peers.Add(cert)
			certs = append(certs, cert)
		}
		slices.Sort(certs)
		g.peers.Order(certs)
		g.peers.Retain(certs)
		targets = make([]PendingGossipTarget, 0, len(certs))
		for _, cert := range certs {
			targets = append(targets, byCert[cert])
		}
	}
	g.mu.Lock()
	g.queue = targets
	g.lastDiscovery = g.clock.Now()
	g.forceDiscover = false
	g.mu.Unlock()
	g.logger.Debug("discovered gossip targets", zap.Int("count", len(targets)))
	return nil
}

// initiate loads the local data over the common arc set guessed from the
// remote agent info and sends Initiate.
func (g *ShardedGossip) initiate(ctx context.Context, cert types.PeerCert, nonce Nonce, remote *types.AgentInfo) error {
	cov, err := g.localCoverage(ctx)
	if err != nil {
		return err
	}
	guess := cov.union.Intersect(remote.Arc.Set())
	data, err := g.loadLocal(ctx, guess)
	if err != nil {
		return err
	}
	agentBloom, opsBloom := g.buildBlooms(data)
	r, err := g.table.update(cert, nonce, g.clock.Now(), func(r *RoundState) error {
		r.LocalSet = cov.union
		r.CommonSet = guess
		r.Digest = digestOf(guess)
		r.data = data
		return nil
	})
	if err != nil {
		return err
	}
	n, err := g.send(ctx, cert, &InitiateMessage{
		Nonce:      nonce,
		StartedAt:  r.StartedAt,
		Initiator:  r.Initiator,
		Intervals:  cov.union,
		Digest:     r.Digest,
		AgentBloom: agentBloom,
		OpsBloom:   opsBloom,
	})
	if err != nil {
		return err
	}
	g.logger.Debug("initiated round", zap.Object("round", &r))
	// The round may already be over if the peer was quick.
	if err := g.sent(cert, nonce, n); err != nil && !errors.Is(err, ErrStaleRound) {
		return err
	}
	return nil
}
