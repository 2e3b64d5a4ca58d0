package gossip

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
)

var errSendFailed = errors.New("send failed")

// HandleMessage implements Module. Frames from the same peer must not be
// handled concurrently.
func (g *ShardedGossip) HandleMessage(ctx context.Context, from types.PeerCert, env *Envelope) error {
	if env.Space != g.space || env.Type != g.cfg.Type {
		return fmt.Errorf("%w: %s/%s", ErrUnknownModule, env.Space.ShortString(), env.Type)
	}
	msg, err := DecodeMessage(env)
	if err != nil {
		protocolErrors.WithLabelValues(env.Kind.String()).Inc()
		g.logger.Warn("malformed frame", zap.Stringer("peer", from), zap.Error(err))
		if r, ok := g.table.snapshot(from); ok {
			g.abort(ctx, from, r.Nonce, err.Error())
		}
		return err
	}
	g.logger.Debug("received",
		zap.Stringer("peer", from),
		zap.Stringer("kind", msg.Kind()),
		zap.Stringer("nonce", msg.RoundNonce()))
	err = g.dispatch(ctx, from, msg, len(env.Body))
	g.handleErr(ctx, from, msg, err)
	return err
}

func (g *ShardedGossip) dispatch(ctx context.Context, from types.PeerCert, msg Message, size int) error {
	switch m := msg.(type) {
	case *InitiateMessage:
		return g.handleInitiate(ctx, from, m, size)
	case *AcceptMessage:
		return g.handleAccept(ctx, from, m, size)
	case *AgentsMessage:
		return g.handleAgentsBloom(ctx, from, m, size)
	case *OpsMessage:
		return g.handleOpsBloom(ctx, from, m, size)
	case *MissingAgentsMessage:
		return g.handleAgentDiff(ctx, from, m.Nonce, m.Digest, m.Agents, size)
	case *NoAgentsMessage:
		return g.handleAgentDiff(ctx, from, m.Nonce, m.Digest, nil, size)
	case *MissingOpsMessage:
		return g.handleOpsDiff(ctx, from, m, size)
	case *BusyMessage:
		return g.handleBusy(from, m)
	case *ErrorMessage:
		return g.handleRemoteError(from, m)
	default:
		panic(fmt.Sprintf("BUG: unexpected message %T", msg))
	}
}

// handleErr ends the round the failed message belongs to.
func (g *ShardedGossip) handleErr(ctx context.Context, from types.PeerCert, msg Message, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleRound):
		g.logger.Debug("dropping stale frame",
			zap.Stringer("peer", from),
			zap.Stringer("kind", msg.Kind()),
			zap.Error(err))
	case errors.Is(err, ErrHostUnavailable):
		g.logger.Error("host failure", zap.Stringer("peer", from), zap.Error(err))
		g.finish(from, msg.RoundNonce(), OutcomeErrored)
		g.fatal(err)
	case errors.Is(err, ErrProtocol):
		protocolErrors.WithLabelValues(msg.Kind().String()).Inc()
		g.logger.Warn("protocol error", zap.Stringer("kind", msg.Kind()), zap.Error(err))
		if msg.Kind() == MessageKindError {
			g.finish(from, msg.RoundNonce(), OutcomeErrored)
		} else {
			g.abort(ctx, from, msg.RoundNonce(), err.Error())
		}
	case errors.Is(err, errSendFailed):
		g.logger.Debug("send failed", zap.Stringer("peer", from), zap.Error(err))
		g.finish(from, msg.RoundNonce(), OutcomeTimedOut)
	default:
		g.logger.Warn("round failed", zap.Stringer("peer", from), zap.Error(err))
		g.finish(from, msg.RoundNonce(), OutcomeErrored)
	}
}

// abort ends the round as errored and notifies the peer.
func (g *ShardedGossip) abort(ctx context.Context, cert types.PeerCert, nonce Nonce, reason string) {
	r, ok := g.table.finish(cert, nonce, OutcomeErrored, g.clock.Now())
	if !ok {
		return
	}
	g.recordFinished(&r, OutcomeErrored)
	if len(reason) > MaxErrorLength {
		reason = reason[:MaxErrorLength]
	}
	if _, err := g.send(ctx, cert, &ErrorMessage{Nonce: nonce, Message: reason}); err != nil {
		g.logger.Debug("failed to notify peer about the error", zap.Stringer("peer", cert), zap.Error(err))
	}
}

func (g *ShardedGossip) handleInitiate(ctx context.Context, from types.PeerCert, m *InitiateMessage, size int) error {
	cov, err := g.localCoverage(ctx)
	if err != nil {
		return err
	}
	common := cov.union.Intersect(m.Intervals)
	if common.Empty() {
		g.logger.Debug("no local arc overlaps initiate",
			zap.Stringer("peer", from),
			zap.Stringer("intervals", m.Intervals))
		_, err := g.send(ctx, from, &BusyMessage{Nonce: m.Nonce})
		return err
	}
	local, _ := cov.local(common)
	now := g.clock.Now()
	r := &RoundState{
		Peer:        from,
		Nonce:       m.Nonce,
		Role:        RoleResponder,
		Phase:       PhaseAccepted,
		LocalAgent:  local,
		RemoteAgent: m.Initiator,
		StartedAt:   m.StartedAt,
		Initiator:   m.Initiator,
		LocalSet:    cov.union,
		CommonSet:   common,
		Digest:      digestOf(common),
	}
	r.Stats.BytesReceived = size
	result, superseded := g.table.accept(r, now)
	switch result {
	case acceptStale:
		return fmt.Errorf("%w: duplicate initiate %s", ErrStaleRound, m.Nonce)
	case acceptLost:
		g.logger.Debug("live round with the peer wins over initiate",
			zap.Stringer("peer", from),
			zap.Stringer("nonce", m.Nonce))
		return nil
	case acceptOutdated:
		g.logger.Debug("initiate is older than the last round with the peer",
			zap.Stringer("peer", from),
			zap.Stringer("nonce", m.Nonce))
		_, err := g.send(ctx, from, &BusyMessage{Nonce: m.Nonce})
		return err
	case acceptBusy:
		_, err := g.send(ctx, from, &BusyMessage{Nonce: m.Nonce})
		return err
	}
	if superseded != nil {
		g.recordFinished(superseded, OutcomeSuperseded)
	}
	activeRounds.WithLabelValues(g.cfg.Type.String()).Set(float64(g.table.active()))

	data, err := g.loadLocal(ctx, common)
	if err != nil {
		return err
	}
	agentBloom, opsBloom := g.buildBlooms(data)
	digest := digestOf(common)
	if _, err := g.table.update(from, m.Nonce, g.clock.Now(), func(r *RoundState) error {
		r.data = data
		return nil
	}); err != nil {
		return err
	}
	n, err := g.send(ctx, from, &AcceptMessage{
		Nonce:      m.Nonce,
		Intervals:  cov.union,
		Digest:     digest,
		AgentBloom: agentBloom,
		OpsBloom:   opsBloom,
	})
	if err != nil {
		return err
	}
	if err := g.sent(from, m.Nonce, n); err != nil {
		return err
	}
	// The initiator's blooms were built over the right set, so the diffs
	// can be sent without waiting for the blooms to be resent.
	if m.Digest != digest || m.OpsBloom == nil || (g.cfg.Type == GossipRecent && m.AgentBloom == nil) {
		return nil
	}
	return g.sendDiffs(ctx, from, m.Nonce, digest, data, m.AgentBloom, m.OpsBloom)
}

func (g *ShardedGossip) handleAccept(ctx context.Context, from types.PeerCert, m *AcceptMessage, size int) error {
	r, err := g.table.get(from, m.Nonce)
	if err != nil {
		return err
	}
	if r.Role != RoleInitiator || r.Phase != PhaseInitiated {
		return protocolErrorf(from, "unexpected accept in phase %s", r.Phase)
	}
	if m.OpsBloom == nil || (g.cfg.Type == GossipRecent && m.AgentBloom == nil) {
		return protocolErrorf(from, "accept without blooms")
	}
	common := r.LocalSet.Intersect(m.Intervals)
	digest := digestOf(common)
	if digest != m.Digest {
		return protocolErrorf(from, "common arc set mismatch: %s != %s", digest.ShortString(), m.Digest.ShortString())
	}
	data := r.data
	resend := digest != r.Digest
	if resend {
		if data, err = g.loadLocal(ctx, common); err != nil {
			return err
		}
	}
	if _, err := g.table.update(from, m.Nonce, g.clock.Now(), func(r *RoundState) error {
		r.Phase = PhaseAccepted
		r.CommonSet = common
		r.Digest = digest
		r.BloomsResent = resend
		r.data = data
		r.Stats.BytesReceived += size
		return nil
	}); err != nil {
		return err
	}
	if resend {
		g.logger.Debug("common arc set guess was wrong, resending blooms",
			zap.Stringer("peer", from),
			zap.Stringer("guess", r.CommonSet),
			zap.Stringer("common", common))
		agentBloom, opsBloom := g.buildBlooms(data)
		if g.cfg.Type == GossipRecent {
			n, err := g.send(ctx, from, &AgentsMessage{bloomMessage{Nonce: m.Nonce, Digest: digest, Bloom: agentBloom}})
			if err != nil {
				return err
			}
			if err := g.sent(from, m.Nonce, n); err != nil {
				return err
			}
		}
		n, err := g.send(ctx, from, &OpsMessage{bloomMessage{Nonce: m.Nonce, Digest: digest, Bloom: opsBloom}})
		if err != nil {
			return err
		}
		if err := g.sent(from, m.Nonce, n); err != nil {
			return err
		}
	}
	return g.sendDiffs(ctx, from, m.Nonce, digest, data, m.AgentBloom, m.OpsBloom)
}

// checkBloomResend validates a bloom resent by the initiator.
func (g *ShardedGossip) checkBloomResend(from types.PeerCert, r *RoundState, kind MessageKind, digest Digest) error {
	if r.Role != RoleResponder || r.Phase != PhaseAccepted {
		return protocolErrorf(from, "unexpected %s in phase %s", kind, r.Phase)
	}
	if digest != r.Digest {
		return protocolErrorf(from, "%s common arc set mismatch: %s != %s",
			kind, digest.ShortString(), r.Digest.ShortString())
	}
	return nil
}

func (g *ShardedGossip) handleAgentsBloom(ctx context.Context, from types.PeerCert, m *AgentsMessage, size int) error {
	r, err := g.table.get(from, m.Nonce)
	if err != nil {
		return err
	}
	if g.cfg.Type != GossipRecent {
		return protocolErrorf(from, "agents bloom in %s gossip", g.cfg.Type)
	}
	if err := g.checkBloomResend(from, &r, m.Kind(), m.Digest); err != nil {
		return err
	}
	if r.AgentsSent {
		return protocolErrorf(from, "duplicate agents bloom")
	}
	if err := g.received(from, m.Nonce, size); err != nil {
		return err
	}
	return g.sendAgentDiff(ctx, from, m.Nonce, r.Digest, r.data, m.Bloom)
}

func (g *ShardedGossip) handleOpsBloom(ctx context.Context, from types.PeerCert, m *OpsMessage, size int) error {
	r, err := g.table.get(from, m.Nonce)
	if err != nil {
		return err
	}
	if err := g.checkBloomResend(from, &r, m.Kind(), m.Digest); err != nil {
		return err
	}
	if g.cfg.Type == GossipRecent && !r.AgentsSent {
		return protocolErrorf(from, "ops bloom before agents bloom")
	}
	if r.OpsSent {
		return protocolErrorf(from, "duplicate ops bloom")
	}
	if err := g.received(from, m.Nonce, size); err != nil {
		return err
	}
	return g.sendOpsDiff(ctx, from, m.Nonce, r.Digest, r.data, m.Bloom)
}

// checkAgent returns the reason to reject a received agent info, if any.
func (g *ShardedGossip) checkAgent(info *types.AgentInfo, common arc.Set, now types.Timestamp) string {
	switch {
	case info.Space != g.space:
		return "wrong space"
	case info.IsExpired(now):
		return "expired"
	case !info.Arc.Set().Overlaps(common):
		return "arc outside of the common arc set"
	case !g.verifier.VerifyAgentInfo(info):
		return "invalid signature"
	}
	return ""
}

func (g *ShardedGossip) handleAgentDiff(
	ctx context.Context,
	from types.PeerCert,
	nonce Nonce,
	digest Digest,
	agents []types.AgentInfo,
	size int,
) error {
	r, err := g.table.get(from, nonce)
	if err != nil {
		return err
	}
	if g.cfg.Type != GossipRecent {
		return protocolErrorf(from, "agent diff in %s gossip", g.cfg.Type)
	}
	if r.Phase != PhaseAccepted || r.AgentsReceived {
		return protocolErrorf(from, "unexpected agent diff in phase %s", r.Phase)
	}
	if digest != r.Digest {
		return protocolErrorf(from, "agent diff common arc set mismatch: %s != %s",
			digest.ShortString(), r.Digest.ShortString())
	}
	now := types.TimestampFrom(g.clock.Now())
	var stored, rejected int
	for i := range agents {
		info := &agents[i]
		if reason := g.checkAgent(info, r.CommonSet, now); reason != "" {
			rejected++
			g.logger.Warn("rejected agent info",
				zap.Stringer("peer", from),
				zap.Object("info", info),
				zap.String("reason", reason))
			continue
		}
		if err := g.host.StoreAgentInfo(ctx, info); err != nil {
			return g.hostErr("store agent info", err)
		}
		stored++
	}
	agentsReceived.Add(float64(stored))
	agentsRejected.Add(float64(rejected))
	return g.progress(from, nonce, func(r *RoundState) error {
		r.AgentsReceived = true
		r.Stats.AgentsReceived += stored
		r.Stats.AgentsRejected += rejected
		r.Stats.BytesReceived += size
		return nil
	})
}

func (g *ShardedGossip) handleOpsDiff(ctx context.Context, from types.PeerCert, m *MissingOpsMessage, size int) error {
	r, err := g.table.get(from, m.Nonce)
	if err != nil {
		return err
	}
	if r.Phase != PhaseAccepted && r.Phase != PhaseAgentDiffExchanged {
		return protocolErrorf(from, "unexpected ops diff in phase %s", r.Phase)
	}
	if g.cfg.Type == GossipRecent && !r.AgentsReceived {
		return protocolErrorf(from, "ops diff before agent diff")
	}
	if r.OpsReceived {
		return protocolErrorf(from, "ops diff after the final batch")
	}
	if m.Digest != r.Digest {
		return protocolErrorf(from, "ops diff common arc set mismatch: %s != %s",
			m.Digest.ShortString(), r.Digest.ShortString())
	}
	var stored, rejected int
	for i := range m.Ops {
		op := &m.Ops[i]
		reason := ""
		if err := op.Validate(); err != nil {
			reason = err.Error()
		} else if !r.CommonSet.Contains(op.Basis) {
			reason = "basis outside of the common arc set"
		}
		if reason != "" {
			rejected++
			g.logger.Warn("rejected op",
				zap.Stringer("peer", from),
				zap.Object("op", op),
				zap.String("reason", reason))
			continue
		}
		if err := g.host.StoreOp(ctx, g.space, op); err != nil {
			return g.hostErr("store op", err)
		}
		stored++
	}
	opsReceived.Add(float64(stored))
	opsRejected.Add(float64(rejected))
	return g.progress(from, m.Nonce, func(r *RoundState) error {
		if m.Finished {
			r.OpsReceived = true
		}
		r.Stats.OpsReceived += stored
		r.Stats.OpsRejected += rejected
		r.Stats.BytesReceived += size
		return nil
	})
}

func (g *ShardedGossip) handleBusy(from types.PeerCert, m *BusyMessage) error {
	r, err := g.table.get(from, m.Nonce)
	if err != nil {
		return err
	}
	if r.Role != RoleInitiator || r.Phase != PhaseInitiated {
		return protocolErrorf(from, "unexpected busy in phase %s", r.Phase)
	}
	g.finish(from, m.Nonce, OutcomeBusy)
	return nil
}

func (g *ShardedGossip) handleRemoteError(from types.PeerCert, m *ErrorMessage) error {
	if _, err := g.table.get(from, m.Nonce); err != nil {
		return err
	}
	g.logger.Warn("peer aborted the round",
		zap.Stringer("peer", from),
		zap.Stringer("nonce", m.Nonce),
		zap.String("reason", m.Message))
	g.finish(from, m.Nonce, OutcomeErrored)
	return nil
}
