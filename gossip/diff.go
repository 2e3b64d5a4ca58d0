package gossip

import (
	"context"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-shardgossip/bloom"
	"github.com/spacemeshos/go-shardgossip/common/types"
)

// maxBatchBytes bounds the payload carried by a single MissingOps message.
const maxBatchBytes = MaxMessageSize / 2

func (g *ShardedGossip) buildBlooms(data *localData) (agents, ops *bloom.Filter) {
	if g.cfg.Type == GossipRecent {
		agents = bloom.BuildAgents(data.agents, g.cfg.BloomFalsePositiveRate)
		agentBloomSize.Observe(float64(agents.Size()))
	}
	ops = bloom.BuildOps(data.hashes, g.cfg.BloomFalsePositiveRate)
	opsBloomSize.Observe(float64(ops.Size()))
	return agents, ops
}

// progress applies fn to the live round and finishes the round once both
// diffs were exchanged in both directions.
func (g *ShardedGossip) progress(cert types.PeerCert, nonce Nonce, fn func(r *RoundState) error) error {
	r, err := g.table.update(cert, nonce, g.clock.Now(), func(r *RoundState) error {
		if err := fn(r); err != nil {
			return err
		}
		r.advance(g.cfg.Type)
		return nil
	})
	if err != nil {
		return err
	}
	if r.Phase == PhaseOpsDiffExchanged {
		g.finish(cert, nonce, OutcomeComplete)
	}
	return nil
}

func (g *ShardedGossip) received(cert types.PeerCert, nonce Nonce, size int) error {
	_, err := g.table.update(cert, nonce, g.clock.Now(), func(r *RoundState) error {
		r.Stats.BytesReceived += size
		return nil
	})
	return err
}

func (g *ShardedGossip) sent(cert types.PeerCert, nonce Nonce, size int) error {
	_, err := g.table.update(cert, nonce, g.clock.Now(), func(r *RoundState) error {
		r.Stats.BytesSent += size
		return nil
	})
	return err
}

// sendDiffs sends the local items missing from the peer's blooms.
func (g *ShardedGossip) sendDiffs(
	ctx context.Context,
	cert types.PeerCert,
	nonce Nonce,
	digest Digest,
	data *localData,
	agentBloom, opsBloom *bloom.Filter,
) error {
	if g.cfg.Type == GossipRecent {
		if err := g.sendAgentDiff(ctx, cert, nonce, digest, data, agentBloom); err != nil {
			return err
		}
	}
	return g.sendOpsDiff(ctx, cert, nonce, digest, data, opsBloom)
}

func (g *ShardedGossip) sendAgentDiff(
	ctx context.Context,
	cert types.PeerCert,
	nonce Nonce,
	digest Digest,
	data *localData,
	f *bloom.Filter,
) error {
	missing := bloom.MissingAgents(f, data.agents)
	var msg Message
	if len(missing) == 0 {
		msg = &NoAgentsMessage{Nonce: nonce, Digest: digest}
	} else {
		if len(missing) > g.cfg.MaxAgentsPerBatch {
			g.logger.Debug("truncating agent diff",
				zap.Stringer("peer", cert),
				zap.Int("missing", len(missing)),
				zap.Int("max", g.cfg.MaxAgentsPerBatch))
			missing = missing[:g.cfg.MaxAgentsPerBatch]
		}
		agents := make([]types.AgentInfo, len(missing))
		for i, info := range missing {
			agents[i] = *info
		}
		msg = &MissingAgentsMessage{Nonce: nonce, Digest: digest, Agents: agents}
	}
	n, err := g.send(ctx, cert, msg)
	if err != nil {
		return err
	}
	agentsSent.Add(float64(len(missing)))
	return g.progress(cert, nonce, func(r *RoundState) error {
		r.AgentsSent = true
		r.Stats.AgentsSent += len(missing)
		r.Stats.BytesSent += n
		return nil
	})
}

func (g *ShardedGossip) sendOpsDiff(
	ctx context.Context,
	cert types.PeerCert,
	nonce Nonce,
	digest Digest,
	data *localData,
	f *bloom.Filter,
) error {
	missing := bloom.MissingOps(f, data.hashes)
	var (
		batch     []types.Op
		batchSize int
	)
	flush := func(finished bool) error {
		msg := &MissingOpsMessage{Nonce: nonce, Digest: digest, Ops: batch, Finished: finished}
		n, err := g.send(ctx, cert, msg)
		if err != nil {
			return err
		}
		count := len(batch)
		batch, batchSize = nil, 0
		opsSent.Add(float64(count))
		return g.progress(cert, nonce, func(r *RoundState) error {
			if finished {
				r.OpsSent = true
			}
			r.Stats.OpsSent += count
			r.Stats.BytesSent += n
			return nil
		})
	}
	for start := 0; start < len(missing); start += g.cfg.MaxOpsPerBatch {
		end := min(start+g.cfg.MaxOpsPerBatch, len(missing))
		ops, err := g.host.OpData(ctx, g.space, missing[start:end])
		if err != nil {
			return g.hostErr("op data", err)
		}
		for _, op := range ops {
			size := len(op.Payload) + 2*types.IDSize
			if len(batch) > 0 && (len(batch) == g.cfg.MaxOpsPerBatch || batchSize+size > maxBatchBytes) {
				if err := flush(false); err != nil {
					return err
				}
			}
			batch = append(batch, *op)
			batchSize += size
		}
	}
	return flush(true)
}
