package gossip_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/bloom"
	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/gossip"
	"github.com/spacemeshos/go-shardgossip/p2p/memnet"
	"github.com/spacemeshos/go-shardgossip/peers"
	"github.com/spacemeshos/go-shardgossip/signing"
	"github.com/spacemeshos/go-shardgossip/sql"
	"github.com/spacemeshos/go-shardgossip/store"
)

var space = types.SpaceID{0x5a}

// sharedArc claims [0, 101).
var sharedArc = arc.Arc{Center: 50, HalfLength: 51}

type node struct {
	signer  *signing.EdSigner
	info    *types.AgentInfo
	store   *store.Store
	peers   *peers.Peers
	gossip  *gossip.ShardedGossip
	network *memnet.Node
}

type cluster struct {
	tb     testing.TB
	clock  clockwork.FakeClock
	net    *memnet.Network
	cfg    gossip.Config
	ctx    context.Context
	cancel context.CancelFunc
	eg     errgroup.Group
	dbs    []*sql.Database
}

func newCluster(tb testing.TB) *cluster {
	c := &cluster{
		tb:    tb,
		clock: clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)),
		net:   memnet.New(memnet.WithLogger(zaptest.NewLogger(tb).Named("net"))),
		cfg:   gossip.DefaultConfig(),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	tb.Cleanup(func() {
		c.cancel()
		if err := c.eg.Wait(); err != nil {
			require.ErrorIs(tb, err, context.Canceled)
		}
		c.net.Close()
		for _, db := range c.dbs {
			require.NoError(tb, db.Close())
		}
	})
	return c
}

func (c *cluster) now() types.Timestamp {
	return types.TimestampFrom(c.clock.Now())
}

func (c *cluster) signedInfo(signer *signing.EdSigner, a arc.Arc, cert types.PeerCert, signedAt time.Time) *types.AgentInfo {
	info := &types.AgentInfo{
		Space:     space,
		Arc:       a,
		SignedAt:  types.TimestampFrom(signedAt),
		ExpiresAt: types.TimestampFrom(c.clock.Now().Add(time.Hour)),
		Addresses: []string{string(cert)},
	}
	signer.SignAgentInfo(info)
	return info
}

func (c *cluster) addNode(name string, a arc.Arc) *node {
	logger := zaptest.NewLogger(c.tb).Named(name)
	signer, err := signing.NewEdSigner()
	require.NoError(c.tb, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(c.tb, err)
	db := sql.InMemory()
	c.dbs = append(c.dbs, db)

	n := &node{
		signer: signer,
		store:  store.New(db, store.WithLogger(logger), store.WithClock(c.clock)),
		peers:  peers.New(),
	}
	router := gossip.NewRouter(gossip.WithRouterLogger(logger))
	n.network = c.net.Join(name, router)
	n.gossip, err = gossip.New(space, n.store, n.network, verifier,
		gossip.WithConfig(c.cfg),
		gossip.WithLogger(logger),
		gossip.WithPeers(n.peers),
		gossip.WithClock(c.clock),
	)
	require.NoError(c.tb, err)
	router.Register(space, c.cfg.Type, n.gossip)

	n.info = c.signedInfo(signer, a, n.network.Cert(), c.clock.Now())
	require.NoError(c.tb, n.store.PublishLocal(context.Background(), n.info))
	n.gossip.LocalAgentJoin(signer.AgentID())
	return n
}

// run starts the gossip loops of the nodes and triggers a single tick.
func (c *cluster) run(nodes ...*node) {
	for _, n := range nodes {
		c.eg.Go(func() error { return n.gossip.Run(c.ctx) })
	}
	c.clock.BlockUntil(len(nodes))
	c.clock.Advance(c.cfg.TickInterval)
}

func (c *cluster) addOps(n *node, bases ...arc.Loc) []*types.Op {
	return c.addOpsAt(n, c.clock.Now(), bases...)
}

func (c *cluster) addOpsAt(n *node, at time.Time, bases ...arc.Loc) []*types.Op {
	var rst []*types.Op
	for _, basis := range bases {
		op := types.NewOp(basis, types.TimestampFrom(at), []byte{byte(basis), 0xcc})
		require.NoError(c.tb, n.store.StoreOp(context.Background(), space, op))
		rst = append(rst, op)
	}
	return rst
}

func (c *cluster) idle(nodes ...*node) {
	require.Eventually(c.tb, func() bool {
		for _, n := range nodes {
			if n.gossip.ActiveRounds() != 0 {
				return false
			}
		}
		return true
	}, 5*time.Second, time.Millisecond)
}

func requireOps(tb testing.TB, n *node, ops ...*types.Op) {
	tb.Helper()
	count, err := n.store.OpCount(space)
	require.NoError(tb, err)
	require.Equal(tb, len(ops), count)
	for _, op := range ops {
		has, err := n.store.HasOp(space, op.Hash)
		require.NoError(tb, err)
		require.True(tb, has, "missing op %s", op.Hash.ShortString())
	}
}

func TestConvergence(t *testing.T) {
	c := newCluster(t)
	a := c.addNode("a", sharedArc)
	b := c.addNode("b", sharedArc)
	require.NoError(t, a.store.StoreAgentInfo(context.Background(), b.info))

	ops := c.addOps(a, 10, 20, 30)
	ops = append(ops, c.addOps(b, 40, 50)...)
	require.NoError(t, b.store.StoreOp(context.Background(), space, ops[2]))

	c.run(a)
	require.Eventually(t, func() bool {
		count, err := b.store.OpCount(space)
		return err == nil && count == len(ops)
	}, 5*time.Second, time.Millisecond)
	c.idle(a, b)
	requireOps(t, a, ops...)
	requireOps(t, b, ops...)

	got, err := b.store.AgentInfo(space, a.info.Agent)
	require.NoError(t, err)
	require.Equal(t, a.info, got)
}

func TestHistoricalConvergence(t *testing.T) {
	c := newCluster(t)
	c.cfg.Type = gossip.GossipHistorical
	a := c.addNode("a", sharedArc)
	b := c.addNode("b", sharedArc)
	require.NoError(t, a.store.StoreAgentInfo(context.Background(), b.info))

	old := c.clock.Now().Add(-2 * time.Hour)
	ops := c.addOpsAt(a, old, 10, 20, 30)
	ops = append(ops, c.addOpsAt(b, old, 40, 50)...)
	// recent ops are left to recent gossip
	recent := c.addOps(a, 60)

	c.run(a)
	require.Eventually(t, func() bool {
		count, err := b.store.OpCount(space)
		return err == nil && count == len(ops)
	}, 5*time.Second, time.Millisecond)
	c.idle(a, b)
	requireOps(t, a, append(ops, recent...)...)
	requireOps(t, b, ops...)

	_, err := b.store.AgentInfo(space, a.info.Agent)
	require.ErrorIs(t, err, sql.ErrNotFound)
}

func TestCommonSetGuessMismatch(t *testing.T) {
	c := newCluster(t)
	a := c.addNode("a", sharedArc)
	b := c.addNode("b", sharedArc)
	require.NoError(t, a.store.StoreAgentInfo(context.Background(), b.info))

	// b shrinks to [0, 51) and a doesn't know about it yet
	narrowed := c.signedInfo(b.signer, arc.Arc{Center: 25, HalfLength: 26}, b.network.Cert(), c.clock.Now().Add(time.Second))
	require.NoError(t, b.store.PublishLocal(context.Background(), narrowed))

	shared := c.addOps(a, 10, 20)
	outside := c.addOps(a, 80)
	shared = append(shared, c.addOps(b, 30, 40)...)

	c.run(a)
	require.Eventually(t, func() bool {
		got, err := a.store.AgentInfo(space, narrowed.Agent)
		if err != nil || got.SignedAt != narrowed.SignedAt {
			return false
		}
		count, err := b.store.OpCount(space)
		return err == nil && count == len(shared)
	}, 5*time.Second, time.Millisecond)
	c.idle(a, b)
	requireOps(t, a, append(shared, outside...)...)
	requireOps(t, b, shared...)

	got, err := a.store.AgentInfo(space, narrowed.Agent)
	require.NoError(t, err)
	require.Equal(t, narrowed, got)
	got, err = b.store.AgentInfo(space, a.info.Agent)
	require.NoError(t, err)
	require.Equal(t, a.info, got)
}

func TestExpiredAgentInfoPruned(t *testing.T) {
	c := newCluster(t)
	a := c.addNode("a", sharedArc)
	other, err := signing.NewEdSigner()
	require.NoError(t, err)
	expired := c.signedInfo(other, sharedArc, "mem://expired", c.clock.Now())
	expired.ExpiresAt = c.now()
	other.SignAgentInfo(expired)
	require.NoError(t, a.store.StoreAgentInfo(context.Background(), expired))

	c.run(a)
	require.Eventually(t, func() bool {
		_, err := a.store.AgentInfo(space, expired.Agent)
		return errors.Is(err, sql.ErrNotFound)
	}, 5*time.Second, time.Millisecond)
	c.idle(a)
	require.Zero(t, a.peers.Total())
	got, err := a.store.AgentInfo(space, a.info.Agent)
	require.NoError(t, err)
	require.Equal(t, a.info, got)
}

func TestSimultaneousInitiation(t *testing.T) {
	c := newCluster(t)
	a := c.addNode("a", sharedArc)
	b := c.addNode("b", sharedArc)
	require.NoError(t, a.store.StoreAgentInfo(context.Background(), b.info))
	require.NoError(t, b.store.StoreAgentInfo(context.Background(), a.info))
	ops := append(c.addOps(a, 1, 2, 3), c.addOps(b, 4, 5, 6)...)

	c.run(a, b)
	require.Eventually(t, func() bool {
		ca, erra := a.store.OpCount(space)
		cb, errb := b.store.OpCount(space)
		return erra == nil && errb == nil && ca == len(ops) && cb == len(ops)
	}, 5*time.Second, time.Millisecond)
	c.idle(a, b)
	requireOps(t, a, ops...)
	requireOps(t, b, ops...)
}

func TestAgentInfoLastWriteWins(t *testing.T) {
	c := newCluster(t)
	a := c.addNode("a", sharedArc)
	b := c.addNode("b", sharedArc)
	require.NoError(t, a.store.StoreAgentInfo(context.Background(), b.info))
	old := a.info
	require.NoError(t, b.store.StoreAgentInfo(context.Background(), old))

	// a moves its arc and republishes
	moved := c.signedInfo(a.signer, arc.Arc{Center: 60, HalfLength: 30}, a.network.Cert(), c.clock.Now().Add(time.Second))
	require.NoError(t, a.store.PublishLocal(context.Background(), moved))

	// infos with invalid signatures are not accepted
	other, err := signing.NewEdSigner()
	require.NoError(t, err)
	forged := c.signedInfo(other, sharedArc, "mem://forged", c.clock.Now())
	forged.ExpiresAt += 1
	require.NoError(t, b.store.StoreAgentInfo(context.Background(), forged))

	c.run(a)
	require.Eventually(t, func() bool {
		got, err := b.store.AgentInfo(space, old.Agent)
		return err == nil && got.SignedAt == moved.SignedAt
	}, 5*time.Second, time.Millisecond)
	c.idle(a, b)

	got, err := b.store.AgentInfo(space, old.Agent)
	require.NoError(t, err)
	require.Equal(t, moved, got)
	got, err = a.store.AgentInfo(space, old.Agent)
	require.NoError(t, err)
	require.Equal(t, moved, got)
	_, err = a.store.AgentInfo(space, forged.Agent)
	require.ErrorIs(t, err, sql.ErrNotFound)
}

type inbox chan *gossip.Envelope

func (ib inbox) HandleMessage(_ context.Context, _ types.PeerCert, msg []byte) error {
	env, err := gossip.DecodeEnvelope(msg)
	if err != nil {
		return err
	}
	ib <- env
	return nil
}

func receive[T gossip.Message](tb testing.TB, ib inbox) T {
	tb.Helper()
	select {
	case env := <-ib:
		msg, err := gossip.DecodeMessage(env)
		require.NoError(tb, err)
		rst, ok := msg.(T)
		require.True(tb, ok, "unexpected %s", msg.Kind())
		return rst
	case <-time.After(5 * time.Second):
		require.FailNow(tb, "timed out waiting for a message")
	}
	panic("unreachable")
}

func TestTamperedOpsAreDropped(t *testing.T) {
	c := newCluster(t)
	a := c.addNode("a", sharedArc)

	// the peer is driven by the test
	ib := make(inbox, 16)
	peer := c.net.Join("peer", ib)
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	require.NoError(t, a.store.StoreAgentInfo(context.Background(),
		c.signedInfo(signer, sharedArc, peer.Cert(), c.clock.Now())))
	send := func(msg gossip.Message) {
		frame, err := gossip.EncodeFrame(space, gossip.GossipRecent, msg)
		require.NoError(t, err)
		require.NoError(t, peer.Send(context.Background(), a.network.Cert(), frame))
	}

	c.run(a)
	init := receive[*gossip.InitiateMessage](t, ib)
	common := sharedArc.Set()
	digest := gossip.Digest(common.Digest())
	require.Equal(t, digest, init.Digest)
	send(&gossip.AcceptMessage{
		Nonce:      init.Nonce,
		Intervals:  common,
		Digest:     digest,
		AgentBloom: bloom.New(0, 0.01),
		OpsBloom:   bloom.New(0, 0.01),
	})

	good := []*types.Op{
		types.NewOp(5, c.now(), []byte("first")),
		types.NewOp(7, c.now(), []byte("second")),
	}
	tampered := types.NewOp(6, c.now(), []byte("original"))
	tampered.Payload = []byte("forged")
	outside := types.NewOp(1000, c.now(), []byte("outside"))
	send(&gossip.NoAgentsMessage{Nonce: init.Nonce, Digest: digest})
	send(&gossip.MissingOpsMessage{
		Nonce:  init.Nonce,
		Digest: digest,
		Ops:    []types.Op{*good[0], *tampered, *outside},
	})
	send(&gossip.MissingOpsMessage{
		Nonce:    init.Nonce,
		Digest:   digest,
		Ops:      []types.Op{*good[1]},
		Finished: true,
	})

	// the local agent info is missing from the empty bloom
	diff := receive[*gossip.MissingAgentsMessage](t, ib)
	require.Len(t, diff.Agents, 2)
	require.Contains(t, diff.Agents, *a.info)
	require.True(t, receive[*gossip.MissingOpsMessage](t, ib).Finished)

	c.idle(a)
	requireOps(t, a, good...)
	for _, op := range []*types.Op{tampered, outside} {
		has, err := a.store.HasOp(space, op.ComputeHash())
		require.NoError(t, err)
		require.False(t, has)
	}
}

func TestPeerUnreachable(t *testing.T) {
	c := newCluster(t)
	c.cfg.CooldownInterval = 0
	a := c.addNode("a", sharedArc)
	b := c.addNode("b", sharedArc)
	require.NoError(t, a.store.StoreAgentInfo(context.Background(), b.info))
	ops := c.addOps(a, 1, 2)
	c.net.SetLinkDown(a.network.Cert(), b.network.Cert(), true)

	c.run(a)
	require.Eventually(t, func() bool {
		stats := a.peers.Stats()
		return len(stats.BestPeers) == 1 && stats.BestPeers[0].Failures == 1
	}, 5*time.Second, time.Millisecond)
	c.idle(a)
	count, err := b.store.OpCount(space)
	require.NoError(t, err)
	require.Zero(t, count)

	c.net.SetLinkDown(a.network.Cert(), b.network.Cert(), false)
	c.clock.Advance(c.cfg.TickInterval)
	require.Eventually(t, func() bool {
		count, err := b.store.OpCount(space)
		return err == nil && count == len(ops)
	}, 5*time.Second, time.Millisecond)
	c.idle(a, b)
	require.Equal(t, 1, a.peers.Stats().BestPeers[0].Completed)
}
