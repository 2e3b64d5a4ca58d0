package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/libp2p/go-libp2p"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/gossip"
	"github.com/spacemeshos/go-shardgossip/p2p/memnet"
	"github.com/spacemeshos/go-shardgossip/p2p/server"
	"github.com/spacemeshos/go-shardgossip/peers"
	"github.com/spacemeshos/go-shardgossip/signing"
	"github.com/spacemeshos/go-shardgossip/sql"
	"github.com/spacemeshos/go-shardgossip/store"
)

var simSpace = types.SpaceID{0x51, 0x4d}

type transport interface {
	gossip.Transport
	Cert() types.PeerCert
}

type simNode struct {
	name      string
	signer    *signing.EdSigner
	info      *types.AgentInfo
	db        *sql.Database
	store     *store.Store
	peers     *peers.Peers
	gossip    *gossip.ShardedGossip
	transport transport
	addresses []string
	// run and close manage the transport, they are nil for memnet nodes.
	run   func(ctx context.Context) error
	close func() error
}

// Report summarizes a simulation run.
type Report struct {
	Nodes     int
	Ops       int
	Converged bool
	Elapsed   time.Duration
	// Missing is the number of ops each node still lacks within its arc.
	Missing map[string]int
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (r *Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("nodes", r.Nodes)
	enc.AddInt("ops", r.Ops)
	enc.AddBool("converged", r.Converged)
	enc.AddDuration("elapsed", r.Elapsed)
	missing := 0
	for _, n := range r.Missing {
		missing += n
	}
	enc.AddInt("missing", missing)
	return nil
}

// Simulation runs gossip nodes in a single process until every node holds
// the ops within its arc.
type Simulation struct {
	logger *zap.Logger
	cfg    Config
	rng    *rand.Rand
	net    *memnet.Network
	nodes  []*simNode
	ops    []*types.Op
}

// NewSimulation creates the nodes of the simulation and seeds their ops.
func NewSimulation(logger *zap.Logger, cfg Config) (*Simulation, error) {
	s := &Simulation{
		logger: logger,
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed))),
	}
	if cfg.Transport == transportMemnet {
		s.net = memnet.New(memnet.WithLogger(logger.Named("net")))
	}
	for i := range cfg.Nodes {
		if err := s.addNode(i); err != nil {
			return nil, errors.Join(err, s.Close())
		}
	}
	if err := s.bootstrap(); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

func (s *Simulation) newTransport(name string, router *gossip.Router, logger *zap.Logger) (*simNode, error) {
	if s.cfg.Transport == transportMemnet {
		node := s.net.Join(name, router)
		return &simNode{transport: node, addresses: []string{string(node.Cert())}}, nil
	}
	h, err := libp2p.New(libp2p.ListenAddrStrings(s.cfg.ListenAddr))
	if err != nil {
		return nil, fmt.Errorf("create host %s: %w", name, err)
	}
	srv := server.New(h, router, server.WithLogger(logger), server.WithMetrics())
	return &simNode{
		transport: srv,
		addresses: srv.Addresses(),
		run:       srv.Run,
		close:     h.Close,
	}, nil
}

func (s *Simulation) addNode(i int) error {
	name := fmt.Sprintf("node-%d", i)
	logger := s.logger.Named(name)
	router := gossip.NewRouter(gossip.WithRouterLogger(logger))
	n, err := s.newTransport(name, router, logger)
	if err != nil {
		return err
	}
	n.name = name
	n.db = sql.InMemory(sql.WithLatencyMetering(s.cfg.MetricsPort != 0))
	s.nodes = append(s.nodes, n)
	n.signer, err = signing.NewEdSigner()
	if err != nil {
		return err
	}
	verifier, err := signing.NewEdVerifier()
	if err != nil {
		return err
	}
	n.store = store.New(n.db, store.WithLogger(logger))
	n.peers = peers.New()
	n.gossip, err = gossip.New(simSpace, n.store, n.transport, verifier,
		gossip.WithConfig(s.cfg.Gossip),
		gossip.WithLogger(logger),
		gossip.WithPeers(n.peers),
	)
	if err != nil {
		return err
	}
	router.Register(simSpace, s.cfg.Gossip.Type, n.gossip)

	agent := n.signer.AgentID()
	halfLength := s.cfg.ArcHalfLength
	if i == 0 {
		halfLength = arc.MaxHalfLength
	}
	a, err := arc.NewArc(arc.LocOf(agent[:]), halfLength)
	if err != nil {
		return err
	}
	now := time.Now()
	n.info = &types.AgentInfo{
		Space:     simSpace,
		Arc:       a,
		SignedAt:  types.TimestampFrom(now),
		ExpiresAt: types.TimestampFrom(now.Add(s.cfg.Duration + time.Hour)),
		Addresses: n.addresses,
	}
	n.signer.SignAgentInfo(n.info)
	if err := n.store.PublishLocal(context.Background(), n.info); err != nil {
		return err
	}
	n.gossip.LocalAgentJoin(agent)
	return s.seed(n)
}

// seed stores ops with basis in the arc of the node.
func (s *Simulation) seed(n *simNode) error {
	interval := n.info.Arc.Interval()
	if interval.Len == 0 {
		return nil
	}
	now := types.TimestampFrom(time.Now())
	for j := range s.cfg.OpsPerNode {
		basis := interval.Start + arc.Loc(s.rng.Uint64N(interval.Len))
		payload := fmt.Appendf(nil, "%s/%d/%d", n.name, j, s.rng.Uint64())
		op := types.NewOp(basis, now, payload)
		if err := n.store.StoreOp(context.Background(), simSpace, op); err != nil {
			return err
		}
		s.ops = append(s.ops, op)
	}
	return nil
}

// bootstrap makes every node aware of node 0, the rest is discovered
// through gossip.
func (s *Simulation) bootstrap() error {
	seed := s.nodes[0]
	for _, n := range s.nodes[1:] {
		if err := n.store.StoreAgentInfo(context.Background(), seed.info); err != nil {
			return err
		}
	}
	return nil
}

// Run runs the nodes until they converge, the configured duration elapses
// or the context is canceled.
func (s *Simulation) Run(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	for _, n := range s.nodes {
		if n.run != nil {
			eg.Go(func() error { return n.run(ctx) })
		}
		eg.Go(func() error { return n.gossip.Run(ctx) })
	}

	start := time.Now()
	report := &Report{Nodes: len(s.nodes), Ops: len(s.ops)}
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		missing, err := s.missing()
		if err != nil {
			cancel()
			return nil, errors.Join(err, s.wait(eg))
		}
		report.Missing = missing
		report.Elapsed = time.Since(start)
		if report.converged() {
			report.Converged = true
			s.logger.Info("converged", zap.Object("report", report))
			break
		}
		s.logger.Debug("progress", zap.Object("report", report))
		select {
		case <-ctx.Done():
			s.logger.Warn("simulation stopped before convergence", zap.Object("report", report))
			return report, s.wait(eg)
		case <-ticker.C:
		}
	}
	cancel()
	return report, s.wait(eg)
}

func (s *Simulation) wait(eg *errgroup.Group) error {
	err := eg.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (r *Report) converged() bool {
	for _, n := range r.Missing {
		if n > 0 {
			return false
		}
	}
	return true
}

func (r *Report) lagging() int {
	n := 0
	for _, missing := range r.Missing {
		if missing > 0 {
			n++
		}
	}
	return n
}

func (s *Simulation) missing() (map[string]int, error) {
	rst := make(map[string]int, len(s.nodes))
	for _, n := range s.nodes {
		count := 0
		for _, op := range s.ops {
			if !n.info.Arc.Contains(op.Basis) {
				continue
			}
			has, err := n.store.HasOp(simSpace, op.Hash)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", n.name, err)
			}
			if !has {
				count++
			}
		}
		rst[n.name] = count
	}
	return rst, nil
}

// PeerStats returns the peer statistics collected by each node.
func (s *Simulation) PeerStats() map[string]peers.Stats {
	rst := make(map[string]peers.Stats, len(s.nodes))
	for _, n := range s.nodes {
		rst[n.name] = n.peers.Stats()
	}
	return rst
}

// Close releases the transports and databases of the nodes.
func (s *Simulation) Close() error {
	var errs []error
	if s.net != nil {
		s.net.Close()
	}
	for _, n := range s.nodes {
		if n.close != nil {
			errs = append(errs, n.close())
		}
		errs = append(errs, n.db.Close())
	}
	return errors.Join(errs...)
}
