// Package server carries gossip frames between libp2p hosts over
// long-lived varint delimited streams.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-msgio"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/gossip"
)

// ProtocolID is the default protocol of the gossip streams.
const ProtocolID = "/shardgossip/1"

var (
	// ErrMessageTooLarge is returned when sending a frame over the size limit.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrInvalidCert is returned when a peer cert isn't a libp2p peer ID.
	ErrInvalidCert = errors.New("invalid peer cert")
	// ErrNoAddress is returned when an agent info has no usable libp2p address.
	ErrNoAddress = errors.New("no libp2p address")
	// ErrNotRunning is returned when sending before Run or after it returned.
	ErrNotRunning = errors.New("server is not running")
)

// Opt is a type to configure a server.
type Opt func(s *Server)

// WithLogger configures logger for the server.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithProtocol configures the protocol of the streams.
func WithProtocol(proto string) Opt {
	return func(s *Server) {
		s.protocol = proto
	}
}

// WithTimeout configures the deadline of a single frame write.
func WithTimeout(timeout time.Duration) Opt {
	return func(s *Server) {
		s.timeout = timeout
	}
}

// WithMessageSizeLimit configures the largest frame accepted from or sent
// to a peer.
func WithMessageSizeLimit(limit int) Opt {
	return func(s *Server) {
		s.limit = limit
	}
}

// WithQueueSize configures the number of frames kept per peer until they are
// handled. Frames over the limit are dropped.
//
// Defaults to 256.
func WithQueueSize(size int) Opt {
	return func(s *Server) {
		s.queueSize = size
	}
}

// WithRequestsPerInterval limits the rate of incoming frames over all peers.
//
// Defaults to 1000 frames per second.
func WithRequestsPerInterval(n int, interval time.Duration) Opt {
	return func(s *Server) {
		s.requestsPerInterval = n
		s.interval = interval
	}
}

// WithMetrics will enable metrics collection in the server.
func WithMetrics() Opt {
	return func(s *Server) {
		s.metrics = newTracker(s.protocol)
	}
}

type outbound struct {
	mu     sync.Mutex
	stream network.Stream
	w      msgio.WriteCloser
}

// peerQueue holds the frames received from a peer. At most one goroutine
// drains the queue at a time.
type peerQueue struct {
	msgs    [][]byte
	running bool
}

// Server implements gossip.Transport on top of a libp2p host and passes the
// received frames to the handler. Frames from the same peer are handled
// sequentially in the order they were received.
type Server struct {
	logger              *zap.Logger
	protocol            string
	handler             gossip.Handler
	timeout             time.Duration
	limit               int
	queueSize           int
	requestsPerInterval int
	interval            time.Duration

	metrics *tracker // metrics can be nil

	h host.Host

	mu       sync.Mutex
	ctx      context.Context
	eg       *errgroup.Group
	limiter  *rate.Limiter
	outbound map[peer.ID]*outbound
	queues   map[peer.ID]*peerQueue
	inbound  map[network.Stream]struct{}
}

var _ gossip.Transport = &Server{}

// New server for the handler.
func New(h host.Host, handler gossip.Handler, opts ...Opt) *Server {
	srv := &Server{
		logger:              zap.NewNop(),
		protocol:            ProtocolID,
		handler:             handler,
		h:                   h,
		timeout:             10 * time.Second,
		limit:               gossip.MaxMessageSize,
		queueSize:           256,
		requestsPerInterval: 1000,
		interval:            time.Second,
		outbound:            make(map[peer.ID]*outbound),
		queues:              make(map[peer.ID]*peerQueue),
		inbound:             make(map[network.Stream]struct{}),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Run accepts gossip streams until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(s.interval/time.Duration(s.requestsPerInterval)), s.requestsPerInterval)
	eg, ctx := errgroup.WithContext(ctx)
	s.mu.Lock()
	s.ctx = ctx
	s.eg = eg
	s.limiter = limiter
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.targetQueue.Set(float64(s.queueSize))
		s.metrics.targetRps.Set(float64(limiter.Limit()))
	}

	notifiee := &network.NotifyBundle{
		DisconnectedF: func(_ network.Network, c network.Conn) {
			s.dropOutbound(c.RemotePeer())
		},
	}
	s.h.Network().Notify(notifiee)
	s.h.SetStreamHandler(protocol.ID(s.protocol), func(stream network.Stream) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ctx == nil || s.ctx.Err() != nil {
			stream.Reset()
			return
		}
		s.inbound[stream] = struct{}{}
		s.eg.Go(func() error {
			s.readLoop(ctx, stream)
			return nil
		})
	})

	<-ctx.Done()
	s.h.RemoveStreamHandler(protocol.ID(s.protocol))
	s.h.Network().StopNotify(notifiee)
	s.mu.Lock()
	for stream := range s.inbound {
		stream.Reset()
	}
	for pid, out := range s.outbound {
		delete(s.outbound, pid)
		out.close()
	}
	s.mu.Unlock()
	err := eg.Wait()
	s.mu.Lock()
	s.ctx = nil
	s.mu.Unlock()
	return err
}

func (s *Server) readLoop(ctx context.Context, stream network.Stream) {
	defer func() {
		s.mu.Lock()
		delete(s.inbound, stream)
		s.mu.Unlock()
		stream.Close()
	}()
	pid := stream.Conn().RemotePeer()
	rd := msgio.NewVarintReaderSize(stream, s.limit)
	for {
		msg, err := rd.ReadMsg()
		if err != nil {
			if errors.Is(err, msgio.ErrMsgTooLarge) {
				s.logger.Warn("message limit overflow",
					zap.String("protocol", s.protocol),
					zap.Stringer("remotePeer", pid),
					zap.Stringer("remoteMultiaddr", stream.Conn().RemoteMultiaddr()),
					zap.Int("limit", s.limit),
				)
				if s.metrics != nil {
					s.metrics.oversized.Inc()
				}
				stream.Reset()
			} else if ctx.Err() == nil {
				s.logger.Debug("stream closed",
					zap.String("protocol", s.protocol),
					zap.Stringer("remotePeer", pid),
					zap.Error(err),
				)
			}
			return
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		s.enqueue(ctx, pid, msg)
	}
}

func (s *Server) enqueue(ctx context.Context, pid peer.ID, msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[pid]
	if !ok {
		q = &peerQueue{}
		s.queues[pid] = q
	}
	if len(q.msgs) >= s.queueSize {
		if s.metrics != nil {
			s.metrics.dropped.Inc()
		}
		s.logger.Debug("peer queue is full, dropping message", zap.Stringer("remotePeer", pid))
		return
	}
	q.msgs = append(q.msgs, msg)
	if s.metrics != nil {
		s.metrics.accepted.Inc()
		s.metrics.queue.Set(float64(len(q.msgs)))
	}
	if !q.running {
		q.running = true
		s.eg.Go(func() error {
			s.drain(ctx, pid, q)
			return nil
		})
	}
}

func (s *Server) next(pid peer.ID, q *peerQueue) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(q.msgs) == 0 {
		q.running = false
		delete(s.queues, pid)
		return nil, false
	}
	msg := q.msgs[0]
	q.msgs[0] = nil
	q.msgs = q.msgs[1:]
	return msg, true
}

func (s *Server) drain(ctx context.Context, pid peer.ID, q *peerQueue) {
	cert := types.PeerCert(pid.String())
	for ctx.Err() == nil {
		msg, ok := s.next(pid, q)
		if !ok {
			return
		}
		start := time.Now()
		err := s.handler.HandleMessage(ctx, cert, msg)
		if s.metrics != nil {
			s.metrics.serverLatency.Observe(time.Since(start).Seconds())
			if err != nil {
				s.metrics.failed.Inc()
			} else {
				s.metrics.completed.Inc()
			}
		}
		if err != nil {
			s.logger.Debug("handler reported error",
				zap.String("protocol", s.protocol),
				zap.Stringer("remotePeer", pid),
				zap.Error(err),
			)
		}
	}
}

// Send implements gossip.Transport. Frames to the same peer are written to a
// single stream, which is reopened after a failure.
func (s *Server) Send(ctx context.Context, cert types.PeerCert, msg []byte) error {
	if len(msg) > s.limit {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(msg), s.limit)
	}
	pid, err := peer.Decode(string(cert))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidCert, cert, err)
	}
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	out, ok := s.outbound[pid]
	if !ok {
		out = &outbound{}
		s.outbound[pid] = out
	}
	s.mu.Unlock()

	start := time.Now()
	err = out.write(ctx, s, pid, msg)
	if s.metrics != nil {
		took := time.Since(start).Seconds()
		if err != nil {
			s.metrics.clientFailed.Inc()
			s.metrics.clientLatencyFailure.Observe(took)
		} else {
			s.metrics.clientSucceeded.Inc()
			s.metrics.clientLatency.Observe(took)
		}
	}
	return err
}

func (out *outbound) write(ctx context.Context, s *Server, pid peer.ID, msg []byte) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.stream == nil {
		stream, err := s.h.NewStream(ctx, pid, protocol.ID(s.protocol))
		if err != nil {
			return fmt.Errorf("open stream to %s: %w", pid, err)
		}
		out.stream = stream
		out.w = msgio.NewVarintWriter(stream)
	}
	if s.timeout > 0 {
		if err := out.stream.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			s.logger.Debug("failed to set write deadline", zap.Stringer("remotePeer", pid), zap.Error(err))
		}
	}
	if err := out.w.WriteMsg(msg); err != nil {
		err = fmt.Errorf("peer %s address %s: %w", pid, out.stream.Conn().RemoteMultiaddr(), err)
		out.stream.Reset()
		out.stream, out.w = nil, nil
		return err
	}
	return nil
}

func (out *outbound) close() {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.stream != nil {
		out.stream.Close()
		out.stream, out.w = nil, nil
	}
}

func (s *Server) dropOutbound(pid peer.ID) {
	if s.h.Network().Connectedness(pid) == network.Connected {
		return
	}
	s.mu.Lock()
	out, ok := s.outbound[pid]
	delete(s.outbound, pid)
	s.mu.Unlock()
	if ok {
		out.close()
	}
}

// PeerCert implements gossip.Transport. The first address with a peer ID
// component is used, and every address of that peer is added to the
// peerstore.
func (s *Server) PeerCert(info *types.AgentInfo) (types.PeerCert, error) {
	var found *peer.AddrInfo
	for _, addr := range info.Addresses {
		ai, err := peer.AddrInfoFromString(addr)
		if err != nil {
			continue
		}
		switch {
		case found == nil:
			found = ai
		case found.ID == ai.ID:
			found.Addrs = append(found.Addrs, ai.Addrs...)
		}
	}
	if found == nil {
		return "", fmt.Errorf("%w: agent %s", ErrNoAddress, info.Agent.ShortString())
	}
	if found.ID != s.h.ID() {
		s.h.Peerstore().AddAddrs(found.ID, found.Addrs, peerstore.AddressTTL)
	}
	return types.PeerCert(found.ID.String()), nil
}

// Cert returns the peer cert of the local host.
func (s *Server) Cert() types.PeerCert {
	return types.PeerCert(s.h.ID().String())
}

// Addresses returns the addresses of the local host in the form accepted by
// PeerCert.
func (s *Server) Addresses() []string {
	id := ma.StringCast("/p2p/" + s.h.ID().String())
	addrs := s.h.Addrs()
	rst := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		rst = append(rst, addr.Encapsulate(id).String())
	}
	return rst
}
