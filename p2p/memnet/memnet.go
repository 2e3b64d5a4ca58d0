// Package memnet is an in-memory network that bridges gossip nodes running
// in the same process.
package memnet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/gossip"
)

// Scheme prefixes the addresses of memnet nodes.
const Scheme = "mem://"

var (
	// ErrUnknownPeer is returned when sending to a node that isn't on the network.
	ErrUnknownPeer = errors.New("memnet: unknown peer")
	// ErrLinkDown is returned when sending over a link that was cut.
	ErrLinkDown = errors.New("memnet: link down")
	// ErrNoAddress is returned when an agent info has no memnet address.
	ErrNoAddress = errors.New("memnet: no address")
	// ErrClosed is returned when sending after the network was closed.
	ErrClosed = errors.New("memnet: closed")
)

type linkKey struct {
	from, to types.PeerCert
}

// Opt specifies an option for a Network.
type Opt func(n *Network)

// WithLogger specifies the logger for the Network.
func WithLogger(logger *zap.Logger) Opt {
	return func(n *Network) {
		n.logger = logger
	}
}

// Network delivers frames between its nodes. Frames sent over the same
// link are delivered in order by a dedicated worker.
type Network struct {
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	nodes  map[types.PeerCert]*Node
	links  map[linkKey]*link
	down   map[linkKey]struct{}
}

// New creates an empty Network.
func New(opts ...Opt) *Network {
	n := &Network{
		logger: zap.NewNop(),
		nodes:  make(map[types.PeerCert]*Node),
		links:  make(map[linkKey]*link),
		down:   make(map[linkKey]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())
	return n
}

// Join adds a node with the given name, handling its frames with h.
func (n *Network) Join(name string, h gossip.Handler) *Node {
	cert := types.PeerCert(Scheme + name)
	node := &Node{net: n, cert: cert, handler: h}
	n.mu.Lock()
	n.nodes[cert] = node
	n.mu.Unlock()
	return node
}

// Leave removes the node from the network.
func (n *Network) Leave(cert types.PeerCert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.nodes, cert)
}

// SetLinkDown cuts or restores the link from one node to another.
// Frames already queued on the link are still delivered.
func (n *Network) SetLinkDown(from, to types.PeerCert, down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if down {
		n.down[linkKey{from: from, to: to}] = struct{}{}
	} else {
		delete(n.down, linkKey{from: from, to: to})
	}
}

// Close stops every link worker and waits for them to exit.
func (n *Network) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.cancel()
	n.wg.Wait()
}

func (n *Network) link(from, to types.PeerCert) (*link, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	key := linkKey{from: from, to: to}
	if _, ok := n.down[key]; ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrLinkDown, from, to)
	}
	dst, ok := n.nodes[to]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, to)
	}
	l, ok := n.links[key]
	if !ok {
		l = &link{
			logger: n.logger.With(zap.Stringer("from", from), zap.Stringer("to", to)),
			from:   from,
			dst:    dst,
			notify: make(chan struct{}, 1),
		}
		n.links[key] = l
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			l.run(n.ctx)
		}()
	}
	return l, nil
}

// link is a one-directional ordered frame queue between two nodes.
type link struct {
	logger *zap.Logger
	from   types.PeerCert
	dst    *Node
	notify chan struct{}

	mu        sync.Mutex
	queue     [][]byte
	delivered int
}

func (l *link) push(msg []byte) {
	l.mu.Lock()
	l.queue = append(l.queue, msg)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *link) pop() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	msg := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return msg, true
}

func (l *link) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.notify:
		}
		for {
			msg, ok := l.pop()
			if !ok {
				break
			}
			if err := l.dst.handler.HandleMessage(ctx, l.from, msg); err != nil {
				l.logger.Debug("handler failed", zap.Error(err))
			}
			l.mu.Lock()
			l.delivered++
			l.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// Delivered returns the number of frames delivered from one node to another.
func (n *Network) Delivered(from, to types.PeerCert) int {
	n.mu.Lock()
	l, ok := n.links[linkKey{from: from, to: to}]
	n.mu.Unlock()
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delivered
}

// Node is a member of the Network. It implements gossip.Transport.
type Node struct {
	net     *Network
	cert    types.PeerCert
	handler gossip.Handler
}

var _ gossip.Transport = &Node{}

// Cert returns the peer cert of the node, which is also its address.
func (n *Node) Cert() types.PeerCert {
	return n.cert
}

// Send implements gossip.Transport.
func (n *Node) Send(ctx context.Context, cert types.PeerCert, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l, err := n.net.link(n.cert, cert)
	if err != nil {
		return err
	}
	l.push(append([]byte(nil), msg...))
	return nil
}

// PeerCert implements gossip.Transport.
func (n *Node) PeerCert(info *types.AgentInfo) (types.PeerCert, error) {
	for _, addr := range info.Addresses {
		if strings.HasPrefix(addr, Scheme) && len(addr) > len(Scheme) {
			return types.PeerCert(addr), nil
		}
	}
	return "", fmt.Errorf("%w: agent %s", ErrNoAddress, info.Agent.ShortString())
}
