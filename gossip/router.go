package gossip

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

type routeKey struct {
	space types.SpaceID
	typ   GossipType
}

// RouterOpt specifies an option for a Router.
type RouterOpt func(r *Router)

// WithRouterLogger specifies the logger for the Router.
func WithRouterLogger(logger *zap.Logger) RouterOpt {
	return func(r *Router) {
		r.logger = logger
	}
}

// Router dispatches incoming frames to the modules registered for their
// space and gossip type. It is the Handler given to transports.
type Router struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	modules map[routeKey]Module
}

var _ Handler = &Router{}

// NewRouter creates an empty Router.
func NewRouter(opts ...RouterOpt) *Router {
	r := &Router{
		logger:  zap.NewNop(),
		modules: make(map[routeKey]Module),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds the module for the space and gossip type, replacing the
// previously registered one.
func (r *Router) Register(space types.SpaceID, typ GossipType, m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[routeKey{space: space, typ: typ}] = m
}

// Unregister removes the module for the space and gossip type.
func (r *Router) Unregister(space types.SpaceID, typ GossipType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, routeKey{space: space, typ: typ})
}

// Module returns the module registered for the space and gossip type.
func (r *Router) Module(space types.SpaceID, typ GossipType) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[routeKey{space: space, typ: typ}]
	return m, ok
}

// HandleMessage implements Handler.
func (r *Router) HandleMessage(ctx context.Context, from types.PeerCert, msg []byte) error {
	env, err := DecodeEnvelope(msg)
	if err != nil {
		r.logger.Debug("dropping malformed frame", zap.Stringer("peer", from), zap.Error(err))
		return err
	}
	m, ok := r.Module(env.Space, env.Type)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownModule, env.Space.ShortString(), env.Type)
	}
	return m.HandleMessage(ctx, from, env)
}
