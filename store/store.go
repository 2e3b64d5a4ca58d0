// Package store implements the gossip host on top of the sqlite database.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/gossip"
	"github.com/spacemeshos/go-shardgossip/sql"
	"github.com/spacemeshos/go-shardgossip/sql/agentinfo"
	"github.com/spacemeshos/go-shardgossip/sql/ops"
)

// opDataChunk is the number of ops loaded by a single query.
const opDataChunk = 256

type localKey struct {
	space types.SpaceID
	agent types.AgentID
}

// Opt specifies an option for a Store.
type Opt func(s *Store)

// WithLogger specifies the logger for the Store.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock specifies the clock used to expire agent infos.
func WithClock(clock clockwork.Clock) Opt {
	return func(s *Store) {
		s.clock = clock
	}
}

// Store keeps agent infos and ops of every space in the database.
type Store struct {
	logger *zap.Logger
	clock  clockwork.Clock
	db     *sql.Database

	mu    sync.Mutex
	local map[localKey]*types.AgentInfo
}

var _ gossip.Host = &Store{}

// New creates a Store over the database.
func New(db *sql.Database, opts ...Opt) *Store {
	s := &Store{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		db:     db,
		local:  make(map[localKey]*types.AgentInfo),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PublishLocal stores the signed info of a local agent and uses its arc as
// the coverage of the agent.
func (s *Store) PublishLocal(ctx context.Context, info *types.AgentInfo) error {
	if err := s.StoreAgentInfo(ctx, info); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := localKey{space: info.Space, agent: info.Agent}
	if prev, ok := s.local[key]; !ok || info.Newer(prev) {
		s.local[key] = info
	}
	return nil
}

// RemoveLocal forgets the coverage of a local agent.
func (s *Store) RemoveLocal(space types.SpaceID, agent types.AgentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.local, localKey{space: space, agent: agent})
}

// LocalArcs implements gossip.Host.
func (s *Store) LocalArcs(_ context.Context, space types.SpaceID, agent types.AgentID) (arc.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.local[localKey{space: space, agent: agent}]
	if !ok {
		return arc.Set{}, fmt.Errorf("%w: %s", gossip.ErrNoLocalArc, agent.ShortString())
	}
	return info.Arc.Set(), nil
}

// AgentInfoInArcSet implements gossip.Host. Arcs may wrap around the key
// space, so the overlap is checked outside of the database.
func (s *Store) AgentInfoInArcSet(_ context.Context, space types.SpaceID, set arc.Set) ([]*types.AgentInfo, error) {
	all, err := agentinfo.All(s.db, space, types.TimestampFrom(s.clock.Now()))
	if err != nil {
		return nil, err
	}
	var rst []*types.AgentInfo
	for _, info := range all {
		if info.Arc.Set().Overlaps(set) {
			rst = append(rst, info)
		}
	}
	return rst, nil
}

// OpHashesInArcSet implements gossip.Host.
func (s *Store) OpHashesInArcSet(
	_ context.Context,
	space types.SpaceID,
	set arc.Set,
	window types.TimeWindow,
) ([]types.OpHash, error) {
	var rst []types.OpHash
	for _, interval := range set.Intervals() {
		lo := uint64(interval.Start)
		hashes, err := ops.HashesInRange(s.db, space, lo, lo+interval.Len, window)
		if err != nil {
			return nil, err
		}
		rst = append(rst, hashes...)
	}
	return rst, nil
}

// OpData implements gossip.Host.
func (s *Store) OpData(_ context.Context, space types.SpaceID, hashes []types.OpHash) ([]*types.Op, error) {
	rst := make([]*types.Op, 0, len(hashes))
	for start := 0; start < len(hashes); start += opDataChunk {
		chunk, err := ops.GetMany(s.db, space, hashes[start:min(start+opDataChunk, len(hashes))])
		if err != nil {
			return nil, err
		}
		rst = append(rst, chunk...)
	}
	return rst, nil
}

// StoreAgentInfo implements gossip.Host.
func (s *Store) StoreAgentInfo(_ context.Context, info *types.AgentInfo) error {
	updated, err := agentinfo.Put(s.db, info)
	if err != nil {
		return fmt.Errorf("store agent info: %w", err)
	}
	if updated {
		s.logger.Debug("agent info updated", zap.Object("info", info))
	}
	return nil
}

// StoreOp implements gossip.Host.
func (s *Store) StoreOp(_ context.Context, space types.SpaceID, op *types.Op) error {
	if len(op.Payload) > types.MaxPayloadSize {
		return fmt.Errorf("store op %s: %w", op.Hash.ShortString(), types.ErrPayloadTooLarge)
	}
	added, err := ops.Add(s.db, space, op)
	if err != nil {
		return fmt.Errorf("store op: %w", err)
	}
	if added {
		s.logger.Debug("op added", zap.Stringer("space", space), zap.Object("op", op))
	}
	return nil
}

// AgentInfo returns the stored info of the agent.
func (s *Store) AgentInfo(space types.SpaceID, agent types.AgentID) (*types.AgentInfo, error) {
	return agentinfo.Get(s.db, space, agent)
}

// HasOp returns true if the op is stored.
func (s *Store) HasOp(space types.SpaceID, hash types.OpHash) (bool, error) {
	return ops.Has(s.db, space, hash)
}

// OpCount returns the number of ops stored in the space.
func (s *Store) OpCount(space types.SpaceID) (int, error) {
	return ops.Count(s.db, space)
}

// PruneAgentInfo implements gossip.Host.
func (s *Store) PruneAgentInfo(_ context.Context, space types.SpaceID) (int, error) {
	n, err := agentinfo.DeleteExpired(s.db, space, types.TimestampFrom(s.clock.Now()))
	if err != nil {
		return 0, fmt.Errorf("prune agent infos: %w", err)
	}
	return n, nil
}
