package store

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/gossip"
	"github.com/spacemeshos/go-shardgossip/sql"
)

var space = types.SpaceID{7}

func newStore(tb testing.TB) (*Store, clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	db := sql.InMemory()
	tb.Cleanup(func() { require.NoError(tb, db.Close()) })
	return New(db, WithLogger(zaptest.NewLogger(tb)), WithClock(clock)), clock
}

func newInfo(clock clockwork.Clock, agent byte, a arc.Arc, signedAt time.Time) *types.AgentInfo {
	return &types.AgentInfo{
		Space:     space,
		Agent:     types.AgentID{agent},
		Arc:       a,
		SignedAt:  types.TimestampFrom(signedAt),
		ExpiresAt: types.TimestampFrom(clock.Now().Add(time.Hour)),
		Addresses: []string{"mem://node"},
		Signature: types.Signature{agent},
	}
}

func TestLocalArcs(t *testing.T) {
	s, clock := newStore(t)
	ctx := context.Background()
	_, err := s.LocalArcs(ctx, space, types.AgentID{1})
	require.ErrorIs(t, err, gossip.ErrNoLocalArc)

	info := newInfo(clock, 1, arc.Arc{Center: 100, HalfLength: 10}, clock.Now())
	require.NoError(t, s.PublishLocal(ctx, info))
	set, err := s.LocalArcs(ctx, space, info.Agent)
	require.NoError(t, err)
	require.True(t, set.Equal(info.Arc.Set()))

	stored, err := s.AgentInfo(space, info.Agent)
	require.NoError(t, err)
	require.Equal(t, info, stored)

	s.RemoveLocal(space, info.Agent)
	_, err = s.LocalArcs(ctx, space, info.Agent)
	require.ErrorIs(t, err, gossip.ErrNoLocalArc)
}

func TestAgentInfoInArcSet(t *testing.T) {
	s, clock := newStore(t)
	ctx := context.Background()
	// wraps around the end of the key space
	wrapping := newInfo(clock, 1, arc.Arc{Center: 2, HalfLength: 10}, clock.Now())
	inside := newInfo(clock, 2, arc.Arc{Center: 1000, HalfLength: 10}, clock.Now())
	outside := newInfo(clock, 3, arc.Arc{Center: 1 << 20, HalfLength: 10}, clock.Now())
	expired := newInfo(clock, 4, arc.Arc{Center: 1000, HalfLength: 10}, clock.Now())
	expired.ExpiresAt = types.TimestampFrom(clock.Now())
	for _, info := range []*types.AgentInfo{wrapping, inside, outside, expired} {
		require.NoError(t, s.StoreAgentInfo(ctx, info))
	}

	top, err := arc.NewInterval(arc.Loc(^uint32(0)-100), 50)
	require.NoError(t, err)
	low, err := arc.NewInterval(900, 200)
	require.NoError(t, err)
	infos, err := s.AgentInfoInArcSet(ctx, space, arc.NewSet(top))
	require.NoError(t, err)
	require.Empty(t, infos)

	infos, err = s.AgentInfoInArcSet(ctx, space, arc.NewSet(top, low, arc.Interval{Start: 0, Len: 5}))
	require.NoError(t, err)
	require.Equal(t, []*types.AgentInfo{wrapping, inside}, infos)

	n, err := s.PruneAgentInfo(ctx, space)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestStoreAgentInfoNoDowngrade(t *testing.T) {
	s, clock := newStore(t)
	ctx := context.Background()
	t1 := newInfo(clock, 1, arc.FullArc(0), clock.Now())
	t2 := newInfo(clock, 1, arc.Arc{Center: 5, HalfLength: 5}, clock.Now().Add(time.Second))

	require.NoError(t, s.StoreAgentInfo(ctx, t2))
	require.NoError(t, s.StoreAgentInfo(ctx, t1))
	require.NoError(t, s.StoreAgentInfo(ctx, t2))
	got, err := s.AgentInfo(space, t1.Agent)
	require.NoError(t, err)
	require.Equal(t, t2, got)
}

func TestOps(t *testing.T) {
	s, clock := newStore(t)
	ctx := context.Background()
	now := types.TimestampFrom(clock.Now())
	var all []*types.Op
	for i := range 600 {
		op := types.NewOp(arc.Loc(i*10), now-types.Timestamp(i), []byte{byte(i), byte(i >> 8)})
		all = append(all, op)
		require.NoError(t, s.StoreOp(ctx, space, op))
	}
	// idempotent merge
	for _, op := range all[:10] {
		require.NoError(t, s.StoreOp(ctx, space, op))
	}
	big := types.NewOp(1, now, make([]byte, types.MaxPayloadSize+1))
	require.ErrorIs(t, s.StoreOp(ctx, space, big), types.ErrPayloadTooLarge)
	count, err := s.OpCount(space)
	require.NoError(t, err)
	require.Equal(t, len(all), count)

	has, err := s.HasOp(space, all[0].Hash)
	require.NoError(t, err)
	require.True(t, has)
	has, err = s.HasOp(types.SpaceID{8}, all[0].Hash)
	require.NoError(t, err)
	require.False(t, has)

	set := arc.NewSet(arc.Interval{Start: 0, Len: 100}, arc.Interval{Start: 5000, Len: 20})
	hashes, err := s.OpHashesInArcSet(ctx, space, set, types.FullTimeWindow())
	require.NoError(t, err)
	var expect []types.OpHash
	for _, op := range all {
		if set.Contains(op.Basis) {
			expect = append(expect, op.Hash)
		}
	}
	require.Equal(t, expect, hashes)

	window := types.TimeWindow{Start: now - 5, End: now}
	hashes, err = s.OpHashesInArcSet(ctx, space, set, window)
	require.NoError(t, err)
	require.Len(t, hashes, 5)

	allHashes := make([]types.OpHash, len(all))
	for i, op := range all {
		allHashes[i] = op.Hash
	}
	ops, err := s.OpData(ctx, space, append(allHashes, types.OpHash{1}))
	require.NoError(t, err)
	require.Equal(t, all, ops)
}
