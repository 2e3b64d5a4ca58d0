package agentinfo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/sql"
)

func newInfo(agent byte, signedAt types.Timestamp) *types.AgentInfo {
	return &types.AgentInfo{
		Space:     types.SpaceID{1},
		Agent:     types.AgentID{agent},
		Arc:       arc.Arc{Center: 10, HalfLength: 5},
		SignedAt:  signedAt,
		ExpiresAt: signedAt + 1000,
		Addresses: []string{"mem://node"},
		Signature: types.Signature{agent, byte(signedAt)},
	}
}

func TestLastWriteWins(t *testing.T) {
	db := sql.InMemory()
	t1 := newInfo(1, 10)
	t2 := newInfo(1, 20)
	t2.Arc = arc.FullArc(0)

	written, err := Put(db, t1)
	require.NoError(t, err)
	require.True(t, written)
	written, err = Put(db, t2)
	require.NoError(t, err)
	require.True(t, written)

	// older record doesn't downgrade
	written, err = Put(db, t1)
	require.NoError(t, err)
	require.False(t, written)
	// same record is a no-op
	written, err = Put(db, t2)
	require.NoError(t, err)
	require.False(t, written)

	got, err := Get(db, t2.Space, t2.Agent)
	require.NoError(t, err)
	require.Equal(t, t2, got)

	all, err := All(db, t2.Space, 0)
	require.NoError(t, err)
	require.Equal(t, []*types.AgentInfo{t2}, all)
}

func TestGetNotFound(t *testing.T) {
	db := sql.InMemory()
	_, err := Get(db, types.SpaceID{1}, types.AgentID{1})
	require.ErrorIs(t, err, sql.ErrNotFound)
}

func TestAllExpiry(t *testing.T) {
	db := sql.InMemory()
	a := newInfo(1, 10)
	b := newInfo(2, 500)
	other := newInfo(3, 10)
	other.Space = types.SpaceID{2}
	for _, info := range []*types.AgentInfo{b, a, other} {
		_, err := Put(db, info)
		require.NoError(t, err)
	}

	all, err := All(db, a.Space, 0)
	require.NoError(t, err)
	require.Equal(t, []*types.AgentInfo{a, b}, all)

	all, err = All(db, a.Space, a.ExpiresAt)
	require.NoError(t, err)
	require.Equal(t, []*types.AgentInfo{b}, all)

	deleted, err := DeleteExpired(db, a.Space, a.ExpiresAt)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	_, err = Get(db, a.Space, a.Agent)
	require.ErrorIs(t, err, sql.ErrNotFound)
}
