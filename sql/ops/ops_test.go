package ops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/sql"
)

var space = types.SpaceID{1}

func TestAddIdempotent(t *testing.T) {
	db := sql.InMemory()
	op := types.NewOp(10, 100, []byte("data"))

	added, err := Add(db, space, op)
	require.NoError(t, err)
	require.True(t, added)
	added, err = Add(db, space, op)
	require.NoError(t, err)
	require.False(t, added)

	count, err := Count(db, space)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	has, err := Has(db, space, op.Hash)
	require.NoError(t, err)
	require.True(t, has)
	has, err = Has(db, types.SpaceID{2}, op.Hash)
	require.NoError(t, err)
	require.False(t, has)

	got, err := Get(db, space, op.Hash)
	require.NoError(t, err)
	require.Equal(t, op, got)
	require.NoError(t, got.Validate())
}

func TestGetNotFound(t *testing.T) {
	db := sql.InMemory()
	_, err := Get(db, space, types.OpHash{1})
	require.ErrorIs(t, err, sql.ErrNotFound)
}

func TestEmptyPayload(t *testing.T) {
	db := sql.InMemory()
	op := types.NewOp(10, 100, nil)
	_, err := Add(db, space, op)
	require.NoError(t, err)
	got, err := Get(db, space, op.Hash)
	require.NoError(t, err)
	require.Empty(t, got.Payload)
	require.NoError(t, got.Validate())
}

func TestHashesInRange(t *testing.T) {
	db := sql.InMemory()
	var all []*types.Op
	for i := range 10 {
		op := types.NewOp(arc.Loc(i*10), types.Timestamp(i), []byte{byte(i)})
		_, err := Add(db, space, op)
		require.NoError(t, err)
		all = append(all, op)
	}
	top := types.NewOp(0xffffffff, 5, []byte("top"))
	_, err := Add(db, space, top)
	require.NoError(t, err)

	hashes, err := HashesInRange(db, space, 10, 40, types.FullTimeWindow())
	require.NoError(t, err)
	require.Equal(t, []types.OpHash{all[1].Hash, all[2].Hash, all[3].Hash}, hashes)

	hashes, err = HashesInRange(db, space, 0, 100, types.TimeWindow{Start: 8, End: 20})
	require.NoError(t, err)
	require.Equal(t, []types.OpHash{all[8].Hash, all[9].Hash}, hashes)

	hashes, err = HashesInRange(db, space, 0xfffffff0, arc.SpaceLen, types.FullTimeWindow())
	require.NoError(t, err)
	require.Equal(t, []types.OpHash{top.Hash}, hashes)

	got, err := GetMany(db, space, []types.OpHash{top.Hash, {9, 9}, all[0].Hash})
	require.NoError(t, err)
	require.Equal(t, []*types.Op{top, all[0]}, got)
}
