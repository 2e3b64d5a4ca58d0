// Package ops persists immutable content-addressed ops.
package ops

import (
	"fmt"
	"strings"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/sql"
)

// Add stores the op. Adding an already known op is a no-op.
// It returns true if the op was not known before.
func Add(db sql.Executor, space types.SpaceID, op *types.Op) (bool, error) {
	rows, err := db.Exec(`insert into ops (space, hash, basis, timestamp, payload)
		values (?1, ?2, ?3, ?4, ?5)
		on conflict do nothing
		returning 1;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, space[:])
			stmt.BindBytes(2, op.Hash[:])
			stmt.BindInt64(3, int64(op.Basis))
			stmt.BindInt64(4, int64(op.Timestamp))
			stmt.BindBytes(5, op.Payload)
		}, nil)
	if err != nil {
		return false, fmt.Errorf("add op %s: %w", op.Hash.ShortString(), err)
	}
	return rows > 0, nil
}

// Has returns true if the op is stored.
func Has(db sql.Executor, space types.SpaceID, hash types.OpHash) (bool, error) {
	rows, err := db.Exec("select 1 from ops where space = ?1 and hash = ?2;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, space[:])
			stmt.BindBytes(2, hash[:])
		}, nil)
	if err != nil {
		return false, fmt.Errorf("has op %s: %w", hash.ShortString(), err)
	}
	return rows > 0, nil
}

func decode(stmt *sql.Statement) *types.Op {
	op := &types.Op{
		Basis:     arc.Loc(stmt.ColumnInt64(1)),
		Timestamp: types.Timestamp(stmt.ColumnInt64(2)),
	}
	stmt.ColumnBytes(0, op.Hash[:])
	if n := stmt.ColumnLen(3); n > 0 {
		op.Payload = make([]byte, n)
		stmt.ColumnBytes(3, op.Payload)
	}
	return op
}

// Get returns the stored op.
func Get(db sql.Executor, space types.SpaceID, hash types.OpHash) (*types.Op, error) {
	var rst *types.Op
	rows, err := db.Exec(`select hash, basis, timestamp, payload from ops
		where space = ?1 and hash = ?2;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, space[:])
			stmt.BindBytes(2, hash[:])
		},
		func(stmt *sql.Statement) bool {
			rst = decode(stmt)
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("get op %s: %w", hash.ShortString(), err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("op %s: %w", hash.ShortString(), sql.ErrNotFound)
	}
	return rst, nil
}

// GetMany returns the stored ops out of the requested ones, in request order.
// Unknown hashes are skipped.
func GetMany(db sql.Executor, space types.SpaceID, hashes []types.OpHash) ([]*types.Op, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	byHash := make(map[types.OpHash]*types.Op, len(hashes))
	query := fmt.Sprintf(`select hash, basis, timestamp, payload from ops
		where space = ?1 and hash in (?2%s);`, strings.Repeat(",?", len(hashes)-1))
	if _, err := db.Exec(query,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, space[:])
			for n, h := range hashes {
				stmt.BindBytes(n+2, h[:])
			}
		},
		func(stmt *sql.Statement) bool {
			op := decode(stmt)
			byHash[op.Hash] = op
			return true
		}); err != nil {
		return nil, fmt.Errorf("get ops: %w", err)
	}
	rst := make([]*types.Op, 0, len(byHash))
	for _, h := range hashes {
		if op, ok := byHash[h]; ok {
			rst = append(rst, op)
			delete(byHash, h)
		}
	}
	return rst, nil
}

// HashesInRange returns the hashes of the ops with basis in [lo, hi) and
// timestamp within the window, ordered by basis and hash.
func HashesInRange(
	db sql.Executor,
	space types.SpaceID,
	lo, hi uint64,
	window types.TimeWindow,
) ([]types.OpHash, error) {
	var rst []types.OpHash
	if _, err := db.Exec(`select hash from ops
		where space = ?1 and basis >= ?2 and basis < ?3
			and timestamp >= ?4 and timestamp < ?5
		order by basis, hash;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, space[:])
			stmt.BindInt64(2, int64(lo))
			stmt.BindInt64(3, int64(hi))
			stmt.BindInt64(4, int64(window.Start))
			stmt.BindInt64(5, int64(window.End))
		},
		func(stmt *sql.Statement) bool {
			var h types.OpHash
			stmt.ColumnBytes(0, h[:])
			rst = append(rst, h)
			return true
		}); err != nil {
		return nil, fmt.Errorf("op hashes in range [%d, %d): %w", lo, hi, err)
	}
	return rst, nil
}

// Count returns the number of ops stored in the space.
func Count(db sql.Executor, space types.SpaceID) (int, error) {
	var count int
	if _, err := db.Exec("select count(*) from ops where space = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, space[:])
		},
		func(stmt *sql.Statement) bool {
			count = stmt.ColumnInt(0)
			return true
		}); err != nil {
		return 0, fmt.Errorf("count ops: %w", err)
	}
	return count, nil
}
