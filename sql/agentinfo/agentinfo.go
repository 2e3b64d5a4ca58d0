// Package agentinfo persists agent info records with last-write-wins semantics.
package agentinfo

import (
	"fmt"

	"github.com/spacemeshos/go-shardgossip/codec"
	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/sql"
)

// Put stores the record unless a newer one for the same agent is already stored.
// It returns true if the record was written.
func Put(db sql.Executor, info *types.AgentInfo) (bool, error) {
	rows, err := db.Exec(`insert into agent_infos
		(space, agent, signed_at, expires_at, signature, info)
		values (?1, ?2, ?3, ?4, ?5, ?6)
		on conflict (space, agent) do update set
			signed_at = excluded.signed_at,
			expires_at = excluded.expires_at,
			signature = excluded.signature,
			info = excluded.info
		where excluded.signed_at > agent_infos.signed_at
			or (excluded.signed_at = agent_infos.signed_at and excluded.signature > agent_infos.signature)
		returning 1;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, info.Space[:])
			stmt.BindBytes(2, info.Agent[:])
			stmt.BindInt64(3, int64(info.SignedAt))
			stmt.BindInt64(4, int64(info.ExpiresAt))
			stmt.BindBytes(5, info.Signature[:])
			stmt.BindBytes(6, codec.MustEncode(info))
		}, nil)
	if err != nil {
		return false, fmt.Errorf("put agent info %s: %w", info.Agent.ShortString(), err)
	}
	return rows > 0, nil
}

func decode(stmt *sql.Statement) (*types.AgentInfo, error) {
	var info types.AgentInfo
	if _, err := codec.DecodeFrom(stmt.ColumnReader(0), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Get returns the stored record of the agent.
func Get(db sql.Executor, space types.SpaceID, agent types.AgentID) (*types.AgentInfo, error) {
	var (
		rst  *types.AgentInfo
		err2 error
	)
	rows, err := db.Exec("select info from agent_infos where space = ?1 and agent = ?2;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, space[:])
			stmt.BindBytes(2, agent[:])
		},
		func(stmt *sql.Statement) bool {
			rst, err2 = decode(stmt)
			return true
		},
	)
	if err != nil {
		return nil, fmt.Errorf("get agent info %s: %w", agent.ShortString(), err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("agent info %s: %w", agent.ShortString(), sql.ErrNotFound)
	}
	if err2 != nil {
		return nil, fmt.Errorf("decode agent info %s: %w", agent.ShortString(), err2)
	}
	return rst, nil
}

// All returns all records of the space that are not expired at the given time,
// ordered by agent.
func All(db sql.Executor, space types.SpaceID, now types.Timestamp) ([]*types.AgentInfo, error) {
	var (
		rst  []*types.AgentInfo
		err2 error
	)
	if _, err := db.Exec(`select info from agent_infos
		where space = ?1 and expires_at > ?2
		order by agent;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, space[:])
			stmt.BindInt64(2, int64(now))
		},
		func(stmt *sql.Statement) bool {
			var info *types.AgentInfo
			info, err2 = decode(stmt)
			if err2 != nil {
				return false
			}
			rst = append(rst, info)
			return true
		},
	); err != nil {
		return nil, fmt.Errorf("all agent infos: %w", err)
	}
	if err2 != nil {
		return nil, fmt.Errorf("decode agent info: %w", err2)
	}
	return rst, nil
}

// DeleteExpired removes records that expired before the given time.
func DeleteExpired(db sql.Executor, space types.SpaceID, now types.Timestamp) (int, error) {
	rows, err := db.Exec(`delete from agent_infos where space = ?1 and expires_at <= ?2 returning 1;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, space[:])
			stmt.BindInt64(2, int64(now))
		}, nil)
	if err != nil {
		return 0, fmt.Errorf("delete expired agent infos: %w", err)
	}
	return rows, nil
}
