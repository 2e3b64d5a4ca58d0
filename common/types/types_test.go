package types

import (
	"testing"
	"time"

	"github.com/spacemeshos/go-scale/tester"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/codec"
)

func TestOpHash(t *testing.T) {
	op := NewOp(10, 1000, []byte("payload"))
	require.NoError(t, op.Validate())
	require.Equal(t, op.Hash, NewOp(10, 1000, []byte("payload")).Hash)
	require.NotEqual(t, op.Hash, NewOp(11, 1000, []byte("payload")).Hash)
	require.NotEqual(t, op.Hash, NewOp(10, 1001, []byte("payload")).Hash)

	tampered := *op
	tampered.Payload = []byte("tampered")
	require.ErrorIs(t, tampered.Validate(), ErrHashMismatch)
}

func TestOpCodec(t *testing.T) {
	op := NewOp(0xfffffff0, 42, []byte{1, 2, 3})
	buf := codec.MustEncode(op)
	var decoded Op
	require.NoError(t, codec.Decode(buf, &decoded))
	require.Equal(t, *op, decoded)
	require.NoError(t, decoded.Validate())

	big := &Op{Payload: make([]byte, MaxPayloadSize+1)}
	_, err := codec.Encode(big)
	require.Error(t, err)
}

func TestOpPayloadTooLarge(t *testing.T) {
	var op *Op
	require.NotPanics(t, func() { op = NewOp(10, 1000, make([]byte, MaxPayloadSize+1)) })
	require.ErrorIs(t, op.Validate(), ErrPayloadTooLarge)
	require.NotEqual(t, op.Hash, NewOp(10, 1000, make([]byte, MaxPayloadSize)).Hash)

	limit := NewOp(10, 1000, make([]byte, MaxPayloadSize))
	require.NoError(t, limit.Validate())
	_, err := codec.Encode(limit)
	require.NoError(t, err)
}

func TestAgentInfoCodec(t *testing.T) {
	info := AgentInfo{
		Space:     SpaceID{1},
		Agent:     AgentID{2},
		Arc:       arc.Arc{Center: 100, HalfLength: 50},
		SignedAt:  10,
		ExpiresAt: 20,
		Addresses: []string{"mem://a", "mem://b"},
		Signature: Signature{3},
	}
	buf := codec.MustEncode(&info)
	var decoded AgentInfo
	require.NoError(t, codec.Decode(buf, &decoded))
	require.Equal(t, info, decoded)

	signed := info.SignedBytes()
	require.Less(t, len(signed), len(buf))
	require.Equal(t, buf[:len(signed)], signed)

	info.Signature = Signature{4}
	require.Equal(t, signed, info.SignedBytes(), "signature is not part of signed bytes")

	info.Addresses = make([]string, MaxAddresses+1)
	_, err := codec.Encode(&info)
	require.Error(t, err)
}

func TestAgentInfoOrdering(t *testing.T) {
	older := &AgentInfo{SignedAt: 1, Signature: Signature{9}}
	newer := &AgentInfo{SignedAt: 2, Signature: Signature{1}}
	require.True(t, newer.Newer(older))
	require.False(t, older.Newer(newer))

	tie := &AgentInfo{SignedAt: 2, Signature: Signature{2}}
	require.True(t, tie.Newer(newer))
	require.False(t, newer.Newer(tie))
	require.False(t, tie.Newer(tie))
}

func TestAgentInfoExpiry(t *testing.T) {
	now := TimestampFrom(time.Now())
	info := AgentInfo{ExpiresAt: now}
	require.True(t, info.IsExpired(now))
	require.False(t, info.IsExpired(now-1))
}

func TestTimeWindow(t *testing.T) {
	w := TimeWindow{Start: 10, End: 20}
	require.True(t, w.Contains(10))
	require.True(t, w.Contains(19))
	require.False(t, w.Contains(20))
	require.False(t, w.Contains(9))
	require.True(t, FullTimeWindow().Contains(0))

	ts := TimestampFrom(time.UnixMicro(123456))
	require.Equal(t, Timestamp(123456), ts)
	require.Equal(t, int64(123456), ts.Time().UnixMicro())
}

func TestAgentLoc(t *testing.T) {
	a := AgentID{1, 2, 3}
	require.Equal(t, arc.LocOf(a[:]), a.Loc())
	require.Equal(t, "0102030000", a.ShortString())
	require.Equal(t, 0, a.Compare(BytesToAgentID(a[:])))
}

func FuzzAgentIDConsistency(f *testing.F) {
	tester.FuzzConsistency[AgentID](f)
}

func FuzzOpConsistency(f *testing.F) {
	tester.FuzzConsistency[Op](f)
}

func FuzzAgentInfoSafety(f *testing.F) {
	tester.FuzzSafety[AgentInfo](f)
}

func FuzzOpSafety(f *testing.F) {
	tester.FuzzSafety[Op](f)
}
