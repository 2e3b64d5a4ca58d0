package bloom

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-shardgossip/codec"
	"github.com/spacemeshos/go-shardgossip/common/types"
)

func randomHash() (h types.OpHash) {
	if _, err := rand.Read(h[:]); err != nil {
		panic(err)
	}
	return h
}

func randomHashes(n int) []types.OpHash {
	hs := make([]types.OpHash, n)
	for i := range hs {
		hs[i] = randomHash()
	}
	return hs
}

func TestSoundness(t *testing.T) {
	hashes := randomHashes(1000)
	f := BuildOps(hashes, 0.01)
	for _, h := range hashes {
		require.True(t, f.Test(OpKey(h)))
	}
	require.Empty(t, MissingOps(f, hashes))

	decoded, err := Decode(f.Bytes())
	require.NoError(t, err)
	require.Empty(t, MissingOps(decoded, hashes))
}

func TestFalsePositiveRate(t *testing.T) {
	const (
		numInsert             = 1000
		falsePositiveRate     = 0.01
		numChecks             = 10000
		maxFalsePositiveCount = int(numChecks * falsePositiveRate * 2)
	)
	f := BuildOps(randomHashes(numInsert), falsePositiveRate)
	count := 0
	for range numChecks {
		if f.Test(OpKey(randomHash())) {
			count++
		}
	}
	t.Logf("false positives: %d, max: %d", count, maxFalsePositiveCount)
	require.GreaterOrEqual(t, maxFalsePositiveCount, count)
}

func TestDeterministic(t *testing.T) {
	hashes := randomHashes(100)
	a := BuildOps(hashes, 0.01)
	b := BuildOps(hashes, 0.01)
	require.Equal(t, a.Bytes(), b.Bytes())
	require.True(t, a.Equal(b))
	require.Len(t, a.Bytes(), a.Size())

	other := append(randomHashes(1), hashes...)
	missing := MissingOps(a, other)
	// false positives may hide the extra hash, but nothing else may be reported
	require.LessOrEqual(t, len(missing), 1)
	if len(missing) == 1 {
		require.Equal(t, other[0], missing[0])
	}
}

func TestMissingAgents(t *testing.T) {
	var infos []*types.AgentInfo
	for i := range 10 {
		infos = append(infos, &types.AgentInfo{
			Agent:    types.AgentID{byte(i)},
			SignedAt: types.Timestamp(100 + i),
		})
	}
	f := BuildAgents(infos[:5], 0.0001)
	missing := MissingAgents(f, infos)
	require.Equal(t, infos[5:], missing)

	// a newer record for a known agent is a different key
	newer := &types.AgentInfo{Agent: infos[0].Agent, SignedAt: infos[0].SignedAt + 1}
	require.Equal(t, []*types.AgentInfo{newer}, MissingAgents(f, []*types.AgentInfo{newer}))
}

func TestEmptyFilter(t *testing.T) {
	f := BuildOps(nil, 0.01)
	require.False(t, f.Test(OpKey(randomHash())))
	decoded, err := Decode(f.Bytes())
	require.NoError(t, err)
	require.True(t, f.Equal(decoded))
}

func TestDecodeInvalid(t *testing.T) {
	for _, tc := range []struct {
		desc string
		data []byte
	}{
		{"empty", nil},
		{"short", make([]byte, headerSize-1)},
		{"zero size", make([]byte, headerSize)},
		{"oversized", make([]byte, MaxFilterBytes+1)},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Decode(tc.data)
			require.ErrorIs(t, err, ErrInvalidFilter)
		})
	}

	b := New(10, 0.01).Bytes()
	_, err := Decode(b[:len(b)-1])
	require.ErrorIs(t, err, ErrInvalidFilter)

	huge := New(10, 0.01).Bytes()
	huge[0] = 0xff
	_, err = Decode(huge)
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestFilterCodec(t *testing.T) {
	f := BuildOps(randomHashes(50), 0.01)
	buf, err := codec.Encode(f)
	require.NoError(t, err)
	var decoded Filter
	require.NoError(t, codec.Decode(buf, &decoded))
	require.True(t, f.Equal(&decoded))
}
