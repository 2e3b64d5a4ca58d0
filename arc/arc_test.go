package arc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/spacemeshos/go-shardgossip/codec"
)

func genArc() *rapid.Generator[Arc] {
	return rapid.Custom(func(t *rapid.T) Arc {
		center := rapid.Uint32().Draw(t, "center")
		half := rapid.OneOf(
			rapid.Uint32Range(0, 64),
			rapid.Uint32Range(0, MaxHalfLength),
			rapid.Just(MaxHalfLength),
		).Draw(t, "half")
		return Arc{Center: Loc(center), HalfLength: half}
	})
}

func genLoc(a Arc) *rapid.Generator[Loc] {
	// points near the arc edges are the interesting ones
	iv := a.Interval()
	return rapid.OneOf(
		rapid.Map(rapid.Uint32(), func(v uint32) Loc { return Loc(v) }),
		rapid.Map(rapid.Uint32Range(0, 4), func(d uint32) Loc { return iv.Start + Loc(d) - 2 }),
		rapid.Map(rapid.Uint32Range(0, 4), func(d uint32) Loc {
			return iv.Start + Loc(uint32(iv.Len)) + Loc(d) - 2
		}),
		rapid.Just(Loc(0)),
		rapid.Just(Loc(^uint32(0))),
	)
}

func TestNewArc(t *testing.T) {
	_, err := NewArc(1, MaxHalfLength+1)
	require.ErrorIs(t, err, ErrInvalidArc)
	a, err := NewArc(1, MaxHalfLength)
	require.NoError(t, err)
	require.True(t, a.Full())

	_, err = NewInterval(0, SpaceLen+1)
	require.ErrorIs(t, err, ErrInvalidArc)
}

func TestArcLen(t *testing.T) {
	for _, tc := range []struct {
		half   uint32
		length uint64
	}{
		{0, 0},
		{1, 1},
		{2, 3},
		{1 << 31, SpaceLen - 1},
		{MaxHalfLength, SpaceLen},
	} {
		a := Arc{Center: 10, HalfLength: tc.half}
		require.Equal(t, tc.length, a.Len(), "half %d", tc.half)
		require.Equal(t, tc.length, a.Set().Len(), "half %d", tc.half)
	}
	a := Arc{Center: 10, HalfLength: 1}
	require.True(t, a.Contains(10))
	require.False(t, a.Contains(9))
	require.False(t, a.Contains(11))
	require.False(t, EmptyArc(10).Contains(10))
}

func TestIntersectCommutative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genArc().Draw(t, "a")
		b := genArc().Draw(t, "b")
		ab := Intersect(a, b)
		ba := Intersect(b, a)
		if !ab.Equal(ba) {
			t.Fatalf("intersect(%s, %s) = %s, reverse %s", a, b, ab, ba)
		}
		if ab.Digest() != ba.Digest() {
			t.Fatalf("digests differ for %s", ab)
		}
	})
}

func TestIntersectContains(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genArc().Draw(t, "a")
		b := genArc().Draw(t, "b")
		p := genLoc(a).Draw(t, "p")
		in := Intersect(a, b).Contains(p)
		if in != (a.Contains(p) && b.Contains(p)) {
			t.Fatalf("point %s: intersect(%s, %s) contains=%v, a=%v, b=%v",
				p, a, b, in, a.Contains(p), b.Contains(p))
		}
	})
}

func TestUnionContains(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genArc().Draw(t, "a")
		b := genArc().Draw(t, "b")
		p := genLoc(b).Draw(t, "p")
		u := Union(a.Set(), b.Set())
		if u.Contains(p) != (a.Contains(p) || b.Contains(p)) {
			t.Fatalf("point %s: union(%s, %s) = %s", p, a, b, u)
		}
		if !u.Equal(b.Set().Union(a.Set())) {
			t.Fatalf("union is not commutative for %s, %s", a, b)
		}
		if u.Len() > a.Len()+b.Len() || u.Len() < max(a.Len(), b.Len()) {
			t.Fatalf("bad union length %d for %s, %s", u.Len(), a, b)
		}
	})
}

func TestWraparound(t *testing.T) {
	// covers [0xffffffd1, 0xffffffff] and [0, 0x0f]
	wrap := Arc{Center: 0xfffffff0, HalfLength: 0x20}
	require.True(t, wrap.Contains(0))
	require.True(t, wrap.Contains(0x0f))
	require.False(t, wrap.Contains(0x10))
	require.True(t, wrap.Contains(0xffffffd1))
	require.False(t, wrap.Contains(0xffffffd0))

	low := Arc{Center: 50, HalfLength: 50} // [1, 100)
	high := Arc{Center: 0xffffffe0, HalfLength: 4}

	lowCommon := Intersect(wrap, low)
	require.Equal(t, []Interval{{Start: 1, Len: 15}}, lowCommon.Intervals())
	highCommon := Intersect(wrap, high)
	require.Equal(t, []Interval{{Start: 0xffffffdd, Len: 7}}, highCommon.Intervals())

	both := Union(lowCommon, highCommon)
	require.True(t, both.Contains(5))
	require.True(t, both.Contains(0xffffffe0))
	require.False(t, both.Contains(0))

	// coalescing across the boundary keeps two linear spans
	s := NewSet(Interval{Start: 0xfffffff0, Len: 0x20})
	require.Equal(t, []Interval{{Start: 0, Len: 0x10}, {Start: 0xfffffff0, Len: 0x10}}, s.Intervals())
	require.Equal(t, uint64(0x20), s.Len())
}

func TestUnionCoalesce(t *testing.T) {
	s := NewSet(
		Interval{Start: 10, Len: 10},
		Interval{Start: 20, Len: 5},
		Interval{Start: 0, Len: 3},
		Interval{Start: 2, Len: 2},
	)
	require.Equal(t, []Interval{{Start: 0, Len: 4}, {Start: 10, Len: 15}}, s.Intervals())
	require.True(t, Union(s, FullSet()).Full())
	require.True(t, s.Intersect(Set{}).Empty())
	require.True(t, Union().Empty())
}

func TestSetCodec(t *testing.T) {
	s := NewSet(Interval{Start: 0xfffffff0, Len: 0x20}, Interval{Start: 100, Len: 7})
	buf, err := codec.Encode(&s)
	require.NoError(t, err)
	var decoded Set
	require.NoError(t, codec.Decode(buf, &decoded))
	require.True(t, s.Equal(decoded))
	require.Equal(t, s.Digest(), decoded.Digest())

	bad := Interval{Len: SpaceLen + 1}
	buf, err = codec.Encode(&bad)
	require.NoError(t, err)
	var iv Interval
	require.ErrorIs(t, codec.Decode(buf, &iv), ErrInvalidArc)

	badArc := Arc{HalfLength: MaxHalfLength + 1}
	buf, err = codec.Encode(&badArc)
	require.NoError(t, err)
	var a Arc
	require.ErrorIs(t, codec.Decode(buf, &a), ErrInvalidArc)
}

func TestLocOf(t *testing.T) {
	require.Equal(t, LocOf([]byte("agent")), LocOf([]byte("agent")))
	require.NotEqual(t, LocOf([]byte("agent-1")), LocOf([]byte("agent-2")))
}
