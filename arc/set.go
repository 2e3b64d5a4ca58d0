package arc

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/spacemeshos/go-scale"

	"github.com/spacemeshos/go-shardgossip/hash"
)

// MaxIntervals is the maximum number of intervals in an encoded Set.
const MaxIntervals = 1024

// span is a linear half-open range [lo, hi) with 0 <= lo < hi <= SpaceLen.
type span struct {
	lo, hi uint64
}

// Set is a normalized set of key space intervals. Wrapping intervals are
// stored as two linear spans, spans are sorted and never overlap or touch.
// The zero value is the empty set.
type Set struct {
	spans []span
}

// NewSet creates a Set covering the union of the intervals.
func NewSet(intervals ...Interval) Set {
	var spans []span
	for _, i := range intervals {
		spans = append(spans, i.spans()...)
	}
	return Set{spans: normalize(spans)}
}

// FullSet returns the set covering the whole key space.
func FullSet() Set {
	return Set{spans: []span{{0, SpaceLen}}}
}

// SetFromIntervals validates the intervals and creates a Set out of them.
func SetFromIntervals(intervals []Interval) (Set, error) {
	if len(intervals) > MaxIntervals {
		return Set{}, fmt.Errorf("%w: too many intervals (%d)", ErrInvalidArc, len(intervals))
	}
	for _, i := range intervals {
		if i.Len > SpaceLen {
			return Set{}, fmt.Errorf("%w: interval %s", ErrInvalidArc, i)
		}
	}
	return NewSet(intervals...), nil
}

func normalize(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].lo < spans[j].lo
	})
	out := make([]span, 0, len(spans))
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.lo <= cur.hi {
			cur.hi = max(cur.hi, s.hi)
			continue
		}
		out = append(out, cur)
		cur = s
	}
	return append(out, cur)
}

// Intersect returns the part of the key space claimed by both arcs.
func Intersect(a, b Arc) Set {
	return a.Set().Intersect(b.Set())
}

// Union returns the union of the sets.
func Union(sets ...Set) Set {
	var spans []span
	for _, s := range sets {
		spans = append(spans, s.spans...)
	}
	return Set{spans: normalize(spans)}
}

// Intersect returns the intersection of the two sets.
func (s Set) Intersect(other Set) Set {
	var out []span
	i, j := 0, 0
	for i < len(s.spans) && j < len(other.spans) {
		a, b := s.spans[i], other.spans[j]
		lo := max(a.lo, b.lo)
		hi := min(a.hi, b.hi)
		if lo < hi {
			out = append(out, span{lo, hi})
		}
		if a.hi < b.hi {
			i++
		} else {
			j++
		}
	}
	return Set{spans: out}
}

// Union returns the union of the two sets.
func (s Set) Union(other Set) Set {
	return Union(s, other)
}

// Contains returns true if the point is covered by the set.
func (s Set) Contains(p Loc) bool {
	v := uint64(p)
	n := sort.Search(len(s.spans), func(i int) bool {
		return s.spans[i].hi > v
	})
	return n < len(s.spans) && s.spans[n].lo <= v
}

// Overlaps returns true if the sets have any point in common.
func (s Set) Overlaps(other Set) bool {
	return !s.Intersect(other).Empty()
}

// Empty returns true if the set covers nothing.
func (s Set) Empty() bool {
	return len(s.spans) == 0
}

// Full returns true if the set covers the whole key space.
func (s Set) Full() bool {
	return len(s.spans) == 1 && s.spans[0] == span{0, SpaceLen}
}

// Len returns the number of points covered by the set.
func (s Set) Len() uint64 {
	var l uint64
	for _, sp := range s.spans {
		l += sp.hi - sp.lo
	}
	return l
}

// Equal returns true if both sets cover exactly the same points.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.spans, other.spans)
}

// Intervals returns the linear intervals making up the set, in ascending order.
func (s Set) Intervals() []Interval {
	if len(s.spans) == 0 {
		return nil
	}
	r := make([]Interval, len(s.spans))
	for n, sp := range s.spans {
		r[n] = Interval{Start: Loc(sp.lo), Len: sp.hi - sp.lo}
	}
	return r
}

// Digest returns a digest of the canonical representation of the set.
// Equal sets always have equal digests.
func (s Set) Digest() [hash.Size]byte {
	buf := make([]byte, 0, 16*len(s.spans))
	for _, sp := range s.spans {
		buf = binary.BigEndian.AppendUint64(buf, sp.lo)
		buf = binary.BigEndian.AppendUint64(buf, sp.hi)
	}
	return hash.Digest(buf)
}

// String implements fmt.Stringer.
func (s Set) String() string {
	if s.Empty() {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteString("{")
	for n, sp := range s.spans {
		if n > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "[%d,%d)", sp.lo, sp.hi)
	}
	sb.WriteString("}")
	return sb.String()
}

// EncodeScale implements scale.Encodable.
func (s *Set) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, s.Intervals(), MaxIntervals)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (s *Set) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeStructSliceWithLimit[Interval](dec, MaxIntervals)
		if err != nil {
			return total, err
		}
		total += n
		set, err := SetFromIntervals(field)
		if err != nil {
			return total, err
		}
		*s = set
	}
	return total, nil
}
