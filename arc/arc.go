// Package arc models the circular key space of a sharded DHT and the
// intervals (arcs) of it that agents claim responsibility for.
package arc

import (
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-shardgossip/hash"
)

const (
	// SpaceLen is the number of points in the circular key space.
	SpaceLen uint64 = 1 << 32
	// MaxHalfLength is the half length of an arc that claims the whole space.
	MaxHalfLength uint32 = 1<<31 + 1
)

// ErrInvalidArc is returned when an arc or interval doesn't fit in the key space.
var ErrInvalidArc = errors.New("invalid arc")

// Loc is a point in the circular key space.
type Loc uint32

// LocOf returns the key space location of the given bytes, such as an agent
// public key or a basis hash. The sha256 digest of the bytes is folded into 32 bits.
func LocOf(b []byte) Loc {
	d := hash.Digest(b)
	var l uint32
	for i := 0; i < len(d); i += 4 {
		l ^= uint32(d[i])<<24 | uint32(d[i+1])<<16 | uint32(d[i+2])<<8 | uint32(d[i+3])
	}
	return Loc(l)
}

// String implements fmt.Stringer.
func (l Loc) String() string {
	return fmt.Sprintf("0x%08x", uint32(l))
}

// Arc is the part of the key space claimed by an agent, given as a center point
// and a half length. A zero half length claims nothing, a half length of h
// claims the 2h-1 points centered on Center, and MaxHalfLength claims the
// whole space.
type Arc struct {
	Center     Loc
	HalfLength uint32
}

// NewArc creates a validated Arc.
func NewArc(center Loc, halfLength uint32) (Arc, error) {
	if halfLength > MaxHalfLength {
		return Arc{}, fmt.Errorf("%w: half length %d > %d", ErrInvalidArc, halfLength, MaxHalfLength)
	}
	return Arc{Center: center, HalfLength: halfLength}, nil
}

// FullArc returns an arc that claims the whole key space.
func FullArc(center Loc) Arc {
	return Arc{Center: center, HalfLength: MaxHalfLength}
}

// EmptyArc returns an arc that claims nothing.
func EmptyArc(center Loc) Arc {
	return Arc{Center: center}
}

// Len returns the number of points claimed by the arc.
func (a Arc) Len() uint64 {
	if a.HalfLength == 0 {
		return 0
	}
	return min(2*uint64(a.HalfLength)-1, SpaceLen)
}

// Full returns true if the arc claims the whole key space.
func (a Arc) Full() bool {
	return a.Len() == SpaceLen
}

// Interval returns the arc as an interval starting at its lowest point.
func (a Arc) Interval() Interval {
	l := a.Len()
	switch l {
	case 0:
		return Interval{Start: a.Center}
	case SpaceLen:
		return Interval{Len: SpaceLen}
	}
	return Interval{Start: a.Center - Loc(a.HalfLength-1), Len: l}
}

// Contains returns true if the point is claimed by the arc.
func (a Arc) Contains(p Loc) bool {
	return a.Interval().Contains(p)
}

// Set returns the arc as a Set.
func (a Arc) Set() Set {
	return NewSet(a.Interval())
}

// String implements fmt.Stringer.
func (a Arc) String() string {
	return fmt.Sprintf("arc(%s±%d)", a.Center, a.HalfLength)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (a Arc) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("center", a.Center.String())
	enc.AddUint32("half_length", a.HalfLength)
	return nil
}

// EncodeScale implements scale.Encodable.
func (a *Arc) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeCompact32(enc, uint32(a.Center))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact32(enc, a.HalfLength)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
// Arcs with out of range half length are rejected.
func (a *Arc) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		a.Center = Loc(field)
	}
	{
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		if field > MaxHalfLength {
			return total, fmt.Errorf("%w: half length %d", ErrInvalidArc, field)
		}
		a.HalfLength = field
	}
	return total, nil
}

// Interval is a contiguous, possibly wrapping, part of the key space
// [Start, Start+Len) modulo SpaceLen.
type Interval struct {
	Start Loc
	Len   uint64
}

// NewInterval creates a validated Interval.
func NewInterval(start Loc, length uint64) (Interval, error) {
	if length > SpaceLen {
		return Interval{}, fmt.Errorf("%w: interval length %d", ErrInvalidArc, length)
	}
	return Interval{Start: start, Len: length}, nil
}

// Contains returns true if the point lies within the interval.
func (i Interval) Contains(p Loc) bool {
	return uint64(uint32(p-i.Start)) < i.Len
}

// String implements fmt.Stringer.
func (i Interval) String() string {
	return fmt.Sprintf("[%s+%d)", i.Start, i.Len)
}

func (i Interval) spans() []span {
	switch {
	case i.Len == 0:
		return nil
	case i.Len >= SpaceLen:
		return []span{{0, SpaceLen}}
	}
	lo := uint64(i.Start)
	hi := lo + i.Len
	if hi <= SpaceLen {
		return []span{{lo, hi}}
	}
	return []span{{lo, SpaceLen}, {0, hi - SpaceLen}}
}

// EncodeScale implements scale.Encodable.
func (i *Interval) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeCompact32(enc, uint32(i.Start))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, i.Len)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (i *Interval) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		i.Start = Loc(field)
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		if field > SpaceLen {
			return total, fmt.Errorf("%w: interval length %d", ErrInvalidArc, field)
		}
		i.Len = field
	}
	return total, nil
}
