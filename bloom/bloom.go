// Package bloom implements bloom filter based set reconciliation for agent
// info records and op hashes.
package bloom

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/spacemeshos/go-scale"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

const (
	// MaxFilterBytes is the maximum size of an encoded filter.
	MaxFilterBytes = 4 << 20
	// maxHashFunctions bounds the number of hash functions accepted from the wire.
	maxHashFunctions = 64
	// headerSize is the size of the (m, k, bitset length) header of an encoded filter.
	headerSize = 24
	// AgentKeySize is the size of an agent info filter key.
	AgentKeySize = types.IDSize + 8
)

// ErrInvalidFilter is returned when an encoded filter can't be decoded.
var ErrInvalidFilter = errors.New("invalid bloom filter")

// AgentKey returns the filter key of an agent info record.
func AgentKey(agent types.AgentID, signedAt types.Timestamp) []byte {
	key := make([]byte, 0, AgentKeySize)
	key = append(key, agent[:]...)
	return binary.BigEndian.AppendUint64(key, uint64(signedAt))
}

// OpKey returns the filter key of an op.
func OpKey(h types.OpHash) []byte {
	return h[:]
}

// Filter is a bloom filter over agent info or op keys.
// Filters built from the same keys with the same parameters are identical.
type Filter struct {
	f *bloom.BloomFilter
}

// New creates a filter sized for n items with the target false positive rate.
func New(n int, fpr float64) *Filter {
	return &Filter{f: bloom.NewWithEstimates(uint(max(n, 1)), fpr)}
}

// Add adds a key to the filter.
func (f *Filter) Add(key []byte) {
	f.f.Add(key)
}

// Test returns false if the key was definitely never added to the filter.
func (f *Filter) Test(key []byte) bool {
	return f.f.Test(key)
}

// Bytes returns the binary representation of the filter.
func (f *Filter) Bytes() []byte {
	b, err := f.f.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("BUG: marshal bloom filter: %v", err))
	}
	return b
}

// Size returns the size of the binary representation in bytes.
func (f *Filter) Size() int {
	return headerSize + 8*int((f.f.Cap()+63)/64)
}

// Decode decodes a filter from its binary representation.
func Decode(b []byte) (*Filter, error) {
	if len(b) > MaxFilterBytes {
		return nil, fmt.Errorf("%w: size %d exceeds %d", ErrInvalidFilter, len(b), MaxFilterBytes)
	}
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrInvalidFilter)
	}
	// validate the header before the bitset gets allocated
	m := binary.BigEndian.Uint64(b[0:8])
	k := binary.BigEndian.Uint64(b[8:16])
	bits := binary.BigEndian.Uint64(b[16:24])
	switch {
	case m == 0 || m > 8*MaxFilterBytes:
		return nil, fmt.Errorf("%w: bad size %d", ErrInvalidFilter, m)
	case k == 0 || k > maxHashFunctions:
		return nil, fmt.Errorf("%w: bad number of hash functions %d", ErrInvalidFilter, k)
	case bits != m:
		return nil, fmt.Errorf("%w: bitset length %d != %d", ErrInvalidFilter, bits, m)
	}
	var bf bloom.BloomFilter
	if err := bf.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return &Filter{f: &bf}, nil
}

// Equal returns true if both filters have the same parameters and contents.
func (f *Filter) Equal(other *Filter) bool {
	return f.f.Equal(other.f)
}

// EncodeScale implements scale.Encodable.
func (f *Filter) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, f.Bytes(), MaxFilterBytes)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (f *Filter) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, MaxFilterBytes)
		if err != nil {
			return total, err
		}
		total += n
		decoded, err := Decode(field)
		if err != nil {
			return total, err
		}
		*f = *decoded
	}
	return total, nil
}

// BuildAgents builds a filter over the agent info records.
func BuildAgents(infos []*types.AgentInfo, fpr float64) *Filter {
	f := New(len(infos), fpr)
	for _, info := range infos {
		f.Add(AgentKey(info.Agent, info.SignedAt))
	}
	return f
}

// BuildOps builds a filter over the op hashes.
func BuildOps(hashes []types.OpHash, fpr float64) *Filter {
	f := New(len(hashes), fpr)
	for _, h := range hashes {
		f.Add(OpKey(h))
	}
	return f
}

// MissingAgents returns the records the filter builder definitely doesn't
// have, in input order.
func MissingAgents(f *Filter, infos []*types.AgentInfo) []*types.AgentInfo {
	var missing []*types.AgentInfo
	for _, info := range infos {
		if !f.Test(AgentKey(info.Agent, info.SignedAt)) {
			missing = append(missing, info)
		}
	}
	return missing
}

// MissingOps returns the op hashes the filter builder definitely doesn't
// have, in input order.
func MissingOps(f *Filter, hashes []types.OpHash) []types.OpHash {
	var missing []types.OpHash
	for _, h := range hashes {
		if !f.Test(OpKey(h)) {
			missing = append(missing, h)
		}
	}
	return missing
}
