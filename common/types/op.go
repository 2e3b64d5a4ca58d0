package types

import (
	"errors"
	"fmt"
	"math"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/hash"
)

// MaxPayloadSize is the maximum size of an op payload.
const MaxPayloadSize = 1 << 20

// ErrPayloadTooLarge is returned for ops with payloads over MaxPayloadSize.
var ErrPayloadTooLarge = errors.New("payload too large")

// Op is an immutable content-addressed datum replicated between agents
// whose arcs cover its basis location.
type Op struct {
	Hash      OpHash
	Basis     arc.Loc
	Timestamp Timestamp
	Payload   []byte
}

// NewOp creates an op and computes its hash.
func NewOp(basis arc.Loc, ts Timestamp, payload []byte) *Op {
	op := &Op{Basis: basis, Timestamp: ts, Payload: payload}
	op.Hash = op.ComputeHash()
	return op
}

// ComputeHash computes the hash of the op contents. The hash is defined
// for payloads of any size.
func (op *Op) ComputeHash() OpHash {
	hh := hash.GetHasher()
	defer hash.PutHasher(hh)
	// writes to the hasher don't fail and the length is not limited
	_, _ = op.encodeContents(scale.NewEncoder(hh), math.MaxUint32)
	var rst OpHash
	hh.Sum(rst[:0])
	return rst
}

// Validate checks the payload size and that the claimed hash matches the
// op contents.
func (op *Op) Validate() error {
	if len(op.Payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(op.Payload))
	}
	if computed := op.ComputeHash(); computed != op.Hash {
		return fmt.Errorf("%w: claimed %s computed %s", ErrHashMismatch, op.Hash.ShortString(), computed.ShortString())
	}
	return nil
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (op *Op) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("hash", op.Hash.ShortString())
	enc.AddString("basis", op.Basis.String())
	enc.AddString("timestamp", op.Timestamp.String())
	enc.AddInt("payload_size", len(op.Payload))
	return nil
}

func (op *Op) encodeContents(enc *scale.Encoder, limit uint32) (total int, err error) {
	{
		n, err := scale.EncodeCompact32(enc, uint32(op.Basis))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, uint64(op.Timestamp))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, op.Payload, limit)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// EncodeScale implements scale.Encodable.
func (op *Op) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(enc, op.Hash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := op.encodeContents(enc, MaxPayloadSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (op *Op) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(dec, op.Hash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		op.Basis = arc.Loc(field)
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		op.Timestamp = Timestamp(field)
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, MaxPayloadSize)
		if err != nil {
			return total, err
		}
		total += n
		op.Payload = field
	}
	return total, nil
}
