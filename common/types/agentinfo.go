package types

import (
	"bytes"
	"fmt"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-shardgossip/arc"
)

const (
	// MaxAddresses is the maximum number of transport addresses in an AgentInfo.
	MaxAddresses = 16
	// MaxAddressLength is the maximum length of a single transport address.
	MaxAddressLength = 512
)

// AgentInfo is a signed record announcing the presence of an agent in a space,
// the arc it claims and the addresses it can be reached at.
// For each (Space, Agent) the record with the latest SignedAt wins.
type AgentInfo struct {
	Space     SpaceID
	Agent     AgentID
	Arc       arc.Arc
	SignedAt  Timestamp
	ExpiresAt Timestamp
	Addresses []string
	Signature Signature
}

// IsExpired returns true if the record is no longer valid at the given time.
func (ai *AgentInfo) IsExpired(now Timestamp) bool {
	return ai.ExpiresAt <= now
}

// Newer returns true if ai supersedes other. Records signed at the same time
// are ordered by signature bytes so that every node picks the same one.
func (ai *AgentInfo) Newer(other *AgentInfo) bool {
	if ai.SignedAt != other.SignedAt {
		return ai.SignedAt > other.SignedAt
	}
	return bytes.Compare(ai.Signature[:], other.Signature[:]) > 0
}

// SignedBytes returns the canonical encoding of the record without the signature.
func (ai *AgentInfo) SignedBytes() []byte {
	var buf bytes.Buffer
	if _, err := ai.encodeUnsigned(scale.NewEncoder(&buf)); err != nil {
		panic(fmt.Sprintf("BUG: encode agent info: %v", err))
	}
	return buf.Bytes()
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (ai *AgentInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("space", ai.Space.ShortString())
	enc.AddString("agent", ai.Agent.ShortString())
	enc.AddObject("arc", ai.Arc)
	enc.AddString("signed_at", ai.SignedAt.String())
	enc.AddString("expires_at", ai.ExpiresAt.String())
	return nil
}

func (ai *AgentInfo) encodeUnsigned(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(enc, ai.Space[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(enc, ai.Agent[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := ai.Arc.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, uint64(ai.SignedAt))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, uint64(ai.ExpiresAt))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		if len(ai.Addresses) > MaxAddresses {
			return total, fmt.Errorf("too many addresses: %d", len(ai.Addresses))
		}
		n, err := scale.EncodeCompact32(enc, uint32(len(ai.Addresses)))
		if err != nil {
			return total, err
		}
		total += n
		for _, addr := range ai.Addresses {
			n, err := scale.EncodeStringWithLimit(enc, addr, MaxAddressLength)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	return total, nil
}

// EncodeScale implements scale.Encodable.
func (ai *AgentInfo) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := ai.encodeUnsigned(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(enc, ai.Signature[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (ai *AgentInfo) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(dec, ai.Space[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.DecodeByteArray(dec, ai.Agent[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := ai.Arc.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		ai.SignedAt = Timestamp(field)
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		ai.ExpiresAt = Timestamp(field)
	}
	{
		count, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		if count > MaxAddresses {
			return total, fmt.Errorf("too many addresses: %d", count)
		}
		ai.Addresses = nil
		if count > 0 {
			ai.Addresses = make([]string, 0, count)
		}
		for range count {
			addr, n, err := scale.DecodeStringWithLimit(dec, MaxAddressLength)
			if err != nil {
				return total, err
			}
			total += n
			ai.Addresses = append(ai.Addresses, addr)
		}
	}
	{
		n, err := scale.DecodeByteArray(dec, ai.Signature[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
