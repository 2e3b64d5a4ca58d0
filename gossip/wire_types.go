package gossip

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/spacemeshos/go-scale"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/bloom"
	"github.com/spacemeshos/go-shardgossip/codec"
	"github.com/spacemeshos/go-shardgossip/common/types"
	"github.com/spacemeshos/go-shardgossip/hash"
)

const (
	// MaxMessageSize is the maximum size of an encoded frame.
	MaxMessageSize = 16 << 20
	// MaxAgentsInMessage is the maximum number of agent infos in a MissingAgents message.
	MaxAgentsInMessage = 1024
	// MaxOpsInMessage is the maximum number of ops in a MissingOps message.
	MaxOpsInMessage = 1024
	// MaxErrorLength is the maximum length of the text of an Error message.
	MaxErrorLength = 1024
)

// MessageKind identifies the type of the message carried by an Envelope.
type MessageKind byte

const (
	MessageKindInitiate MessageKind = iota + 1
	MessageKindAccept
	MessageKindAgents
	MessageKindOps
	MessageKindMissingAgents
	MessageKindNoAgents
	MessageKindMissingOps
	MessageKindBusy
	MessageKindError
)

var messageKinds = []string{
	"<none>",
	"initiate",
	"accept",
	"agents",
	"ops",
	"missingAgents",
	"noAgents",
	"missingOps",
	"busy",
	"error",
}

func (k MessageKind) String() string {
	if int(k) < len(messageKinds) {
		return messageKinds[k]
	}
	return fmt.Sprintf("<unknown %02x>", int(k))
}

// Nonce identifies a round.
type Nonce [16]byte

func newNonce() Nonce {
	return Nonce(uuid.New())
}

func (n Nonce) String() string {
	return uuid.UUID(n).String()
}

// EncodeScale implements scale.Encodable.
func (n *Nonce) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, n[:])
}

// DecodeScale implements scale.Decodable.
func (n *Nonce) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, n[:])
}

// Digest is the digest of a common arc set.
type Digest [hash.Size]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ShortString returns the first 10 characters of the digest, for logging purposes.
func (d Digest) ShortString() string {
	return d.String()[:10]
}

// EncodeScale implements scale.Encodable.
func (d *Digest) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, d[:])
}

// DecodeScale implements scale.Decodable.
func (d *Digest) DecodeScale(dec *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(dec, d[:])
}

func digestOf(s arc.Set) Digest {
	return Digest(s.Digest())
}

// Message is a gossip protocol message.
type Message interface {
	codec.Encodable
	codec.Decodable
	Kind() MessageKind
	RoundNonce() Nonce
}

// Envelope is a gossip frame.
type Envelope struct {
	Space SpaceID
	Type  GossipType
	Kind  MessageKind
	Body  []byte
}

// SpaceID is an alias to types.SpaceID.
type SpaceID = types.SpaceID

// EncodeScale implements scale.Encodable.
func (e *Envelope) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(enc, e.Space[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact8(enc, uint8(e.Type))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact8(enc, uint8(e.Kind))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, e.Body, MaxMessageSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (e *Envelope) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(dec, e.Space[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeCompact8(dec)
		if err != nil {
			return total, err
		}
		total += n
		e.Type = GossipType(field)
	}
	{
		field, n, err := scale.DecodeCompact8(dec)
		if err != nil {
			return total, err
		}
		total += n
		e.Kind = MessageKind(field)
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, MaxMessageSize)
		if err != nil {
			return total, err
		}
		total += n
		e.Body = field
	}
	return total, nil
}

// EncodeFrame encodes the message into a frame.
func EncodeFrame(space types.SpaceID, typ GossipType, msg Message) ([]byte, error) {
	body, err := codec.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	return codec.Encode(&Envelope{Space: space, Type: typ, Kind: msg.Kind(), Body: body})
}

// DecodeEnvelope decodes a frame without decoding the message body.
func DecodeEnvelope(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := codec.Decode(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %w", ErrProtocol, err)
	}
	return &env, nil
}

// DecodeMessage decodes the message carried by the envelope.
func DecodeMessage(env *Envelope) (Message, error) {
	var m Message
	switch env.Kind {
	case MessageKindInitiate:
		m = &InitiateMessage{}
	case MessageKindAccept:
		m = &AcceptMessage{}
	case MessageKindAgents:
		m = &AgentsMessage{}
	case MessageKindOps:
		m = &OpsMessage{}
	case MessageKindMissingAgents:
		m = &MissingAgentsMessage{}
	case MessageKindNoAgents:
		m = &NoAgentsMessage{}
	case MessageKindMissingOps:
		m = &MissingOpsMessage{}
	case MessageKindBusy:
		m = &BusyMessage{}
	case MessageKindError:
		m = &ErrorMessage{}
	default:
		return nil, fmt.Errorf("%w: invalid message kind %02x", ErrProtocol, byte(env.Kind))
	}
	if err := codec.Decode(env.Body, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProtocol, env.Kind, err)
	}
	return m, nil
}

func encodeBool(enc *scale.Encoder, v bool) (int, error) {
	if v {
		return scale.EncodeCompact8(enc, 1)
	}
	return scale.EncodeCompact8(enc, 0)
}

func decodeBool(dec *scale.Decoder) (bool, int, error) {
	v, n, err := scale.DecodeCompact8(dec)
	if err != nil {
		return false, n, err
	}
	switch v {
	case 0:
		return false, n, nil
	case 1:
		return true, n, nil
	default:
		return false, n, fmt.Errorf("invalid bool value %d", v)
	}
}

func encodeOptionalFilter(enc *scale.Encoder, f *bloom.Filter) (total int, err error) {
	{
		n, err := encodeBool(enc, f != nil)
		if err != nil {
			return total, err
		}
		total += n
	}
	if f != nil {
		n, err := f.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func decodeOptionalFilter(dec *scale.Decoder) (f *bloom.Filter, total int, err error) {
	present, n, err := decodeBool(dec)
	if err != nil {
		return nil, n, err
	}
	total += n
	if !present {
		return nil, total, nil
	}
	f = &bloom.Filter{}
	n, err = f.DecodeScale(dec)
	total += n
	if err != nil {
		return nil, total, err
	}
	return f, total, nil
}

func decodeFilter(dec *scale.Decoder) (*bloom.Filter, int, error) {
	f := &bloom.Filter{}
	n, err := f.DecodeScale(dec)
	if err != nil {
		return nil, n, err
	}
	return f, n, nil
}

// InitiateMessage starts a round. Intervals is the initiator's local arc set,
// Digest is the digest of the common arc set the initiator expects and the
// blooms are built over that set.
type InitiateMessage struct {
	Nonce      Nonce
	StartedAt  types.Timestamp
	Initiator  types.AgentID
	Intervals  arc.Set
	Digest     Digest
	AgentBloom *bloom.Filter
	OpsBloom   *bloom.Filter
}

var _ Message = &InitiateMessage{}

func (m *InitiateMessage) Kind() MessageKind { return MessageKindInitiate }
func (m *InitiateMessage) RoundNonce() Nonce { return m.Nonce }

// EncodeScale implements scale.Encodable.
func (m *InitiateMessage) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := m.Nonce.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, uint64(m.StartedAt))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Initiator.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Intervals.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeOptionalFilter(enc, m.AgentBloom)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeOptionalFilter(enc, m.OpsBloom)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (m *InitiateMessage) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := m.Nonce.DecodeScale(dec)
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
		m.StartedAt = types.Timestamp(field)
	}
	{
		n, err := m.Initiator.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Intervals.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := decodeOptionalFilter(dec)
		if err != nil {
			return total, err
		}
		total += n
		m.AgentBloom = field
	}
	{
		field, n, err := decodeOptionalFilter(dec)
		if err != nil {
			return total, err
		}
		total += n
		m.OpsBloom = field
	}
	return total, nil
}

// AcceptMessage answers an Initiate with the responder's local arc set, the
// digest of the common arc set and the responder's blooms over it.
type AcceptMessage struct {
	Nonce      Nonce
	Intervals  arc.Set
	Digest     Digest
	AgentBloom *bloom.Filter
	OpsBloom   *bloom.Filter
}

var _ Message = &AcceptMessage{}

func (m *AcceptMessage) Kind() MessageKind { return MessageKindAccept }
func (m *AcceptMessage) RoundNonce() Nonce { return m.Nonce }

// EncodeScale implements scale.Encodable.
func (m *AcceptMessage) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := m.Nonce.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Intervals.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeOptionalFilter(enc, m.AgentBloom)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeOptionalFilter(enc, m.OpsBloom)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (m *AcceptMessage) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := m.Nonce.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Intervals.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := decodeOptionalFilter(dec)
		if err != nil {
			return total, err
		}
		total += n
		m.AgentBloom = field
	}
	{
		field, n, err := decodeOptionalFilter(dec)
		if err != nil {
			return total, err
		}
		total += n
		m.OpsBloom = field
	}
	return total, nil
}

// bloomMessage is the common body of the Agents and Ops messages.
type bloomMessage struct {
	Nonce  Nonce
	Digest Digest
	Bloom  *bloom.Filter
}

func (m *bloomMessage) RoundNonce() Nonce { return m.Nonce }

// EncodeScale implements scale.Encodable.
func (m *bloomMessage) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := m.Nonce.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Bloom.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (m *bloomMessage) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := m.Nonce.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := decodeFilter(dec)
		if err != nil {
			return total, err
		}
		total += n
		m.Bloom = field
	}
	return total, nil
}

// AgentsMessage carries the initiator's agent bloom over the common arc set
// when the responder couldn't evaluate the one sent with Initiate.
type AgentsMessage struct{ bloomMessage }

var _ Message = &AgentsMessage{}

func (m *AgentsMessage) Kind() MessageKind { return MessageKindAgents }

// OpsMessage carries the initiator's ops bloom over the common arc set
// when the responder couldn't evaluate the one sent with Initiate.
type OpsMessage struct{ bloomMessage }

var _ Message = &OpsMessage{}

func (m *OpsMessage) Kind() MessageKind { return MessageKindOps }

// MissingAgentsMessage carries the agent infos the peer is missing.
type MissingAgentsMessage struct {
	Nonce  Nonce
	Digest Digest
	Agents []types.AgentInfo
}

var _ Message = &MissingAgentsMessage{}

func (m *MissingAgentsMessage) Kind() MessageKind { return MessageKindMissingAgents }
func (m *MissingAgentsMessage) RoundNonce() Nonce { return m.Nonce }

// EncodeScale implements scale.Encodable.
func (m *MissingAgentsMessage) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := m.Nonce.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, m.Agents, MaxAgentsInMessage)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (m *MissingAgentsMessage) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := m.Nonce.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[types.AgentInfo](dec, MaxAgentsInMessage)
		if err != nil {
			return total, err
		}
		total += n
		m.Agents = field
	}
	return total, nil
}

// NoAgentsMessage tells the peer that it isn't missing any agent infos.
type NoAgentsMessage struct {
	Nonce  Nonce
	Digest Digest
}

var _ Message = &NoAgentsMessage{}

func (m *NoAgentsMessage) Kind() MessageKind { return MessageKindNoAgents }
func (m *NoAgentsMessage) RoundNonce() Nonce { return m.Nonce }

// EncodeScale implements scale.Encodable.
func (m *NoAgentsMessage) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := m.Nonce.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (m *NoAgentsMessage) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := m.Nonce.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// MissingOpsMessage carries a batch of ops the peer is missing.
// Finished is set on the last batch of the round.
type MissingOpsMessage struct {
	Nonce    Nonce
	Digest   Digest
	Ops      []types.Op
	Finished bool
}

var _ Message = &MissingOpsMessage{}

func (m *MissingOpsMessage) Kind() MessageKind { return MessageKindMissingOps }
func (m *MissingOpsMessage) RoundNonce() Nonce { return m.Nonce }

// EncodeScale implements scale.Encodable.
func (m *MissingOpsMessage) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := m.Nonce.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, m.Ops, MaxOpsInMessage)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := encodeBool(enc, m.Finished)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (m *MissingOpsMessage) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := m.Nonce.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Digest.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[types.Op](dec, MaxOpsInMessage)
		if err != nil {
			return total, err
		}
		total += n
		m.Ops = field
	}
	{
		field, n, err := decodeBool(dec)
		if err != nil {
			return total, err
		}
		total += n
		m.Finished = field
	}
	return total, nil
}

// BusyMessage tells the initiator that the responder is at capacity.
type BusyMessage struct {
	Nonce Nonce
}

var _ Message = &BusyMessage{}

func (m *BusyMessage) Kind() MessageKind { return MessageKindBusy }
func (m *BusyMessage) RoundNonce() Nonce { return m.Nonce }

// EncodeScale implements scale.Encodable.
func (m *BusyMessage) EncodeScale(enc *scale.Encoder) (int, error) {
	return m.Nonce.EncodeScale(enc)
}

// DecodeScale implements scale.Decodable.
func (m *BusyMessage) DecodeScale(dec *scale.Decoder) (int, error) {
	return m.Nonce.DecodeScale(dec)
}

// ErrorMessage tells the peer that the sender dropped the round.
type ErrorMessage struct {
	Nonce   Nonce
	Message string
}

var _ Message = &ErrorMessage{}

func (m *ErrorMessage) Kind() MessageKind { return MessageKindError }
func (m *ErrorMessage) RoundNonce() Nonce { return m.Nonce }

// EncodeScale implements scale.Encodable.
func (m *ErrorMessage) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := m.Nonce.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStringWithLimit(enc, m.Message, MaxErrorLength)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (m *ErrorMessage) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := m.Nonce.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeStringWithLimit(dec, MaxErrorLength)
		if err != nil {
			return total, err
		}
		total += n
		m.Message = field
	}
	return total, nil
}
