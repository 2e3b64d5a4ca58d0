package types

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/spacemeshos/go-scale"

	"github.com/spacemeshos/go-shardgossip/arc"
)

const (
	// IDSize is the size of space and agent identifiers and op hashes.
	IDSize = 32
	// SignatureSize is the size of an agent info signature.
	SignatureSize = 64
)

// ErrHashMismatch is returned when the claimed hash of an op doesn't match
// the hash computed from its contents.
var ErrHashMismatch = errors.New("hash mismatch")

func shorten(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// SpaceID identifies an independent gossip universe.
type SpaceID [IDSize]byte

// String implements fmt.Stringer.
func (id SpaceID) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString returns the first 10 characters of the ID, for logging purposes.
func (id SpaceID) ShortString() string {
	return shorten(id.String(), 10)
}

// EncodeScale implements scale.Encodable.
func (id *SpaceID) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, id[:])
}

// DecodeScale implements scale.Decodable.
func (id *SpaceID) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, id[:])
}

// AgentID is the public key of an agent within a space.
type AgentID [IDSize]byte

// BytesToAgentID is a helper to copy buffer into AgentID.
func BytesToAgentID(buf []byte) (id AgentID) {
	copy(id[:], buf)
	return id
}

// String implements fmt.Stringer.
func (id AgentID) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString returns the first 10 characters of the ID, for logging purposes.
func (id AgentID) ShortString() string {
	return shorten(id.String(), 10)
}

// Compare compares the agent IDs lexicographically.
func (id AgentID) Compare(other AgentID) int {
	return bytes.Compare(id[:], other[:])
}

// Loc returns the location of the agent in the key space.
func (id AgentID) Loc() arc.Loc {
	return arc.LocOf(id[:])
}

// EncodeScale implements scale.Encodable.
func (id *AgentID) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, id[:])
}

// DecodeScale implements scale.Decodable.
func (id *AgentID) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, id[:])
}

// OpHash is the content address of an op.
type OpHash [IDSize]byte

// String implements fmt.Stringer.
func (h OpHash) String() string {
	return hex.EncodeToString(h[:])
}

// ShortString returns the first 10 characters of the hash, for logging purposes.
func (h OpHash) ShortString() string {
	return shorten(h.String(), 10)
}

// Compare compares the hashes lexicographically.
func (h OpHash) Compare(other OpHash) int {
	return bytes.Compare(h[:], other[:])
}

// EncodeScale implements scale.Encodable.
func (h *OpHash) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, h[:])
}

// DecodeScale implements scale.Decodable.
func (h *OpHash) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, h[:])
}

// Signature is an ed25519 signature.
type Signature [SignatureSize]byte

// EncodeScale implements scale.Encodable.
func (s *Signature) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, s[:])
}

// DecodeScale implements scale.Decodable.
func (s *Signature) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, s[:])
}

// PeerCert identifies the remote end of a transport connection.
type PeerCert string

// String implements fmt.Stringer.
func (c PeerCert) String() string {
	return string(c)
}
