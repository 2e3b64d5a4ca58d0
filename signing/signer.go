package signing

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

// Domain separates signatures over different kinds of records.
type Domain byte

const (
	AGENT_INFO Domain = 1
)

// String returns the string representation of a domain.
func (d Domain) String() string {
	switch d {
	case AGENT_INFO:
		return "AGENT_INFO"
	default:
		return "UNKNOWN"
	}
}

// PrivateKey is an alias to ed25519.PrivateKey.
type PrivateKey = ed25519.PrivateKey

// PrivateKeySize size of the private key in bytes.
const PrivateKeySize = ed25519.PrivateKeySize

type edSignerOption struct {
	priv   PrivateKey
	prefix []byte
}

// EdSignerOptionFunc modifies EdSigner.
type EdSignerOptionFunc func(*edSignerOption) error

// WithPrefix sets the prefix used by EdSigner. This usually is the space ID.
func WithPrefix(prefix []byte) EdSignerOptionFunc {
	return func(opt *edSignerOption) error {
		opt.prefix = prefix
		return nil
	}
}

// WithPrivateKey sets the private key used by EdSigner.
func WithPrivateKey(priv PrivateKey) EdSignerOptionFunc {
	return func(opt *edSignerOption) error {
		if opt.priv != nil {
			return errors.New("invalid option WithPrivateKey: private key already set")
		}
		if len(priv) != ed25519.PrivateKeySize {
			return errors.New("could not create EdSigner: invalid key length")
		}
		keyPair := ed25519.NewKeyFromSeed(priv[:32])
		if !bytes.Equal(keyPair[32:], priv.Public().(ed25519.PublicKey)) {
			return errors.New("private and public do not match")
		}
		opt.priv = priv
		return nil
	}
}

// WithKeyFromRand sets the private key used by EdSigner using predictable randomness source.
func WithKeyFromRand(rand io.Reader) EdSignerOptionFunc {
	return func(opt *edSignerOption) error {
		if opt.priv != nil {
			return errors.New("invalid option WithKeyFromRand: private key already set")
		}
		_, priv, err := ed25519.GenerateKey(rand)
		if err != nil {
			return fmt.Errorf("could not generate key pair: %w", err)
		}
		opt.priv = priv
		return nil
	}
}

// EdSigner represents an ED25519 signer of agent info records.
type EdSigner struct {
	priv   PrivateKey
	prefix []byte
}

// NewEdSigner returns an auto-generated ed signer.
func NewEdSigner(opts ...EdSignerOptionFunc) (*EdSigner, error) {
	cfg := &edSignerOption{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.priv == nil {
		_, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("could not generate key pair: %w", err)
		}
		cfg.priv = priv
	}
	return &EdSigner{priv: cfg.priv, prefix: cfg.prefix}, nil
}

// Sign signs the provided message.
func (es *EdSigner) Sign(d Domain, m []byte) types.Signature {
	return types.Signature(ed25519.Sign(es.priv, prefixed(es.prefix, d, m)))
}

// SignAgentInfo sets the agent of the record to the signer's identity and signs it.
func (es *EdSigner) SignAgentInfo(info *types.AgentInfo) {
	info.Agent = es.AgentID()
	info.Signature = es.Sign(AGENT_INFO, info.SignedBytes())
}

// AgentID returns the agent ID of the signer.
func (es *EdSigner) AgentID() types.AgentID {
	return types.BytesToAgentID(es.PublicKey())
}

// PublicKey returns the public key of the signer.
func (es *EdSigner) PublicKey() ed25519.PublicKey {
	return es.priv.Public().(ed25519.PublicKey)
}

// PrivateKey returns private key.
func (es *EdSigner) PrivateKey() PrivateKey {
	return es.priv
}

// Prefix returns the domain prefix of the signer.
func (es *EdSigner) Prefix() []byte {
	return es.prefix
}

func (es *EdSigner) String() string {
	return es.AgentID().ShortString()
}

func prefixed(prefix []byte, d Domain, m []byte) []byte {
	msg := make([]byte, 0, len(prefix)+1+len(m))
	msg = append(msg, prefix...)
	msg = append(msg, byte(d))
	return append(msg, m...)
}
