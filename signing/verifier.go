package signing

import (
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

type edVerifierOption struct {
	prefix []byte
}

// VerifierOptionFunc to modify verifier.
type VerifierOptionFunc func(*edVerifierOption) error

// WithVerifierPrefix sets the prefix used by EdVerifier. This usually is the space ID.
func WithVerifierPrefix(prefix []byte) VerifierOptionFunc {
	return func(opts *edVerifierOption) error {
		opts.prefix = prefix
		return nil
	}
}

// EdVerifier verifies signatures of agent info records.
type EdVerifier struct {
	prefix []byte
}

func NewEdVerifier(opts ...VerifierOptionFunc) (*EdVerifier, error) {
	cfg := &edVerifierOption{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &EdVerifier{prefix: cfg.prefix}, nil
}

// Verify verifies that a signature matches public key and message.
func (es *EdVerifier) Verify(d Domain, agent types.AgentID, m []byte, sig types.Signature) bool {
	return ed25519.Verify(agent[:], prefixed(es.prefix, d, m), sig[:])
}

// VerifyAgentInfo verifies that the record was signed by its agent.
func (es *EdVerifier) VerifyAgentInfo(info *types.AgentInfo) bool {
	return es.Verify(AGENT_INFO, info.Agent, info.SignedBytes(), info.Signature)
}
