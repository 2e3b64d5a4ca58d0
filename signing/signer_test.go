package signing

import (
	"crypto/rand"
	"testing"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
)

func TestNewEdSignerFromBuffer(t *testing.T) {
	b := []byte{1, 2, 3}
	_, err := NewEdSigner(WithPrivateKey(b))
	require.ErrorContains(t, err, "invalid key length")

	b = make([]byte, 64)
	_, err = NewEdSigner(WithPrivateKey(b))
	require.ErrorContains(t, err, "private and public do not match")
}

func TestEdSigner_Sign(t *testing.T) {
	ed, err := NewEdSigner()
	require.NoError(t, err)

	m := make([]byte, 4)
	rand.Read(m)
	sig := ed.Sign(AGENT_INFO, m)
	signed := make([]byte, len(m)+1)
	signed[0] = byte(AGENT_INFO)
	copy(signed[1:], m)

	ok := ed25519.Verify(ed.PublicKey(), signed, sig[:])
	require.Truef(t, ok, "failed to verify message %x with sig %x", m, sig)
}

func TestEdSigner_WithPrivateKey(t *testing.T) {
	ed, err := NewEdSigner()
	require.NoError(t, err)

	ed2, err := NewEdSigner(WithPrivateKey(ed.PrivateKey()))
	require.NoError(t, err)
	require.Equal(t, ed.AgentID(), ed2.AgentID())
}

func TestVerifyAgentInfo(t *testing.T) {
	prefix := []byte("space")
	signer, err := NewEdSigner(WithPrefix(prefix))
	require.NoError(t, err)
	verifier, err := NewEdVerifier(WithVerifierPrefix(prefix))
	require.NoError(t, err)

	info := &types.AgentInfo{
		Space:     types.SpaceID{1},
		Arc:       arc.FullArc(signer.AgentID().Loc()),
		SignedAt:  10,
		ExpiresAt: 20,
		Addresses: []string{"mem://node"},
	}
	signer.SignAgentInfo(info)
	require.Equal(t, signer.AgentID(), info.Agent)
	require.True(t, verifier.VerifyAgentInfo(info))

	tampered := *info
	tampered.SignedAt++
	require.False(t, verifier.VerifyAgentInfo(&tampered))

	other, err := NewEdVerifier()
	require.NoError(t, err)
	require.False(t, other.VerifyAgentInfo(info), "prefix must match")
}
