package gossip

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

func TestRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	recent := NewMockModule(ctrl)
	historical := NewMockModule(ctrl)
	r := NewRouter()
	r.Register(testSpace, GossipRecent, recent)
	r.Register(testSpace, GossipHistorical, historical)

	nonce := newNonce()
	frame, err := EncodeFrame(testSpace, GossipHistorical, &BusyMessage{Nonce: nonce})
	require.NoError(t, err)
	historical.EXPECT().HandleMessage(gomock.Any(), testPeer, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ types.PeerCert, env *Envelope) error {
			require.Equal(t, MessageKindBusy, env.Kind)
			msg, err := DecodeMessage(env)
			require.NoError(t, err)
			require.Equal(t, nonce, msg.RoundNonce())
			return nil
		})
	require.NoError(t, r.HandleMessage(context.Background(), testPeer, frame))

	other, err := EncodeFrame(types.SpaceID{1}, GossipRecent, &BusyMessage{Nonce: nonce})
	require.NoError(t, err)
	require.ErrorIs(t, r.HandleMessage(context.Background(), testPeer, other), ErrUnknownModule)
	require.ErrorIs(t, r.HandleMessage(context.Background(), testPeer, []byte{0xff}), ErrProtocol)

	r.Unregister(testSpace, GossipHistorical)
	_, ok := r.Module(testSpace, GossipHistorical)
	require.False(t, ok)
	require.ErrorIs(t, r.HandleMessage(context.Background(), testPeer, frame), ErrUnknownModule)
	m, ok := r.Module(testSpace, GossipRecent)
	require.True(t, ok)
	require.Equal(t, recent, m)
}
