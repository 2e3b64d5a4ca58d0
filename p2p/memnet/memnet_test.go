package memnet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
	from []types.PeerCert
}

func (r *recorder) HandleMessage(_ context.Context, from types.PeerCert, msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, string(msg))
	r.from = append(r.from, from)
	return nil
}

func (r *recorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestOrderedDelivery(t *testing.T) {
	net := New(WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(net.Close)
	var ra, rb recorder
	a := net.Join("a", &ra)
	b := net.Join("b", &rb)
	require.Equal(t, types.PeerCert("mem://a"), a.Cert())

	var expect []string
	for i := range 100 {
		msg := []byte{byte('0' + i%10), byte(i)}
		expect = append(expect, string(msg))
		require.NoError(t, a.Send(context.Background(), b.Cert(), msg))
		// the frame is copied
		msg[0] = 'x'
	}
	require.Eventually(t, func() bool {
		return net.Delivered(a.Cert(), b.Cert()) == len(expect)
	}, time.Second, time.Millisecond)
	require.Equal(t, expect, rb.received())
	require.Equal(t, a.Cert(), rb.from[0])
	require.Empty(t, ra.received())
}

func TestSendFailures(t *testing.T) {
	net := New()
	var r recorder
	a := net.Join("a", &r)
	b := net.Join("b", &r)

	require.ErrorIs(t, a.Send(context.Background(), "mem://c", []byte("x")), ErrUnknownPeer)

	net.SetLinkDown(a.Cert(), b.Cert(), true)
	require.ErrorIs(t, a.Send(context.Background(), b.Cert(), []byte("x")), ErrLinkDown)
	require.NoError(t, b.Send(context.Background(), a.Cert(), []byte("y")))
	net.SetLinkDown(a.Cert(), b.Cert(), false)
	require.NoError(t, a.Send(context.Background(), b.Cert(), []byte("x")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, a.Send(ctx, b.Cert(), []byte("x")), context.Canceled)

	net.Leave(b.Cert())
	require.ErrorIs(t, a.Send(context.Background(), b.Cert(), []byte("x")), ErrUnknownPeer)

	net.Close()
	require.ErrorIs(t, b.Send(context.Background(), a.Cert(), []byte("y")), ErrClosed)
}

func TestPeerCert(t *testing.T) {
	net := New()
	t.Cleanup(net.Close)
	a := net.Join("a", &recorder{})

	cert, err := a.PeerCert(&types.AgentInfo{Addresses: []string{"/ip4/127.0.0.1/tcp/1", "mem://b"}})
	require.NoError(t, err)
	require.Equal(t, types.PeerCert("mem://b"), cert)

	_, err = a.PeerCert(&types.AgentInfo{Addresses: []string{"mem://"}})
	require.ErrorIs(t, err, ErrNoAddress)
	_, err = a.PeerCert(&types.AgentInfo{})
	require.ErrorIs(t, err, ErrNoAddress)
}
