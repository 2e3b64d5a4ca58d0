package peers

import (
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

type event struct {
	cert    types.PeerCert
	fail    bool
	size    int
	elapsed time.Duration
}

func complete(cert types.PeerCert, size int, elapsed time.Duration) event {
	return event{cert: cert, size: size, elapsed: elapsed}
}

func fail(cert types.PeerCert) event {
	return event{cert: cert, fail: true}
}

func withEvents(certs []types.PeerCert, events ...event) *Peers {
	tracker := New()
	for _, cert := range certs {
		tracker.Add(cert)
	}
	for _, ev := range events {
		if ev.fail {
			tracker.OnFailure(ev.cert)
		} else {
			tracker.OnComplete(ev.cert, ev.size, ev.elapsed)
		}
	}
	return tracker
}

func TestOrder(t *testing.T) {
	ab := []types.PeerCert{"a", "b"}
	for _, tc := range []struct {
		desc   string
		events []event
		expect []types.PeerCert
	}{
		{
			desc:   "same history",
			events: []event{complete("b", 0, 10), complete("a", 0, 10)},
			expect: []types.PeerCert{"a", "b"},
		},
		{
			desc:   "faster first",
			events: []event{complete("a", 0, 14), complete("b", 0, 9)},
			expect: []types.PeerCert{"b", "a"},
		},
		{
			desc:   "peer without history first",
			events: []event{complete("a", 0, 10)},
			expect: []types.PeerCert{"b", "a"},
		},
		{
			desc:   "failed peer last",
			events: []event{complete("a", 0, 10), fail("b")},
			expect: []types.PeerCert{"a", "b"},
		},
		{
			desc:   "duration normalized by size",
			events: []event{complete("a", kib, 10), complete("b", 4*kib, 20)},
			expect: []types.PeerCert{"b", "a"},
		},
		{
			desc: "moving average",
			events: []event{
				complete("a", 0, 8), complete("a", 0, 40),
				complete("b", 0, 12),
			},
			expect: []types.PeerCert{"b", "a"},
		},
		{
			desc: "failure streak",
			events: []event{
				complete("a", 0, 10), fail("a"),
				complete("b", 0, 15),
			},
			expect: []types.PeerCert{"b", "a"},
		},
		{
			desc: "completed round resets streak",
			events: []event{
				complete("a", 0, 10), fail("a"), complete("a", 0, 10),
				complete("b", 0, 15),
			},
			expect: []types.PeerCert{"a", "b"},
		},
		{
			desc:   "events for unknown peers",
			events: []event{fail("x"), complete("y", 0, 1)},
			expect: []types.PeerCert{"a", "b"},
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			certs := []types.PeerCert{"b", "a"}
			withEvents(ab, tc.events...).Order(certs)
			require.Equal(t, tc.expect, certs)
		})
	}
}

func TestOrderUnknown(t *testing.T) {
	tracker := withEvents([]types.PeerCert{"a", "b"}, complete("a", 0, 10), fail("b"))
	certs := []types.PeerCert{"b", "a", "new"}
	tracker.Order(certs)
	require.Equal(t, []types.PeerCert{"new", "a", "b"}, certs)
}

func TestRetain(t *testing.T) {
	tracker := withEvents([]types.PeerCert{"a", "b", "c"}, complete("b", 0, 10))
	require.False(t, tracker.Add("a"))
	require.Equal(t, 2, tracker.Retain([]types.PeerCert{"b", "d"}))
	require.Equal(t, 1, tracker.Total())
	require.Zero(t, tracker.Retain([]types.PeerCert{"b"}))

	stats := tracker.Stats()
	require.Len(t, stats.BestPeers, 1)
	require.Equal(t, types.PeerCert("b"), stats.BestPeers[0].Cert)
	require.Equal(t, 1, stats.BestPeers[0].Completed)

	// history of a dropped peer is not restored
	require.True(t, tracker.Add("a"))
	tracker.OnFailure("a")
	stats = tracker.Stats()
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.BestPeers[1].Failures)
	require.Zero(t, stats.BestPeers[1].Completed)

	require.Equal(t, 2, tracker.Retain(nil))
	require.Zero(t, tracker.Total())
	require.Empty(t, tracker.Stats().BestPeers)
}

func TestStats(t *testing.T) {
	const total = 100
	certs := make([]types.PeerCert, 0, total)
	for i := range total {
		certs = append(certs, types.PeerCert(strconv.Itoa(i)))
	}
	tracker := withEvents(certs,
		complete("7", kib, 4*time.Millisecond),
		fail("7"),
		complete("8", 2*kib, 4*time.Millisecond),
	)
	stats := tracker.Stats()
	require.Equal(t, total, stats.Total)
	require.Len(t, stats.BestPeers, reported)
	for _, peer := range stats.BestPeers {
		require.Zero(t, peer.Completed+peer.Failures, "peers without history are tried first")
	}
	require.Greater(t, stats.PerKiB, 2*time.Millisecond)
	require.Less(t, stats.PerKiB, 4*time.Millisecond)

	tracker.Retain([]types.PeerCert{"7", "8"})
	stats = tracker.Stats()
	require.Equal(t, []PeerStats{
		{Cert: "8", Completed: 1, PerKiB: 2 * time.Millisecond},
		{Cert: "7", Completed: 1, Failures: 1, Streak: 1, PerKiB: 4 * time.Millisecond},
	}, stats.BestPeers)
}

func BenchmarkOrder(b *testing.B) {
	const total = 10000
	rng := rand.New(rand.NewPCG(10001, 10001))
	certs := make([]types.PeerCert, 0, total)
	var events []event
	for i := range total {
		cert := types.PeerCert(strconv.Itoa(i))
		certs = append(certs, cert)
		for range rng.IntN(10) {
			events = append(events, complete(cert, rng.IntN(4*kib), time.Duration(rng.IntN(100))*time.Millisecond))
		}
		for range rng.IntN(10) {
			events = append(events, fail(cert))
		}
	}
	tracker := withEvents(certs, events...)
	require.Equal(b, total, tracker.Total())
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		tracker.Order(certs)
	}
}
