// Package peers tracks gossip round outcomes per remote peer and orders peers
// by responsiveness.
package peers

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

const (
	// kib is the size that round durations are normalized to.
	kib = 1 << 10
	// weight of the latest sample in the moving averages.
	peerWeight   = 0.25
	globalWeight = 0.1
	// number of peers reported by Stats.
	reported = 5
)

// record is the outcome history of the rounds with a single peer.
type record struct {
	cert      types.PeerCert
	completed int
	failures  int
	// streak is the number of failed rounds since the last completed one.
	streak int
	// perKiB is the moving average of round durations per KiB exchanged.
	perKiB float64
}

func (r *record) fresh() bool {
	return r.completed+r.failures == 0
}

// cost estimates the duration of a round with the peer per KiB. Peers
// without history are tried before known peers, failing peers last.
func (r *record) cost(global float64) float64 {
	switch {
	case r.fresh():
		return 0
	case r.completed == 0:
		return global * float64(1+r.failures)
	}
	return r.perKiB * float64(1+r.streak)
}

// Peers is safe for concurrent use.
type Peers struct {
	mu      sync.Mutex
	records map[types.PeerCert]*record
	// global is the moving average of durations per KiB over every peer.
	global float64
}

func New() *Peers {
	return &Peers{records: map[types.PeerCert]*record{}}
}

// Add starts tracking the peer. It returns false if the peer is known.
func (p *Peers) Add(cert types.PeerCert) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.records[cert]; ok {
		return false
	}
	p.records[cert] = &record{cert: cert}
	return true
}

// Retain stops tracking every peer missing from certs and returns the number
// of dropped peers.
func (p *Peers) Retain(certs []types.PeerCert) int {
	keep := make(map[types.PeerCert]struct{}, len(certs))
	for _, cert := range certs {
		keep[cert] = struct{}{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	before := len(p.records)
	maps.DeleteFunc(p.records, func(cert types.PeerCert, _ *record) bool {
		_, ok := keep[cert]
		return !ok
	})
	return before - len(p.records)
}

// OnFailure records a round that failed or timed out.
func (p *Peers) OnFailure(cert types.PeerCert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.records[cert]
	if !ok {
		return
	}
	r.failures++
	r.streak++
}

// OnComplete records a completed round that exchanged size bytes.
func (p *Peers) OnComplete(cert types.PeerCert, size int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.records[cert]
	if !ok {
		return
	}
	sample := float64(elapsed) / max(float64(size)/kib, 1)
	if r.completed == 0 {
		r.perKiB = sample
	} else {
		r.perKiB += peerWeight * (sample - r.perKiB)
	}
	if p.global == 0 {
		p.global = sample
	} else {
		p.global += globalWeight * (sample - p.global)
	}
	r.completed++
	r.streak = 0
}

// Order sorts certs from the most to the least responsive peer. Unknown
// peers are ordered like peers without history.
func (p *Peers) Order(certs []types.PeerCert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderLocked(certs)
}

func (p *Peers) orderLocked(certs []types.PeerCert) {
	costs := make(map[types.PeerCert]float64, len(certs))
	for _, cert := range certs {
		if r, ok := p.records[cert]; ok {
			costs[cert] = r.cost(p.global)
		}
	}
	slices.SortStableFunc(certs, func(a, b types.PeerCert) int {
		return cmp.Or(cmp.Compare(costs[a], costs[b]), cmp.Compare(a, b))
	})
}

// Total returns the number of tracked peers.
func (p *Peers) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Stats returns the number of tracked peers and the most responsive ones.
func (p *Peers) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	certs := slices.Collect(maps.Keys(p.records))
	p.orderLocked(certs)
	stats := Stats{
		Total:     len(certs),
		PerKiB:    time.Duration(p.global),
		BestPeers: make([]PeerStats, 0, min(len(certs), reported)),
	}
	for _, cert := range certs[:min(len(certs), reported)] {
		r := p.records[cert]
		stats.BestPeers = append(stats.BestPeers, PeerStats{
			Cert:      cert,
			Completed: r.completed,
			Failures:  r.failures,
			Streak:    r.streak,
			PerKiB:    time.Duration(r.perKiB),
		})
	}
	return stats
}

type Stats struct {
	Total     int
	PerKiB    time.Duration
	BestPeers []PeerStats
}

func (s *Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("total", s.Total)
	enc.AddDuration("perKiB", s.PerKiB)
	return enc.AddArray("best", zapcore.ArrayMarshalerFunc(func(enc zapcore.ArrayEncoder) error {
		for i := range s.BestPeers {
			if err := enc.AppendObject(&s.BestPeers[i]); err != nil {
				return err
			}
		}
		return nil
	}))
}

type PeerStats struct {
	Cert      types.PeerCert
	Completed int
	Failures  int
	Streak    int
	PerKiB    time.Duration
}

func (p *PeerStats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("cert", string(p.Cert))
	enc.AddInt("completed", p.Completed)
	enc.AddInt("failures", p.Failures)
	enc.AddInt("streak", p.Streak)
	enc.AddDuration("perKiB", p.PerKiB)
	return nil
}
