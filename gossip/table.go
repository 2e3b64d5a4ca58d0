package gossip

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spacemeshos/go-shardgossip/common/types"
)

type acceptResult byte

const (
	acceptInstalled acceptResult = iota
	// the live round for the peer wins the tie-break.
	acceptLost
	acceptBusy
	acceptStale
	// the round is older than the last round the peer initiated.
	acceptOutdated
)

// roundKey identifies the last round initiated by a peer. Keys of the same
// peer are stamped by the same clock.
type roundKey struct {
	startedAt types.Timestamp
	initiator types.AgentID
	at        time.Time
}

// roundTable maps peer certs to the single live round with the peer.
// Every method holds the lock only for the duration of the map access.
type roundTable struct {
	mu       sync.Mutex
	max      int
	timeout  time.Duration
	cooldown time.Duration
	rounds   map[types.PeerCert]*RoundState
	// finished remembers the nonces of finished and superseded rounds.
	finished *lru.Cache[Nonce, struct{}]
	cooling  *lru.Cache[types.PeerCert, time.Time]
	latest   *lru.Cache[types.PeerCert, roundKey]
}

func newRoundTable(cfg Config) *roundTable {
	finished, err := lru.New[Nonce, struct{}](cfg.FinishedRoundsMemory)
	if err != nil {
		panic(fmt.Sprintf("BUG: finished rounds cache: %v", err))
	}
	cooling, err := lru.New[types.PeerCert, time.Time](max(cfg.FinishedRoundsMemory, cfg.MaxConcurrentRounds))
	if err != nil {
		panic(fmt.Sprintf("BUG: cooldown cache: %v", err))
	}
	latest, err := lru.New[types.PeerCert, roundKey](max(cfg.FinishedRoundsMemory, cfg.MaxConcurrentRounds))
	if err != nil {
		panic(fmt.Sprintf("BUG: latest rounds cache: %v", err))
	}
	return &roundTable{
		max:      cfg.MaxConcurrentRounds,
		timeout:  cfg.RoundTimeout,
		cooldown: cfg.CooldownInterval,
		rounds:   make(map[types.PeerCert]*RoundState),
		finished: finished,
		cooling:  cooling,
		latest:   latest,
	}
}

func (t *roundTable) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rounds)
}

// available returns true if a new round can be initiated with the peer.
func (t *roundTable) available(cert types.PeerCert, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.availableLocked(cert, now)
}

func (t *roundTable) availableLocked(cert types.PeerCert, now time.Time) bool {
	if _, ok := t.rounds[cert]; ok {
		return false
	}
	until, ok := t.cooling.Get(cert)
	return !ok || !now.Before(until)
}

// reserve installs a new initiator round. It returns false if the peer is
// busy or cooling down, or if the table is full.
func (t *roundTable) reserve(r *RoundState, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.rounds) >= t.max || !t.availableLocked(r.Peer, now) {
		return false
	}
	t.installLocked(r, now)
	return true
}

// release removes a reserved round that was never started. The peer doesn't
// cool down.
func (t *roundTable) release(cert types.PeerCert, nonce Nonce) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.rounds[cert]; ok && r.Nonce == nonce {
		delete(t.rounds, cert)
	}
}

func (t *roundTable) installLocked(r *RoundState, now time.Time) {
	r.Begin = now
	r.touch(now, t.timeout)
	t.rounds[r.Peer] = r
	if r.Role == RoleResponder {
		t.latest.Add(r.Peer, roundKey{startedAt: r.StartedAt, initiator: r.Initiator, at: now})
	}
}

// accept installs a responder round. A live round with the same peer is
// replaced only if the new round supersedes it, in which case the replaced
// round is returned.
func (t *roundTable) accept(r *RoundState, now time.Time) (acceptResult, *RoundState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished.Contains(r.Nonce) {
		return acceptStale, nil
	}
	existing := t.rounds[r.Peer]
	if existing != nil {
		if existing.Nonce == r.Nonce {
			return acceptStale, nil
		}
		if !existing.supersededBy(r.StartedAt, r.Initiator) {
			return acceptLost, nil
		}
		t.finished.Add(existing.Nonce, struct{}{})
		existing.Phase = OutcomeSuperseded.phase()
	} else {
		// Only keys stamped by the peer are compared, a local round with the
		// peer is ordered against its initiates by the tie-break.
		last, ok := t.latest.Get(r.Peer)
		if ok && now.Sub(last.at) < t.timeout && !newerKey(r.StartedAt, r.Initiator, last.startedAt, last.initiator) {
			return acceptOutdated, nil
		}
		if len(t.rounds) >= t.max {
			return acceptBusy, nil
		}
	}
	t.installLocked(r, now)
	return acceptInstalled, existing
}

// get returns a copy of the live round with the peer and the nonce.
func (t *roundTable) get(cert types.PeerCert, nonce Nonce) (RoundState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, err := t.liveLocked(cert, nonce)
	if err != nil {
		return RoundState{}, err
	}
	return *r, nil
}

// snapshot returns a copy of the live round with the peer, if any.
func (t *roundTable) snapshot(cert types.PeerCert) (RoundState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rounds[cert]
	if !ok {
		return RoundState{}, false
	}
	return *r, true
}

func (t *roundTable) liveLocked(cert types.PeerCert, nonce Nonce) (*RoundState, error) {
	r, ok := t.rounds[cert]
	if !ok || r.Nonce != nonce {
		if t.finished.Contains(nonce) {
			return nil, fmt.Errorf("%w: round %s is finished", ErrStaleRound, nonce)
		}
		return nil, fmt.Errorf("%w: unknown round %s", ErrStaleRound, nonce)
	}
	return r, nil
}

// update applies fn to the live round with the peer and the nonce and
// returns a copy of the updated round. fn must not block.
func (t *roundTable) update(
	cert types.PeerCert,
	nonce Nonce,
	now time.Time,
	fn func(r *RoundState) error,
) (RoundState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, err := t.liveLocked(cert, nonce)
	if err != nil {
		return RoundState{}, err
	}
	if err := fn(r); err != nil {
		return *r, err
	}
	r.touch(now, t.timeout)
	return *r, nil
}

// finish removes the live round with the peer and the nonce, remembers the
// nonce and starts the cooldown for the peer.
func (t *roundTable) finish(cert types.PeerCert, nonce Nonce, outcome Outcome, now time.Time) (RoundState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rounds[cert]
	if !ok || r.Nonce != nonce {
		return RoundState{}, false
	}
	t.finishLocked(r, outcome, now)
	return *r, true
}

func (t *roundTable) finishLocked(r *RoundState, outcome Outcome, now time.Time) {
	delete(t.rounds, r.Peer)
	t.finished.Add(r.Nonce, struct{}{})
	if t.cooldown > 0 {
		t.cooling.Add(r.Peer, now.Add(t.cooldown))
	}
	r.Phase = outcome.phase()
	r.LastTouched = now
}

// reap finishes the rounds that are past their deadline.
func (t *roundTable) reap(now time.Time) []RoundState {
	t.mu.Lock()
	defer t.mu.Unlock()
	var reaped []RoundState
	for _, r := range t.rounds {
		if now.Before(r.Deadline) {
			continue
		}
		t.finishLocked(r, OutcomeTimedOut, now)
		reaped = append(reaped, *r)
	}
	return reaped
}

// clear finishes every live round as errored.
func (t *roundTable) clear(now time.Time) []RoundState {
	t.mu.Lock()
	defer t.mu.Unlock()
	var cleared []RoundState
	for _, r := range t.rounds {
		t.finishLocked(r, OutcomeErrored, now)
		cleared = append(cleared, *r)
	}
	return cleared
}
