package gossip

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/common/types"
)

// Phase is the phase of a gossip round.
type Phase byte

const (
	PhaseIdle Phase = iota
	PhaseInitiated
	PhaseAccepted
	PhaseAgentDiffExchanged
	PhaseOpsDiffExchanged
	PhaseComplete
	PhaseTimedOut
	PhaseErrored
)

var phaseNames = []string{
	"idle",
	"initiated",
	"accepted",
	"agentDiffExchanged",
	"opsDiffExchanged",
	"complete",
	"timedOut",
	"errored",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("<unknown %02x>", int(p))
}

// Terminal returns true for the phases of finished rounds.
func (p Phase) Terminal() bool {
	return p >= PhaseComplete
}

// Role is the role of the local node in a round.
type Role byte

const (
	RoleInitiator Role = iota + 1
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return fmt.Sprintf("<unknown %02x>", byte(r))
	}
}

// Outcome is the reason a round was finished.
type Outcome byte

const (
	OutcomeComplete Outcome = iota + 1
	OutcomeTimedOut
	OutcomeErrored
	OutcomeBusy
	OutcomeSuperseded
)

var outcomeNames = []string{
	"<none>",
	"complete",
	"timeout",
	"error",
	"busy",
	"superseded",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("<unknown %02x>", int(o))
}

func (o Outcome) phase() Phase {
	switch o {
	case OutcomeComplete:
		return PhaseComplete
	case OutcomeTimedOut, OutcomeBusy:
		return PhaseTimedOut
	default:
		return PhaseErrored
	}
}

// RoundStats counts the items exchanged in a round.
type RoundStats struct {
	AgentsSent     int
	AgentsReceived int
	AgentsRejected int
	OpsSent        int
	OpsReceived    int
	OpsRejected    int
	BytesSent      int
	BytesReceived  int
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s *RoundStats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("agentsSent", s.AgentsSent)
	enc.AddInt("agentsReceived", s.AgentsReceived)
	enc.AddInt("agentsRejected", s.AgentsRejected)
	enc.AddInt("opsSent", s.OpsSent)
	enc.AddInt("opsReceived", s.OpsReceived)
	enc.AddInt("opsRejected", s.OpsRejected)
	enc.AddInt("bytesSent", s.BytesSent)
	enc.AddInt("bytesReceived", s.BytesReceived)
	return nil
}

// localData is the local part of the universes reconciled in a round.
type localData struct {
	agents []*types.AgentInfo
	hashes []types.OpHash
}

// RoundState is the state of a single gossip round with a peer.
type RoundState struct {
	Peer        types.PeerCert
	Nonce       Nonce
	Role        Role
	Phase       Phase
	LocalAgent  types.AgentID
	RemoteAgent types.AgentID
	// StartedAt and Initiator order concurrent rounds for the same peer.
	StartedAt types.Timestamp
	Initiator types.AgentID
	LocalSet  arc.Set
	// CommonSet is the set the local data was loaded for. Digest is its digest.
	CommonSet    arc.Set
	Digest       Digest
	BloomsResent bool

	AgentsSent     bool
	AgentsReceived bool
	OpsSent        bool
	OpsReceived    bool

	Begin       time.Time
	LastTouched time.Time
	Deadline    time.Time
	Stats       RoundStats

	data *localData
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (r *RoundState) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("peer", r.Peer.String())
	enc.AddString("nonce", r.Nonce.String())
	enc.AddString("role", r.Role.String())
	enc.AddString("phase", r.Phase.String())
	enc.AddString("local", r.LocalAgent.ShortString())
	enc.AddString("remote", r.RemoteAgent.ShortString())
	enc.AddString("common", r.CommonSet.String())
	enc.AddBool("bloomsResent", r.BloomsResent)
	enc.AddTime("lastTouched", r.LastTouched)
	return enc.AddObject("stats", &r.Stats)
}

// supersededBy returns true if the round with the key (startedAt, initiator)
// supersedes this one.
func (r *RoundState) supersededBy(startedAt types.Timestamp, initiator types.AgentID) bool {
	return newerKey(startedAt, initiator, r.StartedAt, r.Initiator)
}

// newerKey orders rounds by start time, then by initiator.
func newerKey(startedAt types.Timestamp, initiator types.AgentID, than types.Timestamp, thanInitiator types.AgentID) bool {
	if startedAt != than {
		return startedAt > than
	}
	return initiator.Compare(thanInitiator) > 0
}

func (r *RoundState) touch(now time.Time, timeout time.Duration) {
	r.LastTouched = now
	r.Deadline = now.Add(timeout)
}

// advance moves the round forward once both directions of a diff are done.
// It returns true when the round is complete.
func (r *RoundState) advance(typ GossipType) bool {
	if r.Phase == PhaseAccepted && (typ == GossipHistorical || (r.AgentsSent && r.AgentsReceived)) {
		r.Phase = PhaseAgentDiffExchanged
	}
	if r.Phase == PhaseAgentDiffExchanged && r.OpsSent && r.OpsReceived {
		r.Phase = PhaseOpsDiffExchanged
	}
	return r.Phase == PhaseOpsDiffExchanged
}
