package gossip

import (
	"errors"
	"fmt"
	"time"

	"github.com/spacemeshos/go-shardgossip/arc"
)

// GossipType selects the time window of the ops reconciled by a module.
type GossipType byte

const (
	// GossipRecent reconciles agent infos and ops newer than the recent threshold.
	GossipRecent GossipType = iota + 1
	// GossipHistorical reconciles ops older than the recent threshold.
	GossipHistorical
)

func (t GossipType) String() string {
	switch t {
	case GossipRecent:
		return "recent"
	case GossipHistorical:
		return "historical"
	default:
		return fmt.Sprintf("<unknown %02x>", byte(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t GossipType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *GossipType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "recent":
		*t = GossipRecent
	case "historical":
		*t = GossipHistorical
	default:
		return fmt.Errorf("unknown gossip type %q", text)
	}
	return nil
}

// Config is the configuration of a gossip module.
type Config struct {
	Type                   GossipType    `mapstructure:"type"`
	TickInterval           time.Duration `mapstructure:"tick-interval"`
	MaxConcurrentRounds    int           `mapstructure:"max-concurrent-rounds"`
	BloomFalsePositiveRate float64       `mapstructure:"bloom-false-positive-rate"`
	RoundTimeout           time.Duration `mapstructure:"round-timeout"`
	CooldownInterval       time.Duration `mapstructure:"cooldown-interval"`
	DiscoveryInterval      time.Duration `mapstructure:"discovery-interval"`
	RecentThreshold        time.Duration `mapstructure:"recent-threshold"`
	MaxOpsPerBatch         int           `mapstructure:"max-ops-per-batch"`
	MaxAgentsPerBatch      int           `mapstructure:"max-agents-per-batch"`
	// InitiateRate is the number of rounds that may be initiated per second.
	InitiateRate         float64       `mapstructure:"initiate-rate"`
	FatalBackoff         time.Duration `mapstructure:"fatal-backoff"`
	DefaultArcHalfLength uint32        `mapstructure:"default-arc-half-length"`
	FinishedRoundsMemory int           `mapstructure:"finished-rounds-memory"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Type:                   GossipRecent,
		TickInterval:           100 * time.Millisecond,
		MaxConcurrentRounds:    4,
		BloomFalsePositiveRate: 0.01,
		RoundTimeout:           30 * time.Second,
		CooldownInterval:       time.Second,
		DiscoveryInterval:      5 * time.Second,
		RecentThreshold:        time.Hour,
		MaxOpsPerBatch:         256,
		MaxAgentsPerBatch:      256,
		InitiateRate:           10,
		FatalBackoff:           10 * time.Second,
		DefaultArcHalfLength:   arc.MaxHalfLength,
		FinishedRoundsMemory:   1024,
	}
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Type != GossipRecent && cfg.Type != GossipHistorical {
		errs = append(errs, fmt.Errorf("bad gossip type %s", cfg.Type))
	}
	if cfg.BloomFalsePositiveRate <= 0 || cfg.BloomFalsePositiveRate >= 1 {
		errs = append(errs, fmt.Errorf("bloom false positive rate %v outside (0, 1)", cfg.BloomFalsePositiveRate))
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"tick interval", cfg.TickInterval},
		{"round timeout", cfg.RoundTimeout},
		{"discovery interval", cfg.DiscoveryInterval},
		{"recent threshold", cfg.RecentThreshold},
		{"fatal backoff", cfg.FatalBackoff},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", d.name, d.value))
		}
	}
	if cfg.CooldownInterval < 0 {
		errs = append(errs, fmt.Errorf("cooldown interval must not be negative, got %v", cfg.CooldownInterval))
	}
	if cfg.MaxConcurrentRounds <= 0 {
		errs = append(errs, fmt.Errorf("max concurrent rounds must be positive, got %d", cfg.MaxConcurrentRounds))
	}
	if cfg.MaxOpsPerBatch <= 0 || cfg.MaxOpsPerBatch > MaxOpsInMessage {
		errs = append(errs, fmt.Errorf("max ops per batch must be in [1, %d], got %d", MaxOpsInMessage, cfg.MaxOpsPerBatch))
	}
	if cfg.MaxAgentsPerBatch <= 0 || cfg.MaxAgentsPerBatch > MaxAgentsInMessage {
		errs = append(errs, fmt.Errorf("max agents per batch must be in [1, %d], got %d",
			MaxAgentsInMessage, cfg.MaxAgentsPerBatch))
	}
	if cfg.InitiateRate <= 0 {
		errs = append(errs, fmt.Errorf("initiate rate must be positive, got %v", cfg.InitiateRate))
	}
	if cfg.DefaultArcHalfLength > arc.MaxHalfLength {
		errs = append(errs, fmt.Errorf("%w: default arc half length %d", arc.ErrInvalidArc, cfg.DefaultArcHalfLength))
	}
	if cfg.FinishedRoundsMemory <= 0 {
		errs = append(errs, fmt.Errorf("finished rounds memory must be positive, got %d", cfg.FinishedRoundsMemory))
	}
	return errors.Join(errs...)
}
