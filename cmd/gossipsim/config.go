package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-shardgossip/arc"
	"github.com/spacemeshos/go-shardgossip/gossip"
)

const (
	transportMemnet = "memnet"
	transportLibp2p = "libp2p"
)

// Config is the configuration of a simulation run.
type Config struct {
	Nodes      int `mapstructure:"nodes"`
	OpsPerNode int `mapstructure:"ops-per-node"`
	// ArcHalfLength of the simulated agents. Node 0 always claims the full
	// space and serves as the bootstrap peer of the others.
	ArcHalfLength uint32        `mapstructure:"arc-half-length"`
	Duration      time.Duration `mapstructure:"duration"`
	PollInterval  time.Duration `mapstructure:"poll-interval"`
	Seed          int64         `mapstructure:"seed"`
	Transport     string        `mapstructure:"transport"`
	ListenAddr    string        `mapstructure:"listen-addr"`
	MetricsPort   int           `mapstructure:"metrics-port"`
	LogLevel      zapcore.Level `mapstructure:"log-level"`
	LogEncoder    string        `mapstructure:"log-encoder"`
	Gossip        gossip.Config `mapstructure:"gossip"`
}

// DefaultConfig returns the default simulation configuration.
func DefaultConfig() Config {
	cfg := gossip.DefaultConfig()
	cfg.RoundTimeout = 5 * time.Second
	cfg.CooldownInterval = 200 * time.Millisecond
	return Config{
		Nodes:         8,
		OpsPerNode:    100,
		ArcHalfLength: arc.MaxHalfLength / 2,
		Duration:      time.Minute,
		PollInterval:  500 * time.Millisecond,
		Seed:          1,
		Transport:     transportMemnet,
		ListenAddr:    "/ip4/127.0.0.1/tcp/0",
		LogLevel:      zapcore.InfoLevel,
		LogEncoder:    "console",
		Gossip:        cfg,
	}
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Nodes < 2 {
		errs = append(errs, fmt.Errorf("at least 2 nodes are required, got %d", cfg.Nodes))
	}
	if cfg.OpsPerNode < 0 {
		errs = append(errs, fmt.Errorf("ops per node must not be negative, got %d", cfg.OpsPerNode))
	}
	if cfg.ArcHalfLength > arc.MaxHalfLength {
		errs = append(errs, fmt.Errorf("%w: half length %d", arc.ErrInvalidArc, cfg.ArcHalfLength))
	}
	if cfg.Duration <= 0 || cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("duration %v and poll interval %v must be positive", cfg.Duration, cfg.PollInterval))
	}
	if cfg.Transport != transportMemnet && cfg.Transport != transportLibp2p {
		errs = append(errs, fmt.Errorf("unknown transport %q", cfg.Transport))
	}
	if cfg.LogEncoder != "console" && cfg.LogEncoder != "json" {
		errs = append(errs, fmt.Errorf("unknown log encoder %q", cfg.LogEncoder))
	}
	if err := cfg.Gossip.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("gossip: %w", err))
	}
	return errors.Join(errs...)
}

// loadConfig reads the config file, if any, on top of the defaults and the
// flags bound to vip.
func loadConfig(vip *viper.Viper, path string) (Config, error) {
	if path != "" {
		vip.SetConfigFile(path)
		if err := vip.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	conf := DefaultConfig()
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := vip.Unmarshal(&conf, viper.DecodeHook(hook)); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}
