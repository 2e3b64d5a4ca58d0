// Command gossipsim runs sharded gossip nodes in a single process and
// reports how long the nodes take to converge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-shardgossip/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	vip := viper.New()
	var configPath string
	cmd := &cobra.Command{
		Use:          "gossipsim",
		Short:        "run sharded gossip nodes over an in-process network",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(vip, configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), conf)
		},
	}
	def := DefaultConfig()
	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "load configuration from file (yaml, toml or json)")
	flags.Int("nodes", def.Nodes, "number of simulated nodes")
	flags.Int("ops-per-node", def.OpsPerNode, "number of ops seeded on each node")
	flags.Uint32("arc-half-length", def.ArcHalfLength, "half length of the arcs of the simulated agents")
	flags.Duration("duration", def.Duration, "maximal duration of the simulation")
	flags.Duration("poll-interval", def.PollInterval, "interval between convergence checks")
	flags.Int64("seed", def.Seed, "seed for the generated ops")
	flags.String("transport", def.Transport, "transport to use (memnet or libp2p)")
	flags.String("listen-addr", def.ListenAddr, "listen address of the libp2p hosts")
	flags.Int("metrics-port", def.MetricsPort, "serve prometheus metrics on this port, disabled if 0")
	flags.String("log-level", def.LogLevel.String(), "log level")
	flags.String("log-encoder", def.LogEncoder, "log encoder (console or json)")

	flags.String("gossip-type", def.Gossip.Type.String(), "gossip type (recent or historical)")
	flags.Duration("tick-interval", def.Gossip.TickInterval, "interval between gossip loop iterations")
	flags.Int("max-concurrent-rounds", def.Gossip.MaxConcurrentRounds, "maximal number of concurrent rounds")
	flags.Duration("round-timeout", def.Gossip.RoundTimeout, "timeout of a round")
	flags.Float64("initiate-rate", def.Gossip.InitiateRate, "rounds initiated per second")
	must(bindFlags(vip, flags, map[string]string{
		"gossip-type":           "gossip.type",
		"tick-interval":         "gossip.tick-interval",
		"max-concurrent-rounds": "gossip.max-concurrent-rounds",
		"round-timeout":         "gossip.round-timeout",
		"initiate-rate":         "gossip.initiate-rate",
	}))
	return cmd
}

// bindFlags binds every flag to the viper key of the same name, unless keys
// maps it to a nested key.
func bindFlags(vip *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" {
			return
		}
		key, ok := keys[f.Name]
		if !ok {
			key = f.Name
		}
		err = vip.BindPFlag(key, f)
	})
	return err
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func newLogger(conf Config) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(conf.LogLevel)
	cfg.Encoding = conf.LogEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	return cfg.Build()
}

func run(ctx context.Context, conf Config) error {
	logger, err := newLogger(conf)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if conf.MetricsPort != 0 {
		metrics.StartMetricsServer(ctx, logger, conf.MetricsPort)
	}
	sim, err := NewSimulation(logger, conf)
	if err != nil {
		return fmt.Errorf("create simulation: %w", err)
	}
	defer sim.Close()
	logger.Info("starting simulation",
		zap.Int("nodes", conf.Nodes),
		zap.Int("opsPerNode", conf.OpsPerNode),
		zap.String("transport", conf.Transport),
		zap.Stringer("gossipType", conf.Gossip.Type),
	)
	report, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	for name, stats := range sim.PeerStats() {
		logger.Debug("peer stats", zap.String("node", name), zap.Object("stats", &stats))
	}
	if !report.Converged {
		return fmt.Errorf("not converged after %v: %d of %d nodes are missing ops",
			report.Elapsed, report.lagging(), report.Nodes)
	}
	fmt.Fprintf(os.Stdout, "converged %d nodes with %d ops in %v\n", report.Nodes, report.Ops, report.Elapsed)
	return nil
}
