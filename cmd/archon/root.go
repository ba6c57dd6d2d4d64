package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"archon/internal/chain"
	"archon/internal/config"
	"archon/internal/logging"
	"archon/internal/metrics"
	"archon/internal/store"
)

// app carries the loaded configuration into every subcommand.
type app struct {
	configPath  string
	logLevel    string
	pretty      bool
	metricsAddr string

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "archon",
		Short:         "Solana memecoin signal pipeline and trading loop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", config.DefaultPath, "path to the YAML config file")
	f.StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	f.BoolVar(&a.pretty, "pretty", true, "human readable console logs")
	f.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		a.sigloopCmd(),
		a.priceCmd(),
		a.apiCmd(),
		a.tradeCmd(),
		a.collectCmd(),
		a.scanCmd(),
		a.walletCmd(),
		a.migrateCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("pretty") {
		cfg.Log.Pretty = a.pretty
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	a.cfg = cfg

	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	metrics.Serve(cmd.Context(), cfg.MetricsAddr)
	return nil
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, a.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return st, nil
}

func (a *app) chainClient() *chain.Client {
	return chain.NewClient(a.cfg.Chain)
}
