package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"archon/internal/chain"
	"archon/internal/market"
	"archon/internal/signals"
	"archon/internal/target"
	"archon/internal/trader"
)

func (a *app) tradeCmd() *cobra.Command {
	var (
		dryRun     bool
		skipSnipe  bool
		dumpOnBoot bool
	)
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Run the buy/sell loop against the target token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := a.cfg.Trader
			flags := cmd.Flags()
			if flags.Changed("dry-run") {
				cfg.DryRun = dryRun
			}
			if flags.Changed("skip-snipe") {
				cfg.SkipSnipe = skipSnipe
			}
			if flags.Changed("dump-on-boot") {
				cfg.DumpOnBoot = dumpOnBoot
			}

			tok, err := target.Load(a.cfg.TargetPath)
			if err != nil {
				return err
			}

			src, closeSrc, err := a.signalSource(ctx)
			if err != nil {
				return err
			}
			defer closeSrc()

			deps := trader.Deps{
				Signals: src,
				SOL:     market.NewSOLPrice(a.cfg.Market),
			}
			if st, err := a.openStore(ctx); err != nil {
				log.Warn().Err(err).Msg("⚠️ Candle store unavailable, trend falls back to signal candles")
			} else {
				defer st.Close()
				deps.Candles = st
			}

			if cfg.DryRun {
				pw := trader.NewPaperWallet(cfg.PaperBalance, trader.Journal{Path: cfg.PaperJournal})
				deps.Wallet, deps.Swapper = pw, pw
				log.Info().Float64("sol", cfg.PaperBalance).Msg("📝 Dry run: trading against a paper wallet")
			} else {
				key, err := chain.LoadWallet(cfg.WalletPath)
				if err != nil {
					return fmt.Errorf("trade: %w", err)
				}
				owner := key.PublicKey().String()
				log.Info().Str("pubkey", owner).Msg("🔑 Loaded wallet")
				deps.Wallet = trader.NewChainWallet(a.chainClient(), owner, tok.MintAddress)
				deps.Swapper = trader.NewScriptSwapper(cfg.SwapCommand, cfg.SwapScript)
			}

			return trader.New(cfg, tok, deps).Run(ctx)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&dryRun, "dry-run", false, "trade against a paper wallet")
	f.BoolVar(&skipSnipe, "skip-snipe", false, "skip the initial snipe")
	f.BoolVar(&dumpOnBoot, "dump-on-boot", false, "sell any leftover tokens on startup")
	return cmd
}

// signalSource reads snapshots from the Redis mirror when one is
// configured, otherwise from the HTTP API.
func (a *app) signalSource(ctx context.Context) (signals.Source, func(), error) {
	cfg := a.cfg.Signals
	rdb, err := signals.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rdb != nil {
		log.Info().Str("addr", cfg.Redis.Addr).Msg("📡 Reading signals from Redis")
		return signals.NewRedisSource(rdb), func() { rdb.Close() }, nil
	}
	log.Info().Str("url", cfg.URL).Msg("📡 Reading signals from API")
	return signals.NewHTTPSource(cfg.URL, cfg.ClientTimeout), func() {}, nil
}
