package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"archon/internal/chain"
	"archon/internal/market"
	"archon/internal/store"
)

func (a *app) collectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Store DexScreener pair snapshots in Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w, err := store.OpenSnapshotWriter(ctx, a.cfg.Store)
			if err != nil {
				return err
			}
			defer w.Close()

			c := market.NewCollector(market.NewDexScreener(a.cfg.Market), w, a.cfg.Market.Collector)
			return c.Run(ctx)
		},
	}
}

func (a *app) scanCmd() *cobra.Command {
	var (
		promote bool
		once    bool
		rankBy  string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List the top 5m movers and optionally promote the leader to target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Market.Scanner
			if rankBy != "" {
				if rankBy != market.RankByMomentum && rankBy != market.RankByScore {
					return fmt.Errorf("unknown --rank-by %q", rankBy)
				}
				cfg.RankBy = rankBy
			}
			targetPath := ""
			if promote {
				targetPath = a.cfg.TargetPath
			}
			s := market.NewScanner(market.NewDexScreener(a.cfg.Market), cfg, targetPath)
			if once {
				_, err := s.Scan(cmd.Context(), time.Now())
				return err
			}
			return s.Run(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.BoolVar(&promote, "promote", false, "write the top candidate as the new target token")
	f.BoolVar(&once, "once", false, "scan once and exit")
	f.StringVar(&rankBy, "rank-by", "", "momentum or score")
	return cmd
}

func (a *app) walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the trading keypair",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "generate",
			Short: "Create a new keypair file",
			RunE: func(cmd *cobra.Command, _ []string) error {
				key, err := chain.GenerateWallet(a.cfg.Trader.WalletPath)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey().String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the wallet public key and SOL balance",
			RunE: func(cmd *cobra.Command, _ []string) error {
				path := a.cfg.Trader.WalletPath
				key, err := chain.LoadWallet(path)
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no wallet at %s, run `archon wallet generate`", path)
				}
				if err != nil {
					return err
				}
				owner := key.PublicKey().String()
				fmt.Fprintf(cmd.OutOrStdout(), "🔑 %s\n", owner)

				sol, err := a.chainClient().SOLBalance(cmd.Context(), owner)
				if err != nil {
					log.Warn().Err(err).Msg("⚠️ Could not fetch SOL balance")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "💰 %.9f SOL\n", sol)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			log.Info().Msg("✅ Schema applied")
			return nil
		},
	}
}
