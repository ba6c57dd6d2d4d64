package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"archon/internal/market"
	"archon/internal/sigloop"
	"archon/internal/signals"
)

func (a *app) sigloopCmd() *cobra.Command {
	var ws bool
	cmd := &cobra.Command{
		Use:   "sigloop",
		Short: "Follow the target pair's signatures and classify whale trades",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			cfg := a.cfg.Sigloop
			if cmd.Flags().Changed("ws") {
				cfg.WebSocket = ws
			}
			loop := sigloop.New(a.chainClient(), st, cfg, a.cfg.TargetPath)
			if cfg.WebSocket {
				loop.UseStream(sigloop.NewLogsStream(a.cfg.Chain.WSEndpoint, cfg.ReconnectDelay))
			}
			return loop.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&ws, "ws", false, "discover signatures through a logs subscription instead of polling")
	return cmd
}

func (a *app) priceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Poll the target pair price and build 1m/1h candles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			feed := market.NewPriceFeed(
				market.NewDexScreener(a.cfg.Market),
				market.NewSOLPrice(a.cfg.Market),
				st,
				a.cfg.Market,
				a.cfg.TargetPath,
			)
			return feed.Run(ctx)
		},
	}
}

func (a *app) apiCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Serve the cached signal snapshot at GET /data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			cfg := a.cfg.Signals
			if addr != "" {
				cfg.Addr = addr
			}
			cache := signals.NewCache(st, a.cfg.TargetPath, cfg.Window)

			rdb, err := signals.NewRedisClient(ctx, cfg.Redis)
			if err != nil {
				log.Warn().Err(err).Msg("⚠️ Redis unavailable, serving without mirror")
			} else if rdb != nil {
				defer rdb.Close()
				cache.SetPublisher(signals.NewRedisMirror(rdb, cfg.Redis.TTL))
				log.Info().Str("addr", cfg.Redis.Addr).Msg("🔁 Mirroring snapshots to Redis")
			}

			go cache.Run(ctx, cfg.PriceInterval, cfg.TradeInterval)
			return signals.NewServer(cache, a.cfg.TargetPath).ListenAndServe(ctx, cfg.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides signals.addr)")
	return cmd
}
