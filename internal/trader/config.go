package trader

import "time"

type Config struct {
	UpdateInterval    time.Duration `yaml:"update_interval"`
	BuyCooldown       time.Duration `yaml:"buy_cooldown"`
	SellCooldown      time.Duration `yaml:"sell_cooldown"`
	MinHold           time.Duration `yaml:"min_hold"`
	TrendWindow       time.Duration `yaml:"trend_window"`
	ConfirmationDelay time.Duration `yaml:"confirmation_delay"`
	LatencyMin        time.Duration `yaml:"latency_min"`
	LatencyMax        time.Duration `yaml:"latency_max"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	CandleWindow      time.Duration `yaml:"candle_window"`

	MinSwapSOL          float64 `yaml:"min_swap_sol"`
	MinSOLForTrade      float64 `yaml:"min_sol_for_trade"`
	MinLiquidReserve    float64 `yaml:"min_liquid_reserve"`
	FeePerTrade         float64 `yaml:"fee_per_trade"`
	NetworkFee          float64 `yaml:"network_fee"`
	SniperPercentage    float64 `yaml:"sniper_percentage"`
	ProfitThreshold     float64 `yaml:"profit_threshold"`
	StopLoss            float64 `yaml:"stop_loss"`
	SlippageFactor      float64 `yaml:"slippage_factor"`
	MaxSlippage         float64 `yaml:"max_slippage"`
	TrimRatio           float64 `yaml:"trim_ratio"`
	BuyFraction         float64 `yaml:"buy_fraction"`
	AverageDownFraction float64 `yaml:"average_down_fraction"`
	FallbackSOLPrice    float64 `yaml:"fallback_sol_price"`
	SwapAttempts        int     `yaml:"swap_attempts"`
	CandleLimit         int     `yaml:"candle_limit"`

	SkipSnipe  bool `yaml:"skip_snipe"`
	DumpOnBoot bool `yaml:"dump_on_boot"`

	// DryRun swaps against a PaperWallet holding PaperBalance SOL.
	DryRun       bool    `yaml:"dry_run"`
	PaperBalance float64 `yaml:"paper_balance"`
	PaperJournal string  `yaml:"paper_journal"`

	StatePath   string `yaml:"state_path"`
	JournalPath string `yaml:"journal_path"`
	WalletPath  string `yaml:"wallet_path"`
	SwapCommand string `yaml:"swap_command"`
	SwapScript  string `yaml:"swap_script"`
}

func DefaultConfig() Config {
	return Config{
		UpdateInterval:    2 * time.Second,
		BuyCooldown:       15 * time.Second,
		SellCooldown:      15 * time.Second,
		MinHold:           300 * time.Second,
		TrendWindow:       300 * time.Second,
		ConfirmationDelay: 2 * time.Second,
		LatencyMin:        50 * time.Millisecond,
		LatencyMax:        200 * time.Millisecond,
		RetryDelay:        time.Second,
		CandleWindow:      15 * time.Minute,

		MinSwapSOL:          0.005,
		MinSOLForTrade:      0.003,
		MinLiquidReserve:    0.0075,
		FeePerTrade:         0.002,
		NetworkFee:          0.000005,
		SniperPercentage:    0.67,
		ProfitThreshold:     0.015,
		StopLoss:            -0.10,
		SlippageFactor:      0.005,
		MaxSlippage:         0.02,
		TrimRatio:           0.35,
		BuyFraction:         0.15,
		AverageDownFraction: 0.10,
		FallbackSOLPrice:    180,
		SwapAttempts:        3,
		CandleLimit:         15,

		PaperBalance: 10,
		PaperJournal: "paper_trades.jsonl",

		StatePath:   "archon_degen_state.json",
		JournalPath: "trade_log.jsonl",
		WalletPath:  "wallet.json",
		SwapCommand: "ts-node",
		SwapScript:  "raydium/raydium_swap.ts",
	}
}

// MinSOLRequired is the liquid balance below which the loop only holds.
func (c Config) MinSOLRequired() float64 {
	return c.MinSOLForTrade + c.MinLiquidReserve + c.NetworkFee
}

// DynamicSlippage widens the base slippage with recent price volatility.
func (c Config) DynamicSlippage(volatility float64) float64 {
	s := c.SlippageFactor * (1 + 2*volatility)
	if s > c.MaxSlippage {
		return c.MaxSlippage
	}
	return s
}
